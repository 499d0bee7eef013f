package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/menuimport/internal/ingest"
)

// WithRequestMetadata adds client IP, User-Agent and import source to the
// context for the import history.
func WithRequestMetadata(ctx context.Context, r *http.Request, source string) context.Context {
	ctx = ingest.ContextWithIPAddress(ctx, clientIP(r))
	ctx = ingest.ContextWithUserAgent(ctx, r.UserAgent())
	ctx = ingest.ContextWithSource(ctx, source)
	return ctx
}

// clientIP returns the host part of RemoteAddr, which TrustedRealIP has
// already resolved.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
