package ingest

import "context"

type contextKey string

const (
	ctxKeyIPAddress contextKey = "import_ip"
	ctxKeyUserAgent contextKey = "import_ua"
	ctxKeySource    contextKey = "import_source"
)

// ContextWithIPAddress records the caller's IP for import history.
func ContextWithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyIPAddress, ip)
}

// ContextWithUserAgent records the caller's User-Agent for import history.
func ContextWithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, ctxKeyUserAgent, ua)
}

// ContextWithSource records where the payload came from: "file", "form",
// "body" or "cli:<name>".
func ContextWithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, ctxKeySource, source)
}

func stringFromContext(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// IPAddressFromContext returns the IP stored by ContextWithIPAddress.
func IPAddressFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxKeyIPAddress)
}

// UserAgentFromContext returns the value stored by ContextWithUserAgent.
func UserAgentFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxKeyUserAgent)
}

// SourceFromContext returns the value stored by ContextWithSource.
func SourceFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxKeySource)
}
