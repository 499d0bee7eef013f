package web

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/menuimport/internal/ingest"
	"github.com/JonMunkholm/menuimport/internal/store"
)

// NoContentMessage is returned when an import request carries no JSON.
const NoContentMessage = "No JSON content provided. Please upload a JSON file or send JSON in the request body."

// Import sources recorded in the history.
const (
	sourceFile = "file"
	sourceForm = "form"
	sourceBody = "body"
)

type noContentResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// handleImport runs the import pipeline over the request payload: a
// multipart "file", a "json_content" form field, or the raw body.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxBodySize)

	content, source, err := readImportContent(r, s.cfg.Import.MaxBodySize)
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		respondError(w, r, err, status)
		return
	}

	if strings.TrimSpace(string(content)) == "" {
		writeJSON(w, http.StatusUnprocessableEntity, noContentResponse{
			Success: false,
			Message: NoContentMessage,
			Code:    ingest.MapError(ingest.ErrNoContent).Code,
		})
		return
	}

	ctx := WithRequestMetadata(r.Context(), r, source)
	report, err := s.service.Import(ctx, content)
	if err != nil {
		if errors.Is(err, ingest.ErrTooManyImports) {
			w.Header().Set("Retry-After", "5")
			respondError(w, r, err, http.StatusTooManyRequests)
			return
		}
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	status := http.StatusCreated
	if !report.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, report)
}

func readImportContent(r *http.Request, maxSize int64) ([]byte, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxSize); err != nil {
			return nil, "", fmt.Errorf("parse multipart form: %w", err)
		}
		file, _, err := r.FormFile("file")
		if err == nil {
			defer file.Close()
			data, err := io.ReadAll(file)
			if err != nil {
				return nil, "", fmt.Errorf("read uploaded file: %w", err)
			}
			return data, sourceFile, nil
		}
		if !errors.Is(err, http.ErrMissingFile) {
			return nil, "", fmt.Errorf("read multipart file: %w", err)
		}
		return []byte(r.FormValue("json_content")), sourceForm, nil

	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, "", fmt.Errorf("parse form: %w", err)
		}
		return []byte(r.PostFormValue("json_content")), sourceForm, nil

	default:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, "", fmt.Errorf("read request body: %w", err)
		}
		return data, sourceBody, nil
	}
}

// handleListImports returns recent import runs, newest first.
func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", s.cfg.Import.HistoryLimit)

	runs, err := s.service.ListImports(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"imports": runs})
}

// handleGetImport returns one import run.
func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "importID"))
	if err != nil {
		respondError(w, r, fmt.Errorf("%w: %v", errInvalidImportID, err), http.StatusBadRequest)
		return
	}

	run, err := s.service.GetImport(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrNotFound) {
			status = http.StatusNotFound
		}
		respondError(w, r, err, status)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleStats returns catalog row counts and import limiter status.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context())
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	resp := map[string]any{"catalog": stats}
	if l := s.service.Limiter(); l != nil {
		resp["imports"] = l.Status()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
