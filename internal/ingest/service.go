package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/menuimport/internal/catalog"
	"github.com/JonMunkholm/menuimport/internal/logging"
	"github.com/JonMunkholm/menuimport/internal/store"
)

// Service is the entry point shared by the HTTP API and the CLI. It bounds
// concurrent imports, runs the pipeline and records every run in the
// import history.
type Service struct {
	store    store.Store
	pipeline *Pipeline
	limiter  *ImportLimiter
}

// ServiceConfig holds the optional knobs of a Service.
type ServiceConfig struct {
	// Limiter bounds concurrent imports. Nil means unbounded.
	Limiter *ImportLimiter
}

// NewService wires a pipeline over s.
func NewService(s store.Store, cfg ServiceConfig, opts ...Option) *Service {
	return &Service{
		store:    s,
		pipeline: NewPipeline(s, opts...),
		limiter:  cfg.Limiter,
	}
}

// Import runs one import. The error is non-nil only when no limiter slot
// could be acquired; pipeline failures are reported in the returned Report.
// Once a slot is held the batch runs to completion: cancelling ctx does not
// stop it.
func (s *Service) Import(ctx context.Context, content []byte) (*Report, error) {
	if s.limiter != nil {
		if err := s.limiter.Acquire(ctx); err != nil {
			return nil, fmt.Errorf("import: %w", err)
		}
		defer s.limiter.Release()
	}

	report := s.pipeline.Run(context.WithoutCancel(ctx), content)
	s.recordRun(ctx, report)
	return report, nil
}

// recordRun stores the run summary. History is best effort: a failed write
// is logged and does not change the import outcome.
func (s *Service) recordRun(ctx context.Context, report *Report) {
	run := store.ImportRun{
		ID:          report.ImportID,
		Source:      SourceFromContext(ctx),
		Success:     report.Success,
		Message:     report.Message,
		Restaurants: report.Summary.Restaurants,
		Menus:       report.Summary.Menus,
		MenuItems:   report.Summary.MenuItems,
		Assignments: report.Summary.Assignments,
		ErrorCount:  report.ErrorCount(),
		IPAddress:   IPAddressFromContext(ctx),
		UserAgent:   UserAgentFromContext(ctx),
		StartedAt:   report.StartedAt,
		FinishedAt:  report.FinishedAt,
	}

	// The request context may already be cancelled; the record should
	// still land.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.store.RecordImportRun(writeCtx, run); err != nil {
		logging.FromContext(ctx).Warn("failed to record import run",
			"import_id", report.ImportID, "error", err)
	}
}

// ListImports returns recent runs, newest first.
func (s *Service) ListImports(ctx context.Context, limit int) ([]store.ImportRun, error) {
	runs, err := s.store.ListImportRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	return runs, nil
}

// GetImport returns one run. A missing run yields an error wrapping
// store.ErrNotFound.
func (s *Service) GetImport(ctx context.Context, id uuid.UUID) (*store.ImportRun, error) {
	run, err := s.store.GetImportRun(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("import not found: %s: %w", id, err)
	}
	if err != nil {
		return nil, fmt.Errorf("get import: %w", err)
	}
	return run, nil
}

// Stats returns catalog row counts.
func (s *Service) Stats(ctx context.Context) (catalog.Stats, error) {
	return s.store.Stats(ctx)
}

// Limiter returns the import limiter, or nil.
func (s *Service) Limiter() *ImportLimiter {
	return s.limiter
}
