package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/menuimport/internal/logging"
	"github.com/JonMunkholm/menuimport/internal/store"
)

// ErrNoContent is returned by a Format when the payload is blank.
var ErrNoContent = errors.New("no json content provided")

// Format decodes a raw payload into generic values for Canonicalize.
type Format struct {
	Name   string
	Decode func(content []byte) (any, error)
}

// FormatJSON decodes JSON. Numbers are kept as float64.
var FormatJSON = Format{
	Name: "JSON",
	Decode: func(content []byte) (any, error) {
		var v any
		dec := json.NewDecoder(bytes.NewReader(content))
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		if dec.More() {
			return nil, errors.New("unexpected data after top-level value")
		}
		return v, nil
	},
}

// FormatYAML decodes YAML. JSON documents are valid YAML as well.
var FormatYAML = Format{
	Name: "YAML",
	Decode: func(content []byte) (any, error) {
		var v any
		if err := yaml.Unmarshal(content, &v); err != nil {
			return nil, err
		}
		return v, nil
	},
}

// FormatByName returns the format for "json" or "yaml"/"yml".
func FormatByName(name string) (Format, error) {
	switch name {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return Format{}, fmt.Errorf("unknown format %q: must be json or yaml", name)
	}
}

// Pipeline runs decode, canonicalize, validate and import in order and
// stops at the first stage that fails.
type Pipeline struct {
	importer *Importer
	format   Format
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFormat sets the payload format. The default is JSON.
func WithFormat(f Format) Option {
	return func(p *Pipeline) { p.format = f }
}

// WithLogger sets the logger the log trail is mirrored to. By default the
// logger comes from the run's context.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline returns a Pipeline importing into s.
func NewPipeline(s store.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		importer: NewImporter(s),
		format:   FormatJSON,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run imports content and returns the report. It never returns nil: every
// failure is described by a report with Success false.
func (p *Pipeline) Run(ctx context.Context, content []byte) *Report {
	report := &Report{
		ImportID:  uuid.New(),
		StartedAt: time.Now().UTC(),
	}
	ctx = logging.ContextWithImportID(ctx, report.ImportID.String())

	logger := p.logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	} else {
		logger = logger.With("import_id", report.ImportID.String())
	}
	logs := &logTrail{logger: logger}

	p.run(ctx, content, report, logs)

	if report.Success {
		report.Message = "Import completed successfully"
		logs.infof("%s", report.Message)
	} else {
		if report.Message == "" {
			report.Message = "Import failed"
		}
		logs.errorf("%s", report.Message)
	}
	report.Logs = logs.entries
	report.FinishedAt = time.Now().UTC()
	return report
}

func (p *Pipeline) run(ctx context.Context, content []byte, report *Report, logs *logTrail) {
	if len(bytes.TrimSpace(content)) == 0 {
		logs.errorf("No %s content provided for parsing", p.format.Name)
		report.Message = fmt.Sprintf("%s content is required", p.format.Name)
		return
	}

	raw, err := p.format.Decode(content)
	if err != nil {
		logs.errorf("%s parsing failed: %v", p.format.Name, err)
		report.Message = fmt.Sprintf("Invalid %s format: %v", p.format.Name, err)
		return
	}
	logs.infof("Successfully parsed %s data", p.format.Name)

	records, adapterErrs := Canonicalize(raw)
	report.AdapterErrors = adapterErrs
	if len(adapterErrs) > 0 {
		logs.warnf("Adapter found %d warning(s) during adaptation", len(adapterErrs))
	} else {
		logs.infof("Successfully adapted %d restaurant(s)", len(records))
	}

	validation := Validate(records)
	report.ValidationErrors = validation.Errors
	logs.append(validation.Logs...)
	if !validation.Valid {
		report.Message = validation.Message
		return
	}

	result := p.importer.run(ctx, records, logs)
	report.Success = true
	report.Summary = result.Summary
	report.Results = result.Results
	logs.infof("Import completed: %d restaurant(s), %d menu(s), %d menu item(s), %d assignment(s)",
		result.Summary.Restaurants, result.Summary.Menus, result.Summary.MenuItems, result.Summary.Assignments)
}
