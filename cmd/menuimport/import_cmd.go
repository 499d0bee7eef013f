package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/menuimport/internal/config"
	"github.com/JonMunkholm/menuimport/internal/ingest"
	"github.com/JonMunkholm/menuimport/internal/report"
	"github.com/JonMunkholm/menuimport/internal/store/drivers"
)

type importOptions struct {
	file   string
	format string
	output string
	dryRun bool
}

func newImportCmd(db *dbFlags) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import restaurants, menus and menu items from a JSON or YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), db, opts, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", `Input file, or "-" for stdin (required)`)
	cmd.Flags().StringVar(&opts.format, "format", "", "Input format: json or yaml (default: from file extension)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "table", "Output: table or json")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Run against an in-memory store and discard the result")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runImport(ctx context.Context, db *dbFlags, opts importOptions, stdin io.Reader, stdout, stderr io.Writer) error {
	if opts.output != "table" && opts.output != "json" {
		return withCode(exitUsage, fmt.Errorf("unsupported --output: %s", opts.output))
	}
	format, err := ingest.FormatByName(detectFormat(opts.file, opts.format))
	if err != nil {
		return withCode(exitUsage, err)
	}

	content, err := readInput(opts.file, stdin)
	if err != nil {
		return withCode(exitUsage, err)
	}

	cfg, err := loadConfig(db, func(c *config.Config) {
		if opts.dryRun {
			c.Database.Driver = config.DriverMemory
		}
	})
	if err != nil {
		return err
	}
	logger := setupLogger(stderr, cfg)

	st, err := drivers.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	svc := ingest.NewService(st,
		ingest.ServiceConfig{},
		ingest.WithFormat(format),
		ingest.WithLogger(logger),
	)

	ctx = ingest.ContextWithSource(ctx, "cli:"+filepath.Base(opts.file))
	res, err := svc.Import(ctx, content)
	if err != nil {
		return err
	}

	if err := writeReport(stdout, opts.output, res); err != nil {
		return err
	}
	if !res.Success {
		return withCode(exitFailure, errors.New(res.Message))
	}
	return nil
}

// detectFormat prefers the explicit flag, then the file extension.
func detectFormat(file, flag string) string {
	if flag != "" {
		return strings.ToLower(flag)
	}
	switch strings.ToLower(filepath.Ext(file)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

func readInput(file string, stdin io.Reader) ([]byte, error) {
	if file == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}

func writeReport(w io.Writer, output string, r *ingest.Report) error {
	if output == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	return report.WriteImportReport(w, r)
}
