// Command menuimport imports restaurant menus from JSON or YAML files and
// manages the database schema and import history.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFailure
}

// dbFlags are the store overrides shared by every subcommand.
type dbFlags struct {
	driver string
	url    string
}

func newRootCmd() *cobra.Command {
	var db dbFlags

	root := &cobra.Command{
		Use:           "menuimport",
		Short:         "Import restaurant menus into the catalog database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&db.driver, "driver", "", "Database driver: postgres, sqlite or memory (default: DB_DRIVER)")
	root.PersistentFlags().StringVar(&db.url, "database-url", "", "Database connection string (default: DATABASE_URL)")

	root.AddCommand(newImportCmd(&db), newMigrateCmd(&db), newHistoryCmd(&db))
	return root
}

func main() {
	// .env is optional; real environment variables win over it here.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	os.Exit(exitCode(err))
}
