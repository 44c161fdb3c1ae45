package db

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"

	"github.com/kanoo-op/PostureAI-sub004/internal/monitoring"
)

// ErrUsage is returned for a malformed migrate invocation.
var ErrUsage = errors.New("usage error")

// RunMigrateCommand handles the 'migrate' subcommand. Output goes to w.
func RunMigrateCommand(args []string, dbPath string, w io.Writer) error {
	if len(args) < 1 {
		PrintMigrateHelp(w)
		return ErrUsage
	}
	action := args[0]
	if action == "help" {
		PrintMigrateHelp(w)
		return nil
	}

	migrations, err := getMigrationsFS()
	if err != nil {
		return fmt.Errorf("failed to get migrations filesystem: %w", err)
	}
	// The schema is left to the migrations themselves.
	database, err := OpenDB(dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	switch action {
	case "up":
		if err := database.MigrateUp(migrations); err != nil {
			return err
		}
		monitoring.Logf("all migrations applied")
	case "down":
		if err := database.MigrateDown(migrations); err != nil {
			return err
		}
		monitoring.Logf("rolled back one migration")
	case "status":
	case "version":
		v, err := versionArg(args)
		if err != nil {
			return err
		}
		if err := database.MigrateTo(migrations, uint(v)); err != nil {
			return err
		}
	case "force":
		v, err := versionArg(args)
		if err != nil {
			return err
		}
		monitoring.Logf("forcing migration version to %d", v)
		if err := database.MigrateForce(migrations, v); err != nil {
			return err
		}
	default:
		fmt.Fprintf(w, "Unknown migrate action: %s\n\n", action)
		PrintMigrateHelp(w)
		return ErrUsage
	}
	return printStatus(w, database, migrations)
}

func versionArg(args []string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("%w: migrate %s <version_number>", ErrUsage, args[0])
	}
	v, err := strconv.Atoi(args[1])
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: invalid version number %q", ErrUsage, args[1])
	}
	return v, nil
}

func printStatus(w io.Writer, database *DB, migrations fs.FS) error {
	st, err := database.GetMigrationStatus(migrations)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "=== Migration Status ===")
	fmt.Fprintf(w, "Current version: %d\n", st.Version)
	fmt.Fprintf(w, "Latest version: %d\n", st.Latest)
	fmt.Fprintf(w, "Pending: %d\n", st.Pending)
	fmt.Fprintf(w, "Dirty: %v\n", st.Dirty)
	if st.Dirty {
		fmt.Fprintln(w, "\nWARNING: a migration failed mid-execution.")
		fmt.Fprintln(w, "Inspect the database, then run: formcoach migrate force <version>")
	}
	return nil
}

// PrintMigrateHelp writes the migrate subcommand usage.
func PrintMigrateHelp(w io.Writer) {
	fmt.Fprint(w, `Usage: formcoach migrate <action> [args]

Actions:
  up                 Apply all pending migrations
  down               Roll back the most recent migration
  status             Show the current schema version
  version <N>        Migrate up or down to version N
  force <N>          Set the version without running migrations (recovery only)
  help               Show this help
`)
}
