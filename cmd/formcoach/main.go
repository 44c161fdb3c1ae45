// Command formcoach replays recorded pose streams through the form analysis
// pipeline, segments and detects exercises in recorded videos and manages
// stored workout sessions.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/kanoo-op/PostureAI-sub004/internal/config"
	"github.com/kanoo-op/PostureAI-sub004/internal/db"
	"github.com/kanoo-op/PostureAI-sub004/internal/monitoring"
	"github.com/kanoo-op/PostureAI-sub004/internal/version"
)

const defaultDBPath = "formcoach.db"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "formcoach: %v\n", err)
		}
		os.Exit(1)
	}
}

// run dispatches one command line. It is main without the process exit.
func run(args []string, stdout, stderr io.Writer) error {
	if len(args) < 1 {
		printUsage(stderr)
		return flag.ErrHelp
	}
	command, rest := args[0], args[1:]

	switch command {
	case "replay":
		return runReplay(rest, stdout, stderr)
	case "segment":
		return runSegment(rest, stdout, stderr)
	case "detect":
		return runDetect(rest, stdout, stderr)
	case "sessions":
		return runSessions(rest, stdout, stderr)
	case "migrate":
		return runMigrate(rest, stdout, stderr)
	case "version":
		fmt.Fprintln(stdout, version.Get())
		return nil
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", command)
		printUsage(stderr)
		return flag.ErrHelp
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `formcoach - exercise form analysis

Usage: formcoach <command> [options]

Commands:
  replay     Run a recorded pose stream through a live session
  segment    Count and grade the reps of a recorded video
  detect     Identify the exercise in a recorded video
  sessions   List, show or delete stored sessions
  migrate    Manage the database schema
  version    Show the formcoach version
  help       Show this help message

Frames files are JSON arrays of
  {"frameIndex":0,"timestamp":33,"pose":[{"x":..,"y":..,"z":..,"score":..}],"confidence":0.9}
with timestamps in milliseconds. "pose" may be null for frames without a
detection. Use "-" to read from standard input.

Run "formcoach <command> -h" for the options of a command.
`)
}

// common holds the flags shared by every analysis command.
type common struct {
	configPath string
	debug      bool
	quiet      bool
	jsonOut    bool
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "Tuning config JSON (defaults to compiled-in values)")
	fs.BoolVar(&c.debug, "debug", false, "Log per-frame diagnostics")
	fs.BoolVar(&c.quiet, "quiet", false, "Suppress progress logging")
	fs.BoolVar(&c.jsonOut, "json", false, "Write machine-readable JSON output")
}

// apply installs the log sinks and loads the tuning config.
func (c *common) apply(stderr io.Writer) (*config.TuningConfig, error) {
	logger := log.New(stderr, "", log.LstdFlags)
	monitoring.SetLogger(logger.Printf)
	if c.quiet {
		monitoring.SetLogger(nil)
	}
	if c.debug {
		monitoring.SetDebugLogger(logger.Printf)
	}
	if c.configPath == "" {
		return config.EmptyTuningConfig(), nil
	}
	return config.LoadTuningConfig(c.configPath)
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// usageError prints the flag defaults and returns flag.ErrHelp, which main
// turns into a silent non-zero exit.
func usageError(fs *flag.FlagSet) error {
	fs.PrintDefaults()
	return flag.ErrHelp
}

func runMigrate(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("migrate", stderr)
	dbPath := fs.String("db", defaultDBPath, "SQLite database path")
	dev := fs.Bool("dev", false, "Read migrations from internal/db/migrations instead of the embedded copy")
	if err := fs.Parse(args); err != nil {
		return err
	}
	monitoring.SetLogger(log.New(stderr, "", log.LstdFlags).Printf)
	db.DevMode = *dev
	return db.RunMigrateCommand(fs.Args(), *dbPath, stdout)
}
