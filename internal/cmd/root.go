package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/offlinefirst/motionreplay/internal/buildinfo"
	"github.com/offlinefirst/motionreplay/pkg/config"
	"github.com/offlinefirst/motionreplay/pkg/logging"
)

// AppContext exposes lazily initialised configuration and logging facilities.
type AppContext struct {
	Config config.Config
	Logger *slog.Logger
}

// RootCommand wires the cobra command tree to the application context.
type RootCommand struct {
	root       *cobra.Command
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
	appCtx     *AppContext
	configPath string
	logLevel   string
	logFormat  string
}

// NewRootCommand constructs the CLI with its subcommands and global flags.
func NewRootCommand() *RootCommand {
	rc := &RootCommand{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	root := &cobra.Command{
		Use:   "replayer",
		Short: "Record and replay pointer and keyboard input",
		Long: `replayer records a timestamped stream of pointer and keyboard input,
conditions raw relative motion into smooth deltas that end in decay ramps,
and replays recordings with absolute-deadline timing.

Capture input arrives as JSONL notifications (from a platform hook helper or
a script file); playback is written to an injector journal.

Quick Start:
  replayer record --input capture.jsonl   # record and save a recording
  replayer list                           # list saved recordings
  replayer play --loop --count 3          # replay the latest recording`,
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&rc.configPath, "config", "", "Path to config file (default: ./replayer.yaml if present)")
	root.PersistentFlags().StringVar(&rc.logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&rc.logFormat, "log-format", "", "Override log output format (json, console)")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		rc.newRecordCommand(),
		rc.newPlayCommand(),
		rc.newListCommand(),
		rc.newExportCommand(),
		rc.newConfigCommand(),
		rc.newVersionCommand(),
	)

	rc.root = root
	return rc
}

// SetIO replaces the standard streams, mainly for tests.
func (rc *RootCommand) SetIO(stdin io.Reader, stdout, stderr io.Writer) {
	rc.stdin = stdin
	rc.stdout = stdout
	rc.stderr = stderr
}

// Execute parses args and runs the selected subcommand.
func (rc *RootCommand) Execute(args []string) error {
	rc.root.SetArgs(args)
	rc.root.SetIn(rc.stdin)
	rc.root.SetOut(rc.stdout)
	rc.root.SetErr(rc.stderr)
	return rc.root.Execute()
}

func (rc *RootCommand) ensureAppContext() (*AppContext, error) {
	if rc.appCtx != nil {
		return rc.appCtx, nil
	}

	cfg, err := config.Load(rc.configPath)
	if err != nil {
		return nil, err
	}

	if rc.logLevel != "" {
		lvl, err := config.NormalizeLogLevel(rc.logLevel)
		if err != nil {
			return nil, err
		}
		cfg.Logging.Level = lvl
	}
	if rc.logFormat != "" {
		format, err := config.NormalizeFormat(rc.logFormat)
		if err != nil {
			return nil, err
		}
		cfg.Logging.Format = format
	}

	logger, err := logging.New(logging.FromConfig(cfg.Logging, rc.stderr))
	if err != nil {
		return nil, err
	}

	logger.Debug("configuration loaded", "source", cfg.Source, "recordings_dir", cfg.Paths.RecordingsDir, "catalog", cfg.Paths.CatalogPath)

	rc.appCtx = &AppContext{Config: cfg, Logger: logger}
	return rc.appCtx, nil
}

func versionString() string {
	v := buildinfo.Version()
	if rev := buildRevision(); rev != "" {
		v += " " + rev
	}
	return fmt.Sprintf("%s (go%s/%s)", v, runtimeVersion(), runtimeGOOS())
}

// buildRevision is extracted for testability.
var buildRevision = buildinfo.Revision

// runtimeVersion is extracted for testability.
var runtimeVersion = func() string { return strings.TrimPrefix(runtime.Version(), "go") }

// runtimeGOOS is extracted for testability.
var runtimeGOOS = func() string { return runtime.GOOS }

// timeNow is extracted for testability.
var timeNow = time.Now

// signalContext is extracted for testability.
var signalContext = func(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
