package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/offlinefirst/motionreplay/pkg/catalog"
	"github.com/offlinefirst/motionreplay/pkg/config"
	"github.com/offlinefirst/motionreplay/pkg/events"
	"github.com/offlinefirst/motionreplay/pkg/session"
	"github.com/offlinefirst/motionreplay/pkg/store"
	"github.com/offlinefirst/motionreplay/pkg/timeline"
)

type recordOptions struct {
	input    string
	paced    bool
	alwaysOn bool
	planOnly bool
	status   time.Duration
	journal  string
}

func (rc *RootCommand) newRecordCommand() *cobra.Command {
	var opts recordOptions
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a capture stream into a new recording",
		Long: `Record reads capture notifications as JSONL (one object per line with
"t", "kind" and kind-specific fields) and records them through the motion
pipeline. Interrupting the command stops the recording and saves it.

By default script time is virtual: timestamps come from the "t" field and the
stream is consumed as fast as it can be read. Use --paced to deliver lines in
real time, for example when piping a live hook helper.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rc.runRecord(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.input, "input", "i", "-", `Capture script to read ("-" for stdin)`)
	cmd.Flags().BoolVar(&opts.paced, "paced", false, "Deliver script lines in real time")
	cmd.Flags().BoolVar(&opts.alwaysOn, "always-on", false, "Record raw motion without holding the right button")
	cmd.Flags().BoolVar(&opts.planOnly, "plan-only", false, "Print the recording plan and exit")
	cmd.Flags().DurationVar(&opts.status, "status", 0, "Print a status line at this interval (0 disables)")
	cmd.Flags().StringVar(&opts.journal, "journal", "", `Injection journal for autoplay ("-" for stdout)`)
	return cmd
}

func (rc *RootCommand) runRecord(cmd *cobra.Command, opts recordOptions) error {
	app, err := rc.ensureAppContext()
	if err != nil {
		return err
	}
	cfg := app.Config
	if cmd.Flags().Changed("always-on") {
		cfg.Capture.AlwaysOn = opts.alwaysOn
	}
	if cmd.Flags().Changed("paced") {
		cfg.Capture.Paced = opts.paced
	}
	logger := app.Logger.With("command", "record")

	if opts.planOnly {
		printRecordPlan(rc.stdout, cfg, opts)
		return nil
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	shutdown, err := setupTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() { _ = shutdown(context.Background()) }()

	if err := os.MkdirAll(cfg.Paths.RecordingsDir, 0o755); err != nil {
		return fmt.Errorf("create recordings directory: %w", err)
	}
	cat, err := openCatalog(ctx, cfg.Paths)
	if err != nil {
		return err
	}
	defer cat.Close()

	input, closeInput, err := rc.openInput(opts.input)
	if err != nil {
		return err
	}
	defer closeInput()

	clock := timeNow
	var (
		wait    func(context.Context, time.Time) error
		sleeper func(context.Context, time.Duration) error
	)
	if !cfg.Capture.Paced {
		vc := events.NewVirtualClock(timeNow())
		clock, wait, sleeper = vc.Now, vc.WaitUntil, skipIdle
	}

	injector, closeJournal, err := rc.openInjector(opts.journal, clock)
	if err != nil {
		return err
	}
	defer func() { _ = closeJournal() }()

	var saved string
	controller, err := session.New(session.Options{
		Config:    cfg,
		Logger:    logger,
		Clock:     clock,
		Injector:  injector,
		WaitUntil: wait,
		Sleeper:   sleeper,
		OnRecorded: func(snap timeline.Snapshot) error {
			path, err := saveRecording(ctx, cat, cfg.Paths.RecordingsDir, clock(), snap, logger)
			saved = path
			return err
		},
	})
	if err != nil {
		return err
	}

	source, err := events.NewScriptSource(events.ScriptOptions{
		Reader:    input,
		Paced:     true,
		Logger:    logger,
		Clock:     clock,
		WaitUntil: wait,
	})
	if err != nil {
		return err
	}

	if err := controller.StartRecording(); err != nil {
		return err
	}

	var result events.ScriptResult
	g, gctx := errgroup.WithContext(ctx)
	statusCtx, stopStatus := context.WithCancel(gctx)
	defer stopStatus()
	g.Go(func() error {
		defer stopStatus()
		res, err := source.Run(gctx, controller)
		result = res
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			// Interrupt ends the recording like a stop hotkey.
			return nil
		}
		return err
	})
	if opts.status > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(opts.status)
			defer ticker.Stop()
			for {
				select {
				case <-statusCtx.Done():
					return nil
				case <-ticker.C:
					fmt.Fprintln(rc.stderr, controller.Status().String())
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		controller.EmergencyStop()
		return fmt.Errorf("capture stream: %w", err)
	}

	snap, err := controller.StopRecording()
	if err != nil {
		return err
	}
	logger.Debug("capture stream consumed",
		"lines", result.Lines,
		"raw", result.Raw,
		"discrete", result.Discrete,
		"skipped", result.Skipped,
		"truncated", result.Truncated,
	)

	if snap.Empty() {
		fmt.Fprintln(rc.stdout, "No events recorded; nothing saved.")
		return nil
	}
	fmt.Fprintf(rc.stdout, "Recorded %d events (%.3fs) to %s\n", snap.Len(), snap.Duration().Seconds(), saved)

	if cfg.Session.Autoplay {
		// Interrupts during the stream were consumed as a stop request.
		res, err := waitPlayback(context.WithoutCancel(ctx), controller)
		if err != nil {
			return fmt.Errorf("autoplay: %w", err)
		}
		fmt.Fprintln(rc.stdout, formatResult(res))
	}
	return nil
}

func saveRecording(ctx context.Context, cat *catalog.Catalog, dir string, now time.Time, snap timeline.Snapshot, logger *slog.Logger) (string, error) {
	name, err := store.ResolveName(dir, now)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := store.Save(path, snap); err != nil {
		return "", err
	}
	logger.Info("recording saved", "path", path, "events", snap.Len())
	if err := cat.Upsert(context.WithoutCancel(ctx), catalog.EntryFor(path, now, snap)); err != nil {
		logger.Warn("catalog update failed", "path", path, "error", err)
	}
	return path, nil
}

func (rc *RootCommand) openInput(path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return rc.stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open capture script: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func printRecordPlan(w io.Writer, cfg config.Config, opts recordOptions) {
	input := opts.input
	if input == "" || input == "-" {
		input = "<stdin>"
	}
	timing := "virtual (script timestamps)"
	if cfg.Capture.Paced {
		timing = "real time"
	}
	mode := "gesture (right button)"
	if cfg.Capture.AlwaysOn {
		mode = "always-on"
	}
	fmt.Fprintf(w, "Recording plan (config: %s)\n", cfg.Source)
	fmt.Fprintf(w, "  Input: %s\n", input)
	fmt.Fprintf(w, "  Timing: %s\n", timing)
	fmt.Fprintf(w, "  Motion mode: %s\n", mode)
	fmt.Fprintf(w, "  Recordings dir: %s\n", cfg.Paths.RecordingsDir)
	fmt.Fprintf(w, "  Catalog: %s\n", cfg.Paths.CatalogPath)
	fmt.Fprintf(w, "  Smoothing: %.2f  stop threshold: %d  stop frames: %d\n",
		cfg.Motion.Smoothing, cfg.Motion.StopThreshold, cfg.Motion.StopFrames)
	fmt.Fprintf(w, "  Ramp: enabled=%t duration=%s decay=%.2f tick=%s\n",
		cfg.Motion.RampEnabled, cfg.Motion.RampDuration, cfg.Motion.RampDecay, cfg.Motion.Tick)
	fmt.Fprintf(w, "  Autoplay: %t\n", cfg.Session.Autoplay)
}
