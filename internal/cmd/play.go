package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/offlinefirst/motionreplay/pkg/catalog"
	"github.com/offlinefirst/motionreplay/pkg/config"
	"github.com/offlinefirst/motionreplay/pkg/events"
	"github.com/offlinefirst/motionreplay/pkg/replay"
	"github.com/offlinefirst/motionreplay/pkg/session"
	"github.com/offlinefirst/motionreplay/pkg/store"
	"github.com/offlinefirst/motionreplay/pkg/timeline"
)

type playOptions struct {
	loop    bool
	count   int
	journal string
	instant bool
	delay   time.Duration
}

func (rc *RootCommand) newPlayCommand() *cobra.Command {
	var opts playOptions
	cmd := &cobra.Command{
		Use:   "play [recording|latest]",
		Short: "Replay a saved recording",
		Long: `Play loads a recording (a path, a name inside the recordings directory, or
"latest") and replays it through the injector journal. Interrupting the
command stops playback and releases every key still held.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "latest"
			if len(args) == 1 {
				target = args[0]
			}
			return rc.runPlay(cmd, target, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.loop, "loop", false, "Repeat playback")
	cmd.Flags().IntVar(&opts.count, "count", 0, "Number of iterations when looping (0 or less repeats until interrupted)")
	cmd.Flags().StringVar(&opts.journal, "journal", "-", `Injection journal destination ("-" for stdout, "" to discard)`)
	cmd.Flags().BoolVar(&opts.instant, "instant", false, "Replay on a virtual clock without waiting")
	cmd.Flags().DurationVar(&opts.delay, "delay", 0, "Override the start delay")
	return cmd
}

func (rc *RootCommand) runPlay(cmd *cobra.Command, target string, opts playOptions) error {
	app, err := rc.ensureAppContext()
	if err != nil {
		return err
	}
	cfg := app.Config
	if cmd.Flags().Changed("loop") {
		cfg.Playback.Loop = opts.loop
	}
	if cmd.Flags().Changed("count") {
		cfg.Playback.Loop = true
		cfg.Playback.LoopCount = opts.count
	}
	if cmd.Flags().Changed("delay") {
		cfg.Playback.StartDelay = opts.delay
	}
	logger := app.Logger.With("command", "play")

	path, err := resolveRecording(cfg.Paths.RecordingsDir, target)
	if err != nil {
		return err
	}
	snap, err := store.Load(path)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	shutdown, err := setupTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() { _ = shutdown(context.Background()) }()

	clock := timeNow
	var wait func(context.Context, time.Time) error
	if opts.instant {
		vc := events.NewVirtualClock(timeNow())
		clock, wait = vc.Now, vc.WaitUntil
	}

	injector, closeJournal, err := rc.openInjector(opts.journal, clock)
	if err != nil {
		return err
	}
	defer func() { _ = closeJournal() }()

	controller, err := session.New(session.Options{
		Config:    cfg,
		Logger:    logger,
		Clock:     clock,
		Injector:  injector,
		WaitUntil: wait,
	})
	if err != nil {
		return err
	}
	if err := controller.Load(snap); err != nil {
		return err
	}
	policy := replay.LoopPolicy{Enabled: cfg.Playback.Loop, Count: cfg.Playback.LoopCount}
	if err := controller.Play(policy); err != nil {
		return err
	}

	res, err := waitPlayback(ctx, controller)
	if err != nil {
		return fmt.Errorf("playback: %w", err)
	}

	rc.notePlay(ctx, cfg.Paths, path, snap, logger)

	out := rc.stdout
	if opts.journal == "-" {
		out = rc.stderr
	}
	fmt.Fprintf(out, "%s (%s, loop %s)\n", formatResult(res), filepath.Base(path), policy)
	return nil
}

// notePlay records the play in the catalog, indexing the file first when it
// was never catalogued. Catalog failures never fail playback.
func (rc *RootCommand) notePlay(ctx context.Context, paths config.PathsConfig, path string, snap timeline.Snapshot, logger *slog.Logger) {
	ctx = context.WithoutCancel(ctx)
	cat, err := openCatalog(ctx, paths)
	if err != nil {
		logger.Warn("catalog unavailable", "error", err)
		return
	}
	defer cat.Close()

	name := filepath.Base(path)
	if _, err := cat.Get(ctx, name); errors.Is(err, catalog.ErrNotFound) {
		created := timeNow()
		if info, statErr := os.Stat(path); statErr == nil {
			created = info.ModTime()
		}
		if err := cat.Upsert(ctx, catalog.EntryFor(path, created, snap)); err != nil {
			logger.Warn("catalog update failed", "path", path, "error", err)
			return
		}
	}
	if err := cat.RecordPlay(ctx, name, timeNow()); err != nil {
		logger.Warn("catalog play not recorded", "name", name, "error", err)
	}
}

// resolveRecording maps "latest", a file name in dir or a path to a
// recording file.
func resolveRecording(dir, target string) (string, error) {
	if target == "" || target == "latest" {
		entry, err := store.Latest(dir)
		if err != nil {
			return "", err
		}
		return entry.Path, nil
	}
	if _, err := os.Stat(target); err == nil {
		return target, nil
	}
	candidate := filepath.Join(dir, target)
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	}
	return "", fmt.Errorf("recording %q not found", target)
}
