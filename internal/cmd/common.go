package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/offlinefirst/motionreplay/internal/buildinfo"
	"github.com/offlinefirst/motionreplay/pkg/catalog"
	"github.com/offlinefirst/motionreplay/pkg/config"
	"github.com/offlinefirst/motionreplay/pkg/inject"
	"github.com/offlinefirst/motionreplay/pkg/replay"
	"github.com/offlinefirst/motionreplay/pkg/session"
	"github.com/offlinefirst/motionreplay/pkg/telemetry"
)

// errSkipIdle makes the motion worker poll without emitting idle ticks.
var errSkipIdle = errors.New("idle ticks disabled")

// skipIdle replaces the worker's sleeper when capture time is virtual: real
// wall-clock silence says nothing about gaps in the script.
func skipIdle(ctx context.Context, _ time.Duration) error {
	timer := time.NewTimer(time.Millisecond)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errSkipIdle
	}
}

func setupTelemetry(ctx context.Context, cfg config.TelemetryConfig) (func(context.Context) error, error) {
	shutdown, err := telemetry.Setup(ctx, telemetry.Options{
		Enabled:     cfg.Enabled,
		Endpoint:    cfg.Endpoint,
		ServiceName: cfg.ServiceName,
		Version:     buildinfo.Version(),
		SampleRatio: cfg.SampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("setup telemetry: %w", err)
	}
	return shutdown, nil
}

func openCatalog(ctx context.Context, cfg config.PathsConfig) (*catalog.Catalog, error) {
	if dir := filepath.Dir(cfg.CatalogPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create catalog directory: %w", err)
		}
	}
	return catalog.Open(ctx, cfg.CatalogPath)
}

// openInjector resolves a --journal destination: "" discards, "-" writes to
// stdout, anything else is a file path.
func (rc *RootCommand) openInjector(dest string, clock func() time.Time) (replay.Injector, func() error, error) {
	noop := func() error { return nil }
	var w io.Writer
	closeFile := noop
	switch dest {
	case "":
		return inject.Discard{}, noop, nil
	case "-":
		w = rc.stdout
	default:
		if dir := filepath.Dir(dest); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("create journal directory: %w", err)
			}
		}
		f, err := os.Create(dest)
		if err != nil {
			return nil, nil, fmt.Errorf("create journal: %w", err)
		}
		w = f
		closeFile = f.Close
	}
	journal, err := inject.NewJournal(inject.JournalOptions{Writer: w, Clock: clock})
	if err != nil {
		_ = closeFile()
		return nil, nil, err
	}
	return journal, func() error {
		_ = journal.Close()
		return closeFile()
	}, nil
}

// waitPlayback blocks until the controller's playback ends. Cancelling ctx
// triggers an emergency stop so held keys are released before returning.
func waitPlayback(ctx context.Context, c *session.Controller) (replay.Result, error) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.EmergencyStop()
		case <-done:
		}
	}()
	return c.Wait()
}

func formatResult(res replay.Result) string {
	state := "completed"
	if res.Cancelled {
		state = "cancelled"
	}
	return fmt.Sprintf("playback %s: iterations=%d dispatched=%d failed=%d skipped=%d released=%d",
		state, res.Iterations, res.Dispatched, res.Failed, res.Skipped, res.Released)
}
