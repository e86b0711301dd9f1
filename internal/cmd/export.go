package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/offlinefirst/motionreplay/pkg/export"
	"github.com/offlinefirst/motionreplay/pkg/store"
)

func (rc *RootCommand) newExportCommand() *cobra.Command {
	var (
		format string
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "export [recording|latest]",
		Short: "Export a recording as jsonl, json or yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := rc.ensureAppContext()
			if err != nil {
				return err
			}
			cfg := app.Config

			exporter, err := export.NewExporter(format)
			if err != nil {
				return err
			}
			target := "latest"
			if len(args) == 1 {
				target = args[0]
			}
			path, err := resolveRecording(cfg.Paths.RecordingsDir, target)
			if err != nil {
				return err
			}
			snap, err := store.Load(path)
			if err != nil {
				return err
			}
			dir := outDir
			if dir == "" {
				dir = cfg.Paths.ExportDir
			}
			written, err := export.ToFile(exporter, export.Recording{Name: filepath.Base(path), Snapshot: snap}, dir)
			if err != nil {
				return err
			}
			app.Logger.Info("recording exported", "source", path, "path", written, "format", format)
			fmt.Fprintf(rc.stdout, "Exported %d events to %s\n", snap.Len(), written)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "jsonl", "Export format (jsonl, json, yaml)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (default: paths.export_dir)")
	return cmd
}
