package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/offlinefirst/motionreplay/pkg/catalog"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212"))

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

func (rc *RootCommand) newListCommand() *cobra.Command {
	var noSync bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved recordings",
		Long:  `List the recordings in the recordings directory, newest first, with their catalog statistics.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := rc.ensureAppContext()
			if err != nil {
				return err
			}
			cfg := app.Config
			ctx := cmd.Context()

			cat, err := openCatalog(ctx, cfg.Paths)
			if err != nil {
				return err
			}
			defer cat.Close()

			if !noSync {
				res, err := cat.Sync(ctx, cfg.Paths.RecordingsDir)
				if err != nil {
					return fmt.Errorf("sync catalog: %w", err)
				}
				for _, name := range res.Failed {
					app.Logger.Warn("recording could not be indexed", "name", name)
				}
			}

			entries, err := cat.List(ctx)
			if err != nil {
				return err
			}
			rc.displayEntries(entries)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noSync, "no-sync", false, "Skip reconciling the catalog with the recordings directory")
	return cmd
}

func (rc *RootCommand) displayEntries(entries []catalog.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(rc.stdout, headerStyle.Render("No recordings found"))
		return
	}
	fmt.Fprintln(rc.stdout, headerStyle.Render(fmt.Sprintf("Recordings (%s)", countStyle.Render(fmt.Sprint(len(entries))))))
	fmt.Fprintln(rc.stdout)

	w := tabwriter.NewWriter(rc.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tEVENTS\tDELTAS\tRAMP\tKEYS\tDURATION\tPLAYS\tLAST PLAYED")
	for _, e := range entries {
		last := "-"
		if e.LastPlayedAt != nil {
			last = e.LastPlayedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\t%d\t%s\n",
			nameStyle.Render(e.Name),
			e.Events,
			e.Deltas,
			e.Synthetic,
			e.Keys,
			e.Duration.Round(time.Millisecond),
			e.Plays,
			dateStyle.Render(last),
		)
	}
	_ = w.Flush()
}
