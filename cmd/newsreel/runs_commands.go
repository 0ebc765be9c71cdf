package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"newsreel/internal/history"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent generation runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunsList(ctx, cmd, limit)
		},
	}
	runsCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")

	runsCmd.AddCommand(&cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the per-source outcomes of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunsShow(ctx, cmd, args[0])
		},
	})

	return runsCmd
}

func openHistoryStore(ctx *commandContext) (*history.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	return history.Open(cfg)
}

func runRunsList(ctx *commandContext, cmd *cobra.Command, limit int) error {
	store, err := openHistoryStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet.")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		duration := ""
		if run.DurationSeconds > 0 {
			duration = formatDuration(time.Duration(run.DurationSeconds * float64(time.Second)))
		}
		rows = append(rows, []string{
			run.ID,
			run.Profile,
			run.Status,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			duration,
			run.Artifact,
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]column{
		{header: "Run"},
		{header: "Profile"},
		{header: "Status"},
		{header: "Started"},
		{header: "Length", alignRight: true},
		{header: "Bulletin"},
	}, rows))
	return nil
}

func runRunsShow(ctx *commandContext, cmd *cobra.Command, id string) error {
	store, err := openHistoryStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.Get(cmd.Context(), id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s (%s) status=%s\n", run.ID, run.Profile, run.Status)
	if run.ErrorMessage != "" {
		fmt.Fprintf(out, "Error: %s\n", run.ErrorMessage)
	}
	if run.Artifact != "" {
		fmt.Fprintf(out, "Bulletin: %s\n", run.Artifact)
	}
	if len(run.Outcomes) > 0 {
		fmt.Fprintln(out, renderSourceOutcomes(run.Outcomes))
	}
	return nil
}
