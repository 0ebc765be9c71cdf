package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"newsreel/internal/artifacts"
	"newsreel/internal/logging"
)

func newBulletinsCommand(ctx *commandContext) *cobra.Command {
	bulletinsCmd := &cobra.Command{
		Use:   "bulletins",
		Short: "Manage produced bulletins",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBulletinsList(ctx, cmd)
		},
	}

	bulletinsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List produced bulletins, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBulletinsList(ctx, cmd)
		},
	})
	bulletinsCmd.AddCommand(newBulletinsDeleteCommand(ctx))
	bulletinsCmd.AddCommand(newBulletinsPruneCommand(ctx))

	return bulletinsCmd
}

func openArtifactStore(ctx *commandContext) (*artifacts.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	return artifacts.NewStore(cfg.Paths.OutputDir, logging.NewNop()), nil
}

func runBulletinsList(ctx *commandContext, cmd *cobra.Command) error {
	store, err := openArtifactStore(ctx)
	if err != nil {
		return err
	}
	listing, err := store.List()
	if err != nil {
		return err
	}
	if len(listing) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No bulletins yet. Produce one with `newsreel generate`.")
		return nil
	}

	rows := make([][]string, 0, len(listing))
	for _, artifact := range listing {
		profile, sources := "", ""
		if artifact.Metadata != nil {
			profile = artifact.Metadata.Profile
			sources = strings.Join(artifact.Metadata.Sources, ", ")
		}
		rows = append(rows, []string{
			artifact.Name,
			formatSize(artifact.Size),
			artifact.ModTime.Format("2006-01-02 15:04"),
			profile,
			sources,
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]column{
		{header: "Bulletin"},
		{header: "Size", alignRight: true},
		{header: "Produced"},
		{header: "Profile"},
		{header: "Sources"},
	}, rows))
	return nil
}

func newBulletinsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a bulletin and its metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openArtifactStore(ctx)
			if err != nil {
				return err
			}
			if err := store.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func newBulletinsPruneCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Apply the configured retention rules now",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := openArtifactStore(ctx)
			if err != nil {
				return err
			}
			result, err := store.Prune(cfg.Retention.KeepCount, cfg.Retention.MaxAgeDays)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Kept %d bulletins, removed %d\n", len(result.Kept), len(result.Removed))
			for _, name := range result.Removed {
				fmt.Fprintf(cmd.OutOrStdout(), "  removed %s\n", name)
			}
			return nil
		},
	}
}
