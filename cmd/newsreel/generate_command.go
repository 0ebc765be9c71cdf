package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"newsreel/internal/deps"
	"newsreel/internal/history"
	"newsreel/internal/logging"
	"newsreel/internal/pipeline"
	"newsreel/internal/profiles"
	"newsreel/internal/services"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var profileID string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Fetch the enabled sources and produce a bulletin now",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			if missing := deps.MissingRequired(deps.CheckBinaries(deps.Required(cfg))); len(missing) > 0 {
				return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			profileStore, err := profiles.Open(cfg.Paths.ProfilesPath, logger)
			if err != nil {
				return fmt.Errorf("open profile store: %w", err)
			}
			if profileID != "" {
				if err := profileStore.Switch(profiles.NormalizeID(profileID)); err != nil {
					return fmt.Errorf("switch profile: %w", err)
				}
			}

			runStore, err := history.Open(cfg)
			if err != nil {
				return fmt.Errorf("open run history: %w", err)
			}
			defer runStore.Close()

			orch, err := pipeline.New(pipeline.Options{
				Config:   cfg,
				Profiles: profileStore,
				History:  runStore,
				Logger:   logger,
			})
			if err != nil {
				return err
			}

			outcome, err := orch.Generate(cmd.Context())
			out := cmd.OutOrStdout()
			if len(outcome.Outcomes) > 0 {
				fmt.Fprintln(out, renderSourceOutcomes(outcome.Outcomes))
			}
			if err != nil {
				descriptor := services.Describe(err)
				return fmt.Errorf("run %s failed (%s): %s", outcome.RunID, descriptor.Code, descriptor.Message)
			}

			fmt.Fprintf(out, "Bulletin ready: %s (%s, run %s)\n",
				outcome.Artifact, formatDuration(outcome.Duration), outcome.RunID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&profileID, "profile", "p", "", "Switch to this profile before generating")
	return cmd
}

func renderSourceOutcomes(outcomes []history.SourceOutcome) string {
	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		rows = append(rows, []string{o.Source, o.Outcome, o.Detail})
	}
	return renderTable([]column{{header: "Source"}, {header: "Outcome"}, {header: "Detail"}}, rows)
}
