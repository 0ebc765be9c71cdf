package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"newsreel/internal/delivery"
	"newsreel/internal/logging"
)

func newEmailCommand(ctx *commandContext) *cobra.Command {
	var recipient string

	cmd := &cobra.Command{
		Use:   "email <bulletin>",
		Short: "Email a produced bulletin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := openArtifactStore(ctx)
			if err != nil {
				return err
			}
			artifact, err := store.Get(args[0])
			if err != nil {
				return err
			}
			profile := ""
			if artifact.Metadata != nil {
				profile = artifact.Metadata.Profile
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			mailer := delivery.NewMailer(cfg, logger)
			if !mailer.Configured() {
				return fmt.Errorf("email is not configured; set smtp_host, username, and NEWSREEL_SMTP_PASSWORD")
			}

			if err := mailer.Send(cmd.Context(), artifact.Path, profile, recipient); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent %s\n", artifact.Name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&recipient, "to", "t", "", "Recipient address (defaults to email.default_recipient)")
	return cmd
}
