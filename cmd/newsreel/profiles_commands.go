package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"newsreel/internal/logging"
	"newsreel/internal/profiles"
)

func newProfilesCommand(ctx *commandContext) *cobra.Command {
	profilesCmd := &cobra.Command{
		Use:   "profiles",
		Short: "Manage source profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfilesList(ctx, cmd)
		},
	}

	profilesCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List profiles and their sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfilesList(ctx, cmd)
		},
	})
	profilesCmd.AddCommand(newProfilesCreateCommand(ctx))
	profilesCmd.AddCommand(newProfilesDeleteCommand(ctx))
	profilesCmd.AddCommand(newProfilesSwitchCommand(ctx))
	profilesCmd.AddCommand(newProfilesEnableCommand(ctx, true))
	profilesCmd.AddCommand(newProfilesEnableCommand(ctx, false))
	profilesCmd.AddCommand(newProfilesAddSourceCommand(ctx))
	profilesCmd.AddCommand(newProfilesRemoveSourceCommand(ctx))

	return profilesCmd
}

func openProfileStore(ctx *commandContext) (*profiles.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := profiles.Open(cfg.Paths.ProfilesPath, logging.NewNop())
	if err != nil {
		return nil, fmt.Errorf("open profile store: %w", err)
	}
	return store, nil
}

// displayName falls back to a titled form of the identifier when a profile
// was stored without an explicit name.
func displayName(id string, profile profiles.Profile) string {
	if strings.TrimSpace(profile.Name) != "" {
		return profile.Name
	}
	return cases.Title(language.Und).String(strings.ReplaceAll(id, "_", " "))
}

func runProfilesList(ctx *commandContext, cmd *cobra.Command) error {
	store, err := openProfileStore(ctx)
	if err != nil {
		return err
	}
	doc := store.Document()

	ids := make([]string, 0, len(doc.Profiles))
	for id := range doc.Profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		profile := doc.Profiles[id]
		enabled := 0
		for _, source := range profile.Sources {
			if source.Enabled {
				enabled++
			}
		}
		active := ""
		if id == doc.ActiveProfile {
			active = "*"
		}
		rows = append(rows, []string{
			active,
			id,
			displayName(id, profile),
			fmt.Sprintf("%d/%d", enabled, len(profile.Sources)),
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderTable([]column{
		{header: ""},
		{header: "ID"},
		{header: "Name"},
		{header: "Enabled", alignRight: true},
	}, rows))

	activeProfile, ok := doc.Profiles[doc.ActiveProfile]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(activeProfile.Sources))
	for name := range activeProfile.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	sourceRows := make([][]string, 0, len(names))
	for _, name := range names {
		source := activeProfile.Sources[name]
		kind := "stock"
		if source.Custom {
			kind = "custom"
		}
		sourceRows = append(sourceRows, []string{name, yesNo(source.Enabled), kind, source.URL})
	}
	fmt.Fprintf(out, "\nSources in %q:\n", doc.ActiveProfile)
	fmt.Fprintln(out, renderTable([]column{
		{header: "Source"},
		{header: "Enabled"},
		{header: "Kind"},
		{header: "URL"},
	}, sourceRows))
	return nil
}

func newProfilesCreateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a profile seeded with the stock sources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openProfileStore(ctx)
			if err != nil {
				return err
			}
			id, err := store.Create(profiles.NormalizeID(args[0]), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created profile %q\n", id)
			return nil
		},
	}
}

func newProfilesDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openProfileStore(ctx)
			if err != nil {
				return err
			}
			id := profiles.NormalizeID(args[0])
			if err := store.Delete(id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted profile %q\n", id)
			return nil
		},
	}
}

func newProfilesSwitchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "switch <id>",
		Short: "Make a profile the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openProfileStore(ctx)
			if err != nil {
				return err
			}
			id := profiles.NormalizeID(args[0])
			if err := store.Switch(id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Active profile is now %q\n", id)
			return nil
		},
	}
}

func newProfilesEnableCommand(ctx *commandContext, enable bool) *cobra.Command {
	use, short := "enable <profile> <source>", "Enable a source in a profile"
	if !enable {
		use, short = "disable <profile> <source>", "Disable a source in a profile"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openProfileStore(ctx)
			if err != nil {
				return err
			}
			id := profiles.NormalizeID(args[0])
			if err := store.SetSourceEnabled(id, args[1], enable); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Source %q in profile %q: enabled=%s\n", args[1], id, yesNo(enable))
			return nil
		},
	}
}

func newProfilesAddSourceCommand(ctx *commandContext) *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "add-source <profile> <name> <url>",
		Short: "Add a custom RSS source to a profile",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openProfileStore(ctx)
			if err != nil {
				return err
			}
			id := profiles.NormalizeID(args[0])
			if err := store.AddCustomSource(id, args[1], args[2], description); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added source %q to profile %q\n", args[1], id)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "Source description")
	return cmd
}

func newProfilesRemoveSourceCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-source <profile> <source>",
		Short: "Remove a custom source from a profile",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openProfileStore(ctx)
			if err != nil {
				return err
			}
			id := profiles.NormalizeID(args[0])
			if err := store.RemoveSource(id, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed source %q from profile %q\n", args[1], id)
			return nil
		},
	}
}
