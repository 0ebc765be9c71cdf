package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"newsreel/internal/daemon"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			client := http.Client{Timeout: 5 * time.Second}
			resp, err := client.Get("http://" + cfg.Paths.APIBind + "/api/status")
			if err != nil {
				return fmt.Errorf("daemon is not reachable at %s; start it with `newsreel serve`", cfg.Paths.APIBind)
			}
			defer resp.Body.Close()

			var status daemon.Status
			if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
				return fmt.Errorf("decode status: %w", err)
			}

			rows := [][]string{
				{"Running", yesNo(status.Running)},
				{"PID", strconv.Itoa(status.PID)},
				{"State", status.State},
				{"Active profile", status.ActiveProfile},
				{"History DB", status.HistoryDBPath},
				{"Lock file", status.LockFilePath},
			}
			if status.RunID != "" {
				rows = append(rows, []string{"Current run", status.RunID})
			}
			for _, dep := range status.Dependencies {
				state := "available"
				if !dep.Available {
					state = "missing"
					if dep.Detail != "" {
						state = dep.Detail
					}
				}
				rows = append(rows, []string{dep.Name, state})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]column{{header: "Field"}, {header: "Value"}}, rows))
			return nil
		},
	}
}
