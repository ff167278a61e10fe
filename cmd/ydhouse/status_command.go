package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ydhouse/internal/api"
	"ydhouse/internal/daemonctl"
	"ydhouse/internal/history"
	"ydhouse/internal/status"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show archive and system status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			summary, summaryErr := client.Status(cmd.Context())
			running := summaryErr == nil
			if summaryErr != nil && !api.IsAPIUnavailable(summaryErr) {
				return summaryErr
			}
			if asJSON {
				if !running {
					return wrapAPIError(summaryErr, client.BaseURL())
				}
				return writeJSON(cmd, summary)
			}

			layout, err := ctx.layout()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("System Status", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range daemonctl.BuildSystemChecks(layout, running) {
				fmt.Fprintln(stdout, renderStatusLine(line.Label, statusKindFromSeverity(line.Severity), line.Detail, colorize))
			}
			if !running {
				return nil
			}

			fmt.Fprintln(stdout)
			for _, line := range renderSectionHeader("Archive", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range archiveLines(summary, colorize) {
				fmt.Fprintln(stdout, line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func archiveLines(summary api.StatusResponse, colorize bool) []string {
	lines := []string{
		renderStatusLine("Videos", statusInfo, strconv.Itoa(summary.TotalVideos), colorize),
		renderStatusLine("Channels", statusInfo, strconv.Itoa(summary.TotalChannels), colorize),
		renderStatusLine("Vault size", statusInfo, formatMB(summary.VaultSizeMB), colorize),
	}
	if summary.VectorDBStatus == status.VectorDBActive {
		lines = append(lines, renderStatusLine("Vector DB", statusOK, "Active", colorize))
	} else {
		lines = append(lines, renderStatusLine("Vector DB", statusWarn, "Inactive (run `ydhouse embed`)", colorize))
	}
	if summary.LastDownload != nil {
		lines = append(lines, renderStatusLine("Last download", statusInfo, summary.LastDownload.Local().Format(time.DateTime), colorize))
	} else {
		lines = append(lines, renderStatusLine("Last download", statusInfo, "Never", colorize))
	}
	if summary.FreeSpaceMB != nil {
		kind := statusOK
		if *summary.FreeSpaceMB < 1024 {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine("Free space", kind, formatMB(*summary.FreeSpaceMB), colorize))
	}
	if len(summary.RunningJobs) > 0 {
		lines = append(lines, renderStatusLine("Running jobs", statusInfo, strings.Join(summary.RunningJobs, ", "), colorize))
	} else {
		lines = append(lines, renderStatusLine("Running jobs", statusInfo, "None", colorize))
	}
	return lines
}

func formatMB(mb float64) string {
	if mb >= 1024 {
		return fmt.Sprintf("%.1f GB", mb/1024)
	}
	return fmt.Sprintf("%.1f MB", mb)
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent job runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				runs, err := client.History(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, runs)
				}
				if len(runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Started", "Job", "Status", "Items", "Duration", "Error"},
					historyRows(runs),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func historyRows(runs []history.Run) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		duration := ""
		if run.FinishedAt != nil {
			duration = run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
		}
		rows = append(rows, []string{
			run.StartedAt.Local().Format(time.DateTime),
			run.Tag,
			run.Status,
			fmt.Sprintf("%d/%d", run.TotalCompleted, run.TotalSeen),
			duration,
			firstLine(run.Error),
		})
	}
	return rows
}

func firstLine(value string) string {
	if idx := strings.IndexByte(value, '\n'); idx >= 0 {
		return value[:idx]
	}
	return value
}
