package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ydhouse/internal/api"
	"ydhouse/internal/logging"
	"ydhouse/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var query api.LogQuery
	var lines int
	var fromFile bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show daemon logs",
		Long: "Show daemon logs from the API. When the daemon is not running, or with\n" +
			"--file, the log file under paths.log_dir is read instead.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fromFile {
				return showLogFile(cmd, ctx, lines, query.Follow)
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			err = streamAPILogs(cmd, client, query, lines)
			if api.IsAPIUnavailable(err) {
				fmt.Fprintln(cmd.ErrOrStderr(), "daemon not running; reading log file")
				return showLogFile(cmd, ctx, lines, query.Follow)
			}
			return wrapAPIError(err, client.BaseURL())
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of recent lines to show")
	cmd.Flags().BoolVarP(&query.Follow, "follow", "f", false, "Keep streaming new lines")
	cmd.Flags().StringVar(&query.Component, "component", "", "Only show this component")
	cmd.Flags().StringVar(&query.JobTag, "job", "", "Only show lines tagged with this job")
	cmd.Flags().BoolVar(&fromFile, "file", false, "Read the log file instead of the daemon API")
	return cmd
}

func streamAPILogs(cmd *cobra.Command, client *api.Client, query api.LogQuery, lines int) error {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	first := query
	first.Follow = false
	first.Tail = true
	first.Limit = lines
	resp, err := client.Logs(cmd.Context(), first)
	if err != nil {
		return err
	}
	printLogEvents(out, resp.Events, colorize)
	if !query.Follow {
		return nil
	}

	next := resp.Next
	for {
		page := query
		page.Since = next
		resp, err := client.Logs(cmd.Context(), page)
		if err != nil {
			if cmd.Context().Err() != nil {
				return nil
			}
			return err
		}
		printLogEvents(out, resp.Events, colorize)
		if resp.Next > next {
			next = resp.Next
		}
	}
}

func showLogFile(cmd *cobra.Command, ctx *commandContext, lines int, follow bool) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	path := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
	out := cmd.OutOrStdout()

	tail, offset, err := logs.Last(path, lines)
	if err != nil {
		return err
	}
	for _, line := range tail {
		fmt.Fprintln(out, line)
	}
	if !follow {
		return nil
	}
	err = logs.Follow(cmd.Context(), path, offset, 0, func(line string) {
		fmt.Fprintln(out, line)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printLogEvents(out io.Writer, evts []logging.LogEvent, colorize bool) {
	for _, evt := range evts {
		fmt.Fprintln(out, formatLogEvent(evt, colorize))
	}
}

func formatLogEvent(evt logging.LogEvent, colorize bool) string {
	var b strings.Builder
	b.WriteString(evt.Timestamp.Local().Format(time.TimeOnly))
	b.WriteByte(' ')
	level := strings.ToUpper(evt.Level)
	if colorize {
		switch level {
		case "ERROR":
			level = ansiRed + level + ansiReset
		case "WARN":
			level = ansiYellow + level + ansiReset
		}
	}
	b.WriteString(fmt.Sprintf("%-5s", level))
	if evt.Component != "" {
		b.WriteByte(' ')
		b.WriteString(evt.Component)
		b.WriteByte(':')
	}
	b.WriteByte(' ')
	b.WriteString(evt.Message)

	if len(evt.Fields) > 0 {
		keys := make([]string, 0, len(evt.Fields))
		for k := range evt.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%s", k, evt.Fields[k])
		}
	}
	return b.String()
}
