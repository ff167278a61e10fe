package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"ydhouse/internal/api"
	"ydhouse/internal/events"
	"ydhouse/internal/jobs"
)

var errJobFinished = errors.New("job finished")

type jobFollowFlags struct {
	wait   bool
	follow bool
}

func (f *jobFollowFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.wait, "wait", false, "Block until the job finishes")
	cmd.Flags().BoolVarP(&f.follow, "follow", "f", false, "Stream job output until it finishes")
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var req api.DownloadRequest
	var ingestURL string
	var flags jobFollowFlags

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download new videos from enabled channels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				var (
					job api.JobResponse
					err error
				)
				if strings.TrimSpace(ingestURL) != "" {
					job, err = client.StartIngest(cmd.Context(), ingestURL)
				} else {
					job, err = client.StartDownload(cmd.Context(), req)
				}
				if err != nil {
					return err
				}
				return reportJob(cmd, client, job, flags)
			})
		},
	}
	cmd.Flags().StringVarP(&req.Quality, "quality", "q", "", "Video quality (e.g. 720p, 1080p, best)")
	cmd.Flags().BoolVar(&req.FullScan, "full-scan", false, "Re-scan every channel upload instead of new ones only")
	cmd.Flags().StringVar(&ingestURL, "ingest", "", "Ingest a single video or playlist URL instead of the channel batch")
	flags.register(cmd)
	return cmd
}

func newEmbedCommand(ctx *commandContext) *cobra.Command {
	var list bool
	var flags jobFollowFlags

	cmd := &cobra.Command{
		Use:   "embed [channel...]",
		Short: "Build vector embeddings for archived channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				if list {
					names, err := client.EmbeddableChannels(cmd.Context())
					if err != nil {
						return err
					}
					for _, name := range names {
						fmt.Fprintln(cmd.OutOrStdout(), name)
					}
					return nil
				}
				job, err := client.StartEmbedding(cmd.Context(), args)
				if err != nil {
					return err
				}
				return reportJob(cmd, client, job, flags)
			})
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "List channels that can be embedded")
	flags.register(cmd)
	return cmd
}

func newIntegrityCommand(ctx *commandContext) *cobra.Command {
	var flags jobFollowFlags
	cmd := &cobra.Command{
		Use:   "integrity",
		Short: "Check vault and index consistency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				job, err := client.StartIntegrityCheck(cmd.Context())
				if err != nil {
					return err
				}
				return reportJob(cmd, client, job, flags)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:       "cancel <download|embedding|conversion>",
		Short:     "Cancel a running job",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{jobs.TagDownload, jobs.TagEmbedding, jobs.TagConversion},
		RunE: func(cmd *cobra.Command, args []string) error {
			tag := strings.ToLower(strings.TrimSpace(args[0]))
			return ctx.withClient(func(client *api.Client) error {
				var err error
				switch tag {
				case jobs.TagDownload:
					err = client.CancelDownload(cmd.Context())
				case jobs.TagEmbedding, "embed":
					err = client.CancelEmbedding(cmd.Context())
				case jobs.TagConversion, "convert":
					err = client.CancelConversion(cmd.Context())
				default:
					return fmt.Errorf("unknown job %q (expected download, embedding or conversion)", args[0])
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancelled %s\n", tag)
				return nil
			})
		},
	}
}

// reportJob prints the started job and, when requested, waits for or
// streams it to completion.
func reportJob(cmd *cobra.Command, client *api.Client, job api.JobResponse, flags jobFollowFlags) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Started %s (run %s)\n", job.Tag, job.RunID)
	if !flags.wait && !flags.follow {
		return nil
	}
	if flags.follow {
		colorize := shouldColorize(out)
		err := client.Events(cmd.Context(), job.Topic, true, func(evt api.Event) error {
			if evt.RunID != "" && evt.RunID != job.RunID {
				return nil
			}
			printEvent(out, evt, colorize)
			if evt.Status.Terminal() {
				return errJobFinished
			}
			return nil
		})
		if err != nil && !errors.Is(err, errJobFinished) {
			return err
		}
	}
	result, err := client.Wait(cmd.Context(), job.Tag)
	if err != nil {
		return err
	}
	return summarizeResult(out, result)
}

func printEvent(out io.Writer, evt api.Event, colorize bool) {
	if evt.LogMessage == "" && !evt.Status.Terminal() {
		return
	}
	line := evt.LogMessage
	if evt.Progress > 0 {
		line = fmt.Sprintf("[%5.1f%%] %s", evt.Progress, line)
	}
	if colorize {
		if color := statusKindColor(statusKindFromEvent(evt.Status)); color != "" && evt.Status != events.StatusRunning {
			line = color + line + ansiReset
		}
	}
	fmt.Fprintln(out, line)
}

func summarizeResult(out io.Writer, result api.JobResult) error {
	switch result.Status {
	case events.StatusOK:
		fmt.Fprintf(out, "%s finished: %d/%d items\n", result.Tag, result.TotalCompleted, result.TotalSeen)
		return nil
	case events.StatusCancelled:
		fmt.Fprintf(out, "%s cancelled\n", result.Tag)
		return nil
	default:
		if result.Error != "" {
			return fmt.Errorf("%s failed: %s", result.Tag, result.Error)
		}
		return fmt.Errorf("%s failed with exit code %d", result.Tag, result.ExitCode)
	}
}
