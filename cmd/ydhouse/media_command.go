package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"ydhouse/internal/api"
)

func newMediaCommand(ctx *commandContext) *cobra.Command {
	mediaCmd := &cobra.Command{
		Use:   "media",
		Short: "Control the loopback media server",
	}

	mediaCmd.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "Start the media server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				status, err := client.StartMedia(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Media server listening on port %d\n", status.Port)
				return nil
			})
		},
	})

	mediaCmd.AddCommand(&cobra.Command{
		Use:   "stop",
		Short: "Stop the media server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				if err := client.StopMedia(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Media server stopped")
				return nil
			})
		},
	})

	mediaCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show media server state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				status, err := client.MediaStatus(cmd.Context())
				if err != nil {
					return err
				}
				colorize := shouldColorize(cmd.OutOrStdout())
				if status.Running {
					fmt.Fprintln(cmd.OutOrStdout(), renderStatusLine("Media server", statusOK, "Port "+strconv.Itoa(status.Port), colorize))
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), renderStatusLine("Media server", statusInfo, "Stopped", colorize))
				}
				return nil
			})
		},
	})

	mediaCmd.AddCommand(&cobra.Command{
		Use:   "url <video_path>",
		Short: "Print the playable URL of a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				url, err := client.MediaURL(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), url)
				return nil
			})
		},
	})

	return mediaCmd
}

func newOpenCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "open <video_path>",
		Short: "Open a video in the system player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				return client.Open(cmd.Context(), args[0])
			})
		},
	}
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var req api.ConvertRequest
	var noBackup bool
	var showStatus bool
	var cancelRun bool
	var flags jobFollowFlags

	cmd := &cobra.Command{
		Use:   "convert [video_path]",
		Short: "Transcode a video with ffmpeg",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				switch {
				case showStatus:
					running, err := client.ConversionStatus(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Conversion running: %s\n", yesNo(running))
					return nil
				case cancelRun:
					if err := client.CancelConversion(cmd.Context()); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled conversion")
					return nil
				}
				if len(args) == 0 {
					return fmt.Errorf("a video path is required")
				}
				req.Path = args[0]
				req.Backup = !noBackup
				job, err := client.Convert(cmd.Context(), req)
				if err != nil {
					return err
				}
				return reportJob(cmd, client, job, flags)
			})
		},
	}
	cmd.Flags().StringVar(&req.Quality, "quality", "", "Target quality (default 720p)")
	cmd.Flags().StringVar(&req.Codec, "codec", "", "Target codec (default h264)")
	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "Replace the original without keeping a backup")
	cmd.Flags().BoolVar(&showStatus, "status", false, "Report whether a conversion is running")
	cmd.Flags().BoolVar(&cancelRun, "cancel", false, "Cancel the running conversion")
	flags.register(cmd)
	return cmd
}
