package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"ydhouse/internal/api"
	"ydhouse/internal/vault"
)

func newVideosCommand(ctx *commandContext) *cobra.Command {
	var grouped bool
	var asJSON bool
	var channel string

	cmd := &cobra.Command{
		Use:   "videos",
		Short: "List archived videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				if grouped {
					groups, err := client.GroupedVideos(cmd.Context())
					if err != nil {
						return err
					}
					if asJSON {
						return writeJSON(cmd, groups)
					}
					return printGroups(cmd, groups)
				}

				videos, err := client.Videos(cmd.Context())
				if err != nil {
					return err
				}
				if channel != "" {
					videos = filterByChannel(videos, channel)
				}
				if asJSON {
					return writeJSON(cmd, videos)
				}
				if len(videos) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No videos found")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Channel", "Title", "Uploaded", "Duration", "Path"},
					videoRows(videos),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&grouped, "grouped", false, "Group videos by channel")
	cmd.Flags().StringVar(&channel, "channel", "", "Only list videos of this channel")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func videoRows(videos []vault.Record) [][]string {
	rows := make([][]string, 0, len(videos))
	for _, v := range videos {
		rows = append(rows, []string{v.Channel, v.Title, v.UploadDate, v.Duration, v.VideoPath})
	}
	return rows
}

func filterByChannel(videos []vault.Record, channel string) []vault.Record {
	out := make([]vault.Record, 0, len(videos))
	for _, v := range videos {
		if v.Channel == channel {
			out = append(out, v)
		}
	}
	return out
}

func printGroups(cmd *cobra.Command, groups []vault.ChannelGroup) error {
	if len(groups) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No videos found")
		return nil
	}
	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, []string{g.Channel, strconv.Itoa(len(g.Videos))})
	}
	fmt.Fprint(cmd.OutOrStdout(), renderTable(
		[]string{"Channel", "Videos"},
		rows,
		[]columnAlignment{alignLeft, alignRight},
	))
	return nil
}
