package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ydhouse/internal/api"
)

func newChannelsCommand(ctx *commandContext) *cobra.Command {
	channelsCmd := &cobra.Command{
		Use:   "channels",
		Short: "Manage the channel list",
	}

	var asJSON bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List channels in file order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				entries, err := client.Channels(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, entries)
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No channels configured")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					rows = append(rows, []string{entry.Name, entry.URL, yesNo(entry.Enabled)})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Name", "URL", "Enabled"}, rows, nil))
				return nil
			})
		},
	}
	listCmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	addCmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Append a channel URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				if err := client.AddChannel(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", args[0])
				return nil
			})
		},
	}

	removeCmd := &cobra.Command{
		Use:     "remove <url>",
		Aliases: []string{"rm"},
		Short:   "Remove a channel URL",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				if err := client.RemoveChannel(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
				return nil
			})
		},
	}

	toggleCmd := &cobra.Command{
		Use:   "toggle <url>",
		Short: "Enable or disable a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.ToggleChannel(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				state := "disabled"
				if resp.Enabled {
					state = "enabled"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", resp.URL, state)
				return nil
			})
		},
	}

	channelsCmd.AddCommand(listCmd, addCmd, removeCmd, toggleCmd)
	return channelsCmd
}
