package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"ydhouse/internal/api"
	"ydhouse/internal/prompts"
)

func newPromptsCommand(ctx *commandContext) *cobra.Command {
	promptsCmd := &cobra.Command{
		Use:   "prompts",
		Short: "Manage per-channel answering prompts",
	}

	showCmd := &cobra.Command{
		Use:   "show <channel>",
		Short: "Print the active prompt of a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Prompt(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd, resp.Prompt)
			})
		},
	}

	var savePath string
	saveCmd := &cobra.Command{
		Use:   "save <channel>",
		Short: "Store a JSON prompt as the channel's next active version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readPromptDocument(cmd, savePath)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				version, err := client.SavePrompt(cmd.Context(), args[0], doc)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s prompt v%d\n", args[0], version)
				return nil
			})
		},
	}
	saveCmd.Flags().StringVarP(&savePath, "file", "f", "-", "JSON prompt file (- reads stdin)")

	var versionsJSON bool
	versionsCmd := &cobra.Command{
		Use:   "versions <channel>",
		Short: "List stored prompt versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				versions, err := client.PromptVersions(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if versionsJSON {
					return writeJSON(cmd, versions)
				}
				if len(versions) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No prompts for %s\n", args[0])
					return nil
				}
				rows := make([][]string, 0, len(versions))
				for _, v := range versions {
					rows = append(rows, []string{
						"v" + strconv.Itoa(v.Version),
						yesNo(v.Active),
						yesNo(v.AutoGenerated),
						dateOnly(v.CreatedAt),
						v.Persona,
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Version", "Active", "Generated", "Created", "Persona"}, rows, nil))
				return nil
			})
		},
	}
	versionsCmd.Flags().BoolVar(&versionsJSON, "json", false, "Output as JSON")

	activateCmd := &cobra.Command{
		Use:   "activate <channel> <version>",
		Short: "Make a stored version active",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseVersion(args[1])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				if err := client.ActivatePrompt(cmd.Context(), args[0], version); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s now uses prompt v%d\n", args[0], version)
				return nil
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <channel> <version>",
		Short: "Delete a stored version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseVersion(args[1])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				if err := client.DeletePrompt(cmd.Context(), args[0], version); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s prompt v%d\n", args[0], version)
				return nil
			})
		},
	}

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show prompt coverage across vault channels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				report, err := client.PromptStatus(cmd.Context())
				if err != nil {
					return err
				}
				if statusJSON {
					return writeJSON(cmd, report)
				}
				renderPromptStatus(cmd.OutOrStdout(), report)
				return nil
			})
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")

	var force bool
	generateCmd := &cobra.Command{
		Use:   "generate <channel>",
		Short: "Generate a prompt from the channel's indexed captions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				version, err := client.GeneratePrompt(cmd.Context(), args[0], force)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s prompt v%d is active\n", args[0], version)
				return nil
			})
		},
	}
	generateCmd.Flags().BoolVarP(&force, "force", "f", false, "Generate a new version even if one was generated before")

	analyzeCmd := &cobra.Command{
		Use:   "analyze <channel>",
		Short: "Print the worker's analysis of a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				out, err := client.AnalyzeChannel(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printWorkerOutput(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}

	var skipExisting bool
	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Generate prompts for every analyzable channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				out, err := client.BatchGeneratePrompts(cmd.Context(), skipExisting)
				if err != nil {
					return err
				}
				printWorkerOutput(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
	batchCmd.Flags().BoolVarP(&skipExisting, "skip-existing", "s", false, "Skip channels that already have a prompt")

	promptsCmd.AddCommand(showCmd, saveCmd, versionsCmd, activateCmd, deleteCmd, statusCmd, generateCmd, analyzeCmd, batchCmd)
	return promptsCmd
}

func readPromptDocument(cmd *cobra.Command, path string) (prompts.Document, error) {
	var data []byte
	var err error
	if path == "" || path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read prompt: %w", err)
	}
	var doc prompts.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("prompt must be a JSON object: %w", err)
	}
	return doc, nil
}

func parseVersion(raw string) (int, error) {
	version, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(raw), "v"))
	if err != nil || version < 1 {
		return 0, fmt.Errorf("invalid version %q", raw)
	}
	return version, nil
}

func renderPromptStatus(w io.Writer, report api.PromptStatusResponse) {
	fmt.Fprintf(w, "Analyzable channels: %d\n", report.Available)
	fmt.Fprintf(w, "Channels with prompts: %d\n", len(report.WithPrompts))
	if len(report.WithPrompts) > 0 {
		rows := make([][]string, 0, len(report.WithPrompts))
		for _, sum := range report.WithPrompts {
			rows = append(rows, []string{
				sum.Name,
				fmt.Sprintf("v%d/%d", sum.ActiveVersion, sum.TotalVersions),
				yesNo(sum.AutoGenerated),
				dateOnly(sum.LastModified),
				strings.Join(sum.Expertise, ", "),
			})
		}
		fmt.Fprint(w, renderTable([]string{"Channel", "Version", "Generated", "Modified", "Expertise"}, rows, nil))
	}
	if len(report.Missing) > 0 {
		fmt.Fprintf(w, "Missing prompts: %s\n", strings.Join(report.Missing, ", "))
	}
}

func printWorkerOutput(w io.Writer, out string) {
	fmt.Fprint(w, out)
	if !strings.HasSuffix(out, "\n") {
		fmt.Fprintln(w)
	}
}

func dateOnly(stamp string) string {
	if len(stamp) >= 10 {
		return stamp[:10]
	}
	return stamp
}
