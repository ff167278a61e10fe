package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"ydhouse/internal/api"
	"ydhouse/internal/events"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query...>",
		Short: "Vector search across embedded captions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				output, err := client.Search(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), output)
				if !strings.HasSuffix(output, "\n") {
					fmt.Fprintln(cmd.OutOrStdout())
				}
				return nil
			})
		},
	}
}

func newAskCommand(ctx *commandContext) *cobra.Command {
	var req api.RAGRequest
	var listChannels bool
	var quiet bool

	cmd := &cobra.Command{
		Use:   "ask <question...>",
		Short: "Ask a question answered from a channel's captions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				if listChannels {
					list, err := client.RAGChannels(cmd.Context())
					if err != nil {
						return err
					}
					rows := make([][]string, 0, len(list))
					for _, ch := range list {
						rows = append(rows, []string{ch.Name, strconv.Itoa(ch.VideoCount)})
					}
					fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Channel", "Videos"}, rows, []columnAlignment{alignLeft, alignRight}))
					return nil
				}
				if len(args) == 0 {
					return errors.New("a question is required")
				}
				req.Query = strings.Join(args, " ")
				answer, err := askWithProgress(cmd, client, req, !quiet)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), answer.Answer)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.Channel, "channel", "", "Channel to answer from")
	cmd.Flags().StringVar(&req.Model, "model", "", "Model override (defaults to rag.default_model)")
	cmd.Flags().BoolVar(&listChannels, "channels", false, "List channels available for questions")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print progress steps")
	return cmd
}

// askWithProgress runs the question while echoing ai-progress steps to
// stderr. The progress stream is best effort and ends with the request.
func askWithProgress(cmd *cobra.Command, client *api.Client, req api.RAGRequest, progress bool) (api.RAGResponse, error) {
	if !progress {
		return client.AskRAG(cmd.Context(), req)
	}

	streamCtx, cancel := context.WithCancel(cmd.Context())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = client.Events(streamCtx, events.TopicAI, false, func(evt api.Event) error {
			if evt.CurrentItem != "" || evt.LogMessage != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "[%3.0f%%] %s\n", evt.Progress, firstNonEmpty(evt.LogMessage, evt.CurrentItem))
			}
			return nil
		})
	}()

	answer, err := client.AskRAG(cmd.Context(), req)
	cancel()
	wg.Wait()
	return answer, err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
