package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"ydhouse/internal/api"
	"ydhouse/internal/events"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var exitOnFinal bool
	var plain bool

	cmd := &cobra.Command{
		Use:       "watch [topic]",
		Short:     "Watch live job progress",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: events.Topics(),
		RunE: func(cmd *cobra.Command, args []string) error {
			topic := ""
			if len(args) == 1 {
				topic = args[0]
				if !events.KnownTopic(topic) {
					return fmt.Errorf("unknown topic %q (expected one of %v)", topic, events.Topics())
				}
			}
			return ctx.withClient(func(client *api.Client) error {
				if plain || !stdinIsTTY() {
					return watchPlain(cmd, client, topic, exitOnFinal)
				}
				return watchInteractive(cmd, client, topic, exitOnFinal)
			})
		},
	}
	cmd.Flags().BoolVar(&exitOnFinal, "exit", false, "Exit after the next finished job")
	cmd.Flags().BoolVar(&plain, "plain", false, "Print events as lines instead of the interactive view")
	return cmd
}

func watchInteractive(cmd *cobra.Command, client *api.Client, topic string, exitOnFinal bool) error {
	topics := events.Topics()
	if topic != "" {
		topics = []string{topic}
	}

	streamCtx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	program := tea.NewProgram(newWatchModel(topics, exitOnFinal), tea.WithContext(streamCtx))
	go func() {
		err := client.Events(streamCtx, topic, true, func(evt api.Event) error {
			program.Send(watchEventMsg(evt))
			return nil
		})
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		program.Send(watchStreamEndedMsg{err: err})
	}()

	final, err := program.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	if m, ok := final.(watchModel); ok && m.err != nil {
		return m.err
	}
	return nil
}

func watchPlain(cmd *cobra.Command, client *api.Client, topic string, exitOnFinal bool) error {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	err := client.Events(cmd.Context(), topic, false, func(evt api.Event) error {
		fmt.Fprintf(out, "%s ", evt.Topic)
		printEvent(out, evt, colorize)
		if exitOnFinal && evt.Status.Terminal() {
			return errJobFinished
		}
		return nil
	})
	if errors.Is(err, errJobFinished) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func stdinIsTTY() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
