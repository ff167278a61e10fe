package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ydhouse/internal/api"
	"ydhouse/internal/events"
)

const watchLogLines = 8

var (
	watchTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	watchMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	watchErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	watchOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	watchWarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	watchPanelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type watchEventMsg api.Event

type watchStreamEndedMsg struct {
	err error
}

// topicState is the latest known state of one topic.
type topicState struct {
	runID     string
	status    events.Status
	progress  float64
	item      string
	seen      int
	completed int
	logs      []string
}

type watchModel struct {
	topics      []string
	states      map[string]*topicState
	bar         progress.Model
	width       int
	exitOnFinal bool
	ended       bool
	err         error
}

func newWatchModel(topics []string, exitOnFinal bool) watchModel {
	states := make(map[string]*topicState, len(topics))
	for _, t := range topics {
		states[t] = &topicState{}
	}
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40
	return watchModel{
		topics:      topics,
		states:      states,
		bar:         bar,
		exitOnFinal: exitOnFinal,
	}
}

func (m watchModel) Init() tea.Cmd {
	return nil
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(10, min(60, msg.Width-24))
	case watchEventMsg:
		m.apply(api.Event(msg))
		if m.exitOnFinal && msg.Status.Terminal() {
			return m, tea.Quit
		}
	case watchStreamEndedMsg:
		m.ended = true
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m *watchModel) apply(evt api.Event) {
	state, ok := m.states[evt.Topic]
	if !ok {
		state = &topicState{}
		m.states[evt.Topic] = state
		m.topics = append(m.topics, evt.Topic)
	}
	if evt.RunID != "" && evt.RunID != state.runID {
		*state = topicState{runID: evt.RunID}
	}
	state.status = evt.Status
	state.progress = evt.Progress
	state.seen = evt.TotalSeen
	state.completed = evt.TotalCompleted
	if evt.CurrentItem != "" {
		state.item = evt.CurrentItem
	}
	if evt.LogMessage != "" {
		state.logs = append(state.logs, evt.LogMessage)
		if len(state.logs) > watchLogLines {
			state.logs = state.logs[len(state.logs)-watchLogLines:]
		}
	}
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(watchTitleStyle.Render("ydhouse watch"))
	b.WriteString(watchMutedStyle.Render("  q to quit"))
	b.WriteString("\n")

	for _, topic := range m.topics {
		b.WriteString(m.renderTopic(topic, m.states[topic]))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(watchErrorStyle.Render("stream ended: " + m.err.Error()))
		b.WriteString("\n")
	}
	return b.String()
}

func (m watchModel) renderTopic(topic string, state *topicState) string {
	var b strings.Builder
	b.WriteString(watchTitleStyle.Render(topic))
	b.WriteString(" ")
	b.WriteString(renderWatchStatus(state.status))
	b.WriteString("\n")
	b.WriteString(m.bar.ViewAs(state.progress / 100))
	if state.seen > 0 {
		fmt.Fprintf(&b, "  %d/%d", state.completed, state.seen)
	}
	b.WriteString("\n")
	if state.item != "" {
		b.WriteString(watchMutedStyle.Render(state.item))
		b.WriteString("\n")
	}
	for _, line := range state.logs {
		b.WriteString(line)
		b.WriteString("\n")
	}
	style := watchPanelStyle
	if m.width > 4 {
		style = style.Width(m.width - 4)
	}
	return style.Render(strings.TrimRight(b.String(), "\n"))
}

func renderWatchStatus(status events.Status) string {
	switch status {
	case "":
		return watchMutedStyle.Render("idle")
	case events.StatusOK:
		return watchOKStyle.Render(string(status))
	case events.StatusFailed:
		return watchErrorStyle.Render(string(status))
	case events.StatusCancelled, events.StatusWarning:
		return watchWarnStyle.Render(string(status))
	default:
		return string(status)
	}
}
