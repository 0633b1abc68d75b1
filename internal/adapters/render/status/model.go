package status

import (
	"errors"
	"fmt"
	"io"

	"github.com/bnema/telegram-query-cli/internal/application"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var ErrUnexpectedRenderModel = errors.New("unexpected final status model type")

// snapshotMsg carries the statuses into the program once it is running.
type snapshotMsg struct {
	statuses []application.AccountStatus
}

// totals is the footer summary across every account and bot.
type totals struct {
	accounts int
	sessions int
	queries  int
	missed   int
}

func summarize(statuses []application.AccountStatus) totals {
	t := totals{accounts: len(statuses)}
	for _, status := range statuses {
		if status.HasSession {
			t.sessions++
		}
		for _, bot := range status.State.Bots {
			switch {
			case bot.Missed:
				t.missed++
			case bot.Query != "":
				t.queries++
			}
		}
	}
	return t
}

type statusModel struct {
	snapshot []application.AccountStatus
	opts     RenderOptions
	styles   styles
	body     string
	footer   string
}

func (m statusModel) Init() tea.Cmd {
	snapshot := m.snapshot
	return func() tea.Msg {
		return snapshotMsg{statuses: snapshot}
	}
}

func (m statusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	snapshot, ok := msg.(snapshotMsg)
	if !ok {
		return m, nil
	}

	m.body = renderView(snapshot.statuses, m.opts, m.styles)
	if len(snapshot.statuses) > 0 {
		t := summarize(snapshot.statuses)
		m.footer = m.styles.header.Render(fmt.Sprintf("sessions: %d/%d  queries: %d  missed: %d", t.sessions, t.accounts, t.queries, t.missed))
	}
	return m, tea.Quit
}

func (m statusModel) View() string {
	if m.footer == "" {
		return m.body
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.body, "", m.footer)
}

// Render lays out statuses through a one-shot bubbletea program and returns the text.
func Render(statuses []application.AccountStatus, opts RenderOptions) (string, error) {
	p := tea.NewProgram(
		statusModel{snapshot: statuses, opts: opts, styles: newStyles()},
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
	)

	final, err := p.Run()
	if err != nil {
		return "", err
	}

	rendered, ok := final.(statusModel)
	if !ok {
		return "", ErrUnexpectedRenderModel
	}
	return rendered.View(), nil
}
