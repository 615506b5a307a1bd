// Package tui is the interactive ask loop: one question in, the generated
// SQL and its result set out. It is a thin presentation layer over the
// translator and the store.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/veloquery/veloquery/internal/engine"
	"github.com/veloquery/veloquery/internal/postgres"
)

var (
	colorAccent = lipgloss.Color("#f59e0b")
	colorGray   = lipgloss.Color("#6b7280")
	colorRed    = lipgloss.Color("#ef4444")

	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	questionStyle = lipgloss.NewStyle().Bold(true)
	sqlStyle      = lipgloss.NewStyle().Foreground(colorGray)
	errorStyle    = lipgloss.NewStyle().Foreground(colorRed)
	headerStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
	helpStyle     = lipgloss.NewStyle().Foreground(colorGray)
)

// ConversationEntry holds one question/answer turn.
type ConversationEntry struct {
	Question string
	SQL      string
	Params   []any
	Result   *postgres.Result
	Err      string
}

type answerMsg struct {
	entry ConversationEntry
}

// QueryModel is the single-screen ask loop.
type QueryModel struct {
	input      textinput.Model
	spinner    spinner.Model
	translator *engine.Translator
	store      *postgres.Store
	history    []ConversationEntry
	loading    bool
	width      int
	onAnswer   func(ConversationEntry)
}

// NewQueryModel builds the query screen. onAnswer may be nil; when set it
// receives every completed turn (used to persist history).
func NewQueryModel(translator *engine.Translator, store *postgres.Store, onAnswer func(ConversationEntry)) *QueryModel {
	ti := textinput.New()
	ti.Placeholder = "Ask about rides, stations, weather..."
	ti.Prompt = "> "
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorAccent)

	return &QueryModel{
		input:      ti,
		spinner:    sp,
		translator: translator,
		store:      store,
		onAnswer:   onAnswer,
		width:      80,
	}
}

// Run starts the program and blocks until the user quits.
func Run(translator *engine.Translator, store *postgres.Store, onAnswer func(ConversationEntry)) error {
	_, err := tea.NewProgram(NewQueryModel(translator, store, onAnswer)).Run()
	return err
}

func (m *QueryModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *QueryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			question := strings.TrimSpace(m.input.Value())
			if question == "" || m.loading {
				return m, nil
			}
			m.input.SetValue("")
			m.loading = true
			return m, tea.Batch(m.spinner.Tick, m.ask(question))
		}

	case answerMsg:
		m.loading = false
		m.history = append(m.history, msg.entry)
		if m.onAnswer != nil {
			m.onAnswer(msg.entry)
		}
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// ask translates and executes in one command so the UI stays responsive.
func (m *QueryModel) ask(question string) tea.Cmd {
	return func() tea.Msg {
		entry := ConversationEntry{Question: question}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		plan, err := m.translator.Translate(ctx, question)
		if err != nil {
			entry.Err = err.Error()
			return answerMsg{entry}
		}
		entry.SQL = plan.SQL
		entry.Params = plan.Params

		if m.store != nil {
			result, err := m.store.Query(ctx, plan.SQL, plan.Params)
			if err != nil {
				entry.Err = err.Error()
			} else {
				entry.Result = result
			}
		}
		return answerMsg{entry}
	}
}

func (m *QueryModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("veloquery"))
	b.WriteString("\n\n")

	for _, e := range m.history {
		b.WriteString(questionStyle.Render("? " + e.Question))
		b.WriteString("\n")
		if e.SQL != "" {
			b.WriteString(sqlStyle.Render("  " + e.SQL))
			b.WriteString("\n")
			if len(e.Params) > 0 {
				b.WriteString(sqlStyle.Render("  params: " + formatParams(e.Params)))
				b.WriteString("\n")
			}
		}
		if e.Err != "" {
			b.WriteString(errorStyle.Render("  " + e.Err))
			b.WriteString("\n")
		}
		if e.Result != nil {
			b.WriteString(renderResult(e.Result))
		}
		b.WriteString("\n")
	}

	if m.loading {
		b.WriteString(m.spinner.View() + " translating...\n")
	} else {
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("enter: ask · esc: quit"))
	return b.String()
}

func formatParams(params []any) string {
	parts := make([]string, len(params))
	for i, p := range params {
		if t, ok := p.(time.Time); ok {
			parts[i] = t.Format("2006-01-02")
			continue
		}
		parts[i] = fmt.Sprintf("%v", p)
	}
	return strings.Join(parts, ", ")
}

// renderResult draws a plain aligned table, capped to keep the
// conversation scannable.
func renderResult(r *postgres.Result) string {
	const maxRows = 15

	widths := make([]int, len(r.Columns))
	for i, c := range r.Columns {
		widths[i] = len(c)
	}
	rows := r.Rows
	if len(rows) > maxRows {
		rows = rows[:maxRows]
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	var header []string
	for i, c := range r.Columns {
		header = append(header, pad(c, widths[i]))
	}
	b.WriteString("  " + headerStyle.Render(strings.Join(header, "  ")) + "\n")

	for _, row := range rows {
		var cells []string
		for i, cell := range row {
			if i < len(widths) {
				cells = append(cells, pad(cell, widths[i]))
			}
		}
		b.WriteString("  " + strings.Join(cells, "  ") + "\n")
	}
	if len(r.Rows) > maxRows {
		b.WriteString(helpStyle.Render(fmt.Sprintf("  ... %d more rows\n", len(r.Rows)-maxRows)))
	}
	return b.String()
}

func pad(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-len(s))
}
