package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/modload/linker"
	"github.com/wippyai/modload/runtime"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	idStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	urlStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const historySize = 20

type interactiveModel struct {
	ctx      context.Context
	rt       *runtime.Runtime
	scope    *linker.Scope
	origin   string
	input    textinput.Model
	history  []loadResult
	selected int
	state    modelState
	loading  bool
}

type loadResult struct {
	err     error
	id      string
	url     string
	value   string
	elapsed time.Duration
}

type modelState int

const (
	stateInput modelState = iota
	stateHistory
)

type loadResultMsg loadResult

func newInteractiveModel(ctx context.Context, rt *runtime.Runtime, origin string) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "./module.js#export.path"
	ti.Prompt = "load: "
	ti.Width = 60
	ti.Focus()

	return &interactiveModel{
		ctx:    ctx,
		rt:     rt,
		scope:  rt.NewScope("repl"),
		origin: origin,
		input:  ti,
		state:  stateInput,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return textinput.Blink
}

// load runs outside the bubbletea loop; the scope is shared so repeated ids
// hit the load cache.
func (m *interactiveModel) load(id string) tea.Cmd {
	scope := m.scope
	return func() tea.Msg {
		res := loadResult{id: id}
		if ident, err := m.rt.Resolve(id, ""); err == nil {
			res.url = ident.URL
		}
		start := time.Now()
		v, err := scope.Load(m.ctx, id)
		res.elapsed = time.Since(start)
		if err != nil {
			res.err = err
		} else {
			res.value = summary(v)
		}
		return loadResultMsg(res)
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.scope.Destroy()
			return m, tea.Quit

		case "q":
			if m.state == stateHistory {
				m.scope.Destroy()
				return m, tea.Quit
			}

		case "tab":
			if m.state == stateInput && len(m.history) > 0 {
				m.state = stateHistory
				m.input.Blur()
				return m, nil
			}
			if m.state == stateHistory {
				m.state = stateInput
				return m, m.input.Focus()
			}

		case "up", "k":
			if m.state == stateHistory && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateHistory && m.selected < len(m.history)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateInput:
				id := strings.TrimSpace(m.input.Value())
				if id == "" || m.loading {
					return m, nil
				}
				m.loading = true
				return m, m.load(id)
			case stateHistory:
				m.input.SetValue(m.history[m.selected].id)
				m.state = stateInput
				return m, m.input.Focus()
			}

		case "ctrl+r":
			// Fresh scope: everything is fetched and executed again.
			m.scope.Destroy()
			m.scope = m.rt.NewScope("repl")
			return m, nil

		case "esc":
			if m.state == stateHistory {
				m.state = stateInput
				return m, m.input.Focus()
			}
			m.input.SetValue("")
			return m, nil
		}

	case loadResultMsg:
		m.loading = false
		m.history = append([]loadResult{loadResult(msg)}, m.history...)
		if len(m.history) > historySize {
			m.history = m.history[:historySize]
		}
		m.selected = 0
		return m, nil
	}

	if m.state == stateInput {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("modload"))
	b.WriteString(" ")
	b.WriteString(urlStyle.Render(m.origin))
	b.WriteString("\n\n")

	b.WriteString(m.input.View())
	if m.loading {
		b.WriteString(helpStyle.Render("  loading..."))
	}
	b.WriteString("\n\n")

	for i, r := range m.history {
		line := m.formatResult(r)
		if m.state == stateHistory && i == m.selected {
			b.WriteString(selectedStyle.Render("> " + r.id))
			b.WriteString("\n")
			b.WriteString(line)
		} else {
			b.WriteString("  " + idStyle.Render(r.id))
			b.WriteString("\n")
			b.WriteString(line)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch m.state {
	case stateInput:
		b.WriteString(helpStyle.Render("enter load • tab history • ctrl+r reset scope • esc clear • ctrl+c quit"))
	case stateHistory:
		b.WriteString(helpStyle.Render("↑/↓ select • enter edit • tab/esc back • q quit"))
	}

	return b.String()
}

func (m *interactiveModel) formatResult(r loadResult) string {
	meta := urlStyle.Render(fmt.Sprintf("%s (%s)", r.url, r.elapsed.Round(time.Microsecond)))
	if r.err != nil {
		return "    " + meta + "\n    " + errorStyle.Render(fmt.Sprintf("Error: %v", r.err))
	}
	return "    " + meta + "\n    " + resultStyle.Render(r.value)
}

func runInteractive(ctx context.Context, rt *runtime.Runtime, origin string) error {
	p := tea.NewProgram(newInteractiveModel(ctx, rt, origin), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
