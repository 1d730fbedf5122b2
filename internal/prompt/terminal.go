package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// maxListed is how many completions are listed under the input line
const maxListed = 8

var (
	questionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	completionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
	candidateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA")).
			PaddingLeft(2)
)

// Terminal asks each question with a bubbletea text input. Completions are offered
// inline (tab accepts) and listed below the input.
type Terminal struct {
	in  io.Reader
	out io.Writer
}

// NewTerminal creates a terminal prompter
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: in, out: out}
}

// Ask runs a short-lived bubbletea program for one answer
func (t *Terminal) Ask(ctx context.Context, question string, complete Completer) (string, error) {
	p := tea.NewProgram(
		newInputModel(question, complete),
		tea.WithContext(ctx),
		tea.WithInput(t.in),
		tea.WithOutput(t.out),
	)

	final, err := p.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) || ctx.Err() != nil {
			return "", ErrInterrupted
		}
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	m, ok := final.(inputModel)
	if !ok || !m.submitted {
		return "", ErrInterrupted
	}
	return m.input.Value(), nil
}

type inputModel struct {
	input     textinput.Model
	complete  Completer
	listed    []string
	submitted bool
	done      bool
}

func newInputModel(question string, complete Completer) inputModel {
	ti := textinput.New()
	ti.Prompt = question + " "
	ti.PromptStyle = questionStyle
	ti.CompletionStyle = completionStyle
	ti.ShowSuggestions = complete != nil
	ti.Focus()

	m := inputModel{input: ti, complete: complete}
	m.refresh()
	return m
}

// refresh recomputes completions for the current value
func (m *inputModel) refresh() {
	if m.complete == nil {
		return
	}
	candidates := m.complete(m.input.Value())
	m.input.SetSuggestions(candidates)
	m.listed = candidates
	if len(m.listed) > maxListed {
		m.listed = m.listed[:maxListed]
	}
}

func (m inputModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			m.submitted = true
			m.done = true
			return m, tea.Quit
		case tea.KeyCtrlC, tea.KeyCtrlD, tea.KeyEsc:
			m.done = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.refresh()
	return m, cmd
}

func (m inputModel) View() string {
	if m.done {
		// leave the answered question on screen without the cursor or candidates
		return questionStyle.Render(m.input.Prompt) + m.input.Value() + "\n"
	}

	var b strings.Builder
	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.input.Value() != "" {
		for _, c := range m.listed {
			b.WriteString(candidateStyle.Render(c))
			b.WriteString("\n")
		}
	}
	return b.String()
}
