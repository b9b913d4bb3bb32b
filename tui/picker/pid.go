package picker

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/grovetools/rdebug/command"
	"github.com/grovetools/rdebug/errors"
	"github.com/grovetools/rdebug/tui/theme"
)

// PIDModel asks for the PID printed by a lite-mode program.
type PIDModel struct {
	jobID string
	input textinput.Model
	theme *theme.Theme

	pid       int
	err       error
	done      bool
	cancelled bool
}

// NewPIDModel creates a focused PID prompt for jobID.
func NewPIDModel(jobID string) PIDModel {
	validator := command.NewSafeBuilder()

	input := textinput.New()
	input.Placeholder = "PID printed by rdebug debug --lite"
	input.CharLimit = 10
	input.Width = 36
	input.Validate = func(s string) error {
		if s == "" {
			return nil
		}
		return validator.Validate("pid", s)
	}
	input.Focus()

	return PIDModel{
		jobID: jobID,
		input: input,
		theme: theme.DefaultTheme,
	}
}

// Init starts the cursor blinking.
func (m PIDModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles typing, confirmation and cancellation.
func (m PIDModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit
		case tea.KeyEnter:
			value := strings.TrimSpace(m.input.Value())
			if err := command.NewSafeBuilder().Validate("pid", value); err != nil {
				m.err = err
				return m, nil
			}
			// Validate guarantees a positive integer.
			m.pid, _ = strconv.Atoi(value)
			m.err = nil
			m.done = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.err = m.input.Err
	return m, cmd
}

// View renders the prompt and the current validation error.
func (m PIDModel) View() string {
	if m.done || m.cancelled {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.theme.Title.Render(fmt.Sprintf("PID to activate in job %s", m.jobID)))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(m.theme.Error.Render(m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.theme.Muted.Render("enter confirm • esc cancel"))
	return b.String()
}

// PID returns the confirmed PID.
func (m PIDModel) PID() (int, bool) {
	return m.pid, m.done
}

// Err returns the current validation error, if any.
func (m PIDModel) Err() error {
	return m.err
}

// PromptPID runs the PID prompt.
func PromptPID(jobID string, opts ...tea.ProgramOption) (int, error) {
	final, err := tea.NewProgram(NewPIDModel(jobID), opts...).Run()
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInternal, "PID prompt failed")
	}
	pid, ok := final.(PIDModel).PID()
	if !ok {
		return 0, errors.InvalidInput("no PID entered")
	}
	return pid, nil
}
