// Package picker holds the interactive prompts used by rdebug attach when
// the job or PID is not given on the command line.
package picker

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/grovetools/rdebug/errors"
	"github.com/grovetools/rdebug/scheduler"
	"github.com/grovetools/rdebug/tui/components/table"
	"github.com/grovetools/rdebug/tui/keymap"
	"github.com/grovetools/rdebug/tui/theme"
)

var jobHeaders = []string{"JOB ID", "NAME", "STATE", "ELAPSED", "NODE"}

// chromeLines is the vertical space taken by everything but data rows.
const chromeLines = 8

// JobModel lets the user choose one job from a list.
type JobModel struct {
	jobs   []scheduler.Job
	keys   keymap.Base
	help   help.Model
	theme  *theme.Theme
	cursor int
	offset int
	height int

	chosen    bool
	cancelled bool
}

// NewJobModel creates a picker over jobs.
func NewJobModel(jobs []scheduler.Job, keys keymap.Base) JobModel {
	return JobModel{
		jobs:  jobs,
		keys:  keys,
		help:  help.New(),
		theme: theme.DefaultTheme,
	}
}

// Init is the first command that will be executed.
func (m JobModel) Init() tea.Cmd {
	return nil
}

// Update handles key presses and window resizes.
func (m JobModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		m.help.Width = msg.Width
		m.clampOffset()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.cancelled = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Confirm):
			if len(m.jobs) > 0 {
				m.chosen = true
				return m, tea.Quit
			}
		case key.Matches(msg, m.keys.Up):
			m.move(-1)
		case key.Matches(msg, m.keys.Down):
			m.move(1)
		case key.Matches(msg, m.keys.PageUp):
			m.move(-m.pageSize())
		case key.Matches(msg, m.keys.PageDown):
			m.move(m.pageSize())
		case key.Matches(msg, m.keys.Top):
			m.move(-len(m.jobs))
		case key.Matches(msg, m.keys.Bottom):
			m.move(len(m.jobs))
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
	}
	return m, nil
}

func (m *JobModel) move(delta int) {
	m.cursor += delta
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor > len(m.jobs)-1 {
		m.cursor = len(m.jobs) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.clampOffset()
}

// pageSize is how many rows fit; everything fits before the first resize.
func (m JobModel) pageSize() int {
	if m.height <= chromeLines {
		return len(m.jobs)
	}
	return m.height - chromeLines
}

func (m *JobModel) clampOffset() {
	size := m.pageSize()
	if size <= 0 {
		return
	}
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+size {
		m.offset = m.cursor - size + 1
	}
}

// View renders the job table.
func (m JobModel) View() string {
	if m.chosen || m.cancelled {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.theme.Title.Render("Select a job to debug"))
	b.WriteString("\n\n")

	if len(m.jobs) == 0 {
		b.WriteString(m.theme.Muted.Render("No jobs found."))
		b.WriteString("\n")
	} else {
		end := m.offset + m.pageSize()
		if end > len(m.jobs) {
			end = len(m.jobs)
		}
		rows := make([][]string, 0, end-m.offset)
		for _, j := range m.jobs[m.offset:end] {
			rows = append(rows, []string{j.ID, j.Name, j.State, j.Elapsed, j.Node})
		}
		b.WriteString(table.SelectableTable(m.theme, jobHeaders, rows, m.cursor-m.offset))
		b.WriteString("\n")
		if len(m.jobs) > end-m.offset {
			b.WriteString(m.theme.Muted.Render(fmt.Sprintf("%d/%d", m.cursor+1, len(m.jobs))))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// Selected returns the chosen job once the user confirmed one.
func (m JobModel) Selected() (scheduler.Job, bool) {
	if !m.chosen || len(m.jobs) == 0 {
		return scheduler.Job{}, false
	}
	return m.jobs[m.cursor], true
}

// PickJob runs the job picker and returns the user's choice.
func PickJob(jobs []scheduler.Job, keys keymap.Base, opts ...tea.ProgramOption) (scheduler.Job, error) {
	if len(jobs) == 0 {
		return scheduler.Job{}, errors.InvalidInput("no jobs to choose from")
	}

	final, err := tea.NewProgram(NewJobModel(jobs, keys), opts...).Run()
	if err != nil {
		return scheduler.Job{}, errors.Wrap(err, errors.ErrCodeInternal, "job picker failed")
	}
	job, ok := final.(JobModel).Selected()
	if !ok {
		return scheduler.Job{}, errors.InvalidInput("no job selected")
	}
	return job, nil
}
