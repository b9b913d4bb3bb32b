package picker

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/grovetools/rdebug/scheduler"
	"github.com/grovetools/rdebug/tui/keymap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testJobs = []scheduler.Job{
	{ID: "1001", Name: "train", State: "RUNNING", Elapsed: "1:02:03", Node: "gpu01"},
	{ID: "1002", Name: "eval", State: "RUNNING", Elapsed: "0:10", Node: "gpu02"},
	{ID: "1003", Name: "sweep", State: "PENDING", Elapsed: "0:00", Node: ""},
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func send(t *testing.T, m tea.Model, msgs ...tea.Msg) (tea.Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, msg := range msgs {
		m, cmd = m.Update(msg)
	}
	return m, cmd
}

func TestJobModelNavigatesAndSelects(t *testing.T) {
	m := NewJobModel(testJobs, keymap.NewBase())

	final, cmd := send(t, m,
		tea.KeyMsg{Type: tea.KeyDown},
		runes("j"),
		runes("k"),
		tea.KeyMsg{Type: tea.KeyEnter},
	)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	job, ok := final.(JobModel).Selected()
	require.True(t, ok)
	assert.Equal(t, "1002", job.ID)
}

func TestJobModelClampsCursor(t *testing.T) {
	m := NewJobModel(testJobs, keymap.NewBase())

	final, _ := send(t, m, runes("k"), runes("k"), tea.KeyMsg{Type: tea.KeyEnter})
	job, ok := final.(JobModel).Selected()
	require.True(t, ok)
	assert.Equal(t, "1001", job.ID)

	final, _ = send(t, NewJobModel(testJobs, keymap.NewBase()), runes("G"), runes("j"), tea.KeyMsg{Type: tea.KeyEnter})
	job, ok = final.(JobModel).Selected()
	require.True(t, ok)
	assert.Equal(t, "1003", job.ID)
}

func TestJobModelQuit(t *testing.T) {
	final, cmd := send(t, NewJobModel(testJobs, keymap.NewBase()), runes("q"))
	require.NotNil(t, cmd)
	_, ok := final.(JobModel).Selected()
	assert.False(t, ok)
	assert.Empty(t, final.View())
}

func TestJobModelView(t *testing.T) {
	m := NewJobModel(testJobs, keymap.NewBase())
	view := m.View()
	assert.Contains(t, view, "Select a job to debug")
	assert.Contains(t, view, "JOB ID")
	assert.Contains(t, view, "train")
	assert.Contains(t, view, "gpu02")
}

func TestJobModelScrollsWithSmallWindow(t *testing.T) {
	var jobs []scheduler.Job
	for i := 0; i < 20; i++ {
		jobs = append(jobs, scheduler.Job{ID: string(rune('a' + i)), State: "RUNNING"})
	}
	m := NewJobModel(jobs, keymap.NewBase())

	final, _ := send(t, m, tea.WindowSizeMsg{Width: 80, Height: chromeLines + 5}, runes("G"))
	jm := final.(JobModel)
	assert.Equal(t, 19, jm.cursor)
	assert.Equal(t, 15, jm.offset)
	assert.Contains(t, jm.View(), "20/20")
}

func TestJobModelEmpty(t *testing.T) {
	m := NewJobModel(nil, keymap.NewBase())
	final, cmd := send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	_, ok := final.(JobModel).Selected()
	assert.False(t, ok)
	assert.Contains(t, m.View(), "No jobs found.")
}

func TestPickJobWithoutJobs(t *testing.T) {
	_, err := PickJob(nil, keymap.NewBase())
	assert.Error(t, err)
}

func TestPIDModelAcceptsNumber(t *testing.T) {
	final, cmd := send(t, NewPIDModel("1001"), runes("4242"), tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	pid, ok := final.(PIDModel).PID()
	require.True(t, ok)
	assert.Equal(t, 4242, pid)
}

func TestPIDModelRejectsNonNumeric(t *testing.T) {
	final, cmd := send(t, NewPIDModel("1001"), runes("abc"), tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd, "invalid input keeps the prompt open")

	pm := final.(PIDModel)
	_, ok := pm.PID()
	assert.False(t, ok)
	assert.Error(t, pm.Err())
	assert.Contains(t, pm.View(), "PID to activate in job 1001")
}

func TestPIDModelRejectsEmpty(t *testing.T) {
	final, _ := send(t, NewPIDModel("1001"), tea.KeyMsg{Type: tea.KeyEnter})
	_, ok := final.(PIDModel).PID()
	assert.False(t, ok)
	assert.Error(t, final.(PIDModel).Err())
}

func TestPIDModelCancel(t *testing.T) {
	final, cmd := send(t, NewPIDModel("1001"), tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	_, ok := final.(PIDModel).PID()
	assert.False(t, ok)
}
