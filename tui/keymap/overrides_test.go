package keymap

import (
	"testing"

	"github.com/charmbracelet/bubbles/key"
	"github.com/stretchr/testify/assert"
)

func TestActionName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"PageUp", "page_up"},
		{"SignalJob", "signal_job"},
		{"PIDPrompt", "pid_prompt"},
		{"FollowPID", "follow_pid"},
		{"Up", "up"},
		{"A", "a"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, actionName(tt.input))
		})
	}
}

// jobKeyMap extends Base the way a picker with extra actions would.
type jobKeyMap struct {
	Base
	FollowOutput key.Binding
	SignalJob    key.Binding
	hidden       key.Binding
	NotABinding  string
}

func newJobKeyMap() jobKeyMap {
	return jobKeyMap{
		Base:         NewBase(),
		FollowOutput: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "follow output")),
		SignalJob:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "signal job")),
		NotABinding:  "untouched",
	}
}

func TestApplyOverrides(t *testing.T) {
	km := newJobKeyMap()

	unknown := ApplyOverrides(&km, Overrides{
		"follow_output": {"F"},
		"signal_job":    {"S", "enter"},
		"not_a_binding": {"x"},
		"hidden":        {"h"},
		"up":            {"w"},
	})

	assert.Equal(t, []string{"hidden", "not_a_binding"}, unknown)
	assert.Equal(t, []string{"F"}, km.FollowOutput.Keys())
	assert.Equal(t, "follow output", km.FollowOutput.Help().Desc, "help text survives")
	assert.Equal(t, "F", km.FollowOutput.Help().Key)
	assert.Equal(t, []string{"S", "enter"}, km.SignalJob.Keys())
	assert.Equal(t, "S/enter", km.SignalJob.Help().Key)
	assert.Equal(t, []string{"w"}, km.Up.Keys(), "embedded Base fields are reached")
	assert.Equal(t, NewBase().Down.Keys(), km.Down.Keys())
	assert.Equal(t, "untouched", km.NotABinding)
}

func TestApplyOverridesIgnoresNilAndNonPointer(t *testing.T) {
	km := newJobKeyMap()

	assert.Nil(t, ApplyOverrides(&km, nil))
	assert.Equal(t, []string{"f"}, km.FollowOutput.Keys())

	assert.Nil(t, ApplyOverrides(km, Overrides{"follow_output": {"F"}}))
	assert.Equal(t, []string{"f"}, km.FollowOutput.Keys())

	assert.Empty(t, ApplyOverrides(&km, Overrides{"follow_output": {}}))
	assert.Equal(t, []string{"f"}, km.FollowOutput.Keys(), "empty key lists are ignored")
}
