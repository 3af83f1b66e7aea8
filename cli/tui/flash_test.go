package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/justapithecus/freetracer/flasher"
)

func fixedStatus(state flasher.TaskState, p flasher.Progress) StatusFunc {
	return func() (flasher.TaskState, flasher.Progress) { return state, p }
}

func TestFlashModel_ViewShowsStageAndCounters(t *testing.T) {
	m := NewFlashModel(fixedStatus(flasher.TaskRunning, flasher.Progress{}), nil)
	m.stage = flasher.StageWriting
	m.prog = flasher.Progress{BytesWritten: 1 << 20, BytesTotal: 4 << 20}

	view := m.View()
	if !strings.Contains(view, string(flasher.StageWriting)) {
		t.Errorf("view missing stage: %q", view)
	}
	if !strings.Contains(view, "1.0 MiB / 4.0 MiB") {
		t.Errorf("view missing counters: %q", view)
	}
}

func TestFlashModel_StageMessageAdvances(t *testing.T) {
	stages := make(chan flasher.Stage, 1)
	m := NewFlashModel(fixedStatus(flasher.TaskRunning, flasher.Progress{}), stages)

	updated, _ := m.Update(stageMsg(flasher.StageUnmounting))
	got := updated.(FlashModel)
	if got.stage != flasher.StageUnmounting {
		t.Errorf("stage = %s, want unmounting", got.stage)
	}
}

func TestFlashModel_QuitsWhenTaskFinishes(t *testing.T) {
	m := NewFlashModel(fixedStatus(flasher.TaskDone, flasher.Progress{}), nil)

	updated, cmd := m.Update(tickMsg{})
	got := updated.(FlashModel)
	if !got.quitting {
		t.Error("model should quit once the task is done")
	}
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("command should be tea.Quit")
	}
}

func TestFlashModel_DetachKey(t *testing.T) {
	m := NewFlashModel(fixedStatus(flasher.TaskRunning, flasher.Progress{}), nil)

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if !updated.(FlashModel).quitting {
		t.Error("q should detach the view")
	}
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
}

func TestHumanBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{4 << 30, "4.0 GiB"},
	}
	for _, tt := range tests {
		if got := humanBytes(tt.n); got != tt.want {
			t.Errorf("humanBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestFlashModel_PercentGuardsZeroTotal(t *testing.T) {
	m := NewFlashModel(fixedStatus(flasher.TaskRunning, flasher.Progress{}), nil)
	if p := m.percent(); p != 0 {
		t.Errorf("percent = %f, want 0 with no total", p)
	}
}
