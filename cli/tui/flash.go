package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/justapithecus/freetracer/flasher"
)

// pollInterval is how often the view samples the worker task.
const pollInterval = 120 * time.Millisecond

// StatusFunc samples the observed task.
type StatusFunc func() (flasher.TaskState, flasher.Progress)

type tickMsg time.Time

type stageMsg flasher.Stage

// FlashModel renders a running flash operation: current stage, a
// progress bar over the write, and byte counters.
type FlashModel struct {
	status StatusFunc
	stages <-chan flasher.Stage

	bar      progress.Model
	stage    flasher.Stage
	state    flasher.TaskState
	prog     flasher.Progress
	width    int
	quitting bool
}

// NewFlashModel creates the model. stages receives pipeline stage
// transitions; status samples the worker task.
func NewFlashModel(status StatusFunc, stages <-chan flasher.Stage) FlashModel {
	return FlashModel{
		status: status,
		stages: stages,
		bar:    progress.New(progress.WithDefaultGradient()),
		stage:  flasher.StageInit,
		state:  flasher.TaskRunning,
	}
}

// Init implements tea.Model.
func (m FlashModel) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.nextStage())
}

func (m FlashModel) tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m FlashModel) nextStage() tea.Cmd {
	return func() tea.Msg {
		stage, ok := <-m.stages
		if !ok {
			return nil
		}
		return stageMsg(stage)
	}
}

// Update implements tea.Model.
func (m FlashModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(msg.Width-4, 60)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			// Detach the view; the flash keeps running.
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case stageMsg:
		m.stage = flasher.Stage(msg)
		return m, m.nextStage()

	case tickMsg:
		m.state, m.prog = m.status()
		if m.state == flasher.TaskDone || m.state == flasher.TaskFailed {
			m.quitting = true
			return m, tea.Quit
		}
		return m, m.tick()
	}

	return m, nil
}

// View implements tea.Model.
func (m FlashModel) View() string {
	if m.quitting {
		return ""
	}

	view := TitleStyle.Render("Flashing image") + "\n"
	view += "Stage: " + StageStyle.Render(string(m.stage)) + "\n\n"
	view += m.bar.ViewAs(m.percent()) + "\n"
	view += CounterStyle.Render(formatBytes(m.prog)) + "\n"
	view += HelpStyle.Render("Press q to detach (the flash continues)")
	return view
}

func (m FlashModel) percent() float64 {
	if m.prog.BytesTotal <= 0 {
		return 0
	}
	return float64(m.prog.BytesWritten) / float64(m.prog.BytesTotal)
}

func formatBytes(p flasher.Progress) string {
	return fmt.Sprintf("%s / %s", humanBytes(p.BytesWritten), humanBytes(p.BytesTotal))
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// RunFlash runs the progress view until the task finishes or the user
// detaches.
func RunFlash(status StatusFunc, stages <-chan flasher.Stage) error {
	_, err := tea.NewProgram(NewFlashModel(status, stages)).Run()
	return err
}
