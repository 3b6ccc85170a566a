package main

import (
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Hrithik-12/Microgpt/pkg/config"
	gpt "github.com/Hrithik-12/Microgpt/pkg/model"
	"github.com/Hrithik-12/Microgpt/pkg/runlog"
)

type modelLoadedMsg struct {
	m    *gpt.Model
	path string
	err  error
}

type runLoadedMsg struct {
	run    runlog.Run
	losses []float64
	err    error
}

type animTickMsg time.Time

// genEvent is one message from a running generation. end marks the
// closed channel.
type genEvent struct {
	ev  gpt.StepEvent
	err error
	end bool
}

type genEventMsg genEvent

func loadModelCmd(cfg config.Config) tea.Cmd {
	return func() tea.Msg {
		ckpt, err := gpt.LoadCheckpoint(cfg.ModelPath)
		if err != nil {
			return modelLoadedMsg{path: cfg.ModelPath, err: err}
		}
		m, err := gpt.FromCheckpoint(ckpt, gpt.NewRand(cfg.Seed))
		return modelLoadedMsg{m: m, path: cfg.ModelPath, err: err}
	}
}

// loadRunCmd reads the latest run. A missing database is reported rather
// than created.
func loadRunCmd(path string) tea.Cmd {
	return func() tea.Msg {
		if _, err := os.Stat(path); err != nil {
			return runLoadedMsg{err: err}
		}
		store, err := runlog.Open(path)
		if err != nil {
			return runLoadedMsg{err: err}
		}
		defer store.Close()
		run, err := store.Latest()
		if err != nil {
			return runLoadedMsg{err: err}
		}
		losses, err := store.Losses(run.ID)
		return runLoadedMsg{run: run, losses: losses, err: err}
	}
}

func animTickCmd() tea.Cmd {
	return tea.Tick(time.Second/30, func(ts time.Time) tea.Msg { return animTickMsg(ts) })
}

// startGeneration runs one generation in the background, pausing between
// positions so the probability bars have time to move. Only one may run
// at a time per model.
func startGeneration(m *gpt.Model, prefix string, temperature float64, delay time.Duration) <-chan genEvent {
	ch := make(chan genEvent, 4)
	go func() {
		defer close(ch)
		_, err := m.GenerateStream(prefix, temperature, func(ev gpt.StepEvent) error {
			ch <- genEvent{ev: ev}
			if !ev.Done && delay > 0 {
				time.Sleep(delay)
			}
			return nil
		})
		if err != nil {
			ch <- genEvent{err: err}
		}
	}()
	return ch
}

func waitGenCmd(ch <-chan genEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return genEventMsg{end: true}
		}
		return genEventMsg(ev)
	}
}
