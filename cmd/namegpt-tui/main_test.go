package main

import (
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Hrithik-12/Microgpt/pkg/config"
	gpt "github.com/Hrithik-12/Microgpt/pkg/model"
)

func TestLineChart(t *testing.T) {
	lines := lineChart([]float64{3, 2.5, 2.7, 2.1, 1.9}, 20, 5)
	if len(lines) != 5 {
		t.Fatalf("height = %d", len(lines))
	}
	if !strings.Contains(lines[0], "3.000") || !strings.Contains(lines[4], "1.900") {
		t.Fatalf("axis labels missing: %q", lines)
	}
	if got := strings.Count(strings.Join(lines, ""), "●"); got != 5 {
		t.Fatalf("%d points plotted, want 5", got)
	}
	if empty := lineChart(nil, 10, 5); len(empty) != 1 || empty[0] != strings.Repeat(".", 10) {
		t.Fatalf("empty chart = %q", empty)
	}
}

func TestSparkline(t *testing.T) {
	s := sparkline([]float64{1, 2, 3, 4}, 8)
	if utf8.RuneCountInString(s) != 8 {
		t.Fatalf("width = %d", utf8.RuneCountInString(s))
	}
	r := []rune(s)
	if r[0] != '▁' || r[3] != '█' {
		t.Fatalf("sparkline = %q", s)
	}
	long := make([]float64, 500)
	for i := range long {
		long[i] = math.Sin(float64(i) / 30)
	}
	if utf8.RuneCountInString(sparkline(long, 40)) != 40 {
		t.Fatalf("long series not downsampled")
	}
}

func TestTopIndices(t *testing.T) {
	got := topIndices([]float64{0.1, 0.5, 0.1, 0.3}, 3)
	want := []int{1, 3, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("topIndices = %v, want %v", got, want)
		}
	}
	if len(topIndices([]float64{1, 2}, 5)) != 2 {
		t.Fatalf("n larger than input should return all")
	}
}

func testConfig(t *testing.T) config.Config {
	cfg := config.Load()
	cfg.ModelPath = filepath.Join(t.TempDir(), "missing.json")
	cfg.RunLogPath = filepath.Join(t.TempDir(), "runs.db")
	cfg.Temperature = 0.5
	return cfg
}

func press(t *testing.T, m model, keys string) model {
	t.Helper()
	var msg tea.KeyMsg
	switch keys {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(keys)}
	}
	next, _ := m.Update(msg)
	return next.(model)
}

func TestTemperatureKeys(t *testing.T) {
	m := initialModel(testConfig(t))
	m.splashActive = false
	m = press(t, m, "]")
	m = press(t, m, "]")
	if m.temperature != 0.6 {
		t.Fatalf("temperature = %v", m.temperature)
	}
	for i := 0; i < 20; i++ {
		m = press(t, m, "[")
	}
	if m.temperature != minTemp {
		t.Fatalf("temperature = %v, want floor %v", m.temperature, minTemp)
	}
}

func TestTabsCycle(t *testing.T) {
	m := initialModel(testConfig(t))
	m.splashActive = false
	for i := 0; i < len(m.tabs); i++ {
		m = press(t, m, "tab")
	}
	if m.tabIdx != tabGenerate {
		t.Fatalf("tabIdx = %d after a full cycle", m.tabIdx)
	}
}

func TestTypingCapturesHotkeys(t *testing.T) {
	m := initialModel(testConfig(t))
	m.splashActive = false
	m = press(t, m, "enter")
	if !m.typing {
		t.Fatalf("enter should start typing")
	}
	m = press(t, m, "q")
	m = press(t, m, "]")
	if m.prefix.Value() != "q]" || m.temperature != 0.5 {
		t.Fatalf("typing leaked hotkeys: prefix %q temp %v", m.prefix.Value(), m.temperature)
	}
}

func TestTokensTabEnterDoesNotGenerate(t *testing.T) {
	vocab, err := gpt.NewVocab([]string{"abc"})
	if err != nil {
		t.Fatal(err)
	}
	lm, err := gpt.NewSeeded(gpt.Config{NLayer: 1, NEmbd: 4, NHead: 2, BlockSize: 4}, vocab, 3)
	if err != nil {
		t.Fatal(err)
	}
	m := initialModel(testConfig(t))
	m.splashActive = false
	m.lm = lm
	m = press(t, m, "tab")
	if m.tabIdx != tabTokens {
		t.Fatalf("tabIdx = %d", m.tabIdx)
	}
	m = press(t, m, "enter")
	m = press(t, m, "ab")
	m = press(t, m, "enter")
	if m.typing || m.generating || m.events != nil {
		t.Fatalf("enter on the tokens tab started generation")
	}
	if m.prefix.Value() != "ab" {
		t.Fatalf("input = %q", m.prefix.Value())
	}
}

func TestLoadModelMissing(t *testing.T) {
	cfg := testConfig(t)
	msg := loadModelCmd(cfg)().(modelLoadedMsg)
	if msg.err == nil || msg.m != nil {
		t.Fatalf("missing checkpoint loaded: %+v", msg)
	}
	if !strings.Contains(describeLoadError(cfg.ModelPath, msg.err), "run cmd/train first") {
		t.Fatalf("unhelpful load error: %v", msg.err)
	}

	run := loadRunCmd(cfg.RunLogPath)().(runLoadedMsg)
	if run.err == nil {
		t.Fatalf("missing run log should be reported")
	}
}

func TestGenerationEvents(t *testing.T) {
	vocab, err := gpt.NewVocab([]string{"abc"})
	if err != nil {
		t.Fatal(err)
	}
	lm, err := gpt.NewSeeded(gpt.Config{NLayer: 1, NEmbd: 4, NHead: 2, BlockSize: 4}, vocab, 3)
	if err != nil {
		t.Fatal(err)
	}
	ch := startGeneration(lm, "a", 1.0, 0)
	var done *gpt.StepEvent
	for ge := range ch {
		if ge.err != nil {
			t.Fatal(ge.err)
		}
		if ge.ev.Done {
			ev := ge.ev
			done = &ev
		}
	}
	if done == nil || !strings.HasPrefix(done.Word, "a") {
		t.Fatalf("final event = %+v", done)
	}

	ch = startGeneration(lm, "x", 1.0, 0)
	ge := <-ch
	var uce *gpt.UnknownCharError
	if !errors.As(ge.err, &uce) {
		t.Fatalf("err = %v", ge.err)
	}
	if !strings.Contains(describeError(ge.err), "not in the vocabulary") {
		t.Fatalf("describeError = %q", describeError(ge.err))
	}
	if _, ok := <-ch; ok {
		t.Fatalf("channel not closed after error")
	}
}
