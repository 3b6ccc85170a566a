package main

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
	"gonum.org/v1/gonum/stat"

	"github.com/Hrithik-12/Microgpt/pkg/config"
	gpt "github.com/Hrithik-12/Microgpt/pkg/model"
)

const (
	tabGenerate = iota
	tabTokens
	tabTraining
)

const (
	stepDelay  = 180 * time.Millisecond
	barRows    = 12
	maxHistory = 200
	tempStep   = 0.05
	minTemp    = 0.05
	maxTemp    = 3.0
)

type styles struct {
	title      lipgloss.Style
	tab        lipgloss.Style
	tabActive  lipgloss.Style
	panel      lipgloss.Style
	panelTitle lipgloss.Style
	selected   lipgloss.Style
	dim        lipgloss.Style
	ok         lipgloss.Style
	warn       lipgloss.Style
	bar        lipgloss.Style
	word       lipgloss.Style
	graphLoss  lipgloss.Style
	splash     lipgloss.Style
	splashText lipgloss.Style
}

func defaultStyles() styles {
	brand := lipgloss.AdaptiveColor{Light: "26", Dark: "81"}
	subtle := lipgloss.AdaptiveColor{Light: "245", Dark: "244"}
	border := lipgloss.AdaptiveColor{Light: "250", Dark: "238"}
	return styles{
		title:      lipgloss.NewStyle().Bold(true).Foreground(brand),
		tab:        lipgloss.NewStyle().Padding(0, 1).Foreground(subtle),
		tabActive:  lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(lipgloss.Color("15")).Background(brand),
		panel:      lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(border).Padding(0, 1),
		panelTitle: lipgloss.NewStyle().Bold(true).Foreground(brand),
		selected:   lipgloss.NewStyle().Bold(true).Foreground(brand),
		dim:        lipgloss.NewStyle().Foreground(subtle),
		ok:         lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		warn:       lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		bar:        lipgloss.NewStyle().Foreground(lipgloss.Color("86")),
		word:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		graphLoss:  lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		splash:     lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(brand).Padding(1, 3),
		splashText: lipgloss.NewStyle().Bold(true).Foreground(brand),
	}
}

type keyMap struct {
	Quit     key.Binding
	TabNext  key.Binding
	TabPrev  key.Binding
	Type     key.Binding
	Generate key.Binding
	TempDown key.Binding
	TempUp   key.Binding
	Refresh  key.Binding
	Clear    key.Binding
	Help     key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Type, k.Generate, k.TempDown, k.TempUp, k.TabNext, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Type, k.Generate, k.Clear},
		{k.TempDown, k.TempUp},
		{k.TabNext, k.TabPrev, k.Refresh},
		{k.Help, k.Quit},
	}
}

func defaultKeys() keyMap {
	return keyMap{
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		TabNext:  key.NewBinding(key.WithKeys("tab", "l"), key.WithHelp("tab/l", "next tab")),
		TabPrev:  key.NewBinding(key.WithKeys("shift+tab", "h"), key.WithHelp("shift+tab/h", "prev tab")),
		Type:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "type prefix")),
		Generate: key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "generate")),
		TempDown: key.NewBinding(key.WithKeys("["), key.WithHelp("[", "temp -0.05")),
		TempUp:   key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "temp +0.05")),
		Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload run log")),
		Clear:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear history")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
	}
}

type model struct {
	cfg    config.Config
	width  int
	height int
	styles styles
	keys   keyMap
	help   help.Model
	spin   spinner.Model
	tabs   []string
	tabIdx int

	lm        *gpt.Model
	modelPath string
	loadErr   error

	prefix      textinput.Model
	typing      bool
	temperature float64

	generating  bool
	events      <-chan genEvent
	word        string
	position    int
	targets     []float64
	bars        []float64
	barVel      []float64
	barSpring   harmonica.Spring
	genErr      error
	history     []string
	historyView viewport.Model

	runLoaded bool
	run       runLoadedMsg

	splashActive   bool
	splashStarted  time.Time
	splashMin      time.Duration
	splashProgress float64
	splashVel      float64
	splashSpring   harmonica.Spring
}

func initialModel(cfg config.Config) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("81"))

	prefix := textinput.New()
	prefix.Placeholder = "prefix (empty for a fresh name)"
	prefix.CharLimit = cfg.Model.BlockSize
	prefix.Width = 24
	prefix.Blur()

	hv := viewport.New(30, 12)
	hv.SetContent("generated names will appear here")

	return model{
		cfg:           cfg,
		styles:        defaultStyles(),
		keys:          defaultKeys(),
		help:          help.New(),
		spin:          sp,
		tabs:          []string{"Generate", "Tokens", "Training"},
		modelPath:     cfg.ModelPath,
		prefix:        prefix,
		temperature:   cfg.Temperature,
		historyView:   hv,
		barSpring:     harmonica.NewSpring(harmonica.FPS(30), 7.0, 0.8),
		splashActive:  true,
		splashStarted: time.Now(),
		splashMin:     1200 * time.Millisecond,
		splashSpring:  harmonica.NewSpring(harmonica.FPS(30), 8.0, 0.72),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, loadModelCmd(m.cfg), loadRunCmd(m.cfg.RunLogPath), animTickCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	m.spin, cmd = m.spin.Update(msg)
	cmds = append(cmds, cmd)
	if !m.typing {
		m.historyView, cmd = m.historyView.Update(msg)
		cmds = append(cmds, cmd)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.historyView.Width = max(20, m.width/3-6)
		m.historyView.Height = max(6, m.height-12)
		m.prefix.Width = max(16, min(40, m.width/3))

	case modelLoadedMsg:
		m.loadErr = msg.err
		if msg.err == nil {
			m.lm = msg.m
			m.modelPath = msg.path
			size := msg.m.Vocab.Size()
			m.targets = make([]float64, size)
			m.bars = make([]float64, size)
			m.barVel = make([]float64, size)
			m.prefix.CharLimit = msg.m.Config.BlockSize
		}

	case runLoadedMsg:
		m.runLoaded = true
		m.run = msg

	case genEventMsg:
		return m.handleGenEvent(genEvent(msg), cmds)

	case animTickMsg:
		m.animate()
		cmds = append(cmds, animTickCmd())

	case tea.KeyMsg:
		return m.handleKey(msg, cmds)
	}
	return m, tea.Batch(cmds...)
}

func (m model) handleKey(msg tea.KeyMsg, cmds []tea.Cmd) (tea.Model, tea.Cmd) {
	if m.splashActive {
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "enter", " ":
			m.splashActive = false
		}
		return m, tea.Batch(cmds...)
	}
	if m.typing {
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "enter":
			m.typing = false
			m.prefix.Blur()
			if m.tabIdx != tabGenerate {
				return m, tea.Batch(cmds...)
			}
			var cmd tea.Cmd
			m, cmd = m.startGenerate()
			return m, tea.Batch(append(cmds, cmd)...)
		case "esc":
			m.typing = false
			m.prefix.Blur()
		default:
			var cmd tea.Cmd
			m.prefix, cmd = m.prefix.Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.TabNext):
		m.tabIdx = (m.tabIdx + 1) % len(m.tabs)
		if m.tabIdx == tabTraining {
			cmds = append(cmds, loadRunCmd(m.cfg.RunLogPath))
		}
	case key.Matches(msg, m.keys.TabPrev):
		m.tabIdx = (m.tabIdx + len(m.tabs) - 1) % len(m.tabs)
		if m.tabIdx == tabTraining {
			cmds = append(cmds, loadRunCmd(m.cfg.RunLogPath))
		}
	case key.Matches(msg, m.keys.Type):
		if m.tabIdx != tabTraining {
			m.typing = true
			cmds = append(cmds, m.prefix.Focus())
		}
	case key.Matches(msg, m.keys.Generate):
		var cmd tea.Cmd
		m, cmd = m.startGenerate()
		cmds = append(cmds, cmd)
	case key.Matches(msg, m.keys.TempDown):
		m.temperature = math.Max(minTemp, math.Round((m.temperature-tempStep)*100)/100)
	case key.Matches(msg, m.keys.TempUp):
		m.temperature = math.Min(maxTemp, math.Round((m.temperature+tempStep)*100)/100)
	case key.Matches(msg, m.keys.Refresh):
		cmds = append(cmds, loadRunCmd(m.cfg.RunLogPath))
	case key.Matches(msg, m.keys.Clear):
		m.history = nil
		m.rebuildHistory()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, tea.Batch(cmds...)
}

func (m model) startGenerate() (model, tea.Cmd) {
	if m.lm == nil || m.generating {
		return m, nil
	}
	prefix := strings.ToLower(strings.TrimSpace(m.prefix.Value()))
	m.generating = true
	m.genErr = nil
	m.word = prefix
	m.position = len([]rune(prefix))
	for i := range m.targets {
		m.targets[i] = 0
	}
	m.events = startGeneration(m.lm, prefix, m.temperature, stepDelay)
	return m, waitGenCmd(m.events)
}

func (m model) handleGenEvent(ge genEvent, cmds []tea.Cmd) (tea.Model, tea.Cmd) {
	switch {
	case ge.end:
		m.generating = false
		m.events = nil
		return m, tea.Batch(cmds...)
	case ge.err != nil:
		m.genErr = ge.err
	case ge.ev.Done:
		m.word = ge.ev.Word
		m.history = append(m.history, fmt.Sprintf("%s  (t=%.2f)", nz(ge.ev.Word, "∅"), m.temperature))
		if len(m.history) > maxHistory {
			m.history = m.history[len(m.history)-maxHistory:]
		}
		m.rebuildHistory()
	default:
		m.word = ge.ev.Word
		m.position = ge.ev.Position
		copy(m.targets, ge.ev.Probs)
	}
	return m, tea.Batch(append(cmds, waitGenCmd(m.events))...)
}

func (m *model) rebuildHistory() {
	if len(m.history) == 0 {
		m.historyView.SetContent(m.styles.dim.Render("generated names will appear here"))
		return
	}
	lines := make([]string, len(m.history))
	for i, h := range m.history {
		lines[i] = fmt.Sprintf("%3d. %s", i+1, h)
	}
	m.historyView.SetContent(strings.Join(lines, "\n"))
	m.historyView.GotoBottom()
}

// animate moves the probability bars and the splash bar one frame along
// their springs.
func (m *model) animate() {
	for i := range m.bars {
		m.bars[i], m.barVel[i] = m.barSpring.Update(m.bars[i], m.barVel[i], m.targets[i])
	}
	if m.splashActive {
		m.splashProgress, m.splashVel = m.splashSpring.Update(m.splashProgress, m.splashVel, 1)
		if m.splashProgress > 0.98 && time.Since(m.splashStarted) >= m.splashMin {
			m.splashActive = false
		}
	}
}

func (m model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs)+1)
	parts = append(parts, m.styles.title.Render("NameGPT"))
	for i, t := range m.tabs {
		if i == m.tabIdx {
			parts = append(parts, m.styles.tabActive.Render(t))
		} else {
			parts = append(parts, m.styles.tab.Render(t))
		}
	}
	return strings.Join(parts, " ")
}

func (m model) panel(title string, lines []string, w int) string {
	return m.styles.panel.Width(panelInnerWidth(w)).Render(m.styles.panelTitle.Render(title) + "\n" + strings.Join(lines, "\n"))
}

func panelInnerWidth(total int) int {
	// rounded border plus horizontal padding
	return max(8, total-4)
}

func (m model) probBars(w int) []string {
	if m.lm == nil {
		return []string{m.styles.dim.Render("no model loaded")}
	}
	barW := max(8, w-22)
	dist := m.lm.Vocab.Distribution(m.targets)
	lines := make([]string, 0, barRows)
	for _, i := range topIndices(m.targets, barRows) {
		n := int(math.Round(clamp01(m.bars[i]) * float64(barW)))
		label := dist[i].Char
		if label == " " {
			label = "␠"
		}
		lines = append(lines, fmt.Sprintf("%-4s %s%s %6.2f%%",
			label,
			m.styles.bar.Render(strings.Repeat("█", n)),
			strings.Repeat(" ", barW-n),
			dist[i].Prob))
	}
	return lines
}

func (m model) viewGenerateTab(w, h int) string {
	status := m.styles.ok.Render("ready")
	switch {
	case m.lm == nil && m.loadErr == nil:
		status = m.spin.View() + " loading model..."
	case m.lm == nil:
		status = m.styles.warn.Render("no model")
	case m.generating:
		status = m.spin.View() + fmt.Sprintf(" sampling position %d", m.position)
	}
	input := m.styles.dim.Render("press enter to type a prefix")
	if m.typing || m.prefix.Value() != "" {
		input = m.prefix.View()
	}
	lines := []string{
		"Status: " + status,
		"Prefix: " + input,
		fmt.Sprintf("Temperature: %.2f", m.temperature),
		"",
		"Word: " + m.styles.word.Render(nz(m.word, "…")),
	}
	if m.genErr != nil {
		lines = append(lines, "", m.styles.warn.Render(describeError(m.genErr)))
	}
	if m.loadErr != nil {
		lines = append(lines, "", m.styles.warn.Render(describeLoadError(m.modelPath, m.loadErr)))
	}

	rightW := max(28, min(44, w/3))
	leftW := max(40, w-rightW-2)
	controls := m.panel("Generate", lines, leftW)
	bars := m.panel("Next character", m.probBars(leftW-4), leftW)
	left := lipgloss.JoinVertical(lipgloss.Top, controls, bars)

	hv := m.historyView
	hv.Width = max(20, rightW-6)
	hv.Height = max(6, h-3)
	history := m.styles.panel.Width(panelInnerWidth(rightW)).Render(m.styles.panelTitle.Render("History") + "\n" + hv.View())
	return lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", history)
}

func (m model) viewTokensTab(w int) string {
	if m.lm == nil {
		return m.panel("Tokens", []string{m.styles.dim.Render("no model loaded")}, w)
	}
	text := strings.ToLower(m.prefix.Value())
	var lines []string
	if text == "" {
		lines = append(lines, m.styles.dim.Render("press enter and type text to tokenize"))
	}
	for i, tok := range m.lm.Vocab.Tokenize(text) {
		if tok.ID == nil {
			lines = append(lines, m.styles.warn.Render(fmt.Sprintf("%3d  %q  unknown", i, tok.Char)))
			continue
		}
		lines = append(lines, fmt.Sprintf("%3d  %q  id %d", i, tok.Char, *tok.ID))
	}
	if m.typing {
		lines = append([]string{"Text: " + m.prefix.View(), ""}, lines...)
	}

	v := m.lm.Vocab
	vocabLines := []string{
		fmt.Sprintf("chars: %q", string(v.Chars())),
		fmt.Sprintf("vocab size: %d (BOS id %d)", v.Size(), v.BOS()),
		fmt.Sprintf("params: %d", m.lm.Params.Len()),
		fmt.Sprintf("n_layer=%d n_embd=%d n_head=%d block_size=%d",
			m.lm.Config.NLayer, m.lm.Config.NEmbd, m.lm.Config.NHead, m.lm.Config.BlockSize),
	}
	return lipgloss.JoinVertical(lipgloss.Top, m.panel("Tokenization", lines, w), m.panel("Vocabulary", vocabLines, w))
}

func (m model) viewTrainingTab(w int) string {
	if !m.runLoaded {
		return m.panel("Training", []string{m.spin.View() + " reading run log..."}, w)
	}
	if m.run.err != nil {
		msg := m.run.err.Error()
		if errors.Is(m.run.err, fs.ErrNotExist) {
			msg = "no run log at " + m.cfg.RunLogPath + "; run cmd/train first"
		}
		return m.panel("Training", []string{m.styles.warn.Render(msg)}, w)
	}
	run, losses := m.run.run, m.run.losses
	info := []string{
		fmt.Sprintf("run #%d started %s", run.ID, run.StartedAt.Format(time.DateTime)),
		fmt.Sprintf("n_layer=%d n_embd=%d n_head=%d block_size=%d params=%d",
			run.Config.NLayer, run.Config.NEmbd, run.Config.NHead, run.Config.BlockSize, run.NumParams),
		fmt.Sprintf("lr=%.4f beta1=%.2f beta2=%.3f steps=%d",
			run.Adam.LearningRate, run.Adam.Beta1, run.Adam.Beta2, run.Adam.NumSteps),
	}
	if run.FinalLoss.Valid {
		info = append(info, fmt.Sprintf("final loss %.4f", run.FinalLoss.Float64))
	} else {
		info = append(info, m.styles.warn.Render(fmt.Sprintf("unfinished: %d/%d steps logged", len(losses), run.Adam.NumSteps)))
	}
	if n := len(losses); n > 0 {
		win := min(gpt.LossWindow, n)
		info = append(info, fmt.Sprintf("mean loss: first %d steps %.4f | last %d steps %.4f",
			win, stat.Mean(losses[:win], nil), win, stat.Mean(losses[n-win:], nil)))
	}

	chartW := max(16, w-16)
	chart := lineChart(losses, chartW, 8)
	for i := range chart {
		chart[i] = m.styles.graphLoss.Render(chart[i])
	}
	graph := append(chart, "", m.styles.dim.Render("trend ")+sparkline(losses, chartW))
	return lipgloss.JoinVertical(lipgloss.Top, m.panel("Latest run", info, w), m.panel("Loss", graph, w))
}

func (m model) viewSplash() string {
	title := "NameGPT"
	reveal := max(0, min(len(title), int(math.Round(float64(len(title))*clamp01(m.splashProgress)))))
	head := m.styles.splashText.Render(title[:reveal]) + m.styles.dim.Render(title[reveal:])

	barW := max(24, min(56, m.width-20))
	done := max(0, min(barW, int(math.Round(float64(barW)*clamp01(m.splashProgress)))))
	bar := "[" + strings.Repeat("=", done) + strings.Repeat(" ", barW-done) + "]"

	body := lipgloss.JoinVertical(
		lipgloss.Center,
		head,
		m.styles.dim.Render("a character-level GPT for startup names"),
		"",
		bar,
		m.styles.dim.Render("Press Enter to skip"),
	)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.styles.splash.Render(body))
}

func (m model) View() string {
	if m.width == 0 {
		return "loading..."
	}
	if m.splashActive {
		return m.viewSplash()
	}
	header := m.renderTabs()
	footer := m.help.View(m.keys)
	contentW := max(60, m.width-4)
	contentH := max(8, m.height-lipgloss.Height(header)-lipgloss.Height(footer)-2)

	var content string
	switch m.tabIdx {
	case tabGenerate:
		content = m.viewGenerateTab(contentW, contentH)
	case tabTokens:
		content = m.viewTokensTab(contentW)
	default:
		content = m.viewTrainingTab(contentW)
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, "", fitHeight(content, contentH), footer)
}

func describeError(err error) string {
	var uce *gpt.UnknownCharError
	if errors.As(err, &uce) {
		return fmt.Sprintf("character %q at position %d is not in the vocabulary", uce.Char, uce.Position)
	}
	return err.Error()
}

func describeLoadError(path string, err error) string {
	if errors.Is(err, fs.ErrNotExist) {
		return "no checkpoint at " + path + "; run cmd/train first"
	}
	return fmt.Sprintf("checkpoint %s: %v", path, err)
}

func nz(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func main() {
	cfg := config.Load()
	p := tea.NewProgram(initialModel(cfg), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}
