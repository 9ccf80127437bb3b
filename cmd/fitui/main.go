package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/CK6170/Oxyfit-go/config"
	"github.com/CK6170/Oxyfit-go/pipeline"
	"github.com/CK6170/Oxyfit-go/ui"
)

type screen int

const (
	screenEntry screen = iota
	screenLoaded
	screenFitting
	screenDone
)

type model struct {
	scr screen

	configInput textinput.Model
	spin        spinner.Model

	configPath string
	sess       *pipeline.Session
	lastErr    error
	infoLine   string

	// fit state
	updates chan pipeline.FitUpdate
	last    pipeline.FitUpdate
	report  *pipeline.Report
	savedTo string
	runID   int
	fitCtx  context.Context
	fitStop context.CancelFunc
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

func initialModel() model {
	in := textinput.New()
	in.Placeholder = "Path to run.toml"
	in.Focus()
	in.CharLimit = 512
	in.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := model{scr: screenEntry, configInput: in, spin: sp}
	// support passing config path as arg
	if len(os.Args) > 1 && strings.TrimSpace(os.Args[1]) != "" {
		m.configInput.SetValue(os.Args[1])
		m.configInput.CursorEnd()
	}
	return m
}

type errMsg struct{ err error }
type loadedMsg struct {
	sess       *pipeline.Session
	configPath string
}
type fitUpdateMsg struct {
	runID int
	u     pipeline.FitUpdate
}
type fitDoneMsg struct {
	runID   int
	rep     *pipeline.Report
	savedTo string
	err     error
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.stopFit()
			return m, tea.Quit
		}
		switch m.scr {
		case screenEntry:
			return m.updateEntryKey(msg)
		case screenLoaded, screenDone:
			return m.updateLoadedKey(msg)
		case screenFitting:
			if msg.String() == "esc" || msg.String() == "s" {
				m.stopFit()
				m.infoLine = "Stopping fit..."
			}
			return m, nil
		}

	case errMsg:
		m.lastErr = msg.err
		return m, nil

	case loadedMsg:
		m.sess = msg.sess
		m.configPath = msg.configPath
		m.scr = screenLoaded
		m.lastErr = nil
		m.infoLine = fmt.Sprintf("Loaded %d titrations, %d bottles", len(m.sess.Run.Records), m.sess.Bottles.Len())
		return m, nil

	case fitUpdateMsg:
		if msg.runID != m.runID {
			return m, nil
		}
		m.last = msg.u
		return m, m.waitForUpdate(m.runID)

	case fitDoneMsg:
		if msg.runID != m.runID {
			return m, nil
		}
		m.stopFit()
		m.scr = screenDone
		if msg.err != nil {
			m.lastErr = msg.err
			if errors.Is(msg.err, context.Canceled) {
				m.lastErr = nil
				m.infoLine = "Fit stopped."
				m.scr = screenLoaded
			}
			return m, nil
		}
		m.report = msg.rep
		m.savedTo = msg.savedTo
		m.infoLine = "Saved " + msg.savedTo
		return m, nil

	case spinner.TickMsg:
		if m.scr != screenFitting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	if m.scr == screenEntry {
		var cmd tea.Cmd
		m.configInput, cmd = m.configInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Oxyfit") + "\n")
	b.WriteString(helpStyle.Render("Ctrl+C to quit.") + "\n\n")
	if m.infoLine != "" {
		b.WriteString(okStyle.Render(m.infoLine) + "\n")
	}
	if m.lastErr != nil {
		b.WriteString(errStyle.Render("Error: "+m.lastErr.Error()) + "\n")
	}
	b.WriteString("\n")

	switch m.scr {
	case screenEntry:
		b.WriteString("Run config (TOML):\n")
		b.WriteString(m.configInput.View() + "\n\n")
		b.WriteString(helpStyle.Render("Enter a config path then press Enter to load.") + "\n")
	case screenLoaded:
		b.WriteString(m.viewLoaded())
	case screenFitting:
		b.WriteString(m.viewFitting())
	case screenDone:
		b.WriteString(m.viewDone())
	}
	return b.String()
}

func (m model) viewLoaded() string {
	var b strings.Builder
	b.WriteString(m.configPath + "\n\n")
	if m.sess.Instrument == nil {
		b.WriteString(warnStyle.Render("No instrument configuration: reduction only.") + "\n")
	}
	b.WriteString(helpStyle.Render("Press Enter to reduce and fit. Press b to load another config.") + "\n")
	return b.String()
}

func (m model) viewFitting() string {
	var b strings.Builder
	b.WriteString(m.spin.View() + " ")
	if m.last.Message != "" {
		b.WriteString(m.last.Message)
	} else {
		b.WriteString(string(m.last.Phase))
	}
	b.WriteString("\n\n")
	if m.last.Phase == pipeline.FitPhaseFitting && m.last.Iteration > 0 {
		b.WriteString(fmt.Sprintf("Iteration %d  cost %.6g\n", m.last.Iteration, m.last.Cost))
		for i, x := range m.last.X {
			b.WriteString(fmt.Sprintf("  x[%d] = %.6g\n", i, x))
		}
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("Press Esc to stop.") + "\n")
	return b.String()
}

func (m model) viewDone() string {
	var b strings.Builder
	if m.report == nil {
		b.WriteString(helpStyle.Render("Press Enter to retry. Press b to go back.") + "\n")
		return b.String()
	}
	b.WriteString(ui.OxygenTable(m.report.Reduction) + "\n")
	if f := m.report.Fit; f != nil {
		b.WriteString(ui.CoefficientTable(f.Initial, f.Coefficients) + "\n")
		b.WriteString(fmt.Sprintf("%s after %d iterations, RMS %.4f ml/l (n=%d)\n\n",
			f.Status.Reason, f.Status.Iterations, f.Summary.RMS, f.Summary.N))
	}
	if m.report.Warning != "" {
		b.WriteString(warnStyle.Render("Warning: "+m.report.Warning) + "\n\n")
	}
	b.WriteString(helpStyle.Render("Press Enter to run again. Press b to load another config.") + "\n")
	return b.String()
}

func (m *model) stopFit() {
	if m.fitStop != nil {
		m.fitStop()
		m.fitStop = nil
	}
	m.fitCtx = nil
}

func (m model) updateEntryKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	if k.String() == "enter" {
		path := strings.TrimSpace(m.configInput.Value())
		if path == "" {
			return m, func() tea.Msg { return errMsg{err: fmt.Errorf("config path is empty")} }
		}
		return m, loadCmd(path)
	}
	var cmd tea.Cmd
	m.configInput, cmd = m.configInput.Update(k)
	return m, cmd
}

func (m model) updateLoadedKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k.String() {
	case "b":
		m.sess, m.report = nil, nil
		m.scr = screenEntry
		m.infoLine = ""
		return m, nil
	case "enter":
		m.runID++
		m.fitCtx, m.fitStop = context.WithCancel(context.Background())
		m.updates = make(chan pipeline.FitUpdate, 64)
		m.last = pipeline.FitUpdate{}
		m.report = nil
		m.lastErr = nil
		m.scr = screenFitting
		return m, tea.Batch(m.spin.Tick, m.runCmd(m.fitCtx, m.runID), m.waitForUpdate(m.runID))
	}
	return m, nil
}

func loadCmd(path string) tea.Cmd {
	return func() tea.Msg {
		cfg, err := config.Load(path)
		if err != nil {
			return errMsg{err: err}
		}
		if err := cfg.ApplyEnv(); err != nil {
			return errMsg{err: err}
		}
		if err := cfg.Validate(false); err != nil {
			return errMsg{err: err}
		}
		sess, err := pipeline.Open(cfg)
		if err != nil {
			return errMsg{err: err}
		}
		return loadedMsg{sess: sess, configPath: path}
	}
}

// runCmd runs the pipeline and saves the report. Progress goes through m.updates,
// which is closed when the run ends.
func (m model) runCmd(ctx context.Context, runID int) tea.Cmd {
	sess, updates, configPath := m.sess, m.updates, m.configPath
	return func() tea.Msg {
		defer close(updates)
		rep, err := sess.Process(ctx, func(u pipeline.FitUpdate) {
			select {
			case updates <- u:
			default:
			}
		})
		if err != nil {
			return fitDoneMsg{runID: runID, err: err}
		}
		out := sess.Config.Output.Path
		if out == "" {
			out = pipeline.FittedPath(configPath)
		}
		if err := pipeline.SaveFittedJSON(out, rep, sess.Config.Fit.SensorID); err != nil {
			return fitDoneMsg{runID: runID, err: err}
		}
		return fitDoneMsg{runID: runID, rep: rep, savedTo: out}
	}
}

func (m model) waitForUpdate(runID int) tea.Cmd {
	ch := m.updates
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return nil
		}
		return fitUpdateMsg{runID: runID, u: u}
	}
}

func main() {
	_ = godotenv.Load()
	p := tea.NewProgram(initialModel(), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}
