package top

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rileyhilliard/pgcenter/internal/errors"
	"github.com/rileyhilliard/pgcenter/internal/logger"
	"github.com/rileyhilliard/pgcenter/internal/pgconfig"
	"github.com/rileyhilliard/pgcenter/internal/postgres"
	"github.com/rileyhilliard/pgcenter/internal/screen"
	"github.com/rileyhilliard/pgcenter/internal/signal"
	"github.com/rileyhilliard/pgcenter/internal/sysstat"
)

// ViewMode is what the body of the dashboard shows.
type ViewMode int

const (
	ViewTable ViewMode = iota
	ViewSettings
)

// promptKind identifies what the open prompt collects.
type promptKind int

const (
	promptNone promptKind = iota
	promptMinAge
	promptPID
	promptGroups
	promptConfirmGroup
	promptNewScreen
	promptEditFile
)

// headerHeight is the number of lines above the table.
const headerHeight = 6

// statusTTL is how long a status message stays on screen.
const statusTTL = 5 * time.Second

// Options configure a dashboard.
type Options struct {
	Manager *screen.Manager
	// Sampler is nil when host statistics are unavailable.
	Sampler *sysstat.Sampler
	// Defaults fill fields left empty when a screen is opened interactively.
	Defaults postgres.Params
	Log      logger.Logger
	Now      func() time.Time
}

// Model is the Bubble Tea model for the dashboard.
type Model struct {
	mgr      *screen.Manager
	sampler  *sysstat.Sampler
	defaults postgres.Params
	log      logger.Logger
	now      func() time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	updates <-chan screen.Table
	hostCh  chan sysstat.HostStats

	tables  map[int]screen.Table
	host    sysstat.HostStats
	history *History

	width    int
	height   int
	offset   int
	paused   bool
	showHelp bool
	quitting bool
	viewMode ViewMode

	prompt       textinput.Model
	promptKind   promptKind
	promptAction signal.Action

	settings      viewport.Model
	settingsReady bool

	status    string
	statusErr bool
	statusAt  time.Time
}

// tableMsg carries a refreshed table from the manager.
type tableMsg screen.Table

// refreshedMsg carries the tables of a forced refresh of every screen.
type refreshedMsg []screen.Table

// hostMsg carries a host sample.
type hostMsg sysstat.HostStats

// statusMsg reports the outcome of an operator action.
type statusMsg struct {
	text string
	err  error
}

// settingsMsg carries the pg_settings listing of a screen.
type settingsMsg struct {
	slot     int
	settings []pgconfig.Setting
	err      error
}

// editReadyMsg carries the editor command for a located config file.
type editReadyMsg struct {
	cmd  *exec.Cmd
	path string
	err  error
}

// editorDoneMsg is sent when the editor exits.
type editorDoneMsg struct {
	path string
	err  error
}

// NewModel creates the dashboard and starts the screens and the sampler.
// The goroutines stop when the dashboard quits or ctx is done.
func NewModel(ctx context.Context, opts Options) Model {
	if opts.Log == nil {
		opts.Log = logger.Noop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ctx, cancel := context.WithCancel(ctx)

	in := textinput.New()
	in.Prompt = ""
	in.CharLimit = 256
	in.PromptStyle = PromptStyle

	m := Model{
		mgr:      opts.Manager,
		sampler:  opts.Sampler,
		defaults: opts.Defaults,
		log:      opts.Log,
		now:      opts.Now,
		ctx:      ctx,
		cancel:   cancel,
		tables:   make(map[int]screen.Table),
		history:  NewHistory(DefaultHistorySize),
		prompt:   in,
	}

	m.updates = m.mgr.Start(ctx)
	if m.sampler != nil {
		m.hostCh = make(chan sysstat.HostStats, 1)
		go m.sampler.Run(ctx, m.mgr.Interval(), m.hostCh)
	}
	return m
}

// Init starts listening for tables and host samples.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForTable(m.updates),
		waitForHost(m.hostCh),
		textinput.Blink,
	)
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		cmd := m.HandleKeyMsg(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeSettings()

	case tableMsg:
		if !m.paused {
			m.tables[msg.Slot] = screen.Table(msg)
		}
		return m, waitForTable(m.updates)

	case refreshedMsg:
		// A forced refresh is shown even while paused.
		for _, t := range msg {
			m.tables[t.Slot] = t
		}
		m.setStatus(fmt.Sprintf("refreshed %d screens", len(msg)))

	case hostMsg:
		m.host = sysstat.HostStats(msg)
		m.history.Push(m.host)
		return m, waitForHost(m.hostCh)

	case statusMsg:
		if msg.err != nil {
			m.setError(msg.err)
		} else {
			m.setStatus(msg.text)
		}

	case settingsMsg:
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		m.showSettings(msg.slot, msg.settings)

	case editReadyMsg:
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		path := msg.path
		return m, tea.ExecProcess(msg.cmd, func(err error) tea.Msg {
			return editorDoneMsg{path: path, err: err}
		})

	case editorDoneMsg:
		if msg.err != nil {
			m.setError(msg.err)
		} else {
			m.setStatus("edited " + msg.path + ", press R to reload")
		}
	}

	if m.promptKind != promptNone {
		var cmd tea.Cmd
		m.prompt, cmd = m.prompt.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.renderDashboard()
}

// Quit stops the screens and the sampler.
func (m *Model) Quit() tea.Cmd {
	m.quitting = true
	m.cancel()
	return tea.Quit
}

// waitForTable turns the next published table into a tableMsg.
func waitForTable(ch <-chan screen.Table) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		t, ok := <-ch
		if !ok {
			return nil
		}
		return tableMsg(t)
	}
}

// waitForHost turns the next host sample into a hostMsg.
func waitForHost(ch <-chan sysstat.HostStats) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return hostMsg(s)
	}
}

// Current returns the latest table of the displayed screen.
func (m Model) Current() (screen.Table, bool) {
	s := m.mgr.Current()
	if s == nil {
		return screen.Table{}, false
	}
	t, ok := m.tables[s.Slot()]
	return t, ok
}

// Paused reports whether table updates are frozen.
func (m Model) Paused() bool {
	return m.paused
}

// Status returns the status line text and whether it reports an error.
func (m Model) Status() (string, bool) {
	if m.status == "" || m.now().Sub(m.statusAt) > statusTTL {
		return "", false
	}
	return m.status, m.statusErr
}

func (m *Model) setStatus(text string) {
	m.status, m.statusErr, m.statusAt = text, false, m.now()
}

func (m *Model) setError(err error) {
	m.log.Debug("dashboard: %v", err)
	m.status, m.statusErr, m.statusAt = errors.Short(err), true, m.now()
}

// bodyHeight is the number of table rows that fit below the header.
func (m Model) bodyHeight() int {
	h := m.height - headerHeight - 2
	if h < 1 {
		return 1
	}
	return h
}

func (m *Model) resizeSettings() {
	if !m.settingsReady {
		m.settings = viewport.New(m.width, m.bodyHeight())
		m.settingsReady = true
		return
	}
	m.settings.Width = m.width
	m.settings.Height = m.bodyHeight()
}
