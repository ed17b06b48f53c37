package top

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rileyhilliard/pgcenter/internal/pgconfig"
	"github.com/rileyhilliard/pgcenter/internal/postgres"
	"github.com/rileyhilliard/pgcenter/internal/screen"
	"github.com/rileyhilliard/pgcenter/internal/signal"
	"github.com/rileyhilliard/pgcenter/internal/stat"
)

// Key bindings as constants for consistency.
const (
	KeyQuit           = "q"
	KeyQuitAlt        = "ctrl+c"
	KeyToggleHelp     = "?"
	KeyClose          = "esc"
	KeySortPrev       = "left"
	KeySortNext       = "right"
	KeySortDirection  = "/"
	KeyFaster         = "-"
	KeySlower         = "+"
	KeyMinAge         = "A"
	KeyCancelPID      = "c"
	KeyTerminatePID   = "k"
	KeyCancelGroup    = "C"
	KeyTerminateGroup = "K"
	KeyGroups         = "G"
	KeyLogging        = "L"
	KeyNewScreen      = "N"
	KeyCloseScreen    = "X"
	KeyEdit           = "E"
	KeyReload         = "R"
	KeySettings       = "P"
	KeyPause          = " "
	KeyRefresh        = "ctrl+r"
	KeyScrollUp       = "up"
	KeyScrollDown     = "down"
	KeyPageUp         = "pgup"
	KeyPageDown       = "pgdown"
	KeyHome           = "home"
	KeyEnd            = "end"
)

// contextKeys maps a key to the statistics context it switches to.
var contextKeys = map[string]stat.ContextID{
	"d": stat.Databases,
	"r": stat.Replication,
	"t": stat.Tables,
	"i": stat.Indexes,
	"T": stat.TablesIO,
	"S": stat.TableSizes,
	"a": stat.LongActivity,
	"f": stat.Functions,
	"x": stat.Statements,
}

// HandleKeyMsg processes keyboard input and returns the follow-up command.
func (m *Model) HandleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()

	if key == KeyQuitAlt {
		return m.Quit()
	}

	if m.promptKind != promptNone {
		return m.handlePromptKey(msg)
	}

	if key == KeyToggleHelp {
		m.showHelp = !m.showHelp
		return nil
	}
	if key == KeyClose {
		m.showHelp = false
		m.viewMode = ViewTable
		return nil
	}
	if m.viewMode == ViewSettings {
		switch key {
		case KeyQuit, KeySettings:
			m.viewMode = ViewTable
			return nil
		}
		var cmd tea.Cmd
		m.settings, cmd = m.settings.Update(msg)
		return cmd
	}

	if key == KeyQuit {
		return m.Quit()
	}

	if id, ok := contextKeys[key]; ok {
		return m.switchContext(id)
	}
	if len(key) == 1 && key[0] >= '1' && key[0] <= '0'+screen.MaxScreens {
		return m.switchScreen(int(key[0] - '0'))
	}

	s := m.mgr.Current()
	if s == nil {
		if key == KeyNewScreen {
			m.openPrompt(promptNewScreen, "connect to (host port user dbname): ", "")
		}
		return nil
	}

	switch key {
	case KeySortNext:
		if err := s.NextOrder(); err != nil {
			m.setError(err)
		}
		m.resort(s)
	case KeySortPrev:
		if err := s.PrevOrder(); err != nil {
			m.setError(err)
		}
		m.resort(s)
	case KeySortDirection:
		s.ToggleDirection()
		m.resort(s)

	case KeyFaster:
		m.setStatus("refresh interval " + m.mgr.Faster().String())
	case KeySlower:
		m.setStatus("refresh interval " + m.mgr.Slower().String())

	case KeyMinAge:
		m.openPrompt(promptMinAge, "min age (hh:mm:ss): ", s.MinAge())
	case KeyCancelPID:
		m.promptAction = signal.Cancel
		m.openPrompt(promptPID, "cancel backend pid: ", "")
	case KeyTerminatePID:
		m.promptAction = signal.Terminate
		m.openPrompt(promptPID, "terminate backend pid: ", "")
	case KeyCancelGroup, KeyTerminateGroup:
		return m.confirmGroup(s, key == KeyTerminateGroup)
	case KeyGroups:
		m.openPrompt(promptGroups, "groups (a=active i=idle x=idle in xact w=waiting o=other): ", s.Groups().String())

	case KeyLogging:
		return toggleLoggingCmd(s)
	case KeyNewScreen:
		if m.mgr.Len() >= screen.MaxScreens {
			m.setStatus(fmt.Sprintf("all %d screens are in use", screen.MaxScreens))
			return nil
		}
		m.openPrompt(promptNewScreen, "connect to (host port user dbname): ", "")
	case KeyCloseScreen:
		return m.closeScreen(s)

	case KeyEdit:
		if !s.Params().IsLocal() {
			m.setStatus("editing is only available for local servers")
			return nil
		}
		m.openPrompt(promptEditFile, editPrompt(), "")
	case KeyReload:
		return reloadCmd(m.ctx, s)
	case KeySettings:
		return settingsCmd(m.ctx, s)

	case KeyRefresh:
		return refreshAllCmd(m.ctx, m.mgr)
	case KeyPause:
		m.paused = !m.paused
		if m.paused {
			m.setStatus("paused")
		} else {
			m.setStatus("resumed")
		}

	case KeyScrollUp:
		m.scroll(-1)
	case KeyScrollDown:
		m.scroll(1)
	case KeyPageUp:
		m.scroll(-m.bodyHeight())
	case KeyPageDown:
		m.scroll(m.bodyHeight())
	case KeyHome:
		m.offset = 0
	case KeyEnd:
		m.scroll(1 << 30)
	}
	return nil
}

func (m *Model) switchContext(id stat.ContextID) tea.Cmd {
	s := m.mgr.Current()
	if s == nil {
		return nil
	}
	if err := s.SetContext(id); err != nil {
		m.setError(err)
		return nil
	}
	delete(m.tables, s.Slot())
	m.offset = 0
	m.viewMode = ViewTable
	return nil
}

func (m *Model) switchScreen(slot int) tea.Cmd {
	if err := m.mgr.Switch(slot); err != nil {
		m.setError(err)
		return nil
	}
	m.offset = 0
	m.viewMode = ViewTable
	return nil
}

// resort reorders the displayed table right away instead of waiting for the
// next refresh.
func (m *Model) resort(s *screen.Screen) {
	order := s.Order()
	t, ok := m.tables[s.Slot()]
	if ok && t.Context.Orderable() {
		t.Rows = stat.Apply(t.Rows, order.Key, order.Desc)
		t.Order = order
		m.tables[s.Slot()] = t
	}
	s.Kick()
}

func (m *Model) scroll(delta int) {
	t, _ := m.Current()
	maxOffset := len(t.Rows) - m.bodyHeight()
	if maxOffset < 0 {
		maxOffset = 0
	}
	m.offset += delta
	if m.offset > maxOffset {
		m.offset = maxOffset
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

func (m *Model) confirmGroup(s *screen.Screen, terminate bool) tea.Cmd {
	groups := s.Groups()
	if err := groups.Validate(); err != nil {
		m.setError(err)
		return nil
	}
	m.promptAction = signal.Cancel
	if terminate {
		m.promptAction = signal.Terminate
	}
	m.openPrompt(promptConfirmGroup,
		fmt.Sprintf("%s %s sessions older than %s? (y/n): ", m.promptAction, groups.Describe(), s.MinAge()), "")
	return nil
}

func (m *Model) closeScreen(s *screen.Screen) tea.Cmd {
	if m.mgr.Len() == 1 {
		m.setStatus("this is the last screen, press q to quit")
		return nil
	}
	slot := s.Slot()
	delete(m.tables, slot)
	m.offset = 0
	mgr := m.mgr
	return func() tea.Msg {
		if err := mgr.Close(slot); err != nil {
			return statusMsg{err: err}
		}
		return statusMsg{text: fmt.Sprintf("screen %d closed", slot)}
	}
}

func (m *Model) openPrompt(kind promptKind, label, value string) {
	m.promptKind = kind
	m.prompt.Placeholder = ""
	m.prompt.Prompt = label
	m.prompt.SetValue(value)
	m.prompt.CursorEnd()
	m.prompt.Focus()
}

func (m *Model) closePrompt() {
	m.promptKind = promptNone
	m.prompt.Blur()
	m.prompt.Reset()
}

func (m *Model) handlePromptKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.closePrompt()
		return nil
	case tea.KeyEnter:
		kind, value := m.promptKind, strings.TrimSpace(m.prompt.Value())
		m.closePrompt()
		return m.submitPrompt(kind, value)
	}
	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	return cmd
}

func (m *Model) submitPrompt(kind promptKind, value string) tea.Cmd {
	if kind == promptNewScreen {
		return openScreenCmd(m.ctx, m.mgr, parseConnInput(value, m.defaults))
	}

	s := m.mgr.Current()
	if s == nil {
		return nil
	}

	switch kind {
	case promptMinAge:
		if err := s.SetMinAge(value); err != nil {
			m.setError(err)
			return nil
		}
		m.setStatus("min age " + s.MinAge())

	case promptPID:
		pid, err := strconv.Atoi(value)
		if err != nil || pid <= 0 {
			m.setStatus(fmt.Sprintf("invalid pid %q", value))
			return nil
		}
		return signalCmd(m.ctx, s, m.promptAction, pid)

	case promptGroups:
		set, err := signal.ParseGroupSet(value)
		if err == nil {
			err = set.Validate()
		}
		if err != nil {
			m.setError(err)
			return nil
		}
		s.SetGroups(set)
		m.setStatus("signal groups: " + set.Describe())

	case promptConfirmGroup:
		if !strings.EqualFold(value, "y") && !strings.EqualFold(value, "yes") {
			m.setStatus("canceled")
			return nil
		}
		return groupSignalCmd(m.ctx, s, m.promptAction)

	case promptEditFile:
		name, ok := editFile(value)
		if !ok {
			m.setStatus(fmt.Sprintf("unknown file %q", value))
			return nil
		}
		return editCmd(m.ctx, s, name)
	}
	return nil
}

// parseConnInput reads "host port user dbname" or libpq-style key=value
// pairs. Omitted fields come from defaults.
func parseConnInput(input string, defaults postgres.Params) postgres.Params {
	p := defaults
	positional := 0
	for _, tok := range strings.Fields(input) {
		if k, v, ok := strings.Cut(tok, "="); ok {
			switch strings.ToLower(k) {
			case "host":
				p.Host = v
			case "port":
				if n, err := strconv.Atoi(v); err == nil {
					p.Port = n
				}
			case "user":
				p.User = v
			case "dbname":
				p.DBName = v
			case "password":
				p.Password = v
			}
			continue
		}
		switch positional {
		case 0:
			p.Host = tok
		case 1:
			if n, err := strconv.Atoi(tok); err == nil {
				p.Port = n
			}
		case 2:
			p.User = tok
		case 3:
			p.DBName = tok
		}
		positional++
	}
	return p
}

func editPrompt() string {
	parts := make([]string, len(pgconfig.Files))
	for i, f := range pgconfig.Files {
		parts[i] = fmt.Sprintf("%d=%s", i+1, f)
	}
	return "edit (" + strings.Join(parts, " ") + "): "
}

// editFile accepts a menu number or a file name.
func editFile(value string) (string, bool) {
	if n, err := strconv.Atoi(value); err == nil {
		if n >= 1 && n <= len(pgconfig.Files) {
			return pgconfig.Files[n-1], true
		}
		return "", false
	}
	for _, f := range pgconfig.Files {
		if f == value {
			return f, true
		}
	}
	return "", false
}

func signalCmd(ctx context.Context, s *screen.Screen, action signal.Action, pid int) tea.Cmd {
	return func() tea.Msg {
		res := s.DispatchSignal(ctx, action, pid)
		if !res.OK() {
			return statusMsg{err: res.Err}
		}
		return statusMsg{text: fmt.Sprintf("%s sent to %d", action, pid)}
	}
}

func groupSignalCmd(ctx context.Context, s *screen.Screen, action signal.Action) tea.Cmd {
	return func() tea.Msg {
		report, err := s.DispatchGroupSignal(ctx, action)
		if err != nil {
			return statusMsg{err: err}
		}
		return statusMsg{text: report.Summary()}
	}
}

func toggleLoggingCmd(s *screen.Screen) tea.Cmd {
	return func() tea.Msg {
		path, err := s.ToggleLogging()
		if err != nil {
			return statusMsg{err: err}
		}
		if path == "" {
			return statusMsg{text: "logging stopped"}
		}
		return statusMsg{text: "logging to " + path}
	}
}

func openScreenCmd(ctx context.Context, mgr *screen.Manager, params postgres.Params) tea.Cmd {
	return func() tea.Msg {
		cur := mgr.Current()
		opts := screen.Options{Params: params}
		if cur != nil {
			opts.Context = cur.Context().ID
		}
		s, err := mgr.Open(ctx, 0, opts)
		if err != nil {
			if s != nil {
				_ = mgr.Close(s.Slot())
			}
			return statusMsg{err: err}
		}
		return statusMsg{text: fmt.Sprintf("screen %d: %s", s.Slot(), s.Params())}
	}
}

// refreshAllCmd refreshes every screen at once, outside their tickers.
func refreshAllCmd(ctx context.Context, mgr *screen.Manager) tea.Cmd {
	return func() tea.Msg {
		return refreshedMsg(mgr.RefreshAll(ctx))
	}
}

func reloadCmd(ctx context.Context, s *screen.Screen) tea.Cmd {
	return func() tea.Msg {
		if err := s.Reload(ctx); err != nil {
			return statusMsg{err: err}
		}
		return statusMsg{text: "configuration reloaded"}
	}
}

func settingsCmd(ctx context.Context, s *screen.Screen) tea.Cmd {
	slot := s.Slot()
	return func() tea.Msg {
		settings, err := s.Settings(ctx)
		return settingsMsg{slot: slot, settings: settings, err: err}
	}
}

func editCmd(ctx context.Context, s *screen.Screen, name string) tea.Cmd {
	return func() tea.Msg {
		cmd, path, err := s.EditCommand(ctx, name)
		if err != nil {
			return editReadyMsg{err: err}
		}
		return editReadyMsg{cmd: cmd, path: path}
	}
}
