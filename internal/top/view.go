package top

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rileyhilliard/pgcenter/internal/errors"
	"github.com/rileyhilliard/pgcenter/internal/pgconfig"
	"github.com/rileyhilliard/pgcenter/internal/postgres"
	"github.com/rileyhilliard/pgcenter/internal/screen"
	"github.com/rileyhilliard/pgcenter/internal/stat"
	"github.com/rileyhilliard/pgcenter/internal/ui"
)

// maxColumnWidth caps text columns such as queries and relation names.
const maxColumnWidth = 48

// sparklineWidth is the number of CPU samples drawn in the header.
const sparklineWidth = 20

// renderDashboard renders the complete dashboard view.
func (m Model) renderDashboard() string {
	if m.showHelp {
		return m.renderHelpOverlay()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	if m.viewMode == ViewSettings {
		b.WriteString(m.settings.View())
	} else {
		b.WriteString(m.renderBody())
	}
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

// renderHeader renders the host, connection and activity lines and the
// screen tabs. It always produces headerHeight lines.
func (m Model) renderHeader() string {
	t, _ := m.Current()
	lines := []string{
		m.renderSystemLine(),
		m.renderCPULine(),
		m.renderConnLine(t),
		m.renderActivityLine(t),
		m.renderAutovacuumLine(t),
		m.renderTabs(t),
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderSystemLine() string {
	title := TitleStyle.Render("pgcenter")
	now := m.now()
	parts := []string{now.Format("2006-01-02 15:04:05")}

	h := m.host
	if !h.At.IsZero() && h.Err == nil {
		if h.Host != "" {
			parts = append(parts, h.Host)
		}
		parts = append(parts,
			fmt.Sprintf("up %s (booted %s)", formatUptime(h.Uptime), formatBoot(h.Uptime, now)),
			fmt.Sprintf("load average: %.2f, %.2f, %.2f", h.Load.One, h.Load.Five, h.Load.Fifteen))
	}
	line := title + ": " + ValueStyle.Render(strings.Join(parts, ", "))
	if spark := ui.RenderSparkline(m.history.Last(sparklineWidth), sparklineWidth); spark != "" {
		line += "  " + spark
	}
	return line
}

func (m Model) renderCPULine() string {
	h := m.host
	switch {
	case m.sampler == nil:
		return LabelStyle.Render("%cpu: host statistics unavailable")
	case h.Err != nil:
		return LabelStyle.Render("%cpu: ") + ErrorStyle.Render(errors.Short(h.Err))
	case h.At.IsZero():
		return LabelStyle.Render("%cpu: sampling...")
	}
	c := h.CPU
	used := busy(c)
	return LabelStyle.Render("%cpu: ") + cpuStyle(used).Render(fmt.Sprintf("%5.1f", used)) +
		LabelStyle.Render(fmt.Sprintf(" busy, %.1f us, %.1f sy, %.1f ni, %.1f id, %.1f wa, %.1f hi, %.1f si, %.1f st (%d cores)",
			c.User, c.System, c.Nice, c.Idle, c.IOWait, c.HardIRQ, c.SoftIRQ, c.Steal, h.Cores))
}

func (m Model) renderConnLine(t screen.Table) string {
	s := m.mgr.Current()
	if s == nil {
		return LabelStyle.Render("conn: no screens open, press N to connect")
	}

	state := OKStyle.Render("connected")
	if !s.Connected() {
		state = ErrorStyle.Render("disconnected")
	}
	parts := []string{s.Params().String()}
	if t.ServerVersion > 0 {
		parts = append(parts, "PostgreSQL "+postgres.FormatVersion(t.ServerVersion))
	}
	parts = append(parts, "refresh "+s.Interval().String())

	line := LabelStyle.Render("conn: ") + ValueStyle.Render(strings.Join(parts, ", ")) + " " + state
	if m.paused {
		line += " " + WarningStyle.Render("[paused]")
	}
	if s.Logging() {
		line += " " + WarningStyle.Render("[logging]")
	}
	return line
}

func (m Model) renderActivityLine(t screen.Table) string {
	if t.Summary == nil {
		return LabelStyle.Render("activity: -")
	}
	a := t.Summary
	return LabelStyle.Render("activity: ") + ValueStyle.Render(fmt.Sprintf(
		"%d total, %d idle, %d idle in xact, %d active, %d waiting, %d others",
		a.Total, a.Idle, a.IdleInXact, a.Active, a.Waiting, a.Others))
}

func (m Model) renderAutovacuumLine(t screen.Table) string {
	if t.Summary == nil {
		return LabelStyle.Render("autovacuum: -")
	}
	a := t.Summary
	longest := a.LongestAutovacuum
	if longest == "" {
		longest = "-"
	}
	return LabelStyle.Render("autovacuum: ") + ValueStyle.Render(fmt.Sprintf(
		"%d workers, %d anti-wraparound, longest %s", a.Autovacuum, a.AutovacuumWraparound, longest))
}

// renderTabs renders one tab per open screen followed by the active context.
func (m Model) renderTabs(t screen.Table) string {
	cur := m.mgr.Current()
	var tabs []string
	for _, s := range m.mgr.Screens() {
		label := fmt.Sprintf("%d %s", s.Slot(), s.Context().ID)
		if cur != nil && s.Slot() == cur.Slot() {
			tabs = append(tabs, ActiveTabStyle.Render(label))
		} else {
			tabs = append(tabs, TabStyle.Render(label))
		}
	}
	line := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
	if cur == nil {
		return line
	}

	c := cur.Context()
	info := []string{c.Title}
	if c.ID == stat.LongActivity {
		info = append(info, "min age "+cur.MinAge())
	}
	info = append(info, "signal groups: "+cur.Groups().Describe())
	return line + "  " + TitleStyle.Render(strings.Join(info, ", "))
}

// renderBody renders the table of the current screen.
func (m Model) renderBody() string {
	s := m.mgr.Current()
	if s == nil {
		return ""
	}
	t, ok := m.Current()
	if !ok {
		return LabelStyle.Render("waiting for the first refresh...")
	}

	height := m.bodyHeight()
	var lines []string
	if t.Err != nil {
		lines = append(lines, ErrorStyle.Render(ui.SymbolFail+" "+errors.Short(t.Err)))
		height--
	}
	if len(t.Columns) > 0 {
		lines = append(lines, renderTable(t, m.offset, height, m.width)...)
	}
	return strings.Join(lines, "\n")
}

// renderTable renders the header and the visible rows of t. A zero width
// renders every column.
func renderTable(t screen.Table, offset, height, width int) []string {
	rows := t.Rows
	if offset > len(rows) {
		offset = len(rows)
	}
	rows = rows[offset:]
	if height > 1 && len(rows) > height-1 {
		rows = rows[:height-1]
	}

	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = make([]string, len(t.Columns))
		for j := range t.Columns {
			if j < len(r.Values) {
				cells[i][j] = formatValue(r.Values[j])
			}
		}
	}

	widths := columnWidths(t, cells)
	visible := len(widths)
	if width > 0 {
		used := 0
		for i, w := range widths {
			if used+w > width && i > 0 {
				visible = i
				break
			}
			used += w + 1
		}
	}

	numeric := numericColumns(t)
	sortKey := -1
	if t.Context.Orderable() {
		sortKey = t.Order.Key
	}

	header := make([]string, visible)
	for j := 0; j < visible; j++ {
		name := t.Columns[j]
		if j == sortKey {
			arrow := "▲"
			if t.Order.Desc {
				arrow = "▼"
			}
			header[j] = SortedHeaderStyle.Render(fit(name+arrow, widths[j], numeric[j]))
			continue
		}
		header[j] = TableHeaderStyle.Render(fit(name, widths[j], numeric[j]))
	}

	out := make([]string, 0, len(rows)+1)
	out = append(out, strings.Join(header, TableHeaderStyle.Render(" ")))
	baseline := allFresh(rows)
	for i, r := range rows {
		parts := make([]string, visible)
		for j := 0; j < visible; j++ {
			parts[j] = fit(cells[i][j], widths[j], numeric[j])
		}
		line := strings.Join(parts, " ")
		switch {
		case r.Reset:
			line = ResetRowStyle.Render(line)
		case r.Fresh && !baseline:
			line = FreshRowStyle.Render(line)
		}
		out = append(out, line)
	}
	return out
}

func columnWidths(t screen.Table, cells [][]string) []int {
	widths := make([]int, len(t.Columns))
	for j, name := range t.Columns {
		// room for the sort arrow
		widths[j] = len(name) + 1
	}
	for _, row := range cells {
		for j, c := range row {
			if w := lipgloss.Width(c); w > widths[j] {
				widths[j] = w
			}
		}
	}
	for j := range widths {
		if widths[j] > maxColumnWidth {
			widths[j] = maxColumnWidth
		}
	}
	return widths
}

// numericColumns reports which columns are right aligned.
func numericColumns(t screen.Table) []bool {
	out := make([]bool, len(t.Columns))
	for j := range t.Columns {
		if j < len(t.Context.Columns) {
			out[j] = t.Context.Columns[j].Kind != stat.Text
		}
	}
	return out
}

func allFresh(rows []stat.DiffRow) bool {
	for _, r := range rows {
		if !r.Fresh {
			return false
		}
	}
	return true
}

// renderFooter renders the prompt, the latest status message, or key hints.
func (m Model) renderFooter() string {
	if m.promptKind != promptNone {
		return m.prompt.View()
	}
	if text, isErr := m.Status(); text != "" {
		if isErr {
			return ErrorStyle.Render(ui.SymbolFail + " " + text)
		}
		return StatusStyle.Render(text)
	}
	if m.viewMode == ViewSettings {
		return LabelStyle.Render("up/down scroll | P or esc back")
	}
	hints := []string{
		"q quit",
		"? help",
		"←→ sort",
		"-/+ interval",
		"N new screen",
	}
	return LabelStyle.Render(strings.Join(hints, " | "))
}

// showSettings fills the settings viewport with a pg_settings listing.
func (m *Model) showSettings(slot int, settings []pgconfig.Setting) {
	if !m.settingsReady {
		m.resizeSettings()
	}
	columns := []ui.TableColumn{
		{Title: "name", Width: 40},
		{Title: "setting", Width: 30},
		{Title: "unit", Width: 6},
		{Title: "category", Width: 50},
	}
	rows := make([][]string, len(settings))
	for i, s := range settings {
		rows[i] = []string{s.Name, s.Value, s.Unit, s.Category}
	}
	title := TitleStyle.Render(fmt.Sprintf("screen %d: pg_settings (%d)", slot, len(settings)))
	m.settings.SetContent(title + "\n" + ui.RenderSimpleTable(columns, rows))
	m.settings.GotoTop()
	m.viewMode = ViewSettings
}
