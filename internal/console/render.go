package console

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/shadowtrace/shadowtrace-cli/api/schemas"
	"github.com/shadowtrace/shadowtrace-cli/internal/compliance"
)

// Graph canvas size in cells.
const (
	canvasWidth  = 61
	canvasHeight = 21
)

func (t *Theme) newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(t.Border).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return t.Header
			}
			return t.Cell
		})
}

// RenderMetrics draws the three stat cards and the risk level breakdown.
func (t *Theme) RenderMetrics(m schemas.Metrics) string {
	risk := m.Band
	if !m.Ready {
		risk = fmt.Sprintf("%s (%d%%)", m.Band, m.RiskScore)
	}
	cards := lipgloss.JoinHorizontal(lipgloss.Top,
		t.card("Privacy Risk", risk),
		t.card("Discovered Points", strconv.Itoa(m.DiscoveredPoints)),
		t.card("Critical Leaks", strconv.Itoa(m.CriticalLeaks)),
	)
	if m.Ready {
		return cards
	}

	var parts []string
	for _, level := range schemas.RiskLevels() {
		if n := m.ByRiskLevel[level]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", t.Risk(level), n))
		}
	}
	lines := []string{cards}
	if len(parts) > 0 {
		lines = append(lines, t.Label.Render("By risk level:")+" "+strings.Join(parts, "  "))
	}
	if len(m.ByPIICategory) > 0 {
		lines = append(lines, t.Label.Render("By PII category:")+" "+formatCounts(m.ByPIICategory))
	}
	if m.DroppedRecords > 0 {
		lines = append(lines, t.Warning.Render(fmt.Sprintf("%d malformed record(s) were dropped from the response", m.DroppedRecords)))
	}
	return strings.Join(lines, "\n")
}

func (t *Theme) card(label, value string) string {
	return t.Card.Render(t.Label.Render(strings.ToUpper(label)) + "\n" + t.Title.Render(value))
}

func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %d", k, counts[k]))
	}
	return strings.Join(parts, ", ")
}

// RenderReport draws the exposure table of a result.
func (t *Theme) RenderReport(result *schemas.ScanResult) string {
	if result == nil {
		return t.Muted.Render("No results yet. Run `scan <email|username>`.")
	}
	title := t.Title.Render(fmt.Sprintf("Exposures for %s", result.Target))
	if len(result.Exposures) == 0 {
		return title + "\n" + t.Success.Render("No exposures found.")
	}

	tbl := t.newTable("#", "PLATFORM", "MATCH", "RISK", "PII FOUND", "NOTES")
	for i, e := range result.Exposures {
		pii := strings.Join(e.PIIFound, "\n")
		if pii == "" {
			pii = "-"
		}
		notes := strings.Join(e.ComplianceNotes, "\n")
		if notes == "" {
			notes = "-"
		}
		tbl.Row(strconv.Itoa(i+1), e.Platform, e.Match, t.Risk(e.RiskLevel), pii, notes)
	}
	return title + "\n" + tbl.Render()
}

// RenderHistory draws the history ledger.
func (t *Theme) RenderHistory(entries []schemas.HistoryEntry) string {
	if len(entries) == 0 {
		return t.Muted.Render("No scans recorded yet.")
	}
	tbl := t.newTable("ID", "TIME", "QUERY", "SCORE", "FINDINGS")
	for _, h := range entries {
		tbl.Row(strconv.FormatInt(h.ID, 10), h.Timestamp, h.Query, strconv.Itoa(h.Score), strconv.Itoa(h.Findings))
	}
	return tbl.Render()
}

// RenderCompliance draws the DPDP checks and the mapped violations.
func (t *Theme) RenderCompliance(checks []compliance.Check, violations []compliance.Violation) string {
	tbl := t.newTable("SECTION", "RULE", "STATUS", "DESCRIPTION")
	for _, c := range checks {
		status := t.Success.Render(c.Status)
		if c.Failed() {
			status = t.Error.Render(c.Status)
		}
		tbl.Row(c.Section, c.Rule, status, c.Description)
	}
	out := t.Title.Render("DPDP Act compliance") + "\n" + tbl.Render()
	if len(violations) == 0 {
		return out
	}

	vt := t.newTable("SECTION", "VIOLATION", "DATA", "PLATFORM", "PENALTY")
	for _, v := range violations {
		vt.Row(v.Section, v.Violation, v.DataType, v.Platform, v.Penalty)
	}
	return out + "\n" + t.Title.Render("Mapped violations") + "\n" + vt.Render()
}

// RenderGraph plots the correlation layout on a character canvas followed by a legend.
func (t *Theme) RenderGraph(layout schemas.Layout) string {
	if len(layout.Nodes) == 0 {
		return t.Muted.Render("No correlations to draw.")
	}

	maxX, maxY := 1.0, 1.0
	for _, n := range layout.Nodes {
		maxX = math.Max(maxX, math.Abs(n.Position.X))
		maxY = math.Max(maxY, math.Abs(n.Position.Y))
	}
	cx, cy := canvasWidth/2, canvasHeight/2
	cell := func(p schemas.Point) (int, int) {
		col := cx + int(math.Round(p.X/maxX*float64(cx-1)))
		row := cy + int(math.Round(p.Y/maxY*float64(cy-1)))
		return col, row
	}

	grid := make([][]rune, canvasHeight)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", canvasWidth))
	}
	for _, e := range layout.Edges {
		from, ok := layout.NodeByID(e.From)
		to, ok2 := layout.NodeByID(e.To)
		if !ok || !ok2 {
			continue
		}
		x0, y0 := cell(from.Position)
		x1, y1 := cell(to.Position)
		drawLine(grid, x0, y0, x1, y1, '.')
	}
	for i, n := range layout.Nodes {
		col, row := cell(n.Position)
		grid[row][col] = nodeGlyph(i)
	}
	grid[cy][cx] = '@'

	var b strings.Builder
	title := "Identity correlation graph"
	if layout.Fallback {
		title += " (demonstration data)"
	}
	b.WriteString(t.Title.Render(title))
	b.WriteString("\n")
	for _, line := range grid {
		b.WriteString(strings.TrimRight(string(line), " "))
		b.WriteString("\n")
	}
	b.WriteString(fmt.Sprintf("%s %s\n", t.Label.Render("@"), layout.Root.Label))
	for i, n := range layout.Nodes {
		b.WriteString(fmt.Sprintf("%s %s %s %s\n",
			t.Label.Render(string(nodeGlyph(i))),
			n.Label,
			t.Muted.Render("("+n.Category+")"),
			t.Muted.Render(fmt.Sprintf("x=%.1f y=%.1f angle=%.2f", n.Position.X, n.Position.Y, n.Angle))))
	}
	return strings.TrimRight(b.String(), "\n")
}

func nodeGlyph(i int) rune {
	const glyphs = "123456789abcdefghijklmnopqrstuvwxyz"
	if i < len(glyphs) {
		return rune(glyphs[i])
	}
	return '*'
}

// drawLine rasterizes a segment with Bresenham's algorithm, skipping the endpoints.
func drawLine(grid [][]rune, x0, y0, x1, y1 int, r rune) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	x, y := x0, y0
	for {
		if (x != x0 || y != y0) && (x != x1 || y != y1) &&
			y >= 0 && y < len(grid) && x >= 0 && x < len(grid[y]) {
			grid[y][x] = r
		}
		if x == x1 && y == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// RenderStatus draws a one-line session summary.
func (t *Theme) RenderStatus(status schemas.SessionStatus, token string, err error) string {
	line := t.Label.Render("Status:") + " " + t.Status(status)
	if token != "" {
		line += " " + t.Muted.Render(fmt.Sprintf("(%s)", token))
	}
	if err != nil {
		line += "\n" + t.Error.Render("Error: ") + err.Error()
	}
	return line
}
