package apptable

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	maxCellWidth = 28
	ellipsis     = "…"
)

// Styles holds the lipgloss styles used to render the table.
type Styles struct {
	Title           lipgloss.Style
	Header          lipgloss.Style
	HeaderHighlight lipgloss.Style
	Cell            lipgloss.Style
	CellHighlight   lipgloss.Style
	Selected        lipgloss.Style
	Separator       lipgloss.Style
	Popover         lipgloss.Style
	PopoverTitle    lipgloss.Style
	Hint            lipgloss.Style
	Empty           lipgloss.Style
}

// DefaultStyles returns the built-in adaptive color scheme.
func DefaultStyles() Styles {
	base := lipgloss.NewStyle()
	accent := lipgloss.AdaptiveColor{Light: "#8839EF", Dark: "#CBA6F7"}
	muted := lipgloss.AdaptiveColor{Light: "#6C6F85", Dark: "#A6ADC8"}
	highlightBg := lipgloss.AdaptiveColor{Light: "#EFE3FD", Dark: "#3B2F52"}
	selection := lipgloss.AdaptiveColor{Light: "#DCE0E8", Dark: "#45475A"}

	return Styles{
		Title:           base.Copy().Bold(true).Padding(0, 1),
		Header:          base.Copy().Bold(true).Foreground(muted).Padding(0, 1),
		HeaderHighlight: base.Copy().Bold(true).Foreground(accent).Background(highlightBg).Padding(0, 1),
		Cell:            base.Copy().Padding(0, 1),
		CellHighlight:   base.Copy().Background(highlightBg).Padding(0, 1),
		Selected:        base.Copy().Background(selection),
		Separator:       base.Copy().Foreground(muted),
		Popover:         base.Copy().Border(lipgloss.RoundedBorder()).BorderForeground(accent).Padding(0, 1),
		PopoverTitle:    base.Copy().Bold(true),
		Hint:            base.Copy().Faint(true),
		Empty:           base.Copy().Faint(true).Padding(0, 1),
	}
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render(m.props.Name))
	b.WriteString("\n")
	if m.nameMenu {
		b.WriteString(m.renameView())
		b.WriteString("\n")
	}
	b.WriteString(m.gridView())
	return b.String()
}

func (m *Model) renameView() string {
	body := lipgloss.JoinVertical(lipgloss.Left,
		m.styles.PopoverTitle.Render("Rename table"),
		m.nameInput.View(),
		m.styles.Hint.Render("enter save • esc cancel"),
	)
	return m.styles.Popover.Render(body)
}

func (m *Model) gridView() string {
	headers := m.props.Headers
	if len(headers) == 0 {
		return m.styles.Empty.Render("No columns")
	}

	highlighted := make(map[int]bool)
	for _, idx := range m.HighlightedCols() {
		highlighted[idx] = true
	}
	widths := m.columnWidths()
	visible := m.visibleColumns(widths)

	var b strings.Builder
	sep := m.styles.Separator.Render("│")

	cells := make([]string, 0, len(visible))
	for _, col := range visible {
		style := m.styles.Header
		if highlighted[col] {
			style = m.styles.HeaderHighlight
		}
		cells = append(cells, style.Copy().Width(widths[col]).Render(truncate(headers[col], widths[col]-2)))
	}
	b.WriteString(strings.Join(cells, sep))
	b.WriteString("\n")

	total := len(visible) - 1
	for _, col := range visible {
		total += widths[col]
	}
	b.WriteString(m.styles.Separator.Render(strings.Repeat("─", max(total, 0))))

	if len(m.props.Data) == 0 {
		b.WriteString("\n")
		b.WriteString(m.styles.Empty.Render("No rows"))
		return b.String()
	}

	start, end := m.rowWindow()
	for r := start; r < end; r++ {
		row := m.props.Data[r]
		cells = cells[:0]
		for _, col := range visible {
			style := m.styles.Cell
			if highlighted[col] {
				style = m.styles.CellHighlight
			}
			if r == m.cursor {
				style = style.Copy().Inherit(m.styles.Selected)
			}
			cells = append(cells, style.Copy().Width(widths[col]).Render(truncate(cellAt(row, col), widths[col]-2)))
		}
		b.WriteString("\n")
		b.WriteString(strings.Join(cells, sep))
	}
	return b.String()
}

// columnWidths includes the one-cell padding on each side.
func (m *Model) columnWidths() []int {
	widths := make([]int, len(m.props.Headers))
	for i, header := range m.props.Headers {
		widths[i] = lipgloss.Width(header)
	}
	start, end := m.rowWindow()
	for r := start; r < end; r++ {
		for i := range widths {
			if w := lipgloss.Width(cellAt(m.props.Data[r], i)); w > widths[i] {
				widths[i] = w
			}
		}
	}
	for i := range widths {
		if widths[i] > maxCellWidth {
			widths[i] = maxCellWidth
		}
		widths[i] += 2
	}
	return widths
}

func (m *Model) visibleColumns(widths []int) []int {
	var cols []int
	used := 0
	for col := m.colOffset; col < len(widths); col++ {
		next := used + widths[col]
		if len(cols) > 0 {
			next++
		}
		if m.width > 0 && len(cols) > 0 && next > m.width {
			break
		}
		cols = append(cols, col)
		used = next
	}
	return cols
}

func (m *Model) bodyHeight() int {
	// title, header and separator lines
	h := m.height - 3
	if m.nameMenu {
		h -= 5
	}
	if h < 1 {
		h = 1
	}
	return h
}

func (m *Model) rowWindow() (int, int) {
	n := len(m.props.Data)
	size := m.bodyHeight()
	if n <= size {
		return 0, n
	}
	start := m.cursor - size/2
	if start < 0 {
		start = 0
	}
	if start+size > n {
		start = n - size
	}
	return start, start + size
}

// cellAt pads short rows with blanks; extra cells past the headers are never
// asked for.
func cellAt(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.ReplaceAll(row[col], "\n", " ")
}

func truncate(value string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(value) <= width {
		return value
	}
	runes := []rune(value)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + ellipsis
}
