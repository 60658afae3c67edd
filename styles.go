package main

import (
	"github.com/bekirdag/flatview/internal/apptable"
	"github.com/charmbracelet/lipgloss"
)

var palette = struct {
	text, textMuted, border, accent, selection, warn lipgloss.AdaptiveColor
}{
	text:      lipgloss.AdaptiveColor{Light: "#4C4F69", Dark: "#CDD6F4"},
	textMuted: lipgloss.AdaptiveColor{Light: "#6C6F85", Dark: "#A6ADC8"},
	border:    lipgloss.AdaptiveColor{Light: "#BCC0CC", Dark: "#585B70"},
	accent:    lipgloss.AdaptiveColor{Light: "#8839EF", Dark: "#CBA6F7"},
	selection: lipgloss.AdaptiveColor{Light: "#DCE0E8", Dark: "#45475A"},
	warn:      lipgloss.AdaptiveColor{Light: "#DF8E1D", Dark: "#F9E2AF"},
}

type styles struct {
	app, topBar, topStatus          lipgloss.Style
	tabActive, tabInactive, tabsRow lipgloss.Style
	tabExcluded                     lipgloss.Style
	panel, panelFocused             lipgloss.Style
	statusBar, statusSeg            lipgloss.Style
	statusHint, toast               lipgloss.Style
	logTitle, logLine               lipgloss.Style
	helpOverlay                     lipgloss.Style
	table                           apptable.Styles
}

func newStyles() styles {
	base := lipgloss.NewStyle().Foreground(palette.text)
	panelBorder := lipgloss.NormalBorder()
	focusedBorder := lipgloss.DoubleBorder()

	table := apptable.DefaultStyles()
	table.Header = table.Header.Copy().Foreground(palette.textMuted)
	table.Separator = table.Separator.Copy().Foreground(palette.border)
	table.Selected = table.Selected.Copy().Background(palette.selection)

	return styles{
		app:          base,
		topBar:       base.Copy().Padding(0, 1),
		topStatus:    base.Copy().Foreground(palette.textMuted),
		tabActive:    base.Copy().Bold(true).Foreground(palette.accent).Padding(0, 1),
		tabInactive:  base.Copy().Foreground(palette.textMuted).Padding(0, 1),
		tabExcluded:  base.Copy().Faint(true).Strikethrough(true).Padding(0, 1),
		tabsRow:      base.Copy().Padding(0, 1),
		panel:        base.Copy().BorderStyle(panelBorder).BorderForeground(palette.border),
		panelFocused: base.Copy().BorderStyle(focusedBorder).BorderForeground(palette.accent),
		statusBar:    base.Copy().Padding(0, 1),
		statusSeg:    base.Copy().Padding(0, 1).MarginRight(1),
		statusHint:   base.Copy().Foreground(palette.textMuted),
		toast:        base.Copy().Bold(true).Foreground(palette.warn),
		logTitle:     base.Copy().Bold(true).Padding(0, 1),
		logLine:      base.Copy().Foreground(palette.textMuted).Padding(0, 1),
		helpOverlay:  base.Copy().Border(lipgloss.RoundedBorder()).BorderForeground(palette.accent).Padding(0, 1),
		table:        table,
	}
}
