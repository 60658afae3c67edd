package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/bekirdag/flatview/internal/apptable"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

const maxLogLines = 200

var writeClipboard = clipboard.WriteAll

type keyMap struct {
	quit          key.Binding
	nextTable     key.Binding
	prevTable     key.Binding
	copyName      key.Binding
	copyCSV       key.Binding
	toggleExclude key.Binding
	toggleSplit   key.Binding
	cycleHeadings key.Binding
	export        key.Binding
	cycleTheme    key.Binding
	toggleHelp    key.Binding
	closeHelp     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		nextTable: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next table"),
		),
		prevTable: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "prev table"),
		),
		copyName: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "copy name"),
		),
		copyCSV: key.NewBinding(
			key.WithKeys("Y"),
			key.WithHelp("Y", "copy csv"),
		),
		toggleExclude: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "exclude"),
		),
		toggleSplit: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "split"),
		),
		cycleHeadings: key.NewBinding(
			key.WithKeys("H"),
			key.WithHelp("H", "headings"),
		),
		export: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "export"),
		),
		cycleTheme: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "theme"),
		),
		toggleHelp: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		closeHelp: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close help"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.nextTable,
		k.prevTable,
		k.copyName,
		k.export,
		k.toggleHelp,
		k.quit,
	}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.nextTable, k.prevTable},
		{k.copyName, k.copyCSV, k.toggleExclude, k.export},
		{k.toggleSplit, k.cycleHeadings},
		{k.cycleTheme, k.toggleHelp, k.quit},
	}
}

type tableEntry struct {
	preview  previewTable
	table    *apptable.Model
	excluded bool
	split    bool
	// parent is set for array tables, which only exist while the parent
	// is split.
	parent *tableEntry
}

func (e *tableEntry) visible() bool {
	return e.parent == nil || e.parent.split
}

func (e *tableEntry) sheet() previewSheet {
	return e.preview.sheet(e.split)
}

type headingSavedMsg struct {
	table   string
	heading string
	err     error
}

type exportWrittenMsg struct {
	path string
	err  error
}

type modelDeps struct {
	source       string
	previews     previewSet
	headings     map[string]string
	headingsType headingsType
	store        *headingStore
	telemetry    *telemetryLogger
	logger       *zap.Logger
	config       *uiConfig
	configPath   string
	strict       bool
}

type model struct {
	width  int
	height int

	styles styles
	keys   keyMap
	help   help.Model

	source       string
	tables       []*tableEntry
	focus        int
	labels       map[string]map[string]string
	headingsType headingsType

	store        *headingStore
	telemetry    *telemetryLogger
	logger       *zap.Logger
	uiConfig     *uiConfig
	uiConfigPath string
	jobRunner    *jobManager

	markdownTheme markdownTheme
	showHelp      bool
	helpView      viewport.Model

	logs       viewport.Model
	logLines   []string
	logsHeight int

	toastMessage string
	toastExpires time.Time
}

func newModel(deps modelDeps) (*model, error) {
	s := newStyles()
	logger := deps.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &model{
		styles:        s,
		keys:          newKeyMap(),
		help:          help.New(),
		source:        deps.source,
		store:         deps.store,
		telemetry:     deps.telemetry,
		logger:        logger,
		labels:        deps.previews.Labels,
		headingsType:  deps.headingsType,
		uiConfig:      deps.config,
		uiConfigPath:  deps.configPath,
		jobRunner:     newJobManager(),
		markdownTheme: currentMarkdownTheme(),
		logsHeight:    5,
		helpView:      viewport.New(80, 20),
		logs:          viewport.New(80, 5),
	}
	if m.uiConfig == nil {
		m.uiConfig = &uiConfig{}
	}
	m.help.ShortSeparator = " │ "
	m.help.Styles.ShortKey = m.styles.statusHint.Copy().Bold(true)
	m.help.Styles.ShortDesc = m.styles.statusHint.Copy()

	if m.headingsType == "" {
		m.headingsType = headingsOCDS
	}

	for _, preview := range deps.previews.Tables {
		name := preview.Key
		if heading := strings.TrimSpace(deps.headings[preview.Key]); heading != "" {
			name = heading
		}
		entry := &tableEntry{preview: preview}
		table, err := apptable.New(preview.Key, m.tableProps(entry, name), apptable.Options{Strict: deps.strict})
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", preview.Key, err)
		}
		table.SetStyles(m.styles.table)
		entry.table = table
		m.tables = append(m.tables, entry)
	}
	for _, entry := range m.tables {
		if entry.preview.Parent != "" {
			entry.parent = m.entryByKey(entry.preview.Parent)
		}
	}
	if entry := m.focusedEntry(); entry != nil && !entry.visible() {
		m.moveFocus(1)
	}
	m.appendLog(fmt.Sprintf("[INFO] Loaded %d tables from %s", len(m.tables), m.source))
	m.appendLog("[TIP] Press r to rename the focused table, ? for help.")
	return m, nil
}

func (m *model) Init() tea.Cmd {
	return nil
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch message := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = message.Width, message.Height
		m.applyLayout()
		return m, nil

	case apptable.ChangeNameMsg:
		return m, m.handleChangeName(message)

	case headingSavedMsg:
		if message.err != nil {
			m.logger.Error("Failed to save heading", zap.String("table", message.table), zap.Error(message.err))
			m.appendLog(fmt.Sprintf("[ERROR] Saving heading for %s: %v", message.table, message.err))
			m.setToast("Could not save table name", 4*time.Second)
			return m, nil
		}
		m.logger.Debug("Heading saved", zap.String("table", message.table), zap.String("heading", message.heading))
		return m, nil

	case exportWrittenMsg:
		return m, m.handleExportWritten(message)

	case jobMsg:
		m.handleJobMessage(message)
		return m, m.jobRunner.Handle(message)

	case tea.KeyMsg:
		if entry := m.focusedEntry(); entry != nil && entry.table.NameMenu() {
			var cmd tea.Cmd
			entry.table, cmd = entry.table.Update(msg)
			return m, cmd
		}
		if m.showHelp {
			return m, m.updateHelp(message)
		}
		if handled, cmd := m.handleGlobalKey(message); handled {
			return m, cmd
		}
	}

	if entry := m.focusedEntry(); entry != nil {
		var cmd tea.Cmd
		entry.table, cmd = entry.table.Update(msg)
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return m, tea.Batch(cmds...)
}

func (m *model) handleGlobalKey(msg tea.KeyMsg) (bool, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return true, tea.Quit
	case key.Matches(msg, m.keys.nextTable):
		m.moveFocus(1)
	case key.Matches(msg, m.keys.prevTable):
		m.moveFocus(-1)
	case key.Matches(msg, m.keys.copyName):
		m.copyFocusedName()
	case key.Matches(msg, m.keys.copyCSV):
		m.copyFocusedCSV()
	case key.Matches(msg, m.keys.toggleExclude):
		m.toggleFocusedExclude()
	case key.Matches(msg, m.keys.toggleSplit):
		m.toggleFocusedSplit()
	case key.Matches(msg, m.keys.cycleHeadings):
		m.cycleHeadingsType()
	case key.Matches(msg, m.keys.export):
		return true, m.exportCmd()
	case key.Matches(msg, m.keys.cycleTheme):
		m.cycleMarkdownTheme()
	case key.Matches(msg, m.keys.toggleHelp):
		m.openHelp()
	default:
		return false, nil
	}
	return true, nil
}

func (m *model) updateHelp(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.closeHelp), key.Matches(msg, m.keys.toggleHelp):
		m.showHelp = false
		return nil
	case key.Matches(msg, m.keys.cycleTheme):
		m.cycleMarkdownTheme()
		return nil
	case key.Matches(msg, m.keys.quit):
		return tea.Quit
	}
	var cmd tea.Cmd
	m.helpView, cmd = m.helpView.Update(msg)
	return cmd
}

// handleChangeName applies a confirmed rename. A blank name falls back to
// the table key.
func (m *model) handleChangeName(msg apptable.ChangeNameMsg) tea.Cmd {
	entry := m.entryByKey(msg.ID)
	if entry == nil {
		m.logger.Warn("Rename for unknown table", zap.String("table", msg.ID))
		return nil
	}
	previous := entry.table.Name()
	heading := strings.TrimSpace(msg.Name)
	name := heading
	if name == "" {
		name = entry.preview.Key
	}
	entry.table.SetName(name)

	m.logger.Info("Table renamed",
		zap.String("table", msg.ID),
		zap.String("from", previous),
		zap.String("to", name))
	m.appendLog(fmt.Sprintf("[INFO] %s renamed to %q", msg.ID, name))
	m.setToast(fmt.Sprintf("Renamed to %s", name), 3*time.Second)
	m.emitTelemetry("table_renamed", msg.ID, map[string]string{
		"from": previous,
		"to":   name,
	})

	store, source, tableKey := m.store, m.source, entry.preview.Key
	return func() tea.Msg {
		err := store.Set(source, tableKey, heading)
		return headingSavedMsg{table: tableKey, heading: heading, err: err}
	}
}

func (m *model) exportCmd() tea.Cmd {
	tables := make([]exportTable, 0, len(m.tables))
	for _, entry := range m.tables {
		if entry.parent != nil && (!entry.parent.split || entry.parent.excluded) {
			continue
		}
		tables = append(tables, exportTable{
			Key:      entry.preview.Key,
			Heading:  entry.table.Name(),
			Excluded: entry.excluded,
			Split:    entry.split,
			Headers:  m.entryHeadings(entry),
		})
		if !entry.split || entry.excluded {
			continue
		}
		// array tables without a preview of their own
		for _, child := range entry.preview.ChildTables {
			if m.entryByKey(child) == nil {
				tables = append(tables, exportTable{Key: child})
			}
		}
	}
	opts := buildFlattenOptions(tables)
	source := m.source
	m.emitTelemetry("export_requested", "", map[string]string{
		"tables":   fmt.Sprint(len(opts.Selection)),
		"excluded": fmt.Sprint(len(opts.Exclude)),
	})
	return func() tea.Msg {
		path, err := writeFlattenOptions(source, opts)
		return exportWrittenMsg{path: path, err: err}
	}
}

func (m *model) handleExportWritten(msg exportWrittenMsg) tea.Cmd {
	if msg.err != nil {
		m.logger.Error("Export failed", zap.Error(msg.err))
		m.appendLog(fmt.Sprintf("[ERROR] Export failed: %v", msg.err))
		m.setToast("Export failed", 4*time.Second)
		return nil
	}
	m.logger.Info("Flatten options written", zap.String("path", msg.path))
	m.appendLog(fmt.Sprintf("[INFO] Flatten options written to %s", msg.path))

	argv := m.uiConfig.ExportCommand
	if len(argv) == 0 {
		m.setToast("Flatten options written", 3*time.Second)
		return nil
	}
	if m.jobRunner.Running() {
		m.setToast("Export queued", 3*time.Second)
	} else {
		m.setToast("Export started", 3*time.Second)
	}
	optionsPath := msg.path
	return m.jobRunner.Enqueue(jobRequest{
		title:   "export",
		dir:     m.source,
		command: argv[0],
		args:    argv[1:],
		env: []string{
			"FLATVIEW_OPTIONS=" + optionsPath,
			"FLATVIEW_SOURCE=" + m.source,
		},
		onFinish: func(err error) {
			if err != nil {
				m.emitTelemetry("export_failed", "", map[string]string{"options": optionsPath, "error": err.Error()})
				return
			}
			m.emitTelemetry("export_finished", "", map[string]string{"options": optionsPath})
		},
	})
}

func (m *model) handleJobMessage(msg jobMsg) {
	switch message := msg.(type) {
	case jobStartedMsg:
		m.logger.Info("Job started", zap.String("job", message.Title))
		m.appendLog(fmt.Sprintf("[JOB] %s started", message.Title))
	case jobLogMsg:
		m.appendLog(message.Line)
	case jobFinishedMsg:
		if message.Err != nil {
			m.logger.Error("Job failed", zap.String("job", message.Title), zap.Error(message.Err))
			m.appendLog(fmt.Sprintf("[JOB] %s failed: %v", message.Title, message.Err))
			m.setToast(fmt.Sprintf("%s failed", message.Title), 4*time.Second)
			return
		}
		m.logger.Info("Job finished", zap.String("job", message.Title))
		m.appendLog(fmt.Sprintf("[JOB] %s finished", message.Title))
		m.setToast(fmt.Sprintf("%s finished", message.Title), 3*time.Second)
	}
}

func (m *model) focusedEntry() *tableEntry {
	if m.focus < 0 || m.focus >= len(m.tables) {
		return nil
	}
	return m.tables[m.focus]
}

func (m *model) entryByKey(key string) *tableEntry {
	for _, entry := range m.tables {
		if entry.table.ID() == key {
			return entry
		}
	}
	return nil
}

// moveFocus steps over array tables whose parent is not split.
func (m *model) moveFocus(delta int) {
	n := len(m.tables)
	if n == 0 {
		return
	}
	focus := m.focus
	for range m.tables {
		focus = ((focus+delta)%n + n) % n
		if m.tables[focus].visible() {
			m.focus = focus
			return
		}
	}
}

func (m *model) copyFocusedName() {
	entry := m.focusedEntry()
	if entry == nil {
		m.setToast("No table selected", 3*time.Second)
		return
	}
	if err := writeClipboard(entry.table.Name()); err != nil {
		m.appendLog(fmt.Sprintf("Failed to copy name: %v", err))
		m.setToast("Clipboard unavailable", 4*time.Second)
		return
	}
	m.setToast("Table name copied", 3*time.Second)
}

func (m *model) copyFocusedCSV() {
	entry := m.focusedEntry()
	if entry == nil {
		m.setToast("No table selected", 3*time.Second)
		return
	}
	props := entry.table.Props()
	content, err := tableCSV(props.Headers, props.Data)
	if err == nil {
		err = writeClipboard(content)
	}
	if err != nil {
		m.appendLog(fmt.Sprintf("Failed to copy table: %v", err))
		m.setToast("Clipboard unavailable", 4*time.Second)
		return
	}
	m.setToast("Table copied as CSV", 3*time.Second)
}

func (m *model) toggleFocusedExclude() {
	entry := m.focusedEntry()
	if entry == nil {
		return
	}
	entry.excluded = !entry.excluded
	if entry.excluded {
		m.setToast(fmt.Sprintf("%s excluded from export", entry.table.Name()), 3*time.Second)
		return
	}
	m.setToast(fmt.Sprintf("%s included in export", entry.table.Name()), 3*time.Second)
}

func (m *model) toggleFocusedSplit() {
	entry := m.focusedEntry()
	if entry == nil {
		return
	}
	if !entry.preview.canSplit() {
		m.setToast(fmt.Sprintf("%s has no array tables", entry.table.Name()), 3*time.Second)
		return
	}
	entry.split = !entry.split
	if err := m.refreshEntry(entry); err != nil {
		entry.split = !entry.split
		m.logger.Warn("Cannot switch preview", zap.String("table", entry.preview.Key), zap.Error(err))
		m.appendLog(fmt.Sprintf("[ERROR] %s: %v", entry.preview.Key, err))
		m.setToast("Preview is malformed", 4*time.Second)
		return
	}

	state := "combined"
	if entry.split {
		state = "split"
	}
	m.logger.Info("Table split changed", zap.String("table", entry.preview.Key), zap.Bool("split", entry.split))
	m.appendLog(fmt.Sprintf("[INFO] %s %s", entry.preview.Key, state))
	m.setToast(fmt.Sprintf("%s %s", entry.table.Name(), state), 3*time.Second)
	m.emitTelemetry("table_split", entry.preview.Key, map[string]string{"split": fmt.Sprint(entry.split)})
}

func (m *model) cycleHeadingsType() {
	previous := m.headingsType
	m.headingsType = nextHeadingsType(m.headingsType)
	var errs []string
	for _, entry := range m.tables {
		if err := m.refreshEntry(entry); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", entry.preview.Key, err))
		}
	}
	if len(errs) > 0 {
		m.headingsType = previous
		for _, entry := range m.tables {
			_ = m.refreshEntry(entry)
		}
		m.logger.Warn("Cannot apply headings", zap.Strings("errors", errs))
		m.setToast("Headings clash with additional columns", 4*time.Second)
		return
	}

	m.uiConfig.HeadingsType = string(m.headingsType)
	if m.uiConfigPath != "" {
		if err := saveUIConfig(m.uiConfig, m.uiConfigPath); err != nil {
			m.logger.Warn("Failed to save ui config", zap.Error(err))
		}
	}
	m.logger.Info("Headings changed", zap.String("headings_type", string(m.headingsType)))
	m.setToast(fmt.Sprintf("Headings: %s", m.headingsType), 3*time.Second)
	m.emitTelemetry("headings_changed", "", map[string]string{"headings_type": string(m.headingsType)})
}

func (m *model) entryHeadings(entry *tableEntry) map[string]string {
	return columnHeadings(m.headingsType, entry.sheet().Headers, m.labels)
}

// tableProps builds the props for the entry's current sheet and headings.
func (m *model) tableProps(entry *tableEntry, name string) apptable.Props {
	sheet := entry.sheet()
	headers, additional := applyHeadings(sheet.Headers, entry.preview.Additional, m.entryHeadings(entry))
	return apptable.Props{
		Name:              name,
		Headers:           headers,
		Data:              sheet.Rows,
		AdditionalColumns: additional,
	}
}

func (m *model) refreshEntry(entry *tableEntry) error {
	return entry.table.SetProps(m.tableProps(entry, entry.table.Name()))
}

func (m *model) cycleMarkdownTheme() {
	m.markdownTheme = nextMarkdownTheme(m.markdownTheme)
	setMarkdownTheme(m.markdownTheme)
	m.uiConfig.Theme = m.markdownTheme.String()
	if m.uiConfigPath != "" {
		if err := saveUIConfig(m.uiConfig, m.uiConfigPath); err != nil {
			m.logger.Warn("Failed to save ui config", zap.Error(err))
		}
	}
	if m.showHelp {
		m.helpView.SetContent(RenderMarkdown(helpMarkdown))
	}
	m.setToast(fmt.Sprintf("Theme: %s", m.markdownTheme), 3*time.Second)
}

func (m *model) openHelp() {
	m.showHelp = true
	m.helpView.SetContent(RenderMarkdown(helpMarkdown))
	m.helpView.GotoTop()
}

func (m *model) emitTelemetry(event, table string, extra map[string]string) {
	if m.telemetry == nil {
		return
	}
	m.telemetry.Emit(telemetryEvent{
		Event:     event,
		Source:    m.source,
		Table:     table,
		ExtraJSON: extra,
	})
}

func (m *model) appendLog(line string) {
	m.logLines = append(m.logLines, line)
	if len(m.logLines) > maxLogLines {
		m.logLines = m.logLines[len(m.logLines)-maxLogLines:]
	}
	rendered := make([]string, len(m.logLines))
	for i, l := range m.logLines {
		rendered[i] = m.styles.logLine.Render(l)
	}
	m.logs.SetContent(strings.Join(rendered, "\n"))
	m.logs.GotoBottom()
}

func (m *model) setToast(message string, ttl time.Duration) {
	m.toastMessage = message
	m.toastExpires = time.Now().Add(ttl)
}

func (m *model) applyLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	// top bar, tabs, status bar, log title and both panels' borders
	chrome := 9
	bodyHeight := m.height - chrome - m.logsHeight
	if bodyHeight < 4 {
		bodyHeight = 4
	}
	for _, entry := range m.tables {
		entry.table.SetSize(m.width-4, bodyHeight)
	}
	m.logs.Width = m.width - 4
	m.logs.Height = m.logsHeight
	m.helpView.Width = m.width - 4
	m.helpView.Height = m.height - 4
	setMarkdownWordWrap(m.width - 8)
}

func (m *model) View() string {
	if m.showHelp {
		return m.styles.helpOverlay.Render(m.helpView.View())
	}

	segments := []string{
		"flatview",
		m.styles.topStatus.Render(fmt.Sprintf("%s • %d tables", m.source, len(m.tables))),
		m.styles.statusSeg.Render("headings: " + string(m.headingsType)),
	}
	if entry := m.focusedEntry(); entry != nil && entry.split {
		segments = append(segments, m.styles.statusSeg.Render("split"))
	}
	top := m.styles.topBar.Render(lipgloss.JoinHorizontal(lipgloss.Top, segments...))

	body := m.styles.statusHint.Render("No tables")
	if entry := m.focusedEntry(); entry != nil {
		body = entry.table.View()
		if sheet := entry.sheet(); sheet.TotalRows > len(sheet.Rows) {
			body += "\n" + m.styles.statusHint.Render(fmt.Sprintf("showing %d of %d rows", len(sheet.Rows), sheet.TotalRows))
		}
	}
	panel := m.styles.panelFocused
	if m.width > 2 {
		panel = panel.Copy().Width(m.width - 2)
	}

	logPanel := m.styles.panel
	if m.width > 2 {
		logPanel = logPanel.Copy().Width(m.width - 2)
	}
	logs := logPanel.Render(lipgloss.JoinVertical(lipgloss.Left,
		m.styles.logTitle.Render("Log"),
		m.logs.View(),
	))

	return m.styles.app.Render(lipgloss.JoinVertical(lipgloss.Left,
		top,
		m.tabsView(),
		panel.Render(body),
		logs,
		m.statusView(),
	))
}

func (m *model) tabsView() string {
	tabs := make([]string, 0, len(m.tables))
	for idx, entry := range m.tables {
		if !entry.visible() {
			continue
		}
		style := m.styles.tabInactive
		switch {
		case idx == m.focus:
			style = m.styles.tabActive
		case entry.excluded:
			style = m.styles.tabExcluded
		}
		tabs = append(tabs, style.Render(entry.table.Name()))
	}
	return m.styles.tabsRow.Render(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
}

func (m *model) statusView() string {
	if m.toastMessage != "" && time.Now().Before(m.toastExpires) {
		return m.styles.statusBar.Render(m.styles.toast.Render(m.toastMessage))
	}
	if entry := m.focusedEntry(); entry != nil && entry.table.NameMenu() {
		return m.styles.statusBar.Render(m.help.ShortHelpView([]key.Binding{
			entry.table.Keys().Confirm,
			entry.table.Keys().Cancel,
		}))
	}
	return m.styles.statusBar.Render(m.help.View(m.keys))
}
