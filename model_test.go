package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bekirdag/flatview/internal/apptable"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPreviews() previewSet {
	return previewSet{Tables: []previewTable{
		{
			Key: "awards",
			previewSheet: previewSheet{
				Headers:   []string{"id", "title", "value"},
				Rows:      [][]string{{"a-1", "Roads", "100"}},
				TotalRows: 1,
			},
			Additional: []string{"value"},
		},
		{
			Key: "tenders",
			previewSheet: previewSheet{
				Headers:   []string{"h1", "h2", "h3", "h4", "h5"},
				Rows:      [][]string{{"d1", "d2", "d3", "d4", "d5"}},
				TotalRows: 1,
			},
			Additional: []string{"h2", "h3"},
		},
	}}
}

// splitPreviews has a parties table with one previewed array table and one
// array table without a preview.
func splitPreviews() previewSet {
	return previewSet{
		Tables: []previewTable{
			{
				Key: "parties",
				previewSheet: previewSheet{
					Headers:   []string{"id", "Party Name", "roles/0"},
					Rows:      [][]string{{"p-1", "Acme", "buyer"}},
					TotalRows: 1,
				},
				Split: &previewSheet{
					Headers:   []string{"id", "Party Name"},
					Rows:      [][]string{{"p-1", "Acme"}},
					TotalRows: 1,
				},
				Additional:  []string{"Party Name"},
				ChildTables: []string{"parties_roles", "parties_ids"},
			},
			{
				Key: "parties_roles",
				previewSheet: previewSheet{
					Headers:   []string{"id", "role"},
					Rows:      [][]string{{"p-1", "buyer"}},
					TotalRows: 1,
				},
				Parent: "parties",
			},
		},
		Labels: map[string]map[string]string{
			"en": {"roles/*": "Party Roles"},
		},
	}
}

func newSplitModel(t *testing.T, h headingsType) *model {
	t.Helper()
	m, err := newModel(modelDeps{
		source:       t.TempDir(),
		previews:     splitPreviews(),
		headingsType: h,
		config:       &uiConfig{},
	})
	require.NoError(t, err)
	return m
}

func readExportOptions(t *testing.T, m *model) flattenOptions {
	t.Helper()
	_, cmd := m.Update(keyRunes("e"))
	require.NotNil(t, cmd)
	written, ok := cmd().(exportWrittenMsg)
	require.True(t, ok)
	require.NoError(t, written.err)

	data, err := os.ReadFile(written.path)
	require.NoError(t, err)
	var opts flattenOptions
	require.NoError(t, json.Unmarshal(data, &opts))
	return opts
}

func newTestModel(t *testing.T, headings map[string]string) (*model, *headingStore) {
	t.Helper()
	store, err := openHeadingStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	m, err := newModel(modelDeps{
		source:   t.TempDir(),
		previews: testPreviews(),
		headings: headings,
		store:    store,
		config:   &uiConfig{},
	})
	require.NoError(t, err)
	return m, store
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_UsesStoredHeadings(t *testing.T) {
	m, _ := newTestModel(t, map[string]string{"tenders": "Tender notices"})
	require.Len(t, m.tables, 2)
	assert.Equal(t, "awards", m.tables[0].table.Name())
	assert.Equal(t, "Tender notices", m.tables[1].table.Name())
}

func TestModel_ChangeNameUpdatesTableAndStore(t *testing.T) {
	m, store := newTestModel(t, nil)

	_, cmd := m.Update(apptable.ChangeNameMsg{ID: "tenders", Name: "  Tender notices "})
	require.NotNil(t, cmd)
	assert.Equal(t, "Tender notices", m.entryByKey("tenders").table.Name())

	saved, ok := cmd().(headingSavedMsg)
	require.True(t, ok)
	require.NoError(t, saved.err)

	heading, found, err := store.Get(m.source, "tenders")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Tender notices", heading)
}

func TestModel_BlankNameRestoresKey(t *testing.T) {
	m, store := newTestModel(t, nil)
	require.NoError(t, store.Set(m.source, "awards", "Contract awards"))
	m.entryByKey("awards").table.SetName("Contract awards")

	_, cmd := m.Update(apptable.ChangeNameMsg{ID: "awards", Name: "   "})
	require.NotNil(t, cmd)
	cmd()

	assert.Equal(t, "awards", m.entryByKey("awards").table.Name())
	_, found, err := store.Get(m.source, "awards")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestModel_RenameThroughKeys(t *testing.T) {
	m, _ := newTestModel(t, nil)

	m.Update(keyRunes("r"))
	entry := m.focusedEntry()
	require.True(t, entry.table.NameMenu())
	assert.Equal(t, "awards", entry.table.NewName())

	// global keys are typed into the field while the popover is open
	m.Update(keyRunes("q"))
	assert.Equal(t, "awardsq", entry.table.NewName())

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	msg := cmd()
	assert.Equal(t, apptable.ChangeNameMsg{ID: "awards", Name: "awardsq"}, msg)
	assert.False(t, entry.table.NameMenu())

	m.Update(msg)
	assert.Equal(t, "awardsq", entry.table.Name())
}

func TestModel_UnknownTableRenameIgnored(t *testing.T) {
	m, _ := newTestModel(t, nil)
	_, cmd := m.Update(apptable.ChangeNameMsg{ID: "missing", Name: "x"})
	assert.Nil(t, cmd)
}

func TestModel_FocusCycles(t *testing.T) {
	m, _ := newTestModel(t, nil)
	assert.Equal(t, 0, m.focus)

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, 1, m.focus)
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, 0, m.focus)
	m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, 1, m.focus)
}

func TestModel_CopyName(t *testing.T) {
	m, _ := newTestModel(t, nil)
	var copied string
	orig := writeClipboard
	writeClipboard = func(s string) error {
		copied = s
		return nil
	}
	t.Cleanup(func() { writeClipboard = orig })

	m.Update(keyRunes("y"))
	assert.Equal(t, "awards", copied)

	m.Update(keyRunes("Y"))
	assert.Equal(t, "id,title,value\na-1,Roads,100\n", copied)
}

func TestModel_CopyFailureShowsToast(t *testing.T) {
	m, _ := newTestModel(t, nil)
	orig := writeClipboard
	writeClipboard = func(string) error { return errors.New("no clipboard") }
	t.Cleanup(func() { writeClipboard = orig })

	m.Update(keyRunes("y"))
	assert.Equal(t, "Clipboard unavailable", m.toastMessage)
}

func TestModel_ExportWritesOptions(t *testing.T) {
	m, _ := newTestModel(t, map[string]string{"tenders": "Tender notices"})

	m.Update(keyRunes("x"))
	require.True(t, m.tables[0].excluded)

	_, cmd := m.Update(keyRunes("e"))
	require.NotNil(t, cmd)
	written, ok := cmd().(exportWrittenMsg)
	require.True(t, ok)
	require.NoError(t, written.err)

	data, err := os.ReadFile(filepath.Join(m.source, exportOptionsFileName))
	require.NoError(t, err)
	var opts flattenOptions
	require.NoError(t, json.Unmarshal(data, &opts))
	assert.Equal(t, []string{"awards"}, opts.Exclude)
	assert.Equal(t, map[string]flattenSelection{"tenders": {Name: "Tender notices"}}, opts.Selection)

	// no export command configured: nothing else to run
	_, follow := m.Update(written)
	assert.Nil(t, follow)
}

func TestModel_HelpOverlay(t *testing.T) {
	m, _ := newTestModel(t, nil)

	m.Update(keyRunes("?"))
	require.True(t, m.showHelp)
	assert.Contains(t, m.View(), "flatview")

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.showHelp)
}

func TestModel_ViewShowsFocusedTable(t *testing.T) {
	m, _ := newTestModel(t, nil)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	view := m.View()
	assert.Contains(t, view, "Roads")
	assert.Contains(t, view, "tenders")
	assert.Contains(t, view, "headings: ocds")
	assert.Contains(t, view, "Loaded 2 tables")
}

func TestModel_SplitTogglesPreviewAndArrayTables(t *testing.T) {
	m := newSplitModel(t, headingsOCDS)
	parties := m.entryByKey("parties")
	roles := m.entryByKey("parties_roles")
	require.Same(t, parties, roles.parent)

	assert.Equal(t, []string{"id", "Party Name", "roles/0"}, parties.table.Props().Headers)
	assert.False(t, roles.visible())
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, 0, m.focus, "hidden array tables are skipped")

	m.Update(keyRunes("s"))
	require.True(t, parties.split)
	assert.Equal(t, []string{"id", "Party Name"}, parties.table.Props().Headers)
	assert.Equal(t, []int{1}, parties.table.HighlightedCols())
	assert.True(t, roles.visible())
	assert.Contains(t, m.tabsView(), "parties_roles")

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, 1, m.focus)
	m.Update(keyRunes("s"))
	assert.Equal(t, "parties_roles has no array tables", m.toastMessage)

	m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	m.Update(keyRunes("s"))
	assert.False(t, parties.split)
	assert.NotContains(t, m.tabsView(), "parties_roles")
}

func TestModel_ExportSplitListsArrayTables(t *testing.T) {
	m := newSplitModel(t, headingsOCDS)

	opts := readExportOptions(t, m)
	assert.Equal(t, map[string]flattenSelection{"parties": {}}, opts.Selection)

	m.Update(keyRunes("s"))
	opts = readExportOptions(t, m)
	assert.Equal(t, map[string]flattenSelection{
		"parties":       {Split: true},
		"parties_roles": {},
		"parties_ids":   {},
	}, opts.Selection)

	m.Update(keyRunes("x"))
	opts = readExportOptions(t, m)
	assert.Empty(t, opts.Selection)
	assert.Equal(t, []string{"parties"}, opts.Exclude)
}

func TestModel_HeadingsRelabelColumns(t *testing.T) {
	m := newSplitModel(t, headingsEnRFriendly)
	parties := m.entryByKey("parties")

	props := parties.table.Props()
	assert.Equal(t, []string{"id", "party_name", "party_roles"}, props.Headers)
	assert.Equal(t, []string{"party_name"}, props.AdditionalColumns)
	assert.Equal(t, []int{1}, parties.table.HighlightedCols())

	opts := readExportOptions(t, m)
	assert.Equal(t, map[string]string{
		"id":         "id",
		"Party Name": "party_name",
		"roles/0":    "party_roles",
	}, opts.Selection["parties"].Headers)
}

func TestModel_CycleHeadingsSavesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ui.yaml")
	m, err := newModel(modelDeps{
		source:     t.TempDir(),
		previews:   splitPreviews(),
		config:     &uiConfig{},
		configPath: path,
	})
	require.NoError(t, err)
	parties := m.entryByKey("parties")
	assert.Equal(t, []string{"id", "Party Name", "roles/0"}, parties.table.Props().Headers)

	m.Update(keyRunes("H"))
	assert.Equal(t, headingsEnRFriendly, m.headingsType)
	assert.Equal(t, []string{"id", "party_name", "party_roles"}, parties.table.Props().Headers)

	loaded, _ := loadUIConfig(path)
	assert.Equal(t, string(headingsEnRFriendly), loaded.HeadingsType)
}

func TestModel_ExportJobReportsTelemetry(t *testing.T) {
	requirePTY(t)

	telemetryPath := filepath.Join(t.TempDir(), "telemetry.jsonl")
	m, err := newModel(modelDeps{
		source:    t.TempDir(),
		previews:  testPreviews(),
		telemetry: newTelemetryLogger(telemetryPath, "session-1", "tester"),
		config:    &uiConfig{ExportCommand: []string{"sh", "-c", "exit 3"}},
	})
	require.NoError(t, err)

	_, cmd := m.Update(keyRunes("e"))
	for cmd != nil {
		_, cmd = m.Update(cmd())
	}
	assert.False(t, m.jobRunner.Running())

	data, err := os.ReadFile(telemetryPath)
	require.NoError(t, err)
	var failed *telemetryEvent
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var ev telemetryEvent
		require.NoError(t, json.Unmarshal([]byte(line), &ev))
		if ev.Event == "export_failed" {
			failed = &ev
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, filepath.Join(m.source, exportOptionsFileName), failed.ExtraJSON["options"])
	assert.Contains(t, failed.ExtraJSON["error"], "exit status 3")
}
