package apptable

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProps() Props {
	return Props{
		Name:              "Test",
		Headers:           []string{"h1", "h2", "h3", "h4", "h5"},
		Data:              [][]string{{"d1", "d2", "d3", "d4", "d5"}},
		AdditionalColumns: []string{"h2", "h3"},
	}
}

func newTestTable(t *testing.T) *Model {
	t.Helper()
	m, err := New("tenders", testProps(), Options{})
	require.NoError(t, err)
	return m
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_HighlightedCols(t *testing.T) {
	m := newTestTable(t)
	assert.Equal(t, []int{1, 2}, m.HighlightedCols())
	assert.Equal(t, m.HighlightedCols(), m.HighlightedCols())
}

func TestModel_HighlightedColsFollowProps(t *testing.T) {
	m := newTestTable(t)
	p := testProps()
	p.AdditionalColumns = []string{"h5"}
	require.NoError(t, m.SetProps(p))
	assert.Equal(t, []int{4}, m.HighlightedCols())
}

func TestModel_ChangeNameEmitsEnteredValue(t *testing.T) {
	m := newTestTable(t)
	m.SetNameMenu(true)
	m.SetNewName("new name")

	cmd := m.ChangeName()
	require.NotNil(t, cmd)
	assert.Equal(t, ChangeNameMsg{ID: "tenders", Name: "new name"}, cmd())
	assert.False(t, m.NameMenu())
	assert.Equal(t, "Test", m.Name(), "the table must not rename itself")
}

func TestModel_ChangeNameEmitsEmptyValue(t *testing.T) {
	m := newTestTable(t)
	m.SetNewName("")

	msg := m.ChangeName()()
	assert.Equal(t, ChangeNameMsg{ID: "tenders", Name: ""}, msg)
}

func TestModel_OpeningNameMenuResetsNewName(t *testing.T) {
	m := newTestTable(t)
	m.SetNewName("")

	m.SetNameMenu(true)
	assert.True(t, m.NameMenu())
	assert.Equal(t, "Test", m.NewName())
}

func TestModel_ReopeningDiscardsPendingEdit(t *testing.T) {
	m := newTestTable(t)
	m.SetNameMenu(true)
	m.SetNewName("half typed")
	m.SetNameMenu(false)
	assert.Equal(t, "half typed", m.NewName())

	m.SetName("Renamed")
	m.SetNameMenu(true)
	assert.Equal(t, "Renamed", m.NewName())
}

func TestModel_SettingSameMenuValueKeepsEdit(t *testing.T) {
	m := newTestTable(t)
	m.SetNameMenu(true)
	m.SetNewName("draft")

	m.SetNameMenu(true)
	assert.Equal(t, "draft", m.NewName())
}

func TestModel_RenameFlowWithKeys(t *testing.T) {
	m := newTestTable(t)

	m, _ = m.Update(runes("r"))
	require.True(t, m.NameMenu())

	for i := 0; i < len("Test"); i++ {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	}
	m, _ = m.Update(runes("Awards"))
	assert.Equal(t, "Awards", m.NewName())

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, ChangeNameMsg{ID: "tenders", Name: "Awards"}, cmd())
	assert.False(t, m.NameMenu())
}

func TestModel_EscClosesWithoutEmitting(t *testing.T) {
	m := newTestTable(t)
	m, _ = m.Update(runes("r"))
	m, _ = m.Update(runes("x"))

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, cmd)
	assert.False(t, m.NameMenu())
}

func TestModel_RowNavigation(t *testing.T) {
	p := testProps()
	p.Data = [][]string{
		{"a1", "a2", "a3", "a4", "a5"},
		{"b1", "b2", "b3", "b4", "b5"},
		{"c1", "c2", "c3", "c4", "c5"},
	}
	m, err := New("tenders", p, Options{})
	require.NoError(t, err)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, m.Cursor())
	m, _ = m.Update(runes("G"))
	assert.Equal(t, 2, m.Cursor())
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 2, m.Cursor())
	m, _ = m.Update(runes("g"))
	assert.Equal(t, 0, m.Cursor())
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 0, m.Cursor())
}

func TestModel_StrictRejectsRaggedRows(t *testing.T) {
	p := testProps()
	p.Data = append(p.Data, []string{"only", "three", "cells"})

	_, err := New("tenders", p, Options{Strict: true})
	require.ErrorIs(t, err, ErrRowLength)

	m, err := New("tenders", p, Options{})
	require.NoError(t, err)
	assert.Contains(t, m.View(), "cells")
}

func TestModel_StrictRejectsUnknownColumn(t *testing.T) {
	p := testProps()
	p.AdditionalColumns = []string{"h2", "missing"}

	_, err := New("tenders", p, Options{Strict: true})
	require.ErrorIs(t, err, ErrUnknownColumn)

	m := newTestTable(t)
	err = newStrictTable(t).SetProps(p)
	require.ErrorIs(t, err, ErrUnknownColumn)
	require.NoError(t, m.SetProps(p))
	assert.Equal(t, []int{1}, m.HighlightedCols())
}

func newStrictTable(t *testing.T) *Model {
	t.Helper()
	m, err := New("tenders", testProps(), Options{Strict: true})
	require.NoError(t, err)
	return m
}

func TestModel_View(t *testing.T) {
	m := newTestTable(t)
	view := m.View()
	assert.Contains(t, view, "Test")
	for _, h := range testProps().Headers {
		assert.Contains(t, view, h)
	}
	assert.Contains(t, view, "d5")
	assert.NotContains(t, view, "Rename table")

	m.SetNameMenu(true)
	assert.Contains(t, m.View(), "Rename table")
}

func TestModel_ViewEmpty(t *testing.T) {
	m, err := New("empty", Props{Name: "Empty"}, Options{})
	require.NoError(t, err)
	assert.True(t, strings.Contains(m.View(), "No columns"))

	require.NoError(t, m.SetProps(Props{Name: "Empty", Headers: []string{"id"}}))
	assert.Contains(t, m.View(), "No rows")
}
