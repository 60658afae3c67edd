// Package apptable renders one named preview table in the terminal. Columns
// listed as additional are highlighted, and the table name can be edited in
// a small rename popover. The table never renames itself: confirming the
// popover emits a ChangeNameMsg and the owner decides what to do with it.
package apptable

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const nameCharLimit = 128

// Props is the data the owner supplies. The table treats it as read only.
type Props struct {
	Name              string
	Headers           []string
	Data              [][]string
	AdditionalColumns []string
}

// Options tunes how the table treats malformed props.
type Options struct {
	// Strict makes New and SetProps reject ragged rows and additional
	// columns that are not headers. The default tolerates both.
	Strict bool
}

// ChangeNameMsg is emitted when the user confirms the rename popover.
type ChangeNameMsg struct {
	ID   string
	Name string
}

// Model is a Bubble Tea component for one table.
type Model struct {
	id     string
	props  Props
	opts   Options
	keys   KeyMap
	styles Styles

	nameInput textinput.Model
	nameMenu  bool

	cursor    int
	colOffset int
	width     int
	height    int
}

// New builds a table for props. id identifies the table in emitted
// messages and is independent of the displayed name.
func New(id string, props Props, opts Options) (*Model, error) {
	if opts.Strict {
		if err := Validate(props); err != nil {
			return nil, err
		}
	}
	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = nameCharLimit
	input.Placeholder = "table name"
	input.SetValue(props.Name)

	return &Model{
		id:        id,
		props:     props,
		opts:      opts,
		keys:      DefaultKeyMap(),
		styles:    DefaultStyles(),
		nameInput: input,
		height:    10,
	}, nil
}

func (m *Model) ID() string             { return m.id }
func (m *Model) Name() string           { return m.props.Name }
func (m *Model) Props() Props           { return m.props }
func (m *Model) NameMenu() bool         { return m.nameMenu }
func (m *Model) NewName() string        { return m.nameInput.Value() }
func (m *Model) Cursor() int            { return m.cursor }
func (m *Model) Keys() KeyMap           { return m.keys }
func (m *Model) SetStyles(s Styles)     { m.styles = s }
func (m *Model) SetNewName(name string) { m.nameInput.SetValue(name) }

// SetName applies a new name prop. It does not touch the rename buffer;
// the buffer is refreshed the next time the popover opens.
func (m *Model) SetName(name string) {
	m.props.Name = name
}

// SetProps replaces all props. In strict mode malformed props are
// rejected and the previous props are kept.
func (m *Model) SetProps(p Props) error {
	if m.opts.Strict {
		if err := Validate(p); err != nil {
			return err
		}
	}
	m.props = p
	m.clampCursor()
	return nil
}

// SetSize sets the space the table may draw in. Heights below four rows are
// raised to four.
func (m *Model) SetSize(width, height int) {
	if height < 4 {
		height = 4
	}
	m.width = width
	m.height = height
	m.nameInput.Width = max(width-6, 0)
}

// HighlightedCols is recomputed from the current props on every call.
func (m *Model) HighlightedCols() []int {
	return HighlightedCols(m.props.Headers, m.props.AdditionalColumns)
}

// SetNameMenu opens or closes the rename popover. Opening it resets the
// buffer to the current name, discarding edits from an earlier session.
// Setting the value it already has is a no-op.
func (m *Model) SetNameMenu(open bool) tea.Cmd {
	if m.nameMenu == open {
		return nil
	}
	m.nameMenu = open
	if !open {
		m.nameInput.Blur()
		return nil
	}
	m.nameInput.SetValue(m.props.Name)
	m.nameInput.CursorEnd()
	return m.nameInput.Focus()
}

// ChangeName emits the buffered name and closes the popover. The value is
// sent as typed, empty or not.
func (m *Model) ChangeName() tea.Cmd {
	msg := ChangeNameMsg{ID: m.id, Name: m.nameInput.Value()}
	m.SetNameMenu(false)
	return func() tea.Msg { return msg }
}

func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) Update(msg tea.Msg) (*Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		if m.nameMenu {
			var cmd tea.Cmd
			m.nameInput, cmd = m.nameInput.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	if m.nameMenu {
		switch {
		case key.Matches(keyMsg, m.keys.Confirm):
			return m, m.ChangeName()
		case key.Matches(keyMsg, m.keys.Cancel):
			return m, m.SetNameMenu(false)
		}
		var cmd tea.Cmd
		m.nameInput, cmd = m.nameInput.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(keyMsg, m.keys.Rename):
		return m, m.SetNameMenu(true)
	case key.Matches(keyMsg, m.keys.Up):
		m.cursor--
	case key.Matches(keyMsg, m.keys.Down):
		m.cursor++
	case key.Matches(keyMsg, m.keys.PageUp):
		m.cursor -= m.bodyHeight()
	case key.Matches(keyMsg, m.keys.PageDown):
		m.cursor += m.bodyHeight()
	case key.Matches(keyMsg, m.keys.Home):
		m.cursor = 0
	case key.Matches(keyMsg, m.keys.End):
		m.cursor = len(m.props.Data) - 1
	case key.Matches(keyMsg, m.keys.Left):
		if m.colOffset > 0 {
			m.colOffset--
		}
	case key.Matches(keyMsg, m.keys.Right):
		if m.colOffset < len(m.props.Headers)-1 {
			m.colOffset++
		}
	}
	m.clampCursor()
	return m, nil
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.props.Data) {
		m.cursor = len(m.props.Data) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.colOffset >= len(m.props.Headers) {
		m.colOffset = max(len(m.props.Headers)-1, 0)
	}
}
