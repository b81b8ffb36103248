// Package tui is the terminal front end of the inspector. The bubbletea loop
// owns the eventpump.App: every frame tick pumps it, and every key press
// edits a panel on the same goroutine.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/kychandar/hammer/common"
	"github.com/kychandar/hammer/ds"
	encodingregistry "github.com/kychandar/hammer/services/encodingRegistry"
	eventpump "github.com/kychandar/hammer/services/eventPump"
	"github.com/kychandar/hammer/services/panels"
)

// Tab identifies the visible page.
type Tab int

const (
	TabSession Tab = iota
	TabSub
	TabPut
	TabGet

	tabCount = 4
)

var tabNames = [tabCount]string{"session", "subscribe", "put", "get"}

func (t Tab) String() string { return tabNames[t] }

// field is the item attribute being edited in the input line.
type field int

const (
	fieldNone field = iota
	fieldName
	fieldKey
	fieldValue
	fieldEncoding
	fieldTimeout
)

type frameMsg time.Time

type Options struct {
	FrameInterval time.Duration
	HexColumns    int
}

type Model struct {
	app  *eventpump.App
	opts Options
	keys keyMap

	tab     Tab
	cursor  [tabCount]int
	editing field
	input   textinput.Model
	status  string
	isErr   bool
	preview *previewCache

	width  int
	height int
}

func New(app *eventpump.App, opts Options) Model {
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = common.DefaultFrameInterval
	}
	if opts.HexColumns <= 0 {
		opts.HexColumns = 16
	}
	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 1 << 16
	return Model{app: app, opts: opts, keys: defaultKeyMap(), input: input, preview: &previewCache{}}
}

// Run blocks until the user quits or ctx ends.
func Run(ctx context.Context, app *eventpump.App, opts Options) error {
	program := tea.NewProgram(New(app, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.opts.FrameInterval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		m.app.Pump()
		return m, m.tick()

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = max(msg.Width-4, 10)
		return m, nil

	case tea.KeyMsg:
		if m.editing != fieldNone {
			return m.handleInputKeys(msg)
		}
		return m.handleKeys(msg)
	}
	return m, nil
}

func (m Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.NextTab):
		m.tab = (m.tab + 1) % tabCount
	case key.Matches(msg, m.keys.PrevTab):
		m.tab = (m.tab + tabCount - 1) % tabCount
	case key.Matches(msg, m.keys.Up):
		m.move(-1)
	case key.Matches(msg, m.keys.Down):
		m.move(1)
	case key.Matches(msg, m.keys.Add):
		m.add()
		if m.tab == TabSession {
			return m.startEdit(fieldKey)
		}
	case key.Matches(msg, m.keys.Delete):
		m.report(m.remove())
	case key.Matches(msg, m.keys.Send):
		m.report(m.send())
	case key.Matches(msg, m.keys.Stop):
		m.report(m.stop())
	case key.Matches(msg, m.keys.Mode):
		m.cycle(msg)
	case key.Matches(msg, m.keys.Priority):
		m.cycle(msg)
	case key.Matches(msg, m.keys.Locality):
		m.cycle(msg)
	case key.Matches(msg, m.keys.Clear):
		m.clear()
	case key.Matches(msg, m.keys.Rename):
		return m.startEdit(fieldName)
	case key.Matches(msg, m.keys.EditKey):
		return m.startEdit(fieldKey)
	case key.Matches(msg, m.keys.EditValue):
		return m.startEdit(fieldValue)
	case key.Matches(msg, m.keys.EditEncode):
		return m.startEdit(fieldEncoding)
	case key.Matches(msg, m.keys.Timeout):
		return m.startEdit(fieldTimeout)
	}
	return m, nil
}

func (m Model) handleInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.stopEdit()
		return m, nil
	case tea.KeyEnter:
		err := m.commit(m.editing, m.input.Value())
		m.stopEdit()
		m.report(err)
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) report(err error) {
	if err != nil {
		m.status, m.isErr = err.Error(), true
		return
	}
	m.status, m.isErr = "", false
}

func (m *Model) count() int {
	switch m.tab {
	case TabSession:
		return len(m.app.Session.Files)
	case TabSub:
		return len(m.app.Sub.Items)
	case TabPut:
		return len(m.app.Put.Items)
	default:
		return len(m.app.Get.Items)
	}
}

// selected returns the cursor of the current page, or -1 when it is empty.
func (m *Model) selected() int {
	n := m.count()
	if n == 0 {
		return -1
	}
	return min(m.cursor[m.tab], n-1)
}

func (m *Model) move(delta int) {
	n := m.count()
	if n == 0 {
		return
	}
	m.cursor[m.tab] = max(0, min(n-1, m.selected()+delta))
}

func (m *Model) add() {
	switch m.tab {
	case TabSession:
		m.app.Session.AddFile(fmt.Sprintf("session %d", len(m.app.Session.Files)+1), "")
	case TabSub:
		m.app.Sub.AddDefault()
	case TabPut:
		m.app.Put.AddDefault()
	case TabGet:
		m.app.Get.AddDefault()
	}
	m.cursor[m.tab] = m.count() - 1
}

func (m *Model) remove() error {
	i := m.selected()
	if i < 0 {
		return nil
	}
	switch m.tab {
	case TabSession:
		m.app.Session.RemoveFile(i)
	case TabSub:
		if err := m.app.Sub.Remove(i); err != nil {
			return err
		}
	case TabPut:
		m.app.Put.Remove(i)
	case TabGet:
		m.app.Get.Remove(i)
	}
	m.move(0)
	return nil
}

func (m *Model) send() error {
	i := m.selected()
	if i < 0 {
		return nil
	}
	switch m.tab {
	case TabSession:
		return m.app.Session.Connect(i)
	case TabSub:
		return m.app.Sub.Subscribe(i)
	case TabPut:
		return m.app.Put.Send(i)
	default:
		return m.app.Get.Send(i)
	}
}

func (m *Model) stop() error {
	switch m.tab {
	case TabSession:
		m.app.Session.Disconnect()
	case TabSub:
		if i := m.selected(); i >= 0 {
			return m.app.Sub.Unsubscribe(i)
		}
	}
	return nil
}

func (m *Model) clear() {
	i := m.selected()
	if i < 0 {
		return
	}
	switch m.tab {
	case TabSub:
		m.app.Sub.Items[i].Clear()
	case TabGet:
		m.app.Get.Items[i].Replies = nil
		m.app.Get.Items[i].Status = ""
	}
}

func (m *Model) cycle(msg tea.KeyMsg) {
	i := m.selected()
	if i < 0 {
		return
	}
	switch m.tab {
	case TabSub:
		if key.Matches(msg, m.keys.Locality) {
			s := m.app.Sub.Items[i]
			s.Origin = (s.Origin + 1) % (ds.LocalityRemote + 1)
		}
	case TabPut:
		it := m.app.Put.Items[i]
		switch {
		case key.Matches(msg, m.keys.Mode):
			it.CongestionControl = (it.CongestionControl + 1) % (ds.CongestionBlockFirst + 1)
		case key.Matches(msg, m.keys.Priority):
			it.Priority = (it.Priority + 1) % (ds.PriorityBackground + 1)
		}
	case TabGet:
		it := m.app.Get.Items[i]
		switch {
		case key.Matches(msg, m.keys.Mode):
			it.Target = (it.Target + 1) % (ds.TargetAllComplete + 1)
		case key.Matches(msg, m.keys.Priority):
			it.Consolidation = (it.Consolidation + 1) % (ds.ConsolidationLatest + 1)
		case key.Matches(msg, m.keys.Locality):
			it.Locality = (it.Locality + 1) % (ds.LocalityRemote + 1)
		}
	}
}

func (m Model) startEdit(f field) (tea.Model, tea.Cmd) {
	value, ok := m.current(f)
	if !ok {
		return m, nil
	}
	m.editing = f
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m, m.input.Focus()
}

func (m *Model) stopEdit() {
	m.editing = fieldNone
	m.input.Blur()
	m.input.Reset()
}

// editorOf returns the payload editor of the selected put or get item.
func (m *Model) editorOf(i int) *panels.Editor {
	switch m.tab {
	case TabPut:
		return m.app.Put.Items[i].Editor
	case TabGet:
		return m.app.Get.Items[i].Value
	}
	return nil
}

// current reports the text shown when editing starts, and whether the page
// has such a field.
func (m *Model) current(f field) (string, bool) {
	i := m.selected()
	if i < 0 {
		return "", false
	}
	switch f {
	case fieldName:
		switch m.tab {
		case TabSession:
			return m.app.Session.Files[i].Name, true
		case TabSub:
			return m.app.Sub.Items[i].Name, true
		case TabPut:
			return m.app.Put.Items[i].Name, true
		default:
			return m.app.Get.Items[i].Name, true
		}
	case fieldKey:
		switch m.tab {
		case TabSession:
			return m.app.Session.Files[i].Path, true
		case TabSub:
			return m.app.Sub.Items[i].KeyExpr, true
		case TabPut:
			return m.app.Put.Items[i].Key, true
		default:
			return m.app.Get.Items[i].Selector, true
		}
	case fieldValue:
		switch m.tab {
		case TabSub:
			return strconv.Itoa(m.app.Sub.Items[i].BufferSize), true
		case TabPut, TabGet:
			e := m.editorOf(i)
			if e.Source == ds.PayloadFromFile {
				return "@" + e.FilePath, true
			}
			return e.Input, true
		}
	case fieldEncoding:
		if e := m.editorOf(i); e != nil {
			return encodingregistry.Label(e.Encoding), true
		}
	case fieldTimeout:
		if m.tab == TabGet {
			return strconv.FormatInt(m.app.Get.Items[i].Timeout.Milliseconds(), 10), true
		}
	}
	return "", false
}

func (m *Model) commit(f field, value string) error {
	i := m.selected()
	if i < 0 {
		return nil
	}
	switch f {
	case fieldName:
		switch m.tab {
		case TabSession:
			m.app.Session.Files[i].Name = value
		case TabSub:
			m.app.Sub.Items[i].Name = value
		case TabPut:
			m.app.Put.Items[i].Name = value
		case TabGet:
			m.app.Get.Items[i].Name = value
		}
	case fieldKey:
		value = strings.TrimSpace(value)
		switch m.tab {
		case TabSession:
			m.app.Session.Files[i].Path = value
		case TabSub:
			m.app.Sub.Items[i].KeyExpr = value
		case TabPut:
			m.app.Put.Items[i].Key = value
		case TabGet:
			m.app.Get.Items[i].Selector = value
		}
	case fieldValue:
		if m.tab == TabSub {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return fmt.Errorf("buffer size: %w", err)
			}
			m.app.Sub.Items[i].SetBufferSize(n)
			return nil
		}
		setEditorValue(m.editorOf(i), value)
		if m.tab == TabGet {
			m.app.Get.Items[i].HasValue = value != ""
		}
	case fieldEncoding:
		enc, err := encodingregistry.Parse(value)
		if err != nil {
			return err
		}
		return m.editorOf(i).SetEncoding(enc.ID, enc.Schema)
	case fieldTimeout:
		ms, err := strconv.ParseUint(strings.TrimSpace(value), 10, 32)
		if err != nil || ms == 0 {
			return errors.New("timeout must be a positive number of milliseconds")
		}
		m.app.Get.Items[i].Timeout = time.Duration(ms) * time.Millisecond
	}
	return nil
}

// setEditorValue takes "@path" as a file reference, anything else as input
// text. Image editors always read files.
func setEditorValue(e *panels.Editor, value string) {
	path, isFile := strings.CutPrefix(value, "@")
	if e.Kind() == encodingregistry.EditorImage {
		isFile, path = true, strings.TrimPrefix(value, "@")
	}
	if isFile {
		e.Source = ds.PayloadFromFile
		e.FilePath = strings.TrimSpace(path)
		return
	}
	e.Source = ds.PayloadFromInput
	e.Input = value
}
