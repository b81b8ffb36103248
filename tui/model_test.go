package tui

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kychandar/hammer/common"
	"github.com/kychandar/hammer/ds"
	encodingregistry "github.com/kychandar/hammer/services/encodingRegistry"
	eventpump "github.com/kychandar/hammer/services/eventPump"
	payloaddecoder "github.com/kychandar/hammer/services/payloadDecoder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newModel() (Model, *eventpump.App) {
	app := eventpump.New(context.Background(), eventpump.Options{})
	model := New(app, Options{})
	updated, _ := model.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return updated.(Model), app
}

func press(t *testing.T, model Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		case "shift+tab":
			msg = tea.KeyMsg{Type: tea.KeyShiftTab}
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "ctrl+u":
			msg = tea.KeyMsg{Type: tea.KeyCtrlU}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		updated, _ := model.Update(msg)
		model = updated.(Model)
	}
	return model
}

func frame(model Model) Model {
	updated, _ := model.Update(frameMsg(time.Now()))
	return updated.(Model)
}

func TestTabs_Cycle(t *testing.T) {
	model, _ := newModel()
	assert.Equal(t, TabSession, model.tab)

	model = press(t, model, "tab", "tab")
	assert.Equal(t, TabPut, model.tab)
	model = press(t, model, "tab", "tab")
	assert.Equal(t, TabSession, model.tab)
	model = press(t, model, "shift+tab")
	assert.Equal(t, TabGet, model.tab)
}

func TestQuit(t *testing.T) {
	model, _ := newModel()
	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestEditKey(t *testing.T) {
	model, app := newModel()
	model = press(t, model, "tab", "tab", "a", "e", "/x", "enter")
	require.Len(t, app.Put.Items, 1)
	assert.Equal(t, "demo/example/x", app.Put.Items[0].Key)
	assert.Equal(t, fieldNone, model.editing)

	// Escape leaves the item untouched.
	model = press(t, model, "e", "/y", "esc")
	assert.Equal(t, "demo/example/x", app.Put.Items[0].Key)
	assert.Equal(t, fieldNone, model.editing)
}

func TestPutWithoutSession(t *testing.T) {
	model, app := newModel()
	model = press(t, model, "tab", "tab", "a", "v", "ctrl+u", "hello", "enter", "enter")
	it := app.Put.Items[0]
	assert.Equal(t, "hello", it.Editor.Input)

	model = frame(model)
	assert.False(t, it.OK)
	assert.Equal(t, common.NotConnected, it.Status)
	assert.Contains(t, model.View(), common.NotConnected)
}

func TestInvalidPutReportsStatus(t *testing.T) {
	model, app := newModel()
	model = press(t, model, "tab", "tab", "a", "e", "ctrl+u", "a//b", "enter", "enter")
	assert.True(t, model.isErr)
	assert.NotEmpty(t, model.status)
	assert.False(t, app.Put.Items[0].Pending)
}

func TestEncodingAndModes(t *testing.T) {
	model, app := newModel()
	model = press(t, model, "tab", "tab", "a", "E", "ctrl+u", "application/json", "enter", "m", "p", "p")
	it := app.Put.Items[0]
	assert.Equal(t, encodingregistry.AppJSON, it.Editor.Encoding.ID)
	assert.Equal(t, ds.CongestionBlockFirst, it.CongestionControl)
	assert.Equal(t, ds.PriorityInteractiveLow, it.Priority)

	model = press(t, model, "m")
	assert.Equal(t, ds.CongestionDrop, it.CongestionControl, "wraps around")

	model = press(t, model, "E", "ctrl+u", "no/such", "enter")
	assert.True(t, model.isErr)
	assert.Equal(t, encodingregistry.AppJSON, it.Editor.Encoding.ID)
}

func TestGetTimeoutAndValue(t *testing.T) {
	model, app := newModel()
	model = press(t, model, "shift+tab", "a", "t", "ctrl+u", "250", "enter", "v", "ctrl+u", "ping", "enter", "o")
	it := app.Get.Items[0]
	assert.Equal(t, 250*time.Millisecond, it.Timeout)
	assert.True(t, it.HasValue)
	assert.Equal(t, "ping", it.Value.Input)
	assert.Equal(t, ds.LocalitySessionLocal, it.Locality)

	model = press(t, model, "t", "ctrl+u", "0", "enter")
	assert.True(t, model.isErr)
	assert.Equal(t, 250*time.Millisecond, it.Timeout)

	model = press(t, model, "enter")
	model = frame(model)
	require.Len(t, it.Replies, 1)
	assert.Contains(t, model.View(), common.NotConnected)
}

func TestSessionAddEditsPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{url: "nats://127.0.0.1:4222"}`), 0o644))

	model, app := newModel()
	model = press(t, model, "a")
	assert.Equal(t, fieldKey, model.editing)
	model = press(t, model, path, "enter")
	require.Len(t, app.Session.Files, 1)
	assert.Equal(t, path, app.Session.Files[0].Path)
	assert.Contains(t, model.View(), "nats://127.0.0.1:4222")
}

func TestCursorStaysInRange(t *testing.T) {
	model, app := newModel()
	model = press(t, model, "tab", "a", "a", "a", "k", "k", "k", "k")
	assert.Equal(t, 0, model.selected())
	model = press(t, model, "j", "j", "j", "j", "x")
	assert.Len(t, app.Sub.Items, 2)
	assert.Equal(t, 1, model.selected())
}

func TestRenderPayload(t *testing.T) {
	data := []byte(`{"answer":42}`)
	out := renderPayload(payloaddecoder.Decode(ds.Encoding{ID: encodingregistry.AppJSON}, data), data, 16)
	assert.Contains(t, out, "answer")

	out = renderPayload(payloaddecoder.Decode(ds.Encoding{ID: encodingregistry.AppOctetStream}, []byte{0xde, 0xad}), []byte{0xde, 0xad}, 16)
	assert.Contains(t, out, "de ad")

	assert.Equal(t, "hi", renderPayload(payloaddecoder.Text{Content: "hi"}, nil, 16))
	assert.Equal(t, "image 2x3", renderPayload(payloaddecoder.Image{Width: 2, Height: 3}, nil, 16))
}

func TestClampLines(t *testing.T) {
	assert.Equal(t, "a\nb", clampLines("a\nb", 2))
	out := clampLines("a\nb\nc\nd", 2)
	assert.Contains(t, out, "a\nb\n")
	assert.Contains(t, out, "2 more lines")
}
