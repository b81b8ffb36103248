package panels

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kychandar/hammer/common"
	"github.com/kychandar/hammer/ds"
	encodingregistry "github.com/kychandar/hammer/services/encodingRegistry"
	payloaddecoder "github.com/kychandar/hammer/services/payloadDecoder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestEditor_StringValidation(t *testing.T) {
	tests := []struct {
		name    string
		id      uint16
		input   string
		wantErr string
	}{
		{name: "plain text", id: encodingregistry.TextPlain, input: "hello"},
		{name: "json ok", id: encodingregistry.AppJSON, input: `{"a":1}`},
		{name: "json bad", id: encodingregistry.AppJSON, input: `{a:1}`, wantErr: "json:"},
		{name: "json5 ok", id: encodingregistry.TextJSON5, input: `{a: 'x', /* c */ b: 0x10,}`},
		{name: "json5 bad", id: encodingregistry.TextJSON5, input: `{a: }`, wantErr: "json"},
		{name: "yaml ok", id: encodingregistry.AppYAML, input: "a: 1\nb: [1, 2]\n"},
		{name: "yaml bad", id: encodingregistry.TextYAML, input: "a: [1, 2\n", wantErr: "yaml:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEditor(tt.id)
			e.Input = tt.input
			payload, err := e.Payload()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []byte(tt.input), payload)
		})
	}
}

func TestEditor_BinaryHex(t *testing.T) {
	e := NewEditor(encodingregistry.AppOctetStream)
	assert.Equal(t, encodingregistry.EditorBinary, e.Kind())

	e.Input = "de ad\nBE\tef"
	payload, err := e.Payload()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, payload)

	e.Input = "abc"
	_, err = e.Payload()
	assert.ErrorContains(t, err, "hex")
}

func TestEditor_FileSource(t *testing.T) {
	e := NewEditor(encodingregistry.AppOctetStream)
	e.Source = ds.PayloadFromFile
	_, err := e.Payload()
	assert.ErrorIs(t, err, ErrNoFile)

	e.FilePath = writeFile(t, "blob.bin", []byte{0, 1, 2})
	payload, err := e.Payload()
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2}, payload)
}

func TestEditor_Image(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	e := NewEditor(encodingregistry.TextPlain)
	require.NoError(t, e.SetEncoding(encodingregistry.ImagePNG, ""))
	assert.Equal(t, encodingregistry.EditorImage, e.Kind())
	assert.Equal(t, ds.PayloadFromFile, e.Source)

	e.FilePath = writeFile(t, "pixel.png", buf.Bytes())
	payload, err := e.Payload()
	require.NoError(t, err)
	assert.Equal(t, buf.Bytes(), payload)

	e.FilePath = writeFile(t, "not.png", []byte("nope"))
	_, err = e.Payload()
	assert.Error(t, err)

	e.Source = ds.PayloadFromInput
	_, err = e.Payload()
	assert.ErrorIs(t, err, ErrImageNeedsFile)
}

func TestEditor_EncodingIDLimit(t *testing.T) {
	e := NewEditor(encodingregistry.TextPlain)
	assert.ErrorIs(t, e.SetEncoding(common.MaxEncodingID+1, ""), ErrEncodingID)
	assert.ErrorIs(t, e.SetEncodingText("abc", ""), ErrEncodingID)
	require.NoError(t, e.SetEncodingText(" 1023 ", "x"))
	assert.Equal(t, ds.Encoding{ID: 1023, Schema: "x"}, e.Encoding)
}

func TestKeyHistory_Ring(t *testing.T) {
	h := newKeyHistory("k", 3)
	base := time.Unix(0, 0)
	for i := range 5 {
		h.push(Received{Sample: ds.Sample{Payload: []byte{byte(i)}}, ReceivedAt: base.Add(time.Duration(i) * time.Millisecond)})
	}

	var got []byte
	for _, r := range h.Samples() {
		got = append(got, r.Sample.Payload[0])
	}
	assert.Equal(t, []byte{2, 3, 4}, got)
	assert.Equal(t, 5, h.Total)

	latest, ok := h.Latest()
	require.True(t, ok)
	assert.Equal(t, byte(4), latest.Sample.Payload[0])

	h.resize(2)
	got = nil
	for _, r := range h.Samples() {
		got = append(got, r.Sample.Payload[0])
	}
	assert.Equal(t, []byte{3, 4}, got)
}

func TestKeyHistory_Rate(t *testing.T) {
	h := newKeyHistory("k", 10)
	assert.Equal(t, "", h.Rate(time.Now()))

	base := time.Unix(100, 0)
	for i := range 11 {
		h.push(Received{ReceivedAt: base.Add(time.Duration(i) * 100 * time.Millisecond)})
	}
	last := base.Add(time.Second)
	assert.Equal(t, "10.0 Hz", h.Rate(last))
	assert.Equal(t, "3 s", h.Rate(last.Add(3500*time.Millisecond)))
}

func TestSubPanel_Lifecycle(t *testing.T) {
	p := NewSubPanel()
	s := p.Add("all", "demo/**", ds.LocalityAny, 1)
	assert.Equal(t, common.MinSampleBuffer, s.BufferSize)

	require.NoError(t, p.Subscribe(0))
	assert.ErrorIs(t, p.Subscribe(0), ErrAlreadySubscribed)
	assert.Equal(t, []Intent{Subscribe{ID: 1, KeyExpr: "demo/**", Origin: ds.LocalityAny}}, p.TakeIntents())
	assert.Empty(t, p.TakeIntents())

	p.HandleAdded(ds.SubscriptionAdded{ID: 1})
	assert.True(t, s.Subscribed)
	assert.False(t, s.Pending)
	assert.Equal(t, 1, p.ActiveCount())

	p.HandleSample(ds.SampleReceived{ID: 1, Sample: ds.Sample{KeyExpr: "demo/b"}, ReceivedAt: time.Now()})
	p.HandleSample(ds.SampleReceived{ID: 1, Sample: ds.Sample{KeyExpr: "demo/a"}, ReceivedAt: time.Now()})
	p.HandleSample(ds.SampleReceived{ID: 1, Sample: ds.Sample{KeyExpr: "demo/b"}, ReceivedAt: time.Now()})
	p.HandleSample(ds.SampleReceived{ID: 99, Sample: ds.Sample{KeyExpr: "other"}})
	assert.Equal(t, []string{"demo/b", "demo/a"}, s.Keys(""))
	assert.Equal(t, []string{"demo/a"}, s.Keys("/a"))
	h, ok := s.History("demo/b")
	require.True(t, ok)
	assert.Equal(t, 2, h.Total)

	require.NoError(t, p.Unsubscribe(0))
	assert.Equal(t, []Intent{Unsubscribe{ID: 1}}, p.TakeIntents())
	p.HandleRemoved(ds.SubscriptionRemoved{ID: 1})
	assert.False(t, s.Subscribed)
	assert.Zero(t, s.SubID)
	assert.Zero(t, p.ActiveCount())

	// A new subscription gets a fresh id.
	require.NoError(t, p.Subscribe(0))
	assert.Equal(t, []Intent{Subscribe{ID: 2, KeyExpr: "demo/**", Origin: ds.LocalityAny}}, p.TakeIntents())
}

func TestSubPanel_Failures(t *testing.T) {
	p := NewSubPanel()
	bad := p.Add("bad", "demo//x", ds.LocalityAny, 10)
	assert.Error(t, p.Subscribe(0))
	assert.NotEmpty(t, bad.Err)
	assert.Empty(t, p.TakeIntents())

	s := p.AddDefault()
	require.NoError(t, p.Subscribe(1))
	p.HandleAdded(ds.SubscriptionAdded{ID: s.SubID, Err: "closed"})
	assert.False(t, s.Subscribed)
	assert.Equal(t, "closed", s.Err)
	assert.Zero(t, p.ActiveCount())
}

func TestPutPanel_Send(t *testing.T) {
	p := NewPutPanel()
	it := p.AddDefault()
	assert.Equal(t, ds.CongestionBlock, it.CongestionControl)
	assert.Equal(t, ds.PriorityRealTime, it.Priority)
	it.Editor.Input = "hello"
	it.Attachment = "meta"

	require.NoError(t, p.Send(0))
	assert.True(t, it.Pending)
	assert.Equal(t, []Intent{Put{ID: 1, Request: ds.PutRequest{
		KeyExpr:           "demo/example",
		Payload:           []byte("hello"),
		Encoding:          ds.Encoding{ID: encodingregistry.TextPlain},
		CongestionControl: ds.CongestionBlock,
		Priority:          ds.PriorityRealTime,
		Attachment:        []byte("meta"),
	}}}, p.TakeIntents())

	p.HandleResult(ds.PublishResult{ID: 1, Success: true, Message: `put ok "demo/example"`})
	assert.False(t, it.Pending)
	assert.True(t, it.OK)
	assert.Equal(t, `put ok "demo/example"`, it.Status)
}

func TestPutPanel_ValidationStaysLocal(t *testing.T) {
	p := NewPutPanel()
	it := p.Add("wild", "demo/*")
	assert.ErrorIs(t, p.Send(0), common.ErrWildcardInKey)
	assert.False(t, it.OK)
	assert.NotEmpty(t, it.Status)

	it.Key = "demo/ok"
	require.NoError(t, it.Editor.SetEncoding(encodingregistry.AppJSON, ""))
	it.Editor.Input = "{"
	assert.Error(t, p.Send(0))
	assert.Empty(t, p.TakeIntents())
}

func TestGetPanel_Send(t *testing.T) {
	p := NewGetPanel()
	it := p.AddDefault()
	assert.Equal(t, common.DefaultQueryTimeout, it.Timeout)
	it.Selector = "demo/**?x=1"
	it.Target = ds.TargetAll
	it.Replies = []ds.Reply{{Err: ds.NewReplyError("old")}}

	require.NoError(t, p.Send(0))
	assert.Nil(t, it.Replies)
	assert.Equal(t, []Intent{Get{ID: 1, Request: ds.QueryRequest{
		Selector: "demo/**?x=1",
		Target:   ds.TargetAll,
		Timeout:  common.DefaultQueryTimeout,
	}}}, p.TakeIntents())

	p.HandleReply(ds.QueryReply{ID: 1, Reply: ds.Reply{Sample: &ds.Sample{KeyExpr: "demo/a"}}})
	p.HandleReply(ds.QueryReply{ID: 2, Reply: ds.Reply{Sample: &ds.Sample{KeyExpr: "stale"}}})
	require.Len(t, it.Replies, 1)
	assert.Equal(t, "1 replies", it.Status)
}

func TestGetPanel_WithValue(t *testing.T) {
	p := NewGetPanel()
	it := p.Add("q", "demo/test")
	it.HasValue = true
	it.Value.Input = "ping"

	require.NoError(t, p.Send(0))
	intents := p.TakeIntents()
	require.Len(t, intents, 1)
	req := intents[0].(Get).Request
	assert.Equal(t, []byte("ping"), req.Payload)
	assert.Equal(t, encodingregistry.TextPlain, req.Encoding.ID)

	it.Selector = "?only=params"
	assert.ErrorIs(t, p.Send(0), common.ErrEmptyKeyExpr)
}

func TestSessionPanel(t *testing.T) {
	p := NewSessionPanel()
	require.NoError(t, p.Connect(0))
	assert.Equal(t, []Intent{Connect{SessionID: 1}}, p.TakeIntents())
	assert.ErrorIs(t, p.Connect(0), ErrAlreadyConnected)

	p.HandleOpened(ds.SessionOpened{SessionID: 1, Err: "refused"})
	assert.False(t, p.Connected)
	assert.Equal(t, "refused", p.Status)

	f := p.AddFile("local", "/tmp/local.json5")
	require.NoError(t, p.Connect(0))
	assert.Equal(t, []Intent{Connect{SessionID: 2, ConfigPath: "/tmp/local.json5"}}, p.TakeIntents())

	p.HandleOpened(ds.SessionOpened{SessionID: 1})
	assert.False(t, p.Connected, "stale session ids are ignored")
	p.HandleOpened(ds.SessionOpened{SessionID: 2, Err: "bad file"})
	assert.Equal(t, "bad file", f.Err)

	require.NoError(t, p.Connect(0))
	p.HandleOpened(ds.SessionOpened{SessionID: 3})
	assert.True(t, p.Connected)
	assert.Empty(t, f.Err)

	p.TakeIntents()
	p.Disconnect()
	assert.False(t, p.Connected)
	assert.Equal(t, []Intent{Disconnect{}}, p.TakeIntents())
	p.Disconnect()
	assert.Empty(t, p.TakeIntents())
}

func TestSessionPanel_Preview(t *testing.T) {
	p := NewSessionPanel()
	p.AddFile("cfg", writeFile(t, "cfg.json5", []byte("{url: \"nats://h:4222\", name: 'x',}")))

	rep, ok := p.Preview(0).(payloaddecoder.JSON)
	require.True(t, ok)
	v, found := rep.Tree.Get("name")
	require.True(t, found)
	assert.Equal(t, "x", v.String)

	_, isErr := p.Preview(5).(payloaddecoder.Error)
	assert.True(t, isErr)
}

func TestEntries_RoundTrip(t *testing.T) {
	put := NewPutPanel()
	it := put.AddDefault()
	it.Priority = ds.PriorityBackground
	it.Editor.Input = "v"

	get := NewGetPanel()
	g := get.AddDefault()
	g.Timeout = 2500 * time.Millisecond
	g.HasValue = true
	g.Value.Input = "q"
	get.AddDefault()

	sub := NewSubPanel()
	sub.Add("s", "a/*", ds.LocalityRemote, 25)

	put2, get2, sub2 := NewPutPanel(), NewGetPanel(), NewSubPanel()
	put2.Load(put.Entries())
	get2.Load(get.Entries())
	sub2.Load(sub.Entries())

	assert.Equal(t, put.Entries(), put2.Entries())
	assert.Equal(t, get.Entries(), get2.Entries())
	assert.Equal(t, sub.Entries(), sub2.Entries())
	assert.Equal(t, uint64(2500), get2.Entries()[0].Timeout)
	assert.Nil(t, get2.Entries()[1].Value)
}
