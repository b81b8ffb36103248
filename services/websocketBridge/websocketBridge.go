// Package websocketbridge drives one inspector workspace per websocket
// connection. Client requests become panel actions; bridge events are
// pushed back as ServerMessages.
package websocketbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kychandar/hammer/common"
	"github.com/kychandar/hammer/ds"
	"github.com/kychandar/hammer/services"
	encodingregistry "github.com/kychandar/hammer/services/encodingRegistry"
	eventpump "github.com/kychandar/hammer/services/eventPump"
	"github.com/kychandar/hammer/services/mailbox"
	"github.com/kychandar/hammer/services/panels"
	payloaddecoder "github.com/kychandar/hammer/services/payloadDecoder"
	"github.com/kychandar/hammer/services/pool"
	slogctx "github.com/veqryn/slog-context"
)

const (
	ProtocolVersion = 1

	shutdownWait = 5 * time.Second
)

type Options struct {
	Pump          eventpump.Options
	FrameInterval time.Duration
	HexColumns    int
}

type Factory func(ctx context.Context, wsConnID string, conn *websocket.Conn) services.WebSocketBridge

func NewWsBridgeFactory(opts Options, writer services.WsWriteChanManager) Factory {
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = common.DefaultFrameInterval
	}
	if opts.HexColumns <= 0 {
		opts.HexColumns = payloaddecoder.MaxHexColumns
	}
	return func(ctx context.Context, wsConnID string, conn *websocket.Conn) services.WebSocketBridge {
		return newBridge(ctx, opts, writer, wsConnID, conn)
	}
}

type websocketBridge struct {
	wsConnID string
	conn     *websocket.Conn
	writer   services.WsWriteChanManager
	opts     Options

	app   *eventpump.App
	inbox *mailbox.Mailbox[ds.ClientMessage]
	// Requests reuse one put and one get item; results are matched by
	// request id on the client side.
	put *panels.PutItem
	get *panels.GetItem
}

func newBridge(ctx context.Context, opts Options, writer services.WsWriteChanManager, wsConnID string, conn *websocket.Conn) *websocketBridge {
	w := &websocketBridge{
		wsConnID: wsConnID,
		conn:     conn,
		writer:   writer,
		opts:     opts,
		app:      eventpump.New(ctx, opts.Pump),
		inbox:    mailbox.New[ds.ClientMessage](),
	}
	w.put = w.app.Put.Add("ws", "")
	w.get = w.app.Get.Add("ws", "")
	w.app.Observe(func(ev ds.Event) { w.forwardEvent(ctx, ev) })
	return w
}

// ProcessMessagesFromClient reads until the connection fails, then closes the
// inbox so the server side shuts the workspace down.
func (w *websocketBridge) ProcessMessagesFromClient(ctx context.Context) {
	logger := slogctx.FromCtx(ctx)
	defer w.inbox.Close()

	for {
		_, message, err := w.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.WarnContext(ctx, "unexpected close error", slog.Any("error", err))
			} else {
				logger.DebugContext(ctx, "read loop ended", slog.Any("error", err))
			}
			return
		}

		var msg ds.ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			w.write(ctx, &ds.ServerMessage{Event: "ack", Error: fmt.Sprintf("invalid message: %v", err)})
			continue
		}
		if !w.inbox.Send(msg) {
			return
		}
	}
}

// ProcessMessagesFromServer owns the workspace: it applies client requests
// and pumps bridge events once per frame until the client goes away or ctx
// ends.
func (w *websocketBridge) ProcessMessagesFromServer(ctx context.Context) {
	ticker := time.NewTicker(w.opts.FrameInterval)
	defer ticker.Stop()

loop:
	for {
		open := w.drainClient(ctx)
		w.app.Pump()
		if !open {
			break
		}
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
		case <-w.inbox.Ready():
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownWait)
	defer cancel()
	w.app.Shutdown(shutdownCtx, w.opts.FrameInterval)
}

func (w *websocketBridge) drainClient(ctx context.Context) bool {
	for {
		msg, status := w.inbox.TryRecv()
		switch status {
		case mailbox.Received:
			w.handle(ctx, msg)
		case mailbox.Closed:
			return false
		default:
			return true
		}
	}
}

func (w *websocketBridge) handle(ctx context.Context, msg ds.ClientMessage) {
	ack := &ds.ServerMessage{Ack: msg.Id, Event: "ack"}
	id, err := w.apply(msg)
	if err != nil {
		ack.Error = err.Error()
	} else {
		ack.OK = true
		ack.ID = id
	}
	w.write(ctx, ack)
}

func (w *websocketBridge) apply(msg ds.ClientMessage) (uint64, error) {
	switch msg.Op {
	case ds.OpConnect:
		var p ds.ConnectPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return 0, err
		}
		if w.app.Session.Connected || w.app.Session.Connecting {
			return 0, panels.ErrAlreadyConnected
		}
		w.app.Session.Load([]ds.ConfigFileEntry{{Name: "ws", Path: p.ConfigPath}})
		if err := w.app.Session.Connect(0); err != nil {
			return 0, err
		}
		return w.app.Session.SessionID, nil

	case ds.OpDisconnect:
		w.app.Session.Disconnect()
		return w.app.Session.SessionID, nil

	case ds.OpSubscribe:
		var p ds.SubscribePayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return 0, err
		}
		name := p.Name
		if name == "" {
			name = p.KeyExpr
		}
		s := w.app.Sub.Add(name, p.KeyExpr, p.Origin, common.DefaultSampleBuffer)
		if err := w.app.Sub.Subscribe(len(w.app.Sub.Items) - 1); err != nil {
			_ = w.app.Sub.Remove(len(w.app.Sub.Items) - 1)
			return 0, err
		}
		return s.SubID, nil

	case ds.OpUnsubscribe:
		var p ds.UnsubscribePayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return 0, err
		}
		for i, s := range w.app.Sub.Items {
			if s.SubID == p.ID {
				return p.ID, w.app.Sub.Remove(i)
			}
		}
		return 0, fmt.Errorf("no subscription %d", p.ID)

	case ds.OpPut:
		var p ds.PutPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return 0, err
		}
		if err := w.preparePut(p); err != nil {
			return 0, err
		}
		if err := w.app.Put.Send(0); err != nil {
			return 0, err
		}
		return w.put.RequestID(), nil

	case ds.OpGet:
		var p ds.GetPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return 0, err
		}
		if err := w.prepareGet(p); err != nil {
			return 0, err
		}
		if err := w.app.Get.Send(0); err != nil {
			return 0, err
		}
		return w.get.RequestID(), nil
	}
	return 0, fmt.Errorf("unknown op %q", msg.Op)
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errors.New("missing payload")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

func (w *websocketBridge) preparePut(p ds.PutPayload) error {
	it := w.put
	it.Name = p.Name
	it.Key = p.Key
	it.Attachment = p.Attachment
	it.CongestionControl = ds.CongestionBlock
	if p.CongestionControl != nil {
		it.CongestionControl = *p.CongestionControl
	}
	it.Priority = ds.PriorityRealTime
	if p.Priority != nil {
		it.Priority = *p.Priority
	}
	return fillEditor(it.Editor, p.Encoding, p.Value)
}

func (w *websocketBridge) prepareGet(p ds.GetPayload) error {
	it := w.get
	it.Name = p.Name
	it.Selector = p.Selector
	it.Target = p.Target
	it.Consolidation = p.Consolidation
	it.Locality = p.Locality
	it.Attachment = p.Attachment
	it.Timeout = common.DefaultQueryTimeout
	if p.TimeoutMs > 0 {
		it.Timeout = time.Duration(p.TimeoutMs) * time.Millisecond
	}
	it.HasValue = p.Value != nil
	if !it.HasValue {
		return nil
	}
	return fillEditor(it.Value, p.Encoding, *p.Value)
}

// fillEditor points an editor at value. Image encodings read value as a
// server-side file path; binary ones take it as hex.
func fillEditor(e *panels.Editor, label, value string) error {
	enc := ds.Encoding{ID: encodingregistry.TextPlain}
	if label != "" {
		var err error
		if enc, err = encodingregistry.Parse(label); err != nil {
			return err
		}
	}
	e.Source = ds.PayloadFromInput
	if err := e.SetEncoding(enc.ID, enc.Schema); err != nil {
		return err
	}
	if e.Kind() == encodingregistry.EditorImage {
		e.FilePath = value
		e.Input = ""
		return nil
	}
	e.Input = value
	e.FilePath = ""
	return nil
}

func (w *websocketBridge) forwardEvent(ctx context.Context, ev ds.Event) {
	objPool := pool.GetGlobalPool()
	msg := objPool.ServerMessage.Get()
	defer objPool.ResetServerMessage(msg)

	switch e := ev.(type) {
	case ds.SessionOpened:
		msg.Event, msg.ID, msg.OK, msg.Error = "session_opened", e.SessionID, e.OK(), e.Err
	case ds.SessionClosed:
		msg.Event, msg.ID, msg.OK = "session_closed", e.SessionID, true
	case ds.SubscriptionAdded:
		msg.Event, msg.ID, msg.OK, msg.Error = "subscription_added", e.ID, e.OK(), e.Err
	case ds.SubscriptionRemoved:
		msg.Event, msg.ID, msg.OK = "subscription_removed", e.ID, true
	case ds.SampleReceived:
		msg.Event, msg.ID, msg.OK = "sample", e.ID, true
		w.describeSample(msg, e.Sample)
		msg.ReceivedAt = e.ReceivedAt.UTC().Format(time.RFC3339Nano)
	case ds.QueryReply:
		msg.Event, msg.ID = "query_reply", e.ID
		switch {
		case e.Reply.Err != nil:
			msg.Error = string(e.Reply.Err.Payload)
			msg.Encoding = &e.Reply.Err.Encoding
		case e.Reply.Sample != nil:
			msg.OK = true
			w.describeSample(msg, *e.Reply.Sample)
		}
	case ds.PublishResult:
		msg.Event, msg.ID, msg.OK = "publish_result", e.ID, e.Success
		if e.Success {
			msg.View = e.Message
		} else {
			msg.Error = e.Message
		}
	default:
		return
	}
	w.write(ctx, msg)
}

func (w *websocketBridge) describeSample(msg *ds.ServerMessage, s ds.Sample) {
	enc := s.Encoding
	msg.KeyExpr = s.KeyExpr
	msg.Encoding = &enc
	msg.View = View(payloaddecoder.Decode(s.Encoding, s.Payload), s.Payload, w.opts.HexColumns)
}

// SampleView is the JSON shape of a decoded payload.
type SampleView struct {
	Kind   string `json:"kind"`
	Text   string `json:"text,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Size   int    `json:"size,omitempty"`
}

// View flattens a representation for the wire. Binary payloads carry their
// first hex page.
func View(rep payloaddecoder.Representation, data []byte, hexColumns int) SampleView {
	v := SampleView{Kind: rep.Kind(), Size: len(data)}
	switch r := rep.(type) {
	case payloaddecoder.Text:
		v.Text = r.Content
	case payloaddecoder.JSON:
		v.Text = r.Pretty
	case payloaddecoder.Image:
		v.Width, v.Height = r.Width, r.Height
	case payloaddecoder.Binary:
		v.Text = payloaddecoder.NewHexView(data, hexColumns).Render(0)
	case payloaddecoder.Error:
		v.Text = r.Message
	}
	return v
}

func (w *websocketBridge) write(ctx context.Context, msg *ds.ServerMessage) {
	msg.Version = ProtocolVersion

	objPool := pool.GetGlobalPool()
	buf := objPool.Buffer.Get()
	defer objPool.ResetBuffer(buf)

	if err := json.NewEncoder(buf).Encode(msg); err != nil {
		slogctx.FromCtx(ctx).ErrorContext(ctx, "error encoding server message", slog.Any("error", err))
		return
	}
	data := make([]byte, buf.Len())
	copy(data, buf.Bytes())
	if err := w.writer.WriteMessage(w.wsConnID, websocket.TextMessage, data); err != nil {
		slogctx.FromCtx(ctx).WarnContext(ctx, "error writing to websocket", "event", msg.Event, slog.Any("error", err))
	}
}
