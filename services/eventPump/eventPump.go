// Package eventpump is the per-frame glue between the panels and the session
// bridge. Pump never blocks.
package eventpump

import (
	"context"
	"time"

	"github.com/kychandar/hammer/common"
	"github.com/kychandar/hammer/ds"
	"github.com/kychandar/hammer/services"
	"github.com/kychandar/hammer/services/mailbox"
	"github.com/kychandar/hammer/services/panels"
	sessionbridge "github.com/kychandar/hammer/services/sessionBridge"
	slogctx "github.com/veqryn/slog-context"
)

type Options struct {
	Opener       services.SessionOpener
	PollInterval time.Duration
	Metrics      services.MetricsRegistry
}

// App owns every panel and at most one live bridge.
type App struct {
	Session *panels.SessionPanel
	Sub     *panels.SubPanel
	Put     *panels.PutPanel
	Get     *panels.GetPanel

	ctx  context.Context
	opts Options

	commands   *mailbox.Mailbox[ds.Command]
	bridgeDone <-chan struct{}
	// inboxes holds the event mailboxes of every bridge that has not closed
	// them yet, including ones already told to shut down.
	inboxes   []*mailbox.Mailbox[ds.Event]
	observers []func(ds.Event)
}

func New(ctx context.Context, opts Options) *App {
	return &App{
		Session: panels.NewSessionPanel(),
		Sub:     panels.NewSubPanel(),
		Put:     panels.NewPutPanel(),
		Get:     panels.NewGetPanel(),
		ctx:     ctx,
		opts:    opts,
	}
}

// Observe registers fn to see every event after the panels handled it.
func (a *App) Observe(fn func(ds.Event)) {
	a.observers = append(a.observers, fn)
}

// Connected reports whether commands can currently reach a bridge.
func (a *App) Connected() bool {
	if a.commands == nil {
		return false
	}
	select {
	case <-a.bridgeDone:
		return false
	default:
		return true
	}
}

// Pending reports whether some bridge may still emit events.
func (a *App) Pending() bool {
	return len(a.inboxes) > 0
}

// Pump drains bridge events, then panel intents. It returns the number of
// events dispatched.
func (a *App) Pump() int {
	n := a.drainEvents()

	for _, intent := range a.Session.TakeIntents() {
		a.forward(intent)
	}
	for _, intent := range a.Sub.TakeIntents() {
		a.forward(intent)
	}
	for _, intent := range a.Put.TakeIntents() {
		a.forward(intent)
	}
	for _, intent := range a.Get.TakeIntents() {
		a.forward(intent)
	}
	return n
}

func (a *App) drainEvents() int {
	n := 0
	live := a.inboxes[:0]
	for _, inbox := range a.inboxes {
		open := true
	drain:
		for {
			ev, status := inbox.TryRecv()
			switch status {
			case mailbox.Received:
				a.dispatch(ev)
				n++
			case mailbox.Closed:
				open = false
				break drain
			default:
				break drain
			}
		}
		if open {
			live = append(live, inbox)
		}
	}
	clear(a.inboxes[len(live):])
	a.inboxes = live
	return n
}

func (a *App) dispatch(ev ds.Event) {
	switch e := ev.(type) {
	case ds.SessionOpened:
		a.Session.HandleOpened(e)
		if !e.OK() && e.SessionID == a.Session.SessionID {
			a.dropSender()
		}
	case ds.SessionClosed:
		a.Session.HandleClosed(e)
		if e.SessionID == a.Session.SessionID {
			a.dropSender()
			a.Sub.Reset()
		}
	case ds.SubscriptionAdded:
		a.Sub.HandleAdded(e)
	case ds.SubscriptionRemoved:
		a.Sub.HandleRemoved(e)
	case ds.SampleReceived:
		a.Sub.HandleSample(e)
	case ds.QueryReply:
		a.Get.HandleReply(e)
	case ds.PublishResult:
		a.Put.HandleResult(e)
	}

	for _, fn := range a.observers {
		fn(ev)
	}
}

func (a *App) forward(intent panels.Intent) {
	switch i := intent.(type) {
	case panels.Connect:
		a.connect(i)
	case panels.Disconnect:
		slogctx.FromCtx(a.ctx).InfoContext(a.ctx, "disconnect requested", "session_id", a.Session.SessionID)
		a.dropSender()
	case panels.Subscribe:
		if !a.send(ds.AddSubscription{ID: i.ID, KeyExpr: i.KeyExpr, Origin: i.Origin}) {
			a.dispatch(ds.SubscriptionAdded{ID: i.ID, Err: common.NotConnected})
		}
	case panels.Unsubscribe:
		if !a.send(ds.RemoveSubscription{ID: i.ID}) {
			a.dispatch(ds.SubscriptionRemoved{ID: i.ID})
		}
	case panels.Put:
		if !a.send(ds.Publish{ID: i.ID, Request: i.Request}) {
			a.dispatch(ds.PublishResult{ID: i.ID, Message: common.NotConnected})
		}
	case panels.Get:
		if !a.send(ds.Query{ID: i.ID, Request: i.Request}) {
			a.dispatch(ds.QueryReply{ID: i.ID, Reply: ds.Reply{Err: ds.NewReplyError(common.NotConnected)}})
		}
	}
}

func (a *App) connect(c panels.Connect) {
	a.dropSender()
	h := sessionbridge.Start(a.ctx, sessionbridge.Options{
		Opener:       a.opts.Opener,
		ConfigPath:   c.ConfigPath,
		SessionID:    c.SessionID,
		PollInterval: a.opts.PollInterval,
		Metrics:      a.opts.Metrics,
	})
	a.commands = h.Commands
	a.bridgeDone = h.Done()
	a.inboxes = append(a.inboxes, h.Events)
	slogctx.FromCtx(a.ctx).InfoContext(a.ctx, "bridge started", "session_id", c.SessionID, "config", c.ConfigPath)
}

func (a *App) send(cmd ds.Command) bool {
	if !a.Connected() {
		return false
	}
	return a.commands.Send(cmd)
}

// dropSender closes the command mailbox; the bridge sees it as a disconnect.
func (a *App) dropSender() {
	if a.commands == nil {
		return
	}
	a.commands.Close()
	a.commands = nil
	a.bridgeDone = nil
}

// Shutdown disconnects and keeps pumping until every bridge closed its
// events or ctx ends.
func (a *App) Shutdown(ctx context.Context, interval time.Duration) {
	a.dropSender()
	if interval <= 0 {
		interval = common.DefaultFrameInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		a.Pump()
		if !a.Pending() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Run pumps once per interval and calls frame after each pump, until ctx
// ends.
func (a *App) Run(ctx context.Context, interval time.Duration, frame func()) {
	if interval <= 0 {
		interval = common.DefaultFrameInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		a.Pump()
		if frame != nil {
			frame()
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ToArchive captures the panels as a persisted document.
func (a *App) ToArchive() *ds.Archive {
	doc := ds.NewArchive()
	if files := a.Session.Entries(); len(files) > 0 {
		doc.PageSession = &ds.SessionPage{ConfigFiles: files}
	}
	doc.PageSub.Subscribers = a.Sub.Entries()
	doc.PagePut.Puts = a.Put.Entries()
	doc.PageGet.Gets = a.Get.Entries()
	return doc
}

// LoadArchive replaces panel contents with doc. Live subscriptions are not
// touched on the bus; callers load before connecting.
func (a *App) LoadArchive(doc *ds.Archive) {
	if doc == nil {
		doc = ds.NewArchive()
	}
	if doc.PageSession != nil {
		a.Session.Load(doc.PageSession.ConfigFiles)
	} else {
		a.Session.Load(nil)
	}
	a.Sub.Load(doc.PageSub.Subscribers)
	a.Put.Load(doc.PagePut.Puts)
	a.Get.Load(doc.PageGet.Gets)
}
