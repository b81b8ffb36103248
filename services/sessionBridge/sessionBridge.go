package sessionbridge

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/kychandar/hammer/common"
	"github.com/kychandar/hammer/config"
	"github.com/kychandar/hammer/ds"
	"github.com/kychandar/hammer/services"
	"github.com/kychandar/hammer/services/mailbox"
	metricsregistry "github.com/kychandar/hammer/services/metricsRegistry"
	slogctx "github.com/veqryn/slog-context"
)

type Options struct {
	Opener     services.SessionOpener
	ConfigPath string
	SessionID  uint64
	// PollInterval bounds how long the loop parks when no command is queued.
	PollInterval time.Duration
	Metrics      services.MetricsRegistry
}

// Handle is the front end's side of a running bridge.
type Handle struct {
	Commands *mailbox.Mailbox[ds.Command]
	Events   *mailbox.Mailbox[ds.Event]
	done     chan struct{}
}

// Done is closed once the bridge goroutine and everything it spawned exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

type bridge struct {
	opts    Options
	session services.Session
	cmds    *mailbox.Mailbox[ds.Command]
	events  *mailbox.Mailbox[ds.Event]
	metrics services.MetricsRegistry

	cancels *haxmap.Map[uint64, context.CancelFunc]
	// relayMu orders listener sends against cancellation: once a cancel
	// function returned under the write lock, its listener emits nothing more.
	relayMu sync.RWMutex
	wg      sync.WaitGroup
}

// Start spawns a bridge that opens a session from opts.ConfigPath and then
// serves commands until Close, the command mailbox closing, or ctx ending.
func Start(ctx context.Context, opts Options) *Handle {
	if opts.PollInterval <= 0 {
		opts.PollInterval = common.DefaultPollInterval
	}
	if opts.Metrics == nil {
		opts.Metrics = metricsregistry.New(fmt.Sprintf("session-%d", opts.SessionID))
	}

	h := &Handle{
		Commands: mailbox.New[ds.Command](),
		Events:   mailbox.New[ds.Event](),
		done:     make(chan struct{}),
	}
	b := &bridge{
		opts:    opts,
		cmds:    h.Commands,
		events:  h.Events,
		metrics: opts.Metrics,
		cancels: haxmap.New[uint64, context.CancelFunc](),
	}
	go b.run(ctx, h.done)
	return h
}

func (b *bridge) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer b.events.Close()

	logger := slogctx.FromCtx(ctx).With("component", "session-bridge", "session_id", b.opts.SessionID)
	ctx = slogctx.NewCtx(ctx, logger)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if !b.open(ctx) {
		b.emit(ds.SessionClosed{SessionID: b.opts.SessionID})
		return
	}

	b.loop(ctx)
	b.shutdown(ctx, cancel)
}

func (b *bridge) open(ctx context.Context) bool {
	logger := slogctx.FromCtx(ctx)

	cfg, err := config.LoadSession(b.opts.ConfigPath)
	if err != nil {
		logger.ErrorContext(ctx, "failed to load session config", "path", b.opts.ConfigPath, "err", err)
		b.emit(ds.SessionOpened{SessionID: b.opts.SessionID, Err: err.Error()})
		return false
	}

	session, err := b.opts.Opener(ctx, cfg)
	if err != nil {
		logger.ErrorContext(ctx, "failed to open session", "err", err)
		b.emit(ds.SessionOpened{SessionID: b.opts.SessionID, Err: err.Error()})
		return false
	}

	b.session = session
	b.metrics.SetSessionOpen(true)
	logger.InfoContext(ctx, "session opened", "bus_session", session.ID())
	b.emit(ds.SessionOpened{SessionID: b.opts.SessionID})
	return true
}

func (b *bridge) loop(ctx context.Context) {
	logger := slogctx.FromCtx(ctx)
	timer := time.NewTimer(b.opts.PollInterval)
	defer timer.Stop()

	for {
		cmd, status := b.cmds.TryRecv()
		switch status {
		case mailbox.Received:
			if b.handle(ctx, cmd) {
				logger.InfoContext(ctx, "close requested")
				return
			}
			continue
		case mailbox.Closed:
			logger.InfoContext(ctx, "command sender dropped")
			return
		}

		timer.Reset(b.opts.PollInterval)
		select {
		case <-ctx.Done():
			return
		case <-b.cmds.Ready():
		case <-timer.C:
		}
	}
}

// handle reports whether the bridge should stop.
func (b *bridge) handle(ctx context.Context, cmd ds.Command) bool {
	switch c := cmd.(type) {
	case ds.Close:
		b.metrics.IncCommand("close")
		return true
	case ds.AddSubscription:
		b.metrics.IncCommand("add_subscription")
		b.subscribe(ctx, c)
	case ds.RemoveSubscription:
		b.metrics.IncCommand("remove_subscription")
		b.unsubscribe(c.ID)
		b.emit(ds.SubscriptionRemoved{ID: c.ID})
	case ds.Query:
		b.metrics.IncCommand("query")
		b.query(ctx, c)
	case ds.Publish:
		b.metrics.IncCommand("publish")
		b.publish(ctx, c)
	default:
		slogctx.FromCtx(ctx).WarnContext(ctx, "unknown command", "type", fmt.Sprintf("%T", cmd))
	}
	return false
}

func (b *bridge) subscribe(ctx context.Context, c ds.AddSubscription) {
	logger := slogctx.FromCtx(ctx).With("subscription", c.ID, "key_expr", c.KeyExpr)

	if _, ok := b.cancels.Get(c.ID); ok {
		b.emit(ds.SubscriptionAdded{ID: c.ID, Err: fmt.Sprintf("subscription %d already active", c.ID)})
		return
	}

	sub, err := b.session.DeclareSubscriber(ctx, c.KeyExpr, c.Origin)
	if err != nil {
		logger.WarnContext(ctx, "declare subscriber failed", "err", err)
		b.emit(ds.SubscriptionAdded{ID: c.ID, Err: err.Error()})
		return
	}

	lctx, cancel := context.WithCancel(ctx)
	b.cancels.Set(c.ID, cancel)
	b.metrics.SetActiveSubscriptions(int(b.cancels.Len()))
	b.emit(ds.SubscriptionAdded{ID: c.ID})

	b.wg.Add(1)
	go b.listen(lctx, c.ID, sub)
	logger.DebugContext(ctx, "subscription added")
}

func (b *bridge) listen(ctx context.Context, id uint64, sub services.Subscriber) {
	defer b.wg.Done()
	defer func() {
		if err := sub.Undeclare(); err != nil {
			slogctx.FromCtx(ctx).DebugContext(ctx, "undeclare failed", "subscription", id, "err", err)
		}
	}()

	samples := sub.Samples()
	for {
		select {
		case <-ctx.Done():
			return
		case sample, ok := <-samples:
			if !ok {
				return
			}
			now := time.Now()
			if sample.Timestamp.IsZero() {
				sample.Timestamp = now
			}
			if !b.relay(ctx, ds.SampleReceived{ID: id, Sample: sample, ReceivedAt: now}) {
				return
			}
			b.metrics.IncSample(sample.KeyExpr)
		}
	}
}

// relay emits ev unless ctx was cancelled.
func (b *bridge) relay(ctx context.Context, ev ds.Event) bool {
	b.relayMu.RLock()
	defer b.relayMu.RUnlock()
	if ctx.Err() != nil {
		return false
	}
	b.emit(ev)
	return true
}

func (b *bridge) unsubscribe(id uint64) {
	cancel, ok := b.cancels.Get(id)
	if !ok {
		return
	}
	b.cancels.Del(id)

	b.relayMu.Lock()
	cancel()
	b.relayMu.Unlock()
	b.metrics.SetActiveSubscriptions(int(b.cancels.Len()))
}

func (b *bridge) query(ctx context.Context, c ds.Query) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		replies, err := b.session.Get(ctx, c.Request)
		if err != nil {
			slogctx.FromCtx(ctx).WarnContext(ctx, "query failed", "query", c.ID, "selector", c.Request.Selector, "err", err)
			b.metrics.IncQueryReply(false)
			b.emit(ds.QueryReply{ID: c.ID, Reply: ds.Reply{Err: ds.NewReplyError(err.Error())}})
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case r, ok := <-replies:
				if !ok {
					return
				}
				b.metrics.IncQueryReply(r.OK())
				b.emit(ds.QueryReply{ID: c.ID, Reply: r})
			}
		}
	}()
}

func (b *bridge) publish(ctx context.Context, c ds.Publish) {
	started := time.Now()
	err := b.session.Put(ctx, c.Request)
	b.metrics.ObservePublish(started, err == nil)

	if err != nil {
		slogctx.FromCtx(ctx).WarnContext(ctx, "put failed", "publish", c.ID, "key", c.Request.KeyExpr, "err", err)
		b.emit(ds.PublishResult{ID: c.ID, Message: common.PutErrorMessage(c.Request.KeyExpr, err)})
		return
	}
	b.emit(ds.PublishResult{ID: c.ID, Success: true, Message: common.PutOKMessage(c.Request.KeyExpr)})
}

func (b *bridge) shutdown(ctx context.Context, cancel context.CancelFunc) {
	logger := slogctx.FromCtx(ctx)

	var ids []uint64
	b.cancels.ForEach(func(id uint64, _ context.CancelFunc) bool {
		ids = append(ids, id)
		return true
	})
	slices.Sort(ids)
	for _, id := range ids {
		b.unsubscribe(id)
		b.emit(ds.SubscriptionRemoved{ID: id})
	}

	if err := b.session.Close(); err != nil {
		logger.WarnContext(ctx, "session close failed", "err", err)
	}
	cancel()
	b.wg.Wait()

	b.metrics.SetSessionOpen(false)
	b.emit(ds.SessionClosed{SessionID: b.opts.SessionID})
	logger.InfoContext(ctx, "session closed", slog.Int("removed_subscriptions", len(ids)))
}

func (b *bridge) emit(ev ds.Event) {
	b.events.Send(ev)
}
