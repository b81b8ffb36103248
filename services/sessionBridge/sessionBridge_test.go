package sessionbridge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kychandar/hammer/config"
	"github.com/kychandar/hammer/ds"
	"github.com/kychandar/hammer/mocks"
	"github.com/kychandar/hammer/services"
	"github.com/kychandar/hammer/services/mailbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newSession() *mocks.MockSession {
	sess := new(mocks.MockSession)
	sess.On("ID").Return("bus-1")
	sess.On("Close").Return(nil)
	return sess
}

func start(t *testing.T, sess services.Session) *Handle {
	t.Helper()
	return Start(context.Background(), Options{
		SessionID: 1,
		Opener: func(ctx context.Context, cfg *config.SessionConfig) (services.Session, error) {
			return sess, nil
		},
		PollInterval: time.Millisecond,
	})
}

func next(t *testing.T, h *Handle) ds.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ev, err := h.Events.Recv(ctx)
	require.NoError(t, err)
	return ev
}

// drain reads until the bridge closes the event mailbox.
func drain(t *testing.T, h *Handle) []ds.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var out []ds.Event
	for {
		ev, err := h.Events.Recv(ctx)
		if errors.Is(err, mailbox.ErrClosed) {
			return out
		}
		require.NoError(t, err)
		out = append(out, ev)
	}
}

func expectOpened(t *testing.T, h *Handle) {
	t.Helper()
	assert.Equal(t, ds.SessionOpened{SessionID: 1}, next(t, h))
}

func TestStart_OpenFailure(t *testing.T) {
	h := Start(context.Background(), Options{
		SessionID: 3,
		Opener: func(ctx context.Context, cfg *config.SessionConfig) (services.Session, error) {
			return nil, errors.New("connection refused")
		},
	})

	events := drain(t, h)
	assert.Equal(t, []ds.Event{
		ds.SessionOpened{SessionID: 3, Err: "connection refused"},
		ds.SessionClosed{SessionID: 3},
	}, events)

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("bridge did not exit")
	}
	assert.False(t, h.Commands.IsClosed())
}

func TestStart_BadConfigFile(t *testing.T) {
	opened := false
	h := Start(context.Background(), Options{
		SessionID:  4,
		ConfigPath: filepath.Join(t.TempDir(), "missing.json5"),
		Opener: func(ctx context.Context, cfg *config.SessionConfig) (services.Session, error) {
			opened = true
			return nil, nil
		},
	})

	events := drain(t, h)
	require.Len(t, events, 2)
	ev, ok := events[0].(ds.SessionOpened)
	require.True(t, ok)
	assert.False(t, ev.OK())
	assert.Contains(t, ev.Err, "read session config")
	<-h.Done()
	assert.False(t, opened)
}

func TestStart_PassesSessionConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json5")
	require.NoError(t, os.WriteFile(path, []byte("{url: \"nats://example:4222\", // comment\n}"), 0o644))

	var got *config.SessionConfig
	sess := newSession()
	h := Start(context.Background(), Options{
		SessionID:  1,
		ConfigPath: path,
		Opener: func(ctx context.Context, cfg *config.SessionConfig) (services.Session, error) {
			got = cfg
			return sess, nil
		},
	})
	expectOpened(t, h)
	h.Commands.Send(ds.Close{})
	drain(t, h)

	require.NotNil(t, got)
	assert.Equal(t, "nats://example:4222", got.URL)
}

// A declare failure yields exactly one failed acknowledgement and no listener.
func TestAddSubscription_DeclareFailure(t *testing.T) {
	sess := newSession()
	sess.On("DeclareSubscriber", mock.Anything, "demo/**", ds.LocalityAny).Return(nil, errors.New("closed"))

	h := start(t, sess)
	expectOpened(t, h)

	h.Commands.Send(ds.AddSubscription{ID: 7, KeyExpr: "demo/**", Origin: ds.LocalityAny})
	h.Commands.Send(ds.Close{})

	events := drain(t, h)
	assert.Equal(t, []ds.Event{
		ds.SubscriptionAdded{ID: 7, Err: "closed"},
		ds.SessionClosed{SessionID: 1},
	}, events)
	sess.AssertNumberOfCalls(t, "DeclareSubscriber", 1)
}

func TestAddSubscription_RelaysSamplesInOrder(t *testing.T) {
	sub := mocks.NewMockSubscriber()
	sub.On("Undeclare").Return(nil)
	sess := newSession()
	sess.On("DeclareSubscriber", mock.Anything, "demo/*", ds.LocalityRemote).Return(sub, nil)

	h := start(t, sess)
	expectOpened(t, h)

	h.Commands.Send(ds.AddSubscription{ID: 1, KeyExpr: "demo/*", Origin: ds.LocalityRemote})
	assert.Equal(t, ds.SubscriptionAdded{ID: 1}, next(t, h))

	sourceTime := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	sub.Ch <- ds.Sample{KeyExpr: "demo/a", Payload: []byte("s1")}
	sub.Ch <- ds.Sample{KeyExpr: "demo/b", Payload: []byte("s2"), Timestamp: sourceTime}

	first, ok := next(t, h).(ds.SampleReceived)
	require.True(t, ok)
	second, ok := next(t, h).(ds.SampleReceived)
	require.True(t, ok)

	assert.Equal(t, uint64(1), first.ID)
	assert.Equal(t, []byte("s1"), first.Sample.Payload)
	assert.False(t, first.Sample.Timestamp.IsZero())
	assert.False(t, first.ReceivedAt.IsZero())
	assert.Equal(t, []byte("s2"), second.Sample.Payload)
	assert.Equal(t, sourceTime, second.Sample.Timestamp)

	h.Commands.Send(ds.Close{})
	assert.Equal(t, []ds.Event{
		ds.SubscriptionRemoved{ID: 1},
		ds.SessionClosed{SessionID: 1},
	}, drain(t, h))
	sub.AssertCalled(t, "Undeclare")
}

func TestAddSubscription_DuplicateID(t *testing.T) {
	sub := mocks.NewMockSubscriber()
	sub.On("Undeclare").Return(nil)
	sess := newSession()
	sess.On("DeclareSubscriber", mock.Anything, "a", ds.LocalityAny).Return(sub, nil).Once()

	h := start(t, sess)
	expectOpened(t, h)

	h.Commands.Send(ds.AddSubscription{ID: 2, KeyExpr: "a"})
	h.Commands.Send(ds.AddSubscription{ID: 2, KeyExpr: "a"})
	assert.Equal(t, ds.SubscriptionAdded{ID: 2}, next(t, h))
	assert.Equal(t, ds.SubscriptionAdded{ID: 2, Err: "subscription 2 already active"}, next(t, h))

	h.Commands.Send(ds.Close{})
	drain(t, h)
	sess.AssertNumberOfCalls(t, "DeclareSubscriber", 1)
}

func TestRemoveSubscription_NeverAdded(t *testing.T) {
	sess := newSession()
	h := start(t, sess)
	expectOpened(t, h)

	h.Commands.Send(ds.RemoveSubscription{ID: 9})
	h.Commands.Send(ds.Close{})

	assert.Equal(t, []ds.Event{
		ds.SubscriptionRemoved{ID: 9},
		ds.SessionClosed{SessionID: 1},
	}, drain(t, h))
}

func TestRemoveSubscription_StopsListener(t *testing.T) {
	sub := mocks.NewMockSubscriber()
	undeclared := make(chan struct{})
	sub.On("Undeclare").Run(func(mock.Arguments) { close(undeclared) }).Return(nil)
	sess := newSession()
	sess.On("DeclareSubscriber", mock.Anything, "k", ds.LocalityAny).Return(sub, nil)

	h := start(t, sess)
	expectOpened(t, h)

	h.Commands.Send(ds.AddSubscription{ID: 5, KeyExpr: "k"})
	assert.Equal(t, ds.SubscriptionAdded{ID: 5}, next(t, h))

	h.Commands.Send(ds.RemoveSubscription{ID: 5})
	assert.Equal(t, ds.SubscriptionRemoved{ID: 5}, next(t, h))

	select {
	case <-undeclared:
	case <-time.After(time.Second):
		t.Fatal("listener did not undeclare")
	}
	sub.Ch <- ds.Sample{KeyExpr: "k"}

	h.Commands.Send(ds.Close{})
	assert.Equal(t, []ds.Event{ds.SessionClosed{SessionID: 1}}, drain(t, h))
}

func TestListener_ExitsWhenSamplesClose(t *testing.T) {
	sub := mocks.NewMockSubscriber()
	sub.On("Undeclare").Return(nil)
	sess := newSession()
	sess.On("DeclareSubscriber", mock.Anything, "k", ds.LocalityAny).Return(sub, nil)

	h := start(t, sess)
	expectOpened(t, h)
	h.Commands.Send(ds.AddSubscription{ID: 1, KeyExpr: "k"})
	assert.Equal(t, ds.SubscriptionAdded{ID: 1}, next(t, h))

	close(sub.Ch)
	h.Commands.Send(ds.Close{})
	// The id is still booked, so close acknowledges it.
	assert.Equal(t, []ds.Event{
		ds.SubscriptionRemoved{ID: 1},
		ds.SessionClosed{SessionID: 1},
	}, drain(t, h))
}

func TestPublish(t *testing.T) {
	sess := newSession()
	sess.On("Put", mock.Anything, mock.MatchedBy(func(r ds.PutRequest) bool { return r.KeyExpr == "demo/ok" })).Return(nil)
	sess.On("Put", mock.Anything, mock.MatchedBy(func(r ds.PutRequest) bool { return r.KeyExpr == "demo/bad" })).Return(errors.New("timeout"))

	h := start(t, sess)
	expectOpened(t, h)

	h.Commands.Send(ds.Publish{ID: 1, Request: ds.PutRequest{KeyExpr: "demo/ok", Payload: []byte("x")}})
	h.Commands.Send(ds.Publish{ID: 2, Request: ds.PutRequest{KeyExpr: "demo/bad", Payload: []byte("x")}})

	assert.Equal(t, ds.PublishResult{ID: 1, Success: true, Message: `put ok "demo/ok"`}, next(t, h))
	assert.Equal(t, ds.PublishResult{ID: 2, Success: false, Message: `put error "demo/bad", timeout`}, next(t, h))

	h.Commands.Send(ds.Close{})
	drain(t, h)
}

func TestQuery_RelaysReplies(t *testing.T) {
	replies := make(chan ds.Reply, 2)
	replies <- ds.Reply{Sample: &ds.Sample{KeyExpr: "demo/a", Payload: []byte("1")}}
	replies <- ds.Reply{Err: ds.NewReplyError("no data")}
	close(replies)

	sess := newSession()
	sess.On("Get", mock.Anything, mock.MatchedBy(func(r ds.QueryRequest) bool { return r.Selector == "demo/**" })).
		Return((<-chan ds.Reply)(replies), nil)
	sess.On("Get", mock.Anything, mock.MatchedBy(func(r ds.QueryRequest) bool { return r.Selector == "bad" })).
		Return(nil, errors.New("invalid selector"))

	h := start(t, sess)
	expectOpened(t, h)

	h.Commands.Send(ds.Query{ID: 4, Request: ds.QueryRequest{Selector: "demo/**"}})
	first, ok := next(t, h).(ds.QueryReply)
	require.True(t, ok)
	second, ok := next(t, h).(ds.QueryReply)
	require.True(t, ok)
	assert.Equal(t, uint64(4), first.ID)
	assert.True(t, first.Reply.OK())
	assert.False(t, second.Reply.OK())
	assert.Equal(t, "no data", second.Reply.Err.Error())

	h.Commands.Send(ds.Query{ID: 5, Request: ds.QueryRequest{Selector: "bad"}})
	failed, ok := next(t, h).(ds.QueryReply)
	require.True(t, ok)
	assert.Equal(t, uint64(5), failed.ID)
	assert.Equal(t, "invalid selector", failed.Reply.Err.Error())

	h.Commands.Send(ds.Close{})
	drain(t, h)
}

func TestClose_FlushesRemovalsInIDOrder(t *testing.T) {
	sess := newSession()
	for _, key := range []string{"a", "b", "c"} {
		sub := mocks.NewMockSubscriber()
		sub.On("Undeclare").Return(nil)
		sess.On("DeclareSubscriber", mock.Anything, key, ds.LocalityAny).Return(sub, nil)
	}

	h := start(t, sess)
	expectOpened(t, h)
	h.Commands.Send(ds.AddSubscription{ID: 30, KeyExpr: "c"})
	h.Commands.Send(ds.AddSubscription{ID: 10, KeyExpr: "a"})
	h.Commands.Send(ds.AddSubscription{ID: 20, KeyExpr: "b"})
	for range 3 {
		ev, ok := next(t, h).(ds.SubscriptionAdded)
		require.True(t, ok)
		require.True(t, ev.OK())
	}

	h.Commands.Send(ds.Close{})
	assert.Equal(t, []ds.Event{
		ds.SubscriptionRemoved{ID: 10},
		ds.SubscriptionRemoved{ID: 20},
		ds.SubscriptionRemoved{ID: 30},
		ds.SessionClosed{SessionID: 1},
	}, drain(t, h))
	sess.AssertCalled(t, "Close")
}

func TestCommandMailboxClosed_ShutsDown(t *testing.T) {
	sess := newSession()
	h := start(t, sess)
	expectOpened(t, h)

	h.Commands.Close()
	assert.Equal(t, []ds.Event{ds.SessionClosed{SessionID: 1}}, drain(t, h))
	sess.AssertCalled(t, "Close")
}

func TestContextCancel_ShutsDown(t *testing.T) {
	sess := newSession()
	ctx, cancel := context.WithCancel(context.Background())
	h := Start(ctx, Options{
		SessionID: 1,
		Opener: func(ctx context.Context, cfg *config.SessionConfig) (services.Session, error) {
			return sess, nil
		},
	})
	expectOpened(t, h)

	cancel()
	assert.Equal(t, []ds.Event{ds.SessionClosed{SessionID: 1}}, drain(t, h))
}

func TestPublish_UsesMetrics(t *testing.T) {
	mr := new(mocks.MockMetricsRegistry)
	mr.On("SetSessionOpen", mock.Anything).Return()
	mr.On("IncCommand", mock.Anything).Return()
	mr.On("ObservePublish", mock.Anything, true).Return()

	sess := newSession()
	sess.On("Put", mock.Anything, mock.Anything).Return(nil)

	h := Start(context.Background(), Options{
		SessionID: 1,
		Opener: func(ctx context.Context, cfg *config.SessionConfig) (services.Session, error) {
			return sess, nil
		},
		Metrics: mr,
	})
	expectOpened(t, h)
	h.Commands.Send(ds.Publish{ID: 1, Request: ds.PutRequest{KeyExpr: "k"}})
	next(t, h)
	h.Commands.Send(ds.Close{})
	drain(t, h)

	mr.AssertCalled(t, "IncCommand", "publish")
	mr.AssertCalled(t, "IncCommand", "close")
	mr.AssertCalled(t, "ObservePublish", mock.Anything, true)
	mr.AssertCalled(t, "SetSessionOpen", false)
}
