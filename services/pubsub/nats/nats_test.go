package nats

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kychandar/hammer/common"
	"github.com/kychandar/hammer/config"
	"github.com/kychandar/hammer/ds"
	"github.com/kychandar/hammer/services"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runEmbeddedNATSServer(t *testing.T) *server.Server {
	opts := &server.Options{
		Port: -1, // random available port
	}
	s, err := server.NewServer(opts)
	if err != nil {
		t.Fatalf("failed to start embedded NATS: %v", err)
	}
	go s.Start()
	if !s.ReadyForConnections(2 * time.Second) {
		t.Fatal("nats-server not ready")
	}
	t.Cleanup(func() {
		s.Shutdown()
		s.WaitForShutdown()
	})
	return s
}

func connect(t *testing.T, s *server.Server) *NatsSession {
	cfg := config.DefaultSession()
	cfg.URL = fmt.Sprintf("nats://%s", s.Addr().String())
	sess, err := Connect(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

func recvSample(t *testing.T, sub services.Subscriber) ds.Sample {
	t.Helper()
	select {
	case s, ok := <-sub.Samples():
		require.True(t, ok, "samples channel closed")
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for sample")
	}
	return ds.Sample{}
}

func collect(t *testing.T, replies <-chan ds.Reply) []ds.Reply {
	t.Helper()
	var out []ds.Reply
	deadline := time.After(5 * time.Second)
	for {
		select {
		case r, ok := <-replies:
			if !ok {
				return out
			}
			out = append(out, r)
		case <-deadline:
			t.Fatal("reply channel never closed")
		}
	}
}

func TestOpen_Unreachable(t *testing.T) {
	cfg := config.DefaultSession()
	cfg.URL = "nats://127.0.0.1:1"
	cfg.ConnectTimeout = 200 * time.Millisecond
	_, err := Open(context.Background(), cfg)
	assert.Error(t, err)
}

func TestPutSubscribe(t *testing.T) {
	s := runEmbeddedNATSServer(t)
	pub := connect(t, s)
	subSess := connect(t, s)
	ctx := context.Background()

	sub, err := subSess.DeclareSubscriber(ctx, "demo/*", ds.LocalityAny)
	require.NoError(t, err)
	defer sub.Undeclare()

	err = pub.Put(ctx, ds.PutRequest{
		KeyExpr:           "demo/a",
		Payload:           []byte("hello"),
		Encoding:          ds.Encoding{ID: ds.EncodingTextPlain},
		CongestionControl: ds.CongestionBlock,
		Priority:          ds.PriorityDataHigh,
		Attachment:        []byte{0x01, 0x02},
	})
	require.NoError(t, err)

	got := recvSample(t, sub)
	assert.Equal(t, "demo/a", got.KeyExpr)
	assert.Equal(t, []byte("hello"), got.Payload)
	assert.Equal(t, ds.EncodingTextPlain, got.Encoding.ID)
	assert.Equal(t, ds.PriorityDataHigh, got.Priority)
	assert.Equal(t, ds.CongestionBlock, got.CongestionControl)
	assert.Equal(t, []byte{0x01, 0x02}, got.Attachment)
	assert.Equal(t, pub.ID(), got.SourceSession)
	assert.False(t, got.Timestamp.IsZero())
}

func TestPut_RejectsWildcardKey(t *testing.T) {
	s := runEmbeddedNATSServer(t)
	sess := connect(t, s)

	err := sess.Put(context.Background(), ds.PutRequest{KeyExpr: "demo/*"})
	assert.ErrorIs(t, err, common.ErrWildcardInKey)
}

func TestDeclareSubscriber_TrailingDoubleWildcard(t *testing.T) {
	s := runEmbeddedNATSServer(t)
	sess := connect(t, s)
	ctx := context.Background()

	sub, err := sess.DeclareSubscriber(ctx, "demo/**", ds.LocalityAny)
	require.NoError(t, err)
	defer sub.Undeclare()

	// The bare prefix is not reached; the first sample is the deeper key.
	require.NoError(t, sess.Put(ctx, ds.PutRequest{KeyExpr: "demo", Payload: []byte("x"), CongestionControl: ds.CongestionBlock}))
	require.NoError(t, sess.Put(ctx, ds.PutRequest{KeyExpr: "demo/a/b/c", Payload: []byte("x"), CongestionControl: ds.CongestionBlock}))
	assert.Equal(t, "demo/a/b/c", recvSample(t, sub).KeyExpr)

	_, err = sess.DeclareSubscriber(ctx, "**/tail", ds.LocalityAny)
	assert.ErrorIs(t, err, common.ErrUnsupportedWildcard)
}

func TestDeclareSubscriber_Locality(t *testing.T) {
	s := runEmbeddedNATSServer(t)
	local := connect(t, s)
	remote := connect(t, s)
	ctx := context.Background()

	remoteOnly, err := local.DeclareSubscriber(ctx, "loc/k", ds.LocalityRemote)
	require.NoError(t, err)
	defer remoteOnly.Undeclare()
	localOnly, err := local.DeclareSubscriber(ctx, "loc/k", ds.LocalitySessionLocal)
	require.NoError(t, err)
	defer localOnly.Undeclare()

	require.NoError(t, local.Put(ctx, ds.PutRequest{KeyExpr: "loc/k", Payload: []byte("mine"), CongestionControl: ds.CongestionBlock}))
	require.NoError(t, remote.Put(ctx, ds.PutRequest{KeyExpr: "loc/k", Payload: []byte("theirs"), CongestionControl: ds.CongestionBlock}))

	assert.Equal(t, []byte("theirs"), recvSample(t, remoteOnly).Payload)
	assert.Equal(t, []byte("mine"), recvSample(t, localOnly).Payload)

	select {
	case extra := <-remoteOnly.Samples():
		t.Fatalf("unexpected sample %q", extra.Payload)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUndeclare_ClosesSamples(t *testing.T) {
	s := runEmbeddedNATSServer(t)
	sess := connect(t, s)

	sub, err := sess.DeclareSubscriber(context.Background(), "demo/x", ds.LocalityAny)
	require.NoError(t, err)
	require.NoError(t, sub.Undeclare())
	require.NoError(t, sub.Undeclare())

	select {
	case _, ok := <-sub.Samples():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("samples channel not closed")
	}
}

func TestClose_EndsSubscribers(t *testing.T) {
	s := runEmbeddedNATSServer(t)
	sess := connect(t, s)

	sub, err := sess.DeclareSubscriber(context.Background(), "demo/x", ds.LocalityAny)
	require.NoError(t, err)
	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())

	select {
	case _, ok := <-sub.Samples():
		assert.False(t, ok)
	case <-time.After(drainTimeout):
		t.Fatal("samples channel not closed after session close")
	}
}

func TestGet_RepliesFromQueryable(t *testing.T) {
	s := runEmbeddedNATSServer(t)
	responder := connect(t, s)
	requester := connect(t, s)
	ctx := context.Background()

	params := make(chan string, 1)
	q, err := responder.DeclareQueryable(ctx, "demo/**", func(iq services.IncomingQuery) {
		params <- iq.Parameters()
		_ = iq.Reply(ctx, ds.Sample{KeyExpr: "demo/test", Payload: []byte("42"), Encoding: ds.Encoding{ID: ds.EncodingTextPlain}})
	})
	require.NoError(t, err)
	defer q.Undeclare()

	replies, err := requester.Get(ctx, ds.QueryRequest{
		Selector: "demo/test?x=1",
		Target:   ds.TargetAll,
		Timeout:  300 * time.Millisecond,
	})
	require.NoError(t, err)

	got := collect(t, replies)
	require.Len(t, got, 1)
	require.True(t, got[0].OK())
	assert.Equal(t, "demo/test", got[0].Sample.KeyExpr)
	assert.Equal(t, []byte("42"), got[0].Sample.Payload)
	assert.Equal(t, "x=1", <-params)
}

func TestGet_ReplyError(t *testing.T) {
	s := runEmbeddedNATSServer(t)
	responder := connect(t, s)
	requester := connect(t, s)
	ctx := context.Background()

	q, err := responder.DeclareQueryable(ctx, "demo/test", func(iq services.IncomingQuery) {
		_ = iq.ReplyErr(ctx, []byte("nope"), ds.Encoding{ID: ds.EncodingTextPlain})
	})
	require.NoError(t, err)
	defer q.Undeclare()

	replies, err := requester.Get(ctx, ds.QueryRequest{Selector: "demo/test", Timeout: time.Second})
	require.NoError(t, err)

	got := collect(t, replies)
	require.Len(t, got, 1)
	require.False(t, got[0].OK())
	assert.Equal(t, "nope", got[0].Err.Error())
}

func TestGet_NoResponders(t *testing.T) {
	s := runEmbeddedNATSServer(t)
	sess := connect(t, s)

	started := time.Now()
	replies, err := sess.Get(context.Background(), ds.QueryRequest{Selector: "nobody/home", Timeout: 5 * time.Second})
	require.NoError(t, err)

	assert.Empty(t, collect(t, replies))
	assert.Less(t, time.Since(started), 4*time.Second)
}

func TestGet_InvalidSelector(t *testing.T) {
	s := runEmbeddedNATSServer(t)
	sess := connect(t, s)

	_, err := sess.Get(context.Background(), ds.QueryRequest{Selector: "?x=1"})
	assert.ErrorIs(t, err, common.ErrEmptyKeyExpr)
}

func TestGet_Locality(t *testing.T) {
	s := runEmbeddedNATSServer(t)
	sess := connect(t, s)
	ctx := context.Background()

	q, err := sess.DeclareQueryable(ctx, "self/k", func(iq services.IncomingQuery) {
		_ = iq.Reply(ctx, ds.Sample{KeyExpr: "self/k", Payload: []byte("me")})
	})
	require.NoError(t, err)
	defer q.Undeclare()

	replies, err := sess.Get(ctx, ds.QueryRequest{Selector: "self/k", Target: ds.TargetAll, Locality: ds.LocalityRemote, Timeout: 200 * time.Millisecond})
	require.NoError(t, err)
	assert.Empty(t, collect(t, replies))

	replies, err = sess.Get(ctx, ds.QueryRequest{Selector: "self/k", Target: ds.TargetAll, Locality: ds.LocalitySessionLocal, Timeout: 200 * time.Millisecond})
	require.NoError(t, err)
	assert.Len(t, collect(t, replies), 1)
}

func reply(key string, ts time.Time, payload string) ds.Reply {
	return ds.Reply{Sample: &ds.Sample{KeyExpr: key, Timestamp: ts, Payload: []byte(payload)}}
}

func TestConsolidator(t *testing.T) {
	t0 := time.Unix(100, 0)
	t1 := t0.Add(time.Second)
	errReply := ds.Reply{Err: ds.NewReplyError("boom")}

	tests := []struct {
		name string
		mode ds.Consolidation
		in   []ds.Reply
		want []string
	}{
		{
			name: "none relays everything",
			mode: ds.ConsolidationNone,
			in:   []ds.Reply{reply("a", t1, "a1"), reply("a", t0, "a0")},
			want: []string{"a1", "a0"},
		},
		{
			name: "monotonic drops older replies",
			mode: ds.ConsolidationMonotonic,
			in:   []ds.Reply{reply("a", t1, "a1"), reply("a", t0, "a0"), reply("b", t0, "b0")},
			want: []string{"a1", "b0"},
		},
		{
			name: "latest keeps newest per key in first seen order",
			mode: ds.ConsolidationLatest,
			in:   []ds.Reply{reply("b", t0, "b0"), reply("a", t0, "a0"), reply("b", t1, "b1"), reply("a", t0, "a0bis")},
			want: []string{"b1", "a0bis"},
		},
		{
			name: "auto behaves like latest",
			mode: ds.ConsolidationAuto,
			in:   []ds.Reply{reply("a", t1, "a1"), reply("a", t0, "a0")},
			want: []string{"a1"},
		},
		{
			name: "errors pass straight through",
			mode: ds.ConsolidationLatest,
			in:   []ds.Reply{reply("a", t0, "a0"), errReply},
			want: []string{"boom", "a0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newConsolidator(tt.mode)
			var out []ds.Reply
			for _, r := range tt.in {
				out = append(out, c.add(r)...)
			}
			out = append(out, c.flush()...)

			var got []string
			for _, r := range out {
				if r.OK() {
					got = append(got, string(r.Sample.Payload))
				} else {
					got = append(got, r.Err.Error())
				}
			}
			assert.Equal(t, tt.want, got)
			assert.Empty(t, c.flush())
		})
	}
}
