package nats

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/kychandar/hammer/common"
	"github.com/kychandar/hammer/ds"
	"github.com/kychandar/hammer/services"
	"github.com/nats-io/nats.go"
)

const (
	statusHeader      = "Status"
	noRespondersValue = "503"
)

// Get publishes a query and streams replies until the timeout, the target
// is satisfied, or no responder exists. The channel is closed at the end.
func (n *NatsSession) Get(ctx context.Context, req ds.QueryRequest) (<-chan ds.Reply, error) {
	keyExpr, params := common.SplitSelector(req.Selector)
	if err := common.ValidateKeyExpr(keyExpr); err != nil {
		return nil, err
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = common.DefaultQueryTimeout
	}

	inbox := n.nc.NewRespInbox()
	msgs := make(chan *nats.Msg, subscriberBuffer)
	sub, err := n.nc.ChanSubscribe(inbox, msgs)
	if err != nil {
		return nil, fmt.Errorf("subscribe reply inbox: %w", err)
	}

	msg := nats.NewMsg(common.QuerySubject)
	msg.Reply = inbox
	msg.Data = req.Payload
	msg.Header.Set(common.HeaderKey, keyExpr)
	msg.Header.Set(common.HeaderSession, n.id)
	msg.Header.Set(common.HeaderQueryTarget, req.Target.String())
	if params != "" {
		msg.Header.Set(common.HeaderQueryParameters, params)
	}
	if req.Payload != nil {
		msg.Header.Set(common.HeaderEncoding, strconv.FormatUint(uint64(req.Encoding.ID), 10))
		if req.Encoding.Schema != "" {
			msg.Header.Set(common.HeaderEncodingSchema, req.Encoding.Schema)
		}
	}
	if len(req.Attachment) > 0 {
		msg.Header.Set(common.HeaderAttachment, base64.StdEncoding.EncodeToString(req.Attachment))
	}

	if err := n.nc.PublishMsg(msg); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("publish query: %w", err)
	}

	out := make(chan ds.Reply, subscriberBuffer)
	go n.collect(ctx, sub, msgs, out, req, timeout)
	return out, nil
}

func (n *NatsSession) collect(ctx context.Context, sub *nats.Subscription, msgs <-chan *nats.Msg, out chan<- ds.Reply, req ds.QueryRequest, timeout time.Duration) {
	defer close(out)
	defer sub.Unsubscribe()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	c := newConsolidator(req.Consolidation)
	send := func(replies []ds.Reply) bool {
		for _, r := range replies {
			select {
			case out <- r:
			case <-ctx.Done():
				return false
			}
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-n.closed:
			send(c.flush())
			return
		case <-timer.C:
			send(c.flush())
			return
		case m := <-msgs:
			if m.Header.Get(statusHeader) == noRespondersValue && len(m.Data) == 0 {
				send(c.flush())
				return
			}
			reply, origin := replyFromMsg(m)
			if !req.Locality.Accepts(n.id, origin) {
				continue
			}
			if !send(c.add(reply)) {
				return
			}
			if req.Target == ds.TargetBestMatching {
				send(c.flush())
				return
			}
		}
	}
}

func replyFromMsg(m *nats.Msg) (ds.Reply, string) {
	origin := m.Header.Get(common.HeaderSession)
	if m.Header.Get(common.HeaderReplyError) != "" {
		enc := ds.Encoding{Schema: m.Header.Get(common.HeaderEncodingSchema)}
		if id, err := strconv.ParseUint(m.Header.Get(common.HeaderEncoding), 10, 16); err == nil {
			enc.ID = uint16(id)
		}
		return ds.Reply{Err: &ds.ReplyError{Payload: m.Data, Encoding: enc}}, origin
	}
	sample := sampleFromMsg(m, m.Header.Get(common.HeaderKey))
	return ds.Reply{Sample: &sample}, origin
}

// consolidator merges replies per key. Errors always pass through.
type consolidator struct {
	mode   ds.Consolidation
	order  []string
	latest map[string]ds.Reply
	last   map[string]time.Time
}

func newConsolidator(mode ds.Consolidation) *consolidator {
	return &consolidator{
		mode:   mode,
		latest: make(map[string]ds.Reply),
		last:   make(map[string]time.Time),
	}
}

func (c *consolidator) add(r ds.Reply) []ds.Reply {
	if !r.OK() {
		return []ds.Reply{r}
	}
	key, ts := r.Sample.KeyExpr, r.Sample.Timestamp

	switch c.mode {
	case ds.ConsolidationNone:
		return []ds.Reply{r}
	case ds.ConsolidationMonotonic:
		if prev, ok := c.last[key]; ok && ts.Before(prev) {
			return nil
		}
		c.last[key] = ts
		return []ds.Reply{r}
	default:
		prev, ok := c.latest[key]
		if !ok {
			c.order = append(c.order, key)
		}
		if !ok || !ts.Before(prev.Sample.Timestamp) {
			c.latest[key] = r
		}
		return nil
	}
}

// flush returns buffered replies in first-seen key order.
func (c *consolidator) flush() []ds.Reply {
	out := make([]ds.Reply, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.latest[key])
	}
	c.order = nil
	clear(c.latest)
	return out
}

type queryable struct {
	sub *nats.Subscription
}

func (q *queryable) Undeclare() error {
	if !q.sub.IsValid() {
		return nil
	}
	return q.sub.Unsubscribe()
}

// DeclareQueryable answers queries whose key expression intersects keyExpr.
// handler runs on the subscription goroutine, one query at a time.
func (n *NatsSession) DeclareQueryable(ctx context.Context, keyExpr string, handler func(services.IncomingQuery)) (services.Undeclarer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := common.ValidateKeyExpr(keyExpr); err != nil {
		return nil, err
	}

	sub, err := n.nc.Subscribe(common.QuerySubject, func(m *nats.Msg) {
		queried := m.Header.Get(common.HeaderKey)
		if m.Reply == "" || !common.Intersects(keyExpr, queried) {
			return
		}
		handler(&incomingQuery{session: n, msg: m, keyExpr: queried})
	})
	if err != nil {
		return nil, fmt.Errorf("declare queryable %s: %w", keyExpr, err)
	}
	if err := n.flush(ctx); err != nil {
		_ = sub.Unsubscribe()
		return nil, err
	}
	return &queryable{sub: sub}, nil
}

type incomingQuery struct {
	session *NatsSession
	msg     *nats.Msg
	keyExpr string
}

func (q *incomingQuery) KeyExpr() string    { return q.keyExpr }
func (q *incomingQuery) Parameters() string { return q.msg.Header.Get(common.HeaderQueryParameters) }
func (q *incomingQuery) Payload() []byte    { return q.msg.Data }

func (q *incomingQuery) Encoding() ds.Encoding {
	return sampleFromMsg(q.msg, q.keyExpr).Encoding
}

func (q *incomingQuery) Reply(ctx context.Context, sample ds.Sample) error {
	if err := common.ValidateKey(sample.KeyExpr); err != nil {
		return err
	}
	if !common.Intersects(q.keyExpr, sample.KeyExpr) {
		return fmt.Errorf("reply key %s does not match query %s", sample.KeyExpr, q.keyExpr)
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}

	msg := nats.NewMsg(q.msg.Reply)
	msg.Data = sample.Payload
	setSampleHeaders(msg.Header, q.session.id, sample)
	msg.Header.Set(common.HeaderKey, sample.KeyExpr)
	return q.publish(ctx, msg)
}

func (q *incomingQuery) ReplyErr(ctx context.Context, payload []byte, enc ds.Encoding) error {
	msg := nats.NewMsg(q.msg.Reply)
	msg.Data = payload
	msg.Header.Set(common.HeaderSession, q.session.id)
	msg.Header.Set(common.HeaderReplyError, "1")
	msg.Header.Set(common.HeaderEncoding, strconv.FormatUint(uint64(enc.ID), 10))
	if enc.Schema != "" {
		msg.Header.Set(common.HeaderEncodingSchema, enc.Schema)
	}
	return q.publish(ctx, msg)
}

func (q *incomingQuery) publish(ctx context.Context, msg *nats.Msg) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := q.session.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish reply: %w", err)
	}
	return nil
}
