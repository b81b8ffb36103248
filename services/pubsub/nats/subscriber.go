package nats

import (
	"context"
	"fmt"
	"sync"

	"github.com/kychandar/hammer/common"
	"github.com/kychandar/hammer/ds"
	"github.com/kychandar/hammer/services"
	"github.com/nats-io/nats.go"
)

type subscriber struct {
	session *NatsSession
	sub     *nats.Subscription
	samples chan ds.Sample
	stop    chan struct{}
	once    sync.Once
}

// DeclareSubscriber subscribes to keyExpr. Samples from other sessions are
// dropped or kept according to origin.
func (n *NatsSession) DeclareSubscriber(ctx context.Context, keyExpr string, origin ds.Locality) (services.Subscriber, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	subject, err := common.ToSubject(keyExpr)
	if err != nil {
		return nil, err
	}

	msgs := make(chan *nats.Msg, subscriberBuffer)
	sub, err := n.nc.ChanSubscribe(subject, msgs)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", keyExpr, err)
	}
	if err := n.flush(ctx); err != nil {
		_ = sub.Unsubscribe()
		return nil, err
	}

	s := &subscriber{
		session: n,
		sub:     sub,
		samples: make(chan ds.Sample, subscriberBuffer),
		stop:    make(chan struct{}),
	}
	go s.forward(msgs, origin)
	return s, nil
}

func (s *subscriber) forward(msgs <-chan *nats.Msg, origin ds.Locality) {
	defer close(s.samples)
	for {
		select {
		case <-s.stop:
			return
		case <-s.session.closed:
			return
		case m := <-msgs:
			sample := sampleFromMsg(m, common.FromSubject(m.Subject))
			if !origin.Accepts(s.session.id, sample.SourceSession) {
				continue
			}
			select {
			case s.samples <- sample:
			case <-s.stop:
				return
			case <-s.session.closed:
				return
			}
		}
	}
}

func (s *subscriber) Samples() <-chan ds.Sample {
	return s.samples
}

func (s *subscriber) Undeclare() error {
	var err error
	s.once.Do(func() {
		close(s.stop)
		if s.sub.IsValid() {
			err = s.sub.Unsubscribe()
		}
	})
	return err
}
