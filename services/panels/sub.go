package panels

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	set "github.com/duke-git/lancet/v2/datastructure/set"
	"github.com/kychandar/hammer/common"
	"github.com/kychandar/hammer/ds"
)

var ErrAlreadySubscribed = errors.New("already subscribed")

type Subscriber struct {
	Name       string
	KeyExpr    string
	Origin     ds.Locality
	BufferSize int

	Subscribed bool
	Pending    bool
	Err        string

	// SubID is the bridge id of the current subscription, zero when none.
	SubID uint64

	keys    []string
	history map[string]*KeyHistory
}

func newSubscriber(name, keyExpr string, origin ds.Locality, bufferSize int) *Subscriber {
	return &Subscriber{
		Name:       name,
		KeyExpr:    keyExpr,
		Origin:     origin,
		BufferSize: max(bufferSize, common.MinSampleBuffer),
		history:    make(map[string]*KeyHistory),
	}
}

// Keys lists received keys in first-seen order, keeping those containing
// filter.
func (s *Subscriber) Keys(filter string) []string {
	if filter == "" {
		return slices.Clone(s.keys)
	}
	var out []string
	for _, k := range s.keys {
		if strings.Contains(k, filter) {
			out = append(out, k)
		}
	}
	return out
}

func (s *Subscriber) History(key string) (*KeyHistory, bool) {
	h, ok := s.history[key]
	return h, ok
}

func (s *Subscriber) SetBufferSize(n int) {
	s.BufferSize = max(n, common.MinSampleBuffer)
	for _, h := range s.history {
		h.resize(s.BufferSize)
	}
}

func (s *Subscriber) Clear() {
	s.keys = nil
	s.history = make(map[string]*KeyHistory)
}

func (s *Subscriber) record(ev ds.SampleReceived) {
	key := ev.Sample.KeyExpr
	h, ok := s.history[key]
	if !ok {
		h = newKeyHistory(key, s.BufferSize)
		s.history[key] = h
		s.keys = append(s.keys, key)
	}
	h.push(Received{Sample: ev.Sample, ReceivedAt: ev.ReceivedAt})
}

type SubPanel struct {
	queue

	Items  []*Subscriber
	Filter string

	nextID uint64
	active set.Set[uint64]
	now    func() time.Time
}

func NewSubPanel() *SubPanel {
	return &SubPanel{active: set.New[uint64](), now: time.Now}
}

func (p *SubPanel) Add(name, keyExpr string, origin ds.Locality, bufferSize int) *Subscriber {
	s := newSubscriber(name, keyExpr, origin, bufferSize)
	p.Items = append(p.Items, s)
	return s
}

// AddDefault adds a subscriber on everything under demo.
func (p *SubPanel) AddDefault() *Subscriber {
	return p.Add("demo", "demo/**", ds.LocalityAny, common.DefaultSampleBuffer)
}

func (p *SubPanel) item(i int) (*Subscriber, error) {
	if i < 0 || i >= len(p.Items) {
		return nil, fmt.Errorf("no subscriber at index %d", i)
	}
	return p.Items[i], nil
}

// Subscribe validates item i and queues a subscription under a fresh id.
func (p *SubPanel) Subscribe(i int) error {
	s, err := p.item(i)
	if err != nil {
		return err
	}
	if s.Subscribed || s.Pending {
		return ErrAlreadySubscribed
	}
	if err := common.ValidateKeyExpr(s.KeyExpr); err != nil {
		s.Err = err.Error()
		return err
	}

	p.nextID++
	s.SubID = p.nextID
	s.Pending = true
	s.Err = ""
	p.active.Add(s.SubID)
	p.push(Subscribe{ID: s.SubID, KeyExpr: s.KeyExpr, Origin: s.Origin})
	return nil
}

func (p *SubPanel) Unsubscribe(i int) error {
	s, err := p.item(i)
	if err != nil {
		return err
	}
	if s.SubID == 0 {
		return nil
	}
	s.Pending = true
	p.push(Unsubscribe{ID: s.SubID})
	return nil
}

// Remove drops item i, unsubscribing first when needed.
func (p *SubPanel) Remove(i int) error {
	s, err := p.item(i)
	if err != nil {
		return err
	}
	if s.SubID != 0 {
		p.push(Unsubscribe{ID: s.SubID})
	}
	p.Items = slices.Delete(p.Items, i, i+1)
	return nil
}

func (p *SubPanel) byID(id uint64) *Subscriber {
	if !p.active.Contain(id) {
		return nil
	}
	for _, s := range p.Items {
		if s.SubID == id {
			return s
		}
	}
	return nil
}

func (p *SubPanel) HandleAdded(ev ds.SubscriptionAdded) {
	s := p.byID(ev.ID)
	if s == nil {
		return
	}
	s.Pending = false
	if !ev.OK() {
		s.Subscribed = false
		s.Err = ev.Err
		s.SubID = 0
		p.active.Delete(ev.ID)
		return
	}
	s.Subscribed = true
}

func (p *SubPanel) HandleRemoved(ev ds.SubscriptionRemoved) {
	p.active.Delete(ev.ID)
	for _, s := range p.Items {
		if s.SubID == ev.ID {
			s.SubID = 0
			s.Subscribed = false
			s.Pending = false
		}
	}
}

func (p *SubPanel) HandleSample(ev ds.SampleReceived) {
	if s := p.byID(ev.ID); s != nil {
		s.record(ev)
	}
}

// Reset marks everything unsubscribed after the session went away.
func (p *SubPanel) Reset() {
	p.active = set.New[uint64]()
	for _, s := range p.Items {
		s.SubID = 0
		s.Subscribed = false
		s.Pending = false
	}
}

func (p *SubPanel) ActiveCount() int {
	return p.active.Size()
}

func (p *SubPanel) Rate(s *Subscriber, key string) string {
	h, ok := s.history[key]
	if !ok {
		return ""
	}
	return h.Rate(p.now())
}

func (p *SubPanel) Entries() []ds.SubscriberEntry {
	out := make([]ds.SubscriberEntry, 0, len(p.Items))
	for _, s := range p.Items {
		out = append(out, ds.SubscriberEntry{
			Name:       s.Name,
			KeyExpr:    s.KeyExpr,
			Origin:     s.Origin,
			BufferSize: s.BufferSize,
		})
	}
	return out
}

func (p *SubPanel) Load(entries []ds.SubscriberEntry) {
	p.Items = nil
	p.Reset()
	for _, e := range entries {
		p.Add(e.Name, e.KeyExpr, e.Origin, e.BufferSize)
	}
}
