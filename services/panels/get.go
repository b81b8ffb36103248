package panels

import (
	"fmt"
	"slices"
	"time"

	"github.com/kychandar/hammer/common"
	"github.com/kychandar/hammer/ds"
	encodingregistry "github.com/kychandar/hammer/services/encodingRegistry"
)

type GetItem struct {
	Name          string
	Selector      string
	Target        ds.QueryTarget
	Consolidation ds.Consolidation
	Locality      ds.Locality
	Timeout       time.Duration
	Attachment    string

	// Value is sent with the query when HasValue is set.
	HasValue bool
	Value    *Editor

	Replies []ds.Reply
	Status  string

	reqID uint64
}

type GetPanel struct {
	queue

	Items  []*GetItem
	nextID uint64
}

func NewGetPanel() *GetPanel {
	return &GetPanel{}
}

func (p *GetPanel) Add(name, selector string) *GetItem {
	it := &GetItem{
		Name:     name,
		Selector: selector,
		Locality: ds.LocalityAny,
		Timeout:  common.DefaultQueryTimeout,
		Value:    NewEditor(encodingregistry.TextPlain),
	}
	p.Items = append(p.Items, it)
	return it
}

func (p *GetPanel) AddDefault() *GetItem {
	return p.Add("demo", "demo/test")
}

func (p *GetPanel) Remove(i int) {
	if i < 0 || i >= len(p.Items) {
		return
	}
	p.Items = slices.Delete(p.Items, i, i+1)
}

// Send validates item i, clears its previous replies and queues a query.
func (p *GetPanel) Send(i int) error {
	if i < 0 || i >= len(p.Items) {
		return fmt.Errorf("no get at index %d", i)
	}
	it := p.Items[i]

	keyExpr, _ := common.SplitSelector(it.Selector)
	if err := common.ValidateKeyExpr(keyExpr); err != nil {
		it.Status = err.Error()
		return err
	}

	req := ds.QueryRequest{
		Selector:      it.Selector,
		Target:        it.Target,
		Consolidation: it.Consolidation,
		Locality:      it.Locality,
		Timeout:       it.Timeout,
	}
	if it.Attachment != "" {
		req.Attachment = []byte(it.Attachment)
	}
	if it.HasValue {
		payload, err := it.Value.Payload()
		if err != nil {
			it.Status = err.Error()
			return err
		}
		req.Payload = payload
		req.Encoding = it.Value.Encoding
	}

	p.nextID++
	it.reqID = p.nextID
	it.Replies = nil
	it.Status = "query sent"
	p.push(Get{ID: it.reqID, Request: req})
	return nil
}

func (it *GetItem) RequestID() uint64 { return it.reqID }

func (p *GetPanel) HandleReply(ev ds.QueryReply) {
	for _, it := range p.Items {
		if it.reqID == ev.ID {
			it.Replies = append(it.Replies, ev.Reply)
			it.Status = fmt.Sprintf("%d replies", len(it.Replies))
			return
		}
	}
}

func (p *GetPanel) Entries() []ds.GetEntry {
	out := make([]ds.GetEntry, 0, len(p.Items))
	for _, it := range p.Items {
		e := ds.GetEntry{
			Name:          it.Name,
			Key:           it.Selector,
			Target:        it.Target,
			Consolidation: it.Consolidation,
			Locality:      it.Locality,
			Timeout:       uint64(it.Timeout.Milliseconds()),
			Attachment:    it.Attachment,
		}
		if it.HasValue {
			v := it.Value.Entry()
			e.Value = &v
		}
		out = append(out, e)
	}
	return out
}

func (p *GetPanel) Load(entries []ds.GetEntry) {
	p.Items = nil
	for _, e := range entries {
		it := &GetItem{
			Name:          e.Name,
			Selector:      e.Key,
			Target:        e.Target,
			Consolidation: e.Consolidation,
			Locality:      e.Locality,
			Timeout:       time.Duration(e.Timeout) * time.Millisecond,
			Attachment:    e.Attachment,
			Value:         NewEditor(encodingregistry.TextPlain),
		}
		if e.Value != nil {
			it.HasValue = true
			it.Value = editorFromEntry(*e.Value)
		}
		p.Items = append(p.Items, it)
	}
}
