package panels

import (
	"fmt"
	"slices"

	"github.com/kychandar/hammer/common"
	"github.com/kychandar/hammer/ds"
	encodingregistry "github.com/kychandar/hammer/services/encodingRegistry"
)

type PutItem struct {
	Name              string
	Key               string
	CongestionControl ds.CongestionControl
	Priority          ds.Priority
	Attachment        string
	Editor            *Editor

	Pending bool
	OK      bool
	Status  string

	reqID uint64
}

type PutPanel struct {
	queue

	Items  []*PutItem
	nextID uint64
}

func NewPutPanel() *PutPanel {
	return &PutPanel{}
}

func (p *PutPanel) Add(name, key string) *PutItem {
	it := &PutItem{
		Name:              name,
		Key:               key,
		CongestionControl: ds.CongestionBlock,
		Priority:          ds.PriorityRealTime,
		Editor:            NewEditor(encodingregistry.TextPlain),
	}
	p.Items = append(p.Items, it)
	return it
}

func (p *PutPanel) AddDefault() *PutItem {
	return p.Add("demo", "demo/example")
}

func (p *PutPanel) Remove(i int) {
	if i < 0 || i >= len(p.Items) {
		return
	}
	p.Items = slices.Delete(p.Items, i, i+1)
}

// Send validates item i and queues a publish. Validation failures are shown
// on the item and nothing is queued.
func (p *PutPanel) Send(i int) error {
	if i < 0 || i >= len(p.Items) {
		return fmt.Errorf("no put at index %d", i)
	}
	it := p.Items[i]

	if err := common.ValidateKey(it.Key); err != nil {
		it.OK, it.Status = false, err.Error()
		return err
	}
	payload, err := it.Editor.Payload()
	if err != nil {
		it.OK, it.Status = false, err.Error()
		return err
	}

	p.nextID++
	it.reqID = p.nextID
	it.Pending = true
	it.Status = ""

	var attachment []byte
	if it.Attachment != "" {
		attachment = []byte(it.Attachment)
	}
	p.push(Put{ID: it.reqID, Request: ds.PutRequest{
		KeyExpr:           it.Key,
		Payload:           payload,
		Encoding:          it.Editor.Encoding,
		CongestionControl: it.CongestionControl,
		Priority:          it.Priority,
		Attachment:        attachment,
	}})
	return nil
}

// RequestID is the id of the last publish sent for this item.
func (it *PutItem) RequestID() uint64 { return it.reqID }

func (p *PutPanel) HandleResult(ev ds.PublishResult) {
	for _, it := range p.Items {
		if it.reqID == ev.ID {
			it.Pending = false
			it.OK = ev.Success
			it.Status = ev.Message
			return
		}
	}
}

func (p *PutPanel) Entries() []ds.PutEntry {
	out := make([]ds.PutEntry, 0, len(p.Items))
	for _, it := range p.Items {
		out = append(out, ds.PutEntry{
			Name:              it.Name,
			Key:               it.Key,
			CongestionControl: it.CongestionControl,
			Priority:          it.Priority,
			Attachment:        it.Attachment,
			Value:             it.Editor.Entry(),
		})
	}
	return out
}

func (p *PutPanel) Load(entries []ds.PutEntry) {
	p.Items = nil
	for _, e := range entries {
		p.Items = append(p.Items, &PutItem{
			Name:              e.Name,
			Key:               e.Key,
			CongestionControl: e.CongestionControl,
			Priority:          e.Priority,
			Attachment:        e.Attachment,
			Editor:            editorFromEntry(e.Value),
		})
	}
}
