// Package panels holds the state behind each inspector panel. Panels never
// talk to the bus: user actions are queued as intents, and the event pump
// feeds bridge events back in.
package panels

import "github.com/kychandar/hammer/ds"

// Intent is a user action waiting to be forwarded to the bridge.
type Intent interface {
	isIntent()
}

type Connect struct {
	SessionID  uint64
	ConfigPath string
}

type Disconnect struct{}

type Subscribe struct {
	ID      uint64
	KeyExpr string
	Origin  ds.Locality
}

type Unsubscribe struct {
	ID uint64
}

type Put struct {
	ID      uint64
	Request ds.PutRequest
}

type Get struct {
	ID      uint64
	Request ds.QueryRequest
}

func (Connect) isIntent()     {}
func (Disconnect) isIntent()  {}
func (Subscribe) isIntent()   {}
func (Unsubscribe) isIntent() {}
func (Put) isIntent()         {}
func (Get) isIntent()         {}

type queue struct {
	intents []Intent
}

func (q *queue) push(i Intent) {
	q.intents = append(q.intents, i)
}

// TakeIntents returns queued intents in order and empties the queue.
func (q *queue) TakeIntents() []Intent {
	out := q.intents
	q.intents = nil
	return out
}
