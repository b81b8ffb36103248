package ds

import "time"

// Command is sent from the front end to the session bridge.
type Command interface {
	isCommand()
}

type Close struct{}

type AddSubscription struct {
	ID      uint64
	KeyExpr string
	Origin  Locality
}

type RemoveSubscription struct {
	ID uint64
}

type Query struct {
	ID      uint64
	Request QueryRequest
}

type Publish struct {
	ID      uint64
	Request PutRequest
}

func (Close) isCommand()              {}
func (AddSubscription) isCommand()    {}
func (RemoveSubscription) isCommand() {}
func (Query) isCommand()              {}
func (Publish) isCommand()            {}

// Event is sent from the session bridge to the front end.
type Event interface {
	isEvent()
}

// SessionOpened reports the outcome of opening the session identified by
// SessionID. Err is empty on success.
type SessionOpened struct {
	SessionID uint64
	Err       string
}

func (e SessionOpened) OK() bool { return e.Err == "" }

// SessionClosed is the last event a bridge emits.
type SessionClosed struct {
	SessionID uint64
}

type SubscriptionAdded struct {
	ID  uint64
	Err string
}

func (e SubscriptionAdded) OK() bool { return e.Err == "" }

type SubscriptionRemoved struct {
	ID uint64
}

type SampleReceived struct {
	ID         uint64
	Sample     Sample
	ReceivedAt time.Time
}

type QueryReply struct {
	ID    uint64
	Reply Reply
}

type PublishResult struct {
	ID      uint64
	Success bool
	Message string
}

func (SessionOpened) isEvent()       {}
func (SessionClosed) isEvent()       {}
func (SubscriptionAdded) isEvent()   {}
func (SubscriptionRemoved) isEvent() {}
func (SampleReceived) isEvent()      {}
func (QueryReply) isEvent()          {}
func (PublishResult) isEvent()       {}
