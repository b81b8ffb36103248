package services

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kychandar/hammer/config"
	"github.com/kychandar/hammer/ds"
)

// Session is a live connection to the bus. Implementations must be safe for
// concurrent use by the bridge loop and every listener and query goroutine.
type Session interface {
	ID() string
	DeclareSubscriber(ctx context.Context, keyExpr string, origin ds.Locality) (Subscriber, error)
	Put(ctx context.Context, req ds.PutRequest) error
	Get(ctx context.Context, req ds.QueryRequest) (<-chan ds.Reply, error)
	Close() error
}

// Subscriber delivers samples until it is undeclared or the session ends,
// at which point the channel is closed.
type Subscriber interface {
	Samples() <-chan ds.Sample
	Undeclare() error
}

type SessionOpener func(ctx context.Context, cfg *config.SessionConfig) (Session, error)

// IncomingQuery is a query seen by a queryable.
type IncomingQuery interface {
	KeyExpr() string
	Parameters() string
	Payload() []byte
	Encoding() ds.Encoding
	Reply(ctx context.Context, sample ds.Sample) error
	ReplyErr(ctx context.Context, payload []byte, enc ds.Encoding) error
}

type Undeclarer interface {
	Undeclare() error
}

// Responder is a session that can also answer queries.
type Responder interface {
	Session
	DeclareQueryable(ctx context.Context, keyExpr string, handler func(IncomingQuery)) (Undeclarer, error)
}

// ArchiveStore persists the session-state document.
type ArchiveStore interface {
	Load(ctx context.Context) (*ds.Archive, error)
	Save(ctx context.Context, archive *ds.Archive) error
	Close()
}

type MetricsRegistry interface {
	GetHandler() http.Handler
	IncCommand(kind string)
	IncSample(keyExpr string)
	ObservePublish(started time.Time, success bool)
	IncQueryReply(ok bool)
	SetActiveSubscriptions(n int)
	SetSessionOpen(open bool)
	IncWsConnectionCount()
	DecWsConnectionCount()
}

type WebSocketBridge interface {
	ProcessMessagesFromServer(ctx context.Context)
	ProcessMessagesFromClient(ctx context.Context)
}

// WsWriteChanManager serializes writes to each websocket connection.
type WsWriteChanManager interface {
	SetConnectionForClientID(clientID string, conn *websocket.Conn)
	GetConnectionForClientID(clientID string) (*websocket.Conn, bool)
	DeleteClientID(clientID string)
	WriteMessage(clientID string, messageType int, data []byte) error
	Len() int
}
