package wswritechannelmanager

import (
	"errors"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/gorilla/websocket"
	"github.com/kychandar/hammer/services"
)

const (
	writeWait   = 10 * time.Second
	queueSize   = 1024
	defaultPing = 54 * time.Second
)

// ErrQueueFull is returned when a client reads slower than events arrive.
// The message is dropped.
var ErrQueueFull = errors.New("write queue full")

type writeRequest struct {
	msgType int
	data    []byte
}

// connWithWriter wraps a WebSocket connection with a dedicated writer channel
type connWithWriter struct {
	conn    *websocket.Conn
	writeCh chan writeRequest
	closeCh chan struct{}
}

type wsWriteChanManager struct {
	connections *haxmap.Map[string, *connWithWriter]
	pingPeriod  time.Duration
}

func NewClientWriterManager() services.WsWriteChanManager {
	return NewClientWriterManagerWithPing(defaultPing)
}

// NewClientWriterManagerWithPing pings every connection once per period.
// A non-positive period disables pings.
func NewClientWriterManagerWithPing(period time.Duration) services.WsWriteChanManager {
	return &wsWriteChanManager{
		connections: haxmap.New[string, *connWithWriter](),
		pingPeriod:  period,
	}
}

func (m *wsWriteChanManager) GetConnectionForClientID(clientID string) (*websocket.Conn, bool) {
	connInfo, ok := m.connections.Get(clientID)
	if !ok {
		return nil, false
	}
	return connInfo.conn, true
}

// SetConnectionForClientID registers conn and starts its writer goroutine.
// A previous connection under the same id is stopped.
func (m *wsWriteChanManager) SetConnectionForClientID(clientID string, conn *websocket.Conn) {
	m.DeleteClientID(clientID)
	cw := &connWithWriter{
		conn:    conn,
		writeCh: make(chan writeRequest, queueSize),
		closeCh: make(chan struct{}),
	}
	m.connections.Set(clientID, cw)
	go m.writerLoop(cw)
}

func (m *wsWriteChanManager) writerLoop(cw *connWithWriter) {
	var ping <-chan time.Time
	if m.pingPeriod > 0 {
		ticker := time.NewTicker(m.pingPeriod)
		defer ticker.Stop()
		ping = ticker.C
	}
	for {
		select {
		case <-cw.closeCh:
			return
		case req := <-cw.writeCh:
			cw.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cw.conn.WriteMessage(req.msgType, req.data); err != nil {
				return
			}
		case <-ping:
			if err := cw.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (m *wsWriteChanManager) DeleteClientID(clientID string) {
	if connInfo, ok := m.connections.Get(clientID); ok {
		m.connections.Del(clientID)
		close(connInfo.closeCh)
	}
}

// WriteMessage queues data without blocking.
func (m *wsWriteChanManager) WriteMessage(clientID string, messageType int, data []byte) error {
	connInfo, ok := m.connections.Get(clientID)
	if !ok {
		return websocket.ErrCloseSent
	}

	select {
	case connInfo.writeCh <- writeRequest{msgType: messageType, data: data}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (m *wsWriteChanManager) Len() int {
	return int(m.connections.Len())
}
