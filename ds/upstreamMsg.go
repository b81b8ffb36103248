package ds

import "encoding/json"

// ClientMessage is what a serve-mode websocket client sends.
type ClientMessage struct {
	Version uint32 `json:"version"`
	Id      string `json:"id"`

	Op      ClientOp        `json:"op"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ClientOp string

const (
	OpConnect     ClientOp = "connect"
	OpDisconnect  ClientOp = "disconnect"
	OpSubscribe   ClientOp = "subscribe"
	OpUnsubscribe ClientOp = "unsubscribe"
	OpPut         ClientOp = "put"
	OpGet         ClientOp = "get"
)

type ConnectPayload struct {
	ConfigPath string `json:"config_path"`
}

type SubscribePayload struct {
	Name    string   `json:"name"`
	KeyExpr string   `json:"key_expr"`
	Origin  Locality `json:"origin"`
}

type UnsubscribePayload struct {
	ID uint64 `json:"id"`
}

// ServerMessage is what serve mode pushes to a websocket client. View holds
// the decoded representation of a payload when there is one.
type ServerMessage struct {
	Version uint32 `json:"version"`
	// Ack echoes the ClientMessage id a message answers, if any.
	Ack   string `json:"ack,omitempty"`
	Event string `json:"event"`
	ID    uint64 `json:"id,omitempty"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`

	KeyExpr    string    `json:"key_expr,omitempty"`
	Encoding   *Encoding `json:"encoding,omitempty"`
	ReceivedAt string    `json:"received_at,omitempty"`
	View       any       `json:"view,omitempty"`
}

// PutPayload describes one publish. Encoding is a registry label such as
// "application/json" or "text/plain;utf8". Binary encodings take Value as hex.
type PutPayload struct {
	Name              string             `json:"name,omitempty"`
	Key               string             `json:"key"`
	Encoding          string             `json:"encoding,omitempty"`
	Value             string             `json:"value"`
	CongestionControl *CongestionControl `json:"congestion_control,omitempty"`
	Priority          *Priority          `json:"priority,omitempty"`
	Attachment        string             `json:"attachment,omitempty"`
}

type GetPayload struct {
	Name          string        `json:"name,omitempty"`
	Selector      string        `json:"selector"`
	Target        QueryTarget   `json:"target"`
	Consolidation Consolidation `json:"consolidation"`
	Locality      Locality      `json:"locality"`
	TimeoutMs     uint64        `json:"timeout_ms,omitempty"`
	Attachment    string        `json:"attachment,omitempty"`
	Encoding      string        `json:"encoding,omitempty"`
	Value         *string       `json:"value,omitempty"`
}
