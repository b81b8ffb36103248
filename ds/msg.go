package ds

import (
	"time"
)

// Encoding tags a payload with the wire encoding id and an optional schema.
type Encoding struct {
	ID     uint16 `json:"id"`
	Schema string `json:"schema,omitempty"`
}

type SampleKind uint8

const (
	SampleKindPut SampleKind = iota
	SampleKindDelete
)

func (k SampleKind) String() string {
	if k == SampleKindDelete {
		return "delete"
	}
	return "put"
}

// Sample is one message observed on the bus. Payload is never mutated once
// the sample is built.
type Sample struct {
	KeyExpr           string            `json:"key_expr"`
	Payload           []byte            `json:"payload"`
	Encoding          Encoding          `json:"encoding"`
	Kind              SampleKind        `json:"kind"`
	Timestamp         time.Time         `json:"timestamp"`
	Priority          Priority          `json:"priority"`
	CongestionControl CongestionControl `json:"congestion_control"`
	Attachment        []byte            `json:"attachment,omitempty"`
	SourceSession     string            `json:"source_session,omitempty"`
}

// ReplyError is an error payload returned by a responder, or synthesized
// locally when a query could not be issued.
type ReplyError struct {
	Payload  []byte   `json:"payload"`
	Encoding Encoding `json:"encoding"`
}

func (e *ReplyError) Error() string {
	return string(e.Payload)
}

// NewReplyError wraps a local failure as a text/plain reply error.
func NewReplyError(msg string) *ReplyError {
	return &ReplyError{Payload: []byte(msg), Encoding: Encoding{ID: EncodingTextPlain}}
}

// Reply carries exactly one of Sample or Err.
type Reply struct {
	Sample *Sample     `json:"sample,omitempty"`
	Err    *ReplyError `json:"err,omitempty"`
}

// OK reports whether the reply carries a sample.
func (r Reply) OK() bool {
	return r.Err == nil && r.Sample != nil
}

// EncodingTextPlain is referenced by types that synthesize text payloads
// without depending on the encoding registry.
const EncodingTextPlain uint16 = 4

// PutRequest is everything needed to publish one payload.
type PutRequest struct {
	KeyExpr           string            `json:"key_expr"`
	Payload           []byte            `json:"payload"`
	Encoding          Encoding          `json:"encoding"`
	CongestionControl CongestionControl `json:"congestion_control"`
	Priority          Priority          `json:"priority"`
	Attachment        []byte            `json:"attachment,omitempty"`
}

// QueryRequest describes a one-shot get. Selector is a key expression with
// an optional "?parameters" suffix. Payload is nil when the query carries no
// value.
type QueryRequest struct {
	Selector      string        `json:"selector"`
	Target        QueryTarget   `json:"target"`
	Consolidation Consolidation `json:"consolidation"`
	Locality      Locality      `json:"locality"`
	Timeout       time.Duration `json:"timeout"`
	Payload       []byte        `json:"payload,omitempty"`
	Encoding      Encoding      `json:"encoding"`
	Attachment    []byte        `json:"attachment,omitempty"`
}
