package common

import (
	"fmt"
	"time"
)

// Message headers carrying sample metadata over the bus.
const (
	HeaderEncoding          = "Hammer-Encoding"
	HeaderEncodingSchema    = "Hammer-Encoding-Schema"
	HeaderPriority          = "Hammer-Priority"
	HeaderCongestionControl = "Hammer-Congestion-Control"
	HeaderTimestamp         = "Hammer-Timestamp"
	HeaderSession           = "Hammer-Session"
	HeaderSampleKind        = "Hammer-Sample-Kind"
	HeaderAttachment        = "Hammer-Attachment"
	HeaderQueryParameters   = "Hammer-Query-Parameters"
	HeaderQueryTarget       = "Hammer-Query-Target"
	HeaderKey               = "Hammer-Key"
	HeaderReplyError        = "Hammer-Reply-Error"
)

const (
	DefaultPollInterval  = 8 * time.Millisecond
	DefaultQueryTimeout  = 10 * time.Second
	DefaultFrameInterval = 16 * time.Millisecond
	DefaultSampleBuffer  = 10
	MinSampleBuffer      = 10
	MaxEncodingID        = 1023
)

const archiveCacheKeyFormat = "hammer-archive-%s"

func ArchiveCacheKeyFormat(name string) string {
	return fmt.Sprintf(archiveCacheKeyFormat, name)
}

const NotConnected = "not connected"

func PutOKMessage(key string) string {
	return fmt.Sprintf("put ok %q", key)
}

func PutErrorMessage(key string, err error) string {
	return fmt.Sprintf("put error %q, %v", key, err)
}

// QuerySubject carries every query; queryables match key expressions
// themselves because NATS cannot publish on wildcard subjects.
const QuerySubject = "_HAMMER.QUERY"
