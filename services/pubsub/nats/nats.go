package nats

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/kychandar/hammer/common"
	"github.com/kychandar/hammer/config"
	"github.com/kychandar/hammer/ds"
	"github.com/kychandar/hammer/services"
	"github.com/nats-io/nats.go"
)

const (
	subscriberBuffer = 1024
	flushTimeout     = 5 * time.Second
	drainTimeout     = 10 * time.Second
)

type NatsSession struct {
	id string
	nc *nats.Conn

	closed chan struct{}
}

// Open connects to the bus described by cfg.
func Open(ctx context.Context, cfg *config.SessionConfig) (services.Session, error) {
	return Connect(ctx, cfg)
}

// Connect is Open returning the concrete type, which can also answer
// queries.
func Connect(ctx context.Context, cfg *config.SessionConfig) (*NatsSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts, err := connectOptions(cfg)
	if err != nil {
		return nil, err
	}

	s := &NatsSession{
		id:     uuid.New().String(),
		closed: make(chan struct{}),
	}
	opts = append(opts, nats.ClosedHandler(func(_ *nats.Conn) {
		close(s.closed)
	}))

	nc, err := nats.Connect(cfg.ServerURLs(), opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	s.nc = nc
	return s, nil
}

func connectOptions(cfg *config.SessionConfig) ([]nats.Option, error) {
	opts := []nats.Option{nats.Name(cfg.Name)}
	if cfg.ConnectTimeout > 0 {
		opts = append(opts, nats.Timeout(cfg.ConnectTimeout))
	}
	if cfg.MaxReconnects != 0 {
		opts = append(opts, nats.MaxReconnects(cfg.MaxReconnects))
	}
	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}
	if cfg.CredsFile != "" {
		opts = append(opts, nats.UserCredentials(cfg.CredsFile))
	}
	if cfg.TLS.Enabled {
		tlsCfg, err := loadTLSConfig(cfg.TLS)
		if err != nil {
			return nil, err
		}
		opts = append(opts, nats.Secure(tlsCfg))
	}
	return opts, nil
}

func loadTLSConfig(c config.TLSConfig) (*tls.Config, error) {
	tlsCfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: c.InsecureSkipVerify,
	}
	if c.CAFile != "" {
		pem, err := os.ReadFile(c.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates in %s", c.CAFile)
		}
		tlsCfg.RootCAs = pool
	}
	if c.CertFile != "" || c.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	return tlsCfg, nil
}

func (n *NatsSession) ID() string {
	return n.id
}

// Put publishes one sample. Blocking congestion control waits for the server
// to acknowledge the write.
func (n *NatsSession) Put(ctx context.Context, req ds.PutRequest) error {
	if err := common.ValidateKey(req.KeyExpr); err != nil {
		return err
	}
	subject, err := common.ToSubject(req.KeyExpr)
	if err != nil {
		return err
	}

	msg := nats.NewMsg(subject)
	msg.Data = req.Payload
	setSampleHeaders(msg.Header, n.id, ds.Sample{
		Encoding:          req.Encoding,
		Timestamp:         time.Now(),
		Priority:          req.Priority,
		CongestionControl: req.CongestionControl,
		Attachment:        req.Attachment,
	})

	if err := n.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	if req.CongestionControl == ds.CongestionDrop {
		return nil
	}
	return n.flush(ctx)
}

// flush waits for the server to process everything sent so far.
func (n *NatsSession) flush(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flushTimeout)
		defer cancel()
	}
	if err := n.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// Close drains every subscription and waits for the connection to close.
func (n *NatsSession) Close() error {
	if n.nc.IsClosed() {
		return nil
	}
	if err := n.nc.Drain(); err != nil {
		n.nc.Close()
		return err
	}

	select {
	case <-n.closed:
	case <-time.After(drainTimeout):
		n.nc.Close()
	}
	return nil
}

func setSampleHeaders(h nats.Header, session string, s ds.Sample) {
	h.Set(common.HeaderSession, session)
	h.Set(common.HeaderEncoding, strconv.FormatUint(uint64(s.Encoding.ID), 10))
	if s.Encoding.Schema != "" {
		h.Set(common.HeaderEncodingSchema, s.Encoding.Schema)
	}
	if !s.Timestamp.IsZero() {
		h.Set(common.HeaderTimestamp, s.Timestamp.UTC().Format(time.RFC3339Nano))
	}
	h.Set(common.HeaderPriority, s.Priority.String())
	h.Set(common.HeaderCongestionControl, s.CongestionControl.String())
	h.Set(common.HeaderSampleKind, s.Kind.String())
	if len(s.Attachment) > 0 {
		h.Set(common.HeaderAttachment, base64.StdEncoding.EncodeToString(s.Attachment))
	}
}

// sampleFromMsg never fails: malformed metadata falls back to defaults.
func sampleFromMsg(m *nats.Msg, keyExpr string) ds.Sample {
	s := ds.Sample{
		KeyExpr: keyExpr,
		Payload: m.Data,
	}
	if m.Header == nil {
		return s
	}

	if id, err := strconv.ParseUint(m.Header.Get(common.HeaderEncoding), 10, 16); err == nil {
		s.Encoding.ID = uint16(id)
	}
	s.Encoding.Schema = m.Header.Get(common.HeaderEncodingSchema)
	if ts, err := time.Parse(time.RFC3339Nano, m.Header.Get(common.HeaderTimestamp)); err == nil {
		s.Timestamp = ts
	}
	_ = s.Priority.UnmarshalText([]byte(m.Header.Get(common.HeaderPriority)))
	_ = s.CongestionControl.UnmarshalText([]byte(m.Header.Get(common.HeaderCongestionControl)))
	if m.Header.Get(common.HeaderSampleKind) == ds.SampleKindDelete.String() {
		s.Kind = ds.SampleKindDelete
	}
	if a := m.Header.Get(common.HeaderAttachment); a != "" {
		if b, err := base64.StdEncoding.DecodeString(a); err == nil {
			s.Attachment = b
		}
	}
	s.SourceSession = m.Header.Get(common.HeaderSession)
	return s
}
