// Package demofeed publishes a small set of samples in every encoding family
// the inspector can render, and answers queries for them.
package demofeed

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/fxamacker/cbor/v2"
	"github.com/kychandar/hammer/common"
	"github.com/kychandar/hammer/ds"
	"github.com/kychandar/hammer/services"
	encodingregistry "github.com/kychandar/hammer/services/encodingRegistry"
	slogctx "github.com/veqryn/slog-context"
	"gopkg.in/yaml.v3"
)

const (
	// QueryableKeyExpr is what the feed answers queries on.
	QueryableKeyExpr = "demo/**"
	// TestKey answers every query with the current sequence number.
	TestKey = "demo/test"
	// FeedPrefix is where periodic samples are published.
	FeedPrefix = "demo/example"
)

type Feed struct {
	session  services.Responder
	interval time.Duration

	latest    *haxmap.Map[string, ds.Sample]
	seqMu     sync.Mutex
	seq       uint64
	queryable services.Undeclarer

	wg       sync.WaitGroup
	cancel   context.CancelFunc
	stopOnce sync.Once
}

func New(session services.Responder, interval time.Duration) *Feed {
	if interval <= 0 {
		interval = time.Second
	}
	return &Feed{
		session:  session,
		interval: interval,
		latest:   haxmap.New[string, ds.Sample](),
	}
}

// Start declares the queryable and begins publishing once per interval.
func (f *Feed) Start(ctx context.Context) error {
	logger := slogctx.FromCtx(ctx).With("component", "demo-feed")
	ctx = slogctx.NewCtx(ctx, logger)
	logger.InfoContext(ctx, "starting service", "interval", f.interval.String())

	q, err := f.session.DeclareQueryable(ctx, QueryableKeyExpr, func(query services.IncomingQuery) {
		f.answer(ctx, query)
	})
	if err != nil {
		return fmt.Errorf("failed to declare queryable: %w", err)
	}
	f.queryable = q

	ctx, f.cancel = context.WithCancel(ctx)
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()
		for {
			if err := f.PublishOnce(ctx); err != nil && ctx.Err() == nil {
				logger.WarnContext(ctx, "demo publish failed", slog.Any("error", err))
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	logger.InfoContext(ctx, "demo feed started successfully")
	return nil
}

func (f *Feed) Stop(ctx context.Context) error {
	logger := slogctx.FromCtx(ctx)
	var err error
	f.stopOnce.Do(func() {
		logger.Info("stopping service")
		if f.cancel != nil {
			f.cancel()
		}
		f.wg.Wait()
		if f.queryable != nil {
			if err = f.queryable.Undeclare(); err != nil {
				logger.Error("failed to undeclare queryable", slog.Any("error", err))
				return
			}
		}
		logger.Info("service stopped gracefully")
	})
	return err
}

// PublishOnce publishes one round of demo samples.
func (f *Feed) PublishOnce(ctx context.Context) error {
	f.seqMu.Lock()
	f.seq++
	seq := f.seq
	f.seqMu.Unlock()

	samples, err := Samples(seq, time.Now())
	if err != nil {
		return err
	}
	for _, s := range samples {
		err := f.session.Put(ctx, ds.PutRequest{
			KeyExpr:           s.KeyExpr,
			Payload:           s.Payload,
			Encoding:          s.Encoding,
			CongestionControl: ds.CongestionDrop,
			Priority:          ds.PriorityData,
		})
		if err != nil {
			return fmt.Errorf("put %s: %w", s.KeyExpr, err)
		}
		f.latest.Set(s.KeyExpr, s)
	}
	return nil
}

func (f *Feed) Seq() uint64 {
	f.seqMu.Lock()
	defer f.seqMu.Unlock()
	return f.seq
}

// answer replies with every latest sample the query matches. A "fail"
// parameter turns the answer into a reply error.
func (f *Feed) answer(ctx context.Context, q services.IncomingQuery) {
	logger := slogctx.FromCtx(ctx).With("key_expr", q.KeyExpr())

	params, _ := url.ParseQuery(strings.ReplaceAll(q.Parameters(), ";", "&"))
	if params.Has("fail") {
		msg := fmt.Sprintf("demo failure requested for %s", q.KeyExpr())
		if err := q.ReplyErr(ctx, []byte(msg), ds.Encoding{ID: encodingregistry.TextPlain}); err != nil {
			logger.WarnContext(ctx, "reply error failed", slog.Any("error", err))
		}
		return
	}

	if common.Intersects(q.KeyExpr(), TestKey) {
		body, _ := json.Marshal(map[string]any{
			"seq":        f.Seq(),
			"parameters": q.Parameters(),
			"payload":    string(q.Payload()),
		})
		if err := q.Reply(ctx, ds.Sample{
			KeyExpr:  TestKey,
			Payload:  body,
			Encoding: ds.Encoding{ID: encodingregistry.AppJSON},
		}); err != nil {
			logger.WarnContext(ctx, "reply failed", slog.Any("error", err))
		}
	}

	f.latest.ForEach(func(key string, s ds.Sample) bool {
		if !common.Intersects(q.KeyExpr(), key) {
			return true
		}
		if err := q.Reply(ctx, s); err != nil {
			logger.WarnContext(ctx, "reply failed", "key", key, slog.Any("error", err))
			return false
		}
		return true
	})
}

type jsonTick struct {
	Seq  uint64 `json:"seq" yaml:"seq" cbor:"seq"`
	Time string `json:"time" yaml:"time" cbor:"time"`
}

// Samples builds the round of demo samples for seq.
func Samples(seq uint64, now time.Time) ([]ds.Sample, error) {
	tick := jsonTick{Seq: seq, Time: now.UTC().Format(time.RFC3339Nano)}

	asJSON, err := json.Marshal(tick)
	if err != nil {
		return nil, err
	}
	asYAML, err := yaml.Marshal(tick)
	if err != nil {
		return nil, err
	}
	asCBOR, err := cbor.Marshal(tick)
	if err != nil {
		return nil, err
	}
	asPNG, err := gradient(seq)
	if err != nil {
		return nil, err
	}
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, seq)

	build := func(suffix string, id uint16, payload []byte) ds.Sample {
		return ds.Sample{
			KeyExpr:   FeedPrefix + "/" + suffix,
			Payload:   payload,
			Encoding:  ds.Encoding{ID: id},
			Timestamp: now,
		}
	}
	return []ds.Sample{
		build("counter", encodingregistry.TextPlain, []byte(fmt.Sprintf("%d", seq))),
		build("json", encodingregistry.AppJSON, asJSON),
		build("json5", encodingregistry.TextJSON5, []byte(fmt.Sprintf("{seq: %d, // tick\n time: '%s',}", seq, tick.Time))),
		build("yaml", encodingregistry.AppYAML, asYAML),
		build("cbor", encodingregistry.AppCBOR, asCBOR),
		build("bytes", encodingregistry.AppOctetStream, raw),
		build("image", encodingregistry.ImagePNG, asPNG),
	}, nil
}

func gradient(seq uint64) ([]byte, error) {
	const size = 16
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	shift := uint8(seq * 16)
	for y := range size {
		for x := range size {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x*16) + shift, G: uint8(y * 16), B: shift, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
