package archive

import (
	"context"
	"fmt"

	"github.com/kychandar/hammer/common"
	"github.com/kychandar/hammer/config"
	"github.com/kychandar/hammer/ds"
	"github.com/valkey-io/valkey-go"
	slogctx "github.com/veqryn/slog-context"
)

// ValkeyStore keeps the document under a single valkey key so several
// machines can share one workspace.
type ValkeyStore struct {
	client valkey.Client
	key    string
}

func NewValkeyStore(cfg *config.Config) (*ValkeyStore, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:  cfg.Archive.Valkey.Addr,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("valkey client: %w", err)
	}
	return &ValkeyStore{
		client: client,
		key:    common.ArchiveCacheKeyFormat(cfg.Archive.Valkey.Key),
	}, nil
}

func (s *ValkeyStore) Close() {
	if s.client == nil {
		return
	}
	s.client.Close()
}

func (s *ValkeyStore) Load(ctx context.Context) (*ds.Archive, error) {
	cmd := s.client.B().Get().Key(s.key).Build()
	data, err := s.client.Do(ctx, cmd).AsBytes()
	if valkey.IsValkeyNil(err) {
		return ds.NewArchive(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load archive %s: %w", s.key, err)
	}
	return Decode(data)
}

func (s *ValkeyStore) Save(ctx context.Context, doc *ds.Archive) error {
	data, err := Encode(doc)
	if err != nil {
		return err
	}
	cmd := s.client.B().Set().Key(s.key).Value(valkey.BinaryString(data)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("save archive %s: %w", s.key, err)
	}
	slogctx.FromCtx(ctx).DebugContext(ctx, "archive saved", "key", s.key, "bytes", len(data))
	return nil
}
