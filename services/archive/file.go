package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/kychandar/hammer/ds"
	slogctx "github.com/veqryn/slog-context"
)

// FileStore keeps the document as pretty JSON on disk. A missing file loads
// as an empty document.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(ctx context.Context) (*ds.Archive, error) {
	data, err := readIfExists(s.path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

func (s *FileStore) Save(ctx context.Context, doc *ds.Archive) error {
	data, err := Encode(doc)
	if err != nil {
		return err
	}
	if err := writeAtomic(s.path, data); err != nil {
		return err
	}
	slogctx.FromCtx(ctx).DebugContext(ctx, "archive saved", "path", s.path, "bytes", len(data))
	return nil
}

func (s *FileStore) Close() {}

// ZstdStore is a FileStore whose bytes are zstd-compressed.
type ZstdStore struct {
	path string
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

func NewZstdStore(path string) (*ZstdStore, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	return &ZstdStore{path: path, enc: enc, dec: dec}, nil
}

func (s *ZstdStore) Load(ctx context.Context) (*ds.Archive, error) {
	data, err := readIfExists(s.path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return ds.NewArchive(), nil
	}
	plain, err := s.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", s.path, err)
	}
	return Decode(plain)
}

func (s *ZstdStore) Save(ctx context.Context, doc *ds.Archive) error {
	data, err := Encode(doc)
	if err != nil {
		return err
	}
	compressed := s.enc.EncodeAll(data, nil)
	if err := writeAtomic(s.path, compressed); err != nil {
		return err
	}
	slogctx.FromCtx(ctx).DebugContext(ctx, "archive saved", "path", s.path, "bytes", len(compressed), "raw_bytes", len(data))
	return nil
}

func (s *ZstdStore) Close() {
	s.enc.Close()
	s.dec.Close()
}

func readIfExists(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read archive %s: %w", path, err)
	}
	return data, nil
}

// writeAtomic replaces path through a temp file in the same directory.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write archive %s: %w", path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write archive %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write archive %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write archive %s: %w", path, err)
	}
	return nil
}
