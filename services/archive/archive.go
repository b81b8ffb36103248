// Package archive persists the session-state document.
package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kychandar/hammer/config"
	"github.com/kychandar/hammer/ds"
	"github.com/kychandar/hammer/services"
)

// New picks a store from the archive config: valkey when addresses are set,
// a zstd file for ".zst" paths, a plain JSON file otherwise.
func New(cfg *config.Config) (services.ArchiveStore, error) {
	if len(cfg.Archive.Valkey.Addr) > 0 {
		return NewValkeyStore(cfg)
	}
	if strings.HasSuffix(cfg.Archive.Path, ".zst") {
		return NewZstdStore(cfg.Archive.Path)
	}
	return NewFileStore(cfg.Archive.Path), nil
}

// Encode renders doc as two-space indented JSON.
func Encode(doc *ds.Archive) ([]byte, error) {
	if doc == nil {
		doc = ds.NewArchive()
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode archive: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a document. Missing pages come back as empty lists.
func Decode(data []byte) (*ds.Archive, error) {
	doc := ds.NewArchive()
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("decode archive: %w", err)
	}
	if doc.PageSub.Subscribers == nil {
		doc.PageSub.Subscribers = []ds.SubscriberEntry{}
	}
	if doc.PagePut.Puts == nil {
		doc.PagePut.Puts = []ds.PutEntry{}
	}
	if doc.PageGet.Gets == nil {
		doc.PageGet.Gets = []ds.GetEntry{}
	}
	return doc, nil
}
