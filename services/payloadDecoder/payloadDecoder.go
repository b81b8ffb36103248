// Package payloaddecoder turns a payload and its encoding into something a
// viewer can show. Everything here is pure: no I/O and no shared state
// besides pooled scratch buffers.
package payloaddecoder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fxamacker/cbor/v2"
	"github.com/kychandar/hammer/ds"
	encodingregistry "github.com/kychandar/hammer/services/encodingRegistry"
	"github.com/kychandar/hammer/services/pool"
)

// Representation is one of Binary, Text, JSON, Image, Audio, Video or Error.
type Representation interface {
	Kind() string
}

type Binary struct {
	Size int
}

type Text struct {
	Content string
}

// JSON keeps the original source next to a two-space pretty form and the
// parsed tree. For JSON5 the source is the JSON5 text.
type JSON struct {
	Source string
	Pretty string
	Tree   Value
}

// Image pixels are non-premultiplied RGBA, row major, 4 bytes per pixel.
type Image struct {
	Width  int
	Height int
	Pixels []byte
}

type Audio struct {
	Size int
}

type Video struct {
	Size int
}

type Error struct {
	Message string
}

func (Binary) Kind() string { return "binary" }
func (Text) Kind() string   { return "text" }
func (JSON) Kind() string   { return "json" }
func (Image) Kind() string  { return "image" }
func (Audio) Kind() string  { return "audio" }
func (Video) Kind() string  { return "video" }
func (Error) Kind() string  { return "error" }

// Decode classifies the encoding and renders data accordingly. It never
// panics; every failure is an Error representation.
func Decode(enc ds.Encoding, data []byte) (rep Representation) {
	defer func() {
		if r := recover(); r != nil {
			rep = Error{Message: fmt.Sprintf("decoder failure: %v", r)}
		}
	}()

	cat := encodingregistry.Classify(enc.ID)
	switch cat.Kind {
	case encodingregistry.KindPlainText:
		s, err := decodeUTF8(data)
		if err != nil {
			return Error{Message: err.Error()}
		}
		return Text{Content: s}
	case encodingregistry.KindStructuredJSON:
		return decodeJSON(data, cat.JSON5)
	case encodingregistry.KindStructuredCBOR:
		return decodeCBOR(data)
	case encodingregistry.KindImage:
		img, err := DecodeImage(cat.Format, data)
		if err != nil {
			return Error{Message: err.Error()}
		}
		return img
	case encodingregistry.KindAudio:
		return Audio{Size: len(data)}
	case encodingregistry.KindVideo:
		return Video{Size: len(data)}
	default:
		return Binary{Size: len(data)}
	}
}

func decodeUTF8(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	offset := 0
	for offset < len(data) {
		r, size := utf8.DecodeRune(data[offset:])
		if r == utf8.RuneError && size <= 1 {
			break
		}
		offset += size
	}
	return "", fmt.Errorf("invalid utf-8 sequence at byte %d", offset)
}

func decodeJSON(data []byte, json5 bool) Representation {
	source, err := decodeUTF8(data)
	if err != nil {
		return Error{Message: err.Error()}
	}

	plain := data
	if json5 {
		plain, err = NormalizeJSON5(data)
		if err != nil {
			return Error{Message: "json5: " + err.Error()}
		}
	}

	tree, err := ParseJSON(plain)
	if err != nil {
		label := "json"
		if json5 {
			label = "json5"
		}
		return Error{Message: fmt.Sprintf("%s: %v", label, err)}
	}

	pretty, err := Pretty(plain)
	if err != nil {
		return Error{Message: err.Error()}
	}
	return JSON{Source: source, Pretty: pretty, Tree: tree}
}

// Pretty indents a JSON document with two spaces, keeping key order.
func Pretty(data []byte) (string, error) {
	objPool := pool.GetGlobalPool()
	buf := objPool.Buffer.Get()
	defer objPool.ResetBuffer(buf)

	if err := json.Indent(buf, bytes.TrimSpace(data), "", "  "); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func decodeCBOR(data []byte) Representation {
	if len(data) == 0 {
		return Text{}
	}
	var items []string
	rest := data
	for len(rest) > 0 {
		diag, next, err := cbor.DiagnoseFirst(rest)
		if err != nil {
			return Error{Message: fmt.Sprintf("cbor at byte %d: %v", len(data)-len(rest), err)}
		}
		items = append(items, diag)
		rest = next
	}
	return Text{Content: strings.Join(items, ", ")}
}
