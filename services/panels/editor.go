package panels

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kychandar/hammer/common"
	"github.com/kychandar/hammer/ds"
	encodingregistry "github.com/kychandar/hammer/services/encodingRegistry"
	payloaddecoder "github.com/kychandar/hammer/services/payloadDecoder"
	"gopkg.in/yaml.v3"
)

var (
	ErrEncodingID     = fmt.Errorf("encoding id must be between 0 and %d", common.MaxEncodingID)
	ErrNoFile         = errors.New("no file selected")
	ErrImageNeedsFile = errors.New("image payloads are read from a file")
)

// Editor authors the payload of a put, or the value of a get. The input
// widget follows the encoding: text for string-like encodings, hex or a file
// for binary ones, a file for images.
type Editor struct {
	Encoding ds.Encoding
	Source   ds.PayloadSource
	Input    string
	FilePath string
}

func NewEditor(id uint16) *Editor {
	return &Editor{
		Encoding: ds.Encoding{ID: id},
		Source:   ds.PayloadFromInput,
	}
}

func (e *Editor) Kind() encodingregistry.EditorKind {
	return encodingregistry.Editor(e.Encoding.ID)
}

// SetEncoding switches encoding. The current input is kept.
func (e *Editor) SetEncoding(id uint16, schema string) error {
	if id > common.MaxEncodingID {
		return ErrEncodingID
	}
	e.Encoding = ds.Encoding{ID: id, Schema: schema}
	if e.Kind() == encodingregistry.EditorImage {
		e.Source = ds.PayloadFromFile
	}
	return nil
}

// SetEncodingText parses a number typed into the id field.
func (e *Editor) SetEncodingText(idText, schema string) error {
	id, err := strconv.ParseUint(strings.TrimSpace(idText), 10, 16)
	if err != nil || id > common.MaxEncodingID {
		return ErrEncodingID
	}
	return e.SetEncoding(uint16(id), schema)
}

// Payload validates the editor content and returns the bytes to send.
func (e *Editor) Payload() ([]byte, error) {
	if e.Encoding.ID > common.MaxEncodingID {
		return nil, ErrEncodingID
	}

	switch e.Kind() {
	case encodingregistry.EditorImage:
		if e.Source != ds.PayloadFromFile {
			return nil, ErrImageNeedsFile
		}
		data, err := e.readFile()
		if err != nil {
			return nil, err
		}
		format := encodingregistry.Classify(e.Encoding.ID).Format
		if _, err := payloaddecoder.DecodeImage(format, data); err != nil {
			return nil, err
		}
		return data, nil

	case encodingregistry.EditorString:
		var data []byte
		if e.Source == ds.PayloadFromFile {
			b, err := e.readFile()
			if err != nil {
				return nil, err
			}
			data = b
		} else {
			data = []byte(e.Input)
		}
		if err := e.validateText(data); err != nil {
			return nil, err
		}
		return data, nil

	default:
		if e.Source == ds.PayloadFromFile {
			return e.readFile()
		}
		return parseHex(e.Input)
	}
}

func (e *Editor) readFile() ([]byte, error) {
	if strings.TrimSpace(e.FilePath) == "" {
		return nil, ErrNoFile
	}
	data, err := os.ReadFile(e.FilePath)
	if err != nil {
		return nil, fmt.Errorf("read payload file: %w", err)
	}
	return data, nil
}

func (e *Editor) validateText(data []byte) error {
	if !utf8.Valid(data) {
		return errors.New("payload is not valid utf-8")
	}

	switch e.Encoding.ID {
	case encodingregistry.AppYAML, encodingregistry.TextYAML:
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("yaml: %w", err)
		}
		return nil
	}

	cat := encodingregistry.Classify(e.Encoding.ID)
	if cat.Kind != encodingregistry.KindStructuredJSON {
		return nil
	}
	if cat.JSON5 {
		plain, err := payloaddecoder.NormalizeJSON5(data)
		if err != nil {
			return fmt.Errorf("json5: %w", err)
		}
		data = plain
	}
	if _, err := payloaddecoder.ParseJSON(data); err != nil {
		return fmt.Errorf("json: %w", err)
	}
	return nil
}

// parseHex ignores whitespace, so "de ad\nbe ef" is four bytes.
func parseHex(s string) ([]byte, error) {
	compact := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, s)
	data, err := hex.DecodeString(compact)
	if err != nil {
		return nil, fmt.Errorf("hex: %w", err)
	}
	return data, nil
}

// Entry is the archived form of the editor.
func (e *Editor) Entry() ds.PayloadEntry {
	return ds.PayloadEntry{
		EncodingID:     e.Encoding.ID,
		EncodingSchema: e.Encoding.Schema,
		Source:         e.Source,
		Input:          e.Input,
		FilePath:       e.FilePath,
	}
}

func editorFromEntry(p ds.PayloadEntry) *Editor {
	e := &Editor{
		Encoding: ds.Encoding{ID: p.EncodingID, Schema: p.EncodingSchema},
		Source:   p.Source,
		Input:    p.Input,
		FilePath: p.FilePath,
	}
	if e.Source != ds.PayloadFromFile {
		e.Source = ds.PayloadFromInput
	}
	return e
}
