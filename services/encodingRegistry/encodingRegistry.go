// Package encodingregistry maps wire encoding ids to what the inspector can
// do with them. One table drives both decoding and the choice of publish
// editor.
package encodingregistry

import (
	"fmt"
	"strings"

	"github.com/kychandar/hammer/ds"
)

// Known encoding ids. They mirror the bus encoding registry and must never
// be renumbered.
const (
	ZenohBytes uint16 = iota
	ZenohString
	ZenohSerialized
	AppOctetStream
	TextPlain
	AppJSON
	TextJSON
	AppCDR
	AppCBOR
	AppYAML
	TextYAML
	TextJSON5
	AppPythonSerializedObject
	AppProtobuf
	AppJavaSerializedObject
	AppOpenMetricsText
	ImagePNG
	ImageJPEG
	ImageGIF
	ImageBMP
	ImageWebP
	AppXML
	AppXWWWFormURLEncoded
	TextHTML
	TextXML
	TextCSS
	TextJavascript
	TextMarkdown
	TextCSV
	AppSQL
	AppCoapPayload
	AppJSONPatchJSON
	AppJSONSeq
	AppJSONPath
	AppJWT
	AppMP4
	AppSoapXML
	AppYang
	AudioAAC
	AudioFLAC
	AudioMP4
	AudioOGG
	AudioVorbis
	VideoH261
	VideoH263
	VideoH264
	VideoH265
	VideoH266
	VideoMP4
	VideoOGG
	VideoRaw
	VideoVP8
	VideoVP9
)

type Kind uint8

const (
	KindUnknown Kind = iota
	KindRawBytes
	KindPlainText
	KindStructuredJSON
	KindStructuredCBOR
	KindImage
	KindAudio
	KindVideo
)

var kindNames = [...]string{"unknown", "raw bytes", "plain text", "json", "cbor", "image", "audio", "video"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

type ImageFormat uint8

const (
	FormatNone ImageFormat = iota
	FormatPNG
	FormatJPEG
	FormatGIF
	FormatBMP
	FormatWebP
)

var formatNames = [...]string{"", "png", "jpeg", "gif", "bmp", "webp"}

func (f ImageFormat) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return fmt.Sprintf("format(%d)", f)
}

// Category is the semantic class of an encoding. JSON5 is only meaningful
// for KindStructuredJSON and Format only for KindImage.
type Category struct {
	Kind   Kind
	JSON5  bool
	Format ImageFormat
}

func (c Category) String() string {
	switch c.Kind {
	case KindStructuredJSON:
		if c.JSON5 {
			return "json5"
		}
	case KindImage:
		return "image/" + c.Format.String()
	}
	return c.Kind.String()
}

// EditorKind is the input widget used to author a payload for publishing.
type EditorKind uint8

const (
	EditorBinary EditorKind = iota
	EditorString
	EditorImage
)

func (e EditorKind) String() string {
	switch e {
	case EditorString:
		return "string"
	case EditorImage:
		return "image"
	default:
		return "binary"
	}
}

// Entry is one row of the encoding table.
type Entry struct {
	ID       uint16
	Name     string
	Category Category
	Editor   EditorKind
}

var (
	raw      = Category{Kind: KindRawBytes}
	text     = Category{Kind: KindPlainText}
	jsonCat  = Category{Kind: KindStructuredJSON}
	json5Cat = Category{Kind: KindStructuredJSON, JSON5: true}
	cborCat  = Category{Kind: KindStructuredCBOR}
	audio    = Category{Kind: KindAudio}
	video    = Category{Kind: KindVideo}
)

func img(f ImageFormat) Category { return Category{Kind: KindImage, Format: f} }

// table is indexed by id.
var table = []Entry{
	{ZenohBytes, "zenoh/bytes", raw, EditorBinary},
	{ZenohString, "zenoh/string", text, EditorString},
	{ZenohSerialized, "zenoh/serialized", raw, EditorBinary},
	{AppOctetStream, "application/octet-stream", raw, EditorBinary},
	{TextPlain, "text/plain", text, EditorString},
	{AppJSON, "application/json", jsonCat, EditorString},
	{TextJSON, "text/json", jsonCat, EditorString},
	{AppCDR, "application/cdr", raw, EditorBinary},
	{AppCBOR, "application/cbor", cborCat, EditorBinary},
	{AppYAML, "application/yaml", text, EditorString},
	{TextYAML, "text/yaml", text, EditorString},
	{TextJSON5, "text/json5", json5Cat, EditorString},
	{AppPythonSerializedObject, "application/python-serialized-object", raw, EditorBinary},
	{AppProtobuf, "application/protobuf", raw, EditorBinary},
	{AppJavaSerializedObject, "application/java-serialized-object", raw, EditorBinary},
	{AppOpenMetricsText, "application/openmetrics-text", raw, EditorString},
	{ImagePNG, "image/png", img(FormatPNG), EditorImage},
	{ImageJPEG, "image/jpeg", img(FormatJPEG), EditorImage},
	{ImageGIF, "image/gif", img(FormatGIF), EditorImage},
	{ImageBMP, "image/bmp", img(FormatBMP), EditorImage},
	{ImageWebP, "image/webp", img(FormatWebP), EditorImage},
	{AppXML, "application/xml", text, EditorString},
	{AppXWWWFormURLEncoded, "application/x-www-form-urlencoded", raw, EditorString},
	{TextHTML, "text/html", text, EditorString},
	{TextXML, "text/xml", text, EditorString},
	{TextCSS, "text/css", text, EditorString},
	{TextJavascript, "text/javascript", text, EditorString},
	{TextMarkdown, "text/markdown", text, EditorString},
	{TextCSV, "text/csv", text, EditorString},
	{AppSQL, "application/sql", text, EditorString},
	{AppCoapPayload, "application/coap-payload", raw, EditorBinary},
	{AppJSONPatchJSON, "application/json-patch+json", text, EditorString},
	{AppJSONSeq, "application/json-seq", text, EditorString},
	{AppJSONPath, "application/jsonpath", text, EditorString},
	{AppJWT, "application/jwt", raw, EditorBinary},
	{AppMP4, "application/mp4", raw, EditorBinary},
	{AppSoapXML, "application/soap+xml", text, EditorString},
	{AppYang, "application/yang", raw, EditorBinary},
	{AudioAAC, "audio/aac", audio, EditorBinary},
	{AudioFLAC, "audio/flac", audio, EditorBinary},
	{AudioMP4, "audio/mp4", audio, EditorBinary},
	{AudioOGG, "audio/ogg", audio, EditorBinary},
	{AudioVorbis, "audio/vorbis", audio, EditorBinary},
	{VideoH261, "video/h261", video, EditorBinary},
	{VideoH263, "video/h263", video, EditorBinary},
	{VideoH264, "video/h264", video, EditorBinary},
	{VideoH265, "video/h265", video, EditorBinary},
	{VideoH266, "video/h266", video, EditorBinary},
	{VideoMP4, "video/mp4", video, EditorBinary},
	{VideoOGG, "video/ogg", video, EditorBinary},
	{VideoRaw, "video/raw", video, EditorBinary},
	{VideoVP8, "video/vp8", video, EditorBinary},
	{VideoVP9, "video/vp9", video, EditorBinary},
}

var byName = func() map[string]uint16 {
	m := make(map[string]uint16, len(table))
	for _, e := range table {
		m[e.Name] = e.ID
	}
	return m
}()

// Lookup returns the table row for id.
func Lookup(id uint16) (Entry, bool) {
	if int(id) >= len(table) {
		return Entry{}, false
	}
	return table[id], true
}

// Classify never fails: ids outside the table are KindUnknown, which callers
// handle like raw bytes.
func Classify(id uint16) Category {
	if e, ok := Lookup(id); ok {
		return e.Category
	}
	return Category{Kind: KindUnknown}
}

// Editor returns the publish-side editor for id. Unknown ids get the binary
// editor.
func Editor(id uint16) EditorKind {
	if e, ok := Lookup(id); ok {
		return e.Editor
	}
	return EditorBinary
}

func Name(id uint16) string {
	if e, ok := Lookup(id); ok {
		return e.Name
	}
	return fmt.Sprintf("unknown(%d)", id)
}

// Label renders an encoding as "name" or "name;schema".
func Label(enc ds.Encoding) string {
	if enc.Schema == "" {
		return Name(enc.ID)
	}
	return Name(enc.ID) + ";" + enc.Schema
}

// Parse is the inverse of Label. A bare number is accepted as an id.
func Parse(label string) (ds.Encoding, error) {
	name, schema, _ := strings.Cut(strings.TrimSpace(label), ";")
	if id, ok := byName[name]; ok {
		return ds.Encoding{ID: id, Schema: schema}, nil
	}
	var id uint16
	if _, err := fmt.Sscanf(name, "%d", &id); err == nil && fmt.Sprint(id) == name {
		return ds.Encoding{ID: id, Schema: schema}, nil
	}
	return ds.Encoding{}, fmt.Errorf("unknown encoding %q", label)
}

// Known lists the table in id order.
func Known() []Entry {
	out := make([]Entry, len(table))
	copy(out, table)
	return out
}

// IsTextual reports whether payloads of this encoding are meant to be read
// as UTF-8 text.
func IsTextual(id uint16) bool {
	switch Classify(id).Kind {
	case KindPlainText, KindStructuredJSON:
		return true
	}
	return false
}
