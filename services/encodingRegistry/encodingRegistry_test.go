package encodingregistry

import (
	"math"
	"testing"

	"github.com/kychandar/hammer/ds"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableIsIndexedByID(t *testing.T) {
	for i, e := range Known() {
		assert.Equal(t, uint16(i), e.ID, "row %d (%s)", i, e.Name)
	}
	assert.Len(t, Known(), int(VideoVP9)+1)
}

func TestClassify_Known(t *testing.T) {
	tests := []struct {
		id   uint16
		want Category
	}{
		{ZenohBytes, Category{Kind: KindRawBytes}},
		{ZenohString, Category{Kind: KindPlainText}},
		{TextPlain, Category{Kind: KindPlainText}},
		{AppJSON, Category{Kind: KindStructuredJSON}},
		{TextJSON, Category{Kind: KindStructuredJSON}},
		{TextJSON5, Category{Kind: KindStructuredJSON, JSON5: true}},
		{AppCBOR, Category{Kind: KindStructuredCBOR}},
		{AppYAML, Category{Kind: KindPlainText}},
		{AppProtobuf, Category{Kind: KindRawBytes}},
		{ImagePNG, Category{Kind: KindImage, Format: FormatPNG}},
		{ImageJPEG, Category{Kind: KindImage, Format: FormatJPEG}},
		{ImageGIF, Category{Kind: KindImage, Format: FormatGIF}},
		{ImageBMP, Category{Kind: KindImage, Format: FormatBMP}},
		{ImageWebP, Category{Kind: KindImage, Format: FormatWebP}},
		{AudioOGG, Category{Kind: KindAudio}},
		{VideoH264, Category{Kind: KindVideo}},
		{AppSoapXML, Category{Kind: KindPlainText}},
	}

	for _, tt := range tests {
		t.Run(Name(tt.id), func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.id))
		})
	}
}

func TestClassify_OutOfRangeIsUnknown(t *testing.T) {
	for _, id := range []uint16{VideoVP9 + 1, 100, 1023, math.MaxUint16} {
		assert.NotPanics(t, func() {
			assert.Equal(t, KindUnknown, Classify(id).Kind)
		})
		assert.Equal(t, EditorBinary, Editor(id))
	}
}

func TestEditor(t *testing.T) {
	assert.Equal(t, EditorString, Editor(TextPlain))
	assert.Equal(t, EditorString, Editor(AppOpenMetricsText))
	assert.Equal(t, EditorString, Editor(AppXWWWFormURLEncoded))
	assert.Equal(t, EditorImage, Editor(ImageWebP))
	assert.Equal(t, EditorBinary, Editor(AppProtobuf))
	assert.Equal(t, EditorBinary, Editor(AudioFLAC))
}

func TestNameAndLabel(t *testing.T) {
	assert.Equal(t, "text/json5", Name(TextJSON5))
	assert.Equal(t, "unknown(900)", Name(900))
	assert.Equal(t, "application/protobuf;my.Msg", Label(ds.Encoding{ID: AppProtobuf, Schema: "my.Msg"}))
	assert.Equal(t, "image/png", Label(ds.Encoding{ID: ImagePNG}))
}

func TestParse(t *testing.T) {
	enc, err := Parse("application/json")
	require.NoError(t, err)
	assert.Equal(t, ds.Encoding{ID: AppJSON}, enc)

	enc, err = Parse("application/protobuf;my.Msg")
	require.NoError(t, err)
	assert.Equal(t, ds.Encoding{ID: AppProtobuf, Schema: "my.Msg"}, enc)

	enc, err = Parse("777")
	require.NoError(t, err)
	assert.Equal(t, uint16(777), enc.ID)

	_, err = Parse("text/klingon")
	assert.Error(t, err)
	_, err = Parse("12abc")
	assert.Error(t, err)
}

func TestIsTextual(t *testing.T) {
	assert.True(t, IsTextual(TextCSV))
	assert.True(t, IsTextual(TextJSON5))
	assert.False(t, IsTextual(AppCBOR))
	assert.False(t, IsTextual(ImagePNG))
	assert.False(t, IsTextual(2000))
}

func TestCategoryString(t *testing.T) {
	assert.Equal(t, "json5", Classify(TextJSON5).String())
	assert.Equal(t, "json", Classify(AppJSON).String())
	assert.Equal(t, "image/webp", Classify(ImageWebP).String())
	assert.Equal(t, "unknown", Classify(4000).String())
}
