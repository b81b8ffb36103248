package payloaddecoder

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	encodingregistry "github.com/kychandar/hammer/services/encodingRegistry"
	"golang.org/x/image/bmp"
	"golang.org/x/image/webp"
)

// maxPixels bounds the decoded size of a single frame.
const maxPixels = 1 << 26

type imageCodec struct {
	decodeConfig func(io.Reader) (image.Config, error)
	decode       func(io.Reader) (image.Image, error)
}

var codecs = map[encodingregistry.ImageFormat]imageCodec{
	encodingregistry.FormatPNG:  {png.DecodeConfig, png.Decode},
	encodingregistry.FormatJPEG: {jpeg.DecodeConfig, jpeg.Decode},
	encodingregistry.FormatGIF:  {gif.DecodeConfig, gif.Decode},
	encodingregistry.FormatBMP:  {bmp.DecodeConfig, bmp.Decode},
	encodingregistry.FormatWebP: {webp.DecodeConfig, webp.Decode},
}

// DecodeImage decodes data as the given format into straight RGBA.
func DecodeImage(format encodingregistry.ImageFormat, data []byte) (Image, error) {
	codec, ok := codecs[format]
	if !ok {
		return Image{}, fmt.Errorf("unsupported image format %q", format)
	}

	cfg, err := codec.decodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("%s: %w", format, err)
	}
	if cfg.Width*cfg.Height > maxPixels {
		return Image{}, fmt.Errorf("%s: %dx%d exceeds the pixel limit", format, cfg.Width, cfg.Height)
	}

	src, err := codec.decode(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("%s: %w", format, err)
	}

	b := src.Bounds()
	if n, ok := src.(*image.NRGBA); ok && b.Min == (image.Point{}) && n.Stride == 4*b.Dx() {
		return Image{Width: b.Dx(), Height: b.Dy(), Pixels: n.Pix[:4*b.Dx()*b.Dy()]}, nil
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)

	return Image{Width: b.Dx(), Height: b.Dy(), Pixels: dst.Pix}, nil
}
