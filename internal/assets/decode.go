package assets

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // GIF decoder
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp" // BMP decoder registration
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // TIFF decoder registration
	_ "golang.org/x/image/webp" // WebP decoder registration
)

// ErrUnsupportedImage is returned for data no registered decoder recognizes.
var ErrUnsupportedImage = errors.New("unsupported image format")

// DecodeImage decodes PNG, JPEG, GIF, BMP, TIFF, WebP or TGA data into an
// NRGBA image anchored at the origin. TGA has no magic number, so it is
// selected by the extension of name.
func DecodeImage(data []byte, name string) (*image.NRGBA, error) {
	var (
		img image.Image
		err error
	)

	if strings.EqualFold(filepath.Ext(name), ".tga") {
		img, err = decodeTGA(data)
	} else {
		img, _, err = image.Decode(bytes.NewReader(data))
		if errors.Is(err, image.ErrFormat) {
			err = fmt.Errorf("%w: %s", ErrUnsupportedImage, filepath.Base(name))
		}
	}
	if err != nil {
		return nil, err
	}

	return ToNRGBA(img), nil
}

// ToNRGBA converts img to non-premultiplied RGBA with bounds starting at
// (0,0). Images already in that form are returned as is.
func ToNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}

	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
