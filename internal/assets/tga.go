package assets

import (
	"errors"
	"fmt"
	"image"
)

// TGA decoding errors.
var (
	ErrTruncatedTGAData = errors.New("truncated TGA data")
	ErrUnsupportedTGA   = errors.New("unsupported TGA image")
)

const (
	tgaHeaderSize   = 18
	tgaTrueColor    = 2
	tgaRLETrueColor = 10
	tgaTopToBottom  = 0x20 // image descriptor bit 5
)

// decodeTGA decodes uncompressed (type 2) and RLE (type 10) true-color TGA
// files with 24 or 32 bits per pixel. 24-bit pixels are opaque.
func decodeTGA(data []byte) (*image.NRGBA, error) {
	if len(data) < tgaHeaderSize {
		return nil, fmt.Errorf("%w: header", ErrTruncatedTGAData)
	}

	idLength := int(data[0])
	colorMapType := data[1]
	imageType := data[2]
	width := int(data[12]) | int(data[13])<<8
	height := int(data[14]) | int(data[15])<<8
	bpp := int(data[16])
	descriptor := data[17]

	if colorMapType != 0 {
		return nil, fmt.Errorf("%w: color-mapped", ErrUnsupportedTGA)
	}
	if imageType != tgaTrueColor && imageType != tgaRLETrueColor {
		return nil, fmt.Errorf("%w: type %d", ErrUnsupportedTGA, imageType)
	}
	if bpp != 24 && bpp != 32 {
		return nil, fmt.Errorf("%w: %d bits per pixel", ErrUnsupportedTGA, bpp)
	}

	offset := tgaHeaderSize + idLength
	if offset > len(data) {
		return nil, fmt.Errorf("%w: image ID", ErrTruncatedTGAData)
	}

	d := tgaDecoder{
		src:         data[offset:],
		img:         image.NewNRGBA(image.Rect(0, 0, width, height)),
		bytesPerPix: bpp / 8,
		topToBottom: descriptor&tgaTopToBottom != 0,
	}

	var err error
	if imageType == tgaTrueColor {
		err = d.readRaw(width * height)
	} else {
		err = d.readRLE(width * height)
	}
	if err != nil {
		return nil, err
	}
	return d.img, nil
}

// tgaDecoder writes BGR(A) pixels in file order into img.
type tgaDecoder struct {
	src         []byte
	pos         int
	img         *image.NRGBA
	bytesPerPix int
	topToBottom bool
	written     int
}

// pixel returns the next source pixel as RGBA bytes.
func (d *tgaDecoder) pixel() ([4]byte, error) {
	if d.pos+d.bytesPerPix > len(d.src) {
		return [4]byte{}, fmt.Errorf("%w: pixel %d", ErrTruncatedTGAData, d.written)
	}
	p := d.src[d.pos:]
	d.pos += d.bytesPerPix

	a := byte(0xff)
	if d.bytesPerPix == 4 {
		a = p[3]
	}
	return [4]byte{p[2], p[1], p[0], a}, nil
}

// put stores px at the next destination position, flipping rows for
// bottom-to-top files.
func (d *tgaDecoder) put(px [4]byte) {
	w, h := d.img.Rect.Dx(), d.img.Rect.Dy()
	x, y := d.written%w, d.written/w
	if !d.topToBottom {
		y = h - 1 - y
	}
	copy(d.img.Pix[d.img.PixOffset(x, y):], px[:])
	d.written++
}

func (d *tgaDecoder) readRaw(total int) error {
	for d.written < total {
		px, err := d.pixel()
		if err != nil {
			return err
		}
		d.put(px)
	}
	return nil
}

func (d *tgaDecoder) readRLE(total int) error {
	for d.written < total {
		if d.pos >= len(d.src) {
			return fmt.Errorf("%w: packet at pixel %d", ErrTruncatedTGAData, d.written)
		}
		packet := d.src[d.pos]
		d.pos++
		count := min(int(packet&0x7f)+1, total-d.written)

		if packet&0x80 != 0 {
			px, err := d.pixel()
			if err != nil {
				return err
			}
			for i := 0; i < count; i++ {
				d.put(px)
			}
			continue
		}

		for i := 0; i < count; i++ {
			px, err := d.pixel()
			if err != nil {
				return err
			}
			d.put(px)
		}
	}
	return nil
}
