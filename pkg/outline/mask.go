// Package outline turns the alpha silhouette of an image into directed
// outline segments, one run of closed loops per grid cell.
package outline

import "image"

// Mask is a binary occupancy matrix of Height rows by Width columns.
type Mask struct {
	Width  int
	Height int
	bits   []bool // row-major
}

// NewMask returns an empty mask of the given size.
func NewMask(width, height int) *Mask {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Mask{
		Width:  width,
		Height: height,
		bits:   make([]bool, width*height),
	}
}

// MaskFromImage builds the mask of region r of img. A pixel is occupied iff
// its alpha is non-zero. Mask coordinates are relative to r.Min; pixels of r
// outside the image bounds are empty.
func MaskFromImage(img image.Image, r image.Rectangle) *Mask {
	m := NewMask(r.Dx(), r.Dy())
	visible := r.Intersect(img.Bounds())
	if visible.Empty() {
		return m
	}

	alphaAt := alphaFunc(img)
	for y := visible.Min.Y; y < visible.Max.Y; y++ {
		for x := visible.Min.X; x < visible.Max.X; x++ {
			if alphaAt(x, y) {
				m.bits[(y-r.Min.Y)*m.Width+(x-r.Min.X)] = true
			}
		}
	}
	return m
}

// alphaFunc returns a non-zero-alpha test for img, reading the pixel buffer
// directly for the common in-memory formats.
func alphaFunc(img image.Image) func(x, y int) bool {
	switch src := img.(type) {
	case *image.RGBA:
		return func(x, y int) bool { return src.Pix[src.PixOffset(x, y)+3] != 0 }
	case *image.NRGBA:
		return func(x, y int) bool { return src.Pix[src.PixOffset(x, y)+3] != 0 }
	case *image.Alpha:
		return func(x, y int) bool { return src.Pix[src.PixOffset(x, y)] != 0 }
	default:
		return func(x, y int) bool {
			_, _, _, a := img.At(x, y).RGBA()
			return a != 0
		}
	}
}

// At reports whether (x, y) is occupied. Coordinates outside the mask are empty.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.bits[y*m.Width+x]
}

// Set marks (x, y) as occupied or empty. Out-of-range coordinates are ignored.
func (m *Mask) Set(x, y int, occupied bool) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.bits[y*m.Width+x] = occupied
}

// Count returns the number of occupied pixels.
func (m *Mask) Count() int {
	n := 0
	for _, b := range m.bits {
		if b {
			n++
		}
	}
	return n
}
