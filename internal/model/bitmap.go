package model

import (
	"bytes"
	"fmt"
	"image/color"
)

// Bitmap is the canonical decoded image: packed RGBA, 4 bytes per pixel, row-major.
type Bitmap struct {
	Width  int
	Height int
	Pix    []byte
}

// NewBitmap allocates a zeroed bitmap.
func NewBitmap(width, height int) *Bitmap {
	return &Bitmap{Width: width, Height: height, Pix: make([]byte, width*height*4)}
}

// Stride is the number of bytes per row.
func (b *Bitmap) Stride() int {
	return b.Width * 4
}

// Validate checks that the pixel buffer matches the dimensions.
func (b *Bitmap) Validate() error {
	if b == nil {
		return fmt.Errorf("nil bitmap")
	}
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("invalid bitmap dimensions: %dx%d", b.Width, b.Height)
	}
	if len(b.Pix) != b.Width*b.Height*4 {
		return fmt.Errorf("bitmap buffer is %d bytes, expected %d", len(b.Pix), b.Width*b.Height*4)
	}
	return nil
}

// Clone returns a deep copy.
func (b *Bitmap) Clone() *Bitmap {
	pix := make([]byte, len(b.Pix))
	copy(pix, b.Pix)
	return &Bitmap{Width: b.Width, Height: b.Height, Pix: pix}
}

// Equal reports pixel equality.
func (b *Bitmap) Equal(other *Bitmap) bool {
	if b == nil || other == nil {
		return b == other
	}
	return b.Width == other.Width && b.Height == other.Height && bytes.Equal(b.Pix, other.Pix)
}

// At returns the pixel at (x, y).
func (b *Bitmap) At(x, y int) color.RGBA {
	i := y*b.Stride() + x*4
	return color.RGBA{R: b.Pix[i], G: b.Pix[i+1], B: b.Pix[i+2], A: b.Pix[i+3]}
}

// Set writes the pixel at (x, y).
func (b *Bitmap) Set(x, y int, c color.RGBA) {
	i := y*b.Stride() + x*4
	b.Pix[i] = c.R
	b.Pix[i+1] = c.G
	b.Pix[i+2] = c.B
	b.Pix[i+3] = c.A
}

// Fill paints the whole bitmap with one colour.
func (b *Bitmap) Fill(c color.RGBA) {
	for i := 0; i < len(b.Pix); i += 4 {
		b.Pix[i] = c.R
		b.Pix[i+1] = c.G
		b.Pix[i+2] = c.B
		b.Pix[i+3] = c.A
	}
}
