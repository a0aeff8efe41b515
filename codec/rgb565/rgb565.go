/*
DESCRIPTION
  rgb565.go provides helpers for frames of 16-bit packed 5-6-5 pixels, the
  format used between every capture and processing stage.

AUTHORS
  The AusOcean Team <info@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package rgb565 provides functions for reading and writing frames of packed
// 5-6-5 pixels. Pixels are stored little-endian, row-major, with no padding.
package rgb565

import (
	"encoding/binary"
	"errors"
	"image"
	"image/color"
)

// BytesPerPixel is the size of a single packed pixel.
const BytesPerPixel = 2

// Channel maxima.
const (
	MaxRed   = 0x1f
	MaxGreen = 0x3f
	MaxBlue  = 0x1f
)

// ErrShortFrame is returned when a buffer is too small for the given geometry.
var ErrShortFrame = errors.New("buffer too small for frame")

// FrameSize returns the number of bytes occupied by a w x h frame.
func FrameSize(w, h int) int { return w * h * BytesPerPixel }

// Pixel returns the packed pixel at byte offset off of b.
func Pixel(b []byte, off int) uint16 {
	return binary.LittleEndian.Uint16(b[off:])
}

// PutPixel writes the packed pixel p at byte offset off of b.
func PutPixel(b []byte, off int, p uint16) {
	binary.LittleEndian.PutUint16(b[off:], p)
}

// Unpack splits a packed pixel into its 5-bit red, 6-bit green and 5-bit
// blue components.
func Unpack(p uint16) (r, g, b uint8) {
	return uint8(p >> 11 & MaxRed), uint8(p >> 5 & MaxGreen), uint8(p & MaxBlue)
}

// Pack builds a packed pixel from its components. Components are masked to
// their bit width.
func Pack(r, g, b uint8) uint16 {
	return uint16(r&MaxRed)<<11 | uint16(g&MaxGreen)<<5 | uint16(b&MaxBlue)
}

// Luma returns the 8-bit luminance of a packed pixel. Each channel is first
// scaled to 8 bits (x8 for red and blue, x4 for green) and then weighted by
// 0.299, 0.587 and 0.114 in integer arithmetic.
func Luma(p uint16) int {
	r, g, b := Unpack(p)
	return (int(r)*8*299 + int(g)*4*587 + int(b)*8*114) / 1000
}

// FromRGBA converts 8-bit channels into a packed pixel.
func FromRGBA(c color.Color) uint16 {
	r, g, b, _ := c.RGBA()
	return Pack(uint8(r>>11), uint8(g>>10), uint8(b>>11))
}

// Color is a packed 5-6-5 pixel implementing color.Color.
type Color uint16

// RGBA implements color.Color.
func (c Color) RGBA() (r, g, b, a uint32) {
	r5, g6, b5 := Unpack(uint16(c))
	r8 := uint32(r5)<<3 | uint32(r5)>>2
	g8 := uint32(g6)<<2 | uint32(g6)>>4
	b8 := uint32(b5)<<3 | uint32(b5)>>2
	return r8 | r8<<8, g8 | g8<<8, b8 | b8<<8, 0xffff
}

// Model converts any color into a Color.
var Model = color.ModelFunc(func(c color.Color) color.Color {
	if c, ok := c.(Color); ok {
		return c
	}
	return Color(FromRGBA(c))
})

// Image is an image.Image view over a packed frame. The frame is not copied.
type Image struct {
	Pix    []byte
	Width  int
	Height int
}

// NewImage returns an Image over b, which must hold at least a w x h frame.
func NewImage(b []byte, w, h int) (*Image, error) {
	if w < 0 || h < 0 || len(b) < FrameSize(w, h) {
		return nil, ErrShortFrame
	}
	return &Image{Pix: b, Width: w, Height: h}, nil
}

// ColorModel implements image.Image.
func (i *Image) ColorModel() color.Model { return Model }

// Bounds implements image.Image.
func (i *Image) Bounds() image.Rectangle { return image.Rect(0, 0, i.Width, i.Height) }

// At implements image.Image.
func (i *Image) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(i.Bounds())) {
		return Color(0)
	}
	return Color(Pixel(i.Pix, (y*i.Width+x)*BytesPerPixel))
}

// Set sets the pixel at x, y.
func (i *Image) Set(x, y int, c color.Color) {
	if !(image.Point{x, y}.In(i.Bounds())) {
		return
	}
	PutPixel(i.Pix, (y*i.Width+x)*BytesPerPixel, uint16(Model.Convert(c).(Color)))
}

// Fill writes p to every pixel of b.
func Fill(b []byte, p uint16) {
	for off := 0; off+1 < len(b); off += BytesPerPixel {
		PutPixel(b, off, p)
	}
}
