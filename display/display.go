/*
DESCRIPTION
  display.go provides the display consumer, which polls a camera for frames,
  optionally transforms them, and points a canvas at the result.

AUTHORS
  The AusOcean Team <info@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package display provides a consumer of camera frames which presents them
// on a canvas.
package display

import (
	"errors"
	"sync"
	"time"

	"github.com/ausocean/mipicam/codec/rgb565"
	"github.com/ausocean/mipicam/transform"
	"github.com/ausocean/utils/logging"
)

// To indicate package when logging.
const pkg = "display: "

// Frames between display rate reports.
const fpsFrames = 100

// ErrNoFrame is returned by Latest.Image before a frame is presented.
var ErrNoFrame = errors.New("no frame presented")

// Source provides frames.
type Source interface {
	IsStreaming() bool
	CaptureFrame() bool
	ImageData() []byte
	ImageWidth() uint16
	ImageHeight() uint16
}

// Canvas presents frames. SetBuffer points the canvas at a w x h RGB565
// frame; Invalidate requests a redraw.
type Canvas interface {
	SetBuffer(buf []byte, w, h int)
	Invalidate()
}

// Consumer moves frames from a Source to a Canvas. Consumer is not safe for
// concurrent use.
type Consumer struct {
	log    logging.Logger
	src    Source
	canvas Canvas
	tr     *transform.Stage
	now    func() time.Time

	buf    []byte // Buffer the canvas points at.
	w, h   int
	frames uint64
	last   time.Time // Time of the last rate report.
}

// New returns a Consumer. tr may be nil; if it is not nil and initialised,
// frames are transformed before display.
func New(l logging.Logger, src Source, c Canvas, tr *transform.Stage) *Consumer {
	return &Consumer{log: l, src: src, canvas: c, tr: tr, now: time.Now}
}

// Update presents a new frame if one is ready, returning true if it did.
// If the transform fails the untransformed frame is shown.
func (c *Consumer) Update() bool {
	if !c.src.IsStreaming() || !c.src.CaptureFrame() {
		return false
	}
	img := c.src.ImageData()
	if img == nil {
		return false
	}
	w, h := int(c.src.ImageWidth()), int(c.src.ImageHeight())

	if c.tr != nil && c.tr.Initialised() && c.tr.Transform(img, c.tr.Buffer()) {
		img = c.tr.Buffer()
		w, h = c.tr.OutputSize()
	}

	if len(c.buf) == 0 || &img[0] != &c.buf[0] || w != c.w || h != c.h {
		c.canvas.SetBuffer(img, w, h)
		c.buf, c.w, c.h = img, w, h
	}
	c.canvas.Invalidate()
	c.count()
	return true
}

func (c *Consumer) count() {
	c.frames++
	now := c.now()
	if c.last.IsZero() {
		c.last = now
		return
	}
	if c.frames%fpsFrames != 0 {
		return
	}
	if d := now.Sub(c.last); d > 0 {
		c.log.Info(pkg+"display rate", "fps", float64(fpsFrames)/d.Seconds(), "frames", c.frames)
	}
	c.last = now
}

// Size returns the dimensions of the last frame presented.
func (c *Consumer) Size() (int, int) { return c.w, c.h }

// Frames returns the number of frames presented.
func (c *Consumer) Frames() uint64 { return c.frames }

// Latest is a Canvas which keeps a copy of the most recently presented
// frame.
type Latest struct {
	mu    sync.Mutex
	src   []byte
	frame []byte
	w, h  int
	n     uint64
}

// SetBuffer implements Canvas.
func (l *Latest) SetBuffer(buf []byte, w, h int) {
	l.mu.Lock()
	l.src, l.w, l.h = buf, w, h
	l.mu.Unlock()
}

// Invalidate implements Canvas by copying the frame.
func (l *Latest) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.src == nil {
		return
	}
	l.frame = append(l.frame[:0], l.src...)
	l.n++
}

// Frame returns a copy of the last frame and its dimensions. ok is false if
// no frame has been presented.
func (l *Latest) Frame() (buf []byte, w, h int, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.n == 0 {
		return nil, 0, 0, false
	}
	return append([]byte(nil), l.frame...), l.w, l.h, true
}

// Image returns the last frame as an image.
func (l *Latest) Image() (*rgb565.Image, error) {
	buf, w, h, ok := l.Frame()
	if !ok {
		return nil, ErrNoFrame
	}
	return rgb565.NewImage(buf, w, h)
}

// Count returns the number of frames presented.
func (l *Latest) Count() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.n
}
