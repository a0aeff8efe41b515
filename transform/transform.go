/*
DESCRIPTION
  transform.go provides the geometric transform stage, which rotates and
  mirrors RGB565 frames into its own output buffer.

AUTHORS
  The AusOcean Team <info@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package transform provides rotation and mirroring of RGB565 frames.
package transform

import (
	"errors"
	"fmt"
	"io"

	"github.com/ausocean/mipicam/codec/rgb565"
	"github.com/ausocean/utils/logging"
)

// To indicate package when logging.
const pkg = "transform: "

// Rotation is a counter-clockwise rotation in degrees.
type Rotation uint

// Supported rotations.
const (
	Rotate0   Rotation = 0
	Rotate90  Rotation = 90
	Rotate180 Rotation = 180
	Rotate270 Rotation = 270
)

// Errors returned by this package.
var (
	ErrBadRotation    = errors.New("rotation must be 0, 90, 180 or 270")
	ErrBadSize        = errors.New("bad frame size")
	ErrInitialised    = errors.New("transform already initialised")
	ErrNotInitialised = errors.New("transform not initialised")
)

// ParseRotation returns the Rotation of deg degrees.
func ParseRotation(deg uint) (Rotation, error) {
	switch r := Rotation(deg); r {
	case Rotate0, Rotate90, Rotate180, Rotate270:
		return r, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrBadRotation, deg)
	}
}

// swaps reports whether r exchanges width and height.
func (r Rotation) swaps() bool { return r == Rotate90 || r == Rotate270 }

// Config is the transform applied to each frame. Frames are rotated and
// then mirrored. MirrorX reverses each row and MirrorY reverses the order
// of rows.
type Config struct {
	Rotation Rotation
	MirrorX  bool
	MirrorY  bool
}

// Active reports whether c changes a frame.
func (c Config) Active() bool {
	return c.Rotation != Rotate0 || c.MirrorX || c.MirrorY
}

// OutputSize returns the dimensions of a transformed w x h frame.
func (c Config) OutputSize(w, h int) (int, int) {
	if c.Rotation.swaps() {
		return h, w
	}
	return w, h
}

// Operation is one transform of Src, a Width x Height RGB565 frame, into
// Dst.
type Operation struct {
	Src, Dst      []byte
	Width, Height int
	Config
}

// Engine performs transforms. ScaleRotateMirror blocks until the transform
// completes. Frames are never scaled.
type Engine interface {
	ScaleRotateMirror(op Operation) error
}

// check validates the buffers of op.
func (op Operation) check() error {
	if op.Width <= 0 || op.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrBadSize, op.Width, op.Height)
	}
	n := rgb565.FrameSize(op.Width, op.Height)
	if len(op.Src) < n || len(op.Dst) < n {
		return fmt.Errorf("%w: need %d bytes, have src %d dst %d", ErrBadSize, n, len(op.Src), len(op.Dst))
	}
	return nil
}

// Stage owns the output buffer of a transform. A Stage must be initialised
// before it transforms frames.
type Stage struct {
	log    logging.Logger
	cfg    Config
	engine Engine
	w, h   int // Input dimensions.
	buf    []byte
}

// New returns a Stage applying cfg with engine e. If e is nil the default
// engine for the build is used.
func New(l logging.Logger, cfg Config, e Engine) (*Stage, error) {
	if _, err := ParseRotation(uint(cfg.Rotation)); err != nil {
		return nil, err
	}
	if e == nil {
		e = DefaultEngine()
	}
	return &Stage{log: l, cfg: cfg, engine: e}, nil
}

// Config returns the transform configuration.
func (s *Stage) Config() Config { return s.cfg }

// Init allocates the output buffer for w x h input frames.
func (s *Stage) Init(w, h int) error {
	if s.buf != nil {
		return ErrInitialised
	}
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrBadSize, w, h)
	}
	s.w, s.h = w, h
	s.buf = make([]byte, rgb565.FrameSize(w, h))
	ow, oh := s.OutputSize()
	s.log.Info(pkg+"transform initialised",
		"rotation", uint(s.cfg.Rotation),
		"mirrorX", s.cfg.MirrorX,
		"mirrorY", s.cfg.MirrorY,
		"output", fmt.Sprintf("%dx%d", ow, oh),
	)
	return nil
}

// Initialised reports whether Init has succeeded.
func (s *Stage) Initialised() bool { return s.buf != nil }

// OutputSize returns the dimensions of transformed frames.
func (s *Stage) OutputSize() (int, int) { return s.cfg.OutputSize(s.w, s.h) }

// Buffer returns the output buffer, or nil if not initialised.
func (s *Stage) Buffer() []byte { return s.buf }

// Transform transforms src into dst, returning false if the stage is not
// initialised, either buffer is nil or the engine fails.
func (s *Stage) Transform(src, dst []byte) bool {
	if s.buf == nil || src == nil || dst == nil {
		return false
	}
	err := s.engine.ScaleRotateMirror(Operation{
		Src:    src,
		Dst:    dst,
		Width:  s.w,
		Height: s.h,
		Config: s.cfg,
	})
	if err != nil {
		s.log.Warning(pkg+"transform failed", "error", err.Error())
		return false
	}
	return true
}

// Close releases the output buffer and the engine, if it needs closing.
func (s *Stage) Close() error {
	s.buf = nil
	if c, ok := s.engine.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
