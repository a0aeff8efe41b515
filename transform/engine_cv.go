//go:build withcv
// +build withcv

/*
DESCRIPTION
  engine_cv.go provides a transform engine using OpenCV.

AUTHORS
  The AusOcean Team <info@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package transform

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Flip codes for gocv.Flip.
const (
	flipRows = 0  // About the x axis.
	flipCols = 1  // About the y axis.
	flipBoth = -1 // About both axes.
)

// CV is an Engine using OpenCV. RGB565 pixels are treated as opaque two
// channel 8-bit values.
type CV struct{}

// DefaultEngine returns the CV engine.
func DefaultEngine() Engine { return CV{} }

// ScaleRotateMirror implements Engine.
func (CV) ScaleRotateMirror(op Operation) error {
	err := op.check()
	if err != nil {
		return err
	}
	n := len(op.Src)
	if m := op.Width * op.Height * 2; n > m {
		n = m
	}
	src, err := gocv.NewMatFromBytes(op.Height, op.Width, gocv.MatTypeCV8UC2, op.Src[:n])
	if err != nil {
		return fmt.Errorf("could not create source matrix: %w", err)
	}
	defer src.Close()

	img := src
	rot := gocv.NewMat()
	defer rot.Close()
	switch op.Rotation {
	case Rotate0:
	case Rotate90:
		gocv.Rotate(src, &rot, gocv.Rotate90CounterClockwise)
		img = rot
	case Rotate180:
		gocv.Rotate(src, &rot, gocv.Rotate180Clockwise)
		img = rot
	case Rotate270:
		gocv.Rotate(src, &rot, gocv.Rotate90Clockwise)
		img = rot
	default:
		return ErrBadRotation
	}

	flipped := gocv.NewMat()
	defer flipped.Close()
	switch {
	case op.MirrorX && op.MirrorY:
		gocv.Flip(img, &flipped, flipBoth)
		img = flipped
	case op.MirrorX:
		gocv.Flip(img, &flipped, flipCols)
		img = flipped
	case op.MirrorY:
		gocv.Flip(img, &flipped, flipRows)
		img = flipped
	}

	copy(op.Dst, img.ToBytes())
	return nil
}
