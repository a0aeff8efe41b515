/*
DESCRIPTION
  software.go provides a transform engine implemented in Go.

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

import "github.com/ausocean/mipicam/codec/rgb565"

// Software is an Engine which moves pixels one at a time.
type Software struct{}

// ScaleRotateMirror implements Engine.
func (Software) ScaleRotateMirror(op Operation) error {
	err := op.check()
	if err != nil {
		return err
	}
	w, h := op.Width, op.Height
	ow, oh := op.OutputSize(w, h)
	const bpp = rgb565.BytesPerPixel
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var ox, oy int
			switch op.Rotation {
			case Rotate0:
				ox, oy = x, y
			case Rotate90:
				ox, oy = y, w-1-x
			case Rotate180:
				ox, oy = w-1-x, h-1-y
			case Rotate270:
				ox, oy = h-1-y, x
			default:
				return ErrBadRotation
			}
			if op.MirrorX {
				ox = ow - 1 - ox
			}
			if op.MirrorY {
				oy = oh - 1 - oy
			}
			si, di := (y*w+x)*bpp, (oy*ow+ox)*bpp
			op.Dst[di], op.Dst[di+1] = op.Src[si], op.Src[si+1]
		}
	}
	return nil
}
