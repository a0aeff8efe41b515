/*
DESCRIPTION
  descriptor.go provides the frame descriptor shared between the capture
  controller's interrupt callbacks and the polling loop.

AUTHORS
  The AusOcean Team <info@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package mipicam

import "sync/atomic"

// Descriptor bits.
const (
	readyBit  = 1 << 31
	indexMask = 1
)

// descriptor holds the ready flag and the DMA target buffer index in one
// word, so a reader always sees a flag and index written together.
type descriptor struct {
	v atomic.Uint32
}

func (d *descriptor) reset() { d.v.Store(0) }

// complete marks a frame ready and moves the DMA target to the other buffer.
func (d *descriptor) complete() {
	for {
		old := d.v.Load()
		if d.v.CompareAndSwap(old, readyBit|((old&indexMask)^1)) {
			return
		}
	}
}

// target returns the index of the buffer the next transfer writes to.
func (d *descriptor) target() int { return int(d.v.Load() & indexMask) }

func (d *descriptor) ready() bool { return d.v.Load()&readyBit != 0 }

// take clears the ready flag. If a frame was ready it returns the index of
// the most recently completed buffer, which is never the DMA target.
func (d *descriptor) take() (int, bool) {
	for {
		old := d.v.Load()
		if old&readyBit == 0 {
			return 0, false
		}
		if d.v.CompareAndSwap(old, old&^readyBit) {
			return int((old & indexMask) ^ 1), true
		}
	}
}
