/*
DESCRIPTION
  hal.go describes the platform hardware used by the camera: the CSI capture
  controller and its DMA transactions, the external sensor clock, the MIPI
  power rail, the sensor reset line and frame buffer allocation.

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

import (
	"unsafe"

	"github.com/pkg/errors"
)

// Colour types understood by the capture controller.
const (
	ColorRAW8 = iota
	ColorRGB565
)

// ControllerConfig holds the parameters used to create a capture controller.
type ControllerConfig struct {
	Width        uint16
	Height       uint16
	Lanes        uint8
	LaneBitrate  uint16 // Mbps.
	BayerPattern uint8
	InputColor   int
	OutputColor  int
	ByteSwap     bool
	QueueItems   int
	ISPClock     uint32 // Hz.
}

// Transaction is a single DMA transfer of one frame.
type Transaction struct {
	// Buffer is the destination of the transfer. It is provided by the
	// NewTransaction callback.
	Buffer []byte

	// Received is the number of bytes written, set by the controller before
	// calling TransactionDone.
	Received int
}

// Callbacks are invoked by a Controller from interrupt context. They must not
// block or allocate. The returned bool reports whether a higher priority
// task was woken and is for the controller's use only.
type Callbacks struct {
	// NewTransaction is called when the controller needs a destination buffer.
	NewTransaction func(t *Transaction) bool

	// TransactionDone is called when a transfer has finished.
	TransactionDone func(t *Transaction) bool
}

// Controller is a CSI capture controller with an attached DMA engine.
type Controller interface {
	RegisterCallbacks(cb Callbacks) error
	Enable() error
	Start() error

	// Stop abandons any in-flight transfer.
	Stop() error
	Disable() error
}

// ControllerFactory creates a Controller.
type ControllerFactory func(cfg ControllerConfig) (Controller, error)

// Clock generates the sensor's external clock on a GPIO.
type Clock interface {
	Start(pin uint, hz uint) error
}

// Regulator provides power rails.
type Regulator interface {
	Acquire(channel int, millivolts int) error
}

// Pin is a digital output. embd.DigitalPin satisfies Pin.
type Pin interface {
	Write(val int) error
}

// Allocator returns a buffer of size bytes whose first byte is aligned to
// align bytes.
type Allocator func(size, align int) ([]byte, error)

var (
	errBadAlignment = errors.New("alignment must be a power of two")
	errBadSize      = errors.New("buffer size must be positive")
)

// AlignedAlloc is the default Allocator. It over-allocates and slices the
// result so that the returned buffer starts on the requested boundary.
func AlignedAlloc(size, align int) ([]byte, error) {
	if align <= 0 || align&(align-1) != 0 {
		return nil, errBadAlignment
	}
	if size <= 0 {
		return nil, errBadSize
	}
	b := make([]byte, size+align-1)
	off := 0
	if rem := int(uintptr(unsafe.Pointer(&b[0])) & uintptr(align-1)); rem != 0 {
		off = align - rem
	}
	return b[off : off+size : off+size], nil
}
