/*
DESCRIPTION
  membus.go provides MemBus, an in-memory Bus holding a register file, for
  use when no sensor hardware is present.

AUTHORS
  The AusOcean Team <info@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package sensor

import (
	"sync"

	"github.com/pkg/errors"
)

// Write records a register write made through a MemBus.
type Write struct {
	Addr byte
	Reg  uint16
	Val  uint8
}

// MemBus is a Bus backed by a register map. Two byte writes set the register
// pointer, three byte writes set a register, and reads return consecutive
// registers from the pointer.
type MemBus struct {
	mu     sync.Mutex
	regs   map[uint16]uint8
	ptr    uint16
	writes []Write
	err    error
}

// NewMemBus returns a MemBus holding a copy of regs.
func NewMemBus(regs map[uint16]uint8) *MemBus {
	b := &MemBus{regs: make(map[uint16]uint8)}
	for k, v := range regs {
		b.regs[k] = v
	}
	return b
}

// NewMemBusFor returns a MemBus whose ID registers hold the PID in info.
func NewMemBusFor(info Info) *MemBus {
	return NewMemBus(map[uint16]uint8{
		regIDHigh: uint8(info.PID >> 8),
		regIDLow:  uint8(info.PID),
	})
}

// WriteBytes implements Bus.
func (b *MemBus) WriteBytes(addr byte, v []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	if len(v) != 2 && len(v) != 3 {
		return errors.Errorf("unexpected transfer length %d", len(v))
	}
	b.ptr = uint16(v[0])<<8 | uint16(v[1])
	if len(v) == 3 {
		b.regs[b.ptr] = v[2]
		b.writes = append(b.writes, Write{Addr: addr, Reg: b.ptr, Val: v[2]})
	}
	return nil
}

// ReadBytes implements Bus.
func (b *MemBus) ReadBytes(addr byte, n int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	out := make([]byte, n)
	for i := range out {
		out[i] = b.regs[b.ptr]
		b.ptr++
	}
	return out, nil
}

// Register returns the current value of reg.
func (b *MemBus) Register(reg uint16) uint8 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.regs[reg]
}

// Writes returns the register writes made so far, oldest first.
func (b *MemBus) Writes() []Write {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Write(nil), b.writes...)
}

// Reset forgets recorded writes.
func (b *MemBus) Reset() {
	b.mu.Lock()
	b.writes = nil
	b.mu.Unlock()
}

// SetError makes every following transfer fail with err. A nil err restores
// normal operation.
func (b *MemBus) SetError(err error) {
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
}
