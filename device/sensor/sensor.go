/*
DESCRIPTION
  sensor.go provides the Sensor interface implemented by MIPI CSI image
  sensor drivers, along with the Bus interface used for SCCB register access.

AUTHORS
  The AusOcean Team <info@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package sensor provides drivers for MIPI CSI image sensors controlled over
// SCCB (I2C with 16-bit register addresses). Drivers are selected by name
// through a registry; see Register and New.
package sensor

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/ausocean/utils/logging"
)

// To indicate package when logging.
const pkg = "sensor: "

// Registers common to the supported OmniVision sensors.
const (
	regIDHigh     = 0x300a
	regIDLow      = 0x300b
	regStreamMode = 0x0100
	regReset      = 0x0103
	regExposureH  = 0x3500
	regExposureM  = 0x3501
	regExposureL  = 0x3502
)

// Stream mode register values.
const (
	streamOff = 0x00
	streamOn  = 0x01
)

// Bayer patterns reported by Info.BayerPattern.
const (
	BayerRGGB = iota
	BayerGRBG
	BayerGBRG
	BayerBGGR
)

// Info describes the fixed capabilities of a sensor. None of these values may
// change while the sensor is streaming.
type Info struct {
	Name         string
	PID          uint16 // Product ID read back from the ID registers.
	Address      uint8  // 7-bit I2C address.
	Lanes        uint8  // MIPI CSI data lanes.
	BayerPattern uint8
	LaneBitrate  uint16 // Mbps per lane.
	Width        uint16
	Height       uint16
	FPS          uint8
}

func (i Info) String() string {
	return fmt.Sprintf("%s pid=%#04x %dx%d@%d %d lane(s) %dMbps", i.Name, i.PID, i.Width, i.Height, i.FPS, i.Lanes, i.LaneBitrate)
}

// Bus is an I2C bus. embd.I2CBus satisfies Bus.
type Bus interface {
	WriteBytes(addr byte, value []byte) error
	ReadBytes(addr byte, num int) ([]byte, error)
}

// Sensor is implemented by image sensor drivers.
type Sensor interface {
	// Info returns the sensor's fixed capabilities.
	Info() Info

	// ReadID reads the product ID from the sensor.
	ReadID() (uint16, error)

	// Init writes the sensor's initialisation sequence.
	Init() error

	StartStream() error
	StopStream() error

	// SetGain selects a gain step by index. Indexes beyond the end of the
	// sensor's gain table select the highest gain.
	SetGain(index uint32) error

	// SetExposure sets the exposure register value.
	SetExposure(exposure uint32) error

	ReadRegister(reg uint16) (uint8, error)
	WriteRegister(reg uint16, v uint8) error
}

// Resizer is implemented by sensors whose output resolution may be chosen
// before streaming.
type Resizer interface {
	SetResolution(w, h uint16) error
}

// Errors returned by sensors.
var (
	ErrUnknownSensor = errors.New("unknown sensor")
	ErrBadResolution = errors.New("bad resolution")
)

// Used for the delays given in initialisation tables. Replaced in tests.
var sleep = time.Sleep

// regval is an entry of an initialisation table. After writing val to addr
// the driver waits for delay milliseconds.
type regval struct {
	addr  uint16
	val   uint8
	delay uint16
}

// SCCB provides register access to a sensor at a fixed address on a Bus.
type SCCB struct {
	bus  Bus
	addr byte
}

// NewSCCB returns an SCCB for the sensor at addr on bus.
func NewSCCB(bus Bus, addr uint8) *SCCB {
	return &SCCB{bus: bus, addr: addr}
}

// Write writes v to the register reg. The register address is sent
// big-endian before the value.
func (s *SCCB) Write(reg uint16, v uint8) error {
	err := s.bus.WriteBytes(s.addr, []byte{byte(reg >> 8), byte(reg), v})
	if err != nil {
		return errors.Wrapf(err, "could not write register %#04x", reg)
	}
	return nil
}

// Read reads the register reg.
func (s *SCCB) Read(reg uint16) (uint8, error) {
	err := s.bus.WriteBytes(s.addr, []byte{byte(reg >> 8), byte(reg)})
	if err != nil {
		return 0, errors.Wrapf(err, "could not address register %#04x", reg)
	}
	b, err := s.bus.ReadBytes(s.addr, 1)
	if err != nil {
		return 0, errors.Wrapf(err, "could not read register %#04x", reg)
	}
	if len(b) != 1 {
		return 0, errors.Errorf("short read of register %#04x", reg)
	}
	return b[0], nil
}

// writeTable writes each entry of t in order, stopping at the first failure.
func (s *SCCB) writeTable(t []regval) error {
	for _, r := range t {
		err := s.Write(r.addr, r.val)
		if err != nil {
			return errors.Wrap(err, "init sequence failed")
		}
		if r.delay > 0 {
			sleep(time.Duration(r.delay) * time.Millisecond)
		}
	}
	return nil
}

// writeGrouped writes the given register values between the start and end
// of a group hold so that the sensor latches them on the same frame.
func (s *SCCB) writeGrouped(hold uint16, start, end uint8, regs ...regval) error {
	err := s.Write(hold, start)
	if err != nil {
		return err
	}
	for _, r := range regs {
		err = s.Write(r.addr, r.val)
		if err != nil {
			return err
		}
	}
	return s.Write(hold, end)
}

// omnivision holds the behaviour shared by the OmniVision drivers.
type omnivision struct {
	*SCCB
	info Info
	init []regval
	log  logging.Logger
}

func (o *omnivision) Info() Info { return o.info }

func (o *omnivision) ReadID() (uint16, error) {
	hi, err := o.Read(regIDHigh)
	if err != nil {
		return 0, errors.Wrap(err, "could not read PID high byte")
	}
	lo, err := o.Read(regIDLow)
	if err != nil {
		return 0, errors.Wrap(err, "could not read PID low byte")
	}
	pid := uint16(hi)<<8 | uint16(lo)
	o.log.Debug(pkg+"read sensor id", "sensor", o.info.Name, "pid", fmt.Sprintf("%#04x", pid))
	return pid, nil
}

func (o *omnivision) Init() error {
	o.log.Info(pkg+"initialising sensor", "sensor", o.info.String())
	err := o.writeTable(o.init)
	if err != nil {
		return err
	}
	o.log.Info(pkg+"sensor initialised", "sensor", o.info.Name, "lanes", o.info.Lanes, "laneMbps", o.info.LaneBitrate)
	return nil
}

func (o *omnivision) StartStream() error { return o.Write(regStreamMode, streamOn) }

func (o *omnivision) StopStream() error { return o.Write(regStreamMode, streamOff) }

func (o *omnivision) ReadRegister(reg uint16) (uint8, error) { return o.Read(reg) }

func (o *omnivision) WriteRegister(reg uint16, v uint8) error { return o.Write(reg, v) }
