/*
DESCRIPTION
  sim.go provides a simulated sensor with a selectable resolution, used with
  a MemBus and a simulated capture controller.

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
	"github.com/ausocean/utils/logging"
)

const simGainReg = 0x350b

// SimInfo describes the default simulated sensor mode.
var SimInfo = Info{
	Name:         "sim",
	PID:          0x0565,
	Address:      0x36,
	Lanes:        2,
	BayerPattern: BayerGRBG,
	LaneBitrate:  400,
	Width:        1280,
	Height:       720,
	FPS:          30,
}

func init() {
	Register(SimInfo, NewSim)
}

// Sim is a Sensor that only touches registers. Sim implements Resizer.
type Sim struct {
	omnivision
}

// NewSim returns a simulated sensor using r for register access.
func NewSim(r *SCCB, l logging.Logger) Sensor {
	return &Sim{omnivision{SCCB: r, info: SimInfo, init: []regval{{regReset, 0x01, 0}}, log: l}}
}

// SetResolution implements Resizer.
func (s *Sim) SetResolution(w, h uint16) error {
	if w == 0 || h == 0 {
		return ErrBadResolution
	}
	s.info.Width, s.info.Height = w, h
	return nil
}

// SetGain implements Sensor.SetGain.
func (s *Sim) SetGain(index uint32) error {
	if index > 0xff {
		index = 0xff
	}
	return s.Write(simGainReg, uint8(index))
}

// SetExposure implements Sensor.SetExposure.
func (s *Sim) SetExposure(exposure uint32) error {
	for i, reg := range []uint16{regExposureH, regExposureM, regExposureL} {
		err := s.Write(reg, uint8(exposure>>(16-8*i)))
		if err != nil {
			return err
		}
	}
	return nil
}
