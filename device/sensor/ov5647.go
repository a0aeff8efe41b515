/*
DESCRIPTION
  ov5647.go provides a driver for the OmniVision OV5647 configured for
  800x640 at 50 fps over two MIPI lanes in RAW8.

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

// OV5647 gain registers.
const (
	ov5647GainH = 0x350a
	ov5647GainL = 0x350b
)

// OV5647Info describes the OV5647 mode written by Init.
var OV5647Info = Info{
	Name:         "ov5647",
	PID:          0x5647,
	Address:      0x36,
	Lanes:        2,
	BayerPattern: BayerGRBG,
	LaneBitrate:  400,
	Width:        800,
	Height:       640,
	FPS:          50,
}

// ov5647Gains holds the low gain register value for each gain step; the high
// register is always zero. Steps double in size at each doubling of gain,
// from 1x (0x10) to just under 16x (0xf8).
var ov5647Gains = func() []uint8 {
	var g []uint8
	for base, step := 0x10, 1; base < 0x100; base, step = base*2, step*2 {
		for v := base; v < base*2; v += step {
			g = append(g, uint8(v))
		}
	}
	return g
}()

// Initialisation sequence for 800x640@50 RAW8.
var ov5647Init = []regval{
	{0x0103, 0x01, 10}, {0x0100, 0x00, 0}, {0x3035, 0x41, 0},
	{0x303c, 0x11, 0}, {0x3034, 0x18, 0}, {0x3036, 0x80, 0},
	{0x3106, 0xf5, 0}, {0x3821, 0x03, 0}, {0x3820, 0x41, 0},
	{0x3827, 0xec, 0}, {0x370c, 0x0f, 0}, {0x3612, 0x59, 0},
	{0x3618, 0x00, 0}, {0x5000, 0xff, 0}, {0x583e, 0xf0, 0},
	{0x583f, 0x20, 0}, {0x5002, 0x41, 0}, {0x5003, 0x08, 0},
	{0x5a00, 0x08, 0}, {0x3000, 0x00, 0}, {0x3001, 0x00, 0},
	{0x3002, 0x00, 0}, {0x3016, 0x08, 0}, {0x3017, 0xe0, 0},
	{0x3018, 0x44, 0}, {0x301c, 0xf8, 0}, {0x301d, 0xf0, 0},
	{0x3a18, 0x00, 0}, {0x3a19, 0xf8, 0}, {0x3c01, 0x80, 0},
	{0x3c00, 0x40, 0}, {0x3b07, 0x0c, 0}, {0x380c, 0x07, 0},
	{0x380d, 0x68, 0}, {0x380e, 0x03, 0}, {0x380f, 0xd8, 0},
	{0x3814, 0x31, 0}, {0x3815, 0x31, 0}, {0x3708, 0x64, 0},
	{0x3709, 0x52, 0}, {0x3800, 0x01, 0}, {0x3801, 0xf4, 0},
	{0x3802, 0x00, 0}, {0x3803, 0x00, 0}, {0x3804, 0x0a, 0},
	{0x3805, 0x3f, 0}, {0x3806, 0x07, 0}, {0x3807, 0xa1, 0},
	{0x3808, 0x03, 0}, {0x3809, 0x20, 0}, {0x380a, 0x02, 0},
	{0x380b, 0x80, 0}, {0x3810, 0x00, 0}, {0x3811, 0x08, 0},
	{0x3812, 0x00, 0}, {0x3813, 0x00, 0}, {0x3630, 0x2e, 0},
	{0x3632, 0xe2, 0}, {0x3633, 0x23, 0}, {0x3634, 0x44, 0},
	{0x3636, 0x06, 0}, {0x3620, 0x64, 0}, {0x3621, 0xe0, 0},
	{0x3600, 0x37, 0}, {0x3704, 0xa0, 0}, {0x3703, 0x5a, 0},
	{0x3715, 0x78, 0}, {0x3717, 0x01, 0}, {0x3731, 0x02, 0},
	{0x370b, 0x60, 0}, {0x3705, 0x1a, 0}, {0x3f05, 0x02, 0},
	{0x3f06, 0x10, 0}, {0x3f01, 0x0a, 0}, {0x3a08, 0x01, 0},
	{0x3a09, 0x27, 0}, {0x3a0a, 0x00, 0}, {0x3a0b, 0xf6, 0},
	{0x3a0d, 0x04, 0}, {0x3a0e, 0x03, 0}, {0x3a0f, 0x58, 0},
	{0x3a10, 0x50, 0}, {0x3a1b, 0x58, 0}, {0x3a1e, 0x50, 0},
	{0x3a11, 0x60, 0}, {0x3a1f, 0x28, 0}, {0x4001, 0x02, 0},
	{0x4004, 0x02, 0}, {0x4000, 0x09, 0}, {0x4837, 0x28, 0},
	{0x4050, 0x6e, 0}, {0x4051, 0x8f, 0},
}

func init() {
	Register(OV5647Info, NewOV5647)
}

// OV5647 is a Sensor driver for the OmniVision OV5647.
type OV5647 struct {
	omnivision
}

// NewOV5647 returns a new OV5647 driver using r for register access.
func NewOV5647(r *SCCB, l logging.Logger) Sensor {
	return &OV5647{omnivision{SCCB: r, info: OV5647Info, init: ov5647Init, log: l}}
}

// SetGain implements Sensor.SetGain.
func (o *OV5647) SetGain(index uint32) error {
	if int(index) >= len(ov5647Gains) {
		index = uint32(len(ov5647Gains) - 1)
	}
	err := o.Write(ov5647GainH, 0)
	if err != nil {
		return err
	}
	return o.Write(ov5647GainL, ov5647Gains[index])
}

// SetExposure implements Sensor.SetExposure. The exposure is written across
// three byte registers, most significant first.
func (o *OV5647) SetExposure(exposure uint32) error {
	for i, reg := range []uint16{regExposureH, regExposureM, regExposureL} {
		err := o.Write(reg, uint8(exposure>>(16-8*i)))
		if err != nil {
			return err
		}
	}
	return nil
}
