/*
DESCRIPTION
  ov02c10.go provides a driver for the OmniVision OV02C10 configured for
  1288x728 at 30 fps over a single MIPI lane.

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

// OV02C10 registers.
const (
	ov02c10DigFineH   = 0x350c
	ov02c10DigFineL   = 0x350d
	ov02c10DigCoarse  = 0x350a
	ov02c10Analog     = 0x3508
	ov02c10GroupHold  = 0x3208
	groupHoldStart    = 0x00
	groupHoldLaunch   = 0x10
	ov02c10FineSteps  = 32
	ov02c10AnalogMax  = 5
	ov02c10FineOffset = 0x80
)

// OV02C10Info describes the OV02C10 mode written by Init.
var OV02C10Info = Info{
	Name:         "ov02c10",
	PID:          0x5602,
	Address:      0x36,
	Lanes:        1,
	BayerPattern: BayerGRBG,
	LaneBitrate:  500,
	Width:        1288,
	Height:       728,
	FPS:          30,
}

type ov02c10Gain struct {
	fine, coarse, analog uint8
}

// ov02c10Gains steps the digital fine gain through 32 values for each
// analog gain setting from 1 to 5.
var ov02c10Gains = func() []ov02c10Gain {
	g := make([]ov02c10Gain, 0, ov02c10FineSteps*ov02c10AnalogMax)
	for a := uint8(1); a <= ov02c10AnalogMax; a++ {
		for i := 0; i < ov02c10FineSteps; i++ {
			g = append(g, ov02c10Gain{fine: uint8(ov02c10FineOffset + 4*i), coarse: 1, analog: a})
		}
	}
	return g
}()

// Initialisation sequence for 1288x728@30, 1 lane.
var ov02c10Init = []regval{
	{0x0100, 0x00, 0}, {0x0103, 0x01, 10}, {0x0301, 0x08, 0},
	{0x0303, 0x06, 0}, {0x0304, 0x01, 0}, {0x0305, 0x77, 0},
	{0x0313, 0x40, 0}, {0x031c, 0x4f, 0}, {0x3016, 0x12, 0},
	{0x301b, 0xf0, 0}, {0x3020, 0x97, 0}, {0x3021, 0x23, 0},
	{0x3022, 0x01, 0}, {0x3026, 0xb4, 0}, {0x3027, 0xf1, 0},
	{0x303b, 0x00, 0}, {0x303c, 0x4f, 0}, {0x303d, 0xe6, 0},
	{0x303e, 0x00, 0}, {0x303f, 0x03, 0}, {0x3501, 0x04, 0},
	{0x3502, 0x6c, 0}, {0x3504, 0x0c, 0}, {0x3507, 0x00, 0},
	{0x3508, 0x08, 0}, {0x3509, 0x00, 0}, {0x350a, 0x01, 0},
	{0x350b, 0x00, 0}, {0x350c, 0x41, 0}, {0x3600, 0x84, 0},
	{0x3603, 0x08, 0}, {0x3610, 0x57, 0}, {0x3611, 0x1b, 0},
	{0x3613, 0x78, 0}, {0x3623, 0x00, 0}, {0x3632, 0xa0, 0},
	{0x3642, 0xe8, 0}, {0x364c, 0x70, 0}, {0x365d, 0x00, 0},
	{0x365f, 0x0f, 0}, {0x3708, 0x30, 0}, {0x3714, 0x24, 0},
	{0x3725, 0x02, 0}, {0x3737, 0x08, 0}, {0x3739, 0x28, 0},
	{0x3749, 0x32, 0}, {0x374a, 0x32, 0}, {0x374b, 0x32, 0},
	{0x374c, 0x32, 0}, {0x374d, 0x81, 0}, {0x374e, 0x81, 0},
	{0x374f, 0x81, 0}, {0x3752, 0x36, 0}, {0x3753, 0x36, 0},
	{0x3754, 0x36, 0}, {0x3761, 0x00, 0}, {0x376c, 0x81, 0},
	{0x3774, 0x18, 0}, {0x3776, 0x08, 0}, {0x377c, 0x81, 0},
	{0x377d, 0x81, 0}, {0x377e, 0x81, 0}, {0x37a0, 0x44, 0},
	{0x37a6, 0x44, 0}, {0x37aa, 0x0d, 0}, {0x37ae, 0x00, 0},
	{0x37cb, 0x03, 0}, {0x37cc, 0x01, 0}, {0x37d8, 0x02, 0},
	{0x37d9, 0x10, 0}, {0x37e1, 0x10, 0}, {0x37e2, 0x18, 0},
	{0x37e3, 0x08, 0}, {0x37e4, 0x08, 0}, {0x37e5, 0x02, 0},
	{0x37e6, 0x08, 0}, {0x3800, 0x01, 0}, {0x3801, 0x40, 0},
	{0x3802, 0x00, 0}, {0x3803, 0xb4, 0}, {0x3804, 0x06, 0},
	{0x3805, 0x4f, 0}, {0x3806, 0x03, 0}, {0x3807, 0x8f, 0},
	{0x3808, 0x05, 0}, {0x3809, 0x08, 0}, {0x380a, 0x02, 0},
	{0x380b, 0xd8, 0}, {0x380c, 0x08, 0}, {0x380d, 0xe8, 0},
	{0x380e, 0x04, 0}, {0x380f, 0x8c, 0}, {0x3810, 0x00, 0},
	{0x3811, 0x07, 0}, {0x3812, 0x00, 0}, {0x3813, 0x04, 0},
	{0x3814, 0x01, 0}, {0x3815, 0x01, 0}, {0x3816, 0x01, 0},
	{0x3817, 0x01, 0}, {0x3820, 0xa0, 0}, {0x3821, 0x00, 0},
	{0x3822, 0x80, 0}, {0x3823, 0x08, 0}, {0x3824, 0x00, 0},
	{0x3825, 0x20, 0}, {0x3826, 0x00, 0}, {0x3827, 0x08, 0},
	{0x382a, 0x00, 0}, {0x382b, 0x08, 0}, {0x382d, 0x00, 0},
	{0x382e, 0x00, 0}, {0x382f, 0x23, 0}, {0x3834, 0x00, 0},
	{0x3839, 0x00, 0}, {0x383a, 0xd1, 0}, {0x383e, 0x03, 0},
	{0x393d, 0x29, 0}, {0x393f, 0x6e, 0}, {0x394b, 0x06, 0},
	{0x394c, 0x06, 0}, {0x394d, 0x08, 0}, {0x394e, 0x0a, 0},
	{0x394f, 0x01, 0}, {0x3950, 0x01, 0}, {0x3951, 0x01, 0},
	{0x3952, 0x01, 0}, {0x3953, 0x01, 0}, {0x3954, 0x01, 0},
	{0x3955, 0x01, 0}, {0x3956, 0x01, 0}, {0x3957, 0x0e, 0},
	{0x3958, 0x08, 0}, {0x3959, 0x08, 0}, {0x395a, 0x08, 0},
	{0x395b, 0x13, 0}, {0x395c, 0x09, 0}, {0x395d, 0x05, 0},
	{0x395e, 0x02, 0}, {0x395f, 0x00, 0}, {0x395f, 0x00, 0},
	{0x3960, 0x00, 0}, {0x3961, 0x00, 0}, {0x3962, 0x00, 0},
	{0x3963, 0x00, 0}, {0x3964, 0x00, 0}, {0x3965, 0x00, 0},
	{0x3966, 0x00, 0}, {0x3967, 0x00, 0}, {0x3968, 0x01, 0},
	{0x3969, 0x01, 0}, {0x396a, 0x01, 0}, {0x396b, 0x01, 0},
	{0x396c, 0x10, 0}, {0x396d, 0xf0, 0}, {0x396e, 0x11, 0},
	{0x396f, 0x00, 0}, {0x3970, 0x37, 0}, {0x3971, 0x37, 0},
	{0x3972, 0x37, 0}, {0x3973, 0x37, 0}, {0x3974, 0x00, 0},
	{0x3975, 0x3c, 0}, {0x3976, 0x3c, 0}, {0x3977, 0x3c, 0},
	{0x3978, 0x3c, 0}, {0x3c00, 0x0f, 0}, {0x3c20, 0x01, 0},
	{0x3c21, 0x08, 0}, {0x3f00, 0x8b, 0}, {0x3f02, 0x0f, 0},
	{0x4000, 0xc3, 0}, {0x4001, 0xe0, 0}, {0x4002, 0x00, 0},
	{0x4003, 0x40, 0}, {0x4008, 0x04, 0}, {0x4009, 0x23, 0},
	{0x400a, 0x04, 0}, {0x400b, 0x01, 0}, {0x4041, 0x20, 0},
	{0x4077, 0x06, 0}, {0x4078, 0x00, 0}, {0x4079, 0x1a, 0},
	{0x407a, 0x7f, 0}, {0x407b, 0x01, 0}, {0x4080, 0x03, 0},
	{0x4081, 0x84, 0}, {0x4308, 0x03, 0}, {0x4309, 0xff, 0},
	{0x430d, 0x00, 0}, {0x4500, 0x07, 0}, {0x4501, 0x00, 0},
	{0x4503, 0x00, 0}, {0x450a, 0x04, 0}, {0x450e, 0x00, 0},
	{0x450f, 0x00, 0}, {0x4800, 0x64, 0}, {0x4806, 0x00, 0},
	{0x4813, 0x00, 0}, {0x4815, 0x40, 0}, {0x4816, 0x12, 0},
	{0x481f, 0x30, 0}, {0x4837, 0x15, 0}, {0x4857, 0x05, 0},
	{0x4884, 0x04, 0}, {0x4900, 0x00, 0}, {0x4901, 0x00, 0},
	{0x4902, 0x01, 0}, {0x4d00, 0x03, 0}, {0x4d01, 0xd8, 0},
	{0x4d02, 0xba, 0}, {0x4d03, 0xa0, 0}, {0x4d04, 0xb7, 0},
	{0x4d05, 0x34, 0}, {0x4d0d, 0x00, 0}, {0x5000, 0xfd, 0},
	{0x5001, 0x50, 0}, {0x5006, 0x00, 0}, {0x5080, 0x40, 0},
	{0x5181, 0x2b, 0}, {0x5202, 0xa3, 0}, {0x5206, 0x01, 0},
	{0x5207, 0x00, 0}, {0x520a, 0x01, 0}, {0x520b, 0x00, 0},
	{0x4f00, 0x01, 0},
}

func init() {
	Register(OV02C10Info, NewOV02C10)
}

// OV02C10 is a Sensor driver for the OmniVision OV02C10. Gain and exposure
// writes are wrapped in a group hold.
type OV02C10 struct {
	omnivision
}

// NewOV02C10 returns a new OV02C10 driver using r for register access.
func NewOV02C10(r *SCCB, l logging.Logger) Sensor {
	return &OV02C10{omnivision{SCCB: r, info: OV02C10Info, init: ov02c10Init, log: l}}
}

// SetGain implements Sensor.SetGain.
func (o *OV02C10) SetGain(index uint32) error {
	if int(index) >= len(ov02c10Gains) {
		index = uint32(len(ov02c10Gains) - 1)
	}
	g := ov02c10Gains[index]
	return o.writeGrouped(ov02c10GroupHold, groupHoldStart, groupHoldLaunch,
		regval{addr: ov02c10DigFineH, val: g.fine >> 2},
		regval{addr: ov02c10DigFineL, val: (g.fine & 0x03) << 6},
		regval{addr: ov02c10DigCoarse, val: g.coarse},
		regval{addr: ov02c10Analog, val: g.analog},
	)
}

// SetExposure implements Sensor.SetExposure. The 16-bit exposure is written
// as a high nibble, a middle byte and a low nibble shifted into the top of
// the last register.
func (o *OV02C10) SetExposure(exposure uint32) error {
	return o.writeGrouped(ov02c10GroupHold, groupHoldStart, groupHoldLaunch,
		regval{addr: regExposureH, val: uint8(exposure>>12) & 0x0f},
		regval{addr: regExposureM, val: uint8(exposure >> 4)},
		regval{addr: regExposureL, val: uint8(exposure&0x0f) << 4},
	)
}
