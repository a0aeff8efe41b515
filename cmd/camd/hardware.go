/*
DESCRIPTION
  hardware.go provides the platform resources used by camd: the SCCB bus,
  reset line and external clock through embd, and a simulated capture
  controller fed with generated frames.

AUTHORS
  The AusOcean Team <info@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kidoman/embd"
	_ "github.com/kidoman/embd/host/rpi"

	"github.com/ausocean/mipicam/cam"
	"github.com/ausocean/mipicam/cam/config"
	"github.com/ausocean/mipicam/codec/rgb565"
	"github.com/ausocean/mipicam/device/mipicam"
	"github.com/ausocean/mipicam/device/sensor"
	"github.com/ausocean/mipicam/isp"
	"github.com/ausocean/utils/logging"
)

// pwmClock generates a sensor clock on a PWM capable pin.
type pwmClock struct {
	pin embd.PWMPin
}

// Start implements mipicam.Clock.
func (c *pwmClock) Start(pin uint, hz uint) error {
	if hz == 0 {
		return fmt.Errorf("bad clock frequency %d", hz)
	}
	p, err := embd.NewPWMPin(int(pin))
	if err != nil {
		return fmt.Errorf("could not open PWM pin %d: %w", pin, err)
	}
	period := int(time.Second) / int(hz)
	err = p.SetPeriod(period)
	if err != nil {
		p.Close()
		return fmt.Errorf("could not set clock period: %w", err)
	}
	err = p.SetDuty(period / 2)
	if err != nil {
		p.Close()
		return fmt.Errorf("could not set clock duty: %w", err)
	}
	c.pin = p
	return nil
}

// simDriver delivers generated frames to the simulated capture controller.
type simDriver struct {
	ctlr  atomic.Pointer[mipicam.SimController]
	frame uint8
}

// factory returns a controller factory that records the controller it
// creates.
func (d *simDriver) factory() mipicam.ControllerFactory {
	return mipicam.SimFactory(func(s *mipicam.SimController) { d.ctlr.Store(s) })
}

// fill writes a diagonal gradient that moves by one pixel each frame.
func (d *simDriver) fill(b []byte, w int) int {
	n := len(b) / rgb565.BytesPerPixel
	for i := 0; i < n; i++ {
		x, y := i%w, i/w
		v := uint8(x+y+int(d.frame)) & rgb565.MaxGreen
		rgb565.PutPixel(b, i*rgb565.BytesPerPixel, rgb565.Pack(v>>1, v, v>>1))
	}
	d.frame++
	return n * rgb565.BytesPerPixel
}

// run delivers frames at fps until ctx is done.
func (d *simDriver) run(ctx context.Context, fps uint) {
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := d.ctlr.Load()
			if s == nil {
				continue
			}
			w := int(s.Config().Width)
			s.Deliver(func(b []byte) int { return d.fill(b, w) })
		}
	}
}

// newHardware returns the hardware for cfg. With sim set the sensor is
// simulated on an in-memory bus; otherwise the bus and pins are opened
// through embd. Frames always arrive through the simulated controller.
func newHardware(cfg config.Config, sim bool, d *simDriver, l logging.Logger) (cam.Hardware, func(), error) {
	hw := cam.Hardware{
		Controller: d.factory(),
		Processor:  isp.NewSoftware(),
	}
	if sim {
		info, ok := sensor.Lookup(cfg.Sensor)
		if !ok {
			return hw, nil, fmt.Errorf("unknown sensor %q", cfg.Sensor)
		}
		hw.Bus = sensor.NewMemBusFor(info)
		l.Info(pkg+"using simulated sensor bus", "sensor", cfg.Sensor)
		return hw, func() {}, nil
	}

	err := embd.InitI2C()
	if err != nil {
		return hw, nil, fmt.Errorf("could not initialise I2C: %w", err)
	}
	bus := embd.NewI2CBus(cfg.I2CPort)
	hw.Bus = bus
	closers := []func() error{bus.Close, embd.CloseI2C}

	if cfg.ResetPin != 0 {
		err = embd.InitGPIO()
		if err != nil {
			return hw, nil, fmt.Errorf("could not initialise GPIO: %w", err)
		}
		pin, err := embd.NewDigitalPin(int(cfg.ResetPin))
		if err != nil {
			return hw, nil, fmt.Errorf("could not open reset pin: %w", err)
		}
		err = pin.SetDirection(embd.Out)
		if err != nil {
			return hw, nil, fmt.Errorf("could not set reset pin direction: %w", err)
		}
		hw.ResetPin = pin
		closers = append(closers, pin.Close, embd.CloseGPIO)
	}
	clk := &pwmClock{}
	hw.Clock = clk

	release := func() {
		if clk.pin != nil {
			clk.pin.Close()
		}
		for i := len(closers) - 1; i >= 0; i-- {
			err := closers[i]()
			if err != nil {
				l.Warning(pkg+"could not release hardware", "error", err.Error())
			}
		}
	}
	return hw, release, nil
}
