/*
DESCRIPTION
  exposure.go provides the auto-exposure controller and manual exposure and
  gain controls of the Camera.

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
	"fmt"
	"sync"
	"time"

	"github.com/ausocean/mipicam/codec/rgb565"
	"github.com/ausocean/mipicam/device/sensor"
	"github.com/ausocean/utils/logging"
)

// Auto-exposure parameters.
const (
	defaultExposure = 0x9c0
	defaultGain     = 20
	minExposure     = 0x200
	maxExposure     = 0xf00
	exposureStep    = 0x40
	maxGain         = 120
	gainStep        = 2
	deadband        = 10
	minAEInterval   = 100 * time.Millisecond
)

// Brightness sampling.
const (
	lumaSamples    = 100
	sampleStride   = 200 // Bytes.
	defaultLuma    = 128
	maxBrightLevel = 10
	brightSettle   = 50 * time.Millisecond
)

// ExposureState is a snapshot of the cached exposure controls.
type ExposureState struct {
	Exposure uint16
	Gain     uint8
	Target   uint8
	Enabled  bool
}

// autoExposure holds the exposure cache. The cache records the last value
// sent to the sensor, or the value to send once a sensor exists.
type autoExposure struct {
	mu       sync.Mutex
	state    ExposureState
	interval time.Duration
	last     time.Time

	pendingExposure bool
	pendingGain     bool

	// unsent is the control whose last auto-exposure push failed.
	unsent control
}

// Sensor controls stepped by auto-exposure.
type control int

const (
	controlNone control = iota
	controlExposure
	controlGain
)

func newAutoExposure() autoExposure {
	return autoExposure{
		state: ExposureState{
			Exposure: defaultExposure,
			Gain:     defaultGain,
			Target:   defaultAETarget,
		},
		interval: minAEInterval,
	}
}

func (a *autoExposure) snapshot() ExposureState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *autoExposure) setInterval(d time.Duration) {
	if d < minAEInterval {
		d = minAEInterval
	}
	a.mu.Lock()
	a.interval = d
	a.mu.Unlock()
}

// pushPending sends manual values cached before the sensor existed.
func (a *autoExposure) pushPending(s sensor.Sensor, l logging.Logger) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pendingExposure {
		err := s.SetExposure(uint32(a.state.Exposure))
		if err != nil {
			l.Warning(pkg+"could not set exposure", "error", err.Error())
		}
	}
	if a.pendingGain {
		err := s.SetGain(uint32(a.state.Gain))
		if err != nil {
			l.Warning(pkg+"could not set gain", "error", err.Error())
		}
	}
	a.pendingExposure, a.pendingGain = false, false
}

// Exposure returns the cached exposure controls.
func (c *Camera) Exposure() ExposureState { return c.ae.snapshot() }

// SetAutoExposure enables or disables the auto-exposure controller.
func (c *Camera) SetAutoExposure(enabled bool) {
	c.ae.mu.Lock()
	changed := c.ae.state.Enabled != enabled
	c.ae.state.Enabled = enabled
	c.ae.mu.Unlock()
	if changed {
		c.log.Info(pkg+"auto exposure", "enabled", enabled)
	}
}

// SetAETarget sets the target mean luma of the auto-exposure controller.
func (c *Camera) SetAETarget(target uint8) {
	c.ae.mu.Lock()
	c.ae.state.Target = target
	c.ae.mu.Unlock()
}

// SetManualExposure caches the exposure and sends it to the sensor if one
// exists. Errors are logged.
func (c *Camera) SetManualExposure(e uint16) {
	s := c.Sensor()
	c.ae.mu.Lock()
	defer c.ae.mu.Unlock()
	if c.ae.state.Enabled {
		c.log.Warning(pkg + "manual exposure set while auto exposure enabled")
	}
	c.ae.state.Exposure = e
	if s == nil {
		c.ae.pendingExposure = true
		return
	}
	err := s.SetExposure(uint32(e))
	if err != nil {
		c.log.Warning(pkg+"could not set exposure", "error", err.Error())
		return
	}
	c.log.Info(pkg+"manual exposure", "exposure", fmt.Sprintf("%#04x", e))
}

// SetManualGain caches the gain index and sends it to the sensor if one
// exists. Errors are logged.
func (c *Camera) SetManualGain(g uint8) {
	s := c.Sensor()
	c.ae.mu.Lock()
	defer c.ae.mu.Unlock()
	if c.ae.state.Enabled {
		c.log.Warning(pkg + "manual gain set while auto exposure enabled")
	}
	c.ae.state.Gain = g
	if s == nil {
		c.ae.pendingGain = true
		return
	}
	err := s.SetGain(uint32(g))
	if err != nil {
		c.log.Warning(pkg+"could not set gain", "error", err.Error())
		return
	}
	c.log.Info(pkg+"manual gain", "gain", g)
}

// AdjustExposure sends the exposure to the sensor, updating the cache only
// if the sensor accepts it.
func (c *Camera) AdjustExposure(e uint16) error {
	s := c.Sensor()
	if s == nil {
		return ErrNotInitialized
	}
	c.ae.mu.Lock()
	defer c.ae.mu.Unlock()
	err := s.SetExposure(uint32(e))
	if err != nil {
		c.log.Error(pkg+"could not adjust exposure", "error", err.Error())
		return fmt.Errorf("could not adjust exposure: %w", err)
	}
	c.ae.state.Exposure = e
	c.log.Info(pkg+"exposure adjusted", "exposure", fmt.Sprintf("%#04x", e))
	return nil
}

// AdjustGain sends the gain index to the sensor, updating the cache only if
// the sensor accepts it.
func (c *Camera) AdjustGain(g uint8) error {
	s := c.Sensor()
	if s == nil {
		return ErrNotInitialized
	}
	c.ae.mu.Lock()
	defer c.ae.mu.Unlock()
	err := s.SetGain(uint32(g))
	if err != nil {
		c.log.Error(pkg+"could not adjust gain", "error", err.Error())
		return fmt.Errorf("could not adjust gain: %w", err)
	}
	c.ae.state.Gain = g
	c.log.Info(pkg+"gain adjusted", "gain", g)
	return nil
}

// SetBrightnessLevel maps a level from 0 to 10 onto an exposure and gain
// pair and applies them. Levels above 10 are clamped.
func (c *Camera) SetBrightnessLevel(level uint) error {
	if level > maxBrightLevel {
		level = maxBrightLevel
	}
	e := uint16(0x400 + level*0xb0)
	g := uint8(level * 6)
	c.log.Info(pkg+"setting brightness level", "level", level, "exposure", fmt.Sprintf("%#04x", e), "gain", g)

	err := c.AdjustExposure(e)
	if err != nil {
		return err
	}
	c.sleep(brightSettle)
	return c.AdjustGain(g)
}

// autoExpose runs one auto-exposure step if enabled and the rate limit
// allows. At most one control is stepped, exposure before gain.
func (c *Camera) autoExpose(now time.Time, s sensor.Sensor) {
	if s == nil {
		return
	}
	a := &c.ae
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.state.Enabled {
		return
	}
	if !a.last.IsZero() && now.Sub(a.last) < a.interval {
		return
	}
	a.last = now

	// A failed push is retried from the cache before stepping further.
	if a.unsent != controlNone {
		err := c.push(s, a.unsent)
		if err != nil {
			c.log.Warning(pkg+"auto exposure could not resend control", "error", err.Error())
			return
		}
		a.unsent = controlNone
		return
	}

	luma := brightness(c.ImageData(), int(c.width), int(c.height))
	diff := int(a.state.Target) - luma
	if diff >= -deadband && diff <= deadband {
		return
	}

	var ctl control
	switch {
	case diff > 0 && a.state.Exposure < maxExposure:
		a.state.Exposure = uint16(min(int(a.state.Exposure)+exposureStep, maxExposure))
		ctl = controlExposure
	case diff > 0 && a.state.Gain < maxGain:
		a.state.Gain = uint8(min(int(a.state.Gain)+gainStep, maxGain))
		ctl = controlGain
	case diff < 0 && a.state.Exposure > minExposure:
		a.state.Exposure = uint16(max(int(a.state.Exposure)-exposureStep, minExposure))
		ctl = controlExposure
	case diff < 0 && a.state.Gain > 0:
		a.state.Gain = uint8(max(int(a.state.Gain)-gainStep, 0))
		ctl = controlGain
	default:
		return
	}
	err := c.push(s, ctl)
	if err != nil {
		c.log.Warning(pkg+"auto exposure could not update sensor", "error", err.Error())
		a.unsent = ctl
		return
	}
	c.log.Debug(pkg+"auto exposure step",
		"luma", luma,
		"target", a.state.Target,
		"exposure", fmt.Sprintf("%#04x", a.state.Exposure),
		"gain", a.state.Gain,
	)
}

// push sends the cached value of ctl to s. c.ae.mu must be held.
func (c *Camera) push(s sensor.Sensor, ctl control) error {
	if ctl == controlGain {
		return s.SetGain(uint32(c.ae.state.Gain))
	}
	return s.SetExposure(uint32(c.ae.state.Exposure))
}

// brightness returns the mean luma of a sparse horizontal scan starting at
// the centre of a w x h RGB565 frame, or 128 if nothing can be sampled.
func brightness(buf []byte, w, h int) int {
	start := (h/2)*w*rgb565.BytesPerPixel + (w/2)*rgb565.BytesPerPixel
	var sum, n int
	for i := 0; i < lumaSamples; i++ {
		off := start + i*sampleStride
		if off+1 >= len(buf) {
			break
		}
		sum += rgb565.Luma(rgb565.Pixel(buf, off))
		n++
	}
	if n == 0 {
		return defaultLuma
	}
	return sum / n
}
