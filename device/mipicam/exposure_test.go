/*
DESCRIPTION
  exposure_test.go provides tests for the auto-exposure controller and the
  manual exposure controls.

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
	"errors"
	"testing"
	"time"

	"github.com/ausocean/mipicam/codec/rgb565"
	"github.com/ausocean/utils/logging"
)

// Pixels of known luma.
var (
	black = rgb565.Pack(0, 0, 0)
	white = rgb565.Pack(rgb565.MaxRed, rgb565.MaxGreen, rgb565.MaxBlue)
	grey  = rgb565.Pack(16, 32, 16) // Luma 128.
)

func exposureRegister(f *fixture) uint16 {
	return uint16(f.bus.Register(regExposureM))<<8 | uint16(f.bus.Register(regExposureL))
}

func TestBrightness(t *testing.T) {
	const w, h = 320, 240
	buf := make([]byte, rgb565.FrameSize(w, h))

	if got := brightness(nil, w, h); got != defaultLuma {
		t.Errorf("unexpected luma of missing frame: %d", got)
	}
	if got := brightness(buf, w, h); got != 0 {
		t.Errorf("unexpected luma of black frame: %d", got)
	}
	rgb565.Fill(buf, grey)
	if got := brightness(buf, w, h); got != 128 {
		t.Errorf("unexpected luma of grey frame: %d", got)
	}
	rgb565.Fill(buf, white)
	if got := brightness(buf, w, h); got != 250 {
		t.Errorf("unexpected luma of white frame: %d", got)
	}

	// Samples that fall outside the buffer are skipped.
	start := (h/2)*w*2 + (w/2)*2
	short := make([]byte, start+2)
	rgb565.Fill(short, white)
	if got := brightness(short, w, h); got != 250 {
		t.Errorf("unexpected luma of short frame: %d", got)
	}
	if got := brightness(short[:start], w, h); got != defaultLuma {
		t.Errorf("unexpected luma with no samples: %d", got)
	}
}

func TestAutoExposureConvergence(t *testing.T) {
	cfg := testConfig()
	cfg.AutoExposure = true
	f := newFixture(t, cfg)
	f.start(t)
	f.deliver(t, black)
	f.cam.CaptureFrame()

	now := t0
	tick := func() {
		f.cam.Loop(now)
		now = now.Add(minAEInterval)
	}

	// Exposure is stepped first, one step per tick.
	steps := (maxExposure - defaultExposure) / exposureStep
	for i := 0; i < steps; i++ {
		tick()
		want := uint16(defaultExposure + (i+1)*exposureStep)
		if ae := f.cam.Exposure(); ae.Exposure != want || ae.Gain != defaultGain {
			t.Fatalf("unexpected state after step %d: %+v", i, ae)
		}
	}
	if exposureRegister(f) != maxExposure {
		t.Errorf("unexpected exposure register: %#x", exposureRegister(f))
	}
	if f.bus.Register(regGain) != 0 {
		t.Error("gain should not be written while exposure has headroom")
	}

	// Then gain.
	for i := 0; i < (maxGain-defaultGain)/gainStep; i++ {
		tick()
	}
	ae := f.cam.Exposure()
	if ae.Exposure != maxExposure || ae.Gain != maxGain {
		t.Errorf("unexpected saturated state: %+v", ae)
	}
	if f.bus.Register(regGain) != maxGain {
		t.Errorf("unexpected gain register: %d", f.bus.Register(regGain))
	}

	// Saturated controls produce no writes.
	n := len(f.bus.Writes())
	tick()
	if len(f.bus.Writes()) != n {
		t.Error("did not expect writes with saturated controls")
	}

	// A bright frame walks exposure back down.
	f.deliver(t, white)
	f.cam.CaptureFrame()
	tick()
	if ae := f.cam.Exposure(); ae.Exposure != maxExposure-exposureStep || ae.Gain != maxGain {
		t.Errorf("unexpected state after bright frame: %+v", ae)
	}
}

func TestAutoExposureRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.AutoExposure = true
	f := newFixture(t, cfg)
	f.start(t)
	f.deliver(t, black)
	f.cam.CaptureFrame()

	f.cam.Loop(t0)
	f.cam.Loop(t0.Add(minAEInterval - time.Millisecond))
	if got, want := f.cam.Exposure().Exposure, uint16(defaultExposure+exposureStep); got != want {
		t.Errorf("unexpected exposure: got %#x, want %#x", got, want)
	}
	f.cam.Loop(t0.Add(minAEInterval))
	if got, want := f.cam.Exposure().Exposure, uint16(defaultExposure+2*exposureStep); got != want {
		t.Errorf("unexpected exposure: got %#x, want %#x", got, want)
	}
}

func TestAutoExposureResend(t *testing.T) {
	cfg := testConfig()
	cfg.AutoExposure = true
	f := newFixture(t, cfg)
	f.start(t)
	f.deliver(t, black)
	f.cam.CaptureFrame()

	f.cam.Loop(t0)
	f.bus.SetError(errors.New("bus error"))
	f.cam.Loop(t0.Add(minAEInterval))
	want := uint16(defaultExposure + 2*exposureStep)
	if got := f.cam.Exposure().Exposure; got != want {
		t.Fatalf("unexpected cached exposure: got %#x, want %#x", got, want)
	}
	if got := exposureRegister(f); got == want {
		t.Fatal("did not expect exposure register to be written")
	}

	// The failed value is sent again before any further step.
	f.bus.SetError(nil)
	f.cam.Loop(t0.Add(2 * minAEInterval))
	if got := exposureRegister(f); got != want {
		t.Errorf("unexpected exposure register after resend: got %#x, want %#x", got, want)
	}
	if got := f.cam.Exposure().Exposure; got != want {
		t.Errorf("did not expect a step with the resend: got %#x, want %#x", got, want)
	}

	f.cam.Loop(t0.Add(3 * minAEInterval))
	if got, want := exposureRegister(f), uint16(defaultExposure+3*exposureStep); got != want {
		t.Errorf("unexpected exposure register after step: got %#x, want %#x", got, want)
	}
}

func TestAutoExposureDeadband(t *testing.T) {
	cfg := testConfig()
	cfg.AutoExposure = true
	f := newFixture(t, cfg)
	f.start(t)
	f.deliver(t, grey)
	f.cam.CaptureFrame()

	before := f.cam.Exposure()
	n := len(f.bus.Writes())
	for i := 0; i < 5; i++ {
		f.cam.Loop(t0.Add(time.Duration(i) * time.Second))
	}
	if f.cam.Exposure() != before {
		t.Errorf("state changed inside dead band: %+v", f.cam.Exposure())
	}
	if len(f.bus.Writes()) != n {
		t.Error("did not expect sensor writes inside dead band")
	}
}

func TestAutoExposureDisabled(t *testing.T) {
	f := newFixture(t, testConfig())
	f.start(t)
	f.deliver(t, black)
	f.cam.CaptureFrame()

	f.cam.Loop(t0)
	if f.cam.Exposure().Exposure != defaultExposure {
		t.Error("did not expect adjustment with auto exposure disabled")
	}

	// Stopped cameras are not adjusted.
	f.cam.SetAutoExposure(true)
	f.cam.StopStreaming()
	f.cam.Loop(t0)
	if f.cam.Exposure().Exposure != defaultExposure {
		t.Error("did not expect adjustment while stopped")
	}
}

func TestManualControls(t *testing.T) {
	cfg := testConfig()
	cfg.Exposure = 0x800
	cfg.Gain = 40
	f := newFixture(t, cfg)

	// Values set before setup are sent once a sensor exists.
	if len(f.bus.Writes()) != 0 {
		t.Error("did not expect writes before setup")
	}
	err := f.cam.Setup()
	if err != nil {
		t.Fatalf("did not expect error from Setup: %v", err)
	}
	if exposureRegister(f) != 0x800 || f.bus.Register(regGain) != 40 {
		t.Errorf("pending values not sent: exposure %#x gain %d", exposureRegister(f), f.bus.Register(regGain))
	}

	f.cam.SetManualGain(60)
	if f.bus.Register(regGain) != 60 || f.cam.Exposure().Gain != 60 {
		t.Error("manual gain not applied")
	}

	// Manual setters update the cache even if the sensor rejects the value.
	f.bus.SetError(errors.New("bus error"))
	f.cam.SetManualExposure(0x300)
	if f.cam.Exposure().Exposure != 0x300 {
		t.Error("expected cache update despite bus error")
	}

	// Adjust only updates the cache on success.
	err = f.cam.AdjustGain(80)
	if err == nil {
		t.Error("expected error from AdjustGain")
	}
	if f.cam.Exposure().Gain != 60 {
		t.Errorf("cache changed on failed adjust: %d", f.cam.Exposure().Gain)
	}
	f.bus.SetError(nil)
	err = f.cam.AdjustGain(80)
	if err != nil || f.cam.Exposure().Gain != 80 {
		t.Errorf("unexpected adjust result: %v, gain %d", err, f.cam.Exposure().Gain)
	}
}

func TestBrightnessLevel(t *testing.T) {
	c, err := New((*logging.TestLogger)(t))
	if err != nil {
		t.Fatalf("could not create camera: %v", err)
	}
	if err := c.SetBrightnessLevel(3); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}

	f := newFixture(t, testConfig())
	var slept []time.Duration
	f.cam.sleep = func(d time.Duration) { slept = append(slept, d) }
	err = f.cam.Setup()
	if err != nil {
		t.Fatalf("did not expect error from Setup: %v", err)
	}

	tests := []struct {
		level    uint
		exposure uint16
		gain     uint8
	}{
		{0, 0x400, 0},
		{3, 0x610, 18},
		{10, 0xae0, 60},
		{20, 0xae0, 60},
	}
	for _, test := range tests {
		slept = nil
		err := f.cam.SetBrightnessLevel(test.level)
		if err != nil {
			t.Errorf("did not expect error for level %d: %v", test.level, err)
		}
		ae := f.cam.Exposure()
		if ae.Exposure != test.exposure || ae.Gain != test.gain {
			t.Errorf("unexpected state for level %d: %+v", test.level, ae)
		}
		if exposureRegister(f) != test.exposure || f.bus.Register(regGain) != test.gain {
			t.Errorf("unexpected registers for level %d", test.level)
		}
		if len(slept) != 1 || slept[0] != brightSettle {
			t.Errorf("expected settle between exposure and gain, got %v", slept)
		}
	}
}
