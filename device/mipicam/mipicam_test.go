/*
DESCRIPTION
  mipicam_test.go provides tests for the mipicam package.

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

	"github.com/google/go-cmp/cmp"

	"github.com/ausocean/mipicam/cam/config"
	"github.com/ausocean/mipicam/codec/rgb565"
	"github.com/ausocean/mipicam/device"
	"github.com/ausocean/mipicam/device/sensor"
	"github.com/ausocean/utils/logging"
)

// Register addresses of the simulated sensor.
const (
	regStream    = 0x0100
	regGain      = 0x350b
	regExposureH = 0x3500
	regExposureM = 0x3501
	regExposureL = 0x3502
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	cam  *Camera
	bus  *sensor.MemBus
	ctlr *SimController
}

func testConfig() config.Config {
	return config.Config{
		Sensor:     "sim",
		AETarget:   defaultAETarget,
		AEInterval: minAEInterval,
	}
}

// newFixture returns a camera configured with cfg, using the simulated
// sensor and controller.
func newFixture(t *testing.T, cfg config.Config) *fixture {
	f := &fixture{bus: sensor.NewMemBusFor(sensor.SimInfo)}
	c, err := New(
		(*logging.TestLogger)(t),
		WithBus(f.bus),
		WithController(SimFactory(func(s *SimController) { f.ctlr = s })),
	)
	if err != nil {
		t.Fatalf("could not create camera: %v", err)
	}
	c.sleep = func(time.Duration) {}
	err = c.Set(cfg)
	if err != nil {
		t.Fatalf("did not expect error from Set: %v", err)
	}
	f.cam = c
	return f
}

func (f *fixture) start(t *testing.T) {
	err := f.cam.Setup()
	if err != nil {
		t.Fatalf("did not expect error from Setup: %v", err)
	}
	err = f.cam.StartStreaming()
	if err != nil {
		t.Fatalf("did not expect error from StartStreaming: %v", err)
	}
}

// deliver performs one transfer of frames filled with pixel p.
func (f *fixture) deliver(t *testing.T, p uint16) {
	ok := f.ctlr.Deliver(func(buf []byte) int {
		rgb565.Fill(buf, p)
		return len(buf)
	})
	if !ok {
		t.Fatal("controller not running")
	}
}

func TestSetupGeometry(t *testing.T) {
	cfg := testConfig()
	cfg.Width, cfg.Height = 640, 480
	f := newFixture(t, cfg)
	err := f.cam.Setup()
	if err != nil {
		t.Fatalf("did not expect error from Setup: %v", err)
	}

	if f.cam.ImageWidth() != 640 || f.cam.ImageHeight() != 480 {
		t.Errorf("unexpected geometry: %dx%d", f.cam.ImageWidth(), f.cam.ImageHeight())
	}
	if got, want := f.cam.ImageSize(), 640*480*2; got != want {
		t.Errorf("unexpected image size: got %d, want %d", got, want)
	}
	for i, b := range f.cam.bufs {
		if len(b) != f.cam.ImageSize() {
			t.Errorf("buffer %d has length %d", i, len(b))
		}
	}
	if f.cam.State() != StateInitialized {
		t.Errorf("unexpected state: %v", f.cam.State())
	}

	want := ControllerConfig{
		Width:        640,
		Height:       480,
		Lanes:        sensor.SimInfo.Lanes,
		LaneBitrate:  sensor.SimInfo.LaneBitrate,
		BayerPattern: sensor.SimInfo.BayerPattern,
		InputColor:   ColorRAW8,
		OutputColor:  ColorRGB565,
		QueueItems:   queueItems,
		ISPClock:     ispClock,
	}
	if got := f.ctlr.Config(); !cmp.Equal(got, want) {
		t.Errorf("unexpected controller config\nGot: %+v\nWant: %+v", got, want)
	}

	// Setup is a no-op once initialised.
	err = f.cam.Setup()
	if err != nil {
		t.Errorf("did not expect error from second Setup: %v", err)
	}
}

func TestSetupFailure(t *testing.T) {
	tests := []struct {
		name string
		opts func(bus *sensor.MemBus) []Option
		want error
	}{
		{
			name: "id mismatch",
			opts: func(*sensor.MemBus) []Option {
				return []Option{WithBus(sensor.NewMemBus(nil)), WithController(SimFactory(nil))}
			},
			want: ErrIDMismatch,
		},
		{
			name: "no controller",
			opts: func(bus *sensor.MemBus) []Option { return []Option{WithBus(bus)} },
			want: ErrNoController,
		},
		{
			name: "no bus",
			opts: func(*sensor.MemBus) []Option { return []Option{WithController(SimFactory(nil))} },
			want: ErrNoBus,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c, err := New((*logging.TestLogger)(t), test.opts(sensor.NewMemBusFor(sensor.SimInfo))...)
			if err != nil {
				t.Fatalf("could not create camera: %v", err)
			}
			c.sleep = func(time.Duration) {}
			c.Set(testConfig())

			err = c.Setup()
			if !errors.Is(err, ErrFailed) || !errors.Is(err, test.want) {
				t.Fatalf("unexpected setup error: %v", err)
			}
			if c.Failed() == nil {
				t.Error("expected camera to be marked failed")
			}
			if err2 := c.Setup(); err2 != err {
				t.Errorf("expected setup to keep failing with %v, got %v", err, err2)
			}
			if err := c.StartStreaming(); !errors.Is(err, ErrFailed) {
				t.Errorf("expected ErrFailed from StartStreaming, got %v", err)
			}
			if c.State() != StateUninitialized {
				t.Errorf("unexpected state: %v", c.State())
			}
		})
	}
}

func TestBusFailure(t *testing.T) {
	f := newFixture(t, testConfig())
	busErr := errors.New("bus error")
	f.bus.SetError(busErr)
	err := f.cam.Setup()
	if !errors.Is(err, busErr) || !errors.Is(err, ErrFailed) {
		t.Errorf("unexpected setup error: %v", err)
	}
}

func TestStreamingStates(t *testing.T) {
	f := newFixture(t, testConfig())

	err := f.cam.StartStreaming()
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
	if f.cam.CaptureFrame() {
		t.Error("did not expect frame before streaming")
	}

	f.start(t)
	if !f.cam.IsStreaming() || !f.ctlr.Running() || f.bus.Register(regStream) != 1 {
		t.Error("expected camera, controller and sensor to be streaming")
	}
	err = f.cam.StartStreaming()
	if !errors.Is(err, ErrAlreadyStreaming) {
		t.Errorf("expected ErrAlreadyStreaming, got %v", err)
	}

	for i := 0; i < 2; i++ {
		err = f.cam.StopStreaming()
		if err != nil {
			t.Errorf("did not expect error from StopStreaming call %d: %v", i, err)
		}
	}
	if f.cam.IsStreaming() || f.ctlr.Running() || f.bus.Register(regStream) != 0 {
		t.Error("expected camera, controller and sensor to be stopped")
	}
	if f.cam.State() != StateInitialized {
		t.Errorf("unexpected state: %v", f.cam.State())
	}

	// Restart after stop resets counters.
	f.start(t)
	f.deliver(t, 0)
	f.cam.StopStreaming()
	f.start(t)
	if f.cam.FrameCount() != 0 || f.cam.BufferIndex() != 0 {
		t.Errorf("expected counters reset, got frames %d index %d", f.cam.FrameCount(), f.cam.BufferIndex())
	}

	err = f.cam.Close()
	if err != nil {
		t.Errorf("did not expect error from Close: %v", err)
	}
	if f.cam.State() != StateUninitialized || f.cam.ImageData() != nil {
		t.Error("expected close to release the camera")
	}
}

func TestStopReportsErrors(t *testing.T) {
	f := newFixture(t, testConfig())
	f.start(t)
	stopErr := errors.New("stop failed")
	f.ctlr.StopErr = stopErr

	err := f.cam.StopStreaming()
	if !errors.Is(err, stopErr) {
		t.Errorf("expected stop error, got %v", err)
	}
	if f.cam.IsStreaming() || f.bus.Register(regStream) != 0 {
		t.Error("expected sensor to be stopped despite controller error")
	}
}

func TestStartRollsBack(t *testing.T) {
	f := newFixture(t, testConfig())
	err := f.cam.Setup()
	if err != nil {
		t.Fatalf("did not expect error from Setup: %v", err)
	}
	startErr := errors.New("start failed")
	f.ctlr.StartErr = startErr

	err = f.cam.StartStreaming()
	if !errors.Is(err, startErr) {
		t.Errorf("expected start error, got %v", err)
	}
	if f.cam.IsStreaming() || f.bus.Register(regStream) != 0 {
		t.Error("expected sensor stream to be stopped after failed start")
	}
	if f.cam.State() != StateInitialized {
		t.Errorf("unexpected state: %v", f.cam.State())
	}
}

func TestBufferAlternation(t *testing.T) {
	f := newFixture(t, testConfig())
	f.start(t)

	if f.cam.CaptureFrame() {
		t.Error("did not expect frame before first transfer")
	}
	if f.cam.ImageData() != nil {
		t.Error("expected no image before first frame")
	}

	for i := 0; i < 6; i++ {
		p := uint16(i + 1)
		f.deliver(t, p)

		if f.cam.FrameCount() != uint64(i+1) {
			t.Errorf("unexpected frame count: got %d, want %d", f.cam.FrameCount(), i+1)
		}
		if got, want := f.cam.BufferIndex(), (i+1)%2; got != want {
			t.Errorf("unexpected buffer index after frame %d: got %d, want %d", i, got, want)
		}
		if !f.cam.CaptureFrame() {
			t.Fatalf("expected frame %d", i)
		}
		if f.cam.CaptureFrame() {
			t.Errorf("did not expect second capture of frame %d", i)
		}

		img := f.cam.ImageData()
		if &img[0] != &f.cam.bufs[i%2][0] {
			t.Errorf("frame %d in unexpected buffer", i)
		}
		if &img[0] == &f.cam.bufs[f.cam.BufferIndex()][0] {
			t.Errorf("frame %d handed out while DMA target", i)
		}
		if got := rgb565.Pixel(img, 0); got != p {
			t.Errorf("unexpected pixel in frame %d: got %#x, want %#x", i, got, p)
		}
	}
}

func TestEmptyTransfer(t *testing.T) {
	f := newFixture(t, testConfig())
	f.start(t)

	f.ctlr.Deliver(func([]byte) int { return 0 })
	if f.cam.FrameCount() != 0 || f.cam.BufferIndex() != 0 {
		t.Error("empty transfer should not complete a frame")
	}
	if f.cam.CaptureFrame() {
		t.Error("did not expect frame from empty transfer")
	}
}

func TestRead(t *testing.T) {
	f := newFixture(t, testConfig())
	var d device.AVDevice = f.cam
	if d.Name() != "MIPICam" {
		t.Errorf("unexpected name: %s", d.Name())
	}
	err := d.Start()
	if err != nil {
		t.Fatalf("did not expect error from Start: %v", err)
	}
	if !d.IsRunning() {
		t.Error("expected device to be running")
	}

	p := make([]byte, f.cam.ImageSize())
	n, err := d.Read(p)
	if n != 0 || err != nil {
		t.Errorf("expected empty read, got %d, %v", n, err)
	}

	f.deliver(t, 0xabcd)
	n, err = d.Read(p)
	if err != nil || n != len(p) {
		t.Fatalf("unexpected read result: %d, %v", n, err)
	}
	if rgb565.Pixel(p, len(p)-2) != 0xabcd {
		t.Error("unexpected frame content")
	}

	err = d.Stop()
	if err != nil {
		t.Errorf("did not expect error from Stop: %v", err)
	}
	_, err = d.Read(p)
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized from stopped read, got %v", err)
	}
}

func TestSet(t *testing.T) {
	c, err := New((*logging.TestLogger)(t))
	if err != nil {
		t.Fatalf("could not create camera: %v", err)
	}
	err = c.Set(config.Config{Sensor: "imx219", AETarget: 300, Gain: 256})
	errs, ok := err.(device.MultiError)
	if !ok {
		t.Fatalf("expected MultiError, got %v", err)
	}
	want := device.MultiError{errBadSensor, errBadAETarget, errBadGain, errBadAEInterval}
	if !cmp.Equal([]error(errs), []error(want), cmp.Comparer(func(a, b error) bool { return a == b })) {
		t.Errorf("unexpected errors\nGot: %v\nWant: %v", errs, want)
	}
	if c.cfg.Sensor != defaultSensor || c.Exposure().Target != defaultAETarget {
		t.Error("expected defaults to be applied")
	}
}

func TestDescriptor(t *testing.T) {
	var d descriptor
	if _, ok := d.take(); ok {
		t.Error("did not expect ready descriptor")
	}
	d.complete()
	d.complete()
	if d.target() != 0 || !d.ready() {
		t.Errorf("unexpected descriptor after two frames: target %d ready %v", d.target(), d.ready())
	}
	idx, ok := d.take()
	if !ok || idx != 1 {
		t.Errorf("unexpected take result: %d, %v", idx, ok)
	}
	if d.ready() || d.target() != 0 {
		t.Error("take should only clear the ready flag")
	}
}

func TestAlignedAlloc(t *testing.T) {
	b, err := AlignedAlloc(100, 64)
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	if len(b) != 100 || cap(b) != 100 {
		t.Errorf("unexpected length or capacity: %d, %d", len(b), cap(b))
	}
	if _, err := AlignedAlloc(100, 48); err == nil {
		t.Error("expected error for bad alignment")
	}
	if _, err := AlignedAlloc(0, 64); err == nil {
		t.Error("expected error for zero size")
	}
}
