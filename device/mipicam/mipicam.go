/*
DESCRIPTION
  mipicam.go provides an implementation of the AVDevice interface for a MIPI
  CSI camera: sensor bring-up, double buffered DMA capture and frame handoff
  to a polling consumer.

AUTHORS
  The AusOcean Team <info@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package mipicam provides an implementation of AVDevice for cameras attached
// through a MIPI CSI capture controller. Frames are captured by DMA into two
// RGB565 buffers which alternate between the controller and the consumer.
package mipicam

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ausocean/mipicam/cam/config"
	"github.com/ausocean/mipicam/codec/rgb565"
	"github.com/ausocean/mipicam/device"
	"github.com/ausocean/mipicam/device/sensor"
	"github.com/ausocean/utils/bitrate"
	"github.com/ausocean/utils/logging"
	"github.com/ausocean/utils/sliceutils"
)

// To indicate package when logging.
const pkg = "mipicam: "

// Bring-up timing and hardware parameters.
const (
	resetLowTime  = 10 * time.Millisecond
	resetHighTime = 20 * time.Millisecond
	sensorSettle  = 200 * time.Millisecond
	streamSettle  = 100 * time.Millisecond
	ldoChannel    = 3
	ldoMillivolts = 2500
	bufferAlign   = 64
	queueItems    = 10
	ispClock      = 120000000 // Hz.
	numBuffers    = 2
	statsPeriod   = 3 * time.Second
)

// Camera configuration defaults.
const (
	defaultSensor   = "ov5647"
	defaultAETarget = 128
)

// State is the capture state of a Camera.
type State int32

// Capture states.
const (
	StateUninitialized State = iota
	StateInitialized
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateStreaming:
		return "streaming"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Errors returned by Camera.
var (
	ErrNotInitialized   = errors.New("camera not initialised")
	ErrAlreadyStreaming = errors.New("camera already streaming")
	ErrFailed           = errors.New("camera failed")
	ErrIDMismatch       = errors.New("sensor id mismatch")
	ErrNoBus            = errors.New("no sensor bus")
	ErrNoController     = errors.New("no capture controller")
)

// Configuration errors.
var (
	errBadSensor     = errors.New("sensor bad or unset, defaulting")
	errBadAETarget   = errors.New("AE target bad or unset, defaulting")
	errBadExposure   = errors.New("exposure bad, ignoring")
	errBadGain       = errors.New("gain bad, ignoring")
	errBadAEInterval = errors.New("AE interval bad, defaulting")
)

// Option is a functional option for New.
type Option func(*Camera) error

// WithBus sets the bus used to talk to the sensor.
func WithBus(b sensor.Bus) Option {
	return func(c *Camera) error {
		c.bus = b
		return nil
	}
}

// WithResetPin sets the pin driving the sensor's reset line.
func WithResetPin(p Pin) Option {
	return func(c *Camera) error {
		c.reset = p
		return nil
	}
}

// WithClock sets the external clock generator.
func WithClock(clk Clock) Option {
	return func(c *Camera) error {
		c.clock = clk
		return nil
	}
}

// WithRegulator sets the regulator powering the MIPI PHY.
func WithRegulator(r Regulator) Option {
	return func(c *Camera) error {
		c.regulator = r
		return nil
	}
}

// WithController sets the factory used to create the capture controller.
func WithController(f ControllerFactory) Option {
	return func(c *Camera) error {
		if f == nil {
			return ErrNoController
		}
		c.newController = f
		return nil
	}
}

// WithAllocator sets the frame buffer allocator.
func WithAllocator(a Allocator) Option {
	return func(c *Camera) error {
		c.alloc = a
		return nil
	}
}

// Camera is an implementation of AVDevice for a MIPI CSI camera.
//
// CaptureFrame, ImageData and Loop belong to a single polling goroutine.
// Setup, StartStreaming and StopStreaming may be called from any goroutine.
type Camera struct {
	cfg config.Config
	log logging.Logger

	bus           sensor.Bus
	reset         Pin
	clock         Clock
	regulator     Regulator
	newController ControllerFactory
	alloc         Allocator
	sleep         func(time.Duration)

	mu        sync.Mutex // Guards the fields below, up to streaming.
	state     State
	failed    error
	sensor    sensor.Sensor
	ctlr      Controller
	width     uint16
	height    uint16
	size      int
	bufs      [numBuffers][]byte
	streaming atomic.Bool

	desc     descriptor
	frames   atomic.Uint64 // Completed transfers.
	current  atomic.Int32  // Index of the consumer's buffer, or -1.
	ready    atomic.Uint32
	notReady atomic.Uint32

	ae autoExposure

	bitrate bitrate.Calculator

	statsStart  time.Time
	statsFrames uint64
}

// New returns a new Camera. The camera must be configured with Set and
// brought up with Setup before streaming.
func New(l logging.Logger, opts ...Option) (*Camera, error) {
	c := &Camera{
		log:   l,
		alloc: AlignedAlloc,
		sleep: time.Sleep,
		ae:    newAutoExposure(),
	}
	c.current.Store(-1)
	c.cfg.Sensor = defaultSensor
	for i, opt := range opts {
		err := opt(c)
		if err != nil {
			return nil, fmt.Errorf("option %d failed: %w", i, err)
		}
	}
	return c, nil
}

// Name returns the name of the device.
func (c *Camera) Name() string {
	return "MIPICam"
}

// Set will take a Config struct, check the validity of the relevant fields
// and store the configuration. If fields are not valid, an error is added to
// the MultiError and a default value is used. Sensor and geometry fields take
// effect at Setup; auto-exposure fields take effect immediately.
func (c *Camera) Set(cfg config.Config) error {
	var errs device.MultiError

	if !sliceutils.ContainsString(sensor.Names(), cfg.Sensor) {
		cfg.Sensor = defaultSensor
		errs = append(errs, errBadSensor)
	}

	if cfg.AETarget == 0 || cfg.AETarget > 255 {
		cfg.AETarget = defaultAETarget
		errs = append(errs, errBadAETarget)
	}

	if cfg.Exposure > 0xffff {
		cfg.Exposure = 0
		errs = append(errs, errBadExposure)
	}

	if cfg.Gain > 0xff {
		cfg.Gain = 0
		errs = append(errs, errBadGain)
	}

	if cfg.AEInterval < minAEInterval {
		cfg.AEInterval = minAEInterval
		errs = append(errs, errBadAEInterval)
	}

	c.mu.Lock()
	if c.state != StateUninitialized && cfg.Sensor != c.cfg.Sensor {
		c.log.Warning(pkg+"sensor cannot change after setup", "sensor", c.cfg.Sensor)
		cfg.Sensor = c.cfg.Sensor
	}
	prev := c.cfg
	c.cfg = cfg
	c.mu.Unlock()

	c.ae.setInterval(cfg.AEInterval)
	c.SetAETarget(uint8(cfg.AETarget))
	c.SetAutoExposure(cfg.AutoExposure)

	// Manual values are only pushed when they change.
	if cfg.Exposure != 0 && cfg.Exposure != prev.Exposure {
		c.SetManualExposure(uint16(cfg.Exposure))
	}
	if cfg.Gain != 0 && cfg.Gain != prev.Gain {
		c.SetManualGain(uint8(cfg.Gain))
	}

	if len(errs) != 0 {
		return errs
	}
	return nil
}

// Setup brings up the sensor, clock, power rail, capture controller and frame
// buffers. Any failure is fatal; the camera is marked failed and every
// following call to Setup or StartStreaming returns the failure.
func (c *Camera) Setup() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failed != nil {
		return c.failed
	}
	if c.state != StateUninitialized {
		return nil
	}

	c.log.Info(pkg+"setting up camera", "sensor", c.cfg.Sensor)
	err := c.setup()
	if err != nil {
		c.log.Error(pkg+"setup failed", "error", err.Error())
		c.release()
		c.failed = fmt.Errorf("%w: %w", ErrFailed, err)
		return c.failed
	}
	c.state = StateInitialized
	c.log.Info(pkg+"camera ready", "width", c.width, "height", c.height, "autoExposure", c.ae.snapshot().Enabled)

	c.ae.pushPending(c.sensor, c.log)
	return nil
}

func (c *Camera) setup() error {
	if c.reset != nil {
		c.log.Debug(pkg + "pulsing sensor reset")
		err := c.reset.Write(0)
		if err != nil {
			return fmt.Errorf("could not assert reset: %w", err)
		}
		c.sleep(resetLowTime)
		err = c.reset.Write(1)
		if err != nil {
			return fmt.Errorf("could not release reset: %w", err)
		}
		c.sleep(resetHighTime)
	}

	if c.bus == nil {
		return ErrNoBus
	}
	s, err := sensor.New(c.cfg.Sensor, c.bus, c.cfg.SensorAddress, c.log)
	if err != nil {
		return fmt.Errorf("could not create sensor driver: %w", err)
	}

	err = c.applyResolution(s)
	if err != nil {
		return err
	}
	info := s.Info()
	c.checkLink(info)
	c.width, c.height = info.Width, info.Height

	pid, err := s.ReadID()
	if err != nil {
		return fmt.Errorf("could not read sensor id: %w", err)
	}
	if pid != info.PID {
		return fmt.Errorf("%w: got %#04x, want %#04x", ErrIDMismatch, pid, info.PID)
	}

	err = s.Init()
	if err != nil {
		return fmt.Errorf("could not initialise sensor: %w", err)
	}
	c.sleep(sensorSettle)
	c.sensor = s

	if c.cfg.XClkPin != 0 {
		if c.clock == nil {
			return errors.New("external clock configured but no clock generator")
		}
		err = c.clock.Start(c.cfg.XClkPin, c.cfg.XClkFrequency)
		if err != nil {
			return fmt.Errorf("could not start external clock: %w", err)
		}
		c.log.Info(pkg+"external clock started", "pin", c.cfg.XClkPin, "hz", c.cfg.XClkFrequency)
	} else {
		c.log.Info(pkg + "no external clock configured, sensor must use internal clock")
	}

	if c.regulator != nil {
		err = c.regulator.Acquire(ldoChannel, ldoMillivolts)
		if err != nil {
			return fmt.Errorf("could not acquire MIPI power rail: %w", err)
		}
	}

	if c.newController == nil {
		return ErrNoController
	}
	ctlr, err := c.newController(ControllerConfig{
		Width:        info.Width,
		Height:       info.Height,
		Lanes:        info.Lanes,
		LaneBitrate:  info.LaneBitrate,
		BayerPattern: info.BayerPattern,
		InputColor:   ColorRAW8,
		OutputColor:  ColorRGB565,
		QueueItems:   queueItems,
		ISPClock:     ispClock,
	})
	if err != nil {
		return fmt.Errorf("could not create capture controller: %w", err)
	}
	err = ctlr.RegisterCallbacks(Callbacks{
		NewTransaction:  c.onNewTransaction,
		TransactionDone: c.onTransactionDone,
	})
	if err != nil {
		return fmt.Errorf("could not register controller callbacks: %w", err)
	}
	err = ctlr.Enable()
	if err != nil {
		return fmt.Errorf("could not enable capture controller: %w", err)
	}
	c.ctlr = ctlr

	c.size = rgb565.FrameSize(int(info.Width), int(info.Height))
	for i := range c.bufs {
		c.bufs[i], err = c.alloc(c.size, bufferAlign)
		if err != nil {
			return fmt.Errorf("could not allocate frame buffer %d: %w", i, err)
		}
	}
	c.log.Info(pkg+"frame buffers allocated", "count", numBuffers, "bytes", c.size)
	return nil
}

// applyResolution selects the configured resolution on sensors that support
// it. Fixed mode sensors keep their own geometry.
func (c *Camera) applyResolution(s sensor.Sensor) error {
	w, h := c.cfg.Width, c.cfg.Height
	if w == 0 || h == 0 {
		return nil
	}
	info := s.Info()
	if uint(info.Width) == w && uint(info.Height) == h {
		return nil
	}
	r, ok := s.(sensor.Resizer)
	if !ok || w > 0xffff || h > 0xffff {
		c.log.Warning(pkg+"sensor has a fixed resolution, ignoring configured resolution", "width", info.Width, "height", info.Height)
		return nil
	}
	err := r.SetResolution(uint16(w), uint16(h))
	if err != nil {
		return fmt.Errorf("could not set resolution: %w", err)
	}
	return nil
}

// checkLink reports configured link parameters that disagree with the
// sensor driver. The driver's values are used.
func (c *Camera) checkLink(info sensor.Info) {
	if c.cfg.Lanes != 0 && c.cfg.Lanes != uint(info.Lanes) {
		c.log.Warning(pkg+"lane count fixed by sensor", "configured", c.cfg.Lanes, "using", info.Lanes)
	}
	if c.cfg.BayerPattern != 0 && c.cfg.BayerPattern != uint(info.BayerPattern) {
		c.log.Warning(pkg+"bayer pattern fixed by sensor", "configured", c.cfg.BayerPattern, "using", info.BayerPattern)
	}
	if c.cfg.LaneBitrate != 0 && c.cfg.LaneBitrate != uint(info.LaneBitrate) {
		c.log.Warning(pkg+"lane bitrate fixed by sensor", "configured", c.cfg.LaneBitrate, "using", info.LaneBitrate)
	}
	c.log.Info(pkg+"sensor link", "sensor", info.String(), "bayer", info.BayerPattern)
}

// release undoes a partial setup.
func (c *Camera) release() {
	if c.ctlr != nil {
		err := c.ctlr.Disable()
		if err != nil {
			c.log.Warning(pkg+"could not disable capture controller", "error", err.Error())
		}
		c.ctlr = nil
	}
	for i := range c.bufs {
		c.bufs[i] = nil
	}
	c.current.Store(-1)
}

// StartStreaming starts the sensor and then the capture controller.
func (c *Camera) StartStreaming() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.failed != nil:
		return c.failed
	case c.state == StateUninitialized:
		return ErrNotInitialized
	case c.state == StateStreaming:
		return ErrAlreadyStreaming
	}

	c.log.Info(pkg + "starting streaming")
	c.desc.reset()
	c.frames.Store(0)
	c.current.Store(-1)
	c.ready.Store(0)
	c.notReady.Store(0)
	c.statsStart = time.Time{}

	err := c.sensor.StartStream()
	if err != nil {
		return fmt.Errorf("could not start sensor stream: %w", err)
	}
	c.sleep(streamSettle)

	err = c.ctlr.Start()
	if err != nil {
		stopErr := c.sensor.StopStream()
		if stopErr != nil {
			c.log.Warning(pkg+"could not stop sensor stream", "error", stopErr.Error())
		}
		return fmt.Errorf("could not start capture controller: %w", err)
	}

	c.state = StateStreaming
	c.streaming.Store(true)
	c.log.Info(pkg+"streaming", "autoExposure", c.ae.snapshot().Enabled)
	return nil
}

// StopStreaming stops the sensor and then the capture controller. Calling
// StopStreaming when not streaming does nothing.
func (c *Camera) StopStreaming() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateStreaming {
		return nil
	}
	c.streaming.Store(false)

	var errs []error
	err := c.sensor.StopStream()
	if err != nil {
		c.log.Warning(pkg+"could not stop sensor stream", "error", err.Error())
		errs = append(errs, err)
	}
	err = c.ctlr.Stop()
	if err != nil {
		c.log.Warning(pkg+"could not stop capture controller", "error", err.Error())
		errs = append(errs, err)
	}
	c.desc.reset()
	c.state = StateInitialized
	c.log.Info(pkg + "streaming stopped")
	return errors.Join(errs...)
}

// Close stops streaming, disables the capture controller and frees the
// frame buffers. The camera may be set up again afterwards.
func (c *Camera) Close() error {
	err := c.StopStreaming()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateUninitialized {
		return err
	}
	c.release()
	c.sensor = nil
	c.state = StateUninitialized
	return err
}

// onNewTransaction supplies the DMA target buffer.
func (c *Camera) onNewTransaction(t *Transaction) bool {
	t.Buffer = c.bufs[c.desc.target()]
	return false
}

// onTransactionDone publishes a completed frame. Empty transfers are dropped
// and the same buffer is used for the next transfer.
func (c *Camera) onTransactionDone(t *Transaction) bool {
	if t.Received > 0 {
		c.desc.complete()
		c.frames.Add(1)
	}
	return false
}

// CaptureFrame hands the most recently completed buffer to the consumer. It
// returns true once per completed transfer and false if no new frame has
// arrived since the last call. It never blocks.
func (c *Camera) CaptureFrame() bool {
	if !c.streaming.Load() {
		return false
	}
	idx, ok := c.desc.take()
	if !ok {
		return false
	}
	c.current.Store(int32(idx))
	c.bitrate.Report(c.size)
	return true
}

// ImageData returns the consumer's current frame, or nil before the first
// frame. The buffer is valid until the next successful CaptureFrame.
func (c *Camera) ImageData() []byte {
	idx := c.current.Load()
	if idx < 0 {
		return nil
	}
	return c.bufs[idx]
}

// ImageSize returns the size of a frame in bytes.
func (c *Camera) ImageSize() int { return c.size }

// ImageWidth returns the frame width in pixels.
func (c *Camera) ImageWidth() uint16 { return c.width }

// ImageHeight returns the frame height in pixels.
func (c *Camera) ImageHeight() uint16 { return c.height }

// IsStreaming reports whether the camera is streaming.
func (c *Camera) IsStreaming() bool { return c.streaming.Load() }

// BufferIndex returns the index of the buffer targeted by the next DMA write.
func (c *Camera) BufferIndex() int { return c.desc.target() }

// FrameCount returns the number of frames completed since streaming started.
func (c *Camera) FrameCount() uint64 { return c.frames.Load() }

// Bitrate returns the rate, in bits per second, of frame data handed to the
// consumer.
func (c *Camera) Bitrate() int { return c.bitrate.Bitrate() }

// State returns the capture state.
func (c *Camera) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Failed returns the fatal setup error, or nil.
func (c *Camera) Failed() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failed
}

// Sensor returns the sensor driver, or nil before setup.
func (c *Camera) Sensor() sensor.Sensor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sensor
}

// Loop performs the periodic work of the polling loop at time now:
// auto-exposure and capture statistics. It does nothing unless streaming.
func (c *Camera) Loop(now time.Time) {
	if !c.streaming.Load() {
		return
	}

	c.mu.Lock()
	s := c.sensor
	c.mu.Unlock()
	c.autoExpose(now, s)

	if c.desc.ready() {
		c.ready.Add(1)
	} else {
		c.notReady.Add(1)
	}
	c.logStats(now)
}

func (c *Camera) logStats(now time.Time) {
	if c.statsStart.IsZero() {
		c.statsStart = now
		c.statsFrames = c.frames.Load()
		return
	}
	elapsed := now.Sub(c.statsStart)
	if elapsed < statsPeriod {
		return
	}
	frames := c.frames.Load()
	ready, notReady := c.ready.Swap(0), c.notReady.Swap(0)
	var rate float64
	if ready+notReady != 0 {
		rate = float64(ready) / float64(ready+notReady) * 100
	}
	ae := c.ae.snapshot()
	c.log.Info(pkg+"capture stats",
		"fps", float64(frames-c.statsFrames)/elapsed.Seconds(),
		"readyRate", rate,
		"exposure", fmt.Sprintf("%#04x", ae.Exposure),
		"gain", ae.Gain,
	)
	c.statsStart = now
	c.statsFrames = frames
}

// Start sets the camera up if needed and starts streaming. Start implements
// AVDevice.
func (c *Camera) Start() error {
	err := c.Setup()
	if err != nil {
		return err
	}
	return c.StartStreaming()
}

// Stop stops streaming. Stop implements AVDevice.
func (c *Camera) Stop() error { return c.StopStreaming() }

// IsRunning implements AVDevice.
func (c *Camera) IsRunning() bool { return c.IsStreaming() }

// Read copies a newly captured frame into p, returning zero bytes if no new
// frame is ready. Read takes frames in the same way as CaptureFrame, so only
// one of the two should be used.
func (c *Camera) Read(p []byte) (int, error) {
	if !c.IsStreaming() {
		return 0, ErrNotInitialized
	}
	if !c.CaptureFrame() {
		return 0, nil
	}
	return copy(p, c.ImageData()), nil
}
