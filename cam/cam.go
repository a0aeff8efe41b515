/*
DESCRIPTION
  cam.go provides Cam, which owns a camera's capture engine, ISP pipeline,
  transform stage and display consumer, and drives them from a single
  polling loop.

AUTHORS
  The AusOcean Team <info@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package cam brings up a MIPI camera and runs its capture loop.
package cam

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ausocean/mipicam/cam/config"
	"github.com/ausocean/mipicam/device/mipicam"
	"github.com/ausocean/mipicam/device/sensor"
	"github.com/ausocean/mipicam/display"
	"github.com/ausocean/mipicam/isp"
	"github.com/ausocean/mipicam/transform"
	"github.com/ausocean/utils/ioext"
)

const pkg = "cam: "

// Errors returned by Cam.
var (
	ErrNoLogger = errors.New("config has no logger")
	ErrSetUp    = errors.New("cam already set up")
)

// Hardware holds the platform resources used by a Cam. Only Bus and
// Controller are required; nil Processor disables the ISP pipeline, nil
// Engine selects the default transform engine and nil Canvas selects a
// display.Latest.
type Hardware struct {
	Bus        sensor.Bus
	ResetPin   mipicam.Pin
	Clock      mipicam.Clock
	Regulator  mipicam.Regulator
	Controller mipicam.ControllerFactory
	Processor  isp.Processor
	Engine     transform.Engine
	Canvas     display.Canvas
}

// FrameProcessor is implemented by ISP processors that compute their
// statistics from presented frames, such as isp.Software.
type FrameProcessor interface {
	Process(frame []byte, w, h int)
}

// Cam provides methods to control a camera and its processing stages.
type Cam struct {
	mu  sync.Mutex
	cfg config.Config
	hw  Hardware

	camera   *mipicam.Camera
	tr       *transform.Stage
	pipeline *isp.Pipeline
	consumer *display.Consumer
	canvas   display.Canvas

	// probe receives every presented raw frame after any recorder, and is
	// provided through SetProbe.
	probe    io.WriteCloser
	recorder *frameSender

	setUp   bool
	running bool
	failed  error
}

// New returns a new Cam with the given configuration. The config is
// validated and bad fields defaulted.
func New(c config.Config, hw Hardware) (*Cam, error) {
	if c.Logger == nil {
		return nil, ErrNoLogger
	}
	cm := &Cam{hw: hw, canvas: hw.Canvas}
	if cm.canvas == nil {
		cm.canvas = &display.Latest{}
	}
	cm.setConfig(c)

	opts := []mipicam.Option{
		mipicam.WithBus(hw.Bus),
		mipicam.WithResetPin(hw.ResetPin),
		mipicam.WithClock(hw.Clock),
		mipicam.WithRegulator(hw.Regulator),
	}
	if hw.Controller != nil {
		opts = append(opts, mipicam.WithController(hw.Controller))
	}
	var err error
	cm.camera, err = mipicam.New(c.Logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not create camera: %w", err)
	}
	err = cm.camera.Set(cm.cfg)
	if err != nil {
		cm.cfg.Logger.Warning(pkg+"errors from configuring camera", "errors", err.Error())
	}
	return cm, nil
}

// setConfig validates c and applies its logging settings.
func (cm *Cam) setConfig(c config.Config) {
	c.Logger.Debug(pkg + "validating config")
	err := c.Validate()
	if err != nil {
		c.Logger.Warning(pkg+"config has errors", "error", err.Error())
	}
	c.Logger.SetLevel(c.LogLevel)
	cm.cfg = c
	c.Logger.Debug(pkg+"config set", "sensor", c.Sensor, "rotation", c.Rotation)
}

// Setup brings up the camera and builds the transform, ISP and display
// stages for its geometry. A camera setup failure is permanent and is
// returned by every later call to Setup, Start and Failed.
func (cm *Cam) Setup() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.setup()
}

func (cm *Cam) setup() error {
	if cm.failed != nil {
		return cm.failed
	}
	if cm.setUp {
		return nil
	}
	log := cm.cfg.Logger

	err := cm.camera.Setup()
	if err != nil {
		cm.failed = err
		return err
	}
	w, h := int(cm.camera.ImageWidth()), int(cm.camera.ImageHeight())

	cm.setupTransform(w, h)

	if cm.hw.Processor != nil {
		p := isp.New(log, cm.hw.Processor, w, h)
		err = p.Apply(cm.cfg)
		if err != nil {
			log.Warning(pkg+"errors applying ISP settings", "error", err.Error())
		}
		err = p.Init()
		if err != nil {
			log.Error(pkg+"could not initialise ISP pipeline, continuing without it", "error", err.Error())
		} else {
			cm.pipeline = p
		}
	}

	cm.consumer = display.New(log, cm.camera, cm.canvas, cm.tr)

	err = cm.setupRecorder()
	if err != nil {
		log.Error(pkg+"could not set up recording, continuing without it", "error", err.Error())
	}

	cm.setUp = true
	log.Info(pkg+"set up", "width", w, "height", h, "isp", cm.pipeline != nil, "transform", cm.tr != nil)
	return nil
}

// setupTransform creates and initialises the transform stage when the
// configuration asks for one. Failure leaves frames untransformed.
func (cm *Cam) setupTransform(w, h int) {
	log := cm.cfg.Logger
	r, err := transform.ParseRotation(cm.cfg.Rotation)
	if err != nil {
		log.Warning(pkg+"bad rotation, not rotating", "error", err.Error())
	}
	tc := transform.Config{Rotation: r, MirrorX: cm.cfg.MirrorX, MirrorY: cm.cfg.MirrorY}
	if !tc.Active() {
		return
	}
	tr, err := transform.New(log, tc, cm.hw.Engine)
	if err != nil {
		log.Error(pkg+"could not create transform, frames will be shown untransformed", "error", err.Error())
		return
	}
	err = tr.Init(w, h)
	if err != nil {
		log.Error(pkg+"could not initialise transform, frames will be shown untransformed", "error", err.Error())
		tr.Close()
		return
	}
	cm.tr = tr
}

// setupRecorder creates the frame sender when recording or a probe is
// configured.
func (cm *Cam) setupRecorder() error {
	var dsts []io.WriteCloser
	if cm.cfg.RecordPath != "" {
		dsts = append(dsts, newFileSender(cm.cfg.Logger, cm.cfg.RecordPath))
	}
	if cm.probe != nil {
		dsts = append(dsts, cm.probe)
	}
	if len(dsts) == 0 {
		return nil
	}
	size := cm.camera.ImageSize()
	if size == 0 {
		return errors.New("camera reports no frame size")
	}
	cm.recorder = newFrameSender(ioext.MultiWriteCloser(dsts...), cm.cfg.Logger, size)
	return nil
}

// Start sets up the camera if required, then starts streaming and the ISP
// pipeline.
func (cm *Cam) Start() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	log := cm.cfg.Logger
	if cm.running {
		log.Warning(pkg + "start called, but cam already running")
		return nil
	}
	err := cm.setup()
	if err != nil {
		return err
	}

	err = cm.camera.StartStreaming()
	if err != nil {
		return fmt.Errorf("could not start streaming: %w", err)
	}
	if cm.pipeline != nil {
		err = cm.pipeline.Start()
		if err != nil {
			log.Error(pkg+"could not start ISP pipeline", "error", err.Error())
		}
	}
	cm.running = true
	log.Info(pkg + "started")
	return nil
}

// Stop stops the ISP pipeline and then streaming.
func (cm *Cam) Stop() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.stop()
}

func (cm *Cam) stop() error {
	log := cm.cfg.Logger
	if !cm.running {
		log.Debug(pkg + "stop called but cam isn't running")
		return nil
	}

	var errs []error
	if cm.pipeline != nil {
		err := cm.pipeline.Stop()
		if err != nil {
			log.Error(pkg+"could not stop ISP pipeline", "error", err.Error())
			errs = append(errs, err)
		}
	}
	err := cm.camera.StopStreaming()
	if err != nil {
		log.Error(pkg+"could not stop streaming", "error", err.Error())
		errs = append(errs, err)
	}
	cm.running = false
	log.Info(pkg + "stopped")
	return errors.Join(errs...)
}

// Close stops the cam and releases every stage. The cam cannot be used
// again.
func (cm *Cam) Close() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	errs := []error{cm.stop()}
	if cm.recorder != nil {
		errs = append(errs, cm.recorder.Close())
		cm.recorder = nil
	}
	if cm.pipeline != nil {
		errs = append(errs, cm.pipeline.Deinit())
	}
	if cm.tr != nil {
		errs = append(errs, cm.tr.Close())
	}
	errs = append(errs, cm.camera.Close())
	return errors.Join(errs...)
}

// Tick runs one iteration of the capture loop, returning true if a new
// frame was presented. It runs the camera's auto-exposure and statistics,
// hands any new frame to the display, recorder and software ISP, and
// applies white balance gains reported by the ISP.
func (cm *Cam) Tick(now time.Time) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if !cm.setUp {
		return false
	}
	cm.camera.Loop(now)
	if !cm.consumer.Update() {
		return false
	}

	raw := cm.camera.ImageData()
	if cm.recorder != nil {
		_, err := cm.recorder.Write(raw)
		if err != nil {
			cm.cfg.Logger.Warning(pkg+"could not record frame", "error", err.Error())
		}
	}

	if cm.pipeline != nil {
		if fp, ok := cm.hw.Processor.(FrameProcessor); ok {
			fp.Process(raw, int(cm.camera.ImageWidth()), int(cm.camera.ImageHeight()))
		}
		if cm.pipeline.StageEnabled(isp.StageAWB) {
			err := cm.pipeline.ApplyWhiteBalance()
			if err != nil {
				cm.cfg.Logger.Warning(pkg+"could not apply white balance", "error", err.Error())
			}
		}
	}
	return true
}

// Run calls Tick every PollInterval until ctx is done. A changed
// PollInterval takes effect from the next tick.
func (cm *Cam) Run(ctx context.Context) error {
	interval := cm.pollInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			cm.Tick(now)
			if iv := cm.pollInterval(); iv != interval {
				interval = iv
				ticker.Reset(interval)
			}
		}
	}
}

func (cm *Cam) pollInterval() time.Duration {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.cfg.PollInterval
}

// SetProbe sets a destination for every presented raw frame. It must be
// called before Setup.
func (cm *Cam) SetProbe(p io.WriteCloser) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.setUp {
		return fmt.Errorf("cannot set probe: %w", ErrSetUp)
	}
	cm.probe = p
	return nil
}

// Config returns a copy of the current config.
func (cm *Cam) Config() config.Config {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.cfg
}

// Camera returns the capture engine.
func (cm *Cam) Camera() *mipicam.Camera { return cm.camera }

// Pipeline returns the ISP pipeline, if there is one.
func (cm *Cam) Pipeline() (*isp.Pipeline, bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.pipeline, cm.pipeline != nil
}

// Transform returns the transform stage, if there is one.
func (cm *Cam) Transform() (*transform.Stage, bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.tr, cm.tr != nil
}

// Canvas returns the canvas frames are presented on.
func (cm *Cam) Canvas() display.Canvas { return cm.canvas }

// DisplaySize returns the dimensions of the last presented frame.
func (cm *Cam) DisplaySize() (int, int) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.consumer == nil {
		return 0, 0
	}
	return cm.consumer.Size()
}

// Recorded returns the number of frames recorded and dropped.
func (cm *Cam) Recorded() (sent, dropped int) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.recorder == nil {
		return 0, 0
	}
	return cm.recorder.counts()
}

// Bitrate returns the camera's frame throughput in bits per second.
func (cm *Cam) Bitrate() int { return cm.camera.Bitrate() }

// Running reports whether the cam is streaming.
func (cm *Cam) Running() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.running
}

// Failed returns the error that permanently failed setup, or nil.
func (cm *Cam) Failed() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.failed
}
