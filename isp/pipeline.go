/*
DESCRIPTION
  pipeline.go provides the ISP pipeline, which initialises, starts and stops
  the stages of an image signal processor in a fixed order and keeps their
  configuration.

AUTHORS
  The AusOcean Team <info@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package isp provides an orchestrator for the stages of an image signal
// processor: Bayer denoising, demosaicing, colour correction, gamma,
// sharpening, colour adjustment and the AWB, AE and histogram statistics
// engines.
package isp

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/ausocean/utils/logging"
)

// To indicate package when logging.
const pkg = "isp: "

// Parameter limits.
const (
	maxDenoise       = 20
	minGamma         = 0.1
	maxGamma         = 5.0
	minWBGain        = 0.5
	maxWBGain        = 4.0
	maxSharpenCoeff  = 1.0
	maxGradientRatio = 1.0
	minBrightness    = math.MinInt8
	maxBrightness    = math.MaxInt8
	maxUint8         = math.MaxUint8
	maxHue           = 360
)

// Errors returned by Pipeline.
var (
	ErrNotInitialised = errors.New("pipeline not initialised")
	ErrBadStage       = errors.New("bad stage")
)

// DefaultStages are the stages enabled by New.
var DefaultStages = []Stage{StageBF, StageDemosaic, StageCCM, StageGamma, StageSharpen, StageColor}

// Fixed stage parameters.
var (
	bfTemplate      = [3][3]uint8{{1, 1, 1}, {1, 1, 1}, {1, 1, 1}}
	sharpenTemplate = [3][3]int8{{-1, -1, -1}, {-1, 9, -1}, {-1, -1, -1}}
	whitePatch      = WhitePatch{
		LumaMin: 185, LumaMax: 395,
		RGMin: 0.5040, RGMax: 0.8899,
		BGMin: 0.4838, BGMax: 0.7822,
	}
	lumaCoeff = NewFixed(85.0/256, 8)
)

// Settings holds the parameters of the processing stages.
type Settings struct {
	DenoisingLevel uint8
	CCM            [3][3]float64 // Row-major.
	WhiteBalance   [3]float64    // Red, green and blue gains.
	SharpenHThresh uint8
	SharpenLThresh uint8
	SharpenHCoeff  float64
	SharpenMCoeff  float64
	Gamma          float64
	GradientRatio  float64
	Brightness     int8
	Contrast       uint8
	Saturation     uint8
	Hue            uint16
}

// DefaultSettings returns the settings used by New.
func DefaultSettings() Settings {
	return Settings{
		DenoisingLevel: 8,
		CCM:            [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
		WhiteBalance:   [3]float64{1, 1, 1},
		SharpenHThresh: 100,
		SharpenLThresh: 50,
		SharpenHCoeff:  0.8,
		SharpenMCoeff:  0.5,
		Gamma:          2.2,
		GradientRatio:  0.5,
		Contrast:       128,
		Saturation:     128,
	}
}

// Pipeline controls the stages of a Processor. Pipeline is uninitialised
// when created; Init makes it ready to Start, and Deinit returns it to the
// uninitialised state.
type Pipeline struct {
	log    logging.Logger
	proc   Processor
	width  int
	height int

	mu          sync.Mutex
	initialised bool
	running     bool
	enabled     [numStages]bool
	started     []Stage // Stages started, in start order.
	controllers []Stage // Statistics controllers created by Init.
	set         Settings

	// Written by statistics handlers.
	awbRed  atomic.Uint64 // Float64 bits.
	awbBlue atomic.Uint64 // Float64 bits.
	luma    atomic.Uint32
	hist    atomic.Pointer[HistStats]
}

// New returns a Pipeline for frames of w x h pixels processed by p. If p is
// nil a NopProcessor is used.
func New(l logging.Logger, p Processor, w, h int) *Pipeline {
	if p == nil {
		p = NopProcessor{}
	}
	pl := &Pipeline{log: l, proc: p, width: w, height: h, set: DefaultSettings()}
	for _, s := range DefaultStages {
		pl.enabled[s] = true
	}
	pl.awbRed.Store(math.Float64bits(1))
	pl.awbBlue.Store(math.Float64bits(1))
	pl.luma.Store(defaultLuma)
	return pl
}

// Init initialises every stage in pipeline order. If any stage fails, the
// work of the stages before it is undone and the pipeline stays
// uninitialised. Calling Init on an initialised pipeline does nothing.
func (p *Pipeline) Init() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialised {
		p.log.Warning(pkg + "pipeline already initialised")
		return nil
	}

	p.log.Info(pkg + "initialising pipeline")
	for _, s := range Stages() {
		err := p.initStage(s)
		if err != nil {
			p.deleteControllers()
			return fmt.Errorf("could not initialise %v stage: %w", s, err)
		}
	}
	p.initialised = true
	p.log.Info(pkg+"pipeline initialised", "enabled", fmt.Sprint(p.enabledStages()))
	return nil
}

func (p *Pipeline) initStage(s Stage) error {
	p.log.Debug(pkg+"initialising stage", "stage", s.String())
	if !s.statistics() {
		return p.proc.Configure(p.stageConfig(s))
	}
	err := p.proc.NewStatsController(p.stageConfig(s), p.handler(s))
	if err != nil {
		return err
	}
	p.controllers = append(p.controllers, s)
	return nil
}

// deleteControllers deletes statistics controllers in reverse order of
// creation.
func (p *Pipeline) deleteControllers() error {
	var errs []error
	for i := len(p.controllers) - 1; i >= 0; i-- {
		s := p.controllers[i]
		err := p.proc.DeleteStatsController(s)
		if err != nil {
			p.log.Warning(pkg+"could not delete statistics controller", "stage", s.String(), "error", err.Error())
			errs = append(errs, err)
		}
	}
	p.controllers = nil
	return errors.Join(errs...)
}

// Start starts the enabled stages in pipeline order. If a stage fails to
// start, the stages already started are stopped in reverse order.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialised {
		return ErrNotInitialised
	}
	if p.running {
		p.log.Warning(pkg + "pipeline already started")
		return nil
	}

	p.log.Info(pkg + "starting pipeline")
	for _, s := range Stages() {
		if !p.enabled[s] {
			continue
		}
		err := p.startStage(s)
		if err != nil {
			p.stopStarted()
			return fmt.Errorf("could not start %v stage: %w", s, err)
		}
		p.started = append(p.started, s)
	}
	p.running = true
	p.log.Info(pkg+"pipeline started", "stages", fmt.Sprint(p.started))
	return nil
}

// startStage configures and enables a stage. It is also used to apply new
// settings to a running stage.
func (p *Pipeline) startStage(s Stage) error {
	if !s.statistics() {
		err := p.proc.Configure(p.stageConfig(s))
		if err != nil {
			return err
		}
	}
	err := p.proc.Enable(s)
	if err != nil {
		return err
	}
	p.log.Debug(pkg+"stage started", "stage", s.String())
	return nil
}

// stopStarted stops started stages in reverse start order.
func (p *Pipeline) stopStarted() {
	for i := len(p.started) - 1; i >= 0; i-- {
		s := p.started[i]
		err := p.proc.Disable(s)
		if err != nil {
			p.log.Warning(pkg+"could not stop stage", "stage", s.String(), "error", err.Error())
		}
	}
	p.started = nil
}

// Stop stops the running stages in the reverse of the order they were
// started. Calling Stop on a stopped pipeline does nothing.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}
	p.log.Info(pkg + "stopping pipeline")
	p.stopStarted()
	p.running = false
	return nil
}

// Deinit stops the pipeline if running and deletes the statistics
// controllers.
func (p *Pipeline) Deinit() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		p.stopStarted()
		p.running = false
	}
	if !p.initialised {
		return nil
	}
	err := p.deleteControllers()
	p.initialised = false
	p.log.Info(pkg + "pipeline deinitialised")
	return err
}

// EnableStage sets whether stage s runs. If the pipeline is running the stage
// is started or stopped immediately.
func (p *Pipeline) EnableStage(s Stage, on bool) error {
	if !s.valid() {
		return fmt.Errorf("%w: %d", ErrBadStage, int(s))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.enabled[s] = on
	if !p.running {
		return nil
	}

	i, found := slices.BinarySearch(p.started, s)
	switch {
	case on && !found:
		err := p.startStage(s)
		if err != nil {
			p.log.Warning(pkg+"could not start stage", "stage", s.String(), "error", err.Error())
			return fmt.Errorf("could not start %v stage: %w", s, err)
		}
		p.started = slices.Insert(p.started, i, s)
	case !on && found:
		p.started = slices.Delete(p.started, i, i+1)
		err := p.proc.Disable(s)
		if err != nil {
			p.log.Warning(pkg+"could not stop stage", "stage", s.String(), "error", err.Error())
			return fmt.Errorf("could not stop %v stage: %w", s, err)
		}
	}
	return nil
}

// StageEnabled reports whether stage s is enabled.
func (p *Pipeline) StageEnabled(s Stage) bool {
	if !s.valid() {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled[s]
}

// Started returns the stages currently running, in start order.
func (p *Pipeline) Started() []Stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.started)
}

// Initialised reports whether the pipeline has been initialised.
func (p *Pipeline) Initialised() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initialised
}

// Running reports whether the pipeline is running.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Settings returns the current stage settings.
func (p *Pipeline) Settings() Settings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.set
}

func (p *Pipeline) enabledStages() []Stage {
	var st []Stage
	for _, s := range Stages() {
		if p.enabled[s] {
			st = append(st, s)
		}
	}
	return st
}

// stageConfig builds the processor configuration of stage s from the
// current settings.
func (p *Pipeline) stageConfig(s Stage) StageConfig {
	switch s {
	case StageBF:
		return BFConfig{DenoisingLevel: p.set.DenoisingLevel, Template: bfTemplate}
	case StageDemosaic:
		return DemosaicConfig{GradientRatio: NewFixed(p.set.GradientRatio, DemosaicDecBits)}
	case StageCCM:
		return CCMConfig{Matrix: correctionMatrix(p.set.CCM, p.set.WhiteBalance), Saturation: true}
	case StageGamma:
		return GammaConfig{Curve: gammaCurve(p.set.Gamma)}
	case StageSharpen:
		return SharpenConfig{
			HThresh:  p.set.SharpenHThresh,
			LThresh:  p.set.SharpenLThresh,
			HCoeff:   NewFixed(p.set.SharpenHCoeff, SharpenDecBits),
			MCoeff:   NewFixed(p.set.SharpenMCoeff, SharpenDecBits),
			Template: sharpenTemplate,
		}
	case StageColor:
		return ColorConfig{
			Brightness: p.set.Brightness,
			Contrast:   p.set.Contrast,
			Saturation: p.set.Saturation,
			Hue:        p.set.Hue,
		}
	case StageAWB:
		return AWBConfig{Window: centredWindow(p.width, p.height, 0.1, 0.9), WhitePatch: whitePatch}
	case StageAE:
		return AEConfig{Window: centredWindow(p.width, p.height, 0.2, 0.8)}
	case StageHistogram:
		c := HistConfig{
			Window:   centredWindow(p.width, p.height, 0.2, 0.8),
			RGBCoeff: [3]Fixed{lumaCoeff, lumaCoeff, lumaCoeff},
		}
		for i := range c.Thresholds {
			c.Thresholds[i] = uint8((i + 1) * 16)
		}
		return c
	default:
		panic(fmt.Sprintf("no configuration for stage %d", int(s)))
	}
}

// reconfigure applies new settings of stage s if it is running.
func (p *Pipeline) reconfigure(s Stage) error {
	if !p.running || !p.enabled[s] {
		return nil
	}
	err := p.startStage(s)
	if err != nil {
		p.log.Warning(pkg+"could not reconfigure stage", "stage", s.String(), "error", err.Error())
		return fmt.Errorf("could not reconfigure %v stage: %w", s, err)
	}
	return nil
}

// clamp limits v to [lo, hi], logging a warning if v is out of range. NaN
// is taken as lo.
func clamp[T int | uint | float64](l logging.Logger, name string, v, lo, hi T) T {
	switch {
	case v != v:
		l.Warning(pkg+name+" not a number, clamping", "min", lo)
		return lo
	case v < lo:
		l.Warning(pkg+name+" out of range, clamping", "value", v, "min", lo)
		return lo
	case v > hi:
		l.Warning(pkg+name+" out of range, clamping", "value", v, "max", hi)
		return hi
	}
	return v
}

// SetDenoisingLevel sets the Bayer filter denoising level, from 0 to 20.
func (p *Pipeline) SetDenoisingLevel(level uint) error {
	level = clamp(p.log, "denoising level", level, 0, maxDenoise)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.set.DenoisingLevel == uint8(level) {
		return nil
	}
	p.set.DenoisingLevel = uint8(level)
	return p.reconfigure(StageBF)
}

// SetCCMMatrix sets the colour correction matrix. The white balance gains
// are applied to its columns.
func (p *Pipeline) SetCCMMatrix(m [3][3]float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.set.CCM == m {
		return nil
	}
	p.set.CCM = m
	return p.reconfigure(StageCCM)
}

// SetWhiteBalance sets the red, green and blue gains, each from 0.5 to 4.
func (p *Pipeline) SetWhiteBalance(r, g, b float64) error {
	r = clamp(p.log, "red gain", r, minWBGain, maxWBGain)
	g = clamp(p.log, "green gain", g, minWBGain, maxWBGain)
	b = clamp(p.log, "blue gain", b, minWBGain, maxWBGain)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.set.WhiteBalance == [3]float64{r, g, b} {
		return nil
	}
	p.set.WhiteBalance = [3]float64{r, g, b}
	p.log.Info(pkg+"white balance", "red", r, "green", g, "blue", b)
	return p.reconfigure(StageCCM)
}

// SetSharpenParams sets the sharpening thresholds, from 0 to 255, and the
// high and medium frequency coefficients, from 0 to 1.
func (p *Pipeline) SetSharpenParams(hThresh, lThresh uint, hCoeff, mCoeff float64) error {
	hThresh = clamp(p.log, "sharpen high threshold", hThresh, 0, maxUint8)
	lThresh = clamp(p.log, "sharpen low threshold", lThresh, 0, maxUint8)
	hCoeff = clamp(p.log, "sharpen high coefficient", hCoeff, 0, maxSharpenCoeff)
	mCoeff = clamp(p.log, "sharpen medium coefficient", mCoeff, 0, maxSharpenCoeff)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.set.SharpenHThresh == uint8(hThresh) && p.set.SharpenLThresh == uint8(lThresh) &&
		p.set.SharpenHCoeff == hCoeff && p.set.SharpenMCoeff == mCoeff {
		return nil
	}
	p.set.SharpenHThresh, p.set.SharpenLThresh = uint8(hThresh), uint8(lThresh)
	p.set.SharpenHCoeff, p.set.SharpenMCoeff = hCoeff, mCoeff
	return p.reconfigure(StageSharpen)
}

// SetGammaCurve sets the gamma of the correction curve, from 0.1 to 5.
func (p *Pipeline) SetGammaCurve(gamma float64) error {
	if math.IsNaN(gamma) {
		p.log.Warning(pkg + "gamma not a number, ignoring")
		return nil
	}
	gamma = clamp(p.log, "gamma", gamma, minGamma, maxGamma)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.set.Gamma == gamma {
		return nil
	}
	p.set.Gamma = gamma
	return p.reconfigure(StageGamma)
}

// SetDemosaicGradientRatio sets the demosaic gradient ratio, from 0 to 1.
func (p *Pipeline) SetDemosaicGradientRatio(ratio float64) error {
	ratio = clamp(p.log, "gradient ratio", ratio, 0, maxGradientRatio)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.set.GradientRatio == ratio {
		return nil
	}
	p.set.GradientRatio = ratio
	return p.reconfigure(StageDemosaic)
}

// SetBrightness sets the brightness offset, from -128 to 127.
func (p *Pipeline) SetBrightness(b int) error {
	b = clamp(p.log, "brightness", b, minBrightness, maxBrightness)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.set.Brightness == int8(b) {
		return nil
	}
	p.set.Brightness = int8(b)
	return p.reconfigure(StageColor)
}

// SetContrast sets the contrast, from 0 to 255.
func (p *Pipeline) SetContrast(c uint) error {
	c = clamp(p.log, "contrast", c, 0, maxUint8)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.set.Contrast == uint8(c) {
		return nil
	}
	p.set.Contrast = uint8(c)
	return p.reconfigure(StageColor)
}

// SetSaturation sets the saturation, from 0 to 255.
func (p *Pipeline) SetSaturation(s uint) error {
	s = clamp(p.log, "saturation", s, 0, maxUint8)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.set.Saturation == uint8(s) {
		return nil
	}
	p.set.Saturation = uint8(s)
	return p.reconfigure(StageColor)
}

// SetHue sets the hue rotation in degrees, from 0 to 360.
func (p *Pipeline) SetHue(h uint) error {
	h = clamp(p.log, "hue", h, 0, maxHue)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.set.Hue == uint16(h) {
		return nil
	}
	p.set.Hue = uint16(h)
	return p.reconfigure(StageColor)
}
