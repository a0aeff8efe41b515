/*
DESCRIPTION
  software.go provides a Processor which computes AWB, AE and histogram
  statistics from RGB565 frames in software.

AUTHORS
  The AusOcean Team <info@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package isp

import (
	"errors"
	"sync"

	"github.com/ausocean/mipicam/codec/rgb565"
)

// AE block grid of the software statistics engine.
const aeBlocks = 5

// Software processor errors.
var (
	ErrNoController = errors.New("no statistics controller")
	ErrController   = errors.New("statistics controller already exists")
)

type softStats struct {
	cfg     StageConfig
	handler StatsHandler
}

// Software is a Processor without hardware. Processing stage
// configuration is recorded, and the statistics engines are run on frames
// passed to Process.
type Software struct {
	mu      sync.Mutex
	configs [numStages]StageConfig
	enabled [numStages]bool
	stats   [numStages]*softStats
}

// NewSoftware returns a new Software processor.
func NewSoftware() *Software { return &Software{} }

func (s *Software) Configure(cfg StageConfig) error {
	st := cfg.Stage()
	if !st.valid() {
		return ErrBadStage
	}
	s.mu.Lock()
	s.configs[st] = cfg
	s.mu.Unlock()
	return nil
}

func (s *Software) Enable(st Stage) error {
	if !st.valid() {
		return ErrBadStage
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.statistics() && s.stats[st] == nil {
		return ErrNoController
	}
	s.enabled[st] = true
	return nil
}

func (s *Software) Disable(st Stage) error {
	if !st.valid() {
		return ErrBadStage
	}
	s.mu.Lock()
	s.enabled[st] = false
	s.mu.Unlock()
	return nil
}

func (s *Software) NewStatsController(cfg StageConfig, h StatsHandler) error {
	st := cfg.Stage()
	if !st.valid() || !st.statistics() {
		return ErrBadStage
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stats[st] != nil {
		return ErrController
	}
	s.stats[st] = &softStats{cfg: cfg, handler: h}
	return nil
}

func (s *Software) DeleteStatsController(st Stage) error {
	if !st.valid() {
		return ErrBadStage
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stats[st] == nil {
		return ErrNoController
	}
	s.stats[st] = nil
	s.enabled[st] = false
	return nil
}

// Config returns the last configuration written to stage st.
func (s *Software) Config(st Stage) (StageConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.configs[st]
	return c, c != nil
}

// Enabled reports whether stage st is enabled.
func (s *Software) Enabled(st Stage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled[st]
}

// Process runs the enabled statistics engines on a w x h RGB565 frame and
// delivers their results.
func (s *Software) Process(frame []byte, w, h int) {
	if len(frame) < rgb565.FrameSize(w, h) {
		return
	}

	s.mu.Lock()
	var run []*softStats
	for _, st := range []Stage{StageAWB, StageAE, StageHistogram} {
		if s.enabled[st] && s.stats[st] != nil {
			run = append(run, s.stats[st])
		}
	}
	s.mu.Unlock()

	for _, e := range run {
		var res Stats
		switch c := e.cfg.(type) {
		case AWBConfig:
			res = awbStats(frame, w, h, c)
		case AEConfig:
			res = aeStats(frame, w, h, c)
		case HistConfig:
			res = histStats(frame, w, h, c)
		default:
			continue
		}
		e.handler(res)
	}
}

// clip limits a window to a w x h frame.
func (win Window) clip(w, h int) Window {
	win.Left, win.Top = max(win.Left, 0), max(win.Top, 0)
	win.Right, win.Bottom = min(win.Right, w), min(win.Bottom, h)
	return win
}

// rgb8 returns the 8-bit components of the pixel at x, y.
func rgb8(frame []byte, w, x, y int) (r, g, b uint32) {
	r5, g6, b5 := rgb565.Unpack(rgb565.Pixel(frame, (y*w+x)*rgb565.BytesPerPixel))
	return uint32(r5) << 3, uint32(g6) << 2, uint32(b5) << 3
}

func awbStats(frame []byte, w, h int, c AWBConfig) AWBStats {
	var s AWBStats
	win := c.Window.clip(w, h)
	wp := c.WhitePatch
	for y := win.Top; y < win.Bottom; y++ {
		for x := win.Left; x < win.Right; x++ {
			r, g, b := rgb8(frame, w, x, y)
			l := r + g + b
			if l < uint32(wp.LumaMin) || l > uint32(wp.LumaMax) || g == 0 {
				continue
			}
			rg, bg := float64(r)/float64(g), float64(b)/float64(g)
			if rg < wp.RGMin || rg > wp.RGMax || bg < wp.BGMin || bg > wp.BGMax {
				continue
			}
			s.WhitePatches++
			s.Sum[0] += r
			s.Sum[1] += g
			s.Sum[2] += b
		}
	}
	return s
}

func aeStats(frame []byte, w, h int, c AEConfig) AEStats {
	win := c.Window.clip(w, h)
	bw, bh := (win.Right-win.Left)/aeBlocks, (win.Bottom-win.Top)/aeBlocks
	if bw == 0 || bh == 0 {
		return AEStats{}
	}
	s := AEStats{Luminance: make([]uint32, 0, aeBlocks*aeBlocks)}
	for by := 0; by < aeBlocks; by++ {
		for bx := 0; bx < aeBlocks; bx++ {
			var sum uint32
			for y := win.Top + by*bh; y < win.Top+(by+1)*bh; y++ {
				for x := win.Left + bx*bw; x < win.Left+(bx+1)*bw; x++ {
					sum += uint32(rgb565.Luma(rgb565.Pixel(frame, (y*w+x)*rgb565.BytesPerPixel)))
				}
			}
			s.Luminance = append(s.Luminance, sum/uint32(bw*bh))
		}
	}
	return s
}

func histStats(frame []byte, w, h int, c HistConfig) HistStats {
	var s HistStats
	win := c.Window.clip(w, h)
	cr := uint32(c.RGBCoeff[0].Integer)<<8 | uint32(c.RGBCoeff[0].Decimal)
	cg := uint32(c.RGBCoeff[1].Integer)<<8 | uint32(c.RGBCoeff[1].Decimal)
	cb := uint32(c.RGBCoeff[2].Integer)<<8 | uint32(c.RGBCoeff[2].Decimal)
	for y := win.Top; y < win.Bottom; y++ {
		for x := win.Left; x < win.Right; x++ {
			r, g, b := rgb8(frame, w, x, y)
			l := (r*cr + g*cg + b*cb) >> 8
			i := 0
			for i < len(c.Thresholds) && l >= uint32(c.Thresholds[i]) {
				i++
			}
			s.Bins[i]++
		}
	}
	return s
}
