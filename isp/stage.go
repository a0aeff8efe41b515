/*
DESCRIPTION
  stage.go defines the ISP stages and the configuration and statistics types
  passed to the image signal processor.

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
	"fmt"
	"math"

	"github.com/ausocean/mipicam/cam/config"
)

// Stage identifies an ISP stage. Stages are ordered as they appear in the
// pipeline.
type Stage int

// ISP stages, in pipeline order.
const (
	StageBF        Stage = config.StageBF
	StageDemosaic  Stage = config.StageDemosaic
	StageCCM       Stage = config.StageCCM
	StageGamma     Stage = config.StageGamma
	StageSharpen   Stage = config.StageSharpen
	StageColor     Stage = config.StageColor
	StageAWB       Stage = config.StageAWB
	StageAE        Stage = config.StageAE
	StageHistogram Stage = config.StageHistogram
	numStages            = int(StageHistogram) + 1
)

var stageNames = [numStages]string{"BF", "Demosaic", "CCM", "Gamma", "Sharpen", "Color", "AWB", "AE", "Histogram"}

func (s Stage) String() string {
	if !s.valid() {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

func (s Stage) valid() bool { return s >= 0 && int(s) < numStages }

// statistics reports whether the stage is a statistics engine rather than a
// processing stage.
func (s Stage) statistics() bool { return s >= StageAWB }

// Stages returns all stages in pipeline order.
func Stages() []Stage {
	s := make([]Stage, numStages)
	for i := range s {
		s[i] = Stage(i)
	}
	return s
}

// Fixed is an unsigned fixed point number as used by the processor's
// coefficient registers.
type Fixed struct {
	Integer uint8
	Decimal uint8
}

// NewFixed quantizes v to a fixed point number with decBits fractional bits.
// Negative values quantize to zero.
func NewFixed(v float64, decBits uint) Fixed {
	if v < 0 {
		v = 0
	}
	n := uint(v * float64(uint(1)<<decBits))
	return Fixed{Integer: uint8(n >> decBits), Decimal: uint8(n & (1<<decBits - 1))}
}

// Float returns the value of f given decBits fractional bits.
func (f Fixed) Float(decBits uint) float64 {
	return float64(f.Integer) + float64(f.Decimal)/float64(uint(1)<<decBits)
}

// Fractional bits of processor coefficients.
const (
	SharpenDecBits  = 5
	DemosaicDecBits = 4
)

// Window is a rectangular region of the frame, in pixels.
type Window struct {
	Left, Top, Right, Bottom int
}

// centredWindow returns the window spanning the fractions lo to hi of a w x h
// frame in each axis.
func centredWindow(w, h int, lo, hi float64) Window {
	return Window{
		Left:   int(float64(w) * lo),
		Top:    int(float64(h) * lo),
		Right:  int(float64(w) * hi),
		Bottom: int(float64(h) * hi),
	}
}

// StageConfig is the configuration of a single stage.
type StageConfig interface {
	Stage() Stage
}

// BFConfig configures the Bayer denoising filter.
type BFConfig struct {
	DenoisingLevel uint8
	Template       [3][3]uint8
}

// DemosaicConfig configures demosaicing.
type DemosaicConfig struct {
	GradientRatio Fixed // 4-bit fraction.
}

// CCMConfig configures colour correction. Matrix already includes the white
// balance gains.
type CCMConfig struct {
	Matrix     [3][3]float64
	Saturation bool
}

// GammaPoints is the number of points in a gamma curve.
const GammaPoints = 16

// GammaPoint is one point of a gamma lookup curve.
type GammaPoint struct {
	X, Y uint8
}

// GammaConfig configures gamma correction. The same curve is used for the
// red, green and blue components.
type GammaConfig struct {
	Curve [GammaPoints]GammaPoint
}

// SharpenConfig configures sharpening.
type SharpenConfig struct {
	HThresh  uint8
	LThresh  uint8
	HCoeff   Fixed // 5-bit fraction.
	MCoeff   Fixed // 5-bit fraction.
	Template [3][3]int8
}

// ColorConfig configures brightness, contrast, saturation and hue.
type ColorConfig struct {
	Brightness int8
	Contrast   uint8
	Saturation uint8
	Hue        uint16
}

// WhitePatch bounds the pixels counted as white by the AWB engine.
type WhitePatch struct {
	LumaMin, LumaMax uint16
	RGMin, RGMax     float64
	BGMin, BGMax     float64
}

// AWBConfig configures the auto white balance statistics engine.
type AWBConfig struct {
	Window     Window
	WhitePatch WhitePatch
}

// AEConfig configures the auto exposure statistics engine.
type AEConfig struct {
	Window Window
}

// HistSegments is the number of histogram bins.
const HistSegments = 16

// HistConfig configures the luma histogram engine.
type HistConfig struct {
	Window     Window
	Thresholds [HistSegments - 1]uint8
	RGBCoeff   [3]Fixed // 8-bit fraction.
}

func (BFConfig) Stage() Stage       { return StageBF }
func (DemosaicConfig) Stage() Stage { return StageDemosaic }
func (CCMConfig) Stage() Stage      { return StageCCM }
func (GammaConfig) Stage() Stage    { return StageGamma }
func (SharpenConfig) Stage() Stage  { return StageSharpen }
func (ColorConfig) Stage() Stage    { return StageColor }
func (AWBConfig) Stage() Stage      { return StageAWB }
func (AEConfig) Stage() Stage       { return StageAE }
func (HistConfig) Stage() Stage     { return StageHistogram }

// Stats is a statistics result delivered by a statistics engine.
type Stats interface {
	Stage() Stage
}

// AWBStats holds the sums of the red, green and blue components of the white
// patches found in the AWB window.
type AWBStats struct {
	WhitePatches uint32
	Sum          [3]uint32
}

// AEStats holds the mean luminance of each block of the AE window.
type AEStats struct {
	Luminance []uint32
}

// HistStats holds the pixel count of each histogram bin.
type HistStats struct {
	Bins [HistSegments]uint32
}

func (AWBStats) Stage() Stage  { return StageAWB }
func (AEStats) Stage() Stage   { return StageAE }
func (HistStats) Stage() Stage { return StageHistogram }

// gammaCurve samples y = x^(1/gamma) at GammaPoints equally spaced points in
// [0, 1], quantized to 8 bits.
func gammaCurve(gamma float64) [GammaPoints]GammaPoint {
	var c [GammaPoints]GammaPoint
	for i := range c {
		x := float64(i) / (GammaPoints - 1)
		y := math.Pow(x, 1/gamma)
		c[i] = GammaPoint{X: uint8(x * 255), Y: uint8(y * 255)}
	}
	return c
}
