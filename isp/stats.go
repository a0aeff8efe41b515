/*
DESCRIPTION
  stats.go provides the handlers for results of the statistics engines and
  access to the latest white balance, luma and histogram results.

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
	"math"

	"gonum.org/v1/gonum/stat"
)

// Statistics parameters.
const (
	defaultLuma  = 128
	awbSmoothing = 0.9  // Weight of the previous gain.
	awbTolerance = 0.01 // Gain change needed to reconfigure CCM.
	binWidth     = 256 / HistSegments
)

func (p *Pipeline) handler(s Stage) StatsHandler {
	switch s {
	case StageAWB:
		return p.onAWB
	case StageAE:
		return p.onAE
	case StageHistogram:
		return p.onHistogram
	default:
		return nil
	}
}

// onAWB derives red and blue gains that would make the white patches grey,
// and smooths them into the stored gains.
func (p *Pipeline) onAWB(st Stats) {
	s, ok := st.(AWBStats)
	if !ok {
		return
	}
	r, b := 1.0, 1.0
	if s.WhitePatches > 0 {
		if s.Sum[0] != 0 {
			r = float64(s.Sum[1]) / float64(s.Sum[0])
		}
		if s.Sum[2] != 0 {
			b = float64(s.Sum[1]) / float64(s.Sum[2])
		}
	}
	r = math.Min(math.Max(r, minWBGain), maxWBGain)
	b = math.Min(math.Max(b, minWBGain), maxWBGain)
	smooth(&p.awbRed, r)
	smooth(&p.awbBlue, b)
}

func smooth(v interface {
	Load() uint64
	Store(uint64)
}, x float64) {
	old := math.Float64frombits(v.Load())
	v.Store(math.Float64bits(old*awbSmoothing + x*(1-awbSmoothing)))
}

// onAE stores the mean luminance of the AE blocks.
func (p *Pipeline) onAE(st Stats) {
	s, ok := st.(AEStats)
	if !ok {
		return
	}
	if len(s.Luminance) == 0 {
		p.luma.Store(defaultLuma)
		return
	}
	var sum uint64
	for _, l := range s.Luminance {
		sum += uint64(l)
	}
	p.luma.Store(uint32(sum / uint64(len(s.Luminance))))
}

func (p *Pipeline) onHistogram(st Stats) {
	s, ok := st.(HistStats)
	if !ok {
		return
	}
	p.hist.Store(&s)
}

// WhiteBalance returns the smoothed gains from the AWB engine. Green is
// the reference and is always 1.
func (p *Pipeline) WhiteBalance() (r, g, b float64) {
	return math.Float64frombits(p.awbRed.Load()), 1, math.Float64frombits(p.awbBlue.Load())
}

// ApplyWhiteBalance copies the AWB gains into the white balance settings
// if they have moved. It must not be called from a statistics handler.
func (p *Pipeline) ApplyWhiteBalance() error {
	r, _, b := p.WhiteBalance()
	p.mu.Lock()
	wb := p.set.WhiteBalance
	p.mu.Unlock()
	if math.Abs(r-wb[0]) < awbTolerance && math.Abs(b-wb[2]) < awbTolerance {
		return nil
	}
	return p.SetWhiteBalance(r, wb[1], b)
}

// Luma returns the mean luminance reported by the AE engine, or 128 if no
// result has been received.
func (p *Pipeline) Luma() uint32 { return p.luma.Load() }

// Histogram returns the latest histogram and whether one has been received.
func (p *Pipeline) Histogram() (HistStats, bool) {
	h := p.hist.Load()
	if h == nil {
		return HistStats{}, false
	}
	return *h, true
}

// HistSummary summarises a luma histogram.
type HistSummary struct {
	Pixels uint64
	Mean   float64
	StdDev float64
	Median float64
}

// Summarise returns the summary of h, using the centre of each bin as its
// luma. ok is false if the histogram is empty.
func (h HistStats) Summarise() (s HistSummary, ok bool) {
	x := make([]float64, HistSegments)
	w := make([]float64, HistSegments)
	for i, n := range h.Bins {
		x[i] = float64(i*binWidth + binWidth/2)
		w[i] = float64(n)
		s.Pixels += uint64(n)
	}
	if s.Pixels == 0 {
		return s, false
	}
	s.Mean, s.StdDev = stat.MeanStdDev(x, w)
	s.Median = stat.Quantile(0.5, stat.Empirical, x, w)
	return s, true
}

// HistogramStats returns the summary of the latest histogram.
func (p *Pipeline) HistogramStats() (HistSummary, bool) {
	h, ok := p.Histogram()
	if !ok {
		return HistSummary{}, false
	}
	return h.Summarise()
}
