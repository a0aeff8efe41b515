/*
DESCRIPTION
  software_test.go provides tests for the software statistics processor.

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
	"testing"

	"github.com/ausocean/mipicam/codec/rgb565"
	"github.com/ausocean/utils/logging"
)

func TestSoftwareStats(t *testing.T) {
	const w, h = 64, 48
	sw := NewSoftware()
	p := New((*logging.TestLogger)(t), sw, w, h)
	for _, s := range []Stage{StageAWB, StageAE, StageHistogram} {
		p.EnableStage(s, true)
	}
	if err := p.Init(); err != nil {
		t.Fatalf("did not expect error from Init: %v", err)
	}
	if err := p.Start(); err != nil {
		t.Fatalf("did not expect error from Start: %v", err)
	}

	frame := make([]byte, rgb565.FrameSize(w, h))
	rgb565.Fill(frame, rgb565.Pack(rgb565.MaxRed, rgb565.MaxGreen, rgb565.MaxBlue))
	sw.Process(frame, w, h)

	if p.Luma() != 250 {
		t.Errorf("unexpected luma of white frame: %d", p.Luma())
	}
	hist, ok := p.Histogram()
	if !ok {
		t.Fatal("expected histogram")
	}
	win := centredWindow(w, h, 0.2, 0.8)
	if got, want := hist.Bins[HistSegments-1], uint32((win.Right-win.Left)*(win.Bottom-win.Top)); got != want {
		t.Errorf("unexpected top bin count: got %d, want %d", got, want)
	}
	if r, _, b := p.WhiteBalance(); r != 1 || b != 1 {
		t.Errorf("white frame has no white patches, gains should not move: %v %v", r, b)
	}

	// A green tinted grey is a white patch; red and blue gains rise.
	rgb565.Fill(frame, rgb565.Pack(10, 30, 10))
	sw.Process(frame, w, h)
	if r, _, b := p.WhiteBalance(); r <= 1 || b <= 1 {
		t.Errorf("expected gains to rise: %v %v", r, b)
	}

	// Stopped engines deliver nothing.
	p.Stop()
	rgb565.Fill(frame, 0)
	sw.Process(frame, w, h)
	if p.Luma() != 250 {
		t.Errorf("did not expect AE result while stopped: %d", p.Luma())
	}
}

func TestSoftwareControllers(t *testing.T) {
	sw := NewSoftware()
	if err := sw.Enable(StageAE); !errors.Is(err, ErrNoController) {
		t.Errorf("expected ErrNoController, got %v", err)
	}
	if err := sw.NewStatsController(AEConfig{}, func(Stats) {}); err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	if err := sw.NewStatsController(AEConfig{}, func(Stats) {}); !errors.Is(err, ErrController) {
		t.Errorf("expected ErrController, got %v", err)
	}
	if err := sw.NewStatsController(BFConfig{}, func(Stats) {}); !errors.Is(err, ErrBadStage) {
		t.Errorf("expected ErrBadStage, got %v", err)
	}
	if err := sw.DeleteStatsController(StageAE); err != nil {
		t.Errorf("did not expect error: %v", err)
	}

	sw.Configure(GammaConfig{Curve: gammaCurve(2)})
	if c, ok := sw.Config(StageGamma); !ok || c.(GammaConfig).Curve != gammaCurve(2) {
		t.Errorf("unexpected stored config: %v, %v", c, ok)
	}
}
