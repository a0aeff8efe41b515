/*
DESCRIPTION
  plot_test.go provides a test for histogram plotting.

AUTHORS
  The AusOcean Team <info@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package main

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/ausocean/mipicam/isp"
)

func TestPlotHistogram(t *testing.T) {
	var h isp.HistStats
	for i := range h.Bins {
		h.Bins[i] = uint32(i * 100)
	}
	path := filepath.Join(t.TempDir(), "hist.png")
	err := plotHistogram(h, path)
	if err != nil {
		t.Fatalf("did not expect error plotting histogram: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("could not open plot: %v", err)
	}
	defer f.Close()
	_, err = png.DecodeConfig(f)
	if err != nil {
		t.Errorf("plot is not a PNG: %v", err)
	}
}
