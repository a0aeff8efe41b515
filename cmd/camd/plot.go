/*
DESCRIPTION
  plot.go provides periodic plotting of the ISP luma histogram to an image
  file.

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
	"context"
	"fmt"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ausocean/mipicam/cam"
	"github.com/ausocean/mipicam/isp"
	"github.com/ausocean/utils/logging"
)

// Histogram plot parameters.
const (
	plotPeriod   = time.Minute
	plotBarWidth = 16 // Points.
	plotWidth    = 6 * vg.Inch
	plotHeight   = 4 * vg.Inch
)

// plotHistogram writes a bar chart of h to path. The image format is
// chosen from the file extension.
func plotHistogram(h isp.HistStats, path string) error {
	vals := make(plotter.Values, len(h.Bins))
	for i, b := range h.Bins {
		vals[i] = float64(b)
	}

	p := plot.New()
	p.Title.Text = "Luma histogram"
	p.X.Label.Text = "Bin"
	p.Y.Label.Text = "Pixels"

	bars, err := plotter.NewBarChart(vals, vg.Points(plotBarWidth))
	if err != nil {
		return fmt.Errorf("could not create bar chart: %w", err)
	}
	p.Add(bars)

	err = p.Save(plotWidth, plotHeight, path)
	if err != nil {
		return fmt.Errorf("could not save plot: %w", err)
	}
	return nil
}

// plotLoop plots the latest histogram each plotPeriod while a plot path is
// configured, until ctx is done.
func plotLoop(ctx context.Context, c *cam.Cam, l logging.Logger) {
	ticker := time.NewTicker(plotPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		path := c.Config().HistogramPlot
		if path == "" {
			continue
		}
		p, ok := c.Pipeline()
		if !ok {
			continue
		}
		h, ok := p.Histogram()
		if !ok {
			l.Debug(pkg + "no histogram to plot")
			continue
		}
		err := plotHistogram(h, path)
		if err != nil {
			l.Warning(pkg+"could not plot histogram", "error", err.Error())
			continue
		}
		if s, ok := h.Summarise(); ok {
			l.Info(pkg+"histogram", "mean", s.Mean, "stddev", s.StdDev, "median", s.Median)
		}
	}
}
