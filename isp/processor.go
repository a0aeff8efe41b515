/*
DESCRIPTION
  processor.go defines the interface to the image signal processor hardware.

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

// StatsHandler receives results from a statistics engine. Handlers may be
// called from interrupt context and must not block.
type StatsHandler func(Stats)

// Processor is an image signal processor.
type Processor interface {
	// Configure writes the configuration of a processing stage.
	Configure(cfg StageConfig) error

	// Enable and Disable start and stop a stage. A statistics engine must
	// have a controller before it can be enabled.
	Enable(s Stage) error
	Disable(s Stage) error

	// NewStatsController creates the controller of a statistics engine,
	// which delivers its results to h once enabled.
	NewStatsController(cfg StageConfig, h StatsHandler) error
	DeleteStatsController(s Stage) error
}

// NopProcessor is a Processor that accepts every operation and does nothing.
type NopProcessor struct{}

func (NopProcessor) Configure(StageConfig) error                        { return nil }
func (NopProcessor) Enable(Stage) error                                 { return nil }
func (NopProcessor) Disable(Stage) error                                { return nil }
func (NopProcessor) NewStatsController(StageConfig, StatsHandler) error { return nil }
func (NopProcessor) DeleteStatsController(Stage) error                  { return nil }
