/*
DESCRIPTION
  config.go provides the Config struct holding the configuration of a camera
  capture session, along with methods for validating and updating it.

AUTHORS
  The AusOcean Team <info@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package config contains the configuration settings for a camera capture
// session.
package config

import (
	"time"

	"github.com/ausocean/utils/logging"
)

// ISP stages, in pipeline order.
const (
	StageBF = iota
	StageDemosaic
	StageCCM
	StageGamma
	StageSharpen
	StageColor
	StageAWB
	StageAE
	StageHistogram
)

// Variables whose zero value is a valid setting. A zero given through Update
// is kept; a zero left in a struct literal is defaulted by Validate.
type givenFlags uint8

const (
	givenDenoisingLevel givenFlags = 1 << iota
	givenGradientRatio
	givenISPContrast
	givenISPSaturation
)

// Config provides parameters relevant to a capture session. Unless stated
// otherwise a zero value means unset, and a default is used.
type Config struct {
	// Logger holds an implementation of the Logger interface. This must be set
	// for the camera to work correctly.
	Logger logging.Logger

	// LogLevel is the logging verbosity level.
	// Valid values are defined by enums from the logger package: logging.Debug,
	// logging.Info, logging.Warning logging.Error, logging.Fatal.
	LogLevel int8

	Suppress bool // Holds logger suppression state.

	// Sensor is the name of the sensor driver, see sensor.Names.
	Sensor        string
	SensorAddress uint8 // 7-bit I2C address; zero selects the driver default.
	I2CPort       byte  // I2C bus number used for SCCB.

	// Width and Height request an output resolution. Sensors with a fixed mode
	// ignore these and report their own geometry.
	Width  uint
	Height uint

	// Lanes, BayerPattern and LaneBitrate (Mbps) describe the CSI link. These
	// are fixed by the sensor driver once selected; a configured value that
	// disagrees with the driver is reported and ignored.
	Lanes        uint
	BayerPattern uint
	LaneBitrate  uint

	XClkPin       uint // GPIO for the sensor's external clock; zero means none.
	XClkFrequency uint // External clock frequency in Hz.
	ResetPin      uint // GPIO driving the sensor reset line; zero means none.

	// Rotation is the counter-clockwise display rotation in degrees; one of 0,
	// 90, 180 or 270. Rotation, MirrorX and MirrorY cannot change once set up.
	Rotation uint
	MirrorX  bool
	MirrorY  bool

	AutoExposure bool
	AETarget     uint // Target mean luma, 1-255.

	// Exposure and Gain are the initial sensor exposure register value and
	// gain index.
	Exposure uint
	Gain     uint

	// BrightnessLevel is a coarse 0-10 exposure preset applied on update.
	BrightnessLevel uint

	AEInterval   time.Duration // Minimum time between auto-exposure steps.
	PollInterval time.Duration // Time between capture loop ticks.

	// ISPStages lists the enabled ISP stages using the Stage enums above.
	ISPStages []uint

	DenoisingLevel uint      // Bayer filter denoising level, 0-20.
	CCMMatrix      []float64 // Row-major 3x3 colour correction matrix.
	WBGains        []float64 // Red, green and blue white balance gains.

	// SharpenParams holds the high threshold, low threshold, high frequency
	// coefficient and medium frequency coefficient.
	SharpenParams []float64

	Gamma                 float64
	DemosaicGradientRatio float64
	ISPBrightness         int
	ISPContrast           uint
	ISPSaturation         uint
	ISPHue                uint

	// HistogramPlot is a path to which a plot of the luma histogram is written
	// periodically. Empty disables plotting.
	HistogramPlot string

	// RecordPath is a file to which raw captured frames are appended. Empty
	// disables recording. Setup-only.
	RecordPath string

	// given records the zero-valid variables that were set through Update.
	given givenFlags
}

// Validate checks for any errors in the config fields and defaults settings
// if particular parameters have not been defined.
func (c *Config) Validate() error {
	for _, v := range Variables {
		if v.Validate != nil {
			v.Validate(c)
		}
	}
	return nil
}

// Update takes a map of configuration variable names and their corresponding
// values, parses the string values and converting into correct type, and then
// sets the config struct fields as appropriate.
func (c *Config) Update(vars map[string]string) {
	for _, value := range Variables {
		if v, ok := vars[value.Name]; ok && value.Update != nil {
			value.Update(c, v)
		}
	}
}

// LogInvalidField logs that the named field was bad or unset and that def
// will be used instead.
func (c *Config) LogInvalidField(name string, def interface{}) {
	c.Logger.Info(name+" bad or unset, defaulting", name, def)
}
