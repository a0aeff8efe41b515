/*
DESCRIPTION
  config_test.go provides testing for the Config struct methods (Validate and Update).

AUTHORS
  The AusOcean Team <info@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package config

import (
	"testing"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/google/go-cmp/cmp"
)

type dumbLogger struct{}

func (dl *dumbLogger) Log(l int8, m string, a ...interface{})  {}
func (dl *dumbLogger) SetLevel(l int8)                         {}
func (dl *dumbLogger) Debug(msg string, args ...interface{})   {}
func (dl *dumbLogger) Info(msg string, args ...interface{})    {}
func (dl *dumbLogger) Warning(msg string, args ...interface{}) {}
func (dl *dumbLogger) Error(msg string, args ...interface{})   {}
func (dl *dumbLogger) Fatal(msg string, args ...interface{})   {}

func TestValidate(t *testing.T) {
	dl := &dumbLogger{}

	want := Config{
		Logger:                dl,
		Sensor:                defaultSensor,
		XClkFrequency:         defaultXClkFrequency,
		AETarget:              defaultAETarget,
		AEInterval:            defaultAEInterval,
		PollInterval:          defaultPollInterval,
		ISPStages:             DefaultISPStages,
		DenoisingLevel:        defaultDenoisingLevel,
		SharpenParams:         defaultSharpenParams,
		Gamma:                 defaultGamma,
		DemosaicGradientRatio: defaultGradientRatio,
		ISPContrast:           defaultISPContrast,
		ISPSaturation:         defaultISPSaturation,
	}

	got := Config{Logger: dl}
	err := (&got).Validate()
	if err != nil {
		t.Fatalf("did not expect error: %v", err)
	}

	if !cmp.Equal(got, want, cmp.AllowUnexported(Config{})) {
		t.Errorf("configs not equal\nwant: %v\ngot: %v", want, got)
	}
}

func TestValidateBounds(t *testing.T) {
	c := Config{
		Logger:        &dumbLogger{},
		Sensor:        "imx219",
		Rotation:      45,
		AETarget:      300,
		AEInterval:    20 * time.Millisecond,
		SensorAddress: 0x80,
	}
	c.Validate()

	if c.Sensor != defaultSensor {
		t.Errorf("unexpected sensor: %s", c.Sensor)
	}
	if c.Rotation != 0 {
		t.Errorf("unexpected rotation: %d", c.Rotation)
	}
	if c.AETarget != defaultAETarget {
		t.Errorf("unexpected AE target: %d", c.AETarget)
	}
	if c.AEInterval != minAEInterval {
		t.Errorf("unexpected AE interval: %v", c.AEInterval)
	}
	if c.SensorAddress != 0 {
		t.Errorf("unexpected sensor address: %#x", c.SensorAddress)
	}
}

func TestUpdate(t *testing.T) {
	updateMap := map[string]string{
		"AEInterval":            "250",
		"AETarget":              "100",
		"AutoExposure":          "true",
		"BayerPattern":          "1",
		"BrightnessLevel":       "7",
		"CCMMatrix":             "1,0,0, 0,1,0, 0,0,1",
		"DemosaicGradientRatio": "0.25",
		"DenoisingLevel":        "12",
		"Exposure":              "2496",
		"Gain":                  "30",
		"Gamma":                 "1.8",
		"Height":                "720",
		"HistogramPlot":         "/tmp/hist.png",
		"I2CPort":               "1",
		"ISPBrightness":         "-20",
		"ISPContrast":           "140",
		"ISPHue":                "30",
		"ISPSaturation":         "90",
		"ISPStages":             "BF,Demosaic,AWB,Histogram",
		"LaneBitrate":           "400",
		"Lanes":                 "2",
		"logging":               "Debug",
		"MirrorX":               "true",
		"MirrorY":               "false",
		"PollInterval":          "5",
		"ResetPin":              "17",
		"Rotation":              "90",
		"Sensor":                "ov02c10",
		"SensorAddress":         "54",
		"SharpenParams":         "120,40,0.7,0.4",
		"WBGains":               "1.5,1,1.25",
		"Width":                 "1280",
		"XClkFrequency":         "20000000",
		"XClkPin":               "36",
	}

	dl := &dumbLogger{}

	want := Config{
		Logger:                dl,
		AEInterval:            250 * time.Millisecond,
		AETarget:              100,
		AutoExposure:          true,
		BayerPattern:          1,
		BrightnessLevel:       7,
		CCMMatrix:             []float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
		DemosaicGradientRatio: 0.25,
		DenoisingLevel:        12,
		Exposure:              2496,
		Gain:                  30,
		Gamma:                 1.8,
		Height:                720,
		HistogramPlot:         "/tmp/hist.png",
		I2CPort:               1,
		ISPBrightness:         -20,
		ISPContrast:           140,
		ISPHue:                30,
		ISPSaturation:         90,
		ISPStages:             []uint{StageBF, StageDemosaic, StageAWB, StageHistogram},
		LaneBitrate:           400,
		Lanes:                 2,
		LogLevel:              logging.Debug,
		MirrorX:               true,
		PollInterval:          5 * time.Millisecond,
		ResetPin:              17,
		Rotation:              90,
		Sensor:                "ov02c10",
		SensorAddress:         54,
		SharpenParams:         []float64{120, 40, 0.7, 0.4},
		WBGains:               []float64{1.5, 1, 1.25},
		Width:                 1280,
		XClkFrequency:         20000000,
		XClkPin:               36,
		given:                 givenDenoisingLevel | givenGradientRatio | givenISPContrast | givenISPSaturation,
	}

	got := Config{Logger: dl}
	got.Update(updateMap)
	if !cmp.Equal(want, got, cmp.AllowUnexported(Config{})) {
		t.Errorf("configs not equal\nwant: %v\ngot: %v", want, got)
	}
}

func TestParseFloatsRejectsBadLength(t *testing.T) {
	c := Config{Logger: &dumbLogger{}}
	c.Update(map[string]string{KeyWBGains: "1,2"})
	if c.WBGains != nil {
		t.Errorf("expected nil gains, got: %v", c.WBGains)
	}
}

func TestZeroSettings(t *testing.T) {
	c := Config{Logger: &dumbLogger{}}
	c.Update(map[string]string{
		KeyDenoisingLevel:        "0",
		KeyDemosaicGradientRatio: "0",
		KeyISPContrast:           "0",
		KeyISPSaturation:         "0",
	})
	c.Validate()
	if c.DenoisingLevel != 0 || c.DemosaicGradientRatio != 0 || c.ISPContrast != 0 || c.ISPSaturation != 0 {
		t.Errorf("expected zero settings to be kept, got denoise %d ratio %v contrast %d saturation %d",
			c.DenoisingLevel, c.DemosaicGradientRatio, c.ISPContrast, c.ISPSaturation)
	}

	// A bad value leaves the previous setting in place.
	c.Update(map[string]string{KeyISPContrast: "bad"})
	c.Validate()
	if c.ISPContrast != 0 {
		t.Errorf("unexpected contrast after bad value: %d", c.ISPContrast)
	}

	tests := []struct {
		vars map[string]string
		get  func(Config) float64
		want float64
	}{
		{map[string]string{KeyDenoisingLevel: "21"}, func(c Config) float64 { return float64(c.DenoisingLevel) }, defaultDenoisingLevel},
		{map[string]string{KeyISPSaturation: "256"}, func(c Config) float64 { return float64(c.ISPSaturation) }, defaultISPSaturation},
		{map[string]string{KeyDemosaicGradientRatio: "1.5"}, func(c Config) float64 { return c.DemosaicGradientRatio }, defaultGradientRatio},
		{map[string]string{KeyDemosaicGradientRatio: "NaN"}, func(c Config) float64 { return c.DemosaicGradientRatio }, defaultGradientRatio},
	}
	for i, test := range tests {
		c := Config{Logger: &dumbLogger{}}
		c.Update(test.vars)
		c.Validate()
		if got := test.get(c); got != test.want {
			t.Errorf("did not get expected result for test %d\ngot: %v\nwant: %v", i, got, test.want)
		}
	}
}
