/*
DESCRIPTION
  variables.go contains a list of structs that provide a variable Name, type in
  a string format, a function for updating the variable in the Config struct
  from a string, and finally, a validation function to check the validity of the
  corresponding field value in the Config.

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
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ausocean/mipicam/device/sensor"
	"github.com/ausocean/utils/logging"
	"github.com/ausocean/utils/sliceutils"
)

// Config map Keys.
const (
	KeyAEInterval            = "AEInterval"
	KeyAETarget              = "AETarget"
	KeyAutoExposure          = "AutoExposure"
	KeyBayerPattern          = "BayerPattern"
	KeyBrightnessLevel       = "BrightnessLevel"
	KeyCCMMatrix             = "CCMMatrix"
	KeyDemosaicGradientRatio = "DemosaicGradientRatio"
	KeyDenoisingLevel        = "DenoisingLevel"
	KeyExposure              = "Exposure"
	KeyGain                  = "Gain"
	KeyGamma                 = "Gamma"
	KeyHeight                = "Height"
	KeyHistogramPlot         = "HistogramPlot"
	KeyI2CPort               = "I2CPort"
	KeyISPBrightness         = "ISPBrightness"
	KeyISPContrast           = "ISPContrast"
	KeyISPHue                = "ISPHue"
	KeyISPSaturation         = "ISPSaturation"
	KeyISPStages             = "ISPStages"
	KeyLaneBitrate           = "LaneBitrate"
	KeyLanes                 = "Lanes"
	KeyLogging               = "logging"
	KeyMirrorX               = "MirrorX"
	KeyMirrorY               = "MirrorY"
	KeyMode                  = "mode"
	KeyPollInterval          = "PollInterval"
	KeyRecordPath            = "RecordPath"
	KeyResetPin              = "ResetPin"
	KeyRotation              = "Rotation"
	KeySensor                = "Sensor"
	KeySensorAddress         = "SensorAddress"
	KeySharpenParams         = "SharpenParams"
	KeySuppress              = "Suppress"
	KeyWBGains               = "WBGains"
	KeyWidth                 = "Width"
	KeyXClkFrequency         = "XClkFrequency"
	KeyXClkPin               = "XClkPin"
)

// Config map parameter types.
const (
	typeString = "string"
	typeInt    = "int"
	typeUint   = "uint"
	typeBool   = "bool"
	typeFloat  = "float"
)

// Default variable values.
const (
	defaultSensor        = "ov5647"
	defaultVerbosity     = logging.Error
	defaultXClkFrequency = 24000000 // Hz.
	defaultAETarget      = 128
	defaultAEInterval    = 100 * time.Millisecond
	defaultPollInterval  = 10 * time.Millisecond
	defaultRotation      = 0

	// ISP defaults.
	defaultDenoisingLevel = 8
	defaultGamma          = 2.2
	defaultGradientRatio  = 0.5
	defaultISPContrast    = 128
	defaultISPSaturation  = 128
)

// Minimum time between auto-exposure adjustments.
const minAEInterval = 100 * time.Millisecond

// Upper bounds of ISP settings.
const (
	maxDenoisingLevel = 20
	maxColorLevel     = 255
)

// Stage names as used by the ISPStages variable.
var stageNames = map[string]uint{
	"BF":        StageBF,
	"Demosaic":  StageDemosaic,
	"CCM":       StageCCM,
	"Gamma":     StageGamma,
	"Sharpen":   StageSharpen,
	"Color":     StageColor,
	"AWB":       StageAWB,
	"AE":        StageAE,
	"Histogram": StageHistogram,
}

// DefaultISPStages are the stages enabled when ISPStages is unset.
var DefaultISPStages = []uint{StageBF, StageDemosaic, StageCCM, StageGamma, StageSharpen, StageColor}

// Default sharpen parameters: high threshold, low threshold, high frequency
// coefficient and medium frequency coefficient.
var defaultSharpenParams = []float64{100, 50, 0.8, 0.5}

// Variables describes the variables that can be used for camera control.
// These structs provide the name and type of variable, a function for updating
// this variable in a Config, and a function for validating the value of the variable.
var Variables = []struct {
	Name     string
	Type     string
	Update   func(*Config, string)
	Validate func(*Config)
}{
	{
		Name: KeyAEInterval,
		Type: typeUint,
		Update: func(c *Config, v string) {
			c.AEInterval = time.Duration(parseUint(KeyAEInterval, v, c)) * time.Millisecond
		},
		Validate: func(c *Config) {
			if c.AEInterval == 0 {
				c.AEInterval = defaultAEInterval
				return
			}
			if c.AEInterval < minAEInterval {
				c.LogInvalidField(KeyAEInterval, minAEInterval)
				c.AEInterval = minAEInterval
			}
		},
	},
	{
		Name:   KeyAETarget,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.AETarget = parseUint(KeyAETarget, v, c) },
		Validate: func(c *Config) {
			if c.AETarget == 0 || c.AETarget > 255 {
				c.LogInvalidField(KeyAETarget, defaultAETarget)
				c.AETarget = defaultAETarget
			}
		},
	},
	{
		Name:   KeyAutoExposure,
		Type:   typeBool,
		Update: func(c *Config, v string) { c.AutoExposure = parseBool(KeyAutoExposure, v, c) },
	},
	{
		Name:   KeyBayerPattern,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.BayerPattern = parseUint(KeyBayerPattern, v, c) },
	},
	{
		Name:   KeyBrightnessLevel,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.BrightnessLevel = parseUint(KeyBrightnessLevel, v, c) },
	},
	{
		Name: KeyCCMMatrix,
		Type: typeString,
		Update: func(c *Config, v string) {
			c.CCMMatrix = parseFloats(KeyCCMMatrix, v, 9, c)
		},
	},
	{
		Name:   KeyDemosaicGradientRatio,
		Type:   typeFloat,
		Update: func(c *Config, v string) {
			c.DemosaicGradientRatio = parseGivenFloat(KeyDemosaicGradientRatio, v, c, c.DemosaicGradientRatio, givenGradientRatio)
		},
		Validate: func(c *Config) {
			r := c.DemosaicGradientRatio
			switch {
			case r == 0 && c.given&givenGradientRatio == 0:
				c.DemosaicGradientRatio = defaultGradientRatio
			case math.IsNaN(r) || r < 0 || r > 1:
				c.LogInvalidField(KeyDemosaicGradientRatio, defaultGradientRatio)
				c.DemosaicGradientRatio = defaultGradientRatio
			}
		},
	},
	{
		Name:   KeyDenoisingLevel,
		Type:   typeUint,
		Update: func(c *Config, v string) {
			c.DenoisingLevel = parseGivenUint(KeyDenoisingLevel, v, c, c.DenoisingLevel, givenDenoisingLevel)
		},
		Validate: func(c *Config) {
			c.DenoisingLevel = givenInRange(KeyDenoisingLevel, c.DenoisingLevel, maxDenoisingLevel, c.given&givenDenoisingLevel != 0, c, defaultDenoisingLevel)
		},
	},
	{
		Name:   KeyExposure,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.Exposure = parseUint(KeyExposure, v, c) },
	},
	{
		Name:   KeyGain,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.Gain = parseUint(KeyGain, v, c) },
	},
	{
		Name:   KeyGamma,
		Type:   typeFloat,
		Update: func(c *Config, v string) { c.Gamma = parseFloat(KeyGamma, v, c) },
		Validate: func(c *Config) {
			if c.Gamma <= 0 {
				c.LogInvalidField(KeyGamma, defaultGamma)
				c.Gamma = defaultGamma
			}
		},
	},
	{
		Name:   KeyHeight,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.Height = parseUint(KeyHeight, v, c) },
	},
	{
		Name:   KeyHistogramPlot,
		Type:   typeString,
		Update: func(c *Config, v string) { c.HistogramPlot = v },
	},
	{
		Name:   KeyI2CPort,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.I2CPort = byte(parseUint(KeyI2CPort, v, c)) },
	},
	{
		Name:   KeyISPBrightness,
		Type:   typeInt,
		Update: func(c *Config, v string) { c.ISPBrightness = parseInt(KeyISPBrightness, v, c) },
	},
	{
		Name:   KeyISPContrast,
		Type:   typeUint,
		Update: func(c *Config, v string) {
			c.ISPContrast = parseGivenUint(KeyISPContrast, v, c, c.ISPContrast, givenISPContrast)
		},
		Validate: func(c *Config) {
			c.ISPContrast = givenInRange(KeyISPContrast, c.ISPContrast, maxColorLevel, c.given&givenISPContrast != 0, c, defaultISPContrast)
		},
	},
	{
		Name:   KeyISPHue,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.ISPHue = parseUint(KeyISPHue, v, c) },
	},
	{
		Name:   KeyISPSaturation,
		Type:   typeUint,
		Update: func(c *Config, v string) {
			c.ISPSaturation = parseGivenUint(KeyISPSaturation, v, c, c.ISPSaturation, givenISPSaturation)
		},
		Validate: func(c *Config) {
			c.ISPSaturation = givenInRange(KeyISPSaturation, c.ISPSaturation, maxColorLevel, c.given&givenISPSaturation != 0, c, defaultISPSaturation)
		},
	},
	{
		Name: KeyISPStages,
		Type: "enums:BF,Demosaic,CCM,Gamma,Sharpen,Color,AWB,AE,Histogram",
		Update: func(c *Config, v string) {
			c.ISPStages = []uint{}
			if v == "" {
				return
			}
			for _, s := range strings.Split(v, ",") {
				stage, ok := stageNames[strings.TrimSpace(s)]
				if !ok {
					c.Logger.Warning("invalid ISPStages param", "value", s)
					continue
				}
				c.ISPStages = append(c.ISPStages, stage)
			}
		},
		Validate: func(c *Config) {
			if c.ISPStages == nil {
				c.ISPStages = append([]uint(nil), DefaultISPStages...)
			}
		},
	},
	{
		Name:   KeyLaneBitrate,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.LaneBitrate = parseUint(KeyLaneBitrate, v, c) },
	},
	{
		Name:   KeyLanes,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.Lanes = parseUint(KeyLanes, v, c) },
	},
	{
		Name: KeyLogging,
		Type: "enum:Debug,Info,Warning,Error,Fatal",
		Update: func(c *Config, v string) {
			switch v {
			case "Debug":
				c.LogLevel = logging.Debug
			case "Info":
				c.LogLevel = logging.Info
			case "Warning":
				c.LogLevel = logging.Warning
			case "Error":
				c.LogLevel = logging.Error
			case "Fatal":
				c.LogLevel = logging.Fatal
			default:
				c.Logger.Warning("invalid Logging param", "value", v)
			}
		},
		Validate: func(c *Config) {
			switch c.LogLevel {
			case logging.Debug, logging.Info, logging.Warning, logging.Error, logging.Fatal:
			default:
				c.LogInvalidField("LogLevel", defaultVerbosity)
				c.LogLevel = defaultVerbosity
			}
		},
	},
	{
		Name:   KeyMirrorX,
		Type:   typeBool,
		Update: func(c *Config, v string) { c.MirrorX = parseBool(KeyMirrorX, v, c) },
	},
	{
		Name:   KeyMirrorY,
		Type:   typeBool,
		Update: func(c *Config, v string) { c.MirrorY = parseBool(KeyMirrorY, v, c) },
	},
	{
		Name:   KeyMode,
		Type:   "enum:Normal,Paused,Completed",
		Update: func(c *Config, v string) {},
	},
	{
		Name: KeyPollInterval,
		Type: typeUint,
		Update: func(c *Config, v string) {
			c.PollInterval = time.Duration(parseUint(KeyPollInterval, v, c)) * time.Millisecond
		},
		Validate: func(c *Config) {
			if c.PollInterval <= 0 {
				c.LogInvalidField(KeyPollInterval, defaultPollInterval)
				c.PollInterval = defaultPollInterval
			}
		},
	},
	{
		Name:   KeyRecordPath,
		Type:   typeString,
		Update: func(c *Config, v string) { c.RecordPath = v },
	},
	{
		Name:   KeyResetPin,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.ResetPin = parseUint(KeyResetPin, v, c) },
	},
	{
		Name:   KeyRotation,
		Type:   "enum:0,90,180,270",
		Update: func(c *Config, v string) { c.Rotation = parseUint(KeyRotation, v, c) },
		Validate: func(c *Config) {
			switch c.Rotation {
			case 0, 90, 180, 270:
			default:
				c.LogInvalidField(KeyRotation, defaultRotation)
				c.Rotation = defaultRotation
			}
		},
	},
	{
		Name:   KeySensor,
		Type:   "enum:" + strings.Join(sensor.Names(), ","),
		Update: func(c *Config, v string) { c.Sensor = v },
		Validate: func(c *Config) {
			if !sliceutils.ContainsString(sensor.Names(), c.Sensor) {
				c.LogInvalidField(KeySensor, defaultSensor)
				c.Sensor = defaultSensor
			}
		},
	},
	{
		Name:   KeySensorAddress,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.SensorAddress = uint8(parseUint(KeySensorAddress, v, c)) },
		Validate: func(c *Config) {
			if c.SensorAddress > 0x7f {
				c.LogInvalidField(KeySensorAddress, 0)
				c.SensorAddress = 0
			}
		},
	},
	{
		Name: KeySharpenParams,
		Type: typeString,
		Update: func(c *Config, v string) {
			c.SharpenParams = parseFloats(KeySharpenParams, v, 4, c)
		},
		Validate: func(c *Config) {
			if len(c.SharpenParams) != 4 {
				c.SharpenParams = append([]float64(nil), defaultSharpenParams...)
			}
		},
	},
	{
		Name: KeySuppress,
		Type: typeBool,
		Update: func(c *Config, v string) {
			c.Suppress = parseBool(KeySuppress, v, c)
			if l, ok := c.Logger.(*logging.JSONLogger); ok {
				l.SetSuppress(c.Suppress)
			}
		},
	},
	{
		Name: KeyWBGains,
		Type: typeString,
		Update: func(c *Config, v string) {
			c.WBGains = parseFloats(KeyWBGains, v, 3, c)
		},
	},
	{
		Name:   KeyWidth,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.Width = parseUint(KeyWidth, v, c) },
	},
	{
		Name:   KeyXClkFrequency,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.XClkFrequency = parseUint(KeyXClkFrequency, v, c) },
		Validate: func(c *Config) {
			c.XClkFrequency = lessThanOrEqual(KeyXClkFrequency, c.XClkFrequency, 0, c, defaultXClkFrequency)
		},
	},
	{
		Name:   KeyXClkPin,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.XClkPin = parseUint(KeyXClkPin, v, c) },
	},
}

func parseUint(n, v string, c *Config) uint {
	_v, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		c.Logger.Warning(fmt.Sprintf("expected unsigned int for param %s", n), "value", v)
	}
	return uint(_v)
}

func parseInt(n, v string, c *Config) int {
	_v, err := strconv.Atoi(v)
	if err != nil {
		c.Logger.Warning(fmt.Sprintf("expected integer for param %s", n), "value", v)
	}
	return _v
}

func parseFloat(n, v string, c *Config) float64 {
	_v, err := strconv.ParseFloat(v, 64)
	if err != nil {
		c.Logger.Warning(fmt.Sprintf("expected float for param %s", n), "value", v)
	}
	return _v
}

// parseFloats parses a comma separated list of want floats. A list of the
// wrong length is rejected and nil returned.
func parseFloats(n, v string, want int, c *Config) []float64 {
	v = strings.Replace(v, " ", "", -1)
	elements := strings.Split(v, ",")
	if len(elements) != want {
		c.Logger.Warning(fmt.Sprintf("expected %d values for param %s", want, n), "value", v)
		return nil
	}
	vals := make([]float64, 0, want)
	for _, e := range elements {
		f, err := strconv.ParseFloat(e, 64)
		if err != nil {
			c.Logger.Warning(fmt.Sprintf("invalid %s param", n), "value", e)
			return nil
		}
		vals = append(vals, f)
	}
	return vals
}

func parseBool(n, v string, c *Config) (b bool) {
	switch strings.ToLower(v) {
	case "true":
		b = true
	case "false":
		b = false
	default:
		c.Logger.Warning(fmt.Sprintf("expect bool for param %s", n), "value", v)
	}
	return
}

// parseGivenUint parses v for a variable whose zero is a valid setting. On
// success flag is recorded as given; otherwise prev is kept.
func parseGivenUint(n, v string, c *Config, prev uint, flag givenFlags) uint {
	_v, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		c.Logger.Warning(fmt.Sprintf("expected unsigned int for param %s", n), "value", v)
		return prev
	}
	c.given |= flag
	return uint(_v)
}

// parseGivenFloat is parseGivenUint for floats.
func parseGivenFloat(n, v string, c *Config, prev float64, flag givenFlags) float64 {
	_v, err := strconv.ParseFloat(v, 64)
	if err != nil {
		c.Logger.Warning(fmt.Sprintf("expected float for param %s", n), "value", v)
		return prev
	}
	c.given |= flag
	return _v
}

// givenInRange defaults an unset zero and any value above hi.
func givenInRange(n string, v, hi uint, given bool, c *Config, def uint) uint {
	if (v == 0 && !given) || v > hi {
		c.LogInvalidField(n, def)
		return def
	}
	return v
}

func lessThanOrEqual(n string, v, cmp uint, c *Config, def uint) uint {
	if v <= cmp {
		c.LogInvalidField(n, def)
		return def
	}
	return v
}
