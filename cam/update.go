/*
DESCRIPTION
  update.go provides live reconfiguration of a Cam from variables.

AUTHORS
  The AusOcean Team <info@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package cam

import (
	"errors"

	"github.com/ausocean/mipicam/cam/config"
)

// setupOnly are the variables that only take effect at setup.
var setupOnly = []string{
	config.KeySensor,
	config.KeySensorAddress,
	config.KeyI2CPort,
	config.KeyWidth,
	config.KeyHeight,
	config.KeyLanes,
	config.KeyBayerPattern,
	config.KeyLaneBitrate,
	config.KeyXClkPin,
	config.KeyXClkFrequency,
	config.KeyResetPin,
	config.KeyRotation,
	config.KeyMirrorX,
	config.KeyMirrorY,
	config.KeyRecordPath,
}

// keepSetupOnly copies the setup-only fields of from into c.
func keepSetupOnly(c *config.Config, from config.Config) {
	c.Sensor = from.Sensor
	c.SensorAddress = from.SensorAddress
	c.I2CPort = from.I2CPort
	c.Width, c.Height = from.Width, from.Height
	c.Lanes = from.Lanes
	c.BayerPattern = from.BayerPattern
	c.LaneBitrate = from.LaneBitrate
	c.XClkPin, c.XClkFrequency = from.XClkPin, from.XClkFrequency
	c.ResetPin = from.ResetPin
	c.Rotation = from.Rotation
	c.MirrorX, c.MirrorY = from.MirrorX, from.MirrorY
	c.RecordPath = from.RecordPath
}

// Update takes a map of variables and their values and applies those that
// are recognised. Auto-exposure, manual exposure and gain, brightness and
// ISP settings are applied without interrupting streaming. Once set up,
// setup-only variables are ignored with a warning.
func (cm *Cam) Update(vars map[string]string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	log := cm.cfg.Logger
	log.Debug(pkg+"checking vars", "vars", vars)

	cfg := cm.cfg
	cfg.Update(vars)
	if cm.setUp {
		for _, k := range setupOnly {
			if _, ok := vars[k]; ok {
				log.Warning(pkg+"variable cannot change once set up, ignoring", "name", k)
			}
		}
		keepSetupOnly(&cfg, cm.cfg)
	}
	cm.setConfig(cfg)

	var errs []error
	err := cm.camera.Set(cm.cfg)
	if err != nil {
		log.Warning(pkg+"errors from configuring camera", "errors", err.Error())
	}

	if _, ok := vars[config.KeyBrightnessLevel]; ok && cm.setUp {
		err = cm.camera.SetBrightnessLevel(cm.cfg.BrightnessLevel)
		if err != nil {
			errs = append(errs, err)
		}
	}

	if cm.pipeline != nil {
		err = cm.pipeline.Apply(cm.cfg)
		if err != nil {
			errs = append(errs, err)
		}
	}

	log.Info(pkg + "finished reconfig")
	return errors.Join(errs...)
}
