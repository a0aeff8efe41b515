/*
DESCRIPTION
  apply.go applies a capture configuration to a Pipeline.

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
	"slices"

	"github.com/ausocean/mipicam/cam/config"
)

// Apply sets the stage settings and enabled stages held by c. Unset
// parameters keep their current values, and only stages whose settings
// change are reconfigured. Static white balance gains are ignored while the
// AWB stage is enabled. Errors reconfiguring running stages are joined and
// returned; every setting is still stored.
func (p *Pipeline) Apply(c config.Config) error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	add(p.SetDenoisingLevel(c.DenoisingLevel))
	if m, ok := ParseMatrix(c.CCMMatrix); ok {
		add(p.SetCCMMatrix(m))
	}
	awb := p.StageEnabled(StageAWB)
	if c.ISPStages != nil {
		awb = slices.Contains(c.ISPStages, uint(StageAWB))
	}
	if len(c.WBGains) == 3 && !awb {
		add(p.SetWhiteBalance(c.WBGains[0], c.WBGains[1], c.WBGains[2]))
	}
	if sp := c.SharpenParams; len(sp) == 4 {
		add(p.SetSharpenParams(uint(max(sp[0], 0)), uint(max(sp[1], 0)), sp[2], sp[3]))
	}
	if c.Gamma != 0 {
		add(p.SetGammaCurve(c.Gamma))
	}
	add(p.SetDemosaicGradientRatio(c.DemosaicGradientRatio))
	add(p.SetBrightness(c.ISPBrightness))
	add(p.SetContrast(c.ISPContrast))
	add(p.SetSaturation(c.ISPSaturation))
	add(p.SetHue(c.ISPHue))

	if c.ISPStages != nil {
		for _, s := range Stages() {
			add(p.EnableStage(s, slices.Contains(c.ISPStages, uint(s))))
		}
	}
	return errors.Join(errs...)
}
