//go:build !withcv
// +build !withcv

/*
DESCRIPTION
  engine_nocv.go selects the software engine for builds without OpenCV.

AUTHORS
  The AusOcean Team <info@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package transform

// DefaultEngine returns the Software engine.
func DefaultEngine() Engine { return Software{} }
