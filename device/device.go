/*
DESCRIPTION
  device.go provides AVDevice, an interface that describes a configurable
  video device that can be started and stopped from which frames may be
  obtained.

AUTHORS
  The AusOcean Team <info@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package device provides an interface for capture devices that can be
// configured, started and stopped, and from which frame data can be read.
package device

import (
	"fmt"
	"io"

	"github.com/ausocean/mipicam/cam/config"
)

// AVDevice describes a configurable video device from which frames can be
// obtained. AVDevice is an io.Reader.
type AVDevice interface {
	io.Reader

	// Name returns the name of the AVDevice.
	Name() string

	// Set allows for configuration of the AVDevice using a Config struct. All,
	// some or none of the fields of the Config struct may be used for
	// configuration by an implementation. An implementation should specify what
	// fields are considered.
	Set(c config.Config) error

	// Start will start the AVDevice capturing; after which the Read method may
	// be called to obtain data. The format of the data should be specified by
	// the implementation.
	Start() error

	// Stop will stop the AVDevice from capturing. From this point Reads will no
	// longer be successful.
	Stop() error

	// IsRunning is used to determine if the device is running.
	IsRunning() bool
}

// MultiError implements the built in error interface. MultiError is used to
// collect errors found during validation of configuration parameters for
// AVDevices.
type MultiError []error

func (me MultiError) Error() string {
	if len(me) == 0 {
		panic("device: invalid use of MultiError")
	}
	return fmt.Sprintf("%v", []error(me))
}
