/*
DESCRIPTION
  registry.go provides a registry mapping sensor names to driver
  constructors.

AUTHORS
  The AusOcean Team <info@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package sensor

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/ausocean/utils/logging"
)

// NewFunc constructs a driver that talks to its sensor through r.
type NewFunc func(r *SCCB, l logging.Logger) Sensor

type driver struct {
	info Info
	new  NewFunc
}

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]driver)
)

// Register makes a driver available by info.Name. Register panics if a
// driver is registered twice or fn is nil.
func Register(info Info, fn NewFunc) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if fn == nil {
		panic("sensor: Register driver is nil")
	}
	if _, dup := drivers[info.Name]; dup {
		panic("sensor: Register called twice for driver " + info.Name)
	}
	drivers[info.Name] = driver{info: info, new: fn}
}

// Names returns the sorted names of the registered drivers.
func Names() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	n := make([]string, 0, len(drivers))
	for name := range drivers {
		n = append(n, name)
	}
	sort.Strings(n)
	return n
}

// Lookup returns the Info of the named driver.
func Lookup(name string) (Info, bool) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	d, ok := drivers[name]
	return d.info, ok
}

// New returns the named driver for a sensor on bus. If addr is zero the
// driver's default address is used.
func New(name string, bus Bus, addr uint8, l logging.Logger) (Sensor, error) {
	driversMu.RLock()
	d, ok := drivers[name]
	driversMu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrUnknownSensor, "%q", name)
	}
	if addr == 0 {
		addr = d.info.Address
	}
	return d.new(NewSCCB(bus, addr), l), nil
}
