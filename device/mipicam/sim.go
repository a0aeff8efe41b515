/*
DESCRIPTION
  sim.go provides a software capture controller which delivers frames on
  demand, for use without capture hardware and in testing.

AUTHORS
  The AusOcean Team <info@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package mipicam

import (
	"errors"
	"sync"
)

// SimController errors.
var (
	ErrNotEnabled = errors.New("controller not enabled")
	ErrNoCallback = errors.New("controller callbacks not registered")
)

// SimController is a Controller implemented in software. Each call to
// Deliver performs one DMA transfer: the fill callback obtains the target
// buffer, fill writes the frame and the completion callback is run.
type SimController struct {
	mu      sync.Mutex
	cfg     ControllerConfig
	cb      Callbacks
	enabled bool
	running bool

	// StartErr and StopErr, if set, are returned by Start and Stop.
	StartErr error
	StopErr  error
}

// NewSimController returns a SimController for the given configuration.
func NewSimController(cfg ControllerConfig) *SimController {
	return &SimController{cfg: cfg}
}

// SimFactory returns a ControllerFactory producing SimControllers. Each
// controller created is also passed to created, if not nil.
func SimFactory(created func(*SimController)) ControllerFactory {
	return func(cfg ControllerConfig) (Controller, error) {
		s := NewSimController(cfg)
		if created != nil {
			created(s)
		}
		return s, nil
	}
}

// Config returns the controller configuration.
func (s *SimController) Config() ControllerConfig { return s.cfg }

func (s *SimController) RegisterCallbacks(cb Callbacks) error {
	if cb.NewTransaction == nil || cb.TransactionDone == nil {
		return ErrNoCallback
	}
	s.mu.Lock()
	s.cb = cb
	s.mu.Unlock()
	return nil
}

func (s *SimController) Enable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cb.NewTransaction == nil {
		return ErrNoCallback
	}
	s.enabled = true
	return nil
}

func (s *SimController) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return ErrNotEnabled
	}
	if s.StartErr != nil {
		return s.StartErr
	}
	s.running = true
	return nil
}

func (s *SimController) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return s.StopErr
}

func (s *SimController) Disable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.enabled = false
	return nil
}

// Running reports whether the controller has been started.
func (s *SimController) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Deliver performs one transfer, returning false if the controller is not
// running. fill receives the target buffer and returns the number of bytes
// received; zero simulates an empty transfer.
func (s *SimController) Deliver(fill func(buf []byte) int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	t := &Transaction{}
	s.cb.NewTransaction(t)
	t.Received = fill(t.Buffer)
	s.cb.TransactionDone(t)
	return true
}
