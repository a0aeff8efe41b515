/*
DESCRIPTION
  sensor_test.go provides testing for the sensor registry and drivers using
  an in-memory bus.

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
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ausocean/utils/logging"
)

func TestRegistry(t *testing.T) {
	want := []string{"ov02c10", "ov5647", "sim"}
	if got := Names(); !cmp.Equal(got, want) {
		t.Errorf("unexpected driver names\nGot: %v\nWant: %v", got, want)
	}

	_, err := New("imx219", NewMemBus(nil), 0, (*logging.TestLogger)(t))
	if !errors.Is(err, ErrUnknownSensor) {
		t.Errorf("expected ErrUnknownSensor, got: %v", err)
	}

	info, ok := Lookup("ov5647")
	if !ok || info != OV5647Info {
		t.Errorf("unexpected lookup result: %v, %v", info, ok)
	}
}

func TestReadID(t *testing.T) {
	for _, info := range []Info{OV5647Info, OV02C10Info, SimInfo} {
		bus := NewMemBusFor(info)
		s, err := New(info.Name, bus, 0, (*logging.TestLogger)(t))
		if err != nil {
			t.Fatalf("could not create %s: %v", info.Name, err)
		}
		pid, err := s.ReadID()
		if err != nil {
			t.Fatalf("did not expect error reading %s id: %v", info.Name, err)
		}
		if pid != info.PID {
			t.Errorf("unexpected pid for %s: got %#04x, want %#04x", info.Name, pid, info.PID)
		}
	}
}

func TestInit(t *testing.T) {
	var slept []time.Duration
	sleep = func(d time.Duration) { slept = append(slept, d) }
	defer func() { sleep = time.Sleep }()

	tests := []struct {
		name  string
		table []regval
	}{
		{"ov5647", ov5647Init},
		{"ov02c10", ov02c10Init},
	}

	for _, test := range tests {
		slept = nil
		bus := NewMemBus(nil)
		s, err := New(test.name, bus, 0, (*logging.TestLogger)(t))
		if err != nil {
			t.Fatalf("could not create %s: %v", test.name, err)
		}
		err = s.Init()
		if err != nil {
			t.Fatalf("did not expect error initialising %s: %v", test.name, err)
		}

		writes := bus.Writes()
		if len(writes) != len(test.table) {
			t.Fatalf("unexpected number of writes for %s: got %d, want %d", test.name, len(writes), len(test.table))
		}
		for i, w := range writes {
			if w.Addr != 0x36 || w.Reg != test.table[i].addr || w.Val != test.table[i].val {
				t.Errorf("unexpected write %d for %s: %+v", i, test.name, w)
			}
		}
		if !cmp.Equal(slept, []time.Duration{10 * time.Millisecond}) {
			t.Errorf("unexpected delays for %s: %v", test.name, slept)
		}
	}
}

func TestOV5647Gain(t *testing.T) {
	if len(ov5647Gains) != 64 {
		t.Fatalf("unexpected gain table length: %d", len(ov5647Gains))
	}
	if ov5647Gains[0] != 0x10 || ov5647Gains[16] != 0x20 || ov5647Gains[32] != 0x40 || ov5647Gains[63] != 0xf8 {
		t.Errorf("unexpected gain table: % x", ov5647Gains)
	}

	tests := []struct {
		index uint32
		want  []Write
	}{
		{0, []Write{{0x36, ov5647GainH, 0}, {0x36, ov5647GainL, 0x10}}},
		{17, []Write{{0x36, ov5647GainH, 0}, {0x36, ov5647GainL, 0x22}}},
		{1000, []Write{{0x36, ov5647GainH, 0}, {0x36, ov5647GainL, 0xf8}}},
	}

	for i, test := range tests {
		bus := NewMemBus(nil)
		s := NewOV5647(NewSCCB(bus, 0x36), (*logging.TestLogger)(t))
		err := s.SetGain(test.index)
		if err != nil {
			t.Fatalf("did not expect error for test %d: %v", i, err)
		}
		if got := bus.Writes(); !cmp.Equal(got, test.want) {
			t.Errorf("unexpected writes for test %d\nGot: %v\nWant: %v", i, got, test.want)
		}
	}
}

func TestExposure(t *testing.T) {
	tests := []struct {
		new      NewFunc
		exposure uint32
		want     []Write
	}{
		{
			new:      NewOV5647,
			exposure: 0x9c0,
			want:     []Write{{0x36, regExposureH, 0x00}, {0x36, regExposureM, 0x09}, {0x36, regExposureL, 0xc0}},
		},
		{
			new:      NewOV02C10,
			exposure: 0x1234,
			want: []Write{
				{0x36, ov02c10GroupHold, groupHoldStart},
				{0x36, regExposureH, 0x01},
				{0x36, regExposureM, 0x23},
				{0x36, regExposureL, 0x40},
				{0x36, ov02c10GroupHold, groupHoldLaunch},
			},
		},
	}

	for i, test := range tests {
		bus := NewMemBus(nil)
		s := test.new(NewSCCB(bus, 0x36), (*logging.TestLogger)(t))
		err := s.SetExposure(test.exposure)
		if err != nil {
			t.Fatalf("did not expect error for test %d: %v", i, err)
		}
		if got := bus.Writes(); !cmp.Equal(got, test.want) {
			t.Errorf("unexpected writes for test %d\nGot: %v\nWant: %v", i, got, test.want)
		}
	}
}

func TestOV02C10Gain(t *testing.T) {
	if len(ov02c10Gains) != 160 {
		t.Fatalf("unexpected gain table length: %d", len(ov02c10Gains))
	}

	tests := []struct {
		index uint32
		want  []Write
	}{
		{
			index: 33,
			want: []Write{
				{0x36, ov02c10GroupHold, groupHoldStart},
				{0x36, ov02c10DigFineH, 0x84 >> 2},
				{0x36, ov02c10DigFineL, 0x00},
				{0x36, ov02c10DigCoarse, 0x01},
				{0x36, ov02c10Analog, 0x02},
				{0x36, ov02c10GroupHold, groupHoldLaunch},
			},
		},
		{
			index: 500,
			want: []Write{
				{0x36, ov02c10GroupHold, groupHoldStart},
				{0x36, ov02c10DigFineH, 0x3f},
				{0x36, ov02c10DigFineL, 0x00},
				{0x36, ov02c10DigCoarse, 0x01},
				{0x36, ov02c10Analog, 0x05},
				{0x36, ov02c10GroupHold, groupHoldLaunch},
			},
		},
	}

	for i, test := range tests {
		bus := NewMemBus(nil)
		s := NewOV02C10(NewSCCB(bus, 0x36), (*logging.TestLogger)(t))
		err := s.SetGain(test.index)
		if err != nil {
			t.Fatalf("did not expect error for test %d: %v", i, err)
		}
		if got := bus.Writes(); !cmp.Equal(got, test.want) {
			t.Errorf("unexpected writes for test %d\nGot: %v\nWant: %v", i, got, test.want)
		}
	}
}

func TestBusError(t *testing.T) {
	errBus := errors.New("bus fault")
	bus := NewMemBusFor(OV5647Info)
	s := NewOV5647(NewSCCB(bus, 0x36), (*logging.TestLogger)(t))
	bus.SetError(errBus)

	err := s.StartStream()
	if !errors.Is(err, errBus) {
		t.Errorf("expected bus error from StartStream, got: %v", err)
	}
	_, err = s.ReadID()
	if !errors.Is(err, errBus) {
		t.Errorf("expected bus error from ReadID, got: %v", err)
	}

	bus.SetError(nil)
	err = s.StartStream()
	if err != nil {
		t.Fatalf("did not expect error after clearing fault: %v", err)
	}
	if bus.Register(regStreamMode) != streamOn {
		t.Error("stream mode register not set")
	}
}

func TestSimResize(t *testing.T) {
	s := NewSim(NewSCCB(NewMemBus(nil), 0x36), (*logging.TestLogger)(t))
	r, ok := s.(Resizer)
	if !ok {
		t.Fatal("sim sensor does not implement Resizer")
	}
	if err := r.SetResolution(0, 10); err != ErrBadResolution {
		t.Errorf("expected ErrBadResolution, got: %v", err)
	}
	if err := r.SetResolution(640, 480); err != nil {
		t.Fatalf("did not expect error: %v", err)
	}
	if info := s.Info(); info.Width != 640 || info.Height != 480 {
		t.Errorf("unexpected geometry: %dx%d", info.Width, info.Height)
	}
	if SimInfo.Width != 1280 {
		t.Error("resizing modified the registered sensor info")
	}
}
