/*
DESCRIPTION
  vars_test.go provides tests for reading and watching the local variables
  file.

AUTHORS
  The AusOcean Team <info@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ausocean/utils/logging"
)

func TestParseVars(t *testing.T) {
	tests := []struct {
		in      string
		want    map[string]string
		wantErr bool
	}{
		{
			in:   "",
			want: map[string]string{},
		},
		{
			in: "# camera\nSensor=ov5647\n\n  AETarget = 100 \nCCMMatrix=1,0,0,0,1,0,0,0,1\n",
			want: map[string]string{
				"Sensor":    "ov5647",
				"AETarget":  "100",
				"CCMMatrix": "1,0,0,0,1,0,0,0,1",
			},
		},
		{
			in:      "Sensor=ov5647\nRotation\n",
			wantErr: true,
		},
	}

	for i, test := range tests {
		got, err := parseVars(strings.NewReader(test.in))
		if (err != nil) != test.wantErr {
			t.Errorf("did not get expected error for test %d: %v", i, err)
			continue
		}
		if test.wantErr {
			continue
		}
		if diff := cmp.Diff(test.want, got); diff != "" {
			t.Errorf("unexpected vars for test %d (-want +got):\n%s", i, diff)
		}
	}
}

func TestWatchVars(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camd.vars")
	err := os.WriteFile(path, []byte("AETarget=128\n"), 0644)
	if err != nil {
		t.Fatalf("could not write vars file: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan map[string]string, 10)
	done := make(chan error)
	go func() {
		done <- watchVars(ctx, path, func(v map[string]string) { got <- v }, (*logging.TestLogger)(t))
	}()

	// Give the watcher time to start before writing.
	want := map[string]string{"AETarget": "90"}
	deadline := time.After(5 * time.Second)
	for {
		err = os.WriteFile(path, []byte("AETarget=90\n"), 0644)
		if err != nil {
			t.Fatalf("could not write vars file: %v", err)
		}
		select {
		case v := <-got:
			if diff := cmp.Diff(want, v); diff != "" {
				t.Errorf("unexpected vars (-want +got):\n%s", diff)
			}
			cancel()
			<-done
			return
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("timed out waiting for vars")
		}
	}
}
