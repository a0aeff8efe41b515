/*
DESCRIPTION
  camd is a netsender client that runs a MIPI camera, with capture, ISP and
  display settings controllable via the cloud or a local variables file.

AUTHORS
  The AusOcean Team <info@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package camd is a netsender client for a MIPI camera.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/client/pi/netlogger"
	"github.com/ausocean/client/pi/netsender"
	"github.com/ausocean/mipicam/cam"
	"github.com/ausocean/mipicam/cam/config"
	"github.com/ausocean/utils/logging"
)

// Current software version.
const version = "v0.1.0"

// Logging configuration.
const (
	logPath      = "/var/log/netsender/netsender.log"
	logMaxSize   = 500 // MB
	logMaxBackup = 10
	logMaxAge    = 28 // days
	logVerbosity = logging.Info
	logSuppress  = true
)

// Camera modes.
const (
	modeNormal    = "Normal"
	modePaused    = "Paused"
	modeCompleted = "Completed"
)

// Misc constants.
const (
	netSendRetryTime = 5 * time.Second
	defaultSleepTime = 60 // Seconds
	defaultSimFPS    = 30
	pkg              = "camd: "
)

// systemd notification states.
const (
	sdReady    = "READY=1"
	sdStopping = "STOPPING=1"
)

// Software defined pin values.
const (
	bitratePin  = "X36"
	exposurePin = "X40"
	gainPin     = "X41"
	lumaPin     = "X42"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "show version")
		varsPath    = flag.String("vars", "", "path of a local variables file, watched for changes")
		simFPS      = flag.Uint("sim-fps", defaultSimFPS, "frame rate of the simulated capture controller")
		simSensor   = flag.Bool("sim", false, "simulate the sensor instead of using the I2C bus")
	)
	flag.Parse()
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// Create lumberjack logger to handle logging to file.
	fileLog := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}

	// Create netlogger to handle logging to cloud.
	netLog := netlogger.New()

	// Create logger that we call methods on to log, which in turn writes to the
	// lumberjack and netloggers.
	log := logging.New(logVerbosity, io.MultiWriter(fileLog, netLog), logSuppress)
	log.Info("starting camd", "version", version)

	cfg := config.Config{Logger: log, LogLevel: logVerbosity}
	var local map[string]string
	if *varsPath != "" {
		var err error
		local, err = readVars(*varsPath)
		if err != nil {
			log.Error(pkg+"could not read vars file", "path", *varsPath, "error", err.Error())
		}
		cfg.Update(local)
	}
	if cfg.Sensor == "" && *simSensor {
		cfg.Sensor = "sim"
	}

	driver := &simDriver{}
	hw, release, err := newHardware(cfg, *simSensor, driver, log)
	if err != nil {
		log.Fatal(pkg+"could not set up hardware", "error", err.Error())
	}
	defer release()

	c, err := cam.New(cfg, hw)
	if err != nil {
		log.Fatal(pkg+"could not initialise cam", "error", err.Error())
	}
	defer func() {
		err := c.Close()
		if err != nil {
			log.Error(pkg+"could not close cam", "error", err.Error())
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		err := c.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error(pkg+"capture loop stopped", "error", err.Error())
		}
	}()
	if *simFPS != 0 {
		go driver.run(ctx, *simFPS)
	}
	go plotLoop(ctx, c, log)

	applyMode(c, local[config.KeyMode], log)
	if *varsPath != "" {
		go func() {
			err := watchVars(ctx, *varsPath, func(vars map[string]string) {
				update(c, vars, log)
				applyMode(c, vars[config.KeyMode], log)
			}, log)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error(pkg+"stopped watching vars file", "error", err.Error())
			}
		}()
	}

	log.Debug("initialising netsender client")
	ns, err := netsender.New(
		log,
		nil,
		readPin(c, log),
		nil,
		netsender.WithVarTypes(createVarMap()),
	)
	if err != nil {
		log.Error(pkg+"could not initialise netsender client, using local vars only", "error", err.Error())
	}

	notify(log, sdReady)
	if ns != nil {
		log.Debug("beginning main loop")
		run(ctx, c, ns, log, netLog)
	} else {
		<-ctx.Done()
	}
	notify(log, sdStopping)
	log.Info("stopping camd")
}

// notify sends state to systemd, if camd is running as a notify service.
func notify(l logging.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		l.Warning(pkg+"could not notify systemd", "state", state, "error", err.Error())
		return
	}
	l.Debug(pkg+"notified systemd", "state", state, "sent", sent)
}

// run starts the main loop. This will run netsender on every pass of the loop
// (sleeping inbetween), check vars, and if changed, update the cam as
// appropriate. run returns when ctx is done.
func run(ctx context.Context, c *cam.Cam, ns *netsender.Sender, l logging.Logger, nl *netlogger.Logger) {
	var vs int
	for ctx.Err() == nil {
		l.Debug("running netsender")
		err := ns.Run()
		if err != nil {
			l.Warning(pkg+"Run Failed. Retrying...", "error", err.Error())
			wait(ctx, netSendRetryTime)
			continue
		}

		l.Debug("sending logs")
		err = nl.Send(ns)
		if err != nil {
			l.Warning(pkg+"Logs could not be sent", "error", err.Error())
		}

		l.Debug("checking varsum")
		newVs := ns.VarSum()
		if vs == newVs {
			sleep(ctx, ns, l)
			continue
		}
		vs = newVs
		l.Info("varsum changed", "vs", vs)

		l.Debug("getting new vars")
		vars, err := ns.Vars()
		if err != nil {
			l.Error(pkg+"netSender failed to get vars", "error", err.Error())
			wait(ctx, netSendRetryTime)
			continue
		}
		l.Debug("got new vars", "vars", vars)

		update(c, vars, l)

		l.Debug("checking mode")
		if !applyMode(c, ns.Mode(), l) {
			ns.SetMode(modePaused)
		}
		sleep(ctx, ns, l)
	}
}

// update applies vars to the cam.
func update(c *cam.Cam, vars map[string]string, l logging.Logger) {
	l.Debug("updating cam's configuration")
	err := c.Update(vars)
	if err != nil {
		l.Warning(pkg+"couldn't update cam", "error", err.Error())
		return
	}
	l.Info("cam successfully reconfigured")
}

// applyMode starts or stops the cam for mode. It returns false if the cam
// could not be started.
func applyMode(c *cam.Cam, mode string, l logging.Logger) bool {
	switch mode {
	case modePaused, modeCompleted:
		l.Debug("mode is Paused or Completed, stopping cam")
		err := c.Stop()
		if err != nil {
			l.Error(pkg+"could not stop cam", "error", err.Error())
		}
	case modeNormal, "":
		l.Debug("mode is Normal, starting cam")
		err := c.Start()
		if err != nil {
			l.Error(pkg+"could not start cam", "error", err.Error())
			return false
		}
	default:
		l.Warning(pkg+"unknown mode", "mode", mode)
	}
	return true
}

func createVarMap() map[string]string {
	m := make(map[string]string)
	for _, v := range config.Variables {
		m[v.Name] = v.Type
	}
	return m
}

// sleep uses a delay to halt the program based on the monitoring period
// netsender parameter (mp) defined in the netsender.conf config.
func sleep(ctx context.Context, ns *netsender.Sender, l logging.Logger) {
	l.Debug("sleeping")
	t, err := strconv.Atoi(ns.Param("mp"))
	if err != nil {
		l.Error(pkg+"could not get sleep time, using default", "error", err)
		t = defaultSleepTime
	}
	wait(ctx, time.Duration(t)*time.Second)
	l.Debug("finished sleeping")
}

// wait blocks for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// readPin provides a callback function of consistent signature for use by
// netsender to retrieve software defined pin values e.g. cam bitrate.
func readPin(c *cam.Cam, l logging.Logger) func(pin *netsender.Pin) error {
	return func(pin *netsender.Pin) error {
		switch pin.Name {
		case bitratePin:
			pin.Value = c.Bitrate()
		case exposurePin:
			pin.Value = int(c.Camera().Exposure().Exposure)
		case gainPin:
			pin.Value = int(c.Camera().Exposure().Gain)
		case lumaPin:
			pin.Value = -1
			if p, ok := c.Pipeline(); ok {
				pin.Value = int(p.Luma())
				l.Debug("setting luma pin", "luma", pin.Value)
			}
		}
		return nil
	}
}
