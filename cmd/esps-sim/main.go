// Command esps-sim runs a simulated ESPixelStick. It serves the WebSocket
// protocol on /ws plus the file and firmware endpoints, and can announce
// itself over mDNS so espsctl discover finds it.
//
// Usage:
//
//	esps-sim [flags]
//
// Examples:
//
//	esps-sim -addr :8080 -device-id porch
//	esps-sim -advertise -protocol-log sim.elog
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/espixelstick/esps-go/internal/devicesim"
	"github.com/espixelstick/esps-go/pkg/config"
	"github.com/espixelstick/esps-go/pkg/discovery"
	protolog "github.com/espixelstick/esps-go/pkg/log"
	"golang.org/x/sync/errgroup"
)

var (
	addr        = flag.String("addr", ":8080", "Listen address")
	deviceID    = flag.String("device-id", "esps-sim", "Device ID and mDNS instance name")
	version     = flag.String("version", "", "Firmware version reported to clients")
	pixels      = flag.Int("pixels", 24, "Bytes per pixel snapshot")
	clockOffset = flag.Duration("clock-offset", 0, "Device clock offset from host time")
	logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	protoLog    = flag.String("protocol-log", "", "Write a protocol capture to this file")
	advertise   = flag.Bool("advertise", false, "Announce the device over mDNS")
	iface       = flag.String("iface", "", "Network interface for mDNS (default: all)")
)

func main() {
	flag.Parse()

	level, err := config.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		logger.Error("simulator failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg := devicesim.Config{
		DeviceID:    *deviceID,
		Version:     *version,
		Pixels:      *pixels,
		ClockOffset: *clockOffset,
		Logger:      logger,
	}
	if *protoLog != "" {
		fl, err := protolog.NewFileLogger(*protoLog)
		if err != nil {
			return fmt.Errorf("open protocol log: %w", err)
		}
		defer fl.Close()
		cfg.ProtocolLogger = fl
	}
	device := devicesim.New(cfg)

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		return err
	}
	server := &http.Server{Handler: device, ReadHeaderTimeout: 10 * time.Second}

	port := ln.Addr().(*net.TCPAddr).Port
	logger.Info("simulator listening", "addr", ln.Addr().String(), "device", *deviceID,
		"url", discovery.WebSocketURL("localhost", uint16(port)))

	if *advertise {
		adv := discovery.NewMDNSAdvertiser(*iface, logger)
		info := discovery.AdvertiseInfo{
			Instance:     *deviceID,
			Port:         uint16(port),
			Manufacturer: "esps-sim",
		}
		if err := adv.Advertise(info); err != nil {
			ln.Close()
			return err
		}
		defer adv.Stop()
		logger.Info("advertising over mDNS", "instance", info.Instance, "port", port)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		device.DropAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
