package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v2"
	bolt "go.etcd.io/bbolt"

	"github.com/lumed-mtl/lumed-HL2000-HP-232R/pkg/drivers/hl2000"
	"github.com/lumed-mtl/lumed-HL2000-HP-232R/pkg/drivers/lampsim"
	"github.com/lumed-mtl/lumed-HL2000-HP-232R/pkg/lamp"
	"github.com/lumed-mtl/lumed-HL2000-HP-232R/pkg/panel"
	"github.com/lumed-mtl/lumed-HL2000-HP-232R/pkg/serialport"
	"github.com/lumed-mtl/lumed-HL2000-HP-232R/pkg/telemetry"
	"github.com/lumed-mtl/lumed-HL2000-HP-232R/templates"
)

const driverVersion = "1.0.0"

func run(c *cli.Context) error {
	if c.Bool("debug") {
		log.SetLevel(log.DebugLevel)
	}

	log.Info("HL-2000 Lamp Panel")

	tmpl, err := templates.LoadTemplates()
	if err != nil {
		return fmt.Errorf("failed to load templates: %v", err)
	}

	db, err := bolt.Open(c.String("db"), 0600, nil)
	if err != nil {
		return fmt.Errorf("failed to open database: %v", err)
	}
	defer db.Close()

	store, err := hl2000.NewStore(db)
	if err != nil {
		return fmt.Errorf("failed to create store: %v", err)
	}

	var device lamp.Lamp
	if c.Bool("simulator") {
		log.Warn("Serving the simulated lamp, no hardware involved")
		device = lampsim.New(log.StandardLogger())
	} else {
		device = hl2000.NewDriver(store, log.StandardLogger())
	}
	defer func() {
		if err := device.Disconnect(); err != nil {
			log.Warnf("Failed to disconnect lamp: %v", err)
		}
	}()

	cfg, err := store.GetConfig()
	if err != nil {
		return fmt.Errorf("failed to load lamp config: %v", err)
	}
	finder := serialport.NewFinder(cfg.Serial, hl2000.ProbeCommand, hl2000.ProbeReplyMarker, log.StandardLogger())

	desc := panel.DeviceDescription{
		Name:          "HL-2000-HP-232R",
		Manufacturer:  "Ocean Optics",
		Model:         "HL-2000-HP-232R",
		DriverVersion: driverVersion,
		UniqueID:      "hl2000-panel",
	}
	server := panel.NewServer(desc, device, finder, store, tmpl, log.StandardLogger())

	mux := http.NewServeMux()
	server.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", c.Int("port")),
		Handler: mux,
	}

	monitor := lamp.NewMonitor(device, c.Duration("poll-interval"), log.StandardLogger())

	if broker := c.String("mqtt-broker"); broker != "" {
		pub, err := telemetry.NewPublisher(telemetry.Config{
			Broker:   broker,
			Username: c.String("mqtt-username"),
			Password: c.String("mqtt-password"),
			Topic:    c.String("mqtt-topic"),
		}, log.StandardLogger())
		if err != nil {
			return fmt.Errorf("failed to create telemetry publisher: %v", err)
		}
		defer pub.Close()

		telemetryLogger := log.WithField("component", "telemetry")
		monitor.OnSnapshot = func(snap lamp.Snapshot) {
			if err := pub.Publish(snap); err != nil {
				telemetryLogger.WithError(err).Warn("Telemetry publish failed")
			}
		}
	}

	// Channel to listen for interrupt or terminate signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		log.Debugf("Server started on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", srv.Addr, err)
		}
		wg.Done()
	}()

	wg.Add(1)
	go func() {
		monitor.Run(ctx)
		wg.Done()
		log.Debug("Monitor stopped")
	}()

	<-ctx.Done()

	log.Info("Shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx2); err != nil {
		return fmt.Errorf("server forced to shutdown: %v", err)
	}

	wg.Wait()
	log.Info("Server stopped")
	return nil
}

func main() {
	if err := godotenv.Load(); err == nil {
		log.Info("Loaded environment from .env file")
	}

	app := cli.App{
		Name:  "HL-2000 Lamp Panel",
		Usage: "Control panel for the Ocean Optics HL-2000-HP-232R halogen lamp",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable debug logging",
				Value:   false,
				EnvVars: []string{"DEBUG"},
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on",
				Value:   8080,
				EnvVars: []string{"PANEL_PORT"},
			},
			&cli.StringFlag{
				Name:    "db",
				Usage:   "Path of the configuration database",
				Value:   "hl2000.db",
				EnvVars: []string{"PANEL_DB"},
			},
			&cli.DurationFlag{
				Name:    "poll-interval",
				Usage:   "Lamp status poll interval",
				Value:   lamp.DefaultPollInterval,
				EnvVars: []string{"PANEL_POLL_INTERVAL"},
			},
			&cli.BoolFlag{
				Name:    "simulator",
				Usage:   "Serve a simulated lamp instead of real hardware",
				Value:   false,
				EnvVars: []string{"PANEL_SIMULATOR"},
			},
			&cli.StringFlag{
				Name:    "mqtt-broker",
				Usage:   "MQTT broker URL for telemetry, e.g. tcp://localhost:1883 (disabled when empty)",
				EnvVars: []string{"MQTT_BROKER"},
			},
			&cli.StringFlag{
				Name:    "mqtt-topic",
				Usage:   "MQTT topic telemetry is published to",
				Value:   "hl2000/telemetry",
				EnvVars: []string{"MQTT_TOPIC"},
			},
			&cli.StringFlag{
				Name:    "mqtt-username",
				Usage:   "MQTT broker username",
				EnvVars: []string{"MQTT_USERNAME"},
			},
			&cli.StringFlag{
				Name:    "mqtt-password",
				Usage:   "MQTT broker password",
				EnvVars: []string{"MQTT_PASSWORD"},
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
