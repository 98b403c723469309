package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/smartgarden/pumpbridge/internal/model"
	"github.com/smartgarden/pumpbridge/internal/simulator"
	"github.com/smartgarden/pumpbridge/pkg/logging"
)

func main() {
	target := flag.String("target", "http://localhost:8080/api/webhook", "bridge webhook URL")
	secret := flag.String("secret", "", "HMAC secret, empty to send unsigned")
	locationID := flag.String("location-id", "loc-1", "location id for the envelope")
	valves := flag.String("valves", "valve-1,valve-2", "comma-separated valve ids")
	modelType := flag.String("model-type", model.ModelIrrigationControl, "device modelType in COMMON events")
	duty := flag.Float64("duty", 0.4, "probability a valve is watering after a tick")
	interval := flag.Duration("interval", 15*time.Second, "delivery interval")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	log := logging.New(*logLevel, os.Stdout).Get("simulator")

	var valveIDs []string
	for _, v := range strings.Split(*valves, ",") {
		if s := strings.TrimSpace(v); s != "" {
			valveIDs = append(valveIDs, s)
		}
	}
	if len(valveIDs) == 0 {
		log.Fatal("at least one valve id is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		cancel()
	}()

	gen := simulator.NewEventGenerator(*locationID, *modelType, valveIDs, *duty, time.Now().UnixNano())
	sim := simulator.New(*target, *secret, gen, log)

	log.Infof("delivering to %s every %s", *target, *interval)
	sim.Start(ctx, *interval)
}
