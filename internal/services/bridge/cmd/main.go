package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	"github.com/smartgarden/pumpbridge/internal/gardena"
	"github.com/smartgarden/pumpbridge/internal/services/auth"
	"github.com/smartgarden/pumpbridge/internal/services/bridge"
	"github.com/smartgarden/pumpbridge/internal/services/pump"
	"github.com/smartgarden/pumpbridge/internal/services/registration"
	"github.com/smartgarden/pumpbridge/internal/services/statestore"
	"github.com/smartgarden/pumpbridge/internal/services/telemetry"
	"github.com/smartgarden/pumpbridge/pkg/dedup"
	"github.com/smartgarden/pumpbridge/pkg/kvstore"
	"github.com/smartgarden/pumpbridge/pkg/logging"
	"github.com/smartgarden/pumpbridge/pkg/mqtt"
)

func main() {
	cfg, err := loadConfig()
	logger := logging.New(cfg.LogLevel, os.Stdout)
	log := logger.Get("bridge")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === KV store ===
	var inner kvstore.Store
	switch cfg.KVBackend {
	case "redis":
		rs, err := kvstore.NewRedisStore(ctx, kvstore.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger.Get("kvstore"))
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer rs.Close()
		inner = rs
	case "memory":
		inner = kvstore.NewMemory()
	default:
		if cfg.KVRestURL == "" {
			ds, err := kvstore.Default(logger.Get("kvstore"))
			if err != nil {
				log.Fatalf("kv rest: %v", err)
			}
			inner = ds
			break
		}
		rs, err := kvstore.NewRESTStore(kvstore.RESTConfig{
			URL:     cfg.KVRestURL,
			Token:   cfg.KVRestToken,
			Timeout: cfg.httpTimeout(),
		}, logger.Get("kvstore"))
		if err != nil {
			log.Fatalf("kv rest: %v", err)
		}
		inner = rs
	}
	kv := kvstore.NewCached(inner)

	// === Core components ===
	api := gardena.NewClient(kv, cfg.httpTimeout(), logger.Get("gardena"))
	authMgr := auth.NewManager(kv, api, cfg.httpTimeout(), logger.Get("auth"))
	regMgr := registration.NewManager(kv, api, logger.Get("registration"))
	states := statestore.New(kv, logger.Get("statestore"))
	engine := pump.NewEngine(kv, states, api, logger.Get("pump"))

	// === Optional MQTT decision channel ===
	if cfg.MQTTEnabled {
		client, err := mqtt.NewConn(ctx, mqtt.Config{
			Host:     cfg.MQTTHost,
			Port:     cfg.MQTTPort,
			User:     cfg.MQTTUser,
			Password: cfg.MQTTPassword,
			ClientID: getenv("HOSTNAME", "pump-bridge"),
		}, logger.Get("mqtt"))
		if err != nil {
			log.Fatalf("mqtt: %v", err)
		}
		engine.SetPublisher(mqtt.NewPublisher(client, cfg.MQTTTopic, logger.Get("mqtt")))
	}

	// === Optional Influx telemetry ===
	var sink *telemetry.Writer
	if cfg.InfluxEnabled {
		influx := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
		defer influx.Close()
		sink = telemetry.NewWriter(influx.WriteAPI(cfg.InfluxOrg, cfg.InfluxBucket), logger.Get("telemetry"))
		defer sink.Flush()
	}

	var deduper *dedup.Deduper
	if cfg.DedupTTLSeconds > 0 {
		deduper = dedup.New(time.Duration(cfg.DedupTTLSeconds)*time.Second, 10000)
	}

	app := bridge.New(kv, api, authMgr, regMgr, states, engine, bridge.Options{
		VerifySignature: cfg.VerifySignature,
		Deduper:         deduper,
		Telemetry:       sink,
	}, log)

	hs := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Infof("listening on :%s", cfg.Port)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		log.Warnf("shutdown: %v", err)
	}
}
