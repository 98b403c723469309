package bridge

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/smartgarden/pumpbridge/internal/gardena"
	"github.com/smartgarden/pumpbridge/internal/services/auth"
	"github.com/smartgarden/pumpbridge/internal/services/pump"
	"github.com/smartgarden/pumpbridge/internal/services/registration"
	"github.com/smartgarden/pumpbridge/internal/services/statestore"
	"github.com/smartgarden/pumpbridge/internal/services/telemetry"
	"github.com/smartgarden/pumpbridge/pkg/dedup"
	"github.com/smartgarden/pumpbridge/pkg/kvstore"
)

// App wires the webhook ingress, the control API and the OAuth endpoints
// around the shared components.
type App struct {
	kv     kvstore.Store
	api    *gardena.Client
	auth   *auth.Manager
	reg    *registration.Manager
	states *statestore.Store
	pump   *pump.Engine
	sink   *telemetry.Writer // optional, nil-safe
	dedup  *dedup.Deduper    // optional duplicate-delivery guard
	log    *logrus.Entry

	// verifySignature gates the HMAC check on the webhook. On by default;
	// the switch exists for local debugging only.
	verifySignature bool
}

type Options struct {
	VerifySignature bool
	Deduper         *dedup.Deduper
	Telemetry       *telemetry.Writer
}

func New(kv kvstore.Store, api *gardena.Client, am *auth.Manager, rm *registration.Manager,
	st *statestore.Store, pe *pump.Engine, opts Options, log *logrus.Entry) *App {
	return &App{
		kv:              kv,
		api:             api,
		auth:            am,
		reg:             rm,
		states:          st,
		pump:            pe,
		sink:            opts.Telemetry,
		dedup:           opts.Deduper,
		verifySignature: opts.VerifySignature,
		log:             log,
	}
}

// Routes builds the HTTP mux for the service.
func (a *App) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/webhook", a.handleWebhook)
	mux.HandleFunc("/api/gardena", a.handleGardena)
	mux.HandleFunc("/api/oauth", a.handleOAuth)
	mux.HandleFunc("/api/config", a.handleConfig)
	mux.HandleFunc("/api/status", a.handleStatus)
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.HandleFunc("/readyz", a.handleReadyz)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
