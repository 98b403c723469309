package bridge

import (
	"context"
	"net/http"
	"time"

	"github.com/smartgarden/pumpbridge/pkg/kvstore"
)

// telemetry errors older than this no longer degrade health
const telemetryErrorWindow = 5 * time.Minute

// probeKV checks backend reachability past any read cache. A store without
// a ping capability is probed with a direct read.
func (a *App) probeKV(ctx context.Context) error {
	if p, ok := a.kv.(kvstore.Pinger); ok {
		return p.Ping(ctx)
	}
	_, _, err := a.kv.Get(ctx, kvstore.KeyRegistered)
	return err
}

// handleHealthz reports liveness plus a coarse health verdict: down when
// the KV store is unreachable, degraded when the telemetry sink saw a
// recent write error.
func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	detail := map[string]string{}

	if err := a.probeKV(r.Context()); err != nil {
		status = "down"
		detail["kv"] = err.Error()
	}
	if age := a.sink.LastErrorAge(); age >= 0 && age < telemetryErrorWindow {
		if status == "ok" {
			status = "degraded"
		}
		detail["telemetry"] = "recent write error"
	}

	code := http.StatusOK
	if status == "down" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"status": status, "detail": detail})
}

// handleReadyz gates traffic on KV reachability only. The upstream API
// being down is not a readiness failure: deliveries still need a 2xx so
// the vendor does not disable the webhook.
func (a *App) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := a.probeKV(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unready", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
