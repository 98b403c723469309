package bridge

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/smartgarden/pumpbridge/internal/model"
	"github.com/smartgarden/pumpbridge/internal/model/messages"
	"github.com/smartgarden/pumpbridge/internal/services/statestore"
	"github.com/smartgarden/pumpbridge/pkg/dedup"
)

var relevantModelTypes = map[string]bool{
	model.ModelIrrigationControl: true,
	model.ModelWaterControl:      true,
}

// handleWebhook ingests one push-notification delivery. The raw body is
// read in full before any parsing since the signature covers the exact
// byte stream. Token freshness is verified before events are touched;
// processing then runs merge-then-reconcile sequentially so the pump
// decision observes the just-merged state.
func (a *App) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		a.log.Errorf("webhook: reading body: %v", err)
		writeText(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if a.verifySignature {
		if status, msg := a.checkSignature(ctx, rawBody, r.Header.Get(signatureHeader)); status != 0 {
			webhookBatches.WithLabelValues("rejected").Inc()
			writeText(w, status, msg)
			return
		}
	}

	if a.dedup != nil {
		if !a.dedup.FirstDelivery(dedup.Fingerprint(rawBody)) {
			a.log.Info("webhook: duplicate delivery ignored")
			webhookBatches.WithLabelValues("duplicate").Inc()
			writeText(w, http.StatusOK, "Duplicate delivery ignored")
			return
		}
	}

	// Fail closed: never process events or issue commands on a possibly
	// stale token.
	if err := a.auth.EnsureFresh(ctx); err != nil {
		a.log.Errorf("webhook: token check failed: %v", err)
		webhookBatches.WithLabelValues("error").Inc()
		writeText(w, http.StatusInternalServerError, "Error refreshing access token")
		return
	}

	var notification messages.PushNotification
	if err := json.Unmarshal(rawBody, &notification); err != nil {
		a.log.Warnf("webhook: bad JSON body: %v", err)
		webhookBatches.WithLabelValues("invalid").Inc()
		writeText(w, http.StatusBadRequest, "Error parsing JSON body")
		return
	}

	events, ok := notification.Events()
	if !ok {
		webhookBatches.WithLabelValues("invalid").Inc()
		writeText(w, http.StatusBadRequest, "Invalid event data")
		return
	}

	if !relevantBatch(events) {
		a.log.Info("webhook: no relevant modelType in batch, dropping")
		webhookBatches.WithLabelValues("dropped").Inc()
		writeText(w, http.StatusOK, "Event ignored due to irrelevant modelType.")
		return
	}

	if err := a.states.Merge(ctx, events); err != nil {
		a.log.Errorf("webhook: merge failed: %v", err)
		webhookBatches.WithLabelValues("error").Inc()
		writeText(w, http.StatusInternalServerError, "Error processing events")
		return
	}
	a.sink.RecordEvents(events)

	cmd, watering, err := a.pump.Reconcile(ctx)
	if err != nil {
		a.log.Errorf("webhook: pump reconcile failed: %v", err)
		webhookBatches.WithLabelValues("error").Inc()
		pumpCommands.WithLabelValues(string(cmd), "error").Inc()
		writeText(w, http.StatusInternalServerError, "Error processing events")
		return
	}
	pumpCommands.WithLabelValues(string(cmd), "ok").Inc()
	a.recordDecision(ctx, cmd, watering)

	webhookBatches.WithLabelValues("processed").Inc()
	writeText(w, http.StatusOK, "Event received and processed")
}

func relevantBatch(events []messages.DeviceEvent) bool {
	for _, ev := range events {
		if ev.Type == "COMMON" && relevantModelTypes[ev.ModelType()] {
			return true
		}
	}
	return false
}

func (a *App) recordDecision(ctx context.Context, cmd model.PumpCommand, watering []string) {
	if a.sink == nil {
		return
	}
	cfg, err := statestore.LoadPumpValves(ctx, a.kv)
	if err != nil {
		return
	}
	a.sink.RecordDecision(cfg.PumpID, cmd, watering)
}
