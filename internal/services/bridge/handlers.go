package bridge

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/smartgarden/pumpbridge/internal/model"
	"github.com/smartgarden/pumpbridge/internal/model/messages"
	"github.com/smartgarden/pumpbridge/internal/services/statestore"
	"github.com/smartgarden/pumpbridge/pkg/kvstore"
)

const (
	defaultSmartHost = "https://api.smart.gardena.dev"
	defaultAuthHost  = "https://api.authentication.husqvarnagroup.dev"
	oauthScope       = "iam:read_organization sg-integration-api:read"
)

// handleGardena is the action-routed control API consumed by the operator
// UI.
func (a *App) handleGardena(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	action := r.URL.Query().Get("action")

	var body []byte
	if r.Method == http.MethodPost || r.Method == http.MethodPut {
		var err error
		body, err = io.ReadAll(r.Body)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	switch action {
	case "register-webhook":
		a.actionRegisterWebhook(w, r)

	case "update-device-states":
		var in struct {
			Events []messages.DeviceEvent `json:"events"`
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &in); err != nil {
				writeJSONError(w, http.StatusBadRequest, "Invalid JSON in request body")
				return
			}
		}
		if err := a.states.Merge(ctx, in.Events); err != nil {
			a.log.Errorf("control: update-device-states: %v", err)
			writeJSONError(w, http.StatusInternalServerError, "Failed to update device states: "+err.Error())
			return
		}
		writeJSONMessage(w, "Device states updated")

	case "handle-pump-state":
		cmd, watering, err := a.pump.Reconcile(ctx)
		if err != nil {
			a.log.Errorf("control: handle-pump-state: %v", err)
			pumpCommands.WithLabelValues(string(cmd), "error").Inc()
			writeJSONError(w, http.StatusInternalServerError, "Failed to handle pump state: "+err.Error())
			return
		}
		pumpCommands.WithLabelValues(string(cmd), "ok").Inc()
		a.recordDecision(ctx, cmd, watering)
		writeJSONMessage(w, "Pump state handled")

	case "save-pump-and-valves":
		var in struct {
			PumpID string   `json:"pumpId"`
			Valves []string `json:"valves"`
		}
		if err := json.Unmarshal(body, &in); err != nil {
			writeJSONError(w, http.StatusBadRequest, "Invalid JSON in request body")
			return
		}
		if in.PumpID == "" || len(in.Valves) == 0 {
			writeJSONError(w, http.StatusBadRequest, "Missing pumpId or valves")
			return
		}
		cfg := model.PumpValves{PumpID: in.PumpID, ValveIDs: in.Valves}
		if err := statestore.SavePumpValves(ctx, a.kv, cfg); err != nil {
			a.log.Errorf("control: save-pump-and-valves: %v", err)
			writeJSONError(w, http.StatusInternalServerError, "Failed to save pump and valves: "+err.Error())
			return
		}
		writeJSONMessage(w, "Pump and valves saved successfully")

	case "save-credentials":
		a.actionSaveCredentials(w, r, body)

	case "get-pump-valves":
		a.actionGetPumpValves(w, r)

	default:
		writeJSONError(w, http.StatusBadRequest, "Invalid action.")
	}
}

func (a *App) actionRegisterWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	locationID, _, _ := a.kv.Get(ctx, kvstore.KeyLocation)
	authToken, _, _ := a.kv.Get(ctx, kvstore.KeyAuthToken)

	if err := a.reg.RegisterIfNeeded(ctx, locationID, authToken, webhookURL(r)); err != nil {
		a.log.Errorf("control: register-webhook: %v", err)
		_ = a.kv.Set(ctx, kvstore.KeyRegistered, "false", 0)
		writeJSONError(w, http.StatusInternalServerError, "Failed to register webhook: "+err.Error())
		return
	}
	if err := a.kv.Set(ctx, kvstore.KeyRegistered, "true", 0); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "Failed to register webhook: "+err.Error())
		return
	}
	writeJSONMessage(w, "Webhook registered successfully")
}

func (a *App) actionSaveCredentials(w http.ResponseWriter, r *http.Request, body []byte) {
	ctx := r.Context()

	var in struct {
		ClientID     string `json:"clientID"`
		ClientSecret string `json:"clientSecret"`
	}
	if err := json.Unmarshal(body, &in); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	if in.ClientID == "" || in.ClientSecret == "" {
		writeJSONError(w, http.StatusBadRequest, "Missing clientID or clientSecret")
		return
	}

	pairs := map[string]string{
		kvstore.KeyClientID:     in.ClientID,
		kvstore.KeyClientSecret: in.ClientSecret,
		kvstore.KeySmartHost:    defaultSmartHost,
		kvstore.KeyAuthHost:     defaultAuthHost,
	}
	for key, value := range pairs {
		if err := a.kv.Set(ctx, key, value, 0); err != nil {
			a.log.Errorf("control: save-credentials: %v", err)
			writeJSONError(w, http.StatusInternalServerError, "Failed to save credentials: "+err.Error())
			return
		}
	}

	authURL := buildAuthorizeURL(defaultAuthHost, in.ClientID, redirectURL(r))
	writeJSON(w, http.StatusOK, map[string]string{"authUrl": authURL})
}

func (a *App) actionGetPumpValves(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	locationID, found, err := a.kv.Get(ctx, kvstore.KeyLocation)
	if err != nil || !found || locationID == "" {
		writeJSONError(w, http.StatusInternalServerError, "Missing Gardena credentials or location")
		return
	}

	items, err := a.api.LocationServices(ctx, locationID)
	if err != nil {
		a.log.Errorf("control: get-pump-valves: %v", err)
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, groupPumpsAndValves(items))
}

// handleOAuth serves the OAuth callback plus the manual refresh actions.
func (a *App) handleOAuth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	switch r.URL.Query().Get("action") {
	case "callback":
		code := r.URL.Query().Get("code")
		if code == "" {
			a.log.Error("oauth: no authorization code in callback")
			writeText(w, http.StatusBadRequest, "Authorization code is missing.")
			return
		}
		if err := a.auth.ExchangeCode(ctx, code, redirectURL(r)); err != nil {
			a.log.Errorf("oauth: callback failed: %v", err)
			_ = a.kv.Set(ctx, kvstore.KeyRegistered, "false", 0)
			writeText(w, http.StatusInternalServerError, "Error during authorization: "+err.Error())
			return
		}
		_ = a.kv.Set(ctx, kvstore.KeyRegistered, "true", 0)
		a.log.Info("oauth: callback processed")
		http.Redirect(w, r, "/overview.html", http.StatusFound)

	case "refreshAccessToken":
		accessToken, err := a.auth.Refresh(ctx)
		if err != nil {
			a.log.Errorf("oauth: refresh failed: %v", err)
			tokenRefreshes.WithLabelValues("error").Inc()
			writeJSONError(w, http.StatusInternalServerError, "Failed to refresh access token.")
			return
		}
		tokenRefreshes.WithLabelValues("ok").Inc()
		writeJSON(w, http.StatusOK, map[string]string{"accessToken": accessToken})

	case "checkAndRefreshToken":
		if err := a.auth.EnsureFresh(ctx); err != nil {
			a.log.Errorf("oauth: check-and-refresh failed: %v", err)
			tokenRefreshes.WithLabelValues("error").Inc()
			writeJSONError(w, http.StatusInternalServerError, "Failed to check or refresh token.")
			return
		}
		writeJSONMessage(w, "Token is valid or has been refreshed.")

	default:
		writeJSONError(w, http.StatusBadRequest, "Invalid action.")
	}
}

// handleConfig exposes the OAuth redirect URL for the setup UI.
func (a *App) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"redirectUrl": redirectURL(r)})
}

// handleStatus reports the current persisted state for the operator UI.
func (a *App) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	ctx := r.Context()

	registered, _, _ := a.kv.Get(ctx, kvstore.KeyRegistered)
	cfg, err := statestore.LoadPumpValves(ctx, a.kv)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	states, err := a.states.Snapshot(ctx)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"webhookRegistered": registered == "true",
		"pumpId":            cfg.PumpID,
		"valves":            cfg.ValveIDs,
		"deviceStates":      states,
	})
}

func buildAuthorizeURL(authHost, clientID, redirect string) string {
	q := url.Values{}
	q.Set("client_id", clientID)
	q.Set("redirect_uri", redirect)
	q.Set("response_type", "code")
	q.Set("state", uuid.NewString())
	q.Set("scope", oauthScope)
	return authHost + "/v1/oauth2/authorize?" + q.Encode()
}
