package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/smartgarden/pumpbridge/internal/gardena"
	"github.com/smartgarden/pumpbridge/internal/model"
	"github.com/smartgarden/pumpbridge/pkg/kvstore"
)

// refreshMargin is deliberately wide: a token inside its last hour is
// refreshed even though it is still technically valid, so a concurrent
// request can never ride an edge-expired token.
const refreshMargin = time.Hour

// Manager owns the OAuth2 token lifecycle against the auth host. All
// persisted fields are replaced wholesale on every refresh or exchange.
type Manager struct {
	store kvstore.Store
	api   *gardena.Client
	http  *http.Client
	log   *logrus.Entry
	now   func() time.Time
}

func NewManager(store kvstore.Store, api *gardena.Client, timeout time.Duration, log *logrus.Entry) *Manager {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Manager{
		store: store,
		api:   api,
		http:  &http.Client{Timeout: timeout},
		log:   log,
		now:   time.Now,
	}
}

// EnsureFresh refreshes the access token when less than refreshMargin of
// its lifetime remains, or when no expiry is recorded at all. Callers must
// treat a failure as fatal for the request that triggered the check.
func (m *Manager) EnsureFresh(ctx context.Context) error {
	raw, found, err := m.store.Get(ctx, kvstore.KeyTokenExpiresAt)
	if err != nil {
		return err
	}
	if !found || strings.TrimSpace(raw) == "" {
		m.log.Warn("token: no expiry recorded, refreshing")
		_, err := m.Refresh(ctx)
		return err
	}

	expiresAt, perr := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if perr != nil {
		m.log.Warnf("token: unreadable expiry %q, refreshing", raw)
		_, err := m.Refresh(ctx)
		return err
	}

	tok := model.Token{ExpiresAt: expiresAt}
	if tok.Remaining(m.now()) < refreshMargin {
		m.log.Info("token: expiring soon, refreshing")
		_, err := m.Refresh(ctx)
		return err
	}
	m.log.Debug("token: still valid, no refresh needed")
	return nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	UserID       string `json:"user_id"`
}

// Refresh exchanges the persisted refresh token for a new token pair and
// persists it. Returns the new access token. Never retried; a failure is
// surfaced to the caller immediately.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	authHost, clientID, refreshToken, err := m.refreshCreds(ctx)
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", clientID)
	form.Set("refresh_token", refreshToken)

	tr, err := m.tokenCall(ctx, authHost, form)
	if err != nil {
		return "", &model.AuthError{Op: "refresh", Err: err}
	}
	if err := m.persist(ctx, tr); err != nil {
		return "", err
	}
	m.log.Info("token: refreshed and stored")
	return tr.AccessToken, nil
}

// ExchangeCode performs the one-time authorization-code exchange of the
// OAuth callback, persists the token record and then discovers the
// account's location and garden inventory.
func (m *Manager) ExchangeCode(ctx context.Context, code, redirectURL string) error {
	authHost, err := m.required(ctx, kvstore.KeyAuthHost)
	if err != nil {
		return &model.AuthError{Op: "exchange", Err: err}
	}
	clientID, err := m.required(ctx, kvstore.KeyClientID)
	if err != nil {
		return &model.AuthError{Op: "exchange", Err: err}
	}
	clientSecret, err := m.required(ctx, kvstore.KeyClientSecret)
	if err != nil {
		return &model.AuthError{Op: "exchange", Err: err}
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)
	form.Set("redirect_uri", redirectURL)

	tr, err := m.tokenCall(ctx, authHost, form)
	if err != nil {
		return &model.AuthError{Op: "exchange", Err: err}
	}
	if err := m.persist(ctx, tr); err != nil {
		return err
	}
	m.log.Info("token: obtained via authorization code")

	return m.discover(ctx, tr.AccessToken)
}

func (m *Manager) tokenCall(ctx context.Context, authHost string, form url.Values) (tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		authHost+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return tokenResponse{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.http.Do(req)
	if err != nil {
		return tokenResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return tokenResponse{}, errors.Errorf("token endpoint status %d", resp.StatusCode)
	}
	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return tokenResponse{}, errors.Wrap(err, "decode token response")
	}
	if tr.AccessToken == "" || tr.ExpiresIn == 0 {
		return tokenResponse{}, errors.New("invalid response from token endpoint")
	}
	return tr, nil
}

func (m *Manager) persist(ctx context.Context, tr tokenResponse) error {
	expiresAt := m.now().UnixMilli() + tr.ExpiresIn*1000

	if err := m.store.Set(ctx, kvstore.KeyAuthToken, tr.AccessToken, 0); err != nil {
		return err
	}
	if err := m.store.Set(ctx, kvstore.KeyRefreshToken, tr.RefreshToken, 0); err != nil {
		return err
	}
	if err := m.store.Set(ctx, kvstore.KeyTokenExpiresAt, strconv.FormatInt(expiresAt, 10), 0); err != nil {
		return err
	}
	if tr.UserID != "" {
		if err := m.store.Set(ctx, kvstore.KeyUserID, tr.UserID, 0); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) refreshCreds(ctx context.Context) (authHost, clientID, refreshToken string, err error) {
	authHost, _, _ = m.get(ctx, kvstore.KeyAuthHost)
	clientID, _, _ = m.get(ctx, kvstore.KeyClientID)
	refreshToken, _, err = m.get(ctx, kvstore.KeyRefreshToken)
	if err != nil {
		return
	}
	if authHost == "" || clientID == "" || refreshToken == "" {
		err = &model.AuthError{Op: "refresh", Err: errors.New("missing required authentication parameters")}
	}
	return
}

func (m *Manager) get(ctx context.Context, key string) (string, bool, error) {
	return m.store.Get(ctx, key)
}

func (m *Manager) required(ctx context.Context, key string) (string, error) {
	v, found, err := m.store.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !found || v == "" {
		return "", errors.Errorf("missing %s", key)
	}
	return v, nil
}
