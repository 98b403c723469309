package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartgarden/pumpbridge/internal/gardena"
	"github.com/smartgarden/pumpbridge/internal/model"
	"github.com/smartgarden/pumpbridge/pkg/kvstore"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type fixture struct {
	kv      kvstore.Store
	mgr     *Manager
	calls   *int
	authSrv *httptest.Server
}

// newFixture wires a manager against a fake token endpoint and seeds the
// refresh credentials. now is pinned so expiry math is deterministic.
func newFixture(t *testing.T, now time.Time, tokenHandler http.HandlerFunc) *fixture {
	t.Helper()

	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		calls++
		tokenHandler(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	kv := kvstore.NewMemory()
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, kvstore.KeyAuthHost, srv.URL, 0))
	require.NoError(t, kv.Set(ctx, kvstore.KeyClientID, "client-1", 0))
	require.NoError(t, kv.Set(ctx, kvstore.KeyClientSecret, "secret-1", 0))
	require.NoError(t, kv.Set(ctx, kvstore.KeyRefreshToken, "refresh-1", 0))

	api := gardena.NewClient(kv, 0, testLog())
	mgr := NewManager(kv, api, 0, testLog())
	mgr.now = func() time.Time { return now }

	return &fixture{kv: kv, mgr: mgr, calls: &calls, authSrv: srv}
}

func okToken(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte(`{"access_token":"new-access","refresh_token":"new-refresh","expires_in":86400,"user_id":"user-1"}`))
}

func (f *fixture) setExpiry(t *testing.T, at time.Time) {
	t.Helper()
	require.NoError(t, f.kv.Set(context.Background(),
		kvstore.KeyTokenExpiresAt, strconv.FormatInt(at.UnixMilli(), 10), 0))
}

func TestEnsureFreshSkipsValidToken(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, now, okToken)
	f.setExpiry(t, now.Add(61*time.Minute))

	require.NoError(t, f.mgr.EnsureFresh(context.Background()))
	assert.Equal(t, 0, *f.calls, "a token with more than an hour left must not be refreshed")
}

func TestEnsureFreshRefreshesExpiringToken(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, now, okToken)
	f.setExpiry(t, now.Add(59*time.Minute))

	require.NoError(t, f.mgr.EnsureFresh(context.Background()))
	assert.Equal(t, 1, *f.calls, "a token inside its last hour must be refreshed")

	v, _, err := f.kv.Get(context.Background(), kvstore.KeyAuthToken)
	require.NoError(t, err)
	assert.Equal(t, "new-access", v)
}

func TestEnsureFreshRefreshesWhenNoExpiryRecorded(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, now, okToken)

	require.NoError(t, f.mgr.EnsureFresh(context.Background()))
	assert.Equal(t, 1, *f.calls)
}

func TestEnsureFreshRefreshesOnUnparseableExpiry(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, now, okToken)
	require.NoError(t, f.kv.Set(context.Background(), kvstore.KeyTokenExpiresAt, "garbage", 0))

	require.NoError(t, f.mgr.EnsureFresh(context.Background()))
	assert.Equal(t, 1, *f.calls)
}

func TestRefreshPersistsWholeRecord(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, now, okToken)

	access, err := f.mgr.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new-access", access)

	ctx := context.Background()
	refresh, _, _ := f.kv.Get(ctx, kvstore.KeyRefreshToken)
	assert.Equal(t, "new-refresh", refresh)
	userID, _, _ := f.kv.Get(ctx, kvstore.KeyUserID)
	assert.Equal(t, "user-1", userID)

	raw, _, _ := f.kv.Get(ctx, kvstore.KeyTokenExpiresAt)
	expiresAt, err := strconv.ParseInt(raw, 10, 64)
	require.NoError(t, err)
	assert.Equal(t, now.UnixMilli()+86400*1000, expiresAt)
}

func TestRefreshMissingCredentials(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, now, okToken)
	require.NoError(t, f.kv.Set(context.Background(), kvstore.KeyRefreshToken, "", 0))

	_, err := f.mgr.Refresh(context.Background())
	var ae *model.AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "refresh", ae.Op)
	assert.Equal(t, 0, *f.calls, "no upstream call without complete credentials")
}

func TestRefreshUpstreamFailure(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, now, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := f.mgr.Refresh(context.Background())
	var ae *model.AuthError
	require.ErrorAs(t, err, &ae)
}

func TestRefreshRejectsIncompleteResponse(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, now, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"refresh_token":"only-this"}`))
	})

	_, err := f.mgr.Refresh(context.Background())
	require.Error(t, err)

	v, _, _ := f.kv.Get(context.Background(), kvstore.KeyRefreshToken)
	assert.Equal(t, "refresh-1", v, "a bad response must not clobber the stored record")
}

func TestRefreshSendsRefreshGrant(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	var form map[string][]string
	f := newFixture(t, now, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		okToken(w, r)
	})

	_, err := f.mgr.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"refresh_token"}, form["grant_type"])
	assert.Equal(t, []string{"client-1"}, form["client_id"])
	assert.Equal(t, []string{"refresh-1"}, form["refresh_token"])
}

func TestExchangeCodeRunsDiscovery(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	// smart API for discovery
	smart := http.NewServeMux()
	smart.HandleFunc("/v2/locations", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer new-access", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":[{"id":"loc-1"}]}`))
	})
	smart.HandleFunc("/v2/locations/loc-1", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"included":[
			{"id":"svc-pump","type":"POWER_SOCKET","relationships":{"device":{"data":{"id":"dev-pump"}}}},
			{"id":"svc-valve","type":"VALVE","relationships":{"device":{"data":{"id":"dev-valve"}}}},
			{"id":"svc-irrelevant","type":"SENSOR","relationships":{"device":{"data":{"id":"dev-x"}}}}
		]}`))
	})
	smartSrv := httptest.NewServer(smart)
	t.Cleanup(smartSrv.Close)

	var form map[string][]string
	f := newFixture(t, now, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		okToken(w, r)
	})
	ctx := context.Background()
	require.NoError(t, f.kv.Set(ctx, kvstore.KeySmartHost, smartSrv.URL, 0))

	require.NoError(t, f.mgr.ExchangeCode(ctx, "auth-code", "https://x/api/oauth?action=callback"))

	assert.Equal(t, []string{"authorization_code"}, form["grant_type"])
	assert.Equal(t, []string{"auth-code"}, form["code"])
	assert.Equal(t, []string{"secret-1"}, form["client_secret"])
	assert.Equal(t, []string{"https://x/api/oauth?action=callback"}, form["redirect_uri"])

	loc, _, _ := f.kv.Get(ctx, kvstore.KeyLocation)
	assert.Equal(t, "loc-1", loc)

	inventory, found, _ := f.kv.Get(ctx, kvstore.KeyPumpsAndValves)
	require.True(t, found)
	assert.Contains(t, inventory, "svc-pump")
	assert.Contains(t, inventory, "svc-valve")
	assert.NotContains(t, inventory, "svc-irrelevant")
}

func TestExchangeCodeMissingClientSecret(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, now, okToken)
	require.NoError(t, f.kv.Set(context.Background(), kvstore.KeyClientSecret, "", 0))

	err := f.mgr.ExchangeCode(context.Background(), "code", "https://x")
	var ae *model.AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "exchange", ae.Op)
}
