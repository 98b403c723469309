package pump

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartgarden/pumpbridge/internal/gardena"
	"github.com/smartgarden/pumpbridge/internal/model"
	"github.com/smartgarden/pumpbridge/internal/model/messages"
	"github.com/smartgarden/pumpbridge/internal/services/statestore"
	"github.com/smartgarden/pumpbridge/pkg/kvstore"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type upstream struct {
	commands []struct {
		path string
		body map[string]any
	}
	status int
}

func (u *upstream) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		u.commands = append(u.commands, struct {
			path string
			body map[string]any
		}{r.URL.Path, body})
		status := u.status
		if status == 0 {
			status = http.StatusAccepted
		}
		w.WriteHeader(status)
	}
}

func newEngine(t *testing.T, up *upstream) (*Engine, kvstore.Store) {
	t.Helper()
	srv := httptest.NewServer(up.handler())
	t.Cleanup(srv.Close)

	kv := kvstore.NewMemory()
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, kvstore.KeySmartHost, srv.URL, 0))
	require.NoError(t, kv.Set(ctx, kvstore.KeyClientID, "client-1", 0))
	require.NoError(t, kv.Set(ctx, kvstore.KeyAuthToken, "token-1", 0))
	require.NoError(t, statestore.SavePumpValves(ctx, kv,
		model.PumpValves{PumpID: "pump-1", ValveIDs: []string{"valve-1", "valve-2"}}))

	states := statestore.New(kv, testLog())
	return NewEngine(kv, states, gardena.NewClient(kv, 0, testLog()), testLog()), kv
}

func mergeActivity(t *testing.T, kv kvstore.Store, id, activity string) {
	t.Helper()
	st := statestore.New(kv, testLog())
	require.NoError(t, st.Merge(context.Background(), []messages.DeviceEvent{{
		ID:   id,
		Type: "VALVE",
		Attributes: map[string]messages.Attribute{
			model.AttributeActivity: {Value: activity},
		},
	}}))
}

func TestComputeFailSafeDefault(t *testing.T) {
	e, _ := newEngine(t, &upstream{})

	cmd, watering, err := e.Compute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.PumpClosed, cmd, "no recorded state means closed")
	assert.Empty(t, watering)
}

func TestComputeAnyWateringOpens(t *testing.T) {
	e, kv := newEngine(t, &upstream{})
	mergeActivity(t, kv, "valve-1", "CLOSED")
	mergeActivity(t, kv, "valve-2", model.ActivityScheduledWatering)

	cmd, watering, err := e.Compute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.PumpOpen, cmd)
	assert.Equal(t, []string{"valve-2"}, watering)
}

func TestReconcileOpenSendsBoundedOverride(t *testing.T) {
	up := &upstream{}
	e, kv := newEngine(t, up)
	mergeActivity(t, kv, "valve-1", model.ActivityManualWatering)

	cmd, watering, err := e.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.PumpOpen, cmd)
	assert.Equal(t, []string{"valve-1"}, watering)

	require.Len(t, up.commands, 1)
	assert.Equal(t, "/v1/command/pump-1", up.commands[0].path)
	data := up.commands[0].body["data"].(map[string]any)
	attrs := data["attributes"].(map[string]any)
	assert.Equal(t, "START_SECONDS_TO_OVERRIDE", attrs["command"])
	assert.Equal(t, float64(OverrideSeconds), attrs["seconds"])
}

func TestReconcileClosedStopsUntilNextTask(t *testing.T) {
	up := &upstream{}
	e, kv := newEngine(t, up)
	mergeActivity(t, kv, "valve-1", "CLOSED")

	cmd, watering, err := e.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.PumpClosed, cmd)
	assert.Empty(t, watering)

	require.Len(t, up.commands, 1)
	attrs := up.commands[0].body["data"].(map[string]any)["attributes"].(map[string]any)
	assert.Equal(t, "STOP_UNTIL_NEXT_TASK", attrs["command"])
	_, hasSeconds := attrs["seconds"]
	assert.False(t, hasSeconds, "stop commands carry no override duration")
}

func TestIssueWithoutConfiguredPump(t *testing.T) {
	e, kv := newEngine(t, &upstream{})
	require.NoError(t, statestore.SavePumpValves(context.Background(), kv, model.PumpValves{}))

	err := e.Issue(context.Background(), model.PumpClosed)
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestReconcileSurfacesRejectedCommand(t *testing.T) {
	up := &upstream{status: http.StatusConflict}
	e, kv := newEngine(t, up)
	mergeActivity(t, kv, "valve-1", model.ActivityManualWatering)

	_, _, err := e.Reconcile(context.Background())
	var ce *model.CommandError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, http.StatusConflict, ce.Status)
}

// fakePublisher records decision payloads.
type fakePublisher struct {
	payloads []string
	fail     bool
}

func (f *fakePublisher) PublishMessage(message string) error { return f.PublishQoS(1, message) }
func (f *fakePublisher) PublishQoS(_ byte, message string) error {
	if f.fail {
		return assert.AnError
	}
	f.payloads = append(f.payloads, message)
	return nil
}
func (f *fakePublisher) Close() {}

func TestReconcilePublishesDecision(t *testing.T) {
	e, kv := newEngine(t, &upstream{})
	mergeActivity(t, kv, "valve-1", model.ActivityManualWatering)

	pub := &fakePublisher{}
	e.SetPublisher(pub)

	_, _, err := e.Reconcile(context.Background())
	require.NoError(t, err)
	require.Len(t, pub.payloads, 1)

	var evt messages.PumpDecisionEvent
	require.NoError(t, json.Unmarshal([]byte(pub.payloads[0]), &evt))
	assert.Equal(t, "pump-1", evt.PumpID)
	assert.Equal(t, string(model.PumpOpen), evt.Command)
	assert.Equal(t, []string{"valve-1"}, evt.WateringValves)
}

func TestReconcilePublisherFailureIgnored(t *testing.T) {
	e, kv := newEngine(t, &upstream{})
	mergeActivity(t, kv, "valve-1", model.ActivityManualWatering)
	e.SetPublisher(&fakePublisher{fail: true})

	_, _, err := e.Reconcile(context.Background())
	assert.NoError(t, err, "the decision side-channel must never break processing")
}
