package telemetry

import (
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartgarden/pumpbridge/internal/model"
	"github.com/smartgarden/pumpbridge/internal/model/messages"
)

// fakeWriteAPI captures points instead of shipping them to Influx.
type fakeWriteAPI struct {
	points  []*write.Point
	flushed int
	errs    chan error
}

func newFakeWriteAPI() *fakeWriteAPI {
	return &fakeWriteAPI{errs: make(chan error)}
}

func (f *fakeWriteAPI) WriteRecord(string)                                { panic("unused") }
func (f *fakeWriteAPI) WritePoint(p *write.Point)                         { f.points = append(f.points, p) }
func (f *fakeWriteAPI) Flush()                                            { f.flushed++ }
func (f *fakeWriteAPI) Errors() <-chan error                              { return f.errs }
func (f *fakeWriteAPI) SetWriteFailedCallback(api.WriteFailedCallback) {}

func newTestWriter(t *testing.T) (*Writer, *fakeWriteAPI) {
	t.Helper()
	f := newFakeWriteAPI()
	log := logrus.NewEntry(logrus.New())
	w := NewWriter(f, log)
	t.Cleanup(func() { close(f.errs) })
	return w, f
}

func fieldValue(p *write.Point, name string) any {
	for _, f := range p.FieldList() {
		if f.Key == name {
			return f.Value
		}
	}
	return nil
}

func tagValue(p *write.Point, name string) string {
	for _, tag := range p.TagList() {
		if tag.Key == name {
			return tag.Value
		}
	}
	return ""
}

func TestRecordDecisionCountsWateringValves(t *testing.T) {
	w, f := newTestWriter(t)

	w.RecordDecision("pump-1", model.PumpOpen, []string{"valve-1", "valve-3"})

	require.Len(t, f.points, 1)
	p := f.points[0]
	assert.Equal(t, "pump_decision", p.Name())
	assert.Equal(t, "pump-1", tagValue(p, "pump_id"))
	assert.Equal(t, string(model.PumpOpen), tagValue(p, "command"))
	assert.EqualValues(t, 2, fieldValue(p, "watering_valves"))
}

func TestRecordDecisionClosedHasZeroValves(t *testing.T) {
	w, f := newTestWriter(t)

	w.RecordDecision("pump-1", model.PumpClosed, nil)

	require.Len(t, f.points, 1)
	assert.EqualValues(t, 0, fieldValue(f.points[0], "watering_valves"))
}

func TestRecordEventsMapsAttributeTypes(t *testing.T) {
	w, f := newTestWriter(t)

	w.RecordEvents([]messages.DeviceEvent{{
		ID:   "valve-1",
		Type: "VALVE",
		Attributes: map[string]messages.Attribute{
			"activity": {Value: "MANUAL_WATERING", Timestamp: "2026-03-01T10:00:00Z"},
			"level":    {Value: float64(42)},
			"online":   {Value: true},
			"raw":      {Value: []any{"skipped"}},
		},
	}})

	require.Len(t, f.points, 3, "non-scalar attributes are dropped")
	byAttr := map[string]*write.Point{}
	for _, p := range f.points {
		assert.Equal(t, "device_event", p.Name())
		assert.Equal(t, "valve-1", tagValue(p, "device_id"))
		byAttr[tagValue(p, "attribute")] = p
	}

	require.Contains(t, byAttr, "activity")
	assert.Equal(t, "MANUAL_WATERING", fieldValue(byAttr["activity"], "value"))
	ts, _ := time.Parse(time.RFC3339, "2026-03-01T10:00:00Z")
	assert.True(t, byAttr["activity"].Time().Equal(ts))

	require.Contains(t, byAttr, "level")
	assert.EqualValues(t, 42, fieldValue(byAttr["level"], "value_num"))

	require.Contains(t, byAttr, "online")
	assert.Equal(t, true, fieldValue(byAttr["online"], "value_bool"))
}

func TestNilWriterIsNoOp(t *testing.T) {
	var w *Writer
	w.RecordDecision("pump-1", model.PumpOpen, nil)
	w.RecordEvents(nil)
	w.Flush()
	assert.Greater(t, w.LastErrorAge(), time.Hour)
}

func TestLastErrorAgeTracksErrorStream(t *testing.T) {
	w, f := newTestWriter(t)
	require.Greater(t, w.LastErrorAge(), time.Hour)

	f.errs <- assert.AnError
	assert.Eventually(t, func() bool {
		return w.LastErrorAge() < time.Minute
	}, time.Second, 10*time.Millisecond)
}
