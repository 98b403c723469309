package telemetry

import (
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/sirupsen/logrus"

	"github.com/smartgarden/pumpbridge/internal/model"
	"github.com/smartgarden/pumpbridge/internal/model/messages"
)

// Writer streams device attribute changes and pump decisions into InfluxDB
// as time series for the operator dashboard. It is entirely optional: a nil
// *Writer is a no-op, and write errors only surface through health checks,
// never into webhook processing.
type Writer struct {
	api api.WriteAPI
	log *logrus.Entry

	mu      sync.RWMutex
	lastErr time.Time
}

// NewWriter wraps the async write API and listens for its error stream.
func NewWriter(w api.WriteAPI, log *logrus.Entry) *Writer {
	ww := &Writer{
		api:     w,
		log:     log,
		lastErr: time.Now().Add(-24 * time.Hour),
	}
	go func() {
		for err := range w.Errors() {
			if err != nil {
				ww.mu.Lock()
				ww.lastErr = time.Now()
				ww.mu.Unlock()
				log.Warnf("telemetry: influx write error: %v", err)
			}
		}
	}()
	return ww
}

// LastErrorAge reports how long ago the last write error happened.
func (w *Writer) LastErrorAge() time.Duration {
	if w == nil {
		return 99999 * time.Hour
	}
	w.mu.RLock()
	t := w.lastErr
	w.mu.RUnlock()
	return time.Since(t)
}

// RecordEvents writes one point per event attribute. Timestamps come from
// the event when parseable, else from the wall clock.
func (w *Writer) RecordEvents(events []messages.DeviceEvent) {
	if w == nil {
		return
	}
	for _, ev := range events {
		for key, attr := range ev.Attributes {
			ts := time.Now()
			if attr.Timestamp != "" {
				if t, err := time.Parse(time.RFC3339, attr.Timestamp); err == nil {
					ts = t
				}
			}

			fields := map[string]any{}
			switch v := attr.Value.(type) {
			case string:
				fields["value"] = v
			case float64:
				fields["value_num"] = v
			case bool:
				fields["value_bool"] = v
			default:
				continue
			}

			point := influxdb2.NewPoint("device_event",
				map[string]string{
					"device_id":  ev.ID,
					"event_type": ev.Type,
					"attribute":  key,
				},
				fields, ts)
			w.api.WritePoint(point)
		}
	}
}

// RecordDecision writes the outcome of one pump reconciliation.
func (w *Writer) RecordDecision(pumpID string, cmd model.PumpCommand, watering []string) {
	if w == nil {
		return
	}
	point := influxdb2.NewPoint("pump_decision",
		map[string]string{"pump_id": pumpID, "command": string(cmd)},
		map[string]any{"watering_valves": len(watering)},
		time.Now())
	w.api.WritePoint(point)
}

// Flush forces buffered points out, for shutdown.
func (w *Writer) Flush() {
	if w == nil {
		return
	}
	w.api.Flush()
}
