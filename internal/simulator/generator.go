package simulator

import (
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/smartgarden/pumpbridge/internal/model"
	"github.com/smartgarden/pumpbridge/internal/model/messages"
)

// valve activity values cycled by the generator
var activities = []string{
	"CLOSED",
	model.ActivityManualWatering,
	model.ActivityScheduledWatering,
}

// EventGenerator produces synthetic push-notification batches for a fixed
// set of valves. Each valve flips between watering and closed with the
// given duty cycle, so a bridge under test sees realistic open/close churn.
type EventGenerator struct {
	mu        sync.Mutex
	locID     string
	modelType string
	valves    map[string]string // valve id -> current activity
	duty      float64           // probability a valve is watering after a tick
	rng       *rand.Rand
}

func NewEventGenerator(locationID, modelType string, valveIDs []string, duty float64, seed int64) *EventGenerator {
	valves := make(map[string]string, len(valveIDs))
	for _, id := range valveIDs {
		valves[id] = "CLOSED"
	}
	return &EventGenerator{
		locID:     locationID,
		modelType: modelType,
		valves:    valves,
		duty:      duty,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// Next advances every valve one tick and returns the full envelope body,
// ready to sign and POST.
func (g *EventGenerator) Next() ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	events := make([]messages.DeviceEvent, 0, len(g.valves)+1)

	events = append(events, messages.DeviceEvent{
		ID:   g.locID + "-common",
		Type: "COMMON",
		Attributes: map[string]messages.Attribute{
			"modelType": {Value: g.modelType, Timestamp: now},
			"name":      {Value: "simulated device", Timestamp: now},
		},
	})

	for id := range g.valves {
		activity := "CLOSED"
		if g.rng.Float64() < g.duty {
			activity = activities[1+g.rng.Intn(2)]
		}
		g.valves[id] = activity
		events = append(events, messages.DeviceEvent{
			ID:   id,
			Type: "VALVE",
			Attributes: map[string]messages.Attribute{
				model.AttributeActivity: {Value: activity, Timestamp: now},
			},
		})
	}

	rawEvents, err := json.Marshal(events)
	if err != nil {
		return nil, err
	}

	var envelope messages.PushNotification
	envelope.Data.ID = g.locID
	envelope.Data.Type = "WEBHOOK"
	envelope.Data.Attributes.Events = rawEvents
	return json.Marshal(envelope)
}
