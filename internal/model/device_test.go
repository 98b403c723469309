package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeviceStateWatering(t *testing.T) {
	cases := []struct {
		name     string
		state    DeviceState
		watering bool
	}{
		{"manual", DeviceState{AttributeActivity: {Value: ActivityManualWatering}}, true},
		{"scheduled", DeviceState{AttributeActivity: {Value: ActivityScheduledWatering}}, true},
		{"closed", DeviceState{AttributeActivity: {Value: "CLOSED"}}, false},
		{"no activity attribute", DeviceState{"name": {Value: "valve"}}, false},
		{"empty state", DeviceState{}, false},
		{"nil state", nil, false},
		{"non-string activity", DeviceState{AttributeActivity: {Value: 42}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.watering, tc.state.Watering())
		})
	}
}

func TestPumpValvesTracked(t *testing.T) {
	cfg := PumpValves{PumpID: "pump-1", ValveIDs: []string{"v1", "v2"}}

	assert.True(t, cfg.Tracked("pump-1"))
	assert.True(t, cfg.Tracked("v2"))
	assert.False(t, cfg.Tracked("v3"))
	assert.False(t, cfg.Tracked(""))

	var zero PumpValves
	assert.False(t, zero.Tracked(""), "unconfigured pump must not track empty ids")
}
