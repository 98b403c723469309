package model

// DeviceState maps attribute key -> latest Attribute for one device.
type DeviceState map[string]Attribute

// DeviceStates is the merged view of every tracked device, persisted as a
// single JSON blob. Only ids in the configured valve set or the pump id are
// ever retained; everything else is dropped on ingest.
type DeviceStates map[string]DeviceState

// Activity is the valve attribute the pump decision is derived from.
const AttributeActivity = "activity"

// Valve activity values that count as "watering".
const (
	ActivityManualWatering    = "MANUAL_WATERING"
	ActivityScheduledWatering = "SCHEDULED_WATERING"
)

// Irrigation hardware models the webhook ingress cares about; batches
// without at least one of these are acknowledged and dropped.
const (
	ModelWaterControl      = "GARDENA smart Water Control"
	ModelIrrigationControl = "GARDENA smart Irrigation Control"
)

// Watering reports whether the device's activity attribute marks it as
// actively irrigating. Devices without a recorded activity are not watering.
func (s DeviceState) Watering() bool {
	switch s[AttributeActivity].StringValue() {
	case ActivityManualWatering, ActivityScheduledWatering:
		return true
	}
	return false
}

// PumpValves is the operator-saved actuator configuration.
type PumpValves struct {
	PumpID   string   `json:"pumpId"`
	ValveIDs []string `json:"valves"`
}

// Tracked reports whether a device id belongs to the configured set.
func (c PumpValves) Tracked(id string) bool {
	if id == "" {
		return false
	}
	if id == c.PumpID {
		return true
	}
	for _, v := range c.ValveIDs {
		if v == id {
			return true
		}
	}
	return false
}

// PumpCommand is derived on every cycle, never persisted.
type PumpCommand string

const (
	PumpOpen   PumpCommand = "open"
	PumpClosed PumpCommand = "closed"
)
