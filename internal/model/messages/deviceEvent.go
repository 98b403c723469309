package messages

import "encoding/json"

// Attribute is the latest reported value for one attribute key of a device,
// exactly as it arrives in a Gardena push notification. Values are scalars
// (activity strings, battery levels, ...); the timestamp is upstream-issued
// and is recorded verbatim, never compared.
type Attribute struct {
	Value     any    `json:"value"`
	Timestamp string `json:"timestamp,omitempty"`
}

// StringValue returns the attribute value when it is a string, "" otherwise.
func (a Attribute) StringValue() string {
	s, _ := a.Value.(string)
	return s
}

// DeviceEvent is one entry of a push notification batch.
type DeviceEvent struct {
	ID         string               `json:"id"`
	Type       string               `json:"type"`
	Attributes map[string]Attribute `json:"attributes"`
}

// ModelType returns attributes.modelType.value for COMMON events, "" otherwise.
func (e DeviceEvent) ModelType() string {
	return e.Attributes["modelType"].StringValue()
}

// PushNotification is the webhook envelope. Events stays raw so the ingress
// can tell a missing/non-array events member apart from an empty batch.
type PushNotification struct {
	Data struct {
		ID         string `json:"id"`
		Type       string `json:"type"`
		Attributes struct {
			Events json.RawMessage `json:"events"`
		} `json:"attributes"`
	} `json:"data"`
}

// Events decodes the raw events member. ok is false when the member is
// absent or not a JSON array.
func (p PushNotification) Events() (events []DeviceEvent, ok bool) {
	raw := p.Data.Attributes.Events
	if len(raw) == 0 {
		return nil, false
	}
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, false
	}
	return events, true
}
