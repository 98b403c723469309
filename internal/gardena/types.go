package gardena

import "github.com/smartgarden/pumpbridge/internal/model/messages"

// JSON:API request/response shapes fixed by the smart-system API. Field
// names must go over the wire exactly as shown.

type webhookRequest struct {
	Data webhookData `json:"data"`
}

type webhookData struct {
	Type       string       `json:"type"` // always WEBHOOK
	ID         string       `json:"id"`   // location id
	Attributes webhookAttrs `json:"attributes"`
}

type webhookAttrs struct {
	URL        string `json:"url"`
	LocationID string `json:"locationId"`
}

type webhookResponse struct {
	Data struct {
		Attributes struct {
			HmacSecret string `json:"hmacSecret"`
			ValidUntil int64  `json:"validUntil"` // epoch seconds
		} `json:"attributes"`
	} `json:"data"`
}

// Registration is the outcome of a webhook registration call.
type Registration struct {
	HmacSecret string
	ValidUntil int64
}

type commandRequest struct {
	Data commandData `json:"data"`
}

type commandData struct {
	Type       string       `json:"type"` // always VALVE_CONTROL
	ID         string       `json:"id"`
	Attributes commandAttrs `json:"attributes"`
}

type commandAttrs struct {
	Command string `json:"command"`
	Seconds int    `json:"seconds,omitempty"`
}

// Upstream command enums.
const (
	CommandStartSeconds  = "START_SECONDS_TO_OVERRIDE"
	CommandStopUntilNext = "STOP_UNTIL_NEXT_TASK"
)

type locationsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// ServiceItem is one entry of a location's included[] service list.
type ServiceItem struct {
	ID            string                        `json:"id"`
	Type          string                        `json:"type"`
	Attributes    map[string]messages.Attribute `json:"attributes"`
	Relationships *struct {
		Device struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		} `json:"device"`
	} `json:"relationships,omitempty"`
}

// DeviceID returns the owning device id, "" when the item has none.
func (s ServiceItem) DeviceID() string {
	if s.Relationships == nil {
		return ""
	}
	return s.Relationships.Device.Data.ID
}

type locationDetailResponse struct {
	Included []ServiceItem `json:"included"`
}
