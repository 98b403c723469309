package bridge

import (
	"sort"

	"github.com/smartgarden/pumpbridge/internal/gardena"
	"github.com/smartgarden/pumpbridge/internal/model"
)

type deviceEntry struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	IsUnavailable bool   `json:"isUnavailable,omitempty"`
}

type deviceListing struct {
	Pumps  []deviceEntry `json:"pumps"`
	Valves []deviceEntry `json:"valves"`
}

// groupPumpsAndValves turns a location's flat service list into the
// pump/valve picker payload. Services are grouped per owning device: the
// COMMON service carries name and modelType, a POWER_SOCKET service marks
// the device as a pump, and VALVE services are the controllable valves.
func groupPumpsAndValves(items []gardena.ServiceItem) deviceListing {
	type device struct {
		name      string
		modelType string
		hasSocket bool
		valves    []gardena.ServiceItem
	}

	devices := map[string]*device{}
	order := []string{}
	get := func(id string) *device {
		d, ok := devices[id]
		if !ok {
			d = &device{}
			devices[id] = d
			order = append(order, id)
		}
		return d
	}

	for _, item := range items {
		id := item.DeviceID()
		if id == "" {
			id = item.ID
		}
		d := get(id)
		switch item.Type {
		case "COMMON":
			d.name = item.Attributes["name"].StringValue()
			d.modelType = item.Attributes["modelType"].StringValue()
		case "POWER_SOCKET":
			d.hasSocket = true
		case "VALVE":
			d.valves = append(d.valves, item)
		}
	}
	sort.Strings(order)

	out := deviceListing{Pumps: []deviceEntry{}, Valves: []deviceEntry{}}
	for _, id := range order {
		d := devices[id]
		if d.hasSocket {
			out.Pumps = append(out.Pumps, deviceEntry{ID: id, Name: d.name})
			continue
		}
		switch d.modelType {
		case model.ModelWaterControl, model.ModelIrrigationControl:
			for _, v := range d.valves {
				name := v.Attributes["name"].StringValue()
				if name == "" {
					name = d.name
				}
				out.Valves = append(out.Valves, deviceEntry{
					ID:            v.ID,
					Name:          name,
					IsUnavailable: v.Attributes[model.AttributeActivity].StringValue() == "UNAVAILABLE",
				})
			}
		}
	}
	return out
}
