package auth

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/smartgarden/pumpbridge/internal/gardena"
	"github.com/smartgarden/pumpbridge/pkg/kvstore"
)

// discover runs after a successful code exchange: resolve the account's
// location id and snapshot the garden's pump/valve service items so the
// operator UI can offer them without another round-trip.
func (m *Manager) discover(ctx context.Context, accessToken string) error {
	locationID, err := m.api.FirstLocationID(ctx, accessToken)
	if err != nil {
		return errors.Wrap(err, "location discovery")
	}
	if err := m.store.Set(ctx, kvstore.KeyLocation, locationID, 0); err != nil {
		return err
	}
	m.log.Infof("discovery: location %s stored", locationID)

	items, err := m.api.LocationServices(ctx, locationID)
	if err != nil {
		return errors.Wrap(err, "garden inventory")
	}

	inventory := make([]gardena.ServiceItem, 0, len(items))
	for _, item := range items {
		switch item.Type {
		case "VALVE", "VALVE_SET", "POWER_SOCKET":
			inventory = append(inventory, item)
		}
	}

	raw, err := json.Marshal(inventory)
	if err != nil {
		return errors.Wrap(err, "marshal inventory")
	}
	if err := m.store.Set(ctx, kvstore.KeyPumpsAndValves, string(raw), 0); err != nil {
		return err
	}
	m.log.Infof("discovery: stored %d pump/valve service items", len(inventory))
	return nil
}
