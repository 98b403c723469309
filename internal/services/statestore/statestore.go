package statestore

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/smartgarden/pumpbridge/internal/model"
	"github.com/smartgarden/pumpbridge/internal/model/messages"
	"github.com/smartgarden/pumpbridge/pkg/kvstore"
)

// Store keeps the merged per-device attribute view as one JSON blob under a
// single key. The read-merge-write cycle is last-write-wins across
// concurrent webhook deliveries: two overlapping merges can both read the
// same prior snapshot and the later write clobbers the earlier one. That is
// the accepted behavior (covered by tests), not an oversight; the single
// blob write itself is atomic, so a partial merge across devices cannot be
// observed.
type Store struct {
	kv  kvstore.Store
	log *logrus.Entry
}

func New(kv kvstore.Store, log *logrus.Entry) *Store {
	return &Store{kv: kv, log: log}
}

// Merge folds a batch of device events into the persisted state. Events for
// ids outside the configured pump/valve set are dropped silently; for
// retained devices every attribute key in the event overwrites the stored
// attribute unconditionally (upstream delivers in causal order).
func (s *Store) Merge(ctx context.Context, events []messages.DeviceEvent) error {
	cfg, err := LoadPumpValves(ctx, s.kv)
	if err != nil {
		return err
	}
	states, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}

	merged := 0
	for _, ev := range events {
		if !cfg.Tracked(ev.ID) {
			continue
		}
		st, ok := states[ev.ID]
		if !ok {
			st = make(model.DeviceState, len(ev.Attributes))
			states[ev.ID] = st
		}
		for key, attr := range ev.Attributes {
			st[key] = attr
		}
		merged++
	}
	s.log.Debugf("statestore: merged %d/%d events", merged, len(events))

	raw, err := json.Marshal(states)
	if err != nil {
		return errors.Wrap(err, "marshal device states")
	}
	return s.kv.Set(ctx, kvstore.KeyDeviceStates, string(raw), 0)
}

// Snapshot returns the current merged view; a missing blob is an empty map.
func (s *Store) Snapshot(ctx context.Context) (model.DeviceStates, error) {
	raw, found, err := s.kv.Get(ctx, kvstore.KeyDeviceStates)
	if err != nil {
		return nil, err
	}
	if !found || raw == "" {
		return model.DeviceStates{}, nil
	}
	var states model.DeviceStates
	if err := json.Unmarshal([]byte(raw), &states); err != nil {
		return nil, errors.Wrap(err, "decode device states")
	}
	if states == nil {
		states = model.DeviceStates{}
	}
	return states, nil
}

// LoadPumpValves reads the operator-saved actuator configuration. Absent
// keys yield a zero config that tracks nothing.
func LoadPumpValves(ctx context.Context, kv kvstore.Store) (model.PumpValves, error) {
	var cfg model.PumpValves

	pumpID, _, err := kv.Get(ctx, kvstore.KeyPumpID)
	if err != nil {
		return cfg, err
	}
	cfg.PumpID = pumpID

	raw, found, err := kv.Get(ctx, kvstore.KeyValveIDs)
	if err != nil {
		return cfg, err
	}
	if found && raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg.ValveIDs); err != nil {
			return cfg, errors.Wrap(err, "decode valve ids")
		}
	}
	return cfg, nil
}

// SavePumpValves persists the actuator configuration.
func SavePumpValves(ctx context.Context, kv kvstore.Store, cfg model.PumpValves) error {
	if err := kv.Set(ctx, kvstore.KeyPumpID, cfg.PumpID, 0); err != nil {
		return err
	}
	raw, err := json.Marshal(cfg.ValveIDs)
	if err != nil {
		return errors.Wrap(err, "marshal valve ids")
	}
	return kv.Set(ctx, kvstore.KeyValveIDs, string(raw), 0)
}
