package pump

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smartgarden/pumpbridge/internal/gardena"
	"github.com/smartgarden/pumpbridge/internal/model"
	"github.com/smartgarden/pumpbridge/internal/model/messages"
	"github.com/smartgarden/pumpbridge/internal/services/statestore"
	"github.com/smartgarden/pumpbridge/pkg/kvstore"
	"github.com/smartgarden/pumpbridge/pkg/mqtt"
)

// OverrideSeconds bounds every pump start. The pump is never told to run
// indefinitely: a missed close event can cost at most this much runtime.
const OverrideSeconds = 3600

// Engine derives the pump command from the merged valve states and issues
// it upstream. The command is recomputed from scratch on every cycle; there
// is no hysteresis and no persisted pump state.
type Engine struct {
	kv        kvstore.Store
	states    *statestore.Store
	api       *gardena.Client
	publisher mqtt.IPublisher // optional decision side-channel
	log       *logrus.Entry
}

func NewEngine(kv kvstore.Store, states *statestore.Store, api *gardena.Client, log *logrus.Entry) *Engine {
	return &Engine{kv: kv, states: states, api: api, log: log}
}

// SetPublisher attaches the optional MQTT decision publisher.
func (e *Engine) SetPublisher(p mqtt.IPublisher) { e.publisher = p }

// Compute reads the configured valves and the state map and returns the
// command plus the valves currently watering. A valve with no recorded
// state counts as not watering, so an empty map always yields closed.
func (e *Engine) Compute(ctx context.Context) (model.PumpCommand, []string, error) {
	cfg, err := statestore.LoadPumpValves(ctx, e.kv)
	if err != nil {
		return model.PumpClosed, nil, err
	}
	snap, err := e.states.Snapshot(ctx)
	if err != nil {
		return model.PumpClosed, nil, err
	}

	var watering []string
	for _, id := range cfg.ValveIDs {
		if snap[id].Watering() {
			watering = append(watering, id)
		}
	}
	if len(watering) > 0 {
		return model.PumpOpen, watering, nil
	}
	return model.PumpClosed, nil, nil
}

// Issue sends the actuator command for the configured pump: open starts it
// for OverrideSeconds, closed stops it until the next scheduled task.
func (e *Engine) Issue(ctx context.Context, cmd model.PumpCommand) error {
	cfg, err := statestore.LoadPumpValves(ctx, e.kv)
	if err != nil {
		return err
	}
	if cfg.PumpID == "" {
		return &model.ValidationError{Msg: "no pump configured"}
	}

	seconds := 0
	if cmd == model.PumpOpen {
		seconds = OverrideSeconds
	}
	if err := e.api.SendCommand(ctx, cfg.PumpID, cmd, seconds); err != nil {
		return err
	}
	e.log.Infof("pump: %s (pump=%s)", cmd, cfg.PumpID)
	return nil
}

// Reconcile computes and issues in one step, returning the command and the
// valves that drove it. Pump computation always observes the state merged
// just before, so callers must run this after Merge, never concurrently
// with it.
func (e *Engine) Reconcile(ctx context.Context) (model.PumpCommand, []string, error) {
	cmd, watering, err := e.Compute(ctx)
	if err != nil {
		return cmd, nil, err
	}
	if err := e.Issue(ctx, cmd); err != nil {
		return cmd, nil, err
	}
	e.publishDecision(ctx, cmd, watering)
	return cmd, watering, nil
}

// publishDecision emits the decision on the optional MQTT channel. Failures
// are logged, never surfaced: the side-channel must not break webhook
// processing.
func (e *Engine) publishDecision(ctx context.Context, cmd model.PumpCommand, watering []string) {
	if e.publisher == nil {
		return
	}
	cfg, err := statestore.LoadPumpValves(ctx, e.kv)
	if err != nil {
		e.log.Warnf("pump: decision publish skipped: %v", err)
		return
	}
	evt := messages.PumpDecisionEvent{
		PumpID:         cfg.PumpID,
		Command:        string(cmd),
		WateringValves: watering,
		Timestamp:      time.Now().UTC(),
	}
	raw, _ := json.Marshal(evt)
	if err := e.publisher.PublishQoS(1, string(raw)); err != nil {
		e.log.Warnf("pump: decision publish failed: %v", err)
	}
}
