// Package transform maps verified events to outbound label mutations. All
// transformations are pure and deterministic: the same envelope always yields
// the same mutation, and no I/O happens here.
package transform

import (
	"strconv"
	"time"

	"twin-bridge/internal/common/errors"
	"twin-bridge/internal/events"
)

// Mutation is the derived API call: set Key=Value on the source device.
type Mutation struct {
	ProjectID string
	DeviceID  string
	Key       string
	Value     string
}

// Func transforms one event variant into a mutation.
type Func func(env *events.Envelope) (*Mutation, error)

// transformers is the closed set of recognized telemetry event types.
// labelsChanged is intentionally absent: it drives twin synchronization,
// not a label mutation, and is dispatched before transformation.
var transformers = map[string]Func{
	events.TypeTemperature: transformTemperature,
	events.TypeHumidity:    transformHumidity,
	events.TypeTouch:       transformTouch,
}

// Transform maps a verified envelope to its label mutation. Event types
// outside the recognized set fail with an unsupported-event error.
func Transform(env *events.Envelope) (*Mutation, error) {
	fn, ok := transformers[env.Event.EventType]
	if !ok {
		return nil, errors.UnsupportedEventError(env.Event.EventType)
	}
	return fn(env)
}

// Recognized reports whether the event type has a registered transformation.
func Recognized(eventType string) bool {
	_, ok := transformers[eventType]
	return ok
}

func transformTemperature(env *events.Envelope) (*Mutation, error) {
	m, err := env.Event.Temperature()
	if err != nil {
		return nil, err
	}
	return mutation(env, "temperature", formatValue(m.Value)), nil
}

func transformHumidity(env *events.Envelope) (*Mutation, error) {
	m, err := env.Event.Humidity()
	if err != nil {
		return nil, err
	}
	return mutation(env, "humidity", formatValue(m.Value)), nil
}

func transformTouch(env *events.Envelope) (*Mutation, error) {
	t, err := env.Event.Touch()
	if err != nil {
		return nil, err
	}
	return mutation(env, "last_touch", t.UpdateTime.UTC().Format(time.RFC3339)), nil
}

func mutation(env *events.Envelope, key, value string) *Mutation {
	return &Mutation{
		ProjectID: env.Event.ProjectID(),
		DeviceID:  env.Event.DeviceID(),
		Key:       key,
		Value:     value,
	}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
