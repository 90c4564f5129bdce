// Package events defines the Data Connector event envelope and its typed
// payload variants. An Envelope is only ever constructed from a request body
// that already passed signature verification.
package events

import (
	"encoding/json"
	"strings"
	"time"

	"twin-bridge/internal/common/errors"
)

// Recognized event types.
const (
	TypeTemperature   = "temperature"
	TypeHumidity      = "humidity"
	TypeTouch         = "touch"
	TypeLabelsChanged = "labelsChanged"
)

// Envelope is the top-level Data Connector delivery: the event itself plus
// the source device's labels at the time of the event.
type Envelope struct {
	Event  Event             `json:"event"`
	Labels map[string]string `json:"labels"`
}

// Event is a single sensor event. Data is kept raw and decoded on demand by
// the typed accessors, since its shape depends on EventType.
type Event struct {
	EventType  string          `json:"eventType"`
	TargetName string          `json:"targetName"`
	Timestamp  time.Time       `json:"timestamp"`
	Data       json.RawMessage `json:"data"`
}

// Measurement is a numeric sample with its update time.
type Measurement struct {
	Value      float64   `json:"value"`
	UpdateTime time.Time `json:"updateTime"`
}

// TouchData carries the update time of a touch event.
type TouchData struct {
	UpdateTime time.Time `json:"updateTime"`
}

// LabelChange describes a labelsChanged event.
type LabelChange struct {
	Added    map[string]string `json:"added"`
	Modified map[string]string `json:"modified"`
	Removed  []string          `json:"removed"`
}

// ParseEnvelope decodes and structurally validates a verified request body.
func ParseEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, errors.MalformedPayloadError("invalid event JSON", err)
	}

	if env.Event.EventType == "" {
		return nil, errors.MalformedPayloadError("missing event type", nil)
	}

	if env.Event.TargetName == "" {
		return nil, errors.MalformedPayloadError("missing target name", nil)
	}

	if env.Event.DeviceID() == "" || env.Event.ProjectID() == "" {
		return nil, errors.MalformedPayloadError("malformed target name", nil).
			WithContext("target_name", env.Event.TargetName)
	}

	if env.Labels == nil {
		env.Labels = map[string]string{}
	}

	return &env, nil
}

// DeviceID returns the device identifier from the event's target name
// ("projects/{project}/devices/{device}").
func (e *Event) DeviceID() string {
	parts := strings.Split(e.TargetName, "/")
	if len(parts) < 4 || parts[0] != "projects" || parts[2] != "devices" {
		return ""
	}
	return parts[len(parts)-1]
}

// ProjectID returns the project identifier from the event's target name.
func (e *Event) ProjectID() string {
	parts := strings.Split(e.TargetName, "/")
	if len(parts) < 4 || parts[0] != "projects" || parts[2] != "devices" {
		return ""
	}
	return parts[1]
}

// Temperature decodes the data of a temperature event.
func (e *Event) Temperature() (*Measurement, error) {
	var data struct {
		Temperature *Measurement `json:"temperature"`
	}
	if err := json.Unmarshal(e.Data, &data); err != nil || data.Temperature == nil {
		return nil, errors.MalformedPayloadError("missing temperature data", err)
	}
	return data.Temperature, nil
}

// Humidity decodes the data of a humidity event. The platform reports
// relative humidity alongside a temperature sample; only humidity is
// returned here.
func (e *Event) Humidity() (*Measurement, error) {
	var data struct {
		Humidity *struct {
			RelativeHumidity float64   `json:"relativeHumidity"`
			UpdateTime       time.Time `json:"updateTime"`
		} `json:"humidity"`
	}
	if err := json.Unmarshal(e.Data, &data); err != nil || data.Humidity == nil {
		return nil, errors.MalformedPayloadError("missing humidity data", err)
	}
	return &Measurement{
		Value:      data.Humidity.RelativeHumidity,
		UpdateTime: data.Humidity.UpdateTime,
	}, nil
}

// Touch decodes the data of a touch event.
func (e *Event) Touch() (*TouchData, error) {
	var data struct {
		Touch *TouchData `json:"touch"`
	}
	if err := json.Unmarshal(e.Data, &data); err != nil || data.Touch == nil {
		return nil, errors.MalformedPayloadError("missing touch data", err)
	}
	return data.Touch, nil
}

// LabelsChanged decodes the data of a labelsChanged event.
func (e *Event) LabelsChanged() (*LabelChange, error) {
	if e.EventType != TypeLabelsChanged {
		return nil, errors.MalformedPayloadError("not a labelsChanged event", nil)
	}
	var change LabelChange
	if err := json.Unmarshal(e.Data, &change); err != nil {
		return nil, errors.MalformedPayloadError("missing label change data", err)
	}
	if change.Added == nil {
		change.Added = map[string]string{}
	}
	if change.Modified == nil {
		change.Modified = map[string]string{}
	}
	return &change, nil
}
