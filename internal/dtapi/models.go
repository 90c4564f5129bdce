package dtapi

import (
	"strings"

	"twin-bridge/internal/events"
)

// Device is a project device as returned by the platform API. Emulated
// devices live under the same project and are distinguished by an "emu"
// identifier prefix.
type Device struct {
	Name     string                         `json:"name"`
	Labels   map[string]string              `json:"labels"`
	Reported map[string]*events.Measurement `json:"reported,omitempty"`
}

// ID returns the device identifier, the last segment of the resource name.
func (d *Device) ID() string {
	parts := strings.Split(d.Name, "/")
	return parts[len(parts)-1]
}

// DisplayName returns the device's given name label, falling back to the
// identifier when no name label is set.
func (d *Device) DisplayName() string {
	if name, ok := d.Labels["name"]; ok && name != "" {
		return name
	}
	return d.ID()
}

// IsEmulated reports whether the device is an emulated one.
func (d *Device) IsEmulated() bool {
	return strings.HasPrefix(d.ID(), "emu")
}

// CreateDeviceRequest describes a new emulated device.
type CreateDeviceRequest struct {
	Type   string            `json:"type"`
	Labels map[string]string `json:"labels"`
}

type deviceList struct {
	Devices []Device `json:"devices"`
}

type labelValue struct {
	Value string `json:"value"`
}
