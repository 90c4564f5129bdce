// Package twin keeps emulated twin devices synchronized with their physical
// counterparts and updates the twin's modeled temperature on new events.
package twin

import "time"

// Labels and naming conventions for emulated twins.
const (
	// EmulationLabel marks a device as emulation-enabled; its value is the
	// model coefficient
	EmulationLabel = "inertia-model"
	// OriginalDeviceLabel on a twin names the physical device it mirrors
	OriginalDeviceLabel = "original_device_id"
	// TwinNameSuffix is appended to the original device's name
	TwinNameSuffix = " twin"
)

// NextModelValue advances the inertia model one step: the modeled value
// moves toward the measured value proportionally to the coefficient k and
// the elapsed time, normalized by the minute.
func NextModelValue(previous float64, previousTime time.Time, measured float64, eventTime time.Time, k float64) float64 {
	delta := -k * (previous - measured)
	normalizer := eventTime.Sub(previousTime).Minutes()
	return previous + delta*normalizer
}
