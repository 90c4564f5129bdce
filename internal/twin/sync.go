package twin

import (
	"context"
	"strconv"
	"strings"

	"twin-bridge/internal/common/errors"
	"twin-bridge/internal/common/logging"
	"twin-bridge/internal/dtapi"
	"twin-bridge/internal/events"
)

// DeviceAPI is the slice of the platform API the synchronizer needs.
type DeviceAPI interface {
	ListDevices(ctx context.Context, projectID string) ([]dtapi.Device, error)
	CreateEmulatedDevice(ctx context.Context, projectID string, req dtapi.CreateDeviceRequest) (*dtapi.Device, error)
	DeleteEmulatedDevice(ctx context.Context, projectID, deviceID string) error
	SetDeviceLabel(ctx context.Context, projectID, deviceID, key, value string) error
	PublishEvent(ctx context.Context, projectID, deviceID string, payload interface{}) error
}

// Synchronizer maintains the emulated twin of each emulation-enabled device.
type Synchronizer struct {
	api    DeviceAPI
	logger logging.Logger
}

// NewSynchronizer creates a twin synchronizer over the given API.
func NewSynchronizer(api DeviceAPI, logger logging.Logger) *Synchronizer {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Synchronizer{
		api:    api,
		logger: logger,
	}
}

// Sync brings the twin of the event's source device in line with the
// device's current labels. It returns the twin when one exists and further
// processing (model update) should happen, and nil when the event needs no
// more work — a device without the emulation label, or a labelsChanged
// event that only modified or removed the label.
func (s *Synchronizer) Sync(ctx context.Context, env *events.Envelope) (*dtapi.Device, error) {
	projectID := env.Event.ProjectID()
	deviceID := env.Event.DeviceID()

	devices, err := s.api.ListDevices(ctx, projectID)
	if err != nil {
		return nil, err
	}

	newSpawn := false
	if env.Event.EventType == events.TypeLabelsChanged {
		change, err := env.Event.LabelsChanged()
		if err != nil {
			return nil, err
		}

		if _, ok := change.Added[EmulationLabel]; ok {
			newSpawn = true
			s.logger.Info("Emulation label added", logging.Field{Key: "device", Value: deviceID})
		} else if _, ok := change.Modified[EmulationLabel]; ok {
			s.logger.Debug("Emulation label modified", logging.Field{Key: "device", Value: deviceID})
			return nil, nil
		} else if contains(change.Removed, EmulationLabel) {
			s.logger.Info("Emulation label removed", logging.Field{Key: "device", Value: deviceID})
			s.cleanTwins(ctx, projectID, deviceID, devices)
			return nil, nil
		}
	}

	if _, enabled := env.Labels[EmulationLabel]; !enabled && !newSpawn {
		// Device is not emulation-enabled; remove any stray twins
		s.cleanTwins(ctx, projectID, deviceID, devices)
		return nil, nil
	}

	original := findOriginal(deviceID, devices)
	if original == nil {
		return nil, errors.PermanentError("original device not found in project").
			WithContext("device", deviceID)
	}

	twin := findTwin(deviceID, devices)
	if twin == nil {
		s.cleanTwins(ctx, projectID, deviceID, devices)

		twin, err = s.spawnTwin(ctx, projectID, deviceID, original.DisplayName())
		if err != nil {
			return nil, err
		}
	}

	if !strings.HasPrefix(twin.DisplayName(), original.DisplayName()) {
		s.refreshTwinName(ctx, projectID, twin, original.DisplayName())
	}

	s.logger.Debug("Twin synchronized",
		logging.Field{Key: "device", Value: deviceID},
		logging.Field{Key: "twin", Value: twin.ID()},
	)
	return twin, nil
}

// UpdateModel advances the twin's modeled temperature for a temperature
// event and publishes the new value through the emulated device. A
// non-numeric coefficient label skips the update without failing the
// invocation, matching the sender's expectation that such events are
// acknowledged.
func (s *Synchronizer) UpdateModel(ctx context.Context, env *events.Envelope, twin *dtapi.Device) error {
	coefficient, err := strconv.ParseFloat(env.Labels[EmulationLabel], 64)
	if err != nil {
		s.logger.Warn("Non-numeric model coefficient, skipping update",
			logging.Field{Key: "device", Value: env.Event.DeviceID()},
			logging.Field{Key: "coefficient", Value: env.Labels[EmulationLabel]},
		)
		return nil
	}

	measured, err := env.Event.Temperature()
	if err != nil {
		return err
	}

	// First event for this twin passes the measured value through
	next := measured.Value
	if previous := twin.Reported["temperature"]; previous != nil {
		next = NextModelValue(previous.Value, previous.UpdateTime, measured.Value, measured.UpdateTime, coefficient)
	}

	payload := map[string]interface{}{
		"temperature": map[string]float64{"value": next},
	}
	if err := s.api.PublishEvent(ctx, env.Event.ProjectID(), twin.ID(), payload); err != nil {
		return err
	}

	s.logger.Info("Published modeled value to twin",
		logging.Field{Key: "twin", Value: twin.ID()},
		logging.Field{Key: "value", Value: next},
	)
	return nil
}

// cleanTwins deletes every twin associated with the device. Individual
// deletion failures are logged and skipped, like the platform's own
// eventual cleanup would.
func (s *Synchronizer) cleanTwins(ctx context.Context, projectID, deviceID string, devices []dtapi.Device) {
	for i := range devices {
		device := &devices[i]
		if !device.IsEmulated() {
			continue
		}
		if device.Labels[OriginalDeviceLabel] != deviceID {
			continue
		}

		if err := s.api.DeleteEmulatedDevice(ctx, projectID, device.ID()); err != nil {
			s.logger.Warn("Could not delete twin",
				logging.Field{Key: "twin", Value: device.ID()},
				logging.Field{Key: "error", Value: err.Error()},
			)
			continue
		}
		s.logger.Info("Deleted twin", logging.Field{Key: "twin", Value: device.ID()})
	}
}

func (s *Synchronizer) spawnTwin(ctx context.Context, projectID, deviceID, originalName string) (*dtapi.Device, error) {
	twin, err := s.api.CreateEmulatedDevice(ctx, projectID, dtapi.CreateDeviceRequest{
		Type: events.TypeTemperature,
		Labels: map[string]string{
			"name":              originalName + TwinNameSuffix,
			OriginalDeviceLabel: deviceID,
		},
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Spawned twin",
		logging.Field{Key: "device", Value: deviceID},
		logging.Field{Key: "twin", Value: twin.ID()},
	)
	return twin, nil
}

// refreshTwinName renames the twin after its original device. Rename
// failures are non-fatal; the stale name is cosmetic.
func (s *Synchronizer) refreshTwinName(ctx context.Context, projectID string, twin *dtapi.Device, originalName string) {
	newName := originalName + TwinNameSuffix
	if err := s.api.SetDeviceLabel(ctx, projectID, twin.ID(), "name", newName); err != nil {
		s.logger.Warn("Could not refresh twin name",
			logging.Field{Key: "twin", Value: twin.ID()},
			logging.Field{Key: "error", Value: err.Error()},
		)
		return
	}

	s.logger.Info("Twin name refreshed",
		logging.Field{Key: "twin", Value: twin.ID()},
		logging.Field{Key: "name", Value: newName},
	)
	if twin.Labels == nil {
		twin.Labels = map[string]string{}
	}
	twin.Labels["name"] = newName
}

func findTwin(deviceID string, devices []dtapi.Device) *dtapi.Device {
	for i := range devices {
		device := &devices[i]
		if !device.IsEmulated() {
			continue
		}
		if device.Labels[OriginalDeviceLabel] == deviceID {
			return device
		}
	}
	return nil
}

func findOriginal(deviceID string, devices []dtapi.Device) *dtapi.Device {
	for i := range devices {
		if devices[i].ID() == deviceID {
			return &devices[i]
		}
	}
	return nil
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
