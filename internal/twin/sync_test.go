package twin

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twin-bridge/internal/common/errors"
	"twin-bridge/internal/dtapi"
	"twin-bridge/internal/events"
)

// fakeAPI is an in-memory stand-in for the platform API.
type fakeAPI struct {
	devices []dtapi.Device

	created   []dtapi.CreateDeviceRequest
	deleted   []string
	labels    map[string]string
	published []interface{}

	listErr   error
	createErr error
}

func newFakeAPI(devices ...dtapi.Device) *fakeAPI {
	return &fakeAPI{
		devices: devices,
		labels:  map[string]string{},
	}
}

func (f *fakeAPI) ListDevices(ctx context.Context, projectID string) ([]dtapi.Device, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.devices, nil
}

func (f *fakeAPI) CreateEmulatedDevice(ctx context.Context, projectID string, req dtapi.CreateDeviceRequest) (*dtapi.Device, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	device := dtapi.Device{
		Name:   "projects/" + projectID + "/devices/emu-new",
		Labels: req.Labels,
	}
	f.devices = append(f.devices, device)
	return &device, nil
}

func (f *fakeAPI) DeleteEmulatedDevice(ctx context.Context, projectID, deviceID string) error {
	f.deleted = append(f.deleted, deviceID)
	return nil
}

func (f *fakeAPI) SetDeviceLabel(ctx context.Context, projectID, deviceID, key, value string) error {
	f.labels[deviceID+"/"+key] = value
	return nil
}

func (f *fakeAPI) PublishEvent(ctx context.Context, projectID, deviceID string, payload interface{}) error {
	f.published = append(f.published, payload)
	return nil
}

func original(labels map[string]string) dtapi.Device {
	if labels == nil {
		labels = map[string]string{}
	}
	return dtapi.Device{Name: "projects/p1/devices/d1", Labels: labels}
}

func existingTwin() dtapi.Device {
	return dtapi.Device{
		Name: "projects/p1/devices/emu-1",
		Labels: map[string]string{
			"name":              "office twin",
			OriginalDeviceLabel: "d1",
		},
	}
}

func temperatureEnvelope(labels map[string]string) *events.Envelope {
	if labels == nil {
		labels = map[string]string{}
	}
	return &events.Envelope{
		Event: events.Event{
			EventType:  events.TypeTemperature,
			TargetName: "projects/p1/devices/d1",
			Data:       json.RawMessage(`{"temperature": {"value": 22.0, "updateTime": "2023-01-01T12:01:00Z"}}`),
		},
		Labels: labels,
	}
}

func labelsChangedEnvelope(t *testing.T, change events.LabelChange, labels map[string]string) *events.Envelope {
	t.Helper()
	data, err := json.Marshal(change)
	require.NoError(t, err)
	if labels == nil {
		labels = map[string]string{}
	}
	return &events.Envelope{
		Event: events.Event{
			EventType:  events.TypeLabelsChanged,
			TargetName: "projects/p1/devices/d1",
			Data:       data,
		},
		Labels: labels,
	}
}

func TestSyncSpawnsTwinForEnabledDevice(t *testing.T) {
	api := newFakeAPI(original(map[string]string{"name": "office"}))
	s := NewSynchronizer(api, nil)

	twin, err := s.Sync(context.Background(), temperatureEnvelope(map[string]string{
		EmulationLabel: "0.5",
		"name":         "office",
	}))
	require.NoError(t, err)
	require.NotNil(t, twin)

	require.Len(t, api.created, 1)
	assert.Equal(t, "office twin", api.created[0].Labels["name"])
	assert.Equal(t, "d1", api.created[0].Labels[OriginalDeviceLabel])
}

func TestSyncReusesExistingTwin(t *testing.T) {
	api := newFakeAPI(original(map[string]string{"name": "office"}), existingTwin())
	s := NewSynchronizer(api, nil)

	twin, err := s.Sync(context.Background(), temperatureEnvelope(map[string]string{
		EmulationLabel: "0.5",
		"name":         "office",
	}))
	require.NoError(t, err)
	require.NotNil(t, twin)

	assert.Equal(t, "emu-1", twin.ID())
	assert.Empty(t, api.created)
	assert.Empty(t, api.deleted)
}

func TestSyncRenamesStaleTwin(t *testing.T) {
	stale := existingTwin()
	stale.Labels["name"] = "old name twin"

	api := newFakeAPI(original(map[string]string{"name": "kitchen"}), stale)
	s := NewSynchronizer(api, nil)

	_, err := s.Sync(context.Background(), temperatureEnvelope(map[string]string{
		EmulationLabel: "0.5",
		"name":         "kitchen",
	}))
	require.NoError(t, err)

	assert.Equal(t, "kitchen twin", api.labels["emu-1/name"])
}

func TestSyncCleansTwinsWhenLabelAbsent(t *testing.T) {
	api := newFakeAPI(original(nil), existingTwin())
	s := NewSynchronizer(api, nil)

	twin, err := s.Sync(context.Background(), temperatureEnvelope(nil))
	require.NoError(t, err)

	assert.Nil(t, twin)
	assert.Equal(t, []string{"emu-1"}, api.deleted)
}

func TestSyncOriginalDeviceMissing(t *testing.T) {
	api := newFakeAPI() // project has no devices at all
	s := NewSynchronizer(api, nil)

	_, err := s.Sync(context.Background(), temperatureEnvelope(map[string]string{
		EmulationLabel: "0.5",
	}))
	require.Error(t, err)
	assert.Equal(t, errors.ErrTypePermanent, errors.GetType(err))
}

func TestSyncLabelAdded(t *testing.T) {
	api := newFakeAPI(original(map[string]string{"name": "office"}))
	s := NewSynchronizer(api, nil)

	env := labelsChangedEnvelope(t, events.LabelChange{
		Added: map[string]string{EmulationLabel: "0.3"},
	}, nil)

	twin, err := s.Sync(context.Background(), env)
	require.NoError(t, err)
	require.NotNil(t, twin)
	assert.Len(t, api.created, 1)
}

func TestSyncLabelModifiedIsNoOp(t *testing.T) {
	api := newFakeAPI(original(nil), existingTwin())
	s := NewSynchronizer(api, nil)

	env := labelsChangedEnvelope(t, events.LabelChange{
		Modified: map[string]string{EmulationLabel: "0.9"},
	}, map[string]string{EmulationLabel: "0.9"})

	twin, err := s.Sync(context.Background(), env)
	require.NoError(t, err)

	assert.Nil(t, twin)
	assert.Empty(t, api.created)
	assert.Empty(t, api.deleted)
}

func TestSyncLabelRemovedDeletesTwin(t *testing.T) {
	api := newFakeAPI(original(nil), existingTwin())
	s := NewSynchronizer(api, nil)

	env := labelsChangedEnvelope(t, events.LabelChange{
		Removed: []string{EmulationLabel},
	}, nil)

	twin, err := s.Sync(context.Background(), env)
	require.NoError(t, err)

	assert.Nil(t, twin)
	assert.Equal(t, []string{"emu-1"}, api.deleted)
}

func TestSyncPropagatesListFailure(t *testing.T) {
	api := newFakeAPI()
	api.listErr = errors.TransientError("platform API unreachable", nil)
	s := NewSynchronizer(api, nil)

	_, err := s.Sync(context.Background(), temperatureEnvelope(map[string]string{
		EmulationLabel: "0.5",
	}))
	require.Error(t, err)
	assert.Equal(t, errors.ErrTypeTransient, errors.GetType(err))
}

func TestUpdateModelFirstEventPassesThrough(t *testing.T) {
	api := newFakeAPI()
	s := NewSynchronizer(api, nil)

	twin := existingTwin()
	env := temperatureEnvelope(map[string]string{EmulationLabel: "0.5"})

	require.NoError(t, s.UpdateModel(context.Background(), env, &twin))

	require.Len(t, api.published, 1)
	payload := api.published[0].(map[string]interface{})
	assert.Equal(t, 22.0, payload["temperature"].(map[string]float64)["value"])
}

func TestUpdateModelAdvancesFromReportedState(t *testing.T) {
	api := newFakeAPI()
	s := NewSynchronizer(api, nil)

	twin := existingTwin()
	twin.Reported = map[string]*events.Measurement{
		"temperature": {
			Value:      20.0,
			UpdateTime: time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC),
		},
	}
	// Measured 22.0 at 12:01:00, one minute after the reported state:
	// 20 + (-0.5 * (20-22)) * 1 = 21
	env := temperatureEnvelope(map[string]string{EmulationLabel: "0.5"})

	require.NoError(t, s.UpdateModel(context.Background(), env, &twin))

	require.Len(t, api.published, 1)
	payload := api.published[0].(map[string]interface{})
	assert.InDelta(t, 21.0, payload["temperature"].(map[string]float64)["value"], 1e-9)
}

func TestUpdateModelNonNumericCoefficient(t *testing.T) {
	api := newFakeAPI()
	s := NewSynchronizer(api, nil)

	twin := existingTwin()
	env := temperatureEnvelope(map[string]string{EmulationLabel: "not-a-number"})

	// Skipped without error; the event is still acknowledged upstream
	require.NoError(t, s.UpdateModel(context.Background(), env, &twin))
	assert.Empty(t, api.published)
}
