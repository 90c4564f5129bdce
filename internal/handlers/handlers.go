// Package handlers orchestrates one Data Connector invocation per inbound
// request: verify the signature, parse and transform the event, synchronize
// the twin, forward the derived update, and map the outcome to an HTTP
// status. Every error is handled here; nothing crashes the process.
package handlers

import (
	"context"
	"io"
	"net/http"

	"twin-bridge/internal/common/errors"
	"twin-bridge/internal/common/logging"
	"twin-bridge/internal/config"
	"twin-bridge/internal/events"
	"twin-bridge/internal/signature"
	"twin-bridge/internal/transform"
	"twin-bridge/internal/twin"
)

// maxBodyBytes bounds inbound request bodies; sensor events are tiny.
const maxBodyBytes = 1 << 20

// LabelWriter is the slice of the platform API the handler itself needs.
type LabelWriter interface {
	SetDeviceLabel(ctx context.Context, projectID, deviceID, key, value string) error
}

// Handlers holds the per-process collaborators shared by all invocations.
type Handlers struct {
	cfg      *config.Config
	verifier *signature.Verifier
	api      LabelWriter
	twins    *twin.Synchronizer
	logger   logging.Logger
}

// New creates the handler set.
func New(cfg *config.Config, verifier *signature.Verifier, api LabelWriter, twins *twin.Synchronizer, logger logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Handlers{
		cfg:      cfg,
		verifier: verifier,
		api:      api,
		twins:    twins,
		logger:   logger,
	}
}

// HandleDataConnector processes one webhook delivery.
func (h *Handlers) HandleDataConnector(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.RequestTimeout)
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.respond(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	// Authenticity gate: nothing else runs for an unverified request --
	// no parsing, no token use, no outbound calls
	if err := h.verifier.Verify(r.Header, body); err != nil {
		h.respond(w, http.StatusUnauthorized, "signature verification failed")
		return
	}

	env, err := events.ParseEnvelope(body)
	if err != nil {
		h.logger.Warn("Malformed event payload",
			logging.Field{Key: "error", Value: err.Error()},
		)
		h.respond(w, http.StatusBadRequest, "malformed event")
		return
	}

	logger := h.logger.WithFields(
		logging.Field{Key: "event_type", Value: env.Event.EventType},
		logging.Field{Key: "device", Value: env.Event.DeviceID()},
		logging.Field{Key: "project", Value: env.Event.ProjectID()},
	)

	// Label changes drive twin lifecycle only; there is no telemetry to
	// transform or forward
	if env.Event.EventType == events.TypeLabelsChanged {
		if _, err := h.twins.Sync(ctx, env); err != nil {
			h.fail(w, logger, err)
			return
		}
		h.respond(w, http.StatusOK, "OK")
		return
	}

	mutation, err := transform.Transform(env)
	if err != nil {
		if errors.IsType(err, errors.ErrTypeUnsupported) {
			// Expected for event types outside scope; the sender must not
			// be pushed into redelivering these
			logger.Info("Ignoring unsupported event type")
			h.respond(w, http.StatusBadRequest, "unsupported event type")
			return
		}
		h.fail(w, logger, err)
		return
	}

	twinDevice, err := h.twins.Sync(ctx, env)
	if err != nil {
		h.fail(w, logger, err)
		return
	}

	if err := h.api.SetDeviceLabel(ctx, mutation.ProjectID, mutation.DeviceID, mutation.Key, mutation.Value); err != nil {
		h.fail(w, logger, err)
		return
	}

	if twinDevice != nil && env.Event.EventType == events.TypeTemperature {
		if err := h.twins.UpdateModel(ctx, env, twinDevice); err != nil {
			h.fail(w, logger, err)
			return
		}
	}

	logger.Info("Event processed",
		logging.Field{Key: "label", Value: mutation.Key},
		logging.Field{Key: "value", Value: mutation.Value},
	)
	h.respond(w, http.StatusOK, "OK")
}

// HealthCheck reports process liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// fail logs the full error and responds with a status only; internal
// detail (which token fetch failed, which retry attempt) never reaches
// the sender.
func (h *Handlers) fail(w http.ResponseWriter, logger logging.Logger, err error) {
	status := statusForError(err)

	if status >= http.StatusInternalServerError {
		logger.Error("Event processing failed", err,
			logging.Field{Key: "status", Value: status},
		)
	} else {
		logger.Warn("Event rejected",
			logging.Field{Key: "status", Value: status},
			logging.Field{Key: "error", Value: err.Error()},
		)
	}

	h.respond(w, status, http.StatusText(status))
}

func (h *Handlers) respond(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	if message != "" {
		w.Write([]byte(message))
	}
}

// statusForError maps the error taxonomy to the trigger's response codes.
func statusForError(err error) int {
	switch errors.GetType(err) {
	case errors.ErrTypeSignature:
		return http.StatusUnauthorized
	case errors.ErrTypeMalformed, errors.ErrTypeUnsupported:
		return http.StatusBadRequest
	case errors.ErrTypeAuth:
		return http.StatusBadGateway
	case errors.ErrTypeTransient, errors.ErrTypeTimeout:
		return http.StatusServiceUnavailable
	case errors.ErrTypePermanent:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
