package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/wink-bridge/internal/apron"
	"github.com/nerrad567/wink-bridge/internal/audit"
	"github.com/nerrad567/wink-bridge/internal/device"
	"github.com/nerrad567/wink-bridge/internal/process"
)

// SetAttributeRequest is the body of POST /api/devices/{device_id}/{attribute_id}.
type SetAttributeRequest struct {
	ValueText *string `json:"value_text"`
}

// SetAttributeResponse reports the value that was written.
type SetAttributeResponse struct {
	DeviceID    uint32       `json:"device_id"`
	AttributeID uint32       `json:"attribute_id"`
	Value       device.Value `json:"value"`
}

// handleListDevices returns the full current snapshot.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.registry.Snapshot().Devices()
	if devices == nil {
		devices = []device.Device{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "device_id")
	if !ok {
		return
	}

	d, err := s.registry.Device(id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// handleSetAttribute writes one attribute through the shared write path:
// the tool is invoked, the snapshot updated optimistically and a resync of
// the device requested.
func (s *Server) handleSetAttribute(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := parseID(w, r, "device_id")
	if !ok {
		return
	}
	attributeID, ok := parseID(w, r, "attribute_id")
	if !ok {
		return
	}

	var req SetAttributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.ValueText == nil {
		writeBadRequest(w, "value_text is required")
		return
	}

	v, err := s.commands.SetAttribute(r.Context(), audit.SourceHTTP, deviceID, attributeID, *req.ValueText)
	if err != nil {
		s.logger.Warn("set attribute failed",
			"device_id", deviceID,
			"attribute_id", attributeID,
			"error", err,
		)
		writeCommandError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SetAttributeResponse{
		DeviceID:    deviceID,
		AttributeID: attributeID,
		Value:       v,
	})
}

// parseID reads a uint32 URL parameter, writing a 400 when it is malformed.
func parseID(w http.ResponseWriter, r *http.Request, name string) (uint32, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		writeBadRequest(w, fmt.Sprintf("%s must be an unsigned 32-bit integer", name))
		return 0, false
	}
	return uint32(id), true
}

// writeCommandError maps write path errors to HTTP responses.
func writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, device.ErrDeviceNotFound), errors.Is(err, apron.ErrUnknownDevice):
		writeNotFound(w, "device not found")
	case errors.Is(err, device.ErrAttributeNotFound):
		writeNotFound(w, "attribute not found")
	case errors.Is(err, device.ErrReadOnly),
		errors.Is(err, device.ErrInvalidValue),
		errors.Is(err, device.ErrNoValue),
		errors.Is(err, device.ErrTypeMismatch):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, process.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, ErrCodeToolFailed, err.Error())
	case errors.Is(err, process.ErrNonZeroExit), errors.Is(err, process.ErrExecFailed):
		writeError(w, http.StatusBadGateway, ErrCodeToolFailed, err.Error())
	default:
		writeInternalError(w, "command failed")
	}
}
