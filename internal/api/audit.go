package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/wink-bridge/internal/audit"
)

// handleListCommands returns paginated command log entries with optional filters.
//
// Query parameters:
//   - source: filter by origin (mqtt, http)
//   - operation: filter by operation (set, discovery, raw)
//   - device_id: filter by device
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.Filter{
		Source:    q.Get("source"),
		Operation: q.Get("operation"),
	}

	if v := q.Get("device_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			writeBadRequest(w, "device_id must be an unsigned 32-bit integer")
			return
		}
		deviceID := uint32(id)
		filter.DeviceID = &deviceID
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		if audit.ErrDisabled(err) {
			writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "command log is disabled")
			return
		}
		s.logger.Error("failed to list commands", "error", err)
		writeInternalError(w, "failed to list commands")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
