package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/nerrad567/wink-bridge/internal/apron"
	"github.com/nerrad567/wink-bridge/internal/audit"
	"github.com/nerrad567/wink-bridge/internal/process"
)

// DiscoveryRequest is the body of POST /api/devices/discovery.
type DiscoveryRequest struct {
	Radio string `json:"radio"`
}

// RawCommandRequest is the body of POST /api/aprontest.
type RawCommandRequest struct {
	Command string `json:"command"`
}

// ToolResponse reports one control tool invocation. Status is false when the
// tool exited non-zero, timed out or could not be started; Stderr then
// carries the reason.
type ToolResponse struct {
	Status bool   `json:"status"`
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// handleDiscovery starts a discovery scan on one radio.
func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	var req DiscoveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	req.Radio = strings.TrimSpace(strings.ToLower(req.Radio))
	if req.Radio == "" {
		writeBadRequest(w, "radio is required")
		return
	}

	res, err := s.commands.StartDiscovery(r.Context(), audit.SourceHTTP, req.Radio)
	if errors.Is(err, apron.ErrInvalidRadio) {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}
	s.writeToolResult(w, res, err)
}

// handleRawCommand runs an arbitrary control tool command. The command is
// split on whitespace and never passed to a shell.
func (s *Server) handleRawCommand(w http.ResponseWriter, r *http.Request) {
	var req RawCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	res, err := s.commands.Raw(r.Context(), audit.SourceHTTP, req.Command)
	if errors.Is(err, apron.ErrEmptyCommand) {
		writeBadRequest(w, "command is required")
		return
	}
	s.writeToolResult(w, res, err)
}

func (s *Server) writeToolResult(w http.ResponseWriter, res process.Result, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, ToolResponse{Status: true, Stdout: res.Stdout, Stderr: res.Stderr})
		return
	}

	switch {
	case errors.Is(err, process.ErrNonZeroExit):
		stderr := res.Stderr
		if stderr == "" {
			stderr = err.Error()
		}
		writeJSON(w, http.StatusOK, ToolResponse{Stdout: res.Stdout, Stderr: stderr})
	case errors.Is(err, process.ErrTimeout), errors.Is(err, process.ErrExecFailed):
		writeJSON(w, http.StatusOK, ToolResponse{Stdout: res.Stdout, Stderr: joinLines(res.Stderr, err.Error())})
	default:
		s.logger.Error("control tool invocation failed", "error", err)
		writeInternalError(w, "command failed")
	}
}

func joinLines(a, b string) string {
	a = strings.TrimRight(a, "\n")
	if a == "" {
		return b
	}
	return a + "\n" + b
}
