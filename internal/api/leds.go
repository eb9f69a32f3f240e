package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/yavuzozge/homeseer-dimmers/internal/history"
	"github.com/yavuzozge/homeseer-dimmers/internal/led"
	"github.com/yavuzozge/homeseer-dimmers/internal/ledsync"
)

// ledsResponse is the body of GET /leds.
type ledsResponse struct {
	// Input is the table aggregated from Home Assistant entities.
	Input *led.Table `json:"input,omitempty"`

	// Desired is the table of the most recent sync request.
	Desired led.Table `json:"desired"`

	// LastSync is the most recent reconciliation run, if any.
	LastSync *history.Run `json:"last_sync,omitempty"`
}

// ledsRequest is the body of PUT /leds.
type ledsRequest struct {
	LEDs *led.Table `json:"leds"`
}

// acceptedResponse acknowledges a queued operation group.
type acceptedResponse struct {
	Status  string `json:"status"`
	Trigger string `json:"trigger"`
}

func (s *Server) handleGetLEDs(w http.ResponseWriter, _ *http.Request) {
	resp := ledsResponse{Desired: s.coordinator.LastTable()}
	if s.input != nil {
		current := s.input.Current()
		resp.Input = &current
	}
	if run, ok := s.coordinator.LastRun(history.KindReconcile); ok {
		resp.LastSync = &run
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePutLEDs queues a sync toward the supplied table.
func (s *Server) handlePutLEDs(w http.ResponseWriter, r *http.Request) {
	var req ledsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, r, ErrCodeTooLarge, "request body too large")
			return
		}
		writeError(w, r, ErrCodeBadRequest, "invalid LED table: "+err.Error())
		return
	}
	if req.LEDs == nil {
		writeError(w, r, ErrCodeValidation, "leds is required")
		return
	}

	s.coordinator.SyncDimmersFrom(ledsync.TriggerAPI, *req.LEDs)
	writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "queued", Trigger: string(ledsync.TriggerAPI)})
}

// handleSync queues a resync with the last table.
func (s *Server) handleSync(w http.ResponseWriter, _ *http.Request) {
	s.coordinator.ResyncFrom(ledsync.TriggerAPI)
	writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "queued", Trigger: string(ledsync.TriggerAPI)})
}

// handlePing queues a ping pass.
func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	s.coordinator.PingFrom(ledsync.TriggerAPI)
	writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "queued", Trigger: string(ledsync.TriggerAPI)})
}
