package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/yavuzozge/homeseer-dimmers/internal/history"
	"github.com/yavuzozge/homeseer-dimmers/internal/zwave"
)

// handleListRuns returns recorded runs, newest first.
//
// Query parameters:
//   - kind: "reconcile" or "ping" (default: both)
//   - limit: 1-200 (default 50)
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, r, ErrCodeUnavailable, "run history not available")
		return
	}

	kind := r.URL.Query().Get("kind")
	if kind != "" && kind != history.KindReconcile && kind != history.KindPing {
		writeError(w, r, ErrCodeBadRequest, "kind must be reconcile or ping")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, r, ErrCodeBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := s.runs.ListRuns(r.Context(), kind, limit)
	if err != nil {
		s.logger.Error("listing runs failed", "error", err, "request_id", requestIDFrom(r.Context()))
		writeError(w, r, ErrCodeInternal, "failed to list runs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

// deviceGroup is one discovery cache in GET /devices.
type deviceGroup struct {
	DiscoveredAt *time.Time     `json:"discovered_at"`
	Devices      []zwave.Device `json:"devices"`
}

// handleListDevices shows what the dimmer and ping discovery caches hold.
// It never triggers discovery.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]deviceGroup{
		"dimmers":      snapshotGroup(s.dimmers),
		"ping_targets": snapshotGroup(s.pingTargets),
	})
}

func snapshotGroup(src DeviceSnapshot) deviceGroup {
	group := deviceGroup{Devices: []zwave.Device{}}
	if src == nil {
		return group
	}
	devices, at := src.Snapshot()
	if devices != nil {
		group.Devices = devices
	}
	if !at.IsZero() {
		group.DiscoveredAt = &at
	}
	return group
}
