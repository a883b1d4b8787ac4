package server

import (
	"net/http"
	"runtime"
	"time"
)

// handleSystemStatus returns process and pipeline health for monitoring
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	s.log.Debug().Msg("Getting system status")

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	// Age of the newest snapshot, null before the first ingest
	var newestAge *float64
	if snap, ok := s.store.Latest(); ok {
		age := time.Since(snap.Time()).Seconds()
		newestAge = &age
	}

	response := map[string]interface{}{
		"status":         "running",
		"uptime_seconds": time.Since(s.startedAt).Seconds(),
		"memory": map[string]interface{}{
			"alloc_mb":       m.Alloc / 1024 / 1024,
			"total_alloc_mb": m.TotalAlloc / 1024 / 1024,
			"sys_mb":         m.Sys / 1024 / 1024,
			"num_gc":         m.NumGC,
		},
		"goroutines":         runtime.NumGoroutine(),
		"history_depth":      s.store.Len(),
		"newest_age_seconds": newestAge,
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleTriggerPoll triggers the poll cycle job immediately
// POST /api/system/poll
func (s *Server) handleTriggerPoll(w http.ResponseWriter, r *http.Request) {
	if s.pollJob == nil {
		s.log.Warn().Msg("Poll job not registered yet")
		s.writeError(w, http.StatusServiceUnavailable, "Poll job not registered")
		return
	}

	s.log.Info().Msg("Manual poll cycle triggered")

	if err := s.scheduler.RunNow(s.pollJob); err != nil {
		s.log.Error().Err(err).Msg("Failed to trigger poll cycle")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Poll cycle triggered",
	})
}

// handleTriggerStats triggers the stats report job immediately
// POST /api/system/stats
func (s *Server) handleTriggerStats(w http.ResponseWriter, r *http.Request) {
	if s.statsJob == nil {
		s.log.Warn().Msg("Stats job not registered yet")
		s.writeError(w, http.StatusServiceUnavailable, "Stats job not registered")
		return
	}

	s.log.Info().Msg("Manual stats report triggered")

	if err := s.scheduler.RunNow(s.statsJob); err != nil {
		s.log.Error().Err(err).Msg("Failed to trigger stats report")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Stats report triggered",
	})
}
