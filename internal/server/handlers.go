package server

import (
	"encoding/json"
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/samber/lo"

	"github.com/dmounsey/gridlight/internal/domain"
	"github.com/dmounsey/gridlight/internal/modules/stats"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"version": "1.0.0",
		"service": "gridlight",
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleIntensity returns the most recent intensity result
func (s *Server) handleIntensity(w http.ResponseWriter, r *http.Request) {
	result, ok := s.cycle.LastResult()
	if !ok {
		s.writeError(w, http.StatusNotFound, "No intensity computed yet")
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleStatus returns the most recent grid status report
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	report, ok := s.status.LastReport()
	if !ok {
		s.writeError(w, http.StatusNotFound, "No status evaluated yet")
		return
	}

	s.writeJSON(w, http.StatusOK, report)
}

// fuelInfo describes one fuel code as the pipeline sees it. KgPerKWh is
// null when no coefficient covers the current year.
type fuelInfo struct {
	Code        string   `json:"code"`
	DisplayName string   `json:"display_name"`
	Categories  []string `json:"categories"`
	KgPerKWh    *float64 `json:"kg_per_kwh"`
	ScaleFactor float64  `json:"scale_factor,omitempty"`
}

// handleFuels returns the configured fuel set with effective
// coefficients for the current year
func (s *Server) handleFuels(w http.ResponseWriter, r *http.Request) {
	year := time.Now().UTC().Year()

	codes := lo.Uniq(append(s.table.Fuels(), s.fuels.ExpectedFuels()...))
	sort.Strings(codes)

	fuels := make([]fuelInfo, 0, len(codes))
	for _, code := range codes {
		info := fuelInfo{
			Code:        code,
			DisplayName: s.fuels.DisplayName(code),
			Categories:  s.fuels.CategoriesOf(code),
		}
		if info.Categories == nil {
			info.Categories = []string{}
		}
		if kg, ok := s.table.Resolve(code, year); ok {
			info.KgPerKWh = &kg
		}
		if sf, ok := s.fuels.ScaleFactors[code]; ok {
			info.ScaleFactor = sf.Factor
		}
		fuels = append(fuels, info)
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"year":  year,
		"fuels": fuels,
	})
}

// handleHistory returns the most recent snapshots, oldest first
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 288
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 10000 {
			s.writeError(w, http.StatusBadRequest, "Invalid limit. Must be 1-10000")
			return
		}
		limit = parsed
	}

	snapshots := s.store.Window(limit)
	if snapshots == nil {
		snapshots = []domain.FuelSnapshot{}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":     len(snapshots),
		"snapshots": snapshots,
	})
}

// correlationsResponse mirrors domain.CorrelationResult with pointers
// for the coefficients. encoding/json rejects NaN, so undefined
// correlations are sent as null instead.
type correlationsResponse struct {
	PerFuelVsIntensity map[string]*float64 `json:"per_fuel_vs_intensity"`
	PerFuelVsDemand    map[string]*float64 `json:"per_fuel_vs_demand"`
	IntensityVsDemand  *float64            `json:"intensity_vs_demand"`
	Samples            int                 `json:"samples"`
}

func nullableFloat(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func newCorrelationsResponse(result domain.CorrelationResult) correlationsResponse {
	resp := correlationsResponse{
		PerFuelVsIntensity: make(map[string]*float64, len(result.PerFuelVsIntensity)),
		PerFuelVsDemand:    make(map[string]*float64, len(result.PerFuelVsDemand)),
		IntensityVsDemand:  nullableFloat(result.IntensityVsDemand),
		Samples:            result.Samples,
	}
	for fuel, coeff := range result.PerFuelVsIntensity {
		resp.PerFuelVsIntensity[fuel] = nullableFloat(coeff)
	}
	for fuel, coeff := range result.PerFuelVsDemand {
		resp.PerFuelVsDemand[fuel] = nullableFloat(coeff)
	}
	return resp
}

// handleCorrelations computes fuel correlations over a window of
// recent history
func (s *Server) handleCorrelations(w http.ResponseWriter, r *http.Request) {
	window := s.correlationWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 2 || parsed > 10000 {
			s.writeError(w, http.StatusBadRequest, "Invalid window. Must be 2-10000")
			return
		}
		window = parsed
	}

	result, err := s.stats.FuelCorrelations(s.store.Window(window))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "No history yet")
		return
	}

	s.writeJSON(w, http.StatusOK, newCorrelationsResponse(result))
}

// handleTrend returns the smoothed retail intensity series
func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	period := 12
	if raw := r.URL.Query().Get("period"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 1000 {
			s.writeError(w, http.StatusBadRequest, "Invalid period. Must be 1-1000")
			return
		}
		period = parsed
	}

	points, err := s.stats.Trend(s.store.Window(s.correlationWindow), period)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "No history yet")
		return
	}
	if points == nil {
		points = []stats.TrendPoint{}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"period": period,
		"points": points,
	})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{
		"error": message,
	})
}
