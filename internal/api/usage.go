package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/usage"
)

// maxUsageDays bounds the GET /v1/usage window.
const maxUsageDays = 366

// UsageReader reads aggregated totals from the usage ledger.
// *usage.Store implements it.
type UsageReader interface {
	Summary(start, end time.Time) (*usage.Summary, error)
	SummaryByOutcome(start, end time.Time) (map[string]*usage.Summary, error)
	SummaryByModel(start, end time.Time) (map[string]*usage.Summary, error)
}

// UsageReport is the GET /v1/usage reply.
type UsageReport struct {
	Days      int                       `json:"days"`
	Start     time.Time                 `json:"start"`
	End       time.Time                 `json:"end"`
	Total     *usage.Summary            `json:"total"`
	ByOutcome map[string]*usage.Summary `json:"by_outcome"`
	ByModel   map[string]*usage.Summary `json:"by_model"`
}

// SetUsage enables GET /v1/usage. Call it before Start.
func (s *Server) SetUsage(u UsageReader) {
	s.usage = u
}

// handleUsage reports ledger totals for the last ?days=N days (default 1).
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if s.usage == nil {
		s.reply(w, http.StatusNotFound, "usage ledger disabled")
		return
	}

	days := 1
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxUsageDays {
			s.reply(w, http.StatusBadRequest, "days must be between 1 and "+strconv.Itoa(maxUsageDays))
			return
		}
		days = n
	}

	// A small future buffer keeps records written this second in range.
	end := s.now().Add(time.Minute)
	start := end.Add(-time.Minute).AddDate(0, 0, -days)

	report := UsageReport{Days: days, Start: start.UTC(), End: end.UTC()}
	var err error
	if report.Total, err = s.usage.Summary(start, end); err == nil {
		if report.ByOutcome, err = s.usage.SummaryByOutcome(start, end); err == nil {
			report.ByModel, err = s.usage.SummaryByModel(start, end)
		}
	}
	if err != nil {
		s.logger.Error("usage query failed", "error", err)
		s.reply(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, report, s.logger)
}
