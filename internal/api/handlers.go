package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/launchbridge/internal/runstate"
	"github.com/mattjoyce/launchbridge/internal/state"
)

// handleHealthz handles GET /healthz.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := HealthzResponse{
		Status:        "ok",
		SweepID:       s.config.SweepID,
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Runs:          map[string]int{},
	}
	if s.deps.Queue != nil {
		resp.QueueDepth = s.deps.Queue.Len()
		resp.QueueCapacity = s.deps.Queue.Cap()
	}
	if s.deps.Table != nil {
		for st, n := range s.deps.Table.Counts() {
			resp.Runs[string(st)] = n
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleListRuns handles GET /runs. The in-memory table wins over the
// journal for runs this controller still tracks.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	byID := make(map[string]RunResponse)

	if s.deps.Journal != nil {
		rows, err := s.deps.Journal.List(r.Context())
		if err != nil {
			s.logger.Error("failed to list runs", "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to list runs")
			return
		}
		for _, row := range rows {
			updated := row.UpdatedAt
			byID[row.RunID] = RunResponse{
				RunID:     row.RunID,
				State:     string(row.State),
				Live:      row.State.Live(),
				UpdatedAt: &updated,
			}
		}
	}
	if s.deps.Table != nil {
		for id, st := range s.deps.Table.Snapshot() {
			resp := byID[id]
			resp.RunID = id
			resp.State = string(st)
			resp.Live = st.Live()
			byID[id] = resp
		}
	}

	resp := ListRunsResponse{SweepID: s.config.SweepID, Runs: make([]RunResponse, 0, len(byID))}
	for _, run := range byID {
		resp.Runs = append(resp.Runs, run)
	}
	sort.Slice(resp.Runs, func(i, j int) bool { return resp.Runs[i].RunID < resp.Runs[j].RunID })
	respondJSON(w, http.StatusOK, resp)
}

// handleGetRun handles GET /runs/{runID}.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	var (
		resp  RunDetailResponse
		found bool
	)
	resp.RunID = runID
	resp.History = []TransitionResponse{}

	if s.deps.Journal != nil {
		row, err := s.deps.Journal.Get(r.Context(), runID)
		switch {
		case errors.Is(err, state.ErrRunNotFound):
		case err != nil:
			s.logger.Error("failed to retrieve run", "run_id", runID, "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to retrieve run")
			return
		default:
			found = true
			updated := row.UpdatedAt
			resp.State = string(row.State)
			resp.Live = row.State.Live()
			resp.UpdatedAt = &updated

			history, err := s.deps.Journal.History(r.Context(), runID)
			if err != nil {
				s.logger.Error("failed to retrieve run history", "run_id", runID, "error", err)
				s.writeError(w, http.StatusInternalServerError, "failed to retrieve run history")
				return
			}
			for _, tr := range history {
				resp.History = append(resp.History, TransitionResponse{From: string(tr.From), To: string(tr.To), At: tr.At})
			}
		}
	}
	if s.deps.Table != nil {
		if st, ok := s.deps.Table.Get(runID); ok {
			found = true
			resp.State = string(st)
			resp.Live = st.Live()
		}
	}

	if !found {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// respondJSON is a helper to write JSON responses
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

var _ RunTable = (*runstate.Table)(nil)
