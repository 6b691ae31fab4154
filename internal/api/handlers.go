package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/urlfinder/internal/executor"
	"github.com/JakeFAU/urlfinder/internal/progress"
	"github.com/JakeFAU/urlfinder/internal/resolver"
)

const maxRequestBytes = 1 << 20

type resolveRequest struct {
	Candidates     []resolver.Candidate `json:"candidates"`
	MaxParallelism int                  `json:"max_parallelism,omitempty"`
	BatchID        string               `json:"batch_id,omitempty"`
}

type resolveSummary struct {
	Total      int `json:"total"`
	Resolved   int `json:"resolved"`
	Unresolved int `json:"unresolved"`
	Errored    int `json:"errored"`
}

func (s resolveSummary) String() string {
	return fmt.Sprintf("resolved=%d unresolved=%d errored=%d", s.Resolved, s.Unresolved, s.Errored)
}

type resolveResponse struct {
	BatchID  string             `json:"batch_id"`
	Outcomes []resolver.Outcome `json:"outcomes"`
	Summary  resolveSummary     `json:"summary"`
}

func (s *Server) resolve(w http.ResponseWriter, r *http.Request) {
	if s.resolver == nil {
		writeError(w, http.StatusServiceUnavailable, "resolver not configured")
		return
	}
	var req resolveRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Candidates) == 0 {
		writeError(w, http.StatusBadRequest, "candidates must not be empty")
		return
	}
	if limit := s.cfg.Server.MaxCandidates; limit > 0 && len(req.Candidates) > limit {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d candidates per request", limit))
		return
	}
	if req.MaxParallelism < 0 {
		writeError(w, http.StatusBadRequest, "max_parallelism must be >= 0")
		return
	}
	batchID, err := parseBatchID(req.BatchID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "batch_id must be a UUID")
		return
	}

	candidates := make([]resolver.Candidate, len(req.Candidates))
	for i, c := range req.Candidates {
		if c.ID == "" {
			c.ID = strconv.Itoa(i)
		}
		candidates[i] = c
	}

	exec := executor.New(s.resolver, executor.Config{
		MaxParallelism: s.parallelism(req.MaxParallelism),
	}, s.logger)

	reporter := progress.NewReporter(s.emitter, batchID, len(candidates))
	reporter.Start()
	outcomes, err := exec.Run(r.Context(), candidates, reporter.Observe)
	if errors.Is(err, executor.ErrDuplicateID) {
		reporter.Done("rejected: duplicate candidate id")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		reporter.Done("failed")
		s.logger.Error("batch failed", zap.String("batch_id", batchID.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "batch failed")
		return
	}

	resp := resolveResponse{
		BatchID:  batchID.String(),
		Outcomes: make([]resolver.Outcome, 0, len(candidates)),
	}
	for _, c := range candidates {
		out := outcomes[c.ID]
		resp.Outcomes = append(resp.Outcomes, out)
		switch out.Status {
		case resolver.StatusResolved:
			resp.Summary.Resolved++
		case resolver.StatusUnresolved:
			resp.Summary.Unresolved++
		default:
			resp.Summary.Errored++
		}
	}
	resp.Summary.Total = len(candidates)
	reporter.Done(resp.Summary.String())

	writeJSON(w, http.StatusOK, resp)
}

// parallelism caps the request's desired parallelism at the configured one.
func (s *Server) parallelism(requested int) int {
	limit := s.cfg.Executor.MaxParallelism
	if limit <= 0 {
		limit = executor.DefaultMaxParallelism
	}
	if requested > 0 && requested < limit {
		return requested
	}
	return limit
}

func (s *Server) listBatches(w http.ResponseWriter, r *http.Request) {
	if s.tracker == nil {
		writeError(w, http.StatusServiceUnavailable, "progress tracking disabled")
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	batches := s.tracker.List()
	if len(batches) > limit {
		batches = batches[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]any{"batches": batches})
}

func (s *Server) getBatch(w http.ResponseWriter, r *http.Request) {
	if s.tracker == nil {
		writeError(w, http.StatusServiceUnavailable, "progress tracking disabled")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "batch_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "batch_id must be a UUID")
		return
	}
	status, ok := s.tracker.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "batch not found")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func parseBatchID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.New(), nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, err
	}
	if id == uuid.Nil {
		return uuid.Nil, errors.New("nil batch id")
	}
	return id, nil
}

func parseLimit(raw string) (int, error) {
	const (
		defaultLimit = 50
		maxLimit     = 256
	)
	if raw == "" {
		return defaultLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit, nil
}
