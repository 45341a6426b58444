// Package api serves computed unlock schedules over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"governance-unlocks/internal/amount"
	"governance-unlocks/internal/governance"
	"governance-unlocks/internal/logger"
	"governance-unlocks/internal/scheduler"
	"governance-unlocks/internal/snapshot"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Options struct {
	Gatherer      prometheus.Gatherer
	Log           *logger.Logger
	TokenDecimals int32
	TokenSymbol   string
	BlockTime     time.Duration
}

type Server struct {
	svc  *scheduler.Service
	opts Options
	log  *logger.Logger
}

func NewServer(svc *scheduler.Service, opts Options) *Server {
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	return &Server{svc: svc, opts: opts, log: opts.Log}
}

// Router returns the HTTP routes of the service.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(ar chi.Router) {
		ar.Get("/accounts", s.handleAccounts)
		ar.Get("/accounts/{account}/schedule", s.handleSchedule)
		ar.Post("/accounts/{account}/refresh", s.handleRefresh)
		ar.Post("/estimate", s.handleEstimate)
	})
	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAccounts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"accounts": s.svc.Accounts()})
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	res, err := s.svc.Schedule(r.Context(), account)
	if err != nil {
		s.writeScheduleError(w, account, err)
		return
	}
	writeJSON(w, http.StatusOK, s.scheduleResponse(res))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	res, err := s.svc.Refresh(r.Context(), account)
	if err != nil {
		s.writeScheduleError(w, account, err)
		return
	}
	writeJSON(w, http.StatusOK, s.scheduleResponse(res))
}

func (s *Server) writeScheduleError(w http.ResponseWriter, account string, err error) {
	if errors.Is(err, snapshot.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no governance snapshot for "+account)
		return
	}
	s.log.Printf("api: schedule %s: %v", account, err)
	writeError(w, http.StatusBadGateway, err.Error())
}

type chunkResponse struct {
	Amount    governance.Balance      `json:"amount"`
	Formatted string                  `json:"formatted"`
	UnlockAt  *governance.BlockNumber `json:"unlock_at,omitempty"`
	ETASecs   *int64                  `json:"eta_seconds,omitempty"`
	Actions   governance.ActionSet    `json:"actions"`
}

type scheduleResponse struct {
	Account    string                    `json:"account"`
	Head       governance.BlockNumber    `json:"head"`
	ComputedAt *time.Time                `json:"computed_at,omitempty"`
	Stale      bool                      `json:"stale,omitempty"`
	Total      string                    `json:"total"`
	Claimable  *chunkResponse            `json:"claimable"`
	Pending    []chunkResponse           `json:"pending"`
	Items      []governance.ScheduleItem `json:"items"`
}

func (s *Server) format(b governance.Balance) string {
	return amount.Format(b, s.opts.TokenDecimals, s.opts.TokenSymbol)
}

func (s *Server) scheduleResponse(res scheduler.Result) scheduleResponse {
	out := scheduleResponse{
		Account: res.Account,
		Head:    res.Head,
		Stale:   res.Stale,
		Total:   s.format(res.Schedule.TotalAmount()),
		Pending: make([]chunkResponse, 0, len(res.Claim.Pending)),
		Items:   res.Schedule.Items,
	}
	if out.Items == nil {
		out.Items = []governance.ScheduleItem{}
	}
	if !res.ComputedAt.IsZero() {
		at := res.ComputedAt
		out.ComputedAt = &at
	}
	if c := res.Claim.Claimable; c != nil {
		out.Claimable = &chunkResponse{Amount: c.Amount, Formatted: s.format(c.Amount), Actions: c.Actions}
	}
	for _, p := range res.Claim.Pending {
		unlockAt := p.UnlockAt
		eta := int64(res.Head.Until(p.UnlockAt, s.opts.BlockTime) / time.Second)
		out.Pending = append(out.Pending, chunkResponse{
			Amount:    p.Amount,
			Formatted: s.format(p.Amount),
			UnlockAt:  &unlockAt,
			ETASecs:   &eta,
			Actions:   p.Actions,
		})
	}
	return out
}

type estimateRequest struct {
	Referendum snapshot.ReferendumDoc  `json:"referendum"`
	Vote       snapshot.AccountVoteDoc `json:"vote"`
	Info       snapshot.InfoDoc        `json:"info"`
}

type estimateResponse struct {
	UnlockAt *governance.BlockNumber `json:"unlock_at"`
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	vote, err := req.Vote.AccountVote()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	unlockAt, ok, err := s.svc.Estimate(req.Referendum.ReferendumInfo(), vote, req.Info.CalculationInfo())
	switch {
	case errors.Is(err, governance.ErrDataCorruption):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var resp estimateResponse
	if ok {
		resp.UnlockAt = &unlockAt
	}
	writeJSON(w, http.StatusOK, resp)
}
