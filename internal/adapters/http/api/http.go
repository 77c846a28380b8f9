// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strconv"

	"github.com/okian/circlefit/internal/domain/model"
	"github.com/okian/circlefit/internal/domain/types"
)

// Request limits.
const (
	maxBodyBytes       = 4 << 20
	MaxPointsPerStroke = 20000
	defaultMaxLimit    = 100
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	SubmissionDependencies
	LeaderboardDependencies
	RankDependencies
	EvaluateDependencies
	SessionDependencies
}

// Evaluator scores a point sequence.
type Evaluator interface {
	Evaluate(points []model.Point) (model.ScoreResult, error)
}

// Renderer draws an overlay for a stroke and its evaluation.
type Renderer interface {
	Overlay(points []model.Point, res model.ScoreResult) image.Image
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	submissionsHandler *SubmissionsHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	evaluateHandler    *EvaluateHandler
	sessionsHandler    *SessionsHandler
	dashboardHandler   *dashboardHandler
}

// NewServer creates a new API server with all handlers. maxLimit bounds
// GET /leaderboard; non-positive values use the default.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLimit int) *Server {
	if maxLimit < 1 {
		maxLimit = defaultMaxLimit
	}
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		submissionsHandler: NewSubmissionsHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLimit),
		rankHandler:        NewRankHandler(deps),
		evaluateHandler:    NewEvaluateHandler(deps),
		sessionsHandler:    NewSessionsHandler(deps),
		dashboardHandler:   newDashboardHandler(),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	handle := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(h, endpoint))
	}

	handle("GET /healthz", "healthz", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /dashboard", s.dashboardHandler.HandleDashboard)
	handle("GET /stats", "stats", s.statsHandler.HandleStats)

	handle("POST /submissions", "submissions", s.submissionsHandler.HandlePostSubmission)
	handle("GET /submissions/{id}", "submission", s.submissionsHandler.HandleGetSubmission)
	handle("GET /leaderboard", "leaderboard", s.leaderboardHandler.HandleGetLeaderboard)
	handle("GET /rank/{player_id}", "rank", s.rankHandler.HandleGetRank)

	handle("POST /evaluate", "evaluate", s.evaluateHandler.HandleEvaluate)
	handle("POST /overlay.png", "overlay", s.evaluateHandler.HandleOverlay)

	handle("POST /sessions", "sessions", s.sessionsHandler.HandleCreate)
	handle("GET /sessions/{id}", "session", s.sessionsHandler.HandleGet)
	handle("DELETE /sessions/{id}", "session", s.sessionsHandler.HandleDelete)
	handle("POST /sessions/{id}/begin", "session_begin", s.sessionsHandler.HandleBegin)
	handle("POST /sessions/{id}/move", "session_move", s.sessionsHandler.HandleMove)
	handle("POST /sessions/{id}/end", "session_end", s.sessionsHandler.HandleEnd)
	handle("POST /sessions/{id}/reset", "session_reset", s.sessionsHandler.HandleReset)
	handle("POST /sessions/{id}/submit", "session_submit", s.sessionsHandler.HandleSubmit)
	handle("GET /sessions/{id}/overlay.png", "session_overlay", s.sessionsHandler.HandleOverlay)
}

type pointsRequest struct {
	Points []model.Point `json:"points"`
}

func (p pointsRequest) validate() error {
	switch {
	case len(p.Points) == 0:
		return errors.New("missing points")
	case len(p.Points) > MaxPointsPerStroke:
		return fmt.Errorf("too many points: %d > %d", len(p.Points), MaxPointsPerStroke)
	}
	return nil
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// decodeJSON reads a size-limited JSON body into v. An empty body leaves v
// untouched when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// maxSideParam parses the optional ?max= thumbnail bound.
func maxSideParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("max")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid max %q", raw)
	}
	return n, nil
}

// writeJSON encodes v before committing status, so an unencodable value
// becomes a 500 with an error body rather than an empty success.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		data, _ = json.Marshal(errorResponse{Code: "internal_error", Message: "failed to encode response"})
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeClassified writes err with the status its kind maps to.
func writeClassified(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}
