package api

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/okian/circlefit/internal/adapters/render"
	"github.com/okian/circlefit/internal/domain/fit"
	"github.com/okian/circlefit/internal/domain/model"
)

// EvaluateDependencies defines what synchronous evaluation needs.
type EvaluateDependencies interface {
	Evaluator
	Renderer
}

// EvaluateHandler scores strokes synchronously without touching the leaderboard.
type EvaluateHandler struct {
	deps EvaluateDependencies
}

// NewEvaluateHandler creates a new evaluate handler.
func NewEvaluateHandler(deps EvaluateDependencies) *EvaluateHandler {
	return &EvaluateHandler{deps: deps}
}

// HandleEvaluate handles POST /evaluate requests.
func (h *EvaluateHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	const op = "api.evaluate"
	var req pointsRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeClassified(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeClassified(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.Evaluate(req.Points)
	if err != nil {
		writeClassified(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleOverlay handles POST /overlay.png requests. Strokes too short to fit
// are drawn without a ring.
func (h *EvaluateHandler) HandleOverlay(w http.ResponseWriter, r *http.Request) {
	const op = "api.overlay"
	maxSide, err := maxSideParam(r)
	if err != nil {
		writeClassified(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	var req pointsRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeClassified(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeClassified(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.Evaluate(req.Points)
	switch {
	case errors.Is(err, fit.ErrInsufficientPoints):
		res = model.ScoreResult{PointCount: len(req.Points)}
	case err != nil:
		writeClassified(w, Wrap(op, err))
		return
	}
	writePNG(w, h.deps, req.Points, res, maxSide, op)
}

// writePNG renders into a buffer first so encode failures can still
// produce a JSON error.
func writePNG(w http.ResponseWriter, rd Renderer, points []model.Point, res model.ScoreResult, maxSide int, op string) {
	var buf bytes.Buffer
	if err := render.EncodePNG(&buf, rd.Overlay(points, res), maxSide); err != nil {
		writeClassified(w, WrapKind(op, ErrInternal, err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
