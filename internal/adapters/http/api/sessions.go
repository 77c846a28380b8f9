package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/circlefit/internal/domain/model"
	"github.com/okian/circlefit/internal/domain/session"
)

var errStrokeTooLong = errors.New("stroke exceeds point limit")

// SessionDependencies defines what interactive drawing sessions need.
type SessionDependencies interface {
	Renderer
	CreateSession(ctx context.Context) (string, error)
	DeleteSession(ctx context.Context, id string) error
	// WithSession runs fn while holding the session exclusively.
	WithSession(ctx context.Context, id string, fn func(*session.Session) error) error
	// SubmitSession submits the session stroke and, when playerID is set and
	// the stroke scored, records it on the leaderboard.
	SubmitSession(ctx context.Context, id, playerID string) (session.Outcome, error)
}

// SessionsHandler drives the capture state machine over HTTP.
type SessionsHandler struct {
	deps SessionDependencies
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps SessionDependencies) *SessionsHandler {
	return &SessionsHandler{deps: deps}
}

type sessionView struct {
	ID         string           `json:"id"`
	State      session.State    `json:"state"`
	Drawing    bool             `json:"drawing"`
	PointCount int              `json:"point_count"`
	PlayerID   string           `json:"player_id,omitempty"`
	Points     []model.Point    `json:"points,omitempty"`
	Outcome    *session.Outcome `json:"outcome,omitempty"`
}

func viewOf(s *session.Session, withPoints bool) sessionView {
	pts := s.Points()
	v := sessionView{ID: s.ID(), State: s.State(), Drawing: s.Drawing(), PointCount: len(pts), PlayerID: s.Player()}
	if withPoints {
		v.Points = pts
	}
	if o, ok := s.Outcome(); ok {
		v.Outcome = &o
	}
	return v
}

// HandleCreate handles POST /sessions requests.
func (h *SessionsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.session_create"
	ctx := r.Context()
	id, err := h.deps.CreateSession(ctx)
	if err != nil {
		writeClassified(w, Wrap(op, err))
		return
	}
	var view sessionView
	if err := h.deps.WithSession(ctx, id, func(s *session.Session) error {
		view = viewOf(s, false)
		return nil
	}); err != nil {
		writeClassified(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// HandleGet handles GET /sessions/{id} requests.
func (h *SessionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "api.session_get", true, func(*session.Session) error { return nil })
}

// HandleDelete handles DELETE /sessions/{id} requests.
func (h *SessionsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.session_delete"
	if err := h.deps.DeleteSession(r.Context(), r.PathValue("id")); err != nil {
		writeClassified(w, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleBegin handles POST /sessions/{id}/begin requests. The body is the
// first point.
func (h *SessionsHandler) HandleBegin(w http.ResponseWriter, r *http.Request) {
	const op = "api.session_begin"
	var p model.Point
	if err := decodeJSON(w, r, &p, false); err != nil {
		writeClassified(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	h.mutate(w, r, op, false, func(s *session.Session) error { return s.Begin(p) })
}

// HandleMove handles POST /sessions/{id}/move requests carrying a batch of
// points.
func (h *SessionsHandler) HandleMove(w http.ResponseWriter, r *http.Request) {
	const op = "api.session_move"
	var req pointsRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeClassified(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeClassified(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	h.mutate(w, r, op, false, func(s *session.Session) error {
		if s.Len()+len(req.Points) > MaxPointsPerStroke {
			return WrapKind(op, ErrBadRequest, errStrokeTooLong)
		}
		return s.Move(req.Points...)
	})
}

// HandleEnd handles POST /sessions/{id}/end requests.
func (h *SessionsHandler) HandleEnd(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "api.session_end", false, func(s *session.Session) error { return s.End() })
}

// HandleReset handles POST /sessions/{id}/reset requests.
func (h *SessionsHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "api.session_reset", false, func(s *session.Session) error {
		s.Reset()
		return nil
	})
}

type submitRequest struct {
	PlayerID string `json:"player_id"`
}

// HandleSubmit handles POST /sessions/{id}/submit requests. Rejections are
// a normal outcome and answer 200.
func (h *SessionsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.session_submit"
	var req submitRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeClassified(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	out, err := h.deps.SubmitSession(r.Context(), r.PathValue("id"), req.PlayerID)
	if err != nil {
		writeClassified(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleOverlay handles GET /sessions/{id}/overlay.png requests. Sessions
// without an outcome are drawn stroke-only.
func (h *SessionsHandler) HandleOverlay(w http.ResponseWriter, r *http.Request) {
	const op = "api.session_overlay"
	maxSide, err := maxSideParam(r)
	if err != nil {
		writeClassified(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	var (
		points []model.Point
		res    model.ScoreResult
	)
	if err := h.deps.WithSession(r.Context(), r.PathValue("id"), func(s *session.Session) error {
		points = s.Points()
		if o, ok := s.Outcome(); ok {
			res = o.Result
		}
		return nil
	}); err != nil {
		writeClassified(w, Wrap(op, err))
		return
	}
	writePNG(w, h.deps, points, res, maxSide, op)
}

// mutate applies fn to the session named in the path and answers with its view.
func (h *SessionsHandler) mutate(w http.ResponseWriter, r *http.Request, op string, withPoints bool, fn func(*session.Session) error) {
	var view sessionView
	err := h.deps.WithSession(r.Context(), r.PathValue("id"), func(s *session.Session) error {
		if err := fn(s); err != nil {
			return err
		}
		view = viewOf(s, withPoints)
		return nil
	})
	if err != nil {
		writeClassified(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, view)
}
