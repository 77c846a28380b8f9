package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/circlefit/internal/domain/dedupe"
	"github.com/okian/circlefit/internal/domain/fit"
	"github.com/okian/circlefit/internal/domain/model"
	"github.com/okian/circlefit/internal/domain/types"
	"github.com/okian/circlefit/pkg/metrics"
)

// SubmissionDependencies defines what asynchronous scoring needs.
type SubmissionDependencies interface {
	dedupe.Deduper
	// Enqueue pushes a submission for async scoring. Returns false on backpressure.
	Enqueue(ctx context.Context, sub model.Submission) bool
	// Submission returns the status of a known submission.
	Submission(ctx context.Context, id string) (types.SubmissionStatus, bool)
	// MinPoints is the smallest stroke worth queueing.
	MinPoints() int
}

// SubmissionsHandler handles asynchronous submissions.
type SubmissionsHandler struct {
	deps SubmissionDependencies
}

// NewSubmissionsHandler creates a new submissions handler.
func NewSubmissionsHandler(deps SubmissionDependencies) *SubmissionsHandler {
	return &SubmissionsHandler{deps: deps}
}

type submissionRequest struct {
	SubmissionID string        `json:"submission_id"`
	PlayerID     string        `json:"player_id"`
	Points       []model.Point `json:"points"`
}

func (s submissionRequest) validate(minPoints int) error {
	if strings.TrimSpace(s.PlayerID) == "" {
		return errors.New("missing player_id")
	}
	if err := (pointsRequest{Points: s.Points}).validate(); err != nil {
		return err
	}
	for i, p := range s.Points {
		if !p.Finite() {
			return &indexedPointError{index: i}
		}
	}
	if len(s.Points) < minPoints {
		return &shortStrokeError{got: len(s.Points), need: minPoints}
	}
	return nil
}

type indexedPointError struct{ index int }

func (e *indexedPointError) Error() string { return "point " + strconv.Itoa(e.index) + " is not finite" }
func (e *indexedPointError) Unwrap() error { return fit.ErrInvalidPoint }

type shortStrokeError struct{ got, need int }

func (e *shortStrokeError) Error() string {
	return "got " + strconv.Itoa(e.got) + " points, need at least " + strconv.Itoa(e.need)
}
func (e *shortStrokeError) Unwrap() error { return fit.ErrInsufficientPoints }

type submissionAck struct {
	Status       string `json:"status"`
	SubmissionID string `json:"submission_id"`
	Duplicate    bool   `json:"duplicate"`
}

// HandlePostSubmission handles POST /submissions requests.
func (h *SubmissionsHandler) HandlePostSubmission(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_submission"
	ctx := r.Context()

	var req submissionRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(h.deps.MinPoints()); err != nil {
		var shortErr *shortStrokeError
		var pointErr *indexedPointError
		switch {
		case errors.As(err, &shortErr), errors.As(err, &pointErr):
			writeClassified(w, Wrap(op, err))
		default:
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		}
		return
	}
	if req.SubmissionID == "" {
		req.SubmissionID = uuid.NewString()
	}

	if h.deps.SeenAndRecord(ctx, req.SubmissionID) {
		metrics.RecordSubmissionDuplicate()
		writeJSON(w, http.StatusOK, submissionAck{Status: "duplicate", SubmissionID: req.SubmissionID, Duplicate: true})
		return
	}

	sub := model.Submission{ID: req.SubmissionID, PlayerID: req.PlayerID, Points: req.Points, ReceivedAt: time.Now().UTC()}
	if ok := h.deps.Enqueue(ctx, sub); !ok {
		h.deps.Unrecord(ctx, req.SubmissionID)
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
		return
	}
	writeJSON(w, http.StatusAccepted, submissionAck{Status: "accepted", SubmissionID: req.SubmissionID})
}

// HandleGetSubmission handles GET /submissions/{id} requests.
func (h *SubmissionsHandler) HandleGetSubmission(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_submission"
	id := r.PathValue("id")
	st, ok := h.deps.Submission(r.Context(), id)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, errors.New("submission "+id)))
		return
	}
	writeJSON(w, http.StatusOK, st)
}
