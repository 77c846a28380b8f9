// Package session implements the per-drawing submission state machine:
// idle -> capturing -> evaluating -> rejected | scored.
package session

import (
	"errors"
	"fmt"

	"github.com/okian/circlefit/internal/domain/fit"
	"github.com/okian/circlefit/internal/domain/model"
)

// State is a node of the submission state machine.
type State int

// Session states.
const (
	StateIdle State = iota
	StateCapturing
	StateEvaluating
	StateRejected
	StateScored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateEvaluating:
		return "evaluating"
	case StateRejected:
		return "rejected"
	case StateScored:
		return "scored"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state name in JSON payloads.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	for st := StateIdle; st <= StateScored; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}

// Terminal reports whether the state holds a final outcome.
func (s State) Terminal() bool { return s == StateRejected || s == StateScored }

// Reason explains a rejection.
type Reason string

// Rejection reasons.
const (
	ReasonTooShort   Reason = "too_short"
	ReasonTooSmall   Reason = "too_small"
	ReasonIncomplete Reason = "incomplete"
)

// Outcome is the result of Submit.
type Outcome struct {
	State  State             `json:"state"`
	Reason Reason            `json:"reason,omitempty"`
	Result model.ScoreResult `json:"result"`
}

// Evaluator scores a frozen point sequence.
type Evaluator interface {
	Evaluate(points []model.Point) (model.ScoreResult, error)
}

// Session owns one stroke and its state. It is not safe for concurrent use;
// see Registry.
type Session struct {
	id      string
	eval    Evaluator
	state   State
	stroke  *model.Stroke
	outcome Outcome
	player  string
}

// New returns an idle session scored by eval.
func New(id string, eval Evaluator) *Session {
	return &Session{id: id, eval: eval, stroke: model.NewStroke()}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current state.
func (s *Session) State() State { return s.state }

// Points returns a snapshot of the current stroke.
func (s *Session) Points() []model.Point { return s.stroke.Snapshot() }

// Len returns the number of captured points.
func (s *Session) Len() int { return s.stroke.Len() }

// Drawing reports whether input is active and points are being accepted.
func (s *Session) Drawing() bool {
	return s.state == StateCapturing && !s.stroke.Frozen()
}

// Outcome returns the terminal outcome, if any.
func (s *Session) Outcome() (Outcome, bool) {
	return s.outcome, s.state.Terminal()
}

// Begin starts a new stroke at p. It is valid from any state and discards
// the previous stroke and outcome.
func (s *Session) Begin(p model.Point) error {
	if !p.Finite() {
		return fmt.Errorf("%w: begin", fit.ErrInvalidPoint)
	}
	s.restart()
	s.stroke.Append(p)
	return nil
}

// Move appends points while drawing. Non-finite points reject the whole
// batch.
func (s *Session) Move(pts ...model.Point) error {
	if !s.Drawing() {
		return fmt.Errorf("%w: state %s", ErrNotDrawing, s.state)
	}
	for i, p := range pts {
		if !p.Finite() {
			return fmt.Errorf("%w: index %d", fit.ErrInvalidPoint, i)
		}
	}
	s.stroke.Append(pts...)
	return nil
}

// End marks the input as finished. The stroke is frozen and the session
// waits for Submit or Reset.
func (s *Session) End() error {
	if !s.Drawing() {
		return fmt.Errorf("%w: state %s", ErrNotDrawing, s.state)
	}
	s.stroke.Freeze()
	return nil
}

// Reset drops the stroke and re-enters capturing with no points.
func (s *Session) Reset() {
	s.restart()
}

func (s *Session) restart() {
	s.stroke = model.NewStroke()
	s.outcome = Outcome{}
	s.player = ""
	s.state = StateCapturing
}

// Submit freezes the stroke and evaluates it. A session that already holds
// an outcome returns it unchanged; start a new stroke with Begin or Reset
// to evaluate again.
func (s *Session) Submit() (Outcome, error) {
	switch s.state {
	case StateRejected, StateScored:
		return s.outcome, nil
	case StateIdle:
		return s.finish(Outcome{State: StateRejected, Reason: ReasonTooShort}), nil
	}

	s.stroke.Freeze()
	s.state = StateEvaluating
	res, err := s.eval.Evaluate(s.stroke.Snapshot())
	if err != nil {
		if errors.Is(err, fit.ErrInsufficientPoints) {
			return s.finish(Outcome{State: StateRejected, Reason: ReasonTooShort, Result: model.ScoreResult{PointCount: s.stroke.Len()}}), nil
		}
		s.state = StateCapturing
		return Outcome{}, fmt.Errorf("evaluate stroke: %w", err)
	}

	switch res.Verdict {
	case model.VerdictTooSmall:
		return s.finish(Outcome{State: StateRejected, Reason: ReasonTooSmall, Result: res}), nil
	case model.VerdictIncomplete:
		return s.finish(Outcome{State: StateRejected, Reason: ReasonIncomplete, Result: res}), nil
	default:
		return s.finish(Outcome{State: StateScored, Result: res}), nil
	}
}

// Player returns the player the current score is bound to, if any.
func (s *Session) Player() string { return s.player }

// Claim binds the current score to playerID. The first claim wins and
// reports true; repeating it for the same player reports false. A new
// stroke releases the binding.
func (s *Session) Claim(playerID string) (bool, error) {
	if s.state != StateScored {
		return false, fmt.Errorf("%w: state %s", ErrNotScored, s.state)
	}
	switch s.player {
	case "":
		s.player = playerID
		return true, nil
	case playerID:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %s", ErrClaimed, s.player)
	}
}

func (s *Session) finish(o Outcome) Outcome {
	s.state = o.State
	s.outcome = o
	return o
}
