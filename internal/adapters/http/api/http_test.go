package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/circlefit/internal/adapters/http/api"
	"github.com/okian/circlefit/internal/adapters/render"
	"github.com/okian/circlefit/internal/adapters/repository"
	"github.com/okian/circlefit/internal/domain/dedupe"
	"github.com/okian/circlefit/internal/domain/model"
	"github.com/okian/circlefit/internal/domain/scoring"
	"github.com/okian/circlefit/internal/domain/session"
	"github.com/okian/circlefit/internal/domain/types"
)

type fakeDeps struct {
	dedupe.Deduper
	eval *scoring.Evaluator
	reg  *session.Registry

	mu        sync.Mutex
	enqueueOK bool
	enqueued  []model.Submission
	statuses  map[string]types.SubmissionStatus
	board     []types.Entry
	topNErr   error
	recorded  []types.Entry
}

func newFakeDeps() *fakeDeps {
	eval, err := scoring.NewEvaluator()
	if err != nil {
		panic(err)
	}
	return &fakeDeps{
		Deduper:   dedupe.NewInMemoryDeduper(),
		eval:      eval,
		reg:       session.NewRegistry(eval),
		enqueueOK: true,
		statuses:  map[string]types.SubmissionStatus{},
	}
}

func (f *fakeDeps) Enqueue(_ context.Context, sub model.Submission) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.enqueueOK {
		return false
	}
	f.enqueued = append(f.enqueued, sub)
	f.statuses[sub.ID] = types.SubmissionStatus{ID: sub.ID, PlayerID: sub.PlayerID, Status: types.StatusPending}
	return true
}

func (f *fakeDeps) Submission(_ context.Context, id string) (types.SubmissionStatus, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.statuses[id]
	return st, ok
}

func (f *fakeDeps) MinPoints() int { return f.eval.Policy().MinPoints }

func (f *fakeDeps) TopN(_ context.Context, n int) ([]types.Entry, error) {
	if f.topNErr != nil {
		return nil, f.topNErr
	}
	return f.board[:min(n, len(f.board))], nil
}

func (f *fakeDeps) Rank(_ context.Context, playerID string) (types.Entry, error) {
	for _, e := range f.board {
		if e.PlayerID == playerID {
			return e, nil
		}
	}
	return types.Entry{}, repository.ErrNotFound
}

func (f *fakeDeps) Evaluate(points []model.Point) (model.ScoreResult, error) {
	return f.eval.Evaluate(points)
}

func (f *fakeDeps) Overlay(points []model.Point, res model.ScoreResult) image.Image {
	return render.Overlay(points, res, render.WithSize(200, 150))
}

func (f *fakeDeps) CreateSession(context.Context) (string, error) { return f.reg.Create() }

func (f *fakeDeps) DeleteSession(_ context.Context, id string) error { return f.reg.Delete(id) }

func (f *fakeDeps) WithSession(_ context.Context, id string, fn func(*session.Session) error) error {
	return f.reg.Do(id, fn)
}

func (f *fakeDeps) SubmitSession(_ context.Context, id, playerID string) (session.Outcome, error) {
	var (
		out     session.Outcome
		claimed bool
	)
	err := f.reg.Do(id, func(s *session.Session) error {
		var err error
		if out, err = s.Submit(); err != nil {
			return err
		}
		if out.State == session.StateScored && playerID != "" {
			claimed, err = s.Claim(playerID)
		}
		return err
	})
	if claimed {
		f.recorded = append(f.recorded, types.Entry{PlayerID: playerID, Score: out.Result.Score})
	}
	return out, err
}

type fakeStats struct{}

func (fakeStats) GetStats() map[string]any { return map[string]any{"queue_length": 3} }

func circle(cx, cy, r float64, n int, spanDeg float64) []model.Point {
	pts := make([]model.Point, n)
	for i := range pts {
		a := spanDeg * math.Pi / 180 * float64(i) / float64(n)
		pts[i] = model.Point{X: cx + r*math.Cos(a), Y: cy + r*math.Sin(a)}
	}
	return pts
}

func body(v any) *bytes.Reader {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return bytes.NewReader(b)
}

func do(mux *http.ServeMux, method, path string, payload any) *httptest.ResponseRecorder {
	var req *http.Request
	if payload == nil {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, body(payload))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func doRaw(mux *http.ServeMux, method, path, raw string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(raw))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder, v any) {
	So(json.Unmarshal(w.Body.Bytes(), v), ShouldBeNil)
}

func setup() (*fakeDeps, *http.ServeMux) {
	deps := newFakeDeps()
	mux := http.NewServeMux()
	api.NewServer(deps, fakeStats{}, 50).Register(context.Background(), mux)
	return deps, mux
}

func TestHealthAndStats(t *testing.T) {
	Convey("Given a registered server", t, func() {
		_, mux := setup()

		Convey("GET /healthz answers JSON by default", func() {
			w := do(mux, "GET", "/healthz", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"ok"`)
		})

		Convey("GET /healthz serves metrics to scrapers", func() {
			req := httptest.NewRequest("GET", "/healthz", http.NoBody)
			req.Header.Set("Accept", "text/plain")
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/plain")
		})

		Convey("GET /stats returns provider stats", func() {
			w := do(mux, "GET", "/stats", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			var got map[string]any
			decode(w, &got)
			So(got["queue_length"], ShouldEqual, 3.0)
		})

		Convey("GET /dashboard serves HTML", func() {
			w := do(mux, "GET", "/dashboard", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/html")
		})

		Convey("Wrong methods are rejected by the mux", func() {
			w := do(mux, "DELETE", "/stats", nil)
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestSubmissions(t *testing.T) {
	Convey("Given a registered server", t, func() {
		deps, mux := setup()
		stroke := circle(300, 300, 100, 72, 360)

		Convey("A valid submission is accepted", func() {
			w := do(mux, "POST", "/submissions", map[string]any{"submission_id": "s1", "player_id": "p1", "points": stroke})
			So(w.Code, ShouldEqual, http.StatusAccepted)
			So(deps.enqueued, ShouldHaveLength, 1)
			So(deps.enqueued[0].PlayerID, ShouldEqual, "p1")
			So(deps.enqueued[0].ReceivedAt.IsZero(), ShouldBeFalse)

			Convey("and a replay is reported as a duplicate", func() {
				w := do(mux, "POST", "/submissions", map[string]any{"submission_id": "s1", "player_id": "p1", "points": stroke})
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"duplicate"`)
				So(deps.enqueued, ShouldHaveLength, 1)
			})

			Convey("and its status is readable", func() {
				w := do(mux, "GET", "/submissions/s1", nil)
				So(w.Code, ShouldEqual, http.StatusOK)
				var st types.SubmissionStatus
				decode(w, &st)
				So(st.Status, ShouldEqual, types.StatusPending)
			})
		})

		Convey("A missing submission id is generated", func() {
			w := do(mux, "POST", "/submissions", map[string]any{"player_id": "p1", "points": stroke})
			So(w.Code, ShouldEqual, http.StatusAccepted)
			var ack map[string]any
			decode(w, &ack)
			So(ack["submission_id"], ShouldNotBeEmpty)
		})

		Convey("Too few points answer 422", func() {
			w := do(mux, "POST", "/submissions", map[string]any{"player_id": "p1", "points": stroke[:5]})
			So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			So(w.Body.String(), ShouldContainSubstring, "insufficient_points")
		})

		Convey("A missing player answers 400", func() {
			w := do(mux, "POST", "/submissions", map[string]any{"points": stroke})
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Malformed JSON answers 400", func() {
			w := doRaw(mux, "POST", "/submissions", "{")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Backpressure answers 429 and forgets the id", func() {
			deps.enqueueOK = false
			w := do(mux, "POST", "/submissions", map[string]any{"submission_id": "s2", "player_id": "p1", "points": stroke})
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			So(deps.SeenAndRecord(context.Background(), "s2"), ShouldBeFalse)
		})

		Convey("An unknown submission answers 404", func() {
			w := do(mux, "GET", "/submissions/nope", nil)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestLeaderboardAndRank(t *testing.T) {
	Convey("Given a server with a populated board", t, func() {
		deps, mux := setup()
		deps.board = []types.Entry{
			{Rank: 1, PlayerID: "a", Score: 97},
			{Rank: 2, PlayerID: "b", Score: 90},
			{Rank: 2, PlayerID: "c", Score: 90},
		}

		Convey("limit bounds the result", func() {
			w := do(mux, "GET", "/leaderboard?limit=2", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			var got []types.Entry
			decode(w, &got)
			So(got, ShouldHaveLength, 2)
			So(got[0].PlayerID, ShouldEqual, "a")
		})

		Convey("a missing limit uses the default", func() {
			w := do(mux, "GET", "/leaderboard", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			var got []types.Entry
			decode(w, &got)
			So(got, ShouldHaveLength, 3)
		})

		Convey("invalid and oversized limits answer 400", func() {
			So(do(mux, "GET", "/leaderboard?limit=0", nil).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, "GET", "/leaderboard?limit=x", nil).Code, ShouldEqual, http.StatusBadRequest)
			w := do(mux, "GET", "/leaderboard?limit=51", nil)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(w.Body.String(), ShouldContainSubstring, "limit_exceeded")
		})

		Convey("store failures answer 500", func() {
			deps.topNErr = errors.New("boom")
			So(do(mux, "GET", "/leaderboard?limit=1", nil).Code, ShouldEqual, http.StatusInternalServerError)
		})

		Convey("rank finds a known player", func() {
			w := do(mux, "GET", "/rank/c", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			var e types.Entry
			decode(w, &e)
			So(e.Rank, ShouldEqual, 2)
		})

		Convey("rank of an unknown player answers 404", func() {
			So(do(mux, "GET", "/rank/zzz", nil).Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestEvaluate(t *testing.T) {
	Convey("Given a registered server", t, func() {
		_, mux := setup()

		Convey("A perfect circle scores 100", func() {
			w := do(mux, "POST", "/evaluate", map[string]any{"points": circle(300, 300, 100, 72, 360)})
			So(w.Code, ShouldEqual, http.StatusOK)
			var res model.ScoreResult
			decode(w, &res)
			So(res.Verdict, ShouldEqual, model.VerdictValid)
			So(res.Score, ShouldEqual, 100)
			So(res.Circle.Radius, ShouldAlmostEqual, 100, 1e-6)
		})

		Convey("A half circle is incomplete", func() {
			w := do(mux, "POST", "/evaluate", map[string]any{"points": circle(300, 300, 100, 40, 180)})
			So(w.Code, ShouldEqual, http.StatusOK)
			var res model.ScoreResult
			decode(w, &res)
			So(res.Verdict, ShouldEqual, model.VerdictIncomplete)
			So(res.Score, ShouldEqual, 0)
		})

		Convey("Too few points answer 422", func() {
			w := do(mux, "POST", "/evaluate", map[string]any{"points": circle(0, 0, 100, 4, 360)})
			So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
		})

		Convey("An empty body answers 400", func() {
			So(do(mux, "POST", "/evaluate", map[string]any{}).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Coordinates too large to fit answer 400 with a body", func() {
			w := do(mux, "POST", "/evaluate", map[string]any{"points": circle(0, 0, 1e110, 40, 360)})
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			var e struct {
				Code string `json:"code"`
			}
			decode(w, &e)
			So(e.Code, ShouldEqual, "invalid_point")
		})

		Convey("The overlay is a PNG, even for short strokes", func() {
			for _, pts := range [][]model.Point{circle(100, 75, 50, 72, 360), circle(100, 75, 50, 3, 90)} {
				w := do(mux, "POST", "/overlay.png", map[string]any{"points": pts})
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldEqual, "image/png")
				img, err := png.Decode(w.Body)
				So(err, ShouldBeNil)
				So(img.Bounds().Dx(), ShouldEqual, 200)
			}
		})

		Convey("max shrinks the overlay", func() {
			w := do(mux, "POST", "/overlay.png?max=100", map[string]any{"points": circle(100, 75, 50, 72, 360)})
			So(w.Code, ShouldEqual, http.StatusOK)
			img, err := png.Decode(w.Body)
			So(err, ShouldBeNil)
			So(img.Bounds().Dx(), ShouldEqual, 100)
		})

		Convey("an invalid max answers 400", func() {
			w := do(mux, "POST", "/overlay.png?max=-1", map[string]any{"points": circle(100, 75, 50, 72, 360)})
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

type view struct {
	ID         string           `json:"id"`
	State      string           `json:"state"`
	Drawing    bool             `json:"drawing"`
	PointCount int              `json:"point_count"`
	Points     []model.Point    `json:"points"`
	Outcome    *session.Outcome `json:"outcome"`
}

func TestSessions(t *testing.T) {
	Convey("Given a created session", t, func() {
		deps, mux := setup()
		w := do(mux, "POST", "/sessions", nil)
		So(w.Code, ShouldEqual, http.StatusCreated)
		var v view
		decode(w, &v)
		So(v.State, ShouldEqual, "idle")
		base := "/sessions/" + v.ID
		stroke := circle(300, 300, 120, 90, 360)

		Convey("A full stroke is drawn and scored", func() {
			w = do(mux, "POST", base+"/begin", stroke[0])
			So(w.Code, ShouldEqual, http.StatusOK)
			decode(w, &v)
			So(v.State, ShouldEqual, "capturing")
			So(v.Drawing, ShouldBeTrue)

			w = do(mux, "POST", base+"/move", map[string]any{"points": stroke[1:]})
			So(w.Code, ShouldEqual, http.StatusOK)
			decode(w, &v)
			So(v.PointCount, ShouldEqual, len(stroke))

			So(do(mux, "POST", base+"/end", nil).Code, ShouldEqual, http.StatusOK)

			Convey("moves after end conflict", func() {
				w := do(mux, "POST", base+"/move", map[string]any{"points": stroke[:1]})
				So(w.Code, ShouldEqual, http.StatusConflict)
			})

			Convey("submit scores and records the player", func() {
				w := do(mux, "POST", base+"/submit", map[string]any{"player_id": "p1"})
				So(w.Code, ShouldEqual, http.StatusOK)
				var out session.Outcome
				decode(w, &out)
				So(out.State, ShouldEqual, session.StateScored)
				So(out.Result.Score, ShouldEqual, 100)
				So(deps.recorded, ShouldHaveLength, 1)

				Convey("and a second submit returns the same outcome", func() {
					w := do(mux, "POST", base+"/submit", nil)
					var again session.Outcome
					decode(w, &again)
					So(again.Result.Score, ShouldEqual, out.Result.Score)
					So(again.State, ShouldEqual, out.State)
				})

				Convey("and another player claiming it conflicts", func() {
					w := do(mux, "POST", base+"/submit", map[string]any{"player_id": "p2"})
					So(w.Code, ShouldEqual, http.StatusConflict)
					var e struct {
						Code string `json:"code"`
					}
					decode(w, &e)
					So(e.Code, ShouldEqual, "already_claimed")
					So(deps.recorded, ShouldHaveLength, 1)

					var view struct {
						PlayerID string `json:"player_id"`
					}
					decode(do(mux, "GET", base, nil), &view)
					So(view.PlayerID, ShouldEqual, "p1")
				})

				Convey("and the overlay renders", func() {
					w := do(mux, "GET", base+"/overlay.png", nil)
					So(w.Code, ShouldEqual, http.StatusOK)
					So(w.Header().Get("Content-Type"), ShouldEqual, "image/png")
				})

				Convey("and GET shows the outcome", func() {
					w := do(mux, "GET", base, nil)
					decode(w, &v)
					So(v.State, ShouldEqual, "scored")
					So(v.Outcome, ShouldNotBeNil)
					So(v.Points, ShouldHaveLength, len(stroke))
				})
			})
		})

		Convey("Submitting an idle session is rejected as too short", func() {
			w := do(mux, "POST", base+"/submit", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			var out session.Outcome
			decode(w, &out)
			So(out.State, ShouldEqual, session.StateRejected)
			So(out.Reason, ShouldEqual, session.ReasonTooShort)
		})

		Convey("Reset clears the stroke", func() {
			do(mux, "POST", base+"/begin", stroke[0])
			w := do(mux, "POST", base+"/reset", nil)
			decode(w, &v)
			So(v.PointCount, ShouldEqual, 0)
			So(v.State, ShouldEqual, "capturing")
		})

		Convey("An unparseable begin is refused", func() {
			w := doRaw(mux, "POST", base+"/begin", `{"x":1e999,"y":0}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Delete removes the session", func() {
			So(do(mux, "DELETE", base, nil).Code, ShouldEqual, http.StatusNoContent)
			So(do(mux, "GET", base, nil).Code, ShouldEqual, http.StatusNotFound)
			So(do(mux, "DELETE", base, nil).Code, ShouldEqual, http.StatusNotFound)
		})
	})
}
