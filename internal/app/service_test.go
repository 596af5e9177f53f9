package app_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	repository "github.com/okian/vigil/internal/adapters/repository"
	app "github.com/okian/vigil/internal/app"
	session "github.com/okian/vigil/internal/domain/session"
	signal "github.com/okian/vigil/internal/domain/signal"
	"github.com/okian/vigil/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		os.Exit(1)
	}
	os.Exit(m.Run())
}

// stubObserver returns a canned observation or error.
type stubObserver struct {
	obs signal.Observation
	err error
}

func (o *stubObserver) Observe(_ context.Context, _ string) (signal.Observation, error) {
	return o.obs, o.err
}

func testExam() session.Exam {
	return session.Exam{
		ID:       "exam-1",
		Title:    "Proctored Paper",
		Duration: 30 * time.Minute,
		Questions: []session.Question{
			{ID: "q1", Type: session.QuestionMCQ, Marks: 2, CorrectOption: 1},
			{ID: "q2", Type: session.QuestionSubjective, Marks: 5},
		},
	}
}

// fixture bundles a service with a controllable clock and observer.
type fixture struct {
	svc      *app.Service
	store    *repository.MemStore
	observer *stubObserver
	now      time.Time
}

func newFixture(detectorOpts ...signal.Option) *fixture {
	f := &fixture{
		store:    repository.NewMemStore(repository.WithExams(testExam())),
		observer: &stubObserver{obs: signal.Observation{FacesDetected: 1, Pose: &signal.Pose{}}},
		now:      time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	f.svc = app.New(
		app.WithStore(f.store),
		app.WithObserver(f.observer),
		app.WithDetector(signal.New(detectorOpts...)),
		app.WithClock(func() time.Time { return f.now }),
	)
	if err := f.svc.Start(context.Background()); err != nil {
		panic(err)
	}
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func TestService_StartSession(t *testing.T) {
	Convey("Given a running service", t, func() {
		ctx := context.Background()
		f := newFixture()

		Convey("When an unknown exam is started", func() {
			_, _, err := f.svc.StartSession(ctx, "ghost", "cand-1")

			Convey("Then the start is rejected", func() {
				So(err, ShouldEqual, repository.ErrExamNotFound)
			})
		})

		Convey("When a candidate starts an exam", func() {
			sess, created, err := f.svc.StartSession(ctx, "exam-1", "cand-1")

			Convey("Then a session is created with the exam window", func() {
				So(err, ShouldBeNil)
				So(created, ShouldBeTrue)
				So(sess.Lifecycle, ShouldEqual, session.InProgress)
				So(sess.EndTime, ShouldEqual, f.now.Add(30*time.Minute))
			})

			Convey("And a retried start resumes the same session", func() {
				f.advance(time.Minute)
				resumed, created, err := f.svc.StartSession(ctx, "exam-1", "cand-1")
				So(err, ShouldBeNil)
				So(created, ShouldBeFalse)
				So(resumed.ID, ShouldEqual, sess.ID)
			})

			Convey("And a start after the deadline reports the attempt as spent", func() {
				f.advance(31 * time.Minute)
				_, _, err := f.svc.StartSession(ctx, "exam-1", "cand-1")
				So(err, ShouldEqual, repository.ErrAlreadySubmitted)

				stored, err := f.store.Get(ctx, sess.ID)
				So(err, ShouldBeNil)
				So(stored.Lifecycle, ShouldEqual, session.Submitted)
				So(stored.SubmittedTime, ShouldEqual, stored.EndTime)
			})

			Convey("And a start after submission is rejected", func() {
				So(f.svc.SubmitSession(ctx, sess.ID, nil), ShouldBeNil)
				_, _, err := f.svc.StartSession(ctx, "exam-1", "cand-1")
				So(err, ShouldEqual, repository.ErrAlreadySubmitted)
			})

			Convey("And a start after termination is rejected", func() {
				So(f.svc.TerminateSession(ctx, sess.ID), ShouldBeNil)
				_, _, err := f.svc.StartSession(ctx, "exam-1", "cand-1")
				So(err, ShouldEqual, repository.ErrSessionTerminated)
			})
		})
	})
}

func TestService_ClientEvents(t *testing.T) {
	Convey("Given an in-progress session", t, func() {
		ctx := context.Background()
		f := newFixture()
		sess, _, err := f.svc.StartSession(ctx, "exam-1", "cand-1")
		So(err, ShouldBeNil)

		Convey("When the candidate reports a tab switch", func() {
			id, err := f.svc.IngestClientEvent(ctx, sess.ID, session.EventTabSwitch, map[string]any{"hidden_ms": 1200})

			Convey("Then the event lands in the ledger", func() {
				So(err, ShouldBeNil)
				So(id, ShouldNotBeEmpty)

				snap, err := f.svc.GetSnapshot(ctx, sess.ID)
				So(err, ShouldBeNil)
				So(snap.Events, ShouldHaveLength, 1)
				So(snap.Events[0].Type, ShouldEqual, session.EventTabSwitch)
				So(snap.Events[0].Source, ShouldEqual, session.SourceClient)
				So(snap.Session.EventIDs, ShouldResemble, []string{id})
			})
		})

		Convey("When the event type is signal-reserved", func() {
			_, err := f.svc.IngestClientEvent(ctx, sess.ID, session.EventNoFace, nil)

			Convey("Then it is rejected", func() {
				So(errors.Is(err, app.ErrInvalidEventType), ShouldBeTrue)
			})
		})

		Convey("When the session has been submitted", func() {
			So(f.svc.SubmitSession(ctx, sess.ID, nil), ShouldBeNil)
			_, err := f.svc.IngestClientEvent(ctx, sess.ID, session.EventFocusLoss, nil)

			Convey("Then the ledger is closed", func() {
				So(err, ShouldEqual, session.ErrNotInProgress)
			})
		})

		Convey("When the exam deadline has passed", func() {
			f.advance(31 * time.Minute)
			_, err := f.svc.IngestClientEvent(ctx, sess.ID, session.EventFocusLoss, nil)

			Convey("Then the event is rejected and the session lazily expires", func() {
				So(err, ShouldEqual, session.ErrNotInProgress)

				stored, err := f.store.Get(ctx, sess.ID)
				So(err, ShouldBeNil)
				So(stored.Lifecycle, ShouldEqual, session.Submitted)
			})
		})
	})
}

func TestService_IngestFrame(t *testing.T) {
	Convey("Given an in-progress session with a low-threshold detector", t, func() {
		ctx := context.Background()
		f := newFixture(
			signal.WithStreakThresholds(1, 1, 1, 1),
			signal.WithCooldown(time.Second),
			signal.WithEscalationThreshold(3),
		)
		sess, _, err := f.svc.StartSession(ctx, "exam-1", "cand-1")
		So(err, ShouldBeNil)

		Convey("When a calm frame is ingested", func() {
			accepted, triggers, err := f.svc.IngestFrame(ctx, sess.ID, "aW1hZ2U=")

			Convey("Then the sample is accepted without events", func() {
				So(err, ShouldBeNil)
				So(accepted, ShouldBeTrue)
				So(triggers, ShouldBeEmpty)
			})

			Convey("And a frame inside the sample interval is dropped", func() {
				f.advance(500 * time.Millisecond)
				accepted, triggers, err := f.svc.IngestFrame(ctx, sess.ID, "aW1hZ2U=")
				So(err, ShouldBeNil)
				So(accepted, ShouldBeFalse)
				So(triggers, ShouldBeEmpty)
			})

			Convey("And a frame after the interval is accepted again", func() {
				f.advance(2 * time.Second)
				accepted, _, err := f.svc.IngestFrame(ctx, sess.ID, "aW1hZ2U=")
				So(err, ShouldBeNil)
				So(accepted, ShouldBeTrue)
			})
		})

		Convey("When a no-face frame crosses the streak threshold", func() {
			f.observer.obs = signal.Observation{FacesDetected: 0}
			accepted, triggers, err := f.svc.IngestFrame(ctx, sess.ID, "aW1hZ2U=")

			Convey("Then a NO_FACE event is emitted and recorded", func() {
				So(err, ShouldBeNil)
				So(accepted, ShouldBeTrue)
				So(triggers, ShouldHaveLength, 1)
				So(triggers[0].Kind, ShouldEqual, signal.KindNoFace)

				snap, err := f.svc.GetSnapshot(ctx, sess.ID)
				So(err, ShouldBeNil)
				So(snap.Events, ShouldHaveLength, 1)
				So(snap.Events[0].Type, ShouldEqual, session.EventNoFace)
				So(snap.Events[0].Source, ShouldEqual, session.SourceSignal)
				So(snap.Events[0].Metadata["streak_frames"], ShouldEqual, 1)
			})
		})

		Convey("When misconduct events accumulate to the escalation threshold", func() {
			f.observer.obs = signal.Observation{FacesDetected: 0}
			for i := 0; i < 3; i++ {
				accepted, _, err := f.svc.IngestFrame(ctx, sess.ID, "aW1hZ2U=")
				So(err, ShouldBeNil)
				So(accepted, ShouldBeTrue)
				f.advance(2 * time.Second)
			}

			Convey("Then the session escalates to human review", func() {
				snap, err := f.svc.GetSnapshot(ctx, sess.ID)
				So(err, ShouldBeNil)
				So(snap.Session.Detector.Status, ShouldEqual, signal.UnderReview)
				So(snap.Events, ShouldHaveLength, 3)
			})
		})

		Convey("When inference is unavailable", func() {
			f.observer.err = fmt.Errorf("connection refused")
			_, _, err := f.svc.IngestFrame(ctx, sess.ID, "aW1hZ2U=")

			Convey("Then the failure is transient and the detector is untouched", func() {
				So(errors.Is(err, app.ErrTransient), ShouldBeTrue)

				stored, err := f.store.Get(ctx, sess.ID)
				So(err, ShouldBeNil)
				So(stored.LastSampleAt.IsZero(), ShouldBeTrue)
				So(stored.Detector.Streaks.NoFace, ShouldEqual, 0)
			})
		})

		Convey("When the session has been terminated", func() {
			So(f.svc.TerminateSession(ctx, sess.ID), ShouldBeNil)
			_, _, err := f.svc.IngestFrame(ctx, sess.ID, "aW1hZ2U=")

			Convey("Then frames are rejected", func() {
				So(err, ShouldEqual, session.ErrNotInProgress)
			})
		})
	})
}

func TestService_EvaluationAndVerdict(t *testing.T) {
	Convey("Given a submitted session", t, func() {
		ctx := context.Background()
		f := newFixture()
		sess, _, err := f.svc.StartSession(ctx, "exam-1", "cand-1")
		So(err, ShouldBeNil)
		So(f.svc.SubmitSession(ctx, sess.ID, []session.Response{
			{QuestionID: "q1", Answer: "1"},
			{QuestionID: "q2", Answer: "essay"},
		}), ShouldBeNil)

		Convey("When the session is auto-evaluated", func() {
			eval, err := f.svc.EvaluateSession(ctx, sess.ID)

			Convey("Then MCQ marks land and review stays pending", func() {
				So(err, ShouldBeNil)
				So(eval.Score, ShouldEqual, 2)
				So(eval.TotalMarks, ShouldEqual, 7)
				So(eval.Status, ShouldEqual, session.EvalCompleted)
				So(eval.ReviewStatus, ShouldEqual, session.ReviewPending)
			})

			Convey("And the session appears in the review queue until a verdict lands", func() {
				queue, err := f.svc.ListReviewQueue(ctx)
				So(err, ShouldBeNil)
				So(queue, ShouldHaveLength, 1)
				So(queue[0].ID, ShouldEqual, sess.ID)
			})

			Convey("And clearing the verdict alone does not finalize", func() {
				So(f.svc.SubmitVerdict(ctx, sess.ID, session.VerdictCleared, "proctor-1", "clean run"), ShouldBeNil)

				snap, err := f.svc.GetSnapshot(ctx, sess.ID)
				So(err, ShouldBeNil)
				So(snap.Session.Outcome, ShouldEqual, session.OutcomeUnset)

				Convey("And scoring the last reviewed response finalizes as evaluated", func() {
					stored, err := f.store.Get(ctx, sess.ID)
					So(err, ShouldBeNil)
					eval, err := f.svc.ScoreResponse(ctx, sess.ID, stored.Responses[1].ID, 4)
					So(err, ShouldBeNil)
					So(eval.Score, ShouldEqual, 6)
					So(eval.ReviewStatus, ShouldEqual, session.ReviewCompleted)

					snap, err := f.svc.GetSnapshot(ctx, sess.ID)
					So(err, ShouldBeNil)
					So(snap.Session.Outcome, ShouldEqual, session.OutcomeEvaluated)

					Convey("And the candidate sees the disclosed score", func() {
						res, err := f.svc.CandidateStatus(ctx, sess.ID)
						So(err, ShouldBeNil)
						So(res.Status, ShouldEqual, session.CandidateEvaluated)
						So(res.Score, ShouldEqual, 6)
						So(res.TotalMarks, ShouldEqual, 7)
					})
				})
			})

			Convey("And an invalidating verdict freezes the outcome once review completes", func() {
				stored, err := f.store.Get(ctx, sess.ID)
				So(err, ShouldBeNil)
				_, err = f.svc.ScoreResponse(ctx, sess.ID, stored.Responses[1].ID, 5)
				So(err, ShouldBeNil)
				So(f.svc.SubmitVerdict(ctx, sess.ID, session.VerdictInvalidated, "proctor-1", "impersonation"), ShouldBeNil)

				res, err := f.svc.CandidateStatus(ctx, sess.ID)
				So(err, ShouldBeNil)
				So(res.Status, ShouldEqual, session.CandidateInvalidated)
				So(res.Score, ShouldEqual, 0)

				Convey("And later scoring attempts are rejected", func() {
					_, err := f.svc.ScoreResponse(ctx, sess.ID, stored.Responses[1].ID, 7)
					So(err, ShouldEqual, session.ErrAlreadyFinalized)
				})

				Convey("And a second verdict is rejected", func() {
					err := f.svc.SubmitVerdict(ctx, sess.ID, session.VerdictCleared, "proctor-2", "")
					So(err, ShouldEqual, session.ErrAlreadyFinalized)
				})
			})

			Convey("And a second evaluation is rejected", func() {
				_, err := f.svc.EvaluateSession(ctx, sess.ID)
				So(err, ShouldEqual, session.ErrAlreadyEvaluated)
			})
		})

		Convey("When a verdict carries a non-terminal status", func() {
			err := f.svc.SubmitVerdict(ctx, sess.ID, session.VerdictUnderReview, "proctor-1", "")

			Convey("Then it is rejected", func() {
				So(err, ShouldEqual, session.ErrInvalidVerdict)
			})
		})
	})

	Convey("Given a session still in progress", t, func() {
		ctx := context.Background()
		f := newFixture()
		sess, _, err := f.svc.StartSession(ctx, "exam-1", "cand-1")
		So(err, ShouldBeNil)

		Convey("When evaluation is attempted before submission", func() {
			_, err := f.svc.EvaluateSession(ctx, sess.ID)

			Convey("Then it is rejected", func() {
				So(err, ShouldEqual, session.ErrNotSubmitted)
			})
		})
	})
}

func TestService_Stats(t *testing.T) {
	Convey("Given a running service with one active session", t, func() {
		ctx := context.Background()
		f := newFixture()
		_, _, err := f.svc.StartSession(ctx, "exam-1", "cand-1")
		So(err, ShouldBeNil)

		Convey("When stats are collected", func() {
			stats := f.svc.GetStats()

			Convey("Then the active session count is reported", func() {
				So(stats["started"], ShouldBeTrue)
				So(stats["activeSessions"], ShouldEqual, 1)
			})
		})
	})
}
