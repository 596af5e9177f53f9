package signal_test

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	signal "github.com/okian/vigil/internal/domain/signal"
)

func TestDetector_Streaks(t *testing.T) {
	Convey("Given a detector with default thresholds", t, func() {
		d := signal.New()
		base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

		noFace := signal.Observation{FacesDetected: 0}
		oneFace := signal.Observation{FacesDetected: 1, Pose: &signal.Pose{}}

		Convey("When a face disappears for fewer frames than the threshold", func() {
			state := signal.NewState()
			var triggered []signal.Trigger
			state, triggered = d.Evaluate(state, noFace, base)
			So(triggered, ShouldBeEmpty)
			state, triggered = d.Evaluate(state, noFace, base.Add(2*time.Second))
			So(triggered, ShouldBeEmpty)

			Convey("Then the streak counts the consecutive frames", func() {
				So(state.Streaks.NoFace, ShouldEqual, 2)
				So(state.TotalEvents, ShouldEqual, 0)
			})

			Convey("And the streak resets when the face returns", func() {
				state, triggered = d.Evaluate(state, oneFace, base.Add(4*time.Second))
				So(triggered, ShouldBeEmpty)
				So(state.Streaks.NoFace, ShouldEqual, 0)
			})
		})

		Convey("When the face is absent for the full threshold of frames", func() {
			state := signal.NewState()
			var triggered []signal.Trigger
			for i := 0; i < 3; i++ {
				state, triggered = d.Evaluate(state, noFace, base.Add(time.Duration(i)*2*time.Second))
			}

			Convey("Then a NO_FACE event fires with the streak length", func() {
				So(triggered, ShouldHaveLength, 1)
				So(triggered[0].Kind, ShouldEqual, signal.KindNoFace)
				So(triggered[0].StreakFrames, ShouldEqual, 3)
				So(state.TriggerCounts.NoFace, ShouldEqual, 1)
				So(state.TotalEvents, ShouldEqual, 1)
			})

			Convey("And the cooldown blocks re-firing while the streak stays elevated", func() {
				state, triggered = d.Evaluate(state, noFace, base.Add(6*time.Second))
				So(triggered, ShouldBeEmpty)
				So(state.Streaks.NoFace, ShouldEqual, 4)
				So(state.TriggerCounts.NoFace, ShouldEqual, 1)
			})

			Convey("And the event fires again once the cooldown has elapsed", func() {
				state, triggered = d.Evaluate(state, noFace, base.Add(15*time.Second))
				So(triggered, ShouldHaveLength, 1)
				So(triggered[0].Kind, ShouldEqual, signal.KindNoFace)
				So(state.TriggerCounts.NoFace, ShouldEqual, 2)
			})
		})
	})
}

func TestDetector_MultipleFaces(t *testing.T) {
	Convey("Given a detector with default thresholds", t, func() {
		d := signal.New()
		base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

		Convey("When exactly two faces appear for consecutive frames", func() {
			state := signal.NewState()
			var triggered []signal.Trigger
			two := signal.Observation{FacesDetected: 2, Pose: &signal.Pose{}}
			state, triggered = d.Evaluate(state, two, base)
			So(triggered, ShouldBeEmpty)
			state, triggered = d.Evaluate(state, two, base.Add(2*time.Second))

			Convey("Then a MULTIPLE_FACE event fires at the threshold", func() {
				So(triggered, ShouldHaveLength, 1)
				So(triggered[0].Kind, ShouldEqual, signal.KindMultipleFace)
				So(triggered[0].StreakFrames, ShouldEqual, 2)
			})
		})

		Convey("When three or more faces appear", func() {
			state := signal.NewState()
			var triggered []signal.Trigger
			three := signal.Observation{FacesDetected: 3, Pose: &signal.Pose{}}
			state, triggered = d.Evaluate(state, three, base)
			state, triggered = d.Evaluate(state, three, base.Add(2*time.Second))
			state, triggered = d.Evaluate(state, three, base.Add(4*time.Second))

			Convey("Then the multiple-face streak never advances", func() {
				So(state.Streaks.MultipleFace, ShouldEqual, 0)
				So(triggered, ShouldBeEmpty)
			})
		})
	})
}

func TestDetector_Pose(t *testing.T) {
	Convey("Given a detector with default pose thresholds", t, func() {
		d := signal.New()
		base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

		away := signal.Observation{FacesDetected: 1, Pose: &signal.Pose{Yaw: 30}}
		forward := signal.Observation{FacesDetected: 1, Pose: &signal.Pose{Yaw: 5, Pitch: 3}}
		noPose := signal.Observation{FacesDetected: 1}

		Convey("When yaw exceeds the threshold for the full streak", func() {
			state := signal.NewState()
			var triggered []signal.Trigger
			for i := 0; i < 3; i++ {
				state, triggered = d.Evaluate(state, away, base.Add(time.Duration(i)*2*time.Second))
			}

			Convey("Then a LOOKING_AWAY event fires", func() {
				So(triggered, ShouldHaveLength, 1)
				So(triggered[0].Kind, ShouldEqual, signal.KindLookingAway)
			})
		})

		Convey("When pitch alone exceeds its threshold", func() {
			state := signal.NewState()
			pitched := signal.Observation{FacesDetected: 1, Pose: &signal.Pose{Pitch: -22}}
			state, _ = d.Evaluate(state, pitched, base)

			Convey("Then the looking-away streak advances on absolute angle", func() {
				So(state.Streaks.LookingAway, ShouldEqual, 1)
			})
		})

		Convey("When pose estimation drops out mid-streak", func() {
			state := signal.NewState()
			state, _ = d.Evaluate(state, away, base)
			state, _ = d.Evaluate(state, away, base.Add(2*time.Second))
			So(state.Streaks.LookingAway, ShouldEqual, 2)

			state, _ = d.Evaluate(state, noPose, base.Add(4*time.Second))

			Convey("Then the looking-away streak resets and pose-unavailable counts instead", func() {
				So(state.Streaks.LookingAway, ShouldEqual, 0)
				So(state.Streaks.PoseUnavailable, ShouldEqual, 1)
			})
		})

		Convey("When pose returns within thresholds", func() {
			state := signal.NewState()
			state, _ = d.Evaluate(state, away, base)
			state, _ = d.Evaluate(state, forward, base.Add(2*time.Second))

			Convey("Then the looking-away streak resets", func() {
				So(state.Streaks.LookingAway, ShouldEqual, 0)
			})
		})

		Convey("When pose is unavailable for the full streak", func() {
			state := signal.NewState()
			var triggered []signal.Trigger
			for i := 0; i < 4; i++ {
				state, triggered = d.Evaluate(state, noPose, base.Add(time.Duration(i)*2*time.Second))
			}

			Convey("Then a POSE_UNAVAILABLE event fires", func() {
				So(triggered, ShouldHaveLength, 1)
				So(triggered[0].Kind, ShouldEqual, signal.KindPoseUnavailable)
			})
		})
	})
}

func TestDetector_Escalation(t *testing.T) {
	Convey("Given a detector with a low escalation threshold", t, func() {
		d := signal.New(
			signal.WithStreakThresholds(1, 1, 1, 1),
			signal.WithCooldown(time.Second),
			signal.WithEscalationThreshold(3),
		)
		base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

		noFace := signal.Observation{FacesDetected: 0}
		noPose := signal.Observation{FacesDetected: 1}

		Convey("When misconduct-indicating events accumulate to the threshold", func() {
			state := signal.NewState()
			for i := 0; i < 3; i++ {
				state, _ = d.Evaluate(state, noFace, base.Add(time.Duration(i)*2*time.Second))
			}

			Convey("Then the session escalates to UNDER_REVIEW", func() {
				So(state.TriggerCounts.NoFace, ShouldEqual, 3)
				So(state.Status, ShouldEqual, signal.UnderReview)
			})

			Convey("And the escalation never reverts", func() {
				calm := signal.Observation{FacesDetected: 1, Pose: &signal.Pose{}}
				for i := 3; i < 20; i++ {
					state, _ = d.Evaluate(state, calm, base.Add(time.Duration(i)*2*time.Second))
				}
				So(state.Status, ShouldEqual, signal.UnderReview)
			})
		})

		Convey("When only pose-unavailable events accumulate", func() {
			state := signal.NewState()
			for i := 0; i < 6; i++ {
				state, _ = d.Evaluate(state, noPose, base.Add(time.Duration(i)*2*time.Second))
			}

			Convey("Then the session stays AUTO_CLEARED", func() {
				So(state.TriggerCounts.PoseUnavailable, ShouldBeGreaterThanOrEqualTo, 3)
				So(state.Status, ShouldEqual, signal.AutoCleared)
			})
		})
	})
}

func TestDetector_Options(t *testing.T) {
	Convey("Given a detector with custom thresholds", t, func() {
		d := signal.New(
			signal.WithStreakThresholds(5, 5, 5, 5),
			signal.WithPoseThresholds(40, 35),
		)
		base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

		Convey("When an angle sits between the default and custom thresholds", func() {
			state := signal.NewState()
			state, _ = d.Evaluate(state, signal.Observation{FacesDetected: 1, Pose: &signal.Pose{Yaw: 30}}, base)

			Convey("Then the looser custom threshold wins", func() {
				So(state.Streaks.LookingAway, ShouldEqual, 0)
			})
		})

		Convey("When a streak reaches the default but not the custom threshold", func() {
			state := signal.NewState()
			var triggered []signal.Trigger
			for i := 0; i < 4; i++ {
				state, triggered = d.Evaluate(state, signal.Observation{FacesDetected: 0}, base.Add(time.Duration(i)*time.Second))
			}

			Convey("Then no event fires", func() {
				So(triggered, ShouldBeEmpty)
				So(state.Streaks.NoFace, ShouldEqual, 4)
			})
		})
	})
}
