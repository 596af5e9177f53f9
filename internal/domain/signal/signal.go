// Package signal implements the streak-based rule engine that turns raw
// per-frame observations into integrity events and review escalations.
//
// The engine is pure: Evaluate maps a prior detector state plus one
// observation to a new state and zero or more triggered events. Callers
// own persistence of the returned state and appending of the returned
// events; the engine performs no I/O.
package signal

import (
	"time"
)

// Kind identifies a signal-derived event kind.
type Kind string

// Signal kinds evaluated per observation.
const (
	KindNoFace          Kind = "NO_FACE"
	KindMultipleFace    Kind = "MULTIPLE_FACE"
	KindPoseUnavailable Kind = "POSE_UNAVAILABLE"
	KindLookingAway     Kind = "LOOKING_AWAY"
)

// kinds lists all signal kinds in evaluation order.
var kinds = []Kind{KindNoFace, KindMultipleFace, KindPoseUnavailable, KindLookingAway}

// ReviewStatus is the detector's automated review status for a session.
type ReviewStatus string

// Detector review statuses. The transition AUTO_CLEARED -> UNDER_REVIEW
// is one-way for the lifetime of a session.
const (
	AutoCleared ReviewStatus = "AUTO_CLEARED"
	UnderReview ReviewStatus = "UNDER_REVIEW"
)

// Pose carries head-pose angles in degrees.
type Pose struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
}

// Observation is a single frame observation. A nil Pose means head pose
// could not be estimated; an observation with any missing axis must be
// mapped to a nil Pose by the caller rather than partially evaluated.
type Observation struct {
	FacesDetected int
	Pose          *Pose
}

// Counters holds one non-negative integer per signal kind.
type Counters struct {
	NoFace          int `json:"no_face"`
	MultipleFace    int `json:"multiple_face"`
	PoseUnavailable int `json:"pose_unavailable"`
	LookingAway     int `json:"looking_away"`
}

func (c *Counters) of(k Kind) *int {
	switch k {
	case KindNoFace:
		return &c.NoFace
	case KindMultipleFace:
		return &c.MultipleFace
	case KindPoseUnavailable:
		return &c.PoseUnavailable
	case KindLookingAway:
		return &c.LookingAway
	}
	return nil
}

// Get returns the counter for kind k.
func (c Counters) Get(k Kind) int {
	return *c.of(k)
}

// Timestamps holds one trigger timestamp per signal kind. A zero time
// means the kind has never triggered.
type Timestamps struct {
	NoFace          time.Time `json:"no_face"`
	MultipleFace    time.Time `json:"multiple_face"`
	PoseUnavailable time.Time `json:"pose_unavailable"`
	LookingAway     time.Time `json:"looking_away"`
}

func (t *Timestamps) of(k Kind) *time.Time {
	switch k {
	case KindNoFace:
		return &t.NoFace
	case KindMultipleFace:
		return &t.MultipleFace
	case KindPoseUnavailable:
		return &t.PoseUnavailable
	case KindLookingAway:
		return &t.LookingAway
	}
	return nil
}

// Get returns the last trigger time for kind k.
func (t Timestamps) Get(k Kind) time.Time {
	return *t.of(k)
}

// State is the detector's working state for one session. It is a plain
// value type: copying it produces an independent state, which keeps
// Evaluate free of shared mutation.
type State struct {
	Status        ReviewStatus `json:"status"`
	Streaks       Counters     `json:"streaks"`
	TriggerCounts Counters     `json:"trigger_counts"`
	LastTriggerAt Timestamps   `json:"last_trigger_at"`
	TotalEvents   int          `json:"total_events"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// NewState returns the initial detector state for a fresh session.
func NewState() State {
	return State{Status: AutoCleared}
}

// Trigger describes one event emitted by Evaluate.
type Trigger struct {
	Kind         Kind
	StreakFrames int
	At           time.Time
}

// Detector evaluates observations against configured thresholds.
type Detector struct {
	noFaceStreak          int
	multipleFaceStreak    int
	poseUnavailableStreak int
	lookingAwayStreak     int
	yawThreshold          float64
	pitchThreshold        float64
	cooldown              time.Duration
	escalationThreshold   int
}

// New constructs a Detector with default thresholds, overridable via options.
func New(opts ...Option) *Detector {
	d := &Detector{
		noFaceStreak:          3,
		multipleFaceStreak:    2,
		poseUnavailableStreak: 4,
		lookingAwayStreak:     3,
		yawThreshold:          25,
		pitchThreshold:        20,
		cooldown:              10 * time.Second,
		escalationThreshold:   3,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *Detector) streakThreshold(k Kind) int {
	switch k {
	case KindNoFace:
		return d.noFaceStreak
	case KindMultipleFace:
		return d.multipleFaceStreak
	case KindPoseUnavailable:
		return d.poseUnavailableStreak
	case KindLookingAway:
		return d.lookingAwayStreak
	}
	return 0
}

// Evaluate applies one observation to the prior state and returns the new
// state plus any triggered events. Deterministic given the detector's
// configuration and the supplied clock reading.
func (d *Detector) Evaluate(prior State, obs Observation, now time.Time) (State, []Trigger) {
	state := prior
	state.UpdatedAt = now

	// Streak updates. Each counter increments by exactly one on a
	// qualifying observation and resets to zero otherwise.
	if obs.FacesDetected == 0 {
		state.Streaks.NoFace++
	} else {
		state.Streaks.NoFace = 0
	}

	// Exactly two faces, not two-or-more. Quirk inherited from the
	// product rule set; revisit only with product sign-off.
	if obs.FacesDetected == 2 {
		state.Streaks.MultipleFace++
	} else {
		state.Streaks.MultipleFace = 0
	}

	if obs.Pose == nil {
		state.Streaks.PoseUnavailable++
		// Pose-unavailable and looking-away are mutually exclusive
		// per sample: no pose means no angle to judge.
		state.Streaks.LookingAway = 0
	} else {
		state.Streaks.PoseUnavailable = 0
		if abs(obs.Pose.Yaw) >= d.yawThreshold || abs(obs.Pose.Pitch) >= d.pitchThreshold {
			state.Streaks.LookingAway++
		} else {
			state.Streaks.LookingAway = 0
		}
	}

	// Trigger checks. Cooldown blocks re-firing while a streak stays
	// elevated, not only at the instant it crosses the threshold.
	var triggered []Trigger
	for _, k := range kinds {
		streak := state.Streaks.Get(k)
		if streak < d.streakThreshold(k) {
			continue
		}
		if d.coolingDown(state.LastTriggerAt.Get(k), now) {
			continue
		}
		triggered = append(triggered, Trigger{Kind: k, StreakFrames: streak, At: now})
		*state.LastTriggerAt.of(k) = now
		*state.TriggerCounts.of(k)++
		state.TotalEvents++
	}

	// Escalation counts only kinds that indicate misconduct; unreliable
	// capture (POSE_UNAVAILABLE) is excluded. The flip is one-way.
	if state.Status != UnderReview {
		sum := state.TriggerCounts.NoFace + state.TriggerCounts.MultipleFace + state.TriggerCounts.LookingAway
		if sum >= d.escalationThreshold {
			state.Status = UnderReview
		}
	}

	return state, triggered
}

func (d *Detector) coolingDown(lastAt, now time.Time) bool {
	if lastAt.IsZero() {
		return false
	}
	return now.Sub(lastAt) < d.cooldown
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
