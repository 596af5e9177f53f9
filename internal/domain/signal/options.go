package signal

import "time"

// Option applies a configuration option to the Detector.
type Option func(*Detector)

// WithStreakThresholds sets the per-kind consecutive-observation thresholds.
func WithStreakThresholds(noFace, multipleFace, poseUnavailable, lookingAway int) Option {
	return func(d *Detector) {
		if noFace > 0 {
			d.noFaceStreak = noFace
		}
		if multipleFace > 0 {
			d.multipleFaceStreak = multipleFace
		}
		if poseUnavailable > 0 {
			d.poseUnavailableStreak = poseUnavailable
		}
		if lookingAway > 0 {
			d.lookingAwayStreak = lookingAway
		}
	}
}

// WithPoseThresholds sets the absolute yaw/pitch degrees at or beyond
// which a sample counts as looking away.
func WithPoseThresholds(yawDeg, pitchDeg float64) Option {
	return func(d *Detector) {
		if yawDeg > 0 {
			d.yawThreshold = yawDeg
		}
		if pitchDeg > 0 {
			d.pitchThreshold = pitchDeg
		}
	}
}

// WithCooldown sets the minimum time between two emissions of the same kind.
func WithCooldown(cooldown time.Duration) Option {
	return func(d *Detector) {
		if cooldown >= 0 {
			d.cooldown = cooldown
		}
	}
}

// WithEscalationThreshold sets the cumulative trigger count that flips a
// session to UNDER_REVIEW.
func WithEscalationThreshold(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.escalationThreshold = n
		}
	}
}
