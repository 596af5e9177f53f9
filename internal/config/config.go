// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with documented defaults.
// - All thresholds are injected into the rule engine at construction,
//   never read ambiently per call.
// - External errors must be wrapped via this package's error helpers.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// InferenceURL is the base URL of the face-presence/head-pose service.
	InferenceURL string `koanf:"inference_url"`

	// InferenceTimeoutMS bounds each inference round trip.
	InferenceTimeoutMS int `koanf:"inference_timeout_ms"`

	// SampleIntervalMS is the minimum interval between accepted frame
	// observations per session; faster samples are silently dropped.
	SampleIntervalMS int `koanf:"sample_interval_ms"`

	// Streak thresholds: consecutive qualifying observations required
	// before a signal kind triggers an event.
	NoFaceStreak          int `koanf:"no_face_streak"`
	MultipleFaceStreak    int `koanf:"multiple_face_streak"`
	PoseUnavailableStreak int `koanf:"pose_unavailable_streak"`
	LookingAwayStreak     int `koanf:"looking_away_streak"`

	// YawThresholdDeg and PitchThresholdDeg are the absolute head-pose
	// angles at or beyond which a sample counts as looking away.
	YawThresholdDeg   float64 `koanf:"yaw_threshold_deg"`
	PitchThresholdDeg float64 `koanf:"pitch_threshold_deg"`

	// EventCooldownMS is the minimum time between two emissions of the
	// same event kind for a session.
	EventCooldownMS int `koanf:"event_cooldown_ms"`

	// EscalationThreshold is the cumulative trigger count across
	// NO_FACE, MULTIPLE_FACE and LOOKING_AWAY that flips a session to
	// UNDER_REVIEW.
	EscalationThreshold int `koanf:"escalation_threshold"`

	// UpdateRetryLimit bounds retries after an optimistic-write conflict.
	UpdateRetryLimit int `koanf:"update_retry_limit"`
}

// New creates a Config with the documented defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		Addr:                  ":9080",
		InferenceURL:          "http://localhost:8001",
		InferenceTimeoutMS:    2500,
		SampleIntervalMS:      1500,
		NoFaceStreak:          3,
		MultipleFaceStreak:    2,
		PoseUnavailableStreak: 4,
		LookingAwayStreak:     3,
		YawThresholdDeg:       25,
		PitchThresholdDeg:     20,
		EventCooldownMS:       10_000,
		EscalationThreshold:   3,
		UpdateRetryLimit:      3,
	}
}
