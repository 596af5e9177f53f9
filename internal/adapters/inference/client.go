// Package inference calls the external face-presence and head-pose
// services. The two sub-calls are issued concurrently and both must
// succeed; any failure or timeout is a single transient error and never
// produces a partial observation.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/vigil/internal/domain/signal"
	"github.com/okian/vigil/pkg/metrics"
)

// Default client configuration constants.
const (
	defaultBaseURL = "http://localhost:8001"
	defaultTimeout = 2500 * time.Millisecond
)

// Observer produces one frame observation from a captured image.
type Observer interface {
	// Observe runs both inference sub-calls for the image and merges the
	// results. The returned observation has a nil Pose when any axis is
	// missing from the head-pose response.
	Observe(ctx context.Context, imageBase64 string) (signal.Observation, error)
}

// Client implements Observer over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates an inference client with configuration options.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type inferRequest struct {
	Image string `json:"image"`
}

type facePresenceResponse struct {
	FacesDetected int `json:"faces_detected"`
}

type headPoseResponse struct {
	Yaw   *float64 `json:"yaw"`
	Pitch *float64 `json:"pitch"`
	Roll  *float64 `json:"roll"`
}

// Observe runs face-presence and head-pose concurrently.
func (c *Client) Observe(ctx context.Context, imageBase64 string) (signal.Observation, error) {
	start := time.Now()

	var (
		faces    facePresenceResponse
		pose     headPoseResponse
		faceErr  error
		poseErr  error
		poseDone = make(chan struct{})
	)

	go func() {
		defer close(poseDone)
		poseErr = c.post(ctx, "/infer/head-pose", imageBase64, &pose)
	}()
	faceErr = c.post(ctx, "/infer/face-presence", imageBase64, &faces)
	<-poseDone

	metrics.RecordInferenceLatency(float64(time.Since(start).Milliseconds()))

	if faceErr != nil {
		metrics.RecordInferenceError()
		return signal.Observation{}, faceErr
	}
	if poseErr != nil {
		metrics.RecordInferenceError()
		return signal.Observation{}, poseErr
	}

	obs := signal.Observation{FacesDetected: faces.FacesDetected}
	// Partial pose is not evaluated on the axes that did arrive; one
	// missing axis makes the whole pose unavailable.
	if pose.Yaw != nil && pose.Pitch != nil && pose.Roll != nil {
		obs.Pose = &signal.Pose{Yaw: *pose.Yaw, Pitch: *pose.Pitch, Roll: *pose.Roll}
	}
	return obs, nil
}

func (c *Client) post(ctx context.Context, path, imageBase64 string, out any) error {
	body, err := json.Marshal(inferRequest{Image: imageBase64})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: %s returned status %d", ErrUnavailable, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}
