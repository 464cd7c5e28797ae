package detector

import (
	"time"

	"gocv.io/x/gocv"
)

// Detector defines the interface for hand detection implementations.
type Detector interface {
	// Detect analyzes a BGR frame and returns detected hand landmarks.
	// Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// DetectorFunc adapts a plain function to the Detector interface.
type DetectorFunc func(frame *gocv.Mat) ([]HandLandmarks, error)

// Detect calls f(frame).
func (f DetectorFunc) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	return f(frame)
}

// Close is a no-op.
func (f DetectorFunc) Close() error {
	return nil
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect.
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// StaticImageMode runs palm detection on every frame instead of tracking.
	StaticImageMode bool

	// ScriptPath overrides the location of mediapipe_service.py.
	ScriptPath string

	// Python overrides the interpreter used to run the service.
	Python string

	// IdleTimeout stops the helper process after this long without frames.
	// Zero keeps it running.
	IdleTimeout time.Duration
}

// DefaultConfig returns the single-hand still-image configuration used for
// sign classification.
func DefaultConfig() Config {
	return Config{
		MaxHands:        1,
		MinConfidence:   0.5,
		StaticImageMode: true,
		IdleTimeout:     30 * time.Second,
	}
}
