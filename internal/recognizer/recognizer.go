// Package recognizer runs one frame through the sign recognition pipeline:
// decode, detect, normalize, classify, annotate.
package recognizer

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/lisa/internal/detector"
	"github.com/ayusman/lisa/internal/frame"
	"github.com/ayusman/lisa/internal/model"
)

// ErrInvalidInput marks failures caused by the client payload.
var ErrInvalidInput = errors.New("invalid input")

// Status tags the outcome of a processed frame.
type Status int

const (
	// StatusNoHand means the detector found no hand in the frame.
	StatusNoHand Status = iota
	// StatusRecognized means a hand was found and classified.
	StatusRecognized
)

func (s Status) String() string {
	switch s {
	case StatusNoHand:
		return "no_hand"
	case StatusRecognized:
		return "recognized"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Outcome is the result of a frame that was processed without error.
// Prediction, AnnotatedJPEG and Hand are only set when Status is StatusRecognized.
type Outcome struct {
	Status        Status
	Prediction    model.Prediction
	AnnotatedJPEG []byte
	Hand          detector.HandLandmarks
	Latency       time.Duration
}

// Config holds the inference context shared by every request.
type Config struct {
	Detector   detector.Detector
	Scaler     *model.Scaler
	Classifier *model.Classifier
	Logger     *zap.Logger
}

// Recognizer is immutable after New and safe for concurrent use as long as
// its Detector is.
type Recognizer struct {
	detector   detector.Detector
	scaler     *model.Scaler
	classifier *model.Classifier
	labels     []string
	logger     *zap.Logger
}

// New validates cfg and builds a Recognizer.
func New(cfg Config) (*Recognizer, error) {
	if cfg.Detector == nil {
		return nil, errors.New("recognizer: nil detector")
	}
	if cfg.Scaler == nil || cfg.Classifier == nil {
		return nil, errors.New("recognizer: scaler and classifier are required")
	}
	if cfg.Scaler.Dim() != detector.FeatureDim {
		return nil, fmt.Errorf("recognizer: %w: scaler has %d features, landmarks give %d",
			model.ErrDimensionMismatch, cfg.Scaler.Dim(), detector.FeatureDim)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Recognizer{
		detector:   cfg.Detector,
		scaler:     cfg.Scaler,
		classifier: cfg.Classifier,
		labels:     cfg.Classifier.Labels(),
		logger:     logger.Named("recognizer"),
	}, nil
}

// Labels returns the ordered class labels.
func (r *Recognizer) Labels() []string {
	return append([]string(nil), r.labels...)
}

// RecognizeDataURI decodes a "data:image/...;base64,..." string and recognizes it.
func (r *Recognizer) RecognizeDataURI(uri string) (*Outcome, error) {
	data, err := frame.ParseDataURI(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return r.Recognize(data)
}

// Recognize processes encoded image bytes. A frame without a hand is a
// StatusNoHand outcome, not an error.
func (r *Recognizer) Recognize(data []byte) (*Outcome, error) {
	start := time.Now()

	img, err := frame.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	defer img.Close()

	hands, err := r.detector.Detect(&img)
	if err != nil {
		return nil, fmt.Errorf("detect hands: %w", err)
	}
	if len(hands) == 0 {
		return &Outcome{Status: StatusNoHand, Latency: time.Since(start)}, nil
	}

	hand := hands[0]
	prediction, err := r.classify(hand)
	if err != nil {
		return nil, err
	}

	annotated, err := annotate(&img, hand)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{
		Status:        StatusRecognized,
		Prediction:    prediction,
		AnnotatedJPEG: annotated,
		Hand:          hand,
		Latency:       time.Since(start),
	}

	r.logger.Debug("frame recognized",
		zap.String("label", prediction.Label),
		zap.Float64("confidence", prediction.Confidence),
		zap.Duration("latency", outcome.Latency))

	return outcome, nil
}

func (r *Recognizer) classify(hand detector.HandLandmarks) (model.Prediction, error) {
	features, err := r.scaler.Transform(hand.Features())
	if err != nil {
		return model.Prediction{}, fmt.Errorf("normalize features: %w", err)
	}

	prediction, err := r.classifier.Predict(features)
	if err != nil {
		return model.Prediction{}, fmt.Errorf("classify: %w", err)
	}
	return prediction, nil
}

// annotate draws the hand onto img and encodes the result.
func annotate(img *gocv.Mat, hand detector.HandLandmarks) ([]byte, error) {
	frame.DrawLandmarks(img, hand)

	out, err := frame.EncodeJPEG(*img)
	if err != nil {
		return nil, fmt.Errorf("annotate: %w", err)
	}
	return out, nil
}
