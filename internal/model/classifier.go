package model

import (
	"errors"
	"fmt"
	"math"
)

// Network runs a forward pass and returns one logit per class.
// Implementations must be safe for concurrent use.
type Network interface {
	Forward(input []float32) ([]float32, error)
	Close() error
}

// Prediction is the classifier output for one feature vector.
type Prediction struct {
	Label      string  `json:"label"`
	Index      int     `json:"index"`
	Confidence float64 `json:"confidence"`
}

// Classifier maps normalized feature vectors to class labels.
type Classifier struct {
	net      Network
	labels   []string
	inputDim int
}

// NewClassifier wraps net with the ordered label list (index = output neuron).
func NewClassifier(net Network, labels []string, inputDim int) (*Classifier, error) {
	if net == nil {
		return nil, errors.New("classifier: nil network")
	}
	if len(labels) == 0 {
		return nil, errors.New("classifier: no labels")
	}
	return &Classifier{
		net:      net,
		labels:   append([]string(nil), labels...),
		inputDim: inputDim,
	}, nil
}

// Labels returns a copy of the ordered class labels.
func (c *Classifier) Labels() []string {
	return append([]string(nil), c.labels...)
}

// Predict runs the network and returns the argmax label with its softmax probability.
func (c *Classifier) Predict(features []float32) (Prediction, error) {
	if len(features) != c.inputDim {
		return Prediction{}, fmt.Errorf("classifier: %w: got %d features, want %d", ErrDimensionMismatch, len(features), c.inputDim)
	}

	logits, err := c.net.Forward(features)
	if err != nil {
		return Prediction{}, fmt.Errorf("forward pass: %w", err)
	}
	if len(logits) != len(c.labels) {
		return Prediction{}, fmt.Errorf("classifier: %w: %d logits for %d labels", ErrDimensionMismatch, len(logits), len(c.labels))
	}

	probs := Softmax(logits)
	best := Argmax(probs)
	if math.IsNaN(probs[best]) {
		return Prediction{}, errors.New("classifier: network produced NaN logits")
	}

	return Prediction{
		Label:      c.labels[best],
		Index:      best,
		Confidence: probs[best],
	}, nil
}

// Close releases the network.
func (c *Classifier) Close() error {
	return c.net.Close()
}

// Softmax converts logits to probabilities, shifting by the max logit for stability.
func Softmax(logits []float32) []float64 {
	if len(logits) == 0 {
		return nil
	}

	maxLogit := math.Inf(-1)
	for _, l := range logits {
		maxLogit = math.Max(maxLogit, float64(l))
	}

	probs := make([]float64, len(logits))
	var sum float64
	for i, l := range logits {
		probs[i] = math.Exp(float64(l) - maxLogit)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// Argmax returns the index of the largest value; ties go to the lowest index.
func Argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
