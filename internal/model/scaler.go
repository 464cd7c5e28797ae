package model

import (
	"encoding/json"
	"fmt"
	"os"
)

// Scaler is a fitted standard scaler: out[i] = (x[i] - Mean[i]) / Scale[i].
// It is never modified after loading and is safe for concurrent use.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// LoadScaler reads a scaler exported as {"mean": [...], "scale": [...]}.
func LoadScaler(path string) (*Scaler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scaler: %w", err)
	}

	var s Scaler
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scaler: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the mean and scale vectors agree.
func (s *Scaler) Validate() error {
	if len(s.Mean) == 0 {
		return fmt.Errorf("scaler: empty mean vector")
	}
	if len(s.Mean) != len(s.Scale) {
		return fmt.Errorf("scaler: %w: mean has %d values, scale has %d", ErrDimensionMismatch, len(s.Mean), len(s.Scale))
	}
	return nil
}

// Dim returns the fitted feature dimension.
func (s *Scaler) Dim() int {
	return len(s.Mean)
}

// Transform standardizes features into the network input space.
// A zero scale leaves the centred value unscaled, as scikit-learn does.
func (s *Scaler) Transform(features []float64) ([]float32, error) {
	if len(features) != s.Dim() {
		return nil, fmt.Errorf("scaler: %w: got %d features, fitted on %d", ErrDimensionMismatch, len(features), s.Dim())
	}

	out := make([]float32, len(features))
	for i, x := range features {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = float32((x - s.Mean[i]) / scale)
	}
	return out, nil
}
