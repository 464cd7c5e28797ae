// Package model loads the pretrained sign classifier and its feature scaler.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Default descriptive fields reported by /info when metadata omits them.
const (
	DefaultModelName  = "CNN para Reconhecimento de Sinais em Libras"
	DefaultVersion    = "v2"
	DefaultInputName  = "input"
	DefaultOutputName = "output"
)

// ErrDimensionMismatch is returned when a vector does not have the fitted size.
var ErrDimensionMismatch = errors.New("dimension mismatch")

// Metadata is the checkpoint description exported next to the ONNX graph.
type Metadata struct {
	InputDim   int      `json:"input_dim"`
	NumClasses int      `json:"num_classes"`
	Labels     []string `json:"label_encoder"`
	ModelName  string   `json:"model_name,omitempty"`
	Version    string   `json:"version,omitempty"`
	InputName  string   `json:"input_name,omitempty"`
	OutputName string   `json:"output_name,omitempty"`
}

// LoadMetadata reads and validates a checkpoint metadata file.
func LoadMetadata(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("read metadata: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("parse metadata: %w", err)
	}

	meta.applyDefaults()
	if err := meta.Validate(); err != nil {
		return Metadata{}, err
	}
	return meta, nil
}

func (m *Metadata) applyDefaults() {
	if m.ModelName == "" {
		m.ModelName = DefaultModelName
	}
	if m.Version == "" {
		m.Version = DefaultVersion
	}
	if m.InputName == "" {
		m.InputName = DefaultInputName
	}
	if m.OutputName == "" {
		m.OutputName = DefaultOutputName
	}
}

// Validate checks the metadata is self-consistent.
func (m Metadata) Validate() error {
	if m.InputDim <= 0 {
		return fmt.Errorf("metadata: input_dim must be positive, got %d", m.InputDim)
	}
	if m.NumClasses <= 0 {
		return fmt.Errorf("metadata: num_classes must be positive, got %d", m.NumClasses)
	}
	if len(m.Labels) != m.NumClasses {
		return fmt.Errorf("metadata: %w: %d labels for %d classes", ErrDimensionMismatch, len(m.Labels), m.NumClasses)
	}
	seen := make(map[string]bool, len(m.Labels))
	for _, l := range m.Labels {
		if seen[l] {
			return fmt.Errorf("metadata: duplicate label %q", l)
		}
		seen[l] = true
	}
	return nil
}
