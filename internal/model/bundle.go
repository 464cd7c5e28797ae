package model

import (
	"fmt"
)

// Bundle is everything loaded from the model directory at startup.
type Bundle struct {
	Metadata   Metadata
	Scaler     *Scaler
	Classifier *Classifier
}

// Paths locates the three files that make up a bundle.
type Paths struct {
	Model    string
	Metadata string
	Scaler   string
}

// NewBundle assembles a bundle, rejecting any dimension disagreement
// between the checkpoint metadata, the scaler and featureDim.
func NewBundle(meta Metadata, scaler *Scaler, net Network, featureDim int) (*Bundle, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	if meta.InputDim != featureDim {
		return nil, fmt.Errorf("bundle: %w: checkpoint input_dim %d, landmark features %d", ErrDimensionMismatch, meta.InputDim, featureDim)
	}
	if scaler.Dim() != meta.InputDim {
		return nil, fmt.Errorf("bundle: %w: scaler fitted on %d features, checkpoint input_dim %d", ErrDimensionMismatch, scaler.Dim(), meta.InputDim)
	}

	classifier, err := NewClassifier(net, meta.Labels, meta.InputDim)
	if err != nil {
		return nil, err
	}

	return &Bundle{
		Metadata:   meta,
		Scaler:     scaler,
		Classifier: classifier,
	}, nil
}

// Load reads metadata and scaler, opens the ONNX graph and assembles a bundle.
// InitRuntime must have been called.
func Load(paths Paths, featureDim int) (*Bundle, error) {
	meta, err := LoadMetadata(paths.Metadata)
	if err != nil {
		return nil, err
	}

	scaler, err := LoadScaler(paths.Scaler)
	if err != nil {
		return nil, err
	}

	net, err := NewONNXNetwork(paths.Model, meta)
	if err != nil {
		return nil, err
	}

	bundle, err := NewBundle(meta, scaler, net, featureDim)
	if err != nil {
		net.Close()
		return nil, err
	}
	return bundle, nil
}

// Close releases the classifier network.
func (b *Bundle) Close() error {
	return b.Classifier.Close()
}
