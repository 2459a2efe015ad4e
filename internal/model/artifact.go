package model

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/opensource-telco/shrike/internal/domain"
	"github.com/opensource-telco/shrike/internal/transform"
)

// LayerSpec is one dense layer's weights inside the artifact.
type LayerSpec struct {
	Activation string    `json:"activation"`
	In         int       `json:"in"`
	Out        int       `json:"out"`
	Weights    []float64 `json:"weights"` // row-major, len == in*out
	Biases     []float64 `json:"biases"`  // len == out
}

// Artifact pairs the fitted transform with the trained weights in a
// single JSON document so the two cannot be mismatched silently. It is
// loaded once at process start and shared read-only from then on.
type Artifact struct {
	Version   string    `json:"version"`
	TrainedAt time.Time `json:"trainedAt"`

	// DropoutRates records the training-time regularization (0.3,
	// 0.2, 0.1 after the hidden layers) as provenance only; the
	// inference graph never applies dropout.
	DropoutRates []float64 `json:"dropoutRates,omitempty"`

	Transform transform.Fitted `json:"transform"`
	Layers    []LayerSpec      `json:"layers"`
}

// Load reads and validates an artifact from a JSON file.
func Load(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	var art Artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("failed to parse artifact: %w", err)
	}
	if err := art.Validate(); err != nil {
		return nil, err
	}
	return &art, nil
}

// Save writes the artifact to a JSON file.
func (a *Artifact) Save(path string) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode artifact: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the artifact against the fixed topology and the
// fitted transform's output width. Any mismatch is a ConfigError: it
// signals a corrupted or mispaired artifact and is fatal for the
// process, never handled per batch.
func (a *Artifact) Validate() error {
	if err := a.Transform.Validate(); err != nil {
		return err
	}

	wantLayers := len(hiddenSizes) + 1
	if len(a.Layers) != wantLayers {
		return &domain.ConfigError{Reason: fmt.Sprintf(
			"artifact has %d layers, want %d", len(a.Layers), wantLayers)}
	}

	prevOut := a.Transform.Dim()
	for i, layer := range a.Layers {
		if layer.In != prevOut {
			return &domain.ConfigError{Reason: fmt.Sprintf(
				"layer %d expects %d inputs but receives %d", i, layer.In, prevOut)}
		}
		if i < len(hiddenSizes) {
			if layer.Out != hiddenSizes[i] {
				return &domain.ConfigError{Reason: fmt.Sprintf(
					"hidden layer %d has %d units, want %d", i, layer.Out, hiddenSizes[i])}
			}
			if layer.Activation != ActReLU {
				return &domain.ConfigError{Reason: fmt.Sprintf(
					"hidden layer %d uses %q activation, want %q", i, layer.Activation, ActReLU)}
			}
		} else {
			if layer.Out != 1 {
				return &domain.ConfigError{Reason: fmt.Sprintf(
					"output layer has %d units, want 1", layer.Out)}
			}
			if layer.Activation != ActSigmoid {
				return &domain.ConfigError{Reason: fmt.Sprintf(
					"output layer uses %q activation, want %q", layer.Activation, ActSigmoid)}
			}
		}
		if len(layer.Weights) != layer.In*layer.Out {
			return &domain.ConfigError{Reason: fmt.Sprintf(
				"layer %d carries %d weights, want %d", i, len(layer.Weights), layer.In*layer.Out)}
		}
		if len(layer.Biases) != layer.Out {
			return &domain.ConfigError{Reason: fmt.Sprintf(
				"layer %d carries %d biases, want %d", i, len(layer.Biases), layer.Out)}
		}
		prevOut = layer.Out
	}

	return nil
}

// Network builds the immutable inference graph from the artifact.
func (a *Artifact) Network() (*Network, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	net := &Network{
		layers: make([]denseLayer, len(a.Layers)),
		inDim:  a.Transform.Dim(),
	}
	for i, spec := range a.Layers {
		net.layers[i] = denseLayer{
			in:         spec.In,
			out:        spec.Out,
			weights:    spec.Weights,
			biases:     spec.Biases,
			activation: spec.Activation,
		}
	}
	return net, nil
}
