// Package model implements the fraud classifier: a fixed-architecture
// feed-forward network evaluated in inference mode only.
package model

import (
	"fmt"
	"math"

	"github.com/opensource-telco/shrike/internal/domain"
)

// Fixed topology the service is built for: three ReLU hidden layers
// and a single sigmoid output producing a fraud probability.
var hiddenSizes = []int{128, 64, 32}

// Activation names carried in the artifact.
const (
	ActReLU    = "relu"
	ActSigmoid = "sigmoid"
)

// denseLayer is one fully connected layer with immutable weights.
// Weights are row-major: the weight from input j to output i sits at
// weights[i*in+j] (GoNeuron-style contiguous layout).
type denseLayer struct {
	in, out    int
	weights    []float64
	biases     []float64
	activation string
}

// forward computes act(Wx + b) into a fresh slice so concurrent
// inferences never share buffers.
func (l *denseLayer) forward(x []float64) []float64 {
	out := make([]float64, l.out)
	for o := 0; o < l.out; o++ {
		sum := l.biases[o]
		base := o * l.in
		for i := 0; i < l.in; i++ {
			sum += l.weights[base+i] * x[i]
		}
		out[o] = activate(l.activation, sum)
	}
	return out
}

func activate(name string, x float64) float64 {
	switch name {
	case ActReLU:
		if x > 0 {
			return x
		}
		return 0
	case ActSigmoid:
		return 1 / (1 + math.Exp(-x))
	default:
		// Unknown names are rejected at load time.
		return x
	}
}

// Network is the inference-time graph: deterministic, side-effect
// free, safe for concurrent use. Dropout exists only at training time
// and is absent here; there is no training flag to flip.
type Network struct {
	layers []denseLayer
	inDim  int
}

// InputDim returns the feature vector width the network expects.
func (n *Network) InputDim() int {
	return n.inDim
}

// Infer maps one feature vector to a fraud probability in (0, 1).
// The same vector always yields the same probability.
func (n *Network) Infer(vec []float64) (float64, error) {
	if len(vec) != n.inDim {
		return 0, &domain.ConfigError{Reason: fmt.Sprintf(
			"feature vector has %d dimensions, model expects %d", len(vec), n.inDim)}
	}
	x := vec
	for i := range n.layers {
		x = n.layers[i].forward(x)
	}
	return x[0], nil
}
