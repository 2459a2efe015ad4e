package model

import (
	"math"
	"math/rand"
	"time"

	"github.com/opensource-telco/shrike/internal/transform"
)

// demoSeed fixes the demo weights so demo scoring stays reproducible
// across restarts.
const demoSeed = 42

// Demo builds a deterministic artifact with seeded Xavier-initialized
// weights around the given transform state. It exists for tests and
// for running the server without a trained artifact; probabilities are
// placeholder scores, not real fraud estimates.
func Demo(fitted transform.Fitted) *Artifact {
	rng := rand.New(rand.NewSource(demoSeed))

	sizes := append([]int{fitted.Dim()}, hiddenSizes...)
	sizes = append(sizes, 1)

	layers := make([]LayerSpec, 0, len(sizes)-1)
	for i := 0; i < len(sizes)-1; i++ {
		in, out := sizes[i], sizes[i+1]
		act := ActReLU
		if i == len(sizes)-2 {
			act = ActSigmoid
		}
		scale := math.Sqrt(2.0 / float64(in+out))
		weights := make([]float64, in*out)
		for w := range weights {
			weights[w] = rng.Float64()*2*scale - scale
		}
		biases := make([]float64, out)
		for b := range biases {
			biases[b] = rng.Float64()*0.2 - 0.1
		}
		layers = append(layers, LayerSpec{
			Activation: act,
			In:         in,
			Out:        out,
			Weights:    weights,
			Biases:     biases,
		})
	}

	return &Artifact{
		Version:      "demo",
		TrainedAt:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		DropoutRates: []float64{0.3, 0.2, 0.1},
		Transform:    fitted,
		Layers:       layers,
	}
}
