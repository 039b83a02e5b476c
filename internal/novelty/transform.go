package novelty

import (
	"errors"
	"fmt"
	"math"
)

var errInvalidScale = errors.New("novelty: scale must be positive")

// Transform maps a mean squared distance to a novelty score in [0, 1] using
// 1 - exp(-d/scale). The score increases strictly with d until it saturates.
func Transform(avgDistance, scale float64) (float64, error) {
	if !(scale > 0) || math.IsInf(scale, 1) {
		return 0, fmt.Errorf("%w: %v", errInvalidScale, scale)
	}
	if math.IsNaN(avgDistance) {
		return 0, errors.New("novelty: distance is NaN")
	}
	novelty := 1 - math.Exp(-avgDistance/scale)
	return math.Min(1, math.Max(0, novelty)), nil
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
