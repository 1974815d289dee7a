/*
 *     Copyright 2023 The Dragonfly Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package boosting

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"d7y.io/predictor/internal/dferrors"
)

// loss supplies first and second order gradients of a regression objective.
type loss interface {
	// baseScore is the constant prediction minimizing the loss.
	baseScore(y []float64) float64

	// gradients fills grad and hess for the current predictions.
	gradients(pred, y, grad, hess []float64)

	// evaluate returns the mean loss.
	evaluate(pred, y []float64) float64
}

func lossFor(objective Objective) (loss, error) {
	switch objective {
	case ObjectiveSquaredError:
		return squaredError{}, nil
	case ObjectiveAbsoluteError:
		return absoluteError{}, nil
	}

	return nil, dferrors.Newf(dferrors.CodeInvalidParams, "unsupported objective %q", objective)
}

type squaredError struct{}

func (squaredError) baseScore(y []float64) float64 {
	return stat.Mean(y, nil)
}

func (squaredError) gradients(pred, y, grad, hess []float64) {
	for i := range y {
		grad[i] = pred[i] - y[i]
		hess[i] = 1
	}
}

// evaluate returns the root mean squared error.
func (squaredError) evaluate(pred, y []float64) float64 {
	var sum float64
	for i := range y {
		d := pred[i] - y[i]
		sum += d * d
	}

	return math.Sqrt(sum / float64(len(y)))
}

type absoluteError struct{}

func (absoluteError) baseScore(y []float64) float64 {
	sorted := make([]float64, len(y))
	copy(sorted, y)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}

func (absoluteError) gradients(pred, y, grad, hess []float64) {
	for i := range y {
		switch d := pred[i] - y[i]; {
		case d > 0:
			grad[i] = 1
		case d < 0:
			grad[i] = -1
		default:
			grad[i] = 0
		}
		hess[i] = 1
	}
}

func (absoluteError) evaluate(pred, y []float64) float64 {
	var sum float64
	for i := range y {
		sum += math.Abs(pred[i] - y[i])
	}

	return sum / float64(len(y))
}
