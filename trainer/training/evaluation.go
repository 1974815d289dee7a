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

package training

import (
	"math"

	"github.com/montanaflynn/stats"

	"d7y.io/predictor/internal/dferrors"
)

// Evaluation holds regression metrics of predictions against actual values.
type Evaluation struct {
	MAE  float64
	MSE  float64
	RMSE float64
	R2   float64
}

// Evaluate scores predicted against actual. A constant actual vector has
// R2 of 1 when matched exactly and 0 otherwise.
func Evaluate(predicted, actual []float64) (Evaluation, error) {
	if len(predicted) != len(actual) {
		return Evaluation{}, dferrors.Newf(dferrors.CodeInvalidArgument, "got %d predictions for %d values", len(predicted), len(actual))
	}

	if len(actual) == 0 {
		return Evaluation{}, dferrors.New(dferrors.CodeInsufficientData, "nothing to evaluate")
	}

	n := float64(len(actual))
	manhattan, err := stats.ManhattanDistance(predicted, actual)
	if err != nil {
		return Evaluation{}, dferrors.Wrap(err, dferrors.CodeInvalidArgument, "mae")
	}

	euclidean, err := stats.EuclideanDistance(predicted, actual)
	if err != nil {
		return Evaluation{}, dferrors.Wrap(err, dferrors.CodeInvalidArgument, "mse")
	}

	variance, err := stats.PopulationVariance(actual)
	if err != nil {
		return Evaluation{}, dferrors.Wrap(err, dferrors.CodeInvalidArgument, "variance")
	}

	e := Evaluation{
		MAE: manhattan / n,
		MSE: euclidean * euclidean / n,
	}
	e.RMSE = math.Sqrt(e.MSE)

	switch {
	case variance > 0:
		e.R2 = 1 - e.MSE/variance
	case e.MSE == 0:
		e.R2 = 1
	}

	for _, v := range []float64{e.MAE, e.MSE, e.RMSE, e.R2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Evaluation{}, dferrors.New(dferrors.CodeNumericDivergence, "non-finite evaluation metric")
		}
	}

	return e, nil
}
