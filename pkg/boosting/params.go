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

	"d7y.io/predictor/internal/dferrors"
)

// Objective is the regression loss minimized by boosting.
type Objective string

const (
	// ObjectiveSquaredError is the squared error loss.
	ObjectiveSquaredError Objective = "reg:squarederror"

	// ObjectiveAbsoluteError is the absolute error loss.
	ObjectiveAbsoluteError Objective = "reg:absoluteerror"
)

const (
	// DefaultMaxTreeDepth is default maximum depth of a tree.
	DefaultMaxTreeDepth = 6

	// DefaultLearningRate is default shrinkage applied to every tree.
	DefaultLearningRate = 0.3

	// DefaultBoostingRounds is default number of trees.
	DefaultBoostingRounds = 100

	// DefaultMinChildWeight is default minimum hessian sum of a child.
	DefaultMinChildWeight = 1.0

	// DefaultLambda is default L2 regularization on leaf weights.
	DefaultLambda = 1.0
)

// Params are the hyperparameters of a boosting run.
type Params struct {
	MaxTreeDepth   int       `json:"max_depth" yaml:"maxTreeDepth" mapstructure:"maxTreeDepth"`
	LearningRate   float64   `json:"eta" yaml:"learningRate" mapstructure:"learningRate"`
	BoostingRounds int       `json:"num_boost_round" yaml:"boostingRounds" mapstructure:"boostingRounds"`
	Objective      Objective `json:"objective" yaml:"objective" mapstructure:"objective"`
	MinChildWeight float64   `json:"min_child_weight" yaml:"minChildWeight" mapstructure:"minChildWeight"`
	Lambda         float64   `json:"lambda" yaml:"lambda" mapstructure:"lambda"`
}

// DefaultParams returns depth 6, rate 0.3, 100 rounds of squared error boosting.
func DefaultParams() Params {
	return Params{
		MaxTreeDepth:   DefaultMaxTreeDepth,
		LearningRate:   DefaultLearningRate,
		BoostingRounds: DefaultBoostingRounds,
		Objective:      ObjectiveSquaredError,
		MinChildWeight: DefaultMinChildWeight,
		Lambda:         DefaultLambda,
	}
}

// Validate params.
func (p Params) Validate() error {
	if p.MaxTreeDepth <= 0 {
		return dferrors.Newf(dferrors.CodeInvalidParams, "maxTreeDepth must be positive, got %d", p.MaxTreeDepth)
	}

	if !(p.LearningRate > 0 && p.LearningRate <= 1) {
		return dferrors.Newf(dferrors.CodeInvalidParams, "learningRate must be in (0, 1], got %v", p.LearningRate)
	}

	if p.BoostingRounds <= 0 {
		return dferrors.Newf(dferrors.CodeInvalidParams, "boostingRounds must be positive, got %d", p.BoostingRounds)
	}

	if p.MinChildWeight < 0 || math.IsNaN(p.MinChildWeight) || math.IsInf(p.MinChildWeight, 0) {
		return dferrors.Newf(dferrors.CodeInvalidParams, "minChildWeight must be finite and non-negative, got %v", p.MinChildWeight)
	}

	if p.Lambda < 0 || math.IsNaN(p.Lambda) || math.IsInf(p.Lambda, 0) {
		return dferrors.Newf(dferrors.CodeInvalidParams, "lambda must be finite and non-negative, got %v", p.Lambda)
	}

	if _, err := lossFor(p.Objective); err != nil {
		return err
	}

	return nil
}
