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

// Package boosting implements gradient boosted regression trees.
package boosting

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"d7y.io/predictor/internal/dferrors"
)

// Booster is a fitted additive ensemble of regression trees.
type Booster struct {
	NumFeatures int       `json:"num_features"`
	Objective   Objective `json:"objective"`
	BaseScore   float64   `json:"base_score"`
	Trees       []Tree    `json:"trees"`
}

// RoundCallback is invoked after every boosting round with the training loss.
type RoundCallback func(round int, trainLoss float64)

type fitOptions struct {
	callback RoundCallback
}

// FitOption is a functional option for Fit.
type FitOption func(*fitOptions)

// WithRoundCallback sets the per round callback.
func WithRoundCallback(callback RoundCallback) FitOption {
	return func(o *fitOptions) {
		o.callback = callback
	}
}

func errDivergence(stage string) error {
	return dferrors.Newf(dferrors.CodeNumericDivergence, "non-finite %s", stage)
}

// Fit trains a booster on x (one row per observation) against y.
// Params are validated before x and y are touched.
func Fit(x *mat.Dense, y []float64, params Params, options ...FitOption) (*Booster, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	l, err := lossFor(params.Objective)
	if err != nil {
		return nil, err
	}

	opts := &fitOptions{}
	for _, opt := range options {
		opt(opts)
	}

	rows, cols := x.Dims()
	if rows == 0 || cols == 0 {
		return nil, dferrors.Newf(dferrors.CodeInsufficientData, "cannot fit on %dx%d matrix", rows, cols)
	}

	if rows != len(y) {
		return nil, dferrors.Newf(dferrors.CodeInvalidArgument, "matrix has %d rows but target has %d", rows, len(y))
	}

	if !isFinite(y) {
		return nil, errDivergence("target")
	}

	raw := x.RawMatrix()
	data := make([][]float64, rows)
	for i := range data {
		data[i] = raw.Data[i*raw.Stride : i*raw.Stride+raw.Cols]
	}

	booster := &Booster{
		NumFeatures: cols,
		Objective:   params.Objective,
		BaseScore:   l.baseScore(y),
		Trees:       make([]Tree, 0, params.BoostingRounds),
	}

	pred := make([]float64, rows)
	for i := range pred {
		pred[i] = booster.BaseScore
	}

	grad := make([]float64, rows)
	hess := make([]float64, rows)
	all := make([]int, rows)
	for i := range all {
		all[i] = i
	}

	for round := 0; round < params.BoostingRounds; round++ {
		l.gradients(pred, y, grad, hess)

		builder := &treeBuilder{
			x:       data,
			grad:    grad,
			hess:    hess,
			params:  params,
			scratch: make([]int, 0, rows),
		}
		if _, err := builder.build(all, 0); err != nil {
			return nil, err
		}

		tree := Tree{Nodes: builder.nodes}
		for i, row := range data {
			pred[i] += tree.Predict(row)
		}

		if !isFinite(pred) {
			return nil, errDivergence(fmt.Sprintf("prediction in round %d", round))
		}

		booster.Trees = append(booster.Trees, tree)
		if opts.callback != nil {
			opts.callback(round, l.evaluate(pred, y))
		}
	}

	return booster, nil
}

// Predict returns the prediction for a single row in training feature order.
func (b *Booster) Predict(row []float64) (float64, error) {
	if len(row) != b.NumFeatures {
		return 0, dferrors.Newf(dferrors.CodeFeatureMismatch, "got %d features, model expects %d", len(row), b.NumFeatures)
	}

	out := b.BaseScore
	for i := range b.Trees {
		out += b.Trees[i].Predict(row)
	}

	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0, errDivergence("prediction")
	}

	return out, nil
}

// PredictDense returns one prediction per row of x.
func (b *Booster) PredictDense(x mat.Matrix) ([]float64, error) {
	rows, cols := x.Dims()
	if cols != b.NumFeatures {
		return nil, dferrors.Newf(dferrors.CodeFeatureMismatch, "got %d features, model expects %d", cols, b.NumFeatures)
	}

	out := make([]float64, rows)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, x)
		p, err := b.Predict(row)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}

	return out, nil
}

// Validate checks the structure of a decoded booster.
func (b *Booster) Validate() error {
	if b.NumFeatures <= 0 {
		return fmt.Errorf("booster has %d features", b.NumFeatures)
	}

	if _, err := lossFor(b.Objective); err != nil {
		return err
	}

	if math.IsNaN(b.BaseScore) || math.IsInf(b.BaseScore, 0) {
		return fmt.Errorf("booster has non-finite base score")
	}

	for i := range b.Trees {
		if err := b.Trees[i].validate(b.NumFeatures); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}

	return nil
}

// FeatureImportance returns the total split gain per feature, normalized to sum to one.
func (b *Booster) FeatureImportance() []float64 {
	importance := make([]float64, b.NumFeatures)
	for i := range b.Trees {
		for _, node := range b.Trees[i].Nodes {
			if !node.IsLeaf() {
				importance[node.Feature] += node.Gain
			}
		}
	}

	if total := floats.Sum(importance); total > 0 {
		floats.Scale(1/total, importance)
	}

	return importance
}

func isFinite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}

	return true
}
