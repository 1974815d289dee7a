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
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"d7y.io/predictor/internal/dferrors"
)

// linearData returns rows of two features where only the first one drives the target.
func linearData(n int, seed int64) (*mat.Dense, []float64) {
	r := rand.New(rand.NewSource(seed))
	x := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x0 := r.Float64() * 10
		x.Set(i, 0, x0)
		x.Set(i, 1, r.Float64())
		y[i] = 2*x0 + 3
	}

	return x, y
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mock   func(p *Params)
		expect func(t *testing.T, err error)
	}{
		{
			name: "default params",
			mock: func(p *Params) {},
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.NoError(err)
			},
		},
		{
			name: "zero depth",
			mock: func(p *Params) { p.MaxTreeDepth = 0 },
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.True(dferrors.CheckError(err, dferrors.CodeInvalidParams))
			},
		},
		{
			name: "learning rate above one",
			mock: func(p *Params) { p.LearningRate = 1.5 },
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.True(dferrors.CheckError(err, dferrors.CodeInvalidParams))
			},
		},
		{
			name: "NaN learning rate",
			mock: func(p *Params) { p.LearningRate = math.NaN() },
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.True(dferrors.CheckError(err, dferrors.CodeInvalidParams))
			},
		},
		{
			name: "no rounds",
			mock: func(p *Params) { p.BoostingRounds = 0 },
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.True(dferrors.CheckError(err, dferrors.CodeInvalidParams))
			},
		},
		{
			name: "negative lambda",
			mock: func(p *Params) { p.Lambda = -1 },
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.True(dferrors.CheckError(err, dferrors.CodeInvalidParams))
			},
		},
		{
			name: "unknown objective",
			mock: func(p *Params) { p.Objective = "binary:logistic" },
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.True(dferrors.CheckError(err, dferrors.CodeInvalidParams))
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultParams()
			tc.mock(&p)
			tc.expect(t, p.Validate())
		})
	}
}

func TestDefaultParams(t *testing.T) {
	assert := assert.New(t)
	p := DefaultParams()
	assert.Equal(6, p.MaxTreeDepth)
	assert.Equal(0.3, p.LearningRate)
	assert.Equal(100, p.BoostingRounds)
	assert.Equal(ObjectiveSquaredError, p.Objective)
}

func TestFit(t *testing.T) {
	tests := []struct {
		name   string
		mock   func() (*mat.Dense, []float64, Params)
		expect func(t *testing.T, x *mat.Dense, y []float64, b *Booster, err error)
	}{
		{
			name: "fit with default params",
			mock: func() (*mat.Dense, []float64, Params) {
				x, y := linearData(100, 1)
				return x, y, DefaultParams()
			},
			expect: func(t *testing.T, x *mat.Dense, y []float64, b *Booster, err error) {
				assert := assert.New(t)
				require.NoError(t, err)
				assert.Len(b.Trees, 100)
				assert.Equal(2, b.NumFeatures)
				assert.NoError(b.Validate())

				p, err := b.Predict(mat.Row(nil, 0, x))
				assert.NoError(err)
				assert.False(math.IsNaN(p) || math.IsInf(p, 0))
				assert.InDelta(y[0], p, 0.5)
			},
		},
		{
			name: "fit with absolute error",
			mock: func() (*mat.Dense, []float64, Params) {
				x, y := linearData(60, 2)
				p := DefaultParams()
				p.Objective = ObjectiveAbsoluteError
				p.BoostingRounds = 20
				return x, y, p
			},
			expect: func(t *testing.T, x *mat.Dense, y []float64, b *Booster, err error) {
				assert := assert.New(t)
				require.NoError(t, err)
				assert.Len(b.Trees, 20)
				assert.Equal(ObjectiveAbsoluteError, b.Objective)
			},
		},
		{
			name: "invalid params fail before data is read",
			mock: func() (*mat.Dense, []float64, Params) {
				p := DefaultParams()
				p.BoostingRounds = -1
				return mat.NewDense(1, 1, nil), nil, p
			},
			expect: func(t *testing.T, x *mat.Dense, y []float64, b *Booster, err error) {
				assert := assert.New(t)
				assert.True(dferrors.CheckError(err, dferrors.CodeInvalidParams))
			},
		},
		{
			name: "target length mismatch",
			mock: func() (*mat.Dense, []float64, Params) {
				return mat.NewDense(2, 1, []float64{1, 2}), []float64{1}, DefaultParams()
			},
			expect: func(t *testing.T, x *mat.Dense, y []float64, b *Booster, err error) {
				assert := assert.New(t)
				assert.True(dferrors.CheckError(err, dferrors.CodeInvalidArgument))
			},
		},
		{
			name: "non-finite target",
			mock: func() (*mat.Dense, []float64, Params) {
				return mat.NewDense(2, 1, []float64{1, 2}), []float64{1, math.Inf(1)}, DefaultParams()
			},
			expect: func(t *testing.T, x *mat.Dense, y []float64, b *Booster, err error) {
				assert := assert.New(t)
				assert.True(dferrors.CheckError(err, dferrors.CodeNumericDivergence))
			},
		},
		{
			name: "single constant row",
			mock: func() (*mat.Dense, []float64, Params) {
				p := DefaultParams()
				p.BoostingRounds = 3
				return mat.NewDense(1, 1, []float64{1}), []float64{5}, p
			},
			expect: func(t *testing.T, x *mat.Dense, y []float64, b *Booster, err error) {
				assert := assert.New(t)
				require.NoError(t, err)
				p, err := b.Predict([]float64{42})
				assert.NoError(err)
				assert.InDelta(5, p, 1e-9)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			x, y, params := tc.mock()
			b, err := Fit(x, y, params)
			tc.expect(t, x, y, b, err)
		})
	}
}

func TestFit_RoundCallback(t *testing.T) {
	assert := assert.New(t)
	x, y := linearData(80, 3)
	params := DefaultParams()
	params.BoostingRounds = 10

	var losses []float64
	_, err := Fit(x, y, params, WithRoundCallback(func(round int, trainLoss float64) {
		assert.Equal(len(losses), round)
		losses = append(losses, trainLoss)
	}))
	require.NoError(t, err)
	assert.Len(losses, 10)
	assert.Less(losses[9], losses[0])
}

func TestBooster_Predict(t *testing.T) {
	x, y := linearData(50, 4)
	params := DefaultParams()
	params.BoostingRounds = 5
	b, err := Fit(x, y, params)
	require.NoError(t, err)

	tests := []struct {
		name   string
		row    []float64
		expect func(t *testing.T, p float64, err error)
	}{
		{
			name: "predict",
			row:  []float64{5, 0.5},
			expect: func(t *testing.T, p float64, err error) {
				assert := assert.New(t)
				assert.NoError(err)
			},
		},
		{
			name: "too few features",
			row:  []float64{5},
			expect: func(t *testing.T, p float64, err error) {
				assert := assert.New(t)
				assert.True(dferrors.CheckError(err, dferrors.CodeFeatureMismatch))
			},
		},
		{
			name: "too many features",
			row:  []float64{5, 0.5, 1},
			expect: func(t *testing.T, p float64, err error) {
				assert := assert.New(t)
				assert.True(dferrors.CheckError(err, dferrors.CodeFeatureMismatch))
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := b.Predict(tc.row)
			tc.expect(t, p, err)
		})
	}

	preds, err := b.PredictDense(x)
	require.NoError(t, err)
	assert.Len(t, preds, 50)
	first, _ := b.Predict(mat.Row(nil, 0, x))
	assert.Equal(t, first, preds[0])
}

func TestBooster_Validate(t *testing.T) {
	tests := []struct {
		name    string
		booster Booster
		expect  func(t *testing.T, err error)
	}{
		{
			name: "valid stump",
			booster: Booster{NumFeatures: 1, Objective: ObjectiveSquaredError, Trees: []Tree{{Nodes: []Node{
				{Feature: 0, Threshold: 1, Left: 1, Right: 2},
				{Feature: leafIndex, Left: leafIndex, Right: leafIndex, Value: -1},
				{Feature: leafIndex, Left: leafIndex, Right: leafIndex, Value: 1},
			}}}},
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.NoError(err)
			},
		},
		{
			name: "cyclic child",
			booster: Booster{NumFeatures: 1, Objective: ObjectiveSquaredError, Trees: []Tree{{Nodes: []Node{
				{Feature: 0, Threshold: 1, Left: 0, Right: 1},
				{Feature: leafIndex, Left: leafIndex, Right: leafIndex},
			}}}},
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.Error(err)
			},
		},
		{
			name: "feature out of range",
			booster: Booster{NumFeatures: 1, Objective: ObjectiveSquaredError, Trees: []Tree{{Nodes: []Node{
				{Feature: 3, Threshold: 1, Left: 1, Right: 2},
				{Feature: leafIndex, Left: leafIndex, Right: leafIndex},
				{Feature: leafIndex, Left: leafIndex, Right: leafIndex},
			}}}},
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.Error(err)
			},
		},
		{
			name:    "empty tree",
			booster: Booster{NumFeatures: 1, Objective: ObjectiveSquaredError, Trees: []Tree{{}}},
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.Error(err)
			},
		},
		{
			name:    "no features",
			booster: Booster{Objective: ObjectiveSquaredError},
			expect: func(t *testing.T, err error) {
				assert := assert.New(t)
				assert.Error(err)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.expect(t, tc.booster.Validate())
		})
	}
}

func TestBooster_FeatureImportance(t *testing.T) {
	assert := assert.New(t)
	x, y := linearData(100, 5)
	params := DefaultParams()
	params.BoostingRounds = 10
	b, err := Fit(x, y, params)
	require.NoError(t, err)

	importance := b.FeatureImportance()
	assert.Len(importance, 2)
	assert.Greater(importance[0], importance[1])
	assert.InDelta(1, importance[0]+importance[1], 1e-9)
}
