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
	"bytes"
	"context"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"d7y.io/predictor/internal/dferrors"
	"d7y.io/predictor/pkg/artifact"
	"d7y.io/predictor/pkg/boosting"
	"d7y.io/predictor/pkg/table"
)

var testFeatureNames = []string{"crim", "rm", "lstat"}

// syntheticTables returns feature and target tables where medv = 5*rm - lstat.
func syntheticTables(t *testing.T, n int, seed int64) (table.Table, table.Table) {
	t.Helper()
	r := rand.New(rand.NewSource(seed))
	columns := make([][]float64, len(testFeatureNames))
	for c := range columns {
		columns[c] = make([]float64, n)
	}

	target := make([]float64, n)
	for i := 0; i < n; i++ {
		columns[0][i] = r.Float64()
		columns[1][i] = 4 + 4*r.Float64()
		columns[2][i] = 30 * r.Float64()
		target[i] = 5*columns[1][i] - columns[2][i]
	}

	x, err := table.New(testFeatureNames, columns)
	require.NoError(t, err)
	y, err := table.New([]string{"medv"}, [][]float64{target})
	require.NoError(t, err)
	return x, y
}

func TestNew(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("training", reflect.TypeOf(New()).Elem().Name())
}

func TestTraining_Train(t *testing.T) {
	tests := []struct {
		name    string
		options []Option
		mock    func(p *boosting.Params)
		expect  func(t *testing.T, xTrain table.Table, result *Result, err error)
	}{
		{
			name:    "train with default params",
			options: []Option{WithRunID("run-1")},
			mock:    func(p *boosting.Params) {},
			expect: func(t *testing.T, xTrain table.Table, result *Result, err error) {
				assert := assert.New(t)
				require.NoError(t, err)
				assert.Equal("run-1", result.Model.RunID)
				assert.Equal(testFeatureNames, result.Model.FeatureNames)
				assert.Equal("medv", result.Model.TargetName)
				assert.Equal(80, result.Model.Metrics.TrainRows)
				assert.Equal(20, result.Model.Metrics.TestRows)
				assert.Len(result.Predictions, 20)
				assert.Equal(result.Evaluation.RMSE, result.Model.Metrics.RMSE)
				assert.Less(result.TrainRMSE, 1.0)

				x, err := ToDense(xTrain)
				require.NoError(t, err)
				p, err := result.Model.Booster.Predict(mat.Row(nil, 0, x))
				assert.NoError(err)
				assert.False(math.IsNaN(p) || math.IsInf(p, 0))

				decoded, err := artifact.Decode(result.Artifact)
				require.NoError(t, err)
				assert.Equal(result.Model.RunID, decoded.RunID)
			},
		},
		{
			name:    "progress bar is drawn",
			options: []Option{WithProgressWriter(&bytes.Buffer{})},
			mock:    func(p *boosting.Params) { p.BoostingRounds = 3 },
			expect: func(t *testing.T, xTrain table.Table, result *Result, err error) {
				assert := assert.New(t)
				require.NoError(t, err)
				assert.NotEmpty(result.Model.RunID)
				assert.Len(result.Model.Booster.Trees, 3)
			},
		},
		{
			name: "invalid params",
			mock: func(p *boosting.Params) { p.LearningRate = 0 },
			expect: func(t *testing.T, xTrain table.Table, result *Result, err error) {
				assert := assert.New(t)
				assert.True(dferrors.CheckError(err, dferrors.CodeInvalidParams))
				assert.Nil(result)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			xTrain, yTrain := syntheticTables(t, 80, 1)
			xTest, yTest := syntheticTables(t, 20, 2)
			params := boosting.DefaultParams()
			tc.mock(&params)

			result, err := New(tc.options...).Train(context.Background(), xTrain, yTrain, xTest, yTest, params)
			tc.expect(t, xTrain, result, err)
		})
	}
}

func TestTrain_Errors(t *testing.T) {
	xTrain, yTrain := syntheticTables(t, 10, 1)
	xTest, yTest := syntheticTables(t, 5, 2)
	params := boosting.DefaultParams()
	params.BoostingRounds = 2

	assert := assert.New(t)
	_, err := Train(context.Background(), xTrain, yTrain, yTest, yTest, params)
	assert.True(dferrors.CheckError(err, dferrors.CodeInvalidArgument))

	_, err = Train(context.Background(), xTrain, yTest, xTest, yTest, params)
	assert.True(dferrors.CheckError(err, dferrors.CodeInvalidArgument))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Train(ctx, xTrain, yTrain, xTest, yTest, params)
	assert.ErrorIs(err, context.Canceled)
}

func TestToDense(t *testing.T) {
	tests := []struct {
		name   string
		mock   func(t *testing.T) table.Table
		expect func(t *testing.T, m *mat.Dense, err error)
	}{
		{
			name: "row major copy",
			mock: func(t *testing.T) table.Table {
				tbl, err := table.New([]string{"a", "b"}, [][]float64{{1, 2, 3}, {4, 5, 6}})
				require.NoError(t, err)
				return tbl
			},
			expect: func(t *testing.T, m *mat.Dense, err error) {
				assert := assert.New(t)
				require.NoError(t, err)
				raw := m.RawMatrix()
				assert.Equal(2, raw.Stride)
				assert.Equal([]float64{1, 4, 2, 5, 3, 6}, raw.Data)
			},
		},
		{
			name: "null value",
			mock: func(t *testing.T) table.Table {
				builder := array.NewFloat64Builder(memory.DefaultAllocator)
				defer builder.Release()
				builder.AppendValues([]float64{1, 0}, []bool{true, false})
				arr := builder.NewArray()
				defer arr.Release()

				schema := arrow.NewSchema([]arrow.Field{{Name: "a", Type: arrow.PrimitiveTypes.Float64, Nullable: true}}, nil)
				record := array.NewRecord(schema, []arrow.Array{arr}, 2)
				defer record.Release()

				tbl, err := table.FromRecord(record)
				require.NoError(t, err)
				return tbl
			},
			expect: func(t *testing.T, m *mat.Dense, err error) {
				assert := assert.New(t)
				assert.True(dferrors.CheckError(err, dferrors.CodeNonContiguousData))
				assert.Nil(m)
			},
		},
		{
			name: "empty table",
			mock: func(t *testing.T) table.Table {
				return table.Table{}
			},
			expect: func(t *testing.T, m *mat.Dense, err error) {
				assert := assert.New(t)
				assert.True(dferrors.CheckError(err, dferrors.CodeInsufficientData))
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tbl := tc.mock(t)
			defer tbl.Release()
			m, err := ToDense(tbl)
			tc.expect(t, m, err)
		})
	}
}

func TestToVector(t *testing.T) {
	assert := assert.New(t)
	y, err := table.New([]string{"medv"}, [][]float64{{1, 2}})
	require.NoError(t, err)
	values, err := ToVector(y)
	assert.NoError(err)
	assert.Equal([]float64{1, 2}, values)

	xy, err := table.New([]string{"a", "b"}, [][]float64{{1}, {2}})
	require.NoError(t, err)
	_, err = ToVector(xy)
	assert.True(dferrors.CheckError(err, dferrors.CodeInvalidArgument))
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name      string
		predicted []float64
		actual    []float64
		expect    func(t *testing.T, e Evaluation, err error)
	}{
		{
			name:      "perfect predictions",
			predicted: []float64{1, 2, 3},
			actual:    []float64{1, 2, 3},
			expect: func(t *testing.T, e Evaluation, err error) {
				assert := assert.New(t)
				assert.NoError(err)
				assert.Equal(0.0, e.MAE)
				assert.Equal(0.0, e.RMSE)
				assert.Equal(1.0, e.R2)
			},
		},
		{
			name:      "known errors",
			predicted: []float64{2, 2, 4, 4},
			actual:    []float64{1, 3, 3, 5},
			expect: func(t *testing.T, e Evaluation, err error) {
				assert := assert.New(t)
				assert.NoError(err)
				assert.InDelta(1.0, e.MAE, 1e-12)
				assert.InDelta(1.0, e.MSE, 1e-12)
				assert.InDelta(1.0, e.RMSE, 1e-12)
				assert.InDelta(0.5, e.R2, 1e-12)
			},
		},
		{
			name:      "constant actual",
			predicted: []float64{1, 3},
			actual:    []float64{2, 2},
			expect: func(t *testing.T, e Evaluation, err error) {
				assert := assert.New(t)
				assert.NoError(err)
				assert.Equal(0.0, e.R2)
			},
		},
		{
			name:      "length mismatch",
			predicted: []float64{1},
			actual:    []float64{1, 2},
			expect: func(t *testing.T, e Evaluation, err error) {
				assert := assert.New(t)
				assert.True(dferrors.CheckError(err, dferrors.CodeInvalidArgument))
			},
		},
		{
			name: "empty",
			expect: func(t *testing.T, e Evaluation, err error) {
				assert := assert.New(t)
				assert.True(dferrors.CheckError(err, dferrors.CodeInsufficientData))
			},
		},
		{
			name:      "non-finite prediction",
			predicted: []float64{math.Inf(1), 1},
			actual:    []float64{1, 2},
			expect: func(t *testing.T, e Evaluation, err error) {
				assert := assert.New(t)
				assert.True(dferrors.CheckError(err, dferrors.CodeNumericDivergence))
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e, err := Evaluate(tc.predicted, tc.actual)
			tc.expect(t, e, err)
		})
	}
}
