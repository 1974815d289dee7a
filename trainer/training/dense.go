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
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"d7y.io/predictor/internal/dferrors"
	"d7y.io/predictor/pkg/table"
)

// ToDense copies t into a row-major gonum matrix whose backing buffer is
// contiguous. Null slots are rejected instead of being read as zero.
func ToDense(t table.Table) (*mat.Dense, error) {
	rows, cols := t.NumRows(), t.NumCols()
	if rows == 0 || cols == 0 {
		return nil, dferrors.Newf(dferrors.CodeInsufficientData, "cannot convert %dx%d table", rows, cols)
	}

	buf := make([]float64, rows*cols)
	names := t.ColumnNames()

	var eg errgroup.Group
	for c, name := range names {
		c, name := c, name
		eg.Go(func() error {
			if n := t.NullCount(name); n > 0 {
				return dferrors.Newf(dferrors.CodeNonContiguousData, "column %s has %d null values", name, n)
			}

			values, ok := t.Column(name)
			if !ok {
				return dferrors.Newf(dferrors.CodeMissingColumn, "missing column %s", name)
			}

			for r, v := range values {
				buf[r*cols+c] = v
			}

			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	dense := mat.NewDense(rows, cols, buf)
	if raw := dense.RawMatrix(); raw.Stride != cols || len(raw.Data) != rows*cols {
		return nil, dferrors.Newf(dferrors.CodeNonContiguousData, "matrix stride %d for %d columns", raw.Stride, cols)
	}

	return dense, nil
}

// ToVector returns the values of a single column table.
func ToVector(t table.Table) ([]float64, error) {
	if t.NumCols() != 1 {
		return nil, dferrors.Newf(dferrors.CodeInvalidArgument, "target table has %d columns, expected 1", t.NumCols())
	}

	name := t.ColumnNames()[0]
	if n := t.NullCount(name); n > 0 {
		return nil, dferrors.Newf(dferrors.CodeNonContiguousData, "column %s has %d null values", name, n)
	}

	values, _ := t.Column(name)
	return values, nil
}
