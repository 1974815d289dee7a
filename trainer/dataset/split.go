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

package dataset

import (
	"math"
	"math/rand"

	"d7y.io/predictor/internal/dferrors"
	"d7y.io/predictor/pkg/table"
)

// SplitIndices partitions [0,n) into train and test index sets with a
// permutation seeded by seed. The first ceil(n*(1-testFraction)) positions
// of the permutation form the train set, both sets are never empty.
func SplitIndices(n int, testFraction float64, seed int64) ([]int, []int, error) {
	if math.IsNaN(testFraction) || testFraction <= 0 || testFraction >= 1 {
		return nil, nil, dferrors.Newf(dferrors.CodeInvalidArgument, "test fraction must be in (0, 1), got %v", testFraction)
	}

	if n < 2 {
		return nil, nil, dferrors.Newf(dferrors.CodeInsufficientData, "cannot split %d rows", n)
	}

	// Tolerate representation error so that 100 rows at 0.2 cut at exactly 80.
	cut := int(math.Ceil(float64(n)*(1-testFraction) - 1e-9))
	if cut < 1 {
		cut = 1
	}

	// An empty test set cannot be evaluated, keep at least one test row.
	if cut > n-1 {
		cut = n - 1
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return perm[:cut:cut], perm[cut:], nil
}

// Split partitions the rows of t into a train and a test table.
func Split(t table.Table, testFraction float64, seed int64) (table.Table, table.Table, error) {
	trainIndices, testIndices, err := SplitIndices(t.NumRows(), testFraction, seed)
	if err != nil {
		return table.Table{}, table.Table{}, err
	}

	train, err := t.Take(trainIndices)
	if err != nil {
		return table.Table{}, table.Table{}, err
	}

	test, err := t.Take(testIndices)
	if err != nil {
		train.Release()
		return table.Table{}, table.Table{}, err
	}

	return train, test, nil
}

// SplitFeaturesAndTarget projects t onto the feature columns, in
// FeatureNames order, and onto the target column.
func SplitFeaturesAndTarget(t table.Table) (table.Table, table.Table, error) {
	features, err := t.Select(FeatureNames...)
	if err != nil {
		return table.Table{}, table.Table{}, err
	}

	target, err := t.Select(TargetName)
	if err != nil {
		features.Release()
		return table.Table{}, table.Table{}, err
	}

	return features, target, nil
}
