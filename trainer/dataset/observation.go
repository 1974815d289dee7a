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
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"d7y.io/predictor/pkg/table"
)

// FeatureNames is the column order every model is trained and served with.
var FeatureNames = []string{
	"crim", "zn", "indus", "chas", "nox", "rm", "age",
	"dis", "rad", "tax", "ptratio", "b", "lstat",
}

// Features returns a copy of FeatureNames.
func Features() []string {
	return append([]string(nil), FeatureNames...)
}

// TargetName is the column predicted by the model.
const TargetName = "medv"

// Observation is one row of the housing dataset, an empty cell is left nil.
type Observation struct {
	// Per capita crime rate by town.
	Crim *float64 `csv:"crim,omitempty"`

	// Proportion of residential land zoned for large lots.
	Zn *float64 `csv:"zn,omitempty"`

	// Proportion of non-retail business acres per town.
	Indus *float64 `csv:"indus,omitempty"`

	// Charles River dummy variable.
	Chas *float64 `csv:"chas,omitempty"`

	// Nitric oxides concentration.
	Nox *float64 `csv:"nox,omitempty"`

	// Average number of rooms per dwelling.
	Rm *float64 `csv:"rm,omitempty"`

	// Proportion of owner-occupied units built prior to 1940.
	Age *float64 `csv:"age,omitempty"`

	// Weighted distances to employment centres.
	Dis *float64 `csv:"dis,omitempty"`

	// Index of accessibility to radial highways.
	Rad *float64 `csv:"rad,omitempty"`

	// Property tax rate.
	Tax *float64 `csv:"tax,omitempty"`

	// Pupil-teacher ratio by town.
	Ptratio *float64 `csv:"ptratio,omitempty"`

	B *float64 `csv:"b,omitempty"`

	// Percentage of lower status of the population.
	Lstat *float64 `csv:"lstat,omitempty"`

	// Median value of owner-occupied homes in $1000s.
	Medv *float64 `csv:"medv,omitempty"`
}

// cells returns the observation in FeatureNames order followed by the target.
func (o *Observation) cells() []*float64 {
	return []*float64{
		o.Crim, o.Zn, o.Indus, o.Chas, o.Nox, o.Rm, o.Age,
		o.Dis, o.Rad, o.Tax, o.Ptratio, o.B, o.Lstat,
		o.Medv,
	}
}

// ToTable converts observations into a table of the feature columns and the
// target column. Empty cells become nulls.
func ToTable(observations []*Observation) (table.Table, error) {
	names := append(append([]string{}, FeatureNames...), TargetName)
	fields := make([]arrow.Field, 0, len(names))
	for _, name := range names {
		fields = append(fields, arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Float64, Nullable: true})
	}

	builder := array.NewRecordBuilder(memory.DefaultAllocator, arrow.NewSchema(fields, nil))
	defer builder.Release()

	for _, o := range observations {
		for i, cell := range o.cells() {
			fb := builder.Field(i).(*array.Float64Builder)
			if cell == nil {
				fb.AppendNull()
				continue
			}

			fb.Append(*cell)
		}
	}

	record := builder.NewRecord()
	defer record.Release()

	return table.FromRecord(record)
}
