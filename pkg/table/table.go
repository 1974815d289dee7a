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

// Package table provides an immutable columnar table of named float64 columns.
package table

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"d7y.io/predictor/internal/dferrors"
)

// Table is an ordered set of equally long, uniquely named float64 columns.
// A Table never changes after construction, every operation returns a new one.
type Table struct {
	record arrow.Record
}

var allocator memory.Allocator = memory.NewGoAllocator()

// New builds a Table from column names and their values, names[i] labels columns[i].
func New(names []string, columns [][]float64) (Table, error) {
	if len(names) != len(columns) {
		return Table{}, dferrors.Newf(dferrors.CodeInvalidTable, "got %d names for %d columns", len(names), len(columns))
	}

	if err := checkNames(names); err != nil {
		return Table{}, err
	}

	var nrows int
	if len(columns) > 0 {
		nrows = len(columns[0])
	}

	fields := make([]arrow.Field, 0, len(names))
	arrays := make([]arrow.Array, 0, len(columns))
	defer func() {
		for _, arr := range arrays {
			arr.Release()
		}
	}()

	for i, values := range columns {
		if len(values) != nrows {
			return Table{}, dferrors.Newf(dferrors.CodeInvalidTable, "column %s has %d rows, expected %d", names[i], len(values), nrows)
		}

		builder := array.NewFloat64Builder(allocator)
		builder.AppendValues(values, nil)
		arrays = append(arrays, builder.NewArray())
		builder.Release()

		fields = append(fields, arrow.Field{Name: names[i], Type: arrow.PrimitiveTypes.Float64, Nullable: true})
	}

	return Table{record: array.NewRecord(arrow.NewSchema(fields, nil), arrays, int64(nrows))}, nil
}

// FromRecord wraps an arrow record, every column must be float64 and names must be unique.
// The table retains the record.
func FromRecord(record arrow.Record) (Table, error) {
	names := make([]string, 0, record.NumCols())
	for i, field := range record.Schema().Fields() {
		if field.Type.ID() != arrow.FLOAT64 {
			return Table{}, dferrors.Newf(dferrors.CodeInvalidTable, "column %s has type %s, expected float64", field.Name, field.Type)
		}

		if int64(record.Column(i).Len()) != record.NumRows() {
			return Table{}, dferrors.Newf(dferrors.CodeInvalidTable, "column %s has %d rows, expected %d", field.Name, record.Column(i).Len(), record.NumRows())
		}

		names = append(names, field.Name)
	}

	if err := checkNames(names); err != nil {
		return Table{}, err
	}

	record.Retain()
	return Table{record: record}, nil
}

func checkNames(names []string) error {
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if name == "" {
			return dferrors.New(dferrors.CodeInvalidTable, "column name is empty")
		}

		if _, ok := seen[name]; ok {
			return dferrors.Newf(dferrors.CodeInvalidTable, "duplicate column %s", name)
		}
		seen[name] = struct{}{}
	}

	return nil
}

// NumRows returns the number of rows.
func (t Table) NumRows() int {
	if t.record == nil {
		return 0
	}

	return int(t.record.NumRows())
}

// NumCols returns the number of columns.
func (t Table) NumCols() int {
	if t.record == nil {
		return 0
	}

	return int(t.record.NumCols())
}

// ColumnNames returns column names in table order.
func (t Table) ColumnNames() []string {
	names := make([]string, 0, t.NumCols())
	for i := 0; i < t.NumCols(); i++ {
		names = append(names, t.record.ColumnName(i))
	}

	return names
}

// Column returns a copy of the named column's values. Null slots read as zero.
func (t Table) Column(name string) ([]float64, bool) {
	arr, ok := t.column(name)
	if !ok {
		return nil, false
	}

	values := make([]float64, arr.Len())
	copy(values, arr.Float64Values())
	return values, true
}

// NullCount returns the number of null slots in the named column.
func (t Table) NullCount(name string) int {
	arr, ok := t.column(name)
	if !ok {
		return 0
	}

	return arr.NullN()
}

func (t Table) column(name string) (*array.Float64, bool) {
	if t.record == nil {
		return nil, false
	}

	indices := t.record.Schema().FieldIndices(name)
	if len(indices) == 0 {
		return nil, false
	}

	return t.record.Column(indices[0]).(*array.Float64), true
}

// Take returns the rows at indices, in the given order. Out of range indices are an error.
func (t Table) Take(indices []int) (Table, error) {
	nrows := t.NumRows()
	for _, idx := range indices {
		if idx < 0 || idx >= nrows {
			return Table{}, dferrors.Newf(dferrors.CodeInvalidArgument, "row index %d out of range [0,%d)", idx, nrows)
		}
	}

	if t.record == nil {
		return Table{}, nil
	}

	fields := t.record.Schema().Fields()
	arrays := make([]arrow.Array, 0, len(fields))
	defer func() {
		for _, arr := range arrays {
			arr.Release()
		}
	}()

	for i := range fields {
		src := t.record.Column(i).(*array.Float64)
		builder := array.NewFloat64Builder(allocator)
		builder.Reserve(len(indices))
		for _, idx := range indices {
			if src.IsNull(idx) {
				builder.AppendNull()
				continue
			}

			builder.Append(src.Value(idx))
		}

		arrays = append(arrays, builder.NewArray())
		builder.Release()
	}

	return Table{record: array.NewRecord(t.record.Schema(), arrays, int64(len(indices)))}, nil
}

// Select returns the named columns in the given order.
func (t Table) Select(names ...string) (Table, error) {
	if err := checkNames(names); err != nil {
		return Table{}, err
	}

	fields := make([]arrow.Field, 0, len(names))
	arrays := make([]arrow.Array, 0, len(names))
	for _, name := range names {
		if t.record == nil {
			return Table{}, dferrors.Newf(dferrors.CodeMissingColumn, "missing column %s", name)
		}

		indices := t.record.Schema().FieldIndices(name)
		if len(indices) == 0 {
			return Table{}, dferrors.Newf(dferrors.CodeMissingColumn, "missing column %s", name)
		}

		fields = append(fields, t.record.Schema().Field(indices[0]))
		arrays = append(arrays, t.record.Column(indices[0]))
	}

	return Table{record: array.NewRecord(arrow.NewSchema(fields, nil), arrays, int64(t.NumRows()))}, nil
}

// Record returns the underlying arrow record, callers must not mutate it.
func (t Table) Record() arrow.Record {
	return t.record
}

// Release drops the table's reference to its arrow buffers.
func (t Table) Release() {
	if t.record != nil {
		t.record.Release()
	}
}
