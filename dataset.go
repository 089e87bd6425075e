// Copyright 2025 The DBQ Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package commitflow

import (
	"fmt"
	"time"
)

// ColumnKind is the declared value type of a dataset column.
type ColumnKind string

const (
	KindString    ColumnKind = "string"
	KindInt       ColumnKind = "int"
	KindFloat     ColumnKind = "float"
	KindBool      ColumnKind = "bool"
	KindTimestamp ColumnKind = "timestamp"
	KindDate      ColumnKind = "date"
)

// IsNumeric reports whether the kind holds numeric values.
func (k ColumnKind) IsNumeric() bool {
	return k == KindInt || k == KindFloat
}

// IsTemporal reports whether the kind holds date or timestamp values.
func (k ColumnKind) IsTemporal() bool {
	return k == KindTimestamp || k == KindDate
}

// Column is a named sequence of scalar values. A nil entry marks a null cell.
// Non-null values are expected to match the declared kind: string, int64,
// float64, bool or time.Time.
type Column struct {
	Name   string
	Kind   ColumnKind
	Values []any
}

// IsNull reports whether the cell at row i is null.
func (c *Column) IsNull(i int) bool {
	return c.Values[i] == nil
}

// NullCount returns the number of null cells in the column.
func (c *Column) NullCount() int {
	count := 0
	for _, v := range c.Values {
		if v == nil {
			count++
		}
	}
	return count
}

// Dataset is an ordered collection of equally sized named columns. It is the
// interchange format between the pipeline stages; the validation engine
// treats it as an immutable snapshot.
type Dataset struct {
	columns []*Column
	index   map[string]*Column
	numRows int
}

func NewDataset() *Dataset {
	return &Dataset{
		index: make(map[string]*Column),
	}
}

// AddColumn appends a column to the dataset. The first column fixes the row
// count; every subsequent column must match it.
func (d *Dataset) AddColumn(name string, kind ColumnKind, values []any) error {
	if _, exists := d.index[name]; exists {
		return fmt.Errorf("column %q already exists", name)
	}
	if len(d.columns) > 0 && len(values) != d.numRows {
		return fmt.Errorf("column %q has %d rows, dataset has %d", name, len(values), d.numRows)
	}

	col := &Column{Name: name, Kind: kind, Values: values}
	d.columns = append(d.columns, col)
	d.index[name] = col
	d.numRows = len(values)
	return nil
}

func (d *Dataset) NumRows() int {
	return d.numRows
}

func (d *Dataset) NumColumns() int {
	return len(d.columns)
}

// ColumnNames returns the column names in insertion order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, 0, len(d.columns))
	for _, col := range d.columns {
		names = append(names, col.Name)
	}
	return names
}

func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.index[name]
	return ok
}

func (d *Dataset) Column(name string) (*Column, bool) {
	col, ok := d.index[name]
	return col, ok
}

// StringAt returns the string value at (column, row), or "" for nulls and
// non-string cells.
func (d *Dataset) StringAt(name string, row int) string {
	col, ok := d.index[name]
	if !ok || col.Values[row] == nil {
		return ""
	}
	if s, ok := col.Values[row].(string); ok {
		return s
	}
	return ""
}

// IntAt returns the integer value at (column, row), or 0 for nulls and
// non-numeric cells. Float cells are truncated.
func (d *Dataset) IntAt(name string, row int) int64 {
	col, ok := d.index[name]
	if !ok || col.Values[row] == nil {
		return 0
	}
	switch v := col.Values[row].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

// TimeAt returns the timestamp value at (column, row) and whether the cell
// holds a non-null time.
func (d *Dataset) TimeAt(name string, row int) (time.Time, bool) {
	col, ok := d.index[name]
	if !ok || col.Values[row] == nil {
		return time.Time{}, false
	}
	t, ok := col.Values[row].(time.Time)
	return t, ok
}
