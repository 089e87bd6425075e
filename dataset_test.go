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
	"testing"
	"time"
)

func TestDatasetAddColumn(t *testing.T) {
	ds := NewDataset()

	if err := ds.AddColumn("a", KindString, []any{"x", "y"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ds.AddColumn("b", KindInt, []any{int64(1), int64(2)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := ds.AddColumn("a", KindString, []any{"z", "z"}); err == nil {
		t.Error("expected error for duplicate column name")
	}
	if err := ds.AddColumn("c", KindString, []any{"only one"}); err == nil {
		t.Error("expected error for row count mismatch")
	}

	if ds.NumRows() != 2 || ds.NumColumns() != 2 {
		t.Errorf("unexpected shape: %d rows, %d columns", ds.NumRows(), ds.NumColumns())
	}
}

func TestDatasetColumnNamesPreserveOrder(t *testing.T) {
	ds := NewDataset()
	for _, name := range []string{"z", "a", "m"} {
		if err := ds.AddColumn(name, KindString, []any{"v"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	names := ds.ColumnNames()
	want := []string{"z", "a", "m"}
	for i, name := range want {
		if names[i] != name {
			t.Errorf("expected column %d to be %s, got %s", i, name, names[i])
		}
	}
}

func TestColumnNullCount(t *testing.T) {
	col := &Column{
		Name:   "c",
		Kind:   KindString,
		Values: []any{"a", nil, "b", nil, nil},
	}

	if got := col.NullCount(); got != 3 {
		t.Errorf("expected 3 nulls, got %d", got)
	}
	if !col.IsNull(1) || col.IsNull(0) {
		t.Error("IsNull misreports cells")
	}
}

func TestDatasetAccessors(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)

	ds := NewDataset()
	if err := ds.AddColumn("s", KindString, []any{"hello", nil}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ds.AddColumn("i", KindInt, []any{int64(7), float64(2.9)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ds.AddColumn("ts", KindTimestamp, []any{now, nil}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := ds.StringAt("s", 0); got != "hello" {
		t.Errorf("StringAt = %q", got)
	}
	if got := ds.StringAt("s", 1); got != "" {
		t.Errorf("StringAt on null = %q", got)
	}
	if got := ds.IntAt("i", 0); got != 7 {
		t.Errorf("IntAt = %d", got)
	}
	if got := ds.IntAt("i", 1); got != 2 {
		t.Errorf("IntAt on float cell = %d, want truncation to 2", got)
	}

	ts, ok := ds.TimeAt("ts", 0)
	if !ok || !ts.Equal(now) {
		t.Errorf("TimeAt = %v, %v", ts, ok)
	}
	if _, ok := ds.TimeAt("ts", 1); ok {
		t.Error("TimeAt on null must report not ok")
	}
	if _, ok := ds.TimeAt("absent", 0); ok {
		t.Error("TimeAt on absent column must report not ok")
	}
}

func TestColumnKindPredicates(t *testing.T) {
	tests := []struct {
		kind     ColumnKind
		numeric  bool
		temporal bool
	}{
		{KindString, false, false},
		{KindInt, true, false},
		{KindFloat, true, false},
		{KindBool, false, false},
		{KindTimestamp, false, true},
		{KindDate, false, true},
	}

	for _, tt := range tests {
		if tt.kind.IsNumeric() != tt.numeric {
			t.Errorf("%s: IsNumeric = %v", tt.kind, !tt.numeric)
		}
		if tt.kind.IsTemporal() != tt.temporal {
			t.Errorf("%s: IsTemporal = %v", tt.kind, !tt.temporal)
		}
	}
}
