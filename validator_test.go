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
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

// validCommitsDataset builds a dataset with all required columns populated
// and n distinct rows.
func validCommitsDataset(t *testing.T, n int) *Dataset {
	t.Helper()

	shas := make([]any, n)
	names := make([]any, n)
	emails := make([]any, n)
	dates := make([]any, n)
	messages := make([]any, n)
	comments := make([]any, n)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		shas[i] = fmt.Sprintf("%040x", i+1)
		names[i] = fmt.Sprintf("Author %d", i)
		emails[i] = fmt.Sprintf("author%d@example.com", i)
		dates[i] = base.Add(time.Duration(i) * time.Hour)
		messages[i] = fmt.Sprintf("fix issue %d", i)
		comments[i] = int64(i % 3)
	}

	ds := NewDataset()
	mustAdd := func(name string, kind ColumnKind, values []any) {
		if err := ds.AddColumn(name, kind, values); err != nil {
			t.Fatalf("failed to build dataset: %v", err)
		}
	}

	mustAdd("commit_sha", KindString, shas)
	mustAdd("author_name", KindString, names)
	mustAdd("author_email", KindString, emails)
	mustAdd("author_date", KindTimestamp, dates)
	mustAdd("committer_name", KindString, append([]any{}, names...))
	mustAdd("committer_email", KindString, append([]any{}, emails...))
	mustAdd("committer_date", KindTimestamp, append([]any{}, dates...))
	mustAdd("commit_message", KindString, messages)
	mustAdd("comment_count", KindInt, comments)
	return ds
}

func TestValidatorRunAllChecksPass(t *testing.T) {
	ds := validCommitsDataset(t, 20)
	validator := NewValidator(ValidationConfig{}, nil)

	report, err := validator.Run(ds, true)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !report.Passed() {
		t.Errorf("expected report to pass, summary: %+v", report.Summary)
	}
	if report.Summary.TotalChecks != 4 {
		t.Errorf("expected 4 checks, got %d", report.Summary.TotalChecks)
	}
	if report.Summary.Passed != 4 || report.Summary.Failed != 0 || report.Summary.Warnings != 0 {
		t.Errorf("unexpected summary: %+v", report.Summary)
	}
	if report.Summary.SuccessRate != 100.0 {
		t.Errorf("expected success rate 100.0, got %v", report.Summary.SuccessRate)
	}
}

func TestValidatorRunAlwaysExecutesAllChecks(t *testing.T) {
	// A structurally broken dataset must still produce a result for every
	// check in the battery.
	ds := NewDataset()
	if err := ds.AddColumn("unrelated", KindString, []any{"a", "b"}); err != nil {
		t.Fatalf("failed to build dataset: %v", err)
	}

	validator := NewValidator(ValidationConfig{}, nil)
	report, _ := validator.Run(ds, false)

	if report.Summary.TotalChecks != 4 {
		t.Fatalf("expected 4 checks, got %d", report.Summary.TotalChecks)
	}
	// schema, duplicates and row count all fail; nulls pass because absent
	// critical columns are the schema check's responsibility.
	if report.Summary.Failed != 3 {
		t.Errorf("expected 3 failed checks, got %d", report.Summary.Failed)
	}
}

func TestValidateSchemaMissingColumns(t *testing.T) {
	ds := validCommitsDataset(t, 15)
	broken := NewDataset()
	for _, name := range ds.ColumnNames() {
		if name == "author_email" || name == "comment_count" {
			continue
		}
		col, _ := ds.Column(name)
		if err := broken.AddColumn(name, col.Kind, col.Values); err != nil {
			t.Fatalf("failed to build dataset: %v", err)
		}
	}

	validator := NewValidator(ValidationConfig{}, nil)
	res := validator.validateSchema(broken)

	if res.Status != StatusFailed {
		t.Fatalf("expected FAILED, got %s", res.Status)
	}
	missing, ok := res.Details["missing"].([]string)
	if !ok {
		t.Fatalf("missing detail has unexpected type: %T", res.Details["missing"])
	}
	if len(missing) != 2 || missing[0] != "author_email" || missing[1] != "comment_count" {
		t.Errorf("unexpected missing columns: %v", missing)
	}
}

func TestValidateSchemaTypeErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(t *testing.T, ds *Dataset)
		wantErr string
	}{
		{
			name: "invalid sha hashes",
			mutate: func(t *testing.T, ds *Dataset) {
				col, _ := ds.Column("commit_sha")
				col.Values[0] = "not-a-sha"
				col.Values[1] = strings.ToUpper(fmt.Sprintf("%040x", 99))
			},
			wantErr: "2 invalid SHA hashes",
		},
		{
			name: "author_date not temporal",
			mutate: func(t *testing.T, ds *Dataset) {
				col, _ := ds.Column("author_date")
				col.Kind = KindString
			},
			wantErr: "author_date is not datetime type",
		},
		{
			name: "comment_count not numeric",
			mutate: func(t *testing.T, ds *Dataset) {
				col, _ := ds.Column("comment_count")
				col.Kind = KindString
			},
			wantErr: "comment_count is not numeric type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := validCommitsDataset(t, 12)
			tt.mutate(t, ds)

			validator := NewValidator(ValidationConfig{}, nil)
			res := validator.validateSchema(ds)

			if res.Status != StatusFailed {
				t.Fatalf("expected FAILED, got %s", res.Status)
			}
			typeErrors, ok := res.Details["type_errors"].([]string)
			if !ok {
				t.Fatalf("type_errors detail has unexpected type: %T", res.Details["type_errors"])
			}
			found := false
			for _, te := range typeErrors {
				if te == tt.wantErr {
					found = true
				}
			}
			if !found {
				t.Errorf("expected type error %q in %v", tt.wantErr, typeErrors)
			}
		})
	}
}

func TestValidateNulls(t *testing.T) {
	tests := []struct {
		name       string
		rows       int
		nulls      int
		wantStatus CheckStatus
	}{
		{name: "no nulls", rows: 20, nulls: 0, wantStatus: StatusPassed},
		{name: "below threshold", rows: 100, nulls: 5, wantStatus: StatusPassed},
		{name: "above threshold", rows: 100, nulls: 6, wantStatus: StatusFailed},
		{name: "all nulls", rows: 10, nulls: 10, wantStatus: StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := validCommitsDataset(t, tt.rows)
			col, _ := ds.Column("author_email")
			for i := 0; i < tt.nulls; i++ {
				col.Values[i] = nil
			}

			validator := NewValidator(ValidationConfig{}, nil)
			res := validator.validateNulls(ds)

			if res.Status != tt.wantStatus {
				t.Fatalf("expected %s, got %s (message: %s)", tt.wantStatus, res.Status, res.Message)
			}

			colReport, ok := res.Details["author_email"].(map[string]any)
			if !ok {
				t.Fatalf("author_email detail has unexpected type: %T", res.Details["author_email"])
			}
			if colReport["null_count"] != tt.nulls {
				t.Errorf("expected null_count %d, got %v", tt.nulls, colReport["null_count"])
			}
		})
	}
}

func TestValidateNullsSkipsAbsentColumns(t *testing.T) {
	ds := NewDataset()
	if err := ds.AddColumn("commit_sha", KindString, []any{"a", "b"}); err != nil {
		t.Fatalf("failed to build dataset: %v", err)
	}

	validator := NewValidator(ValidationConfig{}, nil)
	res := validator.validateNulls(ds)

	if res.Status != StatusPassed {
		t.Fatalf("expected PASSED, got %s", res.Status)
	}
	if _, present := res.Details["author_email"]; present {
		t.Error("absent column should not appear in the null report")
	}
}

func TestValidateDuplicates(t *testing.T) {
	t.Run("no duplicates", func(t *testing.T) {
		ds := validCommitsDataset(t, 15)
		validator := NewValidator(ValidationConfig{}, nil)
		res := validator.validateDuplicates(ds)

		if res.Status != StatusPassed {
			t.Fatalf("expected PASSED, got %s", res.Status)
		}
		if res.Details["duplicate_count"] != 0 {
			t.Errorf("expected duplicate_count 0, got %v", res.Details["duplicate_count"])
		}
	})

	t.Run("repeated primary key warns", func(t *testing.T) {
		ds := validCommitsDataset(t, 15)
		col, _ := ds.Column("commit_sha")
		// three rows share one SHA: two repeats beyond the first occurrence
		col.Values[5] = col.Values[0]
		col.Values[9] = col.Values[0]

		validator := NewValidator(ValidationConfig{}, nil)
		res := validator.validateDuplicates(ds)

		if res.Status != StatusWarning {
			t.Fatalf("expected WARNING, got %s", res.Status)
		}
		if res.Details["duplicate_count"] != 2 {
			t.Errorf("expected duplicate_count 2, got %v", res.Details["duplicate_count"])
		}
		sample, ok := res.Details["sample_duplicates"].([]string)
		if !ok || len(sample) != 1 {
			t.Fatalf("expected one sampled key, got %v", res.Details["sample_duplicates"])
		}
		if sample[0] != col.Values[0] {
			t.Errorf("expected sample %v, got %v", col.Values[0], sample[0])
		}
	})

	t.Run("sample capped at five keys", func(t *testing.T) {
		ds := validCommitsDataset(t, 20)
		col, _ := ds.Column("commit_sha")
		for i := 0; i < 7; i++ {
			col.Values[10+i] = col.Values[i]
		}

		validator := NewValidator(ValidationConfig{}, nil)
		res := validator.validateDuplicates(ds)

		if res.Status != StatusWarning {
			t.Fatalf("expected WARNING, got %s", res.Status)
		}
		sample := res.Details["sample_duplicates"].([]string)
		if len(sample) != 5 {
			t.Errorf("expected 5 sampled keys, got %d", len(sample))
		}
	})

	t.Run("missing primary key fails", func(t *testing.T) {
		ds := NewDataset()
		if err := ds.AddColumn("author_name", KindString, []any{"a"}); err != nil {
			t.Fatalf("failed to build dataset: %v", err)
		}

		validator := NewValidator(ValidationConfig{}, nil)
		res := validator.validateDuplicates(ds)

		if res.Status != StatusFailed {
			t.Fatalf("expected FAILED, got %s", res.Status)
		}
		if res.Message != "Primary key column 'commit_sha' not found" {
			t.Errorf("unexpected message: %s", res.Message)
		}
	})
}

func TestValidateRowCount(t *testing.T) {
	tests := []struct {
		name       string
		rows       int
		minRows    int
		wantStatus CheckStatus
	}{
		{name: "above default minimum", rows: 11, wantStatus: StatusPassed},
		{name: "exactly default minimum", rows: 10, wantStatus: StatusPassed},
		{name: "below default minimum", rows: 5, wantStatus: StatusFailed},
		{name: "custom minimum", rows: 20, minRows: 50, wantStatus: StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := validCommitsDataset(t, tt.rows)
			validator := NewValidator(ValidationConfig{MinRows: tt.minRows}, nil)
			res := validator.validateRowCount(ds)

			if res.Status != tt.wantStatus {
				t.Fatalf("expected %s, got %s (message: %s)", tt.wantStatus, res.Status, res.Message)
			}
			if res.Details["actual_rows"] != tt.rows {
				t.Errorf("expected actual_rows %d, got %v", tt.rows, res.Details["actual_rows"])
			}
		})
	}
}

func TestValidatorRunFailOnError(t *testing.T) {
	ds := validCommitsDataset(t, 5) // row count check fails
	validator := NewValidator(ValidationConfig{}, nil)

	t.Run("fail fast returns validation error", func(t *testing.T) {
		report, err := validator.Run(ds, true)
		if report == nil {
			t.Fatal("report must be returned even on failure")
		}

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected *ValidationError, got %T: %v", err, err)
		}
		if len(vErr.FailedChecks) != 1 {
			t.Fatalf("expected 1 failed check, got %d", len(vErr.FailedChecks))
		}
		if vErr.FailedChecks[0].Name != CheckRowCountValidation {
			t.Errorf("unexpected failed check: %s", vErr.FailedChecks[0].Name)
		}
		if !strings.Contains(err.Error(), "Insufficient rows: 5 < 10 (minimum)") {
			t.Errorf("unexpected error string: %s", err.Error())
		}

		if report.Summary.Failed != 1 || report.Summary.Passed != 3 || report.Summary.Warnings != 0 {
			t.Errorf("unexpected summary: %+v", report.Summary)
		}
		if report.Summary.SuccessRate != 75.0 {
			t.Errorf("expected success rate 75.0, got %v", report.Summary.SuccessRate)
		}
	})

	t.Run("report only mode returns nil error", func(t *testing.T) {
		report, err := validator.Run(ds, false)
		if err != nil {
			t.Fatalf("expected nil error, got: %v", err)
		}
		if report.Passed() {
			t.Error("report must still record the failure")
		}
	})
}

func TestValidatorRunIsStateless(t *testing.T) {
	ds := validCommitsDataset(t, 20)
	validator := NewValidator(ValidationConfig{}, nil)

	first, err := validator.Run(ds, true)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	second, err := validator.Run(ds, true)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	// Reusing the validator must not accumulate results across runs.
	if first.Summary != second.Summary {
		t.Errorf("summaries diverged between runs: %+v vs %+v", first.Summary, second.Summary)
	}
	if len(second.Results.Passed) != 4 {
		t.Errorf("expected 4 passed results on second run, got %d", len(second.Results.Passed))
	}
}

func TestNewValidatorDefaults(t *testing.T) {
	validator := NewValidator(ValidationConfig{}, nil)

	if validator.nullThreshold != DefaultNullThreshold {
		t.Errorf("expected default null threshold, got %v", validator.nullThreshold)
	}
	if validator.minRows != DefaultMinRows {
		t.Errorf("expected default min rows, got %d", validator.minRows)
	}
	if validator.primaryKey != DefaultPrimaryKey {
		t.Errorf("expected default primary key, got %s", validator.primaryKey)
	}
}
