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
)

func TestRunResultsRecord(t *testing.T) {
	results := &RunResults{}
	results.record(CheckResult{Name: CheckSchemaValidation, Status: StatusPassed})
	results.record(CheckResult{Name: CheckNullValidation, Status: StatusFailed})
	results.record(CheckResult{Name: CheckDuplicateDetection, Status: StatusWarning})
	results.record(CheckResult{Name: CheckRowCountValidation, Status: StatusPassed})

	if len(results.Passed) != 2 {
		t.Errorf("expected 2 passed, got %d", len(results.Passed))
	}
	if len(results.Failed) != 1 {
		t.Errorf("expected 1 failed, got %d", len(results.Failed))
	}
	if len(results.Warnings) != 1 {
		t.Errorf("expected 1 warning, got %d", len(results.Warnings))
	}
}

func TestNewReportSummary(t *testing.T) {
	tests := []struct {
		name            string
		passed          int
		failed          int
		warnings        int
		wantSuccessRate float64
		wantPassed      bool
	}{
		{name: "all passed", passed: 4, wantSuccessRate: 100.0, wantPassed: true},
		{name: "one failed", passed: 3, failed: 1, wantSuccessRate: 75.0, wantPassed: false},
		{name: "warning does not fail the run", passed: 3, warnings: 1, wantSuccessRate: 75.0, wantPassed: true},
		{name: "uneven split rounds to two decimals", passed: 1, failed: 2, wantSuccessRate: 33.33, wantPassed: false},
		{name: "empty run", wantSuccessRate: 0.0, wantPassed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := &RunResults{}
			for i := 0; i < tt.passed; i++ {
				results.record(CheckResult{Status: StatusPassed})
			}
			for i := 0; i < tt.failed; i++ {
				results.record(CheckResult{Status: StatusFailed})
			}
			for i := 0; i < tt.warnings; i++ {
				results.record(CheckResult{Status: StatusWarning})
			}

			report := newReport(results)

			if report.Summary.TotalChecks != tt.passed+tt.failed+tt.warnings {
				t.Errorf("unexpected total checks: %d", report.Summary.TotalChecks)
			}
			if report.Summary.SuccessRate != tt.wantSuccessRate {
				t.Errorf("expected success rate %v, got %v", tt.wantSuccessRate, report.Summary.SuccessRate)
			}
			if report.Passed() != tt.wantPassed {
				t.Errorf("expected Passed() = %v", tt.wantPassed)
			}
			if report.Timestamp.IsZero() {
				t.Error("report timestamp must be set")
			}
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{
		FailedChecks: []FailedCheck{
			{Name: CheckSchemaValidation, Message: "Missing required columns: [commit_sha]"},
			{Name: CheckRowCountValidation, Message: "Insufficient rows: 5 < 10 (minimum)"},
		},
	}

	want := "data quality validation failed: " +
		"schema_validation: Missing required columns: [commit_sha]; " +
		"row_count_validation: Insufficient rows: 5 < 10 (minimum)"
	if err.Error() != want {
		t.Errorf("unexpected error string:\n got: %s\nwant: %s", err.Error(), want)
	}
}
