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
	"strings"
	"time"
)

// CheckStatus is the outcome category of a single data quality check.
type CheckStatus string

const (
	StatusPassed  CheckStatus = "PASSED"
	StatusFailed  CheckStatus = "FAILED"
	StatusWarning CheckStatus = "WARNING"
)

// CheckName identifies one of the fixed battery of checks.
type CheckName string

const (
	CheckSchemaValidation   CheckName = "schema_validation"
	CheckNullValidation     CheckName = "null_validation"
	CheckDuplicateDetection CheckName = "duplicate_detection"
	CheckRowCountValidation CheckName = "row_count_validation"
)

// CheckResult is the immutable outcome of one check run.
type CheckResult struct {
	Name    CheckName      `json:"check"`
	Status  CheckStatus    `json:"status"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

// RunResults accumulates check results for a single validation run, bucketed
// by status. A fresh RunResults is created per invocation so that runs never
// share state.
type RunResults struct {
	Passed   []CheckResult `json:"passed"`
	Failed   []CheckResult `json:"failed"`
	Warnings []CheckResult `json:"warnings"`
}

func (r *RunResults) record(res CheckResult) {
	switch res.Status {
	case StatusFailed:
		r.Failed = append(r.Failed, res)
	case StatusWarning:
		r.Warnings = append(r.Warnings, res)
	default:
		r.Passed = append(r.Passed, res)
	}
}

// ReportSummary aggregates the per-status counts of a run.
type ReportSummary struct {
	TotalChecks int     `json:"total_checks"`
	Passed      int     `json:"passed"`
	Failed      int     `json:"failed"`
	Warnings    int     `json:"warnings"`
	SuccessRate float64 `json:"success_rate"`
}

// Report is the full outcome of one validation run: summary, every check
// result for auditability, and the generation timestamp.
type Report struct {
	Summary   ReportSummary `json:"summary"`
	Results   RunResults    `json:"results"`
	Timestamp time.Time     `json:"timestamp"`
}

// Passed reports whether the run had no failed checks. Warnings do not
// affect the outcome.
func (r *Report) Passed() bool {
	return r.Summary.Failed == 0
}

func newReport(results *RunResults) *Report {
	total := len(results.Passed) + len(results.Failed) + len(results.Warnings)

	successRate := 0.0
	if total > 0 {
		successRate = round2(float64(len(results.Passed)) / float64(total) * 100)
	}

	return &Report{
		Summary: ReportSummary{
			TotalChecks: total,
			Passed:      len(results.Passed),
			Failed:      len(results.Failed),
			Warnings:    len(results.Warnings),
			SuccessRate: successRate,
		},
		Results:   *results,
		Timestamp: time.Now(),
	}
}

// FailedCheck is the short summary of a failed check carried by
// ValidationError.
type FailedCheck struct {
	Name    CheckName `json:"check"`
	Message string    `json:"message"`
}

// ValidationError is returned by Validator.Run when fail-fast is requested
// and at least one check failed. The caller is expected to halt dependent
// downstream processing.
type ValidationError struct {
	FailedChecks []FailedCheck
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("data quality validation failed: ")
	for i, fc := range e.FailedChecks {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(fmt.Sprintf("%s: %s", fc.Name, fc.Message))
	}
	return sb.String()
}
