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
	"io"
	"log/slog"
	"math"
	"regexp"
)

// RequiredColumns is the fixed schema contract for the commits dataset.
var RequiredColumns = []string{
	"commit_sha", "author_name", "author_email", "author_date",
	"committer_name", "committer_email", "committer_date",
	"commit_message", "comment_count",
}

// CriticalColumns are subject to the null-fraction check. Same as the schema
// contract minus comment_count, which legitimately defaults to zero.
var CriticalColumns = []string{
	"commit_sha", "author_name", "author_email", "author_date",
	"committer_name", "committer_email", "committer_date", "commit_message",
}

const (
	DefaultNullThreshold = 0.05
	DefaultMinRows       = 10
	DefaultPrimaryKey    = "commit_sha"

	duplicateSampleSize = 5
)

var shaPattern = regexp.MustCompile(`^[a-f0-9]{40}$`)

// Validator runs the fixed battery of data quality checks against a commits
// dataset. It holds only configuration; all per-run state lives in the
// RunResults created inside Run, so a single Validator is safe to reuse
// across runs.
type Validator struct {
	nullThreshold float64
	minRows       int
	primaryKey    string
	logger        *slog.Logger
}

func NewValidator(cfg ValidationConfig, logger *slog.Logger) *Validator {
	if logger == nil {
		// noop logger by default
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	v := &Validator{
		nullThreshold: cfg.NullThreshold,
		minRows:       cfg.MinRows,
		primaryKey:    cfg.PrimaryKey,
		logger:        logger,
	}
	if v.nullThreshold <= 0 {
		v.nullThreshold = DefaultNullThreshold
	}
	if v.minRows <= 0 {
		v.minRows = DefaultMinRows
	}
	if v.primaryKey == "" {
		v.primaryKey = DefaultPrimaryKey
	}
	return v
}

// Run executes all four checks in a fixed order (schema, nulls, duplicates,
// row count). Every check always runs, even when the dataset is structurally
// broken. When failOnError is set and at least one check failed, the report
// is returned together with a *ValidationError carrying the failed check
// summaries; otherwise the error is nil and Report.Passed reflects the
// outcome.
func (v *Validator) Run(ds *Dataset, failOnError bool) (*Report, error) {
	v.logger.Info("starting data quality validation", "rows", ds.NumRows(), "columns", ds.NumColumns())

	results := &RunResults{}
	results.record(v.validateSchema(ds))
	results.record(v.validateNulls(ds))
	results.record(v.validateDuplicates(ds))
	results.record(v.validateRowCount(ds))

	report := newReport(results)

	v.logger.Info("data quality validation summary",
		"total_checks", report.Summary.TotalChecks,
		"passed", report.Summary.Passed,
		"failed", report.Summary.Failed,
		"warnings", report.Summary.Warnings,
		"success_rate", report.Summary.SuccessRate)

	if len(results.Failed) > 0 {
		failed := make([]FailedCheck, 0, len(results.Failed))
		for _, res := range results.Failed {
			v.logger.Error("check failed", "check", res.Name, "message", res.Message)
			failed = append(failed, FailedCheck{Name: res.Name, Message: res.Message})
		}
		if failOnError {
			return report, &ValidationError{FailedChecks: failed}
		}
		return report, nil
	}

	v.logger.Info("data quality validation passed")
	return report, nil
}

// validateSchema verifies that all required columns are present and typed
// correctly: commit_sha values match the 40-char hex pattern, the date
// columns are temporal and comment_count is numeric. Any type error fails
// the check.
func (v *Validator) validateSchema(ds *Dataset) CheckResult {
	v.logger.Info("running schema validation")

	var missing []string
	for _, name := range RequiredColumns {
		if !ds.HasColumn(name) {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		v.logger.Error("schema validation failed", "missing_columns", missing)
		return CheckResult{
			Name:    CheckSchemaValidation,
			Status:  StatusFailed,
			Message: fmt.Sprintf("Missing required columns: %v", missing),
			Details: map[string]any{
				"expected_columns": RequiredColumns,
				"actual_columns":   ds.ColumnNames(),
				"missing":          missing,
			},
		}
	}

	var typeErrors []string

	shaCol, _ := ds.Column("commit_sha")
	invalidShas := 0
	for _, val := range shaCol.Values {
		s, ok := val.(string)
		if !ok || !shaPattern.MatchString(s) {
			invalidShas++
		}
	}
	if invalidShas > 0 {
		typeErrors = append(typeErrors, fmt.Sprintf("%d invalid SHA hashes", invalidShas))
	}

	for _, name := range []string{"author_date", "committer_date"} {
		col, _ := ds.Column(name)
		if !col.Kind.IsTemporal() {
			typeErrors = append(typeErrors, fmt.Sprintf("%s is not datetime type", name))
		}
	}

	countCol, _ := ds.Column("comment_count")
	if !countCol.Kind.IsNumeric() {
		typeErrors = append(typeErrors, "comment_count is not numeric type")
	}

	if len(typeErrors) > 0 {
		v.logger.Error("schema validation failed", "type_errors", typeErrors)
		return CheckResult{
			Name:    CheckSchemaValidation,
			Status:  StatusFailed,
			Message: fmt.Sprintf("Data type validation errors: %v", typeErrors),
			Details: map[string]any{"type_errors": typeErrors},
		}
	}

	v.logger.Info("schema validation passed")
	return CheckResult{
		Name:    CheckSchemaValidation,
		Status:  StatusPassed,
		Message: "All required columns present with correct types",
		Details: map[string]any{"validated_columns": RequiredColumns},
	}
}

// validateNulls checks the null fraction of every critical column present in
// the dataset against the configured threshold. Absent columns are skipped;
// schema validation is responsible for reporting them.
func (v *Validator) validateNulls(ds *Dataset) CheckResult {
	v.logger.Info("running null value validation")

	totalRows := ds.NumRows()
	nullReport := make(map[string]any)
	hasCriticalNulls := false

	for _, name := range CriticalColumns {
		col, ok := ds.Column(name)
		if !ok {
			continue
		}

		nullCount := col.NullCount()
		nullPercentage := 0.0
		if totalRows > 0 {
			nullPercentage = round2(float64(nullCount) / float64(totalRows) * 100)
		}

		nullReport[name] = map[string]any{
			"null_count":      nullCount,
			"null_percentage": nullPercentage,
			"total_rows":      totalRows,
		}

		if nullPercentage > v.nullThreshold*100 {
			hasCriticalNulls = true
		}
	}

	if hasCriticalNulls {
		v.logger.Error("null validation failed", "null_report", nullReport)
		return CheckResult{
			Name:    CheckNullValidation,
			Status:  StatusFailed,
			Message: fmt.Sprintf("Critical columns have >=%v%% null values", v.nullThreshold*100),
			Details: nullReport,
		}
	}

	v.logger.Info("null validation passed")
	return CheckResult{
		Name:    CheckNullValidation,
		Status:  StatusPassed,
		Message: "Null values within acceptable threshold",
		Details: nullReport,
	}
}

// validateDuplicates counts rows whose primary key value repeats an earlier
// occurrence. Duplicates produce a warning rather than a failure so a run
// with otherwise clean data is not blocked; a missing primary key column is
// a failure.
func (v *Validator) validateDuplicates(ds *Dataset) CheckResult {
	v.logger.Info("running duplicate detection", "primary_key", v.primaryKey)

	col, ok := ds.Column(v.primaryKey)
	if !ok {
		msg := fmt.Sprintf("Primary key column '%s' not found", v.primaryKey)
		v.logger.Error(msg)
		return CheckResult{
			Name:    CheckDuplicateDetection,
			Status:  StatusFailed,
			Message: msg,
			Details: map[string]any{},
		}
	}

	totalRows := ds.NumRows()
	seen := make(map[string]int, totalRows)
	var sample []string

	duplicateCount := 0
	for _, val := range col.Values {
		key := fmt.Sprintf("%v", val)
		seen[key]++
		if seen[key] > 1 {
			duplicateCount++
			if seen[key] == 2 && len(sample) < duplicateSampleSize {
				sample = append(sample, key)
			}
		}
	}

	if duplicateCount > 0 {
		duplicatePercentage := round2(float64(duplicateCount) / float64(totalRows) * 100)
		v.logger.Warn("duplicate detection found duplicates",
			"duplicate_count", duplicateCount,
			"duplicate_percentage", duplicatePercentage)
		return CheckResult{
			Name:    CheckDuplicateDetection,
			Status:  StatusWarning,
			Message: fmt.Sprintf("Found %d duplicate records (%.2f%%)", duplicateCount, duplicatePercentage),
			Details: map[string]any{
				"duplicate_count":      duplicateCount,
				"duplicate_percentage": duplicatePercentage,
				"total_rows":           totalRows,
				"sample_duplicates":    sample,
			},
		}
	}

	v.logger.Info("duplicate detection passed")
	return CheckResult{
		Name:    CheckDuplicateDetection,
		Status:  StatusPassed,
		Message: "No duplicate records found",
		Details: map[string]any{
			"duplicate_count": 0,
			"total_rows":      totalRows,
		},
	}
}

// validateRowCount ensures the dataset holds at least the configured minimum
// number of rows.
func (v *Validator) validateRowCount(ds *Dataset) CheckResult {
	v.logger.Info("running row count validation")

	rowCount := ds.NumRows()
	details := map[string]any{
		"actual_rows":      rowCount,
		"minimum_required": v.minRows,
	}

	if rowCount < v.minRows {
		msg := fmt.Sprintf("Insufficient rows: %d < %d (minimum)", rowCount, v.minRows)
		v.logger.Error(msg)
		return CheckResult{
			Name:    CheckRowCountValidation,
			Status:  StatusFailed,
			Message: msg,
			Details: details,
		}
	}

	v.logger.Info("row count validation passed")
	return CheckResult{
		Name:    CheckRowCountValidation,
		Status:  StatusPassed,
		Message: fmt.Sprintf("Row count meets minimum requirement: %d >= %d", rowCount, v.minRows),
		Details: details,
	}
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
