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

// Package ml implements the final pipeline stage: engineering ML-ready
// features from the validated commits table and training a classifier that
// predicts whether a commit is a merge commit.
package ml

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/DataBridgeTech/commitflow"
)

var (
	issueRefPattern = regexp.MustCompile(`#\d+`)
	prRefPattern    = regexp.MustCompile(`(?i)PR|pull request`)
	domainPattern   = regexp.MustCompile(`@(.+)$`)
)

// companyDomains marks commits authored from project-affiliated addresses.
var companyDomains = []string{"python.org", "github.com"}

// FeatureSet is the engineered, numeric form of the commits dataset:
// one row per commit, one column per feature, plus the binary target.
type FeatureSet struct {
	Columns []string
	X       [][]float64
	Y       []int
}

func (fs *FeatureSet) NumRows() int {
	return len(fs.X)
}

// EngineerFeatures derives the training features from a commits dataset.
// Features whose source column is absent are skipped, mirroring the
// defensive behavior of the loading fallback; commit_message is mandatory
// because the target is derived from it.
func EngineerFeatures(ds *commitflow.Dataset) (*FeatureSet, error) {
	if !ds.HasColumn("commit_message") {
		return nil, fmt.Errorf("cannot engineer features: commit_message column not found")
	}

	n := ds.NumRows()
	fs := &FeatureSet{Y: make([]int, n)}

	addFeature := func(name string, values []float64) {
		fs.Columns = append(fs.Columns, name)
		for i, v := range values {
			fs.X[i] = append(fs.X[i], v)
		}
	}

	fs.X = make([][]float64, n)
	for i := range fs.X {
		fs.X[i] = make([]float64, 0, 13)
	}

	// Text-based features and the target.
	messageLength := make([]float64, n)
	wordCount := make([]float64, n)
	hasIssueRef := make([]float64, n)
	hasPRRef := make([]float64, n)
	for i := 0; i < n; i++ {
		msg := ds.StringAt("commit_message", i)
		messageLength[i] = float64(utf8.RuneCountInString(msg))
		wordCount[i] = float64(len(strings.Fields(msg)))
		hasIssueRef[i] = boolToFloat(issueRefPattern.MatchString(msg))
		hasPRRef[i] = boolToFloat(prRefPattern.MatchString(msg))
		if strings.Contains(strings.ToLower(msg), "merge") {
			fs.Y[i] = 1
		}
	}
	addFeature("message_length", messageLength)
	addFeature("message_word_count", wordCount)
	addFeature("has_issue_ref", hasIssueRef)
	addFeature("has_pr_ref", hasPRRef)

	// Temporal features.
	if ds.HasColumn("author_date") {
		hourOfDay := make([]float64, n)
		dayOfWeek := make([]float64, n)
		isWeekend := make([]float64, n)
		isBusinessHours := make([]float64, n)
		for i := 0; i < n; i++ {
			t, ok := ds.TimeAt("author_date", i)
			if !ok {
				continue
			}
			hour := t.Hour()
			// Monday = 0
			dow := (int(t.Weekday()) + 6) % 7

			hourOfDay[i] = float64(hour)
			dayOfWeek[i] = float64(dow)
			isWeekend[i] = boolToFloat(dow >= 5)
			isBusinessHours[i] = boolToFloat(hour >= 9 && hour <= 17)
		}
		addFeature("hour_of_day", hourOfDay)
		addFeature("day_of_week", dayOfWeek)
		addFeature("is_weekend", isWeekend)
		addFeature("is_business_hours", isBusinessHours)
	}

	// Author features.
	if ds.HasColumn("author_email") {
		isCompanyEmail := make([]float64, n)
		for i := 0; i < n; i++ {
			domain := emailDomain(ds.StringAt("author_email", i))
			for _, d := range companyDomains {
				if strings.Contains(domain, d) {
					isCompanyEmail[i] = 1
					break
				}
			}
		}
		addFeature("is_company_email", isCompanyEmail)
	}

	// Comment engagement.
	if ds.HasColumn("comment_count") {
		hasComments := make([]float64, n)
		commentCount := make([]float64, n)
		for i := 0; i < n; i++ {
			count := float64(ds.IntAt("comment_count", i))
			commentCount[i] = count
			hasComments[i] = boolToFloat(count > 0)
		}
		addFeature("has_comments", hasComments)
		addFeature("comment_count", commentCount)
	}

	// Aggregate author statistics.
	if ds.HasColumn("author_email") {
		commitCounts := make(map[string]float64)
		commentSums := make(map[string]float64)
		for i := 0; i < n; i++ {
			email := ds.StringAt("author_email", i)
			commitCounts[email]++
			commentSums[email] += float64(ds.IntAt("comment_count", i))
		}

		authorCommitCount := make([]float64, n)
		authorAvgComments := make([]float64, n)
		for i := 0; i < n; i++ {
			email := ds.StringAt("author_email", i)
			authorCommitCount[i] = commitCounts[email]
			authorAvgComments[i] = commentSums[email] / commitCounts[email]
		}
		addFeature("author_commit_count", authorCommitCount)
		addFeature("author_avg_comments", authorAvgComments)
	}

	return fs, nil
}

// FeaturesDataset converts the feature set into tabular form for persisting
// to the analytics feature table.
func FeaturesDataset(fs *FeatureSet) *commitflow.Dataset {
	ds := commitflow.NewDataset()
	for j, name := range fs.Columns {
		values := make([]any, fs.NumRows())
		for i := range fs.X {
			values[i] = fs.X[i][j]
		}
		// Column names are unique and lengths equal; AddColumn cannot fail.
		_ = ds.AddColumn(name, commitflow.KindFloat, values)
	}

	target := make([]any, fs.NumRows())
	for i, y := range fs.Y {
		target[i] = int64(y)
	}
	_ = ds.AddColumn("is_merge", commitflow.KindInt, target)
	return ds
}

func emailDomain(email string) string {
	matches := domainPattern.FindStringSubmatch(email)
	if len(matches) < 2 {
		return ""
	}
	return matches[1]
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
