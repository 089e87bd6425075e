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

import "time"

// CommitRecord is one cleaned, flattened commit row as produced by the
// transformation stage and stored in raw.commits. Pointer fields are
// nullable in the store.
type CommitRecord struct {
	CommitSHA      string
	AuthorName     string
	AuthorEmail    string
	AuthorDate     *time.Time
	CommitterName  string
	CommitterEmail string
	CommitterDate  *time.Time
	CommitMessage  string
	CommentCount   int64

	// Derived fields
	MessageLength int64
	IsMergeCommit bool
	CommitDate    *time.Time
	CommitHour    *int64
	DayOfWeek     *int64

	// Provenance
	LoadedAt time.Time
	Source   string
}

// CommitColumns is the raw.commits column order used by every store
// implementation.
var CommitColumns = []string{
	"commit_sha", "author_name", "author_email", "author_date",
	"committer_name", "committer_email", "committer_date",
	"commit_message", "comment_count",
	"message_length", "is_merge_commit", "commit_date", "commit_hour",
	"day_of_week", "loaded_at", "source",
}

// Row returns the record's values in CommitColumns order, with nil for
// null cells.
func (r *CommitRecord) Row() []any {
	return []any{
		r.CommitSHA, r.AuthorName, r.AuthorEmail, timeOrNil(r.AuthorDate),
		r.CommitterName, r.CommitterEmail, timeOrNil(r.CommitterDate),
		r.CommitMessage, r.CommentCount,
		r.MessageLength, r.IsMergeCommit, timeOrNil(r.CommitDate), intOrNil(r.CommitHour),
		intOrNil(r.DayOfWeek), r.LoadedAt, r.Source,
	}
}

// CommitsDataset builds the tabular form of a batch of commit records,
// matching the shape the stores produce when loading raw.commits back.
func CommitsDataset(records []CommitRecord) *Dataset {
	kinds := map[string]ColumnKind{
		"commit_sha":      KindString,
		"author_name":     KindString,
		"author_email":    KindString,
		"author_date":     KindTimestamp,
		"committer_name":  KindString,
		"committer_email": KindString,
		"committer_date":  KindTimestamp,
		"commit_message":  KindString,
		"comment_count":   KindInt,
		"message_length":  KindInt,
		"is_merge_commit": KindBool,
		"commit_date":     KindDate,
		"commit_hour":     KindInt,
		"day_of_week":     KindInt,
		"loaded_at":       KindTimestamp,
		"source":          KindString,
	}

	columns := make(map[string][]any, len(CommitColumns))
	for _, rec := range records {
		row := rec.Row()
		for i, name := range CommitColumns {
			columns[name] = append(columns[name], row[i])
		}
	}

	ds := NewDataset()
	for _, name := range CommitColumns {
		values := columns[name]
		if values == nil {
			values = []any{}
		}
		// AddColumn cannot fail here: names are unique and lengths equal.
		_ = ds.AddColumn(name, kinds[name], values)
	}
	return ds
}

func timeOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func intOrNil(i *int64) any {
	if i == nil {
		return nil
	}
	return *i
}
