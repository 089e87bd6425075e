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

// Package transform implements the second pipeline stage: flattening the
// staged GitHub commit blobs into cleaned relational rows with a few derived
// fields, and reloading them into the raw commits table.
package transform

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/DataBridgeTech/commitflow"
	"github.com/DataBridgeTech/commitflow/ingest"
	"github.com/DataBridgeTech/commitflow/objectstore"
	"github.com/DataBridgeTech/commitflow/store"
)

// RawCommit is the subset of the staged GitHub payload the transformation
// consumes. Extra fields in the blob are ignored on decode.
type RawCommit struct {
	SHA    string `json:"sha"`
	Commit struct {
		Author struct {
			Name  string `json:"name"`
			Email string `json:"email"`
			Date  string `json:"date"`
		} `json:"author"`
		Committer struct {
			Name  string `json:"name"`
			Email string `json:"email"`
			Date  string `json:"date"`
		} `json:"committer"`
		Message      string `json:"message"`
		CommentCount *int64 `json:"comment_count"`
	} `json:"commit"`
	SourceRepository string `json:"source_repository"`
}

type Transformer struct {
	objects *objectstore.Client
	commits store.CommitStore
	bucket  string
	logger  *slog.Logger
	now     func() time.Time
}

func NewTransformer(objects *objectstore.Client, commits store.CommitStore, bucket string, logger *slog.Logger) *Transformer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Transformer{
		objects: objects,
		commits: commits,
		bucket:  bucket,
		logger:  logger,
		now:     time.Now,
	}
}

// Run reads the most recent staged blob, transforms it and reloads the raw
// commits table (truncate + insert).
func (t *Transformer) Run(ctx context.Context) error {
	t.logger.Info("starting data transformation")

	key, err := t.objects.LatestKey(ctx, t.bucket, ingest.RawDataPrefix+"/")
	if err != nil {
		return fmt.Errorf("data transformation failed: %w", err)
	}

	var raw []RawCommit
	if err := t.objects.GetJSON(ctx, t.bucket, key, &raw); err != nil {
		return fmt.Errorf("data transformation failed: %w", err)
	}
	t.logger.Info("loaded raw records", "key", key, "records", len(raw))

	records := Transform(raw, t.now())
	t.logger.Info("transformation complete", "rows", len(records), "columns", len(commitflow.CommitColumns))

	if err := t.commits.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("data transformation failed: %w", err)
	}
	if err := t.commits.ReplaceCommits(ctx, records); err != nil {
		return fmt.Errorf("data transformation failed: %w", err)
	}

	t.logger.Info("data transformation completed")
	return nil
}

// Transform flattens and cleans the staged records: text fields trimmed,
// dates coerced (unparseable values become null), comment counts defaulted
// to zero, plus the derived message/date fields and load provenance.
func Transform(raw []RawCommit, loadedAt time.Time) []commitflow.CommitRecord {
	records := make([]commitflow.CommitRecord, 0, len(raw))

	for _, rc := range raw {
		message := strings.TrimSpace(rc.Commit.Message)

		rec := commitflow.CommitRecord{
			CommitSHA:      strings.TrimSpace(rc.SHA),
			AuthorName:     strings.TrimSpace(rc.Commit.Author.Name),
			AuthorEmail:    strings.TrimSpace(rc.Commit.Author.Email),
			AuthorDate:     parseTime(rc.Commit.Author.Date),
			CommitterName:  strings.TrimSpace(rc.Commit.Committer.Name),
			CommitterEmail: strings.TrimSpace(rc.Commit.Committer.Email),
			CommitterDate:  parseTime(rc.Commit.Committer.Date),
			CommitMessage:  message,
			CommentCount:   0,
			MessageLength:  int64(utf8.RuneCountInString(message)),
			IsMergeCommit:  strings.Contains(strings.ToLower(message), "merge"),
			LoadedAt:       loadedAt,
			Source:         "github_api",
		}

		if rc.Commit.CommentCount != nil {
			rec.CommentCount = *rc.Commit.CommentCount
		}

		if rec.AuthorDate != nil {
			date := time.Date(rec.AuthorDate.Year(), rec.AuthorDate.Month(), rec.AuthorDate.Day(), 0, 0, 0, 0, time.UTC)
			rec.CommitDate = &date

			hour := int64(rec.AuthorDate.Hour())
			rec.CommitHour = &hour

			// Monday = 0, matching the analytics convention downstream.
			dow := (int64(rec.AuthorDate.Weekday()) + 6) % 7
			rec.DayOfWeek = &dow
		}

		records = append(records, rec)
	}

	return records
}

func parseTime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}
