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

// Package ingest implements the first pipeline stage: fetching commit
// metadata from the GitHub API, tagging it with provenance and staging it as
// a timestamped JSON blob in object storage.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/DataBridgeTech/commitflow"
	"github.com/DataBridgeTech/commitflow/objectstore"
)

// RawDataPrefix is the object key prefix of staged commit batches. Keys are
// laid out as <prefix>/YYYY-MM-DD/HH-MM-SS.json.
const RawDataPrefix = "github-commits-multi"

const fetchConcurrency = 4

type Ingestor struct {
	client  *GithubClient
	objects *objectstore.Client
	bucket  string
	repos   []string
	perRepo int
	logger  *slog.Logger
	now     func() time.Time
}

func NewIngestor(client *GithubClient, objects *objectstore.Client, cfg *commitflow.Config, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	perRepo := cfg.Github.CommitsPerRepo
	if perRepo <= 0 {
		perRepo = 50
	}

	return &Ingestor{
		client:  client,
		objects: objects,
		bucket:  cfg.ObjectStore.Bucket,
		repos:   cfg.Github.Repositories,
		perRepo: perRepo,
		logger:  logger,
		now:     time.Now,
	}
}

// FetchCommits pulls commits from every configured repository, tagging each
// record with source_repository and ingestion_timestamp. Repositories that
// fail are skipped; the fetch only errors when no repository yielded
// commits.
func (i *Ingestor) FetchCommits(ctx context.Context) ([]map[string]any, error) {
	perRepo := make([][]map[string]any, len(i.repos))

	pool := commitflow.NewTaskPool(fetchConcurrency, i.logger)
	for idx, repo := range i.repos {
		idx, repo := idx, repo
		pool.Enqueue("fetch:"+repo, func() error {
			i.logger.Info("fetching commits", "repository", repo)

			commits, err := i.client.ListCommits(ctx, repo, i.perRepo)
			if err != nil {
				i.logger.Warn("failed to fetch commits, continuing with other repositories",
					"repository", repo, "error", err.Error())
				return err
			}

			ingestedAt := i.now().Format(time.RFC3339)
			for _, commit := range commits {
				commit["source_repository"] = repo
				commit["ingestion_timestamp"] = ingestedAt
			}
			perRepo[idx] = commits

			i.logger.Info("fetched commits", "repository", repo, "count", len(commits))
			return nil
		})
	}
	pool.Join()

	var all []map[string]any
	for _, commits := range perRepo {
		all = append(all, commits...)
	}

	i.logger.Info("fetch complete", "total_commits", len(all), "repositories", len(i.repos))

	if len(all) == 0 {
		return nil, fmt.Errorf("no commits fetched from any repository")
	}
	return all, nil
}

// StoreRaw uploads the batch as an indented JSON blob keyed by the current
// date and time, and returns the object key.
func (i *Ingestor) StoreRaw(ctx context.Context, commits []map[string]any) (string, error) {
	i.logBatchStats(commits)

	now := i.now()
	key := fmt.Sprintf("%s/%s/%s.json", RawDataPrefix, now.Format("2006-01-02"), now.Format("15-04-05"))

	if err := i.objects.EnsureBucket(ctx, i.bucket); err != nil {
		return "", err
	}
	if _, err := i.objects.PutJSON(ctx, i.bucket, key, commits); err != nil {
		return "", err
	}

	return key, nil
}

// Run executes the complete ingestion stage and returns the key of the
// staged blob.
func (i *Ingestor) Run(ctx context.Context) (string, error) {
	i.logger.Info("starting data ingestion")

	commits, err := i.FetchCommits(ctx)
	if err != nil {
		return "", fmt.Errorf("data ingestion failed: %w", err)
	}

	key, err := i.StoreRaw(ctx, commits)
	if err != nil {
		return "", fmt.Errorf("data ingestion failed: %w", err)
	}

	i.logger.Info("data ingestion completed", "key", key)
	return key, nil
}

func (i *Ingestor) logBatchStats(commits []map[string]any) {
	repoCounts := make(map[string]int)
	mergeCount := 0
	for _, commit := range commits {
		repo, _ := commit["source_repository"].(string)
		if repo == "" {
			repo = "unknown"
		}
		repoCounts[repo]++

		if parents, ok := commit["parents"].([]any); ok && len(parents) > 1 {
			mergeCount++
		}
	}

	i.logger.Info("dataset statistics",
		"total_commits", len(commits),
		"merge_commits", mergeCount,
		"regular_commits", len(commits)-mergeCount,
		"repositories", len(repoCounts))
	for repo, count := range repoCounts {
		i.logger.Info("repository commit count", "repository", repo, "count", count)
	}
}
