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

package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/DataBridgeTech/commitflow"
)

const (
	acceptHeader   = "application/vnd.github.v3+json"
	requestTimeout = 30 * time.Second
)

// GithubClient fetches commit metadata from the GitHub REST API. Commits are
// kept as raw JSON objects so the staged blob preserves the full upstream
// payload.
type GithubClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewGithubClient(cfg commitflow.GithubConfig, logger *slog.Logger) *GithubClient {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &GithubClient{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
	}
}

// ListCommits fetches up to perPage recent commits of the repository
// ("owner/name").
func (c *GithubClient) ListCommits(ctx context.Context, repo string, perPage int) ([]map[string]any, error) {
	url := fmt.Sprintf("%s/repos/%s/commits?per_page=%d", c.baseURL, repo, perPage)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", repo, err)
	}
	req.Header.Set("Accept", acceptHeader)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch commits from %s: %w", repo, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching commits from %s", resp.StatusCode, repo)
	}

	var commits []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&commits); err != nil {
		return nil, fmt.Errorf("failed to decode commits from %s: %w", repo, err)
	}

	return commits, nil
}
