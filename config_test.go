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
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.DataSource.Type != DataSourceTypePostgresql {
		t.Errorf("expected postgresql default, got %s", cfg.DataSource.Type)
	}
	if cfg.DataSource.Configuration.Database != "analytics" {
		t.Errorf("unexpected default database: %s", cfg.DataSource.Configuration.Database)
	}
	if cfg.ObjectStore.Bucket != "raw-data" {
		t.Errorf("unexpected default bucket: %s", cfg.ObjectStore.Bucket)
	}
	if cfg.Github.CommitsPerRepo != 50 {
		t.Errorf("unexpected default commits per repo: %d", cfg.Github.CommitsPerRepo)
	}
	if len(cfg.Github.Repositories) != 4 {
		t.Errorf("unexpected default repositories: %v", cfg.Github.Repositories)
	}
	if cfg.Validation.NullThreshold != DefaultNullThreshold {
		t.Errorf("unexpected default null threshold: %v", cfg.Validation.NullThreshold)
	}
	if cfg.Tracking.Experiment != "commit-analysis" {
		t.Errorf("unexpected default experiment: %s", cfg.Tracking.Experiment)
	}
}

func TestDefaultConfigEnvOverrides(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("POSTGRES_PORT", "15432")
	t.Setenv("MINIO_BUCKET", "staging-data")
	t.Setenv("COMMITFLOW_EXPERIMENT", "merge-predictor")

	cfg := DefaultConfig()

	if cfg.DataSource.Configuration.Host != "db.internal" {
		t.Errorf("POSTGRES_HOST not applied: %s", cfg.DataSource.Configuration.Host)
	}
	if cfg.DataSource.Configuration.Port != 15432 {
		t.Errorf("POSTGRES_PORT not applied: %d", cfg.DataSource.Configuration.Port)
	}
	if cfg.ObjectStore.Bucket != "staging-data" {
		t.Errorf("MINIO_BUCKET not applied: %s", cfg.ObjectStore.Bucket)
	}
	if cfg.Tracking.Experiment != "merge-predictor" {
		t.Errorf("COMMITFLOW_EXPERIMENT not applied: %s", cfg.Tracking.Experiment)
	}
}

func TestDefaultConfigInvalidIntEnv(t *testing.T) {
	t.Setenv("POSTGRES_PORT", "not-a-number")

	cfg := DefaultConfig()
	if cfg.DataSource.Configuration.Port != 5432 {
		t.Errorf("expected fallback port 5432, got %d", cfg.DataSource.Configuration.Port)
	}
}

func TestLoadConfigFromYaml(t *testing.T) {
	content := `
data_source:
  type: clickhouse
  configuration:
    host: ch.internal
    port: 9000
    username: default
    database: analytics
github:
  repositories:
    - golang/go
  commits_per_repo: 25
validation:
  null_threshold: 0.1
  min_rows: 100
log_level: debug
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DataSource.Type != DataSourceTypeClickhouse {
		t.Errorf("expected clickhouse, got %s", cfg.DataSource.Type)
	}
	if cfg.DataSource.Configuration.Host != "ch.internal" {
		t.Errorf("unexpected host: %s", cfg.DataSource.Configuration.Host)
	}
	if len(cfg.Github.Repositories) != 1 || cfg.Github.Repositories[0] != "golang/go" {
		t.Errorf("unexpected repositories: %v", cfg.Github.Repositories)
	}
	if cfg.Github.CommitsPerRepo != 25 {
		t.Errorf("unexpected commits per repo: %d", cfg.Github.CommitsPerRepo)
	}
	if cfg.Validation.NullThreshold != 0.1 {
		t.Errorf("unexpected null threshold: %v", cfg.Validation.NullThreshold)
	}
	if cfg.Validation.MinRows != 100 {
		t.Errorf("unexpected min rows: %d", cfg.Validation.MinRows)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("unexpected log level: %s", cfg.LogLevel)
	}

	// Sections absent from the file keep their defaults.
	if cfg.ObjectStore.Bucket != "raw-data" {
		t.Errorf("expected default bucket to survive, got %s", cfg.ObjectStore.Bucket)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadConfigEmptyFileName(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DataSource.Type != DataSourceTypePostgresql {
		t.Errorf("expected defaults, got %s", cfg.DataSource.Type)
	}
}
