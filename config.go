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
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DataSourceType selects the relational store implementation.
type DataSourceType string

const (
	DataSourceTypePostgresql DataSourceType = "postgresql"
	DataSourceTypeMysql      DataSourceType = "mysql"
	DataSourceTypeClickhouse DataSourceType = "clickhouse"
)

// ConnectionConfig holds the connection parameters of a relational store.
type ConnectionConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// DataSource pairs a store type with its connection parameters.
type DataSource struct {
	Type          DataSourceType   `yaml:"type"`
	Configuration ConnectionConfig `yaml:"configuration"`
}

// ObjectStoreConfig holds the S3-compatible object storage parameters used
// as the hand-off point between ingestion and transformation.
type ObjectStoreConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// GithubConfig holds the commit source settings for the ingestion stage.
type GithubConfig struct {
	BaseURL        string   `yaml:"base_url"`
	Repositories   []string `yaml:"repositories"`
	CommitsPerRepo int      `yaml:"commits_per_repo"`
	Token          string   `yaml:"token"`
}

// ValidationConfig holds the tunables of the validation engine. Zero values
// fall back to the defaults in validator.go.
type ValidationConfig struct {
	NullThreshold float64 `yaml:"null_threshold"`
	MinRows       int     `yaml:"min_rows"`
	PrimaryKey    string  `yaml:"primary_key"`
}

// TrackingConfig holds the experiment tracker settings for the ML stage.
type TrackingConfig struct {
	Experiment string `yaml:"experiment"`
	Bucket     string `yaml:"bucket"`
}

// Config is the full pipeline configuration. Values come from the optional
// YAML file with environment variables providing the defaults, mirroring
// the container deployment where each stage is configured via env.
type Config struct {
	DataSource  DataSource        `yaml:"data_source"`
	Warehouse   *DataSource       `yaml:"warehouse,omitempty"`
	ObjectStore ObjectStoreConfig `yaml:"object_store"`
	Github      GithubConfig      `yaml:"github"`
	Validation  ValidationConfig  `yaml:"validation"`
	Tracking    TrackingConfig    `yaml:"tracking"`
	LogLevel    string            `yaml:"log_level"`
}

// DefaultRepositories are public repositories with active PR/merge workflows,
// giving the demo dataset a usable mix of merge and regular commits.
var DefaultRepositories = []string{
	"vercel/next.js",
	"facebook/react",
	"microsoft/vscode",
	"kubernetes/kubernetes",
}

// DefaultConfig builds a configuration from environment variables with
// container-friendly fallbacks.
func DefaultConfig() *Config {
	return &Config{
		DataSource: DataSource{
			Type: DataSourceTypePostgresql,
			Configuration: ConnectionConfig{
				Host:     getEnv("POSTGRES_HOST", "postgres"),
				Port:     getEnvInt("POSTGRES_PORT", 5432),
				Username: getEnv("POSTGRES_USER", "dataplatform"),
				Password: getEnv("POSTGRES_PASSWORD", "changeme123"),
				Database: getEnv("POSTGRES_DB", "analytics"),
			},
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "minio:9000"),
			AccessKey: getEnv("MINIO_ROOT_USER", "minioadmin"),
			SecretKey: getEnv("MINIO_ROOT_PASSWORD", "minioadmin"),
			Bucket:    getEnv("MINIO_BUCKET", "raw-data"),
			UseSSL:    false,
		},
		Github: GithubConfig{
			BaseURL:        getEnv("GITHUB_API_URL", "https://api.github.com"),
			Repositories:   DefaultRepositories,
			CommitsPerRepo: 50,
			Token:          getEnv("GITHUB_TOKEN", ""),
		},
		Validation: ValidationConfig{
			NullThreshold: DefaultNullThreshold,
			MinRows:       DefaultMinRows,
			PrimaryKey:    DefaultPrimaryKey,
		},
		Tracking: TrackingConfig{
			Experiment: getEnv("COMMITFLOW_EXPERIMENT", "commit-analysis"),
			Bucket:     getEnv("COMMITFLOW_EXPERIMENTS_BUCKET", "experiments"),
		},
		LogLevel: getEnv("COMMITFLOW_LOG_LEVEL", "info"),
	}
}

// LoadConfig reads a YAML configuration file on top of the environment
// defaults. An empty fileName returns the defaults untouched.
func LoadConfig(fileName string) (*Config, error) {
	cfg := DefaultConfig()
	if fileName == "" {
		return cfg, nil
	}

	file, err := os.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", fileName, err)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
