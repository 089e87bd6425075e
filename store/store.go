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

// Package store provides the relational hand-off points of the pipeline:
// the raw commits table written by the transformation stage, the full-table
// reads consumed by the validation engine and the ML stage, and the feature
// table written back by the ML stage.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DataBridgeTech/commitflow"
	"github.com/DataBridgeTech/commitflow/cnn"
)

const (
	// RawCommitsTable is the destination of the transformation stage and
	// the default input of the validation engine.
	RawCommitsTable = "raw.commits"

	// MetricsTable is the preferred ML input; stores fall back to
	// RawCommitsTable when it does not exist.
	MetricsTable = "analytics.commit_metrics"

	// FeaturesTable receives the engineered feature set.
	FeaturesTable = "analytics.ml_features"

	insertChunkSize = 1000
	connPoolSize    = 8
)

// CommitStore is the relational store contract shared by the pipeline
// stages. Implementations exist for PostgreSQL (primary), MySQL and
// ClickHouse.
type CommitStore interface {
	// Ping verifies connectivity and returns a server identifier.
	Ping(ctx context.Context) (string, error)

	// EnsureSchema creates the raw/analytics schemas and the commits table
	// when absent.
	EnsureSchema(ctx context.Context) error

	// ReplaceCommits truncates the commits table and bulk-inserts the batch
	// in chunks. The operation is the idempotent reload of the
	// transformation stage.
	ReplaceCommits(ctx context.Context, records []commitflow.CommitRecord) error

	// LoadDataset performs a full-table read into a tabular dataset, with
	// column kinds derived from the SQL column types.
	LoadDataset(ctx context.Context, table string) (*commitflow.Dataset, error)

	// WriteDataset replaces the given table with the dataset's contents.
	// Used for the engineered feature table.
	WriteDataset(ctx context.Context, table string, ds *commitflow.Dataset) error

	Close() error
}

// NewCommitStore builds a store for the configured data source type.
func NewCommitStore(dataSource *commitflow.DataSource, logger *slog.Logger) (CommitStore, error) {
	switch dataSource.Type {
	case commitflow.DataSourceTypePostgresql:
		connection, err := cnn.NewPostgresqlConnection(dataSource.Configuration)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgresql connection: %w", err)
		}
		return NewPostgresqlCommitStore(connection, logger), nil
	case commitflow.DataSourceTypeMysql:
		connection, err := cnn.NewMysqlConnection(dataSource.Configuration, connPoolSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create mysql connection: %w", err)
		}
		return NewMysqlCommitStore(connection, logger), nil
	case commitflow.DataSourceTypeClickhouse:
		connection, err := cnn.NewClickhouseConnection(dataSource.Configuration)
		if err != nil {
			return nil, fmt.Errorf("failed to create clickhouse connection: %w", err)
		}
		return NewClickhouseCommitStore(connection, logger), nil
	default:
		return nil, fmt.Errorf("unsupported data source type: %s", dataSource.Type)
	}
}
