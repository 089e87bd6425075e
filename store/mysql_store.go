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

package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/DataBridgeTech/commitflow"
	_ "github.com/go-sql-driver/mysql"
)

// MysqlCommitStore is the MySQL rendition of CommitStore. MySQL treats
// CREATE SCHEMA as CREATE DATABASE, so the raw/analytics qualifiers resolve
// to sibling databases of the configured one.
type MysqlCommitStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewMysqlCommitStore(db *sql.DB, logger *slog.Logger) CommitStore {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &MysqlCommitStore{db: db, logger: logger}
}

func (s *MysqlCommitStore) Ping(ctx context.Context) (string, error) {
	var version string
	if err := s.db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&version); err != nil {
		return "", err
	}
	return version, nil
}

func (s *MysqlCommitStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		"CREATE SCHEMA IF NOT EXISTS raw",
		"CREATE SCHEMA IF NOT EXISTS analytics",
		`CREATE TABLE IF NOT EXISTS raw.commits (
			commit_sha      VARCHAR(40),
			author_name     TEXT,
			author_email    TEXT,
			author_date     DATETIME,
			committer_name  TEXT,
			committer_email TEXT,
			committer_date  DATETIME,
			commit_message  TEXT,
			comment_count   BIGINT,
			message_length  BIGINT,
			is_merge_commit BOOLEAN,
			commit_date     DATE,
			commit_hour     BIGINT,
			day_of_week     BIGINT,
			loaded_at       DATETIME,
			source          TEXT
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

func (s *MysqlCommitStore) ReplaceCommits(ctx context.Context, records []commitflow.CommitRecord) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s", RawCommitsTable)); err != nil {
		return fmt.Errorf("failed to truncate %s: %w", RawCommitsTable, err)
	}
	s.logger.Info("truncated commits table", "table", RawCommitsTable)

	for start := 0; start < len(records); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(records) {
			end = len(records)
		}
		chunk := records[start:end]

		query, args := buildCommitsInsert(RawCommitsTable, chunk, questionPlaceholders)
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert commits chunk [%d:%d]: %w", start, end, err)
		}
	}

	s.logger.Info("loaded commits", "table", RawCommitsTable, "rows", len(records))
	return nil
}

func (s *MysqlCommitStore) LoadDataset(ctx context.Context, table string) (*commitflow.Dataset, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s", table))
	if err != nil {
		return nil, fmt.Errorf("failed to read table %s: %w", table, err)
	}
	defer rows.Close()

	columnNames, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types of %s: %w", table, err)
	}

	kinds := make([]commitflow.ColumnKind, len(columnTypes))
	for i, ct := range columnTypes {
		kinds[i] = kindFromSQLType(ct.DatabaseTypeName())
	}

	columns := make([][]any, len(columnNames))
	numRows := 0
	for rows.Next() {
		values := make([]any, len(columnNames))
		ptrs := make([]any, len(columnNames))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row from %s: %w", table, err)
		}
		for i, val := range values {
			columns[i] = append(columns[i], normalizeSQLValue(val, kinds[i]))
		}
		numRows++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error occurred during row iteration: %w", err)
	}

	ds := commitflow.NewDataset()
	for i, name := range columnNames {
		values := columns[i]
		if values == nil {
			values = []any{}
		}
		if err := ds.AddColumn(name, kinds[i], values); err != nil {
			return nil, fmt.Errorf("failed to build dataset for %s: %w", table, err)
		}
	}

	s.logger.Info("loaded dataset", "table", table, "rows", numRows, "columns", len(columnNames))
	return ds, nil
}

func (s *MysqlCommitStore) WriteDataset(ctx context.Context, table string, ds *commitflow.Dataset) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}

	columnNames := ds.ColumnNames()
	defs := make([]string, 0, len(columnNames))
	for _, name := range columnNames {
		col, _ := ds.Column(name)
		defs = append(defs, fmt.Sprintf("%s %s", name, mysqlTypeForKind(col.Kind)))
	}
	createStmt := fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", "))
	if _, err := s.db.ExecContext(ctx, createStmt); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}

	for start := 0; start < ds.NumRows(); start += insertChunkSize {
		end := start + insertChunkSize
		if end > ds.NumRows() {
			end = ds.NumRows()
		}

		query, args := buildDatasetInsert(table, ds, start, end, questionPlaceholders)
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert rows [%d:%d] into %s: %w", start, end, table, err)
		}
	}

	s.logger.Info("wrote dataset", "table", table, "rows", ds.NumRows())
	return nil
}

func (s *MysqlCommitStore) Close() error {
	return s.db.Close()
}

func mysqlTypeForKind(kind commitflow.ColumnKind) string {
	switch kind {
	case commitflow.KindInt:
		return "BIGINT"
	case commitflow.KindFloat:
		return "DOUBLE"
	case commitflow.KindBool:
		return "BOOLEAN"
	case commitflow.KindTimestamp:
		return "DATETIME"
	case commitflow.KindDate:
		return "DATE"
	default:
		return "TEXT"
	}
}
