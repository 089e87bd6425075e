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
	"strconv"
	"strings"

	"github.com/DataBridgeTech/commitflow"
	_ "github.com/lib/pq"
)

type PostgresqlCommitStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewPostgresqlCommitStore(db *sql.DB, logger *slog.Logger) CommitStore {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &PostgresqlCommitStore{db: db, logger: logger}
}

func (s *PostgresqlCommitStore) Ping(ctx context.Context) (string, error) {
	if err := s.db.PingContext(ctx); err != nil {
		return "", err
	}
	return "OK", nil
}

func (s *PostgresqlCommitStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE SCHEMA IF NOT EXISTS raw`,
		`CREATE SCHEMA IF NOT EXISTS analytics`,
		`CREATE TABLE IF NOT EXISTS raw.commits (
			commit_sha      TEXT,
			author_name     TEXT,
			author_email    TEXT,
			author_date     TIMESTAMPTZ,
			committer_name  TEXT,
			committer_email TEXT,
			committer_date  TIMESTAMPTZ,
			commit_message  TEXT,
			comment_count   BIGINT,
			message_length  BIGINT,
			is_merge_commit BOOLEAN,
			commit_date     DATE,
			commit_hour     BIGINT,
			day_of_week     BIGINT,
			loaded_at       TIMESTAMPTZ,
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

func (s *PostgresqlCommitStore) ReplaceCommits(ctx context.Context, records []commitflow.CommitRecord) error {
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

		query, args := buildCommitsInsert(RawCommitsTable, chunk, dollarPlaceholders)
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert commits chunk [%d:%d]: %w", start, end, err)
		}
	}

	s.logger.Info("loaded commits", "table", RawCommitsTable, "rows", len(records))
	return nil
}

func (s *PostgresqlCommitStore) LoadDataset(ctx context.Context, table string) (*commitflow.Dataset, error) {
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

func (s *PostgresqlCommitStore) WriteDataset(ctx context.Context, table string, ds *commitflow.Dataset) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}

	columnNames := ds.ColumnNames()
	defs := make([]string, 0, len(columnNames))
	for _, name := range columnNames {
		col, _ := ds.Column(name)
		defs = append(defs, fmt.Sprintf("%s %s", name, postgresTypeForKind(col.Kind)))
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

		query, args := buildDatasetInsert(table, ds, start, end, dollarPlaceholders)
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert rows [%d:%d] into %s: %w", start, end, table, err)
		}
	}

	s.logger.Info("wrote dataset", "table", table, "rows", ds.NumRows())
	return nil
}

func (s *PostgresqlCommitStore) Close() error {
	return s.db.Close()
}

func postgresTypeForKind(kind commitflow.ColumnKind) string {
	switch kind {
	case commitflow.KindInt:
		return "BIGINT"
	case commitflow.KindFloat:
		return "DOUBLE PRECISION"
	case commitflow.KindBool:
		return "BOOLEAN"
	case commitflow.KindTimestamp:
		return "TIMESTAMPTZ"
	case commitflow.KindDate:
		return "DATE"
	default:
		return "TEXT"
	}
}

// kindFromSQLType maps database/sql column type names (PostgreSQL and MySQL
// spellings) to dataset column kinds.
func kindFromSQLType(typeName string) commitflow.ColumnKind {
	switch strings.ToUpper(typeName) {
	case "TIMESTAMP", "TIMESTAMPTZ", "DATETIME":
		return commitflow.KindTimestamp
	case "DATE":
		return commitflow.KindDate
	case "INT2", "INT4", "INT8", "INT", "BIGINT", "SMALLINT", "MEDIUMINT", "INTEGER":
		return commitflow.KindInt
	case "FLOAT4", "FLOAT8", "NUMERIC", "DECIMAL", "FLOAT", "DOUBLE":
		return commitflow.KindFloat
	case "BOOL", "BOOLEAN":
		return commitflow.KindBool
	default:
		return commitflow.KindString
	}
}

// normalizeSQLValue converts driver values to the dataset's canonical
// representations (string, int64, float64, bool, time.Time, nil).
func normalizeSQLValue(val any, kind commitflow.ColumnKind) any {
	if val == nil {
		return nil
	}

	switch v := val.(type) {
	case []byte:
		text := string(v)
		switch kind {
		case commitflow.KindFloat:
			if f, err := strconv.ParseFloat(text, 64); err == nil {
				return f
			}
			return nil
		case commitflow.KindInt:
			if n, err := strconv.ParseInt(text, 10, 64); err == nil {
				return n
			}
			return nil
		case commitflow.KindBool:
			return text == "1" || strings.EqualFold(text, "true")
		default:
			return text
		}
	case int64:
		if kind == commitflow.KindBool {
			return v != 0
		}
		return v
	default:
		return val
	}
}

func dollarPlaceholders(row, width int) string {
	parts := make([]string, width)
	for i := 0; i < width; i++ {
		parts[i] = "$" + strconv.Itoa(row*width+i+1)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func questionPlaceholders(_, width int) string {
	parts := make([]string, width)
	for i := 0; i < width; i++ {
		parts[i] = "?"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func buildCommitsInsert(table string, chunk []commitflow.CommitRecord, placeholders func(int, int) string) (string, []any) {
	width := len(commitflow.CommitColumns)
	rowExprs := make([]string, 0, len(chunk))
	args := make([]any, 0, len(chunk)*width)

	for i, rec := range chunk {
		rowExprs = append(rowExprs, placeholders(i, width))
		args = append(args, rec.Row()...)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		table, strings.Join(commitflow.CommitColumns, ", "), strings.Join(rowExprs, ", "))
	return query, args
}

func buildDatasetInsert(table string, ds *commitflow.Dataset, start, end int, placeholders func(int, int) string) (string, []any) {
	columnNames := ds.ColumnNames()
	width := len(columnNames)
	rowExprs := make([]string, 0, end-start)
	args := make([]any, 0, (end-start)*width)

	for row := start; row < end; row++ {
		rowExprs = append(rowExprs, placeholders(row-start, width))
		for _, name := range columnNames {
			col, _ := ds.Column(name)
			args = append(args, col.Values[row])
		}
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		table, strings.Join(columnNames, ", "), strings.Join(rowExprs, ", "))
	return query, args
}
