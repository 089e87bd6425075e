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
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/DataBridgeTech/commitflow"
)

// ClickhouseCommitStore is the warehouse rendition of CommitStore, used for
// the analytics/feature tables.
type ClickhouseCommitStore struct {
	cnn    driver.Conn
	logger *slog.Logger
}

func NewClickhouseCommitStore(cnn driver.Conn, logger *slog.Logger) CommitStore {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &ClickhouseCommitStore{cnn: cnn, logger: logger}
}

func (s *ClickhouseCommitStore) Ping(ctx context.Context) (string, error) {
	info, err := s.cnn.ServerVersion()
	if err != nil {
		return "", err
	}
	return info.String(), nil
}

func (s *ClickhouseCommitStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		"CREATE DATABASE IF NOT EXISTS raw",
		"CREATE DATABASE IF NOT EXISTS analytics",
		`CREATE TABLE IF NOT EXISTS raw.commits (
			commit_sha      String,
			author_name     String,
			author_email    String,
			author_date     Nullable(DateTime64(3)),
			committer_name  String,
			committer_email String,
			committer_date  Nullable(DateTime64(3)),
			commit_message  String,
			comment_count   Int64,
			message_length  Int64,
			is_merge_commit Bool,
			commit_date     Nullable(Date),
			commit_hour     Nullable(Int64),
			day_of_week     Nullable(Int64),
			loaded_at       DateTime64(3),
			source          String
		) ENGINE = MergeTree ORDER BY commit_sha`,
	}

	for _, stmt := range statements {
		if err := s.cnn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

func (s *ClickhouseCommitStore) ReplaceCommits(ctx context.Context, records []commitflow.CommitRecord) error {
	if err := s.cnn.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s", RawCommitsTable)); err != nil {
		return fmt.Errorf("failed to truncate %s: %w", RawCommitsTable, err)
	}
	s.logger.Info("truncated commits table", "table", RawCommitsTable)

	batch, err := s.cnn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s", RawCommitsTable))
	if err != nil {
		return fmt.Errorf("failed to prepare insert batch for %s: %w", RawCommitsTable, err)
	}
	for _, rec := range records {
		if err := batch.Append(rec.Row()...); err != nil {
			return fmt.Errorf("failed to append commit %s: %w", rec.CommitSHA, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send insert batch for %s: %w", RawCommitsTable, err)
	}

	s.logger.Info("loaded commits", "table", RawCommitsTable, "rows", len(records))
	return nil
}

func (s *ClickhouseCommitStore) LoadDataset(ctx context.Context, table string) (*commitflow.Dataset, error) {
	rows, err := s.cnn.Query(ctx, fmt.Sprintf("SELECT * FROM %s", table))
	if err != nil {
		return nil, fmt.Errorf("failed to read table %s: %w", table, err)
	}
	defer rows.Close()

	columnNames := rows.Columns()
	columnTypes := rows.ColumnTypes()

	kinds := make([]commitflow.ColumnKind, len(columnTypes))
	for i, ct := range columnTypes {
		kinds[i] = kindFromClickhouseType(ct.DatabaseTypeName())
	}

	columns := make([][]any, len(columnNames))
	numRows := 0
	for rows.Next() {
		scanArgs := make([]any, len(columnTypes))
		for i, colType := range columnTypes {
			scanArgs[i] = reflect.New(colType.ScanType()).Interface()
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("failed to scan row from %s: %w", table, err)
		}
		for i := range scanArgs {
			scanned := reflect.ValueOf(scanArgs[i]).Elem().Interface()
			columns[i] = append(columns[i], normalizeClickhouseValue(scanned, kinds[i]))
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

func (s *ClickhouseCommitStore) WriteDataset(ctx context.Context, table string, ds *commitflow.Dataset) error {
	if err := s.cnn.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}

	columnNames := ds.ColumnNames()
	defs := make([]string, 0, len(columnNames))
	for _, name := range columnNames {
		col, _ := ds.Column(name)
		defs = append(defs, fmt.Sprintf("%s %s", name, clickhouseTypeForKind(col.Kind)))
	}
	createStmt := fmt.Sprintf("CREATE TABLE %s (%s) ENGINE = MergeTree ORDER BY tuple()",
		table, strings.Join(defs, ", "))
	if err := s.cnn.Exec(ctx, createStmt); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}

	batch, err := s.cnn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s", table))
	if err != nil {
		return fmt.Errorf("failed to prepare insert batch for %s: %w", table, err)
	}
	for row := 0; row < ds.NumRows(); row++ {
		values := make([]any, 0, len(columnNames))
		for _, name := range columnNames {
			col, _ := ds.Column(name)
			values = append(values, col.Values[row])
		}
		if err := batch.Append(values...); err != nil {
			return fmt.Errorf("failed to append row %d: %w", row, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send insert batch for %s: %w", table, err)
	}

	s.logger.Info("wrote dataset", "table", table, "rows", ds.NumRows())
	return nil
}

func (s *ClickhouseCommitStore) Close() error {
	return s.cnn.Close()
}

func clickhouseTypeForKind(kind commitflow.ColumnKind) string {
	switch kind {
	case commitflow.KindInt:
		return "Nullable(Int64)"
	case commitflow.KindFloat:
		return "Nullable(Float64)"
	case commitflow.KindBool:
		return "Bool"
	case commitflow.KindTimestamp:
		return "Nullable(DateTime64(3))"
	case commitflow.KindDate:
		return "Nullable(Date)"
	default:
		return "String"
	}
}

func kindFromClickhouseType(typeName string) commitflow.ColumnKind {
	inner := typeName
	if strings.HasPrefix(inner, "Nullable(") {
		inner = strings.TrimSuffix(strings.TrimPrefix(inner, "Nullable("), ")")
	}

	switch {
	case strings.HasPrefix(inner, "DateTime"):
		return commitflow.KindTimestamp
	case inner == "Date" || inner == "Date32":
		return commitflow.KindDate
	case strings.HasPrefix(inner, "Int") || strings.HasPrefix(inner, "UInt"):
		return commitflow.KindInt
	case strings.HasPrefix(inner, "Float") || strings.HasPrefix(inner, "Decimal"):
		return commitflow.KindFloat
	case inner == "Bool":
		return commitflow.KindBool
	default:
		return commitflow.KindString
	}
}

// normalizeClickhouseValue unwraps Nullable pointers and widens native
// clickhouse scan values to the dataset's canonical representations.
func normalizeClickhouseValue(val any, kind commitflow.ColumnKind) any {
	rv := reflect.ValueOf(val)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
		val = rv.Interface()
	}

	switch kind {
	case commitflow.KindInt:
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return rv.Int()
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return int64(rv.Uint())
		}
	case commitflow.KindFloat:
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64:
			return rv.Float()
		}
	}
	return val
}
