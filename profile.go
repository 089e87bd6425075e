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
	"time"
)

// ColumnProfile holds descriptive statistics for a single dataset column.
type ColumnProfile struct {
	ColumnName    string     `json:"col_name"`
	Kind          ColumnKind `json:"kind"`
	NullCount     int        `json:"null_count"`
	DistinctCount int        `json:"distinct_count"`
	MinValue      *float64   `json:"min_value,omitempty"` // numeric only
	MaxValue      *float64   `json:"max_value,omitempty"` // numeric only
	AvgValue      *float64   `json:"avg_value,omitempty"` // numeric only
}

// DatasetProfile is a descriptive summary of a loaded dataset, produced for
// human review alongside the validation report.
type DatasetProfile struct {
	ProfiledAt          int64                     `json:"profiled_at"`
	Dataset             string                    `json:"dataset"`
	TotalRows           int                       `json:"total_rows"`
	Columns             map[string]*ColumnProfile `json:"columns"`
	ProfilingDurationMs int64                     `json:"profiling_duration_ms"`
}

// ProfileDataset computes per-column null counts, distinct counts and basic
// numeric statistics over an in-memory dataset.
func ProfileDataset(ds *Dataset, name string) *DatasetProfile {
	startTime := time.Now()

	profile := &DatasetProfile{
		ProfiledAt: time.Now().Unix(),
		Dataset:    name,
		TotalRows:  ds.NumRows(),
		Columns:    make(map[string]*ColumnProfile),
	}

	for _, colName := range ds.ColumnNames() {
		col, _ := ds.Column(colName)
		profile.Columns[colName] = profileColumn(col)
	}

	profile.ProfilingDurationMs = time.Since(startTime).Milliseconds()
	return profile
}

func profileColumn(col *Column) *ColumnProfile {
	cp := &ColumnProfile{
		ColumnName: col.Name,
		Kind:       col.Kind,
	}

	distinct := make(map[string]struct{})
	var sum float64
	numericCount := 0

	for _, val := range col.Values {
		if val == nil {
			cp.NullCount++
			continue
		}
		distinct[fmt.Sprintf("%v", val)] = struct{}{}

		var numeric float64
		switch v := val.(type) {
		case int64:
			numeric = float64(v)
		case float64:
			numeric = v
		default:
			continue
		}

		if cp.MinValue == nil || numeric < *cp.MinValue {
			minVal := numeric
			cp.MinValue = &minVal
		}
		if cp.MaxValue == nil || numeric > *cp.MaxValue {
			maxVal := numeric
			cp.MaxValue = &maxVal
		}
		sum += numeric
		numericCount++
	}

	cp.DistinctCount = len(distinct)
	if numericCount > 0 {
		avg := sum / float64(numericCount)
		cp.AvgValue = &avg
	}

	return cp
}
