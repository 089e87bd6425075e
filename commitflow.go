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

// Package commitflow implements a batch ETL pipeline for commit metadata:
// ingestion from the GitHub API into object storage, transformation into a
// relational table, a multi-stage data quality validation engine, and a
// small ML stage on top of the validated data.
package commitflow

const (
	Version = "v0.1.0"
)

func GetCommitflowLibVersion() string {
	return Version
}
