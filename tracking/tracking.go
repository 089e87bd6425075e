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

// Package tracking is a minimal experiment tracker: every training run gets
// a UUID and its parameters, metrics and artifacts are written as JSON
// documents to object storage under experiments/<experiment>/<run-id>/.
package tracking

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/DataBridgeTech/commitflow"
	"github.com/DataBridgeTech/commitflow/objectstore"
	"github.com/google/uuid"
)

type Tracker struct {
	objects    *objectstore.Client
	bucket     string
	experiment string
	logger     *slog.Logger
}

func NewTracker(objects *objectstore.Client, cfg commitflow.TrackingConfig, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Tracker{
		objects:    objects,
		bucket:     cfg.Bucket,
		experiment: cfg.Experiment,
		logger:     logger,
	}
}

// Run is one tracked training run. Log calls upload immediately; Finish
// writes the closing summary document.
type Run struct {
	tracker   *Tracker
	id        string
	startedAt time.Time
}

func (t *Tracker) StartRun(ctx context.Context) (*Run, error) {
	if err := t.objects.EnsureBucket(ctx, t.bucket); err != nil {
		return nil, fmt.Errorf("failed to start tracking run: %w", err)
	}

	run := &Run{
		tracker:   t,
		id:        uuid.NewString(),
		startedAt: time.Now(),
	}
	t.logger.Info("started tracking run", "experiment", t.experiment, "run_id", run.id)
	return run, nil
}

func (r *Run) ID() string {
	return r.id
}

func (r *Run) LogParams(ctx context.Context, params map[string]any) error {
	return r.put(ctx, "params.json", params)
}

func (r *Run) LogMetrics(ctx context.Context, metrics map[string]float64) error {
	return r.put(ctx, "metrics.json", metrics)
}

// LogArtifact stores an arbitrary JSON-serializable artifact under
// artifacts/<name>.json.
func (r *Run) LogArtifact(ctx context.Context, name string, artifact any) error {
	return r.put(ctx, fmt.Sprintf("artifacts/%s.json", name), artifact)
}

func (r *Run) Finish(ctx context.Context) error {
	summary := map[string]any{
		"run_id":      r.id,
		"experiment":  r.tracker.experiment,
		"started_at":  r.startedAt.Format(time.RFC3339),
		"finished_at": time.Now().Format(time.RFC3339),
	}
	return r.put(ctx, "run.json", summary)
}

func (r *Run) put(ctx context.Context, name string, v any) error {
	key := fmt.Sprintf("%s/%s/%s", r.tracker.experiment, r.id, name)
	if _, err := r.tracker.objects.PutJSON(ctx, r.tracker.bucket, key, v); err != nil {
		return fmt.Errorf("failed to log %s for run %s: %w", name, r.id, err)
	}
	return nil
}
