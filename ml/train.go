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

package ml

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/DataBridgeTech/commitflow"
	"github.com/DataBridgeTech/commitflow/store"
	"github.com/DataBridgeTech/commitflow/tracking"
)

// Trainer runs the ML stage: load the validated data, engineer features,
// persist the feature table, train the merge-commit classifier and record
// the run with the experiment tracker.
type Trainer struct {
	commits   store.CommitStore
	warehouse store.CommitStore
	tracker   *tracking.Tracker
	cfg       TrainConfig
	logger    *slog.Logger
}

// NewTrainer builds the ML stage. warehouse may be nil, in which case the
// feature table is written back to the primary store.
func NewTrainer(commits store.CommitStore, warehouse store.CommitStore, tracker *tracking.Tracker, cfg TrainConfig, logger *slog.Logger) *Trainer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if warehouse == nil {
		warehouse = commits
	}

	return &Trainer{
		commits:   commits,
		warehouse: warehouse,
		tracker:   tracker,
		cfg:       cfg,
		logger:    logger,
	}
}

// modelArtifact is the serialized form of a trained classifier.
type modelArtifact struct {
	ModelType      string              `json:"model_type"`
	FeatureColumns []string            `json:"feature_columns"`
	Scaler         *Scaler             `json:"scaler"`
	Model          *LogisticRegression `json:"model"`
}

// Run executes the complete ML stage. A dataset with a single target class
// is logged and skipped rather than treated as an error.
func (t *Trainer) Run(ctx context.Context) error {
	ds, err := t.loadData(ctx)
	if err != nil {
		return fmt.Errorf("ml stage failed: %w", err)
	}

	fs, err := EngineerFeatures(ds)
	if err != nil {
		return fmt.Errorf("ml stage failed: %w", err)
	}
	t.logger.Info("feature engineering complete", "rows", fs.NumRows(), "features", len(fs.Columns))

	// The feature table is a convenience output; failure to persist it does
	// not abort training.
	if err := t.warehouse.WriteDataset(ctx, store.FeaturesTable, FeaturesDataset(fs)); err != nil {
		t.logger.Warn("failed to save feature table", "table", store.FeaturesTable, "error", err.Error())
	} else {
		t.logger.Info("feature table saved", "table", store.FeaturesTable, "rows", fs.NumRows())
	}

	positives := 0
	for _, y := range fs.Y {
		positives += y
	}
	t.logger.Info("class distribution", "positive", positives, "negative", fs.NumRows()-positives)
	if positives == 0 || positives == fs.NumRows() {
		t.logger.Warn("only one class present, skipping model training")
		return nil
	}

	XTrain, XTest, yTrain, yTest := TrainTestSplit(fs.X, fs.Y, t.cfg.TestSize, t.cfg.Seed)
	t.logger.Info("split data", "train_samples", len(XTrain), "test_samples", len(XTest))

	scaler := FitScaler(XTrain)
	model := &LogisticRegression{}
	model.Fit(scaler.Transform(XTrain), yTrain, t.cfg)

	metrics := Evaluate(yTest, model.Predict(scaler.Transform(XTest)))
	t.logger.Info("model evaluation",
		"accuracy", metrics.Accuracy,
		"precision", metrics.Precision,
		"recall", metrics.Recall,
		"f1", metrics.F1)

	run, err := t.tracker.StartRun(ctx)
	if err != nil {
		return fmt.Errorf("ml stage failed: %w", err)
	}

	params := map[string]any{
		"model_type":    "logistic_regression",
		"learning_rate": t.cfg.LearningRate,
		"epochs":        t.cfg.Epochs,
		"seed":          t.cfg.Seed,
		"n_features":    len(fs.Columns),
		"train_size":    len(XTrain),
		"test_size":     len(XTest),
	}
	if err := run.LogParams(ctx, params); err != nil {
		return fmt.Errorf("ml stage failed: %w", err)
	}

	metricValues := map[string]float64{
		"accuracy":  metrics.Accuracy,
		"precision": metrics.Precision,
		"recall":    metrics.Recall,
		"f1":        metrics.F1,
	}
	if err := run.LogMetrics(ctx, metricValues); err != nil {
		return fmt.Errorf("ml stage failed: %w", err)
	}

	artifact := modelArtifact{
		ModelType:      "logistic_regression",
		FeatureColumns: fs.Columns,
		Scaler:         scaler,
		Model:          model,
	}
	if err := run.LogArtifact(ctx, "model", artifact); err != nil {
		return fmt.Errorf("ml stage failed: %w", err)
	}
	if err := run.Finish(ctx); err != nil {
		return fmt.Errorf("ml stage failed: %w", err)
	}

	t.logger.Info("ml stage completed", "run_id", run.ID())
	return nil
}

// loadData prefers the analytics mart and falls back to the raw commits
// table when the mart does not exist yet.
func (t *Trainer) loadData(ctx context.Context) (*commitflow.Dataset, error) {
	ds, err := t.commits.LoadDataset(ctx, store.MetricsTable)
	if err == nil {
		return ds, nil
	}
	t.logger.Warn("falling back to raw commits table",
		"preferred", store.MetricsTable, "error", err.Error())

	return t.commits.LoadDataset(ctx, store.RawCommitsTable)
}
