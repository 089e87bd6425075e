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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/DataBridgeTech/commitflow"
	"github.com/DataBridgeTech/commitflow/ingest"
	"github.com/DataBridgeTech/commitflow/ml"
	"github.com/DataBridgeTech/commitflow/objectstore"
	"github.com/DataBridgeTech/commitflow/store"
	"github.com/DataBridgeTech/commitflow/tracking"
	"github.com/DataBridgeTech/commitflow/transform"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "commitflow",
		Short:         "Batch ETL + ML pipeline for commit metadata",
		Version:       commitflow.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (env defaults when omitted)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug|info|warn|error)")

	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(transformCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(trainCmd())
	rootCmd.AddCommand(runCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func setup() (*commitflow.Config, *slog.Logger, error) {
	cfg, err := commitflow.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	}))
	return cfg, logger, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Fetch commits from the GitHub API and stage them in object storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			objects, err := objectstore.NewClient(cfg.ObjectStore, logger)
			if err != nil {
				return err
			}

			ingestor := ingest.NewIngestor(ingest.NewGithubClient(cfg.Github, logger), objects, cfg, logger)
			key, err := ingestor.Run(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("staged raw data at s3://%s/%s\n", cfg.ObjectStore.Bucket, key)
			return nil
		},
	}
}

func transformCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transform",
		Short: "Flatten the latest staged blob into the raw commits table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			objects, err := objectstore.NewClient(cfg.ObjectStore, logger)
			if err != nil {
				return err
			}
			commits, err := store.NewCommitStore(&cfg.DataSource, logger)
			if err != nil {
				return err
			}
			defer commits.Close()

			return transform.NewTransformer(objects, commits, cfg.ObjectStore.Bucket, logger).Run(ctx)
		},
	}
}

func validateCmd() *cobra.Command {
	var (
		failOnError bool
		tableName   string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run the data quality checks against the commits table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			commits, err := store.NewCommitStore(&cfg.DataSource, logger)
			if err != nil {
				return err
			}
			defer commits.Close()

			ds, err := commits.LoadDataset(ctx, tableName)
			if err != nil {
				return err
			}

			validator := commitflow.NewValidator(cfg.Validation, logger)
			report, runErr := validator.Run(ds, failOnError)
			if report != nil {
				renderReport(report)
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&failOnError, "fail-on-error", true, "Exit non-zero when any check fails")
	cmd.Flags().StringVar(&tableName, "table", store.RawCommitsTable, "Table to validate")
	return cmd
}

func profileCmd() *cobra.Command {
	var tableName string

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Print descriptive statistics for the commits table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			commits, err := store.NewCommitStore(&cfg.DataSource, logger)
			if err != nil {
				return err
			}
			defer commits.Close()

			ds, err := commits.LoadDataset(ctx, tableName)
			if err != nil {
				return err
			}

			profile := commitflow.ProfileDataset(ds, tableName)
			data, err := json.MarshalIndent(profile, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}

	cmd.Flags().StringVar(&tableName, "table", store.RawCommitsTable, "Table to profile")
	return cmd
}

func trainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Engineer features and train the merge-commit classifier",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			trainer, closeStores, err := buildTrainer(cfg, logger)
			if err != nil {
				return err
			}
			defer closeStores()

			return trainer.Run(ctx)
		},
	}
}

func runCmd() *cobra.Command {
	var cronSpec string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline: ingest, transform, validate, train",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			if cronSpec == "" {
				ctx, cancel := signalContext()
				defer cancel()
				return runPipeline(ctx, cfg, logger)
			}

			scheduler := cron.New()
			_, err = scheduler.AddFunc(cronSpec, func() {
				ctx, cancel := signalContext()
				defer cancel()
				if err := runPipeline(ctx, cfg, logger); err != nil {
					logger.Error("scheduled pipeline run failed", "error", err.Error())
				}
			})
			if err != nil {
				return fmt.Errorf("invalid cron spec %q: %w", cronSpec, err)
			}

			logger.Info("starting pipeline scheduler", "cron", cronSpec)
			scheduler.Run()
			return nil
		},
	}

	cmd.Flags().StringVar(&cronSpec, "cron", "", "Run on a cron schedule instead of once")
	return cmd
}

// runPipeline executes the stages in order and halts before the ML stage
// when validation fails.
func runPipeline(ctx context.Context, cfg *commitflow.Config, logger *slog.Logger) error {
	objects, err := objectstore.NewClient(cfg.ObjectStore, logger)
	if err != nil {
		return err
	}
	commits, err := store.NewCommitStore(&cfg.DataSource, logger)
	if err != nil {
		return err
	}
	defer commits.Close()

	ingestor := ingest.NewIngestor(ingest.NewGithubClient(cfg.Github, logger), objects, cfg, logger)
	if _, err := ingestor.Run(ctx); err != nil {
		return err
	}

	if err := transform.NewTransformer(objects, commits, cfg.ObjectStore.Bucket, logger).Run(ctx); err != nil {
		return err
	}

	ds, err := commits.LoadDataset(ctx, store.RawCommitsTable)
	if err != nil {
		return err
	}
	validator := commitflow.NewValidator(cfg.Validation, logger)
	report, err := validator.Run(ds, true)
	if report != nil {
		renderReport(report)
	}
	if err != nil {
		return err
	}

	trainer, closeStores, err := buildTrainer(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStores()

	return trainer.Run(ctx)
}

func buildTrainer(cfg *commitflow.Config, logger *slog.Logger) (*ml.Trainer, func(), error) {
	commits, err := store.NewCommitStore(&cfg.DataSource, logger)
	if err != nil {
		return nil, nil, err
	}

	var warehouse store.CommitStore
	if cfg.Warehouse != nil {
		warehouse, err = store.NewCommitStore(cfg.Warehouse, logger)
		if err != nil {
			commits.Close()
			return nil, nil, err
		}
	}

	objects, err := objectstore.NewClient(cfg.ObjectStore, logger)
	if err != nil {
		commits.Close()
		if warehouse != nil {
			warehouse.Close()
		}
		return nil, nil, err
	}

	tracker := tracking.NewTracker(objects, cfg.Tracking, logger)
	trainer := ml.NewTrainer(commits, warehouse, tracker, ml.DefaultTrainConfig(), logger)

	closeStores := func() {
		commits.Close()
		if warehouse != nil {
			warehouse.Close()
		}
	}
	return trainer, closeStores, nil
}

func renderReport(report *commitflow.Report) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"CHECK", "STATUS", "MESSAGE"})

	for _, res := range report.Results.Passed {
		t.AppendRow(table.Row{res.Name, res.Status, res.Message})
	}
	for _, res := range report.Results.Warnings {
		t.AppendRow(table.Row{res.Name, res.Status, res.Message})
	}
	for _, res := range report.Results.Failed {
		t.AppendRow(table.Row{res.Name, res.Status, res.Message})
	}

	t.AppendFooter(table.Row{"SUCCESS RATE", fmt.Sprintf("%.2f%%", report.Summary.SuccessRate), ""})
	t.Render()
}
