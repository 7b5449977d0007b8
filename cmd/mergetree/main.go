// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Command mergetree runs a synthetic merge workload against in-memory
// tables: a quick way to observe selection, backoff and reservation
// behavior without a real storage engine around the subsystem.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/snowzjy/ClickHouse/internal/base"
	"github.com/snowzjy/ClickHouse/internal/bgpool"
	"github.com/snowzjy/ClickHouse/internal/diskspace"
	"github.com/snowzjy/ClickHouse/mergetree"
)

func main() {
	root := &cobra.Command{
		Use:   "mergetree",
		Short: "background merge subsystem tooling",
	}
	root.AddCommand(simulateCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type simulateConfig struct {
	Tables            int           `yaml:"tables"`
	Workers           int           `yaml:"workers"`
	PartsPerTable     int           `yaml:"parts_per_table"`
	PartSize          uint64        `yaml:"part_size"`
	AppendInterval    time.Duration `yaml:"append_interval"`
	Duration          time.Duration `yaml:"duration"`
	MaxMergeWriteRate int64         `yaml:"max_merge_write_rate"`
}

func (c *simulateConfig) ensureDefaults() {
	if c.Tables <= 0 {
		c.Tables = 4
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.PartsPerTable <= 0 {
		c.PartsPerTable = 64
	}
	if c.PartSize == 0 {
		c.PartSize = 1 << 20
	}
	if c.AppendInterval <= 0 {
		c.AppendInterval = 10 * time.Millisecond
	}
	if c.Duration <= 0 {
		c.Duration = 5 * time.Second
	}
}

func simulateCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "run a synthetic append+merge workload",
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg simulateConfig
			if configPath != "" {
				data, err := os.ReadFile(configPath)
				if err != nil {
					return err
				}
				if err := yaml.Unmarshal(data, &cfg); err != nil {
					return err
				}
			}
			cfg.ensureDefaults()
			return simulate(cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "yaml config file")
	return cmd
}

// zapLogger adapts a zap sugared logger to base.Logger.
type zapLogger struct {
	s *zap.SugaredLogger
}

func (l zapLogger) Infof(format string, args ...interface{})  { l.s.Infof(format, args...) }
func (l zapLogger) Errorf(format string, args ...interface{}) { l.s.Errorf(format, args...) }
func (l zapLogger) Fatalf(format string, args ...interface{}) { l.s.Fatalf(format, args...) }

// syntheticExecutor produces a merge result without any I/O: sizes add up
// with a modest shrink factor, the way real merges behave.
type syntheticExecutor struct{}

func (syntheticExecutor) Execute(_ context.Context, job mergetree.MergeJob) (*mergetree.DataPart, error) {
	var size, rows uint64
	for _, p := range job.Inputs {
		size += p.Size
		rows += p.Rows
	}
	size = size * 9 / 10
	if job.Progress != nil {
		job.Progress(size)
	}
	return mergetree.NewDataPart(job.OutputName, size, rows, nil, nil), nil
}

func simulate(cfg simulateConfig) error {
	zl, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()
	logger := zapLogger{s: zl.Sugar()}

	pool := bgpool.NewPool(bgpool.Options{Workers: cfg.Workers, Logger: logger})
	defer pool.Close()
	monitor := diskspace.NewMonitor(os.TempDir(), diskspace.DefaultStat)

	schema := &mergetree.Schema{
		Version: 1,
		Columns: []mergetree.ColumnDef{
			{Name: "date", Type: "Date"},
			{Name: "id", Type: "UInt64"},
			{Name: "value", Type: "Int64"},
		},
		SortingKey:  []string{"id"},
		PartitionBy: "date",
	}

	tables := make([]*mergetree.StorageMergeTree, cfg.Tables)
	for i := range tables {
		listener := mergetree.MakeLoggingEventListener(logger)
		opts := mergetree.Options{
			Pool:              pool,
			DiskMonitor:       monitor,
			Executor:          syntheticExecutor{},
			Logger:            logger,
			EventListener:     &listener,
			MaxMergeWriteRate: cfg.MaxMergeWriteRate,
		}
		table, err := mergetree.Open(fmt.Sprintf("sim_%d", i), os.TempDir(), schema, opts)
		if err != nil {
			return err
		}
		tables[i] = table
		defer table.Shutdown()
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	for _, table := range tables {
		table := table
		g.Go(func() error {
			ticker := time.NewTicker(cfg.AppendInterval)
			defer ticker.Stop()
			for appended := 0; appended < cfg.PartsPerTable; appended++ {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
				block := table.AllocateBlock()
				part := mergetree.NewDataPart(
					base.PartName{PartitionID: "all", MinBlock: block, MaxBlock: block},
					cfg.PartSize, cfg.PartSize/64, nil, nil)
				if err := table.Append(part); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, table := range tables {
		for table.Optimize() {
		}
		snap, err := table.Read()
		if err != nil {
			return err
		}
		logger.Infof("[%s] final parts: %d, schema version %d",
			table.Name(), len(snap.Parts.Parts), snap.Schema.Version)
		snap.Close()
	}
	return nil
}
