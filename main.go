/*
SPDX-License-Identifier: Apache-2.0

Copyright 2024 The Taxinomia Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    https://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/google/facetfilter/core/config"
	"github.com/google/facetfilter/core/crossfilter"
	"github.com/google/facetfilter/core/query"
	"github.com/google/facetfilter/core/server"
	"github.com/google/facetfilter/core/views"
	"github.com/google/facetfilter/datasources"
	"github.com/google/facetfilter/demo"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	dataPath   string
	generate   int
	seed       int64
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "facetfilter",
		Short: "Cross-filtering facet dashboard",
		Long: `facetfilter loads a dataset, groups it along configured dimensions and
serves a dashboard where clicking a bucket filters every other facet.

Without --config the embedded customer dashboard is used. Without --data
the embedded 200 record customer sample is loaded.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Dashboard YAML configuration (default: embedded customer dashboard)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	pf.StringVar(&flags.logFormat, "log-format", "", "Log format: text or json (overrides config)")
	pf.StringVar(&flags.dataPath, "data", "", "Dataset file (overrides config dataset.path)")
	pf.IntVar(&flags.generate, "generate", 0, "Generate N synthetic customers instead of loading a file")
	pf.Int64Var(&flags.seed, "seed", demo.DefaultSeed, "Seed used with --generate")

	root.AddCommand(newServeCmd(flags), newSummaryCmd(flags), newSourcesCmd(flags))
	return root
}

func newServeCmd(flags *globalFlags) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Server.Listen = listen
			}

			d, err := newDashboard(cfg, flags, logger)
			if err != nil {
				return err
			}
			engine, err := d.buildEngine()
			if err != nil {
				return err
			}
			srv, err := server.NewServer(engine, server.Options{
				Dashboard: dashboardOptions(cfg),
				Logger:    logger,
				Reload:    d.reload,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx, cfg.Server.Listen)
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address (overrides config server.listen)")
	return cmd
}

func newSummaryCmd(flags *globalFlags) *cobra.Command {
	var (
		actions []string
		top     int
		by      string
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print every group of the dashboard",
		Long: `Print every group of the dashboard, optionally after applying dashboard
actions given as URLs.

Examples:
  facetfilter summary
  facetfilter summary --apply "/filter?group=ageDecadeGroup&key=3&type=number"
  facetfilter summary --apply "/filter?group=stateGroup&key=Texas" --apply "/clear?dimension=state"
  facetfilter summary --top 5 --by balance`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			d, err := newDashboard(cfg, flags, logger)
			if err != nil {
				return err
			}
			engine, err := d.buildEngine()
			if err != nil {
				return err
			}
			for _, action := range actions {
				if err := applyAction(engine, action); err != nil {
					return err
				}
			}
			printSummary(cmd.OutOrStdout(), engine, dashboardOptions(cfg))
			if top > 0 {
				return printTop(cmd.OutOrStdout(), engine, by, top)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&actions, "apply", nil, "Dashboard action URL to apply before printing (repeatable)")
	cmd.Flags().IntVar(&top, "top", 0, "Also list the N selected records with the highest keys")
	cmd.Flags().StringVar(&by, "by", "balance", "Dimension ranked by --top")
	return cmd
}

func newSourcesCmd(flags *globalFlags) *cobra.Command {
	var load bool

	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List the data sources and their discovered schemas",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			d, err := newDashboard(cfg, flags, logger)
			if err != nil {
				return err
			}
			if load {
				if _, err := d.manager.LoadData(d.source.Name); err != nil {
					return err
				}
			}
			return printSources(cmd.OutOrStdout(), d.manager)
		},
	}
	cmd.Flags().BoolVar(&load, "load", false, "Load each source and report its record count")
	return cmd
}

// setup loads the configuration and builds the process logger.
func setup(flags *globalFlags, logOut io.Writer) (*config.Config, *slog.Logger, error) {
	cfg := config.Default()
	if flags.configPath != "" {
		loaded, err := config.Load(flags.configPath)
		if err != nil {
			return nil, nil, err
		}
		cfg = loaded
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Log.Format = flags.logFormat
	}
	if flags.dataPath != "" {
		cfg.Dataset.Path = flags.dataPath
	}

	logger, err := newLogger(cfg.Log, logOut)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newLogger(lc config.LogConfig, out io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", lc.Level, err)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch lc.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(out, opts)), nil
	case "", "text":
		return slog.New(slog.NewTextHandler(out, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", lc.Format)
	}
}

// dataSource picks the source the dataset is loaded from: generated
// customers, a file, or the embedded sample.
func dataSource(cfg *config.Config, flags *globalFlags) *datasources.DataSource {
	switch {
	case flags.generate > 0:
		return &datasources.DataSource{
			Name:       "generated",
			SourceType: "demo",
			Config: map[string]string{
				"count": strconv.Itoa(flags.generate),
				"seed":  strconv.FormatInt(flags.seed, 10),
			},
		}
	case cfg.Dataset.Path != "":
		return &datasources.DataSource{
			Name:       strings.TrimSuffix(filepath.Base(cfg.Dataset.Path), filepath.Ext(cfg.Dataset.Path)),
			SourceType: cfg.Dataset.Format,
			Config:     map[string]string{"file_path": cfg.Dataset.Path},
		}
	default:
		return &datasources.DataSource{
			Name:       demo.SampleSourceName,
			SourceType: "demo",
			Config:     map[string]string{"sample": "true"},
		}
	}
}

// dashboard ties a configuration to the data source its engine is built from.
type dashboard struct {
	cfg     *config.Config
	logger  *slog.Logger
	manager *datasources.Manager
	source  *datasources.DataSource
}

func newDashboard(cfg *config.Config, flags *globalFlags, logger *slog.Logger) (*dashboard, error) {
	schema, err := cfg.Schema()
	if err != nil {
		return nil, err
	}

	manager := datasources.NewManager(logger)
	manager.RegisterLoader(demo.NewLoader())
	if flags.configPath != "" && flags.dataPath == "" {
		// dataset.path in a config file is relative to that file.
		manager.SetBaseDir(filepath.Dir(flags.configPath))
	}

	source := dataSource(cfg, flags)
	manager.AddSource(source, schema)
	return &dashboard{cfg: cfg, logger: logger, manager: manager, source: source}, nil
}

// buildEngine loads the dataset (cached by the manager) and indexes it.
func (d *dashboard) buildEngine() (*crossfilter.Engine, error) {
	ds, err := d.manager.LoadData(d.source.Name)
	if err != nil {
		return nil, err
	}

	dims, groups, err := d.cfg.EngineSpecs()
	if err != nil {
		return nil, err
	}
	engine, err := crossfilter.Build(ds, dims, groups, crossfilter.WithLogger(d.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to build engine: %w", err)
	}
	return engine, nil
}

// reload drops the cached dataset and rebuilds the engine from the source.
func (d *dashboard) reload() (*crossfilter.Engine, error) {
	d.manager.InvalidateCache(d.source.Name)
	return d.buildEngine()
}

func dashboardOptions(cfg *config.Config) views.Options {
	titles := make(map[string]string, len(cfg.Groups))
	for _, g := range cfg.Groups {
		titles[g.Name] = g.DisplayTitle()
	}
	return views.Options{Title: cfg.Server.Title, GroupTitles: titles}
}

func applyAction(engine *crossfilter.Engine, action string) error {
	u, err := url.Parse(action)
	if err != nil {
		return fmt.Errorf("invalid action %q: %w", action, err)
	}
	q, err := query.NewQuery(u)
	if err != nil {
		return err
	}
	return q.Apply(engine)
}

// printSummary prints the dashboard as text.
func printSummary(w io.Writer, engine *crossfilter.Engine, opts views.Options) {
	vm := views.BuildDashboardViewModel(engine, opts)

	fmt.Fprintf(w, "=== %s ===\n", vm.Title)
	fmt.Fprintf(w, "Selected %d of %d records\n", vm.SelectedCount, vm.DataSize)
	for _, f := range vm.Filters {
		fmt.Fprintf(w, "  filter %s %s\n", f.Dimension, f.Criterion)
	}

	for _, g := range vm.Groups {
		fmt.Fprintf(w, "\n%s (%s)\n", g.Title, g.Dimension)
		for _, item := range g.Items {
			marker := " "
			if item.IsActive {
				marker = "*"
			}
			fmt.Fprintf(w, " %s %s\n", marker, item.Label)
		}
	}

	stats := engine.Stats()
	fmt.Fprintf(w, "\n%d filter changes, %d records visited, %d reductions\n",
		stats.FilterChanges, stats.RecordsVisited, stats.Reductions)
}


// printTop lists the selected records with the highest keys of a dimension.
func printTop(w io.Writer, engine *crossfilter.Engine, dimension string, k int) error {
	d, err := engine.Dimension(dimension)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nTop %d by %s\n", k, dimension)
	for _, id := range d.Top(k) {
		rec := engine.Dataset().Record(id)
		fields := rec.Fields()
		parts := make([]string, 0, len(fields))
		for _, f := range fields {
			parts = append(parts, f+"="+rec.Value(f).String())
		}
		fmt.Fprintf(w, "  %s : %s\n", d.Key(id), strings.Join(parts, " "))
	}
	return nil
}

// printSources prints every registered source with its schema.
func printSources(w io.Writer, manager *datasources.Manager) error {
	for _, name := range manager.GetSourceNames() {
		source := manager.GetSource(name)
		schema, err := manager.DiscoverSchema(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "=== %s (%s) ===\n", name, source.SourceType)
		for _, col := range schema.Columns {
			fmt.Fprintf(w, "  %-12s %s\n", col.Name, col.Type)
		}
		if manager.IsLoaded(name) {
			ds, err := manager.LoadData(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "  %d records loaded\n", ds.Size())
		}
	}
	if loaded := manager.GetLoadedSources(); len(loaded) > 0 {
		fmt.Fprintf(w, "\nLoaded: %s\n", strings.Join(loaded, ", "))
	}
	return nil
}
