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

package datasources

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/facetfilter/core/records"
)

// Manager handles loading and caching of data sources.
// Sources are registered eagerly; data is loaded lazily on demand.
type Manager struct {
	mu sync.RWMutex

	// Source metadata indexed by name
	sources map[string]*DataSource

	// Schemas the raw records are checked against, indexed by source name
	schemas map[string]records.Schema

	// Cached datasets indexed by source name - populated lazily
	datasets map[string]*records.Dataset

	// Registered loaders indexed by source_type
	loaders map[string]DataSourceLoader

	// Base directory for resolving relative paths
	baseDir string

	logger *slog.Logger
}

// NewManager creates a new data source manager with the built-in JSON and
// CSV loaders registered.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		sources:  make(map[string]*DataSource),
		schemas:  make(map[string]records.Schema),
		datasets: make(map[string]*records.Dataset),
		loaders:  make(map[string]DataSourceLoader),
		logger:   logger,
	}
	m.RegisterLoader(NewJsonLoader())
	m.RegisterLoader(NewCsvLoaderTyped())
	return m
}

// RegisterLoader registers a data source loader for a specific source type.
// If a loader is already registered for this type, it will be replaced.
func (m *Manager) RegisterLoader(loader DataSourceLoader) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaders[loader.SourceType()] = loader
}

// SetBaseDir sets the directory relative file paths are resolved against.
func (m *Manager) SetBaseDir(dir string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baseDir = dir
}

// AddSource registers a source and the schema its records must satisfy.
// A previously cached dataset of the same name is dropped.
func (m *Manager) AddSource(source *DataSource, schema records.Schema) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[source.Name] = source
	m.schemas[source.Name] = schema
	delete(m.datasets, source.Name)
}

// GetSourceNames returns the names of all registered sources, sorted.
func (m *Manager) GetSourceNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.sources))
	for name := range m.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetSource returns the source metadata for a given name.
// Returns nil if the source is not found.
func (m *Manager) GetSource(name string) *DataSource {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sources[name]
}

// DiscoverSchema returns the schema of a registered source.
func (m *Manager) DiscoverSchema(sourceName string) (*TableSchema, error) {
	loader, config, err := m.resolve(sourceName)
	if err != nil {
		return nil, err
	}
	schema, err := loader.DiscoverSchema(config)
	if err != nil {
		return nil, fmt.Errorf("failed to discover schema for source %q: %w", sourceName, err)
	}
	return schema, nil
}

// LoadData loads the dataset of a source by name.
// Returns cached data if already loaded; otherwise loads from the source.
func (m *Manager) LoadData(sourceName string) (*records.Dataset, error) {
	// Check cache first (with read lock)
	m.mu.RLock()
	if ds, ok := m.datasets[sourceName]; ok {
		m.mu.RUnlock()
		return ds, nil
	}
	schema := m.schemas[sourceName]
	m.mu.RUnlock()

	loader, config, err := m.resolve(sourceName)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	raw, err := loader.Load(config)
	if err != nil {
		return nil, fmt.Errorf("failed to load source %q: %w", sourceName, err)
	}
	ds, err := records.Load(raw, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to load source %q: %w", sourceName, err)
	}
	m.logger.Info("loaded data source",
		"source", sourceName,
		"type", loader.SourceType(),
		"records", ds.Size(),
		"duration", time.Since(start))

	// Cache the result
	m.mu.Lock()
	m.datasets[sourceName] = ds
	m.mu.Unlock()

	return ds, nil
}

func (m *Manager) resolve(sourceName string) (DataSourceLoader, map[string]string, error) {
	m.mu.RLock()
	source, ok := m.sources[sourceName]
	if !ok {
		m.mu.RUnlock()
		return nil, nil, fmt.Errorf("source %q not found", sourceName)
	}
	loader, hasLoader := m.loaders[source.SourceType]
	baseDir := m.baseDir
	m.mu.RUnlock()

	if !hasLoader {
		return nil, nil, fmt.Errorf("no loader registered for source type %q", source.SourceType)
	}
	return loader, resolveConfigPaths(source.Config, baseDir), nil
}

// resolveConfigPaths resolves relative file paths in config to absolute paths.
func resolveConfigPaths(config map[string]string, baseDir string) map[string]string {
	if baseDir == "" {
		return config
	}

	resolved := make(map[string]string, len(config))
	for k, v := range config {
		if k == "file_path" && v != "" && !filepath.IsAbs(v) {
			resolved[k] = filepath.Join(baseDir, v)
		} else {
			resolved[k] = v
		}
	}
	return resolved
}

// InvalidateCache removes a source from the cache, forcing reload on next access.
func (m *Manager) InvalidateCache(sourceName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.datasets, sourceName)
}

// IsLoaded returns whether data for a source is currently cached.
func (m *Manager) IsLoaded(sourceName string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.datasets[sourceName]
	return ok
}

// GetLoadedSources returns names of all currently loaded (cached) sources, sorted.
func (m *Manager) GetLoadedSources() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.datasets))
	for name := range m.datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
