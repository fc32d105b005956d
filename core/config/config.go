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

// Package config loads the YAML dashboard configuration: where the dataset
// comes from, which dimensions and groups to build over it, and how the
// server runs.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/google/facetfilter/core/facets"
)

// MaxConfigFileSize bounds the size of a configuration file.
const MaxConfigFileSize = 1 << 20

//go:embed dashboard.yaml
var defaultDashboardYAML []byte

// Config is the root of a dashboard configuration.
type Config struct {
	Server     ServerConfig      `yaml:"server"`
	Log        LogConfig         `yaml:"log"`
	Dataset    DatasetConfig     `yaml:"dataset"`
	Dimensions []DimensionConfig `yaml:"dimensions" validate:"required,min=1,max=64,dive"`
	Groups     []GroupConfig     `yaml:"groups" validate:"dive"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Listen string `yaml:"listen" validate:"required"`
	Title  string `yaml:"title"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// DatasetConfig describes where records are loaded from and the schema
// they are checked against.
type DatasetConfig struct {
	Path       string   `yaml:"path"`
	Format     string   `yaml:"format" validate:"omitempty,oneof=json csv"`
	Required   []string `yaml:"required"`
	Timestamps []string `yaml:"timestamps"`
	Location   string   `yaml:"location"`
}

// DimensionConfig declares a dimension keyed by a derivation of one field.
type DimensionConfig struct {
	Name  string `yaml:"name" validate:"required"`
	Field string `yaml:"field" validate:"required"`
	Key   string `yaml:"key" validate:"omitempty,oneof=value day_of_week hour_of_day month"`
}

// GroupConfig declares a group over a dimension.
type GroupConfig struct {
	Name      string        `yaml:"name" validate:"required"`
	Title     string        `yaml:"title"`
	Dimension string        `yaml:"dimension" validate:"required"`
	Bucket    *BucketConfig `yaml:"bucket"`
	Reduce    *ReduceConfig `yaml:"reduce"`
	Order     string        `yaml:"order" validate:"omitempty,oneof=natural ascending first_seen"`
}

// BucketConfig selects a bucketing of the dimension keys.
type BucketConfig struct {
	Kind    string        `yaml:"kind" validate:"required,oneof=identity floor floor_multiple bands"`
	Width   float64       `yaml:"width" validate:"gte=0"`
	Bands   []facets.Band `yaml:"bands" validate:"dive"`
	Default *facets.Band  `yaml:"default"`
}

// ReduceConfig selects the reducer of a group.
type ReduceConfig struct {
	Kind  string `yaml:"kind" validate:"required,oneof=count sum numeric bool count_total"`
	Field string `yaml:"field" validate:"required_unless=Kind count"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns the embedded customer dashboard configuration.
func Default() *Config {
	cfg, err := Parse(defaultDashboardYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded dashboard config is invalid: %v", err))
	}
	return cfg
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > MaxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, MaxConfigFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a YAML configuration. Unknown keys are errors.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Dataset.Format == "" {
		c.Dataset.Format = "json"
	}
}

// Validate checks field constraints and cross references between
// dimensions and groups.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var errs []error
	dims := make(map[string]bool, len(c.Dimensions))
	for _, d := range c.Dimensions {
		if dims[d.Name] {
			errs = append(errs, fmt.Errorf("duplicate dimension %q", d.Name))
		}
		dims[d.Name] = true
	}
	groups := make(map[string]bool, len(c.Groups))
	for _, g := range c.Groups {
		if groups[g.Name] {
			errs = append(errs, fmt.Errorf("duplicate group %q", g.Name))
		}
		groups[g.Name] = true
		if !dims[g.Dimension] {
			errs = append(errs, fmt.Errorf("group %q references unknown dimension %q", g.Name, g.Dimension))
		}
	}
	if _, err := c.Dataset.location(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (d DatasetConfig) location() (*time.Location, error) {
	if d.Location == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(d.Location)
	if err != nil {
		return nil, fmt.Errorf("invalid dataset location %q: %w", d.Location, err)
	}
	return loc, nil
}

// DisplayTitle returns the display title of a group, defaulting to its name.
func (g GroupConfig) DisplayTitle() string {
	if g.Title != "" {
		return g.Title
	}
	return g.Name
}
