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

package config

import (
	"fmt"

	"github.com/google/facetfilter/core/aggregates"
	"github.com/google/facetfilter/core/crossfilter"
	"github.com/google/facetfilter/core/facets"
	"github.com/google/facetfilter/core/records"
)

// Schema returns the record schema of the dataset section.
func (c *Config) Schema() (records.Schema, error) {
	loc, err := c.Dataset.location()
	if err != nil {
		return records.Schema{}, err
	}
	return records.Schema{
		Required:   append([]string(nil), c.Dataset.Required...),
		Timestamps: append([]string(nil), c.Dataset.Timestamps...),
		Location:   loc,
	}, nil
}

// EngineSpecs translates the dimension and group sections into engine specs.
func (c *Config) EngineSpecs() ([]crossfilter.DimensionSpec, []crossfilter.GroupSpec, error) {
	dims := make([]crossfilter.DimensionSpec, 0, len(c.Dimensions))
	for _, d := range c.Dimensions {
		key, err := facets.Key(d.Key, d.Field)
		if err != nil {
			return nil, nil, fmt.Errorf("dimension %q: %w", d.Name, err)
		}
		dims = append(dims, crossfilter.DimensionSpec{Name: d.Name, Key: key})
	}

	groups := make([]crossfilter.GroupSpec, 0, len(c.Groups))
	for _, g := range c.Groups {
		spec, err := g.spec()
		if err != nil {
			return nil, nil, fmt.Errorf("group %q: %w", g.Name, err)
		}
		groups = append(groups, spec)
	}
	return dims, groups, nil
}

func (g GroupConfig) spec() (crossfilter.GroupSpec, error) {
	spec := crossfilter.GroupSpec{Name: g.Name, Dimension: g.Dimension}

	bucketing := facets.Identity()
	if b := g.Bucket; b != nil {
		var err error
		bucketing, err = facets.NewBucketing(b.Kind, b.Width, b.Bands, b.Default)
		if err != nil {
			return spec, err
		}
	}
	spec.Bucket = bucketing.Bucket
	spec.Select = bucketing.Select

	if r := g.Reduce; r != nil {
		reducer, err := aggregates.NewReducer(r.Kind, r.Field)
		if err != nil {
			return spec, err
		}
		spec.Reduce = &reducer
	}

	switch g.Order {
	case "ascending":
		spec.Order = crossfilter.OrderAscending
	case "first_seen":
		spec.Order = crossfilter.OrderFirstSeen
	default:
		spec.Order = crossfilter.OrderNatural
	}
	return spec, nil
}

// Group returns the configuration of the named group.
func (c *Config) Group(name string) (GroupConfig, bool) {
	for _, g := range c.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return GroupConfig{}, false
}
