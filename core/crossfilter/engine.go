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

// Package crossfilter implements a multi-dimensional faceted filter with
// incrementally maintained group aggregates.
//
// An Engine owns a dataset, a set of dimensions (filter axes) and a set of
// groups (aggregations over one dimension). Filtering a dimension updates
// every group except the groups built on that same dimension, touching only
// the records whose selection changed.
//
// An Engine is not safe for concurrent use.
package crossfilter

import (
	"log/slog"

	"github.com/google/facetfilter/core/records"
	"github.com/google/facetfilter/core/values"
)

// Stats counts the work done by filter changes since the engine was built
// or the stats were last reset.
type Stats struct {
	FilterChanges  int64 `json:"filter_changes"`
	RecordsVisited int64 `json:"records_visited"` // sorted index positions walked
	Reductions     int64 `json:"reductions"`      // Add/Remove calls on group accumulators
}

// Engine is the cross-filter coordinator.
type Engine struct {
	dataset *records.Dataset
	sel     *selection

	dims        []*Dimension
	dimByName   map[string]*Dimension
	groups      []*Group
	groupByName map[string]*Group

	stats  Stats
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for build summaries.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// Build creates an engine over ds with the given dimensions and groups, in
// that order. Every record starts selected.
func Build(ds *records.Dataset, dims []DimensionSpec, groups []GroupSpec, opts ...Option) (*Engine, error) {
	if ds == nil {
		return nil, configErrorf("nil dataset")
	}
	if len(dims) > MaxDimensions {
		return nil, configErrorf("%d dimensions exceed the limit of %d", len(dims), MaxDimensions)
	}

	e := &Engine{
		dataset:     ds,
		sel:         newSelection(ds.Size()),
		dimByName:   make(map[string]*Dimension, len(dims)),
		groupByName: make(map[string]*Group, len(groups)),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	for i, spec := range dims {
		if spec.Name == "" {
			return nil, configErrorf("dimension %d has no name", i)
		}
		if _, dup := e.dimByName[spec.Name]; dup {
			return nil, configErrorf("duplicate dimension %q", spec.Name)
		}
		if spec.Key == nil {
			return nil, configErrorf("dimension %q has no key function", spec.Name)
		}
		d, err := newDimension(e, spec, i)
		if err != nil {
			return nil, err
		}
		e.dims = append(e.dims, d)
		e.dimByName[spec.Name] = d
	}

	for i, spec := range groups {
		if spec.Name == "" {
			return nil, configErrorf("group %d has no name", i)
		}
		if _, dup := e.groupByName[spec.Name]; dup {
			return nil, configErrorf("duplicate group %q", spec.Name)
		}
		d, ok := e.dimByName[spec.Dimension]
		if !ok {
			return nil, configErrorf("group %q references unknown dimension %q", spec.Name, spec.Dimension)
		}
		if spec.Reduce != nil && !spec.Reduce.valid() {
			return nil, configErrorf("group %q has an incomplete reducer", spec.Name)
		}
		g, err := newGroup(e, spec, d)
		if err != nil {
			return nil, err
		}
		e.groups = append(e.groups, g)
		e.groupByName[spec.Name] = g
	}

	e.stats = Stats{}
	e.logger.Debug("crossfilter engine built",
		"records", ds.Size(),
		"dimensions", len(e.dims),
		"groups", len(e.groups))
	return e, nil
}

// moveInterval changes the accepted interval of d's sorted index to
// [lo1, hi1) and updates the selection and every group not built on d.
// Only positions in the symmetric difference of the old and new intervals
// are visited.
func (e *Engine) moveInterval(d *Dimension, lo1, hi1 int) {
	lo0, hi0 := d.lo, d.hi
	if hi1 < lo1 {
		hi1 = lo1
	}
	e.stats.FilterChanges++

	// Records leaving the interval.
	e.leave(d, lo0, min(hi0, lo1))
	e.leave(d, max(lo0, hi1), hi0)
	// Records entering the interval.
	e.enter(d, lo1, min(hi1, lo0))
	e.enter(d, max(lo1, hi0), hi1)

	d.lo, d.hi = lo1, hi1
}

func (e *Engine) leave(d *Dimension, from, to int) {
	for pos := from; pos < to; pos++ {
		id := d.index[pos]
		others := e.sel.exclude(id, d.bit) &^ d.bit
		e.stats.RecordsVisited++
		for _, g := range e.groups {
			if g.dim != d && others&^g.dim.bit == 0 {
				g.remove(e, id)
			}
		}
	}
}

func (e *Engine) enter(d *Dimension, from, to int) {
	for pos := from; pos < to; pos++ {
		id := d.index[pos]
		others := e.sel.include(id, d.bit) &^ d.bit
		e.stats.RecordsVisited++
		for _, g := range e.groups {
			if g.dim != d && others&^g.dim.bit == 0 {
				g.add(e, id)
			}
		}
	}
}

// Dimension returns the named dimension.
func (e *Engine) Dimension(name string) (*Dimension, error) {
	d, ok := e.dimByName[name]
	if !ok {
		return nil, &UnknownNameError{Kind: "dimension", Name: name}
	}
	return d, nil
}

// Group returns the named group.
func (e *Engine) Group(name string) (*Group, error) {
	g, ok := e.groupByName[name]
	if !ok {
		return nil, &UnknownNameError{Kind: "group", Name: name}
	}
	return g, nil
}

// Dimensions returns the dimensions in construction order.
func (e *Engine) Dimensions() []*Dimension {
	return append([]*Dimension(nil), e.dims...)
}

// Groups returns the groups in construction order.
func (e *Engine) Groups() []*Group {
	return append([]*Group(nil), e.groups...)
}

// ApplyFilter sets the filter of the named dimension.
func (e *Engine) ApplyFilter(dimension string, c Criterion) error {
	d, err := e.Dimension(dimension)
	if err != nil {
		return err
	}
	d.Filter(c)
	return nil
}

// ClearFilter removes the filter of the named dimension.
func (e *Engine) ClearFilter(dimension string) error {
	return e.ApplyFilter(dimension, All())
}

// ClearAll removes every filter.
func (e *Engine) ClearAll() {
	for _, d := range e.dims {
		if !d.criterion.IsAll() {
			d.FilterAll()
		}
	}
}

// SelectBucket filters the dimension of the named group to the records of
// one of its buckets, as translated by the group's select function.
func (e *Engine) SelectBucket(group string, bucket values.Value) error {
	g, err := e.Group(group)
	if err != nil {
		return err
	}
	g.dim.Filter(g.Selector(bucket))
	return nil
}

// GroupSnapshot returns the current buckets of the named group.
func (e *Engine) GroupSnapshot(group string) ([]KeyValue, error) {
	g, err := e.Group(group)
	if err != nil {
		return nil, err
	}
	return g.Snapshot(), nil
}

// Filters returns the active criterion of every filtered dimension.
func (e *Engine) Filters() map[string]Criterion {
	out := make(map[string]Criterion)
	for _, d := range e.dims {
		if !d.criterion.IsAll() {
			out[d.name] = d.criterion
		}
	}
	return out
}

// Size returns the number of records in the dataset.
func (e *Engine) Size() int { return e.dataset.Size() }

// SelectedCount returns the number of records passing every filter.
func (e *Engine) SelectedCount() int { return e.sel.count() }

// Selected returns the ids of the records passing every filter, ascending.
func (e *Engine) Selected() []int { return e.sel.ids() }

// Dataset returns the dataset the engine was built on.
func (e *Engine) Dataset() *records.Dataset { return e.dataset }

// Stats returns the work counters.
func (e *Engine) Stats() Stats { return e.stats }

// ResetStats zeroes the work counters.
func (e *Engine) ResetStats() { e.stats = Stats{} }
