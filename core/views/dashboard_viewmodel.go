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

// Package views turns engine state into view models for the dashboard templates.
package views

import (
	"sort"

	"github.com/google/safehtml"

	"github.com/google/facetfilter/core/aggregates"
	"github.com/google/facetfilter/core/crossfilter"
	"github.com/google/facetfilter/core/query"
	"github.com/google/facetfilter/core/values"
)

// DashboardViewModel contains the engine state formatted for template consumption
type DashboardViewModel struct {
	Title         string
	DataSize      int          // Number of records in the dataset
	SelectedCount int          // Number of records passing every filter
	ResetURL      safehtml.URL // URL clearing every filter
	Filters       []FilterInfo // Active filters, by dimension name
	Groups        []GroupViewModel
}

// FilterInfo describes one active filter
type FilterInfo struct {
	Dimension string
	Criterion string
	ClearURL  safehtml.URL
}

// GroupViewModel is one facet list of the dashboard
type GroupViewModel struct {
	Name      string
	Title     string
	Dimension string
	Filtered  bool         // Whether the group's own dimension is filtered
	ClearURL  safehtml.URL // URL clearing the group's dimension
	Items     []BucketItem
}

// BucketItem is one clickable bucket of a group
type BucketItem struct {
	Key       string
	Value     string
	Label     string       // "key : value" as displayed
	FilterURL safehtml.URL // URL selecting this bucket
	IsEmpty   bool         // Whether the bucket currently counts no records
	IsActive  bool         // Whether the dimension filter selects exactly this bucket
}

// Options controls titles shown on the dashboard.
type Options struct {
	Title       string
	GroupTitles map[string]string // group name -> display title
}

// BuildDashboardViewModel reads every group snapshot of the engine.
func BuildDashboardViewModel(e *crossfilter.Engine, opts Options) *DashboardViewModel {
	vm := &DashboardViewModel{
		Title:         opts.Title,
		DataSize:      e.Size(),
		SelectedCount: e.SelectedCount(),
		ResetURL:      query.ResetURL(),
	}

	filters := e.Filters()
	names := make([]string, 0, len(filters))
	for name := range filters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		vm.Filters = append(vm.Filters, FilterInfo{
			Dimension: name,
			Criterion: filters[name].String(),
			ClearURL:  query.ClearURL(name),
		})
	}

	for _, g := range e.Groups() {
		vm.Groups = append(vm.Groups, buildGroupViewModel(g, opts.GroupTitles[g.Name()]))
	}
	return vm
}

func buildGroupViewModel(g *crossfilter.Group, title string) GroupViewModel {
	if title == "" {
		title = g.Name()
	}
	dim := g.Dimension()
	active := dim.Criterion()

	gvm := GroupViewModel{
		Name:      g.Name(),
		Title:     title,
		Dimension: dim.Name(),
		Filtered:  !active.IsAll(),
		ClearURL:  query.ClearURL(dim.Name()),
		Items:     make([]BucketItem, 0, g.Size()),
	}
	for kv := range g.All() {
		key := kv.Key.Text()
		value := FormatValue(kv.Value)
		count, hasCount := aggregates.Count(kv.Value)
		gvm.Items = append(gvm.Items, BucketItem{
			Key:       key,
			Value:     value,
			Label:     key + " : " + value,
			FilterURL: query.FilterURL(g.Name(), kv.Key),
			IsEmpty:   hasCount && count == 0,
			IsActive:  gvm.Filtered && sameCriterion(active, g.Selector(kv.Key)),
		})
	}
	return gvm
}

// FormatValue formats an accumulator for display. Composite accumulators
// are wrapped in braces: "{ count : 3 | total : 12.50 }".
func FormatValue(acc any) string {
	s := aggregates.Format(acc)
	switch acc.(type) {
	case int, int64, float64:
		return s
	default:
		return "{ " + s + " }"
	}
}

func sameCriterion(a, b crossfilter.Criterion) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case crossfilter.CriterionExact:
		return values.Equal(a.Key(), b.Key())
	case crossfilter.CriterionRange:
		alo, ahi := a.Bounds()
		blo, bhi := b.Bounds()
		return values.Equal(alo, blo) && values.Equal(ahi, bhi)
	default:
		return true
	}
}
