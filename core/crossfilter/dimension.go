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

package crossfilter

import (
	"fmt"
	"slices"
	"sort"

	"github.com/google/facetfilter/core/records"
	"github.com/google/facetfilter/core/values"
)

// KeyFunc projects a record to a dimension key. It must be pure and total.
type KeyFunc func(r records.Record) (values.Value, error)

// DimensionSpec names a dimension and its key function.
type DimensionSpec struct {
	Name string
	Key  KeyFunc
}

// Dimension is a filter axis: every record projected to a sortable key,
// with a sorted index used to apply filters incrementally.
//
// The records accepted by the current filter always form the contiguous
// interval [lo, hi) of the sorted index, so a filter change only walks the
// positions entering or leaving that interval.
type Dimension struct {
	engine *Engine
	name   string
	bit    uint64

	keys   []values.Value // record id -> key
	index  []int32        // record ids sorted by key, ties by id
	sorted []values.Value // keys in index order

	lo, hi    int
	criterion Criterion
}

func newDimension(e *Engine, spec DimensionSpec, ordinal int) (*Dimension, error) {
	n := e.dataset.Size()
	d := &Dimension{
		engine: e,
		name:   spec.Name,
		bit:    1 << uint(ordinal),
		keys:   make([]values.Value, n),
		index:  make([]int32, n),
		sorted: make([]values.Value, n),
		hi:     n,
	}

	for id, rec := range e.dataset.Records() {
		key, err := evalKey(spec.Key, rec)
		if err != nil {
			return nil, &KeyFunctionError{Dimension: spec.Name, Record: id, Err: err}
		}
		d.keys[id] = key
		d.index[id] = int32(id)
	}

	sort.SliceStable(d.index, func(i, j int) bool {
		return values.Less(d.keys[d.index[i]], d.keys[d.index[j]])
	})
	for pos, id := range d.index {
		d.sorted[pos] = d.keys[id]
	}
	return d, nil
}

// evalKey runs a key function, turning a panic into an error.
func evalKey(fn KeyFunc, rec records.Record) (key values.Value, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(rec)
}

// Name returns the dimension name.
func (d *Dimension) Name() string { return d.name }

// Criterion returns the active filter.
func (d *Dimension) Criterion() Criterion { return d.criterion }

// Key returns the key of a record.
func (d *Dimension) Key(id int) values.Value { return d.keys[id] }

// FilterExact keeps only records whose key equals key.
func (d *Dimension) FilterExact(key values.Value) {
	d.Filter(Exact(key))
}

// FilterRange keeps only records with lo <= key < hi.
func (d *Dimension) FilterRange(lo, hi values.Value) {
	d.Filter(Range(lo, hi))
}

// FilterAll clears the filter of this dimension.
func (d *Dimension) FilterAll() {
	d.Filter(All())
}

// Filter applies c to this dimension and updates every group of the engine
// that is not built on this dimension.
func (d *Dimension) Filter(c Criterion) {
	lo, hi := d.bounds(c)
	d.engine.moveInterval(d, lo, hi)
	d.criterion = c
}

// bounds returns the interval of the sorted index accepted by c.
func (d *Dimension) bounds(c Criterion) (int, int) {
	switch c.kind {
	case CriterionExact:
		return d.lowerBound(c.key), d.upperBound(c.key)
	case CriterionRange:
		lo := d.lowerBound(c.lo)
		if values.Compare(c.lo, c.hi) >= 0 {
			return lo, lo
		}
		return lo, d.lowerBound(c.hi)
	default:
		return 0, len(d.index)
	}
}

// lowerBound returns the first position whose key is >= key.
func (d *Dimension) lowerBound(key values.Value) int {
	return sort.Search(len(d.sorted), func(i int) bool {
		return values.Compare(d.sorted[i], key) >= 0
	})
}

// upperBound returns the first position whose key is > key.
func (d *Dimension) upperBound(key values.Value) int {
	return sort.Search(len(d.sorted), func(i int) bool {
		return values.Compare(d.sorted[i], key) > 0
	})
}

// Top returns up to k record ids with the highest keys among records that
// pass every filter, highest first.
func (d *Dimension) Top(k int) []int {
	if k <= 0 {
		return nil
	}
	out := make([]int, 0, min(k, d.hi-d.lo))
	for pos := d.hi - 1; pos >= d.lo && len(out) < k; pos-- {
		if id := d.index[pos]; d.engine.sel.passes(id) {
			out = append(out, int(id))
		}
	}
	return out
}

// Bottom returns up to k record ids with the lowest keys among records that
// pass every filter, lowest first.
func (d *Dimension) Bottom(k int) []int {
	if k <= 0 {
		return nil
	}
	out := make([]int, 0, min(k, d.hi-d.lo))
	for pos := d.lo; pos < d.hi && len(out) < k; pos++ {
		if id := d.index[pos]; d.engine.sel.passes(id) {
			out = append(out, int(id))
		}
	}
	return out
}

// Keys returns the distinct keys of the dimension in ascending order.
func (d *Dimension) Keys() []values.Value {
	return slices.CompactFunc(slices.Clone(d.sorted), values.Equal)
}
