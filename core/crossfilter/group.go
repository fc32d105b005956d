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
	"iter"
	"slices"

	"github.com/google/facetfilter/core/values"
)

// BucketFunc maps a dimension key to the key of the bucket it is counted in.
type BucketFunc func(key values.Value) values.Value

// SelectFunc maps a bucket key to the filter that selects that bucket on the
// group's dimension.
type SelectFunc func(bucket values.Value) Criterion

// Order controls the iteration order of a group's buckets.
type Order uint8

const (
	// OrderNatural sorts buckets by ascending key unless some key is a
	// string, in which case buckets keep first-encounter order.
	OrderNatural Order = iota
	// OrderAscending always sorts buckets by ascending key.
	OrderAscending
	// OrderFirstSeen keeps buckets in the order their first record appears.
	OrderFirstSeen
)

// GroupSpec describes a group to build on a dimension.
type GroupSpec struct {
	Name      string
	Dimension string
	Bucket    BucketFunc // identity when nil
	Reduce    *Reducer   // CountReducer when nil
	Order     Order
	Select    SelectFunc // Exact(bucket) when nil
}

// KeyValue is one bucket of a group.
type KeyValue struct {
	Key   values.Value `json:"key"`
	Value any          `json:"value"`
}

// Group aggregates the records selected for it into buckets derived from
// its dimension's keys. A record is selected for a group when it passes the
// filters of every dimension except the group's own.
type Group struct {
	name     string
	dim      *Dimension
	reduce   Reducer
	selectFn SelectFunc

	keys   []values.Value // bucket keys in iteration order
	accs   []any          // accumulators aligned with keys
	slotOf []int32        // record id -> bucket slot
	lookup map[any]int32  // bucket HashKey -> slot
}

func newGroup(e *Engine, spec GroupSpec, d *Dimension) (*Group, error) {
	g := &Group{
		name:     spec.Name,
		dim:      d,
		reduce:   CountReducer(),
		selectFn: spec.Select,
		slotOf:   make([]int32, len(d.keys)),
		lookup:   make(map[any]int32),
	}
	if spec.Reduce != nil {
		g.reduce = *spec.Reduce
	}
	if g.selectFn == nil {
		g.selectFn = Exact
	}

	hasString := false
	for id, key := range d.keys {
		bucket := key
		if spec.Bucket != nil {
			b, err := evalBucket(spec.Bucket, key)
			if err != nil {
				return nil, &KeyFunctionError{Dimension: d.name, Group: spec.Name, Record: id, Err: err}
			}
			bucket = b
		}
		h := bucket.HashKey()
		slot, ok := g.lookup[h]
		if !ok {
			slot = int32(len(g.keys))
			g.lookup[h] = slot
			g.keys = append(g.keys, bucket)
			hasString = hasString || bucket.Kind() == values.KindString
		}
		g.slotOf[id] = slot
	}

	if spec.Order == OrderAscending || (spec.Order == OrderNatural && !hasString) {
		g.sortBuckets()
	}

	g.accs = make([]any, len(g.keys))
	for i := range g.accs {
		g.accs[i] = g.reduce.Initial()
	}
	for id := range g.slotOf {
		if e.sel.passesExcept(int32(id), d.bit) {
			g.add(e, int32(id))
		}
	}
	return g, nil
}

func evalBucket(fn BucketFunc, key values.Value) (bucket values.Value, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(key), nil
}

// sortBuckets reorders buckets by ascending key and remaps record slots.
func (g *Group) sortBuckets() {
	perm := make([]int32, len(g.keys))
	for i := range perm {
		perm[i] = int32(i)
	}
	slices.SortStableFunc(perm, func(a, b int32) int {
		return values.Compare(g.keys[a], g.keys[b])
	})

	remap := make([]int32, len(perm))
	sorted := make([]values.Value, len(perm))
	for newSlot, oldSlot := range perm {
		remap[oldSlot] = int32(newSlot)
		sorted[newSlot] = g.keys[oldSlot]
	}
	g.keys = sorted
	for id, slot := range g.slotOf {
		g.slotOf[id] = remap[slot]
	}
	for h, slot := range g.lookup {
		g.lookup[h] = remap[slot]
	}
}

func (g *Group) add(e *Engine, id int32) {
	slot := g.slotOf[id]
	g.accs[slot] = g.reduce.Add(g.accs[slot], e.dataset.Record(int(id)))
	e.stats.Reductions++
}

func (g *Group) remove(e *Engine, id int32) {
	slot := g.slotOf[id]
	g.accs[slot] = g.reduce.Remove(g.accs[slot], e.dataset.Record(int(id)))
	e.stats.Reductions++
}

// Name returns the group name.
func (g *Group) Name() string { return g.name }

// Dimension returns the dimension the group is built on.
func (g *Group) Dimension() *Dimension { return g.dim }

// Size returns the number of buckets.
func (g *Group) Size() int { return len(g.keys) }

// All iterates over every bucket ever observed, including buckets whose
// accumulator is back at its initial value. The sequence reads the live
// state and may be iterated again after later filter changes.
func (g *Group) All() iter.Seq[KeyValue] {
	return func(yield func(KeyValue) bool) {
		for i, key := range g.keys {
			if !yield(KeyValue{Key: key, Value: g.accs[i]}) {
				return
			}
		}
	}
}

// Snapshot returns the current buckets as a slice.
func (g *Group) Snapshot() []KeyValue {
	return slices.Collect(g.All())
}

// Value returns the accumulator of a bucket.
func (g *Group) Value(bucket values.Value) (any, bool) {
	slot, ok := g.lookup[bucket.HashKey()]
	if !ok {
		return nil, false
	}
	return g.accs[slot], true
}

// Selector returns the criterion that selects bucket on the group's dimension.
func (g *Group) Selector(bucket values.Value) Criterion {
	return g.selectFn(bucket)
}
