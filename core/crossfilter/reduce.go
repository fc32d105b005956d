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
	"github.com/google/facetfilter/core/records"
)

// Reducer is the reduce triple of a group. Add and Remove must be exact
// inverses: Remove(Add(acc, r), r) must equal acc for every record r.
// Accumulators should be values (not pointers) so that snapshots taken at
// different times do not alias.
type Reducer struct {
	Add     func(acc any, r records.Record) any
	Remove  func(acc any, r records.Record) any
	Initial func() any
}

// Reduce builds a Reducer from typed functions.
func Reduce[T any](add, remove func(acc T, r records.Record) T, initial func() T) Reducer {
	return Reducer{
		Add:     func(acc any, r records.Record) any { return add(acc.(T), r) },
		Remove:  func(acc any, r records.Record) any { return remove(acc.(T), r) },
		Initial: func() any { return initial() },
	}
}

// CountReducer counts records. It is the default reducer of a group; its
// accumulator is an int.
func CountReducer() Reducer {
	return Reduce(
		func(n int, _ records.Record) int { return n + 1 },
		func(n int, _ records.Record) int { return n - 1 },
		func() int { return 0 },
	)
}

func (r Reducer) valid() bool {
	return r.Add != nil && r.Remove != nil && r.Initial != nil
}
