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
	"encoding/json"
	"fmt"

	"github.com/google/facetfilter/core/values"
)

// CriterionKind identifies the predicate a Criterion applies to a dimension.
type CriterionKind uint8

const (
	// CriterionAll accepts every record. It is the zero Criterion.
	CriterionAll CriterionKind = iota
	// CriterionExact accepts records whose key equals a value.
	CriterionExact
	// CriterionRange accepts records whose key lies in [lo, hi).
	CriterionRange
)

func (k CriterionKind) String() string {
	switch k {
	case CriterionAll:
		return "all"
	case CriterionExact:
		return "exact"
	case CriterionRange:
		return "range"
	default:
		return "unknown"
	}
}

// Criterion is a filter predicate over dimension keys.
type Criterion struct {
	kind   CriterionKind
	key    values.Value
	lo, hi values.Value
}

// All returns the criterion that accepts every record.
func All() Criterion { return Criterion{} }

// Exact returns a criterion accepting records whose key equals key.
func Exact(key values.Value) Criterion {
	return Criterion{kind: CriterionExact, key: key}
}

// Range returns a criterion accepting records with lo <= key < hi.
// An empty or inverted interval accepts nothing.
func Range(lo, hi values.Value) Criterion {
	return Criterion{kind: CriterionRange, lo: lo, hi: hi}
}

// NumberRange is shorthand for Range over numeric bounds.
func NumberRange(lo, hi float64) Criterion {
	return Range(values.Number(lo), values.Number(hi))
}

// Kind returns the kind of predicate.
func (c Criterion) Kind() CriterionKind { return c.kind }

// IsAll reports whether the criterion accepts every record.
func (c Criterion) IsAll() bool { return c.kind == CriterionAll }

// Key returns the value matched by an exact criterion.
func (c Criterion) Key() values.Value { return c.key }

// Bounds returns the half-open interval of a range criterion.
func (c Criterion) Bounds() (lo, hi values.Value) { return c.lo, c.hi }

// Match reports whether key satisfies the criterion.
func (c Criterion) Match(key values.Value) bool {
	switch c.kind {
	case CriterionExact:
		return values.Equal(key, c.key)
	case CriterionRange:
		return values.Compare(key, c.lo) >= 0 && values.Compare(key, c.hi) < 0
	default:
		return true
	}
}

func (c Criterion) String() string {
	switch c.kind {
	case CriterionExact:
		return fmt.Sprintf("= %s", c.key)
	case CriterionRange:
		return fmt.Sprintf("[%s, %s)", c.lo, c.hi)
	default:
		return "all"
	}
}

// MarshalJSON encodes the criterion as {"kind": ..., "key"|"lo","hi": ...}.
func (c Criterion) MarshalJSON() ([]byte, error) {
	out := map[string]any{"kind": c.kind.String()}
	switch c.kind {
	case CriterionExact:
		out["key"] = c.key
	case CriterionRange:
		out["lo"] = c.lo
		out["hi"] = c.hi
	}
	return json.Marshal(out)
}
