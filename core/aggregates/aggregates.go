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

// Package aggregates provides invertible aggregate states and the reducers
// that maintain them inside crossfilter groups.
//
// Every state is a value type with Add and Remove methods that are exact
// inverses up to floating point rounding, so a group can move records in
// and out of a bucket without rescanning it.
package aggregates

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/facetfilter/core/crossfilter"
	"github.com/google/facetfilter/core/records"
)

// AggregateType selects the figure a state reports when formatted.
type AggregateType int

const (
	AggCount AggregateType = iota
	AggSum
	AggAvg
	AggStdDev
	AggTrue
	AggFalse
	AggRatio
	AggTotal
)

var aggregateNames = map[AggregateType]string{
	AggCount:  "count",
	AggSum:    "sum",
	AggAvg:    "avg",
	AggStdDev: "stddev",
	AggTrue:   "true",
	AggFalse:  "false",
	AggRatio:  "ratio",
	AggTotal:  "total",
}

func (a AggregateType) String() string {
	if name, ok := aggregateNames[a]; ok {
		return name
	}
	return fmt.Sprintf("AggregateType(%d)", int(a))
}

// Symbol returns the short symbol shown next to a formatted aggregate.
func (a AggregateType) Symbol() string {
	switch a {
	case AggCount:
		return "#"
	case AggSum, AggTotal:
		return "Σ"
	case AggAvg:
		return "μ"
	case AggStdDev:
		return "σ"
	case AggTrue:
		return "✓"
	case AggFalse:
		return "✗"
	case AggRatio:
		return "%"
	default:
		return "?"
	}
}

// ParseAggregateType returns the aggregate type with the given name.
func ParseAggregateType(s string) (AggregateType, error) {
	for a, name := range aggregateNames {
		if strings.EqualFold(s, name) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown aggregate %q", s)
}

// State is implemented by every accumulator in this package.
type State interface {
	// Format returns the formatted figure for aggType, or "-" when the
	// state cannot report it or holds no records.
	Format(aggType AggregateType) string
}

// NumericState stores count, sum and sum of squares of a numeric field.
// Min and max are not kept since they cannot be maintained under removal.
type NumericState struct {
	Count int64   `json:"count"`
	Sum   float64 `json:"sum"`
	SumSq float64 `json:"sum_sq"`
}

// Add returns the state with value added.
func (s NumericState) Add(value float64) NumericState {
	return NumericState{Count: s.Count + 1, Sum: s.Sum + value, SumSq: s.SumSq + value*value}
}

// Remove returns the state with value removed.
func (s NumericState) Remove(value float64) NumericState {
	return NumericState{Count: s.Count - 1, Sum: s.Sum - value, SumSq: s.SumSq - value*value}
}

// Avg returns the average (mean) of the values.
func (s NumericState) Avg() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.Sum / float64(s.Count)
}

// StdDev returns the population standard deviation.
func (s NumericState) StdDev() float64 {
	if s.Count == 0 {
		return 0
	}
	mean := s.Avg()
	// Variance = E[X²] - (E[X])²
	variance := (s.SumSq / float64(s.Count)) - (mean * mean)
	if variance < 0 {
		// Handle floating point precision issues
		variance = 0
	}
	return math.Sqrt(variance)
}

// Format returns a formatted string for the given aggregate type.
func (s NumericState) Format(aggType AggregateType) string {
	if s.Count == 0 {
		return "-"
	}
	switch aggType {
	case AggCount:
		return fmt.Sprintf("%d", s.Count)
	case AggSum, AggTotal:
		return formatNumber(s.Sum)
	case AggAvg:
		return formatNumber(s.Avg())
	case AggStdDev:
		return formatNumber(s.StdDev())
	default:
		return "-"
	}
}

// BoolState stores the number of true and false values of a field.
type BoolState struct {
	Count      int64 `json:"count"`
	TrueCount  int64 `json:"true"`
	FalseCount int64 `json:"false"`
}

// Add returns the state with value added.
func (s BoolState) Add(value bool) BoolState {
	s.Count++
	if value {
		s.TrueCount++
	} else {
		s.FalseCount++
	}
	return s
}

// Remove returns the state with value removed.
func (s BoolState) Remove(value bool) BoolState {
	s.Count--
	if value {
		s.TrueCount--
	} else {
		s.FalseCount--
	}
	return s
}

// Ratio returns the ratio of true values to total (0.0 to 1.0).
func (s BoolState) Ratio() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.TrueCount) / float64(s.Count)
}

// Format returns a formatted string for the given aggregate type.
func (s BoolState) Format(aggType AggregateType) string {
	if s.Count == 0 {
		return "-"
	}
	switch aggType {
	case AggCount:
		return fmt.Sprintf("%d", s.Count)
	case AggTrue:
		return fmt.Sprintf("%d", s.TrueCount)
	case AggFalse:
		return fmt.Sprintf("%d", s.FalseCount)
	case AggRatio:
		return fmt.Sprintf("%.1f%%", s.Ratio()*100)
	default:
		return "-"
	}
}

// Sum returns a reducer summing a numeric field into a float64. Repeated
// add/remove cycles may drift by rounding; use CountTotal for exact sums.
func Sum(field string) crossfilter.Reducer {
	return crossfilter.Reduce(
		func(acc float64, r records.Record) float64 { return acc + number(r, field) },
		func(acc float64, r records.Record) float64 { return acc - number(r, field) },
		func() float64 { return 0 },
	)
}

// Numeric returns a reducer maintaining a NumericState over a field.
func Numeric(field string) crossfilter.Reducer {
	return crossfilter.Reduce(
		func(acc NumericState, r records.Record) NumericState { return acc.Add(number(r, field)) },
		func(acc NumericState, r records.Record) NumericState { return acc.Remove(number(r, field)) },
		func() NumericState { return NumericState{} },
	)
}

// Bool returns a reducer maintaining a BoolState over a field.
func Bool(field string) crossfilter.Reducer {
	return crossfilter.Reduce(
		func(acc BoolState, r records.Record) BoolState { return acc.Add(r.Value(field).Truth()) },
		func(acc BoolState, r records.Record) BoolState { return acc.Remove(r.Value(field).Truth()) },
		func() BoolState { return BoolState{} },
	)
}

// number reads a numeric field, treating absent and non-numeric values as 0
// so that add and remove stay inverse.
func number(r records.Record, field string) float64 {
	f := r.Number(field)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// ReducerKinds lists the names accepted by NewReducer.
var ReducerKinds = []string{"count", "sum", "numeric", "bool", "count_total"}

// NewReducer returns the reducer of the given kind over field. Field is
// ignored for "count".
func NewReducer(kind, field string) (crossfilter.Reducer, error) {
	if kind != "count" && kind != "" && field == "" {
		return crossfilter.Reducer{}, fmt.Errorf("reducer %q needs a field", kind)
	}
	switch kind {
	case "count", "":
		return crossfilter.CountReducer(), nil
	case "sum":
		return Sum(field), nil
	case "numeric":
		return Numeric(field), nil
	case "bool":
		return Bool(field), nil
	case "count_total":
		return CountAndTotal(field), nil
	default:
		return crossfilter.Reducer{}, fmt.Errorf("unknown reducer %q", kind)
	}
}

// Format renders any accumulator produced by the reducers of this package
// (or the default count) for display.
func Format(acc any) string {
	switch v := acc.(type) {
	case int:
		return fmt.Sprintf("%d", v)
	case int64:
		return fmt.Sprintf("%d", v)
	case float64:
		return formatNumber(v)
	case CountTotal:
		return v.String()
	case NumericState:
		if v.Count == 0 {
			return "0"
		}
		return fmt.Sprintf("%d | μ %s", v.Count, v.Format(AggAvg))
	case BoolState:
		if v.Count == 0 {
			return "0"
		}
		return fmt.Sprintf("%d | %s", v.Count, v.Format(AggRatio))
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(acc)
	}
}

// Count returns the record count held by an accumulator, and false when
// the accumulator has no count.
func Count(acc any) (int64, bool) {
	switch v := acc.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case CountTotal:
		return v.Count, true
	case NumericState:
		return v.Count, true
	case BoolState:
		return v.Count, true
	default:
		return 0, false
	}
}

// --- Formatting helpers ---

// formatNumber formats a float64 for display, using appropriate precision.
func formatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return fmt.Sprintf("%d", int64(v))
	}
	// Show up to 2 decimal places, trimming trailing zeros
	formatted := strings.TrimRight(fmt.Sprintf("%.2f", v), "0")
	return strings.TrimSuffix(formatted, ".")
}
