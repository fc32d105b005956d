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

package aggregates

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/google/facetfilter/core/crossfilter"
	"github.com/google/facetfilter/core/records"
)

// CountTotal is a record count paired with the exact total of a money field.
type CountTotal struct {
	Count int64
	Total decimal.Decimal
}

// Add returns the state with one record of the given amount added.
func (s CountTotal) Add(amount decimal.Decimal) CountTotal {
	return CountTotal{Count: s.Count + 1, Total: s.Total.Add(amount)}
}

// Remove returns the state with one record of the given amount removed.
func (s CountTotal) Remove(amount decimal.Decimal) CountTotal {
	return CountTotal{Count: s.Count - 1, Total: s.Total.Sub(amount)}
}

// Equal reports whether both states hold the same count and total.
func (s CountTotal) Equal(o CountTotal) bool {
	return s.Count == o.Count && s.Total.Equal(o.Total)
}

// Format returns a formatted string for the given aggregate type.
func (s CountTotal) Format(aggType AggregateType) string {
	switch aggType {
	case AggCount:
		return fmt.Sprintf("%d", s.Count)
	case AggSum, AggTotal:
		return s.Total.StringFixed(2)
	case AggAvg:
		if s.Count == 0 {
			return "-"
		}
		return s.Total.DivRound(decimal.NewFromInt(s.Count), 2).StringFixed(2)
	default:
		return "-"
	}
}

// String renders the state as "count : N | total : X.XX".
func (s CountTotal) String() string {
	return fmt.Sprintf("count : %d | total : %s", s.Count, s.Total.StringFixed(2))
}

// MarshalJSON encodes the state as {"count": N, "total": X}.
func (s CountTotal) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Count int64       `json:"count"`
		Total json.Number `json:"total"`
	}{s.Count, json.Number(s.Total.String())})
}

// CountAndTotal returns a reducer keeping a CountTotal of a numeric field.
// Amounts are converted to decimals with the shortest representation that
// round-trips the float, so the total is exact for money values.
func CountAndTotal(field string) crossfilter.Reducer {
	return crossfilter.Reduce(
		func(acc CountTotal, r records.Record) CountTotal { return acc.Add(amount(r, field)) },
		func(acc CountTotal, r records.Record) CountTotal { return acc.Remove(amount(r, field)) },
		func() CountTotal { return CountTotal{Total: decimal.Zero} },
	)
}

func amount(r records.Record, field string) decimal.Decimal {
	return decimal.NewFromFloat(number(r, field))
}
