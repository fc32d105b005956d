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

// Package facets provides the named key derivations and bucketings that a
// dashboard configuration can attach to dimensions and groups.
package facets

import (
	"fmt"
	"time"

	"github.com/google/facetfilter/core/crossfilter"
	"github.com/google/facetfilter/core/records"
	"github.com/google/facetfilter/core/values"
)

// Key derivation names.
const (
	KeyValue     = "value"       // the field value itself
	KeyDayOfWeek = "day_of_week" // 0 (Sunday) to 6
	KeyHourOfDay = "hour_of_day" // hour plus minutes/60, in [0, 24)
	KeyMonth     = "month"       // 0 (January) to 11
)

// KeyKinds lists the derivations accepted by Key.
var KeyKinds = []string{KeyValue, KeyDayOfWeek, KeyHourOfDay, KeyMonth}

// Key returns the key function deriving kind from field. Time derivations
// use the wall clock of the offset recorded with the timestamp.
func Key(kind, field string) (crossfilter.KeyFunc, error) {
	if field == "" {
		return nil, fmt.Errorf("key %q needs a field", kind)
	}
	switch kind {
	case KeyValue, "":
		return func(r records.Record) (values.Value, error) {
			v, ok := r.Get(field)
			if !ok {
				return values.Null(), fmt.Errorf("missing field %q", field)
			}
			return v, nil
		}, nil
	case KeyDayOfWeek:
		return timeKey(field, func(t time.Time) float64 {
			return float64(t.Weekday())
		}), nil
	case KeyHourOfDay:
		return timeKey(field, func(t time.Time) float64 {
			return float64(t.Hour()) + float64(t.Minute())/60
		}), nil
	case KeyMonth:
		return timeKey(field, func(t time.Time) float64 {
			return float64(t.Month() - time.January)
		}), nil
	default:
		return nil, fmt.Errorf("unknown key derivation %q", kind)
	}
}

func timeKey(field string, derive func(time.Time) float64) crossfilter.KeyFunc {
	return func(r records.Record) (values.Value, error) {
		t, ok := r.Time(field)
		if !ok {
			return values.Null(), fmt.Errorf("field %q is not a timestamp", field)
		}
		return values.Number(derive(t)), nil
	}
}
