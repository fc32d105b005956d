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

package values

import (
	"math"
	"strings"
	"time"
)

// Compare orders two values. Returns -1 if a < b, 0 if equal, 1 if a > b.
// Values of different kinds are ordered by kind. NaN sorts after every other number.
func Compare(a, b Value) int {
	if a.kind != b.kind {
		if a.kind < b.kind {
			return -1
		}
		return 1
	}
	switch a.kind {
	case KindNull:
		return 0
	case KindBool:
		return compareBools(a.num != 0, b.num != 0)
	case KindNumber:
		return compareFloat64s(a.num, b.num)
	case KindTime:
		return compareTimes(a.t, b.t)
	default:
		return strings.Compare(a.str, b.str)
	}
}

// Less reports whether a sorts before b.
func Less(a, b Value) bool { return Compare(a, b) < 0 }

// Equal reports whether a and b compare equal.
func Equal(a, b Value) bool { return Compare(a, b) == 0 }

// compareTimes compares two time.Time values
func compareTimes(a, b time.Time) int {
	if a.Before(b) {
		return -1
	}
	if a.After(b) {
		return 1
	}
	return 0
}

// compareBools compares two bool values (false < true)
func compareBools(a, b bool) int {
	if a == b {
		return 0
	}
	if !a && b {
		return -1
	}
	return 1
}

// compareFloat64s compares two float64 values with NaN handling.
// NaN values are considered greater than all other values (sort to end).
func compareFloat64s(a, b float64) int {
	aNaN := math.IsNaN(a)
	bNaN := math.IsNaN(b)

	if aNaN && bNaN {
		return 0
	}
	if aNaN {
		return 1
	}
	if bNaN {
		return -1
	}

	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// HashKey returns a comparable key identifying the value, suitable for maps.
// Values that compare equal produce the same key.
func (v Value) HashKey() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.num != 0
	case KindNumber:
		if math.IsNaN(v.num) {
			return nanKey{}
		}
		if v.num == 0 {
			return float64(0) // fold -0 into 0
		}
		return v.num
	case KindTime:
		return timeKey(v.t.UnixNano())
	default:
		return v.str
	}
}

type nanKey struct{}

type timeKey int64
