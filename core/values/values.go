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

// Package values defines the scalar values stored in records and used as
// dimension and group keys.
package values

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Kind identifies the type held by a Value.
// Kinds are ordered: values of a lower kind sort before values of a higher kind.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindTime
	KindString
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindTime:
		return "time"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Value is an immutable scalar: a boolean, a number, a string or a point in time.
// The zero Value is null.
type Value struct {
	kind Kind
	num  float64
	str  string
	t    time.Time
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.num = 1
	}
	return v
}

// Number returns a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Int returns a numeric value from an int.
func Int(i int) Value { return Number(float64(i)) }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Time returns a time value.
func Time(t time.Time) Value { return Value{kind: KindTime, t: t} }

// Kind returns the kind of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Float returns the numeric value. Booleans convert to 0 or 1, times to
// Unix seconds; other kinds return NaN.
func (v Value) Float() float64 {
	switch v.kind {
	case KindNumber, KindBool:
		return v.num
	case KindTime:
		return float64(v.t.UnixNano()) / 1e9
	default:
		return math.NaN()
	}
}

// Truth returns the boolean value. Numbers are true when non-zero.
func (v Value) Truth() bool {
	switch v.kind {
	case KindBool, KindNumber:
		return v.num != 0
	case KindString:
		return v.str != ""
	case KindTime:
		return !v.t.IsZero()
	default:
		return false
	}
}

// Text returns the string held by a string value, or the formatted value otherwise.
func (v Value) Text() string {
	if v.kind == KindString {
		return v.str
	}
	return v.String()
}

// TimeValue returns the time held by a time value and whether it was one.
func (v Value) TimeValue() (time.Time, bool) {
	return v.t, v.kind == KindTime
}

// String formats the value for display. Integral numbers print without a
// fractional part.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.num != 0)
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindTime:
		return v.t.Format(time.RFC3339Nano)
	case KindString:
		return v.str
	default:
		return fmt.Sprintf("<%s>", v.kind)
	}
}

// MarshalJSON encodes the value as its natural JSON type.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return []byte(strconv.FormatBool(v.num != 0)), nil
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return []byte("null"), nil
		}
		return []byte(strconv.FormatFloat(v.num, 'f', -1, 64)), nil
	default:
		return []byte(strconv.Quote(v.String())), nil
	}
}

// FromAny converts a decoded scalar into a Value. It reports false for
// values that are not scalars (maps, slices, structs).
func FromAny(x any) (Value, bool) {
	switch t := x.(type) {
	case nil:
		return Null(), true
	case Value:
		return t, true
	case bool:
		return Bool(t), true
	case float64:
		return Number(t), true
	case float32:
		return Number(float64(t)), true
	case int:
		return Number(float64(t)), true
	case int32:
		return Number(float64(t)), true
	case int64:
		return Number(float64(t)), true
	case uint32:
		return Number(float64(t)), true
	case uint64:
		return Number(float64(t)), true
	case string:
		return String(t), true
	case time.Time:
		return Time(t), true
	case fmt.Stringer:
		// json.Number and similar textual numbers
		if f, err := strconv.ParseFloat(t.String(), 64); err == nil {
			return Number(f), true
		}
		return Null(), false
	default:
		return Null(), false
	}
}

// Parse converts text into a value of the given kind.
func Parse(s string, kind Kind) (Value, error) {
	switch kind {
	case KindString:
		return String(s), nil
	case KindNumber:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Null(), fmt.Errorf("invalid number %q: %w", s, err)
		}
		return Number(f), nil
	case KindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Null(), fmt.Errorf("invalid bool %q: %w", s, err)
		}
		return Bool(b), nil
	case KindTime:
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return Null(), fmt.Errorf("invalid time %q: %w", s, err)
		}
		return Time(t), nil
	case KindNull:
		return Null(), nil
	default:
		return Null(), fmt.Errorf("unsupported kind %s", kind)
	}
}

// ParseKind returns the kind named by s ("bool", "number", "string", "time").
func ParseKind(s string) (Kind, error) {
	switch s {
	case "bool", "boolean":
		return KindBool, nil
	case "number", "float", "int":
		return KindNumber, nil
	case "string", "":
		return KindString, nil
	case "time", "datetime":
		return KindTime, nil
	case "null":
		return KindNull, nil
	default:
		return KindNull, fmt.Errorf("unknown value kind %q", s)
	}
}
