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

// Package records holds the immutable dataset explored by the facet engine.
// A Record maps field names to scalar values; its identity is its position
// in the Dataset.
package records

import (
	"fmt"
	"iter"
	"maps"
	"slices"
	"time"

	"github.com/google/facetfilter/core/values"
)

// Record is an immutable mapping of field name to scalar value.
type Record struct {
	fields map[string]values.Value
}

// NewRecord creates a record from already converted values. The map is copied.
func NewRecord(fields map[string]values.Value) Record {
	return Record{fields: maps.Clone(fields)}
}

// Get returns the value of a field and whether the field is present.
func (r Record) Get(field string) (values.Value, bool) {
	v, ok := r.fields[field]
	return v, ok
}

// Value returns the value of a field, or null when it is absent.
func (r Record) Value(field string) values.Value {
	return r.fields[field]
}

// Number returns the numeric value of a field (NaN when absent or not numeric).
func (r Record) Number(field string) float64 {
	return r.fields[field].Float()
}

// Text returns the textual value of a field.
func (r Record) Text(field string) string {
	v, ok := r.fields[field]
	if !ok {
		return ""
	}
	return v.Text()
}

// Time returns the time value of a field and whether the field held one.
func (r Record) Time(field string) (time.Time, bool) {
	return r.fields[field].TimeValue()
}

// Fields returns the field names of the record in sorted order.
func (r Record) Fields() []string {
	return slices.Sorted(maps.Keys(r.fields))
}

// Schema lists the constraints checked when a dataset is loaded.
type Schema struct {
	// Required fields must be present in every record.
	Required []string
	// Timestamps are string fields parsed into time values at load time.
	Timestamps []string
	// Location is used for timestamps without an explicit offset (default UTC).
	Location *time.Location
}

// Dataset is an ordered, fixed-size sequence of records.
type Dataset struct {
	records []Record
}

// InvalidDataError reports a structurally invalid record found while loading.
type InvalidDataError struct {
	Index  int    // position of the record in the input
	Field  string // offending field
	Reason string
	Err    error // underlying parse error, if any
}

func (e *InvalidDataError) Error() string {
	msg := fmt.Sprintf("invalid record %d: field %q: %s", e.Index, e.Field, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidDataError) Unwrap() error { return e.Err }

// Load converts decoded records into a Dataset. It fails with an
// *InvalidDataError if any record misses a required field, holds a
// non-scalar value, or has a timestamp field that cannot be parsed.
// No partial dataset is returned on failure.
func Load(raw []map[string]any, schema Schema) (*Dataset, error) {
	timestamps := make(map[string]bool, len(schema.Timestamps))
	for _, f := range schema.Timestamps {
		timestamps[f] = true
	}

	out := make([]Record, len(raw))
	for i, src := range raw {
		fields := make(map[string]values.Value, len(src))
		for name, x := range src {
			if timestamps[name] {
				v, err := parseTimestamp(x, schema.Location)
				if err != nil {
					return nil, &InvalidDataError{Index: i, Field: name, Reason: "unparseable timestamp", Err: err}
				}
				fields[name] = v
				continue
			}
			v, ok := values.FromAny(x)
			if !ok {
				return nil, &InvalidDataError{Index: i, Field: name, Reason: fmt.Sprintf("unsupported value of type %T", x)}
			}
			fields[name] = v
		}
		for _, name := range schema.Required {
			if v, ok := fields[name]; !ok || v.IsNull() {
				return nil, &InvalidDataError{Index: i, Field: name, Reason: "missing required field"}
			}
		}
		out[i] = Record{fields: fields}
	}
	return &Dataset{records: out}, nil
}

// FromRecords builds a dataset from records that were constructed directly.
func FromRecords(recs []Record) *Dataset {
	return &Dataset{records: slices.Clone(recs)}
}

func parseTimestamp(x any, loc *time.Location) (values.Value, error) {
	switch t := x.(type) {
	case time.Time:
		return values.Time(t), nil
	case string:
		parsed, err := ParseDatetime(t, loc)
		if err != nil {
			return values.Null(), err
		}
		return values.Time(parsed), nil
	case float64:
		return values.Time(time.UnixMilli(int64(t)).UTC()), nil
	case nil:
		return values.Null(), fmt.Errorf("null timestamp")
	default:
		return values.Null(), fmt.Errorf("unsupported timestamp type %T", x)
	}
}

// Size returns the number of records.
func (d *Dataset) Size() int {
	return len(d.records)
}

// Record returns the record with the given identity.
func (d *Dataset) Record(id int) Record {
	return d.records[id]
}

// Records iterates over the records in identity order.
func (d *Dataset) Records() iter.Seq2[int, Record] {
	return func(yield func(int, Record) bool) {
		for i, r := range d.records {
			if !yield(i, r) {
				return
			}
		}
	}
}
