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

// Package datasources provides a unified interface for loading customer
// records from various sources (JSON, CSV, generators) into datasets the
// facet engine can index.
package datasources

import (
	"sort"

	"github.com/google/facetfilter/core/values"
)

// ColumnType represents the data type of a field.
type ColumnType int

const (
	TypeString ColumnType = iota
	TypeInt64
	TypeFloat64
	TypeBool
	TypeDatetime
)

// String returns the string representation of the column type.
func (t ColumnType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt64:
		return "int64"
	case TypeFloat64:
		return "float64"
	case TypeBool:
		return "bool"
	case TypeDatetime:
		return "datetime"
	default:
		return "unknown"
	}
}

// ColumnSchema represents a single field's schema discovered from a data source.
type ColumnSchema struct {
	Name string
	Type ColumnType
}

// TableSchema represents the full schema discovered from a data source.
type TableSchema struct {
	Columns []*ColumnSchema
}

// Names returns the field names in schema order.
func (s *TableSchema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// DataSourceLoader is the interface that all data source loaders must implement.
// Built-in loaders are "json" and "csv"; the demo package registers "demo".
type DataSourceLoader interface {
	// SourceType returns the type identifier used in config (e.g., "json", "csv").
	SourceType() string

	// DiscoverSchema returns the schema discovered from the data source.
	DiscoverSchema(config map[string]string) (*TableSchema, error)

	// Load retrieves the raw records. Values are scalars as produced by
	// encoding/json: bool, float64, string or nil.
	Load(config map[string]string) ([]map[string]any, error)
}

// DataSource describes a named source and the loader configuration used to read it.
type DataSource struct {
	Name       string
	SourceType string
	Config     map[string]string
}

// inferSchema derives a schema from decoded records, sampling up to 100 of
// them. Fields are sorted by name; a field holding mixed kinds is a
// string unless all of them are numbers.
func inferSchema(raw []map[string]any) *TableSchema {
	sampleSize := min(len(raw), 100)
	types := make(map[string]ColumnType)
	for _, rec := range raw[:sampleSize] {
		for name, x := range rec {
			v, ok := values.FromAny(x)
			if !ok || v.IsNull() {
				continue
			}
			t := columnTypeOf(v)
			if prev, seen := types[name]; seen && prev != t {
				t = widen(prev, t)
			}
			types[name] = t
		}
	}

	schema := &TableSchema{Columns: make([]*ColumnSchema, 0, len(types))}
	for name, t := range types {
		schema.Columns = append(schema.Columns, &ColumnSchema{Name: name, Type: t})
	}
	sort.Slice(schema.Columns, func(i, j int) bool {
		return schema.Columns[i].Name < schema.Columns[j].Name
	})
	return schema
}

// widen returns the narrowest type holding both a and b.
func widen(a, b ColumnType) ColumnType {
	numeric := func(t ColumnType) bool { return t == TypeInt64 || t == TypeFloat64 }
	if numeric(a) && numeric(b) {
		return TypeFloat64
	}
	return TypeString
}

func columnTypeOf(v values.Value) ColumnType {
	switch v.Kind() {
	case values.KindBool:
		return TypeBool
	case values.KindNumber:
		if f := v.Float(); f == float64(int64(f)) {
			return TypeInt64
		}
		return TypeFloat64
	case values.KindTime:
		return TypeDatetime
	default:
		return TypeString
	}
}
