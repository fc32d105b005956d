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

package datasources

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/facetfilter/core/records"
)

const customersJSON = `{"data": [
  {"_id": "a1", "isActive": true, "balance": 2209.94, "age": 50, "state": "South Dakota",
   "registered": "Mon Jun 23 2014 01:17:52 GMT-0700 (PDT)", "leadSource": "Google"},
  {"_id": "a2", "isActive": false, "balance": 150, "age": 27, "state": "Iowa",
   "registered": "2015-02-01T22:10:00Z", "leadSource": "Bing"}
]}`

const customersCSV = `_id,isActive,balance,age,state,registered,leadSource
a1,true,2209.94,50,South Dakota,2014-06-23T01:17:52-07:00,Google
a2,false,150,27,Iowa,2015-02-01T22:10:00Z,
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

var customerSchema = records.Schema{
	Required:   []string{"age", "balance", "registered"},
	Timestamps: []string{"registered"},
}

func TestManagerLoadsAndCaches(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "customers.json", customersJSON)

	manager := NewManager(nil)
	manager.SetBaseDir(dir)
	manager.AddSource(&DataSource{
		Name:       "customers",
		SourceType: "json",
		Config:     map[string]string{"file_path": "customers.json"},
	}, customerSchema)

	assert.Equal(t, []string{"customers"}, manager.GetSourceNames())
	assert.False(t, manager.IsLoaded("customers"))

	ds, err := manager.LoadData("customers")
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Size())
	assert.True(t, manager.IsLoaded("customers"))
	assert.Equal(t, []string{"customers"}, manager.GetLoadedSources())

	reg, ok := ds.Record(0).Time("registered")
	require.True(t, ok)
	assert.Equal(t, 1, reg.Hour())

	ds2, err := manager.LoadData("customers")
	require.NoError(t, err)
	assert.Same(t, ds, ds2, "expected same dataset instance from cache")

	manager.InvalidateCache("customers")
	assert.False(t, manager.IsLoaded("customers"))
	assert.Empty(t, manager.GetLoadedSources())

	ds3, err := manager.LoadData("customers")
	require.NoError(t, err)
	assert.NotSame(t, ds, ds3, "expected a reload after invalidation")
}

func TestManagerErrors(t *testing.T) {
	manager := NewManager(nil)
	_, err := manager.LoadData("missing")
	assert.ErrorContains(t, err, `source "missing" not found`)

	manager.AddSource(&DataSource{Name: "pg", SourceType: "postgres"}, records.Schema{})
	_, err = manager.LoadData("pg")
	assert.ErrorContains(t, err, `no loader registered for source type "postgres"`)

	dir := t.TempDir()
	path := writeFile(t, dir, "bad.json", `[{"age": 10}]`)
	manager.AddSource(&DataSource{Name: "bad", SourceType: "json", Config: map[string]string{"file_path": path}}, customerSchema)
	_, err = manager.LoadData("bad")
	var invalid *records.InvalidDataError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "balance", invalid.Field)
	assert.False(t, manager.IsLoaded("bad"))
}

func TestJsonLoader(t *testing.T) {
	dir := t.TempDir()
	wrapped := writeFile(t, dir, "wrapped.json", customersJSON)
	bare := writeFile(t, dir, "bare.json", `[{"a": 1}, {"a": 2.5, "b": "x"}]`)

	loader := NewJsonLoader()
	raw, err := loader.Load(map[string]string{"file_path": wrapped})
	require.NoError(t, err)
	assert.Len(t, raw, 2)
	assert.Equal(t, "Google", raw[0]["leadSource"])

	schema, err := loader.DiscoverSchema(map[string]string{"file_path": bare})
	require.NoError(t, err)
	require.Len(t, schema.Columns, 2)
	assert.Equal(t, []string{"a", "b"}, schema.Names())
	assert.Equal(t, TypeFloat64, schema.Columns[0].Type)
	assert.Equal(t, TypeString, schema.Columns[1].Type)

	_, err = loader.Load(map[string]string{"file_path": wrapped, "member": "rows"})
	assert.ErrorContains(t, err, `no "rows" member`)
	_, err = loader.Load(map[string]string{})
	assert.ErrorContains(t, err, "file_path is required")
	_, err = DecodeJSON([]byte("  "), "data")
	assert.Error(t, err)
}

func TestCsvLoaderTyped(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "customers.csv", customersCSV)
	config := map[string]string{"file_path": path, "string_columns": "_id"}

	loader := NewCsvLoaderTyped()
	schema, err := loader.DiscoverSchema(config)
	require.NoError(t, err)
	types := make(map[string]ColumnType)
	for _, c := range schema.Columns {
		types[c.Name] = c.Type
	}
	assert.Equal(t, map[string]ColumnType{
		"_id":        TypeString,
		"isActive":   TypeBool,
		"balance":    TypeFloat64,
		"age":        TypeInt64,
		"state":      TypeString,
		"registered": TypeString,
		"leadSource": TypeString,
	}, types)

	raw, err := loader.Load(config)
	require.NoError(t, err)
	require.Len(t, raw, 2)
	assert.Equal(t, true, raw[0]["isActive"])
	assert.Equal(t, 2209.94, raw[0]["balance"])
	assert.Equal(t, 27.0, raw[1]["age"])
	assert.Nil(t, raw[1]["leadSource"])

	ds, err := records.Load(raw, customerSchema)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Size())
}

func TestCsvLoaderInfersFromEveryRow(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("id,balance\n")
	for i := 0; i < 150; i++ {
		balance := strconv.Itoa(i * 10)
		if i == 130 {
			balance = "n/a"
		}
		fmt.Fprintf(&sb, "%d,%s\n", i, balance)
	}
	path := writeFile(t, t.TempDir(), "late.csv", sb.String())

	loader := NewCsvLoaderTyped()
	schema, err := loader.DiscoverSchema(map[string]string{"file_path": path})
	require.NoError(t, err)
	require.Len(t, schema.Columns, 2)
	assert.Equal(t, TypeInt64, schema.Columns[0].Type)
	assert.Equal(t, TypeString, schema.Columns[1].Type)

	raw, err := loader.Load(map[string]string{"file_path": path})
	require.NoError(t, err)
	require.Len(t, raw, 150)
	assert.Equal(t, "10", raw[1]["balance"])
	assert.Equal(t, "n/a", raw[130]["balance"])
	assert.Equal(t, 149.0, raw[149]["id"])
}

func TestCsvLoaderErrors(t *testing.T) {
	dir := t.TempDir()
	loader := NewCsvLoaderTyped()

	empty := writeFile(t, dir, "empty.csv", "")
	_, err := loader.Load(map[string]string{"file_path": empty})
	assert.ErrorContains(t, err, "empty")

	headerOnly := writeFile(t, dir, "header.csv", "a,b\n")
	_, err = loader.Load(map[string]string{"file_path": headerOnly})
	assert.ErrorContains(t, err, "no data rows")

	noHeader := writeFile(t, dir, "noheader.csv", "1;x\n2;y\n")
	raw, err := loader.Load(map[string]string{"file_path": noHeader, "has_header": "false", "delimiter": ";"})
	require.NoError(t, err)
	assert.Equal(t, 2.0, raw[1]["col_0"])
	assert.Equal(t, "y", raw[1]["col_1"])
}
