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
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// CsvLoaderTyped is a CSV loader that infers column types from data.
// Every row is checked to determine if columns are int, float, bool, or string.
// Empty cells load as null.
//
// Required config keys:
//   - file_path: Path to the CSV file
//
// Optional config keys:
//   - has_header: "true" or "false" (default: "true")
//   - delimiter: Field delimiter (default: ",")
//   - string_columns: Comma-separated columns always loaded as strings
type CsvLoaderTyped struct{}

// NewCsvLoaderTyped creates a new typed CSV loader.
func NewCsvLoaderTyped() *CsvLoaderTyped {
	return &CsvLoaderTyped{}
}

// SourceType returns "csv".
func (l *CsvLoaderTyped) SourceType() string {
	return "csv"
}

// DiscoverSchema discovers the schema from the CSV data.
func (l *CsvLoaderTyped) DiscoverSchema(config map[string]string) (*TableSchema, error) {
	names, rows, err := l.read(config)
	if err != nil {
		return nil, err
	}
	return l.schema(config, names, rows), nil
}

// Load loads a CSV file with typed columns.
func (l *CsvLoaderTyped) Load(config map[string]string) ([]map[string]any, error) {
	names, rows, err := l.read(config)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("CSV file has no data rows")
	}
	schema := l.schema(config, names, rows)

	out := make([]map[string]any, len(rows))
	for r, row := range rows {
		rec := make(map[string]any, len(names))
		for i, col := range schema.Columns {
			if i >= len(row) || row[i] == "" {
				rec[col.Name] = nil
				continue
			}
			v, err := convertCell(row[i], col.Type)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", r+1, col.Name, err)
			}
			rec[col.Name] = v
		}
		out[r] = rec
	}
	return out, nil
}

func (l *CsvLoaderTyped) read(config map[string]string) ([]string, [][]string, error) {
	filePath := config["file_path"]
	if filePath == "" {
		return nil, nil, fmt.Errorf("file_path is required")
	}

	hasHeader := true
	if h := config["has_header"]; h == "false" {
		hasHeader = false
	}

	delimiter := ','
	if d := config["delimiter"]; d != "" {
		delimiter = rune(d[0])
	}

	// Open file
	file, err := os.Open(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("CSV file is empty")
	}

	// Determine column names
	var columnNames []string
	dataStart := 0
	if hasHeader {
		columnNames = records[0]
		dataStart = 1
	} else {
		for i := range records[0] {
			columnNames = append(columnNames, fmt.Sprintf("col_%d", i))
		}
	}
	return columnNames, records[dataStart:], nil
}

func (l *CsvLoaderTyped) schema(config map[string]string, names []string, rows [][]string) *TableSchema {
	forced := make(map[string]bool)
	for _, name := range strings.Split(config["string_columns"], ",") {
		if name = strings.TrimSpace(name); name != "" {
			forced[name] = true
		}
	}

	schema := &TableSchema{Columns: make([]*ColumnSchema, len(names))}
	for i, name := range names {
		t := TypeString
		if !forced[name] && len(rows) > 0 {
			t = l.inferColumnType(i, rows)
		}
		schema.Columns[i] = &ColumnSchema{Name: name, Type: t}
	}
	return schema
}

func convertCell(cell string, t ColumnType) (any, error) {
	switch t {
	case TypeInt64, TypeFloat64:
		f, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, err
		}
		return f, nil
	case TypeBool:
		return cell == "true" || cell == "1" || cell == "yes", nil
	default:
		return cell, nil
	}
}

// inferColumnType picks the narrowest type every non-empty cell of the
// column converts to.
func (l *CsvLoaderTyped) inferColumnType(colIdx int, records [][]string) ColumnType {
	isInt := true
	isFloat := true
	isBool := true
	sawValue := false

	for _, row := range records {
		if colIdx >= len(row) {
			continue
		}
		val := row[colIdx]
		if val == "" {
			continue // Skip empty values
		}
		sawValue = true

		// Check int
		if isInt {
			if _, err := strconv.ParseInt(val, 10, 64); err != nil {
				isInt = false
			}
		}

		// Check float
		if isFloat {
			if _, err := strconv.ParseFloat(val, 64); err != nil {
				isFloat = false
			}
		}

		// Check bool
		if isBool {
			if val != "true" && val != "false" && val != "yes" && val != "no" {
				isBool = false
			}
		}
	}

	if !sawValue {
		return TypeString
	}
	if isInt {
		return TypeInt64
	}
	if isFloat {
		return TypeFloat64
	}
	if isBool {
		return TypeBool
	}
	return TypeString
}
