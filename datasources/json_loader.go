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
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// JsonLoader implements DataSourceLoader for JSON files holding either an
// array of record objects or an object whose "data" member is that array.
//
// Required config keys:
//   - file_path: Path to the JSON file
//
// Optional config keys:
//   - member: Name of the member holding the records (default: "data")
type JsonLoader struct{}

// NewJsonLoader creates a new JSON loader.
func NewJsonLoader() *JsonLoader {
	return &JsonLoader{}
}

// SourceType returns "json".
func (l *JsonLoader) SourceType() string {
	return "json"
}

// DiscoverSchema infers the schema from the decoded records.
func (l *JsonLoader) DiscoverSchema(config map[string]string) (*TableSchema, error) {
	raw, err := l.Load(config)
	if err != nil {
		return nil, err
	}
	return inferSchema(raw), nil
}

// Load reads and decodes the JSON file.
func (l *JsonLoader) Load(config map[string]string) ([]map[string]any, error) {
	filePath := config["file_path"]
	if filePath == "" {
		return nil, fmt.Errorf("file_path is required")
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open JSON file: %w", err)
	}
	member := config["member"]
	if member == "" {
		member = "data"
	}
	return DecodeJSON(data, member)
}

// DecodeJSON decodes an array of records, or an object holding the array
// under member.
func DecodeJSON(data []byte, member string) ([]map[string]any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("JSON input is empty")
	}

	if trimmed[0] == '{' {
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, fmt.Errorf("failed to decode JSON: %w", err)
		}
		inner, ok := wrapper[member]
		if !ok {
			return nil, fmt.Errorf("JSON object has no %q member", member)
		}
		trimmed = inner
	}

	var out []map[string]any
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, fmt.Errorf("failed to decode JSON records: %w", err)
	}
	return out, nil
}
