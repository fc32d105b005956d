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

// Package demo provides the customer profile dataset explored by the
// default dashboard: a small embedded sample and a deterministic generator
// for larger datasets.
package demo

import (
	_ "embed"

	"github.com/google/facetfilter/datasources"
)

//go:embed data/customers.json
var customersJSON []byte

// SampleSourceName is the source name the embedded sample is registered under.
const SampleSourceName = "customers"

// SampleJSON returns the embedded customer sample in its original form.
func SampleJSON() []byte {
	return customersJSON
}

// SampleRecords decodes the embedded customer sample.
func SampleRecords() ([]map[string]any, error) {
	return datasources.DecodeJSON(customersJSON, "data")
}
