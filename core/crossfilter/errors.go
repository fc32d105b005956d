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

package crossfilter

import "fmt"

// KeyFunctionError reports a key or bucket function that failed for a record
// while a dimension or group was being built.
type KeyFunctionError struct {
	Dimension string
	Group     string // set when the failing function was a group's bucket function
	Record    int
	Err       error
}

func (e *KeyFunctionError) Error() string {
	if e.Group != "" {
		return fmt.Sprintf("bucket function of group %q failed on record %d: %v", e.Group, e.Record, e.Err)
	}
	return fmt.Sprintf("key function of dimension %q failed on record %d: %v", e.Dimension, e.Record, e.Err)
}

func (e *KeyFunctionError) Unwrap() error { return e.Err }

// UnknownNameError reports a lookup of a dimension or group that does not exist.
// The engine state is unchanged when it is returned.
type UnknownNameError struct {
	Kind string // "dimension" or "group"
	Name string
}

func (e *UnknownNameError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Kind, e.Name)
}

// ConfigError reports an invalid set of dimension or group specs.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid engine configuration: " + e.Reason
}

func configErrorf(format string, args ...any) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}
