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

// Package query translates dashboard URLs into engine actions and builds
// the URLs the dashboard links to.
package query

import (
	"fmt"
	"net/url"

	"github.com/google/safehtml"

	"github.com/google/facetfilter/core/crossfilter"
	"github.com/google/facetfilter/core/values"
)

// Paths of the dashboard actions.
const (
	PathDashboard = "/"
	PathFilter    = "/filter"
	PathClear     = "/clear"
	PathReset     = "/reset"
)

// Action is the engine operation a URL asks for.
type Action int

const (
	ActionNone   Action = iota // render only
	ActionFilter               // select a bucket of a group
	ActionClear                // clear one dimension
	ActionReset                // clear every dimension
)

func (a Action) String() string {
	switch a {
	case ActionFilter:
		return "filter"
	case ActionClear:
		return "clear"
	case ActionReset:
		return "reset"
	default:
		return "none"
	}
}

// Query represents the parsed state of a dashboard URL
type Query struct {
	// Base path (e.g., "/filter")
	Path   string
	Action Action

	Group     string       // group whose bucket was clicked (ActionFilter)
	Key       values.Value // clicked bucket key (ActionFilter)
	Dimension string       // dimension to clear (ActionClear)
}

// ParseError reports a dashboard URL with missing or malformed parameters.
type ParseError struct {
	Path  string
	Param string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: invalid parameter %q: %v", e.Path, e.Param, e.Err)
	}
	return fmt.Sprintf("%s: missing parameter %q", e.Path, e.Param)
}

func (e *ParseError) Unwrap() error { return e.Err }

// NewQuery creates a Query from a URL.
//
// /filter?group=<g>&key=<k>&type=<kind> selects a bucket; type defaults to
// string. /clear?dimension=<d> clears a dimension and /reset clears all.
// Any other path is a plain render.
func NewQuery(u *url.URL) (*Query, error) {
	q := u.Query()
	state := &Query{Path: u.Path}

	switch u.Path {
	case PathFilter:
		state.Action = ActionFilter
		state.Group = q.Get("group")
		if state.Group == "" {
			return nil, &ParseError{Path: u.Path, Param: "group"}
		}
		if !q.Has("key") {
			return nil, &ParseError{Path: u.Path, Param: "key"}
		}
		kind, err := values.ParseKind(q.Get("type"))
		if err != nil {
			return nil, &ParseError{Path: u.Path, Param: "type", Err: err}
		}
		state.Key, err = values.Parse(q.Get("key"), kind)
		if err != nil {
			return nil, &ParseError{Path: u.Path, Param: "key", Err: err}
		}
	case PathClear:
		state.Action = ActionClear
		state.Dimension = q.Get("dimension")
		if state.Dimension == "" {
			return nil, &ParseError{Path: u.Path, Param: "dimension"}
		}
	case PathReset:
		state.Action = ActionReset
	}
	return state, nil
}

// Apply performs the action on the engine. Unknown group or dimension
// names return a *crossfilter.UnknownNameError and leave the engine as is.
func (s *Query) Apply(e *crossfilter.Engine) error {
	switch s.Action {
	case ActionFilter:
		return e.SelectBucket(s.Group, s.Key)
	case ActionClear:
		return e.ClearFilter(s.Dimension)
	case ActionReset:
		e.ClearAll()
	}
	return nil
}

// ToURL converts the Query back to a URL string
func (s *Query) ToURL() string {
	u := &url.URL{Path: s.Path}
	q := u.Query()

	switch s.Action {
	case ActionFilter:
		q.Set("group", s.Group)
		q.Set("key", encodeKey(s.Key))
		if kind := s.Key.Kind(); kind != values.KindString {
			q.Set("type", kind.String())
		}
	case ActionClear:
		q.Set("dimension", s.Dimension)
	}

	u.RawQuery = q.Encode()
	return u.String()
}

// ToSafeURL converts the Query to a safehtml.URL
func (s *Query) ToSafeURL() safehtml.URL {
	// URLSanitized sanitizes the input string and returns a URL
	return safehtml.URLSanitized(s.ToURL())
}

func encodeKey(key values.Value) string {
	if key.Kind() == values.KindString {
		return key.Text()
	}
	return key.String()
}

// FilterURL returns the link selecting one bucket of a group.
func FilterURL(group string, key values.Value) safehtml.URL {
	q := &Query{Path: PathFilter, Action: ActionFilter, Group: group, Key: key}
	return q.ToSafeURL()
}

// ClearURL returns the link clearing the filter of a dimension.
func ClearURL(dimension string) safehtml.URL {
	q := &Query{Path: PathClear, Action: ActionClear, Dimension: dimension}
	return q.ToSafeURL()
}

// ResetURL returns the link clearing every filter.
func ResetURL() safehtml.URL {
	q := &Query{Path: PathReset, Action: ActionReset}
	return q.ToSafeURL()
}
