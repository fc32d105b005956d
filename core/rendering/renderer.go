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

// Package rendering turns dashboard view models into HTML pages.
package rendering

import (
	"bytes"
	"embed"
	"fmt"
	"io"

	"github.com/google/safehtml/template"

	"github.com/google/facetfilter/core/views"
)

//go:embed templates/*
var templateFS embed.FS

const dashboardPage = "dashboard.html"

// DashboardRenderer executes the embedded dashboard page.
type DashboardRenderer struct {
	page *template.Template
}

// NewDashboardRenderer parses the embedded page. Templates come from the
// binary itself, so they are trusted sources for safehtml.
func NewDashboardRenderer() (*DashboardRenderer, error) {
	page, err := template.New(dashboardPage).
		ParseFS(template.TrustedFSFromEmbed(templateFS), "templates/"+dashboardPage)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", dashboardPage, err)
	}
	return &DashboardRenderer{page: page}, nil
}

// Render writes the page for vm to w. Nothing is written when the
// template fails.
func (r *DashboardRenderer) Render(w io.Writer, vm *views.DashboardViewModel) error {
	var buf bytes.Buffer
	if err := r.page.Execute(&buf, vm); err != nil {
		return fmt.Errorf("failed to render %s: %w", dashboardPage, err)
	}
	_, err := buf.WriteTo(w)
	return err
}
