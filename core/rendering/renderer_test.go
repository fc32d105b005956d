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

package rendering

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/facetfilter/core/query"
	"github.com/google/facetfilter/core/values"
	"github.com/google/facetfilter/core/views"
)

func TestRenderDashboard(t *testing.T) {
	r, err := NewDashboardRenderer()
	require.NoError(t, err)

	vm := &views.DashboardViewModel{
		Title:         "Customers <test>",
		DataSize:      10,
		SelectedCount: 4,
		ResetURL:      query.ResetURL(),
		Filters: []views.FilterInfo{
			{Dimension: "age", Criterion: "[20, 35)", ClearURL: query.ClearURL("age")},
		},
		Groups: []views.GroupViewModel{{
			Name:      "leadSourceGroup",
			Title:     "Lead source",
			Dimension: "leadSource",
			Items: []views.BucketItem{
				{
					Label:     "Google : { count : 1 | total : 10.00 }",
					FilterURL: query.FilterURL("leadSourceGroup", values.String("Google")),
				},
				{
					Label:     "Bing : { count : 0 | total : 0.00 }",
					FilterURL: query.FilterURL("leadSourceGroup", values.String("Bing")),
					IsEmpty:   true,
				},
			},
		}},
	}

	var sb strings.Builder
	require.NoError(t, r.Render(&sb, vm))
	html := sb.String()

	assert.Contains(t, html, "Customers &lt;test&gt;")
	assert.Contains(t, html, `<span id="dataSize">10</span>`)
	assert.Contains(t, html, `<span id="selected">4</span>`)
	assert.Contains(t, html, `href="/reset"`)
	assert.Contains(t, html, `href="/clear?dimension=age"`)
	assert.Contains(t, html, `id="leadSourceGroup"`)
	assert.Contains(t, html, `href="/filter?group=leadSourceGroup&amp;key=Google"`)
	assert.Contains(t, html, "Google : { count : 1 | total : 10.00 }")
	assert.Contains(t, html, `<li class="empty">`)
}

func TestRenderNilViewModelWritesNothing(t *testing.T) {
	r, err := NewDashboardRenderer()
	require.NoError(t, err)

	var sb strings.Builder
	err = r.Render(&sb, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to render dashboard.html")
	assert.Empty(t, sb.String())
}
