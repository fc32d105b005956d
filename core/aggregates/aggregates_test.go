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

package aggregates

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/facetfilter/core/crossfilter"
	"github.com/google/facetfilter/core/records"
	"github.com/google/facetfilter/core/values"
)

func rec(balance float64, active bool) records.Record {
	return records.NewRecord(map[string]values.Value{
		"balance":  values.Number(balance),
		"isActive": values.Bool(active),
	})
}

func TestNumericStateInverse(t *testing.T) {
	s := NumericState{}.Add(2).Add(4).Add(9)
	assert.Equal(t, "15", s.Format(AggSum))
	assert.Equal(t, "5", s.Format(AggAvg))
	assert.Equal(t, "3", s.Format(AggCount))
	assert.InDelta(t, 2.9439, s.StdDev(), 1e-4)

	s = s.Remove(9).Remove(4).Remove(2)
	assert.Equal(t, NumericState{}, s)
	assert.Equal(t, "-", s.Format(AggSum))
}

func TestBoolState(t *testing.T) {
	s := BoolState{}.Add(true).Add(false).Add(true).Add(true)
	assert.Equal(t, "3", s.Format(AggTrue))
	assert.Equal(t, "1", s.Format(AggFalse))
	assert.Equal(t, "75.0%", s.Format(AggRatio))
	assert.Equal(t, BoolState{}, s.Remove(true).Remove(false).Remove(true).Remove(true))
}

func TestCountTotalIsExact(t *testing.T) {
	r := CountAndTotal("balance")
	acc := r.Initial()
	amounts := []float64{1038.25, 3942.12, 0.1, 0.2, 2871.33}
	for _, a := range amounts {
		acc = r.Add(acc, rec(a, true))
	}
	ct := acc.(CountTotal)
	assert.Equal(t, int64(5), ct.Count)
	assert.Equal(t, "7852.00", ct.Total.StringFixed(2))
	assert.Equal(t, "count : 5 | total : 7852.00", ct.String())

	for _, a := range amounts {
		acc = r.Remove(acc, rec(a, true))
	}
	assert.True(t, acc.(CountTotal).Equal(CountTotal{Total: decimal.Zero}))
}

func TestFloatSumDrift(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	sum := Sum("balance")
	exact := CountAndTotal("balance")
	fAcc, dAcc := sum.Initial(), exact.Initial()

	recs := make([]records.Record, 1000)
	for i := range recs {
		recs[i] = rec(float64(rng.Intn(400000))/100, true)
	}
	for cycle := 0; cycle < 50; cycle++ {
		for _, r := range recs {
			fAcc = sum.Add(fAcc, r)
			dAcc = exact.Add(dAcc, r)
		}
		for _, r := range recs[:len(recs)-1] {
			fAcc = sum.Remove(fAcc, r)
			dAcc = exact.Remove(dAcc, r)
		}
	}

	want := decimal.NewFromFloat(recs[len(recs)-1].Number("balance")).Mul(decimal.NewFromInt(50))
	assert.True(t, want.Equal(dAcc.(CountTotal).Total), "decimal total is exact")
	// The float total drifts but stays within a bounded error.
	assert.InDelta(t, want.InexactFloat64(), fAcc.(float64), 1e-3)
}

func TestNewReducer(t *testing.T) {
	tests := []struct {
		kind    string
		field   string
		initial any
		wantErr bool
	}{
		{"count", "", 0, false},
		{"", "", 0, false},
		{"sum", "balance", 0.0, false},
		{"numeric", "balance", NumericState{}, false},
		{"bool", "isActive", BoolState{}, false},
		{"count_total", "balance", CountTotal{Total: decimal.Zero}, false},
		{"sum", "", nil, true},
		{"median", "balance", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			r, err := NewReducer(tt.kind, tt.field)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.initial, r.Initial())
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		acc  any
		want string
	}{
		{3, "3"},
		{int64(7), "7"},
		{12.5, "12.5"},
		{12.0, "12"},
		{1.239, "1.24"},
		{CountTotal{Count: 2, Total: decimal.RequireFromString("10.5")}, "count : 2 | total : 10.50"},
		{NumericState{}.Add(3).Add(5), "2 | μ 4"},
		{BoolState{}.Add(true).Add(false), "2 | 50.0%"},
		{BoolState{}, "0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Format(tt.acc))
	}
}

func TestCount(t *testing.T) {
	n, ok := Count(CountTotal{Count: 4})
	assert.True(t, ok)
	assert.Equal(t, int64(4), n)
	_, ok = Count(1.5)
	assert.False(t, ok)
}

func TestCountTotalJSON(t *testing.T) {
	b, err := json.Marshal(CountTotal{Count: 2, Total: decimal.RequireFromString("10.25")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"count": 2, "total": 10.25}`, string(b))
}

func TestParseAggregateType(t *testing.T) {
	a, err := ParseAggregateType("StdDev")
	require.NoError(t, err)
	assert.Equal(t, AggStdDev, a)
	assert.Equal(t, "σ", a.Symbol())
	_, err = ParseAggregateType("p99")
	assert.Error(t, err)
}

func TestReducersInEngine(t *testing.T) {
	ds := records.FromRecords([]records.Record{
		rec(100.10, true), rec(200.20, false), rec(300.30, true),
	})
	total := CountAndTotal("balance")
	active := Bool("isActive")
	e, err := crossfilter.Build(ds,
		[]crossfilter.DimensionSpec{
			{Name: "balance", Key: func(r records.Record) (values.Value, error) { return r.Value("balance"), nil }},
			{Name: "isActive", Key: func(r records.Record) (values.Value, error) { return r.Value("isActive"), nil }},
		},
		[]crossfilter.GroupSpec{
			{Name: "active", Dimension: "isActive", Reduce: &total},
			{Name: "balanceActive", Dimension: "balance", Reduce: &active, Bucket: func(values.Value) values.Value {
				return values.String("all")
			}},
		})
	require.NoError(t, err)

	require.NoError(t, e.ApplyFilter("balance", crossfilter.NumberRange(150, 1000)))
	v, err := e.Group("active")
	require.NoError(t, err)
	yes, ok := v.Value(values.Bool(true))
	require.True(t, ok)
	assert.Equal(t, "count : 1 | total : 300.30", Format(yes))

	g, err := e.Group("balanceActive")
	require.NoError(t, err)
	all, _ := g.Value(values.String("all"))
	assert.Equal(t, BoolState{Count: 3, TrueCount: 2, FalseCount: 1}, all)
}
