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

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/facetfilter/core/records"
	"github.com/google/facetfilter/core/values"
)

func fieldKey(field string) KeyFunc {
	return func(r records.Record) (values.Value, error) {
		v, ok := r.Get(field)
		if !ok {
			return values.Null(), fmt.Errorf("missing field %q", field)
		}
		return v, nil
	}
}

func hundreds(key values.Value) values.Value {
	return values.Number(math.Floor(key.Float()/100) * 100)
}

// balanceDataset is the five-record dataset of the balance scenario. The
// records with balances 50 and 999 are the only ones outside
// ["", "South Dakota") on the state dimension.
func balanceDataset() *records.Dataset {
	rows := []struct {
		balance float64
		state   string
		lead    string
	}{
		{10, "Alabama", "web"},
		{50, "Texas", "referral"},
		{150, "Iowa", "web"},
		{250, "Alabama", "ads"},
		{999, "Wyoming", "web"},
	}
	recs := make([]records.Record, len(rows))
	for i, row := range rows {
		recs[i] = records.NewRecord(map[string]values.Value{
			"balance":    values.Number(row.balance),
			"state":      values.String(row.state),
			"leadSource": values.String(row.lead),
		})
	}
	return records.FromRecords(recs)
}

func buildBalanceEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := Build(balanceDataset(),
		[]DimensionSpec{
			{Name: "balance", Key: fieldKey("balance")},
			{Name: "state", Key: fieldKey("state")},
			{Name: "leadSource", Key: fieldKey("leadSource")},
		},
		[]GroupSpec{
			{Name: "balance", Dimension: "balance", Bucket: hundreds},
			{Name: "state", Dimension: "state"},
			{Name: "leadSource", Dimension: "leadSource"},
		})
	require.NoError(t, err)
	return e
}

func countsByNumber(t *testing.T, kvs []KeyValue) map[float64]int {
	t.Helper()
	out := make(map[float64]int, len(kvs))
	for _, kv := range kvs {
		out[kv.Key.Float()] = kv.Value.(int)
	}
	return out
}

func countsByText(kvs []KeyValue) map[string]int {
	out := make(map[string]int, len(kvs))
	for _, kv := range kvs {
		out[kv.Key.Text()] = kv.Value.(int)
	}
	return out
}

func TestBalanceScenario(t *testing.T) {
	e := buildBalanceEngine(t)

	snap, err := e.GroupSnapshot("balance")
	require.NoError(t, err)
	assert.Equal(t, map[float64]int{0: 2, 100: 1, 200: 1, 900: 1}, countsByNumber(t, snap))

	require.NoError(t, e.ApplyFilter("state", Range(values.String(""), values.String("South Dakota"))))
	snap, err = e.GroupSnapshot("balance")
	require.NoError(t, err)
	assert.Equal(t, map[float64]int{0: 1, 100: 1, 200: 1, 900: 0}, countsByNumber(t, snap))

	// The emptied bucket keeps its position in ascending order.
	keys := make([]float64, len(snap))
	for i, kv := range snap {
		keys[i] = kv.Key.Float()
	}
	assert.Equal(t, []float64{0, 100, 200, 900}, keys)
	assert.Equal(t, 3, e.SelectedCount())
	assert.Equal(t, []int{0, 2, 3}, e.Selected())
}

func TestRangeExcludesUpperBound(t *testing.T) {
	recs := make([]records.Record, 0, 3)
	for _, age := range []float64{49, 50, 59, 60} {
		recs = append(recs, records.NewRecord(map[string]values.Value{"age": values.Number(age)}))
	}
	e, err := Build(records.FromRecords(recs),
		[]DimensionSpec{{Name: "age", Key: fieldKey("age")}},
		nil)
	require.NoError(t, err)

	d, err := e.Dimension("age")
	require.NoError(t, err)
	d.FilterRange(values.Number(50), values.Number(60))
	assert.Equal(t, []int{1, 2}, e.Selected())

	d.FilterRange(values.Number(55), values.Number(55))
	assert.Equal(t, 0, e.SelectedCount(), "empty range selects nothing")

	d.FilterExact(values.Number(42))
	assert.Equal(t, 0, e.SelectedCount(), "absent key selects nothing")

	d.FilterRange(values.Number(70), values.Number(10))
	assert.Equal(t, 0, e.SelectedCount(), "inverted range selects nothing")

	d.FilterAll()
	assert.Equal(t, 4, e.SelectedCount())
}

func TestSelfExclusion(t *testing.T) {
	e := buildBalanceEngine(t)
	before, err := e.GroupSnapshot("state")
	require.NoError(t, err)

	for _, c := range []Criterion{
		Exact(values.String("Alabama")),
		Range(values.String("B"), values.String("X")),
		Exact(values.String("Nowhere")),
	} {
		require.NoError(t, e.ApplyFilter("state", c))
		after, err := e.GroupSnapshot("state")
		require.NoError(t, err)
		assert.Equal(t, before, after, "criterion %s", c)
	}
}

func TestIdempotenceAndRoundTrip(t *testing.T) {
	e := buildBalanceEngine(t)
	baseline := snapshots(t, e)

	require.NoError(t, e.ApplyFilter("leadSource", Exact(values.String("web"))))
	once := snapshots(t, e)

	e.ResetStats()
	require.NoError(t, e.ApplyFilter("leadSource", Exact(values.String("web"))))
	assert.Equal(t, once, snapshots(t, e))
	assert.Zero(t, e.Stats().RecordsVisited, "re-applying a filter walks an empty delta")
	assert.Equal(t, int64(1), e.Stats().FilterChanges)

	require.NoError(t, e.ClearFilter("leadSource"))
	assert.Equal(t, baseline, snapshots(t, e))

	require.NoError(t, e.ApplyFilter("balance", NumberRange(100, 300)))
	require.NoError(t, e.ApplyFilter("state", Exact(values.String("Alabama"))))
	assert.Len(t, e.Filters(), 2)
	e.ClearAll()
	assert.Empty(t, e.Filters())
	assert.Equal(t, baseline, snapshots(t, e))
}

func snapshots(t *testing.T, e *Engine) map[string][]KeyValue {
	t.Helper()
	out := make(map[string][]KeyValue)
	for _, g := range e.Groups() {
		out[g.Name()] = g.Snapshot()
	}
	return out
}

func TestVisitCounterMatchesDelta(t *testing.T) {
	const n = 1000
	recs := make([]records.Record, n)
	for i := range recs {
		recs[i] = records.NewRecord(map[string]values.Value{
			"x": values.Int(i % 100),
			"y": values.Int(i % 7),
		})
	}
	e, err := Build(records.FromRecords(recs),
		[]DimensionSpec{{Name: "x", Key: fieldKey("x")}, {Name: "y", Key: fieldKey("y")}},
		[]GroupSpec{{Name: "y", Dimension: "y"}})
	require.NoError(t, err)

	tests := []struct {
		name    string
		c       Criterion
		visited int64
	}{
		{"narrow from all", NumberRange(10, 20), n - 100},
		{"grow upwards", NumberRange(10, 25), 50},
		{"shift", NumberRange(15, 30), 100},
		{"same", NumberRange(15, 30), 0},
		{"disjoint", Exact(values.Int(80)), 150 + 10},
		{"clear", All(), n - 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e.ResetStats()
			require.NoError(t, e.ApplyFilter("x", tt.c))
			stats := e.Stats()
			assert.Equal(t, tt.visited, stats.RecordsVisited)
			// One group on another dimension, no other filter: every
			// visited record is reduced exactly once.
			assert.Equal(t, tt.visited, stats.Reductions)
		})
	}
}

func TestLeadSourceTotals(t *testing.T) {
	type countTotal struct {
		count int
		total float64
	}
	reducer := Reduce(
		func(acc countTotal, r records.Record) countTotal {
			return countTotal{acc.count + 1, acc.total + r.Number("balance")}
		},
		func(acc countTotal, r records.Record) countTotal {
			return countTotal{acc.count - 1, acc.total - r.Number("balance")}
		},
		func() countTotal { return countTotal{} },
	)
	ds := randomDataset(400, 1)
	e, err := Build(ds, randomDims(), []GroupSpec{{Name: "lead", Dimension: "c", Reduce: &reducer}})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for step := 0; step < 200; step++ {
		applyRandom(t, e, rng)

		want := make(map[string]countTotal)
		for id, rec := range ds.Records() {
			if !passesOthers(e, id, "c") {
				continue
			}
			acc := want[rec.Text("c")]
			want[rec.Text("c")] = countTotal{acc.count + 1, acc.total + rec.Number("balance")}
		}
		g, err := e.Group("lead")
		require.NoError(t, err)
		for kv := range g.All() {
			got := kv.Value.(countTotal)
			w := want[kv.Key.Text()]
			require.Equal(t, w.count, got.count, "step %d bucket %s", step, kv.Key)
			require.InDelta(t, w.total, got.total, 1e-6, "step %d bucket %s", step, kv.Key)
		}
	}
}

var colors = []string{"red", "green", "blue", "cyan", "black"}

func randomDataset(n int, seed int64) *records.Dataset {
	rng := rand.New(rand.NewSource(seed))
	recs := make([]records.Record, n)
	for i := range recs {
		recs[i] = records.NewRecord(map[string]values.Value{
			"a":       values.Int(rng.Intn(10)),
			"b":       values.Int(rng.Intn(100)),
			"c":       values.String(colors[rng.Intn(len(colors))]),
			"balance": values.Int(rng.Intn(5000)),
		})
	}
	return records.FromRecords(recs)
}

func randomDims() []DimensionSpec {
	return []DimensionSpec{
		{Name: "a", Key: fieldKey("a")},
		{Name: "b", Key: fieldKey("b")},
		{Name: "c", Key: fieldKey("c")},
	}
}

func applyRandom(t *testing.T, e *Engine, rng *rand.Rand) {
	t.Helper()
	switch op := rng.Intn(10); {
	case op == 0:
		e.ClearAll()
	case op < 3:
		require.NoError(t, e.ClearFilter(randomDims()[rng.Intn(3)].Name))
	case op < 6:
		lo := rng.Intn(100)
		require.NoError(t, e.ApplyFilter("b", NumberRange(float64(lo), float64(lo+rng.Intn(60)))))
	case op < 8:
		require.NoError(t, e.ApplyFilter("a", Exact(values.Int(rng.Intn(12)))))
	default:
		require.NoError(t, e.ApplyFilter("c", Exact(values.String(colors[rng.Intn(len(colors))]))))
	}
}

// passesOthers re-evaluates every active criterion except the one on skip.
func passesOthers(e *Engine, id int, skip string) bool {
	for _, d := range e.Dimensions() {
		if d.Name() != skip && !d.Criterion().Match(d.Key(id)) {
			return false
		}
	}
	return true
}

func TestCountsMatchBruteForce(t *testing.T) {
	ds := randomDataset(600, 42)
	e, err := Build(ds, randomDims(), []GroupSpec{
		{Name: "a", Dimension: "a"},
		{Name: "b-tens", Dimension: "b", Bucket: func(k values.Value) values.Value {
			return values.Number(math.Floor(k.Float() / 10))
		}},
		{Name: "b", Dimension: "b"},
		{Name: "c", Dimension: "c"},
	})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(3))
	for step := 0; step < 300; step++ {
		applyRandom(t, e, rng)

		overall := 0
		for id := range ds.Size() {
			if passesOthers(e, id, "") {
				overall++
			}
		}
		require.Equal(t, overall, e.SelectedCount(), "step %d", step)

		for _, g := range e.Groups() {
			want := 0
			perBucket := make(map[any]int)
			for id := range ds.Size() {
				if passesOthers(e, id, g.Dimension().Name()) {
					want++
					perBucket[g.keys[g.slotOf[id]].HashKey()]++
				}
			}
			sum := 0
			for kv := range g.All() {
				n := kv.Value.(int)
				require.GreaterOrEqual(t, n, 0)
				require.Equal(t, perBucket[kv.Key.HashKey()], n, "step %d group %s bucket %s", step, g.Name(), kv.Key)
				sum += n
			}
			require.Equal(t, want, sum, "step %d group %s", step, g.Name())
		}
	}
}

func TestGroupOrder(t *testing.T) {
	recs := []records.Record{}
	for _, s := range []string{"pear", "apple", "fig", "apple"} {
		recs = append(recs, records.NewRecord(map[string]values.Value{"fruit": values.String(s)}))
	}
	ds := records.FromRecords(recs)
	e, err := Build(ds,
		[]DimensionSpec{{Name: "fruit", Key: fieldKey("fruit")}},
		[]GroupSpec{
			{Name: "seen", Dimension: "fruit"},
			{Name: "sorted", Dimension: "fruit", Order: OrderAscending},
			{Name: "length", Dimension: "fruit", Bucket: func(k values.Value) values.Value {
				return values.Int(len(k.Text()))
			}},
		})
	require.NoError(t, err)

	keysOf := func(name string) []string {
		g, err := e.Group(name)
		require.NoError(t, err)
		var out []string
		for kv := range g.All() {
			out = append(out, kv.Key.String())
		}
		return out
	}
	assert.Equal(t, []string{"pear", "apple", "fig"}, keysOf("seen"))
	assert.Equal(t, []string{"apple", "fig", "pear"}, keysOf("sorted"))
	assert.Equal(t, []string{"3", "4", "5"}, keysOf("length"))

	g, err := e.Group("seen")
	require.NoError(t, err)
	assert.Equal(t, 3, g.Size())
	v, ok := g.Value(values.String("apple"))
	require.True(t, ok)
	assert.Equal(t, 2, v)
	_, ok = g.Value(values.String("kiwi"))
	assert.False(t, ok)
}

func TestAllIsRestartable(t *testing.T) {
	e := buildBalanceEngine(t)
	g, err := e.Group("leadSource")
	require.NoError(t, err)

	seq := g.All()
	first := countsByText(collect(seq))
	require.NoError(t, e.ApplyFilter("balance", NumberRange(0, 100)))
	second := countsByText(collect(seq))

	assert.Equal(t, map[string]int{"web": 3, "referral": 1, "ads": 1}, first)
	assert.Equal(t, map[string]int{"web": 1, "referral": 1, "ads": 0}, second)

	// Early termination.
	n := 0
	for range seq {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func collect(seq func(func(KeyValue) bool)) []KeyValue {
	var out []KeyValue
	seq(func(kv KeyValue) bool {
		out = append(out, kv)
		return true
	})
	return out
}

func TestSelectBucket(t *testing.T) {
	spec := []GroupSpec{{
		Name:      "balance",
		Dimension: "balance",
		Bucket:    hundreds,
		Select: func(b values.Value) Criterion {
			return NumberRange(b.Float(), b.Float()+100)
		},
	}}
	e, err := Build(balanceDataset(), []DimensionSpec{{Name: "balance", Key: fieldKey("balance")}}, spec)
	require.NoError(t, err)

	require.NoError(t, e.SelectBucket("balance", values.Number(0)))
	assert.Equal(t, []int{0, 1}, e.Selected())
	assert.Equal(t, map[string]Criterion{"balance": NumberRange(0, 100)}, e.Filters())

	err = e.SelectBucket("nope", values.Number(0))
	var unknown *UnknownNameError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "group", unknown.Kind)
	assert.Equal(t, []int{0, 1}, e.Selected(), "state unchanged")
}

func TestUnknownNames(t *testing.T) {
	e := buildBalanceEngine(t)
	before := snapshots(t, e)

	var unknown *UnknownNameError
	require.ErrorAs(t, e.ApplyFilter("planet", All()), &unknown)
	assert.Equal(t, "dimension", unknown.Kind)
	assert.Equal(t, "planet", unknown.Name)
	require.ErrorAs(t, e.ClearFilter("planet"), &unknown)

	_, err := e.GroupSnapshot("planet")
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "group", unknown.Kind)
	assert.EqualError(t, err, `unknown group "planet"`)

	assert.Equal(t, before, snapshots(t, e))
}

func TestKeyFunctionErrors(t *testing.T) {
	ds := balanceDataset()
	sentinel := errors.New("boom")

	t.Run("error", func(t *testing.T) {
		_, err := Build(ds, []DimensionSpec{{Name: "bad", Key: func(r records.Record) (values.Value, error) {
			if r.Number("balance") == 150 {
				return values.Null(), sentinel
			}
			return values.Int(1), nil
		}}}, nil)
		var kfe *KeyFunctionError
		require.ErrorAs(t, err, &kfe)
		assert.Equal(t, "bad", kfe.Dimension)
		assert.Equal(t, 2, kfe.Record)
		assert.ErrorIs(t, err, sentinel)
	})

	t.Run("panic", func(t *testing.T) {
		_, err := Build(ds, []DimensionSpec{{Name: "bad", Key: func(r records.Record) (values.Value, error) {
			var m map[string]int
			m["x"]++
			return values.Null(), nil
		}}}, nil)
		var kfe *KeyFunctionError
		require.ErrorAs(t, err, &kfe)
		assert.Equal(t, 0, kfe.Record)
	})

	t.Run("bucket panic", func(t *testing.T) {
		_, err := Build(ds,
			[]DimensionSpec{{Name: "balance", Key: fieldKey("balance")}},
			[]GroupSpec{{Name: "g", Dimension: "balance", Bucket: func(values.Value) values.Value {
				panic("no buckets today")
			}}})
		var kfe *KeyFunctionError
		require.ErrorAs(t, err, &kfe)
		assert.Equal(t, "g", kfe.Group)
		assert.Contains(t, err.Error(), "no buckets today")
	})
}

func TestBuildConfigErrors(t *testing.T) {
	ds := balanceDataset()
	key := fieldKey("balance")
	tooMany := make([]DimensionSpec, MaxDimensions+1)
	for i := range tooMany {
		tooMany[i] = DimensionSpec{Name: fmt.Sprintf("d%d", i), Key: key}
	}

	tests := []struct {
		name   string
		dims   []DimensionSpec
		groups []GroupSpec
	}{
		{"empty dimension name", []DimensionSpec{{Key: key}}, nil},
		{"duplicate dimension", []DimensionSpec{{Name: "a", Key: key}, {Name: "a", Key: key}}, nil},
		{"nil key", []DimensionSpec{{Name: "a"}}, nil},
		{"too many dimensions", tooMany, nil},
		{"unknown dimension", []DimensionSpec{{Name: "a", Key: key}}, []GroupSpec{{Name: "g", Dimension: "b"}}},
		{"duplicate group", []DimensionSpec{{Name: "a", Key: key}}, []GroupSpec{{Name: "g", Dimension: "a"}, {Name: "g", Dimension: "a"}}},
		{"empty group name", []DimensionSpec{{Name: "a", Key: key}}, []GroupSpec{{Dimension: "a"}}},
		{"incomplete reducer", []DimensionSpec{{Name: "a", Key: key}}, []GroupSpec{{Name: "g", Dimension: "a", Reduce: &Reducer{}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(ds, tt.dims, tt.groups)
			var cfg *ConfigError
			require.ErrorAs(t, err, &cfg)
		})
	}

	_, err := Build(ds, tooMany[:MaxDimensions], nil)
	assert.NoError(t, err, "exactly %d dimensions are allowed", MaxDimensions)
}

func TestTopBottom(t *testing.T) {
	e := buildBalanceEngine(t)
	d, err := e.Dimension("balance")
	require.NoError(t, err)

	assert.Equal(t, []int{4, 3}, d.Top(2))
	assert.Equal(t, []int{0, 1, 2}, d.Bottom(3))
	assert.Nil(t, d.Top(0))

	require.NoError(t, e.ApplyFilter("leadSource", Exact(values.String("web"))))
	assert.Equal(t, []int{4, 2, 0}, d.Top(10))

	d.FilterRange(values.Number(100), values.Number(1000))
	assert.Equal(t, []int{2}, d.Bottom(1))
	assert.Len(t, d.Keys(), 5)
}

func BenchmarkToggleFilter(b *testing.B) {
	for _, size := range []int{10_000, 100_000, 1_000_000} {
		b.Run(fmt.Sprintf("%d_records", size), func(b *testing.B) {
			e, err := Build(randomDataset(size, 1), randomDims(), []GroupSpec{
				{Name: "a", Dimension: "a"},
				{Name: "c", Dimension: "c"},
			})
			if err != nil {
				b.Fatal(err)
			}
			d, _ := e.Dimension("b")

			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				lo := float64(i % 90)
				d.FilterRange(values.Number(lo), values.Number(lo+10))
			}
			b.ReportMetric(float64(e.Stats().RecordsVisited)/float64(b.N), "visits/op")
		})
	}
}
