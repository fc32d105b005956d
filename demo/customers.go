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

package demo

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/google/facetfilter/datasources"
)

// Generator configuration - easily modifiable cardinality
const (
	DefaultCustomers = 10_000
	DefaultSeed      = 20140623
)

var (
	firstNames = []string{"Bertie", "Lola", "Marcus", "Ines", "Tobias", "Greta", "Hank", "Priya", "Omar", "Yuki", "Dale", "Rosa"}
	lastNames  = []string{"Williamson", "Hardy", "Nguyen", "Okafor", "Schmidt", "Lopez", "Baker", "Ivanova", "Moreno", "Sato"}
	companies  = []string{"MANUFACT", "ZENTRY", "QUILCH", "OVATION", "GEEKOLA", "PLASMOX", "RECRISYS", "ISOLOGIA"}
	states     = []string{
		"Alabama", "Alaska", "Arizona", "California", "Colorado", "Florida", "Georgia", "Idaho",
		"Illinois", "Iowa", "Kansas", "Maine", "Montana", "Nevada", "New York", "Ohio", "Oregon",
		"South Dakota", "Texas", "Utah", "Vermont", "Washington", "Wyoming",
	}
	leadSources = []string{"Google", "Bing", "Facebook", "Twitter", "Email", "Referral"}
	eyeColors   = []string{"brown", "blue", "green"}
	streets     = []string{"Lewis Place", "Dover Street", "Kent Avenue", "Hull Street", "Bay Parkway"}
)

var (
	pacificDaylight = time.FixedZone("PDT", -7*3600)
	pacificStandard = time.FixedZone("PST", -8*3600)
	epoch           = time.Date(2013, time.January, 1, 0, 0, 0, 0, time.UTC)
)

// GenerateCustomers returns n customer profiles shaped like the embedded
// sample. The same seed always yields the same records.
func GenerateCustomers(n int, seed int64) []map[string]any {
	rng := rand.New(rand.NewSource(seed))
	out := make([]map[string]any, n)
	for i := range out {
		first := firstNames[rng.Intn(len(firstNames))]
		last := lastNames[rng.Intn(len(lastNames))]
		company := companies[rng.Intn(len(companies))]
		registered := epoch.Add(time.Duration(rng.Intn(2*365*24*60)) * time.Minute)

		out[i] = map[string]any{
			"_id":        fmt.Sprintf("%012x%012x", rng.Int63n(1<<48), rng.Int63n(1<<48)),
			"isActive":   rng.Intn(2) == 1,
			"balance":    math.Round((1000+rng.Float64()*3000)*100) / 100,
			"age":        float64(16 + rng.Intn(60)),
			"eyeColor":   eyeColors[rng.Intn(len(eyeColors))],
			"firstName":  first,
			"lastName":   last,
			"gender":     []string{"female", "male"}[rng.Intn(2)],
			"company":    company,
			"email":      strings.ToLower(first+last) + "@" + strings.ToLower(company) + ".com",
			"phone":      fmt.Sprintf("(%d) %d-%04d", 800+rng.Intn(200), 400+rng.Intn(200), rng.Intn(10000)),
			"address":    fmt.Sprintf("%d %s", 100+rng.Intn(900), streets[rng.Intn(len(streets))]),
			"state":      states[rng.Intn(len(states))],
			"registered": jsDateString(registered),
			"leadSource": leadSources[rng.Intn(len(leadSources))],
		}
	}
	return out
}

// jsDateString formats t in Pacific time the way JavaScript's
// Date.prototype.toString does, e.g. "Mon Jun 23 2014 01:17:52 GMT-0700 (PDT)".
func jsDateString(t time.Time) string {
	zone := pacificStandard
	if m := t.Month(); m > time.March && m < time.November {
		zone = pacificDaylight
	}
	local := t.In(zone)
	name, _ := local.Zone()
	return local.Format("Mon Jan 02 2006 15:04:05 GMT-0700") + " (" + name + ")"
}

// Loader implements datasources.DataSourceLoader for generated customers.
//
// Optional config keys:
//   - count: Number of customers (default: DefaultCustomers)
//   - seed: Random seed (default: DefaultSeed)
//   - sample: "true" returns the embedded sample instead of generating
type Loader struct{}

// NewLoader creates a new demo loader.
func NewLoader() *Loader {
	return &Loader{}
}

// SourceType returns "demo".
func (l *Loader) SourceType() string {
	return "demo"
}

// DiscoverSchema returns the fixed customer schema.
func (l *Loader) DiscoverSchema(config map[string]string) (*datasources.TableSchema, error) {
	return &datasources.TableSchema{Columns: []*datasources.ColumnSchema{
		{Name: "_id", Type: datasources.TypeString},
		{Name: "address", Type: datasources.TypeString},
		{Name: "age", Type: datasources.TypeInt64},
		{Name: "balance", Type: datasources.TypeFloat64},
		{Name: "company", Type: datasources.TypeString},
		{Name: "email", Type: datasources.TypeString},
		{Name: "eyeColor", Type: datasources.TypeString},
		{Name: "firstName", Type: datasources.TypeString},
		{Name: "gender", Type: datasources.TypeString},
		{Name: "isActive", Type: datasources.TypeBool},
		{Name: "lastName", Type: datasources.TypeString},
		{Name: "leadSource", Type: datasources.TypeString},
		{Name: "phone", Type: datasources.TypeString},
		{Name: "registered", Type: datasources.TypeString},
		{Name: "state", Type: datasources.TypeString},
	}}, nil
}

// Load generates the customers, or decodes the embedded sample.
func (l *Loader) Load(config map[string]string) ([]map[string]any, error) {
	if config["sample"] == "true" {
		return SampleRecords()
	}
	count, err := intOption(config, "count", DefaultCustomers)
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("count must not be negative, got %d", count)
	}
	seed, err := intOption(config, "seed", DefaultSeed)
	if err != nil {
		return nil, err
	}
	return GenerateCustomers(count, int64(seed)), nil
}

func intOption(config map[string]string, key string, def int) (int, error) {
	s := config[key]
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}
