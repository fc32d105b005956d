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

package facets

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/facetfilter/core/crossfilter"
	"github.com/google/facetfilter/core/values"
)

// Bucket kind names.
const (
	BucketIdentity      = "identity"
	BucketFloor         = "floor"          // floor(key/width)
	BucketFloorMultiple = "floor_multiple" // floor(key/width)*width
	BucketBands         = "bands"          // labelled inclusive ranges
)

// Bucketing pairs a bucket function with its inverse: the filter that
// selects the records of one bucket on the group's dimension.
type Bucketing struct {
	Bucket crossfilter.BucketFunc
	Select crossfilter.SelectFunc
}

// Identity counts every key in its own bucket; a click selects that key.
func Identity() Bucketing {
	return Bucketing{Select: crossfilter.Exact}
}

// Floor buckets numeric keys by floor(key/width). Bucket b selects
// [b*width, (b+1)*width).
func Floor(width float64) Bucketing {
	return Bucketing{
		Bucket: func(key values.Value) values.Value {
			return values.Number(math.Floor(key.Float() / width))
		},
		Select: func(b values.Value) crossfilter.Criterion {
			if b.Kind() != values.KindNumber {
				return crossfilter.Exact(b)
			}
			lo := b.Float() * width
			return crossfilter.NumberRange(lo, lo+width)
		},
	}
}

// FloorMultiple buckets numeric keys by floor(key/width)*width. Bucket b
// selects [b, b+width).
func FloorMultiple(width float64) Bucketing {
	return Bucketing{
		Bucket: func(key values.Value) values.Value {
			return values.Number(math.Floor(key.Float()/width) * width)
		},
		Select: func(b values.Value) crossfilter.Criterion {
			if b.Kind() != values.KindNumber {
				return crossfilter.Exact(b)
			}
			return crossfilter.NumberRange(b.Float(), b.Float()+width)
		},
	}
}

// Band is a labelled range of numeric keys with inclusive bounds.
// An open band also buckets every key above Max; a click on it still
// selects only [Min, Max+1).
type Band struct {
	Label string  `yaml:"label" json:"label" validate:"required"`
	Min   float64 `yaml:"min" json:"min"`
	Max   float64 `yaml:"max" json:"max" validate:"gtefield=Min"`
	Open  bool    `yaml:"open" json:"open,omitempty"`
}

// contains applies the inclusive bounds as the half-open [Min, Max+1).
func (b Band) contains(key float64) bool {
	if b.Open {
		return key >= b.Min
	}
	return key >= b.Min && key < b.Max+1
}

func (b Band) criterion() crossfilter.Criterion {
	return crossfilter.NumberRange(b.Min, b.Max+1)
}

// Bands buckets numeric keys by the label of the first band containing
// them, or fallback's label when none does. A click on a label selects
// [Min, Max+1) of its band; any unknown label selects fallback's range.
func Bands(bands []Band, fallback Band) Bucketing {
	bands = append([]Band(nil), bands...)
	byLabel := make(map[string]Band, len(bands)+1)
	byLabel[fallback.Label] = fallback
	for _, b := range bands {
		byLabel[b.Label] = b
	}
	return Bucketing{
		Bucket: func(key values.Value) values.Value {
			k := key.Float()
			for _, b := range bands {
				if b.contains(k) {
					return values.String(b.Label)
				}
			}
			return values.String(fallback.Label)
		},
		Select: func(label values.Value) crossfilter.Criterion {
			if b, ok := byLabel[label.Text()]; ok {
				return b.criterion()
			}
			return fallback.criterion()
		},
	}
}

// AgeDemographics returns the fixed age bands of the customer dashboard.
func AgeDemographics() ([]Band, Band) {
	return []Band{
			{Label: "1. Millenial", Min: 20, Max: 34},
			{Label: "2. Gen X", Min: 35, Max: 49},
			{Label: "3. Baby Boomer", Min: 50, Max: 100, Open: true},
		},
		Band{Label: "4. Too Young", Min: 0, Max: 19}
}

// NewBucketing returns the bucketing named by kind.
func NewBucketing(kind string, width float64, bands []Band, fallback *Band) (Bucketing, error) {
	kind = strings.ToLower(kind)
	switch kind {
	case BucketIdentity, "":
		return Identity(), nil
	case BucketFloor, BucketFloorMultiple:
		if width <= 0 || math.IsNaN(width) || math.IsInf(width, 0) {
			return Bucketing{}, fmt.Errorf("bucket %q needs a positive width, got %v", kind, width)
		}
		if kind == BucketFloor {
			return Floor(width), nil
		}
		return FloorMultiple(width), nil
	case BucketBands:
		if len(bands) == 0 {
			return Bucketing{}, fmt.Errorf("bucket %q needs at least one band", kind)
		}
		if fallback == nil {
			return Bucketing{}, fmt.Errorf("bucket %q needs a default band", kind)
		}
		return Bands(bands, *fallback), nil
	default:
		return Bucketing{}, fmt.Errorf("unknown bucket kind %q", kind)
	}
}
