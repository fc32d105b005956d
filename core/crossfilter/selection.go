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
	"github.com/RoaringBitmap/roaring"
)

// MaxDimensions is the number of dimensions an engine can hold: one bit of
// the per-record exclusion mask per dimension.
const MaxDimensions = 64

// selection is the per-record filter state shared by every dimension and
// group of an engine.
//
// masks[r] has bit d set when dimension d's filter excludes record r.
// A record is selected for a group on dimension d when masks[r]&^bit(d) == 0,
// and selected overall when masks[r] == 0. The overall selection is mirrored
// in a roaring bitmap for cheap counting and iteration.
type selection struct {
	masks    []uint64
	selected *roaring.Bitmap
}

func newSelection(n int) *selection {
	bm := roaring.New()
	bm.AddRange(0, uint64(n))
	return &selection{
		masks:    make([]uint64, n),
		selected: bm,
	}
}

// exclude sets bit on record r and returns the previous mask.
func (s *selection) exclude(r int32, bit uint64) uint64 {
	old := s.masks[r]
	s.masks[r] = old | bit
	if old == 0 {
		s.selected.Remove(uint32(r))
	}
	return old
}

// include clears bit on record r and returns the previous mask.
func (s *selection) include(r int32, bit uint64) uint64 {
	old := s.masks[r]
	mask := old &^ bit
	s.masks[r] = mask
	if mask == 0 && old != 0 {
		s.selected.Add(uint32(r))
	}
	return old
}

// passesExcept reports whether record r passes every filter but the
// dimension owning bit.
func (s *selection) passesExcept(r int32, bit uint64) bool {
	return s.masks[r]&^bit == 0
}

// passes reports whether record r passes every filter.
func (s *selection) passes(r int32) bool {
	return s.masks[r] == 0
}

func (s *selection) count() int {
	return int(s.selected.GetCardinality())
}

func (s *selection) ids() []int {
	out := make([]int, 0, s.selected.GetCardinality())
	it := s.selected.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}
