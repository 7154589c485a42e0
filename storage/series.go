/*
Copyright (C) 2026  Tau Contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package storage

import (
	"errors"

	"github.com/google/btree"
)

// segmentIndexEntry indexes one segment by its first timestamp, letting
// Series.At locate the candidate segment in O(log n) instead of scanning
// every segment in order. Grounded on the teacher's own deltaBtree in
// storage/index.go, which indexes row deltas the same way: an ordered
// btree.BTreeG keyed by a comparable field, looked up by predecessor scan.
type segmentIndexEntry struct {
	minTS int64
	index int
}

func segmentIndexLess(a, b segmentIndexEntry) bool { return a.minTS < b.minTS }

// MaxSegmentsPerSeries bounds how many in-memory segments a single Series
// may accumulate before further appends are refused as resource
// exhaustion (spec.md §3 "Segment count is bounded by the configured
// maximum").
const MaxSegmentsPerSeries = 1 << 16

// ErrTooManySegments is returned when a Series would need to allocate a
// segment beyond MaxSegmentsPerSeries.
var ErrTooManySegments = errors.New("storage: series segment count exceeds configured maximum")

// Domain is an inclusive timestamp interval [Start, End]. The zero value
// with Start > End represents the empty domain (spec.md §3).
type Domain struct {
	Start int64
	End   int64
}

// Empty reports whether the domain holds no timestamps.
func (d Domain) Empty() bool { return d.Start > d.End }

// Contains reports whether ts falls within [Start, End].
func (d Domain) Contains(ts int64) bool {
	return !d.Empty() && ts >= d.Start && ts <= d.End
}

// Series is an ordered collection of fixed-capacity in-memory Segments
// sharing one label (spec.md §4.C). Appends go to the last segment;
// once full, a new segment of the same capacity is allocated. Lookups
// short-circuit on the cached domain, then use a btree index of segment
// start timestamps to pick the one segment that can contain ts.
type Series[T Numeric] struct {
	capacity int
	segments []*Segment[T]
	domain   Domain
	index    *btree.BTreeG[segmentIndexEntry]
}

// NewSeries creates an empty Series whose segments will each be allocated
// with the given fixed capacity.
func NewSeries[T Numeric](capacity int) *Series[T] {
	return &Series[T]{
		capacity: capacity,
		domain:   Domain{Start: 1, End: 0}, // empty
		index:    btree.NewG[segmentIndexEntry](8, segmentIndexLess),
	}
}

// Domain returns the cached [start, end] of stored timestamps.
func (s *Series[T]) Domain() Domain { return s.domain }

// SegmentCount returns the number of allocated segments.
func (s *Series[T]) SegmentCount() int { return len(s.segments) }

// Count sums the live entry count across all segments.
func (s *Series[T]) Count() int {
	n := 0
	for _, seg := range s.segments {
		n += seg.Count()
	}
	return n
}

// Append adds (ts, value), allocating a new trailing segment if the last
// one is full or none exists yet.
func (s *Series[T]) Append(ts int64, value T) error {
	if !s.domain.Empty() && ts <= s.domain.End {
		return ErrOutOfOrder
	}
	if len(s.segments) == 0 || s.segments[len(s.segments)-1].IsFull() {
		if len(s.segments) >= MaxSegmentsPerSeries {
			return ErrTooManySegments
		}
		s.segments = append(s.segments, NewSegment[T](s.capacity))
	}
	last := s.segments[len(s.segments)-1]
	wasEmpty := last.Count() == 0
	if err := last.Append(ts, value); err != nil {
		return err
	}
	if wasEmpty {
		s.index.ReplaceOrInsert(segmentIndexEntry{minTS: ts, index: len(s.segments) - 1})
	}
	if s.domain.Empty() {
		s.domain.Start = ts
	}
	s.domain.End = ts
	return nil
}

// At looks up ts, short-circuiting on the domain, then uses the btree
// index to find the last segment whose first timestamp is <= ts (the
// only candidate, since segments are appended in increasing time order)
// instead of scanning every segment.
func (s *Series[T]) At(ts int64) (value T, ok bool) {
	if !s.domain.Contains(ts) {
		return value, false
	}
	var candidate segmentIndexEntry
	found := false
	s.index.DescendLessOrEqual(segmentIndexEntry{minTS: ts}, func(e segmentIndexEntry) bool {
		candidate = e
		found = true
		return false
	})
	if !found {
		return value, false
	}
	seg := s.segments[candidate.index]
	if ts < seg.MinTimestamp() || ts > seg.MaxTimestamp() {
		return value, false
	}
	return seg.At(ts)
}

// Contains reports whether ts has an exact stored entry.
func (s *Series[T]) Contains(ts int64) bool {
	_, ok := s.At(ts)
	return ok
}
