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

import "testing"

func TestSeriesAppendCrossesSegments(t *testing.T) {
	s := NewSeries[float64](2)
	for i := int64(0); i < 5; i++ {
		if err := s.Append(i*10, float64(i)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if s.SegmentCount() != 3 {
		t.Fatalf("segment count = %d want 3", s.SegmentCount())
	}
	if s.Count() != 5 {
		t.Fatalf("count = %d want 5", s.Count())
	}
	for i := int64(0); i < 5; i++ {
		v, ok := s.At(i * 10)
		if !ok || v != float64(i) {
			t.Fatalf("At(%d) = %v,%v want %v,true", i*10, v, ok, float64(i))
		}
	}
}

func TestSeriesDomainTracksFirstAndLast(t *testing.T) {
	s := NewSeries[float64](4)
	if !s.Domain().Empty() {
		t.Fatal("new series should have empty domain")
	}
	s.Append(100, 1.0)
	s.Append(200, 2.0)
	s.Append(300, 3.0)
	d := s.Domain()
	if d.Start != 100 || d.End != 300 {
		t.Fatalf("domain = %+v want {100 300}", d)
	}
}

func TestSeriesLookupOutsideDomainIsAbsent(t *testing.T) {
	s := NewSeries[float64](4)
	s.Append(100, 1.0)
	s.Append(200, 2.0)
	if _, ok := s.At(50); ok {
		t.Fatal("lookup before domain start should be absent")
	}
	if _, ok := s.At(500); ok {
		t.Fatal("lookup after domain end should be absent")
	}
	if _, ok := s.At(150); ok {
		t.Fatal("lookup inside domain but never appended should be absent")
	}
}

func TestSeriesOutOfOrderAppendRejected(t *testing.T) {
	s := NewSeries[float64](4)
	if err := s.Append(200, 1.0); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(100, 2.0); err != ErrOutOfOrder {
		t.Fatalf("expected ErrOutOfOrder, got %v", err)
	}
	// domain must not regress on a rejected append
	if s.Domain().Start != 200 || s.Domain().End != 200 {
		t.Fatalf("domain changed after rejected append: %+v", s.Domain())
	}
}
