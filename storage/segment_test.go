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

func TestSegmentAppendAndAt(t *testing.T) {
	s := NewSegment[float64](4)
	if err := s.Append(100, 1.5); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(200, 2.5); err != nil {
		t.Fatalf("append: %v", err)
	}
	if v, ok := s.At(100); !ok || v != 1.5 {
		t.Fatalf("At(100) = %v,%v, want 1.5,true", v, ok)
	}
	if v, ok := s.At(200); !ok || v != 2.5 {
		t.Fatalf("At(200) = %v,%v, want 2.5,true", v, ok)
	}
	if _, ok := s.At(150); ok {
		t.Fatal("At(150) should be absent")
	}
	if _, ok := s.At(9999); ok {
		t.Fatal("At(9999) should be absent (outside domain)")
	}
}

func TestSegmentOutOfOrderRejected(t *testing.T) {
	s := NewSegment[float64](4)
	if err := s.Append(2000, 23.1); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(1500, 1.0); err != ErrOutOfOrder {
		t.Fatalf("expected ErrOutOfOrder, got %v", err)
	}
	// state unchanged
	if s.Count() != 1 {
		t.Fatalf("count changed after rejected append: %d", s.Count())
	}
	if _, ok := s.At(1500); ok {
		t.Fatal("rejected append must not be visible")
	}
	if v, ok := s.At(2000); !ok || v != 23.1 {
		t.Fatalf("original append must survive: %v,%v", v, ok)
	}
}

func TestSegmentDuplicateTimestampRejected(t *testing.T) {
	s := NewSegment[float64](4)
	if err := s.Append(1000, 1.0); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(1000, 2.0); err != ErrOutOfOrder {
		t.Fatalf("expected ErrOutOfOrder for duplicate ts, got %v", err)
	}
}

func TestSegmentFull(t *testing.T) {
	s := NewSegment[float64](2)
	if err := s.Append(1, 1.0); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(2, 2.0); err != nil {
		t.Fatal(err)
	}
	if !s.IsFull() {
		t.Fatal("expected IsFull after filling capacity")
	}
	if err := s.Append(3, 3.0); err != ErrSegmentFull {
		t.Fatalf("expected ErrSegmentFull, got %v", err)
	}
}

func TestSegmentEmptyAt(t *testing.T) {
	s := NewSegment[float64](4)
	if _, ok := s.At(0); ok {
		t.Fatal("empty segment At() should always be absent")
	}
}

func TestSegmentMonotonicCountInvariant(t *testing.T) {
	s := NewSegment[int64](8)
	prev := -1
	for i := int64(0); i < 8; i++ {
		if err := s.Append(i*10, i); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if s.Count() <= prev {
			t.Fatal("count must be monotonically increasing")
		}
		prev = s.Count()
	}
}
