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

package label

import "testing"

func TestNewPadsWithNUL(t *testing.T) {
	l := New("temperature_c")
	if l.String() != "temperature_c" {
		t.Fatalf("String() = %q, want %q", l.String(), "temperature_c")
	}
	for i := len("temperature_c"); i < Size; i++ {
		if l[i] != 0 {
			t.Fatalf("byte %d not NUL-padded: %v", i, l[i])
		}
	}
}

func TestNewTruncatesOverlongNames(t *testing.T) {
	long := "this_name_is_definitely_longer_than_32_bytes"
	l := New(long)
	if len(l.Bytes()) != Size {
		t.Fatalf("label must always be %d bytes", Size)
	}
	if l.String() != long[:Size] {
		t.Fatalf("String() = %q, want truncated %q", l.String(), long[:Size])
	}
}

func TestFromBytesRoundTrip(t *testing.T) {
	l := New("altitude_m")
	l2 := FromBytes(l.Bytes())
	if l != l2 {
		t.Fatalf("round trip mismatch: %v != %v", l, l2)
	}
	if l.Key() != l2.Key() {
		t.Fatalf("Key() mismatch after round trip")
	}
}

func TestFromBytesPanicsOnWrongLength(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for wrong-length input")
		}
	}()
	FromBytes([]byte{1, 2, 3})
}

func TestFilenameDerivation(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"temperature_c", "temperature_c.tau"},
		{"", "segment.tau"},
	}
	for _, c := range cases {
		l := New(c.name)
		if got := l.Filename(); got != c.want {
			t.Fatalf("Filename() for %q = %q, want %q", c.name, got, c.want)
		}
	}
}

func TestFilenameStopsAtFirstNUL(t *testing.T) {
	raw := []byte("ab\x00cd")
	buf := make([]byte, Size)
	copy(buf, raw)
	l := FromBytes(buf)
	if got := l.Filename(); got != "ab.tau" {
		t.Fatalf("Filename() with embedded NUL = %q, want %q", got, "ab.tau")
	}
}

func TestIsZero(t *testing.T) {
	var zero Label
	if !zero.IsZero() {
		t.Fatal("zero-value label should be IsZero")
	}
	nonZero := New("x")
	if nonZero.IsZero() {
		t.Fatal("non-empty label should not be IsZero")
	}
}

func TestBitIdentity(t *testing.T) {
	a := New("same")
	b := New("same")
	if a.Key() != b.Key() {
		t.Fatal("labels built from the same string must be bit-identical")
	}
	c := New("different")
	if a.Key() == c.Key() {
		t.Fatal("labels from different strings must not collide")
	}
}
