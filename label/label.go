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

// Package label implements Tau's fixed-width 32-byte routing key.
//
// All catalog lookups — series, lenses, file-backed segment names — key off
// this type. Two labels are equal iff their 32 bytes are bit-identical;
// there is no normalisation beyond the NUL-padding applied at construction.
package label

import "strings"

// Size is the wire width of a Label, fixed by the protocol (spec.md §4.K).
const Size = 32

// Label is a fixed-width, NUL-padded routing key.
type Label [Size]byte

// New builds a Label from a string, left-aligning the UTF-8 bytes and
// right-padding with NUL. Names longer than Size bytes are truncated —
// the wire protocol never carries more than Size bytes for a label, so
// this only affects labels constructed in Go code (config, tests).
func New(name string) Label {
	var l Label
	n := copy(l[:], name)
	_ = n
	return l
}

// FromBytes wraps an exact 32-byte slice (as read off the wire) into a Label.
// Panics if b is not exactly Size bytes; callers are expected to have
// already validated payload length per the protocol framing.
func FromBytes(b []byte) Label {
	if len(b) != Size {
		panic("label: FromBytes requires exactly 32 bytes")
	}
	var l Label
	copy(l[:], b)
	return l
}

// String trims trailing NUL bytes for display/logging purposes.
func (l Label) String() string {
	return strings.TrimRight(string(l[:]), "\x00")
}

// Key returns the raw 32 bytes reinterpreted as a Go string, used as the
// bit-identical routing key in the catalog's maps.
func (l Label) Key() string {
	return string(l[:])
}

// Bytes returns the 32 raw bytes, e.g. for wire encoding.
func (l Label) Bytes() []byte {
	return l[:]
}

// Filename derives the on-disk segment filename per spec.md §4.B: the
// label bytes up to the first NUL, or the literal "segment" when empty,
// plus the literal ".tau" suffix. Unlike String, this stops at the first
// NUL rather than trimming only trailing ones, since a label built via
// FromBytes off the wire may carry non-NUL bytes after an embedded NUL.
func (l Label) Filename() string {
	s := string(l[:])
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return "segment.tau"
	}
	return s + ".tau"
}

// IsZero reports whether every byte of the label is NUL.
func (l Label) IsZero() bool {
	for _, b := range l {
		if b != 0 {
			return false
		}
	}
	return true
}
