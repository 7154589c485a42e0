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
	"os"
	"path/filepath"
	"testing"

	"github.com/taudb/tau/label"
)

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return b
}

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.WriteFile(path, b, 0o640); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestFileBackedSegmentCreateAppendAt(t *testing.T) {
	dir := t.TempDir()
	lbl := label.New("temperature_c")
	s, err := CreateFileBackedSegment[float64](dir, lbl, 4)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer s.Close()

	if err := s.Append(1000, 22.5); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(2000, 23.1); err != nil {
		t.Fatalf("append: %v", err)
	}
	if v, ok := s.At(1000); !ok || v != 22.5 {
		t.Fatalf("At(1000) = %v,%v want 22.5,true", v, ok)
	}
	if s.Count() != 2 {
		t.Fatalf("count = %d want 2", s.Count())
	}
}

func TestFileBackedSegmentOutOfOrderRejected(t *testing.T) {
	dir := t.TempDir()
	s, err := CreateFileBackedSegment[float64](dir, label.New("x"), 4)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer s.Close()
	if err := s.Append(2000, 1.0); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(1000, 2.0); err != ErrOutOfOrder {
		t.Fatalf("expected ErrOutOfOrder, got %v", err)
	}
}

func TestFileBackedSegmentFull(t *testing.T) {
	dir := t.TempDir()
	s, err := CreateFileBackedSegment[float64](dir, label.New("x"), 2)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer s.Close()
	if err := s.Append(1, 1.0); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(2, 2.0); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(3, 3.0); err != ErrSegmentFull {
		t.Fatalf("expected ErrSegmentFull, got %v", err)
	}
}

func TestFileBackedSegmentReopenSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	lbl := label.New("temperature_c")
	s, err := CreateFileBackedSegment[float64](dir, lbl, 8)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Append(100, 1.5); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(200, 2.5); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenFileBackedSegment[float64](dir, lbl, 8)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if reopened.Count() != 2 {
		t.Fatalf("count after reopen = %d want 2", reopened.Count())
	}
	if v, ok := reopened.At(100); !ok || v != 1.5 {
		t.Fatalf("At(100) after reopen = %v,%v want 1.5,true", v, ok)
	}
	if v, ok := reopened.At(200); !ok || v != 2.5 {
		t.Fatalf("At(200) after reopen = %v,%v want 2.5,true", v, ok)
	}
	if reopened.MinTimestamp() != 100 || reopened.MaxTimestamp() != 200 {
		t.Fatalf("min/max after reopen = %d/%d want 100/200", reopened.MinTimestamp(), reopened.MaxTimestamp())
	}

	// further appends must still be accepted and persisted
	if err := reopened.Append(300, 3.5); err != nil {
		t.Fatalf("append after reopen: %v", err)
	}
	if err := reopened.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	again, err := OpenFileBackedSegment[float64](dir, lbl, 8)
	if err != nil {
		t.Fatalf("second reopen: %v", err)
	}
	defer again.Close()
	if again.Count() != 3 {
		t.Fatalf("count after second reopen = %d want 3", again.Count())
	}
	if v, ok := again.At(300); !ok || v != 3.5 {
		t.Fatalf("At(300) after second reopen = %v,%v want 3.5,true", v, ok)
	}
}

func TestFileBackedSegmentCapacityMismatchOnReopen(t *testing.T) {
	dir := t.TempDir()
	lbl := label.New("x")
	s, err := CreateFileBackedSegment[float64](dir, lbl, 8)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	_, err = OpenFileBackedSegment[float64](dir, lbl, 16)
	if err == nil {
		t.Fatal("expected capacity mismatch error")
	}
}

func TestFileBackedSegmentCorruptHeaderDetected(t *testing.T) {
	dir := t.TempDir()
	lbl := label.New("x")
	s, err := CreateFileBackedSegment[float64](dir, lbl, 4)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Append(1, 1.0); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	path := filepath.Join(dir, lbl.Filename())
	corrupted := readFile(t, path)
	corrupted[headerMagicOff] ^= 0xFF
	writeFile(t, path, corrupted)

	_, err = OpenFileBackedSegment[float64](dir, lbl, 4)
	if err == nil {
		t.Fatal("expected corruption error on bad magic")
	}
}
