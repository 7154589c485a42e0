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

package catalog

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taudb/tau/actor"
	"github.com/taudb/tau/label"
)

// ArchiveBackend uploads a sealed segment's bytes under a key. S3Backend
// and, behind the ceph build tag, CephBackend are the two concrete
// implementations (SPEC_FULL.md §4.O), grounded on the teacher's pluggable
// PersistenceEngine backends in persistence-s3.go/persistence-ceph.go.
type ArchiveBackend interface {
	Put(ctx context.Context, key string, r io.Reader, size int64) error
}

// ArchiveRecord is the Archiver's in-memory ledger entry for a segment it
// has offered for upload (SPEC_FULL.md §3 "Archived segment record").
// Nothing here is persisted durably — it is derivable by rescanning the
// data directory and the remote bucket listing, so it is kept purely for
// status reporting.
type ArchiveRecord struct {
	Label     label.Label
	LocalPath string
	RemoteKey string
	SealedAt  time.Time
	SyncedAt  time.Time
}

// Archiver queues sealed (full) file-backed segments for upload to an
// ArchiveBackend; the uploads run when Sync is called, and a failed upload
// stays queued for the next Sync call. Upload failures never block a
// client-facing append (SPEC_FULL.md §4.O).
type Archiver struct {
	backend ArchiveBackend
	prefix  string
	codec   Codec

	mu      sync.Mutex
	offered map[string]struct{}
	records []ArchiveRecord
	pending []ArchiveRecord
}

// NewArchiver constructs an Archiver uploading under keyPrefix via backend
// with no compression.
func NewArchiver(backend ArchiveBackend, keyPrefix string) *Archiver {
	return NewArchiverWithCodec(backend, keyPrefix, CodecNone)
}

// NewArchiverWithCodec constructs an Archiver that compresses each
// segment with codec before upload (SPEC_FULL.md §4.O).
func NewArchiverWithCodec(backend ArchiveBackend, keyPrefix string, codec Codec) *Archiver {
	return &Archiver{
		backend: backend,
		prefix:  keyPrefix,
		codec:   codec,
		offered: make(map[string]struct{}),
	}
}

// offerIfSealed enqueues an upload job the first time a now-full
// file-backed segment is observed for lbl.
func (ar *Archiver) offerIfSealed(a *actor.SeriesActor, lbl label.Label, dataDir string) {
	if !a.Sealed() {
		return
	}
	ar.Offer(lbl, segmentPathFor(dataDir, lbl))
}

// Offer queues an upload job for the segment at path under lbl, to be
// performed by the next Sync call, de-duplicating repeat offers for the
// same label.
func (ar *Archiver) Offer(lbl label.Label, path string) {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	key := lbl.Key()
	if _, already := ar.offered[key]; already {
		return
	}
	ar.offered[key] = struct{}{}
	ar.pending = append(ar.pending, ArchiveRecord{
		Label:     lbl,
		LocalPath: path,
		RemoteKey: ar.prefix + "/" + lbl.String() + "-" + uuid.NewString(),
		SealedAt:  time.Now(),
	})
}

// Sync flushes every pending upload; main.go calls it at clean shutdown.
// Failures are logged and left pending for the next Sync call; they are
// never fatal.
func (ar *Archiver) Sync(ctx context.Context) {
	ar.mu.Lock()
	jobs := ar.pending
	ar.pending = nil
	ar.mu.Unlock()

	var stillPending []ArchiveRecord
	for _, job := range jobs {
		if err := ar.upload(ctx, job); err != nil {
			log.Printf("tau: archiver: upload %s failed, will retry: %v", job.RemoteKey, err)
			stillPending = append(stillPending, job)
			continue
		}
		job.SyncedAt = time.Now()
		ar.mu.Lock()
		ar.records = append(ar.records, job)
		ar.mu.Unlock()
	}

	if len(stillPending) > 0 {
		ar.mu.Lock()
		ar.pending = append(ar.pending, stillPending...)
		ar.mu.Unlock()
	}
}

func (ar *Archiver) upload(ctx context.Context, job ArchiveRecord) error {
	f, err := os.Open(job.LocalPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", job.LocalPath, err)
	}
	defer f.Close()

	if ar.codec == CodecNone || ar.codec == "" {
		fi, err := f.Stat()
		if err != nil {
			return fmt.Errorf("stat %s: %w", job.LocalPath, err)
		}
		return ar.backend.Put(ctx, job.RemoteKey, f, fi.Size())
	}

	encoded, size, suffix, err := compress(ar.codec, f)
	if err != nil {
		return err
	}
	return ar.backend.Put(ctx, job.RemoteKey+suffix, encoded, size)
}

// Records returns a snapshot of completed uploads, for status reporting.
func (ar *Archiver) Records() []ArchiveRecord {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	out := make([]ArchiveRecord, len(ar.records))
	copy(out, ar.records)
	return out
}

func segmentPathFor(dataDir string, lbl label.Label) string {
	return dataDir + "/" + lbl.Filename()
}
