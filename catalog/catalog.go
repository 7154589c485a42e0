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

// Package catalog implements Tau's label-indexed routing table: the
// actor map, the lens map, lifecycle operations, file-backend discovery,
// and the reader/writer lock that serialises topology changes while
// staying off the hot append/query path (spec.md §4.J).
package catalog

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/taudb/tau/actor"
	"github.com/taudb/tau/label"
	"github.com/taudb/tau/storage"
	nlrm "github.com/launix-de/NonLockingReadMap"
)

// Errors the catalog surfaces; the server package translates these to
// wire status codes (spec.md §4.K, §7).
var (
	ErrSeriesAlreadyExists = errors.New("catalog: series already exists")
	ErrSeriesNotFound      = errors.New("catalog: series not found")
	ErrLensAlreadyExists   = errors.New("catalog: lens already exists")
	ErrLensNotFound        = errors.New("catalog: lens not found")
	ErrCatalogFull         = errors.New("catalog: at capacity")
	ErrUnknownTransform    = errors.New("catalog: unknown transform name")
)

// Backend selects how new series are realised on CreateSeries.
type Backend int

const (
	BackendSegment Backend = iota
	BackendFile
)

// Config bundles the catalog's compile-time-constant configuration
// surface (spec.md §6).
type Config struct {
	CatalogCapacity        int
	MailboxCapacity        int
	SegmentCapacityDefault int
	SegmentCapacityMax     int
	Backend                Backend
	DataDir                string
	ActorPoolSize          int
	ArchiveOnSeal          bool
}

// Catalog is the routing table: actor_map, lens_map, and the reader/
// writer lock protecting them — never held while waiting on a
// ResponseSlot (spec.md §4.J, §5).
type Catalog struct {
	mu sync.RWMutex

	actors nlrm.NonLockingReadMap[actorEntry, string]
	lenses nlrm.NonLockingReadMap[lensEntry, string]

	cfg Config

	pool        *actor.Pool
	poolRunning atomic.Bool

	archiver *Archiver
}

// New constructs an empty Catalog. If cfg.Backend is BackendFile, the
// data directory is scanned synchronously for existing `.tau` segments
// before New returns (spec.md §4.J "Reopen / discovery").
func New(cfg Config) (*Catalog, error) {
	if cfg.MailboxCapacity <= 0 {
		cfg.MailboxCapacity = actor.DefaultMailboxCapacity
	}
	if cfg.SegmentCapacityDefault <= 0 {
		cfg.SegmentCapacityDefault = 4096
	}
	if cfg.SegmentCapacityMax > 0 && cfg.SegmentCapacityDefault > cfg.SegmentCapacityMax {
		return nil, fmt.Errorf("catalog: segment capacity default (%d) exceeds configured max (%d)",
			cfg.SegmentCapacityDefault, cfg.SegmentCapacityMax)
	}
	c := &Catalog{
		actors: nlrm.New[actorEntry, string](),
		lenses: nlrm.New[lensEntry, string](),
		cfg:    cfg,
	}
	if cfg.Backend == BackendFile && cfg.DataDir != "" {
		if err := c.discoverFileBackedSegments(); err != nil {
			return nil, fmt.Errorf("catalog: startup discovery: %w", err)
		}
	}
	return c, nil
}

// AttachPool wires an ActorPool that will drain this catalog's actors;
// the pool must not be constructed (and must not Run) before the
// Catalog it references is at its final memory address (spec.md §4.I).
func (c *Catalog) AttachPool(pool *actor.Pool) {
	c.pool = pool
}

// AttachArchiver wires the optional archival tier (spec.md SPEC_FULL §4.O).
func (c *Catalog) AttachArchiver(a *Archiver) {
	c.archiver = a
}

// SetPoolRunning records whether a worker pool is actively draining
// actors, so Append/QueryPoint know whether to self-drain.
func (c *Catalog) SetPoolRunning(running bool) {
	c.poolRunning.Store(running)
}

// ForEachActor implements actor.ActorSource: fn is invoked for every
// alive actor while holding the routing lock in shared mode.
func (c *Catalog) ForEachActor(fn func(*actor.SeriesActor)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.actors.GetAll() {
		if e.actor.IsAlive() {
			fn(e.actor)
		}
	}
}

// CreateSeries allocates a new actor for lbl, backed by an in-memory
// Series or a FileBackedSegment depending on cfg.Backend.
func (c *Catalog) CreateSeries(lbl label.Label) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.actors.GetAll()) >= c.cfg.CatalogCapacity && c.cfg.CatalogCapacity > 0 {
		return ErrCatalogFull
	}
	if c.actors.Get(lbl.Key()) != nil {
		return ErrSeriesAlreadyExists
	}

	var backend actor.Backend
	switch c.cfg.Backend {
	case BackendFile:
		seg, err := storage.CreateFileBackedSegment[float64](c.cfg.DataDir, lbl, c.cfg.SegmentCapacityDefault)
		if err != nil {
			return fmt.Errorf("catalog: create file-backed segment: %w", err)
		}
		backend = seg
	default:
		backend = storage.NewSeries[float64](c.cfg.SegmentCapacityDefault)
	}

	a := actor.NewSeriesActor(lbl, backend, c.cfg.MailboxCapacity)
	c.actors.Set(&actorEntry{label: lbl, actor: a})
	return nil
}

// DropSeries removes and stops the actor for lbl, deleting its
// file-backed segment (if any) on disk.
func (c *Catalog) DropSeries(lbl label.Label) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.actors.Get(lbl.Key())
	if entry == nil {
		return ErrSeriesNotFound
	}
	entry.actor.Stop()
	c.actors.Remove(lbl.Key())

	if c.cfg.Backend == BackendFile {
		deleteSegmentFile(c.cfg.DataDir, lbl)
	}
	return nil
}

// Append enqueues (ts, value) on lbl's actor and waits for the result,
// translating the actor-level outcome to a catalog error (spec.md §4.J).
func (c *Catalog) Append(lbl label.Label, ts int64, value float64) error {
	c.mu.RLock()
	entry := c.actors.Get(lbl.Key())
	c.mu.RUnlock()
	if entry == nil {
		return ErrSeriesNotFound
	}

	slot := actor.NewResponseSlot()
	msg := actor.Message{Kind: actor.MsgAppend, Ts: ts, Value: value, Response: slot}
	if !entry.actor.Mailbox().TrySend(msg) {
		return actor.ErrOutOfMemory
	}
	c.drainUntilReady(entry.actor, slot)

	r := slot.Wait()
	if r.Err != nil {
		if errors.Is(r.Err, storage.ErrOutOfOrder) {
			return storage.ErrOutOfOrder
		}
		return actor.ErrOutOfMemory
	}
	if c.archiver != nil && c.cfg.Backend == BackendFile && c.cfg.ArchiveOnSeal {
		c.archiver.offerIfSealed(entry.actor, lbl, c.cfg.DataDir)
	}
	return nil
}

// QueryPoint looks up the value at ts on lbl's series.
func (c *Catalog) QueryPoint(lbl label.Label, ts int64) (value float64, found bool, err error) {
	c.mu.RLock()
	entry := c.actors.Get(lbl.Key())
	c.mu.RUnlock()
	if entry == nil {
		return 0, false, ErrSeriesNotFound
	}

	slot := actor.NewResponseSlot()
	msg := actor.Message{Kind: actor.MsgQueryPoint, Ts: ts, Response: slot}
	if !entry.actor.Mailbox().TrySend(msg) {
		return 0, false, actor.ErrOutOfMemory
	}
	c.drainUntilReady(entry.actor, slot)

	r := slot.Wait()
	if r.Err != nil {
		return 0, false, actor.ErrOutOfMemory
	}
	return r.Value, r.Found, nil
}

// drainUntilReady self-drains the actor's mailbox when no worker pool is
// running, per spec.md §4.J.
func (c *Catalog) drainUntilReady(a *actor.SeriesActor, slot *actor.ResponseSlot) {
	if c.poolRunning.Load() {
		return
	}
	for !slot.IsReady() {
		a.ProcessOne()
	}
}

// CreateLens creates a simple lens over a series or another lens,
// checking that source exists before inserting (spec.md §4.J).
func (c *Catalog) CreateLens(lbl, source label.Label, transform storage.TransformName) error {
	if !storage.IsValidTransform(transform) {
		return ErrUnknownTransform
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lenses.Get(lbl.Key()) != nil {
		return ErrLensAlreadyExists
	}
	if c.actors.Get(source.Key()) == nil && c.lenses.Get(source.Key()) == nil {
		return ErrSeriesNotFound
	}
	c.lenses.Set(&lensEntry{label: lbl, sourceLabel: source, transform: transform})
	return nil
}

// DropLens removes a lens expression.
func (c *Catalog) DropLens(lbl label.Label) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lenses.Get(lbl.Key()) == nil {
		return ErrLensNotFound
	}
	c.lenses.Remove(lbl.Key())
	return nil
}

// ComposeLens creates a new lens chaining lens1's resolved value through
// lens2's transform (spec.md §4.J "compose_lens must check that both
// operands exist before inserting the result").
func (c *Catalog) ComposeLens(newLabel, lens1, lens2 label.Label) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lenses.Get(newLabel.Key()) != nil {
		return ErrLensAlreadyExists
	}
	l1 := c.lenses.Get(lens1.Key())
	l2 := c.lenses.Get(lens2.Key())
	if l1 == nil || l2 == nil {
		return ErrLensNotFound
	}
	c.lenses.Set(&lensEntry{
		label:       newLabel,
		sourceLabel: lens1,
		transform:   l2.transform,
		composed:    true,
		lens2Label:  lens2,
	})
	return nil
}

// QueryLens resolves a lens by walking to its ultimate series source,
// querying that point, then applying the chain of transforms in order
// (spec.md §4.J "query_lens looks up the lens, then calls query_point on
// its recorded source label, then applies the symbolic transform").
func (c *Catalog) QueryLens(lbl label.Label, ts int64) (value float64, found bool, err error) {
	c.mu.RLock()
	entry := c.lenses.Get(lbl.Key())
	c.mu.RUnlock()
	if entry == nil {
		return 0, false, ErrLensNotFound
	}
	return c.resolveLens(entry, ts, 0)
}

const maxLensChainDepth = 64

func (c *Catalog) resolveLens(entry *lensEntry, ts int64, depth int) (float64, bool, error) {
	if depth > maxLensChainDepth {
		return 0, false, ErrLensNotFound
	}
	var base float64
	var found bool
	var err error

	c.mu.RLock()
	sourceLens := c.lenses.Get(entry.sourceLabel.Key())
	c.mu.RUnlock()

	if sourceLens != nil {
		base, found, err = c.resolveLens(sourceLens, ts, depth+1)
	} else {
		base, found, err = c.QueryPoint(entry.sourceLabel, ts)
	}
	if err != nil || !found {
		return 0, false, err
	}

	fn, ok := storage.TransformFunc(entry.transform)
	if !ok {
		return 0, false, ErrUnknownTransform
	}
	return fn(base), true, nil
}

// ListLenses returns every lens label, in deterministic ascending
// bit-order (the underlying NonLockingReadMap already keeps entries
// sorted by key).
func (c *Catalog) ListLenses() []label.Label {
	c.mu.RLock()
	defer c.mu.RUnlock()
	all := c.lenses.GetAll()
	out := make([]label.Label, 0, len(all))
	for _, e := range all {
		out = append(out, e.label)
	}
	return out
}

func deleteSegmentFile(dataDir string, lbl label.Label) {
	path := storage.SegmentPath(dataDir, lbl)
	if err := removeIfExists(path); err != nil {
		log.Printf("catalog: drop_series: could not remove %s: %v", path, err)
	}
}
