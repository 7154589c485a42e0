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
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/taudb/tau/actor"
	"github.com/taudb/tau/label"
	"github.com/taudb/tau/storage"
)

// segmentExt is the file-backend's on-disk extension (spec.md §6).
const segmentExt = ".tau"

// discoverFileBackedSegments implements spec.md §4.J's "Reopen /
// discovery": every regular file ending in .tau under the data
// directory becomes an actor. Errors on individual files are logged and
// skipped; they never abort startup.
func (c *Catalog) discoverFileBackedSegments() error {
	entries, err := os.ReadDir(c.cfg.DataDir)
	if os.IsNotExist(err) {
		return os.MkdirAll(c.cfg.DataDir, 0o750)
	}
	if err != nil {
		return err
	}

	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), segmentExt) {
			continue
		}
		lbl := labelFromFilename(de.Name())
		seg, err := storage.OpenFileBackedSegment[float64](c.cfg.DataDir, lbl, c.cfg.SegmentCapacityDefault)
		if err != nil {
			log.Printf("tau: catalog: skipping %s at startup: %v", de.Name(), err)
			continue
		}
		a := actor.NewSeriesActor(lbl, seg, c.cfg.MailboxCapacity)
		c.actors.Set(&actorEntry{label: lbl, actor: a})
	}
	return nil
}

// labelFromFilename derives a Label from a discovered file's base name,
// the inverse of label.Label.Filename (spec.md §4.J).
func labelFromFilename(name string) label.Label {
	trimmed := strings.TrimSuffix(name, segmentExt)
	return label.New(trimmed)
}

// WatchDiscovery starts an fsnotify watcher over the data directory that
// picks up .tau files dropped in after startup (e.g. restored from
// backup), supplementing the synchronous startup scan. It is pure
// enrichment: if the watch cannot be set up, the failure is logged and
// WatchDiscovery returns without watching; errors reported while watching
// are logged and the watch continues. Discovery still works via the
// (already-complete) startup scan, so this is never a correctness
// dependency (SPEC_FULL.md §4.P).
func (c *Catalog) WatchDiscovery(stop <-chan struct{}) {
	if c.cfg.Backend != BackendFile || c.cfg.DataDir == "" {
		return
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("tau: discovery watcher: %v", err)
		return
	}
	if err := watcher.Add(c.cfg.DataDir); err != nil {
		log.Printf("tau: discovery watcher: watch %s: %v", c.cfg.DataDir, err)
		watcher.Close()
		return
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-stop:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				c.handleDiscoveryEvent(ev)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("tau: discovery watcher: %v", err)
			}
		}
	}()
}

func (c *Catalog) handleDiscoveryEvent(ev fsnotify.Event) {
	if !strings.HasSuffix(ev.Name, segmentExt) {
		return
	}
	if ev.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	lbl := labelFromFilename(filepath.Base(ev.Name))

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing := c.actors.Get(lbl.Key()); existing != nil && existing.actor.IsAlive() {
		log.Printf("tau: discovery watcher: %s already has a live actor, ignoring", lbl.String())
		return
	}
	seg, err := storage.OpenFileBackedSegment[float64](c.cfg.DataDir, lbl, c.cfg.SegmentCapacityDefault)
	if err != nil {
		log.Printf("tau: discovery watcher: could not open %s: %v", ev.Name, err)
		return
	}
	a := actor.NewSeriesActor(lbl, seg, c.cfg.MailboxCapacity)
	c.actors.Set(&actorEntry{label: lbl, actor: a})
	log.Printf("tau: discovery watcher: picked up %s", lbl.String())
}

func removeIfExists(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
