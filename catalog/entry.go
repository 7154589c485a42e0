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
	"github.com/taudb/tau/actor"
	"github.com/taudb/tau/label"
	"github.com/taudb/tau/storage"
)

// actorEntry adapts *actor.SeriesActor to the KeyGetter[string]/Sizable
// pair github.com/launix-de/NonLockingReadMap's generic routing table
// requires (spec.md §4.J's label -> actor map), grounded on the same
// dependency the teacher vendors for its own read-optimised registries.
type actorEntry struct {
	label label.Label
	actor *actor.SeriesActor
}

func (e actorEntry) GetKey() string { return e.label.Key() }

// ComputeSize is a coarse, fixed estimate; NonLockingReadMap only uses it
// for optional size accounting, never for correctness.
func (e actorEntry) ComputeSize() uint { return 96 }

// lensEntry is the persisted LensExpression: a label plus a source label
// and a symbolic transform name (spec.md §3 "LensExpression"). Storing
// the expression rather than a closure is what lets lenses be listed and
// composed at the protocol layer.
type lensEntry struct {
	label       label.Label
	sourceLabel label.Label
	transform   storage.TransformName
	composed    bool
	lens2Label  label.Label
}

func (e lensEntry) GetKey() string { return e.label.Key() }
func (e lensEntry) ComputeSize() uint { return 128 }
