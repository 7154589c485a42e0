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

package actor

import (
	"errors"
	"runtime"
	"sync/atomic"

	"github.com/taudb/tau/label"
	"github.com/taudb/tau/storage"
)

// ErrOutOfMemory is the actor-level error for anything that isn't a
// timestamp-ordering violation: a full mailbox, a full segment, too many
// segments, an allocation failure. The spec collapses all of these to a
// single OutOfMemory outcome on the ResponseSlot (spec.md §4.H, §4.J).
var ErrOutOfMemory = errors.New("actor: out of memory")

// Backend is the storage a SeriesActor owns: either an in-memory
// *storage.Series[float64] or a *storage.FileBackedSegment[float64].
// The network-visible value type is fixed at float64 (spec.md §1), so
// the actor layer is not itself generic over it.
type Backend interface {
	Append(ts int64, value float64) error
	At(ts int64) (float64, bool)
}

// SeriesActor owns one label's backing storage and mailbox. Exactly one
// worker may be dispatching a message on its behalf at any instant,
// enforced by the processing compare-and-set gate (spec.md §4.H).
type SeriesActor struct {
	label   label.Label
	mailbox *Mailbox
	backend Backend

	isAlive    atomic.Bool
	processing atomic.Bool
}

// NewSeriesActor creates an actor for lbl backed by backend, with a
// mailbox of the given capacity (DefaultMailboxCapacity if <= 0). The
// actor starts alive.
func NewSeriesActor(lbl label.Label, backend Backend, mailboxCapacity int) *SeriesActor {
	if mailboxCapacity <= 0 {
		mailboxCapacity = DefaultMailboxCapacity
	}
	a := &SeriesActor{
		label:   lbl,
		mailbox: NewMailbox(mailboxCapacity),
		backend: backend,
	}
	a.isAlive.Store(true)
	return a
}

// Label returns the actor's routing label.
func (a *SeriesActor) Label() label.Label { return a.label }

// Mailbox returns the actor's mailbox, for enqueueing by callers holding
// the catalog's routing lock.
func (a *SeriesActor) Mailbox() *Mailbox { return a.mailbox }

// IsAlive reports whether Stop has been called.
func (a *SeriesActor) IsAlive() bool { return a.isAlive.Load() }

// sealed is implemented by backends that can report fullness, namely
// *storage.FileBackedSegment[float64].
type sealed interface {
	IsFull() bool
}

// Sealed reports whether the actor's backend has reached capacity and
// will accept no further appends, used by the archival tier to decide
// when a file-backed segment is ready to upload.
func (a *SeriesActor) Sealed() bool {
	s, ok := a.backend.(sealed)
	return ok && s.IsFull()
}

// ProcessOne attempts to acquire the processing gate; on success it
// dequeues and dispatches at most one message, then releases the gate.
// Returns whether a message was processed.
func (a *SeriesActor) ProcessOne() bool {
	if !a.processing.CompareAndSwap(false, true) {
		return false
	}
	defer a.processing.Store(false)

	msg, ok := a.mailbox.TryRecv()
	if !ok {
		return false
	}
	a.dispatch(msg)
	return true
}

func (a *SeriesActor) dispatch(msg Message) {
	switch msg.Kind {
	case MsgAppend:
		if err := a.backend.Append(msg.Ts, msg.Value); err != nil {
			msg.Response.Complete(Result{Err: classifyBackendErr(err)})
			return
		}
		msg.Response.Complete(Result{})
	case MsgQueryPoint:
		v, found := a.backend.At(msg.Ts)
		msg.Response.Complete(Result{Found: found, Value: v})
	}
}

// Stop clears is_alive, then spins until no worker is mid-dispatch,
// guaranteeing the caller may safely deinitialise the actor's backend
// once Stop returns (spec.md §4.H).
func (a *SeriesActor) Stop() {
	a.isAlive.Store(false)
	for a.processing.Load() {
		runtime.Gosched()
	}
}

// classifyBackendErr maps a backing-store error to the actor-level
// outcome the spec defines: out-of-order timestamps map to OutOfOrder,
// everything else (full segment, too many segments, sync failure) to
// OutOfMemory.
func classifyBackendErr(err error) error {
	if errors.Is(err, storage.ErrOutOfOrder) {
		return storage.ErrOutOfOrder
	}
	return ErrOutOfMemory
}
