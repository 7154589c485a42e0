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

import "testing"

func TestMailboxFIFOOrder(t *testing.T) {
	m := NewMailbox(4)
	for i := 0; i < 3; i++ {
		if !m.TrySend(Message{Ts: int64(i)}) {
			t.Fatalf("send %d should succeed", i)
		}
	}
	for i := 0; i < 3; i++ {
		msg, ok := m.TryRecv()
		if !ok || msg.Ts != int64(i) {
			t.Fatalf("recv %d = %+v,%v, want ts=%d", i, msg, ok, i)
		}
	}
}

func TestMailboxFullRejectsAndCountsFailure(t *testing.T) {
	m := NewMailbox(2)
	if !m.TrySend(Message{}) || !m.TrySend(Message{}) {
		t.Fatal("first two sends should succeed")
	}
	if m.TrySend(Message{}) {
		t.Fatal("third send should fail, mailbox is full")
	}
	if m.SendFailures() != 1 {
		t.Fatalf("send failures = %d, want 1", m.SendFailures())
	}
}

func TestMailboxEmptyRecv(t *testing.T) {
	m := NewMailbox(4)
	if _, ok := m.TryRecv(); ok {
		t.Fatal("recv on empty mailbox should return ok=false")
	}
}

func TestMailboxQueueDepthAndIsEmpty(t *testing.T) {
	m := NewMailbox(4)
	if !m.IsEmpty() {
		t.Fatal("new mailbox should be empty")
	}
	m.TrySend(Message{})
	m.TrySend(Message{})
	if m.QueueDepth() != 2 {
		t.Fatalf("queue depth = %d, want 2", m.QueueDepth())
	}
	m.TryRecv()
	if m.QueueDepth() != 1 {
		t.Fatalf("queue depth after one recv = %d, want 1", m.QueueDepth())
	}
}

func TestMailboxCountersMonotonic(t *testing.T) {
	m := NewMailbox(1)
	m.TrySend(Message{})
	m.TrySend(Message{}) // fails, full
	m.TryRecv()
	m.TryRecv() // fails, empty

	if m.MessagesSent() != 1 {
		t.Fatalf("messages sent = %d, want 1", m.MessagesSent())
	}
	if m.MessagesReceived() != 1 {
		t.Fatalf("messages received = %d, want 1", m.MessagesReceived())
	}
	if m.SendFailures() != 1 {
		t.Fatalf("send failures = %d, want 1", m.SendFailures())
	}
}
