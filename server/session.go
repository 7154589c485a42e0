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

// Package server implements Tau's connection-facing layer: the per-
// connection authentication state, the request dispatch loop, and the
// listener that accepts connections and spawns handlers (spec.md
// §4.L-N).
package server

import "net"

// TokenSize is the fixed width of the pre-shared authentication token
// (spec.md §4.L, §4.K CONNECT payload).
const TokenSize = 32

// Session tracks one connection's authentication state machine:
// {unauthenticated, authenticated}, initial unauthenticated (spec.md
// "State machines").
type Session struct {
	RemoteAddr    net.Addr
	authenticated bool
}

// NewSession returns an unauthenticated session for addr.
func NewSession(addr net.Addr) *Session {
	return &Session{RemoteAddr: addr}
}

// Authenticated reports the session's current state.
func (s *Session) Authenticated() bool { return s.authenticated }

// Authenticate compares clientToken against serverToken in constant
// time: every byte pair is XORed into a single accumulator regardless of
// where they first differ, so the comparison's running time does not
// depend on the position of the first mismatch (spec.md §4.L, testable
// property 6). On success the session transitions to authenticated.
func Authenticate(clientToken, serverToken [TokenSize]byte) bool {
	var acc byte
	for i := 0; i < TokenSize; i++ {
		acc |= clientToken[i] ^ serverToken[i]
	}
	return acc == 0
}

// Authenticate runs the constant-time comparison against serverToken and
// records the outcome on the session.
func (s *Session) Authenticate(clientToken, serverToken [TokenSize]byte) bool {
	ok := Authenticate(clientToken, serverToken)
	s.authenticated = ok
	return ok
}

// Disconnect resets the session to unauthenticated; the handler is
// responsible for closing the underlying socket.
func (s *Session) Disconnect() {
	s.authenticated = false
}
