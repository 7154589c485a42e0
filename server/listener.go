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

package server

import (
	"context"
	"errors"
	"log"
	"net"
	"sync"

	"github.com/taudb/tau/catalog"
)

// Listener binds the Tau wire protocol's TCP socket and spawns one Handler
// goroutine per accepted connection (spec.md §4.N), mirroring the
// teacher's HTTPServe/MySQLServe pattern of a background accept loop
// feeding per-connection handling.
type Listener struct {
	addr        string
	catalog     *catalog.Catalog
	serverToken [TokenSize]byte
	counters    *Counters

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// NewListener constructs a Listener bound to addr (host:port) once Serve
// is called. counters is shared across every connection spawned by this
// listener.
func NewListener(addr string, cat *catalog.Catalog, serverToken [TokenSize]byte, counters *Counters) *Listener {
	return &Listener{
		addr:        addr,
		catalog:     cat,
		serverToken: serverToken,
		counters:    counters,
	}
}

// Serve binds the listening socket and runs the accept loop until ctx is
// cancelled or Close is called. A per-connection accept error is logged
// and the loop continues; only a closed listener ends Serve.
func (l *Listener) Serve(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", l.addr)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.listener = ln
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Printf("tau: accept error: %v", err)
			continue
		}
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			NewHandler(conn, l.catalog, l.serverToken, l.counters).Run()
		}()
	}
}

// Addr returns the bound address; valid only after Serve has started
// listening. Returns nil if Serve has not yet bound a socket.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listener == nil {
		return nil
	}
	return l.listener.Addr()
}

// Close closes the listening socket, unblocking Accept in Serve. Already
// accepted connections run to completion; Close does not wait for them —
// callers that need a drained shutdown should call Wait after Close.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listener == nil {
		return nil
	}
	return l.listener.Close()
}

// Wait blocks until every spawned connection handler has returned.
func (l *Listener) Wait() {
	l.wg.Wait()
}
