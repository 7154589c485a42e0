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
	"errors"
	"io"
	"log"
	"net"
	"sync/atomic"

	"github.com/taudb/tau/actor"
	"github.com/taudb/tau/catalog"
	"github.com/taudb/tau/label"
	"github.com/taudb/tau/storage"
	"github.com/taudb/tau/wire"
)

// Counters are the per-server request counters the Handler updates; all
// fields are monotonic atomics, shared across every connection (spec.md
// §5 "Metrics counters are monotonic atomic 64-bit integers").
type Counters struct {
	RequestsByOpcode [256]atomic.Uint64
	FramingErrors    atomic.Uint64
}

// Handler runs one connection's request loop (spec.md §4.M).
type Handler struct {
	conn        net.Conn
	catalog     *catalog.Catalog
	serverToken [TokenSize]byte
	session     *Session
	counters    *Counters
}

// NewHandler constructs a Handler for an already-accepted connection.
func NewHandler(conn net.Conn, cat *catalog.Catalog, serverToken [TokenSize]byte, counters *Counters) *Handler {
	return &Handler{
		conn:        conn,
		catalog:     cat,
		serverToken: serverToken,
		session:     NewSession(conn.RemoteAddr()),
		counters:    counters,
	}
}

// Run executes the per-connection loop until the peer disconnects, a
// framing error occurs, or an unauthenticated request arrives. It always
// closes the connection before returning (spec.md §4.M).
func (h *Handler) Run() {
	defer h.conn.Close()
	for {
		hdr, err := wire.ReadHeader(h.conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				h.reportFramingError(err)
			}
			return
		}

		payload := make([]byte, hdr.PayloadLength)
		if hdr.PayloadLength > 0 {
			if _, err := io.ReadFull(h.conn, payload); err != nil {
				return
			}
		}

		h.counters.RequestsByOpcode[hdr.Opcode].Add(1)

		if !h.dispatch(hdr.Opcode, payload) {
			return
		}
	}
}

// reportFramingError maps a wire-level decode error to its status code,
// writes an ERR frame best-effort, and increments the framing-error
// counter. Framing errors are always fatal to the connection.
func (h *Handler) reportFramingError(err error) {
	h.counters.FramingErrors.Add(1)
	var status wire.Status
	switch {
	case errors.Is(err, wire.ErrBadMagic):
		status = wire.StatusBadMagic
	case errors.Is(err, wire.ErrBadVersion):
		status = wire.StatusBadVersion
	case errors.Is(err, wire.ErrBadOpcode):
		status = wire.StatusBadOpcode
	case errors.Is(err, wire.ErrPayloadTooLarge):
		status = wire.StatusPayloadTooLarge
	default:
		return
	}
	wire.WriteErr(h.conn, status)
}

// dispatch handles one decoded request, returning whether the connection
// should continue.
func (h *Handler) dispatch(op wire.Opcode, payload []byte) bool {
	switch op {
	case wire.OpDisconnect:
		h.session.Disconnect()
		wire.WriteOK(h.conn, nil)
		return false

	case wire.OpConnect:
		return h.handleConnect(payload)

	case wire.OpPing:
		if !h.requireAuthenticated() {
			return false
		}
		return h.writeOK(nil)
	}

	if !h.requireAuthenticated() {
		return false
	}

	n, ok := wire.ExpectedPayloadLen(op)
	if ok && len(payload) != n {
		return h.writeErr(wire.StatusInvalidPayload)
	}

	switch op {
	case wire.OpCreateSeries:
		return h.handleCreateSeries(payload)
	case wire.OpDropSeries:
		return h.handleDropSeries(payload)
	case wire.OpAppend:
		return h.handleAppend(payload)
	case wire.OpQueryPoint:
		return h.handleQueryPoint(payload)
	case wire.OpCreateLens:
		return h.handleCreateLens(payload)
	case wire.OpDropLens:
		return h.handleDropLens(payload)
	case wire.OpQueryLens:
		return h.handleQueryLens(payload)
	case wire.OpComposeLens:
		return h.handleComposeLens(payload)
	case wire.OpListLenses:
		return h.handleListLenses()
	default:
		// Decode already rejects any opcode outside the known set, so only
		// known non-request opcodes (PONG, OK, ERR) reach this branch; it is
		// fatal for consistency with the framing-level bad-opcode path
		// rather than silently continuing.
		h.writeErr(wire.StatusBadOpcode)
		return false
	}
}

func (h *Handler) requireAuthenticated() bool {
	if h.session.Authenticated() {
		return true
	}
	wire.WriteErr(h.conn, wire.StatusNotAuthenticated)
	return false
}

func (h *Handler) handleConnect(payload []byte) bool {
	if len(payload) != TokenSize {
		return h.writeErr(wire.StatusInvalidPayload)
	}
	var clientToken [TokenSize]byte
	copy(clientToken[:], payload)
	if !h.session.Authenticate(clientToken, h.serverToken) {
		return h.writeErr(wire.StatusAuthFailed)
	}
	return h.writeOK(nil)
}

func (h *Handler) handleCreateSeries(payload []byte) bool {
	lbl := label.FromBytes(payload)
	err := h.catalog.CreateSeries(lbl)
	return h.writeCatalogResult(err, nil)
}

func (h *Handler) handleDropSeries(payload []byte) bool {
	lbl := label.FromBytes(payload)
	err := h.catalog.DropSeries(lbl)
	return h.writeCatalogResult(err, nil)
}

func (h *Handler) handleAppend(payload []byte) bool {
	req := wire.DecodeAppendRequest(payload)
	err := h.catalog.Append(req.Label, req.Timestamp, req.Value)
	return h.writeCatalogResult(err, nil)
}

func (h *Handler) handleQueryPoint(payload []byte) bool {
	req := wire.DecodeQueryPointRequest(payload)
	v, found, err := h.catalog.QueryPoint(req.Label, req.Timestamp)
	if err != nil {
		return h.writeErr(statusForError(err))
	}
	return h.writeOK(wire.EncodeQueryResponse(found, v))
}

func (h *Handler) handleCreateLens(payload []byte) bool {
	req := wire.DecodeCreateLensRequest(payload)
	transform := storage.TransformName(req.Transform.String())
	err := h.catalog.CreateLens(req.Label, req.Source, transform)
	return h.writeCatalogResult(err, nil)
}

func (h *Handler) handleDropLens(payload []byte) bool {
	lbl := label.FromBytes(payload)
	err := h.catalog.DropLens(lbl)
	return h.writeCatalogResult(err, nil)
}

func (h *Handler) handleQueryLens(payload []byte) bool {
	req := wire.DecodeQueryPointRequest(payload)
	v, found, err := h.catalog.QueryLens(req.Label, req.Timestamp)
	if err != nil {
		return h.writeErr(statusForError(err))
	}
	return h.writeOK(wire.EncodeQueryResponse(found, v))
}

func (h *Handler) handleComposeLens(payload []byte) bool {
	req := wire.DecodeComposeLensRequest(payload)
	err := h.catalog.ComposeLens(req.Label, req.Lens1, req.Lens2)
	return h.writeCatalogResult(err, nil)
}

func (h *Handler) handleListLenses() bool {
	labels := h.catalog.ListLenses()
	return h.writeOK(wire.EncodeListLensesResponse(labels))
}

func (h *Handler) writeCatalogResult(err error, okPayload []byte) bool {
	if err != nil {
		return h.writeErr(statusForError(err))
	}
	return h.writeOK(okPayload)
}

func (h *Handler) writeOK(payload []byte) bool {
	if err := wire.WriteOK(h.conn, payload); err != nil {
		return false
	}
	return true
}

func (h *Handler) writeErr(status wire.Status) bool {
	if err := wire.WriteErr(h.conn, status); err != nil {
		return false
	}
	return true
}

// statusForError translates a catalog/storage/actor error to its wire
// status code (spec.md §4.K, §7); anything unrecognised collapses to
// internal_error.
func statusForError(err error) wire.Status {
	switch {
	case errors.Is(err, catalog.ErrSeriesAlreadyExists):
		return wire.StatusSeriesAlreadyExists
	case errors.Is(err, catalog.ErrSeriesNotFound):
		return wire.StatusSeriesNotFound
	case errors.Is(err, storage.ErrOutOfOrder):
		return wire.StatusOutOfOrder
	case errors.Is(err, catalog.ErrLensAlreadyExists):
		return wire.StatusLensAlreadyExists
	case errors.Is(err, catalog.ErrLensNotFound):
		return wire.StatusLensNotFound
	case errors.Is(err, catalog.ErrCatalogFull):
		return wire.StatusInternalError
	case errors.Is(err, catalog.ErrUnknownTransform):
		return wire.StatusInvalidPayload
	case errors.Is(err, actor.ErrOutOfMemory):
		return wire.StatusInternalError
	default:
		log.Printf("tau: handler: unclassified error: %v", err)
		return wire.StatusInternalError
	}
}
