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
	"io"
	"net"
	"testing"

	"github.com/taudb/tau/catalog"
	"github.com/taudb/tau/label"
	"github.com/taudb/tau/wire"
)

func newTestPair(t *testing.T) (client net.Conn, cat *catalog.Catalog, token [TokenSize]byte, done chan struct{}) {
	t.Helper()
	c, err := catalog.New(catalog.Config{
		CatalogCapacity:        16,
		MailboxCapacity:        8,
		SegmentCapacityDefault: 8,
		Backend:                catalog.BackendSegment,
	})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	clientConn, serverConn := net.Pipe()
	var tok [TokenSize]byte
	copy(tok[:], "test-token")
	h := NewHandler(serverConn, c, tok, &Counters{})
	done = make(chan struct{})
	go func() {
		h.Run()
		close(done)
	}()
	return clientConn, c, tok, done
}

func sendFrame(t *testing.T, conn net.Conn, op wire.Opcode, payload []byte) {
	t.Helper()
	if err := wire.WriteFrame(conn, op, payload); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func readFrame(t *testing.T, conn net.Conn) (wire.Header, []byte) {
	t.Helper()
	hdr, err := wire.ReadHeader(conn)
	if err != nil {
		t.Fatalf("read header: %v", err)
	}
	buf := make([]byte, hdr.PayloadLength)
	if hdr.PayloadLength > 0 {
		if _, err := io.ReadFull(conn, buf); err != nil {
			t.Fatalf("read payload: %v", err)
		}
	}
	return hdr, buf
}

func TestHandlerRejectsUnauthenticatedRequest(t *testing.T) {
	client, _, _, done := newTestPair(t)
	defer client.Close()

	sendFrame(t, client, wire.OpCreateSeries, label.New("x").Bytes())
	hdr, payload := readFrame(t, client)
	if hdr.Opcode != wire.OpErr || wire.Status(payload[0]) != wire.StatusNotAuthenticated {
		t.Fatalf("got opcode=%v status=%v, want ERR/not_authenticated", hdr.Opcode, payload)
	}
	client.Close()
	<-done
}

func TestHandlerConnectThenCreateAppendQuery(t *testing.T) {
	client, _, tok, done := newTestPair(t)
	defer client.Close()

	sendFrame(t, client, wire.OpConnect, tok[:])
	hdr, _ := readFrame(t, client)
	if hdr.Opcode != wire.OpOK {
		t.Fatalf("connect: got %v, want OK", hdr.Opcode)
	}

	lbl := label.New("temperature_c")
	sendFrame(t, client, wire.OpCreateSeries, lbl.Bytes())
	hdr, _ = readFrame(t, client)
	if hdr.Opcode != wire.OpOK {
		t.Fatalf("create_series: got %v, want OK", hdr.Opcode)
	}

	appendPayload := make([]byte, label.Size+16)
	copy(appendPayload, lbl.Bytes())
	wire.PutInt64(appendPayload[label.Size:], 42)
	wire.PutFloat64(appendPayload[label.Size+8:], 3.5)
	sendFrame(t, client, wire.OpAppend, appendPayload)
	hdr, _ = readFrame(t, client)
	if hdr.Opcode != wire.OpOK {
		t.Fatalf("append: got %v, want OK", hdr.Opcode)
	}

	queryPayload := make([]byte, label.Size+8)
	copy(queryPayload, lbl.Bytes())
	wire.PutInt64(queryPayload[label.Size:], 42)
	sendFrame(t, client, wire.OpQueryPoint, queryPayload)
	hdr, payload := readFrame(t, client)
	if hdr.Opcode != wire.OpOK || payload[0] != 1 || wire.Float64(payload[1:]) != 3.5 {
		t.Fatalf("query: got opcode=%v payload=%v, want OK/found=1/3.5", hdr.Opcode, payload)
	}

	client.Close()
	<-done
}

func TestHandlerAuthFailedOnBadToken(t *testing.T) {
	client, _, _, done := newTestPair(t)
	defer client.Close()

	var bad [TokenSize]byte
	copy(bad[:], "wrong-token")
	sendFrame(t, client, wire.OpConnect, bad[:])
	hdr, payload := readFrame(t, client)
	if hdr.Opcode != wire.OpErr || wire.Status(payload[0]) != wire.StatusAuthFailed {
		t.Fatalf("got opcode=%v status=%v, want ERR/auth_failed", hdr.Opcode, payload)
	}
	client.Close()
	<-done
}

func TestHandlerInvalidPayloadLength(t *testing.T) {
	client, _, tok, done := newTestPair(t)
	defer client.Close()

	sendFrame(t, client, wire.OpConnect, tok[:])
	readFrame(t, client)

	sendFrame(t, client, wire.OpCreateSeries, []byte{1, 2, 3})
	hdr, payload := readFrame(t, client)
	if hdr.Opcode != wire.OpErr || wire.Status(payload[0]) != wire.StatusInvalidPayload {
		t.Fatalf("got opcode=%v status=%v, want ERR/invalid_payload", hdr.Opcode, payload)
	}
	client.Close()
	<-done
}

func TestHandlerUnrecognisedOpcodeTerminatesConnection(t *testing.T) {
	client, _, tok, done := newTestPair(t)
	defer client.Close()

	sendFrame(t, client, wire.OpConnect, tok[:])
	readFrame(t, client)

	sendFrame(t, client, wire.Opcode(0x77), nil)
	hdr, payload := readFrame(t, client)
	if hdr.Opcode != wire.OpErr || wire.Status(payload[0]) != wire.StatusBadOpcode {
		t.Fatalf("got opcode=%v status=%v, want ERR/bad_opcode", hdr.Opcode, payload)
	}
	<-done
}

func TestHandlerDisconnectClosesLoop(t *testing.T) {
	client, _, tok, done := newTestPair(t)
	defer client.Close()

	sendFrame(t, client, wire.OpConnect, tok[:])
	readFrame(t, client)

	sendFrame(t, client, wire.OpDisconnect, nil)
	hdr, _ := readFrame(t, client)
	if hdr.Opcode != wire.OpOK {
		t.Fatalf("disconnect: got %v, want OK", hdr.Opcode)
	}
	<-done
}
