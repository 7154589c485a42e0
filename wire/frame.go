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

// Package wire implements Tau's binary frame protocol (spec.md §4.K): a
// 10-byte header followed by a length-prefixed payload, all big-endian.
// No third-party framing library appears anywhere in the teacher corpus;
// encoding/binary carries this the way storage/storage-int.go's own
// explicit byte-layout code does.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// HeaderSize is the fixed 10-byte frame header width.
const HeaderSize = 10

// MaxPayload bounds a single frame's payload at 4 MiB.
const MaxPayload = 4 * 1024 * 1024

var magic = [3]byte{'T', 'A', 'U'}

// Version is the only wire version this implementation speaks.
const Version = 1

// Opcode identifies the request or response kind carried by a frame.
type Opcode uint8

const (
	OpConnect      Opcode = 0x01
	OpDisconnect   Opcode = 0x02
	OpPing         Opcode = 0x03
	OpPong         Opcode = 0x04
	OpCreateSeries Opcode = 0x10
	OpDropSeries   Opcode = 0x11
	OpAppend       Opcode = 0x20
	OpQueryPoint   Opcode = 0x30
	OpCreateLens   Opcode = 0x40
	OpDropLens     Opcode = 0x41
	OpQueryLens    Opcode = 0x42
	OpComposeLens  Opcode = 0x43
	OpListLenses   Opcode = 0x44
	OpOK           Opcode = 0xF0
	OpErr          Opcode = 0xFF
)

func (o Opcode) String() string {
	switch o {
	case OpConnect:
		return "CONNECT"
	case OpDisconnect:
		return "DISCONNECT"
	case OpPing:
		return "PING"
	case OpPong:
		return "PONG"
	case OpCreateSeries:
		return "CREATE_SERIES"
	case OpDropSeries:
		return "DROP_SERIES"
	case OpAppend:
		return "APPEND"
	case OpQueryPoint:
		return "QUERY_POINT"
	case OpCreateLens:
		return "CREATE_LENS"
	case OpDropLens:
		return "DROP_LENS"
	case OpQueryLens:
		return "QUERY_LENS"
	case OpComposeLens:
		return "COMPOSE_LENS"
	case OpListLenses:
		return "LIST_LENSES"
	case OpOK:
		return "OK"
	case OpErr:
		return "ERR"
	default:
		return fmt.Sprintf("OPCODE(0x%02x)", uint8(o))
	}
}

// Status is the single-byte status code carried in an ERR payload.
type Status uint8

const (
	StatusSuccess             Status = 0
	StatusBadMagic             Status = 1
	StatusBadVersion           Status = 2
	StatusBadOpcode            Status = 3
	StatusPayloadTooLarge      Status = 4
	StatusNotAuthenticated     Status = 5
	StatusAuthFailed           Status = 6
	StatusSeriesNotFound       Status = 7
	StatusSeriesAlreadyExists  Status = 8
	StatusInvalidPayload       Status = 9
	StatusInternalError        Status = 10
	StatusOutOfOrder           Status = 11
	StatusLensNotFound         Status = 12
	StatusLensAlreadyExists    Status = 13
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusBadMagic:
		return "bad_magic"
	case StatusBadVersion:
		return "bad_version"
	case StatusBadOpcode:
		return "bad_opcode"
	case StatusPayloadTooLarge:
		return "payload_too_large"
	case StatusNotAuthenticated:
		return "not_authenticated"
	case StatusAuthFailed:
		return "auth_failed"
	case StatusSeriesNotFound:
		return "series_not_found"
	case StatusSeriesAlreadyExists:
		return "series_already_exists"
	case StatusInvalidPayload:
		return "invalid_payload"
	case StatusInternalError:
		return "internal_error"
	case StatusOutOfOrder:
		return "out_of_order"
	case StatusLensNotFound:
		return "lens_not_found"
	case StatusLensAlreadyExists:
		return "lens_already_exists"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Decode errors, returned verbatim from Decode per spec.md §4.K.
var (
	ErrBadMagic       = errors.New("wire: bad magic")
	ErrBadVersion     = errors.New("wire: bad version")
	ErrBadOpcode       = errors.New("wire: bad opcode")
	ErrPayloadTooLarge = errors.New("wire: payload too large")
)

func isKnownOpcode(o Opcode) bool {
	switch o {
	case OpConnect, OpDisconnect, OpPing, OpPong,
		OpCreateSeries, OpDropSeries, OpAppend, OpQueryPoint,
		OpCreateLens, OpDropLens, OpQueryLens, OpComposeLens, OpListLenses,
		OpOK, OpErr:
		return true
	default:
		return false
	}
}

// Header is the 10-byte frame header, decoded field-by-field.
type Header struct {
	Opcode        Opcode
	Flags         uint8
	PayloadLength uint32
}

// Encode writes the 10-byte header to b, which must be at least HeaderSize long.
func (h Header) Encode(b []byte) {
	_ = b[:HeaderSize]
	b[0], b[1], b[2] = magic[0], magic[1], magic[2]
	b[3] = Version
	b[4] = byte(h.Opcode)
	b[5] = h.Flags
	binary.BigEndian.PutUint32(b[6:10], h.PayloadLength)
}

// Decode parses a 10-byte header. Bad magic/version/opcode/oversize payload
// are all decode-time failures (ErrBadMagic/ErrBadVersion/ErrBadOpcode/
// ErrPayloadTooLarge) and are fatal to the connection; a malformed payload
// *body* for a recognised opcode is a separate, application-level concern
// handled by the caller, not by Decode.
func Decode(b []byte) (Header, error) {
	if len(b) != HeaderSize {
		return Header{}, fmt.Errorf("wire: header must be %d bytes, got %d", HeaderSize, len(b))
	}
	if b[0] != magic[0] || b[1] != magic[1] || b[2] != magic[2] {
		return Header{}, ErrBadMagic
	}
	if b[3] != Version {
		return Header{}, ErrBadVersion
	}
	h := Header{
		Opcode:        Opcode(b[4]),
		Flags:         b[5],
		PayloadLength: binary.BigEndian.Uint32(b[6:10]),
	}
	if !isKnownOpcode(h.Opcode) {
		return Header{}, ErrBadOpcode
	}
	if h.PayloadLength > MaxPayload {
		return Header{}, ErrPayloadTooLarge
	}
	return h, nil
}

// ReadHeader reads exactly HeaderSize bytes from r and decodes them.
func ReadHeader(r io.Reader) (Header, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, err
	}
	return Decode(buf[:])
}

// WriteFrame writes a header followed by payload to w in one call.
func WriteFrame(w io.Writer, op Opcode, payload []byte) error {
	if len(payload) > MaxPayload {
		return ErrPayloadTooLarge
	}
	var buf [HeaderSize]byte
	h := Header{Opcode: op, PayloadLength: uint32(len(payload))}
	h.Encode(buf[:])
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

// WriteErr is a convenience wrapper for an ERR frame (1-byte status payload).
func WriteErr(w io.Writer, status Status) error {
	return WriteFrame(w, OpErr, []byte{byte(status)})
}

// WriteOK is a convenience wrapper for an OK frame with an optional payload.
func WriteOK(w io.Writer, payload []byte) error {
	return WriteFrame(w, OpOK, payload)
}

// PutFloat64 big-endian-encodes an IEEE-754 binary64 value.
func PutFloat64(b []byte, v float64) {
	binary.BigEndian.PutUint64(b, math.Float64bits(v))
}

// Float64 decodes a big-endian IEEE-754 binary64 value.
func Float64(b []byte) float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(b))
}

// PutInt64 big-endian-encodes a signed 64-bit timestamp.
func PutInt64(b []byte, v int64) {
	binary.BigEndian.PutUint64(b, uint64(v))
}

// Int64 decodes a big-endian signed 64-bit timestamp.
func Int64(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}
