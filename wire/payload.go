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

package wire

import "github.com/taudb/tau/label"

// Fixed payload widths for requests that have exactly one valid length
// (spec.md §4.K's request-payload column), plus the 1-byte ERR status
// payload. The variable-length LIST_LENSES response has no entry here.
const (
	ConnectPayloadLen      = label.Size               // 32-byte token
	CreateSeriesPayloadLen = label.Size                // 32-byte label
	DropSeriesPayloadLen   = label.Size                // 32-byte label
	AppendPayloadLen       = label.Size + 8 + 8         // label + ts + value
	QueryPointPayloadLen   = label.Size + 8             // label + ts
	CreateLensPayloadLen   = label.Size * 3             // label + source + transform
	DropLensPayloadLen     = label.Size                 // 32-byte label
	QueryLensPayloadLen    = label.Size + 8              // label + ts
	ComposeLensPayloadLen  = label.Size * 3              // new + lens1 + lens2
	ErrPayloadLen          = 1                           // status byte
)

// QueryResponseFoundLen is the response payload width when found=true (1-byte
// flag + 8-byte float64).
const QueryResponseFoundLen = 1 + 8

// QueryResponseNotFoundLen is the response payload width when found=false.
const QueryResponseNotFoundLen = 1

// AppendRequest is the decoded payload of an APPEND frame.
type AppendRequest struct {
	Label     label.Label
	Timestamp int64
	Value     float64
}

// DecodeAppendRequest parses an APPEND payload; caller validates length first.
func DecodeAppendRequest(payload []byte) AppendRequest {
	return AppendRequest{
		Label:     label.FromBytes(payload[0:label.Size]),
		Timestamp: Int64(payload[label.Size : label.Size+8]),
		Value:     Float64(payload[label.Size+8 : label.Size+16]),
	}
}

// QueryPointRequest is the decoded payload of a QUERY_POINT/QUERY_LENS frame.
type QueryPointRequest struct {
	Label     label.Label
	Timestamp int64
}

// DecodeQueryPointRequest parses a QUERY_POINT/QUERY_LENS payload.
func DecodeQueryPointRequest(payload []byte) QueryPointRequest {
	return QueryPointRequest{
		Label:     label.FromBytes(payload[0:label.Size]),
		Timestamp: Int64(payload[label.Size : label.Size+8]),
	}
}

// EncodeQueryResponse renders the 1-byte-flag(+8-byte-value) response
// shared by QUERY_POINT and QUERY_LENS.
func EncodeQueryResponse(found bool, value float64) []byte {
	if !found {
		return []byte{0}
	}
	b := make([]byte, QueryResponseFoundLen)
	b[0] = 1
	PutFloat64(b[1:], value)
	return b
}

// CreateLensRequest is the decoded payload of a CREATE_LENS frame.
type CreateLensRequest struct {
	Label     label.Label
	Source    label.Label
	Transform label.Label // transform name, NUL-padded the same way as a label
}

// DecodeCreateLensRequest parses a CREATE_LENS payload.
func DecodeCreateLensRequest(payload []byte) CreateLensRequest {
	return CreateLensRequest{
		Label:     label.FromBytes(payload[0:label.Size]),
		Source:    label.FromBytes(payload[label.Size : label.Size*2]),
		Transform: label.FromBytes(payload[label.Size*2 : label.Size*3]),
	}
}

// ComposeLensRequest is the decoded payload of a COMPOSE_LENS frame.
type ComposeLensRequest struct {
	Label label.Label
	Lens1 label.Label
	Lens2 label.Label
}

// DecodeComposeLensRequest parses a COMPOSE_LENS payload.
func DecodeComposeLensRequest(payload []byte) ComposeLensRequest {
	return ComposeLensRequest{
		Label: label.FromBytes(payload[0:label.Size]),
		Lens1: label.FromBytes(payload[label.Size : label.Size*2]),
		Lens2: label.FromBytes(payload[label.Size*2 : label.Size*3]),
	}
}

// EncodeListLensesResponse concatenates n 32-byte labels.
func EncodeListLensesResponse(labels []label.Label) []byte {
	b := make([]byte, 0, len(labels)*label.Size)
	for _, l := range labels {
		b = append(b, l.Bytes()...)
	}
	return b
}

// ExpectedPayloadLen returns the exact payload length required for opcodes
// that have exactly one valid length, and ok=false for opcodes whose
// payload is empty, variable-length, or meaningless (PING, DISCONNECT,
// LIST_LENSES, PONG, OK). The handler does not check the payload length
// of those opcodes.
func ExpectedPayloadLen(op Opcode) (n int, ok bool) {
	switch op {
	case OpConnect:
		return ConnectPayloadLen, true
	case OpCreateSeries:
		return CreateSeriesPayloadLen, true
	case OpDropSeries:
		return DropSeriesPayloadLen, true
	case OpAppend:
		return AppendPayloadLen, true
	case OpQueryPoint:
		return QueryPointPayloadLen, true
	case OpCreateLens:
		return CreateLensPayloadLen, true
	case OpDropLens:
		return DropLensPayloadLen, true
	case OpQueryLens:
		return QueryLensPayloadLen, true
	case OpComposeLens:
		return ComposeLensPayloadLen, true
	case OpErr:
		return ErrPayloadLen, true
	default:
		return 0, false
	}
}
