// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package obu

import "errors"

// MaxPayloadSize is the largest OBU payload size this implementation will
// accept, per spec.md §3 ("payload size ≤ 256000").
const MaxPayloadSize = 256000

// Sentinel errors returned by Split / parseNext. Each carries no context by
// itself; callers that need the expected/actual/size/max record should use
// errors.As against *ParseError.
var (
	ErrIncompleteOBU        = errors.New("obu: OBU body truncated")
	ErrZeroLengthOBU        = errors.New("obu: zero-length OBU")
	ErrOBUTooLarge          = errors.New("obu: OBU payload exceeds maximum size")
	ErrPartialOBUAtBoundary = errors.New("obu: final OBU in buffer is truncated")
)

// ParseError carries the measurement context behind a Split/parseNext
// failure so tests and telemetry can report on the kind without parsing
// error strings.
type ParseError struct {
	Err      error
	Expected int // bytes expected to complete the unit, when known
	Actual   int // bytes actually available
	Size     int // declared payload size, when known
	Max      int // limit that was exceeded, when applicable
}

func (e *ParseError) Error() string { return e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// OBU is one parsed Open Bitstream Unit.
type OBU struct {
	Header  Header
	Payload []byte // the OBU's payload bytes, excluding header and size field
}

// Raw re-encodes the OBU to its canonical wire form with the size field
// stripped (the form RTP payloads carry, per the AV1 RTP spec's
// recommendation that obu_has_size_field SHOULD be zero on the wire).
func (o OBU) Raw() []byte {
	h := o.Header
	h.HasSizeField = false
	return append(h.Marshal(), o.Payload...)
}

// reader walks a byte slice, parsing one size-prefixed OBU at a time.
type reader struct {
	buf []byte
	pos int
}

// parseNext parses a single OBU starting at r.pos. The OBU is assumed to
// carry an explicit LEB128 size: that is what the access-unit bitstream
// format (and this engine's reassembled payload elements) guarantee, even
// though obu_has_size_field itself may read zero on the wire.
func (r *reader) parseNext() (OBU, int, error) {
	start := r.pos
	h, hdrLen, err := ParseHeader(r.buf[r.pos:])
	if err != nil {
		return OBU{}, 0, err
	}

	if r.pos+hdrLen > len(r.buf) {
		return OBU{}, 0, ErrHeaderTruncated
	}

	sizePos := r.pos + hdrLen
	size, sizeLen, err := DecodeULEB128(r.buf[sizePos:])
	if err != nil {
		return OBU{}, 0, err
	}

	if size == 0 {
		return OBU{}, 0, &ParseError{Err: ErrZeroLengthOBU}
	}

	if size > MaxPayloadSize {
		return OBU{}, 0, &ParseError{Err: ErrOBUTooLarge, Size: int(size), Max: MaxPayloadSize}
	}

	payloadStart := sizePos + sizeLen
	payloadEnd := payloadStart + int(size)

	if payloadEnd > len(r.buf) {
		return OBU{}, 0, &ParseError{
			Err:      ErrIncompleteOBU,
			Expected: payloadEnd - start,
			Actual:   len(r.buf) - start,
			Size:     int(size),
		}
	}

	o := OBU{Header: h, Payload: r.buf[payloadStart:payloadEnd]}
	r.pos = payloadEnd

	return o, payloadEnd - start, nil
}

// Split parses data as a concatenation of size-prefixed OBUs and returns
// them as a flat list. Split fails closed: on any error it returns the
// error alongside whatever OBUs were parsed before it, so a caller can
// decide whether partial progress is usable.
//
// Split does not require obu_has_size_field to be set on the wire; it
// always expects an explicit LEB128 size to follow each header, which is
// the framing this engine produces and consumes internally. To parse a
// whole access unit as it originally left an encoder (where the final OBU
// conventionally omits its size field) use SplitTolerant.
func Split(data []byte) ([]OBU, error) {
	var obus []OBU
	r := reader{buf: data}

	for r.pos < len(r.buf) {
		o, _, err := r.parseNext()
		if err != nil {
			return obus, err
		}
		obus = append(obus, o)
	}

	return obus, nil
}

// SplitTolerant parses data the way an encoder's raw access unit is laid
// out: every OBU except possibly the last carries an explicit size; a
// final OBU with no size field runs to the end of data. This matches
// pion/rtp's av1 test fixtures, which exercise both framings.
func SplitTolerant(data []byte) ([]OBU, error) {
	var obus []OBU
	pos := 0

	for pos < len(data) {
		h, hdrLen, err := ParseHeader(data[pos:])
		if err != nil {
			return obus, err
		}

		if !h.HasSizeField {
			if pos+hdrLen > len(data) {
				return obus, &ParseError{Err: ErrPartialOBUAtBoundary}
			}
			obus = append(obus, OBU{Header: h, Payload: data[pos+hdrLen:]})
			return obus, nil
		}

		r := reader{buf: data, pos: pos}
		o, n, err := r.parseNext()
		if err != nil {
			var pe *ParseError
			if errors.As(err, &pe) && errors.Is(pe.Err, ErrIncompleteOBU) {
				return obus, &ParseError{Err: ErrPartialOBUAtBoundary, Expected: pe.Expected, Actual: pe.Actual}
			}
			return obus, err
		}

		obus = append(obus, o)
		pos += n
	}

	return obus, nil
}

// CheckBoundary reports whether the final OBU described by a size prefix
// inside data is truncated (true) as opposed to data being empty or
// cleanly terminated. It lets a caller distinguish "the receiver is
// starved, more bytes are coming" from "this is malformed data", per
// spec.md §4.2.
func CheckBoundary(data []byte) bool {
	_, err := Split(data)
	var pe *ParseError
	if errors.As(err, &pe) {
		return errors.Is(pe.Err, ErrIncompleteOBU)
	}
	return false
}
