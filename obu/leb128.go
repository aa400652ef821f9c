// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package obu implements parsing and encoding of AV1 Open Bitstream Units,
// including the LEB128 variable-length integer format they are framed with.
package obu

import "errors"

const (
	sevenLsbBitmask = uint64(0b01111111)
	msbBitmask      = uint64(0b10000000)

	// maxLEB128Bytes is the largest number of bytes a conforming LEB128
	// value may occupy on the wire (AV1 leb128() is capped at 8 bytes).
	maxLEB128Bytes = 8
)

// ErrTruncatedLEB128 indicates the buffer ended before a LEB128 continuation
// sequence terminated.
var ErrTruncatedLEB128 = errors.New("obu: buffer ended before LEB128 was finished")

// ErrLEB128TooLong indicates a LEB128 value did not terminate within the
// 8-byte limit imposed on this format.
var ErrLEB128TooLong = errors.New("obu: LEB128 value exceeds 8 bytes")

// AppendULEB128 appends v to b using unsigned LEB128 encoding and returns
// the extended slice.
func AppendULEB128(b []byte, v uint64) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7

		if v != 0 {
			c |= 0x80
		}

		b = append(b, c)

		if c&0x80 == 0 {
			break
		}
	}

	return b
}

// EncodeULEB128 returns the LEB128 encoding of v.
func EncodeULEB128(v uint64) []byte {
	return AppendULEB128(make([]byte, 0, 1), v)
}

// SizeULEB128 returns the number of bytes EncodeULEB128(v) would occupy.
func SizeULEB128(v uint64) int {
	n := 1
	for v >>= 7; v != 0; v >>= 7 {
		n++
	}
	return n
}

// DecodeULEB128 reads a LEB128 value from the front of in.
//
// It returns the decoded value and the number of bytes consumed. Decoding
// reads at most 8 bytes: ErrTruncatedLEB128 is returned if the buffer ends
// mid-continuation, ErrLEB128TooLong if no terminating byte appears within
// 8 bytes.
func DecodeULEB128(in []byte) (value uint64, consumed int, err error) {
	var result uint64

	limit := maxLEB128Bytes
	if len(in) < limit {
		limit = len(in)
	}

	for i := 0; i < limit; i++ {
		b := in[i]
		result |= (uint64(b) & sevenLsbBitmask) << (7 * uint(i))

		if uint64(b)&msbBitmask == 0 {
			return result, i + 1, nil
		}
	}

	if len(in) < maxLEB128Bytes {
		return 0, 0, ErrTruncatedLEB128
	}

	return 0, 0, ErrLEB128TooLong
}
