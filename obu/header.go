// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package obu

import "errors"

// Type is the obu_type field of an OBU header (4 bits, values 0..15).
type Type uint8

// OBU types defined by the AV1 bitstream specification. Values not listed
// are reserved.
const (
	TypeSequenceHeader       Type = 1
	TypeTemporalDelimiter    Type = 2
	TypeFrameHeader          Type = 3
	TypeTileGroup            Type = 4
	TypeMetadata             Type = 5
	TypeFrame                Type = 6
	TypeRedundantFrameHeader Type = 7
	TypeTileList             Type = 8
	TypePadding              Type = 15
)

// String returns the AV1 spec name for t, or "reserved" for an unassigned value.
func (t Type) String() string {
	switch t {
	case TypeSequenceHeader:
		return "sequence_header"
	case TypeTemporalDelimiter:
		return "temporal_delimiter"
	case TypeFrameHeader:
		return "frame_header"
	case TypeTileGroup:
		return "tile_group"
	case TypeMetadata:
		return "metadata"
	case TypeFrame:
		return "frame"
	case TypeRedundantFrameHeader:
		return "redundant_frame_header"
	case TypeTileList:
		return "tile_list"
	case TypePadding:
		return "padding"
	default:
		return "reserved"
	}
}

// Discardable reports whether an OBU of this type may be dropped by a
// forwarding middlebox without affecting decodability, per spec.md §3.
func (t Type) Discardable() bool {
	switch t {
	case TypeMetadata, TypePadding, TypeTileList, TypeRedundantFrameHeader:
		return true
	default:
		return !t.known()
	}
}

func (t Type) known() bool {
	switch t {
	case TypeSequenceHeader, TypeTemporalDelimiter, TypeFrameHeader, TypeTileGroup,
		TypeMetadata, TypeFrame, TypeRedundantFrameHeader, TypeTileList, TypePadding:
		return true
	default:
		return false
	}
}

const (
	forbiddenBitMask   = byte(0b10000000)
	typeMask           = byte(0b01111000)
	typeShift          = 3
	extensionFlagMask  = byte(0b00000100)
	hasSizeFieldMask   = byte(0b00000010)
	headerReservedMask = byte(0b00000001)

	extTemporalIDMask  = byte(0b11100000)
	extTemporalIDShift = 5
	extSpatialIDMask   = byte(0b00011000)
	extSpatialIDShift  = 3
	extReservedMask    = byte(0b00000111)
)

// ErrForbiddenBitSet is returned when the forbidden bit of an OBU header is 1.
var ErrForbiddenBitSet = errors.New("obu: forbidden bit set")

// ErrHeaderTruncated is returned when the buffer ends before a declared
// OBU extension header byte can be read.
var ErrHeaderTruncated = errors.New("obu: buffer too short for header")

// ErrExtensionReservedBitsSet is returned when the three reserved bits of
// an OBU extension header are non-zero.
var ErrExtensionReservedBitsSet = errors.New("obu: extension header reserved bits set")

// Header is the parsed form of an OBU's one- or two-byte header.
type Header struct {
	Type          Type
	ExtensionFlag bool
	HasSizeField  bool
	TemporalID    uint8 // valid only if ExtensionFlag
	SpatialID     uint8 // valid only if ExtensionFlag
}

// Size returns the number of header bytes (1, or 2 with an extension).
func (h Header) Size() int {
	if h.ExtensionFlag {
		return 2
	}
	return 1
}

// Marshal encodes h to its wire form.
func (h Header) Marshal() []byte {
	buf := make([]byte, h.Size())
	buf[0] = byte(h.Type) << typeShift
	if h.HasSizeField {
		buf[0] |= hasSizeFieldMask
	}
	if h.ExtensionFlag {
		buf[0] |= extensionFlagMask
		buf[1] = (h.TemporalID << extTemporalIDShift) | (h.SpatialID << extSpatialIDShift)
	}
	return buf
}

// ParseHeader reads an OBU header from the front of b.
//
// It returns the parsed header and the number of bytes consumed (1 or 2).
func ParseHeader(b []byte) (Header, int, error) {
	if len(b) < 1 {
		return Header{}, 0, ErrHeaderTruncated
	}

	first := b[0]
	if first&forbiddenBitMask != 0 {
		return Header{}, 0, ErrForbiddenBitSet
	}

	h := Header{
		Type:          Type((first & typeMask) >> typeShift),
		ExtensionFlag: first&extensionFlagMask != 0,
		HasSizeField:  first&hasSizeFieldMask != 0,
	}

	if !h.ExtensionFlag {
		return h, 1, nil
	}

	if len(b) < 2 {
		return Header{}, 0, ErrHeaderTruncated
	}

	ext := b[1]
	if ext&extReservedMask != 0 {
		return Header{}, 0, ErrExtensionReservedBitsSet
	}

	h.TemporalID = (ext & extTemporalIDMask) >> extTemporalIDShift
	h.SpatialID = (ext & extSpatialIDMask) >> extSpatialIDShift

	return h, 2, nil
}
