// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package obu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeader_RoundTrip(t *testing.T) {
	cases := []Header{
		{Type: TypeTemporalDelimiter},
		{Type: TypeFrame, HasSizeField: true},
		{Type: TypeFrame, ExtensionFlag: true, TemporalID: 3, SpatialID: 2},
	}

	for _, h := range cases {
		encoded := h.Marshal()
		decoded, n, err := ParseHeader(encoded)
		assert.NoError(t, err)
		assert.Equal(t, len(encoded), n)
		assert.Equal(t, h, decoded)
	}
}

func TestHeader_ForbiddenBit(t *testing.T) {
	_, _, err := ParseHeader([]byte{0b10000000})
	assert.ErrorIs(t, err, ErrForbiddenBitSet)
}

func TestHeader_ExtensionReservedBits(t *testing.T) {
	h := Header{Type: TypeFrame, ExtensionFlag: true}
	encoded := h.Marshal()
	encoded[1] |= 0b00000001

	_, _, err := ParseHeader(encoded)
	assert.ErrorIs(t, err, ErrExtensionReservedBitsSet)
}

func TestHeader_Truncated(t *testing.T) {
	_, _, err := ParseHeader(nil)
	assert.ErrorIs(t, err, ErrHeaderTruncated)

	h := Header{Type: TypeFrame, ExtensionFlag: true}
	encoded := h.Marshal()
	_, _, err = ParseHeader(encoded[:1])
	assert.ErrorIs(t, err, ErrHeaderTruncated)
}

func TestType_Discardable(t *testing.T) {
	assert.True(t, TypeMetadata.Discardable())
	assert.True(t, TypePadding.Discardable())
	assert.True(t, TypeTileList.Discardable())
	assert.True(t, TypeRedundantFrameHeader.Discardable())
	assert.True(t, Type(9).Discardable()) // reserved
	assert.False(t, TypeFrame.Discardable())
	assert.False(t, TypeSequenceHeader.Discardable())
}

func TestType_String(t *testing.T) {
	assert.Equal(t, "frame", TypeFrame.String())
	assert.Equal(t, "reserved", Type(9).String())
}
