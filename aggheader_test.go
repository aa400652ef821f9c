// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package av1rtp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDraftAggregationHeader_RoundTrip(t *testing.T) {
	h := DraftAggregationHeader{Start: true, End: false, Fragment: true, OBUCount: 5}
	b := h.Marshal()
	assert.Equal(t, h, ParseDraftAggregationHeader(b))
}

func TestSpecAggregationHeader_RoundTrip(t *testing.T) {
	h := SpecAggregationHeader{Z: true, Y: false, W: 2, N: true, C: true, M: true}
	b := h.Marshal()
	decoded, err := ParseSpecAggregationHeader(b)
	assert.NoError(t, err)
	assert.Equal(t, h, decoded)
}

func TestSpecAggregationHeader_AllBitCombinations(t *testing.T) {
	for z := 0; z < 2; z++ {
		for y := 0; y < 2; y++ {
			for w := 0; w < 4; w++ {
				for n := 0; n < 2; n++ {
					for c := 0; c < 2; c++ {
						for m := 0; m < 2; m++ {
							h := SpecAggregationHeader{
								Z: z == 1, Y: y == 1, W: uint8(w), N: n == 1, C: c == 1, M: m == 1,
							}
							decoded, err := ParseSpecAggregationHeader(h.Marshal())
							assert.NoError(t, err)
							assert.Equal(t, h, decoded)
						}
					}
				}
			}
		}
	}
}

func TestSpecAggregationHeader_ReservedBitRejected(t *testing.T) {
	_, err := ParseSpecAggregationHeader(specIBitMask)
	var e *Error
	assert.ErrorAs(t, err, &e)
	assert.Equal(t, KindReservedBitSet, e.Kind)
}
