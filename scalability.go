// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package av1rtp

import (
	"encoding/binary"

	"github.com/beamcaster/av1rtp/obu"
)

// MaxScalabilityStructureSize is the encoded-length ceiling from spec.md §3.
const MaxScalabilityStructureSize = 255

const (
	maxSpatialLayers  = 8 // n_s + 1, n_s ≤ 7
	maxPictureDescs   = 15
	maxReferenceCount = 7
)

// SpatialLayer is one entry of a Scalability Structure's spatial layer
// array.
type SpatialLayer struct {
	Width     uint16
	Height    uint16
	FrameRate *uint8 // present iff the SS's YFlag is false
}

// PictureDescriptor is one entry of a Scalability Structure's picture
// descriptor array.
type PictureDescriptor struct {
	TemporalID uint8
	SpatialID  uint8
	PDiffs     []uint64 // length == reference count, ≤ 7 entries
}

// ScalabilityStructure (SS) describes the spatial/temporal layout of a
// scalable AV1 stream, per spec.md §3/§4.4.
type ScalabilityStructure struct {
	NS            uint8 // spatial_layers - 1, 0..7
	YFlag         bool  // frame_rate omitted from every spatial layer
	SpatialLayers []SpatialLayer
	PictureDescs  []PictureDescriptor
}

// MaxTemporalID returns the highest temporal_id referenced by any picture
// descriptor, used by the layer-ID validator (C5) to bound incoming IDS
// bytes.
func (ss ScalabilityStructure) MaxTemporalID() uint8 {
	var max uint8
	for _, pd := range ss.PictureDescs {
		if pd.TemporalID > max {
			max = pd.TemporalID
		}
	}
	return max
}

func validateSS(ss ScalabilityStructure) error {
	if ss.NS > 7 {
		return &Error{Kind: KindInvalidNS}
	}
	if len(ss.PictureDescs) > maxPictureDescs {
		return &Error{Kind: KindInvalidPictureDesc}
	}
	if len(ss.SpatialLayers) != int(ss.NS)+1 {
		return &Error{Kind: KindSpatialLayerCountMismatch, Expected: int(ss.NS) + 1, Actual: len(ss.SpatialLayers)}
	}

	for _, sl := range ss.SpatialLayers {
		if sl.Width == 0 || sl.Height == 0 {
			return &Error{Kind: KindInvalidSpatialLayer}
		}
		if !ss.YFlag && sl.FrameRate == nil {
			return &Error{Kind: KindInvalidSpatialLayer}
		}
	}

	for _, pd := range ss.PictureDescs {
		if pd.TemporalID > 7 || pd.SpatialID > 3 {
			return &Error{Kind: KindInvalidPictureDesc}
		}
		if len(pd.PDiffs) > maxReferenceCount {
			return &Error{Kind: KindInvalidPictureDesc}
		}
	}

	return nil
}

// MarshalSS encodes ss to its wire form. It returns KindSSTooLarge if the
// result would exceed MaxScalabilityStructureSize, and the same validation
// errors as Unmarshal for a structurally invalid ss.
func MarshalSS(ss ScalabilityStructure) ([]byte, error) {
	if err := validateSS(ss); err != nil {
		return nil, err
	}

	buf := make([]byte, 0, 8)

	var first byte
	first |= (ss.NS & 0b111) << 5
	if ss.YFlag {
		first |= 1 << 4
	}
	first |= byte(len(ss.PictureDescs)) & 0b1111
	buf = append(buf, first)

	for _, sl := range ss.SpatialLayers {
		var wh [4]byte
		binary.BigEndian.PutUint16(wh[0:2], sl.Width)
		binary.BigEndian.PutUint16(wh[2:4], sl.Height)
		buf = append(buf, wh[:]...)
		if !ss.YFlag {
			buf = append(buf, *sl.FrameRate)
		}
	}

	for _, pd := range ss.PictureDescs {
		b := (pd.TemporalID&0b111)<<5 | (pd.SpatialID&0b11)<<3 | (uint8(len(pd.PDiffs)) & 0b111)
		buf = append(buf, b)
		for _, d := range pd.PDiffs {
			buf = obu.AppendULEB128(buf, d)
		}
	}

	if len(buf) > MaxScalabilityStructureSize {
		return nil, &Error{Kind: KindSSTooLarge, Size: len(buf), Max: MaxScalabilityStructureSize}
	}

	return buf, nil
}

// UnmarshalSS decodes a Scalability Structure from the front of b. It
// returns the structure, the number of bytes consumed, and any remaining
// trailing bytes are the caller's to interpret (e.g. as an IDS byte).
func UnmarshalSS(b []byte) (ScalabilityStructure, int, error) {
	if len(b) < 1 {
		return ScalabilityStructure{}, 0, &Error{Kind: KindIncompleteSpatialLayers}
	}

	ss := ScalabilityStructure{
		NS:    (b[0] >> 5) & 0b111,
		YFlag: b[0]&0b10000 != 0,
	}
	nG := int(b[0] & 0b1111)
	pos := 1

	nSpatial := int(ss.NS) + 1
	for i := 0; i < nSpatial; i++ {
		need := 4
		if !ss.YFlag {
			need = 5
		}
		if pos+need > len(b) {
			return ScalabilityStructure{}, 0, &Error{Kind: KindIncompleteSpatialLayers}
		}

		sl := SpatialLayer{
			Width:  binary.BigEndian.Uint16(b[pos : pos+2]),
			Height: binary.BigEndian.Uint16(b[pos+2 : pos+4]),
		}
		pos += 4
		if !ss.YFlag {
			fr := b[pos]
			sl.FrameRate = &fr
			pos++
		}
		ss.SpatialLayers = append(ss.SpatialLayers, sl)
	}

	for i := 0; i < nG; i++ {
		if pos >= len(b) {
			return ScalabilityStructure{}, 0, &Error{Kind: KindIncompletePictureDesc}
		}
		hdr := b[pos]
		pos++

		pd := PictureDescriptor{
			TemporalID: (hdr >> 5) & 0b111,
			SpatialID:  (hdr >> 3) & 0b11,
		}
		refCount := int(hdr & 0b111)

		for j := 0; j < refCount; j++ {
			v, n, err := obu.DecodeULEB128(b[pos:])
			if err != nil {
				return ScalabilityStructure{}, 0, &Error{Kind: KindIncompletePictureDesc}
			}
			pd.PDiffs = append(pd.PDiffs, v)
			pos += n
		}

		ss.PictureDescs = append(ss.PictureDescs, pd)
	}

	if err := validateSS(ss); err != nil {
		return ScalabilityStructure{}, 0, err
	}

	return ss, pos, nil
}
