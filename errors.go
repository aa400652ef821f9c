// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package av1rtp

import (
	"errors"
	"fmt"
)

// Kind identifies a class of rejection from the taxonomy in spec.md §7.
// Kinds are not Go error types themselves (tests and callers match on a
// Kind by unwrapping into *Error with errors.As and reading its Kind field);
// Kind exists so telemetry records and discontinuity events can report a
// stable, serializable tag.
type Kind string

const (
	KindReservedBitSet              Kind = "reserved_bit_set"
	KindReservedIDSBitsSet          Kind = "reserved_ids_bits_set"
	KindMissingIDSByte              Kind = "missing_ids_byte"
	KindInvalidWValue               Kind = "invalid_w_value"
	KindInvalidCValue               Kind = "invalid_c_value"
	KindZSetWithoutSS               Kind = "z_set_without_ss"
	KindMSetWithoutIDS              Kind = "m_set_without_ids"
	KindInvalidNS                   Kind = "invalid_n_s"
	KindSpatialLayerCountMismatch   Kind = "spatial_layer_count_mismatch"
	KindInvalidSpatialLayer         Kind = "invalid_spatial_layer"
	KindInvalidPictureDesc          Kind = "invalid_picture_desc"
	KindSSTooLarge                  Kind = "ss_too_large"
	KindIncompleteSpatialLayers     Kind = "incomplete_spatial_layers"
	KindIncompletePictureDesc       Kind = "incomplete_picture_desc"
	KindInvalidWTransition          Kind = "invalid_w_transition"
	KindFragmentNotStarted          Kind = "fragment_not_started"
	KindIncompleteFragment          Kind = "incomplete_fragment"
	KindDuplicate                   Kind = "duplicate"
	KindOutOfOrder                  Kind = "out_of_order"
	KindLargeGap                    Kind = "large_gap"
	KindTemporalIDExceedsCapability Kind = "temporal_id_exceeds_capability"
	KindSpatialIDExceedsCapability  Kind = "spatial_id_exceeds_capability"
	KindLayerFiltered               Kind = "layer_filtered"
	KindFragmentTimeout             Kind = "fragment_timeout"
	KindReorderTimeout              Kind = "reorder_timeout"
	KindForceFlush                  Kind = "force_flush"
	KindAccessUnitTooLarge          Kind = "access_unit_too_large"
	KindTooManyOBUs                 Kind = "too_many_obus"

	// fmtp/SDP errors (C13).
	KindMalformedFmtp    Kind = "malformed_fmtp"
	KindInvalidProfile   Kind = "invalid_profile"
	KindInvalidLevelIdx  Kind = "invalid_level_idx"
	KindInvalidTier      Kind = "invalid_tier"
	KindInvalidTemporalID Kind = "invalid_temporal_id_fmtp"
	KindInvalidSpatialID  Kind = "invalid_spatial_id_fmtp"
	KindInvalidSSData     Kind = "invalid_ss_data"
)

// Error wraps a rejection with the Kind taxonomy and an optional context
// record (expected/actual/size/max, sequence numbers), matching the
// "tagged success/failure with a small context record" discipline spec.md
// §9 calls for.
type Error struct {
	Kind Kind
	Err  error

	// Context fields, populated where relevant; zero value means "unused".
	Expected int
	Actual   int
	Size     int
	Max      int
	SeqNum   uint16
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("av1rtp: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("av1rtp: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind) *Error { return &Error{Kind: kind} }

// Sentinel errors for conditions that are not part of the Kind taxonomy
// (malformed/short input at the wire-decoding layer), in the style of
// pion/rtp's errNilPacket / errShortPacket.
var (
	errNilPacket             = errors.New("av1rtp: packet is nil")
	errShortPacket           = errors.New("av1rtp: packet is too short")
	errReservedBitSet        = errors.New("av1rtp: reserved header bit set")
	errMissingIDSByte        = errors.New("av1rtp: M bit set but no IDS byte present")
	errZSetWithoutSS         = errors.New("av1rtp: Z bit set but no scalability structure could be parsed")
	errInvalidHeaderMode     = errors.New("av1rtp: HeaderModeAuto is only valid for a Depayloader")

	errMalformedRTPMap         = errors.New("av1rtp: malformed rtpmap line")
	errUnsupportedEncoding     = errors.New("av1rtp: rtpmap encoding is not AV1/90000")
	errInvalidLevelIdx         = errors.New("av1rtp: level-idx must be a number between 0 and 31")
	errTierIllegalWithProfile0 = errors.New("av1rtp: tier=1 is illegal with profile=0")
	errTrailingSSData          = errors.New("av1rtp: ss-data hex decodes to more bytes than one scalability structure consumes")
	errFmtpValueOutOfRange     = errors.New("av1rtp: fmtp value out of range")

	// RTP fixed-header wire errors (C10/C12's transport framing, packet.go).
	errHeaderSizeInsufficient          = errors.New("av1rtp: RTP header size insufficient")
	errHeaderSizeInsufficientForExtension = errors.New("av1rtp: RTP header size insufficient for extension")
	errTooSmall                        = errors.New("av1rtp: buffer too small")
	errInvalidRTPPadding                = errors.New("av1rtp: invalid RTP padding")
	errHeaderExtensionsNotEnabled        = errors.New("av1rtp: header extension not enabled")
	errHeaderExtensionNotFound           = errors.New("av1rtp: header extension not found")
	errRFC8285OneByteHeaderIDRange       = errors.New("av1rtp: header extension id must be between 1 and 14 for RFC 8285 one byte extensions")
	errRFC8285OneByteHeaderSize          = errors.New("av1rtp: header extension payload must be 16 bytes or less for RFC 8285 one byte extensions")
	errRFC8285TwoByteHeaderIDRange       = errors.New("av1rtp: header extension id must be between 1 and 255 for RFC 8285 two byte extensions")
	errRFC8285TwoByteHeaderSize          = errors.New("av1rtp: header extension payload must be 255 bytes or less for RFC 8285 two byte extensions")
	errRFC3550HeaderIDRange              = errors.New("av1rtp: header extension id must be 0 for RFC 3550 extensions")
)
