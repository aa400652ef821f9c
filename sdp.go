// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package av1rtp

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// maxLevelIdx is the largest legal seq_level_idx value (AV1 defines 0..31,
// with 0..23 currently assigned to the "2.0".."7.3" named levels).
const maxLevelIdx = 31

// levelIdxNames is a display-only "2.0".."7.3" ↔ 0..23 name table (six
// major levels 2..7, each with four minor revisions .0..3); the fmtp wire
// value itself is the plain numeric seq_level_idx, not this name.
var levelIdxNames = func() [24]string {
	var names [24]string
	i := 0
	for major := 2; major <= 7; major++ {
		for minor := 0; minor <= 3; minor++ {
			names[i] = fmt.Sprintf("%d.%d", major, minor)
			i++
		}
	}
	return names
}()

// LevelIdxName returns the "major.minor" display name for idx, if one is
// assigned (idx < 24). It is never used by Fmtp/ParseFmtp, which carry
// level-idx as the plain numeric seq_level_idx on the wire.
func LevelIdxName(idx uint8) (string, bool) {
	if int(idx) >= len(levelIdxNames) {
		return "", false
	}
	return levelIdxNames[idx], true
}

// FmtpParams is the parsed form of an AV1 fmtp line (C13). A nil field
// pointer means the key was absent, matching the "unknown/unset keys are
// ignored" rule rather than a bare zero value.
type FmtpParams struct {
	Profile    *uint8
	LevelIdx   *uint8
	Tier       *uint8
	CM         *uint8
	TemporalID *uint8
	SpatialID  *uint8
	SSData     *ScalabilityStructure
}

// RTPMap renders the rtpmap line for payload type pt: "AV1/90000" is fixed
// per spec.md §3/§6.
func RTPMap(pt uint8) string {
	return fmt.Sprintf("a=rtpmap:%d AV1/90000", pt)
}

// ParseRTPMap validates an "a=rtpmap:<pt> AV1/90000" line and returns pt.
func ParseRTPMap(line string) (uint8, error) {
	line = strings.TrimPrefix(strings.TrimSpace(line), "a=rtpmap:")
	fields := strings.SplitN(line, " ", 2)
	if len(fields) != 2 {
		return 0, &Error{Kind: KindMalformedFmtp, Err: errMalformedRTPMap}
	}
	pt, err := strconv.ParseUint(fields[0], 10, 8)
	if err != nil {
		return 0, &Error{Kind: KindMalformedFmtp, Err: err}
	}
	if fields[1] != "AV1/90000" {
		return 0, &Error{Kind: KindMalformedFmtp, Err: errUnsupportedEncoding}
	}
	return uint8(pt), nil
}

// Fmtp renders "a=fmtp:<pt> k=v;k=v" for the set fields of p, in the order
// profile, level-idx, tier, cm, tid, lid, ss-data, per spec.md §6. It
// returns "" when no field is set — callers should omit the fmtp line
// entirely in that case.
func Fmtp(pt uint8, p FmtpParams) string {
	var parts []string
	if p.Profile != nil {
		parts = append(parts, fmt.Sprintf("profile=%d", *p.Profile))
	}
	if p.LevelIdx != nil {
		parts = append(parts, fmt.Sprintf("level-idx=%d", *p.LevelIdx))
	}
	if p.Tier != nil {
		parts = append(parts, fmt.Sprintf("tier=%d", *p.Tier))
	}
	if p.CM != nil {
		parts = append(parts, fmt.Sprintf("cm=%d", *p.CM))
	}
	if p.TemporalID != nil {
		parts = append(parts, fmt.Sprintf("tid=%d", *p.TemporalID))
	}
	if p.SpatialID != nil {
		parts = append(parts, fmt.Sprintf("lid=%d", *p.SpatialID))
	}
	if p.SSData != nil {
		if b, err := MarshalSS(*p.SSData); err == nil {
			parts = append(parts, "ss-data="+strings.ToUpper(hex.EncodeToString(b)))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return fmt.Sprintf("a=fmtp:%d %s", pt, strings.Join(parts, ";"))
}

// ParseFmtp parses the key=value parameter list of an "a=fmtp:<pt> ..."
// line (the pt-and-space prefix, if present, is tolerated but not
// validated against pt). Unknown keys are ignored; malformed values for a
// recognized key return a tagged error.
func ParseFmtp(line string) (FmtpParams, error) {
	var p FmtpParams

	line = strings.TrimPrefix(strings.TrimSpace(line), "a=fmtp:")
	if fields := strings.SplitN(line, " ", 2); len(fields) == 2 {
		line = fields[1]
	} else if _, err := strconv.ParseUint(fields[0], 10, 8); err == nil {
		// Bare "a=fmtp:<pt>" with no parameters at all.
		return p, nil
	}

	for _, kv := range strings.Split(line, ";") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key, val := strings.ToLower(strings.TrimSpace(parts[0])), strings.TrimSpace(parts[1])

		switch key {
		case "profile":
			v, err := parseFmtpUint(val, 0, 2)
			if err != nil {
				return FmtpParams{}, &Error{Kind: KindInvalidProfile, Err: err}
			}
			p.Profile = &v
		case "level-idx":
			v, err := parseFmtpUint(val, 0, maxLevelIdx)
			if err != nil {
				return FmtpParams{}, &Error{Kind: KindInvalidLevelIdx, Err: errInvalidLevelIdx}
			}
			p.LevelIdx = &v
		case "tier":
			v, err := parseFmtpUint(val, 0, 1)
			if err != nil {
				return FmtpParams{}, &Error{Kind: KindInvalidTier, Err: err}
			}
			p.Tier = &v
		case "cm":
			v, err := parseFmtpUint(val, 0, 1)
			if err != nil {
				return FmtpParams{}, &Error{Kind: KindInvalidTier, Err: err}
			}
			p.CM = &v
		case "tid", "temporal_id":
			v, err := parseFmtpUint(val, 0, 7)
			if err != nil {
				return FmtpParams{}, &Error{Kind: KindInvalidTemporalID, Err: err}
			}
			p.TemporalID = &v
		case "lid", "spatial_id":
			v, err := parseFmtpUint(val, 0, 3)
			if err != nil {
				return FmtpParams{}, &Error{Kind: KindInvalidSpatialID, Err: err}
			}
			p.SpatialID = &v
		case "ss-data":
			raw, err := hex.DecodeString(val)
			if err != nil {
				return FmtpParams{}, &Error{Kind: KindInvalidSSData, Err: err}
			}
			ss, n, err := UnmarshalSS(raw)
			if err != nil {
				return FmtpParams{}, err
			}
			if n != len(raw) {
				return FmtpParams{}, &Error{Kind: KindInvalidSSData, Err: errTrailingSSData}
			}
			p.SSData = &ss
		default:
			// Unknown keys are ignored, per spec.md §6.
		}
	}

	if p.Tier != nil && *p.Tier == 1 && p.Profile != nil && *p.Profile == 0 {
		return FmtpParams{}, &Error{Kind: KindInvalidTier, Err: errTierIllegalWithProfile0}
	}

	return p, nil
}

func parseFmtpUint(val string, min, max uint8) (uint8, error) {
	n, err := strconv.ParseUint(val, 10, 8)
	if err != nil {
		return 0, err
	}
	if uint8(n) < min || uint8(n) > max {
		return 0, errFmtpValueOutOfRange
	}
	return uint8(n), nil
}
