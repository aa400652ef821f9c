// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package av1rtp

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRTPMap_RoundTrip(t *testing.T) {
	line := RTPMap(98)
	assert.Equal(t, "a=rtpmap:98 AV1/90000", line)

	pt, err := ParseRTPMap(line)
	require.NoError(t, err)
	assert.EqualValues(t, 98, pt)
}

func TestParseRTPMap_RejectsOtherEncoding(t *testing.T) {
	_, err := ParseRTPMap("a=rtpmap:98 VP9/90000")
	assert.Error(t, err)
}

func TestLevelIdxNames_CoverAllTwentyFour(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 24; i++ {
		name, ok := LevelIdxName(uint8(i))
		require.True(t, ok)
		assert.False(t, seen[name], "duplicate name %q", name)
		seen[name] = true
	}
	assert.Equal(t, "2.0", levelIdxNames[0])
	assert.Equal(t, "7.3", levelIdxNames[23])
}

func TestFmtp_ScenarioFromSpec(t *testing.T) {
	// spec.md §8 scenario 6's literal worked example: level-idx carries the
	// plain numeric seq_level_idx (13), not a "major.minor" name.
	ss := ScalabilityStructure{
		NS:    0,
		YFlag: true,
		SpatialLayers: []SpatialLayer{
			{Width: 640, Height: 360},
		},
		PictureDescs: nil,
	}
	ssBytes, err := MarshalSS(ss)
	require.NoError(t, err)

	line := "a=fmtp:100 profile=1;level-idx=13;tier=1;ss-data=" + strings.ToUpper(hex.EncodeToString(ssBytes))

	parsed, err := ParseFmtp(line)
	require.NoError(t, err)
	require.NotNil(t, parsed.Profile)
	require.NotNil(t, parsed.LevelIdx)
	require.NotNil(t, parsed.Tier)
	require.NotNil(t, parsed.SSData)

	assert.EqualValues(t, 1, *parsed.Profile)
	assert.EqualValues(t, 13, *parsed.LevelIdx)
	assert.EqualValues(t, 1, *parsed.Tier)

	reparsedBytes, err := MarshalSS(*parsed.SSData)
	require.NoError(t, err)
	assert.Equal(t, ssBytes, reparsedBytes)

	// Re-emission and re-parsing is stable (spec.md §8 scenario 6).
	line2 := Fmtp(100, parsed)
	parsed2, err := ParseFmtp(line2)
	require.NoError(t, err)
	assert.Equal(t, *parsed.Profile, *parsed2.Profile)
	assert.Equal(t, *parsed.LevelIdx, *parsed2.LevelIdx)
	assert.Equal(t, *parsed.Tier, *parsed2.Tier)
}

func TestParseFmtp_UnknownKeysIgnored(t *testing.T) {
	p, err := ParseFmtp("a=fmtp:100 profile=0;bogus=xyz;tid=2")
	require.NoError(t, err)
	require.NotNil(t, p.Profile)
	require.NotNil(t, p.TemporalID)
	assert.EqualValues(t, 0, *p.Profile)
	assert.EqualValues(t, 2, *p.TemporalID)
}

func TestParseFmtp_TierOneIllegalWithProfileZero(t *testing.T) {
	_, err := ParseFmtp("a=fmtp:100 profile=0;tier=1")
	assert.Error(t, err)
}

func TestParseFmtp_LevelIdxOutOfRange(t *testing.T) {
	_, err := ParseFmtp("a=fmtp:100 level-idx=99")
	assert.Error(t, err)
}

func TestFmtp_NoParametersEmitsEmptyLine(t *testing.T) {
	assert.Equal(t, "", Fmtp(100, FmtpParams{}))
}

func TestParseFmtp_Aliases(t *testing.T) {
	p, err := ParseFmtp("a=fmtp:100 temporal_id=3;spatial_id=1")
	require.NoError(t, err)
	require.NotNil(t, p.TemporalID)
	require.NotNil(t, p.SpatialID)
	assert.EqualValues(t, 3, *p.TemporalID)
	assert.EqualValues(t, 1, *p.SpatialID)
}
