package audio_test

import (
	"encoding/base64"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raikerian/go-livecapture/pkg/audio"
)

func TestFloatToPCM16(t *testing.T) {
	tests := map[string]struct {
		in   float32
		want int16
	}{
		"zero":              {in: 0, want: 0},
		"full_positive":     {in: 1, want: 32767},
		"full_negative":     {in: -1, want: -32768},
		"half_positive":     {in: 0.5, want: 16384}, // 16383.5 rounds away from zero
		"half_negative":     {in: -0.5, want: -16384},
		"small_positive":    {in: 0.0001, want: 3},
		"small_negative":    {in: -0.0001, want: -3},
		"clamp_above":       {in: 1.7, want: 32767},
		"clamp_below":       {in: -3, want: -32768},
		"positive_infinity": {in: float32(math.Inf(1)), want: 32767},
		"negative_infinity": {in: float32(math.Inf(-1)), want: -32768},
		"nan":               {in: float32(math.NaN()), want: 0},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, audio.FloatToPCM16(tt.in))
		})
	}
}

func TestFloatToPCM16_MatchesScalingRule(t *testing.T) {
	for i := -1000; i <= 1000; i++ {
		s := float32(i) / 1000
		var want float64
		if s < 0 {
			want = math.Round(float64(s) * 32768)
		} else {
			want = math.Round(float64(s) * 32767)
		}
		require.Equal(t, int16(want), audio.FloatToPCM16(s), "sample %v", s)
	}
}

func TestFloat32ToPCM16LE(t *testing.T) {
	pcm := audio.Float32ToPCM16LE([]float32{0, 1, -1, 2})

	require.Len(t, pcm, 8)
	assert.Equal(t, []byte{0x00, 0x00, 0xFF, 0x7F, 0x00, 0x80, 0xFF, 0x7F}, pcm)
	assert.Equal(t, []int16{0, 32767, -32768, 32767}, audio.LEToPCMInt16(pcm))
}

func TestPCMInt16RoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 1234, -4321}

	assert.Equal(t, samples, audio.LEToPCMInt16(audio.PCMInt16ToLE(samples)))
	assert.Equal(t, []int16{0, 16384, -16384}, audio.Float32ToPCM16([]float32{0, 0.5, -0.5}))
}

func TestEncodeChunk_FullFrame(t *testing.T) {
	frame := make([]float32, audio.FrameSize)
	for i := range frame {
		frame[i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / audio.DefaultSampleRate))
	}

	chunk := audio.EncodeChunk(frame)

	assert.Len(t, chunk, 10924)
	assert.Equal(t, audio.EncodedFrameLen(audio.FrameSize), len(chunk))
	assert.NotContains(t, chunk, "\n")

	raw, err := base64.StdEncoding.DecodeString(chunk)
	require.NoError(t, err)
	assert.Equal(t, audio.Float32ToPCM16LE(frame), raw)
	assert.Len(t, raw, audio.FrameBytes)
}

func TestEncodeChunk_KeepsPadding(t *testing.T) {
	// 1 sample = 2 bytes, which needs one padding character.
	chunk := audio.EncodeChunk([]float32{0.25})

	assert.True(t, strings.HasSuffix(chunk, "="))
	raw, err := audio.Base64ToPCM(chunk)
	require.NoError(t, err)
	assert.Equal(t, []int16{audio.FloatToPCM16(0.25)}, audio.LEToPCMInt16(raw))
}

func TestBase64ToPCM(t *testing.T) {
	tests := map[string]struct {
		samples []float32
	}{
		"frame":  {samples: make([]float32, audio.FrameSize)},
		"single": {samples: []float32{-1}},
		"three":  {samples: []float32{0.1, -0.2, 0.3}},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			decoded, err := audio.Base64ToPCM(audio.EncodeChunk(tt.samples))
			require.NoError(t, err)
			assert.Equal(t, audio.Float32ToPCM16LE(tt.samples), decoded)
		})
	}

	_, err := audio.Base64ToPCM("")
	assert.Error(t, err)

	_, err = audio.Base64ToPCM("not base64!")
	assert.Error(t, err)

	_, err = audio.Base64ToPCM(base64.StdEncoding.EncodeToString([]byte{1, 2, 3}))
	assert.Error(t, err)
}

func TestDownmix(t *testing.T) {
	assert.Equal(t, []float32{0.5, -0.25}, audio.Downmix([]float32{1, 0, -0.5, 0}, 2))
	assert.Equal(t, []float32{0.1, 0.2}, audio.Downmix([]float32{0.1, 0.2}, 1))
	assert.Empty(t, audio.Downmix(nil, 2))
}

func TestAverage(t *testing.T) {
	dst := make([]float32, 3)
	audio.Average(dst, []float32{1, 0.5, -1}, []float32{0, 0.5, -1})

	assert.Equal(t, []float32{0.5, 0.5, -1}, dst)
}
