package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// FloatToPCM16 converts one floating-point sample to signed 16-bit PCM.
//
// The input is clamped to [-1, 1]. Negative values scale by 32768 and
// non-negative values by 32767 so both ends of the int16 range are reachable
// without overflow.
func FloatToPCM16(s float32) int16 {
	v := float64(s)
	switch {
	case math.IsNaN(v):
		return 0
	case v > 1:
		v = 1
	case v < -1:
		v = -1
	}
	if v < 0 {
		return int16(math.Round(v * 32768))
	}
	return int16(math.Round(v * 32767))
}

// Float32ToPCM16 converts a frame of float samples to 16-bit PCM.
func Float32ToPCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = FloatToPCM16(s)
	}
	return out
}

// Float32ToPCM16LE converts a frame of float samples to raw little-endian
// 16-bit PCM bytes.
func Float32ToPCM16LE(samples []float32) []byte {
	return PCMInt16ToLE(Float32ToPCM16(samples))
}

// PCMInt16ToLE converts int16 samples to raw little-endian bytes.
func PCMInt16ToLE(samples []int16) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*BytesPerSample:], uint16(s))
	}
	return out
}

// LEToPCMInt16 converts raw little-endian bytes back to int16 samples.
// A trailing odd byte is ignored.
func LEToPCMInt16(b []byte) []int16 {
	out := make([]int16, len(b)/BytesPerSample)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*BytesPerSample:]))
	}
	return out
}

// EncodeChunk converts a float frame to PCM16 and returns it as one padded,
// unwrapped standard base64 token.
func EncodeChunk(samples []float32) string {
	return base64.StdEncoding.EncodeToString(Float32ToPCM16LE(samples))
}

/* ---------------------------  Base-64 helpers  ------------------------ */

// Base64ToPCM decodes a chunk produced by EncodeChunk.
func Base64ToPCM(b64 string) ([]byte, error) {
	if b64 == "" {
		return nil, errors.New("base64 empty")
	}
	pcm, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("base64 decode: %w", err)
	}
	if len(pcm)%BytesPerSample != 0 {
		return nil, fmt.Errorf("odd pcm length %d", len(pcm))
	}
	return pcm, nil
}
