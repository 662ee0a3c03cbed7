package miniaudio

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBytesToFloat32(t *testing.T) {
	want := []float32{0, 1, -1, 0.25}
	raw := make([]byte, len(want)*4)
	for i, v := range want {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}

	assert.Equal(t, want, bytesToFloat32(raw))
	assert.Equal(t, want[:1], bytesToFloat32(raw[:6]), "partial trailing sample is ignored")
}
