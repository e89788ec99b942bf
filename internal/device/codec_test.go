package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodeReport applies the device's scrambling, i.e. the exact inverse of
// Decode. Used to fabricate raw reports for codec and session tests.
func encodeReport(frame [FrameSize]byte) [FrameSize]byte {
	var tmp [FrameSize]byte
	for i := range tmp {
		tmp[i] = frame[i] + frameOffset
	}

	var out [FrameSize]byte
	for i := range out {
		out[i] = tmp[i]<<3 | tmp[(i+1)%FrameSize]>>5
	}

	for i := range out {
		out[i] ^= maskKey[i]
	}

	var report [FrameSize]byte
	for i, p := range shuffle {
		report[i] = out[p]
	}
	return report
}

// validFrame builds a decoded frame with a correct checksum for the given
// opcode and big-endian magnitude.
func validFrame(op byte, value uint16) [FrameSize]byte {
	hi := byte(value >> 8)
	lo := byte(value)
	return [FrameSize]byte{op, hi, lo, op + hi + lo}
}

func TestDecode_ZeroReport(t *testing.T) {
	frame := Decode([FrameSize]byte{})
	assert.Equal(t, [FrameSize]byte{109, 165, 22, 18, 236, 197, 4, 114}, frame)

	// 109+165+22 = 296 → 40 mod 256, which does not match byte 3.
	assert.False(t, checksumOK(frame))
	_, _, ok := parseFrame(frame)
	assert.False(t, ok)
}

func TestDecode_RoundTrip(t *testing.T) {
	frames := [][FrameSize]byte{
		validFrame(opCO2, 842),
		validFrame(opTemperature, 4727),
		{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88},
		{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
	}
	for _, frame := range frames {
		assert.Equal(t, frame, Decode(encodeReport(frame)))
	}
}

func TestParseFrame_CO2(t *testing.T) {
	tests := []uint16{0, 400, 842, 1350, 5000, 65535}
	for _, v := range tests {
		op, value, ok := parseFrame(validFrame(opCO2, v))
		require.True(t, ok)
		assert.Equal(t, byte(opCO2), op)
		assert.Equal(t, v, value)
	}
}

func TestParseFrame_ChecksumMismatch(t *testing.T) {
	frame := validFrame(opCO2, 842)
	frame[3]++
	_, _, ok := parseFrame(frame)
	assert.False(t, ok)
}

func TestTemperatureFromRaw(t *testing.T) {
	tests := []struct {
		value uint16
		want  float64
	}{
		{4727, 22.3},  // 4727/16 − 273.15 = 22.2875
		{4370, 0.0},   // 4370/16 − 273.15 = 0.0
		{4763, 24.5},  // 4763/16 − 273.15 = 24.5375
		{4000, -23.1}, // 4000/16 − 273.15 = −23.15, float repr lands just under the half
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, temperatureFromRaw(tt.value), 0.001, "value %d", tt.value)
	}
}
