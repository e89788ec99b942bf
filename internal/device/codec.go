// Package device reads CO2 and temperature from the TFA AirControl Mini
// USB HID sensor. Reports arrive scrambled; the codec reverses the device's
// obfuscation and extracts physical readings.
package device

import (
	"encoding/binary"
	"math"
)

// FrameSize is the length of one hardware report in bytes.
const FrameSize = 8

// Report opcodes carried in byte 0 of a decoded frame. The device emits more
// opcodes than these; anything else is ignored.
const (
	opCO2         = 0x50
	opTemperature = 0x42
)

// shuffle maps input byte i to output position shuffle[i].
var shuffle = [FrameSize]int{2, 4, 0, 7, 1, 6, 5, 3}

// maskKey is XORed over the permuted report.
var maskKey = [FrameSize]byte{0x86, 0x41, 0xC9, 0xA8, 0x7F, 0x41, 0x3C, 0xAC}

// frameOffset is subtracted from every byte as the final decode step.
const frameOffset = 0x23

// Decode unscrambles a raw 8-byte hardware report. The transform is fixed by
// the device firmware: permute, XOR with the mask key, a cross-byte 3-bit
// rotate, then an offset subtraction.
func Decode(report [FrameSize]byte) [FrameSize]byte {
	var permuted [FrameSize]byte
	for i, p := range shuffle {
		permuted[p] = report[i]
	}

	for i := range permuted {
		permuted[i] ^= maskKey[i]
	}

	var frame [FrameSize]byte
	for i := range frame {
		frame[i] = permuted[i]>>3 | permuted[(i+7)%FrameSize]<<5
	}

	for i := range frame {
		frame[i] -= frameOffset
	}
	return frame
}

// checksumOK verifies that byte 3 is the truncated sum of bytes 0-2.
func checksumOK(frame [FrameSize]byte) bool {
	return frame[3] == frame[0]+frame[1]+frame[2]
}

// parseFrame extracts the opcode and the 16-bit big-endian magnitude from a
// decoded frame. ok is false when the checksum does not match, in which case
// the frame carries nothing usable.
func parseFrame(frame [FrameSize]byte) (op byte, value uint16, ok bool) {
	if !checksumOK(frame) {
		return 0, 0, false
	}
	return frame[0], binary.BigEndian.Uint16(frame[1:3]), true
}

// temperatureFromRaw converts the raw magnitude of a temperature frame to
// degrees Celsius, rounded to one decimal.
func temperatureFromRaw(value uint16) float64 {
	return math.Round((float64(value)/16.0-273.15)*10) / 10
}
