package ads101x

import (
	"encoding/binary"
	"fmt"
)

// EncodeConfig packs c into the Config register format with the OS bit clear.
func EncodeConfig(c Config) (uint16, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	w := uint16(c.Mux)<<muxShift |
		uint16(c.Gain)<<pgaShift |
		uint16(c.Mode)<<modeShift |
		uint16(c.DataRate)<<drShift |
		uint16(c.CompMode)<<compModeShift |
		uint16(c.CompPolarity)<<compPolShift |
		uint16(c.CompLatch)<<compLatShift |
		uint16(c.CompQueue)<<compQueShift
	return w, nil
}

// DecodeConfig unpacks a Config register word. The OS bit is ignored, see
// conversionDone.
func DecodeConfig(w uint16) Config {
	return Config{
		Mux:          Mux(w >> muxShift & 0x7),
		Gain:         Gain(w >> pgaShift & 0x7),
		Mode:         Mode(w >> modeShift & 0x1),
		DataRate:     DataRate(w >> drShift & 0x7),
		CompMode:     CompMode(w >> compModeShift & 0x1),
		CompPolarity: CompPolarity(w >> compPolShift & 0x1),
		CompLatch:    CompLatch(w >> compLatShift & 0x1),
		CompQueue:    CompQueue(w >> compQueShift & 0x3),
	}
}

// conversionDone reports the OS bit of a Config word read back from the
// device: 1 means no conversion is in progress.
func conversionDone(w uint16) bool { return w&configOS != 0 }

// DecodeConversion interprets the top bits of a big-endian register value as
// a two's-complement sample. bits is 12 for ADS101x (the 4 low bits are
// padding) or 16 for ADS111x.
func DecodeConversion(b []byte, bits int) (int, error) {
	if len(b) < 2 {
		return 0, fmt.Errorf("ads101x: short conversion read: got %d bytes", len(b))
	}
	if bits != 12 && bits != 16 {
		return 0, &FieldError{Field: "resolution", Value: bits, Reason: "must be 12 or 16"}
	}
	raw := int16(binary.BigEndian.Uint16(b))
	return int(raw >> (16 - bits)), nil
}

// EncodeThreshold left-justifies a signed threshold code the same way the
// Conversion register is laid out.
func EncodeThreshold(code, bits int) ([2]byte, error) {
	var out [2]byte
	if bits != 12 && bits != 16 {
		return out, &FieldError{Field: "resolution", Value: bits, Reason: "must be 12 or 16"}
	}
	lo, hi := MinCode(bits), MaxCode(bits)
	if code < lo || code > hi {
		return out, &FieldError{Field: "threshold", Value: code, Reason: fmt.Sprintf("must be %d..%d", lo, hi)}
	}
	binary.BigEndian.PutUint16(out[:], uint16(int16(code<<(16-bits))))
	return out, nil
}

// DecodeThreshold is the inverse of EncodeThreshold.
func DecodeThreshold(b []byte, bits int) (int, error) {
	return DecodeConversion(b, bits)
}

// MaxCode is the largest positive sample for the resolution.
func MaxCode(bits int) int { return 1<<(bits-1) - 1 }

// MinCode is the most negative sample for the resolution.
func MinCode(bits int) int { return -(1 << (bits - 1)) }
