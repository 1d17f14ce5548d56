package ads101x

import "math"

// FullScale returns the ±range in volts for the gain code.
func (g Gain) FullScale() (float64, bool) {
	if !g.valid() {
		return 0, false
	}
	return fullScaleVolts[g], true
}

// ToVolts converts a signed sample to volts. -2^(bits-1) maps to -fullScale
// and 2^(bits-1)-1 to one LSB below +fullScale.
func ToVolts(raw, bits int, fullScale float64) float64 {
	return float64(raw) * fullScale / math.Exp2(float64(bits-1))
}

// LSB returns the voltage of one code step.
func LSB(bits int, fullScale float64) float64 {
	return fullScale / math.Exp2(float64(bits-1))
}

// Result is one conversion paired with the configuration it was taken under.
type Result struct {
	Raw    int
	Bits   int
	Config Config
}

// Volts converts the sample with the full-scale range of its gain.
func (r Result) Volts() float64 {
	fs, _ := r.Config.Gain.FullScale()
	return ToVolts(r.Raw, r.Bits, fs)
}

// Saturated reports whether the sample sits on either end of the code range,
// meaning the input is at or beyond the full-scale range.
func (r Result) Saturated() bool {
	return r.Raw >= MaxCode(r.Bits) || r.Raw <= MinCode(r.Bits)
}
