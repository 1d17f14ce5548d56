package ads101x

import (
	"fmt"
	"strings"
)

// Variant identifies a member of the ADS1x1x family.
type Variant uint8

const (
	ADS1013 Variant = iota
	ADS1014
	ADS1015
	ADS1113
	ADS1114
	ADS1115
)

var variantNames = [...]string{
	ADS1013: "ADS1013",
	ADS1014: "ADS1014",
	ADS1015: "ADS1015",
	ADS1113: "ADS1113",
	ADS1114: "ADS1114",
	ADS1115: "ADS1115",
}

var (
	ads101xRates = [8]int{128, 250, 490, 920, 1600, 2400, 3300, 3300}
	ads111xRates = [8]int{8, 16, 32, 64, 128, 250, 475, 860}
)

func (v Variant) valid() bool { return int(v) < len(variantNames) }

func (v Variant) String() string {
	if !v.valid() {
		return fmt.Sprintf("Variant(%d)", uint8(v))
	}
	return variantNames[v]
}

// ParseVariant accepts names like "ADS1015" or "ads1115".
func ParseVariant(s string) (Variant, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, n := range variantNames {
		if n == s {
			return Variant(i), nil
		}
	}
	return 0, &FieldError{Field: "variant", Value: s}
}

// Resolution returns the conversion width in bits: 12 for ADS101x, 16 for ADS111x.
func (v Variant) Resolution() int {
	if v >= ADS1113 {
		return 16
	}
	return 12
}

// HasMux reports whether the input multiplexer exists (ADS1x15 only).
func (v Variant) HasMux() bool { return v == ADS1015 || v == ADS1115 }

// HasPGA reports whether the gain is programmable (not on ADS1x13).
func (v Variant) HasPGA() bool { return v != ADS1013 && v != ADS1113 }

// HasComparator reports whether the comparator and threshold registers exist.
func (v Variant) HasComparator() bool { return v.HasPGA() }

// SamplesPerSecond maps a data rate code to samples per second.
func (v Variant) SamplesPerSecond(r DataRate) (int, bool) {
	if !r.valid() {
		return 0, false
	}
	if v.Resolution() == 16 {
		return ads111xRates[r], true
	}
	return ads101xRates[r], true
}

// DataRateFor returns the code for an exact samples-per-second value.
func (v Variant) DataRateFor(sps int) (DataRate, error) {
	table := ads101xRates
	if v.Resolution() == 16 {
		table = ads111xRates
	}
	for i, n := range table {
		if n == sps {
			return DataRate(i), nil
		}
	}
	return 0, &FieldError{Field: "data rate", Value: sps}
}

// check rejects settings the variant cannot honour. Fields a variant lacks
// must stay at their reset value.
func (v Variant) check(c Config) error {
	if !v.valid() {
		return &FieldError{Field: "variant", Value: uint8(v)}
	}
	if !v.HasMux() && c.Mux != MuxAIN0AIN1 {
		return &FieldError{Field: "mux", Value: c.Mux.String(), Reason: v.String() + " has no input multiplexer"}
	}
	if !v.HasPGA() && c.Gain != GainTwo {
		return &FieldError{Field: "gain", Value: uint8(c.Gain), Reason: v.String() + " has a fixed ±2.048V range"}
	}
	if !v.HasComparator() && c.CompQueue != CompQueueDisable {
		return &FieldError{Field: "comparator queue", Value: uint8(c.CompQueue), Reason: v.String() + " has no comparator"}
	}
	return nil
}
