package ads101x

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// conversionGuard is added to the nominal conversion period to cover the
// internal oscillator tolerance (±10% on the datasheet) and wake-up time.
const conversionGuard = 500 * time.Microsecond

// Config is the logical content of the Config register, without the OS bit.
type Config struct {
	Mux          Mux
	Gain         Gain
	Mode         Mode
	DataRate     DataRate
	CompMode     CompMode
	CompPolarity CompPolarity
	CompLatch    CompLatch
	CompQueue    CompQueue
}

// DefaultConfig returns the power-on reset configuration.
func DefaultConfig() Config {
	return DecodeConfig(configReset)
}

// NewConfig builds a Config with the comparator disabled and rejects
// out-of-domain values.
func NewConfig(mux Mux, gain Gain, mode Mode, rate DataRate) (Config, error) {
	c := Config{
		Mux:       mux,
		Gain:      gain,
		Mode:      mode,
		DataRate:  rate,
		CompQueue: CompQueueDisable,
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports the first field holding a value outside its enumeration.
func (c Config) Validate() error {
	switch {
	case !c.Mux.valid():
		return &FieldError{Field: "mux", Value: uint8(c.Mux)}
	case !c.Gain.valid():
		return &FieldError{Field: "gain", Value: uint8(c.Gain)}
	case !c.Mode.valid():
		return &FieldError{Field: "mode", Value: uint8(c.Mode)}
	case !c.DataRate.valid():
		return &FieldError{Field: "data rate", Value: uint8(c.DataRate)}
	case !c.CompMode.valid():
		return &FieldError{Field: "comparator mode", Value: uint8(c.CompMode)}
	case !c.CompPolarity.valid():
		return &FieldError{Field: "comparator polarity", Value: uint8(c.CompPolarity)}
	case !c.CompLatch.valid():
		return &FieldError{Field: "comparator latch", Value: uint8(c.CompLatch)}
	case !c.CompQueue.valid():
		return &FieldError{Field: "comparator queue", Value: uint8(c.CompQueue)}
	}
	return nil
}

// FullScale returns the full-scale range in volts selected by the gain.
func (c Config) FullScale() (float64, bool) { return c.Gain.FullScale() }

// ConversionTime returns the nominal conversion period for the configured
// data rate plus a guard margin.
func (c Config) ConversionTime(v Variant) time.Duration {
	sps, ok := v.SamplesPerSecond(c.DataRate)
	if !ok || sps <= 0 {
		return 0
	}
	return time.Second/time.Duration(sps) + conversionGuard
}

func (c Config) String() string {
	return fmt.Sprintf("mux=%s gain=%s mode=%s dr=%s comp=%d/%d/%d/%d",
		c.Mux, c.Gain, c.Mode, c.DataRate, c.CompMode, c.CompPolarity, c.CompLatch, c.CompQueue)
}

// ParseGain accepts "2/3", "1", "2", "4", "8", "16" (the PGA amplification)
// or a full-scale voltage such as "4.096".
func ParseGain(s string) (Gain, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "2/3":
		return GainTwoThirds, nil
	case "1":
		return GainOne, nil
	case "2":
		return GainTwo, nil
	case "4":
		return GainFour, nil
	case "8":
		return GainEight, nil
	case "16":
		return GainSixteen, nil
	}
	if v, err := strconv.ParseFloat(strings.TrimPrefix(s, "±"), 64); err == nil {
		for g := GainTwoThirds; g <= GainSixteen; g++ {
			if fullScaleVolts[g] == v {
				return g, nil
			}
		}
	}
	return 0, &FieldError{Field: "gain", Value: s, Reason: "must be one of 2/3,1,2,4,8,16"}
}

// ParseMux accepts "AIN0".."AIN3" for single-ended inputs and pairs such as
// "AIN0-AIN1" for the differential ones.
func ParseMux(s string) (Mux, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "-GND")
	for i, n := range muxNames {
		if n == s {
			return Mux(i), nil
		}
	}
	return 0, &FieldError{Field: "mux", Value: s}
}

// ParseMode accepts "continuous" and "single" / "single-shot".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "continuous", "cont", "0":
		return ModeContinuous, nil
	case "single", "single-shot", "singleshot", "1":
		return ModeSingleShot, nil
	}
	return 0, &FieldError{Field: "mode", Value: s}
}

// ParseAddress accepts a 7-bit I2C address in decimal ("72") or hex ("0x48").
func ParseAddress(s string) (byte, error) {
	s = strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 0
	}
	n, err := strconv.ParseUint(s, base, 8)
	if err != nil || n > 0x7F {
		return 0, &FieldError{Field: "address", Value: s, Reason: "must be a 7-bit address like 0x48"}
	}
	return byte(n), nil
}
