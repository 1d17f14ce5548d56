package ads101x_test

import (
	"math"
	"testing"

	"github.com/epicfatigue/ads101x/ads101x"
)

func TestToVolts(t *testing.T) {
	for _, tc := range []struct {
		raw, bits int
		fs, want  float64
	}{
		{2047, 12, 2.048, 2.048 * 2047 / 2048},
		{-2048, 12, 2.048, -2.048},
		{0, 12, 6.144, 0},
		{1, 12, 4.096, 0.002},
		{32767, 16, 4.096, 4.096 * 32767 / 32768},
		{-32768, 16, 0.256, -0.256},
		{-16384, 16, 1.024, -0.512},
	} {
		got := ads101x.ToVolts(tc.raw, tc.bits, tc.fs)
		if math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("ToVolts(%d, %d, %v) = %.12f, want %.12f", tc.raw, tc.bits, tc.fs, got, tc.want)
		}
	}

	if got := ads101x.ToVolts(-2048, 12, 2.048); got != -2.048 {
		t.Errorf("negative extreme must be exact: got %v", got)
	}
	if got := ads101x.ToVolts(2047, 12, 2.048); math.Abs(got-2.047) > 1e-9 {
		t.Errorf("positive extreme: got %v, want 2.047", got)
	}
}

func TestGainFullScale(t *testing.T) {
	want := []float64{6.144, 4.096, 2.048, 1.024, 0.512, 0.256, 0.256, 0.256}
	for code, fs := range want {
		got, ok := ads101x.Gain(code).FullScale()
		if !ok || got != fs {
			t.Errorf("gain code %d: full scale = %v (ok=%v), want %v", code, got, ok, fs)
		}
	}
	if _, ok := ads101x.Gain(8).FullScale(); ok {
		t.Errorf("gain code 8 must not have a full scale")
	}
}

func TestResult(t *testing.T) {
	cfg := ads101x.DefaultConfig() // ±2.048V
	for _, tc := range []struct {
		res       ads101x.Result
		volts     float64
		saturated bool
	}{
		{ads101x.Result{Raw: 1024, Bits: 12, Config: cfg}, 1.024, false},
		{ads101x.Result{Raw: 2047, Bits: 12, Config: cfg}, 2.047, true},
		{ads101x.Result{Raw: -2048, Bits: 12, Config: cfg}, -2.048, true},
		{ads101x.Result{Raw: -2047, Bits: 12, Config: cfg}, -2.047, false},
		{ads101x.Result{Raw: 2047, Bits: 16, Config: cfg}, 2047 * 2.048 / 32768, false},
	} {
		if got := tc.res.Volts(); math.Abs(got-tc.volts) > 1e-9 {
			t.Errorf("%+v: volts = %v, want %v", tc.res, got, tc.volts)
		}
		if got := tc.res.Saturated(); got != tc.saturated {
			t.Errorf("%+v: saturated = %v, want %v", tc.res, got, tc.saturated)
		}
	}
}

func TestLSB(t *testing.T) {
	if got := ads101x.LSB(12, 2.048); got != 0.001 {
		t.Errorf("12-bit LSB at ±2.048V = %v, want 0.001", got)
	}
	if got := ads101x.LSB(16, 4.096); got != 0.000125 {
		t.Errorf("16-bit LSB at ±4.096V = %v, want 0.000125", got)
	}
}
