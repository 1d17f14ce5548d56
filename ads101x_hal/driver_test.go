package ads101x_hal

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/reef-pi/hal"
	"go.uber.org/zap/zaptest"
)

// fakeBus answers Config reads with OS=1 (idle) and Conversion reads with a
// value per mux code.
type fakeBus struct {
	mu     sync.Mutex
	config uint16
	values map[uint16]uint16 // mux code -> conversion word
	writes int
	closed bool
}

func (b *fakeBus) ReadBytes(addr byte, num int) ([]byte, error) { return nil, errors.New("unsupported") }
func (b *fakeBus) WriteBytes(addr byte, value []byte) error     { return errors.New("unsupported") }

func (b *fakeBus) ReadFromReg(addr, reg byte, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var w uint16
	switch reg {
	case 0x00:
		w = b.values[b.config>>12&0x7]
	case 0x01:
		w = b.config | 0x8000
	}
	value[0], value[1] = byte(w>>8), byte(w)
	return nil
}

func (b *fakeBus) WriteToReg(addr, reg byte, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if reg == 0x01 {
		b.config = (uint16(value[0])<<8 | uint16(value[1])) &^ 0x8000
	}
	b.writes++
	return nil
}

func (b *fakeBus) Close() error {
	b.closed = true
	return nil
}

func newTestDriver(t *testing.T, bus *fakeBus, params map[string]interface{}) *Driver {
	t.Helper()
	SetLogger(zaptest.NewLogger(t))
	d, err := Factory().NewDriver(params, bus)
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	return d.(*Driver)
}

func TestValidateParameters(t *testing.T) {
	for _, tc := range []struct {
		name   string
		params map[string]interface{}
		bad    []string
	}{
		{"defaults", map[string]interface{}{}, nil},
		{"good", map[string]interface{}{"Address": "0x49", "Variant": "ADS1115", "Gain": "2/3", "DataRate": 860, "TimeoutMs": 200}, nil},
		{"aliases", map[string]interface{}{"address": 72, "gain": map[string]interface{}{"value": "4"}}, nil},
		{"bad address", map[string]interface{}{"Address": "0x80"}, []string{paramAddress}},
		{"bad variant", map[string]interface{}{"Variant": "ADS1016"}, []string{paramVariant}},
		{"bad gain", map[string]interface{}{"Gain": "3"}, []string{paramGain}},
		{"fixed gain", map[string]interface{}{"Variant": "ADS1013", "Gain": "1"}, []string{paramGain}},
		{"rate of other family", map[string]interface{}{"Variant": "ADS1015", "DataRate": 860}, []string{paramDataRate}},
		{"bad timeout", map[string]interface{}{"TimeoutMs": 0}, []string{paramTimeoutMs}},
		{"timeout below conversion", map[string]interface{}{"Variant": "ADS1115", "DataRate": 8}, []string{paramTimeoutMs}},
		{"timeout covers conversion", map[string]interface{}{"Variant": "ADS1115", "DataRate": 8, "TimeoutMs": 200}, nil},
		{"decimal address", map[string]interface{}{"Address": "75"}, nil},
		{"negative address", map[string]interface{}{"Address": -1}, []string{paramAddress}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ok, fail := Factory().ValidateParameters(tc.params)
			if ok != (len(tc.bad) == 0) {
				t.Fatalf("ok = %v, failures = %v", ok, fail)
			}
			for _, k := range tc.bad {
				if len(fail[k]) == 0 {
					t.Errorf("no failure reported for %s: %v", k, fail)
				}
			}
		})
	}
}

func TestNewDriverRejectsWrongResource(t *testing.T) {
	if _, err := Factory().NewDriver(map[string]interface{}{}, "not a bus"); err == nil {
		t.Fatalf("want error for non-i2c resource")
	}
	if _, err := Factory().NewDriver(map[string]interface{}{"Gain": "3"}, &fakeBus{}); err == nil {
		t.Fatalf("want error for invalid parameters")
	}
}

func TestPinsPerVariant(t *testing.T) {
	for _, tc := range []struct {
		params map[string]interface{}
		pins   int
		name0  string
	}{
		{map[string]interface{}{"Variant": "ADS1015"}, 4, "ADS101x (AIN0)"},
		{map[string]interface{}{"Variant": "ADS1115", "Differential": true}, 4, "ADS101x (AIN0-AIN1)"},
		{map[string]interface{}{"Variant": "ADS1014"}, 1, "ADS101x (AIN0-AIN1)"},
	} {
		d := newTestDriver(t, &fakeBus{}, tc.params)
		pins := d.AnalogInputPins()
		if len(pins) != tc.pins || pins[0].Name() != tc.name0 {
			t.Errorf("%v: %d pins, first %q", tc.params, len(pins), pins[0].Name())
		}
		generic, err := d.Pins(hal.AnalogInput)
		if err != nil || len(generic) != tc.pins {
			t.Errorf("Pins(AnalogInput) = %d, %v", len(generic), err)
		}
		if _, err := d.Pins(hal.DigitalOutput); err == nil {
			t.Errorf("Pins(DigitalOutput): want error")
		}
		if _, err := d.AnalogInputPin(tc.pins); err == nil {
			t.Errorf("AnalogInputPin(%d): want error", tc.pins)
		}
	}
}

func TestPinValue(t *testing.T) {
	bus := &fakeBus{values: map[uint16]uint16{
		4: 0x4000, // AIN0: 1024 codes
		6: 0xC000, // AIN2: -1024 codes
	}}
	d := newTestDriver(t, bus, map[string]interface{}{"Variant": "ADS1015", "Gain": "1"})

	for _, tc := range []struct {
		pin  int
		want float64
	}{
		{0, 2.048},  // 1024 * 4.096 / 2048
		{2, -2.048}, // negative inputs pass through
		{1, 0},
	} {
		p, err := d.AnalogInputPin(tc.pin)
		if err != nil {
			t.Fatalf("AnalogInputPin(%d): %v", tc.pin, err)
		}
		v, err := p.Value()
		if err != nil {
			t.Fatalf("pin %d Value: %v", tc.pin, err)
		}
		if math.Abs(v-tc.want) > 1e-9 {
			t.Errorf("pin %d = %v, want %v", tc.pin, v, tc.want)
		}
	}
}

func TestPinCalibrate(t *testing.T) {
	bus := &fakeBus{values: map[uint16]uint16{4: 0x4000}} // 1.024V at gain 2
	d := newTestDriver(t, bus, map[string]interface{}{})
	p, _ := d.AnalogInputPin(0)

	if err := p.Calibrate([]hal.Measurement{{Expected: 0, Observed: 0.024}, {Expected: 100, Observed: 2.024}}); err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	got, err := p.Measure()
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if math.Abs(got-50) > 1e-9 {
		t.Fatalf("Measure = %v, want 50", got)
	}

	if err := p.Calibrate([]hal.Measurement{{Expected: 1, Observed: 1.024}}); err != nil {
		t.Fatalf("Calibrate one point: %v", err)
	}
	if got, _ := p.Measure(); math.Abs(got-1) > 1e-9 {
		t.Fatalf("one-point Measure = %v, want 1", got)
	}

	if err := p.Calibrate([]hal.Measurement{{Expected: 1, Observed: 1}, {Expected: 2, Observed: 1}}); err == nil {
		t.Fatalf("degenerate points: want error")
	}
	if err := p.Calibrate(make([]hal.Measurement, 3)); err == nil {
		t.Fatalf("three points: want error")
	}
}

func TestDriverCloseKeepsBusOpen(t *testing.T) {
	bus := &fakeBus{}
	d := newTestDriver(t, bus, map[string]interface{}{})
	p, _ := d.AnalogInputPin(0)
	if _, err := p.Value(); err != nil {
		t.Fatalf("Value: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if bus.closed {
		t.Fatalf("driver closed the shared reef-pi bus")
	}
}
