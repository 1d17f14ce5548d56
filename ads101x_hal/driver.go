// driver.go
//
// reef-pi HAL glue for ADS101x: a driver holding the device and one
// AnalogInput pin per measurable input.
//
// Value() returns the input voltage. Measure() applies the pin's linear
// calibration (volts * scale + offset), which Calibrate derives from one or
// two reference points.
//
package ads101x_hal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/reef-pi/hal"
	"go.uber.org/zap"

	"github.com/epicfatigue/ads101x/ads101x"
)

// Driver implements hal.AnalogInputDriver.
type Driver struct {
	dev     *ads101x.Device
	base    ads101x.Config
	timeout time.Duration
	meta    hal.Metadata
	log     *zap.Logger
	pins    []*analogPin
}

func newDriver(dev *ads101x.Device, base ads101x.Config, timeout time.Duration, differential bool, meta hal.Metadata, log *zap.Logger) *Driver {
	d := &Driver{
		dev:     dev,
		base:    base,
		timeout: timeout,
		meta:    meta,
		log:     log,
	}

	var muxes []ads101x.Mux
	switch {
	case !dev.Variant().HasMux():
		muxes = []ads101x.Mux{ads101x.MuxAIN0AIN1}
	case differential:
		muxes = []ads101x.Mux{ads101x.MuxAIN0AIN1, ads101x.MuxAIN0AIN3, ads101x.MuxAIN1AIN3, ads101x.MuxAIN2AIN3}
	default:
		muxes = []ads101x.Mux{ads101x.MuxAIN0GND, ads101x.MuxAIN1GND, ads101x.MuxAIN2GND, ads101x.MuxAIN3GND}
	}
	for i, m := range muxes {
		d.pins = append(d.pins, &analogPin{driver: d, number: i, mux: m, scale: 1})
	}
	return d
}

func (d *Driver) Name() string           { return driverName }
func (d *Driver) Metadata() hal.Metadata { return d.meta }

// Close puts the converter into power-down. The bus belongs to reef-pi and stays open.
func (d *Driver) Close() error { return d.dev.Close() }

// Pins returns pins for the requested capability.
func (d *Driver) Pins(cap hal.Capability) ([]hal.Pin, error) {
	switch cap {
	case hal.AnalogInput:
		pins := make([]hal.Pin, 0, len(d.pins))
		for _, p := range d.pins {
			pins = append(pins, p)
		}
		return pins, nil
	default:
		return nil, fmt.Errorf("unsupported capability: %s", cap.String())
	}
}

func (d *Driver) AnalogInputPins() []hal.AnalogInputPin {
	out := make([]hal.AnalogInputPin, len(d.pins))
	for i, p := range d.pins {
		out[i] = p
	}
	return out
}

func (d *Driver) AnalogInputPin(n int) (hal.AnalogInputPin, error) {
	if n < 0 || n >= len(d.pins) {
		return nil, fmt.Errorf("%s addr=0x%02X: no analog input channel %d", driverName, d.dev.Addr(), n)
	}
	return d.pins[n], nil
}

// read runs one single-shot conversion on mux.
func (d *Driver) read(mux ads101x.Mux) (ads101x.Result, error) {
	cfg := d.base
	cfg.Mux = mux
	res, err := d.dev.ReadSingle(context.Background(), cfg, d.timeout)
	if err != nil {
		return ads101x.Result{}, fmt.Errorf("%s addr=0x%02X %s: %w", driverName, d.dev.Addr(), mux, err)
	}
	if res.Saturated() {
		d.log.Warn("input at full scale", zap.Stringer("mux", mux), zap.Int("raw", res.Raw))
	}
	return res, nil
}

// analogPin is one input of the converter.
type analogPin struct {
	driver *Driver
	number int
	mux    ads101x.Mux

	mu     sync.Mutex
	scale  float64
	offset float64
}

func (p *analogPin) Name() string { return fmt.Sprintf("%s (%s)", driverName, p.mux) }
func (p *analogPin) Number() int  { return p.number }
func (p *analogPin) Close() error { return nil }

// Value returns the measured input voltage.
func (p *analogPin) Value() (float64, error) {
	res, err := p.driver.read(p.mux)
	if err != nil {
		return 0, err
	}
	v := res.Volts()
	p.driver.log.Debug("read", zap.Stringer("mux", p.mux), zap.Int("raw", res.Raw), zap.Float64("volts", v))
	return v, nil
}

// Measure returns the calibrated reading.
func (p *analogPin) Measure() (float64, error) {
	v, err := p.Value()
	if err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return v*p.scale + p.offset, nil
}

// Calibrate fits scale and offset so observed volts map to expected values.
// One point sets the offset only; two points set both.
func (p *analogPin) Calibrate(points []hal.Measurement) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch len(points) {
	case 0:
		p.scale, p.offset = 1, 0
	case 1:
		p.scale = 1
		p.offset = points[0].Expected - points[0].Observed
	case 2:
		a, b := points[0], points[1]
		if a.Observed == b.Observed {
			return fmt.Errorf("%s: calibration points share observed value %v", p.Name(), a.Observed)
		}
		p.scale = (b.Expected - a.Expected) / (b.Observed - a.Observed)
		p.offset = a.Expected - p.scale*a.Observed
	default:
		return fmt.Errorf("%s: calibration takes one or two points, got %d", p.Name(), len(points))
	}
	p.driver.log.Info("calibrated", zap.Stringer("mux", p.mux), zap.Float64("scale", p.scale), zap.Float64("offset", p.offset))
	return nil
}
