// device.go
//
// Register-level driver for one ADS101x/ADS111x at one I2C address.
//
// Every register access goes through a per-address mutex: the device keeps a
// register pointer between transactions, so interleaved callers would read
// the wrong register. Multi-step operations (ReadSingle, ReadChannel) hold
// the lock across all steps.
//
// The driver remembers the last Config it wrote successfully and pairs every
// conversion with it. A failed write drops that memory, since the device may
// have latched none, part or all of the new word.
//
package ads101x

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/reef-pi/rpi/i2c"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	minPollWait = 100 * time.Microsecond

	// settle time after switching the mux in continuous mode: the conversion
	// in flight still uses the old input
	muxSettlePeriods = 2
)

var (
	addrMuMu sync.Mutex
	addrMu   = map[byte]*sync.Mutex{}
)

func lockForAddr(addr byte) *sync.Mutex {
	addrMuMu.Lock()
	defer addrMuMu.Unlock()
	if m, ok := addrMu[addr]; ok {
		return m
	}
	m := &sync.Mutex{}
	addrMu[addr] = m
	return m
}

// Device is a handle to one converter.
type Device struct {
	bus       i2c.Bus
	addr      byte
	variant   Variant
	sharedBus bool

	pollWait time.Duration // 0: derived from the data rate
	log      *zap.Logger

	mu        *sync.Mutex
	active    Config
	hasActive bool
	settleAt  time.Time // continuous mode: first conversion of active is due
}

// Option customizes a Device.
type Option func(d *Device)

// WithLogger sets the logger used for bus transaction traces.
func WithLogger(l *zap.Logger) Option {
	return func(d *Device) {
		if l != nil {
			d.log = l
		}
	}
}

// WithPollInterval fixes the OS bit polling interval. It is capped at the
// conversion time of the active data rate.
func WithPollInterval(p time.Duration) Option {
	return func(d *Device) { d.pollWait = p }
}

// WithSharedBus marks the bus as owned by someone else: Close leaves it open.
func WithSharedBus() Option {
	return func(d *Device) { d.sharedBus = true }
}

// New returns a Device for the converter at addr. No bus traffic happens
// until the first Configure.
func New(bus i2c.Bus, addr byte, v Variant, opts ...Option) (*Device, error) {
	if bus == nil {
		return nil, fmt.Errorf("ads101x: nil i2c bus")
	}
	if addr > 0x7F {
		return nil, &FieldError{Field: "address", Value: fmt.Sprintf("0x%02X", addr), Reason: "must be a 7-bit address"}
	}
	if !v.valid() {
		return nil, &FieldError{Field: "variant", Value: uint8(v)}
	}
	d := &Device{
		bus:     bus,
		addr:    addr,
		variant: v,
		log:     zap.NewNop(),
		mu:      lockForAddr(addr),
	}
	for _, o := range opts {
		o(d)
	}
	d.log = d.log.With(zap.String("addr", fmt.Sprintf("0x%02X", addr)), zap.Stringer("variant", v))
	return d, nil
}

func (d *Device) Addr() byte       { return d.addr }
func (d *Device) Variant() Variant { return d.variant }

// Active returns the configuration last written successfully.
func (d *Device) Active() (Config, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active, d.hasActive
}

// Configure writes cfg to the Config register without starting a conversion.
func (d *Device) Configure(ctx context.Context, cfg Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.configure(ctx, cfg, false)
}

// StartSingleShot writes cfg and, in single-shot mode, sets the OS bit to
// start one conversion. In continuous mode it behaves like Configure.
func (d *Device) StartSingleShot(ctx context.Context, cfg Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.configure(ctx, cfg, true)
}

// WaitReady blocks until the pending single-shot conversion completes or
// timeout elapses. In continuous mode it returns at once.
func (d *Device) WaitReady(ctx context.Context, timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.waitReady(ctx, timeout)
}

// ReadConversion reads the Conversion register. Right after a continuous
// mode Configure it first waits for the first conversion to complete.
func (d *Device) ReadConversion(ctx context.Context) (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readConversion(ctx)
}

// ReadSingle runs one complete conversion: StartSingleShot, WaitReady and
// ReadConversion.
func (d *Device) ReadSingle(ctx context.Context, cfg Config, timeout time.Duration) (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.configure(ctx, cfg, true); err != nil {
		return Result{}, err
	}
	if err := d.waitReady(ctx, timeout); err != nil {
		return Result{}, err
	}
	return d.readConversion(ctx)
}

// ReadChannel measures mux with the rest of the active configuration.
// Single-shot mode runs a full conversion. Continuous mode rewrites the
// Config register only when the mux changes and then lets the converter
// settle for two conversion periods before reading.
func (d *Device) ReadChannel(ctx context.Context, mux Mux, timeout time.Duration) (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.hasActive {
		return Result{}, ErrNotConfigured
	}
	cfg := d.active
	cfg.Mux = mux

	if cfg.Mode == ModeSingleShot {
		if err := d.configure(ctx, cfg, true); err != nil {
			return Result{}, err
		}
		if err := d.waitReady(ctx, timeout); err != nil {
			return Result{}, err
		}
		return d.readConversion(ctx)
	}

	if d.active.Mux != mux {
		if err := d.configure(ctx, cfg, false); err != nil {
			return Result{}, err
		}
		d.settleAt = time.Now().Add(muxSettlePeriods * cfg.ConversionTime(d.variant))
	}
	return d.readConversion(ctx)
}

// ReadConfig reads the Config register back. ready is the OS bit: false
// while a single-shot conversion is in progress.
func (d *Device) ReadConfig(ctx context.Context) (cfg Config, ready bool, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, err := d.readWord(ctx, RegConfig)
	if err != nil {
		return Config{}, false, err
	}
	return DecodeConfig(w), conversionDone(w), nil
}

// Sync reads the Config register and adopts it as the active configuration,
// for a converter that was set up before this process started. It writes
// nothing.
func (d *Device) Sync(ctx context.Context) (Config, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, err := d.readWord(ctx, RegConfig)
	if err != nil {
		return Config{}, err
	}
	cfg := DecodeConfig(w)
	if err := d.variant.check(cfg); err != nil {
		return Config{}, err
	}
	d.active = cfg
	d.hasActive = true
	d.settleAt = time.Time{}
	d.log.Debug("synced", zap.Stringer("config", cfg), zap.Bool("ready", conversionDone(w)))
	return cfg, nil
}

// Ready reports whether no conversion is in progress.
func (d *Device) Ready(ctx context.Context) (bool, error) {
	_, ready, err := d.ReadConfig(ctx)
	return ready, err
}

// SetThresholds writes the comparator thresholds as signed sample codes.
func (d *Device) SetThresholds(ctx context.Context, lo, hi int) error {
	if !d.variant.HasComparator() {
		return &FieldError{Field: "thresholds", Value: d.variant.String(), Reason: "no comparator"}
	}
	if lo > hi {
		return &FieldError{Field: "thresholds", Value: fmt.Sprintf("%d>%d", lo, hi), Reason: "low above high"}
	}
	bits := d.variant.Resolution()
	lb, err := EncodeThreshold(lo, bits)
	if err != nil {
		return err
	}
	hb, err := EncodeThreshold(hi, bits)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writeReg(ctx, RegLoThresh, lb[:]); err != nil {
		return err
	}
	return d.writeReg(ctx, RegHiThresh, hb[:])
}

// Thresholds reads the comparator thresholds back as signed sample codes.
func (d *Device) Thresholds(ctx context.Context) (lo, hi int, err error) {
	if !d.variant.HasComparator() {
		return 0, 0, &FieldError{Field: "thresholds", Value: d.variant.String(), Reason: "no comparator"}
	}
	bits := d.variant.Resolution()

	d.mu.Lock()
	defer d.mu.Unlock()
	var b [2]byte
	if err := d.readReg(ctx, RegLoThresh, b[:]); err != nil {
		return 0, 0, err
	}
	if lo, err = DecodeThreshold(b[:], bits); err != nil {
		return 0, 0, err
	}
	if err := d.readReg(ctx, RegHiThresh, b[:]); err != nil {
		return 0, 0, err
	}
	if hi, err = DecodeThreshold(b[:], bits); err != nil {
		return 0, 0, err
	}
	return lo, hi, nil
}

// EnableConversionReadyPin turns ALERT/RDY into a conversion-ready signal by
// setting the Hi_thresh MSB and clearing the Lo_thresh MSB. The comparator
// queue in the Config must not be CompQueueDisable for the pin to assert.
func (d *Device) EnableConversionReadyPin(ctx context.Context) error {
	if !d.variant.HasComparator() {
		return &FieldError{Field: "alert/rdy", Value: d.variant.String(), Reason: "no comparator"}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writeReg(ctx, RegLoThresh, []byte{0x00, 0x00}); err != nil {
		return err
	}
	return d.writeReg(ctx, RegHiThresh, []byte{0x80, 0x00})
}

// Close stops continuous conversions by switching to single-shot mode, which
// powers the converter down, and closes the bus unless it is shared.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var err error
	if d.hasActive && d.active.Mode == ModeContinuous {
		cfg := d.active
		cfg.Mode = ModeSingleShot
		err = multierr.Append(err, d.configure(context.Background(), cfg, false))
	}
	d.hasActive = false
	if !d.sharedBus {
		err = multierr.Append(err, d.bus.Close())
	}
	return err
}

// -----------------------------------------------------------------------------
// Internal helpers, called with d.mu held
// -----------------------------------------------------------------------------

func (d *Device) configure(ctx context.Context, cfg Config, start bool) error {
	if err := d.variant.check(cfg); err != nil {
		return err
	}
	w, err := EncodeConfig(cfg)
	if err != nil {
		return err
	}
	if start && cfg.Mode == ModeSingleShot {
		w |= configOS
	}

	// whatever happens below, the old config no longer describes the device
	d.hasActive = false

	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, w)
	if err := d.writeReg(ctx, RegConfig, buf); err != nil {
		return err
	}
	d.active = cfg
	d.hasActive = true
	if cfg.Mode == ModeContinuous {
		d.settleAt = time.Now().Add(cfg.ConversionTime(d.variant))
	}
	d.log.Debug("configured", zap.Stringer("config", cfg), zap.Bool("start", start))
	return nil
}

func (d *Device) waitReady(ctx context.Context, timeout time.Duration) error {
	if !d.hasActive {
		return ErrNotConfigured
	}
	if d.active.Mode == ModeContinuous {
		return nil
	}

	wait := d.pollInterval()
	start := time.Now()
	deadline := start.Add(timeout)
	polls := 0
	var last uint16

	for {
		w, err := d.readWord(ctx, RegConfig)
		if err != nil {
			return err
		}
		last = w
		polls++

		if conversionDone(w) {
			d.log.Debug("conversion ready", zap.Int("polls", polls), zap.Duration("elapsed", time.Since(start)))
			return nil
		}
		now := time.Now()
		if !now.Before(deadline) {
			return &TimeoutError{Addr: d.addr, Timeout: timeout, Polls: polls, LastConfig: last}
		}
		if rem := deadline.Sub(now); rem < wait {
			wait = rem
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
}

// pollInterval is a quarter of the conversion time, bounded below so that
// the fastest rates do not flood the bus and above by one conversion time.
func (d *Device) pollInterval() time.Duration {
	ct := d.active.ConversionTime(d.variant)
	wait := d.pollWait
	if wait <= 0 {
		wait = ct / 4
		if wait < minPollWait {
			wait = minPollWait
		}
	}
	if ct > 0 && wait > ct {
		wait = ct
	}
	return wait
}

func (d *Device) readConversion(ctx context.Context) (Result, error) {
	if !d.hasActive {
		return Result{}, ErrNotConfigured
	}
	if d.active.Mode == ModeContinuous {
		// the register still holds the previous result until then
		if err := sleepCtx(ctx, time.Until(d.settleAt)); err != nil {
			return Result{}, err
		}
	}
	b := make([]byte, 2)
	if err := d.readReg(ctx, RegConversion, b); err != nil {
		return Result{}, err
	}
	bits := d.variant.Resolution()
	raw, err := DecodeConversion(b, bits)
	if err != nil {
		return Result{}, err
	}
	d.log.Debug("conversion", zap.Int("raw", raw), zap.String("bytes", fmt.Sprintf("%02X %02X", b[0], b[1])))
	return Result{Raw: raw, Bits: bits, Config: d.active}, nil
}

func (d *Device) readWord(ctx context.Context, reg byte) (uint16, error) {
	b := make([]byte, 2)
	if err := d.readReg(ctx, reg, b); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// writeReg and readReg check ctx before the transaction only; a started
// transaction always runs to completion.
func (d *Device) writeReg(ctx context.Context, reg byte, b []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.bus.WriteToReg(d.addr, reg, b); err != nil {
		return &BusError{Op: "write", Addr: d.addr, Reg: reg, Err: err}
	}
	d.log.Debug("i2c write", zap.Uint8("reg", reg), zap.Binary("data", b))
	return nil
}

func (d *Device) readReg(ctx context.Context, reg byte, b []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.bus.ReadFromReg(d.addr, reg, b); err != nil {
		return &BusError{Op: "read", Addr: d.addr, Reg: reg, Err: err}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
