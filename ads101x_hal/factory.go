// factory.go
//
// reef-pi driver factory for the ADS101x/ADS111x family.
//
// Exposes one AnalogInput pin per input of the chip:
//   - single-ended (default): pin N reads AINN vs GND
//   - Differential=true: pins 0..3 read AIN0-AIN1, AIN0-AIN3, AIN1-AIN3, AIN2-AIN3
//
// ADS1x13/ADS1x14 have no multiplexer, so they get a single pin reading AIN0-AIN1.
// Every Value() runs one single-shot conversion and returns volts.
//
package ads101x_hal

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/reef-pi/hal"
	"github.com/reef-pi/rpi/i2c"
	"go.uber.org/zap"

	"github.com/epicfatigue/ads101x/ads101x"
)

const (
	driverName = "ADS101x"

	paramDebug        = "Debug"
	paramAddress      = "Address"
	paramVariant      = "Variant"
	paramGain         = "Gain"
	paramDataRate     = "DataRate"  // samples per second, 0 = chip default
	paramTimeoutMs    = "TimeoutMs" // single-shot conversion timeout
	paramDifferential = "Differential"

	defaultTimeout = 50 * time.Millisecond
)

type factory struct {
	meta       hal.Metadata
	parameters []hal.ConfigParameter
}

var (
	f      *factory
	once   sync.Once
	logger = zap.NewNop()
)

// SetLogger routes driver logs to l. Call before NewDriver.
func SetLogger(l *zap.Logger) {
	if l != nil {
		logger = l
	}
}

func Factory() hal.DriverFactory {
	once.Do(func() {
		f = &factory{
			meta: hal.Metadata{
				Name:         driverName,
				Description:  "TI ADS1013/1014/1015/1113/1114/1115 I2C ADC. One analog input per AIN (volts, single-shot).",
				Capabilities: []hal.Capability{hal.AnalogInput},
			},
			parameters: []hal.ConfigParameter{
				{Name: paramDebug, Type: hal.Boolean, Order: 0, Default: false},
				{Name: paramAddress, Type: hal.String, Order: 1, Default: "0x48"},
				{Name: paramVariant, Type: hal.String, Order: 2, Default: "ADS1015"},
				{Name: paramGain, Type: hal.String, Order: 3, Default: "2"},
				{Name: paramDataRate, Type: hal.Integer, Order: 4, Default: 0},
				{Name: paramTimeoutMs, Type: hal.Integer, Order: 5, Default: int(defaultTimeout / time.Millisecond)},
				{Name: paramDifferential, Type: hal.Boolean, Order: 6, Default: false},
			},
		}
	})
	return f
}

func (f *factory) Metadata() hal.Metadata               { return f.meta }
func (f *factory) GetParameters() []hal.ConfigParameter { return f.parameters }

// ValidateParameters checks parameter values and returns per-key errors for the UI.
func (f *factory) ValidateParameters(p map[string]interface{}) (bool, map[string][]string) {
	fail := map[string][]string{}

	if v, ok := getAny(p, paramAddress, "address"); ok {
		if _, err := parseI2CAddress(v); err != nil {
			fail[paramAddress] = append(fail[paramAddress], err.Error())
		}
	}

	variant := ads101x.ADS1015
	if v, ok := getAny(p, paramVariant, "variant"); ok {
		s, _ := v.(string)
		vv, err := ads101x.ParseVariant(s)
		if err != nil {
			fail[paramVariant] = append(fail[paramVariant], "must be one of ADS1013, ADS1014, ADS1015, ADS1113, ADS1114, ADS1115")
		} else {
			variant = vv
		}
	}

	if v, ok := getAny(p, paramGain, "gain"); ok {
		g, err := parseGain(v)
		if err != nil {
			fail[paramGain] = append(fail[paramGain], err.Error())
		} else if !variant.HasPGA() && g != ads101x.GainTwo {
			fail[paramGain] = append(fail[paramGain], variant.String()+" has a fixed gain of 2 (±2.048V)")
		}
	}

	cfg := ads101x.DefaultConfig()
	if v, ok := getAny(p, paramDataRate, "datarate", "data_rate", "sps"); ok {
		sps, ok2 := hal.ConvertToInt(v)
		if !ok2 {
			fail[paramDataRate] = append(fail[paramDataRate], "must be an integer (samples per second)")
		} else if sps != 0 {
			if dr, err := variant.DataRateFor(sps); err != nil {
				fail[paramDataRate] = append(fail[paramDataRate], fmt.Sprintf("not a %s data rate: %d", variant, sps))
			} else {
				cfg.DataRate = dr
			}
		}
	}

	timeout := defaultTimeout
	if v, ok := getAny(p, paramTimeoutMs, "timeoutms", "timeout_ms", "timeout"); ok {
		ms, ok2 := hal.ConvertToInt(v)
		if !ok2 || ms <= 0 || ms > 10000 {
			fail[paramTimeoutMs] = append(fail[paramTimeoutMs], "must be 1..10000 ms")
		}
		timeout = time.Duration(ms) * time.Millisecond
	}
	if ct := cfg.ConversionTime(variant); len(fail[paramTimeoutMs]) == 0 && timeout < ct {
		fail[paramTimeoutMs] = append(fail[paramTimeoutMs],
			fmt.Sprintf("%v is shorter than one conversion (%v at %d SPS)", timeout, ct.Round(time.Millisecond), spsOf(variant, cfg.DataRate)))
	}

	return len(fail) == 0, fail
}

func (f *factory) NewDriver(parameters map[string]interface{}, hardwareResources interface{}) (hal.Driver, error) {
	if ok, failures := f.ValidateParameters(parameters); !ok {
		return nil, errors.New(hal.ToErrorString(failures))
	}

	debug := getBoolAny(parameters, false, paramDebug, "debug")

	log := logger.Named("ads101x")
	if !debug {
		log = log.WithOptions(zap.IncreaseLevel(zap.InfoLevel))
	}
	if debug {
		if b, err := json.MarshalIndent(parameters, "", "  "); err == nil {
			log.Debug("NewDriver raw parameters", zap.ByteString("parameters", b))
		}
	}

	bus, ok := hardwareResources.(i2c.Bus)
	if !ok {
		return nil, fmt.Errorf("ads101x: expected i2c.Bus as hardware resource, got %T", hardwareResources)
	}

	addr := ads101x.AddrGND
	if v, ok := getAny(parameters, paramAddress, "address"); ok {
		a, err := parseI2CAddress(v)
		if err != nil {
			return nil, err
		}
		addr = a
	}

	variant := ads101x.ADS1015
	if v, ok := getAny(parameters, paramVariant, "variant"); ok {
		s, _ := v.(string)
		vv, err := ads101x.ParseVariant(s)
		if err != nil {
			return nil, err
		}
		variant = vv
	}

	cfg := ads101x.DefaultConfig()
	cfg.Mode = ads101x.ModeSingleShot
	if v, ok := getAny(parameters, paramGain, "gain"); ok {
		g, err := parseGain(v)
		if err != nil {
			return nil, err
		}
		cfg.Gain = g
	}
	if v, ok := getAny(parameters, paramDataRate, "datarate", "data_rate", "sps"); ok {
		if sps, _ := hal.ConvertToInt(v); sps != 0 {
			dr, err := variant.DataRateFor(sps)
			if err != nil {
				return nil, err
			}
			cfg.DataRate = dr
		}
	}

	timeout := defaultTimeout
	if v, ok := getAny(parameters, paramTimeoutMs, "timeoutms", "timeout_ms", "timeout"); ok {
		if ms, ok2 := hal.ConvertToInt(v); ok2 {
			timeout = time.Duration(ms) * time.Millisecond
		}
	}

	differential := getBoolAny(parameters, false, paramDifferential, "differential")

	dev, err := ads101x.New(bus, addr, variant, ads101x.WithLogger(log), ads101x.WithSharedBus())
	if err != nil {
		return nil, err
	}

	d := newDriver(dev, cfg, timeout, differential, f.meta, log)

	fs, _ := cfg.FullScale()
	log.Info("init",
		zap.Int("pins", len(d.pins)),
		zap.Stringer("gain", cfg.Gain),
		zap.Float64("full_scale_v", fs),
		zap.Stringer("data_rate", cfg.DataRate),
		zap.Duration("timeout", timeout),
		zap.Bool("differential", differential),
	)
	return d, nil
}

// ---------- parsing helpers ----------

func spsOf(v ads101x.Variant, dr ads101x.DataRate) int {
	sps, _ := v.SamplesPerSecond(dr)
	return sps
}

// parseI2CAddress takes the address as a string ("0x48", "72") or a number.
func parseI2CAddress(v interface{}) (byte, error) {
	if s, ok := v.(string); ok {
		return ads101x.ParseAddress(s)
	}
	i, ok := hal.ConvertToInt(v)
	if !ok {
		return 0, fmt.Errorf("Address must be int or hex string like 0x48")
	}
	return ads101x.ParseAddress(strconv.Itoa(i))
}

// parseGain accepts "2/3", "1", "2", "4", "8", "16" or the PGA code as int 0..5.
func parseGain(v interface{}) (ads101x.Gain, error) {
	if s, ok := v.(string); ok {
		g, err := ads101x.ParseGain(s)
		if err != nil {
			return 0, fmt.Errorf("Gain must be one of: 2/3,1,2,4,8,16")
		}
		return g, nil
	}
	if n, ok := hal.ConvertToInt(v); ok {
		if n < 0 || n > int(ads101x.GainSixteen) {
			return 0, fmt.Errorf("Gain int must be 0..5")
		}
		return ads101x.Gain(n), nil
	}
	return 0, fmt.Errorf("Gain must be string (2/3,1,2,4,8,16) or int (0..5)")
}

// getAny returns the value of the first key present in m. Keys match
// case-insensitively, so "Gain" also finds "gain" and "GAIN".
func getAny(m map[string]interface{}, keys ...string) (interface{}, bool) {
	folded := make(map[string]interface{}, len(m))
	for k, v := range m {
		k = strings.ToLower(k)
		if _, dup := folded[k]; !dup {
			folded[k] = v
		}
	}
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return unwrapValue(v), true
		}
		if v, ok := folded[strings.ToLower(k)]; ok {
			return unwrapValue(v), true
		}
	}
	return nil, false
}

// getBoolAny returns a bool if present, otherwise def.
func getBoolAny(m map[string]interface{}, def bool, keys ...string) bool {
	v, ok := getAny(m, keys...)
	if !ok {
		return def
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		return s == "1" || s == "true" || s == "yes" || s == "on"
	default:
		if i, ok := hal.ConvertToInt(v); ok {
			return i != 0
		}
		return def
	}
}

// unwrapValue allows parameter payload shapes like {value: X}.
func unwrapValue(v interface{}) interface{} {
	if m, ok := v.(map[string]interface{}); ok {
		for _, k := range []string{"value", "Value"} {
			if vv, ok := m[k]; ok {
				return vv
			}
		}
	}
	return v
}
