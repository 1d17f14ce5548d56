package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/epicfatigue/ads101x/ads101x"
)

// settings is the resolved reader configuration.
type settings struct {
	Backend  string // "reefpi" or "smbus"
	Bus      int
	Addr     byte
	Variant  ads101x.Variant
	Config   ads101x.Config
	Channels []ads101x.Mux
	Interval time.Duration
	Timeout  time.Duration
	LogLevel string

	MQTTBroker string
	MQTTTopic  string
	MQTTClient string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", "reefpi")
	v.SetDefault("i2c-bus", 1)
	v.SetDefault("address", "0x48")
	v.SetDefault("variant", "ADS1015")
	v.SetDefault("mode", "single-shot")
	v.SetDefault("gain", "2/3")
	v.SetDefault("data-rate", 0)
	v.SetDefault("channels", []string{"AIN0", "AIN1", "AIN2", "AIN3"})
	v.SetDefault("interval", "1s")
	v.SetDefault("timeout", "50ms")
	v.SetDefault("log-level", "info")
	v.SetDefault("mqtt-topic", "ads101x/readings")
	v.SetDefault("mqtt-client-id", "ads101x-read")
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	fs.String("config", "", "config file (yaml, json or toml)")
	fs.String("backend", "", "bus backend: reefpi or smbus")
	fs.Int("i2c-bus", 0, "i2c adapter number (smbus backend)")
	fs.String("address", "", "device address, e.g. 0x48")
	fs.String("variant", "", "ADS1013..ADS1015, ADS1113..ADS1115")
	fs.String("mode", "", "continuous or single-shot")
	fs.String("gain", "", "PGA gain: 2/3, 1, 2, 4, 8, 16")
	fs.Int("data-rate", 0, "samples per second (0: chip default, 1600 on ADS101x, 128 on ADS111x)")
	fs.StringSlice("channels", nil, "inputs to read, e.g. AIN0,AIN1 or AIN0-AIN1")
	fs.Duration("interval", 0, "time between read rounds")
	fs.Duration("timeout", 0, "single-shot conversion timeout")
	fs.String("log-level", "", "debug, info, warn, error")
	fs.String("mqtt-broker", "", "publish readings to this broker, e.g. tcp://localhost:1883")
	fs.String("mqtt-topic", "", "MQTT topic for readings")
	return v.BindPFlags(fs)
}

// loadSettings reads defaults, then the config file if one is given, then flags.
func loadSettings(v *viper.Viper) (*settings, error) {
	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", file, err)
		}
	}

	s := &settings{
		Backend:    strings.ToLower(v.GetString("backend")),
		Bus:        v.GetInt("i2c-bus"),
		Interval:   v.GetDuration("interval"),
		Timeout:    v.GetDuration("timeout"),
		LogLevel:   v.GetString("log-level"),
		MQTTBroker: v.GetString("mqtt-broker"),
		MQTTTopic:  v.GetString("mqtt-topic"),
		MQTTClient: v.GetString("mqtt-client-id"),
	}
	if s.Backend != "reefpi" && s.Backend != "smbus" {
		return nil, fmt.Errorf("backend must be reefpi or smbus, got %q", s.Backend)
	}
	if s.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %v", s.Interval)
	}

	var err error
	if s.Addr, err = ads101x.ParseAddress(v.GetString("address")); err != nil {
		return nil, err
	}
	if s.Variant, err = ads101x.ParseVariant(v.GetString("variant")); err != nil {
		return nil, err
	}

	cfg := ads101x.DefaultConfig()
	if cfg.Mode, err = ads101x.ParseMode(v.GetString("mode")); err != nil {
		return nil, err
	}
	if cfg.Gain, err = ads101x.ParseGain(v.GetString("gain")); err != nil {
		return nil, err
	}
	if sps := v.GetInt("data-rate"); sps != 0 {
		if cfg.DataRate, err = s.Variant.DataRateFor(sps); err != nil {
			return nil, err
		}
	}

	for _, name := range v.GetStringSlice("channels") {
		m, err := ads101x.ParseMux(name)
		if err != nil {
			return nil, err
		}
		s.Channels = append(s.Channels, m)
	}
	if len(s.Channels) == 0 {
		return nil, fmt.Errorf("no channels configured")
	}
	cfg.Mux = s.Channels[0]
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if ct := cfg.ConversionTime(s.Variant); cfg.Mode == ads101x.ModeSingleShot && s.Timeout < ct {
		return nil, fmt.Errorf("timeout %v is shorter than one conversion (%v)", s.Timeout, ct)
	}
	s.Config = cfg
	return s, nil
}
