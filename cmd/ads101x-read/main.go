// Command ads101x-read samples ADS101x/ADS111x inputs at a fixed interval,
// prints the voltages and optionally publishes them over MQTT.
//
//	ads101x-read --variant ADS1115 --gain 1 --channels AIN0,AIN1 --interval 500ms
//
// Settings come from defaults, then an optional --config file, then flags.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/reef-pi/rpi/i2c"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/epicfatigue/ads101x/ads101x"
	"github.com/epicfatigue/ads101x/smbusbus"
)

func main() {
	v := viper.New()
	setDefaults(v)
	fs := pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	if err := bindFlags(v, fs); err != nil {
		fmt.Fprintf(os.Stderr, "ads101x-read: %v\n", err)
		os.Exit(2)
	}
	_ = fs.Parse(os.Args[1:])

	s, err := loadSettings(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ads101x-read: %v\n", err)
		os.Exit(2)
	}

	log, err := newLogger(s.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ads101x-read: %v\n", err)
		os.Exit(2)
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, s, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("exiting", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log-level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

func openBus(s *settings) (i2c.Bus, error) {
	switch s.Backend {
	case "smbus":
		b, err := smbusbus.Open(s.Bus)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return i2c.New()
	}
}

// openDevice wraps bus in a Device. The bus is closed if that fails.
func openDevice(bus i2c.Bus, s *settings, log *zap.Logger) (*ads101x.Device, error) {
	dev, err := ads101x.New(bus, s.Addr, s.Variant, ads101x.WithLogger(log))
	if err != nil {
		if cerr := bus.Close(); cerr != nil {
			log.Warn("close bus", zap.Error(cerr))
		}
		return nil, err
	}
	return dev, nil
}

func run(ctx context.Context, s *settings, log *zap.Logger) error {
	bus, err := openBus(s)
	if err != nil {
		return fmt.Errorf("open %s bus: %w", s.Backend, err)
	}

	dev, err := openDevice(bus, s, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := dev.Close(); err != nil {
			log.Warn("close device", zap.Error(err))
		}
	}()

	if err := dev.Configure(ctx, s.Config); err != nil {
		return err
	}
	log.Info("configured",
		zap.String("addr", fmt.Sprintf("0x%02X", s.Addr)),
		zap.Stringer("variant", s.Variant),
		zap.Stringer("config", s.Config),
	)

	var pub *publisher
	if s.MQTTBroker != "" {
		if pub, err = newPublisher(s.MQTTBroker, s.MQTTClient, s.MQTTTopic, log); err != nil {
			return err
		}
		defer pub.close()
	}

	device := fmt.Sprintf("%s@0x%02X", s.Variant, s.Addr)
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		readings, err := readRound(ctx, dev, s)
		switch {
		case errors.Is(err, ads101x.ErrTimeout), errors.Is(err, ads101x.ErrBus):
			// device or wiring fault: report and keep sampling
			log.Warn("read round failed", zap.Error(err))
		case err != nil:
			return err
		}

		fmt.Println(formatRound(readings))
		for i := range readings {
			readings[i].Device = device
			if pub != nil {
				pub.publish(readings[i])
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// readRound reads every configured channel once. A bus error on configure
// invalidates the device's active config, so it is rewritten before the
// next round.
func readRound(ctx context.Context, dev *ads101x.Device, s *settings) ([]Reading, error) {
	if _, ok := dev.Active(); !ok {
		if err := dev.Configure(ctx, s.Config); err != nil {
			return nil, err
		}
	}
	out := make([]Reading, 0, len(s.Channels))
	for _, m := range s.Channels {
		res, err := dev.ReadChannel(ctx, m, s.Timeout)
		if err != nil {
			return out, err
		}
		out = append(out, Reading{
			Channel:   m.String(),
			Raw:       res.Raw,
			Volts:     res.Volts(),
			Saturated: res.Saturated(),
			Timestamp: time.Now(),
		})
	}
	return out, nil
}

func formatRound(readings []Reading) string {
	parts := make([]string, len(readings))
	for i, r := range readings {
		parts[i] = fmt.Sprintf("%s=%.4f", r.Channel, r.Volts)
	}
	return "voltage : " + strings.Join(parts, ", ")
}
