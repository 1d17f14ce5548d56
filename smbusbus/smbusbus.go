// Package smbusbus exposes a go-daq SMBus connection as a reef-pi i2c.Bus,
// so the ads101x driver can run on any /dev/i2c-N adapter.
//
// Register accesses use SMBus I2C-block transfers: a write sends the register
// pointer followed by the data bytes, a read writes the pointer and reads the
// data back in one combined transaction.
package smbusbus

import (
	"fmt"
	"sync"

	"github.com/go-daq/smbus"
	"github.com/reef-pi/rpi/i2c"
)

var (
	_ i2c.Bus = (*Bus)(nil)
	_ Conn    = (*smbus.Conn)(nil)
)

// Conn is the part of *smbus.Conn used by Bus.
type Conn interface {
	SetAddr(addr uint8) error
	Read(p []byte) (int, error)
	Write(buf []byte) (int, error)
	ReadBlockData(addr, reg uint8, buf []byte) error
	WriteBlockData(addr, reg uint8, buf []byte) error
	Close() error
}

// Bus serializes access to one adapter; the slave address is selected per call.
type Bus struct {
	mu   sync.Mutex
	conn Conn
}

// Open opens /dev/i2c-<bus>.
func Open(bus int) (*Bus, error) {
	c, err := smbus.OpenFile(bus)
	if err != nil {
		return nil, fmt.Errorf("smbusbus: open i2c-%d: %w", bus, err)
	}
	return New(c), nil
}

// New wraps an open connection.
func New(c Conn) *Bus {
	return &Bus{conn: c}
}

func (b *Bus) ReadBytes(addr byte, num int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.conn.SetAddr(addr); err != nil {
		return nil, fmt.Errorf("smbusbus addr=0x%02X: set-addr: %w", addr, err)
	}
	buf := make([]byte, num)
	n, err := b.conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("smbusbus addr=0x%02X: read: %w", addr, err)
	}
	if n < num {
		return nil, fmt.Errorf("smbusbus addr=0x%02X: short read: got %d of %d bytes", addr, n, num)
	}
	return buf, nil
}

func (b *Bus) WriteBytes(addr byte, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.conn.SetAddr(addr); err != nil {
		return fmt.Errorf("smbusbus addr=0x%02X: set-addr: %w", addr, err)
	}
	if _, err := b.conn.Write(value); err != nil {
		return fmt.Errorf("smbusbus addr=0x%02X: write: %w", addr, err)
	}
	return nil
}

func (b *Bus) ReadFromReg(addr, reg byte, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.conn.ReadBlockData(addr, reg, value); err != nil {
		return fmt.Errorf("smbusbus addr=0x%02X: read reg=0x%02X: %w", addr, reg, err)
	}
	return nil
}

func (b *Bus) WriteToReg(addr, reg byte, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.conn.WriteBlockData(addr, reg, value); err != nil {
		return fmt.Errorf("smbusbus addr=0x%02X: write reg=0x%02X: %w", addr, reg, err)
	}
	return nil
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn.Close()
}
