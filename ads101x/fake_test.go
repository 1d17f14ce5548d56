package ads101x_test

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var errNack = errors.New("remote i/o error")

type busWrite struct {
	addr byte
	reg  byte
	data []byte
}

// fakeADC simulates the register file of one converter behind an i2c.Bus.
// A single-shot start keeps the OS bit low for convTime; neverReady keeps it
// low forever.
type fakeADC struct {
	mu sync.Mutex

	regs       [4]uint16
	conversion uint16
	convTime   time.Duration
	busyUntil  time.Time
	neverReady bool

	failWrites error
	failReads  error

	writes []busWrite
	reads  []byte // register pointers read, in order
	closed bool
}

func newFakeADC() *fakeADC {
	f := &fakeADC{}
	f.regs[1] = 0x8583 &^ 0x8000
	f.regs[2] = 0x8000
	f.regs[3] = 0x7FFF
	return f
}

func (f *fakeADC) WriteToReg(addr, reg byte, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites != nil {
		return f.failWrites
	}
	if len(value) != 2 || reg > 3 {
		return fmt.Errorf("fake: bad write reg=0x%02X len=%d", reg, len(value))
	}
	f.writes = append(f.writes, busWrite{addr: addr, reg: reg, data: append([]byte(nil), value...)})

	w := uint16(value[0])<<8 | uint16(value[1])
	if reg == 0x01 {
		singleShot := w&0x0100 != 0
		if w&0x8000 != 0 && singleShot {
			f.busyUntil = time.Now().Add(f.convTime)
		}
		w &^= 0x8000
	}
	f.regs[reg] = w
	return nil
}

func (f *fakeADC) ReadFromReg(addr, reg byte, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads != nil {
		return f.failReads
	}
	if len(value) != 2 || reg > 3 {
		return fmt.Errorf("fake: bad read reg=0x%02X len=%d", reg, len(value))
	}
	f.reads = append(f.reads, reg)

	var w uint16
	switch reg {
	case 0x00:
		w = f.conversion
	case 0x01:
		w = f.regs[1]
		if !f.neverReady && !time.Now().Before(f.busyUntil) {
			w |= 0x8000
		}
	default:
		w = f.regs[reg]
	}
	value[0], value[1] = byte(w>>8), byte(w)
	return nil
}

func (f *fakeADC) ReadBytes(addr byte, num int) ([]byte, error) {
	return nil, errors.New("fake: raw reads not supported")
}

func (f *fakeADC) WriteBytes(addr byte, value []byte) error {
	return errors.New("fake: raw writes not supported")
}

func (f *fakeADC) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeADC) configWrites() []uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []uint16
	for _, w := range f.writes {
		if w.reg == 0x01 {
			out = append(out, uint16(w.data[0])<<8|uint16(w.data[1]))
		}
	}
	return out
}

func (f *fakeADC) setConversion(w uint16) {
	f.mu.Lock()
	f.conversion = w
	f.mu.Unlock()
}
