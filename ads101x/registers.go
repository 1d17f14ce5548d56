// registers.go
//
// ADS101x / ADS111x register map, Config register bit layout and the
// enumerations that can be packed into it.
//
// Config register (0x01), MSB first:
//
//   15     OS         write 1: start single-shot / read 1: idle
//   14:12  MUX        input multiplexer
//   11:9   PGA        full-scale range
//   8      MODE       0: continuous, 1: single-shot (power-down)
//   7:5    DR         data rate
//   4      COMP_MODE  0: traditional, 1: window
//   3      COMP_POL   0: active low, 1: active high
//   2      COMP_LAT   0: non-latching, 1: latching
//   1:0    COMP_QUE   assert after 1/2/4 conversions, 3: disabled
//
package ads101x

import "fmt"

// Register pointers.
const (
	RegConversion byte = 0x00
	RegConfig     byte = 0x01
	RegLoThresh   byte = 0x02
	RegHiThresh   byte = 0x03
)

// I2C addresses selected by the ADDR pin.
const (
	AddrGND byte = 0x48
	AddrVDD byte = 0x49
	AddrSDA byte = 0x4A
	AddrSCL byte = 0x4B
)

const (
	osShift       = 15
	muxShift      = 12
	pgaShift      = 9
	modeShift     = 8
	drShift       = 5
	compModeShift = 4
	compPolShift  = 3
	compLatShift  = 2
	compQueShift  = 0

	configOS uint16 = 1 << osShift

	// power-on reset value of the Config register
	configReset uint16 = 0x8583
)

// Mux selects the input pair measured by the ADC.
type Mux uint8

const (
	MuxAIN0AIN1 Mux = iota // differential AIN0 - AIN1 (default)
	MuxAIN0AIN3            // differential AIN0 - AIN3
	MuxAIN1AIN3            // differential AIN1 - AIN3
	MuxAIN2AIN3            // differential AIN2 - AIN3
	MuxAIN0GND             // single-ended AIN0
	MuxAIN1GND             // single-ended AIN1
	MuxAIN2GND             // single-ended AIN2
	MuxAIN3GND             // single-ended AIN3
	muxCount
)

var muxNames = [...]string{
	MuxAIN0AIN1: "AIN0-AIN1",
	MuxAIN0AIN3: "AIN0-AIN3",
	MuxAIN1AIN3: "AIN1-AIN3",
	MuxAIN2AIN3: "AIN2-AIN3",
	MuxAIN0GND:  "AIN0",
	MuxAIN1GND:  "AIN1",
	MuxAIN2GND:  "AIN2",
	MuxAIN3GND:  "AIN3",
}

func (m Mux) valid() bool { return m < muxCount }

func (m Mux) String() string {
	if !m.valid() {
		return fmt.Sprintf("Mux(%d)", uint8(m))
	}
	return muxNames[m]
}

// SingleEnded returns the mux code measuring AINch against GND.
func SingleEnded(ch int) (Mux, bool) {
	if ch < 0 || ch > 3 {
		return 0, false
	}
	return MuxAIN0GND + Mux(ch), true
}

// Gain is the PGA setting. Codes 5, 6 and 7 all select ±0.256 V.
type Gain uint8

const (
	GainTwoThirds Gain = iota // ±6.144 V
	GainOne                   // ±4.096 V
	GainTwo                   // ±2.048 V (default)
	GainFour                  // ±1.024 V
	GainEight                 // ±0.512 V
	GainSixteen               // ±0.256 V
	gainSixteenB              // ±0.256 V
	gainSixteenC              // ±0.256 V
	gainCount
)

var fullScaleVolts = [...]float64{
	GainTwoThirds: 6.144,
	GainOne:       4.096,
	GainTwo:       2.048,
	GainFour:      1.024,
	GainEight:     0.512,
	GainSixteen:   0.256,
	gainSixteenB:  0.256,
	gainSixteenC:  0.256,
}

var gainLabels = [...]string{
	GainTwoThirds: "2/3",
	GainOne:       "1",
	GainTwo:       "2",
	GainFour:      "4",
	GainEight:     "8",
	GainSixteen:   "16",
	gainSixteenB:  "16",
	gainSixteenC:  "16",
}

func (g Gain) valid() bool { return g < gainCount }

func (g Gain) String() string {
	if !g.valid() {
		return fmt.Sprintf("Gain(%d)", uint8(g))
	}
	return fmt.Sprintf("%s (±%.3fV)", gainLabels[g], fullScaleVolts[g])
}

// Mode is the operating mode.
type Mode uint8

const (
	ModeContinuous Mode = iota
	ModeSingleShot
	modeCount
)

func (m Mode) valid() bool { return m < modeCount }

func (m Mode) String() string {
	switch m {
	case ModeContinuous:
		return "continuous"
	case ModeSingleShot:
		return "single-shot"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// DataRate is the 3-bit data rate code. Its meaning in samples per second
// depends on the variant, see Variant.SamplesPerSecond.
type DataRate uint8

const (
	DataRate0 DataRate = iota // 128 SPS (ADS101x) / 8 SPS (ADS111x)
	DataRate1                 // 250 / 16
	DataRate2                 // 490 / 32
	DataRate3                 // 920 / 64
	DataRate4                 // 1600 / 128 (default)
	DataRate5                 // 2400 / 250
	DataRate6                 // 3300 / 475
	DataRate7                 // 3300 / 860
	dataRateCount
)

func (r DataRate) valid() bool { return r < dataRateCount }

func (r DataRate) String() string { return fmt.Sprintf("DR%d", uint8(r)) }

// CompMode selects the comparator behaviour.
type CompMode uint8

const (
	CompTraditional CompMode = iota
	CompWindow
	compModeCount
)

func (c CompMode) valid() bool { return c < compModeCount }

// CompPolarity is the ALERT/RDY pin polarity.
type CompPolarity uint8

const (
	CompActiveLow CompPolarity = iota
	CompActiveHigh
	compPolarityCount
)

func (c CompPolarity) valid() bool { return c < compPolarityCount }

// CompLatch selects whether ALERT/RDY latches once asserted.
type CompLatch uint8

const (
	CompNonLatching CompLatch = iota
	CompLatching
	compLatchCount
)

func (c CompLatch) valid() bool { return c < compLatchCount }

// CompQueue is the number of successive conversions exceeding a threshold
// before ALERT/RDY asserts. CompQueueDisable turns the comparator off.
type CompQueue uint8

const (
	CompQueue1 CompQueue = iota
	CompQueue2
	CompQueue4
	CompQueueDisable
	compQueueCount
)

func (c CompQueue) valid() bool { return c < compQueueCount }
