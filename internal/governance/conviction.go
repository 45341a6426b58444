package governance

import (
	"fmt"
	"math"
	"strings"
)

// Conviction multiplies vote weight in exchange for a longer lock.
type Conviction uint8

const (
	ConvictionNone Conviction = iota
	ConvictionLocked1x
	ConvictionLocked2x
	ConvictionLocked3x
	ConvictionLocked4x
	ConvictionLocked5x
	ConvictionLocked6x
)

var convictionNames = []string{"none", "locked1x", "locked2x", "locked3x", "locked4x", "locked5x", "locked6x"}

// LockPeriods is the number of vote locking periods the conviction holds funds for.
func (c Conviction) LockPeriods() (uint32, bool) {
	switch c {
	case ConvictionNone:
		return 0, true
	case ConvictionLocked1x, ConvictionLocked2x, ConvictionLocked3x,
		ConvictionLocked4x, ConvictionLocked5x, ConvictionLocked6x:
		return 1 << (c - 1), true
	default:
		return 0, false
	}
}

// Duration converts the conviction into a lock duration in blocks.
func (c Conviction) Duration(voteLockingPeriod BlockNumber) (BlockNumber, error) {
	periods, ok := c.LockPeriods()
	if !ok {
		return 0, fmt.Errorf("%w: unknown conviction %d", ErrDataCorruption, uint8(c))
	}
	d := uint64(periods) * uint64(voteLockingPeriod)
	if d > math.MaxUint32 {
		return 0, fmt.Errorf("%w: conviction %s overflows lock period", ErrDataCorruption, c)
	}
	return BlockNumber(d), nil
}

func (c Conviction) String() string {
	if int(c) < len(convictionNames) {
		return convictionNames[c]
	}
	return fmt.Sprintf("conviction(%d)", uint8(c))
}

// ParseConviction accepts the names returned by String, case-insensitively.
func ParseConviction(s string) (Conviction, error) {
	for i, name := range convictionNames {
		if strings.EqualFold(s, name) {
			return Conviction(i), nil
		}
	}
	return 0, fmt.Errorf("unknown conviction %q", s)
}
