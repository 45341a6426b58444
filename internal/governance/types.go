// Package governance computes the claiming schedule of tokens locked by
// conviction voting: when locked amounts become free and which on-chain
// actions have to be submitted to claim them.
package governance

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"
)

// ErrDataCorruption is returned when the voting data cannot be interpreted,
// e.g. a referendum in an unknown state or a lock period that overflows.
var ErrDataCorruption = errors.New("governance: data corruption")

type (
	TrackID      uint16
	ReferendumID uint32
	BlockNumber  uint32
)

// addBlocks sums block offsets, failing instead of wrapping around.
func addBlocks(parts ...BlockNumber) (BlockNumber, error) {
	var sum uint64
	for _, p := range parts {
		sum += uint64(p)
	}
	if sum > math.MaxUint32 {
		return 0, fmt.Errorf("%w: block number overflow", ErrDataCorruption)
	}
	return BlockNumber(sum), nil
}

// Until estimates the wall time left until target given an average block time.
// Returns zero when target is not in the future.
func (b BlockNumber) Until(target BlockNumber, blockTime time.Duration) time.Duration {
	if target <= b {
		return 0
	}
	return time.Duration(target-b) * blockTime
}

// Balance is an immutable unsigned amount in the chain's base units.
// The zero value is a zero balance.
type Balance struct {
	v *big.Int
}

func fromBig(x *big.Int) Balance {
	if x == nil || x.Sign() == 0 {
		return Balance{}
	}
	return Balance{v: x}
}

func NewBalance(u uint64) Balance {
	return fromBig(new(big.Int).SetUint64(u))
}

// ParseBalance parses a base-10 integer amount.
func ParseBalance(s string) (Balance, error) {
	x, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Balance{}, fmt.Errorf("invalid balance %q", s)
	}
	if x.Sign() < 0 {
		return Balance{}, fmt.Errorf("negative balance %q", s)
	}
	return fromBig(x), nil
}

// MustBalance is ParseBalance for constants; it panics on bad input.
func MustBalance(s string) Balance {
	b, err := ParseBalance(s)
	if err != nil {
		panic(err)
	}
	return b
}

func (b Balance) big() *big.Int {
	if b.v == nil {
		return new(big.Int)
	}
	return b.v
}

// Big returns a copy of the underlying integer.
func (b Balance) Big() *big.Int { return new(big.Int).Set(b.big()) }

func (b Balance) IsZero() bool { return b.v == nil || b.v.Sign() == 0 }

func (b Balance) Cmp(o Balance) int { return b.big().Cmp(o.big()) }

func (b Balance) Equal(o Balance) bool { return b.Cmp(o) == 0 }

func (b Balance) Add(o Balance) Balance {
	return fromBig(new(big.Int).Add(b.big(), o.big()))
}

// Sub returns b - o, clamped at zero.
func (b Balance) Sub(o Balance) Balance {
	if b.Cmp(o) <= 0 {
		return Balance{}
	}
	return fromBig(new(big.Int).Sub(b.big(), o.big()))
}

func (b Balance) String() string { return b.big().String() }

func (b Balance) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func (b *Balance) UnmarshalText(text []byte) error {
	v, err := ParseBalance(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

func maxBalance(a, b Balance) Balance {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}
