package amount

import (
	"testing"

	"governance-unlocks/internal/governance"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		planck string
		want   string
	}{
		{"0", "0 DOT"},
		{"15000000000", "1.5 DOT"},
		{"10000000000", "1 DOT"},
		{"1", "0.0000000001 DOT"},
		{"340282366920938463463374607431768211455", "34028236692093846346337460743.1768211455 DOT"},
	}
	for _, tt := range tests {
		t.Run(tt.planck, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(governance.MustBalance(tt.planck), 10, "DOT"))
		})
	}

	assert.Equal(t, "1.5", Format(governance.NewBalance(1500), 3, ""))
	assert.Equal(t, "1500", Format(governance.NewBalance(1500), 0, ""))
}

func TestFormatFixedTruncates(t *testing.T) {
	b := governance.NewBalance(19999)
	assert.Equal(t, "1.99 KSM", FormatFixed(b, 4, 2, "KSM"))
	assert.Equal(t, "0.0000", FormatFixed(governance.Balance{}, 10, 4, ""))
}

func TestParse(t *testing.T) {
	b, err := Parse("1.5", 10)
	require.NoError(t, err)
	assert.True(t, b.Equal(governance.NewBalance(15000000000)))

	b, err = Parse(" 42 ", 0)
	require.NoError(t, err)
	assert.True(t, b.Equal(governance.NewBalance(42)))

	_, err = Parse("-1", 10)
	assert.ErrorIs(t, err, ErrNegative)

	_, err = Parse("0.123", 2)
	assert.ErrorIs(t, err, ErrPrecision)

	_, err = Parse("abc", 10)
	assert.Error(t, err)
}
