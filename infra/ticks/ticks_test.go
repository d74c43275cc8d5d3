package ticks

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScale(t *testing.T) {
	s := MustParse("0.05")
	assert.Equal(t, "5.25", s.Format(105))
	assert.Equal(t, "-0.10", s.Format(-2))
	assert.True(t, s.Price(3).Equal(decimal.RequireFromString("0.15")))

	tick, err := s.ParseTick("101.35")
	require.NoError(t, err)
	assert.Equal(t, int64(2027), tick)

	_, err = s.ParseTick("101.33")
	assert.ErrorIs(t, err, ErrOffTick)
	_, err = s.ParseTick("abc")
	assert.Error(t, err)
}

func TestWholeTicks(t *testing.T) {
	s := MustParse("5")
	assert.Equal(t, "50", s.Format(10))
	tick, err := s.ParseTick("15")
	require.NoError(t, err)
	assert.Equal(t, int64(3), tick)
}

func TestBadTickSize(t *testing.T) {
	for _, in := range []string{"0", "-0.01", "x"} {
		_, err := Parse(in)
		assert.Error(t, err, in)
	}
	_, err := Parse("0")
	assert.ErrorIs(t, err, ErrTickSize)
}
