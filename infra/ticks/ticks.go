// Package ticks converts between integer price ticks and decimal prices.
package ticks

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrTickSize = errors.New("ticks: tick size must be positive")
	ErrOffTick  = errors.New("ticks: price is not a multiple of the tick size")
)

// Scale is a fixed tick size. The zero value is not usable.
type Scale struct {
	size   decimal.Decimal
	places int32
}

func Parse(tickSize string) (Scale, error) {
	d, err := decimal.NewFromString(tickSize)
	if err != nil {
		return Scale{}, fmt.Errorf("ticks: %q: %w", tickSize, err)
	}
	return New(d)
}

func New(size decimal.Decimal) (Scale, error) {
	if !size.IsPositive() {
		return Scale{}, fmt.Errorf("%w: %s", ErrTickSize, size)
	}
	var places int32
	if exp := size.Exponent(); exp < 0 {
		places = -exp
	}
	return Scale{size: size, places: places}, nil
}

func MustParse(tickSize string) Scale {
	s, err := Parse(tickSize)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Scale) Size() decimal.Decimal { return s.size }

// Price is tick * size.
func (s Scale) Price(tick int64) decimal.Decimal {
	return s.size.Mul(decimal.NewFromInt(tick))
}

// Format renders a tick with the tick size's number of decimal places.
func (s Scale) Format(tick int64) string {
	return s.Price(tick).StringFixed(s.places)
}

// Tick converts an exact price into ticks.
func (s Scale) Tick(price decimal.Decimal) (int64, error) {
	if !price.Mod(s.size).IsZero() {
		return 0, fmt.Errorf("%w: %s / %s", ErrOffTick, price, s.size)
	}
	return price.Div(s.size).IntPart(), nil
}

// ParseTick converts a decimal string into ticks.
func (s Scale) ParseTick(price string) (int64, error) {
	d, err := decimal.NewFromString(price)
	if err != nil {
		return 0, fmt.Errorf("ticks: %q: %w", price, err)
	}
	return s.Tick(d)
}
