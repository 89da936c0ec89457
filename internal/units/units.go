// Package units converts the integer amounts reported by the explorer into
// exact decimal values.
package units

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	// EtherDecimals scales wei to ether.
	EtherDecimals = 18
	// GweiDecimals scales wei to gwei.
	GweiDecimals = 9
	// MaxTokenDecimals is the largest value an ERC-20 uint8 decimals() can return.
	MaxTokenDecimals = 255
)

var ErrMalformedAmount = errors.New("malformed amount")

// ParseInteger accepts a 0x-prefixed hexadecimal or a plain decimal numeral
// of at most 256 bits.
func ParseInteger(raw string) (*big.Int, error) {
	s := strings.TrimSpace(raw)
	if s == "" || s == "0x" || s == "0X" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return nil, errors.Wrapf(ErrMalformedAmount, "%q", raw)
	}

	v, ok := math.ParseBig256(s)
	if !ok || v.Sign() < 0 {
		return nil, errors.Wrapf(ErrMalformedAmount, "%q", raw)
	}

	return v, nil
}

// ToDecimalFixed returns raw / 10^pow10 without rounding.
func ToDecimalFixed(raw string, pow10 int32) (decimal.Decimal, error) {
	v, err := ParseInteger(raw)
	if err != nil {
		return decimal.Zero, err
	}

	return decimal.NewFromBigInt(v, -pow10), nil
}

// ScaleByTokenDecimals divides raw by 10^decimals; non-positive decimals
// leave the value unscaled.
func ScaleByTokenDecimals(raw string, decimals int) (decimal.Decimal, error) {
	if decimals > MaxTokenDecimals {
		return decimal.Zero, errors.Wrapf(ErrMalformedAmount, "token decimals %d above %d", decimals, MaxTokenDecimals)
	}
	if decimals <= 0 {
		return ToDecimalFixed(raw, 0)
	}

	return ToDecimalFixed(raw, int32(decimals))
}

func WeiToEther(raw string) (decimal.Decimal, error) {
	return ToDecimalFixed(raw, EtherDecimals)
}

func WeiToGwei(raw string) (decimal.Decimal, error) {
	return ToDecimalFixed(raw, GweiDecimals)
}
