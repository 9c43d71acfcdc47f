// Package convert normalizes settlement-token amounts into the
// 18-decimal reference currency and derives pool ratios.
package convert

import (
	"fmt"
	"math/big"
)

// Fixed-point scales used across the aggregates.
var (
	// Scale18 is the raw on-chain token scale (18 decimals).
	Scale18 = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	// Scale6 is the reference-currency scale (6 decimals).
	Scale6 = big.NewInt(1_000_000)
	// RateScale is the 8-decimal scale for pool rates and utilization.
	RateScale = big.NewInt(100_000_000)

	// rescaleDivisor converts an 18-decimal amount to 6 decimals in a
	// single division, so no precision is lost before the final step.
	rescaleDivisor = new(big.Int).Exp(big.NewInt(10), big.NewInt(12), nil)

	// q192 = 2^192, the denominator of a squared Q96 sqrt price.
	q192 = new(big.Int).Lsh(big.NewInt(1), 192)
)

// PriceSource exposes the current AMM sqrt price for the secondary
// settlement token against the reference currency.
type PriceSource interface {
	SqrtPriceX96() (*big.Int, error)
}

// Converter translates secondary-currency amounts to the reference
// currency, either through an AMM price oracle or a static rescale.
type Converter struct {
	price PriceSource
}

func NewConverter(price PriceSource) *Converter {
	return &Converter{price: price}
}

// ToReference converts an 18-decimal secondary-token amount into the
// 18-decimal reference-currency equivalent using the oracle price:
// out = sqrtPriceX96^2 * amount / 2^192.
func (c *Converter) ToReference(amount *big.Int) (*big.Int, error) {
	if c.price == nil {
		return nil, fmt.Errorf("convert: no price source configured")
	}
	sqrtPrice, err := c.price.SqrtPriceX96()
	if err != nil {
		return nil, fmt.Errorf("convert: read sqrt price: %w", err)
	}
	if sqrtPrice == nil || sqrtPrice.Sign() == 0 {
		return nil, fmt.Errorf("convert: zero sqrt price from oracle")
	}

	out := new(big.Int).Mul(sqrtPrice, sqrtPrice)
	out.Mul(out, amount)
	out.Quo(out, q192)
	return out, nil
}

// Rescale18To6 converts an 18-decimal amount to 6 decimals with a
// single truncating division.
func Rescale18To6(amount *big.Int) *big.Int {
	return new(big.Int).Quo(amount, rescaleDivisor)
}

// Rescale6To18 widens a 6-decimal amount to 18 decimals.
func Rescale6To18(amount *big.Int) *big.Int {
	return new(big.Int).Mul(amount, rescaleDivisor)
}

// PoolRate returns totalTokenBalance * 1e8 / totalSupply, the price of
// one pool share in the settlement token at 8-decimal precision.
func PoolRate(totalTokenBalance, totalSupply *big.Int) (*big.Int, error) {
	if totalSupply == nil || totalSupply.Sign() == 0 {
		return nil, fmt.Errorf("convert: pool rate with zero supply")
	}
	out := new(big.Int).Mul(totalTokenBalance, RateScale)
	out.Quo(out, totalSupply)
	return out, nil
}

// Utilization returns totalLocked * 1e8 / poolBalance, the fraction of
// the pool committed to open positions at 8-decimal precision.
func Utilization(totalLocked, poolBalance *big.Int) (*big.Int, error) {
	if poolBalance == nil || poolBalance.Sign() == 0 {
		return nil, fmt.Errorf("convert: utilization with zero pool balance")
	}
	out := new(big.Int).Mul(totalLocked, RateScale)
	out.Quo(out, poolBalance)
	return out, nil
}

// RoundDiv divides a by b rounding half away from zero.
func RoundDiv(a, b *big.Int) *big.Int {
	quo, rem := new(big.Int).QuoRem(a, b, new(big.Int))
	doubled := rem.Abs(rem).Lsh(rem, 1)
	if doubled.Cmp(new(big.Int).Abs(b)) >= 0 {
		if (a.Sign() < 0) != (b.Sign() < 0) {
			quo.Sub(quo, big.NewInt(1))
		} else {
			quo.Add(quo, big.NewInt(1))
		}
	}
	return quo
}
