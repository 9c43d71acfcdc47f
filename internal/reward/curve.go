// Package reward implements the tiered loyalty-token allotment curve.
//
// Allotment is a function of a user's cumulative normalized volume.
// Each slab applies its percentage rate to the volume falling inside
// it, so the curve is continuous and strictly increasing.
package reward

import "math/big"

type slab struct {
	min  *big.Int // inclusive lower bound, 18-decimal volume
	rate int64    // percent of volume alloted within this slab
}

var slabs = []slab{
	{min: big.NewInt(0), rate: 100},
	{min: scaled(50_000), rate: 150},
	{min: scaled(200_000), rate: 200},
	{min: scaled(500_000), rate: 400},
}

var hundred = big.NewInt(100)

func scaled(units int64) *big.Int {
	out := big.NewInt(units)
	return out.Mul(out, new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

// RewardAt returns the total allotment accrued by the time cumulative
// volume reaches v.
func RewardAt(v *big.Int) *big.Int {
	total := new(big.Int)
	for i, s := range slabs {
		if v.Cmp(s.min) <= 0 {
			break
		}
		upper := v
		if i+1 < len(slabs) && v.Cmp(slabs[i+1].min) > 0 {
			upper = slabs[i+1].min
		}
		portion := new(big.Int).Sub(upper, s.min)
		portion.Mul(portion, big.NewInt(s.rate))
		portion.Quo(portion, hundred)
		total.Add(total, portion)
	}
	return total
}

// Marginal returns the allotment earned by moving cumulative volume
// from v0 to v1. It is exact across slab boundaries: the portion of the
// increment inside each slab earns that slab's rate.
func Marginal(v0, v1 *big.Int) *big.Int {
	return new(big.Int).Sub(RewardAt(v1), RewardAt(v0))
}
