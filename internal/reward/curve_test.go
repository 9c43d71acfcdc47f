package reward_test

import (
	"math/big"
	"testing"

	"OptionStats/internal/reward"
)

func units(n int64) *big.Int {
	out := big.NewInt(n)
	return out.Mul(out, new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func TestRewardAt_SlabBoundaries(t *testing.T) {
	cases := []struct {
		volume, want int64
	}{
		{0, 0},
		{10_000, 10_000},          // all in the 100% slab
		{50_000, 50_000},          // exactly at the first boundary
		{60_000, 65_000},          // 50k at 100% + 10k at 150%
		{200_000, 275_000},        // 50k + 150k*1.5
		{500_000, 875_000},        // 275k + 300k*2
		{600_000, 1_275_000},      // 875k + 100k*4
	}
	for _, c := range cases {
		got := reward.RewardAt(units(c.volume))
		if got.Cmp(units(c.want)) != 0 {
			t.Errorf("RewardAt(%dk) = %s, want %s", c.volume/1000, got, units(c.want))
		}
	}
}

func TestMarginal_SplitsAcrossBoundary(t *testing.T) {
	// Moving from 40k to 60k crosses the 50k boundary: the first 10k
	// earns 100%, the next 10k earns 150%.
	got := reward.Marginal(units(40_000), units(60_000))
	if got.Cmp(units(25_000)) != 0 {
		t.Errorf("Marginal(40k, 60k) = %s, want %s", got, units(25_000))
	}
}

func TestMarginal_Additive(t *testing.T) {
	// Two small steps must equal one large step.
	a := reward.Marginal(units(45_000), units(52_000))
	b := reward.Marginal(units(52_000), units(61_000))
	whole := reward.Marginal(units(45_000), units(61_000))
	if sum := new(big.Int).Add(a, b); sum.Cmp(whole) != 0 {
		t.Errorf("Marginal is not additive: %s + %s != %s", a, b, whole)
	}
}

func TestMarginal_ZeroIncrement(t *testing.T) {
	if got := reward.Marginal(units(75_000), units(75_000)); got.Sign() != 0 {
		t.Errorf("Marginal over an empty interval = %s, want 0", got)
	}
}
