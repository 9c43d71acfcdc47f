package convert_test

import (
	"errors"
	"math/big"
	"testing"

	"OptionStats/internal/convert"
)

type staticPrice struct {
	sqrt *big.Int
	err  error
}

func (s staticPrice) SqrtPriceX96() (*big.Int, error) { return s.sqrt, s.err }

func TestToReference_UnitPrice(t *testing.T) {
	// sqrtPriceX96 = 2^96 encodes a price of exactly 1.
	unit := new(big.Int).Lsh(big.NewInt(1), 96)
	c := convert.NewConverter(staticPrice{sqrt: unit})

	amount := new(big.Int).Mul(big.NewInt(123), convert.Scale18)
	got, err := c.ToReference(amount)
	if err != nil {
		t.Fatalf("ToReference: %v", err)
	}
	if got.Cmp(amount) != 0 {
		t.Errorf("ToReference at unit price = %s, want %s", got, amount)
	}
}

func TestToReference_ScaledPrice(t *testing.T) {
	// sqrtPriceX96 = 2^97 encodes a price of 4.
	sqrt := new(big.Int).Lsh(big.NewInt(1), 97)
	c := convert.NewConverter(staticPrice{sqrt: sqrt})

	amount := big.NewInt(1000)
	got, err := c.ToReference(amount)
	if err != nil {
		t.Fatalf("ToReference: %v", err)
	}
	if got.Cmp(big.NewInt(4000)) != 0 {
		t.Errorf("ToReference = %s, want 4000", got)
	}
}

func TestToReference_OracleFailures(t *testing.T) {
	if _, err := convert.NewConverter(staticPrice{sqrt: big.NewInt(0)}).ToReference(big.NewInt(1)); err == nil {
		t.Error("zero sqrt price must be an error, not a silent zero")
	}
	boom := errors.New("rpc down")
	if _, err := convert.NewConverter(staticPrice{err: boom}).ToReference(big.NewInt(1)); !errors.Is(err, boom) {
		t.Errorf("oracle error not propagated, got %v", err)
	}
}

func TestRescale18To6(t *testing.T) {
	// 1.5 tokens at 18 decimals becomes 1.5 at 6 decimals.
	amount, _ := new(big.Int).SetString("1500000000000000000", 10)
	if got := convert.Rescale18To6(amount); got.Cmp(big.NewInt(1_500_000)) != 0 {
		t.Errorf("Rescale18To6 = %s, want 1500000", got)
	}

	// Sub-micro dust truncates in a single step.
	if got := convert.Rescale18To6(big.NewInt(999_999_999_999)); got.Sign() != 0 {
		t.Errorf("dust below 1e12 should truncate to zero, got %s", got)
	}
}

func TestPoolRate(t *testing.T) {
	rate, err := convert.PoolRate(big.NewInt(300), big.NewInt(200))
	if err != nil {
		t.Fatalf("PoolRate: %v", err)
	}
	if rate.Cmp(big.NewInt(150_000_000)) != 0 {
		t.Errorf("PoolRate = %s, want 150000000", rate)
	}

	if _, err := convert.PoolRate(big.NewInt(1), big.NewInt(0)); err == nil {
		t.Error("zero supply must be an error")
	}
}

func TestUtilization(t *testing.T) {
	u, err := convert.Utilization(big.NewInt(25), big.NewInt(100))
	if err != nil {
		t.Fatalf("Utilization: %v", err)
	}
	if u.Cmp(big.NewInt(25_000_000)) != 0 {
		t.Errorf("Utilization = %s, want 25000000", u)
	}

	if _, err := convert.Utilization(big.NewInt(1), nil); err == nil {
		t.Error("nil pool balance must be an error")
	}
}

func TestRoundDiv(t *testing.T) {
	cases := []struct {
		a, b, want int64
	}{
		{7, 2, 4},
		{5, 2, 3},
		{4, 3, 1},
		{300000, 7, 42857},
	}
	for _, c := range cases {
		got := convert.RoundDiv(big.NewInt(c.a), big.NewInt(c.b))
		if got.Cmp(big.NewInt(c.want)) != 0 {
			t.Errorf("RoundDiv(%d, %d) = %s, want %d", c.a, c.b, got, c.want)
		}
	}
}
