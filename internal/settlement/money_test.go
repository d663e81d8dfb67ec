package settlement

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rate(t *testing.T, s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestCommissionCents(t *testing.T) {
	cases := []struct {
		gross int64
		rate  string
		want  int64
	}{
		{10000, "0.10", 1000},
		{10000, "0.15", 1500},
		{999, "0.10", 100},    // 99.9 rounds half-up to 100
		{995, "0.10", 100},    // 99.5 rounds half-up
		{994, "0.10", 99},     // 99.4 rounds down
		{1, "0.10", 0},        // 0.1 rounds down
		{10000, "0", 0},
		{10000, "1", 10000},
		{3333, "0.125", 417},  // 416.625
	}
	for _, c := range cases {
		got := CommissionCents(c.gross, rate(t, c.rate))
		assert.Equal(t, c.want, got, "gross=%d rate=%s", c.gross, c.rate)
	}
}

func TestSplitEarning(t *testing.T) {
	commission, net := SplitEarning(10000, rate(t, "0.10"))
	assert.Equal(t, int64(1000), commission)
	assert.Equal(t, int64(9000), net)

	// net = amount - commission holds for awkward rates too
	for _, gross := range []int64{1, 99, 1001, 12345, 999999} {
		for _, rs := range []string{"0.07", "0.125", "0.333"} {
			c, n := SplitEarning(gross, rate(t, rs))
			require.Equal(t, gross, c+n, "gross=%d rate=%s", gross, rs)
		}
	}
}
