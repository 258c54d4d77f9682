package clearance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelOrdering(t *testing.T) {
	assert.Less(t, L0.Rank(), L1.Rank())
	assert.Less(t, L1.Rank(), L2.Rank())
}

func TestHasSufficient(t *testing.T) {
	cases := []struct {
		actual, required Level
		want              bool
	}{
		{L0, L0, true},
		{L0, L1, false},
		{L2, L0, true},
		{L1, L2, false},
		{L2, L2, true},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, HasSufficient(c.actual, c.required),
			"HasSufficient(%s, %s)", c.actual, c.required)
	}
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("L2")
	require.NoError(t, err)
	assert.Equal(t, L2, lvl)

	_, err = ParseLevel("L9")
	assert.Error(t, err)
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "L0", L0.String())
	assert.Equal(t, "L1", L1.String())
	assert.Equal(t, "L2", L2.String())
}
