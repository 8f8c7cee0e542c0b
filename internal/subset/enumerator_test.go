package subset

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/walletsim/internal/contracts"
)

func universe(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("S%02d", i)
	}
	return out
}

func TestEnumerator_CountsAndDistinct(t *testing.T) {
	for n := 0; n <= 7; n++ {
		for k := 0; k <= n; k++ {
			t.Run(fmt.Sprintf("n=%d_k=%d", n, k), func(t *testing.T) {
				e, err := NewEnumerator(universe(n), k)
				require.NoError(t, err)

				want, err := Count(n, k)
				require.NoError(t, err)
				assert.Equal(t, want, e.Count())

				seen := make(map[string]bool)
				got := 0
				for s := range e.All() {
					require.Len(t, s, k)
					key := append([]string(nil), s...)
					sort.Strings(key)
					id := strings.Join(key, ",")
					assert.False(t, seen[id], "duplicate subset %v", s)
					seen[id] = true
					got++
				}
				assert.Equal(t, want, got)
			})
		}
	}
}

func TestEnumerator_InvalidSize(t *testing.T) {
	for n := 0; n <= 5; n++ {
		for _, k := range []int{-1, n + 1, n + 5} {
			_, err := NewEnumerator(universe(n), k)
			if !errors.Is(err, contracts.ErrInvalidSubsetSize) {
				t.Errorf("NewEnumerator(n=%d, k=%d) error = %v, want ErrInvalidSubsetSize", n, k, err)
			}
		}
	}
}

func TestEnumerator_LexicographicOrder(t *testing.T) {
	e, err := NewEnumerator([]string{"A", "B", "C", "D"}, 2)
	require.NoError(t, err)

	var got []string
	for e.Next() {
		got = append(got, e.Subset().String())
	}

	assert.Equal(t, []string{"A|B", "A|C", "A|D", "B|C", "B|D", "C|D"}, got)
	assert.False(t, e.Next(), "enumerator is single-use")
}

func TestEnumerator_PreservesUniverseOrder(t *testing.T) {
	e, err := NewEnumerator([]string{"D", "B", "A"}, 2)
	require.NoError(t, err)

	require.True(t, e.Next())
	assert.Equal(t, contracts.AssetSubset{"D", "B"}, e.Subset())
}

func TestEnumerator_SubsetsAreIndependent(t *testing.T) {
	e, err := NewEnumerator([]string{"A", "B", "C"}, 2)
	require.NoError(t, err)

	require.True(t, e.Next())
	first := e.Subset()
	require.True(t, e.Next())

	assert.Equal(t, contracts.AssetSubset{"A", "B"}, first)
}

func TestEnumerator_DuplicateSymbol(t *testing.T) {
	_, err := NewEnumerator([]string{"A", "A"}, 1)
	assert.Error(t, err)
}

func TestCount(t *testing.T) {
	tests := []struct {
		n, k int
		want int
	}{
		{4, 2, 6},
		{5, 0, 1},
		{5, 5, 1},
		{25, 12, 5200300},
		{200, 3, 1313400},
	}

	for _, tt := range tests {
		got, err := Count(tt.n, tt.k)
		require.NoError(t, err)
		if got != tt.want {
			t.Errorf("Count(%d, %d) = %d, want %d", tt.n, tt.k, got, tt.want)
		}
	}
}

func TestCount_Overflow(t *testing.T) {
	_, err := Count(200, 100)
	assert.True(t, errors.Is(err, ErrSearchSpaceTooLarge))
}
