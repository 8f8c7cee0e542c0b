package contracts

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestNewPriceTable(t *testing.T) {
	table, err := NewPriceTable(
		[]time.Time{day(2), day(3), day(4)},
		[]string{"A", "B"},
		[][]float64{{10, 11, 12}, {20, 19, 21}},
	)
	require.NoError(t, err)

	assert.Equal(t, 3, table.Len())
	assert.Equal(t, 2, table.Width())
	assert.True(t, table.Has("B"))
	assert.False(t, table.Has("C"))

	col, ok := table.Column("B")
	require.True(t, ok)
	assert.Equal(t, []float64{20, 19, 21}, col)

	// Column returns a copy
	col[0] = -1
	again, _ := table.Column("B")
	assert.Equal(t, 20.0, again[0])

	cols, err := table.Columns([]string{"B", "A"})
	require.NoError(t, err)
	assert.Equal(t, 20.0, cols[0][0])
	assert.Equal(t, 10.0, cols[1][0])

	_, err = table.Columns([]string{"Z"})
	assert.True(t, errors.Is(err, ErrMalformedPrices))
}

func TestNewPriceTable_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		dates   []time.Time
		symbols []string
		columns [][]float64
		wantErr error
	}{
		{"column count", []time.Time{day(2)}, []string{"A", "B"}, [][]float64{{1}}, ErrDimensionMismatch},
		{"ragged", []time.Time{day(2), day(3)}, []string{"A"}, [][]float64{{1}}, ErrDimensionMismatch},
		{"duplicate date", []time.Time{day(2), day(2)}, []string{"A"}, [][]float64{{1, 2}}, ErrMalformedPrices},
		{"unsorted", []time.Time{day(3), day(2)}, []string{"A"}, [][]float64{{1, 2}}, ErrMalformedPrices},
		{"duplicate symbol", []time.Time{day(2)}, []string{"A", "A"}, [][]float64{{1}, {2}}, ErrMalformedPrices},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPriceTable(tt.dates, tt.symbols, tt.columns)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewPriceTable() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAlignCloses_InnerJoin(t *testing.T) {
	series := map[string][]Bar{
		"A": {{Date: day(2), Close: 10}, {Date: day(3), Close: 11}, {Date: day(4), Close: 12}},
		"B": {{Date: day(4), Close: 22}, {Date: day(2), Close: 20}}, // 3일 누락, 역순
	}

	table, dropped, err := AlignCloses(series, []string{"A", "B"})
	require.NoError(t, err)

	assert.Equal(t, 1, dropped)
	assert.Equal(t, []time.Time{day(2), day(4)}, table.Dates())
	colB, _ := table.Column("B")
	assert.Equal(t, []float64{20, 22}, colB)
}

func TestAlignCloses_MissingSymbol(t *testing.T) {
	_, _, err := AlignCloses(map[string][]Bar{"A": {{Date: day(2), Close: 1}}}, []string{"A", "B"})
	assert.True(t, errors.Is(err, ErrInsufficientHistory))
}
