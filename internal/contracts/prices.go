package contracts

import (
	"fmt"
	"sort"
	"time"
)

// Bar is one daily OHLCV record for a symbol
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// PriceTable is a rectangular, date-indexed table of closing prices
// ⭐ SSOT: 시뮬레이션 코어가 받는 유일한 입력 데이터
// 생성 후 불변 (workers share it without locking)
type PriceTable struct {
	dates   []time.Time
	symbols []string
	index   map[string]int
	columns [][]float64 // columns[j][i] = close of symbols[j] on dates[i]
}

// NewPriceTable validates and copies the given columns into an immutable table
func NewPriceTable(dates []time.Time, symbols []string, columns [][]float64) (*PriceTable, error) {
	if len(symbols) != len(columns) {
		return nil, fmt.Errorf("%w: %d symbols but %d columns", ErrDimensionMismatch, len(symbols), len(columns))
	}

	for i := 1; i < len(dates); i++ {
		if !dates[i].After(dates[i-1]) {
			return nil, fmt.Errorf("%w: dates must be strictly increasing (row %d: %s after %s)",
				ErrMalformedPrices, i, dates[i].Format("2006-01-02"), dates[i-1].Format("2006-01-02"))
		}
	}

	t := &PriceTable{
		dates:   append([]time.Time(nil), dates...),
		symbols: append([]string(nil), symbols...),
		index:   make(map[string]int, len(symbols)),
		columns: make([][]float64, len(columns)),
	}

	for j, sym := range symbols {
		if sym == "" {
			return nil, fmt.Errorf("%w: empty symbol at column %d", ErrMalformedPrices, j)
		}
		if _, dup := t.index[sym]; dup {
			return nil, fmt.Errorf("%w: duplicate symbol %s", ErrMalformedPrices, sym)
		}
		if len(columns[j]) != len(dates) {
			return nil, fmt.Errorf("%w: column %s has %d rows, want %d",
				ErrDimensionMismatch, sym, len(columns[j]), len(dates))
		}
		t.index[sym] = j
		t.columns[j] = append([]float64(nil), columns[j]...)
	}

	return t, nil
}

// Len returns the number of dates (rows)
func (t *PriceTable) Len() int {
	return len(t.dates)
}

// Width returns the number of symbols (columns)
func (t *PriceTable) Width() int {
	return len(t.symbols)
}

// Dates returns a copy of the date index
func (t *PriceTable) Dates() []time.Time {
	return append([]time.Time(nil), t.dates...)
}

// Symbols returns a copy of the column symbols, in table order
func (t *PriceTable) Symbols() []string {
	return append([]string(nil), t.symbols...)
}

// Has reports whether the table carries a column for symbol
func (t *PriceTable) Has(symbol string) bool {
	_, ok := t.index[symbol]
	return ok
}

// Column returns a copy of one symbol's closes
func (t *PriceTable) Column(symbol string) ([]float64, bool) {
	j, ok := t.index[symbol]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), t.columns[j]...), true
}

// Columns returns read-only views of the requested columns, in the given order.
// 호출자는 반환된 슬라이스를 수정하면 안 됨
func (t *PriceTable) Columns(symbols []string) ([][]float64, error) {
	out := make([][]float64, len(symbols))
	for k, sym := range symbols {
		j, ok := t.index[sym]
		if !ok {
			return nil, fmt.Errorf("%w: symbol %s not in price table", ErrMalformedPrices, sym)
		}
		out[k] = t.columns[j]
	}
	return out, nil
}

// AlignCloses builds a PriceTable from per-symbol bars, keeping only dates
// present in every series. Returns the table and the number of dropped dates.
func AlignCloses(series map[string][]Bar, symbols []string) (*PriceTable, int, error) {
	if len(symbols) == 0 {
		return nil, 0, fmt.Errorf("%w: no symbols to align", ErrInsufficientHistory)
	}

	// date → close, per symbol (중복 날짜는 마지막 값 사용)
	byDate := make([]map[int64]float64, len(symbols))
	counts := make(map[int64]int)
	union := make(map[int64]struct{})

	for j, sym := range symbols {
		bars, ok := series[sym]
		if !ok || len(bars) == 0 {
			return nil, 0, fmt.Errorf("%w: no bars for %s", ErrInsufficientHistory, sym)
		}
		m := make(map[int64]float64, len(bars))
		for _, b := range bars {
			m[dayKey(b.Date)] = b.Close
		}
		for d := range m {
			counts[d]++
			union[d] = struct{}{}
		}
		byDate[j] = m
	}

	common := make([]int64, 0, len(counts))
	for d, n := range counts {
		if n == len(symbols) {
			common = append(common, d)
		}
	}
	sort.Slice(common, func(a, b int) bool { return common[a] < common[b] })

	dates := make([]time.Time, len(common))
	for i, d := range common {
		dates[i] = time.Unix(d, 0).UTC()
	}

	columns := make([][]float64, len(symbols))
	for j := range symbols {
		col := make([]float64, len(common))
		for i, d := range common {
			col[i] = byDate[j][d]
		}
		columns[j] = col
	}

	table, err := NewPriceTable(dates, symbols, columns)
	if err != nil {
		return nil, 0, err
	}

	return table, len(union) - len(common), nil
}

// dayKey normalizes a timestamp to its UTC calendar day
func dayKey(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix()
}
