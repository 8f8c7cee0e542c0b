package pricedata

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/walletsim/internal/contracts"
	"github.com/wonny/walletsim/pkg/logger"
)

const dateLayout = "2006-01-02"

var (
	// ErrNotFound is returned when no stored series exists for a request
	ErrNotFound = errors.New("price series not found")

	// ErrNotCSV is returned when a path is not a regular .csv file
	ErrNotCSV = errors.New("not a csv file")
)

var barHeader = []string{"Date", "Open", "High", "Low", "Close", "Volume"}

// CSVStore persists per-symbol daily bars as CSV files under one directory
// ⭐ SSOT: 파일 이름 규칙 {symbol}_from_{start}_to_{end}.csv
type CSVStore struct {
	dir    string
	logger *logger.Logger
}

// NewCSVStore creates a store rooted at dir
func NewCSVStore(dir string, log *logger.Logger) *CSVStore {
	return &CSVStore{
		dir:    dir,
		logger: log.Component("csv_store"),
	}
}

// Dir returns the root directory
func (s *CSVStore) Dir() string {
	return s.dir
}

// Path returns the file path for a symbol and range
func (s *CSVStore) Path(symbol string, from, to time.Time) string {
	name := fmt.Sprintf("%s_from_%s_to_%s.csv", symbol, from.Format(dateLayout), to.Format(dateLayout))
	return filepath.Join(s.dir, name)
}

// SaveBars writes bars for symbol over [from, to], creating the directory if needed
func (s *CSVStore) SaveBars(symbol string, from, to time.Time, bars []contracts.Bar) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", s.dir, err)
	}

	path := s.Path(symbol, from, to)
	if err := writeBars(path, bars); err != nil {
		return "", err
	}

	s.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"path":   path,
		"rows":   len(bars),
	}).Debug("Saved bars")

	return path, nil
}

// LoadBars reads bars for symbol over [from, to]; ErrNotFound if nothing is stored
func (s *CSVStore) LoadBars(symbol string, from, to time.Time) ([]contracts.Bar, error) {
	bars, err := ReadBarsFile(s.Path(symbol, from, to))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return bars, err
}

// ReadBarsFile reads a single bars file.
// The path must exist, be a regular file and carry a .csv extension.
func ReadBarsFile(path string) ([]contracts.Bar, error) {
	if err := checkCSVPath(path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header %s: %w", path, err)
	}
	if len(header) < len(barHeader) || !strings.EqualFold(header[0], "Date") {
		return nil, fmt.Errorf("%w: %s has header %v", contracts.ErrMalformedPrices, path, header)
	}

	var bars []contracts.Bar
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		bar, err := parseBarRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", contracts.ErrMalformedPrices, path, line, err)
		}
		bars = append(bars, bar)
	}

	return bars, nil
}

// WriteTable writes a wide closes file: Date,SYM1,SYM2,...
func WriteTable(path string, table *contracts.PriceTable) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	symbols := table.Symbols()
	columns, err := table.Columns(symbols)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(append([]string{"Date"}, symbols...)); err != nil {
		return err
	}

	row := make([]string, len(symbols)+1)
	for i, d := range table.Dates() {
		row[0] = d.Format(dateLayout)
		for j := range symbols {
			row[j+1] = strconv.FormatFloat(columns[j][i], 'f', -1, 64)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// ReadTable reads a wide closes file written by WriteTable
func ReadTable(path string) (*contracts.PriceTable, error) {
	if err := checkCSVPath(path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(bufio.NewReader(f)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 || len(records[0]) < 2 {
		return nil, fmt.Errorf("%w: %s has no symbol columns", contracts.ErrMalformedPrices, path)
	}

	symbols := records[0][1:]
	dates := make([]time.Time, 0, len(records)-1)
	columns := make([][]float64, len(symbols))

	for i, rec := range records[1:] {
		d, err := time.Parse(dateLayout, rec[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %s row %d: %v", contracts.ErrMalformedPrices, path, i+2, err)
		}
		dates = append(dates, d)

		for j := range symbols {
			v, err := strconv.ParseFloat(rec[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s row %d col %s: %v", contracts.ErrMalformedPrices, path, i+2, symbols[j], err)
			}
			columns[j] = append(columns[j], v)
		}
	}

	return contracts.NewPriceTable(dates, symbols, columns)
}

func checkCSVPath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrNotCSV, path)
	}
	if strings.ToLower(filepath.Ext(path)) != ".csv" {
		return fmt.Errorf("%w: %s does not have a .csv extension", ErrNotCSV, path)
	}
	return nil
}

func writeBars(path string, bars []contracts.Bar) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(barHeader); err != nil {
		return err
	}
	for _, b := range bars {
		rec := []string{
			b.Date.Format(dateLayout),
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatInt(b.Volume, 10),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func parseBarRecord(rec []string) (contracts.Bar, error) {
	if len(rec) < len(barHeader) {
		return contracts.Bar{}, fmt.Errorf("want %d fields, got %d", len(barHeader), len(rec))
	}

	// 날짜 뒤에 시간이 붙은 파일도 허용 (2024-01-02 00:00:00+09:00)
	datePart := rec[0]
	if len(datePart) > len(dateLayout) {
		datePart = datePart[:len(dateLayout)]
	}
	date, err := time.Parse(dateLayout, datePart)
	if err != nil {
		return contracts.Bar{}, err
	}

	var vals [4]float64
	for i := range vals {
		if vals[i], err = strconv.ParseFloat(rec[i+1], 64); err != nil {
			return contracts.Bar{}, err
		}
	}

	vol, err := strconv.ParseFloat(rec[5], 64)
	if err != nil {
		return contracts.Bar{}, err
	}

	return contracts.Bar{
		Date:   date,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: int64(vol),
	}, nil
}
