package naver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/walletsim/internal/contracts"
)

// FetchBars fetches daily OHLCV bars for a stock over [from, to]
// ⭐ SSOT: Naver Finance 가격 API 호출은 이 함수에서만
func (c *Client) FetchBars(ctx context.Context, symbol string, from, to time.Time) ([]contracts.Bar, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("requestType", "1")
	params.Set("startTime", from.Format("20060102"))
	params.Set("endTime", to.Format("20060102"))
	params.Set("timeframe", "day")

	body, err := c.fetch(ctx, c.chartURL, "/siseJson.naver", params)
	if err != nil {
		return nil, err
	}

	bars, err := parsePriceResponse(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s prices: %w", symbol, err)
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"from":   from.Format("2006-01-02"),
		"to":     to.Format("2006-01-02"),
		"count":  len(bars),
	}).Debug("Fetched bars")

	return bars, nil
}

// parsePriceResponse parses the fchart siseJson body (JS array with single quotes)
func parsePriceResponse(body string) ([]contracts.Bar, error) {
	body = strings.TrimSpace(body)
	body = strings.ReplaceAll(body, "'", "\"")

	var rawData [][]interface{}
	if err := json.Unmarshal([]byte(body), &rawData); err == nil {
		return sortBars(parsePriceJSON(rawData)), nil
	}

	// Fallback to regex parsing
	bars := parsePriceRegex(body)
	if len(bars) == 0 && body != "" && body != "[]" {
		return nil, fmt.Errorf("unrecognized price payload (%d bytes)", len(body))
	}
	return sortBars(bars), nil
}

// parsePriceJSON parses JSON array rows; the first row is the header
func parsePriceJSON(rawData [][]interface{}) []contracts.Bar {
	var bars []contracts.Bar
	for i, row := range rawData {
		if i == 0 || len(row) < 6 {
			continue
		}

		dateStr, ok := row[0].(string)
		if !ok {
			continue
		}
		date, err := time.Parse("20060102", strings.TrimSpace(dateStr))
		if err != nil {
			continue
		}

		bars = append(bars, contracts.Bar{
			Date:   date,
			Open:   toFloat64(row[1]),
			High:   toFloat64(row[2]),
			Low:    toFloat64(row[3]),
			Close:  toFloat64(row[4]),
			Volume: int64(toFloat64(row[5])),
		})
	}
	return bars
}

var barRe = regexp.MustCompile(`\["(\d{8})",\s*([\d.]+),\s*([\d.]+),\s*([\d.]+),\s*([\d.]+),\s*(\d+)`)

// parsePriceRegex parses using regex (fallback for malformed JSON)
func parsePriceRegex(body string) []contracts.Bar {
	var bars []contracts.Bar
	for _, match := range barRe.FindAllStringSubmatch(body, -1) {
		date, err := time.Parse("20060102", match[1])
		if err != nil {
			continue
		}
		volume, _ := strconv.ParseInt(match[6], 10, 64)

		bars = append(bars, contracts.Bar{
			Date:   date,
			Open:   toFloat64(match[2]),
			High:   toFloat64(match[3]),
			Low:    toFloat64(match[4]),
			Close:  toFloat64(match[5]),
			Volume: volume,
		})
	}
	return bars
}

func sortBars(bars []contracts.Bar) []contracts.Bar {
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars
}

// toFloat64 converts JSON numbers and numeric strings
func toFloat64(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int64:
		return float64(val)
	case string:
		f, _ := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(val), ",", ""), 64)
		return f
	default:
		return 0
	}
}
