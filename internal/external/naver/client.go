package naver

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/wonny/walletsim/pkg/httputil"
	"github.com/wonny/walletsim/pkg/logger"
)

const (
	DefaultBaseURL  = "https://finance.naver.com"
	DefaultChartURL = "https://fchart.stock.naver.com"
)

// Client handles communication with Naver Finance
// ⭐ SSOT: Naver Finance 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	chartURL   string
}

// NewClient creates a new Naver Finance client. Empty URLs fall back to the public endpoints.
func NewClient(httpClient *httputil.Client, baseURL, chartURL string, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if chartURL == "" {
		chartURL = DefaultChartURL
	}

	return &Client{
		httpClient: httpClient,
		logger:     log.Component("naver"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		chartURL:   strings.TrimRight(chartURL, "/"),
	}
}

// Name identifies this provider in logs and metrics
func (c *Client) Name() string {
	return "naver"
}

// fetch performs a GET on base+path with query params
func (c *Client) fetch(ctx context.Context, base, path string, params url.Values) ([]byte, error) {
	fullURL := base + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	body, err := c.httpClient.GetBytes(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("naver request failed: %w", err)
	}

	return body, nil
}
