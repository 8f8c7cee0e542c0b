package risk

import "time"

// Config holds the annualization constants of the metric engine
type Config struct {
	TradingDays  int     `json:"trading_days" yaml:"trading_days"`     // 연환산 거래일 수 (기본 252)
	RiskFreeRate float64 `json:"risk_free_rate" yaml:"risk_free_rate"` // 연 무위험 수익률 (기본 0)
}

// DefaultConfig returns 252 trading days and a zero risk-free rate
func DefaultConfig() Config {
	return Config{
		TradingDays:  252,
		RiskFreeRate: 0,
	}
}

// VaRResult VaR 계산 결과 (손실을 양수로 표현)
type VaRResult struct {
	Confidence float64 `json:"confidence"` // 신뢰수준 (0.95, 0.99)
	VaR        float64 `json:"var"`        // Value at Risk
	CVaR       float64 `json:"cvar"`       // Conditional VaR (Expected Shortfall)
}

// Report describes the tail risk of one wallet's daily return series
// ⭐ 최적 지갑 리포트 전용 (탐색 중에는 계산하지 않음)
type Report struct {
	Observations     int       `json:"observations"`
	DailyMean        float64   `json:"daily_mean"`
	DailyStdDev      float64   `json:"daily_std_dev"`
	Historical95     VaRResult `json:"historical_95"`
	Historical99     VaRResult `json:"historical_99"`
	Parametric95     VaRResult `json:"parametric_95"`
	MaxDrawdown      float64   `json:"max_drawdown"` // 누적 자산 기준 최대 낙폭 (양수)
	CumulativeReturn float64   `json:"cumulative_return"`
	From             time.Time `json:"from"`
	To               time.Time `json:"to"`
}
