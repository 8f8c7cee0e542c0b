package runconfig

import (
	"time"

	"github.com/wonny/walletsim/internal/risk"
	"github.com/wonny/walletsim/internal/simulation"
	"github.com/wonny/walletsim/internal/weights"
	"github.com/wonny/walletsim/pkg/config"
)

// DateLayout is the profile date format
const DateLayout = "2006-01-02"

// Data sources
const (
	SourceNaver = "naver"
	SourceCSV   = "csv"
)

// Profile is one reproducible search run definition
type Profile struct {
	Meta      Meta                `yaml:"meta" json:"meta"`
	Universes map[string]Universe `yaml:"universes" json:"universes" validate:"required,min=1,dive,keys,required,endkeys"`
	Data      Data                `yaml:"data" json:"data"`
	Search    Search              `yaml:"search" json:"search"`
	Output    Output              `yaml:"output" json:"output"`
}

// Meta 메타 정보
type Meta struct {
	ProfileID   string `yaml:"profile_id" json:"profile_id" validate:"required"`
	Version     string `yaml:"version" json:"version"`
	Description string `yaml:"description" json:"description"`
}

// Universe is either a static symbol list or an index to scrape
type Universe struct {
	Symbols []string `yaml:"symbols" json:"symbols" validate:"omitempty,unique,dive,required"`
	Index   string   `yaml:"index" json:"index" validate:"required_without=Symbols,excluded_with=Symbols"`
}

// Static reports whether the universe lists its symbols directly
func (u Universe) Static() bool {
	return len(u.Symbols) > 0
}

// Data 가격 데이터 구간/출처
type Data struct {
	Start   string `yaml:"start" json:"start" validate:"omitempty,datetime=2006-01-02"` // 비우면 end 한 달 전
	End     string `yaml:"end" json:"end" validate:"omitempty,datetime=2006-01-02"`     // 비우면 오늘
	Source  string `yaml:"source" json:"source" validate:"omitempty,oneof=naver csv"`
	Dir     string `yaml:"dir" json:"dir"`
	SaveCSV bool   `yaml:"save_csv" json:"save_csv"`
}

// Range returns the parsed dates; zero values mean "use the default"
func (d Data) Range() (time.Time, time.Time) {
	var from, to time.Time
	if d.Start != "" {
		from, _ = time.Parse(DateLayout, d.Start)
	}
	if d.End != "" {
		to, _ = time.Parse(DateLayout, d.End)
	}
	return from, to
}

// Search 탐색 파라미터
type Search struct {
	Universe          string  `yaml:"universe" json:"universe" validate:"required"`
	SubsetSize        int     `yaml:"subset_size" json:"subset_size" validate:"gte=1"`
	Wallets           int     `yaml:"wallets" json:"wallets" validate:"gte=1"`
	MinWeight         float64 `yaml:"min_weight" json:"min_weight" validate:"gte=0,ltfield=MaxWeight"`
	MaxWeight         float64 `yaml:"max_weight" json:"max_weight" validate:"gt=0,lte=1"`
	MaxSampleAttempts int     `yaml:"max_sample_attempts" json:"max_sample_attempts" validate:"gte=0"`
	TradingDays       int     `yaml:"trading_days" json:"trading_days" validate:"gte=0"`
	RiskFreeRate      float64 `yaml:"risk_free_rate" json:"risk_free_rate"`
	Seed              uint64  `yaml:"seed" json:"seed"`
	Workers           int     `yaml:"workers" json:"workers" validate:"gte=0"`
	BatchSize         int     `yaml:"batch_size" json:"batch_size" validate:"gte=0"`
}

// Output 결과 저장
type Output struct {
	Dir       string `yaml:"dir" json:"dir"`
	TopN      int    `yaml:"top_n" json:"top_n" validate:"gte=0"`
	SkipCSV   bool   `yaml:"skip_csv" json:"skip_csv"`
	PersistDB bool   `yaml:"persist_db" json:"persist_db"`
}

// Params converts the search section into simulator parameters for a resolved universe
func (p *Profile) Params(universe []string) simulation.Params {
	s := p.Search
	return simulation.Params{
		Universe:          universe,
		SubsetSize:        s.SubsetSize,
		Wallets:           s.Wallets,
		Bounds:            weights.Bounds{Min: s.MinWeight, Max: s.MaxWeight},
		MaxSampleAttempts: s.MaxSampleAttempts,
		Risk:              risk.Config{TradingDays: s.TradingDays, RiskFreeRate: s.RiskFreeRate},
		Workers:           s.Workers,
		BatchSize:         s.BatchSize,
		Seed:              s.Seed,
	}
}

// Default builds a profile from environment defaults for an ad-hoc symbol list
func Default(sim config.SimulationConfig, symbols []string) *Profile {
	return &Profile{
		Meta: Meta{ProfileID: "adhoc", Version: "1"},
		Universes: map[string]Universe{
			"adhoc": {Symbols: symbols},
		},
		Data: Data{
			Source:  SourceNaver,
			Dir:     sim.OutputDir,
			SaveCSV: true,
		},
		Search: Search{
			Universe:          "adhoc",
			SubsetSize:        sim.SubsetSize,
			Wallets:           sim.Wallets,
			MinWeight:         sim.MinWeight,
			MaxWeight:         sim.MaxWeight,
			MaxSampleAttempts: sim.MaxSampleAttempts,
			TradingDays:       sim.TradingDays,
			RiskFreeRate:      sim.RiskFreeRate,
			Seed:              sim.Seed,
			Workers:           sim.Workers,
			BatchSize:         sim.BatchSize,
		},
		Output: Output{
			Dir:       sim.OutputDir,
			TopN:      sim.TopN,
			PersistDB: true,
		},
	}
}
