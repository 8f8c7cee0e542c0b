package commands

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/walletsim/internal/brain"
	"github.com/wonny/walletsim/internal/contracts"
	"github.com/wonny/walletsim/internal/pricedata"
	"github.com/wonny/walletsim/internal/runconfig"
	"github.com/wonny/walletsim/internal/simulation"
	"github.com/wonny/walletsim/pkg/config"
)

// simulateCmd represents the simulate command
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "포트폴리오 전수 탐색 실행",
	Long: `유니버스의 모든 k-종목 조합 × 비중 벡터를 평가해 Sharpe 최대 지갑을 찾습니다.

입력:
  --profile   YAML 프로필 (없으면 SIM_* 환경변수 기본값)
  --symbols   종목 코드 목록 (프로필 유니버스 대신 사용)
  --prices    와이드 종가 CSV (Date,SYM1,SYM2...) - 가격 수집 생략

결과:
  <output_dir>/<run_id>/wallets.csv  (Sharpe 내림차순)
  DB sim.runs / sim.wallets           (DATABASE_URL 설정 시, --no-db 로 생략)

Ctrl+C 시 진행 중인 batch까지만 처리하고 부분 결과를 보고합니다.

Example:
  go run ./cmd/walletsim simulate --profile configs/profile.yaml
  go run ./cmd/walletsim simulate --symbols 005930,000660,035420,051910 --subset-size 2 --wallets 500
  go run ./cmd/walletsim simulate --prices data/closes.csv --subset-size 3 --seed 42 --no-db`,
	RunE: runSimulate,
}

var (
	simProfile    string
	simUniverse   string
	simSymbols    string
	simPrices     string
	simStart      string
	simEnd        string
	simSubsetSize int
	simWallets    int
	simMinWeight  float64
	simMaxWeight  float64
	simWorkers    int
	simBatchSize  int
	simSeed       uint64
	simTop        int
	simNoDB       bool
)

func init() {
	rootCmd.AddCommand(simulateCmd)

	// Flags
	f := simulateCmd.Flags()
	f.StringVar(&simProfile, "profile", "", "YAML 프로필 경로")
	f.StringVar(&simUniverse, "universe", "", "프로필 내 유니버스 이름")
	f.StringVar(&simSymbols, "symbols", "", "쉼표로 구분한 종목 코드")
	f.StringVar(&simPrices, "prices", "", "와이드 종가 CSV 파일")
	f.StringVar(&simStart, "start", "", "시작일 (YYYY-MM-DD, 기본: 종료일 한 달 전)")
	f.StringVar(&simEnd, "end", "", "종료일 (YYYY-MM-DD, 기본: 오늘)")
	f.IntVar(&simSubsetSize, "subset-size", 0, "조합당 종목 수 k")
	f.IntVar(&simWallets, "wallets", 0, "조합당 비중 벡터 수")
	f.Float64Var(&simMinWeight, "min-weight", 0, "종목별 최소 비중")
	f.Float64Var(&simMaxWeight, "max-weight", 0, "종목별 최대 비중")
	f.IntVar(&simWorkers, "workers", 0, "워커 수 (0 = CPU 수)")
	f.IntVar(&simBatchSize, "batch-size", 0, "워커에 배분하는 작업 단위")
	f.Uint64Var(&simSeed, "seed", 0, "난수 시드 (0 = 시간 기반)")
	f.IntVar(&simTop, "top", 10, "출력/저장할 상위 지갑 수")
	f.BoolVar(&simNoDB, "no-db", false, "DB 저장 생략")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var lastPct int
	progress := brain.PublisherFunc(func(e brain.Event) {
		if e.Progress != nil {
			pct := int(e.Progress.Percent())
			if pct/10 > lastPct/10 {
				fmt.Printf("[simulate] %d%% (%d/%d)\n", pct, e.Progress.Done, e.Progress.Total)
			}
			lastPct = pct
			return
		}
		if e.Message != "" {
			fmt.Printf("[%s] %s\n", e.Stage, e.Message)
		}
	})

	a, err := bootstrap(ctx, appOptions{NoDB: simNoDB, Publisher: progress})
	if err != nil {
		return err
	}
	defer a.Close()

	// 1. Price table from file (optional)
	var table *contracts.PriceTable
	if simPrices != "" {
		table, err = pricedata.ReadTable(simPrices)
		if err != nil {
			return fmt.Errorf("read prices: %w", err)
		}
	}

	// 2. Profile
	symbols := splitSymbols(simSymbols)
	profile, err := buildProfile(cmd, a.cfg.Simulation, symbols, table)
	if err != nil {
		return err
	}
	if err := runconfig.Validate(profile); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}

	from, to := profile.Data.Range()
	header := JobMetadata{JobType: "Portfolio Search", Symbols: symbols}
	if !from.IsZero() || !to.IsZero() {
		header.Period = &Period{StartDate: profile.Data.Start, EndDate: profile.Data.End}
	}
	PrintJobHeader(header)

	// 3. Run
	result, err := a.orch.Run(ctx, brain.RunRequest{
		Profile: profile,
		Symbols: symbols,
		NoDB:    simNoDB,
		Table:   table,
	})
	if err != nil {
		PrintError(err.Error())
		return err
	}

	// 4. Report
	PrintOutcome(result.Outcome)
	fmt.Println()
	fmt.Printf("📋 Top %d Wallets\n", min(simTop, len(result.Outcome.Ranked)))
	PrintWallets(simulation.Top(result.Outcome.Ranked, simTop))

	fmt.Println()
	if result.CSVPath != "" {
		PrintSuccess("Wallets written to " + result.CSVPath)
	}
	if result.Persisted {
		PrintSuccess("Run saved to database: " + result.RunID)
	}
	fmt.Printf("\n✅ Run %s completed in %.2fs\n", result.RunID, result.Duration.Seconds())

	return nil
}

// buildProfile loads --profile (or env defaults) and applies flag overrides
func buildProfile(cmd *cobra.Command, sim config.SimulationConfig, symbols []string, table *contracts.PriceTable) (*runconfig.Profile, error) {
	var profile *runconfig.Profile
	if simProfile != "" {
		p, _, err := runconfig.Load(simProfile)
		if err != nil {
			return nil, err
		}
		profile = p
	} else {
		adhoc := symbols
		if len(adhoc) == 0 && table != nil {
			adhoc = table.Symbols()
		}
		if len(adhoc) == 0 {
			return nil, fmt.Errorf("one of --profile, --symbols or --prices is required")
		}
		profile = runconfig.Default(sim, adhoc)
	}

	flags := cmd.Flags()
	if flags.Changed("universe") {
		profile.Search.Universe = simUniverse
	}
	if flags.Changed("start") {
		profile.Data.Start = simStart
	}
	if flags.Changed("end") {
		profile.Data.End = simEnd
	}
	if flags.Changed("subset-size") {
		profile.Search.SubsetSize = simSubsetSize
	}
	if flags.Changed("wallets") {
		profile.Search.Wallets = simWallets
	}
	if flags.Changed("min-weight") {
		profile.Search.MinWeight = simMinWeight
	}
	if flags.Changed("max-weight") {
		profile.Search.MaxWeight = simMaxWeight
	}
	if flags.Changed("workers") {
		profile.Search.Workers = simWorkers
	}
	if flags.Changed("batch-size") {
		profile.Search.BatchSize = simBatchSize
	}
	if flags.Changed("seed") {
		profile.Search.Seed = simSeed
	}
	if flags.Changed("top") {
		profile.Output.TopN = simTop
	}

	// 명시한 종목이 정적 유니버스 크기 검사에 반영되도록
	if len(symbols) > 0 {
		profile.Universes[profile.Search.Universe] = runconfig.Universe{Symbols: symbols}
	}

	return profile, nil
}

func splitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
