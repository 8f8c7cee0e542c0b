package commands

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/walletsim/internal/brain"
	"github.com/wonny/walletsim/internal/pricedata"
	"github.com/wonny/walletsim/internal/runconfig"
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "가격 데이터 수집",
	Long: `유니버스 종목의 일봉을 수집해 CSV/DB/Redis에 저장합니다.

저장 위치:
  <dir>/{symbol}_from_{start}_to_{end}.csv   (종목별 OHLCV)
  --out 지정 시 정렬된 와이드 종가 CSV        (simulate --prices 입력)
  DB prices.daily_bars                       (DATABASE_URL 설정 시)

Example:
  go run ./cmd/walletsim fetch --profile configs/profile.yaml
  go run ./cmd/walletsim fetch --symbols 005930,000660 --start 2024-01-01 --end 2024-06-30 --out data/closes.csv`,
	RunE: runFetch,
}

var (
	fetchProfile string
	fetchSymbols string
	fetchStart   string
	fetchEnd     string
	fetchDir     string
	fetchOut     string
)

func init() {
	rootCmd.AddCommand(fetchCmd)

	// Flags
	fetchCmd.Flags().StringVar(&fetchProfile, "profile", "", "YAML 프로필 경로")
	fetchCmd.Flags().StringVar(&fetchSymbols, "symbols", "", "쉼표로 구분한 종목 코드")
	fetchCmd.Flags().StringVar(&fetchStart, "start", "", "시작일 (YYYY-MM-DD)")
	fetchCmd.Flags().StringVar(&fetchEnd, "end", "", "종료일 (YYYY-MM-DD)")
	fetchCmd.Flags().StringVar(&fetchDir, "dir", "", "종목별 CSV 저장 디렉토리")
	fetchCmd.Flags().StringVar(&fetchOut, "out", "", "와이드 종가 CSV 출력 경로")
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	symbols := splitSymbols(fetchSymbols)
	var profile *runconfig.Profile
	switch {
	case fetchProfile != "":
		if profile, _, err = runconfig.Load(fetchProfile); err != nil {
			return err
		}
	case len(symbols) > 0:
		profile = runconfig.Default(a.cfg.Simulation, symbols)
	default:
		return fmt.Errorf("one of --profile or --symbols is required")
	}

	if fetchStart != "" {
		profile.Data.Start = fetchStart
	}
	if fetchEnd != "" {
		profile.Data.End = fetchEnd
	}
	if fetchDir != "" {
		profile.Data.Dir = fetchDir
	}
	if err := runconfig.Validate(profile); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}

	PrintJobHeader(JobMetadata{
		JobType: "Price Fetch",
		Period:  &Period{StartDate: profile.Data.Start, EndDate: profile.Data.End},
		Symbols: symbols,
	})

	result, err := a.orch.Fetch(ctx, brain.RunRequest{Profile: profile, Symbols: symbols})
	if err != nil {
		PrintError(err.Error())
		return err
	}

	// 종목별 출처
	names := make([]string, 0, len(result.Load.Sources))
	for sym := range result.Load.Sources {
		names = append(names, sym)
	}
	sort.Strings(names)

	rows := make([][]string, len(names))
	for i, sym := range names {
		rows[i] = []string{sym, result.Load.Sources[sym]}
	}
	PrintTable([]string{"Symbol", "Source"}, rows)

	fmt.Println()
	PrintKeyValue("Period", fmt.Sprintf("%s ~ %s", result.Load.From.Format(runconfig.DateLayout), result.Load.To.Format(runconfig.DateLayout)), 10)
	PrintKeyValue("Rows", fmt.Sprintf("%d", result.Load.Rows), 10)
	if result.Load.DroppedDates > 0 {
		PrintWarning(fmt.Sprintf("%d dates dropped by alignment", result.Load.DroppedDates))
	}

	if fetchOut != "" {
		if err := os.MkdirAll(filepath.Dir(fetchOut), 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		if err := pricedata.WriteTable(fetchOut, result.Table); err != nil {
			return fmt.Errorf("write table: %w", err)
		}
		PrintSuccess("Closes written to " + fetchOut)
	}

	fmt.Printf("\n✅ Fetched %d symbols in %.2fs\n", len(result.Universe), result.Duration.Seconds())
	return nil
}
