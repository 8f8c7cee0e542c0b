package commands

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/spf13/cobra"

	"github.com/wonny/walletsim/internal/runconfig"
	"github.com/wonny/walletsim/internal/subset"
	"github.com/wonny/walletsim/pkg/config"
	"github.com/wonny/walletsim/pkg/database"
	"github.com/wonny/walletsim/pkg/redis"
)

// approxWalletBytes is the rough in-memory size of one ranked wallet per asset
const approxWalletBytes = 48

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "환경/리소스 상태 점검",
	Long: `설정, 호스트 리소스, DB/Redis 연결, 탐색 공간 크기를 점검합니다.

표시 정보:
- Config: 실행 기본값 (SIM_*)
- Host: CPU 코어/사용률, 메모리
- Search: C(n,k) × wallets 작업 수와 결과 메모리 추정
- Services: PostgreSQL / Redis 연결 상태

Example:
  go run ./cmd/walletsim status
  go run ./cmd/walletsim status --profile configs/profile.yaml`,
	RunE: runStatus,
}

var (
	statusProfile string
)

func init() {
	rootCmd.AddCommand(statusCmd)

	// Flags
	statusCmd.Flags().StringVar(&statusProfile, "profile", "", "탐색 공간을 추정할 프로필")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	fmt.Println("=== walletsim Status ===")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 1. Config
	sim := cfg.Simulation
	fmt.Println()
	fmt.Println("⚙️  Config")
	PrintSeparator()
	PrintKeyValue("Env", cfg.Env, 14)
	PrintKeyValue("Subset Size", fmt.Sprintf("%d", sim.SubsetSize), 14)
	PrintKeyValue("Wallets", fmt.Sprintf("%d", sim.Wallets), 14)
	PrintKeyValue("Bounds", fmt.Sprintf("[%g, %g]", sim.MinWeight, sim.MaxWeight), 14)
	PrintKeyValue("Workers", workersLabel(sim.Workers), 14)
	PrintKeyValue("Output Dir", sim.OutputDir, 14)
	PrintKeyValue("Profile", sim.ProfilePath, 14)
	PrintKeyValue("Schedule", sim.Schedule, 14)

	// 2. Host
	fmt.Println()
	fmt.Println("🖥️  Host")
	PrintSeparator()
	physical, _ := cpu.Counts(false)
	logical, _ := cpu.Counts(true)
	PrintKeyValue("CPU Cores", fmt.Sprintf("%d physical / %d logical", physical, logical), 14)
	if pct, err := cpu.Percent(200*time.Millisecond, false); err == nil && len(pct) > 0 {
		PrintKeyValue("CPU Usage", fmt.Sprintf("%.1f%%", pct[0]), 14)
	}
	var available uint64
	if vm, err := mem.VirtualMemory(); err == nil {
		available = vm.Available
		PrintKeyValue("Memory", fmt.Sprintf("%s available / %s total (%.1f%% used)",
			formatBytes(vm.Available), formatBytes(vm.Total), vm.UsedPercent), 14)
	} else {
		PrintWarning("memory stats unavailable: " + err.Error())
	}

	// 3. Search space
	if statusProfile != "" {
		if err := printSearchSpace(statusProfile, available); err != nil {
			PrintError(err.Error())
		}
	}

	// 4. Services
	fmt.Println()
	fmt.Println("🔌 Services")
	PrintSeparator()
	printDatabaseStatus(ctx, cfg)
	printRedisStatus(ctx, cfg)

	return nil
}

func printSearchSpace(path string, available uint64) error {
	profile, _, err := runconfig.Load(path)
	if err != nil {
		return err
	}
	if err := runconfig.Validate(profile); err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("🔎 Search Space (%s)\n", profile.Meta.ProfileID)
	PrintSeparator()

	u := profile.Universes[profile.Search.Universe]
	if !u.Static() {
		PrintKeyValue("Universe", fmt.Sprintf("index %s (resolved at run time)", u.Index), 14)
		return nil
	}

	k := profile.Search.SubsetSize
	subsets, err := subset.Count(len(u.Symbols), k)
	if err != nil {
		PrintKeyValue("Subsets", err.Error(), 14)
		return nil
	}
	tasks := float64(subsets) * float64(profile.Search.Wallets)
	need := tasks * float64(approxWalletBytes*(k+1))

	PrintKeyValue("Universe", fmt.Sprintf("%d symbols, k=%d", len(u.Symbols), k), 14)
	PrintKeyValue("Subsets", fmt.Sprintf("%d", subsets), 14)
	PrintKeyValue("Tasks", fmt.Sprintf("%.0f", tasks), 14)
	PrintKeyValue("Result Memory", "~"+formatBytes(uint64(need)), 14)
	if available > 0 && need > float64(available) {
		PrintWarning("estimated results exceed available memory")
	}

	for _, w := range runconfig.Warn(profile) {
		PrintWarning(fmt.Sprintf("[%s] %s", w.Code, w.Message))
	}
	return nil
}

func printDatabaseStatus(ctx context.Context, cfg *config.Config) {
	db, err := database.New(ctx, cfg)
	switch {
	case errors.Is(err, database.ErrDisabled):
		PrintKeyValue("PostgreSQL", "disabled (DATABASE_URL not set)", 14)
		return
	case err != nil:
		PrintKeyValue("PostgreSQL", "❌ "+err.Error(), 14)
		return
	}
	defer db.Close()

	health, err := db.HealthCheck(ctx)
	if err != nil {
		PrintKeyValue("PostgreSQL", "❌ "+err.Error(), 14)
		return
	}
	PrintKeyValue("PostgreSQL", fmt.Sprintf("✅ %s (%d/%d conns)",
		health.ResponseTime.Round(time.Microsecond), health.Stats.TotalConns, health.Stats.MaxConns), 14)
}

func printRedisStatus(ctx context.Context, cfg *config.Config) {
	rc, err := redis.New(ctx, cfg)
	if err != nil {
		PrintKeyValue("Redis", "❌ "+err.Error(), 14)
		return
	}
	defer rc.Close()

	if !rc.Enabled() {
		PrintKeyValue("Redis", "disabled (REDIS_ENABLED=false)", 14)
		return
	}
	rtt, err := rc.Ping(ctx)
	if err != nil {
		PrintKeyValue("Redis", "❌ "+err.Error(), 14)
		return
	}
	PrintKeyValue("Redis", fmt.Sprintf("✅ %s:%s (%s)", cfg.Redis.Host, cfg.Redis.Port, rtt.Round(time.Microsecond)), 14)
}

func workersLabel(n int) string {
	if n <= 0 {
		return fmt.Sprintf("auto (%d)", runtime.NumCPU())
	}
	return fmt.Sprintf("%d", n)
}

func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
