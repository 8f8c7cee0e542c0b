package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "walletsim",
	Short: "walletsim - Sharpe 최대 포트폴리오 전수 탐색",
	Long: `walletsim Unified CLI

유니버스에서 k개 종목 조합을 모두 만들고, 각 조합에 무작위 비중 벡터를 적용해
연율화 Sharpe 비율이 가장 높은 지갑을 찾습니다.

Usage:
  go run ./cmd/walletsim [command]

Examples:
  go run ./cmd/walletsim simulate --profile configs/profile.yaml
  go run ./cmd/walletsim simulate --symbols 005930,000660,035420 --subset-size 2
  go run ./cmd/walletsim fetch --profile configs/profile.yaml
  go run ./cmd/walletsim serve
  go run ./cmd/walletsim scheduler start`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "로그 레벨 override (debug|info|warn|error)")
}
