package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wonny/walletsim/internal/runconfig"
)

// universeCmd represents the universe command
var universeCmd = &cobra.Command{
	Use:   "universe",
	Short: "유니버스 조회",
	Long: `프로필에 정의된 유니버스를 보여주거나 지수 구성종목을 조회합니다.

Example:
  go run ./cmd/walletsim universe --profile configs/profile.yaml
  go run ./cmd/walletsim universe --index KPI200`,
	RunE: runUniverse,
}

var (
	universeProfile string
	universeIndex   string
	universeResolve bool
)

func init() {
	rootCmd.AddCommand(universeCmd)

	// Flags
	universeCmd.Flags().StringVar(&universeProfile, "profile", "", "YAML 프로필 경로")
	universeCmd.Flags().StringVar(&universeIndex, "index", "", "지수 코드 (예: KPI200, KOSPI, KOSDAQ)")
	universeCmd.Flags().BoolVar(&universeResolve, "resolve", false, "지수 유니버스의 구성종목까지 조회")
}

func runUniverse(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if universeProfile == "" && universeIndex == "" {
		return fmt.Errorf("one of --profile or --index is required")
	}

	a, err := bootstrap(ctx, appOptions{NoDB: true})
	if err != nil {
		return err
	}
	defer a.Close()

	// 단일 지수 조회
	if universeIndex != "" {
		symbols, err := a.orch.ResolveUniverse(ctx, runconfig.Universe{Index: universeIndex})
		if err != nil {
			return fmt.Errorf("resolve %s: %w", universeIndex, err)
		}
		fmt.Printf("📈 %s: %d symbols\n", universeIndex, len(symbols))
		fmt.Println(summarizeSymbols(symbols, len(symbols)))
		return nil
	}

	profile, _, err := runconfig.Load(universeProfile)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(profile.Universes))
	for name := range profile.Universes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		u := profile.Universes[name]
		marker := "  "
		if name == profile.Search.Universe {
			marker = "▶ "
		}

		if u.Static() {
			fmt.Printf("%s%s (static, %d)\n", marker, name, len(u.Symbols))
			PrintList(u.Symbols)
			continue
		}

		if !universeResolve {
			fmt.Printf("%s%s (index %s)\n", marker, name, u.Index)
			continue
		}

		symbols, err := a.orch.ResolveUniverse(ctx, u)
		if err != nil {
			PrintError(fmt.Sprintf("%s: %v", name, err))
			continue
		}
		fmt.Printf("%s%s (index %s, %d)\n", marker, name, u.Index, len(symbols))
		fmt.Printf("   %s\n", summarizeSymbols(symbols, 20))
	}

	return nil
}
