package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/wonny/walletsim/internal/contracts"
	"github.com/wonny/walletsim/internal/simulation"
)

// ═══════════════════════════════════════════════════════════
// CLI 출력 포맷 (모든 커맨드 공통)
// 색상은 TTY일 때만 적용되고 파이프/테스트에서는 평문
// ═══════════════════════════════════════════════════════════

// out is where every Print* helper writes (tests swap it)
var out io.Writer = os.Stdout

const lineWidth = 59

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	headerCell   = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	bodyCell     = lipgloss.NewStyle().Padding(0, 1)
)

// JobMetadata is the header block printed before a command's output
type JobMetadata struct {
	RunID   string
	JobType string
	Period  *Period
	Symbols []string
}

// Period represents a date range
type Period struct {
	StartDate string
	EndDate   string
}

// PrintJobHeader prints the title block with run id, period and symbols
func PrintJobHeader(meta JobMetadata) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, mutedStyle.Render(strings.Repeat("═", lineWidth)))
	fmt.Fprintln(out, "  "+titleStyle.Render(meta.JobType))
	PrintSeparator()
	if meta.RunID != "" {
		PrintKeyValue("Run ID", meta.RunID, 8)
	}
	if meta.Period != nil {
		PrintKeyValue("Period", meta.Period.StartDate+" ~ "+meta.Period.EndDate, 8)
	}
	if len(meta.Symbols) > 0 {
		PrintKeyValue("Symbols", summarizeSymbols(meta.Symbols, 10), 8)
	}
	PrintSeparator()
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Fprintln(out, mutedStyle.Render(strings.Repeat("─", lineWidth)))
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Fprintln(out, warnStyle.Render("⚠️  "+message))
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Fprintln(out, successStyle.Render("✅ "+message))
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Fprintln(out, errorStyle.Render("❌ "+message))
}

// PrintTable renders rows under headers with light borders
func PrintTable(headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerCell
			}
			return bodyCell
		})
	fmt.Fprintln(out, t.Render())
}

// PrintList prints a bulleted list
func PrintList(items []string) {
	for _, item := range items {
		fmt.Fprintf(out, "   • %s\n", item)
	}
}

// PrintKeyValue prints one aligned "key : value" line
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Fprintf(out, "   %-*s : %s\n", keyWidth, key, value)
}

// PrintWallets prints ranked wallets as a table
func PrintWallets(wallets []contracts.WalletResult) {
	rows := make([][]string, len(wallets))
	for i, w := range wallets {
		rows[i] = []string{
			strconv.Itoa(i + 1),
			strings.Join(w.Assets, ","),
			formatWeights(w.Weights),
			formatPercent(w.AnnualReturn),
			formatPercent(w.AnnualStdDev),
			formatSharpe(w),
		}
	}
	PrintTable([]string{"#", "Assets", "Weights", "Return", "Std Dev", "Sharpe"}, rows)
}

// PrintOutcome prints the summary and the best wallet of a finished search
func PrintOutcome(o *simulation.Outcome) {
	const w = 12

	fmt.Fprintln(out)
	fmt.Fprintln(out, titleStyle.Render("📊 Search Summary"))
	PrintSeparator()
	PrintKeyValue("Subsets", strconv.Itoa(o.Subsets), w)
	PrintKeyValue("Tasks", fmt.Sprintf("%d / %d", o.Evaluated, o.TotalTasks), w)
	PrintKeyValue("Failures", strconv.Itoa(len(o.Failures)), w)
	PrintKeyValue("Seed", strconv.FormatUint(o.Seed, 10), w)
	PrintKeyValue("Sampling", fmt.Sprintf("%d in-bounds, %d best-effort", o.Sampling.InBounds, o.Sampling.BestEffort), w)
	if o.UndefinedSharpe > 0 {
		PrintKeyValue("Undefined", fmt.Sprintf("%d wallets (zero variance)", o.UndefinedSharpe), w)
	}
	PrintKeyValue("Duration", o.Duration.Round(time.Millisecond).String(), w)
	if o.Cancelled {
		PrintWarning("Search was cancelled, results are partial")
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, titleStyle.Render("🏆 Best Wallet"))
	PrintSeparator()
	for _, sym := range o.Best.Assets {
		PrintKeyValue(sym, formatPercent(o.Best.WeightOf(sym)), w)
	}
	PrintKeyValue("Return", formatPercent(o.Best.AnnualReturn), w)
	PrintKeyValue("Std Dev", formatPercent(o.Best.AnnualStdDev), w)
	PrintKeyValue("Sharpe", formatSharpe(o.Best), w)
	if o.BestRisk != nil {
		PrintKeyValue("Max DD", formatPercent(o.BestRisk.MaxDrawdown), w)
	}
}

func formatWeights(weights []float64) string {
	parts := make([]string, len(weights))
	for i, w := range weights {
		parts[i] = strconv.FormatFloat(w, 'f', 3, 64)
	}
	return strings.Join(parts, ",")
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v*100, 'f', 2, 64) + "%"
}

func formatSharpe(w contracts.WalletResult) string {
	if !w.SharpeDefined {
		return "n/a"
	}
	return strconv.FormatFloat(w.SharpeRatio, 'f', 4, 64)
}

// summarizeSymbols shortens long symbol lists for headers
func summarizeSymbols(symbols []string, max int) string {
	if len(symbols) <= max {
		return strings.Join(symbols, ", ")
	}
	return fmt.Sprintf("%s ... (+%d)", strings.Join(symbols[:max], ", "), len(symbols)-max)
}
