// Package main runs a multi-symbol portfolio backtest over a directory of
// CSV bar files, optionally sweeping a parameter grid across a worker pool.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"drummond-lab/internal/backtest"
	"drummond-lab/internal/batch"
	"drummond-lab/internal/domain"
	"drummond-lab/internal/execution"
	"drummond-lab/internal/feed"
	"drummond-lab/internal/metrics"
	"drummond-lab/internal/portfolio"
	"drummond-lab/internal/reporting"
	"drummond-lab/internal/strategy"
)

func main() {
	barsDir := flag.String("bars-dir", "", "Directory of <SYMBOL>.csv bar files (required)")
	symbols := flag.String("symbols", "", "Comma-separated symbols to include (default: every file)")
	interval := flag.String("interval", domain.Interval5Min, "Trading interval of the bars")
	higherInterval := flag.String("higher-interval", domain.Interval30Min, "Higher confirmation interval")

	strategyType := flag.String("strategy", domain.StrategyTypeConfluence, "Strategy type (CONFLUENCE, TRAILING_STOP, REGIME_FOLLOW)")
	minStrength := flag.Float64("min-strength", 0.7, "Minimum signal strength for entries")
	stopPct := flag.Float64("stop-pct", 0.02, "Stop distance as fraction of entry price")
	trailPct := flag.Float64("trail-pct", 0.05, "Trailing stop distance from peak")
	initialStopPct := flag.Float64("initial-stop-pct", 0.05, "Initial stop distance from entry")
	minBarsInState := flag.Int("min-bars-in-state", 3, "Bars a regime must hold before entry")
	allowShort := flag.Bool("allow-short", true, "Permit short entries")

	startingCash := flag.Float64("starting-cash", 100_000, "Starting cash")
	riskPct := flag.Float64("risk-pct", 0.01, "Equity fraction risked per entry")
	maxPositions := flag.Int("max-positions", 10, "Maximum simultaneous open positions")
	maxRiskPct := flag.Float64("max-portfolio-risk-pct", 0.10, "Maximum total at-risk equity fraction")
	maxSignalsPerBar := flag.Int("max-signals-per-bar", 5, "Entry admissions per timestep")
	sessionTZ := flag.String("session-tz", "", "Trading-session timezone, e.g. America/New_York (empty disables the filter)")
	sessionOpen := flag.String("session-open", "09:30", "Session open, HH:MM")
	sessionClose := flag.String("session-close", "16:00", "Session close, HH:MM")

	slippageBps := flag.Float64("slippage-bps", 0, "Slippage in basis points, adverse")
	commissionRate := flag.Float64("commission-rate", 0, "Commission as fraction of notional")

	sweepStops := flag.String("sweep-stops", "", "Comma-separated stop-pct values to sweep instead of a single run")
	workers := flag.Int("workers", 4, "Worker-pool size for the sweep")
	outputDir := flag.String("output-dir", "", "Write markdown and CSV reports here (optional)")
	flag.Parse()

	if *barsDir == "" {
		fmt.Fprintln(os.Stderr, "--bars-dir is required")
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	series, err := loadSeries(*barsDir, *symbols, *interval)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading bars: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d symbols from %s\n", len(series), *barsDir)

	analysisCfg := backtest.DefaultAnalysisConfig()
	analysisCfg.TradingInterval = *interval
	analysisCfg.HigherInterval = *higherInterval

	analyses := make(map[string]map[int64]*domain.MultiTimeframeAnalysis, len(series))
	for symbol, bars := range series {
		m, err := backtest.PrecomputeAnalyses(analysisCfg, bars)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error analyzing %s: %v\n", symbol, err)
			os.Exit(1)
		}
		analyses[symbol] = m
	}

	portCfg := portfolio.Config{
		StartingCash:        *startingCash,
		RiskPerTradePct:     *riskPct,
		MaxPositions:        *maxPositions,
		MaxPortfolioRiskPct: *maxRiskPct,
		MaxSignalsPerBar:    *maxSignalsPerBar,
		HistoryWindow:       100,
	}
	if *sessionTZ != "" {
		session, err := portfolio.NewSession(*sessionTZ, *sessionOpen, *sessionClose)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error building session: %v\n", err)
			os.Exit(1)
		}
		portCfg.Session = session
	}
	execCfg := execution.Config{SlippageBps: *slippageBps, CommissionRate: *commissionRate, QuantityDecimals: 4}

	stratCfg := domain.StrategyConfig{
		StrategyType:    *strategyType,
		MinimumStrength: minStrength,
		StopDistancePct: stopPct,
		AllowShortSide:  allowShort,
		TrailPct:        trailPct,
		InitialStopPct:  initialStopPct,
		MinBarsInState:  minBarsInState,
	}

	in := portfolio.Input{Series: series, Analyses: analyses}

	var results []*domain.BacktestResult
	if *sweepStops != "" {
		results, err = runSweep(ctx, *sweepStops, *workers, portCfg, execCfg, stratCfg, in)
	} else {
		var result *domain.BacktestResult
		result, err = runOne(ctx, portCfg, execCfg, stratCfg, in)
		results = append(results, result)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Portfolio run error: %v\n", err)
		os.Exit(1)
	}

	reports := make([]*metrics.Report, 0, len(results))
	for _, result := range results {
		r := metrics.ComputeReport(result)
		reports = append(reports, r)
		fmt.Printf("%-45s net %12.2f  pf %6.2f  dd %6.1f%%  trades %d\n",
			r.StrategyID, r.NetProfit, r.ProfitFactor, r.MaxDrawdownPct*100, r.TotalTrades)
	}

	if *outputDir != "" {
		if err := writeReports(*outputDir, reports, results); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing reports: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Reports written to %s/\n", *outputDir)
	}
}

// loadSeries reads every requested <SYMBOL>.csv in dir.
func loadSeries(dir, symbolList, interval string) (map[string][]*domain.Bar, error) {
	want := map[string]bool{}
	for _, s := range strings.Split(symbolList, ",") {
		if s = strings.TrimSpace(s); s != "" {
			want[strings.ToUpper(s)] = true
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	series := make(map[string][]*domain.Bar)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		symbol := strings.ToUpper(strings.TrimSuffix(e.Name(), ".csv"))
		if len(want) > 0 && !want[symbol] {
			continue
		}
		bars, err := feed.LoadBarsCSV(filepath.Join(dir, e.Name()), symbol, interval)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", e.Name(), err)
		}
		series[symbol] = bars
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("no matching bar files in %s", dir)
	}
	return series, nil
}

// runOne executes a single portfolio run.
func runOne(ctx context.Context, portCfg portfolio.Config, execCfg execution.Config, stratCfg domain.StrategyConfig, in portfolio.Input) (*domain.BacktestResult, error) {
	strat, err := strategy.FromConfig(stratCfg)
	if err != nil {
		return nil, fmt.Errorf("create strategy: %w", err)
	}
	eng := portfolio.New(portCfg, execution.New(execCfg))
	return eng.Run(ctx, strat, in)
}

// runSweep runs one portfolio backtest per stop-pct value across the
// worker pool and returns the results ordered by net profit descending.
func runSweep(ctx context.Context, stops string, workers int, portCfg portfolio.Config, execCfg execution.Config, stratCfg domain.StrategyConfig, in portfolio.Input) ([]*domain.BacktestResult, error) {
	var tasks []*batch.Task
	for _, raw := range strings.Split(stops, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		stop, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("parse stop %q: %w", raw, err)
		}

		cfg := stratCfg
		cfg.StopDistancePct = &stop
		cfg.InitialStopPct = &stop
		tasks = append(tasks, &batch.Task{
			ID: fmt.Sprintf("stop-%s", raw),
			Run: func(ctx context.Context) (*domain.BacktestResult, error) {
				return runOne(ctx, portCfg, execCfg, cfg, in)
			},
		})
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("no sweep values in %q", stops)
	}

	pool, err := batch.NewPool(workers, zerolog.New(os.Stderr).With().Timestamp().Logger())
	if err != nil {
		return nil, err
	}
	summary := pool.Run(ctx, tasks)

	var results []*domain.BacktestResult
	for _, r := range summary.Results {
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "task %s failed: %v\n", r.TaskID, r.Err)
			continue
		}
		results = append(results, r.Result)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].EndingEquity-results[i].StartingCash > results[j].EndingEquity-results[j].StartingCash
	})
	return results, nil
}

// writeReports renders the markdown summary and the CSV exports.
func writeReports(dir string, reports []*metrics.Report, results []*domain.BacktestResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	files := map[string]string{
		"REPORT.md":   reporting.RenderMarkdown(reporting.NewRunReport(reports)),
		"metrics.csv": reporting.RenderMetricsCSV(reports),
	}
	var trades []*domain.Trade
	for _, result := range results {
		trades = append(trades, result.Trades...)
	}
	files["trades.csv"] = reporting.RenderTradesCSV(trades)

	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}
