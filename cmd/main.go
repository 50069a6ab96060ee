package main

import (
	"errors"
	"fmt"
	"log"
	"time"

	"dcabacktest/api"
	"dcabacktest/internal"
	"dcabacktest/internal/app"
	"dcabacktest/internal/calculator"
	"dcabacktest/internal/feargreed"
	"dcabacktest/internal/logger"
	"dcabacktest/internal/service"

	"github.com/spf13/cobra"
)

var (
	flagDataDir    string
	flagOutDir     string
	flagStart      string
	flagEnd        string
	flagSymbols    []string
	flagWeekly     float64
	flagInitial    float64
	flagStrategy   string
	flagDampening  float64
	flagModulate   bool
	flagModulation float64
	flagSeed       int64
	flagNoNoise    bool
	flagPort       int
)

func main() {
	root := &cobra.Command{
		Use:   "dcabacktest",
		Short: "weekly DCA backtests with an optional fear/greed tilt",
	}
	root.PersistentFlags().StringVar(&flagDataDir, "data-dir", "market_data", "directory with <symbol>_data.csv files")
	root.PersistentFlags().Int64Var(&flagSeed, "seed", 42, "seed for the sentiment perturbation")
	root.PersistentFlags().BoolVar(&flagNoNoise, "no-noise", false, "disable the sentiment perturbation entirely")

	backtestCmd := &cobra.Command{
		Use:   "backtest",
		Short: "run a weekly DCA backtest and print the metrics",
		RunE:  runBacktest,
	}
	backtestCmd.Flags().StringVar(&flagStart, "start", "", "start date (YYYY-MM-DD)")
	backtestCmd.Flags().StringVar(&flagEnd, "end", "", "end date (YYYY-MM-DD)")
	backtestCmd.Flags().StringSliceVar(&flagSymbols, "symbols", []string{"SPY", "QQQ", "VTI"}, "instruments to trade")
	backtestCmd.Flags().Float64Var(&flagWeekly, "weekly", 500, "weekly investment amount")
	backtestCmd.Flags().Float64Var(&flagInitial, "initial", 0, "initial capital")
	backtestCmd.Flags().StringVar(&flagStrategy, "strategy", "dca", "dca or feargreed")
	backtestCmd.Flags().Float64Var(&flagDampening, "dampening", internal.DefaultDampening, "fear/greed weight-adjustment dampening")
	backtestCmd.Flags().BoolVar(&flagModulate, "modulate", false, "scale the weekly amount by the market fear/greed reading")
	backtestCmd.Flags().Float64Var(&flagModulation, "modulation", 0.5, "investment modulation factor")
	backtestCmd.Flags().StringVar(&flagOutDir, "out", "trading_data", "output directory for run artifacts")

	sentimentCmd := &cobra.Command{
		Use:   "sentiment",
		Short: "compute fear/greed indices and write them as CSV",
		RunE:  runSentiment,
	}
	sentimentCmd.Flags().StringSliceVar(&flagSymbols, "symbols", []string{"SPY"}, "instruments to score")
	sentimentCmd.Flags().StringVar(&flagOutDir, "out", "fear_greed_data", "output directory")

	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "download daily bars from Yahoo into the data directory",
		RunE:  runFetch,
	}
	fetchCmd.Flags().StringVar(&flagStart, "start", "", "start date (YYYY-MM-DD)")
	fetchCmd.Flags().StringVar(&flagEnd, "end", "", "end date (YYYY-MM-DD)")
	fetchCmd.Flags().StringSliceVar(&flagSymbols, "symbols", []string{"SPY", "QQQ", "VTI"}, "instruments to fetch")

	apiCmd := &cobra.Command{
		Use:   "api",
		Short: "serve backtests over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			handler := api.ApiHandler{DataDir: flagDataDir, Log: logger.New()}
			return handler.StartApi(flagPort)
		},
	}
	apiCmd.Flags().IntVar(&flagPort, "port", 3010, "listen port")

	root.AddCommand(backtestCmd, sentimentCmd, fetchCmd, apiCmd)
	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func parseRange() (time.Time, time.Time, error) {
	end := time.Now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(-5, 0, 0)
	var err error
	if flagStart != "" {
		start, err = time.Parse(time.DateOnly, flagStart)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("bad start date: %w", err)
		}
	}
	if flagEnd != "" {
		end, err = time.Parse(time.DateOnly, flagEnd)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("bad end date: %w", err)
		}
	}
	return start, end, nil
}

func newCalculator() feargreed.Calculator {
	calc := feargreed.NewCalculator(flagSeed)
	if flagNoNoise {
		calc.NoiseSigma = 0
	}
	return calc
}

func runBacktest(cmd *cobra.Command, args []string) error {
	lg := logger.New()
	start, end, err := parseRange()
	if err != nil {
		return err
	}

	seriesBySymbol, err := service.LoadSeriesFromDir(flagDataDir, flagSymbols)
	if err != nil {
		return err
	}
	if len(seriesBySymbol) == 0 {
		return fmt.Errorf("no price data found in %s for %v", flagDataDir, flagSymbols)
	}

	var policy internal.AllocationPolicy = internal.DCAPolicy{}
	var indexes map[string]*feargreed.Index

	if flagStrategy == "feargreed" || flagModulate {
		var errs map[string]error
		indexes, errs = newCalculator().ComputeAll(seriesBySymbol)
		for symbol, err := range errs {
			if errors.Is(err, feargreed.ErrInsufficientHistory) {
				lg.Warnw("sentiment unavailable, using baseline weights", "symbol", symbol)
				continue
			}
			return err
		}
	}
	if flagStrategy == "feargreed" {
		fg := internal.NewFearGreedPolicy(nil, indexes)
		fg.Dampening = flagDampening
		policy = fg
	}

	handler := app.BacktestHandler{
		Prices: service.NewPriceService(seriesBySymbol),
		Log:    lg,
	}
	result, err := handler.Run(app.BacktestInput{
		Symbols:            flagSymbols,
		Start:              start,
		End:                end,
		WeeklyInvestment:   flagWeekly,
		InitialCapital:     flagInitial,
		Policy:             policy,
		ModulateInvestment: flagModulate,
		ModulationFactor:   flagModulation,
		Indexes:            indexes,
	})
	if err != nil {
		return err
	}

	metrics, err := calculator.CalculateMetrics(calculator.MetricsInput{
		History:              result.History,
		WeeklyInvestment:     flagWeekly,
		InitialCapital:       flagInitial,
		SumActualInvestments: flagModulate,
	})
	if errors.Is(err, calculator.ErrNoHistory) {
		fmt.Println("no snapshots recorded - metrics unavailable")
		return nil
	} else if err != nil {
		return err
	}

	fmt.Printf("Investment period: %s to %s (%d weeks)\n",
		result.History[0].Date.Format(time.DateOnly),
		result.History[len(result.History)-1].Date.Format(time.DateOnly),
		len(result.History),
	)
	fmt.Printf("Total invested:    $%.2f\n", metrics.TotalInvested)
	fmt.Printf("Final value:       $%.2f\n", metrics.FinalValue)
	fmt.Printf("Total return:      %.2f%%\n", metrics.TotalReturnPct)
	fmt.Printf("Annualized return: %.2f%%\n", metrics.AnnualizedReturnPct)
	fmt.Printf("Sharpe ratio:      %.2f\n", metrics.SharpeRatio)
	fmt.Printf("Max drawdown:      %.2f%%\n", metrics.MaxDrawdownPct)

	exporter := service.ExportService{Dir: flagOutDir}
	for _, save := range []func() (string, error){
		func() (string, error) { return exporter.SaveHistory(result.History) },
		func() (string, error) { return exporter.SaveTransactions(result.Transactions) },
		func() (string, error) {
			return exporter.SaveFinalPortfolio(result.FinalPortfolio, result.History, metrics)
		},
	} {
		path, err := save()
		if err != nil {
			return err
		}
		fmt.Println("wrote", path)
	}

	return nil
}

func runSentiment(cmd *cobra.Command, args []string) error {
	lg := logger.New()

	seriesBySymbol, err := service.LoadSeriesFromDir(flagDataDir, flagSymbols)
	if err != nil {
		return err
	}

	indexes, errs := newCalculator().ComputeAll(seriesBySymbol)
	for symbol, err := range errs {
		lg.Warnw("skipping symbol", "symbol", symbol, "err", err)
	}

	exporter := service.ExportService{Dir: flagOutDir}
	for _, idx := range indexes {
		path, err := exporter.SaveSentiment(idx)
		if err != nil {
			return err
		}
		latest := idx.Points[len(idx.Points)-1]
		fmt.Printf("%s: latest %.2f (%s) -> %s\n", idx.Symbol, latest.Value, feargreed.Label(latest.Value), path)
	}

	return nil
}

func runFetch(cmd *cobra.Command, args []string) error {
	start, end, err := parseRange()
	if err != nil {
		return err
	}

	seriesBySymbol, err := internal.FetchUniverse(flagSymbols, start, end)
	if err != nil {
		return err
	}

	exporter := service.ExportService{Dir: flagDataDir}
	for symbol, series := range seriesBySymbol {
		path, err := exporter.SaveBars(series)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d bars -> %s\n", symbol, series.Len(), path)
	}

	return nil
}
