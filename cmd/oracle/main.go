package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eeguskiza/Poly-Oracle/config"
	"github.com/eeguskiza/Poly-Oracle/internal/adapters/llm"
	"github.com/eeguskiza/Poly-Oracle/internal/adapters/notify"
	"github.com/eeguskiza/Poly-Oracle/internal/adapters/polymarket"
	"github.com/eeguskiza/Poly-Oracle/internal/adapters/storage"
	"github.com/eeguskiza/Poly-Oracle/internal/calibration"
	"github.com/eeguskiza/Poly-Oracle/internal/debate"
	"github.com/eeguskiza/Poly-Oracle/internal/domain"
	"github.com/eeguskiza/Poly-Oracle/internal/execution"
	"github.com/eeguskiza/Poly-Oracle/internal/ledger"
	"github.com/eeguskiza/Poly-Oracle/internal/loop"
	"github.com/eeguskiza/Poly-Oracle/internal/risk"
	"github.com/eeguskiza/Poly-Oracle/internal/sizing"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	mode := flag.String("mode", "paper", "execution mode: paper|live")
	once := flag.Bool("once", false, "run one cycle and exit")
	portfolio := flag.Bool("portfolio", false, "print bankroll and open positions, then exit")
	history := flag.Int("history", 0, "print the last N trades, then exit")
	report := flag.Bool("report", false, "print the calibration report, then exit")
	backtest := flag.String("backtest", "", "replay resolved forecasts: fast|full")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	execMode := domain.Mode(*mode)
	if execMode != domain.ModePaper && execMode != domain.ModeLive {
		slog.Error("invalid mode", "mode", *mode)
		os.Exit(1)
	}

	queryOnly := *portfolio || *history > 0 || *report || *backtest != ""
	if !queryOnly {
		if err := cfg.Validate(execMode == domain.ModeLive); err != nil {
			slog.Error("invalid config", "err", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLiteStore(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	console := notify.NewConsole()

	riskCfg := risk.Config{
		MinEdge:          cfg.Risk.MinEdge,
		MinConfidence:    cfg.Risk.MinConfidence,
		MinLiquidity:     cfg.Risk.MinLiquidity,
		MaxOpenPositions: cfg.Risk.MaxOpenPositions,
		MaxDailyLossPct:  cfg.Risk.MaxDailyLossPct,
	}
	sizingCfg := sizing.Config{
		KellyFraction:  cfg.Sizing.KellyFraction,
		MinBet:         cfg.Sizing.MinBet,
		MaxBet:         cfg.Sizing.MaxBet,
		MaxPositionPct: cfg.Sizing.MaxPositionPct,
	}

	// Comandos de consulta: imprimen y salen sin tocar el loop.
	switch {
	case *portfolio:
		book, err := ledger.Load(ctx, store, cfg.Bankroll.Initial)
		if err != nil {
			exitStorage("failed to load ledger", err)
		}
		console.PrintPortfolio(book.Snapshot())
		return

	case *history > 0:
		trades, err := store.TradeHistory(ctx, *history)
		if err != nil {
			exitStorage("failed to load trade history", err)
		}
		console.PrintTrades(trades)
		return

	case *report:
		total, _, err := store.ForecastCounts(ctx)
		if err != nil {
			exitStorage("failed to count forecasts", err)
		}
		resolved, err := store.ResolvedForecasts(ctx)
		if err != nil {
			exitStorage("failed to load resolved forecasts", err)
		}
		engine := calibration.NewEngine(cfg.Calibration.MinSamples)
		engine.Fit(resolved)
		console.PrintCalibrationReport(engine.Score(total, resolved))
		return

	case *backtest != "":
		btMode := loop.BacktestMode(*backtest)
		if btMode != loop.BacktestFast && btMode != loop.BacktestFull {
			slog.Error("invalid backtest mode", "mode", *backtest)
			os.Exit(1)
		}
		result, err := loop.RunBacktest(ctx, store, loop.BacktestConfig{
			Mode:                  btMode,
			InitialBankroll:       cfg.Bankroll.Initial,
			Risk:                  riskCfg,
			Sizing:                sizingCfg,
			MinCalibrationSamples: cfg.Calibration.MinSamples,
		})
		if err != nil {
			exitStorage("backtest failed", err)
		}
		console.PrintBacktest(result)
		return
	}

	slog.Info("poly-oracle starting",
		"config", *configPath,
		"mode", execMode,
		"interval", cfg.LoopInterval(),
		"once", *once,
		"model", cfg.LLM.Model,
	)

	client := polymarket.NewClient(cfg.API.CLOBBase, cfg.API.GammaBase, 30*time.Second)
	backend := llm.NewBackend(llm.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLMTimeout(),
	})

	book, err := ledger.Load(ctx, store, cfg.Bankroll.Initial)
	if err != nil {
		exitStorage("failed to load ledger", err)
	}

	gateway := execution.NewGateway(book, store, client, execMode)
	controller := loop.NewController(
		loop.Config{
			Interval:               cfg.LoopInterval(),
			MaxMarketsPerCycle:     cfg.Loop.MaxMarketsPerCycle,
			MaxConsecutiveFailures: cfg.Loop.MaxConsecutiveFailures,
			Selection: loop.SelectionConfig{
				MinLiquidity:         cfg.Selection.MinLiquidity,
				MinVolume:            cfg.Selection.MinVolume,
				MinHoursToResolution: cfg.Selection.MinHoursToResolution,
				MaxHoursToResolution: cfg.Selection.MaxHoursToResolution,
				MinPrice:             cfg.Selection.MinPrice,
				MaxPrice:             cfg.Selection.MaxPrice,
			},
		},
		client,
		llm.NewAssembler(),
		debate.NewRunner(backend, cfg.Debate.Rounds, cfg.LLMTimeout()),
		debate.NewAggregator(debate.ArbiterAuthoritative),
		calibration.NewEngine(cfg.Calibration.MinSamples),
		risk.NewEvaluator(riskCfg),
		sizing.NewSizer(sizingCfg),
		gateway,
		book,
		store,
	)

	if *once {
		err = controller.RunOnce(ctx)
	} else {
		err = controller.Run(ctx)
	}
	if err != nil {
		slog.Error("trading loop exited with error", "err", err)
		var cycleErr *loop.CycleError
		switch {
		case errors.Is(err, domain.ErrPersistence):
			os.Exit(3)
		case errors.Is(err, loop.ErrTooManyFailures):
			os.Exit(2)
		case errors.As(err, &cycleErr):
			os.Exit(4)
		default:
			os.Exit(1)
		}
	}

	console.PrintPortfolio(book.Snapshot())
	slog.Info("poly-oracle stopped cleanly")
}

// exitStorage sale con el código reservado a fallos de persistencia.
func exitStorage(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(3)
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
