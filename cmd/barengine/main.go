// cmd/barengine builds information-driven bars (volume, notional or tick
// bars, fixed or adaptive threshold) from a day-partitioned tick store,
// one UTC day at a time, carrying state between days in Redis.
//
// Usage:
//
//	go run ./cmd/barengine --engine=threshold --attr=volume --target=1000 \
//	    --source=trades --destination=volume_bars --from=2024-01-01
//	go run ./cmd/barengine --engine=adaptive --attr=notional --window=7d \
//	    --frequency=1h --ma=ema --destination=adaptive_notional_bars
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"tickbars/config"
	"tickbars/internal/api"
	"tickbars/internal/bars"
	"tickbars/internal/calendar"
	"tickbars/internal/logger"
	"tickbars/internal/metrics"
	"tickbars/internal/model"
	"tickbars/internal/pipeline"
	parquetstore "tickbars/internal/store/parquet"
	redisstore "tickbars/internal/store/redis"
	sqlitestore "tickbars/internal/store/sqlite"
)

type runFlags struct {
	engine      string
	source      string
	destination string
	attr        string
	target      float64
	window      string
	ma          string
	frequency   string
	topN        int
	from, to    string
	verbose     bool
	filter      model.Filter
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	var f runFlags
	flag.StringVar(&f.engine, "engine", "threshold", "Engine: threshold | adaptive")
	flag.StringVar(&f.source, "source", "trades", "Tick source table")
	flag.StringVar(&f.destination, "destination", "", "Destination bar table (required)")
	flag.StringVar(&f.attr, "attr", "volume", "Threshold attribute: volume, buyVolume, notional, buyNotional, ticks, buyTicks")
	flag.Float64Var(&f.target, "target", 0, "Fixed threshold (threshold engine)")
	flag.StringVar(&f.window, "window", "7d", "Adaptive window size, whole days (e.g. 7d, 2w)")
	flag.StringVar(&f.ma, "ma", "sma", "Adaptive moving average: sma | ema")
	flag.StringVar(&f.frequency, "frequency", "1h", "Adaptive target bar frequency")
	flag.IntVar(&f.topN, "topn", 10, "Largest trades kept per bar")
	flag.StringVar(&f.from, "from", "", "First date YYYY-MM-DD (default: first date in the tick source)")
	flag.StringVar(&f.to, "to", "", "Last date YYYY-MM-DD (default: yesterday UTC)")
	flag.BoolVar(&f.verbose, "verbose", false, "Log every date, including skipped ones")

	flag.StringVar(&f.filter.Symbol, "symbol", "", "Only ticks of this symbol")
	flag.BoolVar(&f.filter.MultipleSymbols, "multiple-symbols", false, "Order ticks by symbol before time")
	floatFilter("min-slippage", &f.filter.MinSlippage)
	floatFilter("max-slippage", &f.filter.MaxSlippage)
	floatFilter("min-volume", &f.filter.MinVolume)
	floatFilter("max-volume", &f.filter.MaxVolume)
	floatFilter("min-notional", &f.filter.MinNotional)
	floatFilter("max-notional", &f.filter.MaxNotional)
	intFilter("min-exponent", &f.filter.MinExponent)
	intFilter("max-exponent", &f.filter.MaxExponent)
	intFilter("tick-rule", &f.filter.TickRule)
	flag.Parse()

	if err := run(f); err != nil {
		log.Printf("[barengine] %v", err)
		os.Exit(1)
	}
}

func run(f runFlags) error {
	if f.destination == "" {
		return errors.New("--destination is required")
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level := slog.LevelInfo
	if f.verbose {
		level = slog.LevelDebug
	}
	logger.Init("barengine", logger.Options{Format: cfg.LogFormat, Level: level})

	// Engines are built first: configuration errors abort before any I/O.
	var thresholdEng *bars.ThresholdEngine
	var adaptiveEng *bars.AdaptiveEngine
	switch f.engine {
	case "threshold":
		thresholdEng, err = bars.NewThresholdEngine(f.attr, f.target, f.topN)
	case "adaptive", "adaptive_threshold":
		adaptiveEng, err = bars.NewAdaptiveEngine(bars.AdaptiveConfig{
			Attr:            f.attr,
			WindowSize:      f.window,
			TargetFrequency: f.frequency,
			MovingAverage:   f.ma,
			TopN:            f.topN,
		})
	default:
		err = fmt.Errorf("%w: unknown engine %q", bars.ErrConfig, f.engine)
	}
	if err != nil {
		return err
	}

	pcfg := pipeline.Config{
		Destination: f.destination,
		Filter:      f.filter,
		Verbose:     f.verbose,
	}
	if f.from != "" {
		if pcfg.From, err = calendar.ParseDate(f.from); err != nil {
			return err
		}
	}
	if f.to != "" {
		if pcfg.To, err = calendar.ParseDate(f.to); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithRunID(ctx, logger.NewRunID(f.destination, time.Now()))
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("[barengine] shutting down after the current day...")
		cancel()
	}()

	// ---- Stores ----
	ticks, ticksDB, err := openTickSource(cfg, f.source)
	if err != nil {
		return err
	}
	if ticksDB != nil {
		defer ticksDB.Close()
	}

	sink, sinkDB, err := openBarSink(cfg, f.destination)
	if err != nil {
		return err
	}
	defer sink.Close()

	cache, err := redisstore.NewCacheStore(redisstore.CacheConfig{
		Addr:       cfg.RedisAddr,
		Password:   cfg.RedisPassword,
		DB:         cfg.RedisDB,
		Collection: pipeline.CollectionName(f.destination),
	})
	if err != nil {
		return err
	}
	defer cache.Close()

	if id, ok, err := cache.Latest(ctx); err != nil {
		log.Printf("[barengine] WARNING: cache index lookup failed: %v", err)
	} else if ok {
		log.Printf("[barengine] %s: last processed date %s", pipeline.LogPrefix(f.destination), id)
	}

	// ---- Metrics ----
	prom := metrics.NewMetrics(prometheus.DefaultRegisterer)
	health := metrics.NewHealth()
	cache.Breaker().OnStateChange = func(_, to redisstore.State) {
		prom.SetCircuitState(int(to))
	}
	if cfg.MetricsAddr != "" {
		db := sinkDB
		if db == nil {
			db = ticksDB
		}
		health.Register("redis", metrics.RedisCheck(cache.Client()))
		if db != nil {
			health.Register("sqlite", metrics.SQLCheck(db))
		}
		health.Watch(ctx, 15*time.Second)
		srv := metrics.NewServer(cfg.MetricsAddr, health, prometheus.DefaultGatherer)
		if reader, ok := sink.(api.BarReader); ok {
			api.Register(srv.Mux(), reader, cache)
		}
		srv.Start()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			srv.Stop(shutdownCtx)
		}()
	}

	var sum pipeline.Summary
	if thresholdEng != nil {
		sum, err = runEngine[bars.ThresholdCache](ctx, thresholdEng, ticks, cache, sink, pcfg, prom, health)
	} else {
		sum, err = runEngine[bars.AdaptiveCache](ctx, adaptiveEng, ticks, cache, sink, pcfg, prom, health)
	}

	logger.FromContext(ctx).Info("run finished",
		slog.String("destination", f.destination),
		slog.Int("processed", sum.Processed),
		slog.Int("skipped", sum.Skipped),
		slog.Int("bars", sum.Bars),
	)
	if err != nil && !sum.LastGood.IsZero() {
		log.Printf("[barengine] last good date: %s", calendar.DocumentID(sum.LastGood))
	}
	return err
}

func runEngine[C any](ctx context.Context, eng pipeline.Engine[C], ticks model.TickSource,
	cache model.CacheStore, sink model.BarSink, cfg pipeline.Config,
	prom *metrics.Metrics, health *metrics.Health) (pipeline.Summary, error) {
	name := eng.Name()
	hooks := pipeline.Hooks{
		OnDay: func(d pipeline.DayResult) {
			prom.ObserveDay(name, d.Date, d.Ticks, d.Bars, d.Duration)
			if d.HasTarget {
				prom.Target.WithLabelValues(name).Set(d.Target)
			}
			if d.HasWindow {
				prom.WindowLen.WithLabelValues(name).Set(float64(d.WindowLen))
			}
			health.SetLastDate(calendar.DocumentID(d.Date))
			logger.FromContext(ctx).Debug("day committed",
				slog.String("engine", name),
				slog.String("date", calendar.DocumentID(d.Date)),
				slog.Int("ticks", d.Ticks),
				slog.Int("bars", d.Bars),
				slog.Float64("target", d.Target),
				slog.Int("window", d.WindowLen),
			)
		},
		OnSkip: func(time.Time) { prom.DaysSkipped.WithLabelValues(name).Inc() },
		OnFail: func(time.Time, error) { prom.DaysFailed.WithLabelValues(name).Inc() },
	}

	r, err := pipeline.NewRunner(eng, ticks, cache, sink, cfg, hooks)
	if err != nil {
		return pipeline.Summary{}, err
	}
	return r.Run(ctx)
}

// openTickSource returns the configured tick source. The *sql.DB is
// non-nil for SQLite and owned by the caller.
func openTickSource(cfg *config.Config, table string) (model.TickSource, *sql.DB, error) {
	switch cfg.TickSource {
	case config.BackendSQLite:
		s, err := sqlitestore.NewTickStore(cfg.SQLitePath, table)
		if err != nil {
			return nil, nil, err
		}
		return s, s.DB(), nil
	default:
		return parquetstore.NewTickSource(cfg.ParquetDir, table), nil, nil
	}
}

// openBarSink returns the configured bar sink and, for SQLite, its handle
// for health checks.
func openBarSink(cfg *config.Config, table string) (model.BarSink, *sql.DB, error) {
	switch cfg.BarSink {
	case config.BackendParquet:
		w, err := parquetstore.NewBarWriter(cfg.ParquetDir, table)
		return w, nil, err
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, nil, err
		}
		w, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath, Table: table})
		if err != nil {
			return nil, nil, err
		}
		return w, w.DB(), nil
	}
}

// floatFilter registers an optional float tick filter.
func floatFilter(name string, dst **float64) {
	flag.Func(name, "Tick filter: "+name, func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*dst = &v
		return nil
	})
}

// intFilter registers an optional integer tick filter.
func intFilter(name string, dst **int) {
	flag.Func(name, "Tick filter: "+name, func(s string) error {
		v, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*dst = &v
		return nil
	})
}
