package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/sni10/new-autotrade-sub001/internal/domain"
	"github.com/sni10/new-autotrade-sub001/internal/exchange"
	"github.com/sni10/new-autotrade-sub001/internal/infra"
	"github.com/sni10/new-autotrade-sub001/internal/monitor"
	"github.com/sni10/new-autotrade-sub001/internal/services"
	"github.com/sni10/new-autotrade-sub001/internal/storage"
	"github.com/sni10/new-autotrade-sub001/internal/strategy"
)

// TradeSignal is what the signal boundary delivers: a pair and a fully
// sized decision, ready for execution.
type TradeSignal struct {
	Pair     domain.CurrencyPair
	Decision strategy.Decision
}

// runner is the lifecycle every background component shares.
type runner interface {
	Start(ctx context.Context)
	Stop()
}

// App wires the whole engine together: config, storage, exchange,
// services and monitors. Built by Initialize, driven by Run.
type App struct {
	Config *infra.Config

	Exchange domain.Exchange
	Pairs    *exchange.PairCache
	Feed     *exchange.TickerFeed
	Prices   exchange.PriceSource

	OrderRepo storage.OrderRepository
	DealRepo  storage.DealRepository
	Meta      storage.MetadataStore

	Orders *services.OrderService
	Deals  *services.DealService
	Exec   *services.OrderExecutionService
	Stats  *services.ExecutionStats

	monitors  []runner
	snapshots *storage.SnapshotManager
	sqlite    *storage.SQLiteStore
	unlock    func()
}

// NewApp creates an empty application shell.
func NewApp() *App {
	return &App{}
}

// Initialize performs the full startup sequence: config, logging,
// workspace, storage, exchange and service wiring.
func (a *App) Initialize(ctx context.Context) error {
	slog.Info("🚀 Bootstrapping autotrade engine...")

	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		return err
	}
	a.Config = cfg

	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)
	infra.PrintBanner(cfg)

	// Workspace layout: _workspace/data/{mode}, _workspace/snapshots/{mode}.
	mode := strings.ToLower(cfg.Trading.Mode)
	workDir := infra.GetWorkspaceDir()
	dataDir := filepath.Join(workDir, "data", mode)
	if err := infra.EnsureDir(dataDir); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	// Single-instance lock: two processes sharing one order database
	// would double-place orders.
	unlock, err := infra.CreateLockFile(workDir)
	if err != nil {
		return err
	}
	a.unlock = unlock

	a.snapshots = storage.NewSnapshotManager(filepath.Join(workDir, "snapshots", mode), 3)
	a.logLastSnapshot()

	if err := a.initStorage(dataDir); err != nil {
		return err
	}

	ex, err := exchange.New(cfg)
	if err != nil {
		return err
	}
	a.Exchange = ex

	a.Pairs = exchange.NewPairCache(ex, time.Hour)
	if a.paper() {
		a.seedPaperVenue()
	}
	if err := a.Pairs.Warm(ctx, cfg.Trading.Symbols); err != nil {
		return fmt.Errorf("warming pair metadata: %w", err)
	}

	if cfg.Exchange.WSURL != "" {
		a.Feed = exchange.NewTickerFeed(cfg.Exchange.WSURL, cfg.Trading.Symbols)
	}
	a.Prices = exchange.NewCachedPriceSource(a.Feed, ex, 10*time.Second)

	a.initServices(ctx, logger)
	a.initMonitors(logger)

	slog.Info("✅ engine initialized",
		slog.String("mode", mode),
		slog.Any("symbols", cfg.Trading.Symbols),
		slog.String("storage", cfg.Storage.Driver))
	return nil
}

func (a *App) initStorage(dataDir string) error {
	switch a.Config.Storage.Driver {
	case "sqlite":
		path := a.Config.Storage.Path
		if path == "" {
			path = filepath.Join(dataDir, "trading.db")
		}
		store, err := storage.NewSQLiteStore(path)
		if err != nil {
			return err
		}
		a.sqlite = store
		a.OrderRepo = store.Orders()
		a.DealRepo = store.Deals()
		a.Meta = store
		slog.Info("✅ SQLite storage ready (WAL-mode)", slog.String("path", path))
	default:
		a.OrderRepo = storage.NewMemoryOrderRepository()
		a.DealRepo = storage.NewMemoryDealRepository()
		a.Meta = storage.NewMemoryMetadata()
		slog.Info("✅ in-memory storage ready")
	}
	return nil
}

func (a *App) initServices(ctx context.Context, logger *slog.Logger) {
	a.Orders = services.NewOrderService(a.Exchange, a.OrderRepo, infra.DefaultRetryConfig(), logger)
	a.Deals = services.NewDealService(a.DealRepo, a.Orders, a.Exchange, logger)
	a.Stats = services.NewExecutionStats(ctx, a.Meta)
	a.Exec = services.NewOrderExecutionService(a.Orders, a.Deals, a.Stats, logger)
}

func (a *App) initMonitors(logger *slog.Logger) {
	m := a.Config.Monitors

	if m.BuyOrder.Enabled {
		cfg := monitor.BuyOrderConfig{
			Interval:    time.Duration(m.BuyOrder.CheckIntervalSec) * time.Second,
			GracePeriod: a.Config.BuyMonitorGracePeriod(),
			Policy: monitor.StalenessPolicy{
				MaxAge:          time.Duration(m.BuyOrder.MaxAgeMin) * time.Minute,
				MaxDeviationPct: a.Config.MaxDeviationPct(),
			},
			PriceFactor:    decimalFromFloat(m.BuyOrder.PriceFactor),
			MaxRecreations: m.BuyOrder.MaxRecreations,
			Cooldown:       time.Duration(m.BuyOrder.CooldownSec) * time.Second,
		}
		a.monitors = append(a.monitors,
			monitor.NewBuyOrderMonitor(cfg, a.Deals, a.Orders, a.Prices, a.Pairs, logger))
	}
	if m.Sync.Enabled {
		a.monitors = append(a.monitors,
			monitor.NewOrderSyncMonitor(time.Duration(m.Sync.IntervalSec)*time.Second,
				a.Orders, a.OrderRepo, a.Deals, logger))
	}
	if m.Timeout.Enabled {
		a.monitors = append(a.monitors,
			monitor.NewOrderTimeoutService(time.Duration(m.Timeout.IntervalSec)*time.Second,
				time.Duration(m.Timeout.MaxLifetimeMin)*time.Minute,
				a.Orders, a.OrderRepo, a.Deals, logger))
	}
}

// seedPaperVenue gives the simulated exchange pair metadata, a starting
// ticker and a funded account so paper mode trades out of the box.
func (a *App) seedPaperVenue() {
	paper := paperVenue(a.Exchange)
	if paper == nil {
		return
	}
	for _, symbol := range a.Config.Trading.Symbols {
		parts := strings.SplitN(symbol, "/", 2)
		if len(parts) != 2 {
			continue
		}
		paper.RegisterPair(domain.CurrencyPair{
			Symbol: symbol, Base: parts[0], Quote: parts[1],
			AmountPrecision: 4, PricePrecision: 2,
			MakerFeePct: dec("0.1"), TakerFeePct: dec("0.1"),
			MinNotional: dec("10"),
		})
		paper.Deposit(parts[1], a.Config.BudgetPerDeal().Mul(dec("10")))
	}
}

// Run starts the feed and monitors, consumes trade signals until the
// context ends, then shuts everything down and snapshots open state.
func (a *App) Run(ctx context.Context, signals <-chan TradeSignal) error {
	if a.Feed != nil {
		a.Feed.Start(ctx)
	}
	for _, m := range a.monitors {
		m.Start(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			a.shutdown()
			return nil
		case sig, ok := <-signals:
			if !ok {
				a.shutdown()
				return nil
			}
			res := a.Exec.ExecuteTradingStrategy(ctx, sig.Pair, sig.Decision)
			if !res.Success {
				slog.Warn("trade signal rejected",
					slog.String("symbol", sig.Pair.Symbol),
					slog.Any("error", res.Err))
			}
		}
	}
}

func (a *App) shutdown() {
	slog.Info("shutting down...")

	for _, m := range a.monitors {
		m.Stop()
	}
	if a.Feed != nil {
		a.Feed.Stop()
	}

	a.saveSnapshot()

	if a.sqlite != nil {
		if err := a.sqlite.Close(); err != nil {
			slog.Error("closing storage", slog.Any("error", err))
		}
	}
	if a.unlock != nil {
		a.unlock()
	}
	slog.Info("👋 shutdown complete")
}

// saveSnapshot writes open orders, open deals and the run counters to
// the snapshot directory for post-mortem inspection.
func (a *App) saveSnapshot() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	orders, err := a.OrderRepo.GetOpenOrders(ctx)
	if err != nil {
		slog.Error("snapshot: listing open orders", slog.Any("error", err))
		return
	}
	deals, err := a.DealRepo.GetOpenDeals(ctx)
	if err != nil {
		slog.Error("snapshot: listing open deals", slog.Any("error", err))
		return
	}

	if err := a.snapshots.Save(&storage.Snapshot{
		OpenOrders: orders,
		OpenDeals:  deals,
		Counters:   a.Stats.Counters(),
	}); err != nil {
		slog.Error("snapshot: save failed", slog.Any("error", err))
	}
}

// logLastSnapshot surfaces the previous run's final state at startup so
// an operator sees at a glance what the engine left open last time.
func (a *App) logLastSnapshot() {
	snap, err := a.snapshots.LoadLatest()
	if err != nil {
		slog.Warn("could not read last snapshot", slog.Any("error", err))
		return
	}
	if snap == nil {
		return
	}
	slog.Info("last run snapshot",
		slog.Time("taken_at", time.Unix(snap.TsUnix, 0).UTC()),
		slog.Int("open_orders", len(snap.OpenOrders)),
		slog.Int("open_deals", len(snap.OpenDeals)))
}

func (a *App) paper() bool {
	return strings.ToLower(a.Config.Trading.Mode) == "paper"
}
