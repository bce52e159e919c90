package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sni10/new-autotrade-sub001/internal/domain"
	"github.com/sni10/new-autotrade-sub001/internal/exchange"
	"github.com/sni10/new-autotrade-sub001/internal/infra"
	"github.com/sni10/new-autotrade-sub001/internal/services"
	"github.com/sni10/new-autotrade-sub001/internal/storage"
	"github.com/sni10/new-autotrade-sub001/internal/strategy"
)

// papertest drives one full deal cycle through the real service stack
// against the simulated venue: size, execute, fill the BUY, watch the
// SELL go out, fill it, and report the closed deal. A smoke test for
// the whole pipeline with no configuration and no network.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	slog.Info("🚀 Starting paper trading smoke test...")

	ctx := context.Background()

	paper := exchange.NewPaperExchange()
	pair := domain.CurrencyPair{
		Symbol: "BTC/USDT", Base: "BTC", Quote: "USDT",
		AmountPrecision: 4, PricePrecision: 2,
		MakerFeePct: dec("0.1"), TakerFeePct: dec("0.1"),
		MinNotional: dec("10"),
	}
	paper.RegisterPair(pair)
	paper.SetTicker("BTC/USDT", dec("30000"))
	paper.Deposit("USDT", dec("1000"))

	orderRepo := storage.NewMemoryOrderRepository()
	dealRepo := storage.NewMemoryDealRepository()

	orders := services.NewOrderService(paper, orderRepo, infra.DefaultRetryConfig(), logger)
	deals := services.NewDealService(dealRepo, orders, paper, logger)
	stats := services.NewExecutionStats(ctx, storage.NewMemoryMetadata())
	exec := services.NewOrderExecutionService(orders, deals, stats, logger)

	decision, err := strategy.Calculate(strategy.InputFromPair(pair, dec("30000"), dec("100"), dec("1.0")))
	if err != nil {
		slog.Error("sizing failed", slog.Any("error", err))
		os.Exit(1)
	}

	res := exec.ExecuteTradingStrategy(ctx, pair, decision)
	if !res.Success {
		slog.Error("execution failed", slog.Any("error", res.Err))
		os.Exit(1)
	}
	deal := res.Deal

	// Venue fills the BUY; the completion check should push the SELL out.
	if err := paper.FillAll(deal.BuyOrder.ExchangeID); err != nil {
		slog.Error("filling BUY", slog.Any("error", err))
		os.Exit(1)
	}
	if err := deals.CheckDealCompletion(ctx, deal); err != nil {
		slog.Error("completion after BUY fill", slog.Any("error", err))
		os.Exit(1)
	}
	if deal.SellOrder.ExchangeID == "" {
		slog.Error("SELL never reached the venue")
		os.Exit(1)
	}

	// Market reaches the target; the SELL fills and the deal closes.
	if err := paper.FillAll(deal.SellOrder.ExchangeID); err != nil {
		slog.Error("filling SELL", slog.Any("error", err))
		os.Exit(1)
	}
	if err := deals.CheckDealCompletion(ctx, deal); err != nil {
		slog.Error("completion after SELL fill", slog.Any("error", err))
		os.Exit(1)
	}

	if deal.Status != domain.DealClosed {
		slog.Error("deal did not close", slog.String("status", string(deal.Status)))
		os.Exit(1)
	}

	slog.Info("✅ full cycle complete",
		slog.String("deal_id", deal.ID),
		slog.String("profit", deal.Profit.String()),
		slog.String("usdt_balance", paper.Balance("USDT").String()),
		slog.Duration("took", time.Since(deal.CreatedAt)))
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}
