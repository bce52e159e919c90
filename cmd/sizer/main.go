package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/sni10/new-autotrade-sub001/internal/strategy"
)

// sizer runs the trade sizing algorithm standalone, useful for sanity
// checking a configuration against live-looking numbers before the
// engine ever touches the exchange.
func main() {
	price := flag.String("price", "", "current market price (required)")
	budget := flag.String("budget", "100", "budget in quote currency")
	profit := flag.String("profit", "1.0", "desired profit percent")
	buyFee := flag.String("buy-fee", "0.1", "buy fee percent")
	sellFee := flag.String("sell-fee", "0.1", "sell fee percent")
	minStep := flag.String("min-step", "0.0001", "quantity lot size")
	priceStep := flag.String("price-step", "0.01", "price tick size")
	minNotional := flag.String("min-notional", "0", "exchange minimum notional, 0 disables")
	flag.Parse()

	if *price == "" {
		fmt.Fprintln(os.Stderr, "usage: sizer -price <market price> [flags]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	in := strategy.Input{
		BuyPrice:    mustDec(*price, "price"),
		Budget:      mustDec(*budget, "budget"),
		MinStep:     mustDec(*minStep, "min-step"),
		PriceStep:   mustDec(*priceStep, "price-step"),
		BuyFeePct:   mustDec(*buyFee, "buy-fee"),
		SellFeePct:  mustDec(*sellFee, "sell-fee"),
		ProfitPct:   mustDec(*profit, "profit"),
		MinNotional: mustDec(*minNotional, "min-notional"),
	}

	decision, err := strategy.Calculate(in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "no viable trade: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== Trade Sizing ===")
	fmt.Printf("buy  %s @ %s\n", decision.CoinsToBuy, decision.BuyPrice)
	fmt.Printf("sell %s @ %s\n", decision.CoinsToSell, decision.SellPrice)
	fmt.Printf("total cost: %s (budget %s)\n", decision.TotalCost, in.Budget)
	fmt.Printf("net profit: %s\n", decision.NetProfit)
}

func mustDec(s, name string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -%s %q: %v\n", name, s, err)
		os.Exit(2)
	}
	return d
}
