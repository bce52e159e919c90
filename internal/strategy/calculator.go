package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sni10/new-autotrade-sub001/internal/domain"
)

// Input carries everything the sizing algorithm needs for one decision.
// Fees and the profit target are percentages ("0.1" means 0.1%).
type Input struct {
	BuyPrice   decimal.Decimal
	Budget     decimal.Decimal
	MinStep    decimal.Decimal // quantity lot size
	PriceStep  decimal.Decimal // price tick size
	BuyFeePct  decimal.Decimal
	SellFeePct decimal.Decimal
	ProfitPct  decimal.Decimal

	// Optional exchange limits; zero disables the check.
	MinQty      decimal.Decimal
	MinNotional decimal.Decimal
}

// InputFromPair fills the step sizes, fees and limits from pair metadata.
func InputFromPair(pair domain.CurrencyPair, buyPrice, budget, profitPct decimal.Decimal) Input {
	return Input{
		BuyPrice:    buyPrice,
		Budget:      budget,
		MinStep:     pair.AmountStep(),
		PriceStep:   pair.PriceStep(),
		BuyFeePct:   pair.TakerFeePct,
		SellFeePct:  pair.TakerFeePct,
		ProfitPct:   profitPct,
		MinQty:      pair.MinQty,
		MinNotional: pair.MinNotional,
	}
}

// Decision is a fully sized trade: both legs priced and quantified in
// exact multiples of the exchange steps. TotalCost never exceeds the
// budget and NetProfit is the worst-case outcome after both fees.
type Decision struct {
	BuyPrice    decimal.Decimal `json:"buy_price"`
	CoinsToBuy  decimal.Decimal `json:"coins_to_buy"`
	SellPrice   decimal.Decimal `json:"sell_price"`
	CoinsToSell decimal.Decimal `json:"coins_to_sell"`
	TotalCost   decimal.Decimal `json:"total_cost"`
	NetProfit   decimal.Decimal `json:"net_profit"`
}

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)

	// Trades projecting less than 0.5% of budget as profit are noise
	// after slippage and are rejected.
	minProfitOfBudgetPct = decimal.RequireFromString("0.5")
)

// Calculate sizes a paired buy/sell trade inside the budget.
//
// All arithmetic is fixed-point decimal and every rounding goes in the
// direction that protects the budget: quantities floor to the lot size,
// the projected cost rounds up to the tick, the sell price rounds down.
// A result either satisfies every exchange constraint or is an error
// naming the reason; there is no partial output.
func Calculate(in Input) (Decision, error) {
	if err := validateInput(in); err != nil {
		return Decision{}, err
	}

	buyFee := in.BuyFeePct.Div(hundred)
	sellFee := in.SellFeePct.Div(hundred)

	// Effective price per coin once the buy fee is paid.
	buyPriceWithFee := floorToStep(in.BuyPrice.Mul(one.Add(buyFee)), in.PriceStep)
	if !buyPriceWithFee.IsPositive() {
		return Decision{}, fmt.Errorf("%w: buy price %s collapses to zero at tick %s",
			domain.ErrValidation, in.BuyPrice, in.PriceStep)
	}

	// X is the coin amount that survives the sell fee; the lot we must
	// actually buy is grossed back up and floored again.
	rawMaxX := in.Budget.Div(buyPriceWithFee).Mul(one.Sub(sellFee))
	x := floorToStep(rawMaxX, in.MinStep)
	if !x.IsPositive() {
		return Decision{}, fmt.Errorf("insufficient budget: %s buys less than one lot of %s at %s",
			in.Budget, in.MinStep, in.BuyPrice)
	}

	coinsToBuy := floorToStep(x.Div(one.Sub(sellFee)), in.MinStep)

	if in.MinQty.IsPositive() && coinsToBuy.LessThan(in.MinQty) {
		return Decision{}, fmt.Errorf("insufficient budget: quantity %s below exchange minimum %s",
			coinsToBuy, in.MinQty)
	}

	totalCost := ceilToStep(coinsToBuy.Mul(buyPriceWithFee), in.PriceStep)
	if totalCost.GreaterThan(in.Budget) {
		return Decision{}, fmt.Errorf("total cost %s exceeds budget %s", totalCost, in.Budget)
	}
	if in.MinNotional.IsPositive() && totalCost.LessThan(in.MinNotional) {
		return Decision{}, fmt.Errorf("insufficient budget: notional %s below exchange minimum %s",
			totalCost, in.MinNotional)
	}

	sellPrice := floorToStep(in.BuyPrice.Mul(one.Add(in.ProfitPct.Div(hundred))), in.PriceStep)

	netProfit := x.Mul(sellPrice).Sub(totalCost)
	minProfit := in.Budget.Mul(minProfitOfBudgetPct).Div(hundred)
	if netProfit.LessThan(minProfit) {
		return Decision{}, fmt.Errorf("projected profit %s below threshold %s", netProfit, minProfit)
	}

	return Decision{
		BuyPrice:    in.BuyPrice,
		CoinsToBuy:  coinsToBuy,
		SellPrice:   sellPrice,
		CoinsToSell: x,
		TotalCost:   totalCost,
		NetProfit:   netProfit,
	}, nil
}

func validateInput(in Input) error {
	switch {
	case !in.BuyPrice.IsPositive():
		return fmt.Errorf("%w: buy price must be positive", domain.ErrValidation)
	case !in.Budget.IsPositive():
		return fmt.Errorf("%w: budget must be positive", domain.ErrValidation)
	case !in.MinStep.IsPositive():
		return fmt.Errorf("%w: min step must be positive", domain.ErrValidation)
	case !in.PriceStep.IsPositive():
		return fmt.Errorf("%w: price step must be positive", domain.ErrValidation)
	case in.BuyFeePct.IsNegative() || in.SellFeePct.IsNegative():
		return fmt.Errorf("%w: fees must not be negative", domain.ErrValidation)
	case in.SellFeePct.GreaterThanOrEqual(hundred):
		return fmt.Errorf("%w: sell fee must be below 100%%", domain.ErrValidation)
	case !in.ProfitPct.IsPositive():
		return fmt.Errorf("%w: profit target must be positive", domain.ErrValidation)
	}
	return nil
}

func floorToStep(v, step decimal.Decimal) decimal.Decimal {
	return v.Div(step).Floor().Mul(step)
}

func ceilToStep(v, step decimal.Decimal) decimal.Decimal {
	return v.Div(step).Ceil().Mul(step)
}
