package backtest

import (
	"github.com/shopspring/decimal"

	"github.com/bikeshrana/ashare-backtest-go/pkg/types"
)

// applySlippage returns the effective execution price after slippage:
// buy legs pay more (+rate), sell legs receive less (-rate).
func applySlippage(price, rate decimal.Decimal, isBuy bool) decimal.Decimal {
	if isBuy {
		return price.Mul(decimal.NewFromInt(1).Add(rate))
	}
	return price.Mul(decimal.NewFromInt(1).Sub(rate))
}

// commission is max(notional * commission_rate, min_commission).
func commission(notional, rate, min decimal.Decimal) decimal.Decimal {
	c := notional.Mul(rate)
	if c.LessThan(min) {
		return min
	}
	return c
}

// legFees computes every fee that applies to one leg of a trade:
// commission on every leg, stamp tax only on sells, transfer fee only
// for SH-market instruments.
func (c Config) legFees(instrument types.InstrumentCode, notional decimal.Decimal, isSell bool) decimal.Decimal {
	fees := commission(notional, c.CommissionRate, c.MinCommission)
	if isSell {
		fees = fees.Add(notional.Mul(c.StampTaxRate))
	}
	if instrument.IsShanghai() {
		fees = fees.Add(notional.Mul(c.TransferFeeRate))
	}
	return fees
}
