package backtest

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/bikeshrana/ashare-backtest-go/pkg/types"
)

func mustInstrument(t *testing.T, raw string) types.InstrumentCode {
	t.Helper()
	code, err := types.NewInstrumentCode(raw)
	if err != nil {
		t.Fatalf("NewInstrumentCode(%q): %v", raw, err)
	}
	return code
}

func TestApplySlippage(t *testing.T) {
	price := decimal.NewFromFloat(100)
	rate := decimal.NewFromFloat(0.01)

	buyPrice := applySlippage(price, rate, true)
	if !buyPrice.Equal(decimal.NewFromFloat(101)) {
		t.Errorf("applySlippage(buy) = %s, want 101", buyPrice)
	}

	sellPrice := applySlippage(price, rate, false)
	if !sellPrice.Equal(decimal.NewFromFloat(99)) {
		t.Errorf("applySlippage(sell) = %s, want 99", sellPrice)
	}
}

func TestCommissionFloor(t *testing.T) {
	rate := decimal.NewFromFloat(0.0003)
	min := decimal.NewFromInt(5)

	small := commission(decimal.NewFromInt(1000), rate, min)
	if !small.Equal(min) {
		t.Errorf("commission() on a small notional = %s, want the minimum %s", small, min)
	}

	large := commission(decimal.NewFromInt(1000000), rate, min)
	want := decimal.NewFromInt(1000000).Mul(rate)
	if !large.Equal(want) {
		t.Errorf("commission() on a large notional = %s, want %s", large, want)
	}
}

func TestLegFeesShanghaiSell(t *testing.T) {
	cfg := DefaultConfig()
	inst := mustInstrument(t, "sh600519")
	notional := decimal.NewFromInt(100000)

	fees := cfg.legFees(inst, notional, true)

	comm := commission(notional, cfg.CommissionRate, cfg.MinCommission)
	stampTax := notional.Mul(cfg.StampTaxRate)
	transferFee := notional.Mul(cfg.TransferFeeRate)
	want := comm.Add(stampTax).Add(transferFee)

	if !fees.Equal(want) {
		t.Errorf("legFees(sh, sell) = %s, want %s", fees, want)
	}
}

func TestLegFeesShenzhenBuy(t *testing.T) {
	cfg := DefaultConfig()
	inst := mustInstrument(t, "sz000001")
	notional := decimal.NewFromInt(100000)

	fees := cfg.legFees(inst, notional, false)

	want := commission(notional, cfg.CommissionRate, cfg.MinCommission)
	if !fees.Equal(want) {
		t.Errorf("legFees(sz, buy) = %s, want commission only (%s)", fees, want)
	}
}
