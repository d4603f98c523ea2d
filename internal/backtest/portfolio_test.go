package backtest

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/bikeshrana/ashare-backtest-go/internal/runerr"
	"github.com/bikeshrana/ashare-backtest-go/pkg/types"
)

func testBookConfig() Config {
	cfg := DefaultConfig()
	cfg.LotSize = 100
	cfg.CommissionRate = decimal.NewFromFloat(0.0003)
	cfg.MinCommission = decimal.NewFromInt(5)
	cfg.StampTaxRate = decimal.NewFromFloat(0.001)
	cfg.SlippageRate = decimal.Zero
	return cfg
}

func TestBookBuyToTargetOpensLotRoundedPosition(t *testing.T) {
	portfolio := NewPortfolio(decimal.NewFromInt(100000))
	book := NewBook(portfolio, testBookConfig(), zerolog.Nop())

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	err := book.BuyToTarget("sh600519", decimal.NewFromInt(10), ts, decimal.NewFromFloat(0.5))
	if err != nil {
		t.Fatalf("BuyToTarget: unexpected error: %v", err)
	}

	pos, ok := portfolio.Positions["sh600519"]
	if !ok {
		t.Fatal("expected a position to be opened")
	}
	if pos.Quantity%100 != 0 {
		t.Errorf("Quantity = %d, want a multiple of the 100-share lot size", pos.Quantity)
	}
	if portfolio.Cash.GreaterThan(decimal.NewFromInt(100000)) {
		t.Error("Cash increased after a buy")
	}
}

func TestBookBuyToTargetSkipsWhenAlreadyHeld(t *testing.T) {
	portfolio := NewPortfolio(decimal.NewFromInt(100000))
	book := NewBook(portfolio, testBookConfig(), zerolog.Nop())
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := book.BuyToTarget("sh600519", decimal.NewFromInt(10), ts, decimal.NewFromFloat(0.5)); err != nil {
		t.Fatalf("first BuyToTarget: %v", err)
	}
	cashAfterFirst := portfolio.Cash
	if err := book.BuyToTarget("sh600519", decimal.NewFromInt(10), ts, decimal.NewFromFloat(0.5)); err != nil {
		t.Fatalf("second BuyToTarget: %v", err)
	}
	if !portfolio.Cash.Equal(cashAfterFirst) {
		t.Error("a second BuyToTarget on an already-held instrument should be a no-op")
	}
}

func TestBookBuyToTargetInsufficientCash(t *testing.T) {
	portfolio := NewPortfolio(decimal.NewFromInt(100))
	book := NewBook(portfolio, testBookConfig(), zerolog.Nop())
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	err := book.BuyToTarget("sh600519", decimal.NewFromInt(1000), ts, decimal.NewFromFloat(1.0))
	if err == nil {
		t.Fatal("expected an insufficient-cash error")
	}
	if kind, ok := runerr.KindOf(err); !ok || kind != KindInsufficientCash {
		t.Errorf("KindOf(err) = (%v, %v), want (KindInsufficientCash, true)", kind, ok)
	}
	if _, held := portfolio.Positions["sh600519"]; held {
		t.Error("no position should be opened when cash is insufficient")
	}
}

func TestBookSellAllClosesPositionAndRealizesPnL(t *testing.T) {
	portfolio := NewPortfolio(decimal.NewFromInt(100000))
	book := NewBook(portfolio, testBookConfig(), zerolog.Nop())
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := book.BuyToTarget("sh600519", decimal.NewFromInt(10), ts, decimal.NewFromFloat(0.5)); err != nil {
		t.Fatalf("BuyToTarget: %v", err)
	}

	trade, err := book.SellAll("sh600519", decimal.NewFromInt(12), ts.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("SellAll: unexpected error: %v", err)
	}
	if trade == nil {
		t.Fatal("expected a completed Trade")
	}
	if _, held := portfolio.Positions["sh600519"]; held {
		t.Error("position should be removed after SellAll")
	}
	if !trade.RealizedPnL.IsPositive() {
		t.Errorf("RealizedPnL = %s, want positive (bought at 10, sold at 12)", trade.RealizedPnL)
	}
}

func TestBookSellAllOnEmptyPositionIsNoOp(t *testing.T) {
	portfolio := NewPortfolio(decimal.NewFromInt(100000))
	book := NewBook(portfolio, testBookConfig(), zerolog.Nop())

	trade, err := book.SellAll("sh600519", decimal.NewFromInt(10), time.Now())
	if err != nil {
		t.Fatalf("SellAll on no position: unexpected error: %v", err)
	}
	if trade != nil {
		t.Error("expected a nil Trade when no position is open")
	}
}

func TestBookLiquidateAllClosesEveryPosition(t *testing.T) {
	portfolio := NewPortfolio(decimal.NewFromInt(200000))
	book := NewBook(portfolio, testBookConfig(), zerolog.Nop())
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := book.BuyToTarget("sh600519", decimal.NewFromInt(10), ts, decimal.NewFromFloat(0.3)); err != nil {
		t.Fatalf("BuyToTarget sh600519: %v", err)
	}
	if err := book.BuyToTarget("sz000001", decimal.NewFromInt(20), ts, decimal.NewFromFloat(0.3)); err != nil {
		t.Fatalf("BuyToTarget sz000001: %v", err)
	}

	marks := map[types.InstrumentCode]decimal.Decimal{
		"sh600519": decimal.NewFromInt(11),
		"sz000001": decimal.NewFromInt(21),
	}
	closed, err := book.LiquidateAll(marks, ts.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("LiquidateAll: unexpected error: %v", err)
	}
	if len(closed) != 2 {
		t.Fatalf("LiquidateAll closed %d positions, want 2", len(closed))
	}
	if len(portfolio.Positions) != 0 {
		t.Error("expected no positions to remain after LiquidateAll")
	}
}

func TestBookRecordEquityAppendsPoint(t *testing.T) {
	portfolio := NewPortfolio(decimal.NewFromInt(100000))
	book := NewBook(portfolio, testBookConfig(), zerolog.Nop())

	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	book.RecordEquity(date)
	if len(portfolio.EquityHistory) != 1 {
		t.Fatalf("EquityHistory has %d points, want 1", len(portfolio.EquityHistory))
	}
	if !portfolio.EquityHistory[0].Equity.Equal(decimal.NewFromInt(100000)) {
		t.Errorf("recorded equity = %s, want 100000", portfolio.EquityHistory[0].Equity)
	}
}

func TestBookMarkPriceUpdatesOpenPosition(t *testing.T) {
	portfolio := NewPortfolio(decimal.NewFromInt(100000))
	book := NewBook(portfolio, testBookConfig(), zerolog.Nop())
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := book.BuyToTarget("sh600519", decimal.NewFromInt(10), ts, decimal.NewFromFloat(0.5)); err != nil {
		t.Fatalf("BuyToTarget: %v", err)
	}
	book.MarkPrice("sh600519", decimal.NewFromInt(15))
	if !portfolio.Positions["sh600519"].CurrentPrice.Equal(decimal.NewFromInt(15)) {
		t.Errorf("CurrentPrice = %s, want 15", portfolio.Positions["sh600519"].CurrentPrice)
	}
}
