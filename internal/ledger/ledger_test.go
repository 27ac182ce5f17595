package ledger

import (
	"math"
	"testing"

	"tradesim-lab/internal/domain"
)

func makeTrade(instrument string, side domain.Side, entryMs int64, entry, exit float64, reason string) *domain.Trade {
	return &domain.Trade{
		Instrument:  instrument,
		Side:        side,
		EntryTimeMs: entryMs,
		EntryPrice:  entry,
		ExitTimeMs:  entryMs + 60000,
		ExitPrice:   exit,
		ExitReason:  reason,
		BarsHeld:    1,
		RealizedPnL: (exit - entry) * side.Multiplier(),
		Quantity:    1.0,
	}
}

func TestApplyTrade_FillsAndPositionLifecycle(t *testing.T) {
	l := New("run-1")
	trade := makeTrade("BTCUSD", domain.SideLong, 1000000, 100.0, 102.0, domain.ExitReasonTakeProfit)

	l.ApplyTrade(trade)

	fills := l.Fills()
	if len(fills) != 2 {
		t.Fatalf("fills = %d, want 2 (entry + exit)", len(fills))
	}
	if fills[0].Quantity != 1.0 || fills[1].Quantity != -1.0 {
		t.Errorf("fill quantities = %g, %g; want 1, -1", fills[0].Quantity, fills[1].Quantity)
	}
	if fills[0].Price != 100.0 || fills[1].Price != 102.0 {
		t.Errorf("fill prices = %g, %g; want 100, 102", fills[0].Price, fills[1].Price)
	}
	if fills[0].OrderID == fills[1].OrderID {
		t.Error("entry and exit fills share an order ID")
	}

	// A resolved trade opens and closes its position within one apply.
	if open := l.OpenPositions(); len(open) != 0 {
		t.Errorf("open positions = %d, want 0", len(open))
	}
}

func TestApplyTrade_ShortFillsSigned(t *testing.T) {
	l := New("run-1")
	trade := makeTrade("ETHUSD", domain.SideShort, 1000000, 100.0, 95.0, domain.ExitReasonTakeProfit)

	l.ApplyTrade(trade)

	fills := l.Fills()
	if fills[0].Quantity != -1.0 || fills[1].Quantity != 1.0 {
		t.Errorf("short fill quantities = %g, %g; want -1, 1", fills[0].Quantity, fills[1].Quantity)
	}
	if got := l.Trades()[0].RealizedPnL; got != 5.0 {
		t.Errorf("short RealizedPnL = %g, want 5", got)
	}
}

func TestApplyTrade_NoDataSeparateBucket(t *testing.T) {
	l := New("run-1")
	l.ApplyTrade(makeTrade("BTCUSD", domain.SideLong, 1000000, 100.0, 102.0, domain.ExitReasonTakeProfit))

	noData := &domain.Trade{
		Instrument:  "GAPPY",
		Side:        domain.SideLong,
		EntryTimeMs: 2000000,
		EntryPrice:  50.0,
		ExitTimeMs:  2000000,
		ExitPrice:   50.0,
		ExitReason:  domain.ExitReasonNoData,
		Quantity:    1.0,
	}
	l.ApplyTrade(noData)

	kpis := l.KPIs()
	if kpis.TotalTrades != 1 {
		t.Errorf("TotalTrades = %d, want 1 (NO_DATA excluded)", kpis.TotalTrades)
	}
	if kpis.NoDataTrades != 1 {
		t.Errorf("NoDataTrades = %d, want 1", kpis.NoDataTrades)
	}
	if kpis.WinRate != 1.0 {
		t.Errorf("WinRate = %g, want 1.0 (NO_DATA never counts as a loss)", kpis.WinRate)
	}
	if len(l.Fills()) != 2 {
		t.Errorf("fills = %d, want 2 (NO_DATA produces none)", len(l.Fills()))
	}
}

func TestKPIs_ProfitFactorSentinels(t *testing.T) {
	// No losers and at least one winner: +Inf, never a division error.
	l := New("run-1")
	l.ApplyTrade(makeTrade("A", domain.SideLong, 1000000, 100.0, 103.0, domain.ExitReasonTakeProfit))
	l.ApplyTrade(makeTrade("B", domain.SideLong, 2000000, 100.0, 101.0, domain.ExitReasonTakeProfit))

	kpis := l.KPIs()
	if !math.IsInf(kpis.ProfitFactor, 1) {
		t.Errorf("ProfitFactor = %g, want +Inf", kpis.ProfitFactor)
	}

	// No trades at all: 0.
	empty := New("run-2")
	if pf := empty.KPIs().ProfitFactor; pf != 0 {
		t.Errorf("empty ProfitFactor = %g, want 0", pf)
	}

	// Only losers: 0.
	losers := New("run-3")
	losers.ApplyTrade(makeTrade("C", domain.SideLong, 1000000, 100.0, 98.0, domain.ExitReasonStopLoss))
	if pf := losers.KPIs().ProfitFactor; pf != 0 {
		t.Errorf("all-loss ProfitFactor = %g, want 0", pf)
	}
}

func TestKPIs_SharpeUndefinedUnderTwoTrades(t *testing.T) {
	l := New("run-1")
	l.ApplyTrade(makeTrade("A", domain.SideLong, 1000000, 100.0, 102.0, domain.ExitReasonTakeProfit))

	if sharpe := l.KPIs().Sharpe; !math.IsNaN(sharpe) {
		t.Errorf("Sharpe = %g with one trade, want NaN", sharpe)
	}
}

func TestKPIs_MaxDrawdown(t *testing.T) {
	l := New("run-1")
	// PnLs in exit order: +3, -2, -2, +1 -> equity 3, 1, -1, 0 -> peak 3, trough -1.
	l.ApplyTrade(makeTrade("A", domain.SideLong, 1000000, 100.0, 103.0, domain.ExitReasonTakeProfit))
	l.ApplyTrade(makeTrade("B", domain.SideLong, 2000000, 100.0, 98.0, domain.ExitReasonStopLoss))
	l.ApplyTrade(makeTrade("C", domain.SideLong, 3000000, 100.0, 98.0, domain.ExitReasonStopLoss))
	l.ApplyTrade(makeTrade("D", domain.SideLong, 4000000, 100.0, 101.0, domain.ExitReasonTimeStop))

	kpis := l.KPIs()
	if kpis.MaxDrawdown != 4.0 {
		t.Errorf("MaxDrawdown = %g, want 4", kpis.MaxDrawdown)
	}
	if kpis.NetPnL != 0.0 {
		t.Errorf("NetPnL = %g, want 0", kpis.NetPnL)
	}
}

func TestEquityCurve_OrderedByExit(t *testing.T) {
	l := New("run-1")
	// Apply out of exit order; the curve must still be chronological.
	l.ApplyTrade(makeTrade("B", domain.SideLong, 3000000, 100.0, 101.0, domain.ExitReasonTimeStop))
	l.ApplyTrade(makeTrade("A", domain.SideLong, 1000000, 100.0, 103.0, domain.ExitReasonTakeProfit))

	curve := l.EquityCurve()
	if len(curve) != 2 {
		t.Fatalf("curve length = %d, want 2", len(curve))
	}
	if curve[0].TimestampMs >= curve[1].TimestampMs {
		t.Errorf("curve not chronological: %d then %d", curve[0].TimestampMs, curve[1].TimestampMs)
	}
	if curve[0].NetPnL != 3.0 || curve[1].NetPnL != 4.0 {
		t.Errorf("curve = %+v, want cumulative 3 then 4", curve)
	}
}

func TestMerge_MatchesSequentialApplication(t *testing.T) {
	direct := New("run-1")
	a := New("run-1")
	b := New("run-1")

	t1 := makeTrade("A", domain.SideLong, 1000000, 100.0, 103.0, domain.ExitReasonTakeProfit)
	t2 := makeTrade("B", domain.SideShort, 2000000, 100.0, 97.0, domain.ExitReasonTakeProfit)
	t3 := makeTrade("C", domain.SideLong, 3000000, 100.0, 99.0, domain.ExitReasonStopLoss)

	direct.ApplyTrade(t1)
	direct.ApplyTrade(t2)
	direct.ApplyTrade(t3)

	a.ApplyTrade(t1)
	b.ApplyTrade(t2)
	b.ApplyTrade(t3)
	a.Merge(b)

	got := a.KPIs()
	want := direct.KPIs()
	if got.TotalTrades != want.TotalTrades || got.NetPnL != want.NetPnL ||
		got.WinRate != want.WinRate || got.MaxDrawdown != want.MaxDrawdown {
		t.Errorf("merged KPIs %+v != sequential KPIs %+v", got, want)
	}
}

func TestUnrealizedPnL_ExternalMarksOnly(t *testing.T) {
	l := New("run-1")
	if pnl := l.UnrealizedPnL(map[string]float64{"BTCUSD": 50000}); pnl != 0 {
		t.Errorf("UnrealizedPnL = %g with no positions, want 0", pnl)
	}
}
