package report

import (
	"fmt"
	"strings"

	"trade_assistant/internal/domain"
)

// PositionAnalysis 持仓分析，IncrementalTable 非空时附带逐笔建仓表
func PositionAnalysis(a domain.PositionAnalysis) string {
	var b strings.Builder
	b.WriteString("## Position Analysis\n\n")
	fmt.Fprintf(&b, "**Average Price:** %s\n", Currency(a.AvgPrice))
	fmt.Fprintf(&b, "**Total Quantity:** %s BTC\n", Qty(a.TotalQuantity))
	fmt.Fprintf(&b, "**Position Value:** %s\n", Currency(a.TotalCapital))
	fmt.Fprintf(&b, "**Initial Capital:** %s\n\n", Currency(a.InitialCapital))

	writeScenario(&b, "LONG", a.Long)
	writeScenario(&b, "SHORT", a.Short)

	if len(a.IncrementalTable) > 0 {
		b.WriteString(IncrementalTable(a.IncrementalTable))
	}
	return b.String()
}

func writeScenario(b *strings.Builder, name string, s domain.PnLScenario) {
	fmt.Fprintf(b, "### %s Position Scenarios\n\n", name)
	fmt.Fprintf(b, "**Take Profit:** %s of %s\n", pnlLabel(s.TakeProfitPnL), Currency(abs(s.TakeProfitPnL)))
	fmt.Fprintf(b, "- Remaining Capital: %s\n\n", Currency(s.TakeProfitAfter))
	fmt.Fprintf(b, "**Stop Loss:** %s of %s\n", pnlLabel(s.StopLossPnL), Currency(abs(s.StopLossPnL)))
	fmt.Fprintf(b, "- Remaining Capital: %s\n\n", Currency(s.StopLossAfter))
}

func IncrementalTable(rows []domain.IncrementalRow) string {
	var b strings.Builder
	b.WriteString("### Incremental Position Building\n\n")
	b.WriteString("| # | Price | Position | Cumulative | Avg Price | TP P&L | TP After | SL P&L | SL After |\n")
	b.WriteString("|---|------:|---------:|-----------:|----------:|-------:|---------:|-------:|---------:|\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s | %s | %s | %s |\n",
			r.Step, Currency(r.Price), Currency(r.Amount), Currency(r.CumulativeAmount), Currency(r.AvgPrice),
			Currency(r.TakeProfitPnL), Currency(r.TakeProfitAfter), Currency(r.StopLossPnL), Currency(r.StopLossAfter))
	}
	b.WriteString("\n")
	return b.String()
}

func TargetPrices(t domain.TargetPriceAnalysis) string {
	var b strings.Builder
	b.WriteString("## Target Price Analysis\n\n")
	fmt.Fprintf(&b, "**Position:** %s\n", strings.ToUpper(string(t.Direction)))
	fmt.Fprintf(&b, "**Average Price:** %s\n", Currency(t.AvgPrice))
	fmt.Fprintf(&b, "**Quantity:** %s BTC\n", Qty(t.Quantity))
	fmt.Fprintf(&b, "**Net Position Amount:** %s\n", Currency(t.NetPositionAmount))
	fmt.Fprintf(&b, "**Initial Capital:** %s\n", Currency(t.InitialCapital))
	fmt.Fprintf(&b, "**Target Return:** %s\n\n", Percent(t.ReturnFraction))

	b.WriteString("### Position-Based Returns\n")
	fmt.Fprintf(&b, "(Based on position value: %s)\n\n", Currency(t.NetPositionAmount))
	fmt.Fprintf(&b, "**Take Profit Price:** %s\n", Currency(t.PositionBased.TakeProfitPrice))
	fmt.Fprintf(&b, "**Stop Loss Price:** %s\n\n", Currency(t.PositionBased.StopLossPrice))

	b.WriteString("### Capital-Based Returns\n")
	fmt.Fprintf(&b, "(Based on initial capital: %s)\n\n", Currency(t.InitialCapital))
	fmt.Fprintf(&b, "**Take Profit Price:** %s\n", Currency(t.CapitalBased.TakeProfitPrice))
	fmt.Fprintf(&b, "**Stop Loss Price:** %s\n\n", Currency(t.CapitalBased.StopLossPrice))
	return b.String()
}

func CapitalAdjustment(c domain.CapitalAdjustment) string {
	var b strings.Builder
	b.WriteString("## Capital Adjustment Suggestions\n\n")
	fmt.Fprintf(&b, "**Position:** %s\n", strings.ToUpper(string(c.Direction)))
	fmt.Fprintf(&b, "**Target Price:** %s\n", Currency(c.DesiredPrice))
	fmt.Fprintf(&b, "**Current P&L:** %s\n", Currency(c.CurrentPnL))
	fmt.Fprintf(&b, "**Target P&L:** %s\n", Currency(c.TargetPnL))
	fmt.Fprintf(&b, "**Gap to Close:** %s\n\n", Currency(c.PnLGap))

	b.WriteString("### Option 1: Hedging (Opposite Position)\n\n")
	if h := c.Hedging; h != nil {
		action := "Long"
		if h.Direction == domain.DirectionShort {
			action = "Short"
		}
		fmt.Fprintf(&b, "**Action:** Open %s position\n", action)
		fmt.Fprintf(&b, "**Quantity:** %s BTC\n", signedQty(h.Quantity))
		fmt.Fprintf(&b, "**Amount:** %s\n", Currency(h.Amount))
		fmt.Fprintf(&b, "**Entry Price:** %s\n\n", Currency(h.EntryPrice))
	} else {
		b.WriteString("*Cannot hedge: entry price equals target price*\n\n")
	}

	b.WriteString("### Option 2: Spot Addition (Same Direction)\n\n")
	if s := c.SpotAddition; s != nil {
		action := "Buy"
		if c.Direction == domain.DirectionShort {
			action = "Sell"
		}
		fmt.Fprintf(&b, "**Action:** %s more BTC\n", action)
		fmt.Fprintf(&b, "**Quantity:** %s BTC\n", signedQty(s.Quantity))
		fmt.Fprintf(&b, "**Amount:** %s\n", Currency(s.Amount))
		fmt.Fprintf(&b, "**Entry Price:** %s\n", Currency(s.EntryPrice))
		fmt.Fprintf(&b, "**New Average Price:** %s\n\n", Currency(s.NewAvgPrice))
	} else {
		b.WriteString("*Cannot add spot: entry price equals target price*\n\n")
	}
	return b.String()
}

func Price(symbol string, price float64) string {
	return fmt.Sprintf("## %s Price\n\n**Current Price:** %s\n", symbol, Currency(price))
}

func Stats24h(s domain.MarketStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s 24h Market Data\n\n", s.Symbol)
	fmt.Fprintf(&b, "**Current Price:** %s\n", Currency(s.Price))
	fmt.Fprintf(&b, "**24h High:** %s\n", Currency(s.High24h))
	fmt.Fprintf(&b, "**24h Low:** %s\n", Currency(s.Low24h))
	fmt.Fprintf(&b, "**24h Volume:** %s %s\n", commaFixed(s.Volume24h), baseAsset(s.Symbol))
	fmt.Fprintf(&b, "**24h Change:** %s (%+.2f%%)\n", Currency(s.PriceChange24h), s.PriceChangePercent24h)
	return b.String()
}

// Error 工具失败时的 markdown 兜底
func Error(message string) string {
	return "## Error\n\n" + message + "\n"
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
