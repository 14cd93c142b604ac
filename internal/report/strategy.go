package report

import (
	"fmt"
	"strings"

	"trade_assistant/internal/domain"
)

// StrategyReport renders a plan: status header, position diagnostic, then one section per strategy.
func StrategyReport(r domain.PlanResult) string {
	cs := r.CurrentStatus
	asset := baseAsset(cs.Symbol)

	var b strings.Builder
	fmt.Fprintf(&b, "## 📊 Strategy Engine Report (%s, %s)\n\n", asset, leverageText(cs.Leverage))
	fmt.Fprintf(&b, "**Status:** %s\n\n", statusText(r.Status))

	b.WriteString("### 1. Position Diagnostic\n")
	fmt.Fprintf(&b, "> **Current Price**: %s (%s)\n", Currency(cs.CurrentPrice), sourceText(cs.PriceSource))
	fmt.Fprintf(&b, "> **Direction**: %s, %s %s @ %s\n", strings.ToUpper(string(cs.Direction)), Qty(cs.Qty), asset, Currency(cs.AvgPrice))
	fmt.Fprintf(&b, "> **Current P&L**: %s (%s of margin)\n", Currency(cs.CurrentPnL), Percent(cs.CurrentROI))
	fmt.Fprintf(&b, "> **Position Notional**: %s\n", Currency(cs.NotionalValue))
	fmt.Fprintf(&b, "> **Margin Used (est.)**: %s (notional / %s)\n", Currency(cs.MarginUsed), leverageText(cs.Leverage))
	if cs.ReportedMargin != nil {
		fmt.Fprintf(&b, "> **Exchange-Reported Margin**: %s\n", Currency(*cs.ReportedMargin))
	}
	if cs.LiquidationPrice != nil {
		fmt.Fprintf(&b, "> **Current Liquidation Price**: %s\n", Currency(*cs.LiquidationPrice))
	}
	fmt.Fprintf(&b, "> **Target**: %s (%s)\n", Currency(cs.TargetProfit), cs.TargetDescription)
	fmt.Fprintf(&b, "> **Gap to Target**: %s\n", Currency(cs.Gap))
	if !cs.AccountKnown {
		b.WriteString("> *No account supplied: risk scoring skipped.*\n")
	}
	b.WriteString("\n")

	b.WriteString("### 2. Recommended Actions (60% margin watermark)\n\n")
	if len(r.Strategies) == 0 {
		b.WriteString("*No feasible strategy closes the gap with the current inputs. Adjust the target or supply a different price.*\n")
		return b.String()
	}
	for _, s := range r.Strategies {
		writeStrategy(&b, s, asset)
	}
	return b.String()
}

func writeStrategy(b *strings.Builder, s domain.Strategy, asset string) {
	fmt.Fprintf(b, "#### %s | %s\n", s.Evaluation.Label, s.Title)
	if s.Evaluation.Status != domain.RiskRecommended {
		fmt.Fprintf(b, "> **⚠️ Risk warning**: %s\n\n", s.Evaluation.Reason)
	} else {
		fmt.Fprintf(b, "> **💡 Risk assessment**: %s\n\n", s.Evaluation.Reason)
	}
	if s.Reason != "" {
		fmt.Fprintf(b, "%s\n\n", s.Reason)
	}

	if len(s.Composition) > 0 {
		b.WriteString("- **Composition**:\n")
		for _, leg := range s.Composition {
			fmt.Fprintf(b, "  - %s: %s %s @ %s (margin %s)\n", leg.Action, Qty(leg.Quantity), asset, Currency(leg.Price), Currency(leg.Margin))
		}
	} else {
		fmt.Fprintf(b, "- **Action**: %s %s %s\n", s.Action, Qty(s.Quantity), asset)
	}

	if s.Type == domain.StrategyLimitClose {
		b.WriteString("- **Margin Required**: none\n")
		fmt.Fprintf(b, "- **Limit Exit Price**: **%s**\n", Currency(s.Price))
		b.WriteString("\n---\n\n")
		return
	}

	fmt.Fprintf(b, "- **Margin Required**: **%s**", Currency(s.MarginRequired))
	if s.LeverageUsed > 1 {
		fmt.Fprintf(b, " (%s leverage)\n", leverageText(s.LeverageUsed))
		fmt.Fprintf(b, "- *Notional Value*: %s\n", Currency(s.NotionalValue))
	} else {
		b.WriteString(" (full spot payment)\n")
	}

	if s.GridOrders != nil {
		fmt.Fprintf(b, "- **Average Fill Price (VWAP)**: %s\n", Currency(s.Price))
	} else {
		fmt.Fprintf(b, "- **Execution Price**: %s\n", Currency(s.Price))
	}
	if s.TargetPrice != nil {
		fmt.Fprintf(b, "- **Take-Profit Target**: **%s**\n", Currency(*s.TargetPrice))
	}
	if s.NewAvgPrice != nil {
		fmt.Fprintf(b, "- **New Average Price**: %s\n", Currency(*s.NewAvgPrice))
	}
	switch {
	case s.NewLiquidationPrice != nil:
		fmt.Fprintf(b, "- **New Liquidation Price**: **%s**\n", Currency(*s.NewLiquidationPrice))
	case s.LiquidationNote != "":
		fmt.Fprintf(b, "- **New Liquidation Price**: %s\n", liquidationNoteText(s.LiquidationNote))
	}
	if s.StopLossPrice != nil {
		fmt.Fprintf(b, "- **Suggested Stop-Loss**: **%s**\n", Currency(*s.StopLossPrice))
	}

	if len(s.GridOrders) > 0 {
		writeGrid(b, s, asset)
	}
	if s.Warning != "" {
		fmt.Fprintf(b, "\n⚠️ **Risk warning**: %s\n", s.Warning)
	}
	b.WriteString("\n---\n\n")
}

func writeGrid(b *strings.Builder, s domain.Strategy, asset string) {
	side := "Buy"
	if s.Direction == domain.DirectionShort {
		side = "Sell"
	}
	b.WriteString("\n**📊 Pyramid Batches**\n\n")
	fmt.Fprintf(b, "| Level | %s Price | Qty (%s) | Margin | Note |\n", side, asset)
	b.WriteString("|------:|------:|------:|------:|------|\n")
	for _, o := range s.GridOrders {
		fmt.Fprintf(b, "| %d | %s | %s | %s | %s |\n", o.Level, Currency(o.Price), Qty(o.Qty), Currency(o.Margin), o.Note)
	}
}

func statusText(s domain.PlanStatus) string {
	switch s {
	case domain.PlanTargetMet:
		return "🎉 TARGET_MET (target already reached)"
	case domain.PlanNearTarget:
		return "🎯 NEAR_TARGET (profit within reach of the target)"
	default:
		return "ACTIVE (gap open, strategies below)"
	}
}

func sourceText(src domain.PriceSource) string {
	if src == domain.PriceFromLive {
		return "live market price"
	}
	return "user supplied"
}

func liquidationNoteText(note string) string {
	switch note {
	case domain.LiquidationNone:
		return "none (spot)"
	case domain.LiquidationLocked:
		return "🔒 locked (hedged)"
	case domain.LiquidationDynamic:
		return "📊 dynamic (between add and hedge)"
	}
	return note
}
