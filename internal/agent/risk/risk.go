package risk

import (
	"fmt"
	"math"
	"strings"

	"trade_assistant/internal/domain"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

const (
	// MaxUtilization 保证金占用水位线，严格大于才判定高风险
	MaxUtilization = 0.60
	// LiquidationProximity 新强平价距现价小于该比例视为爆仓预警
	LiquidationProximity = 0.03
)

type Input struct {
	MarginRequired      float64
	CurrentMarginUsed   float64
	Account             *domain.Account
	StrategyType        domain.StrategyType
	CurrentPrice        float64
	NewLiquidationPrice *float64
}

type Agent interface {
	Evaluate(input Input) domain.RiskEvaluation
}

// RuleAgent applies the suitability rules in order; the first match wins.
type RuleAgent struct{}

func New() *RuleAgent {
	return &RuleAgent{}
}

func (a *RuleAgent) Evaluate(input Input) domain.RiskEvaluation {
	// 没有账户信息：不阻断，只标记未检测
	if input.Account == nil {
		return domain.RiskEvaluation{
			Status: domain.RiskRecommended,
			Label:  "ℹ️ Funds not checked",
			Reason: "No account information supplied; capital sufficiency was not evaluated.",
		}
	}
	acct := input.Account

	if input.MarginRequired > acct.AvailableBalance {
		return domain.RiskEvaluation{
			Status: domain.RiskInsufficientFunds,
			Label:  "🚫 Insufficient funds",
			Reason: fmt.Sprintf("Requires $%s of margin but only $%s is available.",
				money(input.MarginRequired), money(acct.AvailableBalance)),
		}
	}

	util := Utilization(input.CurrentMarginUsed, input.MarginRequired, acct.TotalWalletBalance)
	if util > MaxUtilization {
		return domain.RiskEvaluation{
			Status:      domain.RiskHigh,
			Label:       "⚠️ Above safety watermark",
			Reason:      fmt.Sprintf("Total margin usage after execution would be %s, exceeding the 60%% safety watermark.", percent(util)),
			Utilization: finitePtr(util),
		}
	}

	if input.StrategyType.LeverageFamily() && input.NewLiquidationPrice != nil && input.CurrentPrice > 0 {
		dist := math.Abs(input.CurrentPrice-*input.NewLiquidationPrice) / input.CurrentPrice
		if dist < LiquidationProximity {
			return domain.RiskEvaluation{
				Status:      domain.RiskHigh,
				Label:       "☠️ Liquidation imminent",
				Reason:      fmt.Sprintf("The new liquidation price would sit only %.1f%% from the current price.", dist*100),
				Utilization: finitePtr(util),
			}
		}
	}

	return domain.RiskEvaluation{
		Status:      domain.RiskRecommended,
		Label:       "✅ Recommended",
		Reason:      fmt.Sprintf("Total margin usage would be %s, within the 60%% safety line.", percent(util)),
		Utilization: finitePtr(util),
	}
}

// Utilization returns (used+required)/wallet. A non-positive wallet with any usage is unbounded.
func Utilization(used, required, wallet float64) float64 {
	total := used + required
	if wallet <= 0 {
		if total > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return total / wallet
}

// money 四舍五入到分，保留两位小数：19900.999 -> "19,901.00"
func money(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	d := decimal.NewFromFloat(v).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	fixed := d.StringFixed(2)
	return sign + humanize.Comma(d.IntPart()) + fixed[strings.IndexByte(fixed, '.'):]
}

func percent(util float64) string {
	if math.IsInf(util, 1) {
		return "an unbounded share (wallet balance is zero)"
	}
	return fmt.Sprintf("%.1f%%", util*100)
}

func finitePtr(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}
