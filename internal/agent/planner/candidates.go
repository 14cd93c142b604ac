package planner

import (
	"fmt"
	"math"

	"trade_assistant/internal/agent/position"
	"trade_assistant/internal/agent/risk"
	"trade_assistant/internal/domain"
)

const martingaleWarning = "One-shot adds pull the average in a single fill and can accelerate liquidation if price keeps moving against you. Prefer the pyramid ladder unless you accept that risk."

// builder 单次请求内的候选策略计算，所有方案都相对同一份现有持仓独立评估
type builder struct {
	cfg     Config
	risk    risk.Agent
	pos     domain.LeveragedPosition
	account *domain.Account

	price        float64
	marginUsed   float64
	targetProfit float64
	gap          float64

	addPrice       float64
	recoveryTarget float64
	adverseTarget  float64
}

func (b *builder) evaluate(t domain.StrategyType, margin float64, liq *float64) domain.RiskEvaluation {
	return b.risk.Evaluate(risk.Input{
		MarginRequired:      margin,
		CurrentMarginUsed:   b.marginUsed,
		Account:             b.account,
		StrategyType:        t,
		CurrentPrice:        b.price,
		NewLiquidationPrice: liq,
	})
}

// liquidation 有账户时按全仓余额推算，否则按杠杆估算
func (b *builder) liquidation(newAvg, newQty float64) float64 {
	if b.account != nil {
		return position.CrossLiquidationPrice(newAvg, newQty, b.account.TotalWalletBalance, b.pos.Direction)
	}
	return position.EstimateLiquidationPrice(newAvg, b.pos.Leverage, b.cfg.LiquidationBuffer, b.pos.Direction)
}

func (b *builder) entryAction() string {
	if b.pos.Direction == domain.DirectionShort {
		return "Sell Short"
	}
	return "Buy Long"
}

func hedgeAction(dir domain.Direction) string {
	if dir == domain.DirectionShort {
		return "Open Short"
	}
	return "Open Long"
}

func (b *builder) leverageAdd() (domain.Strategy, bool) {
	qty, err := position.RequiredQty(b.pos, b.targetProfit, b.addPrice, b.recoveryTarget)
	if err != nil {
		return domain.Strategy{}, false
	}
	notional := qty * b.addPrice
	margin := notional / b.pos.Leverage
	newAvg := position.BlendedAvgPrice(b.pos.Qty, b.pos.AvgPrice, qty, b.addPrice)
	liq := b.liquidation(newAvg, b.pos.Qty+qty)
	stop := position.StopLossPrice(newAvg, b.pos.Direction, b.cfg.StopLossLeverage)
	target := b.recoveryTarget

	return domain.Strategy{
		ID:                  idLeverageAdd,
		Title:               fmt.Sprintf("🔥 %sx Leveraged Add", trimFloat(b.pos.Leverage)),
		Type:                domain.StrategyLeverageAdd,
		Action:              b.entryAction(),
		Direction:           b.pos.Direction,
		Quantity:            qty,
		Price:               b.addPrice,
		MarginRequired:      margin,
		NotionalValue:       notional,
		LeverageUsed:        b.pos.Leverage,
		TargetPrice:         &target,
		NewAvgPrice:         &newAvg,
		NewLiquidationPrice: &liq,
		StopLossPrice:       &stop,
		Reason:              "Adds leveraged size in the position direction to move the average entry; a modest recovery to the target price reaches the goal.",
		Evaluation:          b.evaluate(domain.StrategyLeverageAdd, margin, &liq),
	}, true
}

func (b *builder) spot() (domain.Strategy, bool) {
	qty, err := position.RequiredQty(b.pos, b.targetProfit, b.addPrice, b.recoveryTarget)
	if err != nil {
		return domain.Strategy{}, false
	}
	notional := qty * b.addPrice
	newAvg := position.BlendedAvgPrice(b.pos.Qty, b.pos.AvgPrice, qty, b.addPrice)
	stop := position.StopLossPrice(newAvg, b.pos.Direction, b.cfg.StopLossSpot)
	target := b.recoveryTarget

	s := domain.Strategy{
		ID:              idSpot,
		Title:           "🛡️ Spot Buy",
		Type:            domain.StrategySpotBuy,
		Action:          "Spot Buy",
		Direction:       b.pos.Direction,
		Quantity:        qty,
		Price:           b.addPrice,
		MarginRequired:  notional,
		NotionalValue:   notional,
		LeverageUsed:    1,
		TargetPrice:     &target,
		NewAvgPrice:     &newAvg,
		LiquidationNote: domain.LiquidationNone,
		StopLossPrice:   &stop,
		Reason:          "Pays the full notional with no liquidation risk; suited to a longer holding view.",
		Evaluation:      b.evaluate(domain.StrategySpotBuy, notional, nil),
	}
	if b.pos.Direction == domain.DirectionShort {
		s.Title = "🛡️ Spot Sell (1x)"
		s.Action = "Spot Sell"
	}
	return s, true
}

func (b *builder) hedge() (domain.Strategy, bool) {
	dir := b.pos.Direction.Opposite()
	delta := math.Abs(b.price - b.adverseTarget)
	if delta <= 0 {
		return domain.Strategy{}, false
	}
	qty := b.gap / delta
	if !positive(qty) {
		return domain.Strategy{}, false
	}
	notional := qty * b.price
	margin := notional / b.pos.Leverage
	stop := position.StopLossPrice(b.price, dir, b.cfg.StopLossHedge)
	target := b.adverseTarget

	return domain.Strategy{
		ID:              idHedge,
		Title:           fmt.Sprintf("⚖️ Hedge (%sx)", trimFloat(b.pos.Leverage)),
		Type:            domain.StrategyHedge,
		Action:          hedgeAction(dir),
		Direction:       dir,
		Quantity:        qty,
		Price:           b.price,
		MarginRequired:  margin,
		NotionalValue:   notional,
		LeverageUsed:    b.pos.Leverage,
		TargetPrice:     &target,
		LiquidationNote: domain.LiquidationLocked,
		StopLossPrice:   &stop,
		Reason:          "Opens an opposite position that earns the gap on a further adverse move; exposure is locked rather than increased.",
		Evaluation:      b.evaluate(domain.StrategyHedge, margin, nil),
	}, true
}

// mixed 半仓加仓 + 半仓对冲
func (b *builder) mixed(levAdd, hedge domain.Strategy) domain.Strategy {
	addQty := levAdd.Quantity / 2
	hedgeQty := hedge.Quantity / 2
	addNotional := addQty * levAdd.Price
	hedgeNotional := hedgeQty * hedge.Price
	addMargin := addNotional / b.pos.Leverage
	hedgeMargin := hedgeNotional / b.pos.Leverage
	margin := addMargin + hedgeMargin

	newAvg := position.BlendedAvgPrice(b.pos.Qty, b.pos.AvgPrice, addQty, levAdd.Price)
	stop := position.StopLossPrice(newAvg, b.pos.Direction, b.cfg.StopLossMixed)

	return domain.Strategy{
		ID:              idMixed,
		Title:           fmt.Sprintf("🍹 Mixed (%sx)", trimFloat(b.pos.Leverage)),
		Type:            domain.StrategyMixed,
		Action:          "Mixed",
		Direction:       b.pos.Direction,
		Quantity:        addQty + hedgeQty,
		Price:           b.price,
		MarginRequired:  margin,
		NotionalValue:   addNotional + hedgeNotional,
		LeverageUsed:    b.pos.Leverage,
		NewAvgPrice:     &newAvg,
		LiquidationNote: domain.LiquidationDynamic,
		StopLossPrice:   &stop,
		Composition: []domain.Leg{
			{Type: domain.StrategyLeverageAdd, Action: levAdd.Action, Direction: levAdd.Direction, Quantity: addQty, Price: levAdd.Price, Margin: addMargin},
			{Type: domain.StrategyHedge, Action: hedge.Action, Direction: hedge.Direction, Quantity: hedgeQty, Price: hedge.Price, Margin: hedgeMargin},
		},
		Reason:     "Half of the leveraged add plus half of the hedge, balancing recovery upside against further adverse moves.",
		Evaluation: b.evaluate(domain.StrategyMixed, margin, nil),
	}
}

// gridAdd 在持仓方向上分三档建仓，数量按梯队均价求解
func (b *builder) gridAdd(leverage float64) (position.GridPlan, float64, bool) {
	side := position.EntrySide(b.pos.Direction)
	vwap := position.LadderVWAP(side, b.price)
	qty, err := position.RequiredQty(b.pos, b.targetProfit, vwap, b.recoveryTarget)
	if err != nil {
		return position.GridPlan{}, 0, false
	}
	plan := position.Ladder(side, b.price, qty, leverage)
	return plan, position.BlendedAvgPrice(b.pos.Qty, b.pos.AvgPrice, qty, plan.AvgPrice), true
}

func (b *builder) gridDCA() (domain.Strategy, bool) {
	plan, newAvg, ok := b.gridAdd(b.pos.Leverage)
	if !ok {
		return domain.Strategy{}, false
	}
	liq := b.liquidation(newAvg, b.pos.Qty+plan.TotalQty)
	stop := position.StopLossPrice(newAvg, b.pos.Direction, b.cfg.StopLossLeverage)
	target := b.recoveryTarget

	return domain.Strategy{
		ID:                  idGridDCA,
		Title:               fmt.Sprintf("🔺 Pyramid Leveraged Add (%sx)", trimFloat(b.pos.Leverage)),
		Type:                domain.StrategyGridDCA,
		Action:              b.entryAction(),
		Direction:           b.pos.Direction,
		Quantity:            plan.TotalQty,
		Price:               plan.AvgPrice,
		MarginRequired:      plan.TotalMargin,
		NotionalValue:       plan.TotalNotional,
		LeverageUsed:        b.pos.Leverage,
		TargetPrice:         &target,
		NewAvgPrice:         &newAvg,
		NewLiquidationPrice: &liq,
		StopLossPrice:       &stop,
		GridOrders:          plan.Orders,
		Reason:              "Splits the leveraged add over three rungs (20/30/50) so deeper fills carry more size.",
		Evaluation:          b.evaluate(domain.StrategyGridDCA, plan.TotalMargin, &liq),
	}, true
}

func (b *builder) gridSpot() (domain.Strategy, bool) {
	plan, newAvg, ok := b.gridAdd(1)
	if !ok {
		return domain.Strategy{}, false
	}
	stop := position.StopLossPrice(newAvg, b.pos.Direction, b.cfg.StopLossSpot)
	target := b.recoveryTarget

	s := domain.Strategy{
		ID:              idGridSpot,
		Title:           "🔺 Pyramid Spot Buy",
		Type:            domain.StrategyGridSpot,
		Action:          "Spot Buy",
		Direction:       b.pos.Direction,
		Quantity:        plan.TotalQty,
		Price:           plan.AvgPrice,
		MarginRequired:  plan.TotalMargin,
		NotionalValue:   plan.TotalNotional,
		LeverageUsed:    1,
		TargetPrice:     &target,
		NewAvgPrice:     &newAvg,
		LiquidationNote: domain.LiquidationNone,
		StopLossPrice:   &stop,
		GridOrders:      plan.Orders,
		Reason:          "Batched spot entries with full payment and no liquidation risk.",
		Evaluation:      b.evaluate(domain.StrategyGridSpot, plan.TotalMargin, nil),
	}
	if b.pos.Direction == domain.DirectionShort {
		s.Title = "🔺 Pyramid Spot Sell (1x)"
		s.Action = "Spot Sell"
	}
	return s, true
}

func (b *builder) gridHedge() (domain.Strategy, bool) {
	dir := b.pos.Direction.Opposite()
	side := position.EntrySide(dir)
	vwap := position.LadderVWAP(side, b.price)
	perUnit := (b.adverseTarget - vwap) * dir.Sign()
	if perUnit <= 0 {
		return domain.Strategy{}, false
	}
	qty := b.gap / perUnit
	if !positive(qty) {
		return domain.Strategy{}, false
	}
	plan := position.Ladder(side, b.price, qty, b.pos.Leverage)
	stop := position.StopLossPrice(plan.AvgPrice, dir, b.cfg.StopLossHedge)
	target := b.adverseTarget

	return domain.Strategy{
		ID:              idGridHedge,
		Title:           fmt.Sprintf("🔺 Pyramid Hedge (%sx)", trimFloat(b.pos.Leverage)),
		Type:            domain.StrategyGridHedge,
		Action:          hedgeAction(dir),
		Direction:       dir,
		Quantity:        plan.TotalQty,
		Price:           plan.AvgPrice,
		MarginRequired:  plan.TotalMargin,
		NotionalValue:   plan.TotalNotional,
		LeverageUsed:    b.pos.Leverage,
		TargetPrice:     &target,
		LiquidationNote: domain.LiquidationLocked,
		StopLossPrice:   &stop,
		GridOrders:      plan.Orders,
		Reason:          "Builds the hedge over three rungs so later entries get better prices.",
		Evaluation:      b.evaluate(domain.StrategyGridHedge, plan.TotalMargin, nil),
	}, true
}

// martingale 一次性加仓，默认在现价加仓、以反弹目标离场
func (b *builder) martingale(addPrice, targetPrice *float64) (domain.Strategy, bool) {
	add := b.price
	if addPrice != nil && positive(*addPrice) {
		add = *addPrice
	}
	target := b.recoveryTarget
	if targetPrice != nil && positive(*targetPrice) {
		target = *targetPrice
	}

	qty, err := position.RequiredQty(b.pos, b.targetProfit, add, target)
	if err != nil {
		return domain.Strategy{}, false
	}
	notional := qty * add
	margin := notional / b.pos.Leverage
	newAvg := position.BlendedAvgPrice(b.pos.Qty, b.pos.AvgPrice, qty, add)
	liq := b.liquidation(newAvg, b.pos.Qty+qty)
	stop := position.StopLossPrice(newAvg, b.pos.Direction, b.cfg.StopLossLeverage)

	return domain.Strategy{
		ID:                  idMartingale,
		Title:               "🎲 Martingale One-Shot Add",
		Type:                domain.StrategyMartingale,
		Action:              b.entryAction(),
		Direction:           b.pos.Direction,
		Quantity:            qty,
		Price:               add,
		MarginRequired:      margin,
		NotionalValue:       notional,
		LeverageUsed:        b.pos.Leverage,
		TargetPrice:         &target,
		NewAvgPrice:         &newAvg,
		NewLiquidationPrice: &liq,
		StopLossPrice:       &stop,
		Reason:              "A single fill sized to reach the target at the exit price directly.",
		Warning:             martingaleWarning,
		Evaluation:          b.evaluate(domain.StrategyMartingale, margin, &liq),
	}, true
}
