// Package position 分批建仓梯队与加仓数量求解
package position

import (
	"math"

	"trade_assistant/internal/domain"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// EntrySide 在 dir 方向开仓对应的买卖方向
func EntrySide(dir domain.Direction) Side {
	if dir == domain.DirectionShort {
		return SideSell
	}
	return SideBuy
}

// 金字塔：20% / 30% / 50%，价格偏移 0 / 1.5% / 4%
var (
	ladderWeights = []decimal.Decimal{
		decimal.RequireFromString("0.2"),
		decimal.RequireFromString("0.3"),
		decimal.RequireFromString("0.5"),
	}
	ladderOffsets = []float64{0, 0.015, 0.04}

	buyNotes  = []string{"🔹 Base (20%)", "🔸 Support fill (30%)", "🔶 Deep dip (50%)"}
	sellNotes = []string{"🔹 Head (20%)", "🔸 Resistance add (30%)", "🔶 Top-divergence heavy (50%)"}
)

// GridPlan is a three-rung batched entry.
type GridPlan struct {
	Side          Side
	Orders        []domain.GridOrder
	AvgPrice      float64
	TotalQty      float64
	TotalMargin   float64
	TotalNotional float64
}

// Ladder splits totalQty over three rungs. Buy ladders step down from basePrice, sell ladders step up.
// The last rung takes the decimal remainder so the rung quantities sum to totalQty.
func Ladder(side Side, basePrice, totalQty, leverage float64) GridPlan {
	if leverage <= 0 {
		leverage = 1
	}
	notes := buyNotes
	if side == SideSell {
		notes = sellNotes
	}

	total := decimal.NewFromFloat(totalQty)
	remaining := total

	plan := GridPlan{Side: side, TotalQty: totalQty, Orders: make([]domain.GridOrder, 0, len(ladderWeights))}
	for i, w := range ladderWeights {
		price := LadderPrice(side, basePrice, i)

		var stepQty decimal.Decimal
		if i == len(ladderWeights)-1 {
			stepQty = remaining
		} else {
			stepQty = total.Mul(w)
			remaining = remaining.Sub(stepQty)
		}
		qty := stepQty.InexactFloat64()
		notional := qty * price
		margin := notional / leverage

		plan.Orders = append(plan.Orders, domain.GridOrder{
			Level:  i + 1,
			Price:  price,
			Qty:    qty,
			Weight: w.InexactFloat64(),
			Margin: margin,
			Note:   notes[i],
		})
		plan.TotalNotional += notional
		plan.TotalMargin += margin
	}
	if totalQty > 0 {
		plan.AvgPrice = plan.TotalNotional / totalQty
	}
	return plan
}

// LadderPrice 第 level(0 起) 档的挂单价格
func LadderPrice(side Side, basePrice float64, level int) float64 {
	if side == SideSell {
		return basePrice * (1 + ladderOffsets[level])
	}
	return basePrice * (1 - ladderOffsets[level])
}

// LadderVWAP 梯队成交均价，与总数量无关
func LadderVWAP(side Side, basePrice float64) float64 {
	var vwap float64
	for i, w := range ladderWeights {
		vwap += w.InexactFloat64() * LadderPrice(side, basePrice, i)
	}
	return vwap
}

// RequiredQty solves PnL(existing, target) + PnL(addQty@addPrice, target) == targetProfit for addQty.
// It returns domain.ErrInfeasible when the add price is not favourable against the target or the
// result is not a positive finite number.
func RequiredQty(pos domain.LeveragedPosition, targetProfit, addPrice, targetPrice float64) (float64, error) {
	sign := pos.Direction.Sign()
	profitFromOld := (targetPrice - pos.AvgPrice) * pos.Qty * sign
	perUnit := (targetPrice - addPrice) * sign
	if perUnit <= 0 {
		return 0, errors.Wrapf(domain.ErrInfeasible, "add at %g earns nothing at target %g", addPrice, targetPrice)
	}
	qty := (targetProfit - profitFromOld) / perUnit
	if qty <= 0 || math.IsNaN(qty) || math.IsInf(qty, 0) {
		return 0, errors.Wrapf(domain.ErrInfeasible, "no positive add quantity reaches %g at target %g", targetProfit, targetPrice)
	}
	return qty, nil
}

// BlendedAvgPrice 加仓后的新均价
func BlendedAvgPrice(qty, avgPrice, addQty, addPrice float64) float64 {
	total := qty + addQty
	if total == 0 {
		return 0
	}
	return (qty*avgPrice + addQty*addPrice) / total
}

// CrossLiquidationPrice 全仓模式：亏损等于钱包余额时强平，avg ∓ wallet/qty，多头下限为 0
func CrossLiquidationPrice(avgPrice, qty, walletBalance float64, dir domain.Direction) float64 {
	if qty <= 0 {
		return 0
	}
	distance := walletBalance / qty
	if dir == domain.DirectionShort {
		return avgPrice + distance
	}
	return math.Max(avgPrice-distance, 0)
}

// EstimateLiquidationPrice 无账户信息时按杠杆估算：强平距离 = 1/leverage - buffer
func EstimateLiquidationPrice(avgPrice, leverage, buffer float64, dir domain.Direction) float64 {
	distance := 1/leverage - buffer
	if dir == domain.DirectionShort {
		return avgPrice * (1 + distance)
	}
	return math.Max(avgPrice*(1-distance), 0)
}

// StopLossPrice 在不利方向上偏移 riskFraction
func StopLossPrice(avgPrice float64, dir domain.Direction, riskFraction float64) float64 {
	if dir == domain.DirectionShort {
		return avgPrice * (1 + riskFraction)
	}
	return avgPrice * (1 - riskFraction)
}
