// Package calc 持仓均价、盈亏与目标价的闭式计算，不做日志也不访问网络。
package calc

import (
	"math"

	"trade_assistant/internal/domain"

	"github.com/pkg/errors"
)

// unitEpsilon 单位盈亏小于该值视为入场价等于目标价
const unitEpsilon = 1e-9

// AveragePosition 由成交记录计算均价与数量：qty = Σ amount/price，avg = Σ amount / qty
func AveragePosition(trades []domain.Trade) (domain.AvgPosition, error) {
	if err := validateTrades(trades); err != nil {
		return domain.AvgPosition{}, err
	}

	var cost, qty float64
	for _, t := range trades {
		cost += t.Amount
		qty += t.Amount / t.Price
	}
	if qty <= 0 || !finite(qty) {
		return domain.AvgPosition{}, errors.Wrap(domain.ErrInvalidInput, "total quantity resolves to zero")
	}

	return domain.AvgPosition{AvgPrice: cost / qty, Qty: qty}, nil
}

// PnL is positive for profit: (target-avg)*qty for long, (avg-target)*qty for short.
func PnL(avgPrice, qty, targetPrice float64, dir domain.Direction) float64 {
	if dir == domain.DirectionShort {
		return (avgPrice - targetPrice) * qty
	}
	return (targetPrice - avgPrice) * qty
}

// TargetPriceForReturn 求解 PnL(avg, qty, price, dir) == capitalBase*returnFraction 的 price
func TargetPriceForReturn(avgPrice, qty, capitalBase, returnFraction float64, dir domain.Direction) float64 {
	targetPnL := capitalBase * returnFraction
	if dir == domain.DirectionShort {
		return avgPrice - targetPnL/qty
	}
	return avgPrice + targetPnL/qty
}

// TotalAmount Σ amount
func TotalAmount(trades []domain.Trade) float64 {
	var sum float64
	for _, t := range trades {
		sum += t.Amount
	}
	return sum
}

func validateTrades(trades []domain.Trade) error {
	if len(trades) == 0 {
		return errors.Wrap(domain.ErrInvalidInput, "trades cannot be empty")
	}
	for i, t := range trades {
		if !finite(t.Price) || t.Price <= 0 {
			return errors.Wrapf(domain.ErrInvalidInput, "trade %d: price must be positive, got %v", i+1, t.Price)
		}
		if !finite(t.Amount) || t.Amount <= 0 {
			return errors.Wrapf(domain.ErrInvalidInput, "trade %d: amount must be positive, got %v", i+1, t.Amount)
		}
	}
	return nil
}

func validateDirection(dir domain.Direction) error {
	if !dir.Valid() {
		return errors.Wrapf(domain.ErrInvalidInput, "direction must be long or short, got %q", dir)
	}
	return nil
}

func validatePrice(name string, v float64) error {
	if !finite(v) || v <= 0 {
		return errors.Wrapf(domain.ErrInvalidInput, "%s must be positive, got %v", name, v)
	}
	return nil
}

func validateFinite(name string, v float64) error {
	if !finite(v) {
		return errors.Wrapf(domain.ErrInvalidInput, "%s must be a finite number", name)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
