package calc

import (
	"math"

	"trade_assistant/internal/domain"
)

// AnalyzePosition 同时计算多空两种方向在止盈/止损价下的盈亏
func AnalyzePosition(trades []domain.Trade, takeProfit, stopLoss, initialCapital float64) (domain.PositionAnalysis, error) {
	pos, err := AveragePosition(trades)
	if err != nil {
		return domain.PositionAnalysis{}, err
	}
	if err := validatePrice("takeProfitPrice", takeProfit); err != nil {
		return domain.PositionAnalysis{}, err
	}
	if err := validatePrice("stopLossPrice", stopLoss); err != nil {
		return domain.PositionAnalysis{}, err
	}
	if err := validateFinite("initialCapital", initialCapital); err != nil {
		return domain.PositionAnalysis{}, err
	}

	return domain.PositionAnalysis{
		AvgPrice:        pos.AvgPrice,
		TotalQuantity:   pos.Qty,
		TotalCapital:    TotalAmount(trades),
		InitialCapital:  initialCapital,
		TakeProfitPrice: takeProfit,
		StopLossPrice:   stopLoss,
		Long:            scenario(pos, takeProfit, stopLoss, initialCapital, domain.DirectionLong),
		Short:           scenario(pos, takeProfit, stopLoss, initialCapital, domain.DirectionShort),
	}, nil
}

func scenario(pos domain.AvgPosition, tp, sl, initialCapital float64, dir domain.Direction) domain.PnLScenario {
	tpPnL := PnL(pos.AvgPrice, pos.Qty, tp, dir)
	slPnL := PnL(pos.AvgPrice, pos.Qty, sl, dir)
	return domain.PnLScenario{
		TakeProfitPnL:   tpPnL,
		TakeProfitAfter: initialCapital + tpPnL,
		StopLossPnL:     slPnL,
		StopLossAfter:   initialCapital + slPnL,
	}
}

// IncrementalTable recomputes the average position on every prefix trades[:i+1].
func IncrementalTable(trades []domain.Trade, takeProfit, stopLoss, initialCapital float64, dir domain.Direction) ([]domain.IncrementalRow, error) {
	if err := validateDirection(dir); err != nil {
		return nil, err
	}
	if err := validateTrades(trades); err != nil {
		return nil, err
	}

	rows := make([]domain.IncrementalRow, 0, len(trades))
	for i := range trades {
		prefix := trades[:i+1]
		pos, err := AveragePosition(prefix)
		if err != nil {
			return nil, err
		}
		tpPnL := PnL(pos.AvgPrice, pos.Qty, takeProfit, dir)
		slPnL := PnL(pos.AvgPrice, pos.Qty, stopLoss, dir)
		rows = append(rows, domain.IncrementalRow{
			Step:             i + 1,
			Price:            trades[i].Price,
			Amount:           trades[i].Amount,
			CumulativeAmount: TotalAmount(prefix),
			AvgPrice:         pos.AvgPrice,
			TakeProfitPnL:    tpPnL,
			TakeProfitAfter:  initialCapital + tpPnL,
			StopLossPnL:      slPnL,
			StopLossAfter:    initialCapital + slPnL,
		})
	}
	return rows, nil
}

// TargetPrices 两套基准：持仓金额 (Σ amount) 与初始资金
func TargetPrices(trades []domain.Trade, initialCapital, targetReturn float64, dir domain.Direction) (domain.TargetPriceAnalysis, error) {
	if err := validateDirection(dir); err != nil {
		return domain.TargetPriceAnalysis{}, err
	}
	pos, err := AveragePosition(trades)
	if err != nil {
		return domain.TargetPriceAnalysis{}, err
	}
	if err := validateFinite("initialCapital", initialCapital); err != nil {
		return domain.TargetPriceAnalysis{}, err
	}
	if err := validateFinite("targetReturnPercent", targetReturn); err != nil {
		return domain.TargetPriceAnalysis{}, err
	}

	net := TotalAmount(trades)
	pair := func(base float64) domain.PricePair {
		return domain.PricePair{
			TakeProfitPrice: TargetPriceForReturn(pos.AvgPrice, pos.Qty, base, targetReturn, dir),
			StopLossPrice:   TargetPriceForReturn(pos.AvgPrice, pos.Qty, base, -targetReturn, dir),
		}
	}

	return domain.TargetPriceAnalysis{
		AvgPrice:          pos.AvgPrice,
		Quantity:          pos.Qty,
		NetPositionAmount: net,
		InitialCapital:    initialCapital,
		Direction:         dir,
		ReturnFraction:    targetReturn,
		PositionBased:     pair(net),
		CapitalBased:      pair(initialCapital),
	}, nil
}

// AdjustmentInput 资金调整参数，收益率为小数 (0.1 = 10%)
type AdjustmentInput struct {
	Trades          []domain.Trade
	InitialCapital  float64
	DesiredPrice    float64
	TargetReturn    float64
	HedgeEntryPrice float64
	SpotEntryPrice  float64
	Direction       domain.Direction
}

// CapitalAdjustments sizes an opposite-direction hedge and a same-direction addition that
// each close the P&L gap exactly at the desired price. An option whose entry price equals
// the desired price has zero unit P&L and is reported as nil.
func CapitalAdjustments(in AdjustmentInput) (domain.CapitalAdjustment, error) {
	if err := validateDirection(in.Direction); err != nil {
		return domain.CapitalAdjustment{}, err
	}
	pos, err := AveragePosition(in.Trades)
	if err != nil {
		return domain.CapitalAdjustment{}, err
	}
	for _, p := range []struct {
		name string
		v    float64
	}{
		{"desiredPrice", in.DesiredPrice},
		{"hedgeEntryPrice", in.HedgeEntryPrice},
		{"spotEntryPrice", in.SpotEntryPrice},
	} {
		if err := validatePrice(p.name, p.v); err != nil {
			return domain.CapitalAdjustment{}, err
		}
	}
	if err := validateFinite("initialCapital", in.InitialCapital); err != nil {
		return domain.CapitalAdjustment{}, err
	}
	if err := validateFinite("targetReturnPercent", in.TargetReturn); err != nil {
		return domain.CapitalAdjustment{}, err
	}

	currentPnL := PnL(pos.AvgPrice, pos.Qty, in.DesiredPrice, in.Direction)
	targetPnL := in.InitialCapital * in.TargetReturn
	gap := targetPnL - currentPnL

	out := domain.CapitalAdjustment{
		AvgPrice:     pos.AvgPrice,
		Quantity:     pos.Qty,
		CurrentPnL:   currentPnL,
		TargetPnL:    targetPnL,
		PnLGap:       gap,
		DesiredPrice: in.DesiredPrice,
		Direction:    in.Direction,
	}

	hedgeDir := in.Direction.Opposite()
	if qty, ok := qtyToClose(gap, in.HedgeEntryPrice, in.DesiredPrice, hedgeDir); ok {
		out.Hedging = &domain.HedgeOption{
			Direction:  hedgeDir,
			Quantity:   qty,
			Amount:     qty * in.HedgeEntryPrice,
			EntryPrice: in.HedgeEntryPrice,
		}
	}

	if qty, ok := qtyToClose(gap, in.SpotEntryPrice, in.DesiredPrice, in.Direction); ok {
		var newAvg float64
		if newQty := pos.Qty + qty; newQty != 0 {
			newAvg = (pos.Qty*pos.AvgPrice + qty*in.SpotEntryPrice) / newQty
		}
		out.SpotAddition = &domain.SpotOption{
			Quantity:    qty,
			Amount:      qty * in.SpotEntryPrice,
			EntryPrice:  in.SpotEntryPrice,
			NewAvgPrice: newAvg,
		}
	}

	return out, nil
}

func qtyToClose(gap, entry, desired float64, dir domain.Direction) (float64, bool) {
	unit := PnL(entry, 1, desired, dir)
	if math.Abs(unit) < unitEpsilon {
		return 0, false
	}
	return gap / unit, true
}
