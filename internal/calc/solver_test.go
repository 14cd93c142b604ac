package calc

import (
	"testing"

	"trade_assistant/internal/domain"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzePosition_BothDirections(t *testing.T) {
	trades := []domain.Trade{{Price: 100, Amount: 1000}}

	a, err := AnalyzePosition(trades, 110, 95, 5000)
	require.NoError(t, err)

	assert.Equal(t, 100.0, a.AvgPrice)
	assert.Equal(t, 10.0, a.TotalQuantity)
	assert.Equal(t, 1000.0, a.TotalCapital)

	assert.InDelta(t, 100, a.Long.TakeProfitPnL, 1e-9)
	assert.InDelta(t, 5100, a.Long.TakeProfitAfter, 1e-9)
	assert.InDelta(t, -50, a.Long.StopLossPnL, 1e-9)
	assert.InDelta(t, 4950, a.Long.StopLossAfter, 1e-9)

	assert.InDelta(t, -100, a.Short.TakeProfitPnL, 1e-9)
	assert.InDelta(t, 50, a.Short.StopLossPnL, 1e-9)
	assert.InDelta(t, 5050, a.Short.StopLossAfter, 1e-9)
}

func TestAnalyzePosition_RejectsBadPrices(t *testing.T) {
	_, err := AnalyzePosition(fixtureTrades(), 0, 80000, 1)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	_, err = AnalyzePosition(nil, 90000, 80000, 1)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestIncrementalTable_PrefixRecompute(t *testing.T) {
	trades := fixtureTrades()
	rows, err := IncrementalTable(trades, 90000, 75000, 2000000, domain.DirectionLong)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	for i, row := range rows {
		pos, err := AveragePosition(trades[:i+1])
		require.NoError(t, err)
		assert.Equal(t, i+1, row.Step)
		assert.Equal(t, trades[i].Price, row.Price)
		assert.Equal(t, trades[i].Amount, row.Amount)
		assert.InDelta(t, pos.AvgPrice, row.AvgPrice, 1e-9)
		assert.InDelta(t, 2000000+row.TakeProfitPnL, row.TakeProfitAfter, 1e-9)
	}
	assert.Equal(t, 102313.0, rows[0].AvgPrice)
	assert.Equal(t, 1600000.0, rows[2].CumulativeAmount)

	full, err := AveragePosition(trades)
	require.NoError(t, err)
	assert.InDelta(t, full.AvgPrice, rows[2].AvgPrice, 1e-9)
}

func TestIncrementalTable_InvalidDirection(t *testing.T) {
	_, err := IncrementalTable(fixtureTrades(), 1, 1, 1, "sideways")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestTargetPrices_DualBasis(t *testing.T) {
	trades := []domain.Trade{{Price: 100, Amount: 1000}}

	long, err := TargetPrices(trades, 2000, 0.1, domain.DirectionLong)
	require.NoError(t, err)
	assert.InDelta(t, 110, long.PositionBased.TakeProfitPrice, 1e-9)
	assert.InDelta(t, 90, long.PositionBased.StopLossPrice, 1e-9)
	assert.InDelta(t, 120, long.CapitalBased.TakeProfitPrice, 1e-9)
	assert.InDelta(t, 80, long.CapitalBased.StopLossPrice, 1e-9)
	assert.Equal(t, 1000.0, long.NetPositionAmount)

	short, err := TargetPrices(trades, 2000, 0.1, domain.DirectionShort)
	require.NoError(t, err)
	assert.InDelta(t, 90, short.PositionBased.TakeProfitPrice, 1e-9)
	assert.InDelta(t, 120, short.CapitalBased.StopLossPrice, 1e-9)
}

func TestCapitalAdjustments_Sizing(t *testing.T) {
	trades := []domain.Trade{{Price: 100, Amount: 1000}}

	adj, err := CapitalAdjustments(AdjustmentInput{
		Trades:          trades,
		InitialCapital:  1000,
		DesiredPrice:    105,
		TargetReturn:    0.1,
		HedgeEntryPrice: 110,
		SpotEntryPrice:  102,
		Direction:       domain.DirectionLong,
	})
	require.NoError(t, err)

	assert.InDelta(t, 50, adj.CurrentPnL, 1e-9)
	assert.InDelta(t, 100, adj.TargetPnL, 1e-9)
	assert.InDelta(t, 50, adj.PnLGap, 1e-9)

	require.NotNil(t, adj.Hedging)
	assert.Equal(t, domain.DirectionShort, adj.Hedging.Direction)
	assert.InDelta(t, 10, adj.Hedging.Quantity, 1e-9)
	assert.InDelta(t, 1100, adj.Hedging.Amount, 1e-9)

	require.NotNil(t, adj.SpotAddition)
	q := 50.0 / 3.0
	assert.InDelta(t, q, adj.SpotAddition.Quantity, 1e-9)
	assert.InDelta(t, q*102, adj.SpotAddition.Amount, 1e-9)
	assert.InDelta(t, (10*100+q*102)/(10+q), adj.SpotAddition.NewAvgPrice, 1e-9)

	// both options close the gap at the desired price
	assert.InDelta(t, adj.PnLGap, PnL(110, adj.Hedging.Quantity, 105, domain.DirectionShort), 1e-9)
	assert.InDelta(t, adj.PnLGap, PnL(102, adj.SpotAddition.Quantity, 105, domain.DirectionLong), 1e-9)
}

func TestCapitalAdjustments_EntryAtDesiredPriceIsNil(t *testing.T) {
	in := AdjustmentInput{
		Trades:          fixtureTrades(),
		InitialCapital:  2000000,
		DesiredPrice:    95000,
		TargetReturn:    0.05,
		HedgeEntryPrice: 95000,
		SpotEntryPrice:  90000,
		Direction:       domain.DirectionShort,
	}
	adj, err := CapitalAdjustments(in)
	require.NoError(t, err)
	assert.Nil(t, adj.Hedging)
	assert.NotNil(t, adj.SpotAddition)

	in.HedgeEntryPrice = 90000
	in.SpotEntryPrice = 95000
	adj, err = CapitalAdjustments(in)
	require.NoError(t, err)
	assert.NotNil(t, adj.Hedging)
	assert.Nil(t, adj.SpotAddition)
}

func TestCapitalAdjustments_Idempotent(t *testing.T) {
	in := AdjustmentInput{
		Trades:          fixtureTrades(),
		InitialCapital:  2000000,
		DesiredPrice:    95000,
		TargetReturn:    0.1,
		HedgeEntryPrice: 98000,
		SpotEntryPrice:  80000,
		Direction:       domain.DirectionLong,
	}
	first, err := CapitalAdjustments(in)
	require.NoError(t, err)
	second, err := CapitalAdjustments(in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
