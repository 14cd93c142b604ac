package orchestrator

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"trade_assistant/internal/agent/planner"
	"trade_assistant/internal/domain"
	"trade_assistant/internal/store"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockGateway) Fetch24hStats(ctx context.Context, symbol string) (domain.MarketStats, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(domain.MarketStats), args.Error(1)
}

type panicGateway struct{}

func (panicGateway) FetchPrice(context.Context, string) (float64, error) {
	panic("boom")
}

func (panicGateway) Fetch24hStats(context.Context, string) (domain.MarketStats, error) {
	panic("boom")
}

type memoryRecorder struct {
	mu      sync.Mutex
	entries []store.Invocation
}

func (r *memoryRecorder) Record(_ context.Context, inv store.Invocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, inv)
	return nil
}

func f(v float64) *float64 { return &v }

func b(v bool) *bool { return &v }

func newService(gw *mockGateway, rec Recorder) *Service {
	var prices planner.PriceSource
	if gw != nil {
		prices = gw
	}
	gen := planner.New(planner.DefaultConfig(), prices, nil)
	if gw == nil {
		return New(nil, gen, rec, nil)
	}
	return New(gw, gen, rec, nil)
}

func sampleTrades() []domain.Trade {
	return []domain.Trade{
		{Price: 100000, Amount: 1000},
		{Price: 90000, Amount: 900},
	}
}

func TestAnalyzePositionDefaults(t *testing.T) {
	svc := newService(nil, nil)
	res := svc.AnalyzePosition(context.Background(), AnalyzePositionRequest{
		Trades:          sampleTrades(),
		TakeProfitPrice: 110000,
		StopLossPrice:   85000,
		Position:        domain.DirectionLong,
	})
	require.False(t, res.Error, res.Message)

	analysis, ok := res.Data.(domain.PositionAnalysis)
	require.True(t, ok)
	assert.InDelta(t, 1900.0, analysis.InitialCapital, 1e-9)
	assert.InDelta(t, 0.02, analysis.TotalQuantity, 1e-12)
	assert.InDelta(t, 95000.0, analysis.AvgPrice, 1e-6)
	assert.Len(t, analysis.IncrementalTable, 2)
	assert.Equal(t, domain.DirectionLong, analysis.Direction)
	assert.True(t, strings.HasPrefix(res.Summary, "## Position Analysis"))
	assert.Contains(t, res.Summary, "Incremental Position Building")

	res = svc.AnalyzePosition(context.Background(), AnalyzePositionRequest{
		Trades:                  sampleTrades(),
		TakeProfitPrice:         110000,
		StopLossPrice:           85000,
		InitialCapital:          f(5000),
		Position:                domain.DirectionLong,
		IncludeIncrementalTable: b(false),
	})
	require.False(t, res.Error, res.Message)
	analysis = res.Data.(domain.PositionAnalysis)
	assert.Equal(t, 5000.0, analysis.InitialCapital)
	assert.Empty(t, analysis.IncrementalTable)
	assert.NotContains(t, res.Summary, "Incremental Position Building")
}

func TestTargetPricesInvalidInput(t *testing.T) {
	svc := newService(nil, nil)
	res := svc.TargetPrices(context.Background(), TargetPricesRequest{
		Trades:              sampleTrades(),
		TargetReturnPercent: 0.1,
		Position:            "sideways",
	})
	assert.True(t, res.Error)
	assert.Nil(t, res.Data)
	assert.True(t, strings.HasPrefix(res.Summary, "## Error\n\n"))
	assert.Contains(t, res.Message, "invalid input")
	assert.Equal(t, CodeInvalidInput, res.Code)
}

func TestAnalyzePositionRejectsDirectionWithoutTable(t *testing.T) {
	svc := newService(nil, nil)
	res := svc.AnalyzePosition(context.Background(), AnalyzePositionRequest{
		Trades:                  sampleTrades(),
		TakeProfitPrice:         110000,
		StopLossPrice:           85000,
		Position:                "sideways",
		IncludeIncrementalTable: b(false),
	})
	assert.True(t, res.Error)
	assert.Nil(t, res.Data)
	assert.Equal(t, CodeInvalidInput, res.Code)
	assert.Contains(t, res.Message, "sideways")
}

func TestTargetPricesCapitalDefaultsToTradeTotal(t *testing.T) {
	svc := newService(nil, nil)
	res := svc.TargetPrices(context.Background(), TargetPricesRequest{
		Trades:              sampleTrades(),
		TargetReturnPercent: 0.1,
		Position:            domain.DirectionLong,
	})
	require.False(t, res.Error, res.Message)
	out := res.Data.(domain.TargetPriceAnalysis)
	assert.Equal(t, 1900.0, out.InitialCapital)
	assert.InDelta(t, out.PositionBased.TakeProfitPrice, out.CapitalBased.TakeProfitPrice, 1e-6)
}

func TestCapitalAdjustment(t *testing.T) {
	svc := newService(nil, nil)
	res := svc.CapitalAdjustment(context.Background(), CapitalAdjustmentRequest{
		Trades:              sampleTrades(),
		DesiredPrice:        100000,
		TargetReturnPercent: 0.2,
		HedgeEntryPrice:     105000,
		SpotEntryPrice:      95000,
		Position:            domain.DirectionLong,
	})
	require.False(t, res.Error, res.Message)
	out := res.Data.(domain.CapitalAdjustment)
	assert.InDelta(t, 100.0, out.CurrentPnL, 1e-6)
	assert.InDelta(t, 380.0, out.TargetPnL, 1e-6)
	require.NotNil(t, out.Hedging)
	require.NotNil(t, out.SpotAddition)
	assert.Equal(t, domain.DirectionShort, out.Hedging.Direction)
	assert.InDelta(t, 0.056, out.Hedging.Quantity, 1e-9)
}

func TestMarketDataWithStats(t *testing.T) {
	gw := new(mockGateway)
	gw.On("FetchPrice", mock.Anything, "BTC").Return(100000.0, nil).Once()
	gw.On("Fetch24hStats", mock.Anything, "BTC").Return(domain.MarketStats{
		Symbol:                "BTCUSDT",
		Price:                 99990,
		High24h:               101000,
		Low24h:                98000,
		Volume24h:             1234.5,
		PriceChange24h:        1500,
		PriceChangePercent24h: 1.52,
	}, nil).Once()

	svc := newService(gw, nil)
	res := svc.MarketData(context.Background(), MarketDataRequest{Symbol: "btc"})
	require.False(t, res.Error, res.Message)

	out := res.Data.(MarketData)
	assert.Equal(t, "BTC", out.Symbol)
	assert.Equal(t, 100000.0, out.Price)
	require.NotNil(t, out.Stats)
	assert.Equal(t, 100000.0, out.Stats.Price)
	assert.Equal(t, 101000.0, out.Stats.High24h)
	assert.Contains(t, res.Summary, "24h Market Data")
	gw.AssertExpectations(t)
}

func TestMarketDataPriceOnly(t *testing.T) {
	gw := new(mockGateway)
	gw.On("FetchPrice", mock.Anything, "ETH").Return(3000.0, nil).Once()

	svc := newService(gw, nil)
	res := svc.MarketData(context.Background(), MarketDataRequest{Symbol: "ETH", IncludeStats: b(false)})
	require.False(t, res.Error, res.Message)
	out := res.Data.(MarketData)
	assert.Nil(t, out.Stats)
	assert.Contains(t, res.Summary, "ETH Price")
	gw.AssertNotCalled(t, "Fetch24hStats", mock.Anything, mock.Anything)
}

func TestMarketDataUnavailable(t *testing.T) {
	gw := new(mockGateway)
	gw.On("FetchPrice", mock.Anything, "BTC").Return(0.0, errors.Wrap(domain.ErrPriceUnavailable, "BTCUSDT")).Once()
	gw.On("Fetch24hStats", mock.Anything, "BTC").Return(domain.MarketStats{}, nil).Maybe()

	svc := newService(gw, nil)
	res := svc.MarketData(context.Background(), MarketDataRequest{Symbol: "BTC"})
	assert.True(t, res.Error)
	assert.Contains(t, res.Message, "Please provide currentPrice manually")
	assert.Equal(t, CodePriceUnavailable, res.Code)
	assert.True(t, strings.HasPrefix(res.Summary, "## Error"))
}

func TestProfitPlanUserPrice(t *testing.T) {
	svc := newService(nil, nil)
	res := svc.ProfitPlan(context.Background(), ProfitPlanRequest{
		CurrentPrice:     f(100000),
		Position:         domain.LeveragedPosition{Direction: domain.DirectionLong, AvgPrice: 100000, Qty: 8, Leverage: 10},
		TargetRoiPercent: f(20),
	})
	require.False(t, res.Error, res.Message)

	plan := res.Data.(ProfitPlan)
	assert.Equal(t, domain.PriceFromUser, plan.PriceSource)
	assert.Equal(t, 100000.0, plan.PriceUsed)
	assert.Equal(t, "BTC", plan.CurrentStatus.Symbol)
	assert.True(t, plan.CurrentStatus.ConservativeMode)
	assert.Equal(t, domain.PlanActive, plan.Status)
	assert.NotEmpty(t, plan.Strategies)
	assert.Contains(t, res.Summary, "Strategy Engine Report")

	raw, err := json.Marshal(plan)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"priceSource":"user_input"`)
	assert.Contains(t, string(raw), `"strategies":`)
}

func TestProfitPlanLivePrice(t *testing.T) {
	gw := new(mockGateway)
	gw.On("FetchPrice", mock.Anything, "BTC").Return(101000.0, nil).Once()

	svc := newService(gw, nil)
	res := svc.ProfitPlan(context.Background(), ProfitPlanRequest{
		Symbol:           "BTC",
		Position:         domain.LeveragedPosition{Direction: domain.DirectionLong, AvgPrice: 100000, Qty: 8, Leverage: 10},
		TargetProfitUSD:  f(16000),
		ConservativeMode: b(false),
	})
	require.False(t, res.Error, res.Message)
	plan := res.Data.(ProfitPlan)
	assert.Equal(t, domain.PriceFromLive, plan.PriceSource)
	assert.Equal(t, 101000.0, plan.PriceUsed)
	assert.False(t, plan.CurrentStatus.ConservativeMode)
	gw.AssertExpectations(t)
}

func TestPanicIsRecovered(t *testing.T) {
	rec := &memoryRecorder{}
	svc := New(panicGateway{}, planner.New(planner.DefaultConfig(), nil, nil), rec, nil)
	res := svc.MarketData(context.Background(), MarketDataRequest{Symbol: "BTC", IncludeStats: b(false)})
	assert.True(t, res.Error)
	assert.Contains(t, res.Message, "internal error: boom")
	assert.Equal(t, CodeInternal, res.Code)
	require.Len(t, rec.entries, 1)
	assert.True(t, rec.entries[0].Error)
}

func TestCallsAreRecorded(t *testing.T) {
	rec := &memoryRecorder{}
	svc := newService(nil, rec)
	svc.TargetPrices(context.Background(), TargetPricesRequest{
		Trades:              sampleTrades(),
		TargetReturnPercent: 0.1,
		Position:            domain.DirectionShort,
	})
	svc.MarketData(context.Background(), MarketDataRequest{Symbol: "BTC"})

	require.Len(t, rec.entries, 2)
	assert.Equal(t, ToolTargetPrices, rec.entries[0].Tool)
	assert.False(t, rec.entries[0].Error)
	assert.Contains(t, rec.entries[0].Arguments, `"targetReturnPercent":0.1`)
	assert.Equal(t, ToolMarketData, rec.entries[1].Tool)
	assert.True(t, rec.entries[1].Error)
}

func TestToolsCatalogue(t *testing.T) {
	svc := newService(nil, nil)
	tools := svc.Tools()
	require.Len(t, tools, 5)

	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		assert.Equal(t, "function", tool.Type)
		require.NotNil(t, tool.Function)
		params, ok := tool.Function.Parameters.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "object", params["type"])
		names = append(names, tool.Function.Name)
	}
	assert.Equal(t, []string{ToolAnalyzePosition, ToolTargetPrices, ToolCapitalAdjustment, ToolMarketData, ToolProfitPlan}, names)
}

func decodeResponse(t *testing.T, resp llms.ToolCallResponse) Result {
	t.Helper()
	var res Result
	require.NoError(t, json.Unmarshal([]byte(resp.Content), &res))
	return res
}

func TestDispatch(t *testing.T) {
	svc := newService(nil, nil)
	resp := svc.Dispatch(context.Background(), llms.ToolCall{
		ID:   "call_1",
		Type: "function",
		FunctionCall: &llms.FunctionCall{
			Name:      ToolTargetPrices,
			Arguments: `{"trades":[{"price":100000,"amount":"1000"}],"targetReturnPercent":0.1,"position":"long"}`,
		},
	})
	assert.Equal(t, "call_1", resp.ToolCallID)
	assert.Equal(t, ToolTargetPrices, resp.Name)

	res := decodeResponse(t, resp)
	require.False(t, res.Error, res.Message)
	assert.True(t, strings.HasPrefix(res.Summary, "## Target Price Analysis"))
	data, ok := res.Data.(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 110000.0, data["positionBased"].(map[string]any)["takeProfitPrice"], 1e-6)
}

func TestDispatchRejectsInvalidArguments(t *testing.T) {
	svc := newService(nil, nil)
	cases := map[string]llms.ToolCall{
		"return out of range": {ID: "1", FunctionCall: &llms.FunctionCall{
			Name:      ToolTargetPrices,
			Arguments: `{"trades":[{"price":100000,"amount":1000}],"targetReturnPercent":11,"position":"long"}`,
		}},
		"bad direction": {ID: "2", FunctionCall: &llms.FunctionCall{
			Name:      ToolTargetPrices,
			Arguments: `{"trades":[{"price":100000,"amount":1000}],"targetReturnPercent":0.1,"position":"up"}`,
		}},
		"empty trades": {ID: "3", FunctionCall: &llms.FunctionCall{
			Name:      ToolAnalyzePosition,
			Arguments: `{"trades":[],"takeProfitPrice":1,"stopLossPrice":1,"position":"long"}`,
		}},
		"negative price": {ID: "4", FunctionCall: &llms.FunctionCall{
			Name:      ToolCapitalAdjustment,
			Arguments: `{"trades":[{"price":-1,"amount":1000}],"desiredPrice":1,"targetReturnPercent":0.1,"hedgeEntryPrice":1,"spotEntryPrice":1,"position":"long"}`,
		}},
		"not json": {ID: "5", FunctionCall: &llms.FunctionCall{Name: ToolMarketData, Arguments: `{symbol`}},
		"unknown tool": {ID: "6", FunctionCall: &llms.FunctionCall{Name: "placeOrder", Arguments: `{}`}},
		"no function":  {ID: "7"},
	}
	for name, call := range cases {
		t.Run(name, func(t *testing.T) {
			res := decodeResponse(t, svc.Dispatch(context.Background(), call))
			assert.True(t, res.Error)
			assert.True(t, strings.HasPrefix(res.Summary, "## Error\n\n"))
		})
	}
}

func TestDispatchProfitPlanDefaults(t *testing.T) {
	svc := newService(nil, nil)
	res := svc.Invoke(context.Background(), ToolProfitPlan, []byte(
		`{"currentPrice":100000,"position":{"direction":"long","avgPrice":100000,"qty":8},"targetRoiPercent":20}`))
	require.False(t, res.Error, res.Message)
	plan := res.Data.(ProfitPlan)
	assert.Equal(t, 10.0, plan.CurrentStatus.Leverage)
	assert.True(t, plan.CurrentStatus.ConservativeMode)
	assert.InDelta(t, 16000.0, plan.CurrentStatus.TargetProfit, 1e-6)
}

func TestProfitPlanInfeasible(t *testing.T) {
	svc := newService(nil, nil)
	res := svc.ProfitPlan(context.Background(), ProfitPlanRequest{
		CurrentPrice:    f(1e300),
		Position:        domain.LeveragedPosition{Direction: domain.DirectionLong, AvgPrice: 2e300, Qty: 1e7, Leverage: 10},
		TargetProfitUSD: f(1.79e308),
	})
	assert.True(t, res.Error)
	assert.Equal(t, CodeInfeasible, res.Code)
	assert.Nil(t, res.Data)
}

func TestNumericStringsOnlyCoercedForNumberFields(t *testing.T) {
	gw := new(mockGateway)
	gw.On("FetchPrice", mock.Anything, "1000").Return(0.5, nil)
	svc := newService(gw, nil)

	res := svc.Invoke(context.Background(), ToolMarketData, []byte(`{"symbol":"1000","includeStats":false}`))
	require.False(t, res.Error, res.Message)
	assert.Equal(t, "1000", res.Data.(MarketData).Symbol)

	// 数字字段里的字符串仍然转换
	def, ok := lookupTool(ToolTargetPrices)
	require.True(t, ok)
	normalized, err := validateArguments(def, []byte(
		`{"trades":[{"price":"100000","amount":" 1000 "}],"targetReturnPercent":"0.1","position":"long"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"trades":[{"price":100000,"amount":1000}],"targetReturnPercent":0.1,"position":"long"}`, string(normalized))
}

func TestValidationErrorHidesSchemaLocation(t *testing.T) {
	svc := newService(nil, nil)
	res := svc.Invoke(context.Background(), ToolMarketData, []byte(`{"symbol":""}`))
	require.True(t, res.Error)
	assert.Equal(t, CodeInvalidInput, res.Code)
	assert.NotContains(t, res.Message, "file://")
	assert.Contains(t, res.Message, ToolMarketData)
}
