package orchestrator

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"trade_assistant/internal/domain"

	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tmc/langchaingo/llms"
)

const (
	ToolAnalyzePosition   = "analyzeTradePosition"
	ToolTargetPrices      = "calculateTargetPrices"
	ToolCapitalAdjustment = "suggestPositionAdjustment"
	ToolMarketData        = "getBinanceMarketData"
	ToolProfitPlan        = "planToAchieveProfitTarget"
)

type toolDef struct {
	name        string
	description string
	parameters  map[string]any
	schema      *jsonschema.Schema
	invoke      func(s *Service, ctx context.Context, raw []byte) Result
}

var toolDefs = mustCompileTools([]toolDef{
	{
		name:        ToolAnalyzePosition,
		description: "Analyze a position built from several trades: average price, total quantity and the P&L at the take-profit and stop-loss prices for both long and short, plus an optional step-by-step build table.",
		parameters: object(map[string]any{
			"trades":                  tradesSchema(),
			"takeProfitPrice":         positiveNumber("Target price for taking profit in USD"),
			"stopLossPrice":           positiveNumber("Target price for stop loss in USD"),
			"initialCapital":          positiveNumber("Initial capital; defaults to the sum of trade amounts"),
			"position":                directionSchema("Direction used for the incremental table"),
			"includeIncrementalTable": boolean("Include the step-by-step position building breakdown", true),
		}, "trades", "takeProfitPrice", "stopLossPrice", "position"),
		invoke: decodeAndRun(func(s *Service, ctx context.Context, req AnalyzePositionRequest) Result {
			return s.AnalyzePosition(ctx, req)
		}),
	},
	{
		name:        ToolTargetPrices,
		description: "Calculate the take-profit and stop-loss prices that realise a target return, against both the position amount and the initial capital.",
		parameters: object(map[string]any{
			"trades":              tradesSchema(),
			"initialCapital":      positiveNumber("Initial capital; defaults to the sum of trade amounts"),
			"targetReturnPercent": returnSchema(),
			"position":            directionSchema("Direction of the position"),
		}, "trades", "targetReturnPercent", "position"),
		invoke: decodeAndRun(func(s *Service, ctx context.Context, req TargetPricesRequest) Result {
			return s.TargetPrices(ctx, req)
		}),
	},
	{
		name:        ToolCapitalAdjustment,
		description: "Size an opposite-direction hedge or a same-direction addition that closes the gap to a target return at a desired exit price.",
		parameters: object(map[string]any{
			"trades":              tradesSchema(),
			"initialCapital":      positiveNumber("Initial capital; defaults to the sum of trade amounts"),
			"desiredPrice":        positiveNumber("Exit price to analyse"),
			"targetReturnPercent": returnSchema(),
			"hedgeEntryPrice":     positiveNumber("Entry price of the opposite-direction hedge"),
			"spotEntryPrice":      positiveNumber("Entry price of the same-direction addition"),
			"position":            directionSchema("Direction of the current position"),
		}, "trades", "desiredPrice", "targetReturnPercent", "hedgeEntryPrice", "spotEntryPrice", "position"),
		invoke: decodeAndRun(func(s *Service, ctx context.Context, req CapitalAdjustmentRequest) Result {
			return s.CapitalAdjustment(ctx, req)
		}),
	},
	{
		name:        ToolMarketData,
		description: "Fetch the current price and optionally the 24h high, low, volume and change for a cryptocurrency.",
		parameters: object(map[string]any{
			"symbol":       symbolSchema("Cryptocurrency symbol, e.g. BTC"),
			"includeStats": boolean("Include 24h statistics", true),
		}, "symbol"),
		invoke: decodeAndRun(func(s *Service, ctx context.Context, req MarketDataRequest) Result {
			return s.MarketData(ctx, req)
		}),
	},
	{
		name:        ToolProfitPlan,
		description: "Diagnose a leveraged futures position against a profit target and generate capital-deployment strategies (leverage add, spot, hedge, mixed, grid, martingale) with risk labels.",
		parameters: object(map[string]any{
			"symbol":       symbolSchema("Trading symbol, defaults to BTC"),
			"currentPrice": positiveNumber("Current market price; fetched live when omitted"),
			"position": object(map[string]any{
				"direction":        directionSchema("Current position direction"),
				"avgPrice":         positiveNumber("Average entry price in USD"),
				"qty":              positiveNumber("Position quantity in coins, as shown on the exchange"),
				"leverage":         map[string]any{"type": "number", "minimum": 0, "default": 10, "description": "Current leverage, 0 means the default 10x"},
				"margin":           positiveNumber("Margin reported by the exchange in USD"),
				"liquidationPrice": positiveNumber("Current liquidation price in USD"),
			}, "direction", "avgPrice", "qty"),
			"account": object(map[string]any{
				"availableBalance":   nonNegativeNumber("Available USDT balance"),
				"totalWalletBalance": nonNegativeNumber("Total wallet balance in USDT"),
			}, "availableBalance", "totalWalletBalance"),
			"targetRoiPercent":      positiveNumber("Target ROI as a percentage of margin, 20 means 20%. Takes priority over targetProfitUSD"),
			"targetProfitUSD":       nonNegativeNumber("Fixed profit target in USD"),
			"conservativeMode":      boolean("Wait for a better entry price before adding", true),
			"martingaleAddPrice":    positiveNumber("Price of the martingale add order"),
			"martingaleTargetPrice": positiveNumber("Exit price the martingale add is solved against"),
		}, "position"),
		invoke: decodeAndRun(func(s *Service, ctx context.Context, req ProfitPlanRequest) Result {
			return s.ProfitPlan(ctx, req)
		}),
	},
})

// Tools 工具目录，顺序固定
func (s *Service) Tools() []llms.Tool {
	out := make([]llms.Tool, 0, len(toolDefs))
	for _, def := range toolDefs {
		out = append(out, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        def.name,
				Description: def.description,
				Parameters:  def.parameters,
			},
		})
	}
	return out
}

// Dispatch 执行模型发起的工具调用，返回内容为 Result 的 JSON
func (s *Service) Dispatch(ctx context.Context, call llms.ToolCall) llms.ToolCallResponse {
	resp := llms.ToolCallResponse{ToolCallID: call.ID}
	if call.FunctionCall == nil {
		resp.Content = encodeResult(failure(CodeInvalidInput, "tool call has no function"))
		return resp
	}
	resp.Name = call.FunctionCall.Name
	resp.Content = encodeResult(s.Invoke(ctx, call.FunctionCall.Name, []byte(call.FunctionCall.Arguments)))
	return resp
}

// Invoke 按名字调用工具，参数先按 JSON schema 校验
func (s *Service) Invoke(ctx context.Context, name string, arguments []byte) Result {
	def, ok := lookupTool(name)
	if !ok {
		return failure(CodeInvalidInput, "unknown tool: "+name)
	}
	normalized, err := validateArguments(def, arguments)
	if err != nil {
		return failure(CodeInvalidInput, err.Error())
	}
	return def.invoke(s, ctx, normalized)
}

func lookupTool(name string) (toolDef, bool) {
	for _, def := range toolDefs {
		if def.name == name {
			return def, true
		}
	}
	return toolDef{}, false
}

func validateArguments(def toolDef, arguments []byte) ([]byte, error) {
	if len(strings.TrimSpace(string(arguments))) == 0 {
		arguments = []byte("{}")
	}
	var params any
	if err := json.Unmarshal(arguments, &params); err != nil {
		return nil, errors.Wrapf(domain.ErrInvalidInput, "arguments for %s are not valid JSON: %v", def.name, err)
	}
	params = sanitizeParams(params, def.parameters)
	if err := def.schema.Validate(params); err != nil {
		return nil, errors.Wrapf(domain.ErrInvalidInput, "invalid arguments for %s: %v", def.name, err)
	}
	normalized, err := json.Marshal(params)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrInvalidInput, "arguments for %s: %v", def.name, err)
	}
	return normalized, nil
}

func decodeAndRun[T any](fn func(s *Service, ctx context.Context, req T) Result) func(*Service, context.Context, []byte) Result {
	return func(s *Service, ctx context.Context, raw []byte) Result {
		var req T
		if err := json.Unmarshal(raw, &req); err != nil {
			return failure(CodeInvalidInput, errors.Wrap(domain.ErrInvalidInput, err.Error()).Error())
		}
		return fn(s, ctx, req)
	}
}

func encodeResult(res Result) string {
	raw, err := json.Marshal(res)
	if err != nil {
		raw, _ = json.Marshal(failure(CodeInternal, "encode result: "+err.Error()))
	}
	return string(raw)
}

// sanitizeParams 模型偶尔把数字写成字符串 "3000"，校验前按 schema 把 number 字段转回数字，
// string 字段（如 symbol "1000"）保持原样
func sanitizeParams(v any, schema map[string]any) any {
	switch val := v.(type) {
	case map[string]any:
		props, _ := schema["properties"].(map[string]any)
		out := make(map[string]any, len(val))
		for k, child := range val {
			sub, _ := props[k].(map[string]any)
			out[k] = sanitizeParams(child, sub)
		}
		return out
	case []any:
		items, _ := schema["items"].(map[string]any)
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = sanitizeParams(child, items)
		}
		return out
	case string:
		if schema["type"] != "number" {
			return val
		}
		if num, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return num
		}
		return val
	default:
		return val
	}
}

func mustCompileTools(specs []toolDef) []toolDef {
	for i := range specs {
		schema, err := compileSchema(specs[i].name, specs[i].parameters)
		if err != nil {
			panic(errors.Wrapf(err, "compile schema for %s", specs[i].name))
		}
		specs[i].schema = schema
	}
	return specs
}

func compileSchema(name string, data map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	// 内存地址，避免校验错误里出现本地文件路径
	url := "mem://tools/" + name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, strings.NewReader(string(raw))); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}

func object(props map[string]any, required ...string) map[string]any {
	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

func positiveNumber(desc string) map[string]any {
	return map[string]any{"type": "number", "exclusiveMinimum": 0, "description": desc}
}

func nonNegativeNumber(desc string) map[string]any {
	return map[string]any{"type": "number", "minimum": 0, "description": desc}
}

func boolean(desc string, def bool) map[string]any {
	return map[string]any{"type": "boolean", "default": def, "description": desc}
}

func directionSchema(desc string) map[string]any {
	return map[string]any{"type": "string", "enum": []string{string(domain.DirectionLong), string(domain.DirectionShort)}, "description": desc}
}

func symbolSchema(desc string) map[string]any {
	return map[string]any{"type": "string", "minLength": 1, "maxLength": 20, "pattern": `^[A-Za-z0-9/_\- ]+$`, "description": desc}
}

// 收益率为小数，0.10 表示 10%
func returnSchema() map[string]any {
	return map[string]any{
		"type":        "number",
		"minimum":     -0.99,
		"maximum":     10,
		"description": "Target return as a decimal, e.g. 0.10 for 10%, -0.05 for -5%",
	}
}

func tradesSchema() map[string]any {
	return map[string]any{
		"type":     "array",
		"minItems": 1,
		"items": object(map[string]any{
			"price":  positiveNumber("Entry price for this trade in USD"),
			"amount": positiveNumber("USD amount invested in this trade"),
		}, "price", "amount"),
		"description": "Trades that built the position",
	}
}
