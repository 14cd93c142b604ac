package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"trade_assistant/internal/agent/planner"
	"trade_assistant/internal/calc"
	"trade_assistant/internal/domain"
	"trade_assistant/internal/market"
	"trade_assistant/internal/report"
	"trade_assistant/internal/store"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Recorder 调用审计，nil 表示不记录
type Recorder interface {
	Record(ctx context.Context, inv store.Invocation) error
}

type Service struct {
	gateway market.Gateway
	planner *planner.Generator
	journal Recorder
	log     *zap.Logger
}

// 失败分类，HTTP 层据此选择状态码
const (
	CodeInvalidInput     = "invalid_input"
	CodeInfeasible       = "infeasible"
	CodePriceUnavailable = "price_unavailable"
	CodeInternal         = "internal"
)

// Result 每个入口统一的返回结构，失败时 Error=true 且 Summary 为 markdown 错误说明
type Result struct {
	Error   bool   `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Summary string `json:"summary"`
	Data    any    `json:"data,omitempty"`
}

type AnalyzePositionRequest struct {
	Trades                  []domain.Trade   `json:"trades"`
	TakeProfitPrice         float64          `json:"takeProfitPrice"`
	StopLossPrice           float64          `json:"stopLossPrice"`
	InitialCapital          *float64         `json:"initialCapital,omitempty"`
	Position                domain.Direction `json:"position"`
	IncludeIncrementalTable *bool            `json:"includeIncrementalTable,omitempty"`
}

type TargetPricesRequest struct {
	Trades              []domain.Trade   `json:"trades"`
	InitialCapital      *float64         `json:"initialCapital,omitempty"`
	TargetReturnPercent float64          `json:"targetReturnPercent"`
	Position            domain.Direction `json:"position"`
}

type CapitalAdjustmentRequest struct {
	Trades              []domain.Trade   `json:"trades"`
	InitialCapital      *float64         `json:"initialCapital,omitempty"`
	DesiredPrice        float64          `json:"desiredPrice"`
	TargetReturnPercent float64          `json:"targetReturnPercent"`
	HedgeEntryPrice     float64          `json:"hedgeEntryPrice"`
	SpotEntryPrice      float64          `json:"spotEntryPrice"`
	Position            domain.Direction `json:"position"`
}

type MarketDataRequest struct {
	Symbol       string `json:"symbol"`
	IncludeStats *bool  `json:"includeStats,omitempty"`
}

type ProfitPlanRequest struct {
	Symbol           string                   `json:"symbol,omitempty"`
	CurrentPrice     *float64                 `json:"currentPrice,omitempty"`
	Position         domain.LeveragedPosition `json:"position"`
	Account          *domain.Account          `json:"account,omitempty"`
	TargetRoiPercent *float64                 `json:"targetRoiPercent,omitempty"`
	TargetProfitUSD  *float64                 `json:"targetProfitUSD,omitempty"`
	ConservativeMode *bool                    `json:"conservativeMode,omitempty"`

	MartingaleAddPrice    *float64 `json:"martingaleAddPrice,omitempty"`
	MartingaleTargetPrice *float64 `json:"martingaleTargetPrice,omitempty"`
}

// MarketData 行情结果，Stats 仅在 includeStats 时返回
type MarketData struct {
	Symbol string              `json:"symbol"`
	Price  float64             `json:"price"`
	Stats  *domain.MarketStats `json:"stats,omitempty"`
}

// ProfitPlan 在策略结果之外带上实际使用的价格和来源
type ProfitPlan struct {
	domain.PlanResult
	PriceSource domain.PriceSource `json:"priceSource"`
	PriceUsed   float64            `json:"priceUsed"`
}

func New(gateway market.Gateway, gen *planner.Generator, journal Recorder, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{gateway: gateway, planner: gen, journal: journal, log: log}
}

func (s *Service) AnalyzePosition(ctx context.Context, req AnalyzePositionRequest) Result {
	return s.run(ctx, ToolAnalyzePosition, req, func(ctx context.Context) (any, string, error) {
		if !req.Position.Valid() {
			return nil, "", errors.Wrapf(domain.ErrInvalidInput, "position must be long or short, got %q", req.Position)
		}
		capital := initialCapital(req.Trades, req.InitialCapital)
		analysis, err := calc.AnalyzePosition(req.Trades, req.TakeProfitPrice, req.StopLossPrice, capital)
		if err != nil {
			return nil, "", err
		}
		analysis.Direction = req.Position
		if boolOr(req.IncludeIncrementalTable, true) {
			rows, err := calc.IncrementalTable(req.Trades, req.TakeProfitPrice, req.StopLossPrice, capital, req.Position)
			if err != nil {
				return nil, "", err
			}
			analysis.IncrementalTable = rows
		}
		return analysis, report.PositionAnalysis(analysis), nil
	})
}

func (s *Service) TargetPrices(ctx context.Context, req TargetPricesRequest) Result {
	return s.run(ctx, ToolTargetPrices, req, func(ctx context.Context) (any, string, error) {
		capital := initialCapital(req.Trades, req.InitialCapital)
		out, err := calc.TargetPrices(req.Trades, capital, req.TargetReturnPercent, req.Position)
		if err != nil {
			return nil, "", err
		}
		return out, report.TargetPrices(out), nil
	})
}

func (s *Service) CapitalAdjustment(ctx context.Context, req CapitalAdjustmentRequest) Result {
	return s.run(ctx, ToolCapitalAdjustment, req, func(ctx context.Context) (any, string, error) {
		out, err := calc.CapitalAdjustments(calc.AdjustmentInput{
			Trades:          req.Trades,
			InitialCapital:  initialCapital(req.Trades, req.InitialCapital),
			DesiredPrice:    req.DesiredPrice,
			TargetReturn:    req.TargetReturnPercent,
			HedgeEntryPrice: req.HedgeEntryPrice,
			SpotEntryPrice:  req.SpotEntryPrice,
			Direction:       req.Position,
		})
		if err != nil {
			return nil, "", err
		}
		return out, report.CapitalAdjustment(out), nil
	})
}

func (s *Service) MarketData(ctx context.Context, req MarketDataRequest) Result {
	return s.run(ctx, ToolMarketData, req, func(ctx context.Context) (any, string, error) {
		symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
		if symbol == "" {
			return nil, "", errors.Wrap(domain.ErrInvalidInput, "symbol is required")
		}
		if s.gateway == nil {
			return nil, "", errors.Wrap(domain.ErrPriceUnavailable, "no market data source configured")
		}

		out := MarketData{Symbol: symbol}
		if !boolOr(req.IncludeStats, true) {
			price, err := s.gateway.FetchPrice(ctx, symbol)
			if err != nil {
				return nil, "", err
			}
			out.Price = price
			return out, report.Price(symbol, price), nil
		}

		var stats domain.MarketStats
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			price, err := s.gateway.FetchPrice(gctx, symbol)
			out.Price = price
			return err
		})
		g.Go(func() error {
			var err error
			stats, err = s.gateway.Fetch24hStats(gctx, symbol)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, "", err
		}
		// 以最新成交价为准
		stats.Price = out.Price
		out.Stats = &stats
		return out, report.Stats24h(stats), nil
	})
}

func (s *Service) ProfitPlan(ctx context.Context, req ProfitPlanRequest) Result {
	return s.run(ctx, ToolProfitPlan, req, func(ctx context.Context) (any, string, error) {
		if s.planner == nil {
			return nil, "", errors.New("strategy generator is not configured")
		}
		symbol := strings.TrimSpace(req.Symbol)
		if symbol == "" {
			symbol = "BTC"
		}
		plan, err := s.planner.Generate(ctx, planner.Request{
			Symbol:                symbol,
			CurrentPrice:          req.CurrentPrice,
			Position:              req.Position,
			Account:               req.Account,
			TargetRoiPercent:      req.TargetRoiPercent,
			TargetProfitUSD:       req.TargetProfitUSD,
			ConservativeMode:      boolOr(req.ConservativeMode, true),
			MartingaleAddPrice:    req.MartingaleAddPrice,
			MartingaleTargetPrice: req.MartingaleTargetPrice,
		})
		if err != nil {
			return nil, "", err
		}
		out := ProfitPlan{
			PlanResult:  plan,
			PriceSource: plan.CurrentStatus.PriceSource,
			PriceUsed:   plan.CurrentStatus.CurrentPrice,
		}
		return out, report.StrategyReport(plan), nil
	})
}

type handlerFunc func(ctx context.Context) (data any, summary string, err error)

// run 统一处理 panic 恢复、日志和审计记录
func (s *Service) run(ctx context.Context, tool string, args any, fn handlerFunc) (res Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("tool panicked", zap.String("tool", tool), zap.Any("panic", r), zap.Stack("stack"))
			res = failure(CodeInternal, fmt.Sprintf("internal error: %v", r))
		}
		elapsed := time.Since(start)
		fields := []zap.Field{zap.String("tool", tool), zap.Duration("elapsed", elapsed), zap.Bool("error", res.Error)}
		if res.Error {
			s.log.Warn("tool failed", append(fields, zap.String("message", res.Message))...)
		} else {
			s.log.Info("tool completed", fields...)
		}
		s.record(ctx, tool, args, res, elapsed)
	}()

	data, summary, err := fn(ctx)
	if err != nil {
		return failure(errorCode(err), errorMessage(err))
	}
	return Result{Summary: summary, Data: data}
}

func (s *Service) record(ctx context.Context, tool string, args any, res Result, elapsed time.Duration) {
	if s.journal == nil {
		return
	}
	raw, err := json.Marshal(args)
	if err != nil {
		raw = []byte("{}")
	}
	// 请求 ctx 可能已超时，审计写入单独计时
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	err = s.journal.Record(rctx, store.Invocation{
		Tool:       tool,
		Arguments:  string(raw),
		Error:      res.Error,
		Message:    res.Message,
		Summary:    res.Summary,
		DurationMS: elapsed.Milliseconds(),
	})
	if err != nil {
		s.log.Warn("record invocation failed", zap.String("tool", tool), zap.Error(err))
	}
}

func failure(code, message string) Result {
	return Result{Error: true, Code: code, Message: message, Summary: report.Error(message)}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, domain.ErrInfeasible):
		return CodeInfeasible
	case errors.Is(err, domain.ErrPriceUnavailable):
		return CodePriceUnavailable
	default:
		return CodeInternal
	}
}

func errorMessage(err error) string {
	if errors.Is(err, domain.ErrPriceUnavailable) {
		return "Unable to fetch real-time price: " + err.Error() + ". Please provide currentPrice manually."
	}
	return err.Error()
}

// initialCapital 未提供时默认为所有成交金额之和
func initialCapital(trades []domain.Trade, supplied *float64) float64 {
	if supplied != nil {
		return *supplied
	}
	return calc.TotalAmount(trades)
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
