// Package planner builds the menu of capital-deployment strategies that close a profit gap.
package planner

import (
	"context"
	"fmt"
	"math"
	"strings"

	"trade_assistant/internal/agent/risk"
	"trade_assistant/internal/domain"

	"github.com/pkg/errors"
)

// 固定的策略编号，保证同样的输入得到同样的输出
const (
	idLeverageAdd = 1
	idSpot        = 2
	idHedge       = 3
	idMixed       = 4
	idLimitClose  = 5
	idGridDCA     = 6
	idGridSpot    = 7
	idGridHedge   = 8
	idMartingale  = 9
)

// PriceSource supplies a live price when the caller did not provide one.
type PriceSource interface {
	FetchPrice(ctx context.Context, symbol string) (float64, error)
}

type Request struct {
	Symbol           string
	CurrentPrice     *float64
	Position         domain.LeveragedPosition
	Account          *domain.Account
	TargetRoiPercent *float64 // 基于保证金的百分比，20 表示 20%
	TargetProfitUSD  *float64
	ConservativeMode bool

	MartingaleAddPrice    *float64
	MartingaleTargetPrice *float64
}

type Generator struct {
	cfg    Config
	prices PriceSource
	risk   risk.Agent
}

// New 创建策略生成器，prices 可以为 nil（此时必须由调用方提供现价）
func New(cfg Config, prices PriceSource, riskAgent risk.Agent) *Generator {
	if riskAgent == nil {
		riskAgent = risk.New()
	}
	return &Generator{cfg: cfg.withDefaults(), prices: prices, risk: riskAgent}
}

func (g *Generator) Generate(ctx context.Context, req Request) (domain.PlanResult, error) {
	pos, err := g.normalizePosition(req.Position)
	if err != nil {
		return domain.PlanResult{}, err
	}
	if err := validateAccount(req.Account); err != nil {
		return domain.PlanResult{}, err
	}
	symbol := strings.TrimSpace(req.Symbol)
	if symbol == "" {
		symbol = "BTC"
	}

	price, source, err := g.resolvePrice(ctx, symbol, req.CurrentPrice)
	if err != nil {
		return domain.PlanResult{}, err
	}

	notional := pos.Qty * pos.AvgPrice
	marginUsed := notional / pos.Leverage

	targetProfit, description, err := resolveTarget(marginUsed, req.TargetRoiPercent, req.TargetProfitUSD)
	if err != nil {
		return domain.PlanResult{}, err
	}

	pnl := (price - pos.AvgPrice) * pos.Qty * pos.Direction.Sign()
	gap := targetProfit - pnl

	status := domain.CurrentStatus{
		Symbol:            symbol,
		Direction:         pos.Direction,
		AvgPrice:          pos.AvgPrice,
		Qty:               pos.Qty,
		Leverage:          pos.Leverage,
		CurrentPrice:      price,
		PriceSource:       source,
		NotionalValue:     notional,
		MarginUsed:        marginUsed,
		ReportedMargin:    pos.Margin,
		CurrentPnL:        pnl,
		CurrentROI:        pnl / marginUsed,
		TargetProfit:      targetProfit,
		TargetRoiPercent:  req.TargetRoiPercent,
		TargetDescription: description,
		Gap:               gap,
		LiquidationPrice:  pos.LiquidationPrice,
		AccountKnown:      req.Account != nil,
		ConservativeMode:  req.ConservativeMode,
	}

	if gap <= 0 || pnl >= g.cfg.NearTargetRatio*targetProfit {
		return g.closeOut(status, pos, targetProfit, gap <= 0), nil
	}

	b := &builder{
		cfg:          g.cfg,
		risk:         g.risk,
		pos:          pos,
		account:      req.Account,
		price:        price,
		marginUsed:   marginUsed,
		targetProfit: targetProfit,
		gap:          gap,
	}
	b.addPrice = price
	if req.ConservativeMode {
		b.addPrice = price * (1 - pos.Direction.Sign()*g.cfg.ConservativeOffset)
	}
	b.recoveryTarget = price * (1 + pos.Direction.Sign()*g.cfg.RecoveryMove)
	b.adverseTarget = price * (1 - pos.Direction.Sign()*g.cfg.AdverseMove)

	strategies := make([]domain.Strategy, 0, 8)
	levAdd, levOK := b.leverageAdd()
	if levOK {
		strategies = append(strategies, levAdd)
	}
	if s, ok := b.spot(); ok {
		strategies = append(strategies, s)
	}
	hedge, hedgeOK := b.hedge()
	if hedgeOK {
		strategies = append(strategies, hedge)
	}
	if levOK && hedgeOK {
		strategies = append(strategies, b.mixed(levAdd, hedge))
	}
	if s, ok := b.gridDCA(); ok {
		strategies = append(strategies, s)
	}
	if s, ok := b.gridSpot(); ok {
		strategies = append(strategies, s)
	}
	if s, ok := b.gridHedge(); ok {
		strategies = append(strategies, s)
	}
	if s, ok := b.martingale(req.MartingaleAddPrice, req.MartingaleTargetPrice); ok {
		strategies = append(strategies, s)
	}
	if len(strategies) == 0 {
		return domain.PlanResult{}, errors.Wrapf(domain.ErrInfeasible, "no strategy closes the gap of %g at price %g", gap, price)
	}

	return domain.PlanResult{
		Status:        domain.PlanActive,
		CurrentStatus: status,
		Strategies:    strategies,
	}, nil
}

func (g *Generator) normalizePosition(pos domain.LeveragedPosition) (domain.LeveragedPosition, error) {
	if !pos.Direction.Valid() {
		return pos, errors.Wrapf(domain.ErrInvalidInput, "position direction must be long or short, got %q", pos.Direction)
	}
	if !positive(pos.AvgPrice) {
		return pos, errors.Wrap(domain.ErrInvalidInput, "position avgPrice must be positive")
	}
	if !positive(pos.Qty) {
		return pos, errors.Wrap(domain.ErrInvalidInput, "position qty must be positive")
	}
	if pos.Leverage == 0 {
		pos.Leverage = g.cfg.DefaultLeverage
	}
	if !positive(pos.Leverage) {
		return pos, errors.Wrap(domain.ErrInvalidInput, "position leverage must be positive")
	}
	return pos, nil
}

func validateAccount(acct *domain.Account) error {
	if acct == nil {
		return nil
	}
	if !finite(acct.AvailableBalance) || acct.AvailableBalance < 0 ||
		!finite(acct.TotalWalletBalance) || acct.TotalWalletBalance < 0 {
		return errors.Wrap(domain.ErrInvalidInput, "account balances must be non-negative")
	}
	return nil
}

func (g *Generator) resolvePrice(ctx context.Context, symbol string, supplied *float64) (float64, domain.PriceSource, error) {
	if supplied != nil {
		if !positive(*supplied) {
			return 0, "", errors.Wrap(domain.ErrInvalidInput, "currentPrice must be positive")
		}
		return *supplied, domain.PriceFromUser, nil
	}
	if g.prices == nil {
		return 0, "", errors.Wrap(domain.ErrPriceUnavailable, "no market data source configured; please supply currentPrice")
	}
	price, err := g.prices.FetchPrice(ctx, symbol)
	if err != nil {
		if errors.Is(err, domain.ErrPriceUnavailable) {
			return 0, "", err
		}
		return 0, "", errors.Wrapf(domain.ErrPriceUnavailable, "fetch %s: %v", symbol, err)
	}
	if !positive(price) {
		return 0, "", errors.Wrapf(domain.ErrPriceUnavailable, "fetch %s: non-positive price", symbol)
	}
	return price, domain.PriceFromLive, nil
}

// resolveTarget 百分比目标永远以保证金为基数
func resolveTarget(marginUsed float64, roiPercent, profitUSD *float64) (float64, string, error) {
	if roiPercent != nil {
		if !finite(*roiPercent) {
			return 0, "", errors.Wrap(domain.ErrInvalidInput, "targetRoiPercent must be a finite number")
		}
		target := marginUsed * *roiPercent / 100
		return target, fmt.Sprintf("%s%% ROI on margin", trimFloat(*roiPercent)), nil
	}
	if profitUSD != nil {
		if !finite(*profitUSD) {
			return 0, "", errors.Wrap(domain.ErrInvalidInput, "targetProfitUSD must be a finite number")
		}
		return *profitUSD, "fixed profit target", nil
	}
	return 0, "", errors.Wrap(domain.ErrInvalidInput, "either targetRoiPercent or targetProfitUSD is required")
}

func (g *Generator) closeOut(status domain.CurrentStatus, pos domain.LeveragedPosition, targetProfit float64, met bool) domain.PlanResult {
	closePrice := pos.AvgPrice + pos.Direction.Sign()*targetProfit/pos.Qty

	s := domain.Strategy{
		ID:          idLimitClose,
		Type:        domain.StrategyLimitClose,
		Action:      "Limit Close",
		Direction:   pos.Direction,
		Quantity:    pos.Qty,
		Price:       closePrice,
		TargetPrice: &closePrice,
		Evaluation: domain.RiskEvaluation{
			Status: domain.RiskRecommended,
			Label:  "✅ Best option",
			Reason: "Lock in the profit.",
		},
	}
	result := domain.PlanResult{CurrentStatus: status}
	if met {
		result.Status = domain.PlanTargetMet
		s.Title = "🎉 Target reached"
		s.Reason = "The target is already covered; take profit now. No additional capital required."
	} else {
		result.Status = domain.PlanNearTarget
		s.Title = "🎯 Profit close to target"
		s.Reason = fmt.Sprintf("Current profit has reached %s%% of the target; place a limit exit order. No additional capital required.",
			trimFloat(g.cfg.NearTargetRatio*100))
	}
	result.Strategies = []domain.Strategy{s}
	return result
}

func positive(v float64) bool {
	return finite(v) && v > 0
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func trimFloat(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}
