package domain

type StrategyType string

const (
	StrategyLeverageAdd StrategyType = "leverage_add"
	StrategySpotBuy     StrategyType = "spot_buy"
	StrategyHedge       StrategyType = "hedge"
	StrategyMixed       StrategyType = "mixed"
	StrategyGridDCA     StrategyType = "grid_dca"
	StrategyGridSpot    StrategyType = "grid_spot"
	StrategyGridHedge   StrategyType = "grid_hedge"
	StrategyMartingale  StrategyType = "martingale"
	StrategyLimitClose  StrategyType = "limit_close"
)

// IsGrid 分批建仓类策略
func (t StrategyType) IsGrid() bool {
	return t == StrategyGridDCA || t == StrategyGridSpot || t == StrategyGridHedge
}

// LeverageFamily reports whether the strategy adds leveraged size in the position direction,
// which makes it subject to the liquidation proximity check.
func (t StrategyType) LeverageFamily() bool {
	return t == StrategyLeverageAdd || t == StrategyGridDCA || t == StrategyMartingale
}

type RiskStatus string

const (
	RiskRecommended       RiskStatus = "RECOMMENDED"
	RiskHigh              RiskStatus = "HIGH_RISK"
	RiskInsufficientFunds RiskStatus = "INSUFFICIENT_FUNDS"
)

type RiskEvaluation struct {
	Status RiskStatus `json:"status"`
	Label  string     `json:"label"`
	Reason string     `json:"reason"`
	// Utilization 是 (已用保证金 + 新增保证金) / 钱包余额，账户未知时为 nil
	Utilization *float64 `json:"utilization,omitempty"`
}

// GridOrder 网格/金字塔的一档
type GridOrder struct {
	Level  int     `json:"level"`
	Price  float64 `json:"price"`
	Qty    float64 `json:"qty"`
	Weight float64 `json:"weight"`
	Margin float64 `json:"margin"`
	Note   string  `json:"note"`
}

// Leg 组合策略中的一条腿
type Leg struct {
	Type      StrategyType `json:"type"`
	Action    string       `json:"action"`
	Direction Direction    `json:"direction"`
	Quantity  float64      `json:"quantity"`
	Price     float64      `json:"price"`
	Margin    float64      `json:"margin"`
}

// Strategy 是一个候选方案。公共字段所有类型都有，GridOrders 仅网格类，Composition 仅 mixed。
type Strategy struct {
	ID                  int            `json:"id"`
	Title               string         `json:"title"`
	Type                StrategyType   `json:"type"`
	Action              string         `json:"action"`
	Direction           Direction      `json:"direction"`
	Quantity            float64        `json:"quantity"`
	Price               float64        `json:"price"`
	MarginRequired      float64        `json:"marginRequired"`
	NotionalValue       float64        `json:"notionalValue"`
	LeverageUsed        float64        `json:"leverageUsed"`
	TargetPrice         *float64       `json:"targetPrice,omitempty"`
	NewAvgPrice         *float64       `json:"newAvgPrice,omitempty"`
	NewLiquidationPrice *float64       `json:"newLiquidationPrice,omitempty"`
	LiquidationNote     string         `json:"liquidationNote,omitempty"`
	StopLossPrice       *float64       `json:"stopLossPrice,omitempty"`
	GridOrders          []GridOrder    `json:"gridOrders,omitempty"`
	Composition         []Leg          `json:"composition,omitempty"`
	Reason              string         `json:"reason"`
	Warning             string         `json:"warning,omitempty"`
	Evaluation          RiskEvaluation `json:"evaluation"`
}

type PlanStatus string

const (
	PlanActive     PlanStatus = "ACTIVE"
	PlanTargetMet  PlanStatus = "TARGET_MET"
	PlanNearTarget PlanStatus = "NEAR_TARGET"
)

type PriceSource string

const (
	PriceFromUser PriceSource = "user_input"
	PriceFromLive PriceSource = "live"
)

// CurrentStatus 当前持仓诊断
type CurrentStatus struct {
	Symbol            string      `json:"symbol"`
	Direction         Direction   `json:"direction"`
	AvgPrice          float64     `json:"avgPrice"`
	Qty               float64     `json:"qty"`
	Leverage          float64     `json:"leverage"`
	CurrentPrice      float64     `json:"currentPrice"`
	PriceSource       PriceSource `json:"priceSource"`
	NotionalValue     float64     `json:"notionalValue"`
	MarginUsed        float64     `json:"marginUsed"`
	ReportedMargin    *float64    `json:"reportedMargin,omitempty"`
	CurrentPnL        float64     `json:"currentPnl"`
	CurrentROI        float64     `json:"currentRoi"`
	TargetProfit      float64     `json:"targetProfit"`
	TargetRoiPercent  *float64    `json:"targetRoiPercent,omitempty"`
	TargetDescription string      `json:"targetDescription"`
	Gap               float64     `json:"gap"`
	LiquidationPrice  *float64    `json:"liquidationPrice,omitempty"`
	AccountKnown      bool        `json:"accountKnown"`
	ConservativeMode  bool        `json:"conservativeMode"`
}

type PlanResult struct {
	Status        PlanStatus    `json:"status"`
	CurrentStatus CurrentStatus `json:"currentStatus"`
	Strategies    []Strategy    `json:"strategies"`
}

// 无数值强平价时的说明
const (
	LiquidationNone    = "none (spot)"
	LiquidationLocked  = "locked"
	LiquidationDynamic = "dynamic"
)
