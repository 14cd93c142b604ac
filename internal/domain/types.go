package domain

type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Valid reports whether d is long or short.
func (d Direction) Valid() bool {
	return d == DirectionLong || d == DirectionShort
}

// Opposite 对冲方向
func (d Direction) Opposite() Direction {
	if d == DirectionShort {
		return DirectionLong
	}
	return DirectionShort
}

// Sign is +1 for long and -1 for short.
func (d Direction) Sign() float64 {
	if d == DirectionShort {
		return -1
	}
	return 1
}

// Trade 单笔建仓记录，Amount 为投入的计价货币金额 (USD)
type Trade struct {
	Price  float64 `json:"price"`
	Amount float64 `json:"amount"`
}

// AvgPosition 由成交记录推导出的持仓
type AvgPosition struct {
	AvgPrice float64 `json:"avgPrice"`
	Qty      float64 `json:"qty"`
}

// LeveragedPosition 是交易所显示的合约持仓，Qty 已经是杠杆后的名义数量（单位：币）
type LeveragedPosition struct {
	Direction        Direction `json:"direction"`
	AvgPrice         float64   `json:"avgPrice"`
	Qty              float64   `json:"qty"`
	Leverage         float64   `json:"leverage"`
	Margin           *float64  `json:"margin,omitempty"`
	LiquidationPrice *float64  `json:"liquidationPrice,omitempty"`
}

// Account 账户资金 (USD)
type Account struct {
	AvailableBalance   float64 `json:"availableBalance"`
	TotalWalletBalance float64 `json:"totalWalletBalance"`
}

type PnLScenario struct {
	TakeProfitPnL   float64 `json:"takeProfitPnl"`
	TakeProfitAfter float64 `json:"takeProfitAfter"`
	StopLossPnL     float64 `json:"stopLossPnl"`
	StopLossAfter   float64 `json:"stopLossAfter"`
}

// PositionAnalysis answers "what if I were long vs short" in one call.
type PositionAnalysis struct {
	AvgPrice         float64           `json:"avgPrice"`
	TotalQuantity    float64           `json:"totalQuantity"`
	TotalCapital     float64           `json:"totalCapital"`
	InitialCapital   float64           `json:"initialCapital"`
	TakeProfitPrice  float64           `json:"takeProfitPrice"`
	StopLossPrice    float64           `json:"stopLossPrice"`
	Long             PnLScenario       `json:"longAnalysis"`
	Short            PnLScenario       `json:"shortAnalysis"`
	IncrementalTable []IncrementalRow  `json:"incrementalTable,omitempty"`
	Direction        Direction         `json:"position,omitempty"`
}

type IncrementalRow struct {
	Step             int     `json:"step"`
	Price            float64 `json:"price"`
	Amount           float64 `json:"amount"`
	CumulativeAmount float64 `json:"cumulativeAmount"`
	AvgPrice         float64 `json:"avgPrice"`
	TakeProfitPnL    float64 `json:"takeProfitPnl"`
	TakeProfitAfter  float64 `json:"takeProfitAfter"`
	StopLossPnL      float64 `json:"stopLossPnl"`
	StopLossAfter    float64 `json:"stopLossAfter"`
}

type PricePair struct {
	TakeProfitPrice float64 `json:"takeProfitPrice"`
	StopLossPrice   float64 `json:"stopLossPrice"`
}

type TargetPriceAnalysis struct {
	AvgPrice          float64   `json:"avgPrice"`
	Quantity          float64   `json:"quantity"`
	NetPositionAmount float64   `json:"netPositionAmount"`
	InitialCapital    float64   `json:"initialCapital"`
	Direction         Direction `json:"position"`
	ReturnFraction    float64   `json:"returnPercent"`
	PositionBased     PricePair `json:"positionBased"`
	CapitalBased      PricePair `json:"capitalBased"`
}

type HedgeOption struct {
	Direction  Direction `json:"direction"`
	Quantity   float64   `json:"quantity"`
	Amount     float64   `json:"amount"`
	EntryPrice float64   `json:"entryPrice"`
}

type SpotOption struct {
	Quantity    float64 `json:"quantity"`
	Amount      float64 `json:"amount"`
	EntryPrice  float64 `json:"entryPrice"`
	NewAvgPrice float64 `json:"newAvgPrice"`
}

// CapitalAdjustment 对冲 / 同向加仓两种补足缺口的方案，入场价等于目标价时对应方案为 nil
type CapitalAdjustment struct {
	AvgPrice     float64      `json:"avgPrice"`
	Quantity     float64      `json:"quantity"`
	CurrentPnL   float64      `json:"currentPnl"`
	TargetPnL    float64      `json:"targetPnl"`
	PnLGap       float64      `json:"pnlGap"`
	DesiredPrice float64      `json:"desiredPrice"`
	Direction    Direction    `json:"position"`
	Hedging      *HedgeOption `json:"hedging"`
	SpotAddition *SpotOption  `json:"spotAddition"`
}

// MarketStats 24 小时行情统计
type MarketStats struct {
	Symbol                string  `json:"symbol"`
	Price                 float64 `json:"price"`
	High24h               float64 `json:"high24h"`
	Low24h                float64 `json:"low24h"`
	Volume24h             float64 `json:"volume24h"`
	PriceChange24h        float64 `json:"priceChange24h"`
	PriceChangePercent24h float64 `json:"priceChangePercent24h"`
}
