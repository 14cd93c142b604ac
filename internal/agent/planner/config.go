package planner

// Config holds the generator tunables. All moves are fractions of the current price.
type Config struct {
	DefaultLeverage    float64
	RecoveryMove       float64 // 反弹目标
	AdverseMove        float64 // 对冲目标
	ConservativeOffset float64 // 保守模式加仓价优惠
	NearTargetRatio    float64
	LiquidationBuffer  float64 // 估算强平距离时扣除的维持保证金

	StopLossLeverage float64
	StopLossSpot     float64
	StopLossHedge    float64
	StopLossMixed    float64
}

func DefaultConfig() Config {
	return Config{
		DefaultLeverage:    10,
		RecoveryMove:       0.015,
		AdverseMove:        0.02,
		ConservativeOffset: 0.005,
		NearTargetRatio:    0.85,
		LiquidationBuffer:  0.005,
		StopLossLeverage:   0.025,
		StopLossSpot:       0.05,
		StopLossHedge:      0.02,
		StopLossMixed:      0.03,
	}
}

// withDefaults 未设置（<=0）的字段使用默认值
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	fill := func(v *float64, def float64) {
		if *v <= 0 {
			*v = def
		}
	}
	fill(&c.DefaultLeverage, d.DefaultLeverage)
	fill(&c.RecoveryMove, d.RecoveryMove)
	fill(&c.AdverseMove, d.AdverseMove)
	fill(&c.ConservativeOffset, d.ConservativeOffset)
	fill(&c.NearTargetRatio, d.NearTargetRatio)
	fill(&c.LiquidationBuffer, d.LiquidationBuffer)
	fill(&c.StopLossLeverage, d.StopLossLeverage)
	fill(&c.StopLossSpot, d.StopLossSpot)
	fill(&c.StopLossHedge, d.StopLossHedge)
	fill(&c.StopLossMixed, d.StopLossMixed)
	return c
}
