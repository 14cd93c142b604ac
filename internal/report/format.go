// Package report renders analysis results as markdown. Every function is pure.
package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// Currency formats v as $1,234.56 (negative values as -$1,234.56).
func Currency(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	out := commaFixed(v)
	if strings.HasPrefix(out, "-") {
		return "-$" + out[1:]
	}
	return "$" + out
}

// commaFixed 四舍五入到两位小数并加千分位，12345.678 -> "12,345.68"
func commaFixed(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	d := decimal.NewFromFloat(v).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	fixed := d.StringFixed(2)
	return sign + humanize.Comma(d.IntPart()) + fixed[strings.IndexByte(fixed, '.'):]
}

// Qty 币数量保留 6 位小数
func Qty(v float64) string {
	return fmt.Sprintf("%.6f", v)
}

// Percent formats a fraction (0.1 -> 10.00%).
func Percent(fraction float64) string {
	return fmt.Sprintf("%.2f%%", fraction*100)
}

func signedQty(v float64) string {
	if v >= 0 {
		return "+" + Qty(v)
	}
	return Qty(v)
}

func pnlLabel(pnl float64) string {
	if pnl >= 0 {
		return "Profit"
	}
	return "Loss"
}

func leverageText(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".") + "x"
}

// baseAsset "BTCUSDT" -> "BTC"
func baseAsset(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	for _, quote := range []string{"USDT", "USDC", "FDUSD", "BUSD", "USD"} {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return strings.TrimRight(strings.TrimSuffix(s, quote), "/-_")
		}
	}
	if s == "" {
		return "BTC"
	}
	return s
}
