package market

import (
	"context"
	"strings"

	"trade_assistant/internal/domain"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultQuoteAsset = "USDT"
	DefaultBaseURL    = "https://api.binance.com"
)

// Gateway is the minimal market-data contract. Every failure is reported as domain.ErrPriceUnavailable.
type Gateway interface {
	FetchPrice(ctx context.Context, symbol string) (float64, error)
	Fetch24hStats(ctx context.Context, symbol string) (domain.MarketStats, error)
}

// NormalizeSymbol "btc/usdt" -> "BTCUSDT", "BTC" -> "BTCUSDT"
func NormalizeSymbol(symbol, quote string) (string, error) {
	if quote == "" {
		quote = DefaultQuoteAsset
	}
	quote = strings.ToUpper(quote)

	var b strings.Builder
	for _, r := range strings.ToUpper(symbol) {
		switch r {
		case '/', '-', '_', ' ', '\t':
			continue
		}
		b.WriteRune(r)
	}
	out := b.String()
	if out == "" {
		return "", errors.Wrap(domain.ErrInvalidInput, "symbol is required")
	}
	if !strings.HasSuffix(out, quote) || out == quote {
		out += quote
	}
	return out, nil
}

const (
	ProviderREST     = "rest"
	ProviderSDK      = "sdk"
	ProviderFallback = "fallback"
)

// NewGateway 按 provider 选择行情源，fallback 先走 REST 再走 SDK
func NewGateway(provider string, opts Options) (Gateway, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case ProviderREST:
		return NewClient(opts), nil
	case ProviderSDK:
		return NewSDKClient(opts), nil
	case ProviderFallback, "":
		return NewFallback(opts.Logger, NewClient(opts), NewSDKClient(opts)), nil
	default:
		return nil, errors.Wrapf(domain.ErrInvalidInput, "unknown market provider %q", provider)
	}
}

// Fallback tries each gateway in order and returns the first success.
type Fallback struct {
	gateways []Gateway
	log      *zap.Logger
}

func NewFallback(log *zap.Logger, gateways ...Gateway) *Fallback {
	if log == nil {
		log = zap.NewNop()
	}
	return &Fallback{gateways: gateways, log: log}
}

func (f *Fallback) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	var lastErr error
	for i, g := range f.gateways {
		price, err := g.FetchPrice(ctx, symbol)
		if err == nil {
			return price, nil
		}
		lastErr = err
		f.log.Warn("price source failed, trying next", zap.Int("source", i), zap.String("symbol", symbol), zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}
	return 0, unavailable(symbol, lastErr)
}

func (f *Fallback) Fetch24hStats(ctx context.Context, symbol string) (domain.MarketStats, error) {
	var lastErr error
	for i, g := range f.gateways {
		stats, err := g.Fetch24hStats(ctx, symbol)
		if err == nil {
			return stats, nil
		}
		lastErr = err
		f.log.Warn("stats source failed, trying next", zap.Int("source", i), zap.String("symbol", symbol), zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}
	return domain.MarketStats{}, unavailable(symbol, lastErr)
}

func unavailable(symbol string, err error) error {
	if err == nil {
		return errors.Wrapf(domain.ErrPriceUnavailable, "%s: no market data source configured", symbol)
	}
	if errors.Is(err, domain.ErrPriceUnavailable) || errors.Is(err, domain.ErrInvalidInput) {
		return err
	}
	return errors.Wrapf(domain.ErrPriceUnavailable, "%s: %v", symbol, err)
}
