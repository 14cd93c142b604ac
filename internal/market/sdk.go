package market

import (
	"context"
	"fmt"
	"net/http"

	"trade_assistant/internal/domain"

	"github.com/adshao/go-binance/v2"
	"go.uber.org/zap"
)

// SDKClient 基于 go-binance SDK 的现货行情实现
type SDKClient struct {
	client *binance.Client
	opts   Options
}

func NewSDKClient(opts Options) *SDKClient {
	opts = opts.withDefaults()
	client := binance.NewClient("", "")
	client.BaseURL = opts.BaseURL
	client.HTTPClient = &http.Client{Timeout: opts.Timeout}
	return &SDKClient{client: client, opts: opts}
}

func (s *SDKClient) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	pair, err := NormalizeSymbol(symbol, s.opts.QuoteAsset)
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	prices, err := s.client.NewListPricesService().Symbol(pair).Do(ctx)
	if err != nil {
		s.opts.Logger.Warn("sdk fetch price failed", zap.String("symbol", pair), zap.Error(err))
		return 0, unavailable(pair, err)
	}
	for _, p := range prices {
		if p == nil || p.Symbol != pair {
			continue
		}
		price, err := positiveField(mapFields(map[string]string{"price": p.Price}), "price")
		if err != nil {
			return 0, unavailable(pair, err)
		}
		return price, nil
	}
	return 0, unavailable(pair, fmt.Errorf("symbol not found in response"))
}

func (s *SDKClient) Fetch24hStats(ctx context.Context, symbol string) (domain.MarketStats, error) {
	pair, err := NormalizeSymbol(symbol, s.opts.QuoteAsset)
	if err != nil {
		return domain.MarketStats{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	list, err := s.client.NewListPriceChangeStatsService().Symbol(pair).Do(ctx)
	if err != nil {
		s.opts.Logger.Warn("sdk fetch 24h stats failed", zap.String("symbol", pair), zap.Error(err))
		return domain.MarketStats{}, unavailable(pair, err)
	}
	for _, st := range list {
		if st == nil || st.Symbol != pair {
			continue
		}
		// SDK 字段都是字符串，复用 REST 的解析规则
		stats, err := parseStats(pair, mapFields(map[string]string{
			"lastPrice":          st.LastPrice,
			"highPrice":          st.HighPrice,
			"lowPrice":           st.LowPrice,
			"volume":             st.Volume,
			"priceChange":        st.PriceChange,
			"priceChangePercent": st.PriceChangePercent,
		}))
		if err != nil {
			return domain.MarketStats{}, unavailable(pair, err)
		}
		return stats, nil
	}
	return domain.MarketStats{}, unavailable(pair, fmt.Errorf("symbol not found in response"))
}
