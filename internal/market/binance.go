package market

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"trade_assistant/internal/domain"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Options 行情客户端配置
type Options struct {
	BaseURL    string
	QuoteAsset string
	Timeout    time.Duration
	Logger     *zap.Logger
}

func (o Options) withDefaults() Options {
	if strings.TrimSpace(o.BaseURL) == "" {
		o.BaseURL = DefaultBaseURL
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if o.QuoteAsset == "" {
		o.QuoteAsset = DefaultQuoteAsset
	}
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Client fetches spot tickers from the Binance public REST API (no API key required).
type Client struct {
	http *http.Client
	opts Options
}

func NewClient(opts Options) *Client {
	opts = opts.withDefaults()
	return &Client{
		http: &http.Client{Timeout: opts.Timeout},
		opts: opts,
	}
}

func (c *Client) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	pair, err := NormalizeSymbol(symbol, c.opts.QuoteAsset)
	if err != nil {
		return 0, err
	}
	body, err := c.get(ctx, "/api/v3/ticker/price", pair)
	if err != nil {
		c.opts.Logger.Warn("fetch price failed", zap.String("symbol", pair), zap.Error(err))
		return 0, unavailable(pair, err)
	}
	price, err := positiveField(jsonFields(body), "price")
	if err != nil {
		c.opts.Logger.Warn("bad price payload", zap.String("symbol", pair), zap.Error(err))
		return 0, unavailable(pair, err)
	}
	return price, nil
}

func (c *Client) Fetch24hStats(ctx context.Context, symbol string) (domain.MarketStats, error) {
	pair, err := NormalizeSymbol(symbol, c.opts.QuoteAsset)
	if err != nil {
		return domain.MarketStats{}, err
	}
	body, err := c.get(ctx, "/api/v3/ticker/24hr", pair)
	if err != nil {
		c.opts.Logger.Warn("fetch 24h stats failed", zap.String("symbol", pair), zap.Error(err))
		return domain.MarketStats{}, unavailable(pair, err)
	}
	stats, err := parseStats(pair, jsonFields(body))
	if err != nil {
		c.opts.Logger.Warn("bad 24h stats payload", zap.String("symbol", pair), zap.Error(err))
		return domain.MarketStats{}, unavailable(pair, err)
	}
	return stats, nil
}

func (c *Client) get(ctx context.Context, path, symbol string) (gjson.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	endpoint := c.opts.BaseURL + path + "?" + url.Values{"symbol": {symbol}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return gjson.Result{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return gjson.Result{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("binance api %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, fmt.Errorf("malformed json response")
	}
	return gjson.ParseBytes(raw), nil
}

// fieldLookup 返回原始字段文本以及字段是否存在
type fieldLookup func(key string) (string, bool)

func jsonFields(body gjson.Result) fieldLookup {
	return func(key string) (string, bool) {
		f := body.Get(key)
		return f.String(), f.Exists()
	}
}

func mapFields(m map[string]string) fieldLookup {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// parseStats 解析 24hr ticker，字符串和数字两种格式都接受
func parseStats(pair string, get fieldLookup) (domain.MarketStats, error) {
	price, err := positiveField(get, "lastPrice")
	if err != nil {
		return domain.MarketStats{}, err
	}
	stats := domain.MarketStats{Symbol: pair, Price: price}
	fields := []struct {
		key string
		dst *float64
	}{
		{"highPrice", &stats.High24h},
		{"lowPrice", &stats.Low24h},
		{"volume", &stats.Volume24h},
		{"priceChange", &stats.PriceChange24h},
		{"priceChangePercent", &stats.PriceChangePercent24h},
	}
	for _, f := range fields {
		v, err := numberField(get, f.key)
		if err != nil {
			return domain.MarketStats{}, err
		}
		*f.dst = v
	}
	return stats, nil
}

func numberField(get fieldLookup, key string) (float64, error) {
	raw, ok := get(key)
	if !ok {
		return 0, fmt.Errorf("missing field %q", key)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", key, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("field %q is not finite", key)
	}
	return v, nil
}

func positiveField(get fieldLookup, key string) (float64, error) {
	v, err := numberField(get, key)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("field %q must be positive, got %v", key, v)
	}
	return v, nil
}
