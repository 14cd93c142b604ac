package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config centralizes runtime settings for the strategy service.
type Config struct {
	HTTPAddr          string
	RequestTimeoutSec int
	LogLevel          string

	// 行情源: "rest"、"sdk" 或 "fallback"（先 REST 后 SDK）
	MarketProvider   string
	MarketBaseURL    string
	MarketQuoteAsset string
	MarketTimeoutMS  int

	// 策略参数
	DefaultLeverage        float64
	PlanRecoveryMove       float64
	PlanAdverseMove        float64
	PlanConservativeOffset float64
	PlanNearTargetRatio    float64

	// 调用审计
	JournalEnabled          bool
	SQLiteDSN               string
	JournalRetentionHours   int
	JournalPruneIntervalSec int
}

func Load() Config {
	// Auto-load .env file if present (won't override existing env vars)
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	return Config{
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		RequestTimeoutSec: getEnvInt("REQUEST_TIMEOUT_SEC", 15),
		LogLevel:          getEnv("LOG_LEVEL", "info"),

		MarketProvider:   getEnv("MARKET_PROVIDER", "fallback"),
		MarketBaseURL:    getEnv("MARKET_BASE_URL", "https://api.binance.com"),
		MarketQuoteAsset: getEnv("MARKET_QUOTE_ASSET", "USDT"),
		MarketTimeoutMS:  getEnvInt("MARKET_TIMEOUT_MS", 5000),

		DefaultLeverage:        getEnvFloat("DEFAULT_LEVERAGE", 10),
		PlanRecoveryMove:       getEnvFloat("PLAN_RECOVERY_MOVE", 0.015),
		PlanAdverseMove:        getEnvFloat("PLAN_ADVERSE_MOVE", 0.02),
		PlanConservativeOffset: getEnvFloat("PLAN_CONSERVATIVE_OFFSET", 0.005),
		PlanNearTargetRatio:    getEnvFloat("PLAN_NEAR_TARGET_RATIO", 0.85),

		JournalEnabled:          getEnvBool("JOURNAL_ENABLED", true),
		SQLiteDSN:               getEnv("SQLITE_DSN", "file:./trade_assistant.db?_pragma=busy_timeout(5000)"),
		JournalRetentionHours:   getEnvInt("JOURNAL_RETENTION_HOURS", 168),
		JournalPruneIntervalSec: getEnvInt("JOURNAL_PRUNE_INTERVAL_SEC", 3600),
	}
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

func (c Config) MarketTimeout() time.Duration {
	return time.Duration(c.MarketTimeoutMS) * time.Millisecond
}

func (c Config) JournalRetention() time.Duration {
	return time.Duration(c.JournalRetentionHours) * time.Hour
}

func (c Config) JournalPruneInterval() time.Duration {
	return time.Duration(c.JournalPruneIntervalSec) * time.Second
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		parsed, err := strconv.Atoi(v)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
