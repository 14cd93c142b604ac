package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"trade_assistant/internal/orchestrator"
	"trade_assistant/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
)

// InvocationLister 调用记录查询，未启用审计时为 nil
type InvocationLister interface {
	List(ctx context.Context, tool string, limit int) ([]store.Invocation, error)
}

type Handler struct {
	service *orchestrator.Service
	journal InvocationLister
	timeout time.Duration
	log     *zap.Logger
}

type toolCallRequest struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func NewRouter(service *orchestrator.Service, journal InvocationLister, timeout time.Duration, log *zap.Logger) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	h := &Handler{
		service: service,
		journal: journal,
		timeout: timeout,
		log:     log,
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", h.health)
		v1.POST("/analyze-position", h.analyzePosition)
		v1.POST("/target-prices", h.targetPrices)
		v1.POST("/capital-adjustment", h.capitalAdjustment)
		v1.POST("/profit-plan", h.profitPlan)
		v1.GET("/market/:symbol", h.marketData)
		v1.GET("/tools", h.listTools)
		v1.POST("/tools/call", h.callTool)
		v1.GET("/invocations", h.listInvocations)
	}

	return router
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"time":    time.Now().UTC(),
		"journal": h.journal != nil,
	})
}

func (h *Handler) analyzePosition(c *gin.Context) {
	var req orchestrator.AnalyzePositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	writeResult(c, h.service.AnalyzePosition(ctx, req))
}

func (h *Handler) targetPrices(c *gin.Context) {
	var req orchestrator.TargetPricesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	writeResult(c, h.service.TargetPrices(ctx, req))
}

func (h *Handler) capitalAdjustment(c *gin.Context) {
	var req orchestrator.CapitalAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	writeResult(c, h.service.CapitalAdjustment(ctx, req))
}

func (h *Handler) profitPlan(c *gin.Context) {
	var req orchestrator.ProfitPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	writeResult(c, h.service.ProfitPlan(ctx, req))
}

// marketData GET /market/BTC?stats=false
func (h *Handler) marketData(c *gin.Context) {
	req := orchestrator.MarketDataRequest{Symbol: strings.TrimSpace(c.Param("symbol"))}
	if v := c.Query("stats"); v != "" {
		include, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "stats must be a boolean"})
			return
		}
		req.IncludeStats = &include
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	writeResult(c, h.service.MarketData(ctx, req))
}

func (h *Handler) listTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": h.service.Tools()})
}

// callTool 接收 {id, name, arguments}，arguments 可以是对象或 JSON 字符串
func (h *Handler) callTool(c *gin.Context) {
	var req toolCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing tool name"})
		return
	}

	args := string(req.Arguments)
	var encoded string
	if err := json.Unmarshal(req.Arguments, &encoded); err == nil {
		args = encoded
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	resp := h.service.Dispatch(ctx, llms.ToolCall{
		ID:           req.ID,
		Type:         "function",
		FunctionCall: &llms.FunctionCall{Name: req.Name, Arguments: args},
	})
	c.JSON(http.StatusOK, resp)
}

// listInvocations 最近的工具调用记录
func (h *Handler) listInvocations(c *gin.Context) {
	if h.journal == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "invocation journal is disabled"})
		return
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	items, err := h.journal.List(ctx, strings.TrimSpace(c.Query("tool")), limit)
	if err != nil {
		h.log.Error("list invocations failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

func writeResult(c *gin.Context, res orchestrator.Result) {
	c.JSON(statusFor(res), res)
}

func statusFor(res orchestrator.Result) int {
	if !res.Error {
		return http.StatusOK
	}
	switch res.Code {
	case orchestrator.CodeInvalidInput:
		return http.StatusBadRequest
	case orchestrator.CodeInfeasible:
		return http.StatusUnprocessableEntity
	case orchestrator.CodePriceUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
