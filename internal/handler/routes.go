package handler

import (
	"net/http"

	"github.com/dafibh/brokewise/brokewise-backend/internal/middleware"
	"github.com/labstack/echo/v4"
)

// Handlers groups every HTTP handler the router serves
type Handlers struct {
	Group        *GroupHandler
	Settlement   *SettlementHandler
	ExchangeRate *ExchangeRateHandler
	Health       *HealthHandler
	WebSocket    *WebSocketHandler
	Metrics      http.Handler
}

// RegisterRoutes sets up all routes
func RegisterRoutes(e *echo.Echo, rateLimiter *middleware.RateLimiter, h Handlers) {
	limit := middleware.RateLimitMiddleware(rateLimiter)

	// Shareable group links
	e.GET("/", h.Group.Index)
	e.GET("/g/:groupId", h.Group.OpenGroup)

	// Group API
	api := e.Group("/api")
	api.GET("/g/:groupId", h.Group.GetGroup)
	api.POST("/g/:groupId", h.Group.SaveGroup)
	api.GET("/g/:groupId/export", h.Group.ExportGroup)

	// Rate-backed endpoints (rate limited per client)
	api.GET("/exchange-rate", h.ExchangeRate.GetRate, limit)
	e.POST("/calculate", h.Settlement.Calculate, limit)

	// Live group updates
	e.GET("/ws/g/:groupId", h.WebSocket.HandleWS)

	// Operations
	e.GET("/health", h.Health.Check)
	if h.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.Metrics))
	}
}
