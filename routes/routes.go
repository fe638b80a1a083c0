// SPDX-License-Identifier: GPL-3.0-only

package routes

import (
	"silently-server/commons"
	"silently-server/handlers"
	"silently-server/middlewares"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

func RegisterRoutes(e *echo.Echo, h *handlers.Handler) {
	commons.Logger.Debug("Registering api routes")

	sessionAuth := h.Auth.VerifyAuthMiddleware(middlewares.AuthMethodSession)
	sessionOrLicense := h.Auth.VerifyAuthMiddleware(middlewares.AuthMethodSession, middlewares.AuthMethodLicenseKey)
	validateLimiter := middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(
		rate.Limit(commons.GetEnvFloat("API_RATE_LIMIT", 20)),
	))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	api.GET("/health", h.HealthHandler)
	api.POST("/auth/signup", h.SignupHandler)
	api.POST("/auth/login", h.LoginHandler)
	api.POST("/auth/logout", h.LogoutHandler, sessionAuth)
	api.GET("/sessions", h.GetSessionsHandler, sessionAuth)
	api.DELETE("/sessions", h.DeleteAllSessionsHandler, sessionAuth)
	api.DELETE("/sessions/:session_id", h.DeleteSessionHandler, sessionAuth)
	api.GET("/account", h.GetAccountHandler, sessionAuth)
	api.PUT("/account", h.UpdateAccountHandler, sessionAuth)
	api.GET("/account/stats", h.GetStatsHandler, sessionAuth)
	api.GET("/plans", h.GetPlansHandler)
	api.GET("/subscription", h.GetSubscriptionHandler, sessionAuth)
	api.POST("/license", h.IssueLicenseHandler, sessionAuth)
	api.GET("/license/reveal", h.RevealLicenseHandler, sessionAuth)
	api.POST("/license/validate", h.ValidateLicenseHandler, validateLimiter)
	api.POST("/usage", h.RecordUsageHandler, sessionOrLicense)
	api.GET("/usage", h.GetUsageHistoryHandler, sessionAuth)
	api.POST("/payments/orders", h.CreateOrderHandler, sessionAuth)
	api.POST("/payments/topup/verify", h.VerifyTopUpHandler, sessionAuth)
	api.POST("/payments/plan/verify", h.VerifyPlanHandler, sessionAuth)
	api.POST("/create-checkout-session", h.CreateCheckoutSessionHandler, sessionAuth)
	api.POST("/create-portal-session", h.CreatePortalSessionHandler, sessionAuth)
	api.POST("/webhooks/stripe", h.StripeWebhookHandler)

	commons.Logger.Info("api routes registered successfully")
}
