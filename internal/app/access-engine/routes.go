// Package accessengine собирает приложение движка доступа и монетизации:
// хранилище, кеш, клиент шлюза, сервисы и HTTP-маршруты.
package accessengine

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/access-engine/internal/clock"
	contentread "github.com/magabrotheeeer/access-engine/internal/http/handlers/content/read"
	ordercapture "github.com/magabrotheeeer/access-engine/internal/http/handlers/order/capture"
	ordercreate "github.com/magabrotheeeer/access-engine/internal/http/handlers/order/create"
	planslist "github.com/magabrotheeeer/access-engine/internal/http/handlers/plans/list"
	promovalidate "github.com/magabrotheeeer/access-engine/internal/http/handlers/promo/validate"
	trialactivate "github.com/magabrotheeeer/access-engine/internal/http/handlers/trial/activate"
	trialstatus "github.com/magabrotheeeer/access-engine/internal/http/handlers/trial/status"
	"github.com/magabrotheeeer/access-engine/internal/http/middlewarectx"
	"github.com/magabrotheeeer/access-engine/internal/lib/jwt"
	"github.com/magabrotheeeer/access-engine/internal/paymentgateway"
	accessservice "github.com/magabrotheeeer/access-engine/internal/services/access"
	ledgerservice "github.com/magabrotheeeer/access-engine/internal/services/ledger"
	promoservice "github.com/magabrotheeeer/access-engine/internal/services/promo"
	trialservice "github.com/magabrotheeeer/access-engine/internal/services/trial"
	"github.com/magabrotheeeer/access-engine/internal/storage"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, tokenMaker jwt.Maker,
	db *storage.Storage, clk clock.Clock, currency string,
	accessService *accessservice.Service, promoService *promoservice.Service,
	ledgerService *ledgerservice.Service, trialService *trialservice.Service,
	gatewayClient *paymentgateway.Client) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Get("/plans", planslist.New(logger).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(tokenMaker, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Post("/orders", ordercreate.New(logger, accessService, promoService, gatewayClient, clk, currency).ServeHTTP)
			r.Post("/orders/capture", ordercapture.New(logger, gatewayClient, ledgerService, clk).ServeHTTP)
			r.Post("/trial/activate", trialactivate.New(logger, trialService, clk).ServeHTTP)
			r.Get("/trial/status", trialstatus.New(logger, trialService, clk).ServeHTTP)
			r.Get("/promo-codes/validate/{code}", promovalidate.New(logger, promoService, clk).ServeHTTP)
			r.Get("/content/{id}", contentread.New(logger, db, accessService, clk).ServeHTTP)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
