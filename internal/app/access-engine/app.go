package accessengine

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/access-engine/internal/cache"
	"github.com/magabrotheeeer/access-engine/internal/clock"
	"github.com/magabrotheeeer/access-engine/internal/config"
	"github.com/magabrotheeeer/access-engine/internal/lib/jwt"
	"github.com/magabrotheeeer/access-engine/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/access-engine/internal/lib/sl"
	"github.com/magabrotheeeer/access-engine/internal/migrations"
	"github.com/magabrotheeeer/access-engine/internal/paymentgateway"
	accessservice "github.com/magabrotheeeer/access-engine/internal/services/access"
	ledgerservice "github.com/magabrotheeeer/access-engine/internal/services/ledger"
	promoservice "github.com/magabrotheeeer/access-engine/internal/services/promo"
	trialservice "github.com/magabrotheeeer/access-engine/internal/services/trial"
	"github.com/magabrotheeeer/access-engine/internal/storage"
)

// App инкапсулирует HTTP-сервер и ресурсы движка доступа.
type App struct {
	server   *http.Server
	logger   *slog.Logger
	db       *storage.Storage
	amqpConn *amqp.Connection
}

// New собирает приложение из конфигурации: хранилище с миграциями, кеш,
// брокер событий, клиент платёжного шлюза и все сервисы движка.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	var amqpConn *amqp.Connection
	var publisher ledgerservice.EventPublisher
	if !cfg.PublishDisabled {
		amqpConn, err = rabbitmq.Connect(cfg.RabbitMQURL, cfg.ConnectRetries, cfg.ConnectDelay)
		if err != nil {
			return nil, err
		}
		ch, err := rabbitmq.SetupChannel(amqpConn, rabbitmq.PaymentQueues())
		if err != nil {
			return nil, err
		}
		publisher = rabbitmq.NewPublisher(ch)
	}

	gatewayClient := paymentgateway.NewClient(cfg.ClientID, cfg.SecretKey, cfg.GatewayURL)
	tokenMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	clk := clock.Real{}

	accessService := accessservice.New(db, cacheRedis, logger)
	promoService := promoservice.New(db, logger)
	ledgerService := ledgerservice.New(db, cacheRedis, promoService, publisher, logger)
	trialService := trialservice.New(db, cacheRedis, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, tokenMaker, db, clk, cfg.Currency,
		accessService, promoService, ledgerService, trialService, gatewayClient)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:   srv,
		logger:   logger,
		db:       db,
		amqpConn: amqpConn,
	}, nil
}

// Run запускает HTTP-сервер и останавливает его по отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if closeErr := a.db.Close(); closeErr != nil {
			a.logger.Warn("failed to close storage", sl.Err(closeErr))
		}
		if a.amqpConn != nil {
			if closeErr := a.amqpConn.Close(); closeErr != nil {
				a.logger.Warn("failed to close amqp connection", sl.Err(closeErr))
			}
		}
		return err
	}
}
