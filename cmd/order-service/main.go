// cmd/order-service/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"bazaar/internal/pkg/config"
	"bazaar/internal/pkg/httpclient"
	"bazaar/internal/pkg/logger"
	"bazaar/internal/pkg/mq"
	"bazaar/internal/pkg/redis"
	"bazaar/internal/pkg/resilience"
	"bazaar/internal/pkg/tracing"
	orderapp "bazaar/internal/service/order/application"
	orderinfra "bazaar/internal/service/order/infrastructure"
	orderadapter "bazaar/internal/service/order/infrastructure/adapter"
	orderhttp "bazaar/internal/service/order/interfaces"
	recapp "bazaar/internal/service/recommendation/application"
	recinfra "bazaar/internal/service/recommendation/infrastructure"
	recadapter "bazaar/internal/service/recommendation/infrastructure/adapter"
	rechttp "bazaar/internal/service/recommendation/interfaces"
)

func main() {
	cfg, err := config.Load(os.Getenv("BAZAAR_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(cfg.App.Name, cfg.App.LogLevel, cfg.App.Pretty)

	// 1. Tracer
	tp, err := tracing.InitTracerProvider(cfg.App.Name, cfg.Jaeger.Endpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}
	tracer := otel.Tracer(cfg.App.Name)

	// 2. 基础设施连接
	db, err := gorm.Open(gormmysql.Open(cfg.MySQL.DSN), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mysql")
	}
	if err := orderinfra.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate order tables")
	}
	if err := recinfra.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate recommendation tables")
	}

	ctx := context.Background()
	redisClient, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	kafkaWriter := mq.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)

	// 3. 组装服务
	recService := recapp.NewRecommendationService(
		recinfra.NewGormInteractionRepository(db),
		recadapter.NewResultCacheRedisAdapter(redisClient),
		tracer,
	)

	httpClient := httpclient.NewClient(tracer)
	orderService := orderapp.NewOrderApplicationService(
		orderinfra.NewGormUnitOfWork(db),
		orderadapter.NewPaymentHTTPAdapter(httpClient, cfg.Payment.BaseURL),
		orderadapter.NewNotificationKafkaAdapter(kafkaWriter),
		tracer,
		orderapp.WithStockCache(orderadapter.NewStockCacheRedisAdapter(redisClient)),
		orderapp.WithInteractionRecorder(recService),
		orderapp.WithRetryOptions(resilience.RetryOptions{
			MaxAttempts: cfg.Resilience.MaxAttempts,
			BaseDelay:   cfg.Resilience.BaseDelay,
			MaxDelay:    cfg.Resilience.MaxDelay,
		}),
		orderapp.WithBreakerThresholds(cfg.Resilience.FailureThreshold, cfg.Resilience.ResetTimeout),
	)

	// 4. HTTP 路由
	mux := http.NewServeMux()
	orderhttp.NewOrderHandler(orderService).RegisterRoutes(mux)
	rechttp.NewRecommendationHandler(recService).RegisterRoutes(mux)

	server := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.App.Port),
		Handler: mux,
	}
	go func() {
		log.Info().Int("port", cfg.App.Port).Msgf("%s listening", cfg.App.Name)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// 5. 优雅关停，按后进先出的顺序清理
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error shutting down http server")
	}
	if err := kafkaWriter.Close(); err != nil {
		log.Error().Err(err).Msg("error closing kafka writer")
	}
	if err := redisClient.Close(); err != nil {
		log.Error().Err(err).Msg("error closing redis client")
	}
	// 关闭 Tracer Provider，确保缓冲中的 span 全部导出
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error shutting down tracer provider")
	}
	log.Info().Msg("shutdown complete")
}
