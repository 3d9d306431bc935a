package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/hourbook/libs/config"
	"github.com/md-rashed-zaman/hourbook/libs/db"
	"github.com/md-rashed-zaman/hourbook/libs/httpx"
	"github.com/md-rashed-zaman/hourbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/hourbook/libs/otel"
	"github.com/md-rashed-zaman/hourbook/libs/outbox"
	"github.com/md-rashed-zaman/hourbook/libs/runtime"
	"github.com/md-rashed-zaman/hourbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/hourbook/services/booking-service/internal/directory"
	"github.com/md-rashed-zaman/hourbook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/hourbook/services/booking-service/internal/inbox"
	"github.com/md-rashed-zaman/hourbook/services/booking-service/internal/storage"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	config.LoadDotenv()

	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	outboxRepo := outbox.NewRepository(pool)
	repo := storage.NewAppointmentRepository(pool, outboxRepo)

	dir, err := directory.New(pool, logger, config.String("DIRECTORY_GRPC_ADDR", ""))
	if err != nil {
		logger.Error("directory init failed, using local cache", "err", err)
		dir = directory.NewPGDirectory(pool)
	}

	svc := booking.NewService(repo, dir, logger, nil)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	// Provider updates flow in over Kafka and land in the local provider
	// cache, so bookability checks and listing enrichment stay local reads.
	inboxRepo := inbox.NewRepository(pool)
	consumerCfg := kafkax.ConsumerConfig{
		Brokers: config.String("KAFKA_BROKERS", ""),
		GroupID: config.String("KAFKA_GROUP_ID", "booking-service"),
		Topic:   config.String("KAFKA_CONSUME_TOPIC", "directory.provider.updated.v1"),
	}
	providerConsumer := kafkax.NewConsumer(logger, inboxRepo, consumerCfg, func(ctx context.Context, msg kafka.Message) error {
		var payload struct {
			ProviderID string `json:"provider_id"`
			Handle     string `json:"handle"`
			AvatarURL  string `json:"avatar_url"`
			Bookable   bool   `json:"bookable"`
		}
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
			return nil
		}
		if payload.ProviderID == "" {
			logger.Error("missing provider_id on event", "topic", msg.Topic)
			return nil
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		if err := repo.UpsertProvider(ctx, tx, storage.ProviderRecord{
			ProviderID: payload.ProviderID,
			Handle:     payload.Handle,
			AvatarURL:  payload.AvatarURL,
			Bookable:   payload.Bookable,
		}); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
	go providerConsumer.Run(ctx)

	bookingHandler := handlers.NewBookingHandler(svc, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/appointments", bookingHandler.Appointments)
	mux.HandleFunc("/api/v1/appointments/cancel", bookingHandler.Cancel)
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
