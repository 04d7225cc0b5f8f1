/**
 * @description
 * This is the main entry point for the membership-service. It is responsible for
 * initializing all components of the service, including configuration, database
 * connection, the WebDAV document store, message brokers, repositories, the core
 * application service, and the HTTP server. It wires everything together and
 * starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/go-chi/chi/v5: For HTTP routing.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/robfig/cron/v3: Scheduled dividend payout reminders.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/rabbitmq, pkg/webdavclient: Clients for RabbitMQ and the WebDAV file service.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/coopsuite/membership-service/internal/api"
	"github.com/coopsuite/membership-service/internal/app"
	"github.com/coopsuite/membership-service/internal/config"
	"github.com/coopsuite/membership-service/internal/store"
	coopamqp "github.com/coopsuite/membership-service/pkg/rabbitmq"
	"github.com/coopsuite/membership-service/pkg/webdavclient"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}

	log.Printf("level=info component=bootstrap msg=\"starting membership-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer to publish membership events. A broker
	// outage at boot degrades to a no-op publisher instead of crashing.
	var producer coopamqp.Publisher
	eventProducer, err := coopamqp.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		producer = &coopamqp.EventProducerFallback{}
	} else {
		defer eventProducer.Close()
		producer = eventProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Initialize the WebDAV client for member document storage.
	documentStore := webdavclient.NewClient(cfg.WebDAVURL, cfg.WebDAVUsername, cfg.WebDAVPassword)

	var redisClient *redis.Client
	if cfg.UploadRateLimitPerMinute > 0 || cfg.TransferRateLimitPerMinute > 0 {
		if strings.TrimSpace(cfg.RedisURL) == "" {
			log.Println("level=warn component=bootstrap msg=\"redis url missing; upload rate limiting disabled\" env=REDIS_URL")
		} else {
			redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
			if parseErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; upload rate limiting disabled\" err=%v", parseErr)
			} else {
				redisClient = redis.NewClient(redisOptions)
				pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancelPing()
				if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
					log.Printf("level=warn component=bootstrap msg=\"redis ping failed; upload rate limiting disabled\" err=%v", pingErr)
					redisClient.Close()
					redisClient = nil
				} else {
					defer redisClient.Close()
					log.Println("level=info component=bootstrap msg=\"redis connected\"")
				}
			}
		}
	}

	// Initialize the data access layer (repository). The Postgres repository
	// also serves certificate numbers from a database sequence.
	repository := store.NewPostgresRepository(dbpool)

	// Ensure required tables and the certificate sequence exist (idempotent).
	if err := repository.EnsureSchema(context.Background()); err != nil {
		log.Printf("level=warn component=bootstrap msg=\"schema bootstrap failed (may already exist)\" err=%v", err)
	}

	// Initialize the core application service with its dependencies.
	membershipService := app.NewService(repository, repository, documentStore, producer)
	membershipService.SetDefaultNoticePeriod(cfg.DefaultNoticePeriodMonths)
	if redisClient != nil {
		membershipService.SetRateLimiter(
			app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix),
			cfg.UploadRateLimitPerMinute,
			cfg.TransferRateLimitPerMinute,
		)
	}

	// Initialize the API handlers.
	handlers := api.NewHandlers(membershipService)

	// Set up the HTTP router and define the API routes.
	router := chi.NewRouter()
	router.Mount("/", api.MembershipRoutes(handlers, cfg.JWKSURL))

	// Wire up the payment import consumer: bank-export jobs publish
	// payment.received events which become payment ledger rows.
	paymentConsumer := app.NewPaymentEventConsumer(membershipService)

	rabbitConsumer, err := coopamqp.NewConsumer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq consumer unavailable; payment import disabled\" err=%v", err)
	} else {
		defer rabbitConsumer.Close()
		paymentBindings := map[string]func([]byte) bool{
			"payment.received": paymentConsumer.HandleMessage,
		}
		if err := rabbitConsumer.ConsumeWithBindings(coopamqp.EventsExchange, cfg.PaymentEventQueue, paymentBindings); err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"payment consumer start failed\" err=%v", err)
		}
	}

	// Schedule the weekly reminder for approved but unpaid dividend runs.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.DividendReminderSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		membershipService.RemindUnpaidDividends(ctx)
	}); err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"dividend reminder schedule invalid\" spec=%q err=%v", cfg.DividendReminderSchedule, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Start the HTTP server.
	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
