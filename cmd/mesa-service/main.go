package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"mesa-pos/internal/auth"
	"mesa-pos/internal/closing"
	closing_api "mesa-pos/internal/closing/api"
	"mesa-pos/internal/closing/storage"
	"mesa-pos/internal/config"
	"mesa-pos/internal/database/migrations"
	"mesa-pos/internal/kafka"
	"mesa-pos/internal/lifecycle"
	"mesa-pos/internal/logger"
	"mesa-pos/internal/orders"
	orders_api "mesa-pos/internal/orders/api"
	orders_db "mesa-pos/internal/orders/db"
	"mesa-pos/internal/settlement"
	settlement_api "mesa-pos/internal/settlement/api"
	settlement_db "mesa-pos/internal/settlement/db"
	rediswrap "mesa-pos/internal/settlement/redis"
	"mesa-pos/internal/sse"
	"mesa-pos/internal/tables"
	tables_api "mesa-pos/internal/tables/api"
	tables_db "mesa-pos/internal/tables/db"
	"mesa-pos/internal/tables/qr"
)

func verifyConnections(ctx context.Context, cfg *config.Config, log *logger.Logger) (*bun.DB, *redis.Client) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.Database.Username, cfg.Database.Password,
		cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)

	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		connector := pgdriver.NewConnector(pgdriver.WithDSN(dsn))
		sqldb = sql.OpenDB(connector)

		err = sqldb.Ping()
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	log.Info("DATABASE", "✅ PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Redis.Addr))

	return bunDB, redisClient
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Mesa POS service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}
	cfg := config.Load()

	ctx := context.Background()
	bunDB, redisClient := verifyConnections(ctx, cfg, log)
	defer bunDB.Close()
	defer redisClient.Close()

	runner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
	if err := runner.RunMigrations(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migration failed: %v", err))
	}
	log.Info("DATABASE", "Schema migrations applied")

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{cfg.Kafka.Topic}); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		log.Info("KAFKA", fmt.Sprintf("Producer initialized on topic %s", cfg.Kafka.Topic))
	} else {
		log.Warn("KAFKA", "Kafka disabled, venue events will not be published")
		producer = kafka.NewNoopProducer()
	}

	changeEmitter := sse.NewChangeEmitter()

	settlementService := settlement.NewService(
		&settlement_db.DB{Bun: bunDB},
		rediswrap.NewRedis(redisClient, log),
		producer,
		log,
	)
	ordersService := orders.NewService(&orders_db.DB{Bun: bunDB}, producer, log)
	lifecycleService := lifecycle.NewService(&orders_db.DB{Bun: bunDB}, producer, log)
	closingService := closing.NewService(storage.NewPostgreSQLStoreWithDB(bunDB.DB, log), log)
	tablesService := tables.NewService(&tables_db.DB{Bun: bunDB}, qr.NewGenerator(cfg.App.BaseURL), log)

	settlementHandler := settlement_api.NewHandler(settlementService, changeEmitter, log)
	ordersHandler := orders_api.NewHandler(ordersService, lifecycleService, changeEmitter, log)
	closingHandler := closing_api.NewHandler(closingService, log)
	tablesHandler := tables_api.NewHandler(tablesService, changeEmitter, log)
	sseHandler := sse.NewHandler(log, changeEmitter)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	// --- Public Routes (patron side, authenticated by table slug+token) ---
	r.Post("/api/v1/orders", ordersHandler.CreateOrder)
	r.Get("/api/v1/orders/{orderId}", ordersHandler.GetOrder)
	log.Info("ROUTER", "Patron order routes registered under /api/v1/orders")

	// --- Protected Routes (staff side) ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Auth.JWTSecret))
		log.Info("AUTH", "JWT middleware applied to staff API routes")

		r.Route("/api/v1", func(r chi.Router) {
			r.Post("/orders/{orderId}/advance", ordersHandler.AdvanceOrder)

			r.Route("/settlement", func(r chi.Router) {
				r.Get("/tables", settlementHandler.PendingTables)
				r.Get("/tables/{tableId}/lines", settlementHandler.PendingLines)
				r.Post("/tables/{tableId}/commit", settlementHandler.Commit)
				r.Get("/invoices/{taxId}", settlementHandler.LookupInvoiceIdentity)
			})

			r.Route("/tables", func(r chi.Router) {
				r.Post("/", tablesHandler.CreateTable)
				r.Get("/", tablesHandler.ListTables)
				r.Post("/{tableId}/rotate", tablesHandler.RotateToken)
				r.Delete("/{tableId}", tablesHandler.DeactivateTable)
				r.Get("/{tableId}/qr", tablesHandler.TableQR)
			})

			r.Get("/closing", closingHandler.CloseDay)
			r.Get("/events", sseHandler.HandleChanges)
		})
	})
	log.Info("ROUTER", "Staff routes registered under /api/v1")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Mesa POS service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("APP", "Shutdown signal received. Cleaning up...")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatal("HTTP", fmt.Sprintf("Server forced to shutdown: %v", err))
	}

	log.Info("APP", "✅ Server exited gracefully")
}
