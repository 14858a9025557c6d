package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/vhoang/stockguard/internal/adapter/handler"
	"github.com/vhoang/stockguard/internal/adapter/storage"
	"github.com/vhoang/stockguard/internal/core/domain"
	"github.com/vhoang/stockguard/internal/core/service"
	"github.com/vhoang/stockguard/internal/lock"
	"github.com/vhoang/stockguard/internal/metrics"
	"github.com/vhoang/stockguard/internal/port"
)

const (
	httpPort       = ":8080"
	workerCount    = 4
	journalSize    = 10000
	initialStock   = 100
	itemID         = "iphone-15"
	lockTTL        = 3 * time.Second
	namedLockWait  = 10 * time.Second
	acquireTimeout = 5 * time.Second
	notifyFallback = time.Second
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mysqlDSN := envOr("MYSQL_DSN", "root:root@tcp(localhost:3306)/stockguard?parseTime=true")
	redisAddr := envOr("REDIS_ADDR", "localhost:6379")

	// Initialize MySQL
	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}
	log.Println("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	log.Println("connected to redis")

	// Initialize adapters
	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb)

	if err := mysqlAdapter.EnsureSchema(ctx); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}
	if err := mysqlAdapter.SeedItem(ctx, itemID, initialStock); err != nil {
		log.Fatalf("failed to seed item: %v", err)
	}
	log.Printf("seeded item: %s = %d", itemID, initialStock)

	// Initialize service and facade with every strategy registered
	stocks := service.NewStockService(mysqlAdapter)
	facade := service.NewFacade(stocks, lock.DefaultRetryPolicy, acquireTimeout, journalSize)
	facade.Register(lock.NewLocal())
	facade.Register(lock.NewPessimistic(mysqlAdapter))
	facade.Register(lock.NewOptimistic())
	facade.Register(lock.NewNamed(mysqlAdapter, namedLockWait))
	facade.Register(lock.NewSpin(redisAdapter, lockTTL, lock.DefaultRetryPolicy))
	facade.Register(lock.NewNotify(redisAdapter, lockTTL, notifyFallback))
	log.Printf("registered strategies: %v", facade.Strategies())

	// Start journal workers
	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			journalLoop(id, facade.Records(), mysqlAdapter)
		}(i)
	}
	log.Printf("started %d journal workers", workerCount)

	// Metrics
	registry := prometheus.NewRegistry()
	metrics.Register(registry)

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(facade, stocks)
	mux := http.NewServeMux()
	mux.HandleFunc("/health", httpHandler.HealthCheck)
	mux.HandleFunc("/api/decrement", httpHandler.Decrement)
	mux.HandleFunc("/api/quantity", httpHandler.Quantity)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	httpServer := &http.Server{
		Addr:    httpPort,
		Handler: mux,
	}

	go func() {
		log.Printf("HTTP server listening on %s", httpPort)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Println("HTTP server stopped")

	// Close journal queue and wait for workers
	facade.Close()
	wg.Wait()
	log.Println("journal workers stopped")

	// Close connections
	rdb.Close()
	db.Close()
	log.Println("connections closed")
}

func journalLoop(id int, records <-chan domain.DecrementRecord, store port.ResourceStore) {
	for rec := range records {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

		if err := store.InsertDecrementRecord(ctx, rec); err != nil {
			// The decrement itself is already durable; a lost journal entry
			// is an observability gap, not a lost update.
			log.Printf("worker %d: failed to journal %s: %v", id, rec.ID, err)
		}

		cancel()
	}
}
