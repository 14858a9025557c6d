package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/vhoang/stockguard/internal/adapter/storage"
	"github.com/vhoang/stockguard/internal/core/service"
	"github.com/vhoang/stockguard/internal/lock"
)

const (
	itemID      = "stress-item"
	journalSize = 100
)

func main() {
	strategyName := flag.String("strategy", "pessimistic", "strategy: local, pessimistic, optimistic, named, spin, notify")
	requests := flag.Int("n", 100, "concurrent decrement requests, also the initial quantity")
	flag.Parse()

	ctx := context.Background()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/stockguard?parseTime=true"
	}
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb)

	if err := mysqlAdapter.EnsureSchema(ctx); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}
	if err := mysqlAdapter.SeedItem(ctx, itemID, *requests); err != nil {
		log.Fatalf("failed to seed item: %v", err)
	}
	rdb.Del(ctx, "lock:"+itemID)

	stocks := service.NewStockService(mysqlAdapter)
	facade := service.NewFacade(stocks, lock.DefaultRetryPolicy, 30*time.Second, journalSize)
	facade.Register(lock.NewLocal())
	facade.Register(lock.NewPessimistic(mysqlAdapter))
	facade.Register(lock.NewOptimistic())
	facade.Register(lock.NewNamed(mysqlAdapter, 10*time.Second))
	facade.Register(lock.NewSpin(redisAdapter, 3*time.Second, lock.DefaultRetryPolicy))
	facade.Register(lock.NewNotify(redisAdapter, 3*time.Second, time.Second))
	defer facade.Close()

	// Drain the journal queue in background
	go func() {
		for range facade.Records() {
		}
	}()

	var successCount atomic.Int32
	var failCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if _, err := facade.Decrement(ctx, *strategyName, itemID, 1); err == nil {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	final, err := stocks.Quantity(ctx, itemID)
	if err != nil {
		log.Fatalf("failed to read final quantity: %v", err)
	}

	fmt.Println("========== STRESS RESULTS ==========")
	fmt.Printf("Strategy:        %s\n", *strategyName)
	fmt.Printf("Initial:         %d\n", *requests)
	fmt.Printf("Successful:      %d\n", successCount.Load())
	fmt.Printf("Failed:          %d\n", failCount.Load())
	fmt.Printf("Final quantity:  %d\n", final)
	fmt.Printf("Duration:        %v\n", elapsed)
	fmt.Println("====================================")

	if final == 0 && successCount.Load() == int32(*requests) {
		fmt.Println("PASS: every decrement applied exactly once")
	} else {
		fmt.Printf("FAIL: expected final 0 with %d successes, got final %d with %d successes\n",
			*requests, final, successCount.Load())
	}
}
