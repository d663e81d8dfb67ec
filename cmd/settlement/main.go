package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hanifr/marketplace-settlement/internal/config"
	"github.com/hanifr/marketplace-settlement/internal/earnings"
	kafkax "github.com/hanifr/marketplace-settlement/internal/kafka"
	"github.com/hanifr/marketplace-settlement/internal/metrics"
	"github.com/hanifr/marketplace-settlement/internal/postgres"
	"github.com/hanifr/marketplace-settlement/internal/redisx"
	"github.com/hanifr/marketplace-settlement/internal/settlement"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Producers: posted & rejected (two topics)
	pOK := kafkax.NewProducer(cfg.KafkaBrokers, settlement.TopicEarningPosted, 1024)
	pOK.Start(ctx)
	pRJ := kafkax.NewProducer(cfg.KafkaBrokers, settlement.TopicEarningRejected, 1024)
	pRJ.Start(ctx)

	ledger := &settlement.LedgerRepo{DB: db}
	reservations := &settlement.ReservationRepo{DB: db}

	// Service
	svc := &earnings.Service{
		Ledger:         ledger,
		Fulfillment:    &settlement.FulfillmentRepo{DB: db},
		Redis:          rdb,
		ProducerOK:     pOK,
		ProducerReject: pRJ,
		ServiceName:    cfg.ServiceName + "-ledger",
		HoldPeriod:     cfg.EarningHoldPeriod,
		Trigger:        settlement.ItemStatus(cfg.SettleOn),
	}

	// Consumer
	group := getenv("LEDGER_GROUP", "settlement-ledger")
	workers := mustAtoi(os.Getenv("LEDGER_WORKERS"), "8")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, settlement.TopicItemSettled, workers)

	go func() {
		log.Printf("ledger consumer started: group=%s topic=%s workers=%d", group, settlement.TopicItemSettled, workers)
		if err := cons.Start(ctx, svc.HandleItemSettled); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	// Background maturation: the only path that makes funds payout-eligible.
	// Errors are logged and retried next tick, never dropped.
	go func() {
		t := time.NewTicker(cfg.MaturationInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n, err := ledger.MatureDue(ctx, time.Now().UTC())
				if err != nil {
					log.Printf("maturation error: %v", err)
					continue
				}
				if n > 0 {
					metrics.EarningsMatured.Add(float64(n))
					log.Printf("matured earnings: count=%d", n)
				}
			}
		}
	}()

	// Background reservation sweep. A delayed sweep only delays reclaiming
	// capacity; reserve re-checks live holds, so oversell is impossible.
	go func() {
		t := time.NewTicker(cfg.SweepInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n, err := reservations.SweepExpired(ctx, time.Now().UTC())
				if err != nil {
					log.Printf("sweep error: %v", err)
					continue
				}
				if n > 0 {
					metrics.ReservationsSwept.Add(float64(n))
					log.Printf("swept expired reservations: count=%d", n)
				}
			}
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down worker...")
	cancel()
	time.Sleep(500 * time.Millisecond)
	pOK.Close()
	pRJ.Close()
	pOK.WaitClosed()
	pRJ.WaitClosed()
}

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
