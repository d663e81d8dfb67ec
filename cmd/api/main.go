package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hanifr/marketplace-settlement/internal/config"
	"github.com/hanifr/marketplace-settlement/internal/httpx"
	kafkax "github.com/hanifr/marketplace-settlement/internal/kafka"
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
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer for settlement trigger events
	prod := kafkax.NewProducer(cfg.KafkaBrokers, settlement.TopicItemSettled, 1024)
	prod.Start(ctx)

	// Repos & handlers
	reservations := &settlement.ReservationRepo{DB: db}
	fulfillment := &settlement.FulfillmentRepo{DB: db}
	ledger := &settlement.LedgerRepo{DB: db}
	payouts := &settlement.PayoutRepo{DB: db}

	router := httpx.NewRouter()
	(&httpx.CheckoutHandler{
		Reservations:   reservations,
		ReservationTTL: cfg.ReservationTTL,
	}).Register(router)
	(&httpx.VendorHandler{
		Ledger:             ledger,
		Payouts:            payouts,
		Fulfillment:        fulfillment,
		Redis:              rdb,
		Producer:           prod,
		Service:            cfg.ServiceName,
		MinimumPayoutCents: cfg.MinimumPayoutCents,
		PayoutFeeCents:     cfg.PayoutFeeCents,
		SettleTrigger:      settlement.ItemStatus(cfg.SettleOn),
	}).Register(router)
	(&httpx.AdminHandler{
		Payouts:      payouts,
		Ledger:       ledger,
		Reservations: reservations,
	}).Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close() // close inbox -> flush & close writer
	cancel()
	prod.WaitClosed()
}
