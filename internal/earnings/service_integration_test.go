package earnings

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kafkax "github.com/hanifr/marketplace-settlement/internal/kafka"
	"github.com/hanifr/marketplace-settlement/internal/redisx"
	"github.com/hanifr/marketplace-settlement/internal/settlement"
)

// Needs Postgres with migrations applied and a Redis:
//
//	POSTGRES_DSN=... REDIS_ADDR=localhost:6379 go test ./...
func testDeps(t *testing.T) (*pgxpool.Pool, *redis.Client) {
	t.Helper()
	dsn := os.Getenv("POSTGRES_DSN")
	addr := os.Getenv("REDIS_ADDR")
	if dsn == "" || addr == "" {
		t.Skip("POSTGRES_DSN or REDIS_ADDR not set, skipping integration test")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	rdb := redisx.New(addr)
	t.Cleanup(func() { _ = rdb.Close() })
	return pool, rdb
}

func seedDeliveredOrder(t *testing.T, pool *pgxpool.Pool, priceCents int64) (vendorID, orderID string) {
	t.Helper()
	ctx := context.Background()
	vendorID = uuid.NewString()
	variantID := uuid.NewString()
	orderID = uuid.NewString()
	_, err := pool.Exec(ctx,
		`INSERT INTO vendors(id, name, commission_rate) VALUES ($1,$2,$3)`,
		vendorID, "vendor-"+vendorID[:8], "0.10")
	require.NoError(t, err)
	_, err = pool.Exec(ctx,
		`INSERT INTO stock_variants(id, vendor_id, sku, name, price_cents, stock_quantity)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		variantID, vendorID, "sku-"+variantID[:8], "variant", priceCents, 10)
	require.NoError(t, err)
	_, err = pool.Exec(ctx,
		`INSERT INTO order_items(id, order_id, vendor_id, variant_id, quantity,
			unit_price_cents, product_name, vendor_status, delivered_at)
		 VALUES ($1,$2,$3,$4,1,$5,'variant','delivered',now())`,
		uuid.NewString(), orderID, vendorID, variantID, priceCents)
	require.NoError(t, err)
	return vendorID, orderID
}

func settledMessage(t *testing.T, vendorID, orderID string) (kafkago.Message, string) {
	t.Helper()
	eventID := uuid.NewString()
	env := settlement.Envelope{
		EventID:      eventID,
		EventType:    settlement.EventItemSettled,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     "test",
		Payload: kafkax.MustMarshal(settlement.ItemSettledPayload{
			ItemID:         uuid.NewString(),
			OrderID:        orderID,
			VendorID:       vendorID,
			CommissionRate: "0.10",
		}),
	}
	return kafkago.Message{Value: kafkax.MustMarshal(env), Key: settlement.PartitionKey(orderID)}, eventID
}

// A transient DB failure must leave the event retryable: no dedup key, and
// the redelivery posts the earning.
func TestRedeliveryAfterTransientFailurePostsEarning(t *testing.T) {
	pool, rdb := testDeps(t)
	ctx := context.Background()
	vendorID, orderID := seedDeliveredOrder(t, pool, 10000)

	// a closed pool fails every query, like a DB blip would
	badPool, err := pgxpool.New(ctx, os.Getenv("POSTGRES_DSN"))
	require.NoError(t, err)
	badPool.Close()

	svc := &Service{
		Ledger:         &settlement.LedgerRepo{DB: badPool},
		Fulfillment:    &settlement.FulfillmentRepo{DB: pool},
		Redis:          rdb,
		ProducerOK:     kafkax.NewProducer([]string{"localhost:1"}, settlement.TopicEarningPosted, 16),
		ProducerReject: kafkax.NewProducer([]string{"localhost:1"}, settlement.TopicEarningRejected, 16),
		ServiceName:    "test-ledger",
		Trigger:        settlement.ItemDelivered,
	}

	msg, eventID := settledMessage(t, vendorID, orderID)
	dkey := fmt.Sprintf(redisx.KeyDedup, "earnings", eventID)

	require.Error(t, svc.HandleItemSettled(ctx, msg), "posting against a dead DB must fail the handler")

	exists, err := redisx.Exists(ctx, rdb, dkey)
	require.NoError(t, err)
	assert.False(t, exists, "a failed delivery must not be marked processed")

	// redelivery with a healthy DB posts the earning
	svc.Ledger = &settlement.LedgerRepo{DB: pool}
	require.NoError(t, svc.HandleItemSettled(ctx, msg))

	b, err := svc.Ledger.Balances(ctx, vendorID)
	require.NoError(t, err)
	assert.Equal(t, int64(9000), b.PendingCents)

	exists, err = redisx.Exists(ctx, rdb, dkey)
	require.NoError(t, err)
	assert.True(t, exists, "a successful delivery is marked processed")

	// a third delivery is deduped without touching the ledger again
	require.NoError(t, svc.HandleItemSettled(ctx, msg))
	b, err = svc.Ledger.Balances(ctx, vendorID)
	require.NoError(t, err)
	assert.Equal(t, int64(9000), b.PendingCents)
}
