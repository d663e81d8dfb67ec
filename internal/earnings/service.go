package earnings

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	kafkax "github.com/hanifr/marketplace-settlement/internal/kafka"
	"github.com/hanifr/marketplace-settlement/internal/metrics"
	"github.com/hanifr/marketplace-settlement/internal/redisx"
	"github.com/hanifr/marketplace-settlement/internal/settlement"
)

// Service consumes item-settled events and posts vendor earnings. Posting is
// exactly-once: Redis dedup per event id is the fast path, the unique
// (vendor, order) index on settlement earnings is the guarantee.
type Service struct {
	Ledger         *settlement.LedgerRepo
	Fulfillment    *settlement.FulfillmentRepo
	Redis          *redis.Client
	ProducerOK     *kafkax.Producer // publish earning.posted
	ProducerReject *kafkax.Producer // publish earning.rejected
	ServiceName    string
	HoldPeriod     time.Duration
	Trigger        settlement.ItemStatus
}

// HandleItemSettled is installed as the consumer handler.
func (s *Service) HandleItemSettled(ctx context.Context, m kafkago.Message) error {
	var env settlement.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != settlement.EventItemSettled {
		return nil // ignore
	}

	// dedup by event_id; the key is only written once the whole handler
	// succeeds (see markProcessed), so a transient failure plus redelivery
	// retries instead of silently dropping the earning
	dkey := fmt.Sprintf(redisx.KeyDedup, "earnings", env.EventID)
	exists, _ := redisx.Exists(ctx, s.Redis, dkey)
	if exists {
		return nil
	}

	p, err := kafkax.UnwrapPayload[settlement.ItemSettledPayload](env.Payload)
	if err != nil {
		return err
	}

	// the earning covers the whole (vendor, order); post only once the
	// vendor's last open item in the order has reached a terminal state
	gross, ready, err := s.Fulfillment.VendorOrderSettleable(ctx, p.VendorID, p.OrderID, s.Trigger)
	if err != nil {
		return err
	}
	if !ready {
		return nil // a later item's event will complete the order
	}
	if gross == 0 {
		if err := s.publishRejected(ctx, p.VendorID, p.OrderID, "NOTHING_DELIVERED", env.TraceID); err != nil {
			return err
		}
		return s.markProcessed(ctx, dkey)
	}

	rate, err := decimal.NewFromString(p.CommissionRate)
	if err != nil {
		rate, err = s.Ledger.VendorCommissionRate(ctx, p.VendorID)
		if err != nil {
			return err
		}
	}

	e, existed, err := s.Ledger.PostEarning(ctx, p.VendorID, p.OrderID, gross, rate, s.HoldPeriod)
	if err != nil {
		return err
	}
	if !existed {
		metrics.EarningsPosted.Inc()
	}
	if err := s.publishPosted(ctx, e, env.TraceID); err != nil {
		return err
	}
	return s.markProcessed(ctx, dkey)
}

// markProcessed records the dedup key after the event's work is fully
// committed. Writing it earlier would turn a transient PostEarning failure
// plus redelivery into a silent drop for the TTL window. If Redis loses the
// key, the unique settlement index still absorbs the replay.
func (s *Service) markProcessed(ctx context.Context, key string) error {
	_ = s.Redis.Set(ctx, key, "1", redisx.TTLDedup).Err()
	return nil
}

func (s *Service) publishPosted(ctx context.Context, e settlement.VendorEarning, trace string) error {
	ev := settlement.Envelope{
		EventID:       uuid.NewString(),
		EventType:     settlement.EventEarningPosted,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       trace,
		CorrelationID: e.OrderID,
		Payload: kafkax.MustMarshal(settlement.EarningPostedPayload{
			EarningID:       e.ID,
			VendorID:        e.VendorID,
			OrderID:         e.OrderID,
			AmountCents:     e.AmountCents,
			CommissionCents: e.CommissionCents,
			NetAmountCents:  e.NetAmountCents,
		}),
	}
	s.ProducerOK.Publish(settlement.PartitionKey(e.OrderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(settlement.EventEarningPosted)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	return nil
}

func (s *Service) publishRejected(ctx context.Context, vendorID, orderID, reason, trace string) error {
	ev := settlement.Envelope{
		EventID:       uuid.NewString(),
		EventType:     settlement.EventEarningRejected,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       trace,
		CorrelationID: orderID,
		Payload: kafkax.MustMarshal(settlement.EarningRejectedPayload{
			VendorID: vendorID, OrderID: orderID, Reason: reason,
		}),
	}
	s.ProducerReject.Publish(settlement.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(settlement.EventEarningRejected)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	return nil
}
