package earnings

import (
	"context"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanifr/marketplace-settlement/internal/kafka"
	"github.com/hanifr/marketplace-settlement/internal/settlement"
)

func TestHandleItemSettledRejectsMalformedMessages(t *testing.T) {
	svc := &Service{}
	err := svc.HandleItemSettled(context.Background(), kafkago.Message{Value: []byte("{not json")})
	require.Error(t, err)
}

func TestHandleItemSettledIgnoresForeignEventTypes(t *testing.T) {
	svc := &Service{}
	env := settlement.Envelope{
		EventID:      "evt-1",
		EventType:    settlement.EventEarningPosted,
		EventVersion: 1,
		Producer:     "test",
	}
	err := svc.HandleItemSettled(context.Background(), kafkago.Message{Value: kafka.MustMarshal(env)})
	assert.NoError(t, err, "events of other types are skipped, not failed")
}
