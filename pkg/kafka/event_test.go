package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopic(t *testing.T) {
	assert.Equal(t, "catalog.product.upserted", Topic("product", "upserted"))
	assert.Equal(t, "catalog.dlq.catalog.product.upserted", DLQTopic(Topic("product", "upserted")))
}

func TestNewEvent_Fields(t *testing.T) {
	type row struct {
		SKU string `json:"sku"`
	}

	event, err := NewEvent("product.upserted", "A-1", "product", "catalog-feed", row{SKU: "A-1"})
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, "product.upserted", event.EventType)
	assert.Equal(t, "A-1", event.AggregateID)
	assert.Equal(t, 1, event.Version)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, 2*time.Second)

	var got row
	require.NoError(t, event.UnmarshalData(&got))
	assert.Equal(t, "A-1", got.SKU)
}

func TestNewEvent_InvalidData(t *testing.T) {
	_, err := NewEvent("x", "a", "t", "s", make(chan int))
	require.Error(t, err)
}

func TestUnmarshalEvent_KeepsCorrelationID(t *testing.T) {
	original, err := NewEvent("ingestion.completed", "run-1", "ingestion", "catalog", map[string]int{"inserted": 2})
	require.NoError(t, err)
	original.WithCorrelationID("corr-1")

	raw, err := original.Marshal()
	require.NoError(t, err)

	restored, err := UnmarshalEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, original.EventID, restored.EventID)
	assert.Equal(t, "corr-1", restored.CorrelationID)
	assert.JSONEq(t, `{"inserted":2}`, string(restored.Data))
}

func TestUnmarshalEvent_Invalid(t *testing.T) {
	_, err := UnmarshalEvent([]byte("not json"))
	assert.Error(t, err)
}
