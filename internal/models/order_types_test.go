package models

import (
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrderNumberFormat(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	number := NewOrderNumber(now)

	// "ORD" + 13-digit epoch millis + 3-digit random suffix.
	assert.Regexp(t, regexp.MustCompile(`^ORD\d{13}\d{3}$`), number)
	assert.Contains(t, number, "ORD1748779200000")
}

func TestValidOrderStatus(t *testing.T) {
	for _, s := range []string{"pending", "confirmed", "processing", "shipped", "delivered", "cancelled", "returned"} {
		assert.True(t, ValidOrderStatus(s), s)
	}
	assert.False(t, ValidOrderStatus("lost"))
	assert.False(t, ValidOrderStatus(""))
	assert.False(t, ValidOrderStatus("Pending"))
}

func TestLineTotal(t *testing.T) {
	item := &OrderItem{Price: 200, Quantity: 3}
	assert.Equal(t, 600.0, item.LineTotal())
}

func TestDefaultRefundAmountIsLineTotal(t *testing.T) {
	item := &OrderItem{Price: 200, Quantity: 3}

	// Refunding without an explicit amount pays back the whole line,
	// not just a single unit.
	assert.Equal(t, 600.0, DefaultRefundAmount(item))
}

func TestOrderTrackingJSONShape(t *testing.T) {
	var order Order

	raw, err := json.Marshal(order)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "tracking")
	assert.NotContains(t, string(raw), "Valid")

	tracking := "TRK-42"
	order.Tracking = &tracking
	raw, err = json.Marshal(order)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"tracking":"TRK-42"`)
}

func TestSummarizeItems(t *testing.T) {
	items := []OrderItem{
		{Status: ItemStatusFulfilled},
		{Status: ItemStatusFulfilled},
		{Status: ItemStatusRefunded},
		{Status: ItemStatusPending},
		{Status: ItemStatusCancelled},
	}

	s := SummarizeItems(items)

	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 2, s.Fulfilled)
	assert.Equal(t, 1, s.Refunded)
	assert.Equal(t, 1, s.Pending)
	assert.Equal(t, 1, s.Cancelled)
	assert.False(t, s.AllFulfilled())
}

func TestSummarizeItemsAllFulfilled(t *testing.T) {
	items := []OrderItem{
		{Status: ItemStatusFulfilled},
		{Status: ItemStatusFulfilled},
	}
	assert.True(t, SummarizeItems(items).AllFulfilled())
}

func TestSummarizeItemsEmpty(t *testing.T) {
	s := SummarizeItems(nil)
	assert.Equal(t, 0, s.Total)
	assert.False(t, s.AllFulfilled())
}

func TestSummarizeItemsUnknownStatusCountsAsPending(t *testing.T) {
	items := []OrderItem{{Status: "weird"}}
	assert.Equal(t, 1, SummarizeItems(items).Pending)
}
