package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueForType(t *testing.T) {
	queue, ok := QueueForType(TypeOrderCreated)
	require.True(t, ok)
	assert.Equal(t, "order-created", queue)

	queue, ok = QueueForType(TypeCustomerCreated)
	require.True(t, ok)
	assert.Equal(t, "customer-created", queue)

	_, ok = QueueForType("PaymentReceived")
	assert.False(t, ok)
}

func TestDLQFor(t *testing.T) {
	assert.Equal(t, "order-created.dlq", DLQFor(QueueOrderCreated))
}

func TestDecodeOrderCreated(t *testing.T) {
	testcases := []struct {
		name       string
		payload    string
		wantPoison bool
	}{
		{
			name:    "valid payload",
			payload: `{"id":"o1","customerId":"c1","totalAmount":10,"currencyCode":"ZAR","lineItems":[{"id":"li1","productSku":"SKU-1","quantity":2,"unitPrice":5}]}`,
		},
		{
			name:       "not json",
			payload:    `{{{`,
			wantPoison: true,
		},
		{
			name:       "missing order id",
			payload:    `{"customerId":"c1","totalAmount":10}`,
			wantPoison: true,
		},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			evt, err := DecodeOrderCreated([]byte(tc.payload))
			if tc.wantPoison {
				assert.ErrorIs(t, err, ErrPoisonMessage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "o1", evt.ID)
			assert.Len(t, evt.LineItems, 1)
			assert.Equal(t, "SKU-1", evt.LineItems[0].ProductSku)
		})
	}
}

func TestDecodeCustomerCreated(t *testing.T) {
	evt, err := DecodeCustomerCreated([]byte(`{"id":"c1","name":"Ada","email":"ada@example.com","countryCode":"ZA"}`))
	require.NoError(t, err)
	assert.Equal(t, "Ada", evt.Name)

	_, err = DecodeCustomerCreated([]byte(`{"name":"no id"}`))
	assert.ErrorIs(t, err, ErrPoisonMessage)

	_, err = DecodeCustomerCreated([]byte(`not json`))
	assert.ErrorIs(t, err, ErrPoisonMessage)
}
