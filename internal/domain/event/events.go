package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	TypeOrderCreated    = "OrderCreated"
	TypeCustomerCreated = "CustomerCreated"
)

const (
	QueueOrderCreated    = "order-created"
	QueueCustomerCreated = "customer-created"
)

// ErrPoisonMessage marks payloads that can never be processed successfully
// (unparsable body or a missing mandatory identifier). Consumers acknowledge
// and discard these instead of retrying.
var ErrPoisonMessage = errors.New("poison message")

// QueueForType resolves the destination queue for an outbox record.
func QueueForType(eventType string) (string, bool) {
	switch eventType {
	case TypeOrderCreated:
		return QueueOrderCreated, true
	case TypeCustomerCreated:
		return QueueCustomerCreated, true
	default:
		return "", false
	}
}

// DLQFor returns the dead-letter queue paired with a source queue.
func DLQFor(queue string) string {
	return queue + ".dlq"
}

type OrderCreatedLineItem struct {
	ID         string  `json:"id"`
	OrderID    string  `json:"orderId"`
	ProductSku string  `json:"productSku"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unitPrice"`
}

type OrderCreated struct {
	ID            string                 `json:"id"`
	CustomerID    string                 `json:"customerId"`
	TotalAmount   float64                `json:"totalAmount"`
	CurrencyCode  string                 `json:"currencyCode"`
	OccurredAtUtc time.Time              `json:"occurredAtUtc"`
	LineItems     []OrderCreatedLineItem `json:"lineItems"`
}

type CustomerCreated struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	CountryCode   string    `json:"countryCode"`
	OccurredAtUtc time.Time `json:"occurredAtUtc"`
}

func DecodeOrderCreated(payload []byte) (*OrderCreated, error) {
	var evt OrderCreated
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("%w: unmarshal order-created: %v", ErrPoisonMessage, err)
	}
	if evt.ID == "" {
		return nil, fmt.Errorf("%w: order-created event is missing the order id", ErrPoisonMessage)
	}
	return &evt, nil
}

func DecodeCustomerCreated(payload []byte) (*CustomerCreated, error) {
	var evt CustomerCreated
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("%w: unmarshal customer-created: %v", ErrPoisonMessage, err)
	}
	if evt.ID == "" {
		return nil, fmt.Errorf("%w: customer-created event is missing the customer id", ErrPoisonMessage)
	}
	return &evt, nil
}
