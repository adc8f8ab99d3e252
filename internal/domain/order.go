package domain

import (
	"errors"
	"strings"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusFulfilled OrderStatus = "FULFILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// validTransitions is the full transition table. Anything not listed here
// is rejected; FULFILLED and CANCELLED are terminal.
var validTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:    {OrderStatusFulfilled, OrderStatusCancelled},
}

func IsValidStatus(s OrderStatus) bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusFulfilled, OrderStatusCancelled:
		return true
	}
	return false
}

func IsValidTransition(from, to OrderStatus) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

type LineItem struct {
	ID         string
	OrderID    string
	ProductID  string
	ProductSku string
	Quantity   int
	UnitPrice  float64
}

type Order struct {
	ID           string
	CustomerID   string
	Status       OrderStatus
	CurrencyCode string
	TotalAmount  float64
	LineItems    []LineItem
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func NewOrder(id, customerID, currencyCode string, items []LineItem) (*Order, error) {
	if id == "" || customerID == "" {
		return nil, errors.New("invalid order data")
	}
	currencyCode = strings.ToUpper(strings.TrimSpace(currencyCode))
	if currencyCode == "" {
		return nil, errors.New("currency code is required")
	}
	if err := ValidateLineItems(items); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	order := &Order{
		ID:           id,
		CustomerID:   customerID,
		Status:       OrderStatusPending,
		CurrencyCode: currencyCode,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for i := range items {
		items[i].OrderID = id
	}
	order.LineItems = items
	order.TotalAmount = TotalOf(items)
	return order, nil
}

func ValidateLineItems(items []LineItem) error {
	if len(items) == 0 {
		return errors.New("at least one line item is required")
	}
	for _, li := range items {
		if li.Quantity < 1 {
			return errors.New("quantity must be at least 1 for each line item")
		}
		if li.UnitPrice < 0 {
			return errors.New("unit price must be zero or greater for each line item")
		}
	}
	return nil
}

func TotalOf(items []LineItem) float64 {
	var total float64
	for _, li := range items {
		total += float64(li.Quantity) * li.UnitPrice
	}
	return total
}

// TransitionTo validates the move against the transition table and applies it
// in memory. The caller is responsible for persisting the change under the
// version check.
func (o *Order) TransitionTo(target OrderStatus) error {
	if !IsValidTransition(o.Status, target) {
		return ErrInvalidTransition
	}
	o.Status = target
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusFulfilled || o.Status == OrderStatusCancelled
}

// ReplaceLineItems swaps the order's line items and recomputes the total.
// Only Pending orders may be edited.
func (o *Order) ReplaceLineItems(items []LineItem) error {
	if o.Status != OrderStatusPending {
		return ErrInvalidState
	}
	if err := ValidateLineItems(items); err != nil {
		return err
	}
	for i := range items {
		items[i].OrderID = o.ID
	}
	o.LineItems = items
	o.TotalAmount = TotalOf(items)
	o.UpdatedAt = time.Now().UTC()
	return nil
}
