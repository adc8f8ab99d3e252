package orders

import (
	"time"

	"github.com/SeanGareth505/JobAssessment/internal/domain"
)

type LineItemRequest struct {
	ProductID  string  `json:"product_id"`
	ProductSku string  `json:"product_sku"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
}

type CreateOrderRequest struct {
	CustomerID   string            `json:"customer_id"`
	CurrencyCode string            `json:"currency_code"`
	LineItems    []LineItemRequest `json:"line_items"`
}

type UpdateOrderRequest struct {
	LineItems []LineItemRequest `json:"line_items"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type LineItemResponse struct {
	ID         string  `json:"id"`
	ProductID  string  `json:"product_id,omitempty"`
	ProductSku string  `json:"product_sku"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	LineTotal  float64 `json:"line_total"`
}

type OrderResponse struct {
	ID           string             `json:"id"`
	CustomerID   string             `json:"customer_id"`
	Status       string             `json:"status"`
	CurrencyCode string             `json:"currency_code"`
	TotalAmount  float64            `json:"total_amount"`
	LineItems    []LineItemResponse `json:"line_items"`
	Version      int64              `json:"version"`
	CreatedAt    time.Time          `json:"created_at"`
}

func mapOrderToResponse(order *domain.Order) *OrderResponse {
	items := make([]LineItemResponse, len(order.LineItems))
	for i, li := range order.LineItems {
		items[i] = LineItemResponse{
			ID:         li.ID,
			ProductID:  li.ProductID,
			ProductSku: li.ProductSku,
			Quantity:   li.Quantity,
			UnitPrice:  li.UnitPrice,
			LineTotal:  float64(li.Quantity) * li.UnitPrice,
		}
	}
	return &OrderResponse{
		ID:           order.ID,
		CustomerID:   order.CustomerID,
		Status:       string(order.Status),
		CurrencyCode: order.CurrencyCode,
		TotalAmount:  order.TotalAmount,
		LineItems:    items,
		Version:      order.Version,
		CreatedAt:    order.CreatedAt,
	}
}
