package customers

import (
	"time"

	"github.com/SeanGareth505/JobAssessment/internal/domain"
)

type CreateCustomerRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	CountryCode string `json:"country_code"`
}

type CustomerResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	CountryCode string    `json:"country_code"`
	CreatedAt   time.Time `json:"created_at"`
}

func mapCustomerToResponse(c *domain.Customer) *CustomerResponse {
	return &CustomerResponse{
		ID:          c.ID,
		Name:        c.Name,
		Email:       c.Email,
		CountryCode: c.CountryCode,
		CreatedAt:   c.CreatedAt,
	}
}
