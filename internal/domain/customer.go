package domain

import (
	"errors"
	"strings"
	"time"
)

type Customer struct {
	ID          string
	Name        string
	Email       string
	CountryCode string
	CreatedAt   time.Time
}

func NewCustomer(id, name, email, countryCode string) (*Customer, error) {
	if id == "" || strings.TrimSpace(name) == "" {
		return nil, errors.New("invalid customer data")
	}
	return &Customer{
		ID:          id,
		Name:        strings.TrimSpace(name),
		Email:       strings.TrimSpace(email),
		CountryCode: strings.ToUpper(strings.TrimSpace(countryCode)),
		CreatedAt:   time.Now().UTC(),
	}, nil
}
