package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/SeanGareth505/JobAssessment/internal/domain"
	"github.com/SeanGareth505/JobAssessment/internal/repository/customer_repo"
	"github.com/SeanGareth505/JobAssessment/internal/repository/outbox_repo"
)

type pgCustomerRepository struct {
	db     *sql.DB
	outbox outbox_repo.OutboxRepository
	logger *zap.Logger
}

func NewCustomerRepository(db *sql.DB, outbox outbox_repo.OutboxRepository, l *zap.Logger) customer_repo.CustomerRepository {
	return &pgCustomerRepository{db: db, outbox: outbox, logger: l}
}

const insertCustomerQuery = `INSERT INTO customers (id, name, email, country_code, created_at) VALUES ($1, $2, $3, $4, $5)`

func (r *pgCustomerRepository) CreateCustomerAndOutboxMessage(ctx context.Context, customer *domain.Customer, msg *outbox_repo.OutboxMessage) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to begin transaction for customer creation", zap.String("customer_id", customer.ID), zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
			if err != nil {
				r.logger.Error("Failed to commit customer creation transaction", zap.String("customer_id", customer.ID), zap.Error(err))
			}
		}
	}()

	_, err = tx.ExecContext(ctx, insertCustomerQuery,
		customer.ID, customer.Name, customer.Email, customer.CountryCode, customer.CreatedAt)
	if err != nil {
		return fmt.Errorf("tx failed to create customer: %w", err)
	}

	err = r.outbox.CreateMessageTx(ctx, tx, msg)
	return err
}

func (r *pgCustomerRepository) CreateCustomerIfAbsent(ctx context.Context, customer *domain.Customer) (bool, error) {
	query := insertCustomerQuery + ` ON CONFLICT (id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query,
		customer.ID, customer.Name, customer.Email, customer.CountryCode, customer.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert customer", zap.String("customer_id", customer.ID), zap.Error(err))
		return false, fmt.Errorf("failed to insert customer: %w", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check insert result: %w", err)
	}
	return rowsAffected > 0, nil
}

func (r *pgCustomerRepository) GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	customer := &domain.Customer{}
	query := `SELECT id, name, email, country_code, created_at FROM customers WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&customer.ID, &customer.Name, &customer.Email, &customer.CountryCode, &customer.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCustomerNotFound
		}
		r.logger.Error("Failed to get customer by ID", zap.String("customer_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get customer by ID %s: %w", id, err)
	}
	return customer, nil
}
