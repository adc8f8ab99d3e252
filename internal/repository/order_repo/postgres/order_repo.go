package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/SeanGareth505/JobAssessment/internal/domain"
	"github.com/SeanGareth505/JobAssessment/internal/repository/order_repo"
	"github.com/SeanGareth505/JobAssessment/internal/repository/outbox_repo"
)

type pgOrderRepository struct {
	db     *sql.DB
	outbox outbox_repo.OutboxRepository
	logger *zap.Logger
}

func NewOrderRepository(db *sql.DB, outbox outbox_repo.OutboxRepository, l *zap.Logger) order_repo.OrderRepository {
	return &pgOrderRepository{db: db, outbox: outbox, logger: l}
}

const insertOrderQuery = `INSERT INTO orders (id, customer_id, status, currency_code, total_amount, version, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

const insertLineItemQuery = `INSERT INTO order_line_items (id, order_id, product_id, product_sku, quantity, unit_price)
	VALUES ($1, $2, $3, $4, $5, $6)`

func (r *pgOrderRepository) CreateOrderAndOutboxMessage(ctx context.Context, order *domain.Order, msg *outbox_repo.OutboxMessage) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to begin transaction for order creation", zap.String("order_id", order.ID), zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			r.logger.Warn("Rolling back order creation transaction", zap.String("order_id", order.ID), zap.Error(err))
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
			if err != nil {
				r.logger.Error("Failed to commit order creation transaction", zap.String("order_id", order.ID), zap.Error(err))
			}
		}
	}()

	_, err = tx.ExecContext(ctx, insertOrderQuery,
		order.ID, order.CustomerID, order.Status, order.CurrencyCode, order.TotalAmount, order.Version, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("tx failed to create order: %w", err)
	}

	for _, li := range order.LineItems {
		_, err = tx.ExecContext(ctx, insertLineItemQuery, li.ID, li.OrderID, li.ProductID, li.ProductSku, li.Quantity, li.UnitPrice)
		if err != nil {
			return fmt.Errorf("tx failed to create line item: %w", err)
		}
	}

	err = r.outbox.CreateMessageTx(ctx, tx, msg)
	return err
}

func (r *pgOrderRepository) CreateOrderIfAbsent(ctx context.Context, order *domain.Order) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}

	inserted := false
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	insertIfAbsent := insertOrderQuery + ` ON CONFLICT (id) DO NOTHING`
	res, err := tx.ExecContext(ctx, insertIfAbsent,
		order.ID, order.CustomerID, order.Status, order.CurrencyCode, order.TotalAmount, order.Version, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("tx failed to insert order: %w", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check insert result: %w", err)
	}
	if rowsAffected == 0 {
		// Already present; another delivery of the same event won the race.
		return false, err
	}

	for _, li := range order.LineItems {
		_, err = tx.ExecContext(ctx, insertLineItemQuery, li.ID, li.OrderID, li.ProductID, li.ProductSku, li.Quantity, li.UnitPrice)
		if err != nil {
			return false, fmt.Errorf("tx failed to insert line item: %w", err)
		}
	}
	inserted = true
	return inserted, err
}

func (r *pgOrderRepository) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	order := &domain.Order{}
	query := `SELECT id, customer_id, status, currency_code, total_amount, version, created_at, updated_at FROM orders WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&order.ID, &order.CustomerID, &order.Status, &order.CurrencyCode, &order.TotalAmount, &order.Version, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		r.logger.Error("Failed to get order by ID", zap.String("order_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get order by ID %s: %w", id, err)
	}

	itemsQuery := `SELECT id, order_id, product_id, product_sku, quantity, unit_price FROM order_line_items WHERE order_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, itemsQuery, id)
	if err != nil {
		r.logger.Error("Failed to query line items", zap.String("order_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get line items for order %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var li domain.LineItem
		if err := rows.Scan(&li.ID, &li.OrderID, &li.ProductID, &li.ProductSku, &li.Quantity, &li.UnitPrice); err != nil {
			return nil, fmt.Errorf("failed to scan line item row: %w", err)
		}
		order.LineItems = append(order.LineItems, li)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return order, nil
}

func (r *pgOrderRepository) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, expectedVersion int64) (int64, error) {
	query := `UPDATE orders SET status = $2, version = version + 1, updated_at = $3 WHERE id = $1 AND version = $4`
	res, err := r.db.ExecContext(ctx, query, orderID, status, time.Now().UTC(), expectedVersion)
	if err != nil {
		r.logger.Error("Failed to update order status", zap.String("order_id", orderID), zap.Error(err))
		return 0, fmt.Errorf("failed to update order %s: %w", orderID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check update result: %w", err)
	}
	if rowsAffected == 0 {
		return 0, r.classifyMiss(ctx, orderID)
	}
	r.logger.Debug("Order status updated", zap.String("order_id", orderID), zap.String("new_status", string(status)))
	return expectedVersion + 1, nil
}

func (r *pgOrderRepository) ReplaceLineItems(ctx context.Context, order *domain.Order, expectedVersion int64) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	var newVersion int64
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	query := `UPDATE orders SET total_amount = $2, version = version + 1, updated_at = $3 WHERE id = $1 AND version = $4`
	res, err := tx.ExecContext(ctx, query, order.ID, order.TotalAmount, time.Now().UTC(), expectedVersion)
	if err != nil {
		return 0, fmt.Errorf("tx failed to update order total: %w", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check update result: %w", err)
	}
	if rowsAffected == 0 {
		err = r.classifyMiss(ctx, order.ID)
		return 0, err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM order_line_items WHERE order_id = $1`, order.ID); err != nil {
		return 0, fmt.Errorf("tx failed to delete line items: %w", err)
	}
	for _, li := range order.LineItems {
		_, err = tx.ExecContext(ctx, insertLineItemQuery, li.ID, li.OrderID, li.ProductID, li.ProductSku, li.Quantity, li.UnitPrice)
		if err != nil {
			return 0, fmt.Errorf("tx failed to insert line item: %w", err)
		}
	}
	newVersion = expectedVersion + 1
	return newVersion, err
}

// classifyMiss distinguishes a lost optimistic-concurrency race from a
// missing row after a conditional update touched nothing.
func (r *pgOrderRepository) classifyMiss(ctx context.Context, orderID string) error {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check order existence: %w", err)
	}
	if !exists {
		return domain.ErrOrderNotFound
	}
	r.logger.Warn("Optimistic concurrency conflict on order", zap.String("order_id", orderID))
	return domain.ErrConcurrencyConflict
}
