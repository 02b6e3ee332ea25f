package postgres

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

type OrderRepository struct {
	db DBTX
}

func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	_, err := withTx(ctx, r.db, func(tx DBTX) (struct{}, error) {
		_, err := tx.Exec(ctx, `
			INSERT INTO orders (id, user_id, status, total, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			o.ID, o.UserID, string(o.Status), o.Total, o.CreatedAt, o.UpdatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return struct{}{}, domain.ErrConflict
			}
			return struct{}{}, fmt.Errorf("insert order: %w", err)
		}
		return struct{}{}, insertItems(ctx, tx, o)
	})
	if err != nil {
		return fmt.Errorf("orders: insert: %w", err)
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	o, err := withTx(ctx, r.db, func(tx DBTX) (*domain.Order, error) {
		var (
			o      domain.Order
			status string
		)
		err := tx.QueryRow(ctx, `
			SELECT id, user_id, status, total, created_at, updated_at
			FROM orders WHERE id = $1`, id,
		).Scan(&o.ID, &o.UserID, &status, &o.Total, &o.CreatedAt, &o.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("select order: %w", err)
		}
		if o.Status, err = domain.ParseStatus(status); err != nil {
			return nil, err
		}

		rows, err := tx.Query(ctx, `
			SELECT id, order_id, product_id, quantity, price
			FROM order_items WHERE order_id = $1 ORDER BY position`, id)
		if err != nil {
			return nil, fmt.Errorf("select items: %w", err)
		}
		o.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Item, error) {
			var it domain.Item
			err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price)
			return it, err
		})
		if err != nil {
			return nil, fmt.Errorf("scan items: %w", err)
		}
		return &o, nil
	})
	if err != nil {
		return nil, fmt.Errorf("orders: get: %w", err)
	}
	return o, nil
}

// Update persists status and total and appends items not stored yet. Stored
// items are never rewritten. Only a PENDING row is updated, so a concurrent
// terminal transition wins and the loser gets ErrInvalidTransition.
func (r *OrderRepository) Update(ctx context.Context, o *domain.Order) error {
	_, err := withTx(ctx, r.db, func(tx DBTX) (struct{}, error) {
		tag, err := tx.Exec(ctx, `
			UPDATE orders SET status = $2, total = $3, updated_at = $4
			WHERE id = $1 AND status = $5`,
			o.ID, string(o.Status), o.Total, o.UpdatedAt, string(domain.StatusPending))
		if err != nil {
			return struct{}{}, fmt.Errorf("update order: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return struct{}{}, missedUpdate(ctx, tx, o.ID)
		}
		return struct{}{}, insertItems(ctx, tx, o)
	})
	if err != nil {
		return fmt.Errorf("orders: update: %w", err)
	}
	return nil
}

// missedUpdate tells a missing order apart from one that already left PENDING.
func missedUpdate(ctx context.Context, tx DBTX, id string) error {
	var status string
	err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("select status: %w", err)
	}
	return fmt.Errorf("order %s is %s: %w", id, status, domain.ErrInvalidTransition)
}

func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("orders: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func insertItems(ctx context.Context, tx DBTX, o *domain.Order) error {
	if len(o.Items) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i, it := range o.Items {
		batch.Queue(`
			INSERT INTO order_items (id, order_id, product_id, quantity, price, position)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING`,
			it.ID, o.ID, it.ProductID, it.Quantity, it.Price, i)
	}
	br := tx.SendBatch(ctx, batch)
	for range o.Items {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("insert item: %w", err)
		}
	}
	return br.Close()
}
