package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"automedic-booking/internal/model"
)

// InsertOrder records o unless an order for the same intent exists.
// created is false for the duplicate case. Orders without an intent (cash)
// never conflict.
func (s *Store) InsertOrder(ctx context.Context, o *model.Order) (bool, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO orders (id, intent_id, order_name, customer_id, amount_minor_units, currency, payment_option)
		 VALUES ($1,NULLIF($2,''),$3,$4,$5,$6,$7)
		 ON CONFLICT (intent_id) DO NOTHING
		 RETURNING created_at`,
		o.ID, o.IntentID, o.OrderName, o.CustomerID, o.AmountMinorUnits, o.Currency, o.PaymentOption,
	).Scan(&o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) OrdersByCustomer(ctx context.Context, customerID string) ([]model.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, COALESCE(intent_id, ''), order_name, customer_id, amount_minor_units, currency, payment_option, created_at
		 FROM orders
		 WHERE customer_id = $1
		 ORDER BY created_at DESC`, customerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Order
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(&o.ID, &o.IntentID, &o.OrderName, &o.CustomerID,
			&o.AmountMinorUnits, &o.Currency, &o.PaymentOption, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
