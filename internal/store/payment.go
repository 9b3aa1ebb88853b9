package store

import (
	"context"
	"time"

	"automedic-booking/internal/model"
)

const intentColumns = `id, amount_minor_units, currency, order_name, customer_id, state, created_at, updated_at`

func (s *Store) CreateIntent(ctx context.Context, pi *model.PaymentIntent) error {
	return s.pool.QueryRow(ctx,
		`INSERT INTO payment_intents (id, amount_minor_units, currency, order_name, customer_id, state)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 RETURNING created_at, updated_at`,
		pi.ID, pi.AmountMinorUnits, pi.Currency, pi.Metadata.OrderName, pi.Metadata.CustomerID, string(pi.State),
	).Scan(&pi.CreatedAt, &pi.UpdatedAt)
}

func (s *Store) GetIntent(ctx context.Context, id string) (*model.PaymentIntent, error) {
	pi, err := scanIntent(s.pool.QueryRow(ctx,
		`SELECT `+intentColumns+` FROM payment_intents WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return pi, nil
}

// TransitionIntent moves a created intent to the terminal state to. The
// guard on state makes the update a no-op for intents already terminal;
// changed reports whether this call performed the transition.
func (s *Store) TransitionIntent(ctx context.Context, id string, to model.IntentState) (*model.PaymentIntent, bool, error) {
	pi, err := scanIntent(s.pool.QueryRow(ctx,
		`UPDATE payment_intents SET state = $2, updated_at = NOW()
		 WHERE id = $1 AND state = 'created'
		 RETURNING `+intentColumns, id, string(to)))
	if err == nil {
		return pi, true, nil
	}
	if err := notFound(err); err != ErrNotFound {
		return nil, false, err
	}

	// either unknown or already terminal
	pi, err = s.GetIntent(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return pi, false, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIntent(row rowScanner) (*model.PaymentIntent, error) {
	pi := &model.PaymentIntent{}
	var state string
	err := row.Scan(&pi.ID, &pi.AmountMinorUnits, &pi.Currency, &pi.Metadata.OrderName,
		&pi.Metadata.CustomerID, &state, &pi.CreatedAt, &pi.UpdatedAt)
	if err != nil {
		return nil, err
	}
	pi.State = model.IntentState(state)
	return pi, nil
}

func (s *Store) EventSeen(ctx context.Context, eventID string) (bool, error) {
	var seen bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM webhook_events WHERE event_id = $1)`, eventID,
	).Scan(&seen)
	return seen, err
}

func (s *Store) RememberEvent(ctx context.Context, eventID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO webhook_events (event_id) VALUES ($1) ON CONFLICT (event_id) DO NOTHING`, eventID)
	return err
}

// PurgeEvents drops processed event ids older than ttl. Providers stop
// redelivering long before that, so the ids are no longer needed.
func (s *Store) PurgeEvents(ctx context.Context, ttl time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM webhook_events WHERE processed_at < $1`, time.Now().Add(-ttl))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
