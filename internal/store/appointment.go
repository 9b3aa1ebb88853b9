package store

import (
	"context"

	"automedic-booking/internal/model"
)

func (s *Store) BookedTimes(ctx context.Context, date string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT slot_time FROM appointments WHERE slot_date = $1`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// InsertAppointment commits a, returning ErrSlotTaken when (date, time) is
// already held. The change notification is part of the same transaction.
func (s *Store) InsertAppointment(ctx context.Context, a *model.Appointment) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO appointments (id, customer_id, customer_name, customer_email, phone, slot_date, slot_time, note)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 RETURNING created_at`,
		a.ID, a.CustomerID, a.CustomerName, a.CustomerEmail, a.Phone, a.Date, a.Time, a.Note,
	).Scan(&a.CreatedAt)
	if err != nil {
		// unique constraint caught a race
		if isUnique(err, "appointments_slot_key") {
			return ErrSlotTaken
		}
		return err
	}

	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, changeChannel, a.Date); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) GetAppointment(ctx context.Context, id string) (*model.Appointment, error) {
	a := &model.Appointment{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, customer_id, customer_name, customer_email, phone, slot_date, slot_time, note, created_at
		 FROM appointments WHERE id = $1`, id,
	).Scan(&a.ID, &a.CustomerID, &a.CustomerName, &a.CustomerEmail, &a.Phone, &a.Date, &a.Time, &a.Note, &a.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func (s *Store) DeleteAppointment(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var date string
	err = tx.QueryRow(ctx,
		`DELETE FROM appointments WHERE id = $1 RETURNING slot_date`, id,
	).Scan(&date)
	if err != nil {
		return notFound(err)
	}

	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, changeChannel, date); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) AppointmentsByCustomer(ctx context.Context, customerID string) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, customer_id, customer_name, customer_email, phone, slot_date, slot_time, note, created_at
		 FROM appointments
		 WHERE customer_id = $1
		 ORDER BY slot_date, created_at`, customerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		var a model.Appointment
		if err := rows.Scan(
			&a.ID, &a.CustomerID, &a.CustomerName, &a.CustomerEmail, &a.Phone,
			&a.Date, &a.Time, &a.Note, &a.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Changes streams the date of every committed appointment insert or delete,
// from any process sharing the database. The channel closes when ctx ends or
// the listening connection fails.
func (s *Store) Changes(ctx context.Context) (<-chan string, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(ctx, "LISTEN "+changeChannel); err != nil {
		conn.Release()
		return nil, err
	}

	out := make(chan string, 64)
	go func() {
		defer close(out)
		defer func() {
			_, _ = conn.Exec(context.Background(), "UNLISTEN *")
			conn.Release()
		}()
		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				return
			}
			select {
			case out <- n.Payload:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
