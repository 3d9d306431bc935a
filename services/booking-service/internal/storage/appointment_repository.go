package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/hourbook/libs/db"
	"github.com/md-rashed-zaman/hourbook/libs/outbox"
	"github.com/md-rashed-zaman/hourbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/hourbook/services/booking-service/internal/model"
)

// AppointmentRepository is the ledger's Postgres implementation.
//
// Invariant 2 (no double-booking) is enforced here as the last line of
// defense by a partial unique index:
//
//	CREATE UNIQUE INDEX appointments_provider_slot_active
//	ON appointments (provider_id, starts_at) WHERE canceled_at IS NULL;
//
// A 23505 on that index is reported as a Conflict outcome, never an error.
type AppointmentRepository struct {
	pool       *db.Pool
	outboxRepo *outbox.Repository
}

func NewAppointmentRepository(pool *db.Pool, outboxRepo *outbox.Repository) *AppointmentRepository {
	return &AppointmentRepository{pool: pool, outboxRepo: outboxRepo}
}

// Insert writes the appointment and its booked event in one transaction,
// so the event exists exactly when the row does.
func (r *AppointmentRepository) Insert(ctx context.Context, appt model.Appointment) (model.Appointment, booking.InsertOutcome, error) {
	appt.ID = uuid.NewString()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, booking.InsertFault, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO appointments (id, requester_id, provider_id, starts_at)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, appt.ID, appt.RequesterID, appt.ProviderID, appt.StartsAt).Scan(&appt.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return model.Appointment{}, booking.InsertConflict, nil
		}
		return model.Appointment{}, booking.InsertFault, err
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"requester_id":   appt.RequesterID,
		"provider_id":    appt.ProviderID,
		"starts_at":      appt.StartsAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return model.Appointment{}, booking.InsertFault, err
	}
	if err := r.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     "booking.appointment.booked.v1",
		Payload:       payload,
	}); err != nil {
		return model.Appointment{}, booking.InsertFault, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, booking.InsertFault, err
	}
	return appt, booking.Inserted, nil
}

func (r *AppointmentRepository) SlotTaken(ctx context.Context, providerID string, startsAt time.Time) (bool, error) {
	var taken bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM appointments
			WHERE provider_id = $1
			  AND starts_at = $2
			  AND canceled_at IS NULL
		)
	`, providerID, startsAt).Scan(&taken)
	if err != nil {
		return false, err
	}
	return taken, nil
}

func (r *AppointmentRepository) ListActive(ctx context.Context, requesterID string, page int) ([]model.Appointment, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * booking.PageSize

	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.requester_id, a.provider_id, a.starts_at, a.created_at,
			d.provider_id IS NOT NULL,
			COALESCE(d.handle, ''),
			COALESCE(d.avatar_url, '')
		FROM appointments a
		LEFT JOIN provider_directory d ON d.provider_id = a.provider_id
		WHERE a.requester_id = $1
		  AND a.canceled_at IS NULL
		ORDER BY a.starts_at ASC
		LIMIT $2 OFFSET $3
	`, requesterID, booking.PageSize, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		var appt model.Appointment
		var known bool
		var handle, avatarURL string
		if err := rows.Scan(
			&appt.ID,
			&appt.RequesterID,
			&appt.ProviderID,
			&appt.StartsAt,
			&appt.CreatedAt,
			&known,
			&handle,
			&avatarURL,
		); err != nil {
			return nil, err
		}
		if known {
			appt.Provider = &model.ProviderSummary{
				ID:        appt.ProviderID,
				Handle:    handle,
				AvatarURL: avatarURL,
			}
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func (r *AppointmentRepository) Get(ctx context.Context, id string) (model.Appointment, error) {
	var appt model.Appointment
	var canceledAt *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT id, requester_id, provider_id, starts_at, canceled_at, created_at
		FROM appointments
		WHERE id = $1
	`, id).Scan(
		&appt.ID,
		&appt.RequesterID,
		&appt.ProviderID,
		&appt.StartsAt,
		&canceledAt,
		&appt.CreatedAt,
	)
	if err != nil {
		if db.IsNotFound(err) {
			return model.Appointment{}, booking.ErrLedgerNotFound
		}
		return model.Appointment{}, err
	}
	appt.CanceledAt = canceledAt
	return appt, nil
}

// Cancel sets the terminal cancellation timestamp. The row is locked so a
// concurrent cancel of the same appointment observes the already-set
// timestamp instead of overwriting it.
func (r *AppointmentRepository) Cancel(ctx context.Context, id string) (time.Time, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return time.Time{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var requesterID, providerID string
	var startsAt time.Time
	var canceledAt *time.Time
	err = tx.QueryRow(ctx, `
		SELECT requester_id, provider_id, starts_at, canceled_at
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&requesterID, &providerID, &startsAt, &canceledAt)
	if err != nil {
		if db.IsNotFound(err) {
			return time.Time{}, booking.ErrLedgerNotFound
		}
		return time.Time{}, err
	}
	if canceledAt != nil {
		return time.Time{}, booking.ErrLedgerAlreadyCanceled
	}

	var stamped time.Time
	err = tx.QueryRow(ctx, `
		UPDATE appointments
		SET canceled_at = now()
		WHERE id = $1
		RETURNING canceled_at
	`, id).Scan(&stamped)
	if err != nil {
		return time.Time{}, err
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": id,
		"requester_id":   requesterID,
		"provider_id":    providerID,
		"starts_at":      startsAt.UTC().Format(time.RFC3339),
		"canceled_at":    stamped.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return time.Time{}, err
	}
	if err := r.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   id,
		EventType:     "booking.appointment.canceled.v1",
		Payload:       payload,
	}); err != nil {
		return time.Time{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return time.Time{}, err
	}
	return stamped, nil
}
