// Package booking is the decision core: it owns the rules that say whether
// a (provider, slot) pair may be reserved and how a requester's active
// appointments are read back.
package booking

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/hourbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/hourbook/services/booking-service/internal/slot"
)

// PageSize is the fixed listing page size.
const PageSize = 20

// InsertOutcome is the tagged result of a ledger insert. The availability
// gate runs before the insert, but two requests can pass it concurrently;
// the storage layer's uniqueness constraint is what actually decides, and
// Conflict is an ordinary outcome, not a fault.
type InsertOutcome int

const (
	Inserted InsertOutcome = iota
	InsertConflict
	InsertFault
)

// Ledger is the authoritative appointment store.
type Ledger interface {
	Insert(ctx context.Context, appt model.Appointment) (model.Appointment, InsertOutcome, error)
	SlotTaken(ctx context.Context, providerID string, startsAt time.Time) (bool, error)
	ListActive(ctx context.Context, requesterID string, page int) ([]model.Appointment, error)
	Get(ctx context.Context, id string) (model.Appointment, error)
	Cancel(ctx context.Context, id string) (time.Time, error)
}

// Directory answers whether a provider exists and accepts bookings. A false
// answer deliberately conflates "unknown" with "opted out"; callers get a
// single invalid_provider rejection either way.
type Directory interface {
	IsBookable(ctx context.Context, providerID string) (bool, error)
}

type Service struct {
	ledger    Ledger
	directory Directory
	logger    *slog.Logger
	now       func() time.Time
}

// NewService wires the orchestrator. now may be nil, in which case wall
// clock UTC is used; tests inject a fixed clock.
func NewService(ledger Ledger, directory Directory, logger *slog.Logger, now func() time.Time) *Service {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		ledger:    ledger,
		directory: directory,
		logger:    logger,
		now:       now,
	}
}

// Create runs the booking gates strictly in order, short-circuiting on the
// first failure: structural validation, provider lookup, pastness, slot
// availability, then the insert itself. A lost insert race surfaces as the
// same slot_unavailable the availability gate would have produced.
func (s *Service) Create(ctx context.Context, requesterID string, req CreateRequest) (model.Appointment, error) {
	validated, err := ParseCreateRequest(req)
	if err != nil {
		return model.Appointment{}, err
	}

	bookable, err := s.directory.IsBookable(ctx, validated.ProviderID)
	if err != nil {
		s.logger.Error("provider directory lookup failed", "err", err, "provider_id", validated.ProviderID)
		return model.Appointment{}, reject(CodeStorageUnavailable, "service temporarily unavailable")
	}
	if !bookable {
		return model.Appointment{}, reject(CodeInvalidProvider, "provider does not accept bookings")
	}

	startsAt := slot.StartOfHour(validated.Date)
	now := s.now()
	if slot.IsPast(startsAt, now) || startsAt.Equal(now) {
		return model.Appointment{}, reject(CodePastDate, "booking date must be in the future")
	}

	taken, err := s.ledger.SlotTaken(ctx, validated.ProviderID, startsAt)
	if err != nil {
		s.logger.Error("availability check failed", "err", err)
		return model.Appointment{}, reject(CodeStorageUnavailable, "service temporarily unavailable")
	}
	if taken {
		return model.Appointment{}, reject(CodeSlotUnavailable, "slot is already booked")
	}

	appt := model.Appointment{
		RequesterID: requesterID,
		ProviderID:  validated.ProviderID,
		StartsAt:    startsAt,
	}
	created, outcome, err := s.ledger.Insert(ctx, appt)
	switch outcome {
	case Inserted:
		return created, nil
	case InsertConflict:
		// Lost the race between gate and insert; first writer wins.
		return model.Appointment{}, reject(CodeSlotUnavailable, "slot is already booked")
	default:
		s.logger.Error("appointment insert failed", "err", err)
		return model.Appointment{}, reject(CodeStorageUnavailable, "service temporarily unavailable")
	}
}

// List returns the requester's active appointments, ascending by slot,
// PageSize per page. Pages past the end are empty, not errors.
func (s *Service) List(ctx context.Context, requesterID string, page int) ([]model.Appointment, error) {
	if page < 1 {
		page = 1
	}
	appts, err := s.ledger.ListActive(ctx, requesterID, page)
	if err != nil {
		s.logger.Error("appointment listing failed", "err", err)
		return nil, reject(CodeStorageUnavailable, "service temporarily unavailable")
	}
	return appts, nil
}

// Cancel marks an appointment canceled. Only the requester or the booked
// provider may cancel; cancellation is terminal and repeat attempts are
// rejected with already_canceled.
func (s *Service) Cancel(ctx context.Context, actorID, appointmentID string) (model.Appointment, error) {
	appt, err := s.ledger.Get(ctx, appointmentID)
	if err != nil {
		if err == ErrLedgerNotFound {
			return model.Appointment{}, reject(CodeNotFound, "appointment not found")
		}
		s.logger.Error("appointment load failed", "err", err)
		return model.Appointment{}, reject(CodeStorageUnavailable, "service temporarily unavailable")
	}

	if actorID != appt.RequesterID && actorID != appt.ProviderID {
		return model.Appointment{}, reject(CodeNotAllowed, "only the requester or the provider may cancel")
	}
	if appt.CanceledAt != nil {
		return model.Appointment{}, reject(CodeAlreadyCanceled, "appointment is already canceled")
	}

	canceledAt, err := s.ledger.Cancel(ctx, appointmentID)
	if err != nil {
		switch err {
		case ErrLedgerAlreadyCanceled:
			return model.Appointment{}, reject(CodeAlreadyCanceled, "appointment is already canceled")
		case ErrLedgerNotFound:
			return model.Appointment{}, reject(CodeNotFound, "appointment not found")
		}
		s.logger.Error("appointment cancel failed", "err", err)
		return model.Appointment{}, reject(CodeStorageUnavailable, "service temporarily unavailable")
	}

	appt.CanceledAt = &canceledAt
	return appt, nil
}
