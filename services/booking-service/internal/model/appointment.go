package model

import "time"

// Appointment is a reservation of one provider hour-slot by a requester.
// CanceledAt is terminal: once set it is never cleared, and rows are never
// physically deleted.
type Appointment struct {
	ID          string
	RequesterID string
	ProviderID  string
	StartsAt    time.Time
	CanceledAt  *time.Time
	CreatedAt   time.Time

	// Provider carries directory display data on listing reads; nil elsewhere.
	Provider *ProviderSummary
}

func (a Appointment) Active() bool {
	return a.CanceledAt == nil
}

// ProviderSummary is the directory's display view of a bookable party.
// Used only to enrich listings, never for authorization.
type ProviderSummary struct {
	ID        string
	Handle    string
	AvatarURL string
}
