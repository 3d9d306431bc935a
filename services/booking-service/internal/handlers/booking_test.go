package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/md-rashed-zaman/hourbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/hourbook/services/booking-service/internal/model"
)

type memLedger struct {
	appointments map[string]model.Appointment
	nextID       int
}

func newMemLedger() *memLedger {
	return &memLedger{appointments: make(map[string]model.Appointment)}
}

func (m *memLedger) Insert(ctx context.Context, appt model.Appointment) (model.Appointment, booking.InsertOutcome, error) {
	for _, a := range m.appointments {
		if a.ProviderID == appt.ProviderID && a.StartsAt.Equal(appt.StartsAt) && a.Active() {
			return model.Appointment{}, booking.InsertConflict, nil
		}
	}
	m.nextID++
	appt.ID = "appt-" + strconv.Itoa(m.nextID)
	appt.CreatedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.appointments[appt.ID] = appt
	return appt, booking.Inserted, nil
}

func (m *memLedger) SlotTaken(ctx context.Context, providerID string, startsAt time.Time) (bool, error) {
	for _, a := range m.appointments {
		if a.ProviderID == providerID && a.StartsAt.Equal(startsAt) && a.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (m *memLedger) ListActive(ctx context.Context, requesterID string, page int) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range m.appointments {
		if a.RequesterID == requesterID && a.Active() {
			a.Provider = &model.ProviderSummary{ID: a.ProviderID, Handle: "docbrown", AvatarURL: "https://cdn.example/avatar.png"}
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	offset := (page - 1) * booking.PageSize
	if offset >= len(out) {
		return nil, nil
	}
	end := offset + booking.PageSize
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

func (m *memLedger) Get(ctx context.Context, id string) (model.Appointment, error) {
	a, ok := m.appointments[id]
	if !ok {
		return model.Appointment{}, booking.ErrLedgerNotFound
	}
	return a, nil
}

func (m *memLedger) Cancel(ctx context.Context, id string) (time.Time, error) {
	a, ok := m.appointments[id]
	if !ok {
		return time.Time{}, booking.ErrLedgerNotFound
	}
	if a.CanceledAt != nil {
		return time.Time{}, booking.ErrLedgerAlreadyCanceled
	}
	at := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	a.CanceledAt = &at
	m.appointments[id] = a
	return at, nil
}

type allowAllDirectory struct{}

func (allowAllDirectory) IsBookable(ctx context.Context, providerID string) (bool, error) {
	return true, nil
}

const handlerProvider = "4f8a2b6c-1d3e-4a5b-8c7d-9e0f1a2b3c4d"

func newTestHandler() (*BookingHandler, *memLedger) {
	ledger := newMemLedger()
	logger := slog.New(slog.DiscardHandler)
	now := func() time.Time { return time.Date(2026, 3, 10, 10, 30, 0, 0, time.UTC) }
	svc := booking.NewService(ledger, allowAllDirectory{}, logger, now)
	return NewBookingHandler(svc, logger), ledger
}

func decodeErrorCode(t *testing.T, body *strings.Reader) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code   string   `json:"code"`
			Fields []string `json:"fields"`
		} `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return envelope.Error.Code
}

func TestAppointments_CreateAndList(t *testing.T) {
	h, _ := newTestHandler()

	body := `{"provider_id":"` + handlerProvider + `","date":"2026-03-10T14:25:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body))
	req.Header.Set("X-User-Id", "user-1")
	rec := httptest.NewRecorder()
	h.Appointments(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID   string `json:"id"`
		Date string `json:"date"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.Date != "2026-03-10T14:00:00Z" {
		t.Fatalf("expected truncated slot, got %q", created.Date)
	}

	listReq := httptest.NewRequest(http.MethodGet, "/api/v1/appointments?page=1", nil)
	listReq.Header.Set("X-User-Id", "user-1")
	listRec := httptest.NewRecorder()
	h.Appointments(listRec, listReq)

	if listRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", listRec.Code)
	}
	var items []struct {
		ID       string `json:"id"`
		Provider *struct {
			Handle string `json:"handle"`
		} `json:"provider"`
	}
	if err := json.NewDecoder(listRec.Body).Decode(&items); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(items) != 1 || items[0].ID != created.ID {
		t.Fatalf("expected the created appointment, got %+v", items)
	}
	if items[0].Provider == nil || items[0].Provider.Handle != "docbrown" {
		t.Fatalf("expected provider summary joined in, got %+v", items[0].Provider)
	}
}

func TestAppointments_ListPagePastEndIsEmpty(t *testing.T) {
	h, _ := newTestHandler()

	body := `{"provider_id":"` + handlerProvider + `","date":"2026-03-10T14:00:00Z"}`
	createReq := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body))
	createReq.Header.Set("X-User-Id", "user-1")
	createRec := httptest.NewRecorder()
	h.Appointments(createRec, createReq)
	if createRec.Code != http.StatusCreated {
		t.Fatalf("booking failed: %d", createRec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments?page=99", nil)
	req.Header.Set("X-User-Id", "user-1")
	rec := httptest.NewRecorder()
	h.Appointments(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for a page past the end, got %d", rec.Code)
	}
	var items []struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&items); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected an empty list, got %+v", items)
	}
}

func TestAppointments_MissingIdentity(t *testing.T) {
	h, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil)
	rec := httptest.NewRecorder()
	h.Appointments(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAppointments_SlotConflict(t *testing.T) {
	h, _ := newTestHandler()

	body := `{"provider_id":"` + handlerProvider + `","date":"2026-03-10T14:00:00Z"}`
	first := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body))
	first.Header.Set("X-User-Id", "user-1")
	firstRec := httptest.NewRecorder()
	h.Appointments(firstRec, first)
	if firstRec.Code != http.StatusCreated {
		t.Fatalf("first booking failed: %d", firstRec.Code)
	}

	second := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body))
	second.Header.Set("X-User-Id", "user-2")
	secondRec := httptest.NewRecorder()
	h.Appointments(secondRec, second)

	if secondRec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", secondRec.Code)
	}
	if code := decodeErrorCode(t, strings.NewReader(secondRec.Body.String())); code != "slot_unavailable" {
		t.Fatalf("expected slot_unavailable, got %q", code)
	}
}

func TestAppointments_PastDate(t *testing.T) {
	h, _ := newTestHandler()

	body := `{"provider_id":"` + handlerProvider + `","date":"2026-03-10T09:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body))
	req.Header.Set("X-User-Id", "user-1")
	rec := httptest.NewRecorder()
	h.Appointments(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := decodeErrorCode(t, strings.NewReader(rec.Body.String())); code != "past_date" {
		t.Fatalf("expected past_date, got %q", code)
	}
}

func TestAppointments_ValidationFields(t *testing.T) {
	h, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(`{}`))
	req.Header.Set("X-User-Id", "user-1")
	rec := httptest.NewRecorder()
	h.Appointments(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var envelope struct {
		Error struct {
			Code   string   `json:"code"`
			Fields []string `json:"fields"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Error.Code != "invalid_request" {
		t.Fatalf("expected invalid_request, got %q", envelope.Error.Code)
	}
	if len(envelope.Error.Fields) != 2 {
		t.Fatalf("expected both failing fields, got %v", envelope.Error.Fields)
	}
}

func TestCancel_Flow(t *testing.T) {
	h, ledger := newTestHandler()

	body := `{"provider_id":"` + handlerProvider + `","date":"2026-03-10T14:00:00Z"}`
	createReq := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body))
	createReq.Header.Set("X-User-Id", "user-1")
	createRec := httptest.NewRecorder()
	h.Appointments(createRec, createReq)
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(createRec.Body).Decode(&created); err != nil {
		t.Fatalf("decode create: %v", err)
	}

	cancelBody := `{"appointment_id":"` + created.ID + `"}`

	stranger := httptest.NewRequest(http.MethodPost, "/api/v1/appointments/cancel", strings.NewReader(cancelBody))
	stranger.Header.Set("X-User-Id", "somebody-else")
	strangerRec := httptest.NewRecorder()
	h.Cancel(strangerRec, stranger)
	if strangerRec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for stranger, got %d", strangerRec.Code)
	}

	own := httptest.NewRequest(http.MethodPost, "/api/v1/appointments/cancel", strings.NewReader(cancelBody))
	own.Header.Set("X-User-Id", "user-1")
	ownRec := httptest.NewRecorder()
	h.Cancel(ownRec, own)
	if ownRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", ownRec.Code, ownRec.Body.String())
	}
	if got := ledger.appointments[created.ID]; got.CanceledAt == nil {
		t.Fatal("expected canceled_at set in the ledger")
	}

	again := httptest.NewRequest(http.MethodPost, "/api/v1/appointments/cancel", strings.NewReader(cancelBody))
	again.Header.Set("X-User-Id", "user-1")
	againRec := httptest.NewRecorder()
	h.Cancel(againRec, again)
	if againRec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on repeat cancel, got %d", againRec.Code)
	}
	if code := decodeErrorCode(t, strings.NewReader(againRec.Body.String())); code != "already_canceled" {
		t.Fatalf("expected already_canceled, got %q", code)
	}
}

func TestCancel_NotFound(t *testing.T) {
	h, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments/cancel", strings.NewReader(`{"appointment_id":"missing"}`))
	req.Header.Set("X-User-Id", "user-1")
	rec := httptest.NewRecorder()
	h.Cancel(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
