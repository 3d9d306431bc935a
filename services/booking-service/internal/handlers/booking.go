package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/hourbook/libs/httpx"
	"github.com/md-rashed-zaman/hourbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/hourbook/services/booking-service/internal/model"
)

// BookingHandler exposes the booking core over HTTP. It trusts the gateway
// to authenticate: the requester identity arrives as the X-User-Id header.
type BookingHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewBookingHandler(svc *booking.Service, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger}
}

type appointmentItem struct {
	ID         string        `json:"id"`
	Date       string        `json:"date"`
	CanceledAt string        `json:"canceled_at,omitempty"`
	CreatedAt  string        `json:"created_at"`
	Provider   *providerItem `json:"provider,omitempty"`
}

type providerItem struct {
	ID        string `json:"id"`
	Handle    string `json:"handle"`
	AvatarURL string `json:"avatar_url"`
}

type cancelRequest struct {
	AppointmentID string `json:"appointment_id"`
}

func toItem(appt model.Appointment) appointmentItem {
	item := appointmentItem{
		ID:        appt.ID,
		Date:      appt.StartsAt.UTC().Format(time.RFC3339),
		CreatedAt: appt.CreatedAt.UTC().Format(time.RFC3339),
	}
	if appt.CanceledAt != nil {
		item.CanceledAt = appt.CanceledAt.UTC().Format(time.RFC3339)
	}
	if appt.Provider != nil {
		item.Provider = &providerItem{
			ID:        appt.Provider.ID,
			Handle:    appt.Provider.Handle,
			AvatarURL: appt.Provider.AvatarURL,
		}
	}
	return item
}

// statusFor maps rejection codes onto HTTP statuses. The code travels in
// the body; the status is advisory.
func statusFor(code booking.Code) int {
	switch code {
	case booking.CodeInvalidRequest, booking.CodeInvalidProvider, booking.CodePastDate:
		return http.StatusBadRequest
	case booking.CodeSlotUnavailable, booking.CodeAlreadyCanceled:
		return http.StatusConflict
	case booking.CodeNotFound:
		return http.StatusNotFound
	case booking.CodeNotAllowed:
		return http.StatusForbidden
	case booking.CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *BookingHandler) writeRejection(w http.ResponseWriter, err error) {
	e, ok := booking.AsError(err)
	if !ok {
		h.logger.Error("unexpected booking error", "err", err)
		httpx.Error(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	if len(e.Fields) > 0 {
		httpx.ErrorFields(w, statusFor(e.Code), string(e.Code), e.Message, e.Fields)
		return
	}
	httpx.Error(w, statusFor(e.Code), string(e.Code), e.Message)
}

func requesterID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-Id"))
}

// Appointments routes POST (create) and GET (list) on the collection.
func (h *BookingHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *BookingHandler) create(w http.ResponseWriter, r *http.Request) {
	requester := requesterID(r)
	if requester == "" {
		httpx.Error(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}

	var req booking.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Error(w, http.StatusBadRequest, string(booking.CodeInvalidRequest), "invalid json body")
		return
	}

	appt, err := h.svc.Create(r.Context(), requester, req)
	if err != nil {
		h.writeRejection(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toItem(appt))
}

func (h *BookingHandler) list(w http.ResponseWriter, r *http.Request) {
	requester := requesterID(r)
	if requester == "" {
		httpx.Error(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}

	page := 1
	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			page = n
		}
	}

	appts, err := h.svc.List(r.Context(), requester, page)
	if err != nil {
		h.writeRejection(w, err)
		return
	}

	items := make([]appointmentItem, 0, len(appts))
	for _, appt := range appts {
		items = append(items, toItem(appt))
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	actor := requesterID(r)
	if actor == "" {
		httpx.Error(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Error(w, http.StatusBadRequest, string(booking.CodeInvalidRequest), "invalid json body")
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		httpx.Error(w, http.StatusBadRequest, string(booking.CodeInvalidRequest), "appointment_id required")
		return
	}

	appt, err := h.svc.Cancel(r.Context(), actor, req.AppointmentID)
	if err != nil {
		h.writeRejection(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toItem(appt))
}
