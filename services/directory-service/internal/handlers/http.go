package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/hourbook/libs/outbox"
	"github.com/md-rashed-zaman/hourbook/services/directory-service/internal/storage"
)

type Handler struct {
	repo   *storage.Repository
	outbox *outbox.Repository
	logger *slog.Logger
}

func New(repo *storage.Repository, outboxRepo *outbox.Repository, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, outbox: outboxRepo, logger: logger}
}

func userIDFromHeader(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-Id"))
}

func isProviderRequest(r *http.Request) bool {
	return strings.TrimSpace(r.Header.Get("X-User-Provider")) == "true"
}

type profileRequest struct {
	Handle    string `json:"handle"`
	AvatarURL string `json:"avatar_url"`
	Bookable  bool   `json:"bookable"`
}

type providerItem struct {
	ID        string `json:"id"`
	Handle    string `json:"handle"`
	AvatarURL string `json:"avatar_url"`
}

type scheduleItem struct {
	AppointmentID string `json:"appointment_id"`
	RequesterID   string `json:"requester_id"`
	Date          string `json:"date"`
}

// Profile handles PUT and GET on the caller's own provider profile. A PUT
// upserts the profile and emits the provider-updated event in the same
// transaction.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut:
		h.updateProfile(w, r)
	case http.MethodGet:
		h.getProfile(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromHeader(r)
	if userID == "" {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}

	p, err := h.repo.GetProfile(r.Context(), userID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "profile not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load profile", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":         p.UserID,
		"handle":     p.Handle,
		"avatar_url": p.AvatarURL,
		"bookable":   p.Bookable,
	})
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromHeader(r)
	if userID == "" {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	if !isProviderRequest(r) {
		http.Error(w, "provider account required", http.StatusForbidden)
		return
	}

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Handle = strings.TrimSpace(req.Handle)
	req.AvatarURL = strings.TrimSpace(req.AvatarURL)
	if req.Handle == "" {
		http.Error(w, "handle required", http.StatusBadRequest)
		return
	}

	profile := storage.ProviderProfile{
		UserID:    userID,
		Handle:    req.Handle,
		AvatarURL: req.AvatarURL,
		Bookable:  req.Bookable,
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "failed to start transaction", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.UpsertProfileTx(ctx, tx, profile); err != nil {
		http.Error(w, "failed to save profile", http.StatusInternalServerError)
		return
	}

	payload, err := json.Marshal(map[string]any{
		"provider_id": profile.UserID,
		"handle":      profile.Handle,
		"avatar_url":  profile.AvatarURL,
		"bookable":    profile.Bookable,
		"updated_at":  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "provider",
		AggregateID:   profile.UserID,
		EventType:     "directory.provider.updated.v1",
		Payload:       payload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":         profile.UserID,
		"handle":     profile.Handle,
		"avatar_url": profile.AvatarURL,
		"bookable":   profile.Bookable,
	})
}

// Providers lists bookable providers for requester-facing pickers.
func (h *Handler) Providers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 100
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	profiles, err := h.repo.ListBookable(r.Context(), limit)
	if err != nil {
		http.Error(w, "failed to list providers", http.StatusInternalServerError)
		return
	}

	items := make([]providerItem, 0, len(profiles))
	for _, p := range profiles {
		items = append(items, providerItem{
			ID:        p.UserID,
			Handle:    p.Handle,
			AvatarURL: p.AvatarURL,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(items)
}

// Schedule lists the authenticated provider's own active appointments for
// one day, ascending.
func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := userIDFromHeader(r)
	if userID == "" {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	if !isProviderRequest(r) {
		http.Error(w, "provider account required", http.StatusForbidden)
		return
	}

	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if dateStr == "" {
		http.Error(w, "date required", http.StatusBadRequest)
		return
	}
	day, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		http.Error(w, "invalid date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	entries, err := h.repo.DaySchedule(r.Context(), userID, day.UTC())
	if err != nil {
		http.Error(w, "failed to load schedule", http.StatusInternalServerError)
		return
	}

	items := make([]scheduleItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, scheduleItem{
			AppointmentID: e.AppointmentID,
			RequesterID:   e.RequesterID,
			Date:          e.StartsAt.UTC().Format(time.RFC3339),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(items)
}
