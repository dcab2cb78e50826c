package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mealmates/backend/internal/logging"
	"github.com/mealmates/backend/internal/models"
)

// EventHandler lets users publish meal events and read the events of their
// friends.
type EventHandler struct {
	Events  EventStore
	NowFunc func() time.Time
}

// Create handles POST /api/v1/events.
func (h EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)
	if h.Events == nil {
		logger.Error("event store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "event service unavailable"})
		return
	}
	ownerID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req createEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid event payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || req.StartsAt.IsZero() {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "title and startsAt are required"})
		return
	}

	event := models.Event{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Title:       req.Title,
		Description: strings.TrimSpace(req.Description),
		Location:    strings.TrimSpace(req.Location),
		StartsAt:    req.StartsAt.UTC(),
		CreatedAt:   h.now(),
	}

	if err := h.Events.Create(ctx, event); err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusCreated, newEventResponse(event))
}

// Feed handles GET /api/v1/events/feed: the caller's events and those of
// accepted friends, newest first.
func (h EventHandler) Feed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if h.Events == nil {
		logging.FromContext(ctx).Error("event store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "event service unavailable"})
		return
	}
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	events, err := h.Events.ListFeed(ctx, userID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	resp := feedResponse{Events: make([]eventResponse, 0, len(events))}
	for _, event := range events {
		resp.Events = append(resp.Events, newEventResponse(event))
	}
	respondJSON(ctx, w, http.StatusOK, resp)
}

func (h EventHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

type createEventRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	StartsAt    time.Time `json:"startsAt"`
}

type feedResponse struct {
	Events []eventResponse `json:"events"`
}
