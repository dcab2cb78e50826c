package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/mealmates/backend/internal/accounts"
	"github.com/mealmates/backend/internal/auth"
	"github.com/mealmates/backend/internal/friends"
	"github.com/mealmates/backend/internal/labels"
	"github.com/mealmates/backend/internal/logging"
	"github.com/mealmates/backend/internal/models"
	"github.com/mealmates/backend/internal/repositories"
)

const maxBodyBytes = 1 << 20

type userResponse struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email,omitempty"`
	Language   string    `json:"language"`
	AvatarURL  string    `json:"avatarUrl,omitempty"`
	Friendship string    `json:"friendship,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// newUserResponse renders a user. The email address is only exposed to the
// account owner.
func newUserResponse(user models.User, self bool) userResponse {
	resp := userResponse{
		ID:        user.ID,
		Username:  user.Username,
		Language:  user.Language,
		AvatarURL: user.AvatarURL,
		CreatedAt: user.CreatedAt,
	}
	if self {
		resp.Email = user.Email
	}
	return resp
}

type friendshipResponse struct {
	ID          string    `json:"id"`
	RequesterID string    `json:"requesterId"`
	TargetID    string    `json:"targetId"`
	State       string    `json:"state"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func newFriendshipResponse(edge models.Friendship) friendshipResponse {
	return friendshipResponse{
		ID:          edge.ID,
		RequesterID: edge.RequesterID,
		TargetID:    edge.TargetID,
		State:       string(edge.State()),
		CreatedAt:   edge.CreatedAt,
		UpdatedAt:   edge.UpdatedAt,
	}
}

func newFriendshipResponses(edges []models.Friendship) []friendshipResponse {
	out := make([]friendshipResponse, 0, len(edges))
	for _, edge := range edges {
		out = append(out, newFriendshipResponse(edge))
	}
	return out
}

type eventResponse struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	StartsAt    time.Time `json:"startsAt"`
	CreatedAt   time.Time `json:"createdAt"`
}

func newEventResponse(event models.Event) eventResponse {
	return eventResponse{
		ID:          event.ID,
		OwnerID:     event.OwnerID,
		Title:       event.Title,
		Description: event.Description,
		Location:    event.Location,
		StartsAt:    event.StartsAt,
		CreatedAt:   event.CreatedAt,
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
}

func currentUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		respondJSON(r.Context(), w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return "", false
	}
	return userID, true
}

// errorStatus maps domain and storage errors onto HTTP status codes and the
// message returned to clients.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, accounts.ErrInvalidInput), errors.Is(err, friends.ErrInvalidOperation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, accounts.ErrAuthenticationFailed):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, accounts.ErrUsernameTaken):
		return http.StatusConflict, "username already taken"
	case errors.Is(err, accounts.ErrEmailTaken):
		return http.StatusConflict, "email already registered"
	case errors.Is(err, repositories.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, repositories.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, repositories.ErrUnavailable), errors.Is(err, labels.ErrCatalogUnavailable):
		return http.StatusServiceUnavailable, "service temporarily unavailable"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	status, message := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(ctx).Error("request error", "error", err)
	}
	respondJSON(ctx, w, status, map[string]string{"error": message})
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}
