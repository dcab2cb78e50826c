package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/mealmates/backend/internal/accounts"
	"github.com/mealmates/backend/internal/logging"
	"github.com/mealmates/backend/internal/storage"
)

const maxAvatarBytes = 5 << 20

// UserHandler serves profile endpoints for the authenticated user and lookups
// of other users.
type UserHandler struct {
	Accounts AccountService
	Friends  FriendService
	Sessions SessionManager
	Avatars  AvatarStorage
}

// Me handles GET /api/v1/users/me.
func (h UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if !h.ready(w, r) {
		return
	}
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	user, err := h.Accounts.FindByID(ctx, userID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, newUserResponse(user, true))
}

// Get handles GET /api/v1/users/{id}. The response carries the relationship
// between the caller and the requested user.
func (h UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if !h.ready(w, r) {
		return
	}
	callerID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	user, err := h.Accounts.FindByID(ctx, mux.Vars(r)["id"])
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	resp := newUserResponse(user, user.ID == callerID)
	if h.Friends != nil && user.ID != callerID {
		state, err := h.Friends.Relationship(ctx, callerID, user.ID)
		if err != nil {
			respondError(ctx, w, err)
			return
		}
		resp.Friendship = string(state)
	}

	respondJSON(ctx, w, http.StatusOK, resp)
}

// Lookup handles GET /api/v1/users?username=... and GET /api/v1/users?email=...
func (h UserHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if !h.ready(w, r) {
		return
	}
	callerID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	username := strings.TrimSpace(query.Get("username"))
	email := strings.TrimSpace(query.Get("email"))

	var (
		resp userResponse
		err  error
	)
	switch {
	case username != "":
		user, findErr := h.Accounts.FindByUsername(ctx, username)
		resp, err = newUserResponse(user, user.ID == callerID), findErr
	case email != "":
		user, findErr := h.Accounts.FindByEmail(ctx, email)
		resp, err = newUserResponse(user, user.ID == callerID), findErr
	default:
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "username or email query parameter is required"})
		return
	}
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, resp)
}

// Availability handles GET /api/v1/users/availability?username=... or ?email=...
// It is public so signup forms can validate before submitting.
func (h UserHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if !h.ready(w, r) {
		return
	}

	query := r.URL.Query()
	var (
		available bool
		err       error
	)
	switch {
	case query.Get("username") != "":
		available, err = h.Accounts.UsernameAvailable(ctx, query.Get("username"))
	case query.Get("email") != "":
		available, err = h.Accounts.EmailAvailable(ctx, query.Get("email"))
	default:
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "username or email query parameter is required"})
		return
	}
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]bool{"available": available})
}

// UpdateMe handles PATCH /api/v1/users/me.
func (h UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if !h.ready(w, r) {
		return
	}
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logging.FromContext(ctx).Warn("invalid profile payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	user, err := h.Accounts.UpdateProfile(ctx, userID, accounts.ProfileUpdate{Username: req.Username, Language: req.Language})
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, newUserResponse(user, true))
}

// UpdateEmail handles PUT /api/v1/users/me/email.
func (h UserHandler) UpdateEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if !h.ready(w, r) {
		return
	}
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req updateEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	user, err := h.Accounts.UpdateEmail(ctx, userID, req.Email)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, newUserResponse(user, true))
}

// ChangePassword handles PUT /api/v1/users/me/password. Every existing session
// of the user is revoked and a fresh one is returned.
func (h UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)
	if !h.ready(w, r) {
		return
	}
	if h.Sessions == nil {
		logger.Error("session manager unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "session service unavailable"})
		return
	}
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	user, err := h.Accounts.ChangePassword(ctx, userID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	if err := h.Sessions.RevokeAll(ctx, user.ID); err != nil {
		logger.Error("revoke sessions after password change", "error", err, "userId", user.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to reset sessions"})
		return
	}

	tokens, err := h.Sessions.Issue(ctx, user.ID)
	if err != nil {
		logger.Error("issue session after password change", "error", err, "userId", user.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to create session"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, authResponse{User: newUserResponse(user, true), Tokens: tokens})
}

// UploadAvatar handles PUT /api/v1/users/me/avatar. The request body is the
// raw image.
func (h UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if !h.ready(w, r) {
		return
	}
	if h.Avatars == nil {
		respondJSON(ctx, w, http.StatusServiceUnavailable, map[string]string{"error": "avatar uploads are not configured"})
		return
	}
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	contentType := strings.TrimSpace(strings.Split(r.Header.Get("Content-Type"), ";")[0])
	if _, ok := storage.AvatarContentTypes[contentType]; !ok {
		respondJSON(ctx, w, http.StatusUnsupportedMediaType, map[string]string{"error": "unsupported avatar image type"})
		return
	}
	if r.ContentLength > maxAvatarBytes {
		respondJSON(ctx, w, http.StatusRequestEntityTooLarge, map[string]string{"error": "avatar image too large"})
		return
	}

	location, err := h.Avatars.UploadAvatar(ctx, userID, contentType, http.MaxBytesReader(w, r.Body, maxAvatarBytes))
	if err != nil {
		logging.FromContext(ctx).Error("avatar upload failed", "error", err, "userId", userID)
		respondJSON(ctx, w, http.StatusBadGateway, map[string]string{"error": "failed to store avatar"})
		return
	}

	user, err := h.Accounts.UpdateProfile(ctx, userID, accounts.ProfileUpdate{AvatarURL: &location})
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, newUserResponse(user, true))
}

func (h UserHandler) ready(w http.ResponseWriter, r *http.Request) bool {
	if h.Accounts != nil {
		return true
	}
	logging.FromContext(r.Context()).Error("account service unavailable")
	respondJSON(r.Context(), w, http.StatusInternalServerError, map[string]string{"error": "account service unavailable"})
	return false
}

type updateProfileRequest struct {
	Username *string `json:"username"`
	Language *string `json:"language"`
}

type updateEmailRequest struct {
	Email string `json:"email"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}
