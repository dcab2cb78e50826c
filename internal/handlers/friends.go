package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/mealmates/backend/internal/friends"
	"github.com/mealmates/backend/internal/logging"
)

// FriendHandler provides friendship request, removal and listing endpoints
// for the authenticated user.
type FriendHandler struct {
	Friends FriendService
}

// Request handles POST /api/v1/friends. It creates a pending request or
// accepts the one the other user already sent.
func (h FriendHandler) Request(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
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

	var req friendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logging.FromContext(ctx).Warn("invalid friend request payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	requester, ok := actingUser(w, r, callerID, req.UserID)
	if !ok {
		return
	}
	if strings.TrimSpace(req.FriendID) == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "friendId is required"})
		return
	}

	result, err := h.Friends.CreateOrAccept(ctx, requester, strings.TrimSpace(req.FriendID))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	status := http.StatusOK
	if result.Outcome == friends.EdgeCreated {
		status = http.StatusCreated
	}
	respondJSON(ctx, w, status, friendMutationResponse{
		Outcome:    string(result.Outcome),
		Friendship: newFriendshipResponse(result.Edge),
	})
}

// Remove handles DELETE /api/v1/friends/{friendId}. It declines a pending
// request in either direction or ends an accepted friendship. Removing a
// relationship that does not exist succeeds.
func (h FriendHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
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

	result, err := h.Friends.DeclineOrDelete(ctx, callerID, mux.Vars(r)["friendId"])
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"outcome": string(result.Outcome),
		"removed": result.Removed,
	})
}

// List handles GET /api/v1/friends. The userId query parameter defaults to the
// caller and may only name the caller.
func (h FriendHandler) List(w http.ResponseWriter, r *http.Request) {
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
	userID, ok := actingUser(w, r, callerID, r.URL.Query().Get("userId"))
	if !ok {
		return
	}

	ids, err := h.Friends.FriendsOf(ctx, userID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}

	respondJSON(ctx, w, http.StatusOK, friendListResponse{Friends: ids})
}

// Requests handles GET /api/v1/friends/requests.
func (h FriendHandler) Requests(w http.ResponseWriter, r *http.Request) {
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

	pending, err := h.Friends.Requests(ctx, callerID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, friendRequestsResponse{
		Incoming: newFriendshipResponses(pending.Incoming),
		Outgoing: newFriendshipResponses(pending.Outgoing),
	})
}

func (h FriendHandler) ready(w http.ResponseWriter, r *http.Request) bool {
	if h.Friends != nil {
		return true
	}
	logging.FromContext(r.Context()).Error("friend service unavailable")
	respondJSON(r.Context(), w, http.StatusInternalServerError, map[string]string{"error": "friend service unavailable"})
	return false
}

// actingUser resolves the user a request acts for. An explicit id must match
// the authenticated caller.
func actingUser(w http.ResponseWriter, r *http.Request, callerID, requested string) (string, bool) {
	requested = strings.TrimSpace(requested)
	if requested == "" || requested == callerID {
		return callerID, true
	}
	respondJSON(r.Context(), w, http.StatusForbidden, map[string]string{"error": "cannot act on behalf of another user"})
	return "", false
}

type friendRequest struct {
	UserID   string `json:"userId"`
	FriendID string `json:"friendId"`
}

type friendMutationResponse struct {
	Outcome    string             `json:"outcome"`
	Friendship friendshipResponse `json:"friendship"`
}

type friendListResponse struct {
	Friends []string `json:"friends"`
}

type friendRequestsResponse struct {
	Incoming []friendshipResponse `json:"incoming"`
	Outgoing []friendshipResponse `json:"outgoing"`
}
