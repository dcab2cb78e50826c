package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/mealmates/backend/internal/accounts"
	"github.com/mealmates/backend/internal/auth"
	"github.com/mealmates/backend/internal/credentials"
	"github.com/mealmates/backend/internal/friends"
	"github.com/mealmates/backend/internal/labels"
	"github.com/mealmates/backend/internal/models"
	"github.com/mealmates/backend/internal/repositories"
)

type testServer struct {
	router   *mux.Router
	sessions *auth.Manager
	avatars  *fakeAvatars
}

type fakeAvatars struct {
	userID      string
	contentType string
	body        string
	err         error
}

func (f *fakeAvatars) UploadAvatar(_ context.Context, userID, contentType string, body io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.userID, f.contentType, f.body = userID, contentType, string(data)
	return "https://cdn.example.com/avatars/" + userID + "/a.png", nil
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	users := repositories.NewMemoryUserRepository()
	friendRepo := repositories.NewMemoryFriendRepository(users)
	hasher := credentials.NewHasher(credentials.Params{Time: 1, MemoryKiB: 1024, Threads: 1})
	manager := auth.NewManager([]byte("test-secret"), time.Minute, time.Hour, auth.NewMemorySessionStore())
	avatars := &fakeAvatars{}

	router := mux.NewRouter()
	RegisterRoutes(router, Dependencies{
		Accounts: accounts.NewService(users, hasher, accounts.Options{}),
		Sessions: manager,
		Tokens:   manager,
		Friends:  friends.NewService(friendRepo),
		Events:   repositories.NewMemoryEventRepository(friendRepo),
		Labels:   labels.NewCachingCatalog(repositories.NewMemoryLabelRepository(labels.Defaults), time.Minute),
		Avatars:  avatars,
	})

	return &testServer{router: router, sessions: manager, avatars: avatars}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) signUp(t *testing.T, username string) authResponse {
	t.Helper()

	rec := s.do(t, http.MethodPost, "/api/v1/auth/signup", "", signUpRequest{
		Username: username,
		Email:    strings.ToLower(username) + "@example.com",
		Password: "pw123",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup %s: expected status %d got %d: %s", username, http.StatusCreated, rec.Code, rec.Body.String())
	}

	var resp authResponse
	decode(t, rec, &resp)
	return resp
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestSignUpAndLogin(t *testing.T) {
	srv := newTestServer(t)

	alice := srv.signUp(t, "alice")
	if alice.User.ID == "" || alice.User.Email != "alice@example.com" || alice.User.Language != "EN" {
		t.Fatalf("unexpected user: %+v", alice.User)
	}
	if alice.Tokens.AccessToken == "" || alice.Tokens.RefreshToken == "" {
		t.Fatalf("expected tokens to be issued, got %+v", alice.Tokens)
	}

	for _, identifier := range []string{"alice", "alice@example.com"} {
		rec := srv.do(t, http.MethodPost, "/api/v1/auth/login", "", loginRequest{Identifier: identifier, Password: "pw123"})
		if rec.Code != http.StatusOK {
			t.Fatalf("login with %q: expected status %d got %d", identifier, http.StatusOK, rec.Code)
		}
		var resp authResponse
		decode(t, rec, &resp)
		if resp.User.ID != alice.User.ID {
			t.Fatalf("expected user %s got %s", alice.User.ID, resp.User.ID)
		}
	}

	wrongPassword := srv.do(t, http.MethodPost, "/api/v1/auth/login", "", loginRequest{Identifier: "alice", Password: "nope"})
	unknownUser := srv.do(t, http.MethodPost, "/api/v1/auth/login", "", loginRequest{Identifier: "mallory", Password: "pw123"})
	if wrongPassword.Code != http.StatusUnauthorized || unknownUser.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for both failures, got %d and %d", wrongPassword.Code, unknownUser.Code)
	}
	if wrongPassword.Body.String() != unknownUser.Body.String() {
		t.Fatalf("expected identical failure bodies, got %q and %q", wrongPassword.Body.String(), unknownUser.Body.String())
	}

	duplicate := srv.do(t, http.MethodPost, "/api/v1/auth/signup", "", signUpRequest{Username: "alice", Email: "other@example.com", Password: "x"})
	if duplicate.Code != http.StatusConflict {
		t.Fatalf("expected duplicate username to conflict, got %d", duplicate.Code)
	}
}

func TestRefreshAndLogout(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.signUp(t, "alice")

	rec := srv.do(t, http.MethodPost, "/api/v1/auth/refresh", "", refreshRequest{RefreshToken: alice.Tokens.RefreshToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
	var refreshed tokenResponse
	decode(t, rec, &refreshed)
	if refreshed.Tokens.RefreshToken == alice.Tokens.RefreshToken {
		t.Fatal("expected refresh token rotation")
	}

	reused := srv.do(t, http.MethodPost, "/api/v1/auth/refresh", "", refreshRequest{RefreshToken: alice.Tokens.RefreshToken})
	if reused.Code != http.StatusUnauthorized {
		t.Fatalf("expected rotated token to be rejected, got %d", reused.Code)
	}

	logout := srv.do(t, http.MethodPost, "/api/v1/auth/logout", "", refreshRequest{RefreshToken: refreshed.Tokens.RefreshToken})
	if logout.Code != http.StatusNoContent {
		t.Fatalf("expected status %d got %d", http.StatusNoContent, logout.Code)
	}
	after := srv.do(t, http.MethodPost, "/api/v1/auth/refresh", "", refreshRequest{RefreshToken: refreshed.Tokens.RefreshToken})
	if after.Code != http.StatusUnauthorized {
		t.Fatalf("expected revoked token to be rejected, got %d", after.Code)
	}
}

func TestPrivateRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/api/v1/users/me", "/api/v1/friends", "/api/v1/events/feed"} {
		if rec := srv.do(t, http.MethodGet, path, "", nil); rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 got %d", path, rec.Code)
		}
		if rec := srv.do(t, http.MethodGet, path, "forged", nil); rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 for forged token got %d", path, rec.Code)
		}
	}

	if rec := srv.do(t, http.MethodGet, "/api/v1/labels?lang=de", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected labels to be public, got %d", rec.Code)
	}
}

func TestFriendshipFlow(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.signUp(t, "alice")
	bob := srv.signUp(t, "bob")

	rec := srv.do(t, http.MethodPost, "/api/v1/friends", alice.Tokens.AccessToken, friendRequest{FriendID: bob.User.ID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}
	var created friendMutationResponse
	decode(t, rec, &created)
	if created.Outcome != string(friends.EdgeCreated) || created.Friendship.State != string(models.FriendshipPending) {
		t.Fatalf("unexpected mutation response: %+v", created)
	}

	rec = srv.do(t, http.MethodGet, "/api/v1/friends/requests", bob.Tokens.AccessToken, nil)
	var pending friendRequestsResponse
	decode(t, rec, &pending)
	if len(pending.Incoming) != 1 || pending.Incoming[0].RequesterID != alice.User.ID || len(pending.Outgoing) != 0 {
		t.Fatalf("unexpected pending requests: %+v", pending)
	}

	rec = srv.do(t, http.MethodGet, "/api/v1/users/"+bob.User.ID, alice.Tokens.AccessToken, nil)
	var profile userResponse
	decode(t, rec, &profile)
	if profile.Friendship != string(models.FriendshipPending) || profile.Email != "" {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	rec = srv.do(t, http.MethodPost, "/api/v1/friends", bob.Tokens.AccessToken, friendRequest{FriendID: alice.User.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
	var accepted friendMutationResponse
	decode(t, rec, &accepted)
	if accepted.Outcome != string(friends.EdgeAccepted) || accepted.Friendship.ID != created.Friendship.ID {
		t.Fatalf("unexpected accept response: %+v", accepted)
	}

	rec = srv.do(t, http.MethodGet, "/api/v1/friends", alice.Tokens.AccessToken, nil)
	var list friendListResponse
	decode(t, rec, &list)
	if len(list.Friends) != 1 || list.Friends[0] != bob.User.ID {
		t.Fatalf("unexpected friends: %+v", list)
	}

	rec = srv.do(t, http.MethodGet, "/api/v1/friends?userId="+bob.User.ID, alice.Tokens.AccessToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected listing another user's friends to be forbidden, got %d", rec.Code)
	}

	for i := 0; i < 2; i++ {
		rec = srv.do(t, http.MethodDelete, "/api/v1/friends/"+alice.User.ID, bob.Tokens.AccessToken, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("delete #%d: expected status %d got %d", i, http.StatusOK, rec.Code)
		}
	}

	rec = srv.do(t, http.MethodDelete, "/api/v1/friends/not-a-uuid", bob.Tokens.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("malformed friend id: expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	var noop map[string]any
	decode(t, rec, &noop)
	if noop["removed"] != false {
		t.Fatalf("expected nothing removed for a malformed id, got %v", noop)
	}

	rec = srv.do(t, http.MethodGet, "/api/v1/friends", alice.Tokens.AccessToken, nil)
	list = friendListResponse{}
	decode(t, rec, &list)
	if list.Friends == nil || len(list.Friends) != 0 {
		t.Fatalf("expected an empty friend list, got %+v", list.Friends)
	}
}

func TestEventFeed(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.signUp(t, "alice")
	bob := srv.signUp(t, "bob")
	carol := srv.signUp(t, "carol")

	srv.do(t, http.MethodPost, "/api/v1/friends", alice.Tokens.AccessToken, friendRequest{FriendID: bob.User.ID})
	srv.do(t, http.MethodPost, "/api/v1/friends", bob.Tokens.AccessToken, friendRequest{FriendID: alice.User.ID})

	startsAt := time.Date(2024, 6, 1, 19, 0, 0, 0, time.UTC)
	for _, owner := range []authResponse{bob, carol} {
		rec := srv.do(t, http.MethodPost, "/api/v1/events", owner.Tokens.AccessToken, createEventRequest{Title: "Dinner", StartsAt: startsAt})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected status %d got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
		}
	}

	rec := srv.do(t, http.MethodGet, "/api/v1/events/feed", alice.Tokens.AccessToken, nil)
	var feed feedResponse
	decode(t, rec, &feed)
	if len(feed.Events) != 1 || feed.Events[0].OwnerID != bob.User.ID {
		t.Fatalf("expected only bob's event in the feed, got %+v", feed.Events)
	}
}

func TestProfileEndpoints(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.signUp(t, "alice")
	srv.signUp(t, "bob")
	token := alice.Tokens.AccessToken

	rec := srv.do(t, http.MethodGet, "/api/v1/users/availability?username=bob", "", nil)
	var availability map[string]bool
	decode(t, rec, &availability)
	if availability["available"] {
		t.Fatal("expected taken username to be unavailable")
	}

	language := "DE"
	rec = srv.do(t, http.MethodPatch, "/api/v1/users/me", token, updateProfileRequest{Language: &language})
	var updated userResponse
	decode(t, rec, &updated)
	if updated.Language != "DE" {
		t.Fatalf("expected language update, got %+v", updated)
	}

	rec = srv.do(t, http.MethodPut, "/api/v1/users/me/email", token, updateEmailRequest{Email: "bob@example.com"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected email conflict, got %d", rec.Code)
	}

	rec = srv.do(t, http.MethodGet, "/api/v1/users?username=bob", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected lookup to succeed, got %d", rec.Code)
	}
	rec = srv.do(t, http.MethodGet, "/api/v1/users?email=ghost@example.com", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected unknown email to be not found, got %d", rec.Code)
	}

	rec = srv.do(t, http.MethodPut, "/api/v1/users/me/password", token, changePasswordRequest{CurrentPassword: "wrong", NewPassword: "next"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected wrong current password to fail, got %d", rec.Code)
	}
	rec = srv.do(t, http.MethodPut, "/api/v1/users/me/password", token, changePasswordRequest{CurrentPassword: "pw123", NewPassword: "next"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected password change, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = srv.do(t, http.MethodPost, "/api/v1/auth/refresh", "", refreshRequest{RefreshToken: alice.Tokens.RefreshToken})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected old sessions to be revoked, got %d", rec.Code)
	}
	rec = srv.do(t, http.MethodPost, "/api/v1/auth/login", "", loginRequest{Identifier: "alice", Password: "next"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected login with the new password, got %d", rec.Code)
	}
}

func TestUploadAvatar(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.signUp(t, "alice")

	req := httptest.NewRequest(http.MethodPut, "/api/v1/users/me/avatar", strings.NewReader("png-bytes"))
	req.Header.Set("Authorization", "Bearer "+alice.Tokens.AccessToken)
	req.Header.Set("Content-Type", "image/png")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	var resp userResponse
	decode(t, rec, &resp)
	if resp.AvatarURL != "https://cdn.example.com/avatars/"+alice.User.ID+"/a.png" {
		t.Fatalf("unexpected avatar url %q", resp.AvatarURL)
	}
	if srv.avatars.body != "png-bytes" || srv.avatars.userID != alice.User.ID {
		t.Fatalf("unexpected upload: %+v", srv.avatars)
	}

	req = httptest.NewRequest(http.MethodPut, "/api/v1/users/me/avatar", strings.NewReader("text"))
	req.Header.Set("Authorization", "Bearer "+alice.Tokens.AccessToken)
	req.Header.Set("Content-Type", "text/plain")
	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected status %d got %d", http.StatusUnsupportedMediaType, rec.Code)
	}
}

type stubRateLimiter struct{ allow bool }

func (s stubRateLimiter) Allow(string) bool { return s.allow }

type stubAccounts struct {
	AccountService
	err error
}

func (s stubAccounts) Register(context.Context, accounts.Registration) (models.User, error) {
	return models.User{}, s.err
}

func (s stubAccounts) Authenticate(context.Context, string, string) (models.User, error) {
	return models.User{}, s.err
}

type stubSessions struct {
	SessionManager
	err error
}

func (s stubSessions) Issue(context.Context, string) (models.SessionTokens, error) {
	return models.SessionTokens{}, s.err
}

func (s stubSessions) Refresh(context.Context, string) (models.SessionTokens, error) {
	return models.SessionTokens{}, s.err
}

func TestAuthHandlerFailures(t *testing.T) {
	login := []byte(`{"identifier":"alice","password":"pw123"}`)
	signup := []byte(`{"username":"alice","email":"alice@example.com","password":"pw123"}`)
	okAccounts := stubAccounts{}
	okSessions := stubSessions{}

	cases := []struct {
		name       string
		handler    AuthHandler
		call       func(AuthHandler) http.HandlerFunc
		method     string
		body       []byte
		wantStatus int
	}{
		{"loginWrongMethod", AuthHandler{Accounts: okAccounts, Sessions: okSessions}, func(h AuthHandler) http.HandlerFunc { return h.Login }, http.MethodGet, login, http.StatusMethodNotAllowed},
		{"loginMissingDeps", AuthHandler{}, func(h AuthHandler) http.HandlerFunc { return h.Login }, http.MethodPost, login, http.StatusInternalServerError},
		{"loginBadJSON", AuthHandler{Accounts: okAccounts, Sessions: okSessions}, func(h AuthHandler) http.HandlerFunc { return h.Login }, http.MethodPost, []byte("{"), http.StatusBadRequest},
		{"loginMissingFields", AuthHandler{Accounts: okAccounts, Sessions: okSessions}, func(h AuthHandler) http.HandlerFunc { return h.Login }, http.MethodPost, []byte(`{"identifier":" "}`), http.StatusBadRequest},
		{"loginRateLimited", AuthHandler{Accounts: okAccounts, Sessions: okSessions, Limiter: stubRateLimiter{}}, func(h AuthHandler) http.HandlerFunc { return h.Login }, http.MethodPost, login, http.StatusTooManyRequests},
		{"loginStorageDown", AuthHandler{Accounts: stubAccounts{err: repositories.ErrUnavailable}, Sessions: okSessions}, func(h AuthHandler) http.HandlerFunc { return h.Login }, http.MethodPost, login, http.StatusServiceUnavailable},
		{"loginSessionFailure", AuthHandler{Accounts: okAccounts, Sessions: stubSessions{err: errors.New("boom")}}, func(h AuthHandler) http.HandlerFunc { return h.Login }, http.MethodPost, login, http.StatusInternalServerError},
		{"signupInvalid", AuthHandler{Accounts: stubAccounts{err: accounts.ErrInvalidInput}, Sessions: okSessions}, func(h AuthHandler) http.HandlerFunc { return h.SignUp }, http.MethodPost, signup, http.StatusBadRequest},
		{"signupEmailTaken", AuthHandler{Accounts: stubAccounts{err: accounts.ErrEmailTaken}, Sessions: okSessions}, func(h AuthHandler) http.HandlerFunc { return h.SignUp }, http.MethodPost, signup, http.StatusConflict},
		{"signupRateLimited", AuthHandler{Accounts: okAccounts, Sessions: okSessions, Limiter: stubRateLimiter{}}, func(h AuthHandler) http.HandlerFunc { return h.SignUp }, http.MethodPost, signup, http.StatusTooManyRequests},
		{"refreshMissingToken", AuthHandler{Sessions: okSessions}, func(h AuthHandler) http.HandlerFunc { return h.Refresh }, http.MethodPost, []byte(`{}`), http.StatusBadRequest},
		{"refreshExpired", AuthHandler{Sessions: stubSessions{err: auth.ErrRefreshTokenExpired}}, func(h AuthHandler) http.HandlerFunc { return h.Refresh }, http.MethodPost, []byte(`{"refreshToken":"x"}`), http.StatusUnauthorized},
		{"refreshInternal", AuthHandler{Sessions: stubSessions{err: errors.New("boom")}}, func(h AuthHandler) http.HandlerFunc { return h.Refresh }, http.MethodPost, []byte(`{"refreshToken":"x"}`), http.StatusInternalServerError},
		{"logoutMissingToken", AuthHandler{Sessions: okSessions}, func(h AuthHandler) http.HandlerFunc { return h.Logout }, http.MethodPost, []byte(`{}`), http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/api/v1/auth", bytes.NewReader(tc.body))
			rec := httptest.NewRecorder()

			tc.call(tc.handler)(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d got %d", tc.wantStatus, rec.Code)
			}
		})
	}
}

type stubFriends struct {
	FriendService
	err error
}

func (s stubFriends) CreateOrAccept(context.Context, string, string) (friends.Result, error) {
	return friends.Result{}, s.err
}

func (s stubFriends) FriendsOf(context.Context, string) ([]string, error) {
	return nil, s.err
}

func TestFriendHandlerFailures(t *testing.T) {
	body := []byte(`{"friendId":"user-2"}`)

	cases := []struct {
		name       string
		handler    FriendHandler
		method     string
		body       []byte
		userID     string
		wantStatus int
	}{
		{"wrongMethod", FriendHandler{Friends: stubFriends{}}, http.MethodGet, body, "user-1", http.StatusMethodNotAllowed},
		{"missingService", FriendHandler{}, http.MethodPost, body, "user-1", http.StatusInternalServerError},
		{"unauthenticated", FriendHandler{Friends: stubFriends{}}, http.MethodPost, body, "", http.StatusUnauthorized},
		{"badJSON", FriendHandler{Friends: stubFriends{}}, http.MethodPost, []byte("{"), "user-1", http.StatusBadRequest},
		{"missingFriend", FriendHandler{Friends: stubFriends{}}, http.MethodPost, []byte(`{"friendId":""}`), "user-1", http.StatusBadRequest},
		{"impersonation", FriendHandler{Friends: stubFriends{}}, http.MethodPost, []byte(`{"userId":"user-3","friendId":"user-2"}`), "user-1", http.StatusForbidden},
		{"invalidOperation", FriendHandler{Friends: stubFriends{err: friends.ErrInvalidOperation}}, http.MethodPost, body, "user-1", http.StatusBadRequest},
		{"storageDown", FriendHandler{Friends: stubFriends{err: repositories.ErrUnavailable}}, http.MethodPost, body, "user-1", http.StatusServiceUnavailable},
		{"internal", FriendHandler{Friends: stubFriends{err: errors.New("boom")}}, http.MethodPost, body, "user-1", http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/api/v1/friends", bytes.NewReader(tc.body))
			if tc.userID != "" {
				req = req.WithContext(auth.WithUserID(req.Context(), tc.userID))
			}
			rec := httptest.NewRecorder()

			tc.handler.Request(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d got %d", tc.wantStatus, rec.Code)
			}
		})
	}
}

type stubEvents struct {
	err error
}

func (s stubEvents) Create(context.Context, models.Event) error { return s.err }

func (s stubEvents) ListFeed(context.Context, string) ([]models.Event, error) { return nil, s.err }

func TestEventHandlerFailures(t *testing.T) {
	body := []byte(`{"title":"Brunch","startsAt":"2024-06-01T10:00:00Z"}`)

	cases := []struct {
		name       string
		handler    EventHandler
		body       []byte
		wantStatus int
	}{
		{"missingStore", EventHandler{}, body, http.StatusInternalServerError},
		{"missingTitle", EventHandler{Events: stubEvents{}}, []byte(`{"startsAt":"2024-06-01T10:00:00Z"}`), http.StatusBadRequest},
		{"missingStart", EventHandler{Events: stubEvents{}}, []byte(`{"title":"Brunch"}`), http.StatusBadRequest},
		{"unknownOwner", EventHandler{Events: stubEvents{err: repositories.ErrNotFound}}, body, http.StatusNotFound},
		{"created", EventHandler{Events: stubEvents{}}, body, http.StatusCreated},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/events", bytes.NewReader(tc.body))
			req = req.WithContext(auth.WithUserID(req.Context(), "user-1"))
			rec := httptest.NewRecorder()

			tc.handler.Create(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d got %d", tc.wantStatus, rec.Code)
			}
		})
	}
}

func TestLabelHandlerLanguage(t *testing.T) {
	handler := LabelHandler{Labels: labels.NewCachingCatalog(repositories.NewMemoryLabelRepository(labels.Defaults), time.Minute)}

	cases := []struct {
		name     string
		query    string
		header   string
		wantLang string
	}{
		{"default", "", "", "EN"},
		{"query", "?lang=de", "", "DE"},
		{"header", "", "de-DE,de;q=0.9", "DE"},
		{"queryWins", "?lang=en", "de", "EN"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/labels"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Accept-Language", tc.header)
			}
			rec := httptest.NewRecorder()

			handler.List(rec, req)

			var resp labelsResponse
			decode(t, rec, &resp)
			if resp.Language != tc.wantLang || len(resp.Labels) != len(labels.Defaults) {
				t.Fatalf("unexpected response: %+v", resp)
			}
		})
	}
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestHealthHandlerHandle(t *testing.T) {
	cases := []struct {
		name       string
		handler    HealthHandler
		method     string
		wantStatus int
	}{
		{"liveness", HealthHandler{}, http.MethodGet, http.StatusOK},
		{"databaseUp", HealthHandler{DB: stubPinger{}}, http.MethodGet, http.StatusOK},
		{"databaseDown", HealthHandler{DB: stubPinger{err: errors.New("refused")}}, http.MethodGet, http.StatusServiceUnavailable},
		{"wrongMethod", HealthHandler{}, http.MethodPost, http.StatusMethodNotAllowed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tc.handler.Handle(rec, httptest.NewRequest(tc.method, "/healthz", nil))
			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d got %d", tc.wantStatus, rec.Code)
			}
		})
	}
}
