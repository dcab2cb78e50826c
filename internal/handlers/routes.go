package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mealmates/backend/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Accounts    AccountService
	Sessions    SessionManager
	Tokens      middleware.TokenVerifier
	Friends     FriendService
	Events      EventStore
	Labels      LabelCatalog
	Avatars     AvatarStorage
	DB          Pinger
	AuthLimiter middleware.RateLimiter
	Metrics     *middleware.Metrics
}

// RegisterRoutes wires HTTP handlers into router. Routes under /api/v1 other
// than auth, labels and availability checks require a bearer token.
func RegisterRoutes(router *mux.Router, deps Dependencies) {
	health := HealthHandler{DB: deps.DB}
	authH := AuthHandler{Accounts: deps.Accounts, Sessions: deps.Sessions, Limiter: deps.AuthLimiter}
	users := UserHandler{Accounts: deps.Accounts, Friends: deps.Friends, Sessions: deps.Sessions, Avatars: deps.Avatars}
	friendsH := FriendHandler{Friends: deps.Friends}
	events := EventHandler{Events: deps.Events}
	labelsH := LabelHandler{Labels: deps.Labels}

	router.HandleFunc("/healthz", health.Handle).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/auth/login", authH.Login).Methods(http.MethodPost)
	api.HandleFunc("/auth/signup", authH.SignUp).Methods(http.MethodPost)
	api.HandleFunc("/auth/refresh", authH.Refresh).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", authH.Logout).Methods(http.MethodPost)
	api.HandleFunc("/users/availability", users.Availability).Methods(http.MethodGet)
	api.HandleFunc("/labels", labelsH.List).Methods(http.MethodGet)

	private := api.NewRoute().Subrouter()
	if deps.Tokens != nil {
		private.Use(middleware.RequireUser(deps.Tokens, deps.Metrics))
	}
	private.HandleFunc("/users", users.Lookup).Methods(http.MethodGet)
	private.HandleFunc("/users/me", users.Me).Methods(http.MethodGet)
	private.HandleFunc("/users/me", users.UpdateMe).Methods(http.MethodPatch)
	private.HandleFunc("/users/me/email", users.UpdateEmail).Methods(http.MethodPut)
	private.HandleFunc("/users/me/password", users.ChangePassword).Methods(http.MethodPut)
	private.HandleFunc("/users/me/avatar", users.UploadAvatar).Methods(http.MethodPut)
	private.HandleFunc("/users/{id}", users.Get).Methods(http.MethodGet)
	private.HandleFunc("/friends", friendsH.List).Methods(http.MethodGet)
	private.HandleFunc("/friends", friendsH.Request).Methods(http.MethodPost)
	private.HandleFunc("/friends/requests", friendsH.Requests).Methods(http.MethodGet)
	private.HandleFunc("/friends/{friendId}", friendsH.Remove).Methods(http.MethodDelete)
	private.HandleFunc("/events", events.Create).Methods(http.MethodPost)
	private.HandleFunc("/events/feed", events.Feed).Methods(http.MethodGet)
}
