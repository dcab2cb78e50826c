package repositories

import (
	"context"
	"sort"
	"sync"

	"github.com/mealmates/backend/internal/models"
)

// MemoryUserRepository keeps users in process memory. It backs the memory
// storage mode and package tests.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]models.User
}

// NewMemoryUserRepository returns an empty in-memory user repository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]models.User)}
}

func (r *MemoryUserRepository) Create(_ context.Context, user models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; ok {
		return ErrConflict
	}
	if r.takenLocked(user) {
		return ErrConflict
	}
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return cloneUser(user), nil
}

func (r *MemoryUserRepository) FindByUsername(_ context.Context, username string) (models.User, error) {
	return r.findFirst(func(u models.User) bool { return u.Username == username })
}

func (r *MemoryUserRepository) FindByEmail(_ context.Context, email string) (models.User, error) {
	return r.findFirst(func(u models.User) bool { return u.Email == email })
}

func (r *MemoryUserRepository) Update(_ context.Context, user models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; !ok {
		return ErrNotFound
	}
	if r.takenLocked(user) {
		return ErrConflict
	}
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *MemoryUserRepository) Count(context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users), nil
}

func (r *MemoryUserRepository) exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[id]
	return ok
}

func (r *MemoryUserRepository) findFirst(match func(models.User) bool) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if match(user) {
			return cloneUser(user), nil
		}
	}
	return models.User{}, ErrNotFound
}

// takenLocked reports whether another user already holds the username or email.
func (r *MemoryUserRepository) takenLocked(user models.User) bool {
	for id, existing := range r.users {
		if id == user.ID {
			continue
		}
		if existing.Username == user.Username || existing.Email == user.Email {
			return true
		}
	}
	return false
}

func cloneUser(user models.User) models.User {
	user.PasswordHash = append([]byte(nil), user.PasswordHash...)
	user.PasswordSalt = append([]byte(nil), user.PasswordSalt...)
	return user
}

// MemoryFriendRepository keeps friendship edges in process memory. Units of
// work are serialized by a single mutex and applied to a copy of the edge set
// that replaces the original only when the unit succeeds.
type MemoryFriendRepository struct {
	mu    sync.Mutex
	users *MemoryUserRepository
	edges map[string]models.Friendship
}

// NewMemoryFriendRepository returns an empty edge store validating endpoints against users.
func NewMemoryFriendRepository(users *MemoryUserRepository) *MemoryFriendRepository {
	return &MemoryFriendRepository{users: users, edges: make(map[string]models.Friendship)}
}

func (r *MemoryFriendRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx FriendshipTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	working := make(map[string]models.Friendship, len(r.edges))
	for id, edge := range r.edges {
		working[id] = edge
	}

	if err := fn(ctx, &memoryFriendshipTx{users: r.users, edges: working}); err != nil {
		return err
	}

	r.edges = working
	return nil
}

func (r *MemoryFriendRepository) ListEdgesInvolving(_ context.Context, userID string) ([]models.Friendship, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var edges []models.Friendship
	for _, edge := range r.edges {
		if edge.Involves(userID) {
			edges = append(edges, edge)
		}
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].CreatedAt.After(edges[j].CreatedAt) })
	return edges, nil
}

type memoryFriendshipTx struct {
	users *MemoryUserRepository
	edges map[string]models.Friendship
}

func (t *memoryFriendshipTx) UserExists(_ context.Context, userID string) (bool, error) {
	return t.users.exists(userID), nil
}

func (t *memoryFriendshipTx) FindEdgeBetween(_ context.Context, a, b string) (models.Friendship, error) {
	for _, edge := range t.edges {
		if edge.Connects(a, b) {
			return edge, nil
		}
	}
	return models.Friendship{}, ErrNotFound
}

func (t *memoryFriendshipTx) SaveEdge(_ context.Context, edge models.Friendship) error {
	if !t.users.exists(edge.RequesterID) || !t.users.exists(edge.TargetID) {
		return ErrNotFound
	}
	for id, existing := range t.edges {
		if id != edge.ID && existing.Connects(edge.RequesterID, edge.TargetID) {
			return ErrConflict
		}
	}
	if existing, ok := t.edges[edge.ID]; ok {
		existing.Accepted = edge.Accepted
		existing.Open = edge.Open
		existing.UpdatedAt = edge.UpdatedAt
		edge = existing
	}
	t.edges[edge.ID] = edge
	return nil
}

func (t *memoryFriendshipTx) DeleteEdge(_ context.Context, edgeID string) error {
	if _, ok := t.edges[edgeID]; !ok {
		return ErrNotFound
	}
	delete(t.edges, edgeID)
	return nil
}

// MemoryEventRepository keeps events in process memory and builds feeds from
// the accepted edges of the companion friend repository.
type MemoryEventRepository struct {
	mu      sync.RWMutex
	friends *MemoryFriendRepository
	events  []models.Event
}

// NewMemoryEventRepository returns an empty in-memory event repository.
func NewMemoryEventRepository(friends *MemoryFriendRepository) *MemoryEventRepository {
	return &MemoryEventRepository{friends: friends}
}

func (r *MemoryEventRepository) Create(_ context.Context, event models.Event) error {
	if !r.friends.users.exists(event.OwnerID) {
		return ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.events {
		if existing.ID == event.ID {
			return ErrConflict
		}
	}
	r.events = append(r.events, event)
	return nil
}

func (r *MemoryEventRepository) ListFeed(ctx context.Context, userID string) ([]models.Event, error) {
	edges, err := r.friends.ListEdgesInvolving(ctx, userID)
	if err != nil {
		return nil, err
	}

	visible := map[string]struct{}{userID: {}}
	for _, edge := range edges {
		if edge.Accepted {
			visible[edge.Other(userID)] = struct{}{}
		}
	}

	r.mu.RLock()
	var feed []models.Event
	for _, event := range r.events {
		if _, ok := visible[event.OwnerID]; ok {
			feed = append(feed, event)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(feed, func(i, j int) bool { return feed[i].CreatedAt.After(feed[j].CreatedAt) })
	if len(feed) > feedLimit {
		feed = feed[:feedLimit]
	}
	return feed, nil
}

// MemoryLabelRepository serves a fixed set of label texts.
type MemoryLabelRepository struct {
	labels []models.LabelText
}

// NewMemoryLabelRepository returns a label repository serving labels.
func NewMemoryLabelRepository(labels []models.LabelText) *MemoryLabelRepository {
	return &MemoryLabelRepository{labels: append([]models.LabelText(nil), labels...)}
}

func (r *MemoryLabelRepository) ListLabels(context.Context) ([]models.LabelText, error) {
	return append([]models.LabelText(nil), r.labels...), nil
}

var _ UserRepository = (*MemoryUserRepository)(nil)
var _ FriendRepository = (*MemoryFriendRepository)(nil)
var _ EventRepository = (*MemoryEventRepository)(nil)
var _ LabelRepository = (*MemoryLabelRepository)(nil)
