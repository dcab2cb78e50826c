// Package friends manages consent-based friendship edges between users.
//
// Each unordered pair of users has at most one edge. An edge is created
// pending by the requester, becomes accepted when the target requests back,
// and is removed entirely when either side declines or unfriends.
package friends

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mealmates/backend/internal/logging"
	"github.com/mealmates/backend/internal/models"
	"github.com/mealmates/backend/internal/repositories"
)

// ErrInvalidOperation indicates a request that can never succeed: empty ids,
// a self-friendship or an unknown user. Wrapped errors carry the reason.
var ErrInvalidOperation = errors.New("invalid friendship operation")

// Outcome names the transition a mutation performed.
type Outcome string

const (
	EdgeCreated   Outcome = "created"
	EdgeAccepted  Outcome = "accepted"
	EdgeUnchanged Outcome = "unchanged"
	EdgeRemoved   Outcome = "removed"
)

// Result reports the outcome of a mutation together with the affected edge.
// For EdgeRemoved, Removed tells whether an edge actually existed.
type Result struct {
	Outcome Outcome
	Edge    models.Friendship
	Removed bool
}

// Requests splits a user's pending edges by direction.
type Requests struct {
	Incoming []models.Friendship
	Outgoing []models.Friendship
}

// Store is the persistence the service needs.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx repositories.FriendshipTx) error) error
	ListEdgesInvolving(ctx context.Context, userID string) ([]models.Friendship, error)
}

// Service implements the friendship state machine.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService constructs a friendship service on top of store.
func NewService(store Store) *Service {
	return &Service{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrAccept records that requester wants to be friends with target.
//
// With no edge between them a pending edge initiated by requester is created.
// A pending edge initiated by target becomes accepted. A pending edge that
// requester already initiated, or an accepted edge, is returned unchanged.
func (s *Service) CreateOrAccept(ctx context.Context, requester, target string) (Result, error) {
	requester, target = strings.TrimSpace(requester), strings.TrimSpace(target)
	ctx, span := logging.StartSpan(ctx, "friends.create_or_accept",
		slog.String("requester", requester), slog.String("target", target))
	defer span.End()

	if err := validatePair(requester, target); err != nil {
		span.Fail(err)
		return Result{}, err
	}

	result, err := s.createOrAccept(ctx, requester, target)
	if errors.Is(err, repositories.ErrConflict) {
		// A concurrent request inserted the pair's edge first; rerun against it.
		logging.FromContext(ctx).Debug("friendship insert raced, retrying")
		result, err = s.createOrAccept(ctx, requester, target)
	}
	if err != nil {
		span.Fail(err)
		return Result{}, err
	}

	logging.FromContext(ctx).Info("friendship updated",
		slog.String("outcome", string(result.Outcome)),
		slog.String("edge_id", result.Edge.ID),
	)
	return result, nil
}

func (s *Service) createOrAccept(ctx context.Context, requester, target string) (Result, error) {
	var result Result
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.FriendshipTx) error {
		if err := requireUsers(ctx, tx, requester, target); err != nil {
			return err
		}

		now := s.now()
		edge, err := tx.FindEdgeBetween(ctx, requester, target)
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			edge = models.Friendship{
				ID:          uuid.NewString(),
				RequesterID: requester,
				TargetID:    target,
				Accepted:    false,
				Open:        true,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := tx.SaveEdge(ctx, edge); err != nil {
				return fmt.Errorf("create friendship: %w", err)
			}
			result = Result{Outcome: EdgeCreated, Edge: edge}
			return nil
		case err != nil:
			return fmt.Errorf("find friendship: %w", err)
		}

		if edge.Accepted || edge.RequesterID == requester {
			result = Result{Outcome: EdgeUnchanged, Edge: edge}
			return nil
		}

		edge.Accepted = true
		edge.UpdatedAt = now
		if err := tx.SaveEdge(ctx, edge); err != nil {
			return fmt.Errorf("accept friendship: %w", err)
		}
		result = Result{Outcome: EdgeAccepted, Edge: edge}
		return nil
	})
	return result, err
}

// DeclineOrDelete removes the edge between a and b regardless of its
// direction or state. A missing edge is not an error.
func (s *Service) DeclineOrDelete(ctx context.Context, a, b string) (Result, error) {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	ctx, span := logging.StartSpan(ctx, "friends.decline_or_delete")
	defer span.End()

	if err := validatePair(a, b); err != nil {
		span.Fail(err)
		return Result{}, err
	}

	result := Result{Outcome: EdgeRemoved}
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.FriendshipTx) error {
		result = Result{Outcome: EdgeRemoved}

		edge, err := tx.FindEdgeBetween(ctx, a, b)
		if errors.Is(err, repositories.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("find friendship: %w", err)
		}

		if err := tx.DeleteEdge(ctx, edge.ID); err != nil && !errors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("delete friendship: %w", err)
		}
		result.Edge = edge
		result.Removed = true
		return nil
	})
	if err != nil {
		span.Fail(err)
		return Result{}, err
	}

	logging.FromContext(ctx).Info("friendship removed", slog.Bool("existed", result.Removed))
	return result, nil
}

// FriendsOf returns the sorted ids of every user joined to userID by an
// accepted edge. Pending edges are ignored.
func (s *Service) FriendsOf(ctx context.Context, userID string) ([]string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidOperation)
	}

	edges, err := s.store.ListEdgesInvolving(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list friendships: %w", err)
	}

	seen := make(map[string]struct{}, len(edges))
	friends := make([]string, 0, len(edges))
	for _, edge := range edges {
		if !edge.Accepted || !edge.Involves(userID) {
			continue
		}
		other := edge.Other(userID)
		if other == userID {
			continue
		}
		if _, ok := seen[other]; ok {
			continue
		}
		seen[other] = struct{}{}
		friends = append(friends, other)
	}

	sort.Strings(friends)
	return friends, nil
}

// Requests lists the pending edges addressed to and sent by userID.
func (s *Service) Requests(ctx context.Context, userID string) (Requests, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Requests{}, fmt.Errorf("%w: user id is required", ErrInvalidOperation)
	}

	edges, err := s.store.ListEdgesInvolving(ctx, userID)
	if err != nil {
		return Requests{}, fmt.Errorf("list friendships: %w", err)
	}

	var requests Requests
	for _, edge := range edges {
		if edge.Accepted {
			continue
		}
		switch userID {
		case edge.TargetID:
			requests.Incoming = append(requests.Incoming, edge)
		case edge.RequesterID:
			requests.Outgoing = append(requests.Outgoing, edge)
		}
	}
	return requests, nil
}

// Relationship reports the state of the pair a, b.
func (s *Service) Relationship(ctx context.Context, a, b string) (models.FriendshipState, error) {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return models.FriendshipNone, fmt.Errorf("%w: both user ids are required", ErrInvalidOperation)
	}
	if a == b {
		return models.FriendshipNone, nil
	}

	edges, err := s.store.ListEdgesInvolving(ctx, a)
	if err != nil {
		return models.FriendshipNone, fmt.Errorf("list friendships: %w", err)
	}
	for _, edge := range edges {
		if edge.Connects(a, b) {
			return edge.State(), nil
		}
	}
	return models.FriendshipNone, nil
}

func validatePair(a, b string) error {
	switch {
	case a == "" || b == "":
		return fmt.Errorf("%w: both user ids are required", ErrInvalidOperation)
	case a == b:
		return fmt.Errorf("%w: users cannot befriend themselves", ErrInvalidOperation)
	}
	return nil
}

func requireUsers(ctx context.Context, tx repositories.FriendshipTx, ids ...string) error {
	for _, id := range ids {
		ok, err := tx.UserExists(ctx, id)
		if err != nil {
			return fmt.Errorf("check user %s: %w", id, err)
		}
		if !ok {
			return fmt.Errorf("%w: unknown user %s", ErrInvalidOperation, id)
		}
	}
	return nil
}
