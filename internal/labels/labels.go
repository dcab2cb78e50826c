// Package labels serves localized UI label texts.
package labels

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mealmates/backend/internal/models"
	"github.com/mealmates/backend/internal/repositories"
)

// ErrCatalogUnavailable indicates the catalog has no backing repository.
var ErrCatalogUnavailable = errors.New("label catalog unavailable")

// Defaults are served when no database is configured.
var Defaults = []models.LabelText{
	{Identifier: "events.create", German: "Essen planen", English: "Plan a meal"},
	{Identifier: "events.title", German: "Verabredungen", English: "Meetups"},
	{Identifier: "friends.accept", German: "Annehmen", English: "Accept"},
	{Identifier: "friends.decline", German: "Ablehnen", English: "Decline"},
	{Identifier: "friends.request", German: "Freundschaftsanfrage senden", English: "Send friend request"},
	{Identifier: "friends.title", German: "Freunde", English: "Friends"},
	{Identifier: "login.password", German: "Passwort", English: "Password"},
	{Identifier: "login.title", German: "Anmelden", English: "Sign in"},
	{Identifier: "login.username", German: "Benutzername oder E-Mail", English: "Username or email"},
	{Identifier: "signup.title", German: "Registrieren", English: "Sign up"},
}

// CachingCatalog wraps a LabelRepository with a TTL-based in-memory cache.
type CachingCatalog struct {
	base repositories.LabelRepository
	ttl  time.Duration
	now  func() time.Time

	mu      sync.RWMutex
	labels  []models.LabelText
	expires time.Time
}

// NewCachingCatalog returns a catalog that caches the label set for ttl.
func NewCachingCatalog(base repositories.LabelRepository, ttl time.Duration) *CachingCatalog {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachingCatalog{
		base: base,
		ttl:  ttl,
		now:  time.Now,
	}
}

// Lookup returns identifier -> text for language: German for "DE" in any
// case, English otherwise.
func (c *CachingCatalog) Lookup(ctx context.Context, language string) (map[string]string, error) {
	labels, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	texts := make(map[string]string, len(labels))
	for _, label := range labels {
		texts[label.Identifier] = label.Text(language)
	}
	return texts, nil
}

// Invalidate drops the cached label set.
func (c *CachingCatalog) Invalidate() {
	c.mu.Lock()
	c.labels = nil
	c.expires = time.Time{}
	c.mu.Unlock()
}

func (c *CachingCatalog) load(ctx context.Context) ([]models.LabelText, error) {
	if c == nil || c.base == nil {
		return nil, ErrCatalogUnavailable
	}

	now := c.now()

	c.mu.RLock()
	labels, expires := c.labels, c.expires
	c.mu.RUnlock()
	if labels != nil && now.Before(expires) {
		return labels, nil
	}

	labels, err := c.base.ListLabels(ctx)
	if err != nil {
		return nil, err
	}
	if labels == nil {
		labels = []models.LabelText{}
	}

	c.mu.Lock()
	c.labels = labels
	c.expires = now.Add(c.ttl)
	c.mu.Unlock()

	return labels, nil
}
