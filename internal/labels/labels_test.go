package labels

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mealmates/backend/internal/models"
)

type stubRepository struct {
	labels []models.LabelText
	err    error
	calls  int
}

func (s *stubRepository) ListLabels(context.Context) ([]models.LabelText, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.labels, nil
}

func TestCachingCatalogLookup(t *testing.T) {
	base := &stubRepository{labels: []models.LabelText{{Identifier: "friends.title", German: "Freunde", English: "Friends"}}}
	catalog := NewCachingCatalog(base, time.Minute)
	ctx := context.Background()

	texts, err := catalog.Lookup(ctx, "de")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if texts["friends.title"] != "Freunde" {
		t.Fatalf("expected german text, got %+v", texts)
	}

	texts, err = catalog.Lookup(ctx, "fr")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if texts["friends.title"] != "Friends" {
		t.Fatalf("expected english fallback, got %+v", texts)
	}

	if base.calls != 1 {
		t.Fatalf("expected cached result got %d calls", base.calls)
	}

	catalog.Invalidate()
	if _, err := catalog.Lookup(ctx, "EN"); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if base.calls != 2 {
		t.Fatalf("expected reload after invalidate got %d calls", base.calls)
	}
}

func TestCachingCatalogExpiry(t *testing.T) {
	base := &stubRepository{labels: Defaults}
	catalog := NewCachingCatalog(base, time.Minute)

	now := time.Now()
	catalog.now = func() time.Time { return now }

	if _, err := catalog.Lookup(context.Background(), "DE"); err != nil {
		t.Fatalf("lookup: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := catalog.Lookup(context.Background(), "DE"); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if base.calls != 2 {
		t.Fatalf("expected expired entry to reload, got %d calls", base.calls)
	}
}

func TestCachingCatalogErrors(t *testing.T) {
	catalog := NewCachingCatalog(nil, time.Minute)
	if _, err := catalog.Lookup(context.Background(), "DE"); !errors.Is(err, ErrCatalogUnavailable) {
		t.Fatalf("expected ErrCatalogUnavailable, got %v", err)
	}

	boom := errors.New("boom")
	base := &stubRepository{err: boom}
	catalog = NewCachingCatalog(base, time.Minute)
	if _, err := catalog.Lookup(context.Background(), "DE"); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	base.err = nil
	base.labels = nil
	texts, err := catalog.Lookup(context.Background(), "DE")
	if err != nil || len(texts) != 0 {
		t.Fatalf("expected empty catalog, got %+v (%v)", texts, err)
	}
	if base.calls != 2 {
		t.Fatalf("failed loads must not be cached, got %d calls", base.calls)
	}
}
