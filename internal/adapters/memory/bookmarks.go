package memory

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/gigconnect/internal/domain"
)

func (s *Store) AddBookmark(_ context.Context, b domain.Bookmark) (domain.Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.bookmarks {
		if existing.OwnerUserID == b.OwnerUserID && existing.EntityType == b.EntityType && existing.EntityID == b.EntityID {
			return existing, nil
		}
	}
	s.bookmarks[b.ID] = b
	return b, nil
}

func (s *Store) ListBookmarks(_ context.Context, owner uuid.UUID) ([]domain.Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Bookmark
	for _, b := range s.bookmarks {
		if b.OwnerUserID == owner {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *Store) DeleteBookmark(_ context.Context, owner, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookmarks[id]
	if !ok || b.OwnerUserID != owner {
		return errors.Wrapf(domain.ErrNotFound, "bookmark %s", id)
	}
	delete(s.bookmarks, id)
	return nil
}
