// Package bookmarks keeps the set of profiles a user saved for later.
package bookmarks

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/gigconnect/internal/domain"
)

type Service struct {
	store    domain.BookmarkStore
	profiles domain.ProfileDirectory
	now      func() time.Time
}

func NewService(store domain.BookmarkStore, profiles domain.ProfileDirectory) *Service {
	return &Service{store: store, profiles: profiles, now: func() time.Time { return time.Now().UTC() }}
}

// Add bookmarks an existing profile. Adding the same profile again returns the first bookmark.
func (s *Service) Add(ctx context.Context, actor domain.Actor, entityType domain.Role, entityID uuid.UUID) (domain.Bookmark, error) {
	if actor.UserID == uuid.Nil {
		return domain.Bookmark{}, errors.Wrap(domain.ErrUnauthenticated, "bookmark owner is required")
	}
	if !entityType.Valid() {
		return domain.Bookmark{}, errors.Wrapf(domain.ErrValidation, "unknown entity type %q", entityType)
	}
	if _, err := s.profiles.Get(ctx, entityType, entityID); err != nil {
		return domain.Bookmark{}, err
	}
	return s.store.AddBookmark(ctx, domain.NewBookmark(actor.UserID, entityType, entityID, s.now()))
}

func (s *Service) List(ctx context.Context, actor domain.Actor) ([]domain.Bookmark, error) {
	return s.store.ListBookmarks(ctx, actor.UserID)
}

// Remove deletes one of the actor's bookmarks. Bookmarks of other users are reported as not found.
func (s *Service) Remove(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	return s.store.DeleteBookmark(ctx, actor.UserID, id)
}
