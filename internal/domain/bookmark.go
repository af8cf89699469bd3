package domain

import (
	"time"

	"github.com/google/uuid"
)

// Bookmark marks a profile for later. At most one per owner and target.
type Bookmark struct {
	ID          uuid.UUID
	OwnerUserID uuid.UUID
	EntityType  Role
	EntityID    uuid.UUID
	CreatedAt   time.Time
}

func NewBookmark(owner uuid.UUID, entityType Role, entityID uuid.UUID, now time.Time) Bookmark {
	return Bookmark{
		ID:          uuid.New(),
		OwnerUserID: owner,
		EntityType:  entityType,
		EntityID:    entityID,
		CreatedAt:   now,
	}
}
