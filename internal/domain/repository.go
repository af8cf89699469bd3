package domain

import (
	"context"

	"github.com/google/uuid"
)

// RelationshipTx is one pair's row inside a transaction that holds the pair lock.
type RelationshipTx interface {
	// Load returns nil when the pair has no row.
	Load(ctx context.Context) (*Relationship, error)
	Save(ctx context.Context, rel Relationship) error
	Delete(ctx context.Context) error
	Emit(ctx context.Context, ev Event) error
}

type RelationshipStore interface {
	// WithPair runs fn under an exclusive lock on pair and commits when fn returns nil.
	WithPair(ctx context.Context, pair Pair, fn func(tx RelationshipTx) error) error
	// GetRelationship returns nil, nil when the pair has no row.
	GetRelationship(ctx context.Context, pair Pair) (*Relationship, error)
	// ListRelationships returns every row the profile on side takes part in.
	ListRelationships(ctx context.Context, side Role, profileID uuid.UUID) ([]Relationship, error)
}

// GigFilter narrows ListGigs. Zero values match everything.
type GigFilter struct {
	ArtistProfileID uuid.UUID
	VenueProfileID  uuid.UUID
	Status          GigStatus
}

// EventsFunc builds the events for a gig write from the row as it was persisted.
type EventsFunc func(g Gig) []Event

// GigStore persists gig records. Every mutation is a single guarded write;
// a guard that does not match is reported as ErrNotFound so the caller can re-read and classify.
type GigStore interface {
	// CreateGig returns ErrConflict when the pair already has a gig on that date.
	CreateGig(ctx context.Context, g Gig, events ...Event) error
	GetGig(ctx context.Context, id uuid.UUID) (*Gig, error)
	// ListGigs orders by date descending, then id.
	ListGigs(ctx context.Context, f GigFilter) ([]Gig, error)
	// UpdateMetrics merges patch and clears both confirmations unless the gig is cancelled.
	UpdateMetrics(ctx context.Context, id uuid.UUID, patch Metrics, events EventsFunc) (*Gig, error)
	// SetConfirmed sets only side's flag. The guard requires the flag to be unset and the gig not cancelled.
	SetConfirmed(ctx context.Context, id uuid.UUID, side Role, events EventsFunc) (*Gig, error)
	// UpdateStatus moves an upcoming gig to status.
	UpdateStatus(ctx context.Context, id uuid.UUID, status GigStatus, events EventsFunc) (*Gig, error)
}

type BookmarkStore interface {
	// AddBookmark returns the existing bookmark when owner already bookmarked the entity.
	AddBookmark(ctx context.Context, b Bookmark) (Bookmark, error)
	ListBookmarks(ctx context.Context, owner uuid.UUID) ([]Bookmark, error)
	DeleteBookmark(ctx context.Context, owner, id uuid.UUID) error
}
