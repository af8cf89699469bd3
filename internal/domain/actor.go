package domain

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// Role is the side of the marketplace a profile (and the user owning it) is on.
type Role string

const (
	RoleArtist Role = "artist"
	RoleVenue  Role = "venue"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleArtist, RoleVenue:
		return r, nil
	}
	return "", errors.Wrapf(ErrValidation, "unknown profile type %q", s)
}

func (r Role) Valid() bool {
	return r == RoleArtist || r == RoleVenue
}

// Counterpart returns the only role r may relate to.
func (r Role) Counterpart() Role {
	if r == RoleArtist {
		return RoleVenue
	}
	return RoleArtist
}

// Actor is the caller as resolved by the identity layer. It is trusted as-is.
type Actor struct {
	UserID    uuid.UUID
	Role      Role
	ProfileID uuid.UUID
}

func (a Actor) HasProfile() bool {
	return a.ProfileID != uuid.Nil
}

// Profile is the slice of an artist or venue profile the core reads from the directory.
type Profile struct {
	ID     uuid.UUID `json:"id"`
	Role   Role      `json:"role"`
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`
	City   string    `json:"city"`
	State  string    `json:"state"`
}

// ProfileDirectory is the read-only view of profiles owned by the profile service.
type ProfileDirectory interface {
	// Get returns ErrNotFound when no profile of the given role has that id.
	Get(ctx context.Context, role Role, id uuid.UUID) (*Profile, error)
	// Lookup returns the profiles that exist among ids; missing ids are omitted.
	Lookup(ctx context.Context, role Role, ids []uuid.UUID) (map[uuid.UUID]Profile, error)
}
