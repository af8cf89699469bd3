package domain

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// PairState is the persisted tag of a relationship row. A pair without a row is MatchNone.
type PairState string

const (
	PairArtistRequested PairState = "artist_requested"
	PairVenueRequested  PairState = "venue_requested"
	PairMatched         PairState = "matched"
)

func (s PairState) Valid() bool {
	switch s {
	case PairArtistRequested, PairVenueRequested, PairMatched:
		return true
	}
	return false
}

// MatchStatus is a relationship state as seen from one side of the pair.
type MatchStatus string

const (
	MatchNone            MatchStatus = "none"
	MatchPendingOutgoing MatchStatus = "pending_outgoing"
	MatchPendingIncoming MatchStatus = "pending_incoming"
	MatchMatched         MatchStatus = "matched"
)

// Pair identifies the relationship between one artist and one venue profile.
// Roles always differ, so the artist/venue split doubles as the unordered pair key.
type Pair struct {
	ArtistProfileID uuid.UUID
	VenueProfileID  uuid.UUID
}

// PairFor builds the pair between the actor's own profile and a target of the counterpart role.
func PairFor(side Role, own, target uuid.UUID) Pair {
	if side == RoleArtist {
		return Pair{ArtistProfileID: own, VenueProfileID: target}
	}
	return Pair{ArtistProfileID: target, VenueProfileID: own}
}

func (p Pair) Key() string {
	return p.ArtistProfileID.String() + ":" + p.VenueProfileID.String()
}

// Profile returns the profile id on the given side.
func (p Pair) Profile(side Role) uuid.UUID {
	if side == RoleArtist {
		return p.ArtistProfileID
	}
	return p.VenueProfileID
}

// Relationship is the single row kept per pair.
type Relationship struct {
	Pair
	State     PairState
	CreatedAt time.Time
	UpdatedAt time.Time
	MatchedAt *time.Time
}

func requestedBy(side Role) PairState {
	if side == RoleArtist {
		return PairArtistRequested
	}
	return PairVenueRequested
}

// StatusFor reports the status from side's point of view. A nil relationship is MatchNone.
func (r *Relationship) StatusFor(side Role) MatchStatus {
	if r == nil {
		return MatchNone
	}
	switch r.State {
	case PairMatched:
		return MatchMatched
	case requestedBy(side):
		return MatchPendingOutgoing
	case requestedBy(side.Counterpart()):
		return MatchPendingIncoming
	}
	return MatchNone
}

// Transition is the outcome of applying one match operation to the current row.
// Next is nil when the row must be removed. Event is empty when nothing changed.
type Transition struct {
	Next    *Relationship
	Changed bool
	Event   EventType
}

// Matched reports whether the pair is matched after the transition.
func (t Transition) Matched() bool {
	return t.Next != nil && t.Next.State == PairMatched
}

// RequestMatch applies a request from side. A pending request from the other side is promoted,
// repeated requests are no-ops.
func RequestMatch(cur *Relationship, pair Pair, side Role, now time.Time) Transition {
	switch cur.StatusFor(side) {
	case MatchPendingOutgoing, MatchMatched:
		return Transition{Next: cur}
	case MatchPendingIncoming:
		return Transition{Next: promote(cur, now), Changed: true, Event: EventMatchMatched}
	}
	return Transition{
		Next: &Relationship{
			Pair:      pair,
			State:     requestedBy(side),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Changed: true,
		Event:   EventMatchRequested,
	}
}

// AcceptMatch promotes a pending incoming request. Any other state is a conflict.
func AcceptMatch(cur *Relationship, side Role, now time.Time) (Transition, error) {
	if st := cur.StatusFor(side); st != MatchPendingIncoming {
		return Transition{}, errors.Wrapf(ErrConflict, "no incoming request to accept (status %s)", st)
	}
	return Transition{Next: promote(cur, now), Changed: true, Event: EventMatchMatched}, nil
}

// CancelMatch withdraws an outgoing request, unmatches a matched pair or declines an incoming request.
// The pair returns to MatchNone for both sides.
func CancelMatch(cur *Relationship, side Role) Transition {
	var ev EventType
	switch cur.StatusFor(side) {
	case MatchNone:
		return Transition{}
	case MatchPendingOutgoing:
		ev = EventMatchCancelled
	case MatchPendingIncoming:
		ev = EventMatchDeclined
	case MatchMatched:
		ev = EventMatchUnmatched
	}
	return Transition{Next: nil, Changed: true, Event: ev}
}

func promote(cur *Relationship, now time.Time) *Relationship {
	next := *cur
	next.State = PairMatched
	next.UpdatedAt = now
	matchedAt := now
	next.MatchedAt = &matchedAt
	return &next
}
