package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventMatchRequested      EventType = "match.requested"
	EventMatchMatched        EventType = "match.matched"
	EventMatchCancelled      EventType = "match.cancelled"
	EventMatchDeclined       EventType = "match.declined"
	EventMatchUnmatched      EventType = "match.unmatched"
	EventGigCreated          EventType = "gig.created"
	EventGigMetricsSubmitted EventType = "gig.metrics_submitted"
	EventGigConfirmed        EventType = "gig.confirmed"
	EventGigVerified         EventType = "gig.verified"
	EventGigCompleted        EventType = "gig.completed"
	EventGigCancelled        EventType = "gig.cancelled"
)

const (
	AggregateRelationship = "relationship"
	AggregateGig          = "gig"
)

// Event is an integration event written to the outbox in the same transaction as the change it describes.
type Event struct {
	ID              uuid.UUID      `json:"id"`
	Type            EventType      `json:"type"`
	AggregateType   string         `json:"aggregate_type"`
	AggregateID     string         `json:"aggregate_id"`
	ActorUserID     uuid.UUID      `json:"actor_user_id"`
	ActorProfileID  uuid.UUID      `json:"actor_profile_id"`
	TargetProfileID uuid.UUID      `json:"target_profile_id"`
	OccurredAt      time.Time      `json:"occurred_at"`
	Data            map[string]any `json:"data,omitempty"`
}

func NewRelationshipEvent(t EventType, pair Pair, actor Actor, now time.Time) Event {
	return Event{
		ID:              uuid.New(),
		Type:            t,
		AggregateType:   AggregateRelationship,
		AggregateID:     pair.Key(),
		ActorUserID:     actor.UserID,
		ActorProfileID:  actor.ProfileID,
		TargetProfileID: pair.Profile(actor.Role.Counterpart()),
		OccurredAt:      now,
	}
}

func NewGigEvent(t EventType, g Gig, actor Actor, now time.Time, data map[string]any) Event {
	return Event{
		ID:              uuid.New(),
		Type:            t,
		AggregateType:   AggregateGig,
		AggregateID:     g.ID.String(),
		ActorUserID:     actor.UserID,
		ActorProfileID:  actor.ProfileID,
		TargetProfileID: g.Pair().Profile(actor.Role.Counterpart()),
		OccurredAt:      now,
		Data:            data,
	}
}
