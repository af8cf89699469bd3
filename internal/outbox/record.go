package outbox

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusNew       Status = "NEW"
	StatusPublished Status = "PUBLISHED"
)

// Record is one integration event waiting in the outbox table.
type Record struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Status        Status
	DedupeKey     string
}
