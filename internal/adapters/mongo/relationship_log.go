package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/gigconnect/internal/domain"
	"github.com/robertarktes/gigconnect/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RelationshipLog is the append-only history of match and gig events.
type RelationshipLog struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewRelationshipLog(db *mongo.Database, logger observability.Logger) *RelationshipLog {
	return &RelationshipLog{
		coll:   db.Collection("relationship_logs"),
		logger: logger,
	}
}

// LogEntry is keyed by the event id so redelivered events are stored once.
type LogEntry struct {
	ID              string    `bson:"_id" json:"id"`
	Type            string    `bson:"type" json:"type"`
	AggregateType   string    `bson:"aggregate_type" json:"aggregate_type"`
	AggregateID     string    `bson:"aggregate_id" json:"aggregate_id"`
	ActorUserID     string    `bson:"actor_user_id" json:"actor_user_id"`
	ActorProfileID  string    `bson:"actor_profile_id" json:"actor_profile_id"`
	TargetProfileID string    `bson:"target_profile_id" json:"target_profile_id"`
	OccurredAt      time.Time `bson:"occurred_at" json:"occurred_at"`
	Data            bson.M    `bson:"data,omitempty" json:"data,omitempty"`
}

func EntryFromEvent(ev domain.Event) LogEntry {
	return LogEntry{
		ID:              ev.ID.String(),
		Type:            string(ev.Type),
		AggregateType:   ev.AggregateType,
		AggregateID:     ev.AggregateID,
		ActorUserID:     ev.ActorUserID.String(),
		ActorProfileID:  ev.ActorProfileID.String(),
		TargetProfileID: ev.TargetProfileID.String(),
		OccurredAt:      ev.OccurredAt,
		Data:            bson.M(ev.Data),
	}
}

func (l *RelationshipLog) EnsureIndexes(ctx context.Context) error {
	_, err := l.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "actor_profile_id", Value: 1}, {Key: "occurred_at", Value: -1}}},
		{Keys: bson.D{{Key: "target_profile_id", Value: 1}, {Key: "occurred_at", Value: -1}}},
	})
	return err
}

// Append stores ev. A duplicate delivery is not an error.
func (l *RelationshipLog) Append(ctx context.Context, ev domain.Event) error {
	_, err := l.coll.InsertOne(ctx, EntryFromEvent(ev))
	if mongo.IsDuplicateKeyError(err) {
		l.logger.WithField("event_id", ev.ID).Debug("relationship log entry already stored")
		return nil
	}
	if err != nil {
		l.logger.WithError(err).Error("failed to insert relationship log entry")
		return err
	}
	return nil
}

func (e LogEntry) toDomain() domain.Event {
	ev := domain.Event{
		Type:          domain.EventType(e.Type),
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		OccurredAt:    e.OccurredAt,
		Data:          map[string]any(e.Data),
	}
	ev.ID, _ = uuid.Parse(e.ID)
	ev.ActorUserID, _ = uuid.Parse(e.ActorUserID)
	ev.ActorProfileID, _ = uuid.Parse(e.ActorProfileID)
	ev.TargetProfileID, _ = uuid.Parse(e.TargetProfileID)
	return ev
}

// ListForProfile returns the events the profile took part in, oldest first.
func (l *RelationshipLog) ListForProfile(ctx context.Context, profileID uuid.UUID, limit int) ([]domain.Event, error) {
	id := profileID.String()
	filter := bson.M{"$or": bson.A{
		bson.M{"actor_profile_id": id},
		bson.M{"target_profile_id": id},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "occurred_at", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := l.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var entries []LogEntry
	if err := cur.All(ctx, &entries); err != nil {
		return nil, err
	}
	out := make([]domain.Event, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.toDomain())
	}
	return out, nil
}
