package mongo

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/gigconnect/internal/domain"
	"github.com/robertarktes/gigconnect/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Directory reads the profiles collection maintained by the profile service.
type Directory struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewDirectory(db *mongo.Database, logger observability.Logger) *Directory {
	return &Directory{
		coll:   db.Collection("profiles"),
		logger: logger,
	}
}

// ProfileDoc stores ids as strings so the collection stays readable from other services.
type ProfileDoc struct {
	ID     string `bson:"_id"`
	Role   string `bson:"role"`
	UserID string `bson:"user_id"`
	Name   string `bson:"name"`
	City   string `bson:"city"`
	State  string `bson:"state"`
}

func (d ProfileDoc) toDomain() (domain.Profile, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return domain.Profile{}, errors.Wrapf(err, "profile id %q", d.ID)
	}
	p := domain.Profile{ID: id, Role: domain.Role(d.Role), Name: d.Name, City: d.City, State: d.State}
	if d.UserID != "" {
		if p.UserID, err = uuid.Parse(d.UserID); err != nil {
			return domain.Profile{}, errors.Wrapf(err, "profile %s user id", d.ID)
		}
	}
	return p, nil
}

func ProfileDocFrom(p domain.Profile) ProfileDoc {
	doc := ProfileDoc{ID: p.ID.String(), Role: string(p.Role), Name: p.Name, City: p.City, State: p.State}
	if p.UserID != uuid.Nil {
		doc.UserID = p.UserID.String()
	}
	return doc
}

func (d *Directory) Get(ctx context.Context, role domain.Role, id uuid.UUID) (*domain.Profile, error) {
	var doc ProfileDoc
	err := d.coll.FindOne(ctx, bson.M{"_id": id.String(), "role": string(role)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.Wrapf(domain.ErrNotFound, "%s profile %s", role, id)
	}
	if err != nil {
		d.logger.WithError(err).Error("failed to get profile")
		return nil, err
	}
	p, err := doc.toDomain()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *Directory) Lookup(ctx context.Context, role domain.Role, ids []uuid.UUID) (map[uuid.UUID]domain.Profile, error) {
	out := make(map[uuid.UUID]domain.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, id.String())
	}
	cur, err := d.coll.Find(ctx, bson.M{"_id": bson.M{"$in": keys}, "role": string(role)})
	if err != nil {
		d.logger.WithError(err).Error("failed to look up profiles")
		return nil, err
	}
	var docs []ProfileDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	for _, doc := range docs {
		p, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, nil
}

// Upsert is used by seeding tools and tests; the API never writes profiles.
func (d *Directory) Upsert(ctx context.Context, p domain.Profile) error {
	doc := ProfileDocFrom(p)
	_, err := d.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}
