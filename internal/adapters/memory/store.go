// Package memory keeps relationships, gigs and bookmarks in process memory.
// It implements the same ports as the postgres adapter and serves local runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/gigconnect/internal/domain"
)

type Store struct {
	mu            sync.Mutex
	relationships map[domain.Pair]domain.Relationship
	gigs          map[uuid.UUID]domain.Gig
	bookmarks     map[uuid.UUID]domain.Bookmark
	events        []domain.Event
	now           func() time.Time
}

func NewStore() *Store {
	return &Store{
		relationships: make(map[domain.Pair]domain.Relationship),
		gigs:          make(map[uuid.UUID]domain.Gig),
		bookmarks:     make(map[uuid.UUID]domain.Bookmark),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Events returns a copy of every event emitted by committed writes, oldest first.
func (s *Store) Events() []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Event, len(s.events))
	copy(out, s.events)
	return out
}

type pairTx struct {
	pair    domain.Pair
	cur     *domain.Relationship
	deleted bool
	events  []domain.Event
}

func (t *pairTx) Load(context.Context) (*domain.Relationship, error) {
	if t.cur == nil {
		return nil, nil
	}
	rel := *t.cur
	return &rel, nil
}

func (t *pairTx) Save(_ context.Context, rel domain.Relationship) error {
	if rel.Pair != t.pair {
		return errors.Newf("save outside locked pair %s", t.pair.Key())
	}
	t.cur = &rel
	t.deleted = false
	return nil
}

func (t *pairTx) Delete(context.Context) error {
	t.cur = nil
	t.deleted = true
	return nil
}

func (t *pairTx) Emit(_ context.Context, ev domain.Event) error {
	t.events = append(t.events, ev)
	return nil
}

// WithPair holds the store lock for the whole callback, so every pair is serialized.
func (s *Store) WithPair(ctx context.Context, pair domain.Pair, fn func(tx domain.RelationshipTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &pairTx{pair: pair}
	if rel, ok := s.relationships[pair]; ok {
		tx.cur = &rel
	}
	if err := fn(tx); err != nil {
		return err
	}
	switch {
	case tx.cur != nil:
		s.relationships[pair] = *tx.cur
	case tx.deleted:
		delete(s.relationships, pair)
	}
	s.events = append(s.events, tx.events...)
	return nil
}

func (s *Store) GetRelationship(_ context.Context, pair domain.Pair) (*domain.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rel, ok := s.relationships[pair]
	if !ok {
		return nil, nil
	}
	return &rel, nil
}

func (s *Store) ListRelationships(_ context.Context, side domain.Role, profileID uuid.UUID) ([]domain.Relationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Relationship
	for pair, rel := range s.relationships {
		if pair.Profile(side) == profileID {
			out = append(out, rel)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].Key() < out[j].Key()
	})
	return out, nil
}

// ListForProfile returns the committed events the profile took part in, oldest first.
func (s *Store) ListForProfile(_ context.Context, profileID uuid.UUID, limit int) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Event{}
	for _, ev := range s.events {
		if ev.ActorProfileID == profileID || ev.TargetProfileID == profileID {
			out = append(out, ev)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}
