// Package matching runs the reciprocal match state machine between artist and venue profiles.
package matching

import (
	"context"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/gigconnect/internal/domain"
	"github.com/robertarktes/gigconnect/internal/observability"
)

type Service struct {
	store    domain.RelationshipStore
	profiles domain.ProfileDirectory
	log      observability.Logger
	now      func() time.Time
}

func NewService(store domain.RelationshipStore, profiles domain.ProfileDirectory, log observability.Logger) *Service {
	return &Service{
		store:    store,
		profiles: profiles,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type Result struct {
	Matched bool               `json:"matched"`
	Status  domain.MatchStatus `json:"status"`
}

// Counterpart is one entry of an actor's incoming, outgoing or mutual list.
type Counterpart struct {
	Profile domain.Profile     `json:"profile"`
	Status  domain.MatchStatus `json:"status"`
	Since   time.Time          `json:"since"`
}

// RequestMatch signals interest in target. A pending request from target is promoted to a match.
func (s *Service) RequestMatch(ctx context.Context, actor domain.Actor, targetType domain.Role, targetID uuid.UUID) (Result, error) {
	pair, err := s.pairWith(actor, targetType, targetID)
	if err != nil {
		return Result{}, err
	}
	if _, err := s.profiles.Get(ctx, targetType, targetID); err != nil {
		return Result{}, err
	}

	var res Result
	err = s.mutate(ctx, actor, pair, func(cur *domain.Relationship) (domain.Transition, error) {
		tr := domain.RequestMatch(cur, pair, actor.Role, s.now())
		res = Result{Matched: tr.Matched(), Status: tr.Next.StatusFor(actor.Role)}
		return tr, nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// AcceptMatch promotes the pending request target sent to the actor.
func (s *Service) AcceptMatch(ctx context.Context, actor domain.Actor, targetType domain.Role, targetID uuid.UUID) (Result, error) {
	pair, err := s.pairWith(actor, targetType, targetID)
	if err != nil {
		return Result{}, err
	}
	if _, err := s.profiles.Get(ctx, targetType, targetID); err != nil {
		return Result{}, err
	}

	err = s.mutate(ctx, actor, pair, func(cur *domain.Relationship) (domain.Transition, error) {
		return domain.AcceptMatch(cur, actor.Role, s.now())
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Matched: true, Status: domain.MatchMatched}, nil
}

// CancelOrUnmatch returns the pair to none from any state. Target existence is not checked so that
// pairs with a removed profile can still be cleared.
func (s *Service) CancelOrUnmatch(ctx context.Context, actor domain.Actor, targetType domain.Role, targetID uuid.UUID) (Result, error) {
	pair, err := s.pairWith(actor, targetType, targetID)
	if err != nil {
		return Result{}, err
	}
	err = s.mutate(ctx, actor, pair, func(cur *domain.Relationship) (domain.Transition, error) {
		return domain.CancelMatch(cur, actor.Role), nil
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Matched: false, Status: domain.MatchNone}, nil
}

// Status reports the pair state as seen by the actor.
func (s *Service) Status(ctx context.Context, actor domain.Actor, targetType domain.Role, targetID uuid.UUID) (Result, error) {
	pair, err := s.pairWith(actor, targetType, targetID)
	if err != nil {
		return Result{}, err
	}
	rel, err := s.store.GetRelationship(ctx, pair)
	if err != nil {
		return Result{}, err
	}
	st := rel.StatusFor(actor.Role)
	return Result{Matched: st == domain.MatchMatched, Status: st}, nil
}

func (s *Service) Incoming(ctx context.Context, actor domain.Actor) ([]Counterpart, error) {
	return s.list(ctx, actor, domain.MatchPendingIncoming)
}

func (s *Service) Outgoing(ctx context.Context, actor domain.Actor) ([]Counterpart, error) {
	return s.list(ctx, actor, domain.MatchPendingOutgoing)
}

func (s *Service) Mutual(ctx context.Context, actor domain.Actor) ([]Counterpart, error) {
	return s.list(ctx, actor, domain.MatchMatched)
}

func (s *Service) pairWith(actor domain.Actor, targetType domain.Role, targetID uuid.UUID) (domain.Pair, error) {
	if !actor.HasProfile() || !actor.Role.Valid() {
		return domain.Pair{}, errors.Wrap(domain.ErrForbidden, "actor has no profile")
	}
	if targetType == actor.Role {
		return domain.Pair{}, errors.Wrapf(domain.ErrRoleMismatch, "%s cannot match with %s", actor.Role, targetType)
	}
	if !targetType.Valid() {
		return domain.Pair{}, errors.Wrapf(domain.ErrValidation, "unknown target type %q", targetType)
	}
	if targetID == uuid.Nil {
		return domain.Pair{}, errors.Wrap(domain.ErrValidation, "target id is required")
	}
	return domain.PairFor(actor.Role, actor.ProfileID, targetID), nil
}

type step func(cur *domain.Relationship) (domain.Transition, error)

// mutate runs one transition under the pair lock and persists its row change and event together.
func (s *Service) mutate(ctx context.Context, actor domain.Actor, pair domain.Pair, fn step) error {
	var tr domain.Transition
	err := s.store.WithPair(ctx, pair, func(tx domain.RelationshipTx) error {
		cur, err := tx.Load(ctx)
		if err != nil {
			return err
		}
		tr, err = fn(cur)
		if err != nil || !tr.Changed {
			return err
		}
		if tr.Next == nil {
			err = tx.Delete(ctx)
		} else {
			err = tx.Save(ctx, *tr.Next)
		}
		if err != nil {
			return err
		}
		return tx.Emit(ctx, domain.NewRelationshipEvent(tr.Event, pair, actor, s.now()))
	})
	if err != nil {
		return err
	}
	if tr.Changed {
		observability.MatchTransitions.WithLabelValues(string(tr.Event)).Inc()
		observability.LoggerFromContext(ctx, s.log).WithFields(map[string]interface{}{
			"event":  tr.Event,
			"pair":   pair.Key(),
			"actor":  actor.UserID,
			"status": tr.Next.StatusFor(actor.Role),
		}).Info("relationship changed")
	}
	return nil
}

func (s *Service) list(ctx context.Context, actor domain.Actor, want domain.MatchStatus) ([]Counterpart, error) {
	if !actor.HasProfile() || !actor.Role.Valid() {
		return nil, errors.Wrap(domain.ErrForbidden, "actor has no profile")
	}
	rels, err := s.store.ListRelationships(ctx, actor.Role, actor.ProfileID)
	if err != nil {
		return nil, err
	}
	other := actor.Role.Counterpart()

	var picked []domain.Relationship
	ids := make([]uuid.UUID, 0, len(rels))
	for _, rel := range rels {
		if rel.StatusFor(actor.Role) == want {
			picked = append(picked, rel)
			ids = append(ids, rel.Profile(other))
		}
	}
	if len(picked) == 0 {
		return []Counterpart{}, nil
	}

	profiles, err := s.profiles.Lookup(ctx, other, ids)
	if err != nil {
		return nil, errors.Wrap(err, "lookup counterpart profiles")
	}

	out := make([]Counterpart, 0, len(picked))
	for _, rel := range picked {
		p, ok := profiles[rel.Profile(other)]
		if !ok {
			continue
		}
		since := rel.CreatedAt
		if rel.MatchedAt != nil {
			since = *rel.MatchedAt
		}
		out = append(out, Counterpart{Profile: p, Status: want, Since: since})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Since.After(out[j].Since) })
	return out, nil
}
