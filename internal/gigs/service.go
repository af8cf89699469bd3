// Package gigs runs the two-party verification of gig records between matched profiles.
package gigs

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/gigconnect/internal/domain"
	"github.com/robertarktes/gigconnect/internal/observability"
)

type Service struct {
	gigs          domain.GigStore
	relationships domain.RelationshipStore
	profiles      domain.ProfileDirectory
	log           observability.Logger
	now           func() time.Time
}

func NewService(gigs domain.GigStore, relationships domain.RelationshipStore, profiles domain.ProfileDirectory, log observability.Logger) *Service {
	return &Service{
		gigs:          gigs,
		relationships: relationships,
		profiles:      profiles,
		log:           log,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

type CreateInput struct {
	ArtistProfileID uuid.UUID
	VenueProfileID  uuid.UUID
	Title           string
	Date            time.Time
}

// Create records an upcoming gig between two matched profiles. The actor must own one of them.
func (s *Service) Create(ctx context.Context, actor domain.Actor, in CreateInput) (*domain.Gig, error) {
	pair := domain.Pair{ArtistProfileID: in.ArtistProfileID, VenueProfileID: in.VenueProfileID}
	now := s.now()
	g, err := domain.NewGig(actor.UserID, pair, in.Title, in.Date, now)
	if err != nil {
		return nil, err
	}
	if _, err := s.profiles.Get(ctx, domain.RoleArtist, pair.ArtistProfileID); err != nil {
		return nil, err
	}
	if _, err := s.profiles.Get(ctx, domain.RoleVenue, pair.VenueProfileID); err != nil {
		return nil, err
	}
	if _, err := g.SideOf(actor); err != nil {
		return nil, err
	}

	rel, err := s.relationships.GetRelationship(ctx, pair)
	if err != nil {
		return nil, err
	}
	if rel.StatusFor(domain.RoleArtist) != domain.MatchMatched {
		return nil, errors.Wrap(domain.ErrForbidden, "gigs can only be created between matched profiles")
	}

	if err := s.gigs.CreateGig(ctx, g, domain.NewGigEvent(domain.EventGigCreated, g, actor, now, map[string]any{
		"title": g.Title,
		"date":  g.Date.Format(time.DateOnly),
	})); err != nil {
		return nil, err
	}
	s.record(ctx, actor, g, domain.EventGigCreated)
	return &g, nil
}

// Get returns a gig to one of its parties.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Gig, error) {
	g, err := s.gigs.GetGig(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := g.SideOf(actor); err != nil {
		return nil, err
	}
	return g, nil
}

// ListForActor lists the gigs of the actor's profile, newest date first. An empty status matches all.
func (s *Service) ListForActor(ctx context.Context, actor domain.Actor, status domain.GigStatus) ([]domain.Gig, error) {
	if !actor.HasProfile() || !actor.Role.Valid() {
		return nil, errors.Wrap(domain.ErrForbidden, "actor has no profile")
	}
	f := domain.GigFilter{Status: status}
	if actor.Role == domain.RoleArtist {
		f.ArtistProfileID = actor.ProfileID
	} else {
		f.VenueProfileID = actor.ProfileID
	}
	return s.gigs.ListGigs(ctx, f)
}

// SubmitMetrics merges the reported fields and resets both confirmations.
func (s *Service) SubmitMetrics(ctx context.Context, actor domain.Actor, id uuid.UUID, patch domain.Metrics) (*domain.Gig, error) {
	g, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	probe := *g
	if err := probe.ApplyMetrics(patch, now); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return g, nil
	}

	updated, err := s.gigs.UpdateMetrics(ctx, id, patch, func(cur domain.Gig) []domain.Event {
		return []domain.Event{domain.NewGigEvent(domain.EventGigMetricsSubmitted, cur, actor, now, metricsData(patch))}
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, s.classify(ctx, id, err, func(cur *domain.Gig) error {
			probe := *cur
			return probe.ApplyMetrics(patch, now)
		})
	}
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, *updated, domain.EventGigMetricsSubmitted)
	return updated, nil
}

// Confirm sets the confirmation of the actor's side only. Confirming twice is a no-op.
func (s *Service) Confirm(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Gig, error) {
	g, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	side, _ := g.SideOf(actor)
	now := s.now()
	probe := *g
	changed, err := probe.Confirm(side, now)
	if err != nil {
		return nil, err
	}
	if !changed {
		return g, nil
	}

	events := func(cur domain.Gig) []domain.Event {
		evs := []domain.Event{domain.NewGigEvent(domain.EventGigConfirmed, cur, actor, now, map[string]any{"side": side})}
		if cur.Verified() {
			evs = append(evs, domain.NewGigEvent(domain.EventGigVerified, cur, actor, now, nil))
		}
		return evs
	}
	var updated *domain.Gig
	for attempt := 0; ; attempt++ {
		updated, err = s.gigs.SetConfirmed(ctx, id, side, events)
		if !errors.Is(err, domain.ErrNotFound) {
			break
		}
		// Lost the race to another confirmation or a cancel. The re-read tells which.
		cur, rerr := s.gigs.GetGig(ctx, id)
		if rerr != nil {
			return nil, rerr
		}
		probe := *cur
		changed, cerr := probe.Confirm(side, now)
		if cerr != nil {
			return nil, cerr
		}
		if !changed {
			return cur, nil
		}
		// A metrics edit cleared the flag again after the write missed.
		if attempt > 0 {
			return nil, errors.Wrap(domain.ErrSerializationFailure, "gig changed while confirming")
		}
	}
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, *updated, domain.EventGigConfirmed)
	if updated.Verified() {
		s.record(ctx, actor, *updated, domain.EventGigVerified)
	}
	return updated, nil
}

// UpdateStatus completes or cancels an upcoming gig. Metrics and confirmations are left untouched.
func (s *Service) UpdateStatus(ctx context.Context, actor domain.Actor, id uuid.UUID, to domain.GigStatus) (*domain.Gig, error) {
	g, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := g.CheckTransition(to); err != nil {
		return nil, err
	}

	ev := domain.EventGigCompleted
	if to == domain.GigCancelled {
		ev = domain.EventGigCancelled
	}
	now := s.now()
	updated, err := s.gigs.UpdateStatus(ctx, id, to, func(cur domain.Gig) []domain.Event {
		return []domain.Event{domain.NewGigEvent(ev, cur, actor, now, nil)}
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, s.classify(ctx, id, err, func(cur *domain.Gig) error {
			return cur.CheckTransition(to)
		})
	}
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, *updated, ev)
	return updated, nil
}

// classify explains a guarded write that matched no row by re-reading the gig.
func (s *Service) classify(ctx context.Context, id uuid.UUID, orig error, check func(cur *domain.Gig) error) error {
	cur, err := s.gigs.GetGig(ctx, id)
	if err != nil {
		return err
	}
	if err := check(cur); err != nil {
		return err
	}
	return orig
}

func (s *Service) record(ctx context.Context, actor domain.Actor, g domain.Gig, ev domain.EventType) {
	observability.GigTransitions.WithLabelValues(string(ev)).Inc()
	observability.LoggerFromContext(ctx, s.log).WithFields(map[string]interface{}{
		"event":    ev,
		"gig_id":   g.ID,
		"actor":    actor.UserID,
		"status":   g.Status,
		"verified": g.Verified(),
	}).Info("gig changed")
}

func metricsData(m domain.Metrics) map[string]any {
	data := make(map[string]any, 4)
	put := func(k string, v *int64) {
		if v != nil {
			data[k] = *v
		}
	}
	put("tickets_sold", m.TicketsSold)
	put("attendance", m.Attendance)
	put("ticket_price_cents", m.TicketPriceCents)
	put("gross_revenue_cents", m.GrossRevenueCents)
	return data
}
