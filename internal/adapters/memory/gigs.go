package memory

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/gigconnect/internal/domain"
)

func (s *Store) CreateGig(_ context.Context, g domain.Gig, events ...domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.gigs {
		if other.Pair() == g.Pair() && other.Date.Equal(g.Date) {
			return errors.Wrapf(domain.ErrConflict, "gig on %s already exists", g.Date.Format("2006-01-02"))
		}
	}
	s.gigs[g.ID] = g
	s.events = append(s.events, events...)
	return nil
}

func (s *Store) GetGig(_ context.Context, id uuid.UUID) (*domain.Gig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gigs[id]
	if !ok {
		return nil, errors.Wrapf(domain.ErrNotFound, "gig %s", id)
	}
	return &g, nil
}

func (s *Store) ListGigs(_ context.Context, f domain.GigFilter) ([]domain.Gig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Gig
	for _, g := range s.gigs {
		if f.ArtistProfileID != uuid.Nil && g.ArtistProfileID != f.ArtistProfileID {
			continue
		}
		if f.VenueProfileID != uuid.Nil && g.VenueProfileID != f.VenueProfileID {
			continue
		}
		if f.Status != "" && g.Status != f.Status {
			continue
		}
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// update applies mutate under the store lock when guard accepts the current row,
// mirroring the conditional UPDATE of the postgres adapter.
func (s *Store) update(id uuid.UUID, guard func(domain.Gig) bool, mutate func(*domain.Gig), events domain.EventsFunc) (*domain.Gig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gigs[id]
	if !ok || !guard(g) {
		return nil, errors.Wrapf(domain.ErrNotFound, "gig %s", id)
	}
	mutate(&g)
	s.gigs[id] = g
	if events != nil {
		s.events = append(s.events, events(g)...)
	}
	return &g, nil
}

func (s *Store) UpdateMetrics(_ context.Context, id uuid.UUID, patch domain.Metrics, events domain.EventsFunc) (*domain.Gig, error) {
	return s.update(id,
		func(g domain.Gig) bool { return g.Status != domain.GigCancelled },
		func(g *domain.Gig) {
			g.Metrics = g.Metrics.Merge(patch)
			g.ArtistConfirmed = false
			g.VenueConfirmed = false
			g.UpdatedAt = s.now()
		},
		events)
}

func (s *Store) SetConfirmed(_ context.Context, id uuid.UUID, side domain.Role, events domain.EventsFunc) (*domain.Gig, error) {
	return s.update(id,
		func(g domain.Gig) bool {
			if g.Status == domain.GigCancelled {
				return false
			}
			if side == domain.RoleArtist {
				return !g.ArtistConfirmed
			}
			return !g.VenueConfirmed
		},
		func(g *domain.Gig) {
			if side == domain.RoleArtist {
				g.ArtistConfirmed = true
			} else {
				g.VenueConfirmed = true
			}
			g.UpdatedAt = s.now()
		},
		events)
}

func (s *Store) UpdateStatus(_ context.Context, id uuid.UUID, status domain.GigStatus, events domain.EventsFunc) (*domain.Gig, error) {
	return s.update(id,
		func(g domain.Gig) bool { return g.Status == domain.GigUpcoming },
		func(g *domain.Gig) {
			g.Status = status
			g.UpdatedAt = s.now()
		},
		events)
}
