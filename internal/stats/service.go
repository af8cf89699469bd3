package stats

import (
	"context"

	"github.com/google/uuid"
	"github.com/robertarktes/gigconnect/internal/domain"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Service struct {
	gigs     domain.GigStore
	profiles domain.ProfileDirectory
}

func NewService(gigs domain.GigStore, profiles domain.ProfileDirectory) *Service {
	return &Service{gigs: gigs, profiles: profiles}
}

// ArtistStats returns ErrNotFound when the artist profile does not exist.
func (s *Service) ArtistStats(ctx context.Context, artistID uuid.UUID) (*ArtistStats, error) {
	var (
		artist *domain.Profile
		gigs   []domain.Gig
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		artist, err = s.profiles.Get(gctx, domain.RoleArtist, artistID)
		return err
	})
	g.Go(func() error {
		var err error
		gigs, err = s.gigs.ListGigs(gctx, domain.GigFilter{ArtistProfileID: artistID, Status: domain.GigCompleted})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	venues, err := s.profiles.Lookup(ctx, domain.RoleVenue, distinct(gigs, func(g domain.Gig) uuid.UUID { return g.VenueProfileID }))
	if err != nil {
		return nil, err
	}
	st := ForArtist(artistID, gigs, venues)
	st.ArtistName = artist.Name
	return &st, nil
}

type Query struct {
	Filter
	Sort  SortKey
	Limit int
}

// Leaderboard ranks venues and artists by q.Sort and keeps the first q.Limit of each.
func (s *Service) Leaderboard(ctx context.Context, q Query) (*Leaderboard, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.Sort == "" {
		q.Sort = SortGigs
	}

	gigs, venues, artists, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	lb := Rollup(gigs, venues, artists, q.Filter)
	SortVenues(lb.Venues, q.Sort)
	SortArtists(lb.Artists, q.Sort)
	if len(lb.Venues) > q.Limit {
		lb.Venues = lb.Venues[:q.Limit]
	}
	if len(lb.Artists) > q.Limit {
		lb.Artists = lb.Artists[:q.Limit]
	}
	return &lb, nil
}

func (s *Service) Cities(ctx context.Context) ([]string, error) {
	gigs, err := s.gigs.ListGigs(ctx, domain.GigFilter{Status: domain.GigCompleted})
	if err != nil {
		return nil, err
	}
	venues, err := s.profiles.Lookup(ctx, domain.RoleVenue, distinct(gigs, func(g domain.Gig) uuid.UUID { return g.VenueProfileID }))
	if err != nil {
		return nil, err
	}
	return Cities(gigs, venues), nil
}

// load reads every completed gig, then both sides' profiles concurrently.
func (s *Service) load(ctx context.Context) ([]domain.Gig, map[uuid.UUID]domain.Profile, map[uuid.UUID]domain.Profile, error) {
	gigs, err := s.gigs.ListGigs(ctx, domain.GigFilter{Status: domain.GigCompleted})
	if err != nil {
		return nil, nil, nil, err
	}
	var venues, artists map[uuid.UUID]domain.Profile
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		venues, err = s.profiles.Lookup(gctx, domain.RoleVenue, distinct(gigs, func(g domain.Gig) uuid.UUID { return g.VenueProfileID }))
		return err
	})
	g.Go(func() error {
		var err error
		artists, err = s.profiles.Lookup(gctx, domain.RoleArtist, distinct(gigs, func(g domain.Gig) uuid.UUID { return g.ArtistProfileID }))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	return gigs, venues, artists, nil
}

func distinct(gigs []domain.Gig, key func(domain.Gig) uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(gigs))
	out := make([]uuid.UUID, 0, len(gigs))
	for _, g := range gigs {
		id := key(g)
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
