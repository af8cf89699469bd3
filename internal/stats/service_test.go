package stats

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/gigconnect/internal/adapters/memory"
	"github.com/robertarktes/gigconnect/internal/domain"
	"github.com/robertarktes/gigconnect/internal/gigs"
	"github.com/robertarktes/gigconnect/internal/matching"
	"github.com/robertarktes/gigconnect/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifiedGigShowsInArtistStats(t *testing.T) {
	ctx := context.Background()
	log := observability.NewNopLogger()
	art1 := domain.Actor{UserID: uuid.New(), Role: domain.RoleArtist, ProfileID: uuid.New()}
	ven1 := domain.Actor{UserID: uuid.New(), Role: domain.RoleVenue, ProfileID: uuid.New()}
	dir := memory.NewDirectory(
		domain.Profile{ID: art1.ProfileID, Role: domain.RoleArtist, Name: "art1", City: "Austin"},
		domain.Profile{ID: ven1.ProfileID, Role: domain.RoleVenue, Name: "ven1", City: "Austin"},
	)
	store := memory.NewStore()
	matches := matching.NewService(store, dir, log)
	gigSvc := gigs.NewService(store, store, dir, log)
	svc := NewService(store, dir)

	_, err := matches.RequestMatch(ctx, art1, domain.RoleVenue, ven1.ProfileID)
	require.NoError(t, err)
	res, err := matches.RequestMatch(ctx, ven1, domain.RoleArtist, art1.ProfileID)
	require.NoError(t, err)
	require.True(t, res.Matched)

	g, err := gigSvc.Create(ctx, art1, gigs.CreateInput{
		ArtistProfileID: art1.ProfileID,
		VenueProfileID:  ven1.ProfileID,
		Title:           "Friday Night Live",
		Date:            time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	_, err = gigSvc.SubmitMetrics(ctx, art1, g.ID, domain.Metrics{TicketsSold: i64(120), Attendance: i64(150)})
	require.NoError(t, err)
	_, err = gigSvc.Confirm(ctx, art1, g.ID)
	require.NoError(t, err)
	_, err = gigSvc.Confirm(ctx, ven1, g.ID)
	require.NoError(t, err)

	st, err := svc.ArtistStats(ctx, art1.ProfileID)
	require.NoError(t, err)
	assert.Zero(t, st.TotalGigs, "upcoming gigs are not counted")

	_, err = gigSvc.UpdateStatus(ctx, art1, g.ID, domain.GigCompleted)
	require.NoError(t, err)

	st, err = svc.ArtistStats(ctx, art1.ProfileID)
	require.NoError(t, err)
	assert.Equal(t, "art1", st.ArtistName)
	assert.Equal(t, 1, st.TotalGigs)
	assert.Equal(t, 1, st.VerifiedGigs)
	require.NotNil(t, st.AvgAttendance)
	assert.Equal(t, 150.0, *st.AvgAttendance)
	require.Len(t, st.GigHistory, 1)
	assert.Equal(t, "ven1", st.GigHistory[0].VenueName)

	lb, err := svc.Leaderboard(ctx, Query{Filter: Filter{City: "Austin"}})
	require.NoError(t, err)
	require.Len(t, lb.Venues, 1)
	assert.Equal(t, 1, lb.Venues[0].VerifiedGigs)

	cities, err := svc.Cities(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Austin"}, cities)
}

func TestArtistStatsUnknownArtist(t *testing.T) {
	svc := NewService(memory.NewStore(), memory.NewDirectory())
	_, err := svc.ArtistStats(context.Background(), uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLeaderboardLimit(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	dir := memory.NewDirectory()
	artist := uuid.New()
	dir.Put(domain.Profile{ID: artist, Role: domain.RoleArtist})
	for i := 0; i < 5; i++ {
		venue := uuid.New()
		dir.Put(domain.Profile{ID: venue, Role: domain.RoleVenue})
		g := gig(artist, venue, day(i+1), domain.GigCompleted, false, domain.Metrics{})
		require.NoError(t, store.CreateGig(ctx, g))
	}
	svc := NewService(store, dir)

	lb, err := svc.Leaderboard(ctx, Query{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, lb.Venues, 3)
	assert.Len(t, lb.Artists, 1)
	assert.Equal(t, 5, lb.Artists[0].TotalGigs)
}
