package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func i64(v int64) *int64 { return &v }

func newTestGig(t *testing.T) (Gig, Actor, Actor) {
	t.Helper()
	artist := Actor{UserID: uuid.New(), Role: RoleArtist, ProfileID: uuid.New()}
	venue := Actor{UserID: uuid.New(), Role: RoleVenue, ProfileID: uuid.New()}
	pair := Pair{ArtistProfileID: artist.ProfileID, VenueProfileID: venue.ProfileID}
	g, err := NewGig(artist.UserID, pair, "Friday Night Live", time.Date(2024, 5, 10, 21, 30, 0, 0, time.UTC), time.Now())
	require.NoError(t, err)
	return g, artist, venue
}

func TestNewGig(t *testing.T) {
	pair := Pair{ArtistProfileID: uuid.New(), VenueProfileID: uuid.New()}
	date := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		title   string
		date    time.Time
		wantErr error
	}{
		{"valid", "Friday Night Live", date, nil},
		{"empty title", "   ", date, ErrValidation},
		{"title too long", strings.Repeat("x", MaxGigTitleLength+1), date, ErrValidation},
		{"title at limit", strings.Repeat("x", MaxGigTitleLength), date, nil},
		{"missing date", "Show", time.Time{}, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGig(uuid.New(), pair, tt.title, tt.date, time.Now())
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, GigUpcoming, g.Status)
			assert.True(t, g.Metrics.IsEmpty())
			assert.False(t, g.ArtistConfirmed)
			assert.False(t, g.VenueConfirmed)
			assert.False(t, g.Verified())
		})
	}
}

func TestNewGig_DropsTimeOfDay(t *testing.T) {
	g, _, _ := newTestGig(t)
	assert.Equal(t, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), g.Date)
}

func TestGig_SideOf(t *testing.T) {
	g, artist, venue := newTestGig(t)

	side, err := g.SideOf(artist)
	require.NoError(t, err)
	assert.Equal(t, RoleArtist, side)

	side, err = g.SideOf(venue)
	require.NoError(t, err)
	assert.Equal(t, RoleVenue, side)

	stranger := Actor{UserID: uuid.New(), Role: RoleVenue, ProfileID: uuid.New()}
	_, err = g.SideOf(stranger)
	require.ErrorIs(t, err, ErrForbidden)

	// an artist whose id happens to equal the venue id still is not the venue
	spoof := Actor{UserID: uuid.New(), Role: RoleArtist, ProfileID: venue.ProfileID}
	_, err = g.SideOf(spoof)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestGig_VerificationFlow(t *testing.T) {
	g, _, _ := newTestGig(t)
	now := time.Now()

	require.NoError(t, g.ApplyMetrics(Metrics{TicketsSold: i64(120), Attendance: i64(150)}, now))

	changed, err := g.Confirm(RoleArtist, now)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.False(t, g.Verified())

	changed, err = g.Confirm(RoleArtist, now)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = g.Confirm(RoleVenue, now)
	require.NoError(t, err)
	assert.True(t, g.Verified())

	require.NoError(t, g.TransitionTo(GigCompleted, now))
	assert.True(t, g.Verified())

	require.NoError(t, g.ApplyMetrics(Metrics{TicketsSold: i64(200)}, now))
	assert.False(t, g.ArtistConfirmed)
	assert.False(t, g.VenueConfirmed)
	assert.False(t, g.Verified())
	assert.Equal(t, int64(200), *g.TicketsSold)
	assert.Equal(t, int64(150), *g.Attendance)
}

func TestGig_ApplyMetrics(t *testing.T) {
	t.Run("negative value", func(t *testing.T) {
		g, _, _ := newTestGig(t)
		err := g.ApplyMetrics(Metrics{Attendance: i64(-1)}, time.Now())
		require.ErrorIs(t, err, ErrValidation)
		assert.Nil(t, g.Attendance)
	})

	t.Run("empty patch keeps confirmations", func(t *testing.T) {
		g, _, _ := newTestGig(t)
		g.ArtistConfirmed, g.VenueConfirmed = true, true
		require.NoError(t, g.ApplyMetrics(Metrics{}, time.Now()))
		assert.True(t, g.Verified())
	})

	t.Run("zero is a valid value", func(t *testing.T) {
		g, _, _ := newTestGig(t)
		require.NoError(t, g.ApplyMetrics(Metrics{GrossRevenueCents: i64(0)}, time.Now()))
		require.NotNil(t, g.GrossRevenueCents)
		assert.Zero(t, *g.GrossRevenueCents)
	})
}

func TestGig_CancelledIsTerminal(t *testing.T) {
	g, _, _ := newTestGig(t)
	now := time.Now()
	require.NoError(t, g.TransitionTo(GigCancelled, now))

	require.ErrorIs(t, g.ApplyMetrics(Metrics{TicketsSold: i64(1)}, now), ErrInvalidState)
	_, err := g.Confirm(RoleArtist, now)
	require.ErrorIs(t, err, ErrInvalidState)
	require.ErrorIs(t, g.TransitionTo(GigCompleted, now), ErrInvalidState)
	require.ErrorIs(t, g.TransitionTo(GigCancelled, now), ErrInvalidState)
	assert.Equal(t, GigCancelled, g.Status)
}

func TestGig_CheckTransition(t *testing.T) {
	g, _, _ := newTestGig(t)
	require.ErrorIs(t, g.CheckTransition(GigUpcoming), ErrValidation)
	require.NoError(t, g.CheckTransition(GigCompleted))

	g.Status = GigCompleted
	require.ErrorIs(t, g.CheckTransition(GigCancelled), ErrInvalidState)
	require.ErrorIs(t, g.CheckTransition(GigCompleted), ErrInvalidState)
}

func TestParseGigStatus(t *testing.T) {
	st, err := ParseGigStatus(" Completed ")
	require.NoError(t, err)
	assert.Equal(t, GigCompleted, st)

	_, err = ParseGigStatus("done")
	require.ErrorIs(t, err, ErrValidation)
}
