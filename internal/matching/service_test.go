package matching

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/robertarktes/gigconnect/internal/adapters/memory"
	"github.com/robertarktes/gigconnect/internal/domain"
	"github.com/robertarktes/gigconnect/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc    *Service
	store  *memory.Store
	artist domain.Actor
	venue  domain.Actor
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	artist := domain.Actor{UserID: uuid.New(), Role: domain.RoleArtist, ProfileID: uuid.New()}
	venue := domain.Actor{UserID: uuid.New(), Role: domain.RoleVenue, ProfileID: uuid.New()}
	dir := memory.NewDirectory(
		domain.Profile{ID: artist.ProfileID, Role: domain.RoleArtist, UserID: artist.UserID, Name: "The Lows"},
		domain.Profile{ID: venue.ProfileID, Role: domain.RoleVenue, UserID: venue.UserID, Name: "Basement Club", City: "Austin", State: "TX"},
	)
	store := memory.NewStore()
	return fixture{
		svc:    NewService(store, dir, observability.NewNopLogger()),
		store:  store,
		artist: artist,
		venue:  venue,
	}
}

func eventTypes(evs []domain.Event) []domain.EventType {
	out := make([]domain.EventType, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Type)
	}
	return out
}

func TestRequestThenReciprocalRequestMatches(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.svc.RequestMatch(ctx, f.artist, domain.RoleVenue, f.venue.ProfileID)
	require.NoError(t, err)
	assert.Equal(t, Result{Matched: false, Status: domain.MatchPendingOutgoing}, res)

	st, err := f.svc.Status(ctx, f.venue, domain.RoleArtist, f.artist.ProfileID)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchPendingIncoming, st.Status)

	res, err = f.svc.RequestMatch(ctx, f.venue, domain.RoleArtist, f.artist.ProfileID)
	require.NoError(t, err)
	assert.Equal(t, Result{Matched: true, Status: domain.MatchMatched}, res)

	for _, a := range []domain.Actor{f.artist, f.venue} {
		mutual, err := f.svc.Mutual(ctx, a)
		require.NoError(t, err)
		require.Len(t, mutual, 1)
		incoming, err := f.svc.Incoming(ctx, a)
		require.NoError(t, err)
		assert.Empty(t, incoming)
		outgoing, err := f.svc.Outgoing(ctx, a)
		require.NoError(t, err)
		assert.Empty(t, outgoing)
	}

	assert.Equal(t, []domain.EventType{domain.EventMatchRequested, domain.EventMatchMatched}, eventTypes(f.store.Events()))
}

func TestRepeatedRequestIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		res, err := f.svc.RequestMatch(ctx, f.artist, domain.RoleVenue, f.venue.ProfileID)
		require.NoError(t, err)
		assert.Equal(t, domain.MatchPendingOutgoing, res.Status)
	}
	outgoing, err := f.svc.Outgoing(ctx, f.artist)
	require.NoError(t, err)
	require.Len(t, outgoing, 1)
	assert.Equal(t, f.venue.ProfileID, outgoing[0].Profile.ID)
	assert.Len(t, f.store.Events(), 1)
}

func TestRequestErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name       string
		actor      domain.Actor
		targetType domain.Role
		targetID   uuid.UUID
		want       error
	}{
		{"same role", f.artist, domain.RoleArtist, uuid.New(), domain.ErrRoleMismatch},
		{"unknown target", f.artist, domain.RoleVenue, uuid.New(), domain.ErrNotFound},
		{"target id belongs to an artist", f.artist, domain.RoleVenue, f.artist.ProfileID, domain.ErrNotFound},
		{"no profile", domain.Actor{UserID: uuid.New(), Role: domain.RoleArtist}, domain.RoleVenue, f.venue.ProfileID, domain.ErrForbidden},
		{"bad target type", f.artist, domain.Role("fan"), f.venue.ProfileID, domain.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RequestMatch(ctx, tt.actor, tt.targetType, tt.targetID)
			require.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.store.Events())
}

func TestAccept(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.AcceptMatch(ctx, f.venue, domain.RoleArtist, f.artist.ProfileID)
	require.ErrorIs(t, err, domain.ErrConflict)

	_, err = f.svc.RequestMatch(ctx, f.artist, domain.RoleVenue, f.venue.ProfileID)
	require.NoError(t, err)

	_, err = f.svc.AcceptMatch(ctx, f.artist, domain.RoleVenue, f.venue.ProfileID)
	require.ErrorIs(t, err, domain.ErrConflict, "requester cannot accept its own request")

	res, err := f.svc.AcceptMatch(ctx, f.venue, domain.RoleArtist, f.artist.ProfileID)
	require.NoError(t, err)
	assert.True(t, res.Matched)

	_, err = f.svc.AcceptMatch(ctx, f.venue, domain.RoleArtist, f.artist.ProfileID)
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestUnmatchIsSymmetric(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.RequestMatch(ctx, f.artist, domain.RoleVenue, f.venue.ProfileID)
	require.NoError(t, err)
	_, err = f.svc.RequestMatch(ctx, f.venue, domain.RoleArtist, f.artist.ProfileID)
	require.NoError(t, err)

	_, err = f.svc.CancelOrUnmatch(ctx, f.venue, domain.RoleArtist, f.artist.ProfileID)
	require.NoError(t, err)

	a, err := f.svc.Status(ctx, f.artist, domain.RoleVenue, f.venue.ProfileID)
	require.NoError(t, err)
	v, err := f.svc.Status(ctx, f.venue, domain.RoleArtist, f.artist.ProfileID)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchNone, a.Status)
	assert.Equal(t, domain.MatchNone, v.Status)

	res, err := f.svc.RequestMatch(ctx, f.artist, domain.RoleVenue, f.venue.ProfileID)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchPendingOutgoing, res.Status, "a fresh request starts over")
}

func TestCancelFromEachState(t *testing.T) {
	ctx := context.Background()

	t.Run("none is a noop", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.CancelOrUnmatch(ctx, f.artist, domain.RoleVenue, f.venue.ProfileID)
		require.NoError(t, err)
		assert.Empty(t, f.store.Events())
	})

	t.Run("outgoing is withdrawn", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.RequestMatch(ctx, f.artist, domain.RoleVenue, f.venue.ProfileID)
		require.NoError(t, err)
		_, err = f.svc.CancelOrUnmatch(ctx, f.artist, domain.RoleVenue, f.venue.ProfileID)
		require.NoError(t, err)
		assert.Equal(t, []domain.EventType{domain.EventMatchRequested, domain.EventMatchCancelled}, eventTypes(f.store.Events()))
	})

	t.Run("incoming is declined", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.RequestMatch(ctx, f.artist, domain.RoleVenue, f.venue.ProfileID)
		require.NoError(t, err)
		_, err = f.svc.CancelOrUnmatch(ctx, f.venue, domain.RoleArtist, f.artist.ProfileID)
		require.NoError(t, err)
		outgoing, err := f.svc.Outgoing(ctx, f.artist)
		require.NoError(t, err)
		assert.Empty(t, outgoing)
		assert.Equal(t, []domain.EventType{domain.EventMatchRequested, domain.EventMatchDeclined}, eventTypes(f.store.Events()))
	})
}

func TestConcurrentReciprocalRequestsPromoteOnce(t *testing.T) {
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		f := newFixture(t)
		var wg sync.WaitGroup
		results := make([]Result, 2)
		errs := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			results[0], errs[0] = f.svc.RequestMatch(ctx, f.artist, domain.RoleVenue, f.venue.ProfileID)
		}()
		go func() {
			defer wg.Done()
			results[1], errs[1] = f.svc.RequestMatch(ctx, f.venue, domain.RoleArtist, f.artist.ProfileID)
		}()
		wg.Wait()
		require.NoError(t, errs[0])
		require.NoError(t, errs[1])

		assert.NotEqual(t, results[0].Matched, results[1].Matched, "exactly one request observes the promotion")
		assert.Equal(t, []domain.EventType{domain.EventMatchRequested, domain.EventMatchMatched}, eventTypes(f.store.Events()))

		st, err := f.svc.Status(ctx, f.artist, domain.RoleVenue, f.venue.ProfileID)
		require.NoError(t, err)
		assert.Equal(t, domain.MatchMatched, st.Status)
	}
}
