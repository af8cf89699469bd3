package postgres_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/gigconnect/internal/adapters/postgres"
	"github.com/robertarktes/gigconnect/internal/domain"
	"github.com/robertarktes/gigconnect/internal/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setup(t *testing.T) *postgres.Repository {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "gc",
				"POSTGRES_PASSWORD": "gc",
				"POSTGRES_DB":       "gc",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	pool, err := pgxpool.New(ctx, fmt.Sprintf("postgres://gc:gc@%s/gc?sslmode=disable", endpoint))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.Migrate(ctx, pool, "up"))
	return postgres.NewRepository(pool)
}

func TestRepository(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	t.Run("concurrent reciprocal requests promote once", func(t *testing.T) {
		pair := domain.Pair{ArtistProfileID: uuid.New(), VenueProfileID: uuid.New()}
		artist := domain.Actor{UserID: uuid.New(), Role: domain.RoleArtist, ProfileID: pair.ArtistProfileID}
		venue := domain.Actor{UserID: uuid.New(), Role: domain.RoleVenue, ProfileID: pair.VenueProfileID}

		matched := make([]bool, 2)
		var wg sync.WaitGroup
		for i, a := range []domain.Actor{artist, venue} {
			wg.Add(1)
			go func(i int, a domain.Actor) {
				defer wg.Done()
				err := repo.WithPair(ctx, pair, func(tx domain.RelationshipTx) error {
					cur, err := tx.Load(ctx)
					if err != nil {
						return err
					}
					tr := domain.RequestMatch(cur, pair, a.Role, time.Now().UTC())
					matched[i] = tr.Matched()
					if !tr.Changed {
						return nil
					}
					if err := tx.Save(ctx, *tr.Next); err != nil {
						return err
					}
					return tx.Emit(ctx, domain.NewRelationshipEvent(tr.Event, pair, a, time.Now().UTC()))
				})
				assert.NoError(t, err)
			}(i, a)
		}
		wg.Wait()

		assert.NotEqual(t, matched[0], matched[1])
		rel, err := repo.GetRelationship(ctx, pair)
		require.NoError(t, err)
		require.NotNil(t, rel)
		assert.Equal(t, domain.PairMatched, rel.State)
		assert.NotNil(t, rel.MatchedAt)

		rels, err := repo.ListRelationships(ctx, domain.RoleVenue, pair.VenueProfileID)
		require.NoError(t, err)
		assert.Len(t, rels, 1)

		err = repo.WithPair(ctx, pair, func(tx domain.RelationshipTx) error { return tx.Delete(ctx) })
		require.NoError(t, err)
		rel, err = repo.GetRelationship(ctx, pair)
		require.NoError(t, err)
		assert.Nil(t, rel)
	})

	t.Run("failed callback rolls back", func(t *testing.T) {
		pair := domain.Pair{ArtistProfileID: uuid.New(), VenueProfileID: uuid.New()}
		now := time.Now().UTC()
		err := repo.WithPair(ctx, pair, func(tx domain.RelationshipTx) error {
			if err := tx.Save(ctx, domain.Relationship{Pair: pair, State: domain.PairArtistRequested, CreatedAt: now, UpdatedAt: now}); err != nil {
				return err
			}
			return domain.ErrConflict
		})
		require.ErrorIs(t, err, domain.ErrConflict)
		rel, err := repo.GetRelationship(ctx, pair)
		require.NoError(t, err)
		assert.Nil(t, rel)
	})

	t.Run("gig guards", func(t *testing.T) {
		pair := domain.Pair{ArtistProfileID: uuid.New(), VenueProfileID: uuid.New()}
		g, err := domain.NewGig(uuid.New(), pair, "Friday Night Live", time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), time.Now().UTC())
		require.NoError(t, err)
		require.NoError(t, repo.CreateGig(ctx, g))

		dup, err := domain.NewGig(uuid.New(), pair, "again", g.Date, time.Now().UTC())
		require.NoError(t, err)
		require.ErrorIs(t, repo.CreateGig(ctx, dup), domain.ErrConflict)

		tickets, attendance := int64(120), int64(150)
		_, err = repo.UpdateMetrics(ctx, g.ID, domain.Metrics{TicketsSold: &tickets, Attendance: &attendance}, nil)
		require.NoError(t, err)

		var wg sync.WaitGroup
		for _, side := range []domain.Role{domain.RoleArtist, domain.RoleVenue} {
			wg.Add(1)
			go func(side domain.Role) {
				defer wg.Done()
				_, err := repo.SetConfirmed(ctx, g.ID, side, nil)
				assert.NoError(t, err)
			}(side)
		}
		wg.Wait()

		got, err := repo.GetGig(ctx, g.ID)
		require.NoError(t, err)
		assert.True(t, got.Verified())
		assert.Equal(t, g.Date, got.Date.UTC())

		_, err = repo.SetConfirmed(ctx, g.ID, domain.RoleArtist, nil)
		require.ErrorIs(t, err, domain.ErrNotFound, "already confirmed does not match the guard")

		more := int64(200)
		got, err = repo.UpdateMetrics(ctx, g.ID, domain.Metrics{TicketsSold: &more}, nil)
		require.NoError(t, err)
		assert.False(t, got.ArtistConfirmed)
		assert.False(t, got.VenueConfirmed)
		assert.Equal(t, int64(150), *got.Attendance)

		got, err = repo.UpdateStatus(ctx, g.ID, domain.GigCancelled, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.GigCancelled, got.Status)

		_, err = repo.UpdateStatus(ctx, g.ID, domain.GigCompleted, nil)
		require.ErrorIs(t, err, domain.ErrNotFound)
		_, err = repo.UpdateMetrics(ctx, g.ID, domain.Metrics{TicketsSold: &more}, nil)
		require.ErrorIs(t, err, domain.ErrNotFound)
		_, err = repo.SetConfirmed(ctx, g.ID, domain.RoleVenue, nil)
		require.ErrorIs(t, err, domain.ErrNotFound)

		list, err := repo.ListGigs(ctx, domain.GigFilter{ArtistProfileID: pair.ArtistProfileID, Status: domain.GigCancelled})
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("bookmarks", func(t *testing.T) {
		owner := uuid.New()
		b := domain.NewBookmark(owner, domain.RoleVenue, uuid.New(), time.Now().UTC())
		first, err := repo.AddBookmark(ctx, b)
		require.NoError(t, err)
		again, err := repo.AddBookmark(ctx, domain.NewBookmark(owner, b.EntityType, b.EntityID, time.Now().UTC()))
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)

		require.ErrorIs(t, repo.DeleteBookmark(ctx, uuid.New(), b.ID), domain.ErrNotFound)
		require.NoError(t, repo.DeleteBookmark(ctx, owner, b.ID))
		list, err := repo.ListBookmarks(ctx, owner)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("outbox", func(t *testing.T) {
		pair := domain.Pair{ArtistProfileID: uuid.New(), VenueProfileID: uuid.New()}
		g, err := domain.NewGig(uuid.New(), pair, "Outbox Night", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), time.Now().UTC())
		require.NoError(t, err)
		actor := domain.Actor{UserID: uuid.New(), Role: domain.RoleArtist, ProfileID: pair.ArtistProfileID}
		ev := domain.NewGigEvent(domain.EventGigCreated, g, actor, time.Now().UTC(), nil)
		require.NoError(t, repo.CreateGig(ctx, g, ev))

		var seen []outbox.Record
		n, err := repo.ProcessOutbox(ctx, 1000, func(_ context.Context, recs []outbox.Record) []uuid.UUID {
			seen = recs
			ids := make([]uuid.UUID, 0, len(recs))
			for _, r := range recs {
				ids = append(ids, r.ID)
			}
			return ids
		})
		require.NoError(t, err)
		assert.Equal(t, len(seen), n)

		var found bool
		for _, r := range seen {
			if r.ID == ev.ID {
				found = true
				assert.Equal(t, string(domain.EventGigCreated), r.EventType)
				assert.Equal(t, ev.ID.String(), r.DedupeKey)
			}
		}
		assert.True(t, found)

		n, err = repo.ProcessOutbox(ctx, 1000, func(context.Context, []outbox.Record) []uuid.UUID {
			t.Fatal("published records are not handed out again")
			return nil
		})
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
