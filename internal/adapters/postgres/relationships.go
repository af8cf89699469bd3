package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/gigconnect/internal/domain"
)

type pairTx struct {
	tx   pgx.Tx
	repo *Repository
	pair domain.Pair
}

func (t *pairTx) Load(ctx context.Context) (*domain.Relationship, error) {
	rel := domain.Relationship{Pair: t.pair}
	err := t.tx.QueryRow(ctx, `
		SELECT state, created_at, updated_at, matched_at
		FROM relationships WHERE artist_profile_id = $1 AND venue_profile_id = $2
	`, t.pair.ArtistProfileID, t.pair.VenueProfileID).Scan(&rel.State, &rel.CreatedAt, &rel.UpdatedAt, &rel.MatchedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rel, nil
}

func (t *pairTx) Save(ctx context.Context, rel domain.Relationship) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO relationships (artist_profile_id, venue_profile_id, state, created_at, updated_at, matched_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (artist_profile_id, venue_profile_id)
		DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at, matched_at = EXCLUDED.matched_at
	`, t.pair.ArtistProfileID, t.pair.VenueProfileID, rel.State, rel.CreatedAt, rel.UpdatedAt, rel.MatchedAt)
	return err
}

func (t *pairTx) Delete(ctx context.Context) error {
	_, err := t.tx.Exec(ctx, `
		DELETE FROM relationships WHERE artist_profile_id = $1 AND venue_profile_id = $2
	`, t.pair.ArtistProfileID, t.pair.VenueProfileID)
	return err
}

func (t *pairTx) Emit(ctx context.Context, ev domain.Event) error {
	return t.repo.InsertOutbox(ctx, t.tx, ev)
}

// WithPair serializes writers of one pair on a transaction-scoped advisory lock keyed by the pair.
func (r *Repository) WithPair(ctx context.Context, pair domain.Pair, fn func(tx domain.RelationshipTx) error) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, pair.Key()); err != nil {
			return err
		}
		return fn(&pairTx{tx: tx, repo: r, pair: pair})
	})
}

func (r *Repository) GetRelationship(ctx context.Context, pair domain.Pair) (*domain.Relationship, error) {
	rel := domain.Relationship{Pair: pair}
	err := r.pool.QueryRow(ctx, `
		SELECT state, created_at, updated_at, matched_at
		FROM relationships WHERE artist_profile_id = $1 AND venue_profile_id = $2
	`, pair.ArtistProfileID, pair.VenueProfileID).Scan(&rel.State, &rel.CreatedAt, &rel.UpdatedAt, &rel.MatchedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rel, nil
}

func (r *Repository) ListRelationships(ctx context.Context, side domain.Role, profileID uuid.UUID) ([]domain.Relationship, error) {
	column := "venue_profile_id"
	if side == domain.RoleArtist {
		column = "artist_profile_id"
	}
	rows, err := r.pool.Query(ctx, `
		SELECT artist_profile_id, venue_profile_id, state, created_at, updated_at, matched_at
		FROM relationships WHERE `+column+` = $1
		ORDER BY updated_at DESC, artist_profile_id, venue_profile_id
	`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Relationship
	for rows.Next() {
		var (
			rel       domain.Relationship
			matchedAt *time.Time
		)
		if err := rows.Scan(&rel.ArtistProfileID, &rel.VenueProfileID, &rel.State, &rel.CreatedAt, &rel.UpdatedAt, &matchedAt); err != nil {
			return nil, err
		}
		rel.MatchedAt = matchedAt
		out = append(out, rel)
	}
	return out, rows.Err()
}
