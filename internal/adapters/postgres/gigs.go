package postgres

import (
	"context"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/gigconnect/internal/domain"
)

const gigColumns = `id, artist_profile_id, venue_profile_id, title, date, status,
	tickets_sold, attendance, ticket_price_cents, gross_revenue_cents,
	artist_confirmed, venue_confirmed, created_by_user_id, created_at, updated_at`

func scanGig(row pgx.Row) (*domain.Gig, error) {
	var g domain.Gig
	err := row.Scan(&g.ID, &g.ArtistProfileID, &g.VenueProfileID, &g.Title, &g.Date, &g.Status,
		&g.TicketsSold, &g.Attendance, &g.TicketPriceCents, &g.GrossRevenueCents,
		&g.ArtistConfirmed, &g.VenueConfirmed, &g.CreatedByUserID, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *Repository) CreateGig(ctx context.Context, g domain.Gig, events ...domain.Event) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			INSERT INTO gigs (id, artist_profile_id, venue_profile_id, title, date, status,
				artist_confirmed, venue_confirmed, created_by_user_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, false, false, $7, $8, $8)
			ON CONFLICT (artist_profile_id, venue_profile_id, date) DO NOTHING
		`, g.ID, g.ArtistProfileID, g.VenueProfileID, g.Title, g.Date, g.Status, g.CreatedByUserID, g.CreatedAt)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return errors.Wrapf(domain.ErrConflict, "gig on %s already exists", g.Date.Format("2006-01-02"))
		}
		for _, ev := range events {
			if err := r.InsertOutbox(ctx, tx, ev); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) GetGig(ctx context.Context, id uuid.UUID) (*domain.Gig, error) {
	g, err := scanGig(r.pool.QueryRow(ctx, `SELECT `+gigColumns+` FROM gigs WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, errors.Wrapf(domain.ErrNotFound, "gig %s", id)
	}
	return g, err
}

func (r *Repository) ListGigs(ctx context.Context, f domain.GigFilter) ([]domain.Gig, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, cond+" = $"+strconv.Itoa(len(args)))
	}
	if f.ArtistProfileID != uuid.Nil {
		add("artist_profile_id", f.ArtistProfileID)
	}
	if f.VenueProfileID != uuid.Nil {
		add("venue_profile_id", f.VenueProfileID)
	}
	if f.Status != "" {
		add("status", f.Status)
	}
	q := `SELECT ` + gigColumns + ` FROM gigs`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY date DESC, id`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Gig
	for rows.Next() {
		g, err := scanGig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

// guardedUpdate runs one conditional UPDATE ... RETURNING and the outbox inserts for its result
// in a single transaction. No returned row means the guard did not match.
func (r *Repository) guardedUpdate(ctx context.Context, id uuid.UUID, events domain.EventsFunc, query string, args ...any) (*domain.Gig, error) {
	var updated *domain.Gig
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		g, err := scanGig(tx.QueryRow(ctx, query, args...))
		if err == pgx.ErrNoRows {
			return errors.Wrapf(domain.ErrNotFound, "gig %s", id)
		}
		if err != nil {
			return err
		}
		if events != nil {
			for _, ev := range events(*g) {
				if err := r.InsertOutbox(ctx, tx, ev); err != nil {
					return err
				}
			}
		}
		updated = g
		return nil
	})
	return updated, err
}

func (r *Repository) UpdateMetrics(ctx context.Context, id uuid.UUID, patch domain.Metrics, events domain.EventsFunc) (*domain.Gig, error) {
	return r.guardedUpdate(ctx, id, events, `
		UPDATE gigs SET
			tickets_sold = COALESCE($2, tickets_sold),
			attendance = COALESCE($3, attendance),
			ticket_price_cents = COALESCE($4, ticket_price_cents),
			gross_revenue_cents = COALESCE($5, gross_revenue_cents),
			artist_confirmed = false,
			venue_confirmed = false,
			updated_at = now()
		WHERE id = $1 AND status <> 'cancelled'
		RETURNING `+gigColumns,
		id, patch.TicketsSold, patch.Attendance, patch.TicketPriceCents, patch.GrossRevenueCents)
}

func (r *Repository) SetConfirmed(ctx context.Context, id uuid.UUID, side domain.Role, events domain.EventsFunc) (*domain.Gig, error) {
	column := "venue_confirmed"
	if side == domain.RoleArtist {
		column = "artist_confirmed"
	}
	return r.guardedUpdate(ctx, id, events, `
		UPDATE gigs SET `+column+` = true, updated_at = now()
		WHERE id = $1 AND status <> 'cancelled' AND `+column+` = false
		RETURNING `+gigColumns, id)
}

func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.GigStatus, events domain.EventsFunc) (*domain.Gig, error) {
	return r.guardedUpdate(ctx, id, events, `
		UPDATE gigs SET status = $2, updated_at = now()
		WHERE id = $1 AND status = 'upcoming'
		RETURNING `+gigColumns, id, status)
}
