package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/gigconnect/internal/domain"
)

func (r *Repository) AddBookmark(ctx context.Context, b domain.Bookmark) (domain.Bookmark, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO bookmarks (id, owner_user_id, entity_type, entity_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner_user_id, entity_type, entity_id) DO UPDATE SET owner_user_id = EXCLUDED.owner_user_id
		RETURNING id, created_at
	`, b.ID, b.OwnerUserID, b.EntityType, b.EntityID, b.CreatedAt).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return domain.Bookmark{}, mapError(err)
	}
	return b, nil
}

func (r *Repository) ListBookmarks(ctx context.Context, owner uuid.UUID) ([]domain.Bookmark, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, owner_user_id, entity_type, entity_id, created_at
		FROM bookmarks WHERE owner_user_id = $1 ORDER BY created_at DESC, id
	`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Bookmark
	for rows.Next() {
		var b domain.Bookmark
		if err := rows.Scan(&b.ID, &b.OwnerUserID, &b.EntityType, &b.EntityID, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repository) DeleteBookmark(ctx context.Context, owner, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM bookmarks WHERE id = $1 AND owner_user_id = $2`, id, owner)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return errors.Wrapf(domain.ErrNotFound, "bookmark %s", id)
	}
	return nil
}
