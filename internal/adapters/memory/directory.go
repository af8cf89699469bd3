package memory

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/gigconnect/internal/domain"
)

// Directory is a fixed set of profiles.
type Directory struct {
	mu       sync.RWMutex
	profiles map[uuid.UUID]domain.Profile
}

func NewDirectory(profiles ...domain.Profile) *Directory {
	d := &Directory{profiles: make(map[uuid.UUID]domain.Profile)}
	for _, p := range profiles {
		d.Put(p)
	}
	return d
}

func (d *Directory) Put(p domain.Profile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[p.ID] = p
}

func (d *Directory) Get(_ context.Context, role domain.Role, id uuid.UUID) (*domain.Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.profiles[id]
	if !ok || p.Role != role {
		return nil, errors.Wrapf(domain.ErrNotFound, "%s profile %s", role, id)
	}
	return &p, nil
}

func (d *Directory) Lookup(_ context.Context, role domain.Role, ids []uuid.UUID) (map[uuid.UUID]domain.Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[uuid.UUID]domain.Profile, len(ids))
	for _, id := range ids {
		if p, ok := d.profiles[id]; ok && p.Role == role {
			out[id] = p
		}
	}
	return out, nil
}
