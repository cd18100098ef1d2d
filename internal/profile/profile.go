// Package profile reads learner profiles owned by the identity provider.
package profile

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/filmforge/academy/internal/platform/apperr"
	"github.com/filmforge/academy/internal/platform/database"
)

// Profile is the public part of a user account.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"-"`
}

var ErrProfileNotFound = apperr.NotFound("profile not found")

// Directory looks up profiles by user id.
type Directory interface {
	Get(ctx context.Context, userID string) (Profile, error)
}

// MemoryDirectory is an in-memory Directory.
type MemoryDirectory struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

func NewMemoryDirectory(profiles ...Profile) *MemoryDirectory {
	d := &MemoryDirectory{profiles: make(map[string]Profile)}
	for _, p := range profiles {
		d.profiles[p.ID] = p
	}
	return d
}

func (d *MemoryDirectory) Put(p Profile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[p.ID] = p
}

func (d *MemoryDirectory) Get(_ context.Context, userID string) (Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.profiles[userID]
	if !ok {
		return Profile{}, ErrProfileNotFound
	}
	return p, nil
}

// PostgresDirectory reads the profiles table.
type PostgresDirectory struct {
	db database.DBTX
}

func NewPostgresDirectory(db database.DBTX) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) Get(ctx context.Context, userID string) (Profile, error) {
	var p Profile
	err := d.db.QueryRow(ctx,
		`SELECT id::text, display_name, email FROM profiles WHERE id = $1::uuid`,
		userID,
	).Scan(&p.ID, &p.DisplayName, &p.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrProfileNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// DisplayName returns the user's display name, or "" when unknown.
func DisplayName(ctx context.Context, d Directory, userID string) string {
	p, err := d.Get(ctx, userID)
	if err != nil {
		return ""
	}
	return p.DisplayName
}
