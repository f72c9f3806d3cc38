// Package resolver maps a target descriptor to a concrete recipient set.
// The directory is an external collaborator; the broadcast core depends on
// nothing here beyond the Resolver interface.
package resolver

import (
	"context"
	"database/sql"

	apperrors "broadcast-engine/internal/common/errors"
	"broadcast-engine/internal/models"
)

// Resolver resolves a target descriptor into a deduplicated recipient id
// set. Resolution is always against current directory state; two calls at
// the same state return the same set.
type Resolver interface {
	Resolve(ctx context.Context, descriptor string) ([]string, error)
}

// DirectoryResolver looks recipients up in the directory tables.
type DirectoryResolver struct {
	db *sql.DB
}

func NewDirectoryResolver(db *sql.DB) *DirectoryResolver {
	return &DirectoryResolver{db: db}
}

func (r *DirectoryResolver) Resolve(ctx context.Context, descriptor string) ([]string, error) {
	if descriptor == models.TargetAll {
		return r.collectIDs(ctx, `SELECT id FROM users WHERE active = TRUE`)
	}

	// An institution name takes precedence over a group label; directory
	// data keeps the two namespaces disjoint in practice.
	ids, err := r.collectIDs(ctx,
		`SELECT u.id
         FROM users u
         JOIN institutions i ON i.id = u.institution_id
         WHERE i.name = $1 AND u.active = TRUE`, descriptor)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		return ids, nil
	}

	if known, err := r.institutionExists(ctx, descriptor); err != nil {
		return nil, err
	} else if known {
		// A known institution with no active members resolves to the
		// empty set, which is a legal vacuous dispatch.
		return []string{}, nil
	}

	ids, err = r.collectIDs(ctx,
		`SELECT m.user_id
         FROM user_group_members m
         JOIN user_groups g ON g.id = m.group_id
         WHERE g.label = $1`, descriptor)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		return ids, nil
	}

	if known, err := r.groupExists(ctx, descriptor); err != nil {
		return nil, err
	} else if known {
		return []string{}, nil
	}

	return nil, apperrors.NewUnknownTargetError(descriptor)
}

func (r *DirectoryResolver) institutionExists(ctx context.Context, name string) (bool, error) {
	return r.exists(ctx, `SELECT 1 FROM institutions WHERE name = $1 LIMIT 1`, name)
}

func (r *DirectoryResolver) groupExists(ctx context.Context, label string) (bool, error) {
	return r.exists(ctx, `SELECT 1 FROM user_groups WHERE label = $1 LIMIT 1`, label)
}

func (r *DirectoryResolver) exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, apperrors.NewStoreUnavailableError(err)
	}
	return true, nil
}

func (r *DirectoryResolver) collectIDs(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewStoreUnavailableError(err)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreUnavailableError(err)
	}
	return ids, nil
}

var _ Resolver = (*DirectoryResolver)(nil)
