// Package groups provides the PostgreSQL-backed repository for group records.
//
// The member set lives in a JSONB array column. Membership mutations are
// single-statement jsonb expressions, so concurrent add/remove calls never
// lose each other's writes the way a read-modify-write cycle would.
package groups

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/parleyhq/parley/internal/common"
	"github.com/parleyhq/parley/internal/dbx"
	"github.com/parleyhq/parley/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, group *models.Group) (*models.Group, error) {
	members, err := json.Marshal(group.Members)
	if err != nil {
		return nil, fmt.Errorf("members encode error: %w", err)
	}

	query := `
		INSERT INTO groups (id, name, creator_id, members)
		VALUES ($1, $2, $3, $4::jsonb)
		RETURNING created_at
	`
	err = r.db.QueryRowContext(ctx, query,
		group.ID, group.Name, group.CreatorID, members).Scan(&group.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return group, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Group, error) {
	query := `SELECT id, name, creator_id, members, created_at FROM groups WHERE id = $1`

	group := &models.Group{}
	var members []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&group.ID, &group.Name, &group.CreatorID, &members, &group.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if err := json.Unmarshal(members, &group.Members); err != nil {
		return nil, fmt.Errorf("members decode error: %w", err)
	}

	return group, nil
}

func (r *PostgresRepository) List(ctx context.Context, memberID string) ([]*models.Group, error) {
	query := `SELECT id, name, creator_id, members, created_at FROM groups ORDER BY created_at, id`
	args := []any{}
	if memberID != "" {
		// jsonb ? element: membership test against the array.
		query = `SELECT id, name, creator_id, members, created_at FROM groups WHERE members ? $1 ORDER BY created_at, id`
		args = append(args, memberID)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Group
	for rows.Next() {
		var item models.Group
		var members []byte
		if err := rows.Scan(&item.ID, &item.Name, &item.CreatorID, &members, &item.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(members, &item.Members); err != nil {
			return nil, fmt.Errorf("members decode error: %w", err)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) AddMember(ctx context.Context, groupID, memberID string) error {
	query := `
		UPDATE groups
		SET members = CASE WHEN members ? $2 THEN members ELSE members || to_jsonb($2::text) END
		WHERE id = $1
	`
	return r.execOnGroup(ctx, query, groupID, memberID)
}

func (r *PostgresRepository) RemoveMember(ctx context.Context, groupID, memberID string) error {
	query := `UPDATE groups SET members = members - $2 WHERE id = $1`
	return r.execOnGroup(ctx, query, groupID, memberID)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// execOnGroup runs a membership mutation and translates "no row touched"
// into ErrNotFound. The mutations themselves are written to affect the row
// whether or not the member set changes, so zero rows always means a missing
// group.
func (r *PostgresRepository) execOnGroup(ctx context.Context, query, groupID, memberID string) error {
	res, err := r.db.ExecContext(ctx, query, groupID, memberID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
