// Package members provides the PostgreSQL-backed repository for member
// records.
package members

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/parleyhq/parley/internal/common"
	"github.com/parleyhq/parley/internal/dbx"
	"github.com/parleyhq/parley/internal/server/models"
)

// PostgresRepository implements member storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// uniqueViolation is the PostgreSQL SQLSTATE for duplicate-key errors.
const uniqueViolation = "23505"

// Create inserts a member. A duplicate id returns common.ErrAlreadyExists
// and leaves the existing row untouched.
func (r *PostgresRepository) Create(ctx context.Context, member *models.Member) (*models.Member, error) {
	query := `
		INSERT INTO members (id, display_name, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		member.ID, member.DisplayName, member.PasswordHash, member.Role).Scan(&member.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return member, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Member, error) {
	query := `
		SELECT id, display_name, password_hash, role,
		       COALESCE(last_active, 'epoch'::timestamptz), created_at
		FROM members
		WHERE id = $1
	`
	member := &models.Member{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&member.ID, &member.DisplayName, &member.PasswordHash, &member.Role,
		&member.LastActive, &member.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return member, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Member, error) {
	query := `
		SELECT id, display_name, role,
		       COALESCE(last_active, 'epoch'::timestamptz), created_at
		FROM members
		ORDER BY display_name, id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Member
	for rows.Next() {
		var item models.Member
		if err := rows.Scan(&item.ID, &item.DisplayName, &item.Role, &item.LastActive, &item.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// TouchLastActive records a presence heartbeat for the member.
func (r *PostgresRepository) TouchLastActive(ctx context.Context, id string) error {
	query := `UPDATE members SET last_active = now() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
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

func (r *PostgresRepository) GetWorkSchedule(ctx context.Context, id string) ([]byte, error) {
	query := `SELECT COALESCE(work_schedule, 'null'::jsonb) FROM members WHERE id = $1`
	var schedule []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(&schedule)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return schedule, nil
}

func (r *PostgresRepository) SetWorkSchedule(ctx context.Context, id string, schedule []byte) error {
	query := `UPDATE members SET work_schedule = $2::jsonb WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, schedule)
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
