package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresRepo reads the users and teams tables.
// Schema lives in internal/database/migrations.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const selectUserColumns = `id, email, COALESCE(name, ''), COALESCE(role, 'agent'), COALESCE(team_id, ''), created_at`

func (r *PostgresRepo) GetUser(ctx context.Context, id string) (User, error) {
	q := `SELECT ` + selectUserColumns + ` FROM users WHERE id = $1`
	var u User
	err := r.db.QueryRowContext(ctx, q, id).Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.TeamID, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("identity: get user %s: %w", id, err)
	}
	return u, nil
}

func (r *PostgresRepo) ListUsers(ctx context.Context) ([]User, error) {
	q := `SELECT ` + selectUserColumns + ` FROM users ORDER BY email`
	return r.queryUsers(ctx, q)
}

func (r *PostgresRepo) ListTeamUsers(ctx context.Context, teamID string) ([]User, error) {
	q := `SELECT ` + selectUserColumns + ` FROM users WHERE team_id = $1 ORDER BY email`
	return r.queryUsers(ctx, q, teamID)
}

func (r *PostgresRepo) queryUsers(ctx context.Context, q string, args ...any) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("identity: list users: %w", err)
	}
	defer rows.Close()

	out := make([]User, 0)
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.TeamID, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("identity: scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) UpdateUserTeam(ctx context.Context, userID, teamID string) error {
	const q = `UPDATE users SET team_id = NULLIF($2, '') WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, userID, teamID)
	if err != nil {
		return fmt.Errorf("identity: update user team: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) GetTeam(ctx context.Context, id string) (Team, error) {
	const q = `SELECT id, name, COALESCE(phone_number, ''), created_at FROM teams WHERE id = $1`
	var t Team
	err := r.db.QueryRowContext(ctx, q, id).Scan(&t.ID, &t.Name, &t.PhoneNumber, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Team{}, ErrNotFound
		}
		return Team{}, fmt.Errorf("identity: get team %s: %w", id, err)
	}
	return t, nil
}

func (r *PostgresRepo) GetTeamByPhone(ctx context.Context, phoneNumber string) (Team, error) {
	const q = `SELECT id, name, COALESCE(phone_number, ''), created_at FROM teams WHERE phone_number = $1`
	var t Team
	err := r.db.QueryRowContext(ctx, q, phoneNumber).Scan(&t.ID, &t.Name, &t.PhoneNumber, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Team{}, ErrNotFound
		}
		return Team{}, fmt.Errorf("identity: get team by phone: %w", err)
	}
	return t, nil
}
