package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pactify/backend/internal/models"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, handle, display_name, created_at, last_active_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Handle, &u.DisplayName, &u.CreatedAt, &u.LastActiveAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpsertByWallet finds or creates the user owning a verified address.
// Login is wallet-first: the address is identity.
func (r *UserRepo) UpsertByWallet(ctx context.Context, address string) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `
		SELECT u.id, u.handle, u.display_name, u.created_at, u.last_active_at
		FROM users u
		JOIN user_wallets w ON w.user_id = u.id
		WHERE lower(w.address) = lower($1) AND w.is_active = true
	`, address).Scan(&u.ID, &u.Handle, &u.DisplayName, &u.CreatedAt, &u.LastActiveAt)
	if err == nil {
		return &u, nil
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO users DEFAULT VALUES
		RETURNING id, handle, display_name, created_at, last_active_at
	`).Scan(&u.ID, &u.Handle, &u.DisplayName, &u.CreatedAt, &u.LastActiveAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) Touch(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_active_at = now() WHERE id = $1`, id)
	return err
}

func (r *UserRepo) UpdateProfile(ctx context.Context, id uuid.UUID, handle, displayName *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET
			handle = COALESCE($1, handle),
			display_name = COALESCE($2, display_name)
		WHERE id = $3
	`, handle, displayName, id)
	return err
}
