package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pactify/backend/internal/models"
)

type GoalRepo struct {
	pool *pgxpool.Pool
}

func NewGoalRepo(pool *pgxpool.Pool) *GoalRepo {
	return &GoalRepo{pool: pool}
}

const goalColumns = `
	id, owner_id, title, description, deadline, status,
	stake_wei, stake_tx_hash, forfeit_address, created_at, updated_at`

func (r *GoalRepo) Create(ctx context.Context, g *models.Goal) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO goals (owner_id, title, description, deadline, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, g.OwnerID, g.Title, g.Description, g.Deadline, g.Status,
	).Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
}

func (r *GoalRepo) GetForOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.Goal, error) {
	var g models.Goal
	err := r.pool.QueryRow(ctx, `
		SELECT `+goalColumns+` FROM goals WHERE id = $1 AND owner_id = $2
	`, id, ownerID).Scan(
		&g.ID, &g.OwnerID, &g.Title, &g.Description, &g.Deadline, &g.Status,
		&g.StakeWei, &g.StakeTxHash, &g.ForfeitAddress, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *GoalRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Goal, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+goalColumns+`
		FROM goals WHERE owner_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var goals []models.Goal
	for rows.Next() {
		var g models.Goal
		if err := rows.Scan(
			&g.ID, &g.OwnerID, &g.Title, &g.Description, &g.Deadline, &g.Status,
			&g.StakeWei, &g.StakeTxHash, &g.ForfeitAddress, &g.CreatedAt, &g.UpdatedAt,
		); err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

// MarkStaked records the confirmed stake lock. Guarded on the stake not
// being set yet, so a duplicate confirmation is a no-op.
func (r *GoalRepo) MarkStaked(ctx context.Context, id, ownerID uuid.UUID, stakeWei, txHash, forfeitAddress string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE goals SET stake_wei = $1, stake_tx_hash = $2, forfeit_address = $3, updated_at = now()
		WHERE id = $4 AND owner_id = $5 AND status = 'active' AND stake_tx_hash IS NULL
	`, stakeWei, txHash, forfeitAddress, id, ownerID)
	return tag.RowsAffected() > 0, err
}

// Resolve commits active -> completed|failed.
func (r *GoalRepo) Resolve(ctx context.Context, id, ownerID uuid.UUID, outcome string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE goals SET status = $1, updated_at = now()
		WHERE id = $2 AND owner_id = $3 AND status = 'active'
	`, outcome, id, ownerID)
	return tag.RowsAffected() > 0, err
}

// FailOverdue fails every active goal past its deadline; returns the ids
// so the worker can log and publish them.
func (r *GoalRepo) FailOverdue(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE goals SET status = 'failed', updated_at = now()
		WHERE status = 'active' AND deadline IS NOT NULL AND deadline < now()
		RETURNING id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *GoalRepo) CountTerminal(ctx context.Context, ownerID uuid.UUID) (completed, failed int, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed')
		FROM goals WHERE owner_id = $1
	`, ownerID).Scan(&completed, &failed)
	return completed, failed, err
}
