package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pactify/backend/internal/models"
)

// PactRepo owns the pacts table. Every mutating method expresses its
// precondition (current status, current actor) inside a single UPDATE, so
// two concurrent commits of the same logical transition collapse to one
// effective write. Zero rows affected means the precondition no longer
// holds; callers decide whether that is "already processed" or a denial.
type PactRepo struct {
	pool *pgxpool.Pool
}

func NewPactRepo(pool *pgxpool.Pool) *PactRepo {
	return &PactRepo{pool: pool}
}

const pactColumns = `
	id, creator_id, partner_id, title, description, stake_wei, onchain_id,
	status, rejection_count, acceptance_tx_hash,
	submission_file_path, submission_file_name, submission_submitted_at, submission_viewed_by,
	created_at, updated_at`

func scanPact(row pgx.Row) (*models.Pact, error) {
	var p models.Pact
	var subPath, subName *string
	var subAt *time.Time
	var subViewer *uuid.UUID
	err := row.Scan(
		&p.ID, &p.CreatorID, &p.PartnerID, &p.Title, &p.Description, &p.StakeWei, &p.OnchainID,
		&p.Status, &p.RejectionCount, &p.AcceptanceTxHash,
		&subPath, &subName, &subAt, &subViewer,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if subPath != nil && subName != nil && subAt != nil {
		p.Submission = &models.PactSubmission{
			FilePath:    *subPath,
			FileName:    *subName,
			SubmittedAt: *subAt,
			ViewedBy:    subViewer,
		}
	}
	return &p, nil
}

// Create persists a new pact. The id and its on-chain projection are
// assigned by the caller so both are written in one statement.
func (r *PactRepo) Create(ctx context.Context, p *models.Pact) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO pacts (id, creator_id, partner_id, title, description, stake_wei, onchain_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, p.ID, p.CreatorID, p.PartnerID, p.Title, p.Description, p.StakeWei, p.OnchainID, p.Status,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

// GetForUser returns the pact only if userID is a member. Non-members get
// pgx.ErrNoRows, indistinguishable from a missing record.
func (r *PactRepo) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Pact, error) {
	return scanPact(r.pool.QueryRow(ctx, `
		SELECT `+pactColumns+`
		FROM pacts WHERE id = $1 AND (creator_id = $2 OR partner_id = $2)
	`, id, userID))
}

// Get is membership-unscoped; reserved for system actors (indexer, worker).
func (r *PactRepo) Get(ctx context.Context, id uuid.UUID) (*models.Pact, error) {
	return scanPact(r.pool.QueryRow(ctx, `
		SELECT `+pactColumns+` FROM pacts WHERE id = $1
	`, id))
}

func (r *PactRepo) GetByOnchainID(ctx context.Context, onchainID string) (*models.Pact, error) {
	return scanPact(r.pool.QueryRow(ctx, `
		SELECT `+pactColumns+` FROM pacts WHERE onchain_id = $1
	`, onchainID))
}

type PactFilter struct {
	UserID uuid.UUID
	Role   string // "creator", "partner", or "" for both
	Status *string
	Limit  int
	Offset int
}

func (r *PactRepo) List(ctx context.Context, f PactFilter) ([]models.Pact, error) {
	query := `SELECT ` + pactColumns + ` FROM pacts`
	args := []any{f.UserID}

	switch f.Role {
	case "creator":
		query += ` WHERE creator_id = $1`
	case "partner":
		query += ` WHERE partner_id = $1`
	default:
		query += ` WHERE (creator_id = $1 OR partner_id = $1)`
	}

	if f.Status != nil {
		args = append(args, *f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	args = append(args, limit, f.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pacts []models.Pact
	for rows.Next() {
		p, err := scanPact(rows)
		if err != nil {
			return nil, err
		}
		pacts = append(pacts, *p)
	}
	return pacts, rows.Err()
}

// MarkAccepted commits pending -> active with the verified acceptance tx
// hash. The status guard makes a duplicate commit (retry, second device) a
// no-op instead of a double write.
func (r *PactRepo) MarkAccepted(ctx context.Context, id, partnerID uuid.UUID, txHash string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE pacts SET status = 'active', acceptance_tx_hash = $1, updated_at = now()
		WHERE id = $2 AND partner_id = $3 AND status = 'pending'
	`, txHash, id, partnerID)
	return tag.RowsAffected() > 0, err
}

func (r *PactRepo) MarkRejected(ctx context.Context, id, partnerID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE pacts SET status = 'rejected', updated_at = now()
		WHERE id = $1 AND partner_id = $2 AND status = 'pending'
	`, id, partnerID)
	return tag.RowsAffected() > 0, err
}

func (r *PactRepo) MarkRejectionSeen(ctx context.Context, id, creatorID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE pacts SET status = 'rejected_seen', updated_at = now()
		WHERE id = $1 AND creator_id = $2 AND status = 'rejected'
	`, id, creatorID)
	return tag.RowsAffected() > 0, err
}

// SetSubmission records the partner's uploaded work. Allowed while the
// pact is active; re-upload before signalling replaces the pointer but
// never a viewed submission.
func (r *PactRepo) SetSubmission(ctx context.Context, id, partnerID uuid.UUID, filePath, fileName string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE pacts SET
			submission_file_path = $1,
			submission_file_name = $2,
			submission_submitted_at = now(),
			updated_at = now()
		WHERE id = $3 AND partner_id = $4 AND status = 'active' AND submission_viewed_by IS NULL
	`, filePath, fileName, id, partnerID)
	return tag.RowsAffected() > 0, err
}

// MarkWorkSubmitted commits active -> pending_confirmation once the
// signalCompletion leg is confirmed. Requires an attached submission.
func (r *PactRepo) MarkWorkSubmitted(ctx context.Context, id, partnerID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE pacts SET status = 'pending_confirmation', updated_at = now()
		WHERE id = $1 AND partner_id = $2 AND status = 'active'
		  AND submission_file_path IS NOT NULL
	`, id, partnerID)
	return tag.RowsAffected() > 0, err
}

func (r *PactRepo) MarkCompleted(ctx context.Context, id, creatorID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE pacts SET status = 'completed', updated_at = now()
		WHERE id = $1 AND creator_id = $2 AND status = 'pending_confirmation'
	`, id, creatorID)
	return tag.RowsAffected() > 0, err
}

// ApplyRevision increments the rejection counter and derives the target
// status from the new count in the same statement, keeping the counter
// monotonic under concurrent attempts. pgx.ErrNoRows means the
// precondition did not hold.
func (r *PactRepo) ApplyRevision(ctx context.Context, id, creatorID uuid.UUID) (count int, status string, err error) {
	err = r.pool.QueryRow(ctx, `
		UPDATE pacts SET
			rejection_count = rejection_count + 1,
			status = CASE WHEN rejection_count + 1 >= $1 THEN 'failed' ELSE 'active' END,
			updated_at = now()
		WHERE id = $2 AND creator_id = $3 AND status = 'pending_confirmation'
		RETURNING rejection_count, status
	`, models.MaxRejections, id, creatorID).Scan(&count, &status)
	return count, status, err
}

// ClaimSubmissionView sets viewed_by exactly once (first-view-wins). A
// second attempt matches no row regardless of who asks.
func (r *PactRepo) ClaimSubmissionView(ctx context.Context, id, creatorID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE pacts SET submission_viewed_by = $1, updated_at = now()
		WHERE id = $2 AND creator_id = $1
		  AND submission_file_path IS NOT NULL
		  AND submission_viewed_by IS NULL
	`, creatorID, id)
	return tag.RowsAffected() > 0, err
}

// --- divergence repair (system actor, no party guard) ---

// RepairAccepted mirrors a confirmed acceptance discovered from the event
// log rather than a client request.
func (r *PactRepo) RepairAccepted(ctx context.Context, id uuid.UUID, txHash string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE pacts SET status = 'active', acceptance_tx_hash = $1, updated_at = now()
		WHERE id = $2 AND status = 'pending'
	`, txHash, id)
	return tag.RowsAffected() > 0, err
}

// RepairWorkSubmitted mirrors a confirmed signalCompletion. The pact
// legitimately re-enters pending_confirmation after a revision round, so
// callers must gate this on the current on-chain record rather than the
// off-chain status alone (a stale log would otherwise re-fire here).
func (r *PactRepo) RepairWorkSubmitted(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE pacts SET status = 'pending_confirmation', updated_at = now()
		WHERE id = $1 AND status = 'active'
	`, id)
	return tag.RowsAffected() > 0, err
}

// RepairRevision replays a revision observed on-chain. count is the
// contract's absolute counter, so a log from a round the ledger already
// passed matches no row; the counter only ever catches up, never double
// counts. An empty status keeps the current one; the caller derives the
// target from the on-chain record.
func (r *PactRepo) RepairRevision(ctx context.Context, id uuid.UUID, count int, status string) (bool, error) {
	switch status {
	case "", models.PactStatusActive, models.PactStatusFailed:
	default:
		return false, fmt.Errorf("invalid revision target status %q", status)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE pacts SET
			rejection_count = $2,
			status = COALESCE(NULLIF($3, ''), status),
			updated_at = now()
		WHERE id = $1 AND rejection_count < $2
		  AND status IN ('pending', 'active', 'pending_confirmation')
	`, id, count, status)
	return tag.RowsAffected() > 0, err
}

// RepairResolved forces a terminal outcome observed on-chain. Guarded so a
// record already terminal off-chain is untouched.
func (r *PactRepo) RepairResolved(ctx context.Context, id uuid.UUID, outcome string) (bool, error) {
	if outcome != models.PactStatusCompleted && outcome != models.PactStatusFailed {
		return false, fmt.Errorf("invalid resolved outcome %q", outcome)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE pacts SET status = $1, updated_at = now()
		WHERE id = $2 AND status IN ('pending', 'active', 'pending_confirmation')
	`, outcome, id)
	return tag.RowsAffected() > 0, err
}

// ListStale returns non-terminal pacts untouched since the cutoff, the
// candidates for a reconciliation sweep.
func (r *PactRepo) ListStale(ctx context.Context, cutoffSeconds int, limit int) ([]models.Pact, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+pactColumns+`
		FROM pacts
		WHERE status IN ('pending', 'active', 'pending_confirmation')
		  AND updated_at < now() - ($1 || ' seconds')::interval
		ORDER BY updated_at ASC
		LIMIT $2
	`, fmt.Sprintf("%d", cutoffSeconds), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pacts []models.Pact
	for rows.Next() {
		p, err := scanPact(rows)
		if err != nil {
			return nil, err
		}
		pacts = append(pacts, *p)
	}
	return pacts, rows.Err()
}

// CountTerminal tallies a user's resolved pacts for the reliability score.
func (r *PactRepo) CountTerminal(ctx context.Context, userID uuid.UUID) (completed, failed int, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed')
		FROM pacts
		WHERE creator_id = $1 OR partner_id = $1
	`, userID).Scan(&completed, &failed)
	return completed, failed, err
}
