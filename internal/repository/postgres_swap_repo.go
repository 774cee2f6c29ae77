package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/skillswap/internal/model"
)

// PostgresSwapRepo はPostgreSQLを使用したスワップリクエストリポジトリ。
type PostgresSwapRepo struct {
	db *sql.DB
}

// NewPostgresSwapRepo はPostgresSwapRepoを生成する。
func NewPostgresSwapRepo(db *sql.DB) *PostgresSwapRepo {
	return &PostgresSwapRepo{db: db}
}

const swapColumns = `id, requester_id, requester_name, target_id, target_name,
	offered_skill, wanted_skill, message, status, created_at, updated_at`

func scanSwap(row rowScanner) (*model.SwapRequest, error) {
	s := &model.SwapRequest{}
	err := row.Scan(
		&s.ID, &s.RequesterID, &s.RequesterName, &s.TargetID, &s.TargetName,
		&s.OfferedSkill, &s.WantedSkill, &s.Message, &s.Status, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create はスワップリクエストを作成する。
func (r *PostgresSwapRepo) Create(ctx context.Context, swap *model.SwapRequest) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO swap_requests (`+swapColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		swap.ID, swap.RequesterID, swap.RequesterName, swap.TargetID, swap.TargetName,
		swap.OfferedSkill, swap.WantedSkill, swap.Message, swap.Status, swap.CreatedAt, swap.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert swap request: %w", err)
	}
	return nil
}

// FindByID は指定IDのスワップリクエストを取得する。見つからない場合はnilを返す。
func (r *PostgresSwapRepo) FindByID(ctx context.Context, id string) (*model.SwapRequest, error) {
	if !isUUID(id) {
		return nil, nil
	}
	s, err := scanSwap(r.db.QueryRowContext(ctx,
		`SELECT `+swapColumns+` FROM swap_requests WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find swap request: %w", err)
	}
	return s, nil
}

// UpdateStatus は現在のステータスがfromである場合に限りtoへ更新する。
// 条件付きUPDATEにより、同時に別の遷移が成功していた場合は何も更新せずnilを返す。
func (r *PostgresSwapRepo) UpdateStatus(ctx context.Context, id string, from, to model.SwapStatus, updatedAt time.Time) (*model.SwapRequest, error) {
	if !isUUID(id) {
		return nil, nil
	}
	s, err := scanSwap(r.db.QueryRowContext(ctx,
		`UPDATE swap_requests
		 SET status = $3, updated_at = $4
		 WHERE id = $1 AND status = $2
		 RETURNING `+swapColumns,
		id, from, to, updatedAt,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update swap status: %w", err)
	}
	return s, nil
}

// ListByUserID は指定ユーザーが当事者であるスワップリクエストをcreated_at降順で返す。
func (r *PostgresSwapRepo) ListByUserID(ctx context.Context, userID string) ([]*model.SwapRequest, error) {
	if !isUUID(userID) {
		return []*model.SwapRequest{}, nil
	}
	return r.list(ctx,
		`SELECT `+swapColumns+` FROM swap_requests
		 WHERE requester_id = $1 OR target_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
}

// ListAll は全スワップリクエストをcreated_at降順で返す。
func (r *PostgresSwapRepo) ListAll(ctx context.Context) ([]*model.SwapRequest, error) {
	return r.list(ctx, `SELECT `+swapColumns+` FROM swap_requests ORDER BY created_at DESC, id DESC`)
}

// CountByStatus はステータスごとの件数を返す。
func (r *PostgresSwapRepo) CountByStatus(ctx context.Context) (map[model.SwapStatus]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, count(*) FROM swap_requests GROUP BY status`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count swap requests: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.SwapStatus]int)
	for rows.Next() {
		var status model.SwapStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan swap count: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate swap counts: %w", err)
	}
	return counts, nil
}

func (r *PostgresSwapRepo) list(ctx context.Context, query string, args ...any) ([]*model.SwapRequest, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list swap requests: %w", err)
	}
	defer rows.Close()

	var swaps []*model.SwapRequest
	for rows.Next() {
		s, err := scanSwap(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan swap request: %w", err)
		}
		swaps = append(swaps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate swap requests: %w", err)
	}
	return swaps, nil
}

// compile-time interface check
var _ SwapRepository = (*PostgresSwapRepo)(nil)
