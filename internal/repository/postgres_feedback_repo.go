package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/skillswap/internal/model"
)

// PostgresFeedbackRepo はPostgreSQLを使用したフィードバックリポジトリ。
type PostgresFeedbackRepo struct {
	db *sql.DB
}

// NewPostgresFeedbackRepo はPostgresFeedbackRepoを生成する。
func NewPostgresFeedbackRepo(db *sql.DB) *PostgresFeedbackRepo {
	return &PostgresFeedbackRepo{db: db}
}

const feedbackColumns = `id, swap_id, reviewer_id, reviewer_name, reviewee_id, reviewee_name,
	rating, comment, anonymous, created_at`

func scanFeedback(row rowScanner) (*model.Feedback, error) {
	f := &model.Feedback{}
	err := row.Scan(
		&f.ID, &f.SwapID, &f.ReviewerID, &f.ReviewerName, &f.RevieweeID, &f.RevieweeName,
		&f.Rating, &f.Comment, &f.Anonymous, &f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Create はフィードバックを作成する。
// uq_feedback_swap_reviewer制約に違反した場合はErrDuplicateを返す。
func (r *PostgresFeedbackRepo) Create(ctx context.Context, f *model.Feedback) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO feedback (`+feedbackColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		f.ID, f.SwapID, f.ReviewerID, f.ReviewerName, f.RevieweeID, f.RevieweeName,
		f.Rating, f.Comment, f.Anonymous, f.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	return nil
}

// ExistsBySwapAndReviewer は指定スワップに対する投稿者のフィードバックが存在するかを返す。
func (r *PostgresFeedbackRepo) ExistsBySwapAndReviewer(ctx context.Context, swapID, reviewerID string) (bool, error) {
	if !isUUID(swapID) || !isUUID(reviewerID) {
		return false, nil
	}
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM feedback WHERE swap_id = $1 AND reviewer_id = $2)`,
		swapID, reviewerID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check feedback existence: %w", err)
	}
	return exists, nil
}

// SummaryByReviewee は指定ユーザーが受け取った評価の件数と平均を返す。
// 評価がない場合はAVGがNULLになるためCOALESCEで0にする。
func (r *PostgresFeedbackRepo) SummaryByReviewee(ctx context.Context, revieweeID string) (model.RatingSummary, error) {
	if !isUUID(revieweeID) {
		return model.RatingSummary{}, nil
	}
	var summary model.RatingSummary
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*), COALESCE(avg(rating), 0)::float8 FROM feedback WHERE reviewee_id = $1`,
		revieweeID,
	).Scan(&summary.Count, &summary.Mean)
	if err != nil {
		return model.RatingSummary{}, fmt.Errorf("failed to aggregate feedback: %w", err)
	}
	return summary, nil
}

// SummariesByReviewees は複数ユーザーの評価集計をまとめて返す。
func (r *PostgresFeedbackRepo) SummariesByReviewees(ctx context.Context, revieweeIDs []string) (map[string]model.RatingSummary, error) {
	summaries := make(map[string]model.RatingSummary, len(revieweeIDs))
	ids := make([]string, 0, len(revieweeIDs))
	for _, id := range revieweeIDs {
		if isUUID(id) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return summaries, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT reviewee_id, count(*), avg(rating)::float8
		 FROM feedback
		 WHERE reviewee_id = ANY($1::uuid[])
		 GROUP BY reviewee_id`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate feedback: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var s model.RatingSummary
		if err := rows.Scan(&id, &s.Count, &s.Mean); err != nil {
			return nil, fmt.Errorf("failed to scan feedback summary: %w", err)
		}
		summaries[id] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feedback summaries: %w", err)
	}
	return summaries, nil
}

// ListRecentByReviewee は指定ユーザーが受け取ったフィードバックを新しい順にlimit件返す。
func (r *PostgresFeedbackRepo) ListRecentByReviewee(ctx context.Context, revieweeID string, limit int) ([]*model.Feedback, error) {
	if !isUUID(revieweeID) {
		return []*model.Feedback{}, nil
	}
	return r.list(ctx,
		`SELECT `+feedbackColumns+` FROM feedback
		 WHERE reviewee_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		revieweeID, limit,
	)
}

// ListByReviewer は指定ユーザーが投稿したフィードバックを新しい順に返す。
func (r *PostgresFeedbackRepo) ListByReviewer(ctx context.Context, reviewerID string) ([]*model.Feedback, error) {
	if !isUUID(reviewerID) {
		return []*model.Feedback{}, nil
	}
	return r.list(ctx,
		`SELECT `+feedbackColumns+` FROM feedback
		 WHERE reviewer_id = $1
		 ORDER BY created_at DESC, id DESC`,
		reviewerID,
	)
}

// ListAll は全フィードバックを新しい順に返す。
func (r *PostgresFeedbackRepo) ListAll(ctx context.Context) ([]*model.Feedback, error) {
	return r.list(ctx, `SELECT `+feedbackColumns+` FROM feedback ORDER BY created_at DESC, id DESC`)
}

func (r *PostgresFeedbackRepo) list(ctx context.Context, query string, args ...any) ([]*model.Feedback, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()

	var items []*model.Feedback
	for rows.Next() {
		f, err := scanFeedback(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		items = append(items, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feedback: %w", err)
	}
	return items, nil
}

// compile-time interface check
var _ FeedbackRepository = (*PostgresFeedbackRepo)(nil)
