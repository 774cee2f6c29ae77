// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/skillswap/internal/model"
)

// ErrDuplicate は一意制約違反で書き込みが拒否されたことを表す。
var ErrDuplicate = errors.New("repository: duplicate record")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する（大文字小文字を区別しない）。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。メールアドレスが重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdateProfile は本人が編集可能なプロフィール項目を更新する。
	// メールアドレスが他ユーザーと重複する場合はErrDuplicateを返す。
	UpdateProfile(ctx context.Context, user *model.User) error

	// UpdatePhotoURL はプロフィール画像のURLを更新する。
	UpdatePhotoURL(ctx context.Context, userID, photoURL string, updatedAt time.Time) error

	// SetBanned はBANフラグを更新する。対象が存在しない場合はfalseを返す。
	SetBanned(ctx context.Context, userID string, banned bool, updatedAt time.Time) (bool, error)

	// ListPublic は公開ディレクトリに掲載するユーザーを作成順で返す。
	// is_public かつ BANされておらず、提供スキルか希望スキルが1件以上あるユーザーに限る。
	ListPublic(ctx context.Context) ([]*model.User, error)

	// ListAll は全ユーザーを作成順で返す。管理画面とエクスポート用。
	ListAll(ctx context.Context) ([]*model.User, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired はbefore以前に期限切れになったセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// SwapRepository はスワップリクエストの永続化インターフェース。
type SwapRepository interface {
	// Create はスワップリクエストを作成する。
	Create(ctx context.Context, swap *model.SwapRequest) error

	// FindByID は指定IDのスワップリクエストを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.SwapRequest, error)

	// UpdateStatus は現在のステータスがfromである場合に限りtoへ更新する。
	// 更新できた場合は更新後のレコードを返し、ステータスが既に変わっていた場合はnilを返す。
	UpdateStatus(ctx context.Context, id string, from, to model.SwapStatus, updatedAt time.Time) (*model.SwapRequest, error)

	// ListByUserID は指定ユーザーが依頼者または相手であるスワップリクエストを
	// created_at降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.SwapRequest, error)

	// CountByStatus はステータスごとの件数を返す。件数0のステータスはキーに含まれない。
	CountByStatus(ctx context.Context) (map[model.SwapStatus]int, error)

	// ListAll は全スワップリクエストをcreated_at降順で返す。エクスポート用。
	ListAll(ctx context.Context) ([]*model.SwapRequest, error)
}

// FeedbackRepository はフィードバックの永続化インターフェース。
type FeedbackRepository interface {
	// Create はフィードバックを作成する。
	// 同じ (swap_id, reviewer_id) が既に存在する場合はErrDuplicateを返す。
	Create(ctx context.Context, feedback *model.Feedback) error

	// ExistsBySwapAndReviewer は指定スワップに対する投稿者のフィードバックが存在するかを返す。
	ExistsBySwapAndReviewer(ctx context.Context, swapID, reviewerID string) (bool, error)

	// SummaryByReviewee は指定ユーザーが受け取った評価の件数と平均を返す。
	SummaryByReviewee(ctx context.Context, revieweeID string) (model.RatingSummary, error)

	// SummariesByReviewees は複数ユーザーの評価集計をまとめて返す。
	// 評価のないユーザーはキーに含まれない。
	SummariesByReviewees(ctx context.Context, revieweeIDs []string) (map[string]model.RatingSummary, error)

	// ListRecentByReviewee は指定ユーザーが受け取ったフィードバックを新しい順にlimit件返す。
	ListRecentByReviewee(ctx context.Context, revieweeID string, limit int) ([]*model.Feedback, error)

	// ListByReviewer は指定ユーザーが投稿したフィードバックを新しい順に返す。
	ListByReviewer(ctx context.Context, reviewerID string) ([]*model.Feedback, error)

	// ListAll は全フィードバックを新しい順に返す。エクスポート用。
	ListAll(ctx context.Context) ([]*model.Feedback, error)
}
