// Package feedback は完了したスワップに対する評価の記録と集計を提供する。
package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/skillswap/internal/metrics"
	"github.com/hitoshi/skillswap/internal/model"
	"github.com/hitoshi/skillswap/internal/repository"
	"github.com/hitoshi/skillswap/internal/security"
)

const (
	// DefaultRecentLimit はRecentForでlimit未指定時に返す件数。
	DefaultRecentLimit = 10
	// MaxRecentLimit はRecentForで返す最大件数。
	MaxRecentLimit = 100

	maxCommentRunes = 1000
)

// SummaryCache は評価集計のキャッシュ。
// キャッシュの失敗は集計結果の正しさに影響させず、ログのみ残す。
//
// 各ユーザーの集計には世代番号が付き、Invalidateのたびに進む。
// Storeは読み取り時点の世代が変わっていない場合のみ保存するため、
// 集計の読み取り中に投稿があっても古い集計が残らない。
type SummaryCache interface {
	Lookup(ctx context.Context, userIDs []string) (map[string]CacheEntry, error)
	Store(ctx context.Context, userID string, generation int64, summary model.RatingSummary) (bool, error)
	Invalidate(ctx context.Context, userID string) error
}

// CacheEntry はLookupの結果。Hitがfalseの場合もGenerationは有効。
type CacheEntry struct {
	Summary    model.RatingSummary
	Hit        bool
	Generation int64
}

// SubmitInput はフィードバック投稿の入力。
type SubmitInput struct {
	SwapID     string
	ReviewerID string
	Rating     int
	Comment    string
	Anonymous  bool
}

// Service はフィードバックのサービス層。
type Service struct {
	feedbackRepo repository.FeedbackRepository
	swapRepo     repository.SwapRepository
	userRepo     repository.UserRepository
	sanitizer    security.TextSanitizer
	cache        SummaryCache
	metrics      metrics.MetricsCollector
	recentLimit  int
	now          func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// cacheとcollectorはnilでもよい。
func NewService(
	feedbackRepo repository.FeedbackRepository,
	swapRepo repository.SwapRepository,
	userRepo repository.UserRepository,
	sanitizer security.TextSanitizer,
	cache SummaryCache,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		feedbackRepo: feedbackRepo,
		swapRepo:     swapRepo,
		userRepo:     userRepo,
		sanitizer:    sanitizer,
		cache:        cache,
		metrics:      collector,
		recentLimit:  DefaultRecentLimit,
		now:          time.Now,
	}
}

// WithRecentLimit はRecentForの既定件数を変更する。
func (s *Service) WithRecentLimit(limit int) *Service {
	if limit > 0 && limit <= MaxRecentLimit {
		s.recentLimit = limit
	}
	return s
}

// Submit はスワップに対するフィードバックを記録する。
// 検証順: スワップの存在、完了済みであること、投稿者が当事者であること、
// 評価値が1〜5であること、未投稿であること。
// 二重投稿は事前確認に加えてDBの一意制約でも拒否する。
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*model.Feedback, error) {
	swap, err := s.swapRepo.FindByID(ctx, in.SwapID)
	if err != nil {
		return nil, fmt.Errorf("スワップリクエストの取得に失敗しました: %w", err)
	}
	if swap == nil {
		return nil, model.NewSwapNotFoundError(in.SwapID)
	}
	if swap.Status != model.SwapStatusCompleted {
		return nil, model.NewSwapNotCompletedError(swap.Status)
	}
	if !swap.IsParticipant(in.ReviewerID) {
		return nil, model.NewForbiddenError("スワップの当事者のみフィードバックできます")
	}

	if in.Rating < model.MinRating || in.Rating > model.MaxRating {
		return nil, model.NewValidationError(fmt.Sprintf("評価は%dから%dの整数で指定してください", model.MinRating, model.MaxRating))
	}

	exists, err := s.feedbackRepo.ExistsBySwapAndReviewer(ctx, swap.ID, in.ReviewerID)
	if err != nil {
		return nil, fmt.Errorf("フィードバックの確認に失敗しました: %w", err)
	}
	if exists {
		return nil, model.NewDuplicateFeedbackError()
	}

	revieweeID, revieweeName := swap.CounterpartOf(in.ReviewerID)
	reviewerName := model.AnonymousReviewerName
	if !in.Anonymous {
		reviewerName = s.currentName(ctx, in.ReviewerID, swap)
	}
	revieweeName = s.currentNameOr(ctx, revieweeID, revieweeName)

	fb := &model.Feedback{
		ID:           uuid.New().String(),
		SwapID:       swap.ID,
		ReviewerID:   in.ReviewerID,
		ReviewerName: reviewerName,
		RevieweeID:   revieweeID,
		RevieweeName: revieweeName,
		Rating:       in.Rating,
		Comment:      s.sanitizer.Text(in.Comment, maxCommentRunes),
		Anonymous:    in.Anonymous,
		CreatedAt:    s.now(),
	}

	if err := s.feedbackRepo.Create(ctx, fb); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewDuplicateFeedbackError()
		}
		return nil, fmt.Errorf("フィードバックの保存に失敗しました: %w", err)
	}

	s.invalidate(ctx, revieweeID)
	s.metrics.RecordFeedbackSubmitted(fb.Rating)
	slog.Info("feedback submitted",
		slog.String("feedback_id", fb.ID),
		slog.String("swap_id", fb.SwapID),
		slog.String("reviewee_id", fb.RevieweeID),
		slog.Int("rating", fb.Rating),
		slog.Bool("anonymous", fb.Anonymous),
	)

	return fb, nil
}

// currentName は投稿時点の投稿者の表示名を返す。取得できない場合はスワップのスナップショットを使う。
func (s *Service) currentName(ctx context.Context, userID string, swap *model.SwapRequest) string {
	fallback := swap.RequesterName
	if swap.RoleOf(userID) == model.SwapRoleTarget {
		fallback = swap.TargetName
	}
	return s.currentNameOr(ctx, userID, fallback)
}

func (s *Service) currentNameOr(ctx context.Context, userID, fallback string) string {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		slog.Warn("表示名の取得に失敗したためスナップショットを使用します",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return fallback
	}
	if u == nil {
		return fallback
	}
	return u.Name
}

// AggregateFor は指定ユーザーが受け取った全評価の件数と平均を返す。
// 評価がない場合は件数0、平均0を返す。
func (s *Service) AggregateFor(ctx context.Context, userID string) (model.RatingSummary, error) {
	summaries, err := s.aggregate(ctx, []string{userID}, func(ctx context.Context, ids []string) (map[string]model.RatingSummary, error) {
		summary, err := s.feedbackRepo.SummaryByReviewee(ctx, ids[0])
		if err != nil {
			return nil, err
		}
		return map[string]model.RatingSummary{ids[0]: summary}, nil
	})
	if err != nil {
		return model.RatingSummary{}, err
	}
	return summaries[userID], nil
}

// AggregatesFor は複数ユーザーの評価集計をまとめて返す。評価のないユーザーはゼロ値になる。
// 単一ユーザーの集計と同じキャッシュを参照する。
func (s *Service) AggregatesFor(ctx context.Context, userIDs []string) (map[string]model.RatingSummary, error) {
	return s.aggregate(ctx, userIDs, s.feedbackRepo.SummariesByReviewees)
}

type summaryLoader func(ctx context.Context, userIDs []string) (map[string]model.RatingSummary, error)

// aggregate はキャッシュにない分だけloadで集計し、読み取り前の世代でキャッシュへ書き戻す。
func (s *Service) aggregate(ctx context.Context, userIDs []string, load summaryLoader) (map[string]model.RatingSummary, error) {
	result := make(map[string]model.RatingSummary, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	misses := userIDs
	var entries map[string]CacheEntry
	if s.cache != nil {
		var err error
		entries, err = s.cache.Lookup(ctx, userIDs)
		if err != nil {
			slog.Warn("評価集計キャッシュの取得に失敗しました",
				slog.Int("users", len(userIDs)),
				slog.String("error", err.Error()),
			)
			entries = nil
		}

		misses = make([]string, 0, len(userIDs))
		for _, id := range userIDs {
			e, ok := entries[id]
			s.metrics.RecordRatingCacheLookup(ok && e.Hit)
			if ok && e.Hit {
				result[id] = e.Summary
				continue
			}
			misses = append(misses, id)
		}
		if len(misses) == 0 {
			return result, nil
		}
	}

	fresh, err := load(ctx, misses)
	if err != nil {
		return nil, fmt.Errorf("評価の集計に失敗しました: %w", err)
	}

	for _, id := range misses {
		result[id] = fresh[id]
		// 世代を読めなかった場合は書き戻さない
		if e, ok := entries[id]; ok {
			s.store(ctx, id, e.Generation, fresh[id])
		}
	}
	return result, nil
}

func (s *Service) store(ctx context.Context, userID string, generation int64, summary model.RatingSummary) {
	stored, err := s.cache.Store(ctx, userID, generation, summary)
	if err != nil {
		slog.Warn("評価集計キャッシュの保存に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return
	}
	if !stored {
		slog.Debug("評価集計が読み取り中に更新されたためキャッシュしません",
			slog.String("user_id", userID),
		)
	}
}

// RecentFor は指定ユーザーが受け取ったフィードバックを新しい順に返す。
// limitが0以下の場合は既定件数、上限を超える場合はMaxRecentLimit件とする。
func (s *Service) RecentFor(ctx context.Context, userID string, limit int) ([]*model.Feedback, error) {
	switch {
	case limit <= 0:
		limit = s.recentLimit
	case limit > MaxRecentLimit:
		limit = MaxRecentLimit
	}

	items, err := s.feedbackRepo.ListRecentByReviewee(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("フィードバックの取得に失敗しました: %w", err)
	}
	return items, nil
}

// GivenBy は指定ユーザーが投稿したフィードバックを新しい順に返す。
func (s *Service) GivenBy(ctx context.Context, reviewerID string) ([]*model.Feedback, error) {
	items, err := s.feedbackRepo.ListByReviewer(ctx, reviewerID)
	if err != nil {
		return nil, fmt.Errorf("フィードバックの取得に失敗しました: %w", err)
	}
	return items, nil
}

// ListAll は全フィードバックを返す。管理者向けエクスポート用。
func (s *Service) ListAll(ctx context.Context) ([]*model.Feedback, error) {
	items, err := s.feedbackRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("フィードバックの取得に失敗しました: %w", err)
	}
	return items, nil
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		slog.Warn("評価集計キャッシュの破棄に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}
