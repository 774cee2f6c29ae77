// Package swap はスワップリクエストのライフサイクル管理を提供する。
//
// ステータスは pending → accepted → completed、または pending → rejected の
// 一方向にのみ進む。遷移の書き込みは現在のステータスを条件にした更新で行うため、
// 同じリクエストへの同時操作でも一方だけが成功する。
package swap

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/skillswap/internal/metrics"
	"github.com/hitoshi/skillswap/internal/model"
	"github.com/hitoshi/skillswap/internal/repository"
	"github.com/hitoshi/skillswap/internal/security"
)

// 自由記述の最大文字数。
const (
	maxSkillRunes   = 100
	maxMessageRunes = 1000
)

// CreateInput はスワップリクエスト作成の入力。スキルとメッセージは任意。
type CreateInput struct {
	RequesterID  string
	TargetID     string
	OfferedSkill string
	WantedSkill  string
	Message      string
}

// Caller はスワップを操作する呼び出し元を表す。
type Caller struct {
	UserID  string
	IsAdmin bool
}

// Service はスワップリクエストのサービス層。
type Service struct {
	swapRepo  repository.SwapRepository
	userRepo  repository.UserRepository
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// collectorがnilの場合はメトリクスを記録しない。
func NewService(
	swapRepo repository.SwapRepository,
	userRepo repository.UserRepository,
	sanitizer security.TextSanitizer,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		swapRepo:  swapRepo,
		userRepo:  userRepo,
		sanitizer: sanitizer,
		metrics:   collector,
		now:       time.Now,
	}
}

// Create はpending状態のスワップリクエストを作成する。
// 依頼者と相手の表示名は作成時点の値をスナップショットとして保存する。
// 相手が存在しない、非公開、BAN済みの場合はいずれも同じ検証エラーとし、
// 非公開ユーザーの存在を推測できないようにする。
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.SwapRequest, error) {
	if in.RequesterID == "" || in.TargetID == "" {
		return nil, model.NewValidationError("依頼者と相手のユーザーIDは必須です")
	}
	if in.RequesterID == in.TargetID {
		return nil, model.NewValidationError("自分自身にスワップをリクエストすることはできません")
	}

	requester, err := s.userRepo.FindByID(ctx, in.RequesterID)
	if err != nil {
		return nil, fmt.Errorf("依頼者の取得に失敗しました: %w", err)
	}
	if requester == nil {
		return nil, model.NewValidationError("依頼者が見つかりません")
	}
	if requester.IsBanned {
		return nil, model.NewForbiddenError("利用停止中のアカウントはスワップをリクエストできません")
	}

	target, err := s.userRepo.FindByID(ctx, in.TargetID)
	if err != nil {
		return nil, fmt.Errorf("相手ユーザーの取得に失敗しました: %w", err)
	}
	if target == nil || target.IsBanned || (!target.IsPublic && !requester.IsAdmin) {
		return nil, model.NewValidationError("リクエスト先のユーザーが見つかりません")
	}
	// IDの表記揺れ（大文字のUUIDなど）で同一ユーザーに解決される場合も自己スワップとする
	if requester.ID == target.ID {
		return nil, model.NewValidationError("自分自身にスワップをリクエストすることはできません")
	}

	now := s.now()
	swap := &model.SwapRequest{
		ID:            uuid.New().String(),
		RequesterID:   requester.ID,
		RequesterName: requester.Name,
		TargetID:      target.ID,
		TargetName:    target.Name,
		OfferedSkill:  s.sanitizer.Text(in.OfferedSkill, maxSkillRunes),
		WantedSkill:   s.sanitizer.Text(in.WantedSkill, maxSkillRunes),
		Message:       s.sanitizer.Text(in.Message, maxMessageRunes),
		Status:        model.SwapStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.swapRepo.Create(ctx, swap); err != nil {
		return nil, fmt.Errorf("スワップリクエストの作成に失敗しました: %w", err)
	}

	s.metrics.RecordSwapCreated()
	slog.Info("swap request created",
		slog.String("swap_id", swap.ID),
		slog.String("requester_id", swap.RequesterID),
		slog.String("target_id", swap.TargetID),
	)

	return swap, nil
}

// UpdateStatus はスワップリクエストのステータスを変更する。
// 不明なステータス値は検証エラー、存在しないIDはNotFound、
// 当事者以外や立場の合わない操作はForbidden、遷移表にない操作はInvalidTransitionを返す。
func (s *Service) UpdateStatus(ctx context.Context, callerID, swapID, status string) (*model.SwapRequest, error) {
	to, ok := model.ParseSwapStatus(status)
	if !ok {
		return nil, model.NewValidationError(fmt.Sprintf("不明なステータスです: %q", status))
	}

	current, err := s.swapRepo.FindByID(ctx, swapID)
	if err != nil {
		return nil, fmt.Errorf("スワップリクエストの取得に失敗しました: %w", err)
	}
	if current == nil {
		return nil, model.NewSwapNotFoundError(swapID)
	}

	if err := model.CheckTransition(current.Status, to, current.RoleOf(callerID)); err != nil {
		return nil, err
	}

	updated, err := s.swapRepo.UpdateStatus(ctx, swapID, current.Status, to, s.now())
	if err != nil {
		return nil, fmt.Errorf("ステータスの更新に失敗しました: %w", err)
	}
	if updated == nil {
		// 読み取り後に別の遷移が先に確定した。確定後の状態から見た遷移として報告する。
		latest, err := s.swapRepo.FindByID(ctx, swapID)
		if err != nil {
			return nil, fmt.Errorf("スワップリクエストの再取得に失敗しました: %w", err)
		}
		from := current.Status
		if latest != nil {
			from = latest.Status
		}
		return nil, model.NewInvalidTransitionError(from, to)
	}

	s.metrics.RecordSwapTransition(string(current.Status), string(to))
	slog.Info("swap status changed",
		slog.String("swap_id", swapID),
		slog.String("user_id", callerID),
		slog.String("from", string(current.Status)),
		slog.String("to", string(to)),
	)

	return updated, nil
}

// Get は指定スワップリクエストを返す。当事者と管理者以外にはNotFoundを返す。
func (s *Service) Get(ctx context.Context, caller Caller, swapID string) (*model.SwapRequest, error) {
	swap, err := s.swapRepo.FindByID(ctx, swapID)
	if err != nil {
		return nil, fmt.Errorf("スワップリクエストの取得に失敗しました: %w", err)
	}
	if swap == nil || (!caller.IsAdmin && !swap.IsParticipant(caller.UserID)) {
		return nil, model.NewSwapNotFoundError(swapID)
	}
	return swap, nil
}

// ListForUser は指定ユーザーが当事者である全スワップリクエストを作成日時の新しい順に返す。
func (s *Service) ListForUser(ctx context.Context, userID string) ([]*model.SwapRequest, error) {
	swaps, err := s.swapRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("スワップリクエスト一覧の取得に失敗しました: %w", err)
	}
	sort.SliceStable(swaps, func(i, j int) bool {
		return swaps[i].CreatedAt.After(swaps[j].CreatedAt)
	})
	return swaps, nil
}

// Stats は管理画面向けのステータス別件数。
type Stats struct {
	Total    int
	ByStatus map[model.SwapStatus]int
}

// Stats はステータス別の件数を返す。件数0のステータスも0として含める。
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.swapRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("スワップ件数の集計に失敗しました: %w", err)
	}

	stats := &Stats{ByStatus: make(map[model.SwapStatus]int, 4)}
	for _, st := range []model.SwapStatus{
		model.SwapStatusPending, model.SwapStatusAccepted,
		model.SwapStatusRejected, model.SwapStatusCompleted,
	} {
		stats.ByStatus[st] = counts[st]
		stats.Total += counts[st]
	}
	return stats, nil
}

// ListAll は全スワップリクエストを返す。管理者向けエクスポート用。
func (s *Service) ListAll(ctx context.Context) ([]*model.SwapRequest, error) {
	swaps, err := s.swapRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("スワップリクエスト一覧の取得に失敗しました: %w", err)
	}
	return swaps, nil
}
