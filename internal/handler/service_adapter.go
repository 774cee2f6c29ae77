package handler

import (
	"context"

	"github.com/hitoshi/skillswap/internal/feedback"
	"github.com/hitoshi/skillswap/internal/model"
	"github.com/hitoshi/skillswap/internal/swap"
	"github.com/hitoshi/skillswap/internal/user"
	"github.com/hitoshi/skillswap/internal/visibility"
)

// adminUserSource は管理機能が利用するユーザーサービスの操作。
type adminUserSource interface {
	AdminList(ctx context.Context, admin visibility.Viewer) ([]*visibility.ProfileView, error)
	SetBanned(ctx context.Context, admin visibility.Viewer, targetID string, banned bool) (*visibility.ProfileView, error)
	ListAll(ctx context.Context) ([]*model.User, error)
}

// adminSwapSource は管理機能が利用するスワップサービスの操作。
type adminSwapSource interface {
	Stats(ctx context.Context) (*swap.Stats, error)
	ListAll(ctx context.Context) ([]*model.SwapRequest, error)
}

// adminFeedbackSource は管理機能が利用するフィードバックサービスの操作。
type adminFeedbackSource interface {
	ListAll(ctx context.Context) ([]*model.Feedback, error)
}

// AdminServiceAdapter はユーザー・スワップ・フィードバックの各サービスを
// AdminServiceInterface に適合させるアダプタ。
type AdminServiceAdapter struct {
	users    adminUserSource
	swaps    adminSwapSource
	feedback adminFeedbackSource
}

// NewAdminServiceAdapter はAdminServiceAdapterを生成する。
func NewAdminServiceAdapter(users adminUserSource, swaps adminSwapSource, feedback adminFeedbackSource) *AdminServiceAdapter {
	return &AdminServiceAdapter{users: users, swaps: swaps, feedback: feedback}
}

// ListUsers は全ユーザーの管理者向けビューを返す。
func (a *AdminServiceAdapter) ListUsers(ctx context.Context, admin visibility.Viewer) ([]*visibility.ProfileView, error) {
	return a.users.AdminList(ctx, admin)
}

// SetBanned はユーザーのBAN状態を変更する。
func (a *AdminServiceAdapter) SetBanned(ctx context.Context, admin visibility.Viewer, targetID string, banned bool) (*visibility.ProfileView, error) {
	return a.users.SetBanned(ctx, admin, targetID, banned)
}

// Stats はスワップのステータス別件数とユーザー・フィードバックの総数を返す。
func (a *AdminServiceAdapter) Stats(ctx context.Context) (*AdminStats, error) {
	swapStats, err := a.swaps.Stats(ctx)
	if err != nil {
		return nil, err
	}
	users, err := a.users.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	fb, err := a.feedback.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	stats := &AdminStats{
		Swaps:         *swapStats,
		TotalUsers:    len(users),
		TotalFeedback: len(fb),
	}
	for _, u := range users {
		if u.IsBanned {
			stats.BannedUsers++
		}
	}
	return stats, nil
}

// ExportUsers は全ユーザーを返す。
func (a *AdminServiceAdapter) ExportUsers(ctx context.Context) ([]*model.User, error) {
	return a.users.ListAll(ctx)
}

// ExportSwaps は全スワップリクエストを返す。
func (a *AdminServiceAdapter) ExportSwaps(ctx context.Context) ([]*model.SwapRequest, error) {
	return a.swaps.ListAll(ctx)
}

// ExportFeedback は全フィードバックを返す。
func (a *AdminServiceAdapter) ExportFeedback(ctx context.Context) ([]*model.Feedback, error) {
	return a.feedback.ListAll(ctx)
}

// --- compile-time interface checks ---

var _ AdminServiceInterface = (*AdminServiceAdapter)(nil)
var _ adminUserSource = (*user.Service)(nil)
var _ adminSwapSource = (*swap.Service)(nil)
var _ adminFeedbackSource = (*feedback.Service)(nil)
var _ UserServiceInterface = (*user.Service)(nil)
var _ SwapServiceInterface = (*swap.Service)(nil)
var _ FeedbackServiceInterface = (*feedback.Service)(nil)
