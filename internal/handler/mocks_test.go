package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/skillswap/internal/auth"
	"github.com/hitoshi/skillswap/internal/feedback"
	"github.com/hitoshi/skillswap/internal/middleware"
	"github.com/hitoshi/skillswap/internal/model"
	"github.com/hitoshi/skillswap/internal/swap"
	"github.com/hitoshi/skillswap/internal/user"
	"github.com/hitoshi/skillswap/internal/visibility"
)

// --- モック定義 ---

type mockAuthService struct {
	signupFn    func(ctx context.Context, in auth.SignupInput) (*model.User, error)
	loginFn     func(ctx context.Context, email, password string) (*auth.LoginResult, error)
	logoutFn    func(ctx context.Context, sessionID string) error
	logoutAllFn func(ctx context.Context, userID string) error
}

func (m *mockAuthService) Signup(ctx context.Context, in auth.SignupInput) (*model.User, error) {
	if m.signupFn != nil {
		return m.signupFn(ctx, in)
	}
	return nil, nil
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*auth.LoginResult, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) LogoutAll(ctx context.Context, userID string) error {
	if m.logoutAllFn != nil {
		return m.logoutAllFn(ctx, userID)
	}
	return nil
}

type mockSwapService struct {
	createFn       func(ctx context.Context, in swap.CreateInput) (*model.SwapRequest, error)
	updateStatusFn func(ctx context.Context, callerID, swapID, status string) (*model.SwapRequest, error)
	getFn          func(ctx context.Context, caller swap.Caller, swapID string) (*model.SwapRequest, error)
	listForUserFn  func(ctx context.Context, userID string) ([]*model.SwapRequest, error)
}

func (m *mockSwapService) Create(ctx context.Context, in swap.CreateInput) (*model.SwapRequest, error) {
	if m.createFn != nil {
		return m.createFn(ctx, in)
	}
	return nil, nil
}

func (m *mockSwapService) UpdateStatus(ctx context.Context, callerID, swapID, status string) (*model.SwapRequest, error) {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, callerID, swapID, status)
	}
	return nil, nil
}

func (m *mockSwapService) Get(ctx context.Context, caller swap.Caller, swapID string) (*model.SwapRequest, error) {
	if m.getFn != nil {
		return m.getFn(ctx, caller, swapID)
	}
	return nil, nil
}

func (m *mockSwapService) ListForUser(ctx context.Context, userID string) ([]*model.SwapRequest, error) {
	if m.listForUserFn != nil {
		return m.listForUserFn(ctx, userID)
	}
	return nil, nil
}

type mockFeedbackService struct {
	submitFn    func(ctx context.Context, in feedback.SubmitInput) (*model.Feedback, error)
	givenByFn   func(ctx context.Context, reviewerID string) ([]*model.Feedback, error)
	recentForFn func(ctx context.Context, userID string, limit int) ([]*model.Feedback, error)
}

func (m *mockFeedbackService) Submit(ctx context.Context, in feedback.SubmitInput) (*model.Feedback, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, in)
	}
	return nil, nil
}

func (m *mockFeedbackService) GivenBy(ctx context.Context, reviewerID string) ([]*model.Feedback, error) {
	if m.givenByFn != nil {
		return m.givenByFn(ctx, reviewerID)
	}
	return nil, nil
}

func (m *mockFeedbackService) RecentFor(ctx context.Context, userID string, limit int) ([]*model.Feedback, error) {
	if m.recentForFn != nil {
		return m.recentForFn(ctx, userID, limit)
	}
	return nil, nil
}

type mockUserService struct {
	profileFn       func(ctx context.Context, viewer visibility.Viewer, userID string) (*visibility.ProfileView, error)
	meFn            func(ctx context.Context, viewer visibility.Viewer) (*visibility.ProfileView, error)
	directoryFn     func(ctx context.Context, viewer visibility.Viewer, filter visibility.DirectoryFilter) ([]*visibility.ProfileView, error)
	updateProfileFn func(ctx context.Context, userID string, in user.UpdateProfileInput) (*visibility.ProfileView, error)
	updatePhotoFn   func(ctx context.Context, userID string, r io.Reader, filename string) (*visibility.ProfileView, error)
}

func (m *mockUserService) Profile(ctx context.Context, viewer visibility.Viewer, userID string) (*visibility.ProfileView, error) {
	if m.profileFn != nil {
		return m.profileFn(ctx, viewer, userID)
	}
	return &visibility.ProfileView{ID: userID}, nil
}

func (m *mockUserService) Me(ctx context.Context, viewer visibility.Viewer) (*visibility.ProfileView, error) {
	if m.meFn != nil {
		return m.meFn(ctx, viewer)
	}
	return &visibility.ProfileView{ID: viewer.UserID, Audience: visibility.AudienceSelf}, nil
}

func (m *mockUserService) Directory(ctx context.Context, viewer visibility.Viewer, filter visibility.DirectoryFilter) ([]*visibility.ProfileView, error) {
	if m.directoryFn != nil {
		return m.directoryFn(ctx, viewer, filter)
	}
	return nil, nil
}

func (m *mockUserService) UpdateProfile(ctx context.Context, userID string, in user.UpdateProfileInput) (*visibility.ProfileView, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, userID, in)
	}
	return &visibility.ProfileView{ID: userID}, nil
}

func (m *mockUserService) UpdatePhoto(ctx context.Context, userID string, r io.Reader, filename string) (*visibility.ProfileView, error) {
	if m.updatePhotoFn != nil {
		return m.updatePhotoFn(ctx, userID, r, filename)
	}
	return &visibility.ProfileView{ID: userID}, nil
}

type mockAdminService struct {
	listUsersFn      func(ctx context.Context, admin visibility.Viewer) ([]*visibility.ProfileView, error)
	setBannedFn      func(ctx context.Context, admin visibility.Viewer, targetID string, banned bool) (*visibility.ProfileView, error)
	statsFn          func(ctx context.Context) (*AdminStats, error)
	exportUsersFn    func(ctx context.Context) ([]*model.User, error)
	exportSwapsFn    func(ctx context.Context) ([]*model.SwapRequest, error)
	exportFeedbackFn func(ctx context.Context) ([]*model.Feedback, error)
}

func (m *mockAdminService) ListUsers(ctx context.Context, admin visibility.Viewer) ([]*visibility.ProfileView, error) {
	if m.listUsersFn != nil {
		return m.listUsersFn(ctx, admin)
	}
	return nil, nil
}

func (m *mockAdminService) SetBanned(ctx context.Context, admin visibility.Viewer, targetID string, banned bool) (*visibility.ProfileView, error) {
	if m.setBannedFn != nil {
		return m.setBannedFn(ctx, admin, targetID, banned)
	}
	return &visibility.ProfileView{ID: targetID}, nil
}

func (m *mockAdminService) Stats(ctx context.Context) (*AdminStats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx)
	}
	return &AdminStats{}, nil
}

func (m *mockAdminService) ExportUsers(ctx context.Context) ([]*model.User, error) {
	if m.exportUsersFn != nil {
		return m.exportUsersFn(ctx)
	}
	return nil, nil
}

func (m *mockAdminService) ExportSwaps(ctx context.Context) ([]*model.SwapRequest, error) {
	if m.exportSwapsFn != nil {
		return m.exportSwapsFn(ctx)
	}
	return nil, nil
}

func (m *mockAdminService) ExportFeedback(ctx context.Context) ([]*model.Feedback, error) {
	if m.exportFeedbackFn != nil {
		return m.exportFeedbackFn(ctx)
	}
	return nil, nil
}

// --- テストヘルパー ---

// withUserID はテスト用にリクエストコンテキストにユーザーIDを注入するヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
}

// withAdmin はテスト用に管理者としてのコンテキストを注入するヘルパー。
func withAdmin(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.ContextWithUser(r.Context(), userID, true))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}
	rctx.URLParams.Add(key, value)
	return r
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return body
}

// decodeBody はレスポンスボディをvにデコードするヘルパー。
func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v\nbody: %s", err, w.Body.String())
	}
}
