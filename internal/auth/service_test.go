package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/skillswap/internal/model"
	"github.com/hitoshi/skillswap/internal/repository"
	"github.com/hitoshi/skillswap/internal/repository/memory"
	"github.com/hitoshi/skillswap/internal/security"
)

// --- モック定義 ---

type mockSessionRepo struct {
	createFn         func(ctx context.Context, session *model.Session) error
	findByIDFn       func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn     func(ctx context.Context, id string) error
	deleteByUserIDFn func(ctx context.Context, userID string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if m.deleteByUserIDFn != nil {
		return m.deleteByUserIDFn(ctx, userID)
	}
	return nil
}

func (m *mockSessionRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

var _ repository.SessionRepository = (*mockSessionRepo)(nil)

// --- テストヘルパー ---

func newTestService(sessions repository.SessionRepository) (*Service, *memory.Store) {
	store := memory.NewStore()
	if sessions == nil {
		sessions = store.Sessions()
	}
	svc := NewService(
		store.Users(), sessions,
		NewTokenIssuer([]byte("test-secret"), time.Hour),
		security.NewTextSanitizer(),
		ServiceConfig{SessionMaxAge: 86400},
	)
	return svc, store
}

func assertCategory(t *testing.T, err error, category string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want APIError with category %q", err, category)
	}
	if apiErr.Category != category {
		t.Errorf("Category = %q, want %q", apiErr.Category, category)
	}
}

// --- Signup ---

func TestSignup_CreatesPublicUserWithHashedPassword(t *testing.T) {
	svc, store := newTestService(nil)
	ctx := context.Background()

	u, err := svc.Signup(ctx, SignupInput{Name: " Alice ", Email: "Alice@Example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	if u.Name != "Alice" || u.Email != "alice@example.com" {
		t.Errorf("user = (%q, %q)", u.Name, u.Email)
	}
	if !u.IsPublic || u.IsAdmin || u.IsBanned {
		t.Errorf("flags = public:%v admin:%v banned:%v", u.IsPublic, u.IsAdmin, u.IsBanned)
	}
	if u.PasswordHash == "password123" || u.PasswordHash == "" {
		t.Error("password stored without hashing")
	}

	stored, _ := store.Users().FindByID(ctx, u.ID)
	if stored == nil {
		t.Fatal("user not persisted")
	}
}

func TestSignup_Errors(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()

	if _, err := svc.Signup(ctx, SignupInput{Name: "Alice", Email: "alice@example.com", Password: "password123"}); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	tests := []struct {
		name     string
		in       SignupInput
		category string
	}{
		{"名前なし", SignupInput{Name: "", Email: "x@example.com", Password: "password123"}, model.ErrCategoryValidation},
		{"不正なメール", SignupInput{Name: "X", Email: "x@", Password: "password123"}, model.ErrCategoryValidation},
		{"短いパスワード", SignupInput{Name: "X", Email: "x@example.com", Password: "short"}, model.ErrCategoryValidation},
		{"登録済みメール", SignupInput{Name: "X", Email: "ALICE@example.com", Password: "password123"}, model.ErrCategoryConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Signup(ctx, tt.in)
			assertCategory(t, err, tt.category)
		})
	}
}

// --- Login ---

func TestLogin_IssuesSessionAndToken(t *testing.T) {
	svc, store := newTestService(nil)
	ctx := context.Background()

	u, err := svc.Signup(ctx, SignupInput{Name: "Alice", Email: "alice@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	res, err := svc.Login(ctx, "ALICE@example.com", "password123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if res.Session.UserID != u.ID {
		t.Errorf("session userID = %q, want %q", res.Session.UserID, u.ID)
	}
	if res.Session.ExpiresAt.Before(time.Now()) {
		t.Error("session should not be expired")
	}
	if res.Token == "" {
		t.Error("expected token")
	}

	// セッションとトークンのどちらからも同じユーザーを解決できること
	bySession, err := svc.ResolveSession(ctx, res.Session.ID)
	if err != nil || bySession == nil || bySession.ID != u.ID {
		t.Errorf("ResolveSession = (%v, %v)", bySession, err)
	}
	byToken, err := svc.ResolveToken(ctx, res.Token)
	if err != nil || byToken == nil || byToken.ID != u.ID {
		t.Errorf("ResolveToken = (%v, %v)", byToken, err)
	}

	if _, err := store.Sessions().FindByID(ctx, res.Session.ID); err != nil {
		t.Errorf("session lookup error = %v", err)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()

	if _, err := svc.Signup(ctx, SignupInput{Name: "Alice", Email: "alice@example.com", Password: "password123"}); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	_, err := svc.Login(ctx, "alice@example.com", "wrong-password")
	assertCategory(t, err, model.ErrCategoryAuth)

	_, err = svc.Login(ctx, "nobody@example.com", "password123")
	assertCategory(t, err, model.ErrCategoryAuth)
}

func TestLogin_BannedUserCanAuthenticate(t *testing.T) {
	svc, store := newTestService(nil)
	ctx := context.Background()

	u, _ := svc.Signup(ctx, SignupInput{Name: "Alice", Email: "alice@example.com", Password: "password123"})
	if _, err := store.Users().SetBanned(ctx, u.ID, true, time.Now()); err != nil {
		t.Fatalf("SetBanned error = %v", err)
	}

	if _, err := svc.Login(ctx, "alice@example.com", "password123"); err != nil {
		t.Errorf("Login() for banned user error = %v", err)
	}
}

func TestLogin_SessionSaveError(t *testing.T) {
	svc, _ := newTestService(&mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			return errors.New("db error")
		},
	})
	ctx := context.Background()

	if _, err := svc.Signup(ctx, SignupInput{Name: "Alice", Email: "alice@example.com", Password: "password123"}); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	if _, err := svc.Login(ctx, "alice@example.com", "password123"); err == nil {
		t.Fatal("expected error when session cannot be saved")
	}
}

// --- Logout ---

func TestLogout_DeletesSession(t *testing.T) {
	ctx := context.Background()

	var deletedSessionID string
	svc, _ := newTestService(&mockSessionRepo{
		deleteByIDFn: func(ctx context.Context, id string) error {
			deletedSessionID = id
			return nil
		},
	})

	if err := svc.Logout(ctx, "session-to-delete"); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if deletedSessionID != "session-to-delete" {
		t.Errorf("deleted session ID = %q, want %q", deletedSessionID, "session-to-delete")
	}
}

func TestLogout_EmptySessionID_ReturnsError(t *testing.T) {
	svc, _ := newTestService(&mockSessionRepo{})

	if err := svc.Logout(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty session ID")
	}
}

func TestLogoutAll_DeletesEverySession(t *testing.T) {
	var deletedFor string
	svc, _ := newTestService(&mockSessionRepo{
		deleteByUserIDFn: func(ctx context.Context, userID string) error {
			deletedFor = userID
			return nil
		},
	})

	if err := svc.LogoutAll(context.Background(), "user-1"); err != nil {
		t.Fatalf("LogoutAll() error = %v", err)
	}
	if deletedFor != "user-1" {
		t.Errorf("deleted for %q, want user-1", deletedFor)
	}
}

// --- ResolveSession / ResolveToken ---

func TestResolveSession_ExpiredSession_ReturnsNil(t *testing.T) {
	svc, _ := newTestService(&mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, UserID: "user-1", ExpiresAt: time.Now().Add(-time.Minute)}, nil
		},
	})

	u, err := svc.ResolveSession(context.Background(), "expired")
	if err != nil || u != nil {
		t.Errorf("ResolveSession(expired) = (%v, %v), want (nil, nil)", u, err)
	}
}

func TestResolveSession_RepositoryError(t *testing.T) {
	svc, _ := newTestService(&mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return nil, errors.New("db error")
		},
	})

	if _, err := svc.ResolveSession(context.Background(), "s"); err == nil {
		t.Fatal("expected error from ResolveSession")
	}
}

func TestResolveToken_InvalidToken_ReturnsNil(t *testing.T) {
	svc, _ := newTestService(nil)

	u, err := svc.ResolveToken(context.Background(), "not-a-jwt")
	if err != nil || u != nil {
		t.Errorf("ResolveToken(garbage) = (%v, %v), want (nil, nil)", u, err)
	}
}
