// Package memory はリポジトリインターフェースのインメモリ実装を提供する。
// サービス層と統合テストでPostgreSQLの代わりに使う。条件付き更新と一意制約は
// PostgreSQL実装と同じ意味で振る舞う。
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/skillswap/internal/model"
	"github.com/hitoshi/skillswap/internal/repository"
)

// Store は全テーブルの状態を1つのロックで保持する。
type Store struct {
	mu       sync.Mutex
	users    map[string]*model.User
	sessions map[string]*model.Session
	swaps    map[string]*model.SwapRequest
	feedback []*model.Feedback
}

// NewStore は空のStoreを生成する。
func NewStore() *Store {
	return &Store{
		users:    make(map[string]*model.User),
		sessions: make(map[string]*model.Session),
		swaps:    make(map[string]*model.SwapRequest),
	}
}

// Users はUserRepositoryとしてのビューを返す。
func (s *Store) Users() *UserRepo { return &UserRepo{s: s} }

// Sessions はSessionRepositoryとしてのビューを返す。
func (s *Store) Sessions() *SessionRepo { return &SessionRepo{s: s} }

// Swaps はSwapRepositoryとしてのビューを返す。
func (s *Store) Swaps() *SwapRepo { return &SwapRepo{s: s} }

// Feedback はFeedbackRepositoryとしてのビューを返す。
func (s *Store) Feedback() *FeedbackRepo { return &FeedbackRepo{s: s} }

func copyUser(u *model.User) *model.User {
	c := *u
	c.SkillsOffered = append([]string(nil), u.SkillsOffered...)
	c.SkillsWanted = append([]string(nil), u.SkillsWanted...)
	c.Availability = append([]model.Availability(nil), u.Availability...)
	return &c
}

func copySwap(sw *model.SwapRequest) *model.SwapRequest {
	c := *sw
	return &c
}

func copyFeedback(f *model.Feedback) *model.Feedback {
	c := *f
	return &c
}

// --- users ---

// UserRepo はインメモリのUserRepository。
type UserRepo struct{ s *Store }

func (r *UserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[id]; ok {
		return copyUser(u), nil
	}
	return nil, nil
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (r *UserRepo) emailTaken(email, exceptID string) bool {
	for _, u := range r.s.users {
		if u.ID != exceptID && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (r *UserRepo) Create(ctx context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.users[user.ID]; exists || r.emailTaken(user.Email, "") {
		return repository.ErrDuplicate
	}
	r.s.users[user.ID] = copyUser(user)
	return nil
}

func (r *UserRepo) UpdateProfile(ctx context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.users[user.ID]
	if !ok {
		return nil
	}
	if r.emailTaken(user.Email, user.ID) {
		return repository.ErrDuplicate
	}
	next := copyUser(user)
	next.PasswordHash = cur.PasswordHash
	next.PhotoURL = cur.PhotoURL
	next.IsAdmin = cur.IsAdmin
	next.IsBanned = cur.IsBanned
	next.CreatedAt = cur.CreatedAt
	r.s.users[user.ID] = next
	return nil
}

func (r *UserRepo) UpdatePhotoURL(ctx context.Context, userID, photoURL string, updatedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[userID]; ok {
		u.PhotoURL = photoURL
		u.UpdatedAt = updatedAt
	}
	return nil
}

func (r *UserRepo) SetBanned(ctx context.Context, userID string, banned bool, updatedAt time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return false, nil
	}
	u.IsBanned = banned
	u.UpdatedAt = updatedAt
	return true, nil
}

func (r *UserRepo) ListPublic(ctx context.Context) ([]*model.User, error) {
	all, _ := r.ListAll(ctx)
	out := all[:0]
	for _, u := range all {
		if u.IsDiscoverable() {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *UserRepo) ListAll(ctx context.Context) ([]*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*model.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, copyUser(u))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// --- sessions ---

// SessionRepo はインメモリのSessionRepository。
type SessionRepo struct{ s *Store }

func (r *SessionRepo) Create(ctx context.Context, session *model.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *session
	r.s.sessions[session.ID] = &c
	return nil
}

func (r *SessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	if !ok || !sess.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	c := *sess
	return &c, nil
}

func (r *SessionRepo) DeleteByID(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.sessions, id)
	return nil
}

func (r *SessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, sess := range r.s.sessions {
		if sess.UserID == userID {
			delete(r.s.sessions, id)
		}
	}
	return nil
}

func (r *SessionRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, sess := range r.s.sessions {
		if !sess.ExpiresAt.After(before) {
			delete(r.s.sessions, id)
			n++
		}
	}
	return n, nil
}

// --- swaps ---

// SwapRepo はインメモリのSwapRepository。
type SwapRepo struct{ s *Store }

func (r *SwapRepo) Create(ctx context.Context, swap *model.SwapRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.swaps[swap.ID] = copySwap(swap)
	return nil
}

func (r *SwapRepo) FindByID(ctx context.Context, id string) (*model.SwapRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sw, ok := r.s.swaps[id]; ok {
		return copySwap(sw), nil
	}
	return nil, nil
}

func (r *SwapRepo) UpdateStatus(ctx context.Context, id string, from, to model.SwapStatus, updatedAt time.Time) (*model.SwapRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sw, ok := r.s.swaps[id]
	if !ok || sw.Status != from {
		return nil, nil
	}
	sw.Status = to
	sw.UpdatedAt = updatedAt
	return copySwap(sw), nil
}

func (r *SwapRepo) ListByUserID(ctx context.Context, userID string) ([]*model.SwapRequest, error) {
	return r.filter(func(sw *model.SwapRequest) bool {
		return sw.RequesterID == userID || sw.TargetID == userID
	}), nil
}

func (r *SwapRepo) ListAll(ctx context.Context) ([]*model.SwapRequest, error) {
	return r.filter(func(*model.SwapRequest) bool { return true }), nil
}

func (r *SwapRepo) CountByStatus(ctx context.Context) (map[model.SwapStatus]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := make(map[model.SwapStatus]int)
	for _, sw := range r.s.swaps {
		counts[sw.Status]++
	}
	return counts, nil
}

func (r *SwapRepo) filter(keep func(*model.SwapRequest) bool) []*model.SwapRequest {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.SwapRequest
	for _, sw := range r.s.swaps {
		if keep(sw) {
			out = append(out, copySwap(sw))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// --- feedback ---

// FeedbackRepo はインメモリのFeedbackRepository。
type FeedbackRepo struct{ s *Store }

func (r *FeedbackRepo) Create(ctx context.Context, f *model.Feedback) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.feedback {
		if existing.SwapID == f.SwapID && existing.ReviewerID == f.ReviewerID {
			return repository.ErrDuplicate
		}
	}
	r.s.feedback = append(r.s.feedback, copyFeedback(f))
	return nil
}

func (r *FeedbackRepo) ExistsBySwapAndReviewer(ctx context.Context, swapID, reviewerID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, f := range r.s.feedback {
		if f.SwapID == swapID && f.ReviewerID == reviewerID {
			return true, nil
		}
	}
	return false, nil
}

func (r *FeedbackRepo) SummaryByReviewee(ctx context.Context, revieweeID string) (model.RatingSummary, error) {
	summaries, _ := r.SummariesByReviewees(ctx, []string{revieweeID})
	return summaries[revieweeID], nil
}

func (r *FeedbackRepo) SummariesByReviewees(ctx context.Context, revieweeIDs []string) (map[string]model.RatingSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	wanted := make(map[string]bool, len(revieweeIDs))
	for _, id := range revieweeIDs {
		wanted[id] = true
	}
	sums := make(map[string]int)
	counts := make(map[string]int)
	for _, f := range r.s.feedback {
		if wanted[f.RevieweeID] {
			sums[f.RevieweeID] += f.Rating
			counts[f.RevieweeID]++
		}
	}
	out := make(map[string]model.RatingSummary, len(counts))
	for id, n := range counts {
		out[id] = model.RatingSummary{Count: n, Mean: float64(sums[id]) / float64(n)}
	}
	return out, nil
}

func (r *FeedbackRepo) ListRecentByReviewee(ctx context.Context, revieweeID string, limit int) ([]*model.Feedback, error) {
	out := r.filter(func(f *model.Feedback) bool { return f.RevieweeID == revieweeID })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *FeedbackRepo) ListByReviewer(ctx context.Context, reviewerID string) ([]*model.Feedback, error) {
	return r.filter(func(f *model.Feedback) bool { return f.ReviewerID == reviewerID }), nil
}

func (r *FeedbackRepo) ListAll(ctx context.Context) ([]*model.Feedback, error) {
	return r.filter(func(*model.Feedback) bool { return true }), nil
}

// filter は条件に合うフィードバックを新しい順に返す。作成時刻が同じ場合は後から追加した方を先にする。
func (r *FeedbackRepo) filter(keep func(*model.Feedback) bool) []*model.Feedback {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Feedback
	for i := len(r.s.feedback) - 1; i >= 0; i-- {
		if f := r.s.feedback[i]; keep(f) {
			out = append(out, copyFeedback(f))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

var (
	_ repository.UserRepository     = (*UserRepo)(nil)
	_ repository.SessionRepository  = (*SessionRepo)(nil)
	_ repository.SwapRepository     = (*SwapRepo)(nil)
	_ repository.FeedbackRepository = (*FeedbackRepo)(nil)
)
