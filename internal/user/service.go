// Package user はプロフィールの参照・編集と管理者によるユーザー管理を提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/mail"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/skillswap/internal/media"
	"github.com/hitoshi/skillswap/internal/model"
	"github.com/hitoshi/skillswap/internal/repository"
	"github.com/hitoshi/skillswap/internal/security"
	"github.com/hitoshi/skillswap/internal/visibility"
)

const (
	maxNameRunes     = 100
	maxLocationRunes = 100
	maxSkillRunes    = 60
	maxSkills        = 20
)

// RatingSource は評価集計の取得インターフェース。feedback.Serviceが満たす。
type RatingSource interface {
	AggregateFor(ctx context.Context, userID string) (model.RatingSummary, error)
	AggregatesFor(ctx context.Context, userIDs []string) (map[string]model.RatingSummary, error)
}

// PhotoUploader はプロフィール写真のアップロード先インターフェース。
type PhotoUploader interface {
	Upload(ctx context.Context, r io.Reader, filename, publicID string) (string, error)
}

// UpdateProfileInput はプロフィール更新の入力。nilの項目は変更しない。
type UpdateProfileInput struct {
	Name          *string
	Email         *string
	Location      *string
	SkillsOffered *[]string
	SkillsWanted  *[]string
	Availability  *[]string
	IsPublic      *bool
}

// Service はユーザーのサービス層。
type Service struct {
	userRepo  repository.UserRepository
	ratings   RatingSource
	sanitizer security.TextSanitizer
	uploader  PhotoUploader
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// uploaderがnilの場合、写真のアップロードはUPLOAD_UNAVAILABLEを返す。
func NewService(
	userRepo repository.UserRepository,
	ratings RatingSource,
	sanitizer security.TextSanitizer,
	uploader PhotoUploader,
) *Service {
	return &Service{
		userRepo:  userRepo,
		ratings:   ratings,
		sanitizer: sanitizer,
		uploader:  uploader,
		now:       time.Now,
	}
}

// Profile は閲覧者に応じてフィルタしたプロフィールを返す。
// 非公開・BAN済みで閲覧できない場合は存在しないIDと同じエラーを返す。
func (s *Service) Profile(ctx context.Context, viewer visibility.Viewer, userID string) (*visibility.ProfileView, error) {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if !visibility.CanSee(viewer, u) {
		return nil, model.NewUserNotFoundError()
	}

	rating, err := s.ratings.AggregateFor(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return visibility.View(viewer, u, rating)
}

// Me はログイン中のユーザー自身のプロフィールを返す。
func (s *Service) Me(ctx context.Context, viewer visibility.Viewer) (*visibility.ProfileView, error) {
	return s.Profile(ctx, viewer, viewer.UserID)
}

// Directory は公開ディレクトリを作成順で返す。
// 絞り込みは評価の集計前に行い、一致したユーザー分だけ集計する。
func (s *Service) Directory(ctx context.Context, viewer visibility.Viewer, filter visibility.DirectoryFilter) ([]*visibility.ProfileView, error) {
	users, err := s.userRepo.ListPublic(ctx)
	if err != nil {
		return nil, fmt.Errorf("公開ユーザーの取得に失敗しました: %w", err)
	}
	users = filter.Apply(users)
	ratings, err := s.ratings.AggregatesFor(ctx, userIDs(users))
	if err != nil {
		return nil, err
	}
	return visibility.Directory(viewer, users, ratings), nil
}

// UpdateProfile は本人のプロフィールを更新し、更新後の本人ビューを返す。
func (s *Service) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*visibility.ProfileView, error) {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}

	if in.Name != nil {
		name := s.sanitizer.Text(*in.Name, maxNameRunes)
		if name == "" {
			return nil, model.NewValidationError("名前を入力してください")
		}
		u.Name = name
	}
	if in.Email != nil {
		email, err := ValidateEmail(*in.Email)
		if err != nil {
			return nil, err
		}
		u.Email = email
	}
	if in.Location != nil {
		u.Location = s.sanitizer.Text(*in.Location, maxLocationRunes)
	}
	if in.SkillsOffered != nil {
		if u.SkillsOffered, err = s.skills(*in.SkillsOffered); err != nil {
			return nil, err
		}
	}
	if in.SkillsWanted != nil {
		if u.SkillsWanted, err = s.skills(*in.SkillsWanted); err != nil {
			return nil, err
		}
	}
	if in.Availability != nil {
		if u.Availability, err = ParseAvailabilityList(*in.Availability); err != nil {
			return nil, err
		}
	}
	if in.IsPublic != nil {
		u.IsPublic = *in.IsPublic
	}
	u.UpdatedAt = s.now()

	if err := s.userRepo.UpdateProfile(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewEmailTakenError()
		}
		return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}

	slog.Info("profile updated", slog.String("user_id", userID))
	return s.Me(ctx, visibility.Viewer{UserID: userID, IsAdmin: u.IsAdmin})
}

// UpdatePhoto はプロフィール写真をアップロードし、URLを本人のレコードに保存する。
func (s *Service) UpdatePhoto(ctx context.Context, userID string, r io.Reader, filename string) (*visibility.ProfileView, error) {
	if s.uploader == nil {
		return nil, model.NewUploadUnavailableError()
	}

	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}

	url, err := s.uploader.Upload(ctx, r, filename, userID)
	if err != nil {
		if errors.Is(err, media.ErrUnsupportedType) {
			return nil, model.NewValidationError("画像はjpg, png, gif, webpのいずれかでアップロードしてください")
		}
		return nil, fmt.Errorf("写真のアップロードに失敗しました: %w", err)
	}

	if err := s.userRepo.UpdatePhotoURL(ctx, userID, url, s.now()); err != nil {
		return nil, fmt.Errorf("写真URLの保存に失敗しました: %w", err)
	}

	slog.Info("profile photo updated", slog.String("user_id", userID))
	return s.Me(ctx, visibility.Viewer{UserID: userID, IsAdmin: u.IsAdmin})
}

// SetBanned は管理者がユーザーのBAN状態を変更する。
// 管理者自身をBANすることはできない。
func (s *Service) SetBanned(ctx context.Context, admin visibility.Viewer, targetID string, banned bool) (*visibility.ProfileView, error) {
	if !admin.IsAdmin {
		return nil, model.NewForbiddenError("管理者のみ実行できます")
	}
	if admin.UserID == targetID {
		return nil, model.NewValidationError("自分自身のBAN状態は変更できません")
	}

	found, err := s.userRepo.SetBanned(ctx, targetID, banned, s.now())
	if err != nil {
		return nil, fmt.Errorf("BAN状態の更新に失敗しました: %w", err)
	}
	if !found {
		return nil, model.NewUserNotFoundError()
	}

	if banned {
		slog.Info("user banned", slog.String("user_id", targetID), slog.String("admin_id", admin.UserID))
	} else {
		slog.Info("user unbanned", slog.String("user_id", targetID), slog.String("admin_id", admin.UserID))
	}
	return s.Profile(ctx, admin, targetID)
}

// AdminList は管理者向けに全ユーザーのビューを返す。
func (s *Service) AdminList(ctx context.Context, admin visibility.Viewer) ([]*visibility.ProfileView, error) {
	if !admin.IsAdmin {
		return nil, model.NewForbiddenError("管理者のみ実行できます")
	}

	users, err := s.userRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	ratings, err := s.ratings.AggregatesFor(ctx, userIDs(users))
	if err != nil {
		return nil, err
	}

	views := make([]*visibility.ProfileView, 0, len(users))
	for _, u := range users {
		v, err := visibility.View(admin, u, ratings[u.ID])
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// ListAll は全ユーザーを返す。エクスポート用。
func (s *Service) ListAll(ctx context.Context) ([]*model.User, error) {
	users, err := s.userRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	return users, nil
}

// skills はスキル一覧を無害化・重複除去し、件数を検証する。
func (s *Service) skills(raw []string) ([]string, error) {
	out := s.sanitizer.List(raw, maxSkillRunes)
	if len(out) > maxSkills {
		return nil, model.NewValidationError(fmt.Sprintf("スキルは%d件まで登録できます", maxSkills))
	}
	return out, nil
}

// ValidateEmail はメールアドレスを検証し、正規形を返す。
func ValidateEmail(raw string) (string, error) {
	email := model.NormalizeEmail(raw)
	if email == "" || utf8.RuneCountInString(email) > 254 {
		return "", model.NewValidationError("メールアドレスを入力してください")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", model.NewValidationError("メールアドレスの形式が正しくありません")
	}
	return email, nil
}

// ParseAvailabilityList は対応可能時間帯のタグ一覧を検証し、重複を除いて返す。
func ParseAvailabilityList(raw []string) ([]model.Availability, error) {
	out := make([]model.Availability, 0, len(raw))
	seen := make(map[model.Availability]bool, len(raw))
	for _, r := range raw {
		a, ok := model.ParseAvailability(r)
		if !ok {
			return nil, model.NewValidationError(fmt.Sprintf("対応可能時間帯 %q は指定できません", r))
		}
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	return out, nil
}

func userIDs(users []*model.User) []string {
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return ids
}
