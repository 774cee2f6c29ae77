// Package visibility は閲覧者ごとにユーザープロフィールの見え方を決める。
//
// 非公開またはBANされたプロフィールは、本人と管理者以外には存在しないIDと
// 同一のエラーで応答する。これにより非公開ユーザーの存在自体を秘匿する。
package visibility

import (
	"time"

	"github.com/hitoshi/skillswap/internal/model"
)

// Viewer はプロフィールを閲覧する呼び出し元を表す。ゼロ値は未認証の閲覧者。
type Viewer struct {
	UserID  string
	IsAdmin bool
}

// Anonymous は未認証の閲覧者。
var Anonymous = Viewer{}

// Audience は閲覧者とプロフィール所有者の関係を表す。
type Audience string

const (
	AudiencePublic Audience = "public"
	AudienceSelf   Audience = "self"
	AudienceAdmin  Audience = "admin"
)

// ProfileView は閲覧者に返すプロフィール。
// 公開ビューではポインタ項目がnilになり、レスポンスから省かれる。
type ProfileView struct {
	Audience      Audience
	ID            string
	Name          string
	Location      string
	PhotoURL      string
	SkillsOffered []string
	SkillsWanted  []string
	Availability  []model.Availability
	Rating        model.RatingSummary

	Email     *string
	IsPublic  *bool
	IsAdmin   *bool
	IsBanned  *bool
	CreatedAt *time.Time
	UpdatedAt *time.Time
}

// AudienceFor は閲覧者から見たtargetとの関係を返す。
func AudienceFor(viewer Viewer, target *model.User) Audience {
	switch {
	case viewer.IsAdmin:
		return AudienceAdmin
	case viewer.UserID != "" && viewer.UserID == target.ID:
		return AudienceSelf
	default:
		return AudiencePublic
	}
}

// CanSee は閲覧者がtargetのプロフィールを参照できるかを返す。
func CanSee(viewer Viewer, target *model.User) bool {
	if target == nil {
		return false
	}
	if AudienceFor(viewer, target) != AudiencePublic {
		return true
	}
	return target.IsPublic && !target.IsBanned
}

// View は閲覧者に応じてフィルタしたプロフィールを返す。
// targetがnil、または閲覧できない場合はUSER_NOT_FOUNDを返す。
// パスワードハッシュはどのビューにも含めない。
func View(viewer Viewer, target *model.User, rating model.RatingSummary) (*ProfileView, error) {
	if !CanSee(viewer, target) {
		return nil, model.NewUserNotFoundError()
	}

	view := &ProfileView{
		Audience:      AudienceFor(viewer, target),
		ID:            target.ID,
		Name:          target.Name,
		Location:      target.Location,
		PhotoURL:      target.PhotoURL,
		SkillsOffered: cloneStrings(target.SkillsOffered),
		SkillsWanted:  cloneStrings(target.SkillsWanted),
		Availability:  append([]model.Availability(nil), target.Availability...),
		Rating:        rating,
	}

	if view.Audience == AudiencePublic {
		return view, nil
	}

	email := target.Email
	isPublic := target.IsPublic
	isAdmin := target.IsAdmin
	isBanned := target.IsBanned
	createdAt := target.CreatedAt
	updatedAt := target.UpdatedAt
	view.Email = &email
	view.IsPublic = &isPublic
	view.IsAdmin = &isAdmin
	view.IsBanned = &isBanned
	view.CreatedAt = &createdAt
	view.UpdatedAt = &updatedAt

	return view, nil
}

// Directory は公開ディレクトリ向けにユーザー一覧をフィルタする。
// 掲載条件を満たさないユーザーは閲覧者に関係なく除外する。
func Directory(viewer Viewer, users []*model.User, ratings map[string]model.RatingSummary) []*ProfileView {
	views := make([]*ProfileView, 0, len(users))
	for _, u := range users {
		if u == nil || !u.IsDiscoverable() {
			continue
		}
		v, err := View(viewer, u, ratings[u.ID])
		if err != nil {
			continue
		}
		views = append(views, v)
	}
	return views
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return append([]string(nil), in...)
}
