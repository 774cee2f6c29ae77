package visibility

import (
	"strings"

	"github.com/hitoshi/skillswap/internal/model"
)

// DirectoryFilter は公開ディレクトリの絞り込み条件。ゼロ値は全件。
type DirectoryFilter struct {
	// Query は名前または提供・希望スキルに対する大文字小文字を区別しない部分一致。
	Query string
	// Availability は指定した時間帯タグを持つユーザーに限る。空なら条件なし。
	Availability model.Availability
}

// Matches はuserが条件をすべて満たすかを返す。
func (f DirectoryFilter) Matches(u *model.User) bool {
	if u == nil {
		return false
	}
	if f.Availability != "" && !hasAvailability(u.Availability, f.Availability) {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(u.Name), q) {
		return true
	}
	for _, skills := range [][]string{u.SkillsOffered, u.SkillsWanted} {
		for _, s := range skills {
			if strings.Contains(strings.ToLower(s), q) {
				return true
			}
		}
	}
	return false
}

// Apply は条件に一致するユーザーだけを元の順序で返す。
func (f DirectoryFilter) Apply(users []*model.User) []*model.User {
	if f == (DirectoryFilter{}) {
		return users
	}
	out := make([]*model.User, 0, len(users))
	for _, u := range users {
		if f.Matches(u) {
			out = append(out, u)
		}
	}
	return out
}

func hasAvailability(tags []model.Availability, want model.Availability) bool {
	for _, a := range tags {
		if a == want {
			return true
		}
	}
	return false
}
