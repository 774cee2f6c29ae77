// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// Availability はユーザーが対応可能な時間帯のタグを表す。
type Availability string

const (
	AvailabilityWeekdays   Availability = "weekdays"
	AvailabilityWeekends   Availability = "weekends"
	AvailabilityEvenings   Availability = "evenings"
	AvailabilityMornings   Availability = "mornings"
	AvailabilityAfternoons Availability = "afternoons"
)

// ParseAvailability は文字列を大文字小文字を区別せずにAvailabilityへ変換する。
func ParseAvailability(s string) (Availability, bool) {
	switch a := Availability(strings.ToLower(strings.TrimSpace(s))); a {
	case AvailabilityWeekdays, AvailabilityWeekends, AvailabilityEvenings,
		AvailabilityMornings, AvailabilityAfternoons:
		return a, true
	default:
		return "", false
	}
}

// User はサービス利用ユーザーを表す。
// PasswordHashはどのプロフィールビューにも含めてはならない。
type User struct {
	ID            string
	Email         string
	Name          string
	PasswordHash  string
	Location      string
	PhotoURL      string
	SkillsOffered []string
	SkillsWanted  []string
	Availability  []Availability
	IsPublic      bool
	IsAdmin       bool
	IsBanned      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasSkills は提供スキルか希望スキルのいずれかが1件以上あるかを返す。
func (u *User) HasSkills() bool {
	return len(u.SkillsOffered) > 0 || len(u.SkillsWanted) > 0
}

// IsDiscoverable は公開ディレクトリに掲載できるユーザーかを返す。
func (u *User) IsDiscoverable() bool {
	return u.IsPublic && !u.IsBanned && u.HasSkills()
}

// NormalizeEmail はメールアドレスを比較用の正規形に変換する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
