// Package model はドメインモデルを定義する。
package model

import "time"

// SwapRequest はユーザー間のスキル交換リクエストを表す。
// RequesterName/TargetNameは作成時点の表示名のスナップショットで、以後更新しない。
type SwapRequest struct {
	ID            string
	RequesterID   string
	RequesterName string
	TargetID      string
	TargetName    string
	OfferedSkill  string
	WantedSkill   string
	Message       string
	Status        SwapStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SwapStatus はスワップリクエストの状態を表す。
type SwapStatus string

const (
	// SwapStatusPending は相手の回答待ちの状態。
	SwapStatusPending SwapStatus = "pending"
	// SwapStatusAccepted は相手が承諾した状態。
	SwapStatusAccepted SwapStatus = "accepted"
	// SwapStatusRejected は相手が拒否した状態。終端。
	SwapStatusRejected SwapStatus = "rejected"
	// SwapStatusCompleted は交換が完了した状態。終端。
	SwapStatusCompleted SwapStatus = "completed"
)

// ParseSwapStatus は文字列をSwapStatusへ変換する。未知の値はfalseを返す。
func ParseSwapStatus(s string) (SwapStatus, bool) {
	switch st := SwapStatus(s); st {
	case SwapStatusPending, SwapStatusAccepted, SwapStatusRejected, SwapStatusCompleted:
		return st, true
	default:
		return "", false
	}
}

// IsTerminal は以後遷移しない状態かを返す。
func (s SwapStatus) IsTerminal() bool {
	return s == SwapStatusRejected || s == SwapStatusCompleted
}

// SwapRole はスワップリクエストに対する呼び出し元の立場を表す。
type SwapRole int

const (
	// SwapRoleOutsider は当事者ではない。
	SwapRoleOutsider SwapRole = iota
	// SwapRoleRequester はリクエストを送った側。
	SwapRoleRequester
	// SwapRoleTarget はリクエストを受け取った側。
	SwapRoleTarget
)

// RoleOf は指定ユーザーの立場を返す。
func (s *SwapRequest) RoleOf(userID string) SwapRole {
	switch userID {
	case "":
		return SwapRoleOutsider
	case s.RequesterID:
		return SwapRoleRequester
	case s.TargetID:
		return SwapRoleTarget
	default:
		return SwapRoleOutsider
	}
}

// IsParticipant は指定ユーザーが当事者かを返す。
func (s *SwapRequest) IsParticipant(userID string) bool {
	return s.RoleOf(userID) != SwapRoleOutsider
}

// CounterpartOf は当事者から見た相手のIDと表示名を返す。当事者でない場合は空文字を返す。
func (s *SwapRequest) CounterpartOf(userID string) (string, string) {
	switch s.RoleOf(userID) {
	case SwapRoleRequester:
		return s.TargetID, s.TargetName
	case SwapRoleTarget:
		return s.RequesterID, s.RequesterName
	default:
		return "", ""
	}
}

// CheckTransition はroleの立場でfromからtoへ遷移できるかを検証する。
// 当事者以外はForbidden、定義されていない遷移はInvalidTransition、
// 定義済みだが立場が合わない遷移はForbiddenを返す。
func CheckTransition(from, to SwapStatus, role SwapRole) error {
	if role == SwapRoleOutsider {
		return NewForbiddenError("スワップリクエストの当事者ではありません")
	}

	var allowed bool
	switch {
	case from == SwapStatusPending && to == SwapStatusAccepted,
		from == SwapStatusPending && to == SwapStatusRejected:
		allowed = role == SwapRoleTarget
	case from == SwapStatusAccepted && to == SwapStatusCompleted:
		allowed = true
	default:
		return NewInvalidTransitionError(from, to)
	}

	if !allowed {
		return NewForbiddenError("リクエストの承諾・拒否は受け取った側のみ行えます")
	}
	return nil
}
