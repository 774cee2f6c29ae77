// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ（機械判定用の種別）: ErrCategory* を参照
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// エラーカテゴリ。HTTPステータスへの対応はhandlerパッケージが持つ。
const (
	ErrCategoryValidation        = "validation"
	ErrCategoryAuth              = "auth"
	ErrCategoryAuthorization     = "authorization"
	ErrCategoryNotFound          = "not_found"
	ErrCategoryInvalidTransition = "invalid_transition"
	ErrCategoryInvalidState      = "invalid_state"
	ErrCategoryConflict          = "conflict"
	ErrCategoryUnavailable       = "unavailable"
	ErrCategoryStorage           = "storage"
)

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeSwapNotFound       = "SWAP_NOT_FOUND"
	ErrCodeInvalidTransition  = "INVALID_TRANSITION"
	ErrCodeSwapNotCompleted   = "SWAP_NOT_COMPLETED"
	ErrCodeDuplicateFeedback  = "DUPLICATE_FEEDBACK"
	ErrCodeEmailTaken         = "EMAIL_TAKEN"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUploadUnavailable  = "UPLOAD_UNAVAILABLE"
	ErrCodeUnauthenticated    = "UNAUTHENTICATED"
	ErrCodeRateLimited        = "RATE_LIMIT_EXCEEDED"
)

// HasCategory はerrがAPIErrorであり、指定カテゴリに属するかを返す。
func HasCategory(err error, category string) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Category == category
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力内容が正しくありません: %s", reason),
		Category: ErrCategoryValidation,
		Action:   "入力内容を確認してから再度お試しください。",
	}
}

// NewForbiddenError は操作権限がない場合のエラーを生成する。
func NewForbiddenError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  fmt.Sprintf("この操作を行う権限がありません: %s", reason),
		Category: ErrCategoryAuthorization,
		Action:   "操作対象と自分のアカウントを確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
// 非公開プロフィールの秘匿にも使うため、IDや理由をメッセージに含めない。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: ErrCategoryNotFound,
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewSwapNotFoundError はスワップリクエストが見つからない場合のエラーを生成する。
func NewSwapNotFoundError(swapID string) *APIError {
	return &APIError{
		Code:     ErrCodeSwapNotFound,
		Message:  fmt.Sprintf("指定されたスワップリクエストが見つかりません: %s", swapID),
		Category: ErrCategoryNotFound,
		Action:   "スワップリクエストIDを確認してください。",
	}
}

// NewInvalidTransitionError は許可されていないステータス遷移のエラーを生成する。
func NewInvalidTransitionError(from, to SwapStatus) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTransition,
		Message:  fmt.Sprintf("ステータスを %s から %s に変更することはできません。", from, to),
		Category: ErrCategoryInvalidTransition,
		Action:   "最新のスワップリクエストの状態を確認してください。",
	}
}

// NewSwapNotCompletedError は未完了のスワップにフィードバックしようとした場合のエラーを生成する。
func NewSwapNotCompletedError(status SwapStatus) *APIError {
	return &APIError{
		Code:     ErrCodeSwapNotCompleted,
		Message:  fmt.Sprintf("完了していないスワップにはフィードバックできません（現在: %s）。", status),
		Category: ErrCategoryInvalidState,
		Action:   "スワップを完了してからフィードバックしてください。",
	}
}

// NewDuplicateFeedbackError は同じスワップへの二重フィードバックのエラーを生成する。
func NewDuplicateFeedbackError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateFeedback,
		Message:  "このスワップには既にフィードバック済みです。",
		Category: ErrCategoryConflict,
		Action:   "フィードバック一覧から投稿済みの内容を確認してください。",
	}
}

// NewEmailTakenError はメールアドレスが登録済みの場合のエラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: ErrCategoryConflict,
		Action:   "ログインするか、別のメールアドレスを使用してください。",
	}
}

// NewInvalidCredentialsError はログイン情報が正しくない場合のエラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: ErrCategoryAuth,
		Action:   "入力内容を確認して再度ログインしてください。",
	}
}

// NewUploadUnavailableError は画像アップロードが構成されていない場合のエラーを生成する。
func NewUploadUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeUploadUnavailable,
		Message:  "画像アップロードは現在利用できません。",
		Category: ErrCategoryUnavailable,
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUnauthenticatedError は認証が必要なエンドポイントに未認証でアクセスした場合のエラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "ログインが必要です。",
		Category: ErrCategoryAuth,
		Action:   "ログインしてから再度お試しください。",
	}
}
