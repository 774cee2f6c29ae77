package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/skillswap/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// categoryはクライアントが機械的に判定するためのエラー種別。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// StatusForCategory はエラーカテゴリをHTTPステータスコードに対応付ける。
// 状態に関する3種（invalid_transition、invalid_state、conflict）はすべて409とし、
// 区別はcategoryで行う。
func StatusForCategory(category string) int {
	switch category {
	case model.ErrCategoryValidation:
		return http.StatusBadRequest
	case model.ErrCategoryAuth:
		return http.StatusUnauthorized
	case model.ErrCategoryAuthorization:
		return http.StatusForbidden
	case model.ErrCategoryNotFound:
		return http.StatusNotFound
	case model.ErrCategoryInvalidTransition, model.ErrCategoryInvalidState, model.ErrCategoryConflict:
		return http.StatusConflict
	case model.ErrCategoryUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteErrorResponse はステータスコードを指定して統一エラーフォーマットで書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	}); err != nil {
		slog.Error("failed to encode error response", slog.String("error", err.Error()))
	}
}

// WriteError はサービス層のエラーをレスポンスに変換する。
// APIErrorはカテゴリに応じたステータスで返し、それ以外は詳細をログにのみ残して500を返す。
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		WriteErrorResponse(w, StatusForCategory(apiErr.Category), apiErr)
		return
	}

	slog.Error("internal server error", slog.String("error", err.Error()))
	WriteInternalServerError(w)
}

// WriteInternalServerError は内部エラーの統一レスポンスを書き込む。
// 永続化層などの失敗はstorageカテゴリとして扱い、原因は返さない。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: model.ErrCategoryStorage,
		Action:   "しばらく待ってから再度お試しください。",
	})
}
