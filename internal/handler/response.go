// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/skillswap/internal/middleware"
	"github.com/hitoshi/skillswap/internal/model"
	"github.com/hitoshi/skillswap/internal/visibility"
)

// maxJSONBodyBytes はJSONリクエストボディの上限。
const maxJSONBodyBytes = 1 << 20

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// decodeJSON はリクエストボディをdstにデコードする。
// 失敗した場合は400レスポンスを書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     model.ErrCodeValidation,
			Message:  "リクエストボディの解析に失敗しました",
			Category: model.ErrCategoryValidation,
			Action:   "正しいJSON形式でリクエストしてください",
		})
		return false
	}
	return true
}

// requireUserID はコンテキストから呼び出し元のユーザーIDを取り出す。
// 取り出せない場合は401レスポンスを書き込みfalseを返す。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return "", false
	}
	return userID, true
}

// viewerFrom はリクエストコンテキストから閲覧者を組み立てる。未認証の場合はゼロ値。
func viewerFrom(r *http.Request) visibility.Viewer {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		return visibility.Anonymous
	}
	return visibility.Viewer{UserID: userID, IsAdmin: middleware.IsAdminFromContext(r.Context())}
}

// handleServiceError はサービス層から返されたエラーをカテゴリに応じたレスポンスに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	middleware.WriteError(w, err)
}

// profileResponse はプロフィールのAPIレスポンス。
// 公開ビューでは本人・管理者向けの項目を省く。
type profileResponse struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	Location      string               `json:"location"`
	PhotoURL      string               `json:"photo_url"`
	SkillsOffered []string             `json:"skills_offered"`
	SkillsWanted  []string             `json:"skills_wanted"`
	Availability  []model.Availability `json:"availability"`
	Rating        ratingResponse       `json:"rating"`

	Email     *string    `json:"email,omitempty"`
	IsPublic  *bool      `json:"is_public,omitempty"`
	IsAdmin   *bool      `json:"is_admin,omitempty"`
	IsBanned  *bool      `json:"is_banned,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// ratingResponse は評価集計のAPIレスポンス。
type ratingResponse struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
}

func toRatingResponse(s model.RatingSummary) ratingResponse {
	return ratingResponse{Count: s.Count, Mean: s.Mean}
}

func toProfileResponse(v *visibility.ProfileView) profileResponse {
	availability := v.Availability
	if availability == nil {
		availability = []model.Availability{}
	}
	return profileResponse{
		ID:            v.ID,
		Name:          v.Name,
		Location:      v.Location,
		PhotoURL:      v.PhotoURL,
		SkillsOffered: v.SkillsOffered,
		SkillsWanted:  v.SkillsWanted,
		Availability:  availability,
		Rating:        toRatingResponse(v.Rating),
		Email:         v.Email,
		IsPublic:      v.IsPublic,
		IsAdmin:       v.IsAdmin,
		IsBanned:      v.IsBanned,
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
	}
}

func toProfileResponses(views []*visibility.ProfileView) []profileResponse {
	out := make([]profileResponse, len(views))
	for i, v := range views {
		out[i] = toProfileResponse(v)
	}
	return out
}

// swapResponse はスワップリクエストのAPIレスポンス。
type swapResponse struct {
	ID            string    `json:"id"`
	RequesterID   string    `json:"requester_id"`
	RequesterName string    `json:"requester_name"`
	TargetID      string    `json:"target_id"`
	TargetName    string    `json:"target_name"`
	OfferedSkill  string    `json:"offered_skill"`
	WantedSkill   string    `json:"wanted_skill"`
	Message       string    `json:"message"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toSwapResponse(s *model.SwapRequest) swapResponse {
	return swapResponse{
		ID:            s.ID,
		RequesterID:   s.RequesterID,
		RequesterName: s.RequesterName,
		TargetID:      s.TargetID,
		TargetName:    s.TargetName,
		OfferedSkill:  s.OfferedSkill,
		WantedSkill:   s.WantedSkill,
		Message:       s.Message,
		Status:        string(s.Status),
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

func toSwapResponses(swaps []*model.SwapRequest) []swapResponse {
	out := make([]swapResponse, len(swaps))
	for i, s := range swaps {
		out[i] = toSwapResponse(s)
	}
	return out
}

// feedbackResponse はフィードバックのAPIレスポンス。
// 匿名フィードバックのreviewer_idは投稿者本人と管理者にのみ返す。
type feedbackResponse struct {
	ID           string    `json:"id"`
	SwapID       string    `json:"swap_id"`
	ReviewerID   string    `json:"reviewer_id,omitempty"`
	ReviewerName string    `json:"reviewer_name"`
	RevieweeID   string    `json:"reviewee_id"`
	RevieweeName string    `json:"reviewee_name"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment"`
	Anonymous    bool      `json:"anonymous"`
	CreatedAt    time.Time `json:"created_at"`
}

func toFeedbackResponse(f *model.Feedback, viewer visibility.Viewer) feedbackResponse {
	resp := feedbackResponse{
		ID:           f.ID,
		SwapID:       f.SwapID,
		ReviewerID:   f.ReviewerID,
		ReviewerName: f.ReviewerName,
		RevieweeID:   f.RevieweeID,
		RevieweeName: f.RevieweeName,
		Rating:       f.Rating,
		Comment:      f.Comment,
		Anonymous:    f.Anonymous,
		CreatedAt:    f.CreatedAt,
	}
	if f.Anonymous && !viewer.IsAdmin && viewer.UserID != f.ReviewerID {
		resp.ReviewerID = ""
	}
	return resp
}

func toFeedbackResponses(list []*model.Feedback, viewer visibility.Viewer) []feedbackResponse {
	out := make([]feedbackResponse, len(list))
	for i, f := range list {
		out[i] = toFeedbackResponse(f, viewer)
	}
	return out
}
