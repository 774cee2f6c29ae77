package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/skillswap/internal/model"
	"github.com/hitoshi/skillswap/internal/user"
	"github.com/hitoshi/skillswap/internal/visibility"
)

// photoFormField はプロフィール写真のmultipartフィールド名。
const photoFormField = "photo"

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Profile(ctx context.Context, viewer visibility.Viewer, userID string) (*visibility.ProfileView, error)
	Me(ctx context.Context, viewer visibility.Viewer) (*visibility.ProfileView, error)
	Directory(ctx context.Context, viewer visibility.Viewer, filter visibility.DirectoryFilter) ([]*visibility.ProfileView, error)
	UpdateProfile(ctx context.Context, userID string, in user.UpdateProfileInput) (*visibility.ProfileView, error)
	UpdatePhoto(ctx context.Context, userID string, r io.Reader, filename string) (*visibility.ProfileView, error)
}

// UserHandler はユーザープロフィールのHTTPハンドラー。
type UserHandler struct {
	service        UserServiceInterface
	feedback       FeedbackServiceInterface
	uploadMaxBytes int64
}

// NewUserHandler はUserHandlerを生成する。
// uploadMaxBytesが0以下の場合は5MiBとする。
func NewUserHandler(service UserServiceInterface, feedback FeedbackServiceInterface, uploadMaxBytes int64) *UserHandler {
	if uploadMaxBytes <= 0 {
		uploadMaxBytes = 5 << 20
	}
	return &UserHandler{
		service:        service,
		feedback:       feedback,
		uploadMaxBytes: uploadMaxBytes,
	}
}

// updateProfileRequest はプロフィール更新リクエストのボディ。省略した項目は変更しない。
type updateProfileRequest struct {
	Name          *string   `json:"name"`
	Email         *string   `json:"email"`
	Location      *string   `json:"location"`
	SkillsOffered *[]string `json:"skills_offered"`
	SkillsWanted  *[]string `json:"skills_wanted"`
	Availability  *[]string `json:"availability"`
	IsPublic      *bool     `json:"is_public"`
}

// PublicDirectory は公開ディレクトリを返す。
// qは名前・スキルの部分一致、availabilityは時間帯タグで絞り込む。
// GET /api/users/public?q=&availability=
func (h *UserHandler) PublicDirectory(w http.ResponseWriter, r *http.Request) {
	filter, err := parseDirectoryFilter(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	views, err := h.service.Directory(r.Context(), viewerFrom(r), filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": toProfileResponses(views)})
}

// maxDirectoryQueryRunes は検索語の最大文字数。
const maxDirectoryQueryRunes = 100

func parseDirectoryFilter(r *http.Request) (visibility.DirectoryFilter, error) {
	q := r.URL.Query()
	filter := visibility.DirectoryFilter{Query: strings.TrimSpace(q.Get("q"))}
	if utf8.RuneCountInString(filter.Query) > maxDirectoryQueryRunes {
		return visibility.DirectoryFilter{}, model.NewValidationError(
			fmt.Sprintf("検索語は%d文字以内で指定してください", maxDirectoryQueryRunes))
	}
	if raw := q.Get("availability"); raw != "" {
		a, ok := model.ParseAvailability(raw)
		if !ok {
			return visibility.DirectoryFilter{}, model.NewValidationError(
				fmt.Sprintf("不明な時間帯です: %q", raw))
		}
		filter.Availability = a
	}
	return filter, nil
}

// GetProfile は閲覧者に応じたプロフィールを返す。
// GET /api/users/{id}
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Profile(r.Context(), viewerFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(view))
}

// GetFeedback はユーザーが受け取った最近のフィードバックを返す。
// プロフィールを閲覧できない場合はプロフィールと同じ404を返す。
// GET /api/users/{id}/feedback?limit=
func (h *UserHandler) GetFeedback(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFrom(r)
	userID := chi.URLParam(r, "id")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("limitは整数で指定してください"))
			return
		}
		limit = n
	}

	if _, err := h.service.Profile(r.Context(), viewer, userID); err != nil {
		handleServiceError(w, err)
		return
	}

	list, err := h.feedback.RecentFor(r.Context(), userID, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"feedback": toFeedbackResponses(list, viewer)})
}

// GetRating はユーザーの評価集計を返す。
// GET /api/users/{id}/rating
func (h *UserHandler) GetRating(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Profile(r.Context(), viewerFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRatingResponse(view.Rating))
}

// UpdateMe はログイン中のユーザーのプロフィールを部分更新する。
// PUT /api/users/me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	view, err := h.service.UpdateProfile(r.Context(), userID, user.UpdateProfileInput{
		Name:          req.Name,
		Email:         req.Email,
		Location:      req.Location,
		SkillsOffered: req.SkillsOffered,
		SkillsWanted:  req.SkillsWanted,
		Availability:  req.Availability,
		IsPublic:      req.IsPublic,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(view))
}

// UploadPhoto はmultipartで受け取った画像をプロフィール写真として保存する。
// POST /api/users/me/photo
func (h *UserHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.uploadMaxBytes)
	if err := r.ParseMultipartForm(h.uploadMaxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeAPIErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewValidationError("画像ファイルが大きすぎます"))
			return
		}
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("multipart/form-data形式で送信してください"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(photoFormField)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("photoフィールドに画像を指定してください"))
		return
	}
	defer file.Close()

	view, err := h.service.UpdatePhoto(r.Context(), userID, file, header.Filename)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(view))
}
