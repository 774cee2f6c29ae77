package handler

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/skillswap/internal/model"
	"github.com/hitoshi/skillswap/internal/swap"
	"github.com/hitoshi/skillswap/internal/visibility"
)

// AdminStats は管理画面向けの集計。
type AdminStats struct {
	Swaps         swap.Stats
	TotalUsers    int
	BannedUsers   int
	TotalFeedback int
}

// AdminServiceInterface は管理者ハンドラーが必要とするサービスインターフェース。
type AdminServiceInterface interface {
	ListUsers(ctx context.Context, admin visibility.Viewer) ([]*visibility.ProfileView, error)
	SetBanned(ctx context.Context, admin visibility.Viewer, targetID string, banned bool) (*visibility.ProfileView, error)
	Stats(ctx context.Context) (*AdminStats, error)
	ExportUsers(ctx context.Context) ([]*model.User, error)
	ExportSwaps(ctx context.Context) ([]*model.SwapRequest, error)
	ExportFeedback(ctx context.Context) ([]*model.Feedback, error)
}

// AdminHandler は管理者向けのHTTPハンドラー。RequireAdminの後に配置する。
type AdminHandler struct {
	service AdminServiceInterface
	now     func() time.Time
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(service AdminServiceInterface) *AdminHandler {
	return &AdminHandler{service: service, now: time.Now}
}

type banRequest struct {
	Banned bool `json:"banned"`
}

type adminStatsResponse struct {
	Swaps struct {
		Total    int            `json:"total"`
		ByStatus map[string]int `json:"by_status"`
	} `json:"swaps"`
	Users struct {
		Total  int `json:"total"`
		Banned int `json:"banned"`
	} `json:"users"`
	Feedback struct {
		Total int `json:"total"`
	} `json:"feedback"`
}

// ListUsers は全ユーザーを返す。非公開・BAN済みも含む。
// GET /api/admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.ListUsers(r.Context(), viewerFrom(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": toProfileResponses(views)})
}

// SetBanned はユーザーのBAN状態を変更する。
// PUT /api/admin/users/{id}/ban
func (h *AdminHandler) SetBanned(w http.ResponseWriter, r *http.Request) {
	var req banRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	view, err := h.service.SetBanned(r.Context(), viewerFrom(r), chi.URLParam(r, "id"), req.Banned)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(view))
}

// Stats はスワップのステータス別件数と総数を返す。
// GET /api/admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var resp adminStatsResponse
	resp.Swaps.Total = stats.Swaps.Total
	resp.Swaps.ByStatus = make(map[string]int, len(stats.Swaps.ByStatus))
	for st, n := range stats.Swaps.ByStatus {
		resp.Swaps.ByStatus[string(st)] = n
	}
	resp.Users.Total = stats.TotalUsers
	resp.Users.Banned = stats.BannedUsers
	resp.Feedback.Total = stats.TotalFeedback

	writeJSON(w, http.StatusOK, resp)
}

// Export は指定データセットをCSVで返す。
// GET /api/admin/export/{dataset}  dataset: users | swaps | feedback
func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	dataset := chi.URLParam(r, "dataset")

	var (
		header []string
		rows   [][]string
		err    error
	)
	switch dataset {
	case "users":
		header, rows, err = h.userRows(r.Context())
	case "swaps":
		header, rows, err = h.swapRows(r.Context())
	case "feedback":
		header, rows, err = h.feedbackRows(r.Context())
	default:
		writeAPIErrorResponse(w, http.StatusNotFound, &model.APIError{
			Code:     "EXPORT_NOT_FOUND",
			Message:  "指定されたエクスポートは存在しません",
			Category: model.ErrCategoryNotFound,
			Action:   "users、swaps、feedbackのいずれかを指定してください",
		})
		return
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	filename := fmt.Sprintf("skillswap-%s-%s.csv", dataset, h.now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		slog.Error("failed to write csv header", slog.String("error", err.Error()))
		return
	}
	for _, row := range rows {
		for i := range row {
			row[i] = csvSafe(row[i])
		}
		if err := cw.Write(row); err != nil {
			slog.Error("failed to write csv row", slog.String("error", err.Error()))
			return
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		slog.Error("failed to flush csv", slog.String("error", err.Error()))
	}
}

func (h *AdminHandler) userRows(ctx context.Context) ([]string, [][]string, error) {
	users, err := h.service.ExportUsers(ctx)
	if err != nil {
		return nil, nil, err
	}
	header := []string{"id", "name", "email", "location", "skills_offered", "skills_wanted",
		"availability", "is_public", "is_admin", "is_banned", "created_at"}
	rows := make([][]string, 0, len(users))
	for _, u := range users {
		availability := make([]string, len(u.Availability))
		for i, a := range u.Availability {
			availability[i] = string(a)
		}
		rows = append(rows, []string{
			u.ID, u.Name, u.Email, u.Location,
			strings.Join(u.SkillsOffered, ";"),
			strings.Join(u.SkillsWanted, ";"),
			strings.Join(availability, ";"),
			strconv.FormatBool(u.IsPublic),
			strconv.FormatBool(u.IsAdmin),
			strconv.FormatBool(u.IsBanned),
			u.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return header, rows, nil
}

func (h *AdminHandler) swapRows(ctx context.Context) ([]string, [][]string, error) {
	swaps, err := h.service.ExportSwaps(ctx)
	if err != nil {
		return nil, nil, err
	}
	header := []string{"id", "requester_id", "requester_name", "target_id", "target_name",
		"offered_skill", "wanted_skill", "message", "status", "created_at", "updated_at"}
	rows := make([][]string, 0, len(swaps))
	for _, s := range swaps {
		rows = append(rows, []string{
			s.ID, s.RequesterID, s.RequesterName, s.TargetID, s.TargetName,
			s.OfferedSkill, s.WantedSkill, s.Message, string(s.Status),
			s.CreatedAt.UTC().Format(time.RFC3339),
			s.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return header, rows, nil
}

func (h *AdminHandler) feedbackRows(ctx context.Context) ([]string, [][]string, error) {
	list, err := h.service.ExportFeedback(ctx)
	if err != nil {
		return nil, nil, err
	}
	header := []string{"id", "swap_id", "reviewer_id", "reviewer_name", "reviewee_id",
		"reviewee_name", "rating", "comment", "anonymous", "created_at"}
	rows := make([][]string, 0, len(list))
	for _, f := range list {
		rows = append(rows, []string{
			f.ID, f.SwapID, f.ReviewerID, f.ReviewerName, f.RevieweeID, f.RevieweeName,
			strconv.Itoa(f.Rating), f.Comment, strconv.FormatBool(f.Anonymous),
			f.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return header, rows, nil
}

// csvSafe は表計算ソフトで数式として解釈される先頭文字を無効化する。
func csvSafe(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}
