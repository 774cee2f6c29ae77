package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/skillswap/internal/model"
	"github.com/hitoshi/skillswap/internal/swap"
)

// SwapServiceInterface はスワップハンドラーが必要とするサービスインターフェース。
type SwapServiceInterface interface {
	Create(ctx context.Context, in swap.CreateInput) (*model.SwapRequest, error)
	UpdateStatus(ctx context.Context, callerID, swapID, status string) (*model.SwapRequest, error)
	Get(ctx context.Context, caller swap.Caller, swapID string) (*model.SwapRequest, error)
	ListForUser(ctx context.Context, userID string) ([]*model.SwapRequest, error)
}

// SwapHandler はスワップリクエストのHTTPハンドラー。
type SwapHandler struct {
	service SwapServiceInterface
}

// NewSwapHandler はSwapHandlerを生成する。
func NewSwapHandler(service SwapServiceInterface) *SwapHandler {
	return &SwapHandler{service: service}
}

// createSwapRequest はスワップ作成リクエストのボディ。
// requester_idは省略可能で、指定する場合は呼び出し元と一致しなければならない。
type createSwapRequest struct {
	RequesterID  string `json:"requester_id"`
	TargetID     string `json:"target_id"`
	OfferedSkill string `json:"offered_skill"`
	WantedSkill  string `json:"wanted_skill"`
	Message      string `json:"message"`
}

type updateSwapStatusRequest struct {
	Status string `json:"status"`
}

// swapListResponse はスワップ一覧のAPIレスポンス。countsは区分ごとの件数。
type swapListResponse struct {
	Swaps  []swapResponse `json:"swaps"`
	Counts map[string]int `json:"counts"`
}

// Create はスワップリクエストを作成する。
// POST /api/swaps
func (h *SwapHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createSwapRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RequesterID != "" && req.RequesterID != userID {
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewForbiddenError("他のユーザーとしてリクエストを送ることはできません"))
		return
	}

	created, err := h.service.Create(r.Context(), swap.CreateInput{
		RequesterID:  userID,
		TargetID:     req.TargetID,
		OfferedSkill: req.OfferedSkill,
		WantedSkill:  req.WantedSkill,
		Message:      req.Message,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSwapResponse(created))
}

// List は呼び出し元が当事者のスワップリクエストを新しい順に返す。
// GET /api/swaps?view=received|sent|active|closed
func (h *SwapHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var bucket swap.Bucket
	if v := r.URL.Query().Get("view"); v != "" {
		b, valid := swap.ParseBucket(v)
		if !valid {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("viewはreceived、sent、active、closedのいずれかを指定してください"))
			return
		}
		bucket = b
	}

	swaps, err := h.service.ListForUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	parts := swap.Partition(swaps, userID)
	counts := make(map[string]int, len(parts))
	for b, list := range parts {
		counts[string(b)] = len(list)
	}

	if bucket != "" {
		swaps = parts[bucket]
	}

	writeJSON(w, http.StatusOK, swapListResponse{
		Swaps:  toSwapResponses(swaps),
		Counts: counts,
	})
}

// Get はスワップリクエストの詳細を返す。
// GET /api/swaps/{id}
func (h *SwapHandler) Get(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFrom(r)
	if viewer.UserID == "" {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	s, err := h.service.Get(r.Context(), swap.Caller{UserID: viewer.UserID, IsAdmin: viewer.IsAdmin}, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSwapResponse(s))
}

// UpdateStatus はスワップリクエストのステータスを変更する。
// PATCH /api/swaps/{id}
func (h *SwapHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateSwapStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.service.UpdateStatus(r.Context(), userID, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSwapResponse(updated))
}
