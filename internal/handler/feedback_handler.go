package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/skillswap/internal/feedback"
	"github.com/hitoshi/skillswap/internal/model"
)

// FeedbackServiceInterface はフィードバックハンドラーが必要とするサービスインターフェース。
type FeedbackServiceInterface interface {
	Submit(ctx context.Context, in feedback.SubmitInput) (*model.Feedback, error)
	GivenBy(ctx context.Context, reviewerID string) ([]*model.Feedback, error)
	RecentFor(ctx context.Context, userID string, limit int) ([]*model.Feedback, error)
}

// FeedbackHandler はフィードバックのHTTPハンドラー。
type FeedbackHandler struct {
	service FeedbackServiceInterface
}

// NewFeedbackHandler はFeedbackHandlerを生成する。
func NewFeedbackHandler(service FeedbackServiceInterface) *FeedbackHandler {
	return &FeedbackHandler{service: service}
}

type submitFeedbackRequest struct {
	SwapID    string `json:"swap_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
	Anonymous bool   `json:"anonymous"`
}

// Submit は完了済みスワップへのフィードバックを記録する。
// POST /api/feedback
func (h *FeedbackHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req submitFeedbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	fb, err := h.service.Submit(r.Context(), feedback.SubmitInput{
		SwapID:     req.SwapID,
		ReviewerID: userID,
		Rating:     req.Rating,
		Comment:    req.Comment,
		Anonymous:  req.Anonymous,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toFeedbackResponse(fb, viewerFrom(r)))
}

// Given は呼び出し元が投稿したフィードバックを新しい順に返す。
// GET /api/feedback/given
func (h *FeedbackHandler) Given(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	list, err := h.service.GivenBy(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"feedback": toFeedbackResponses(list, viewerFrom(r)),
	})
}
