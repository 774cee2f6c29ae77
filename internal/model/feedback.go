// Package model はドメインモデルを定義する。
package model

import "time"

// AnonymousReviewerName は匿名フィードバックで表示する投稿者名。
const AnonymousReviewerName = "Anonymous"

// 評価値の範囲。
const (
	MinRating = 1
	MaxRating = 5
)

// Feedback は完了したスワップに対する評価を表す。作成後は変更しない。
// 匿名の場合もReviewerIDには実際の投稿者を保持し、ReviewerNameのみ匿名化する。
type Feedback struct {
	ID           string
	SwapID       string
	ReviewerID   string
	ReviewerName string
	RevieweeID   string
	RevieweeName string
	Rating       int
	Comment      string
	Anonymous    bool
	CreatedAt    time.Time
}

// RatingSummary はユーザーが受け取った評価の集計を表す。
// 評価が1件もない場合はCount=0、Mean=0。
type RatingSummary struct {
	Count int
	Mean  float64
}
