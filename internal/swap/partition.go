package swap

import "github.com/hitoshi/skillswap/internal/model"

// Bucket はダッシュボードでスワップリクエストを振り分ける区分。
type Bucket string

const (
	// BucketReceived は自分宛てで回答待ちのリクエスト。
	BucketReceived Bucket = "received"
	// BucketSent は自分が送って回答待ちのリクエスト。
	BucketSent Bucket = "sent"
	// BucketActive は承諾済みで完了待ちのリクエスト。
	BucketActive Bucket = "active"
	// BucketClosed は拒否または完了したリクエスト。
	BucketClosed Bucket = "closed"
)

// ParseBucket は文字列をBucketに変換する。
func ParseBucket(s string) (Bucket, bool) {
	switch b := Bucket(s); b {
	case BucketReceived, BucketSent, BucketActive, BucketClosed:
		return b, true
	default:
		return "", false
	}
}

// Classify はuserIDから見たスワップの区分を返す。当事者でない場合はfalseを返す。
func Classify(s *model.SwapRequest, userID string) (Bucket, bool) {
	role := s.RoleOf(userID)
	if role == model.SwapRoleOutsider {
		return "", false
	}

	switch s.Status {
	case model.SwapStatusPending:
		if role == model.SwapRoleTarget {
			return BucketReceived, true
		}
		return BucketSent, true
	case model.SwapStatusAccepted:
		return BucketActive, true
	default:
		return BucketClosed, true
	}
}

// Filter はswapsのうちbucketに属するものを順序を保って返す。
func Filter(swaps []*model.SwapRequest, userID string, bucket Bucket) []*model.SwapRequest {
	out := make([]*model.SwapRequest, 0, len(swaps))
	for _, s := range swaps {
		if b, ok := Classify(s, userID); ok && b == bucket {
			out = append(out, s)
		}
	}
	return out
}

// Partition はswapsをuserIDから見た区分ごとに振り分ける。各区分内の順序は保つ。
func Partition(swaps []*model.SwapRequest, userID string) map[Bucket][]*model.SwapRequest {
	out := map[Bucket][]*model.SwapRequest{
		BucketReceived: {},
		BucketSent:     {},
		BucketActive:   {},
		BucketClosed:   {},
	}
	for _, s := range swaps {
		if b, ok := Classify(s, userID); ok {
			out[b] = append(out[b], s)
		}
	}
	return out
}
