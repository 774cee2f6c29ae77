// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はユーザーが入力する自由記述（表示名、所在地、スキル名、
// スワップのメッセージ、フィードバックのコメント）からマークアップを取り除く。
// bluemondayのStrictPolicyで全タグを除去し、保存値はプレーンテキストとする。
package security

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はプレーンテキスト化のインターフェースを定義する。
type TextSanitizer interface {
	// Text はHTMLタグを除去し前後の空白を取り除いたテキストを返す。
	// maxRunesが正の場合はその文字数で切り詰める。
	Text(raw string, maxRunes int) string
	// List は各要素をTextで整形し、空要素と大文字小文字違いの重複を除いて
	// 入力順を保ったまま返す。
	List(raw []string, maxRunes int) []string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフなので1インスタンスを共有する。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Text はHTMLタグを除去したプレーンテキストを返す。
// StrictPolicyはエンティティをエスケープして返すため、保存用に元へ戻す。
func (s *textSanitizer) Text(raw string, maxRunes int) string {
	if raw == "" {
		return ""
	}
	cleaned := html.UnescapeString(s.policy.Sanitize(raw))
	cleaned = strings.TrimSpace(cleaned)
	if maxRunes > 0 && utf8.RuneCountInString(cleaned) > maxRunes {
		cleaned = strings.TrimSpace(string([]rune(cleaned)[:maxRunes]))
	}
	return cleaned
}

// List は各要素を整形し、空要素と重複を除いて返す。
func (s *textSanitizer) List(raw []string, maxRunes int) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		v := s.Text(r, maxRunes)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
