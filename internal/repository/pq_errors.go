package repository

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/skillswap/internal/model"
)

// pqUniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const pqUniqueViolation = pq.ErrorCode("23505")

// isUniqueViolation はerrが一意制約違反かを返す。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}
	return false
}

// isUUID はidがuuid型のカラムと比較できる形式かを返す。
// 形式外のIDをそのまま渡すとPostgreSQLが22P02を返すため、
// 検索系のメソッドは問い合わせ前に「該当なし」として扱う。
// uuid.Parseが受け付けるurn形式はuuid型の入力として受け付けられないため除く。
func isUUID(id string) bool {
	if strings.HasPrefix(strings.ToLower(id), "urn:") {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// availabilityToStrings はtext[]カラムへ書き込むために文字列スライスへ変換する。
func availabilityToStrings(tags []model.Availability) []string {
	out := make([]string, 0, len(tags))
	for _, a := range tags {
		out = append(out, string(a))
	}
	return out
}

// stringsToAvailability はtext[]カラムの値をAvailabilityへ変換する。未知の値は読み飛ばす。
func stringsToAvailability(values []string) []model.Availability {
	out := make([]model.Availability, 0, len(values))
	for _, v := range values {
		if a, ok := model.ParseAvailability(v); ok {
			out = append(out, a)
		}
	}
	return out
}
