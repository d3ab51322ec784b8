// Package jobsource は外部求人ソースを内部の求人スキーマに正規化するアダプタを定義する。
package jobsource

import (
	"context"
	"time"

	"github.com/hitoshi/jobtrail/internal/model"
)

// Query はソースに渡す検索条件。
// MaxDaysOldが0の場合は掲載日で絞り込まない。
type Query struct {
	SearchText string
	JobType    model.JobType
	Location   string
	MaxDaysOld int
	Page       int
	PageSize   int
}

// Cutoff はMaxDaysOldから掲載日の下限を計算する。絞り込みがない場合はゼロ値を返す。
func (q Query) Cutoff(now time.Time) time.Time {
	if q.MaxDaysOld <= 0 {
		return time.Time{}
	}
	return now.Add(-time.Duration(q.MaxDaysOld) * 24 * time.Hour)
}

// Source は1つの外部求人ソース。
// 失敗時はエラーを返し、リトライは行わない。
type Source interface {
	// Name はplatform_nameとして保存されるソース名を返す。
	Name() string
	// Search は条件に一致する求人を返す。
	Search(ctx context.Context, q Query) ([]model.Job, error)
}
