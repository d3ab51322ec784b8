package model

import "time"

// InteractionStatus はユーザーと求人の関係を表す。
type InteractionStatus string

const (
	// StatusClicked は求人を閲覧した状態。
	StatusClicked InteractionStatus = "clicked"
	// StatusApplied は応募済みの状態。
	StatusApplied InteractionStatus = "applied"
	// StatusUnderConsideration は選考中の状態。
	StatusUnderConsideration InteractionStatus = "under_consideration"
)

// Valid はステータスが定義済みの値かどうかを返す。
func (s InteractionStatus) Valid() bool {
	switch s {
	case StatusClicked, StatusApplied, StatusUnderConsideration:
		return true
	default:
		return false
	}
}

// Interaction はユーザーの求人に対するインタラクションを表す。
// (UserID, JobID) ごとに高々1件のみ存在する。
type Interaction struct {
	ID            string
	UserID        string
	JobID         int64
	ExternalJobID string
	Status        InteractionStatus
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// InteractionWithJob はインタラクションと求人情報を結合したモデル。
type InteractionWithJob struct {
	Interaction
	Job Job
}

// InteractionCounts はステータスごとのインタラクション件数。
type InteractionCounts struct {
	Clicked            int
	Applied            int
	UnderConsideration int
	Total              int
}

// ManualJob は手動で登録する求人の入力値。
type ManualJob struct {
	Title       string
	Company     string
	Location    string
	Link        string
	Description string
	Notes       string
}
