// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hitoshi/jobtrail/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUID はIdPのsubject識別子でユーザーを取得する。見つからない場合はnilを返す。
	FindByUID(ctx context.Context, uid string) (*model.User, error)

	// Create はユーザーを作成する。uidが既に存在する場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error

	// Ensure はuidのユーザーが存在しなければ作成し、存在すればemail/nameを更新する。
	// createdは今回の呼び出しで新規作成されたかどうか。
	Ensure(ctx context.Context, identity model.Identity) (user *model.User, created bool, err error)

	// Update はユーザーのemailとnameを更新する。該当行がない場合はnilを返す。
	Update(ctx context.Context, id, email, name string) (*model.User, error)

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するインタラクション・プロフィール・履歴書はCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// JobCriteria は求人検索のSQL条件。
type JobCriteria struct {
	SearchText  string
	JobType     string
	Location    string
	PostedAfter *time.Time
}

// JobRepository は求人データの永続化インターフェース。
type JobRepository interface {
	// FindByID は指定IDの求人を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Job, error)

	// Count は条件に一致する有効な求人数を返す。
	Count(ctx context.Context, criteria JobCriteria) (int, error)

	// Search は条件に一致する有効な求人をposted_at降順で返す。
	Search(ctx context.Context, criteria JobCriteria, limit, offset int) ([]model.Job, error)

	// UpsertBatch は求人を (platform_name, external_job_id) で冪等に保存し、
	// 採番済みのIDを設定した求人を入力順で返す。既存の求人はis_activeのみ更新される。
	UpsertBatch(ctx context.Context, jobs []model.Job) ([]model.Job, error)
}

// InteractionRepository はユーザーの求人インタラクションの永続化インターフェース。
type InteractionRepository interface {
	// InsertIfAbsent は (user_id, job_id) の行が無い場合のみ作成する。
	// 既に存在する場合は既存の行をそのまま返し、createdはfalseになる。
	// external_job_idは求人の行の値を保存する。externalJobIDが空でなく求人の値と異なる場合は
	// ErrReferenceMismatch、求人が存在しない場合はErrReferenceNotFoundを返す。
	InsertIfAbsent(ctx context.Context, userID string, jobID int64, externalJobID string, status model.InteractionStatus) (interaction *model.Interaction, created bool, err error)

	// Update はユーザー所有のインタラクションを上書き更新する。nilのフィールドは変更しない。
	// 該当行がない場合はnilを返す。
	Update(ctx context.Context, userID, interactionID string, status *model.InteractionStatus, notes *string) (*model.Interaction, error)

	// Delete はユーザー所有のインタラクションを削除する。削除した場合trueを返す。
	Delete(ctx context.Context, userID, interactionID string) (bool, error)

	// ListByUserID はユーザーのインタラクションを求人情報付きでcreated_at降順に返す。
	// statusがnilでない場合はそのステータスのみに絞り込む。
	ListByUserID(ctx context.Context, userID string, status *model.InteractionStatus) ([]model.InteractionWithJob, error)

	// CountByStatus はユーザーのインタラクション数をステータスごとに集計する。
	CountByStatus(ctx context.Context, userID string) (map[string]int, error)

	// CreateManual は手動求人と応募済みインタラクションを同一トランザクションで作成する。
	CreateManual(ctx context.Context, userID string, job model.Job, notes string) (*model.InteractionWithJob, error)
}

// ProfileRepository はプロフィールの永続化インターフェース。
type ProfileRepository interface {
	// FindByUserID はユーザーのプロフィールを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)

	// Upsert はプロフィールを作成または上書きする。ユーザーごとに1行のみ存在する。
	Upsert(ctx context.Context, userID string, data json.RawMessage) (*model.Profile, error)
}

// ResumeRepository は履歴書メタデータの永続化インターフェース。
type ResumeRepository interface {
	// Create は履歴書メタデータを作成する。同名ファイルが存在する場合はErrDuplicateを返す。
	Create(ctx context.Context, resume *model.Resume) error

	// FindByID はユーザー所有の履歴書を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, userID, id string) (*model.Resume, error)

	// ListByUserID はユーザーの履歴書をcreated_at降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]model.Resume, error)

	// Delete はユーザー所有の履歴書を削除する。削除した場合trueを返す。
	Delete(ctx context.Context, userID, id string) (bool, error)
}

// TailoredResumeRepository は求人別に調整した履歴書メタデータの永続化インターフェース。
type TailoredResumeRepository interface {
	// Create はメタデータを作成する。同名ファイルが存在する場合はErrDuplicateを返す。
	// 求人が存在しない場合はErrReferenceNotFoundを返す。
	Create(ctx context.Context, resume *model.TailoredResume) error

	// FindByID はユーザー所有の調整済み履歴書を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, userID, id string) (*model.TailoredResume, error)

	// ListByUserID はユーザーの調整済み履歴書をcreated_at降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]model.TailoredResume, error)

	// UpdateLabel はラベルを更新する。該当行がない場合はnilを返す。
	UpdateLabel(ctx context.Context, userID, id, label string) (*model.TailoredResume, error)

	// Delete はユーザー所有の調整済み履歴書を削除する。削除した場合trueを返す。
	Delete(ctx context.Context, userID, id string) (bool, error)
}
