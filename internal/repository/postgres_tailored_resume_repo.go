package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/jobtrail/internal/model"
)

// PostgresTailoredResumeRepo はPostgreSQLを使用した調整済み履歴書リポジトリ。
type PostgresTailoredResumeRepo struct {
	db *sql.DB
}

// NewPostgresTailoredResumeRepo はPostgresTailoredResumeRepoを生成する。
func NewPostgresTailoredResumeRepo(db *sql.DB) *PostgresTailoredResumeRepo {
	return &PostgresTailoredResumeRepo{db: db}
}

const tailoredResumeColumns = `id, user_id, job_id, label, file_name, file_path, file_size, content_type, created_at, updated_at`

func scanTailoredResume(row interface{ Scan(...any) error }) (*model.TailoredResume, error) {
	res := &model.TailoredResume{}
	var jobID sql.NullInt64
	if err := row.Scan(
		&res.ID, &res.UserID, &jobID, &res.Label, &res.FileName, &res.FilePath,
		&res.FileSize, &res.ContentType, &res.CreatedAt, &res.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if jobID.Valid {
		id := jobID.Int64
		res.JobID = &id
	}
	return res, nil
}

// Create はメタデータを作成する。IDとタイムスタンプはDBで採番した値を設定する。
func (r *PostgresTailoredResumeRepo) Create(ctx context.Context, resume *model.TailoredResume) error {
	var jobID sql.NullInt64
	if resume.JobID != nil {
		jobID = sql.NullInt64{Int64: *resume.JobID, Valid: true}
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO tailored_resumes (user_id, job_id, label, file_name, file_path, file_size, content_type)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		resume.UserID, jobID, resume.Label, resume.FileName, resume.FilePath, resume.FileSize, resume.ContentType,
	).Scan(&resume.ID, &resume.CreatedAt, &resume.UpdatedAt)
	if err != nil {
		return fmt.Errorf("調整済み履歴書の登録に失敗しました: %w", mapPQError(err))
	}
	return nil
}

// FindByID はユーザー所有の調整済み履歴書を取得する。見つからない場合はnilを返す。
func (r *PostgresTailoredResumeRepo) FindByID(ctx context.Context, userID, id string) (*model.TailoredResume, error) {
	res, err := scanTailoredResume(r.db.QueryRowContext(ctx,
		`SELECT `+tailoredResumeColumns+` FROM tailored_resumes WHERE id = $1 AND user_id = $2`,
		id, userID,
	))
	if err == sql.ErrNoRows || isInvalidText(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("調整済み履歴書の取得に失敗しました: %w", err)
	}
	return res, nil
}

// ListByUserID はユーザーの調整済み履歴書をcreated_at降順で返す。
func (r *PostgresTailoredResumeRepo) ListByUserID(ctx context.Context, userID string) ([]model.TailoredResume, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tailoredResumeColumns+` FROM tailored_resumes WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("調整済み履歴書一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var list []model.TailoredResume
	for rows.Next() {
		res, err := scanTailoredResume(rows)
		if err != nil {
			return nil, fmt.Errorf("調整済み履歴書のスキャンに失敗しました: %w", err)
		}
		list = append(list, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("調整済み履歴書一覧の読み取りに失敗しました: %w", err)
	}
	return list, nil
}

// UpdateLabel はラベルを更新する。該当行がない場合はnilを返す。
func (r *PostgresTailoredResumeRepo) UpdateLabel(ctx context.Context, userID, id, label string) (*model.TailoredResume, error) {
	res, err := scanTailoredResume(r.db.QueryRowContext(ctx,
		`UPDATE tailored_resumes SET label = $3, updated_at = now()
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+tailoredResumeColumns,
		id, userID, label,
	))
	if err == sql.ErrNoRows || isInvalidText(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ラベルの更新に失敗しました: %w", err)
	}
	return res, nil
}

// Delete はユーザー所有の調整済み履歴書を削除する。
func (r *PostgresTailoredResumeRepo) Delete(ctx context.Context, userID, id string) (bool, error) {
	return deleteOwned(ctx, r.db, "tailored_resumes", userID, id)
}

// compile-time interface check
var _ TailoredResumeRepository = (*PostgresTailoredResumeRepo)(nil)
