package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/jobtrail/internal/model"
)

// PostgresResumeRepo はPostgreSQLを使用した履歴書メタデータリポジトリ。
type PostgresResumeRepo struct {
	db *sql.DB
}

// NewPostgresResumeRepo はPostgresResumeRepoを生成する。
func NewPostgresResumeRepo(db *sql.DB) *PostgresResumeRepo {
	return &PostgresResumeRepo{db: db}
}

const resumeColumns = `id, user_id, label, file_name, file_path, file_size, content_type, created_at`

func scanResume(row interface{ Scan(...any) error }) (*model.Resume, error) {
	res := &model.Resume{}
	if err := row.Scan(
		&res.ID, &res.UserID, &res.Label, &res.FileName, &res.FilePath,
		&res.FileSize, &res.ContentType, &res.CreatedAt,
	); err != nil {
		return nil, err
	}
	return res, nil
}

// Create は履歴書メタデータを作成する。IDと作成日時はDBで採番した値を設定する。
func (r *PostgresResumeRepo) Create(ctx context.Context, resume *model.Resume) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO resumes (user_id, label, file_name, file_path, file_size, content_type)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		resume.UserID, resume.Label, resume.FileName, resume.FilePath, resume.FileSize, resume.ContentType,
	).Scan(&resume.ID, &resume.CreatedAt)
	if err != nil {
		return fmt.Errorf("履歴書の登録に失敗しました: %w", mapPQError(err))
	}
	return nil
}

// FindByID はユーザー所有の履歴書を取得する。見つからない場合はnilを返す。
func (r *PostgresResumeRepo) FindByID(ctx context.Context, userID, id string) (*model.Resume, error) {
	res, err := scanResume(r.db.QueryRowContext(ctx,
		`SELECT `+resumeColumns+` FROM resumes WHERE id = $1 AND user_id = $2`,
		id, userID,
	))
	if err == sql.ErrNoRows || isInvalidText(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("履歴書の取得に失敗しました: %w", err)
	}
	return res, nil
}

// ListByUserID はユーザーの履歴書をcreated_at降順で返す。
func (r *PostgresResumeRepo) ListByUserID(ctx context.Context, userID string) ([]model.Resume, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+resumeColumns+` FROM resumes WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("履歴書一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var list []model.Resume
	for rows.Next() {
		res, err := scanResume(rows)
		if err != nil {
			return nil, fmt.Errorf("履歴書のスキャンに失敗しました: %w", err)
		}
		list = append(list, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("履歴書一覧の読み取りに失敗しました: %w", err)
	}
	return list, nil
}

// Delete はユーザー所有の履歴書を削除する。
func (r *PostgresResumeRepo) Delete(ctx context.Context, userID, id string) (bool, error) {
	return deleteOwned(ctx, r.db, "resumes", userID, id)
}

// deleteOwned はuser_idが一致する行のみを削除する。tableは固定値のみを渡すこと。
func deleteOwned(ctx context.Context, db *sql.DB, table, userID, id string) (bool, error) {
	result, err := db.ExecContext(ctx,
		`DELETE FROM `+table+` WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if isInvalidText(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s の削除に失敗しました: %w", table, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// compile-time interface check
var _ ResumeRepository = (*PostgresResumeRepo)(nil)
