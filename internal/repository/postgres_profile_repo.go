package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/jobtrail/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

func scanProfile(row interface{ Scan(...any) error }) (*model.Profile, error) {
	p := &model.Profile{}
	var data []byte
	if err := row.Scan(&p.ID, &p.UserID, &data, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.ResumeData = json.RawMessage(data)
	return p, nil
}

// FindByUserID はユーザーのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	p, err := scanProfile(r.db.QueryRowContext(ctx,
		`SELECT id, user_id, resume_data, created_at, updated_at FROM profile WHERE user_id = $1`,
		userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	return p, nil
}

// Upsert はプロフィールを1文で作成または上書きする。
func (r *PostgresProfileRepo) Upsert(ctx context.Context, userID string, data json.RawMessage) (*model.Profile, error) {
	p, err := scanProfile(r.db.QueryRowContext(ctx,
		`INSERT INTO profile (user_id, resume_data)
		 VALUES ($1, $2::jsonb)
		 ON CONFLICT (user_id) DO UPDATE SET
		     resume_data = EXCLUDED.resume_data,
		     updated_at = now()
		 RETURNING id, user_id, resume_data, created_at, updated_at`,
		userID, string(data),
	))
	if err != nil {
		return nil, fmt.Errorf("プロフィールの保存に失敗しました: %w", mapPQError(err))
	}
	return p, nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
