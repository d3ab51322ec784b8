package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/jobtrail/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, uid, email, name, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	user := &model.User{}
	if err := row.Scan(&user.ID, &user.UID, &user.Email, &user.Name, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
	))
	if err == sql.ErrNoRows || isInvalidText(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByUID はIdPのsubject識別子でユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByUID(ctx context.Context, uid string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE uid = $1`, uid,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by uid: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成する。IDとタイムスタンプはDBで採番した値を設定する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (uid, email, name)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		user.UID, user.Email, user.Name,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", mapPQError(err))
	}
	return nil
}

// Ensure はuidのユーザーを作成または更新する。
// xmax = 0 の行はこの文で挿入された行であり、createdの判定に使う。
// 空のemail/nameで既存の値を消さない。
func (r *PostgresUserRepo) Ensure(ctx context.Context, identity model.Identity) (*model.User, bool, error) {
	user := &model.User{}
	var created bool
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (uid, email, name)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (uid) DO UPDATE SET
		     email = COALESCE(NULLIF(EXCLUDED.email, ''), users.email),
		     name = COALESCE(NULLIF(EXCLUDED.name, ''), users.name),
		     updated_at = now()
		 RETURNING `+userColumns+`, (xmax = 0) AS created`,
		identity.UID, identity.Email, identity.Name,
	).Scan(&user.ID, &user.UID, &user.Email, &user.Name, &user.CreatedAt, &user.UpdatedAt, &created)
	if err != nil {
		return nil, false, fmt.Errorf("failed to ensure user: %w", err)
	}
	return user, created, nil
}

// Update はユーザーのemailとnameを更新する。該当行がない場合はnilを返す。
func (r *PostgresUserRepo) Update(ctx context.Context, id, email, name string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`UPDATE users SET email = $2, name = $3, updated_at = now()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, email, name,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

// DeleteByID は指定IDのユーザーを削除する。
// 関連するインタラクション・プロフィール・履歴書はCASCADE削除される。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
