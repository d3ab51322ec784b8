package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/jobtrail/internal/model"
)

// PostgresInteractionRepo はPostgreSQLを使用したインタラクションリポジトリ。
type PostgresInteractionRepo struct {
	db *sql.DB
}

// NewPostgresInteractionRepo はPostgresInteractionRepoを生成する。
func NewPostgresInteractionRepo(db *sql.DB) *PostgresInteractionRepo {
	return &PostgresInteractionRepo{db: db}
}

const interactionColumns = `interaction_id, user_id, job_id, external_job_id, status, notes, created_at, updated_at`

const interactionWithJobColumns = `i.interaction_id, i.user_id, i.job_id, i.external_job_id, i.status, i.notes,
	i.created_at, i.updated_at,
	j.job_id, j.external_job_id, j.title, j.company, j.location, j.job_type,
	j.posted_at, j.description, j.platform_name, j.link, j.is_active, j.created_at`

func scanInteraction(row interface{ Scan(...any) error }) (*model.Interaction, error) {
	in := &model.Interaction{}
	var status string
	var notes sql.NullString
	if err := row.Scan(
		&in.ID, &in.UserID, &in.JobID, &in.ExternalJobID, &status, &notes,
		&in.CreatedAt, &in.UpdatedAt,
	); err != nil {
		return nil, err
	}
	in.Status = model.InteractionStatus(status)
	in.Notes = nullStringValue(notes)
	return in, nil
}

// scanInteractionWithJob は interactionWithJobColumns の順でスキャンする。
// インタラクション部分を先に読み、残りを求人としてscanJobIntoに渡す。
func scanInteractionWithJob(row interface{ Scan(...any) error }) (*model.InteractionWithJob, error) {
	iwj := &model.InteractionWithJob{}
	var status string
	var notes sql.NullString
	err := scanJobInto(reorderedRow{row: row, lead: []any{
		&iwj.ID, &iwj.UserID, &iwj.JobID, &iwj.ExternalJobID, &status, &notes,
		&iwj.CreatedAt, &iwj.UpdatedAt,
	}}, &iwj.Job)
	if err != nil {
		return nil, err
	}
	iwj.Status = model.InteractionStatus(status)
	iwj.Notes = nullStringValue(notes)
	return iwj, nil
}

// reorderedRow はScanの宛先の前にleadを差し込む。
type reorderedRow struct {
	row  interface{ Scan(...any) error }
	lead []any
}

func (r reorderedRow) Scan(dest ...any) error {
	return r.row.Scan(append(append([]any{}, r.lead...), dest...)...)
}

// InsertIfAbsent は (user_id, job_id) の行が無い場合のみ作成する。
// external_job_idは求人の行から取得し、呼び出し側の値は一致確認にのみ使う。
// 競合時は1文で挿入を諦め、既存行を読み直して返す。
func (r *PostgresInteractionRepo) InsertIfAbsent(
	ctx context.Context,
	userID string,
	jobID int64,
	externalJobID string,
	status model.InteractionStatus,
) (*model.Interaction, bool, error) {
	in, err := scanInteraction(r.db.QueryRowContext(ctx,
		`INSERT INTO user_job_interactions (user_id, job_id, external_job_id, status)
		 SELECT $1::uuid, j.job_id, j.external_job_id, $4::varchar
		   FROM jobs j
		  WHERE j.job_id = $2 AND ($3::text = '' OR j.external_job_id = $3::text)
		 ON CONFLICT (user_id, job_id) DO NOTHING
		 RETURNING `+interactionColumns,
		userID, jobID, externalJobID, string(status),
	))
	if err == nil {
		return in, true, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, fmt.Errorf("インタラクションの作成に失敗しました: %w", mapPQError(err))
	}

	existing, err := scanInteraction(r.db.QueryRowContext(ctx,
		`SELECT `+interactionColumns+` FROM user_job_interactions WHERE user_id = $1 AND job_id = $2`,
		userID, jobID,
	))
	if err == nil {
		if externalJobID != "" && existing.ExternalJobID != externalJobID {
			return nil, false, ErrReferenceMismatch
		}
		return existing, false, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, fmt.Errorf("既存インタラクションの取得に失敗しました: %w", err)
	}

	// 挿入も既存行もない場合は、求人が無いか外部IDが一致しない
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM jobs WHERE job_id = $1)`, jobID,
	).Scan(&exists); err != nil {
		return nil, false, fmt.Errorf("求人の存在確認に失敗しました: %w", err)
	}
	if !exists {
		return nil, false, ErrReferenceNotFound
	}
	return nil, false, ErrReferenceMismatch
}

// Update はユーザー所有のインタラクションを上書き更新する。nilのフィールドは変更しない。
func (r *PostgresInteractionRepo) Update(
	ctx context.Context,
	userID, interactionID string,
	status *model.InteractionStatus,
	notes *string,
) (*model.Interaction, error) {
	var statusArg, notesArg sql.NullString
	if status != nil {
		statusArg = sql.NullString{String: string(*status), Valid: true}
	}
	if notes != nil {
		notesArg = sql.NullString{String: *notes, Valid: true}
	}

	in, err := scanInteraction(r.db.QueryRowContext(ctx,
		`UPDATE user_job_interactions
		 SET status = COALESCE($3, status),
		     notes = COALESCE($4, notes),
		     updated_at = now()
		 WHERE interaction_id = $1 AND user_id = $2
		 RETURNING `+interactionColumns,
		interactionID, userID, statusArg, notesArg,
	))
	if err == sql.ErrNoRows || isInvalidText(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("インタラクションの更新に失敗しました: %w", err)
	}
	return in, nil
}

// Delete はユーザー所有のインタラクションを削除する。
func (r *PostgresInteractionRepo) Delete(ctx context.Context, userID, interactionID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM user_job_interactions WHERE interaction_id = $1 AND user_id = $2`,
		interactionID, userID,
	)
	if isInvalidText(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("インタラクションの削除に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// ListByUserID はユーザーのインタラクションを求人情報付きでcreated_at降順に返す。
func (r *PostgresInteractionRepo) ListByUserID(
	ctx context.Context,
	userID string,
	status *model.InteractionStatus,
) ([]model.InteractionWithJob, error) {
	query := `SELECT ` + interactionWithJobColumns + `
		FROM user_job_interactions i
		JOIN jobs j ON j.job_id = i.job_id
		WHERE i.user_id = $1`
	args := []interface{}{userID}
	if status != nil {
		query += ` AND i.status = $2`
		args = append(args, string(*status))
	}
	query += ` ORDER BY i.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("インタラクション一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var list []model.InteractionWithJob
	for rows.Next() {
		iwj, err := scanInteractionWithJob(rows)
		if err != nil {
			return nil, fmt.Errorf("インタラクションのスキャンに失敗しました: %w", err)
		}
		list = append(list, *iwj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("インタラクション一覧の読み取りに失敗しました: %w", err)
	}
	return list, nil
}

// CountByStatus はユーザーのインタラクション数をステータスごとに集計する。
func (r *PostgresInteractionRepo) CountByStatus(ctx context.Context, userID string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, count(*) FROM user_job_interactions WHERE user_id = $1 GROUP BY status`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("インタラクション数の集計に失敗しました: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("集計結果のスキャンに失敗しました: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("集計結果の読み取りに失敗しました: %w", err)
	}
	return counts, nil
}

// CreateManual は手動求人と応募済みインタラクションを同一トランザクションで作成する。
// 同じ手動求人に既にインタラクションがある場合はapplied・notesで上書きする。
func (r *PostgresInteractionRepo) CreateManual(
	ctx context.Context,
	userID string,
	job model.Job,
	notes string,
) (*model.InteractionWithJob, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var stored model.Job
	if err := scanJobInto(tx.QueryRowContext(ctx, upsertJobSQL, jobUpsertArgs(job)...), &stored); err != nil {
		return nil, fmt.Errorf("手動求人の作成に失敗しました: %w", err)
	}

	in, err := scanInteraction(tx.QueryRowContext(ctx,
		`INSERT INTO user_job_interactions (user_id, job_id, external_job_id, status, notes)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, job_id) DO UPDATE SET
		     status = EXCLUDED.status,
		     notes = EXCLUDED.notes,
		     updated_at = now()
		 RETURNING `+interactionColumns,
		userID, stored.ID, stored.ExternalJobID, string(model.StatusApplied), nullString(notes),
	))
	if err != nil {
		return nil, fmt.Errorf("応募インタラクションの作成に失敗しました: %w", mapPQError(err))
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &model.InteractionWithJob{Interaction: *in, Job: stored}, nil
}

// compile-time interface check
var _ InteractionRepository = (*PostgresInteractionRepo)(nil)
