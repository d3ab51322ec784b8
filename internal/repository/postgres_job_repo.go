package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/jobtrail/internal/model"
)

// PostgresJobRepo はPostgreSQLを使用した求人リポジトリ。
type PostgresJobRepo struct {
	db *sql.DB
}

// NewPostgresJobRepo はPostgresJobRepoを生成する。
func NewPostgresJobRepo(db *sql.DB) *PostgresJobRepo {
	return &PostgresJobRepo{db: db}
}

const jobColumns = `job_id, external_job_id, title, company, location, job_type,
	posted_at, description, platform_name, link, is_active, created_at`

// scanJobInto は jobColumns の順でスキャンする。
func scanJobInto(row interface{ Scan(...any) error }, job *model.Job, extra ...any) error {
	var postedAt sql.NullTime
	var jobType string
	dest := []any{
		&job.ID, &job.ExternalJobID, &job.Title, &job.Company, &job.Location, &jobType,
		&postedAt, &job.Description, &job.PlatformName, &job.Link, &job.IsActive, &job.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	job.JobType = model.JobType(jobType)
	if postedAt.Valid {
		t := postedAt.Time
		job.PostedAt = &t
	}
	return nil
}

// likeEscaper はILIKEのワイルドカード文字をエスケープする。
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// buildJobWhere は検索条件からWHERE句と引数を組み立てる。
// 引数のプレースホルダは$1から順に採番する。有効な求人のみを対象とする。
func buildJobWhere(criteria JobCriteria) (string, []interface{}) {
	conds := []string{"is_active = true"}
	var args []interface{}

	if text := strings.TrimSpace(criteria.SearchText); text != "" {
		args = append(args, "%"+likeEscaper.Replace(text)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", n, n))
	}
	if criteria.JobType != "" {
		args = append(args, criteria.JobType)
		conds = append(conds, fmt.Sprintf("job_type = $%d", len(args)))
	}
	if criteria.Location != "" {
		args = append(args, criteria.Location)
		conds = append(conds, fmt.Sprintf("location = $%d", len(args)))
	}
	if criteria.PostedAfter != nil {
		args = append(args, *criteria.PostedAfter)
		conds = append(conds, fmt.Sprintf("posted_at >= $%d", len(args)))
	}

	return " WHERE " + strings.Join(conds, " AND "), args
}

// FindByID は指定IDの求人を取得する。見つからない場合はnilを返す。
func (r *PostgresJobRepo) FindByID(ctx context.Context, id int64) (*model.Job, error) {
	job := &model.Job{}
	err := scanJobInto(r.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE job_id = $1`, id,
	), job)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("求人の取得に失敗しました: %w", err)
	}
	return job, nil
}

// Count は条件に一致する有効な求人数を返す。
func (r *PostgresJobRepo) Count(ctx context.Context, criteria JobCriteria) (int, error) {
	where, args := buildJobWhere(criteria)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM jobs`+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("求人数の取得に失敗しました: %w", err)
	}
	return total, nil
}

// Search は条件に一致する有効な求人をposted_at降順で返す。
func (r *PostgresJobRepo) Search(ctx context.Context, criteria JobCriteria, limit, offset int) ([]model.Job, error) {
	where, args := buildJobWhere(criteria)
	args = append(args, limit, offset)
	query := fmt.Sprintf(
		`SELECT %s FROM jobs%s ORDER BY posted_at DESC NULLS LAST, job_id DESC LIMIT $%d OFFSET $%d`,
		jobColumns, where, len(args)-1, len(args),
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("求人一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	jobs := make([]model.Job, 0, limit)
	for rows.Next() {
		var job model.Job
		if err := scanJobInto(rows, &job); err != nil {
			return nil, fmt.Errorf("求人のスキャンに失敗しました: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("求人一覧の読み取りに失敗しました: %w", err)
	}
	return jobs, nil
}

const upsertJobSQL = `
	INSERT INTO jobs (external_job_id, title, company, location, job_type,
	                  posted_at, description, platform_name, link)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (platform_name, external_job_id) DO UPDATE SET is_active = true
	RETURNING ` + jobColumns

// UpsertBatch は求人を1トランザクションで冪等に保存する。
// 既存の求人は内容を変更せずis_activeのみtrueに戻す。
// 値が列に収まらない等のデータ不正な行は行単位のセーブポイントで取り消してスキップし、
// 残りの行の保存を続ける。
func (r *PostgresJobRepo) UpsertBatch(ctx context.Context, jobs []model.Job) ([]model.Job, error) {
	if len(jobs) == 0 {
		return nil, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertJobSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare job upsert: %w", err)
	}
	defer stmt.Close()

	saved := make([]model.Job, 0, len(jobs))
	for _, j := range jobs {
		if _, err := tx.ExecContext(ctx, "SAVEPOINT job_upsert"); err != nil {
			return nil, fmt.Errorf("failed to create savepoint: %w", err)
		}

		var stored model.Job
		if err := scanJobInto(stmt.QueryRowContext(ctx, jobUpsertArgs(j)...), &stored); err != nil {
			if !isInvalidRow(err) {
				return nil, fmt.Errorf("求人の保存に失敗しました (%s/%s): %w", j.PlatformName, j.ExternalJobID, err)
			}
			if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT job_upsert"); rbErr != nil {
				return nil, fmt.Errorf("failed to rollback to savepoint: %w", rbErr)
			}
			slog.Warn("保存できない求人をスキップしました",
				slog.String("platform_name", j.PlatformName),
				slog.Int("external_job_id_length", len(j.ExternalJobID)),
				slog.String("error", err.Error()),
			)
			continue
		}

		if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT job_upsert"); err != nil {
			return nil, fmt.Errorf("failed to release savepoint: %w", err)
		}
		saved = append(saved, stored)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return saved, nil
}

// jobUpsertArgs は upsertJobSQL のプレースホルダに対応する引数を返す。
func jobUpsertArgs(j model.Job) []any {
	var postedAt sql.NullTime
	if j.PostedAt != nil {
		postedAt = sql.NullTime{Time: *j.PostedAt, Valid: true}
	}
	jobType := j.JobType
	if jobType == "" {
		jobType = model.JobTypeFullTime
	}
	return []any{
		j.ExternalJobID, j.Title, j.Company, j.Location, string(jobType),
		postedAt, j.Description, j.PlatformName, j.Link,
	}
}

// compile-time interface check
var _ JobRepository = (*PostgresJobRepo)(nil)
