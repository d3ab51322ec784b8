// Package interaction はユーザーと求人のインタラクション管理を提供する。
package interaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/jobtrail/internal/metrics"
	"github.com/hitoshi/jobtrail/internal/model"
	"github.com/hitoshi/jobtrail/internal/repository"
)

// UserResolver はIdPのsubject識別子から内部ユーザーIDを解決する。
type UserResolver interface {
	ResolveID(ctx context.Context, uid string) (string, error)
}

// URLValidator は外部URLの安全性を検証する。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// Service はインタラクション管理のサービス層。
type Service struct {
	users     UserResolver
	repo      repository.InteractionRepository
	validator URLValidator
	metrics   metrics.MetricsCollector
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(users UserResolver, repo repository.InteractionRepository, validator URLValidator, mc metrics.MetricsCollector) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		users:     users,
		repo:      repo,
		validator: validator,
		metrics:   mc,
		now:       time.Now,
	}
}

// Record はユーザーが求人を閲覧したことを記録する。
// 既にインタラクションがある場合は既存の行を変更せずに返し、createdはfalseになる。
// external_job_idは求人から取得する。externalJobIDは省略でき、指定時は求人の値と一致しなければならない。
func (s *Service) Record(ctx context.Context, uid string, jobID int64, externalJobID string) (*model.Interaction, bool, error) {
	if jobID <= 0 {
		return nil, false, model.NewValidationError("job_idは必須です")
	}

	userID, err := s.users.ResolveID(ctx, uid)
	if err != nil {
		return nil, false, err
	}

	in, created, err := s.repo.InsertIfAbsent(ctx, userID, jobID, strings.TrimSpace(externalJobID), model.StatusClicked)
	if err != nil {
		if errors.Is(err, repository.ErrReferenceNotFound) {
			return nil, false, model.NewJobNotFoundError(jobID)
		}
		if errors.Is(err, repository.ErrReferenceMismatch) {
			return nil, false, model.NewValidationError("external_job_idがjob_idの求人と一致しません")
		}
		return nil, false, fmt.Errorf("インタラクションの記録に失敗しました: %w", err)
	}
	if created {
		s.metrics.RecordInteractionRecorded(string(in.Status))
	}
	return in, created, nil
}

// CreateManual はユーザーが手動で入力した求人と応募済みインタラクションを作成する。
// タイトル・会社名・勤務地・リンクは必須で、リンクはhttp(s)の安全なURLでなければならない。
func (s *Service) CreateManual(ctx context.Context, uid string, in model.ManualJob) (*model.InteractionWithJob, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Company = strings.TrimSpace(in.Company)
	in.Location = strings.TrimSpace(in.Location)
	in.Link = strings.TrimSpace(in.Link)

	var missing []string
	for _, f := range []struct{ name, value string }{
		{"title", in.Title},
		{"company", in.Company},
		{"location", in.Location},
		{"link", in.Link},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, model.NewValidationError(strings.Join(missing, ", ") + " は必須です")
	}
	if err := s.validateLink(in.Link); err != nil {
		return nil, err
	}

	userID, err := s.users.ResolveID(ctx, uid)
	if err != nil {
		return nil, err
	}

	postedAt := s.now().UTC()
	job := model.Job{
		ExternalJobID: uuid.NewString(),
		Title:         in.Title,
		Company:       in.Company,
		Location:      in.Location,
		JobType:       model.JobTypeManual,
		PostedAt:      &postedAt,
		Description:   in.Description,
		PlatformName:  model.PlatformManual,
		Link:          in.Link,
		IsActive:      true,
	}

	result, err := s.repo.CreateManual(ctx, userID, job, in.Notes)
	if err != nil {
		return nil, fmt.Errorf("手動求人の作成に失敗しました: %w", err)
	}

	s.metrics.RecordInteractionRecorded(string(result.Status))
	slog.Info("手動求人を登録しました",
		slog.String("user_id", userID),
		slog.Int64("job_id", result.Job.ID),
	)
	return result, nil
}

// Update はインタラクションのステータスとメモを上書きする。
// ステータス間の遷移に制約はない。
func (s *Service) Update(ctx context.Context, uid, interactionID string, status, notes *string) (*model.Interaction, error) {
	if _, err := uuid.Parse(interactionID); err != nil {
		return nil, model.NewInteractionNotFoundError(interactionID)
	}

	var newStatus *model.InteractionStatus
	if status != nil {
		st, err := parseStatus(*status)
		if err != nil {
			return nil, err
		}
		newStatus = &st
	}

	userID, err := s.users.ResolveID(ctx, uid)
	if err != nil {
		return nil, err
	}

	in, err := s.repo.Update(ctx, userID, interactionID, newStatus, notes)
	if err != nil {
		return nil, fmt.Errorf("インタラクションの更新に失敗しました: %w", err)
	}
	if in == nil {
		return nil, model.NewInteractionNotFoundError(interactionID)
	}
	return in, nil
}

// Delete はユーザー所有のインタラクションを削除する。
func (s *Service) Delete(ctx context.Context, uid, interactionID string) error {
	if _, err := uuid.Parse(interactionID); err != nil {
		return model.NewInteractionNotFoundError(interactionID)
	}

	userID, err := s.users.ResolveID(ctx, uid)
	if err != nil {
		return err
	}

	deleted, err := s.repo.Delete(ctx, userID, interactionID)
	if err != nil {
		return fmt.Errorf("インタラクションの削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewInteractionNotFoundError(interactionID)
	}
	return nil
}

// List はユーザーのインタラクションを求人情報付きで新しい順に返す。
// statusが空でない場合はそのステータスのみに絞り込む。
func (s *Service) List(ctx context.Context, uid, status string) ([]model.InteractionWithJob, error) {
	var filter *model.InteractionStatus
	if status = strings.TrimSpace(status); status != "" {
		st, err := parseStatus(status)
		if err != nil {
			return nil, err
		}
		filter = &st
	}

	userID, err := s.users.ResolveID(ctx, uid)
	if err != nil {
		return nil, err
	}

	list, err := s.repo.ListByUserID(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("インタラクション一覧の取得に失敗しました: %w", err)
	}
	if list == nil {
		list = []model.InteractionWithJob{}
	}
	return list, nil
}

// Counts はステータスごとのインタラクション件数を返す。
// 未知のステータスは無視し、合計は既知のステータスの件数の和とする。
func (s *Service) Counts(ctx context.Context, uid string) (*model.InteractionCounts, error) {
	userID, err := s.users.ResolveID(ctx, uid)
	if err != nil {
		return nil, err
	}

	raw, err := s.repo.CountByStatus(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("インタラクション件数の取得に失敗しました: %w", err)
	}

	counts := &model.InteractionCounts{}
	for status, n := range raw {
		switch model.InteractionStatus(status) {
		case model.StatusClicked:
			counts.Clicked += n
		case model.StatusApplied:
			counts.Applied += n
		case model.StatusUnderConsideration:
			counts.UnderConsideration += n
		default:
			continue
		}
		counts.Total += n
	}
	return counts, nil
}

// validateLink はリンクがhttp(s)の絶対URLであり、SSRF検証を通過することを確認する。
func (s *Service) validateLink(link string) error {
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return model.NewValidationError("linkはhttpまたはhttpsのURLで指定してください")
	}
	if s.validator != nil {
		if err := s.validator.ValidateURL(link); err != nil {
			return model.NewValidationError("linkに指定できないURLです")
		}
	}
	return nil
}

func parseStatus(raw string) (model.InteractionStatus, error) {
	st := model.InteractionStatus(strings.TrimSpace(raw))
	if !st.Valid() {
		return "", model.NewInvalidStatusError(raw)
	}
	return st, nil
}
