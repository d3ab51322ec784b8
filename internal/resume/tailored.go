package resume

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/hitoshi/jobtrail/internal/model"
	"github.com/hitoshi/jobtrail/internal/repository"
	"github.com/hitoshi/jobtrail/internal/storage"
)

// UploadTailored は求人別に調整した履歴書ファイルを保存する。jobIDは任意。
func (s *Service) UploadTailored(ctx context.Context, uid string, in Upload, jobID *int64) (*model.TailoredResume, error) {
	name, contentType, err := s.checkUpload(in)
	if err != nil {
		return nil, err
	}
	if jobID != nil && *jobID <= 0 {
		return nil, model.NewValidationError("job_idが不正です")
	}
	userID, err := s.users.ResolveID(ctx, uid)
	if err != nil {
		return nil, err
	}

	existing, err := s.tailored.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("調整済み履歴書一覧の取得に失敗しました: %w", err)
	}
	for _, r := range existing {
		if r.FileName == name {
			return nil, model.NewDuplicateFileError(name)
		}
	}

	key := storage.TailoredResumeKey(userID, s.newObjectID(), name)
	size, err := s.putBlob(ctx, key, in.Content)
	if err != nil {
		return nil, err
	}

	r := &model.TailoredResume{
		UserID:      userID,
		JobID:       jobID,
		Label:       strings.TrimSpace(in.Label),
		FileName:    name,
		FilePath:    key,
		FileSize:    size,
		ContentType: contentType,
	}
	if err := s.tailored.Create(ctx, r); err != nil {
		s.removeBlob(ctx, key)
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewDuplicateFileError(name)
		}
		if errors.Is(err, repository.ErrReferenceNotFound) && jobID != nil {
			return nil, model.NewJobNotFoundError(*jobID)
		}
		return nil, fmt.Errorf("調整済み履歴書メタデータの保存に失敗しました: %w", err)
	}
	return r, nil
}

// ListTailored はユーザーの調整済み履歴書一覧を返す。
func (s *Service) ListTailored(ctx context.Context, uid string) ([]model.TailoredResume, error) {
	userID, err := s.users.ResolveID(ctx, uid)
	if err != nil {
		return nil, err
	}
	list, err := s.tailored.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("調整済み履歴書一覧の取得に失敗しました: %w", err)
	}
	if list == nil {
		list = []model.TailoredResume{}
	}
	return list, nil
}

// GetTailored は調整済み履歴書のメタデータを返す。
func (s *Service) GetTailored(ctx context.Context, uid, id string) (*model.TailoredResume, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewResumeNotFoundError(id)
	}
	userID, err := s.users.ResolveID(ctx, uid)
	if err != nil {
		return nil, err
	}
	r, err := s.tailored.FindByID(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("調整済み履歴書の取得に失敗しました: %w", err)
	}
	if r == nil {
		return nil, model.NewResumeNotFoundError(id)
	}
	return r, nil
}

// OpenTailored は調整済み履歴書のメタデータとファイル本体を返す。呼び出し側は本体をCloseする。
func (s *Service) OpenTailored(ctx context.Context, uid, id string) (*model.TailoredResume, io.ReadCloser, error) {
	r, err := s.GetTailored(ctx, uid, id)
	if err != nil {
		return nil, nil, err
	}
	body, err := s.getBlob(ctx, r.FilePath, id)
	if err != nil {
		return nil, nil, err
	}
	return r, body, nil
}

// UpdateTailoredLabel は調整済み履歴書のラベルを更新する。
func (s *Service) UpdateTailoredLabel(ctx context.Context, uid, id, label string) (*model.TailoredResume, error) {
	r, err := s.GetTailored(ctx, uid, id)
	if err != nil {
		return nil, err
	}
	updated, err := s.tailored.UpdateLabel(ctx, r.UserID, id, strings.TrimSpace(label))
	if err != nil {
		return nil, fmt.Errorf("ラベルの更新に失敗しました: %w", err)
	}
	if updated == nil {
		return nil, model.NewResumeNotFoundError(id)
	}
	return updated, nil
}

// DeleteTailored は調整済み履歴書のメタデータとファイル本体を削除する。
func (s *Service) DeleteTailored(ctx context.Context, uid, id string) error {
	r, err := s.GetTailored(ctx, uid, id)
	if err != nil {
		return err
	}
	deleted, err := s.tailored.Delete(ctx, r.UserID, id)
	if err != nil {
		return fmt.Errorf("調整済み履歴書の削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewResumeNotFoundError(id)
	}
	s.removeBlob(ctx, r.FilePath)
	return nil
}
