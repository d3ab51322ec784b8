// Package resume は履歴書ファイルと求人別に調整した履歴書ファイルの管理を提供する。
// ファイル本体はバケットに、メタデータはデータベースに保存する。
package resume

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/hitoshi/jobtrail/internal/model"
	"github.com/hitoshi/jobtrail/internal/repository"
	"github.com/hitoshi/jobtrail/internal/storage"
)

// DefaultMaxSize はアップロードサイズ上限の既定値（5MiB）。
const DefaultMaxSize int64 = 5 * 1024 * 1024

// allowedExtensions は許可する拡張子とContent-Type。
var allowedExtensions = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".txt":  "text/plain; charset=utf-8",
}

// UserResolver はIdPのsubject識別子から内部ユーザーIDを解決する。
type UserResolver interface {
	ResolveID(ctx context.Context, uid string) (string, error)
}

// Upload はアップロードされたファイル。Sizeはクライアントが申告したサイズ。
type Upload struct {
	FileName string
	Label    string
	Size     int64
	Content  io.Reader
}

// Service は履歴書ファイルのサービス層。
type Service struct {
	users    UserResolver
	resumes  repository.ResumeRepository
	tailored repository.TailoredResumeRepository
	bucket   storage.Bucket
	maxSize  int64

	newObjectID func() string
}

// NewService はServiceの新しいインスタンスを生成する。
// maxSizeが0以下の場合はDefaultMaxSizeを使用する。
func NewService(
	users UserResolver,
	resumes repository.ResumeRepository,
	tailored repository.TailoredResumeRepository,
	bucket storage.Bucket,
	maxSize int64,
) *Service {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Service{
		users:    users,
		resumes:  resumes,
		tailored: tailored,
		bucket:   bucket,
		maxSize:  maxSize,

		newObjectID: uuid.NewString,
	}
}

// MaxSize はアップロードサイズの上限を返す。
func (s *Service) MaxSize() int64 { return s.maxSize }

// Upload は履歴書ファイルを保存する。
// 本体をアップロードごとに一意なキーへ先に書き込み、メタデータの保存に失敗した場合は本体を削除する。
func (s *Service) Upload(ctx context.Context, uid string, in Upload) (*model.Resume, error) {
	name, contentType, err := s.checkUpload(in)
	if err != nil {
		return nil, err
	}
	userID, err := s.users.ResolveID(ctx, uid)
	if err != nil {
		return nil, err
	}

	existing, err := s.resumes.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("履歴書一覧の取得に失敗しました: %w", err)
	}
	for _, r := range existing {
		if r.FileName == name {
			return nil, model.NewDuplicateFileError(name)
		}
	}

	key := storage.ResumeKey(userID, s.newObjectID(), name)
	size, err := s.putBlob(ctx, key, in.Content)
	if err != nil {
		return nil, err
	}

	r := &model.Resume{
		UserID:      userID,
		Label:       strings.TrimSpace(in.Label),
		FileName:    name,
		FilePath:    key,
		FileSize:    size,
		ContentType: contentType,
	}
	if err := s.resumes.Create(ctx, r); err != nil {
		s.removeBlob(ctx, key)
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewDuplicateFileError(name)
		}
		return nil, fmt.Errorf("履歴書メタデータの保存に失敗しました: %w", err)
	}
	return r, nil
}

// List はユーザーの履歴書一覧を返す。
func (s *Service) List(ctx context.Context, uid string) ([]model.Resume, error) {
	userID, err := s.users.ResolveID(ctx, uid)
	if err != nil {
		return nil, err
	}
	list, err := s.resumes.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("履歴書一覧の取得に失敗しました: %w", err)
	}
	if list == nil {
		list = []model.Resume{}
	}
	return list, nil
}

// Get は履歴書のメタデータを返す。
func (s *Service) Get(ctx context.Context, uid, id string) (*model.Resume, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewResumeNotFoundError(id)
	}
	userID, err := s.users.ResolveID(ctx, uid)
	if err != nil {
		return nil, err
	}
	r, err := s.resumes.FindByID(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("履歴書の取得に失敗しました: %w", err)
	}
	if r == nil {
		return nil, model.NewResumeNotFoundError(id)
	}
	return r, nil
}

// Open は履歴書のメタデータとファイル本体を返す。呼び出し側は本体をCloseする。
func (s *Service) Open(ctx context.Context, uid, id string) (*model.Resume, io.ReadCloser, error) {
	r, err := s.Get(ctx, uid, id)
	if err != nil {
		return nil, nil, err
	}
	body, err := s.getBlob(ctx, r.FilePath, id)
	if err != nil {
		return nil, nil, err
	}
	return r, body, nil
}

// Delete は履歴書のメタデータとファイル本体を削除する。
func (s *Service) Delete(ctx context.Context, uid, id string) error {
	r, err := s.Get(ctx, uid, id)
	if err != nil {
		return err
	}
	deleted, err := s.resumes.Delete(ctx, r.UserID, id)
	if err != nil {
		return fmt.Errorf("履歴書の削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewResumeNotFoundError(id)
	}
	s.removeBlob(ctx, r.FilePath)
	return nil
}

// checkUpload はファイル名・拡張子・申告サイズを検証し、保存するファイル名とContent-Typeを返す。
func (s *Service) checkUpload(in Upload) (string, string, error) {
	if in.Content == nil {
		return "", "", model.NewValidationError("fileは必須です")
	}
	name := baseName(in.FileName)
	if name == "" {
		return "", "", model.NewValidationError("ファイル名が不正です")
	}
	contentType, ok := allowedExtensions[strings.ToLower(path.Ext(name))]
	if !ok {
		return "", "", model.NewUnsupportedFileError(name)
	}
	if in.Size > s.maxSize {
		return "", "", model.NewFileTooLargeError(s.maxSize)
	}
	return name, contentType, nil
}

// putBlob は上限を超えない範囲で本体を書き込む。上限を超えた場合は書き込んだ本体を削除する。
func (s *Service) putBlob(ctx context.Context, key string, content io.Reader) (int64, error) {
	n, err := s.bucket.Put(ctx, key, io.LimitReader(content, s.maxSize+1))
	if err != nil {
		return 0, fmt.Errorf("ファイルの保存に失敗しました: %w", err)
	}
	if n > s.maxSize {
		s.removeBlob(ctx, key)
		return 0, model.NewFileTooLargeError(s.maxSize)
	}
	return n, nil
}

func (s *Service) getBlob(ctx context.Context, key, id string) (io.ReadCloser, error) {
	body, err := s.bucket.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, model.NewResumeNotFoundError(id)
	}
	if err != nil {
		return nil, fmt.Errorf("ファイルの読み出しに失敗しました: %w", err)
	}
	return body, nil
}

// removeBlob は本体を削除する。失敗はログに記録するのみ。
func (s *Service) removeBlob(ctx context.Context, key string) {
	if err := s.bucket.Delete(ctx, key); err != nil {
		slog.Warn("ファイルの削除に失敗しました",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

// baseName はクライアントが送ったファイル名からディレクトリ部分を除く。
func baseName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return ""
	}
	base := path.Base(name)
	if base == "." || base == "/" || base == ".." || strings.HasPrefix(base, ".") {
		return ""
	}
	return base
}
