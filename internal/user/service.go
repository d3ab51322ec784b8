// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/hitoshi/jobtrail/internal/model"
	"github.com/hitoshi/jobtrail/internal/repository"
	"github.com/hitoshi/jobtrail/internal/storage"
)

// BlobDeleter はユーザーのファイルを一括削除するインターフェース。
type BlobDeleter interface {
	DeletePrefix(ctx context.Context, prefix string) error
}

// Service はユーザー管理のサービス層。
// IdPのsubject識別子から内部ユーザーを解決し、登録・更新・退会を提供する。
type Service struct {
	userRepo repository.UserRepository
	blobs    BlobDeleter
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, blobs BlobDeleter) *Service {
	return &Service{
		userRepo: userRepo,
		blobs:    blobs,
	}
}

// Signup は検証済みIDからユーザーを新規登録する。
// email/nameが指定された場合はトークンの値より優先する。既に登録済みの場合はUSER_EXISTSを返す。
func (s *Service) Signup(ctx context.Context, identity model.Identity, email, name string) (*model.User, error) {
	if email = strings.TrimSpace(email); email == "" {
		email = identity.Email
	}
	if name = strings.TrimSpace(name); name == "" {
		name = identity.Name
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	u := &model.User{
		UID:   identity.UID,
		Email: email,
		Name:  name,
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewUserExistsError()
		}
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	slog.Info("ユーザーを登録しました",
		slog.String("user_id", u.ID),
	)
	return u, nil
}

// Ensure はユーザーが存在しなければ作成し、存在すればそのまま返す。
// createdは今回の呼び出しで作成されたかどうか。
func (s *Service) Ensure(ctx context.Context, identity model.Identity) (*model.User, bool, error) {
	u, created, err := s.userRepo.Ensure(ctx, identity)
	if err != nil {
		return nil, false, fmt.Errorf("ユーザーの確認に失敗しました: %w", err)
	}
	if created {
		slog.Info("ユーザーを自動作成しました",
			slog.String("user_id", u.ID),
		)
	}
	return u, created, nil
}

// Get はsubject識別子に対応するユーザーを返す。
func (s *Service) Get(ctx context.Context, uid string) (*model.User, error) {
	u, err := s.userRepo.FindByUID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}
	return u, nil
}

// ResolveID はsubject識別子から内部ユーザーIDを解決する。
func (s *Service) ResolveID(ctx context.Context, uid string) (string, error) {
	u, err := s.Get(ctx, uid)
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

// Update はユーザーのemailとnameを更新する。nilのフィールドは変更しない。
func (s *Service) Update(ctx context.Context, uid string, email, name *string) (*model.User, error) {
	u, err := s.Get(ctx, uid)
	if err != nil {
		return nil, err
	}

	newEmail, newName := u.Email, u.Name
	if email != nil {
		newEmail = strings.TrimSpace(*email)
		if err := validateEmail(newEmail); err != nil {
			return nil, err
		}
	}
	if name != nil {
		newName = strings.TrimSpace(*name)
	}

	updated, err := s.userRepo.Update(ctx, u.ID, newEmail, newName)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの更新に失敗しました: %w", err)
	}
	if updated == nil {
		return nil, model.NewUserNotFoundError()
	}
	return updated, nil
}

// Delete はユーザーを退会させる。
// インタラクション・プロフィール・履歴書メタデータはCASCADE削除され、
// その後バケット上のファイルを削除する。ファイル削除の失敗はログに記録して続行する。
func (s *Service) Delete(ctx context.Context, uid string) error {
	u, err := s.Get(ctx, uid)
	if err != nil {
		return err
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", u.ID),
	)

	if err := s.userRepo.DeleteByID(ctx, u.ID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	if s.blobs != nil {
		if err := s.blobs.DeletePrefix(ctx, storage.UserPrefix(u.ID)); err != nil {
			slog.Warn("ユーザーファイルの削除に失敗しました",
				slog.String("user_id", u.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", u.ID),
	)
	return nil
}

// validateEmail は空でないemailがアドレス形式かどうかを検証する。
func validateEmail(email string) error {
	if email == "" {
		return nil
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return model.NewValidationError("emailの形式が正しくありません")
	}
	return nil
}
