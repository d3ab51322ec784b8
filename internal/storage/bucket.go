// Package storage は履歴書ファイルの保存先となるバケットを提供する。
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrNotFound はオブジェクトが存在しないことを表す。
var ErrNotFound = errors.New("オブジェクトが見つかりません")

// ErrInvalidKey はバケット外を指すキーを表す。
var ErrInvalidKey = errors.New("不正なオブジェクトキーです")

// Bucket はキーでバイナリを読み書きするオブジェクトストレージ。
type Bucket interface {
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// UserPrefix はユーザーのオブジェクトを格納するプレフィックスを返す。
func UserPrefix(userID string) string {
	return "user_" + userID + "/"
}

// ResumeKey は履歴書ファイルのキーを返す。
// objectIDをアップロードごとに変えることで、同名の同時アップロードが互いの本体を上書きしない。
func ResumeKey(userID, objectID, fileName string) string {
	return UserPrefix(userID) + objectID + "-" + fileName
}

// TailoredResumeKey は求人別履歴書ファイルのキーを返す。
func TailoredResumeKey(userID, objectID, fileName string) string {
	return UserPrefix(userID) + "tailored/" + objectID + "-" + fileName
}

// FSBucket はローカルディレクトリをバケットとして扱う実装。
// オブジェクトは <root>/<bucket>/<key> に保存される。
type FSBucket struct {
	dir string
}

// NewFSBucket はFSBucketを生成し、格納ディレクトリを作成する。
func NewFSBucket(root, bucket string) (*FSBucket, error) {
	dir := filepath.Join(root, bucket)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("バケットディレクトリの作成に失敗: %w", err)
	}
	return &FSBucket{dir: dir}, nil
}

// resolve はキーをファイルパスに変換する。バケット外を指すキーは拒否する。
func (b *FSBucket) resolve(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidKey
	}
	return filepath.Join(b.dir, filepath.FromSlash(cleaned)), nil
}

// Put はオブジェクトを書き込む。既存のオブジェクトは上書きする。
// 一時ファイルに書き込んでからリネームするため、途中で失敗しても部分的なファイルは残らない。
func (b *FSBucket) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	p, err := b.resolve(key)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return 0, fmt.Errorf("ディレクトリの作成に失敗: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("一時ファイルの作成に失敗: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("オブジェクトの書き込みに失敗: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("オブジェクトの書き込みに失敗: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return 0, fmt.Errorf("オブジェクトの保存に失敗: %w", err)
	}
	return n, nil
}

// Get はオブジェクトを読み出す。存在しない場合はErrNotFoundを返す。
func (b *FSBucket) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := b.resolve(key)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("オブジェクトの読み出しに失敗: %w", err)
	}
	return f, nil
}

// Delete はオブジェクトを削除する。存在しない場合は何もしない。
func (b *FSBucket) Delete(ctx context.Context, key string) error {
	p, err := b.resolve(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("オブジェクトの削除に失敗: %w", err)
	}
	return nil
}

// DeletePrefix はプレフィックス配下のオブジェクトをすべて削除する。
// プレフィックスは "/" で終わるディレクトリ単位で指定する。
func (b *FSBucket) DeletePrefix(ctx context.Context, prefix string) error {
	if !strings.HasSuffix(prefix, "/") {
		return ErrInvalidKey
	}
	p, err := b.resolve(strings.TrimSuffix(prefix, "/"))
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.RemoveAll(p); err != nil {
		return fmt.Errorf("オブジェクトの一括削除に失敗: %w", err)
	}
	return nil
}

// compile-time interface check
var _ Bucket = (*FSBucket)(nil)
