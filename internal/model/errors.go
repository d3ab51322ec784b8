// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, job, profile, resume, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodeInvalidStatus       = "INVALID_STATUS"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeUserExists          = "USER_EXISTS"
	ErrCodeJobNotFound         = "JOB_NOT_FOUND"
	ErrCodeInteractionNotFound = "INTERACTION_NOT_FOUND"
	ErrCodeProfileNotFound     = "PROFILE_NOT_FOUND"
	ErrCodeResumeNotFound      = "RESUME_NOT_FOUND"
	ErrCodeDuplicateFile       = "DUPLICATE_FILE"
	ErrCodeUnsupportedFile     = "UNSUPPORTED_FILE"
	ErrCodeFileTooLarge        = "FILE_TOO_LARGE"
	ErrCodeRateLimited         = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterの秒数だけ待ってから再度お試しください。",
	}
}

// NewInvalidRequestError はリクエスト形式の不正を表すエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewValidationError は入力値の検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidStatusError は未定義のインタラクションステータスのエラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("無効なステータスです: %s", status),
		Category: "validation",
		Action:   "ステータスには clicked、applied、under_consideration のいずれかを指定してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ユーザー登録を完了してから再度お試しください。",
	}
}

// NewUserExistsError は既に登録済みのユーザーを再登録しようとした場合のエラーを生成する。
func NewUserExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeUserExists,
		Message:  "このユーザーは既に登録されています。",
		Category: "auth",
		Action:   "ログインしてご利用ください。",
	}
}

// NewJobNotFoundError は求人が見つからない場合のエラーを生成する。
func NewJobNotFoundError(jobID int64) *APIError {
	return &APIError{
		Code:     ErrCodeJobNotFound,
		Message:  fmt.Sprintf("指定された求人が見つかりません: %d", jobID),
		Category: "job",
		Action:   "求人IDを確認してください。",
	}
}

// NewInteractionNotFoundError はインタラクションが見つからない場合のエラーを生成する。
func NewInteractionNotFoundError(interactionID string) *APIError {
	return &APIError{
		Code:     ErrCodeInteractionNotFound,
		Message:  fmt.Sprintf("指定されたインタラクションが見つかりません: %s", interactionID),
		Category: "job",
		Action:   "インタラクションIDを確認してください。",
	}
}

// NewProfileNotFoundError はプロフィール未作成のエラーを生成する。
func NewProfileNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  "プロフィールがまだ作成されていません。",
		Category: "profile",
		Action:   "プロフィールを保存してから再度お試しください。",
	}
}

// NewResumeNotFoundError は履歴書ファイルが見つからない場合のエラーを生成する。
func NewResumeNotFoundError(resumeID string) *APIError {
	return &APIError{
		Code:     ErrCodeResumeNotFound,
		Message:  fmt.Sprintf("指定された履歴書が見つかりません: %s", resumeID),
		Category: "resume",
		Action:   "履歴書IDを確認してください。",
	}
}

// NewDuplicateFileError は同名ファイルが既にアップロードされている場合のエラーを生成する。
func NewDuplicateFileError(fileName string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateFile,
		Message:  fmt.Sprintf("同じ名前のファイルが既に存在します: %s", fileName),
		Category: "resume",
		Action:   "ファイル名を変更するか、既存のファイルを削除してください。",
	}
}

// NewUnsupportedFileError は許可されていないファイル形式のエラーを生成する。
func NewUnsupportedFileError(fileName string) *APIError {
	return &APIError{
		Code:     ErrCodeUnsupportedFile,
		Message:  fmt.Sprintf("サポートされていないファイル形式です: %s", fileName),
		Category: "validation",
		Action:   "PDF、DOC、DOCX、TXT形式のファイルをアップロードしてください。",
	}
}

// NewFileTooLargeError はファイルサイズ上限超過のエラーを生成する。
func NewFileTooLargeError(maxBytes int64) *APIError {
	return &APIError{
		Code:     ErrCodeFileTooLarge,
		Message:  fmt.Sprintf("ファイルサイズが上限（%dバイト）を超えています。", maxBytes),
		Category: "validation",
		Action:   "より小さいファイルをアップロードしてください。",
	}
}

// NewInternalError は上流（DB・外部API）の失敗を表すエラーを生成する。
// 上流のエラーメッセージをそのまま含める。
func NewInternalError(cause error) *APIError {
	msg := "内部エラーが発生しました。"
	if cause != nil {
		msg = fmt.Sprintf("内部エラーが発生しました: %s", cause.Error())
	}
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  msg,
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
