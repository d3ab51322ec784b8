package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/hitoshi/jobtrail/internal/export"
	"github.com/hitoshi/jobtrail/internal/middleware"
	"github.com/hitoshi/jobtrail/internal/model"
)

// maxJSONBodySize はJSONリクエストボディの上限（1MiB）。
const maxJSONBodySize = 1 << 20

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// decodeJSON はリクエストボディをJSONとして読み込む。失敗した場合は400を書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodySize)).Decode(v); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return false
	}
	return true
}

// decodeOptionalJSON はdecodeJSONと同様だが、空のボディを許可する。
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodySize)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return false
	}
	return true
}

// requireUID は認証済みのsubject識別子を取得する。取得できない場合は401を書き込みfalseを返す。
func requireUID(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return "", false
	}
	return uid, true
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		if statusCode >= http.StatusInternalServerError {
			slog.Error("internal server error", slog.String("error", err.Error()))
		}
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// 未対応のエクスポート形式は本文なしの204で応答する
	if errors.Is(err, export.ErrUnsupportedFormat) {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	// APIError以外のエラーは上流のメッセージを含めて500で返す
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, model.NewInternalError(err))
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeInvalidRequest, model.ErrCodeValidationFailed,
		model.ErrCodeInvalidStatus, model.ErrCodeUnsupportedFile:
		return http.StatusBadRequest
	case model.ErrCodeUserNotFound, model.ErrCodeJobNotFound, model.ErrCodeInteractionNotFound,
		model.ErrCodeProfileNotFound, model.ErrCodeResumeNotFound:
		return http.StatusNotFound
	case model.ErrCodeUserExists, model.ErrCodeDuplicateFile:
		return http.StatusConflict
	case model.ErrCodeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeAttachment はファイルをダウンロード用レスポンスとして書き込む。
func writeAttachment(w http.ResponseWriter, fileName, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", contentDisposition(fileName))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// contentDisposition はattachmentのContent-Dispositionヘッダー値を生成する。
// 非ASCIIのファイル名はRFC 2231形式でエンコードされる。
func contentDisposition(fileName string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": fileName}); v != "" {
		return v
	}
	return "attachment"
}
