package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/hitoshi/jobtrail/internal/model"
)

// bearerRealm はWWW-Authenticateヘッダーに付与するrealm。
const bearerRealm = "jobtrail"

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// エラー応答はユーザー固有の内容を含みうるためキャッシュさせない。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	if apiErr == nil {
		apiErr = model.NewInternalError(nil)
	}
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Cache-Control", "no-store")
	h.Del("Content-Disposition")
	h.Del("Content-Length")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteInternalServerError は原因を含まない内部サーバーエラーのレスポンスを書き込む。
// panicなど原因をクライアントに返せない場合に使用する。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError(nil))
}

// WriteUnauthorized は401レスポンスを書き込む。
// トークンが提示されたが無効だった場合はRFC 6750のinvalid_tokenを付ける。
func WriteUnauthorized(w http.ResponseWriter, tokenPresented bool) {
	challenge := `Bearer realm="` + bearerRealm + `"`
	if tokenPresented {
		challenge += `, error="invalid_token"`
	}
	w.Header().Set("WWW-Authenticate", challenge)
	WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
}

// WriteTooManyRequests は429レスポンスを書き込む。retryAfterSecは1未満の場合1に切り上げる。
func WriteTooManyRequests(w http.ResponseWriter, retryAfterSec int) {
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitedError())
}
