package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/jobtrail/internal/export"
	"github.com/hitoshi/jobtrail/internal/model"
)

func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  *model.APIError
		want int
	}{
		{"unauthorized", model.NewUnauthorizedError(), http.StatusUnauthorized},
		{"invalid request", model.NewInvalidRequestError("x"), http.StatusBadRequest},
		{"validation", model.NewValidationError("x"), http.StatusBadRequest},
		{"invalid status", model.NewInvalidStatusError("x"), http.StatusBadRequest},
		{"unsupported file", model.NewUnsupportedFileError("a.exe"), http.StatusBadRequest},
		{"user not found", model.NewUserNotFoundError(), http.StatusNotFound},
		{"job not found", model.NewJobNotFoundError(1), http.StatusNotFound},
		{"interaction not found", model.NewInteractionNotFoundError("i"), http.StatusNotFound},
		{"profile not found", model.NewProfileNotFoundError(), http.StatusNotFound},
		{"resume not found", model.NewResumeNotFoundError("r"), http.StatusNotFound},
		{"user exists", model.NewUserExistsError(), http.StatusConflict},
		{"duplicate file", model.NewDuplicateFileError("cv.pdf"), http.StatusConflict},
		{"file too large", model.NewFileTooLargeError(10), http.StatusRequestEntityTooLarge},
		{"rate limited", model.NewRateLimitedError(), http.StatusTooManyRequests},
		{"internal", model.NewInternalError(nil), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapAPIErrorToHTTPStatus(tt.err); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestHandleServiceError_WrappedAPIError(t *testing.T) {
	w := httptest.NewRecorder()
	handleServiceError(w, fmt.Errorf("wrap: %w", model.NewJobNotFoundError(42)))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	body := parseAPIErrorResponse(t, w)
	if body["code"] != model.ErrCodeJobNotFound {
		t.Errorf("code = %q, want %q", body["code"], model.ErrCodeJobNotFound)
	}
}

func TestHandleServiceError_UnsupportedFormat_Returns204(t *testing.T) {
	w := httptest.NewRecorder()
	handleServiceError(w, export.ErrUnsupportedFormat)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if w.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", w.Body.String())
	}
}

func TestHandleServiceError_UnknownError_IncludesUpstreamMessage(t *testing.T) {
	w := httptest.NewRecorder()
	handleServiceError(w, errors.New("connection refused"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	body := parseAPIErrorResponse(t, w)
	if body["code"] != model.ErrCodeInternal {
		t.Errorf("code = %q, want %q", body["code"], model.ErrCodeInternal)
	}
	if !strings.Contains(body["message"], "connection refused") {
		t.Errorf("message = %q, want upstream error text", body["message"])
	}
}

func TestContentDisposition(t *testing.T) {
	if got := contentDisposition("resume.pdf"); got != `attachment; filename=resume.pdf` {
		t.Errorf("got %q", got)
	}
	if got := contentDisposition("履歴書.pdf"); !strings.HasPrefix(got, "attachment; filename*=utf-8''") {
		t.Errorf("non-ASCII name should use RFC 2231 encoding, got %q", got)
	}
}

func TestDecodeOptionalJSON_EmptyBodyAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	w := httptest.NewRecorder()

	var v signupRequest
	if !decodeOptionalJSON(w, req, &v) {
		t.Fatalf("empty body should be accepted, status = %d", w.Code)
	}
}

func TestDecodeJSON_InvalidBody_Returns400(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	w := httptest.NewRecorder()

	var v signupRequest
	if decodeJSON(w, req, &v) {
		t.Fatal("expected decode failure")
	}
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
