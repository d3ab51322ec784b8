package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/jobtrail/internal/middleware"
	"github.com/hitoshi/jobtrail/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Signup(ctx context.Context, identity model.Identity, email, name string) (*model.User, error)
	Ensure(ctx context.Context, identity model.Identity) (*model.User, bool, error)
	Get(ctx context.Context, uid string) (*model.User, error)
	Update(ctx context.Context, uid string, email, name *string) (*model.User, error)
	// Delete はユーザーと関連データ、保存済みファイルを削除する。
	Delete(ctx context.Context, uid string) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

type signupRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type updateUserRequest struct {
	Email *string `json:"email"`
	Name  *string `json:"name"`
}

type userResponse struct {
	ID        string    `json:"id"`
	UID       string    `json:"uid"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ensureUserResponse struct {
	User    userResponse `json:"user"`
	Created bool         `json:"created"`
}

// Signup は認証済みのIdPユーザーを新規登録する。
// POST /api/users
func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req signupRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}

	user, err := h.service.Signup(r.Context(), identity, req.Email, req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// Ensure はユーザーが存在しなければ作成し、存在すれば最新のIdP情報で更新する。
// POST /api/users/ensure
func (h *UserHandler) Ensure(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	user, created, err := h.service.Ensure(r.Context(), identity)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, ensureUserResponse{User: toUserResponse(user), Created: created})
}

// Me は認証済みユーザーの情報を返す。
// GET /api/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	user, err := h.service.Get(r.Context(), uid)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// UpdateMe は認証済みユーザーのemailとnameを更新する。
// PATCH /api/users/me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	var req updateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.service.Update(r.Context(), uid, req.Email, req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// DeleteMe はユーザーの退会処理を実行する。
// DELETE /api/users/me
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireUID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), uid); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		UID:       u.UID,
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
