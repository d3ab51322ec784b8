package user

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/jobtrail/internal/model"
	"github.com/hitoshi/jobtrail/internal/repository"
)

// --- モック ---

type mockUserRepo struct {
	findByIDFn   func(ctx context.Context, id string) (*model.User, error)
	findByUIDFn  func(ctx context.Context, uid string) (*model.User, error)
	createFn     func(ctx context.Context, user *model.User) error
	ensureFn     func(ctx context.Context, identity model.Identity) (*model.User, bool, error)
	updateFn     func(ctx context.Context, id, email, name string) (*model.User, error)
	deleteByIDFn func(ctx context.Context, id string) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByUID(ctx context.Context, uid string) (*model.User, error) {
	if m.findByUIDFn != nil {
		return m.findByUIDFn(ctx, uid)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	return m.createFn(ctx, user)
}

func (m *mockUserRepo) Ensure(ctx context.Context, identity model.Identity) (*model.User, bool, error) {
	return m.ensureFn(ctx, identity)
}

func (m *mockUserRepo) Update(ctx context.Context, id, email, name string) (*model.User, error) {
	return m.updateFn(ctx, id, email, name)
}

func (m *mockUserRepo) DeleteByID(ctx context.Context, id string) error {
	return m.deleteByIDFn(ctx, id)
}

type mockBlobDeleter struct {
	prefixes []string
	err      error
}

func (m *mockBlobDeleter) DeletePrefix(_ context.Context, prefix string) error {
	m.prefixes = append(m.prefixes, prefix)
	return m.err
}

func existingUser(id, uid string) func(context.Context, string) (*model.User, error) {
	return func(_ context.Context, got string) (*model.User, error) {
		if got != uid {
			return nil, nil
		}
		return &model.User{ID: id, UID: uid, Email: "a@example.com", Name: "Alice"}, nil
	}
}

func assertAPIErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError %s, got %v", code, err)
	}
	if apiErr.Code != code {
		t.Errorf("code = %s, want %s", apiErr.Code, code)
	}
}

// --- テスト ---

func TestSignup_PrefersBodyValues(t *testing.T) {
	var created *model.User
	repo := &mockUserRepo{
		createFn: func(_ context.Context, u *model.User) error {
			u.ID = "user-1"
			created = u
			return nil
		},
	}
	svc := NewService(repo, nil)

	u, err := svc.Signup(context.Background(), model.Identity{UID: "sub-1", Email: "token@example.com", Name: "Token"}, "body@example.com", "")
	if err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	if u.ID != "user-1" {
		t.Errorf("ID = %q", u.ID)
	}
	if created.UID != "sub-1" || created.Email != "body@example.com" || created.Name != "Token" {
		t.Errorf("created = %+v", created)
	}
}

func TestSignup_Duplicate_ReturnsUserExists(t *testing.T) {
	repo := &mockUserRepo{
		createFn: func(context.Context, *model.User) error {
			return errors.Join(repository.ErrDuplicate, errors.New("pq: duplicate key"))
		},
	}
	svc := NewService(repo, nil)

	_, err := svc.Signup(context.Background(), model.Identity{UID: "sub-1"}, "", "")
	assertAPIErrorCode(t, err, model.ErrCodeUserExists)
}

func TestSignup_InvalidEmail(t *testing.T) {
	repo := &mockUserRepo{
		createFn: func(context.Context, *model.User) error {
			t.Error("Create should not be called")
			return nil
		},
	}
	svc := NewService(repo, nil)

	_, err := svc.Signup(context.Background(), model.Identity{UID: "sub-1"}, "not-an-email", "")
	assertAPIErrorCode(t, err, model.ErrCodeValidationFailed)
}

func TestEnsure_ReturnsCreatedFlag(t *testing.T) {
	calls := 0
	repo := &mockUserRepo{
		ensureFn: func(_ context.Context, id model.Identity) (*model.User, bool, error) {
			calls++
			return &model.User{ID: "user-1", UID: id.UID}, calls == 1, nil
		},
	}
	svc := NewService(repo, nil)

	_, created, err := svc.Ensure(context.Background(), model.Identity{UID: "sub-1"})
	if err != nil || !created {
		t.Fatalf("first Ensure: created=%v err=%v", created, err)
	}
	_, created, err = svc.Ensure(context.Background(), model.Identity{UID: "sub-1"})
	if err != nil || created {
		t.Fatalf("second Ensure: created=%v err=%v", created, err)
	}
}

func TestResolveID(t *testing.T) {
	repo := &mockUserRepo{findByUIDFn: existingUser("user-1", "sub-1")}
	svc := NewService(repo, nil)

	id, err := svc.ResolveID(context.Background(), "sub-1")
	if err != nil {
		t.Fatalf("ResolveID returned error: %v", err)
	}
	if id != "user-1" {
		t.Errorf("id = %q, want user-1", id)
	}

	_, err = svc.ResolveID(context.Background(), "unknown")
	assertAPIErrorCode(t, err, model.ErrCodeUserNotFound)
}

func TestResolveID_RepositoryError(t *testing.T) {
	repo := &mockUserRepo{
		findByUIDFn: func(context.Context, string) (*model.User, error) {
			return nil, errors.New("db down")
		},
	}
	svc := NewService(repo, nil)

	_, err := svc.ResolveID(context.Background(), "sub-1")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		t.Errorf("repository failure should not be an APIError, got %v", apiErr)
	}
}

func TestUpdate_OnlyChangesGivenFields(t *testing.T) {
	var gotEmail, gotName string
	repo := &mockUserRepo{
		findByUIDFn: existingUser("user-1", "sub-1"),
		updateFn: func(_ context.Context, id, email, name string) (*model.User, error) {
			gotEmail, gotName = email, name
			return &model.User{ID: id, Email: email, Name: name}, nil
		},
	}
	svc := NewService(repo, nil)

	name := " Bob "
	u, err := svc.Update(context.Background(), "sub-1", nil, &name)
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if gotEmail != "a@example.com" || gotName != "Bob" {
		t.Errorf("update args = %q/%q", gotEmail, gotName)
	}
	if u.Name != "Bob" {
		t.Errorf("Name = %q", u.Name)
	}
}

func TestDelete_RemovesUserAndFiles(t *testing.T) {
	var deletedID string
	repo := &mockUserRepo{
		findByUIDFn: existingUser("user-1", "sub-1"),
		deleteByIDFn: func(_ context.Context, id string) error {
			deletedID = id
			return nil
		},
	}
	blobs := &mockBlobDeleter{}
	svc := NewService(repo, blobs)

	if err := svc.Delete(context.Background(), "sub-1"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if deletedID != "user-1" {
		t.Errorf("deleted id = %q", deletedID)
	}
	if len(blobs.prefixes) != 1 || blobs.prefixes[0] != "user_user-1/" {
		t.Errorf("deleted prefixes = %v", blobs.prefixes)
	}
}

func TestDelete_BlobFailureDoesNotFail(t *testing.T) {
	repo := &mockUserRepo{
		findByUIDFn:  existingUser("user-1", "sub-1"),
		deleteByIDFn: func(context.Context, string) error { return nil },
	}
	svc := NewService(repo, &mockBlobDeleter{err: errors.New("permission denied")})

	if err := svc.Delete(context.Background(), "sub-1"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
}

func TestDelete_UserNotFound(t *testing.T) {
	repo := &mockUserRepo{
		deleteByIDFn: func(context.Context, string) error {
			t.Error("DeleteByID should not be called")
			return nil
		},
	}
	svc := NewService(repo, &mockBlobDeleter{})

	err := svc.Delete(context.Background(), "ghost")
	assertAPIErrorCode(t, err, model.ErrCodeUserNotFound)
}
