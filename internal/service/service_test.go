package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirk1998/notebox/internal/audit"
	"github.com/amirk1998/notebox/internal/models"
	"github.com/amirk1998/notebox/internal/security"
	"github.com/amirk1998/notebox/pkg/errors"
)

type fixture struct {
	users    *fakeUsers
	sessions *fakeSessions
	notes    *fakeNotes
	audit    *recordingAudit
	auth     *AuthService
	hasher   *security.PasswordHasher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		users:    newFakeUsers(),
		sessions: &fakeSessions{},
		notes:    &fakeNotes{},
		audit:    &recordingAudit{},
		hasher:   security.NewPasswordHasherWithParams(fastHashParams),
	}

	auth, err := NewAuthService(f.users, f.sessions, f.hasher, allowAll{}, f.audit, time.Hour)
	require.NoError(t, err)
	f.auth = auth
	return f
}

func (f *fixture) register(t *testing.T, username string) *AuthResult {
	t.Helper()
	res, err := f.auth.Register(context.Background(), &models.CreateUserRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "password123",
	}, RequestMeta{IPAddress: "127.0.0.1"})
	require.NoError(t, err)
	return res
}

func (f *fixture) addAdmin(t *testing.T) *models.User {
	t.Helper()
	hash, err := f.hasher.Hash("admin123")
	require.NoError(t, err)
	account := &models.Account{
		User:         models.User{Username: "admin", Email: "admin@example.com", Role: models.RoleAdmin},
		PasswordHash: hash,
	}
	require.NoError(t, f.users.Create(context.Background(), account))
	return &account.User
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reg := f.register(t, "alice")
	assert.Equal(t, models.RoleUser, reg.User.Role)
	assert.Len(t, reg.Token, 64)

	login, err := f.auth.Login(ctx, &models.LoginRequest{Username: "alice", Password: "password123"}, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, login.User.ID)
	assert.NotEqual(t, reg.Token, login.Token)

	user, err := f.auth.Authenticate(ctx, login.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	assert.Contains(t, f.audit.actions(), audit.ActionRegister)
	assert.Contains(t, f.audit.actions(), audit.ActionLogin)
}

func TestAuthService_RegisterRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice")

	tests := []struct {
		name    string
		req     models.CreateUserRequest
		wantErr error
		status  int
	}{
		{"duplicate username", models.CreateUserRequest{Username: "alice", Email: "new@example.com", Password: "password123"}, errors.ErrUserAlreadyExists, 400},
		{"duplicate email", models.CreateUserRequest{Username: "bob", Email: "alice@example.com", Password: "password123"}, errors.ErrEmailAlreadyExists, 400},
		{"bad username", models.CreateUserRequest{Username: "a", Email: "a@example.com", Password: "password123"}, errors.ErrInvalidUsername, 400},
		{"bad email", models.CreateUserRequest{Username: "carol", Email: "nope", Password: "password123"}, errors.ErrInvalidEmail, 400},
		{"weak password", models.CreateUserRequest{Username: "dave", Email: "d@example.com", Password: "short"}, errors.ErrWeakPassword, 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := f.auth.Register(ctx, &req, RequestMeta{})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.status, errors.StatusCode(err))
		})
	}
}

func TestAuthService_RegisterRateLimited(t *testing.T) {
	f := newFixture(t)
	auth, err := NewAuthService(f.users, f.sessions, f.hasher, denyAll{}, f.audit, time.Hour)
	require.NoError(t, err)

	_, err = auth.Register(context.Background(), &models.CreateUserRequest{Username: "alice"}, RequestMeta{})
	assert.ErrorIs(t, err, errors.ErrRateLimitExceeded)
	assert.Equal(t, 429, errors.StatusCode(err))
}

func TestAuthService_LoginFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice")

	_, err := f.auth.Login(ctx, &models.LoginRequest{Username: "alice", Password: "wrongpass1"}, RequestMeta{})
	assert.ErrorIs(t, err, errors.ErrInvalidCredentials)
	assert.Equal(t, "Invalid credentials", errors.PublicMessage(err))

	_, err = f.auth.Login(ctx, &models.LoginRequest{Username: "nobody", Password: "password123"}, RequestMeta{})
	assert.ErrorIs(t, err, errors.ErrInvalidCredentials)

	assert.Contains(t, f.audit.actions(), audit.ActionLoginInvalidPassword)
}

func TestAuthService_Authenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "alice")

	_, err := f.auth.Authenticate(ctx, "")
	assert.ErrorIs(t, err, errors.ErrUnauthorized)

	_, err = f.auth.Authenticate(ctx, "not-a-token")
	assert.ErrorIs(t, err, errors.ErrUnauthorized)
	assert.Equal(t, "Token is invalid", errors.PublicMessage(err))

	f.sessions.expire(reg.Token)
	_, err = f.auth.Authenticate(ctx, reg.Token)
	assert.ErrorIs(t, err, errors.ErrSessionExpired)
	assert.Equal(t, 401, errors.StatusCode(err))

	// expired sessions are revoked on sight
	_, err = f.sessions.GetActive(ctx, reg.Token)
	assert.ErrorIs(t, err, errors.ErrRecordNotFound)
}

func TestAuthService_Logout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "alice")

	require.NoError(t, f.auth.Logout(ctx, reg.Token, RequestMeta{}))
	_, err := f.auth.Authenticate(ctx, reg.Token)
	assert.Error(t, err)

	assert.NoError(t, f.auth.Logout(ctx, "", RequestMeta{}))
	assert.NoError(t, f.auth.Logout(ctx, "unknown", RequestMeta{}))
}

func TestAuthService_UpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	f.register(t, "bob")

	other, err := f.auth.Login(ctx, &models.LoginRequest{Username: "alice", Password: "password123"}, RequestMeta{})
	require.NoError(t, err)

	t.Run("Empty", func(t *testing.T) {
		_, err := f.auth.UpdateProfile(ctx, alice.User.ID, alice.Token, models.ProfileUpdate{})
		assert.ErrorIs(t, err, errors.ErrInvalidInput)
	})

	t.Run("UsernameTaken", func(t *testing.T) {
		name := "bob"
		_, err := f.auth.UpdateProfile(ctx, alice.User.ID, alice.Token, models.ProfileUpdate{Username: &name})
		assert.ErrorIs(t, err, errors.ErrUserAlreadyExists)
	})

	t.Run("EmailTaken", func(t *testing.T) {
		email := "bob@example.com"
		_, err := f.auth.UpdateProfile(ctx, alice.User.ID, alice.Token, models.ProfileUpdate{Email: &email})
		assert.ErrorIs(t, err, errors.ErrEmailAlreadyExists)
	})

	t.Run("RenameAndChangePassword", func(t *testing.T) {
		name, password := "alice2", "newpassword9"
		user, err := f.auth.UpdateProfile(ctx, alice.User.ID, alice.Token, models.ProfileUpdate{Username: &name, Password: &password})
		require.NoError(t, err)
		assert.Equal(t, "alice2", user.Username)
		assert.Equal(t, "alice@example.com", user.Email)

		_, err = f.auth.Authenticate(ctx, alice.Token)
		assert.NoError(t, err, "current session survives")
		_, err = f.auth.Authenticate(ctx, other.Token)
		assert.Error(t, err, "other sessions are revoked")

		_, err = f.auth.Login(ctx, &models.LoginRequest{Username: "alice2", Password: "newpassword9"}, RequestMeta{})
		assert.NoError(t, err)
	})
}

func TestNoteService_OwnerScopedCRUD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	enc, err := security.NewFieldEncryptor(make([]byte, 32))
	require.NoError(t, err)
	svc := NewNoteService(f.notes, enc, allowAll{}, f.audit)

	note, err := svc.Create(ctx, 1, &models.NoteRequest{Title: "  T  ", Content: "C"})
	require.NoError(t, err)
	assert.Equal(t, "T", note.Title)
	assert.Equal(t, "C", note.Content)
	assert.NotEqual(t, "C", f.notes.notes[0].ContentEncrypted)

	notes, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "C", notes[0].Content)

	others, err := svc.List(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, others)

	_, err = svc.Update(ctx, 2, note.ID, &models.NoteRequest{Title: "x", Content: "y"})
	assert.ErrorIs(t, err, errors.ErrRecordNotFound)
	assert.Equal(t, "Note not found", errors.PublicMessage(err))

	updated, err := svc.Update(ctx, 1, note.ID, &models.NoteRequest{Title: "T2", Content: "C2"})
	require.NoError(t, err)
	assert.Equal(t, "C2", updated.Content)

	_, err = svc.Create(ctx, 1, &models.NoteRequest{Title: "", Content: "C"})
	assert.Equal(t, 400, errors.StatusCode(err))

	assert.ErrorIs(t, svc.Delete(ctx, 2, note.ID), errors.ErrRecordNotFound)
	require.NoError(t, svc.Delete(ctx, 1, note.ID))

	notes, err = svc.List(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestProfileService_GetProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("ForeignLookupLeaksToken", func(t *testing.T) {
		f := newFixture(t)
		admin := f.addAdmin(t)
		adminSession := &models.Session{UserID: admin.ID, Token: "admin-token", ExpiresAt: time.Now().Add(time.Hour)}
		require.NoError(t, f.sessions.Create(ctx, adminSession))
		alice := f.register(t, "alice")

		svc := NewProfileService(f.users, f.sessions, f.notes, allowAll{}, f.audit, false)
		profile, err := svc.GetProfile(ctx, alice.User, admin.ID, RequestMeta{})
		require.NoError(t, err)
		assert.Equal(t, "admin", profile.Username)
		assert.Equal(t, models.RoleAdmin, profile.Role)
		assert.Equal(t, "admin-token", profile.SessionToken)
		assert.Contains(t, f.audit.actions(), audit.ActionProfileLookupForeign)

		last := f.audit.events[len(f.audit.events)-1]
		assert.Equal(t, "disclosed_token="+security.Fingerprint("admin-token"), last.Metadata)
		assert.NotContains(t, last.Metadata, "admin-token")
	})

	t.Run("OwnershipCheckRefusesForeign", func(t *testing.T) {
		f := newFixture(t)
		admin := f.addAdmin(t)
		alice := f.register(t, "alice")

		svc := NewProfileService(f.users, f.sessions, f.notes, allowAll{}, f.audit, true)
		_, err := svc.GetProfile(ctx, alice.User, admin.ID, RequestMeta{})
		assert.ErrorIs(t, err, errors.ErrForbidden)
		assert.Equal(t, 403, errors.StatusCode(err))

		own, err := svc.GetProfile(ctx, alice.User, alice.User.ID, RequestMeta{})
		require.NoError(t, err)
		assert.Empty(t, own.SessionToken)

		viaAdmin, err := svc.GetProfile(ctx, admin, alice.User.ID, RequestMeta{})
		require.NoError(t, err)
		assert.Equal(t, "alice", viaAdmin.Username)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		f := newFixture(t)
		alice := f.register(t, "alice")

		svc := NewProfileService(f.users, f.sessions, f.notes, allowAll{}, f.audit, false)
		_, err := svc.GetProfile(ctx, alice.User, 999, RequestMeta{})
		assert.Equal(t, 404, errors.StatusCode(err))
		assert.Equal(t, "User not found", errors.PublicMessage(err))
	})
}

func TestProfileService_AdminDashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.addAdmin(t)
	alice := f.register(t, "alice")
	require.NoError(t, f.notes.Create(ctx, &models.Note{UserID: alice.User.ID, Title: "T"}))

	svc := NewProfileService(f.users, f.sessions, f.notes, allowAll{}, f.audit, false)

	_, err := svc.AdminDashboard(ctx, alice.User)
	assert.ErrorIs(t, err, errors.ErrForbidden)

	dash, err := svc.AdminDashboard(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 2, dash.UserCount)
	assert.Equal(t, 1, dash.NoteCount)
	assert.Equal(t, "admin", dash.Users[0].Username)
}
