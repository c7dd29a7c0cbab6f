package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirk1998/notebox/internal/audit"
	"github.com/amirk1998/notebox/internal/database"
	"github.com/amirk1998/notebox/internal/logger"
	"github.com/amirk1998/notebox/internal/metrics"
	"github.com/amirk1998/notebox/internal/models"
	"github.com/amirk1998/notebox/internal/ratelimit"
	"github.com/amirk1998/notebox/internal/repository"
	"github.com/amirk1998/notebox/internal/security"
	"github.com/amirk1998/notebox/internal/service"
)

type testEnv struct {
	url     string
	metrics *metrics.Metrics
}

func newTestEnv(t *testing.T, ownershipCheck bool) *testEnv {
	t.Helper()
	ctx := context.Background()

	keys, err := security.NewKeyManager("test-database-key-0123456789abcdef", "test-application-key-0123456789abcd")
	require.NoError(t, err)

	db, err := database.Connect(database.DefaultConfig(filepath.Join(t.TempDir(), "notebox.db"), keys.DBKey()))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Migrate(ctx, db))

	hasher := security.NewPasswordHasherWithParams(security.HashParams{Time: 1, Memory: 1024, Threads: 1, KeyLength: 32})
	seeded, err := database.Seed(ctx, db, hasher, time.Hour)
	require.NoError(t, err)
	require.True(t, seeded)

	log := logger.NewNop()
	auditLogger, err := audit.NewLogger(ctx, db, audit.Options{}, log)
	require.NoError(t, err)
	t.Cleanup(func() { auditLogger.Close() })

	encryptor, err := security.NewFieldEncryptor(keys.AppKey())
	require.NoError(t, err)

	limiter := ratelimit.NewRateLimiter(1000, 1000)
	users := repository.NewUserRepository(db)
	sessions := repository.NewSessionRepository(db)
	notes := repository.NewNoteRepository(db)

	auth, err := service.NewAuthService(users, sessions, hasher, limiter, auditLogger, time.Hour)
	require.NoError(t, err)

	m := metrics.New()
	srv := New(
		auth,
		service.NewNoteService(notes, encryptor, limiter, auditLogger),
		service.NewProfileService(users, sessions, notes, limiter, auditLogger, ownershipCheck),
		m,
		log,
		Options{SessionTTL: time.Hour, CORSOrigins: []string{"http://localhost:3000"}, IPLimiter: limiter},
	)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{url: ts.URL, metrics: m}
}

type browser struct {
	t      *testing.T
	base   string
	client *http.Client
	bearer string
}

func (e *testEnv) browser(t *testing.T) *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{t: t, base: e.url, client: &http.Client{Jar: jar}}
}

func (b *browser) do(method, path string, body interface{}) (int, []byte) {
	b.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(b.t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, b.base+path, reader)
	require.NoError(b.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if b.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+b.bearer)
	}

	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	return resp.StatusCode, data
}

func (b *browser) login(username, password string) models.User {
	b.t.Helper()
	status, body := b.do(http.MethodPost, "/api/login", models.LoginRequest{Username: username, Password: password})
	require.Equal(b.t, http.StatusOK, status, string(body))

	var resp models.AuthResponse
	require.NoError(b.t, json.Unmarshal(body, &resp))
	require.True(b.t, resp.Success)
	return *resp.User
}

func decodeError(t *testing.T, body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	return payload.Error
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, false)
	status, body := env.browser(t).do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"healthy"}`, string(body))
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t, false)
	b := env.browser(t)

	status, body := b.do(http.MethodGet, "/api/notes", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "authentication token is missing", decodeError(t, body))

	status, body = b.do(http.MethodPost, "/api/login", models.LoginRequest{Username: "user1", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials", decodeError(t, body))

	user := b.login("user1", "password123")
	assert.Equal(t, "user1", user.Username)
	assert.Equal(t, models.RoleUser, user.Role)

	status, body = b.do(http.MethodGet, "/api/notes", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(body))

	status, _ = b.do(http.MethodPost, "/api/logout", nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = b.do(http.MethodGet, "/api/notes", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t, false)
	b := env.browser(t)

	status, body := b.do(http.MethodPost, "/api/register", models.CreateUserRequest{Username: "alice", Email: "alice@example.com", Password: "password123"})
	require.Equal(t, http.StatusCreated, status, string(body))

	var resp models.AuthResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "alice", resp.User.Username)
	assert.NotContains(t, string(body), "session_token")

	// the cookie set by register is usable
	status, _ = b.do(http.MethodGet, "/api/notes", nil)
	assert.Equal(t, http.StatusOK, status)

	status, body = env.browser(t).do(http.MethodPost, "/api/register", models.CreateUserRequest{Username: "alice", Email: "x@example.com", Password: "password123"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Username already exists", decodeError(t, body))

	status, body = env.browser(t).do(http.MethodPost, "/api/register", models.CreateUserRequest{Username: "bob", Email: "alice@example.com", Password: "password123"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Email already exists", decodeError(t, body))
}

func TestNotesCRUD(t *testing.T) {
	env := newTestEnv(t, false)
	b := env.browser(t)
	b.login("user1", "password123")

	status, body := b.do(http.MethodPost, "/api/notes", models.NoteRequest{Title: "T", Content: "C"})
	require.Equal(t, http.StatusCreated, status, string(body))
	var created models.Note
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "T", created.Title)
	assert.Equal(t, "C", created.Content)

	status, body = b.do(http.MethodGet, "/api/notes", nil)
	require.Equal(t, http.StatusOK, status)
	var notes []models.Note
	require.NoError(t, json.Unmarshal(body, &notes))
	require.Len(t, notes, 1)
	assert.Equal(t, created.ID, notes[0].ID)
	assert.Equal(t, "C", notes[0].Content)

	status, body = b.do(http.MethodPut, "/api/notes/"+strconv.Itoa(created.ID), models.NoteRequest{Title: "T2", Content: "C2"})
	require.Equal(t, http.StatusOK, status, string(body))

	// another user cannot touch it
	admin := env.browser(t)
	admin.login("admin", "admin123")
	status, body = admin.do(http.MethodPut, "/api/notes/"+strconv.Itoa(created.ID), models.NoteRequest{Title: "x", Content: "y"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Note not found", decodeError(t, body))
	status, _ = admin.do(http.MethodDelete, "/api/notes/"+strconv.Itoa(created.ID), nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = b.do(http.MethodPost, "/api/notes", models.NoteRequest{Title: "", Content: "C"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "title cannot be empty", decodeError(t, body))

	status, body = b.do(http.MethodDelete, "/api/notes/"+strconv.Itoa(created.ID), nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"success":true}`, string(body))

	status, body = b.do(http.MethodGet, "/api/notes", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(body))
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t, false)
	b := env.browser(t)
	b.login("user1", "password123")

	email := "renamed@example.com"
	status, body := b.do(http.MethodPut, "/api/profile", models.ProfileUpdate{Email: &email})
	require.Equal(t, http.StatusOK, status, string(body))

	var resp models.AuthResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "user1", resp.User.Username)
	assert.Equal(t, email, resp.User.Email)

	taken := "admin@example.com"
	status, _ = b.do(http.MethodPut, "/api/profile", models.ProfileUpdate{Email: &taken})
	assert.Equal(t, http.StatusBadRequest, status)
}

// The profile lookup hands any signed-in user the admin's live session
// token, which then opens the admin dashboard.
func TestProfileLookup_ReproducesIDOR(t *testing.T) {
	env := newTestEnv(t, false)
	attacker := env.browser(t)
	attacker.login("user1", "password123")

	status, body := attacker.do(http.MethodGet, "/api/admin/dashboard", nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Admin access required", decodeError(t, body))

	status, body = attacker.do(http.MethodGet, "/api/user/profile/1", nil)
	require.Equal(t, http.StatusOK, status, string(body))

	var profile models.UserProfile
	require.NoError(t, json.Unmarshal(body, &profile))
	assert.Equal(t, "admin", profile.Username)
	assert.Equal(t, models.RoleAdmin, profile.Role)
	require.NotEmpty(t, profile.SessionToken)

	stolen := env.browser(t)
	stolen.bearer = profile.SessionToken
	status, body = stolen.do(http.MethodGet, "/api/admin/dashboard", nil)
	require.Equal(t, http.StatusOK, status, string(body))

	var dash models.AdminDashboard
	require.NoError(t, json.Unmarshal(body, &dash))
	assert.Equal(t, 2, dash.UserCount)

	status, _ = attacker.do(http.MethodGet, "/api/user/profile/999", nil)
	assert.Equal(t, http.StatusNotFound, status)

	_, metricsBody := attacker.do(http.MethodGet, "/metrics", nil)
	assert.Contains(t, string(metricsBody), `notebox_profile_lookups_total{outcome="foreign"} 1`)
}

func TestProfileLookup_OwnershipCheckBlocksIDOR(t *testing.T) {
	env := newTestEnv(t, true)
	attacker := env.browser(t)
	me := attacker.login("user1", "password123")

	status, body := attacker.do(http.MethodGet, "/api/user/profile/1", nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Access denied", decodeError(t, body))

	status, body = attacker.do(http.MethodGet, "/api/user/profile/"+strconv.Itoa(me.ID), nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, string(body), "session_token")

	admin := env.browser(t)
	admin.login("admin", "admin123")
	status, _ = admin.do(http.MethodGet, "/api/user/profile/"+strconv.Itoa(me.ID), nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, false)

	req, err := http.NewRequest(http.MethodOptions, env.url+"/api/notes", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
}
