package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/amirk1998/notebox/internal/logger"
	"github.com/amirk1998/notebox/internal/models"
	"github.com/amirk1998/notebox/pkg/errors"
)

const defaultTimeout = 10 * time.Second

type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

type Option func(*Client)

// WithCookieFile persists the session cookie at path
func WithCookieFile(path string) Option {
	return func(c *Client) {
		c.cookieFile = path
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// Client calls the NoteBox HTTP API. The session credential lives only in
// its cookie jar; callers never see it.
type Client struct {
	baseURL    *url.URL
	userAgent  string
	http       *http.Client
	bare       *http.Client
	jar        *persistentJar
	cookieFile string
	log        *logger.Logger
}

func New(cfg Config, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid API URL %q", cfg.BaseURL)
	}

	c := &Client{
		baseURL:   base,
		userAgent: cfg.UserAgent,
		log:       logger.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithComponent("api-client")

	if c.cookieFile != "" {
		if err := os.MkdirAll(filepath.Dir(c.cookieFile), 0700); err != nil {
			return nil, fmt.Errorf("failed to create cookie directory: %w", err)
		}
	}
	jar, err := newPersistentJar(c.cookieFile)
	if err != nil {
		return nil, err
	}
	c.jar = jar

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c.http = &http.Client{Jar: jar, Timeout: timeout}
	c.bare = &http.Client{Timeout: timeout}

	return c, nil
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.String() + path
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	return c.doWith(ctx, "", method, path, body, out)
}

// doWith sends bearer instead of the jar's cookies when bearer is set
func (c *Client) doWith(ctx context.Context, bearer, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	httpClient := c.http
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
		httpClient = c.bare
	}

	start := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		c.log.Debugw("API request failed", "method", method, "path", path, "error", err)
		return errors.NewNetworkError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewNetworkError(err)
	}

	c.log.Debugw("API request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &payload)
		return errors.NewAPIError(resp.StatusCode, payload.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &errors.APIError{
			Kind:    errors.KindServer,
			Message: "invalid response body",
			Status:  resp.StatusCode,
			Err:     err,
		}
	}
	return nil
}

// Login signs in and stores the session cookie
func (c *Client) Login(ctx context.Context, username, password string) (*models.User, error) {
	var resp models.AuthResponse
	err := c.do(ctx, http.MethodPost, "/api/login", models.LoginRequest{Username: username, Password: password}, &resp)
	if err != nil {
		return nil, err
	}
	return authUser(resp)
}

// Register creates an account
func (c *Client) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	var resp models.AuthResponse
	req := models.CreateUserRequest{Username: username, Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/api/register", req, &resp); err != nil {
		return nil, err
	}
	return authUser(resp)
}

func authUser(resp models.AuthResponse) (*models.User, error) {
	if resp.User == nil {
		return nil, &errors.APIError{Kind: errors.KindServer, Message: "response has no user", Status: http.StatusOK}
	}
	return resp.User, nil
}

// Logout asks the server to end the session. Callers still need
// ResetCredentials to drop the local cookie.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/logout", nil, nil)
}

// ResetCredentials forgets the session cookie
func (c *Client) ResetCredentials() error {
	return c.jar.Clear()
}

func (c *Client) ListNotes(ctx context.Context) ([]models.Note, error) {
	notes := []models.Note{}
	if err := c.do(ctx, http.MethodGet, "/api/notes", nil, &notes); err != nil {
		return nil, err
	}
	if notes == nil {
		notes = []models.Note{}
	}
	return notes, nil
}

func (c *Client) CreateNote(ctx context.Context, title, content string) (*models.Note, error) {
	var note models.Note
	if err := c.do(ctx, http.MethodPost, "/api/notes", models.NoteRequest{Title: title, Content: content}, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

func (c *Client) UpdateNote(ctx context.Context, id int, title, content string) (*models.Note, error) {
	var note models.Note
	path := "/api/notes/" + strconv.Itoa(id)
	if err := c.do(ctx, http.MethodPut, path, models.NoteRequest{Title: title, Content: content}, &note); err != nil {
		return nil, err
	}
	return &note, nil
}

func (c *Client) DeleteNote(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, "/api/notes/"+strconv.Itoa(id), nil, nil)
}

func (c *Client) UpdateProfile(ctx context.Context, update models.ProfileUpdate) (*models.User, error) {
	var resp models.AuthResponse
	if err := c.do(ctx, http.MethodPut, "/api/profile", update, &resp); err != nil {
		return nil, err
	}
	return authUser(resp)
}

// GetUserProfile fetches any user's profile by id. The server does not
// verify that the caller owns it.
func (c *Client) GetUserProfile(ctx context.Context, userID int) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := c.do(ctx, http.MethodGet, "/api/user/profile/"+strconv.Itoa(userID), nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// AdminDashboard loads the admin view. A non-empty token is presented as a
// Bearer credential in place of the stored session.
func (c *Client) AdminDashboard(ctx context.Context, token string) (*models.AdminDashboard, error) {
	var dashboard models.AdminDashboard
	if err := c.doWith(ctx, token, http.MethodGet, "/api/admin/dashboard", nil, &dashboard); err != nil {
		return nil, err
	}
	return &dashboard, nil
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}
