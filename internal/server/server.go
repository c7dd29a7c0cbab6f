package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amirk1998/notebox/internal/logger"
	"github.com/amirk1998/notebox/internal/metrics"
	"github.com/amirk1998/notebox/internal/models"
	"github.com/amirk1998/notebox/internal/service"
)

// SessionCookie carries the session token
const SessionCookie = "notebox_session"

type AuthService interface {
	Register(ctx context.Context, req *models.CreateUserRequest, meta service.RequestMeta) (*service.AuthResult, error)
	Login(ctx context.Context, req *models.LoginRequest, meta service.RequestMeta) (*service.AuthResult, error)
	Logout(ctx context.Context, token string, meta service.RequestMeta) error
	Authenticate(ctx context.Context, token string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID int, currentToken string, update models.ProfileUpdate) (*models.User, error)
}

type NoteService interface {
	Create(ctx context.Context, userID int, req *models.NoteRequest) (*models.Note, error)
	List(ctx context.Context, userID int) ([]*models.Note, error)
	Update(ctx context.Context, userID int, noteID int, req *models.NoteRequest) (*models.Note, error)
	Delete(ctx context.Context, userID int, noteID int) error
}

type ProfileService interface {
	GetProfile(ctx context.Context, caller *models.User, targetID int, meta service.RequestMeta) (*models.UserProfile, error)
	AdminDashboard(ctx context.Context, caller *models.User) (*models.AdminDashboard, error)
}

// Limiter throttles requests per client IP
type Limiter interface {
	CheckLimit(key string) error
}

type Options struct {
	CORSOrigins  []string
	CookieSecure bool
	SessionTTL   time.Duration
	// IPLimiter is optional; nil disables per-IP throttling.
	IPLimiter Limiter
}

type Server struct {
	router   *gin.Engine
	auth     AuthService
	notes    NoteService
	profiles ProfileService
	metrics  *metrics.Metrics
	log      *logger.Logger
	opts     Options
}

func New(
	auth AuthService,
	notes NoteService,
	profiles ProfileService,
	m *metrics.Metrics,
	log *logger.Logger,
	opts Options,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:   gin.New(),
		auth:     auth,
		notes:    notes,
		profiles: profiles,
		metrics:  m,
		log:      log.WithComponent("http"),
		opts:     opts,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware(s.log))
	r.Use(MetricsMiddleware(s.metrics))
	r.Use(CORSMiddleware(s.opts.CORSOrigins))
	if s.opts.IPLimiter != nil {
		r.Use(RateLimitMiddleware(s.opts.IPLimiter))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := r.Group("/api")
	api.POST("/register", s.handleRegister)
	api.POST("/login", s.handleLogin)
	api.POST("/logout", s.handleLogout)

	authed := api.Group("")
	authed.Use(SessionMiddleware(s.auth, s.log))
	authed.GET("/notes", s.handleListNotes)
	authed.POST("/notes", s.handleCreateNote)
	authed.PUT("/notes/:id", s.handleUpdateNote)
	authed.DELETE("/notes/:id", s.handleDeleteNote)
	authed.PUT("/profile", s.handleUpdateProfile)
	authed.GET("/user/profile/:userId", s.handleGetUserProfile)
	authed.GET("/admin/dashboard", s.handleAdminDashboard)
}

// Handler returns the HTTP handler of the API
func (s *Server) Handler() http.Handler {
	return s.router
}

// NewHTTPServer wraps the API in an http.Server listening on addr
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
