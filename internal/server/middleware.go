package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amirk1998/notebox/internal/logger"
	"github.com/amirk1998/notebox/internal/metrics"
	"github.com/amirk1998/notebox/internal/models"
	"github.com/amirk1998/notebox/pkg/errors"
)

const (
	ctxUser  = "notebox.user"
	ctxToken = "notebox.token"
)

// LoggingMiddleware logs all HTTP requests
func LoggingMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		fields := []interface{}{
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
		}
		if user, ok := currentUser(c); ok {
			fields = append(fields, "user_id", user.ID)
		}
		log.Infow("HTTP request", fields...)
	}
}

// MetricsMiddleware records request counts and latency per route
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		m.RequestsInFlight.Inc()
		defer m.RequestsInFlight.Dec()

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestCounter.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.RequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// CORSMiddleware allows credentialed requests from the configured origins
func CORSMiddleware(origins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && allowed[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Max-Age", "86400")
			c.Header("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RateLimitMiddleware throttles per client IP
func RateLimitMiddleware(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := limiter.CheckLimit("ip:" + c.ClientIP()); err != nil {
			respondError(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// SessionMiddleware resolves the session cookie, or a Bearer token when
// no cookie is sent, to the calling user
func SessionMiddleware(auth AuthService, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)

		user, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			if errors.StatusCode(err) == http.StatusInternalServerError {
				log.Errorw("Session lookup failed", "error", err)
			} else {
				log.Debugw("Rejected session", "path", c.Request.URL.Path, "ip", c.ClientIP(), "reason", err)
			}
			respondError(c, err)
			c.Abort()
			return
		}

		c.Set(ctxUser, user)
		c.Set(ctxToken, token)
		c.Next()
	}
}

func sessionToken(c *gin.Context) string {
	if cookie, err := c.Cookie(SessionCookie); err == nil && cookie != "" {
		return cookie
	}

	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

func currentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(ctxUser)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}
