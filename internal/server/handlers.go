package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/amirk1998/notebox/internal/metrics"
	"github.com/amirk1998/notebox/internal/models"
	"github.com/amirk1998/notebox/internal/service"
	"github.com/amirk1998/notebox/pkg/errors"
)

func (s *Server) meta(c *gin.Context) service.RequestMeta {
	return service.RequestMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

func (s *Server) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, token, int(s.opts.SessionTTL.Seconds()), "/", "", s.opts.CookieSecure, true)
}

func (s *Server) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, "", -1, "/", "", s.opts.CookieSecure, true)
}

func (s *Server) handleRegister(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	result, err := s.auth.Register(c.Request.Context(), &req, s.meta(c))
	if err != nil {
		s.fail(c, err)
		return
	}

	s.setSessionCookie(c, result.Token)
	c.JSON(http.StatusCreated, models.AuthResponse{Success: true, User: result.User})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	result, err := s.auth.Login(c.Request.Context(), &req, s.meta(c))
	if err != nil {
		s.fail(c, err)
		return
	}

	s.setSessionCookie(c, result.Token)
	c.JSON(http.StatusOK, models.AuthResponse{Success: true, User: result.User})
}

func (s *Server) handleLogout(c *gin.Context) {
	if err := s.auth.Logout(c.Request.Context(), sessionToken(c), s.meta(c)); err != nil {
		// the cookie is cleared regardless
		s.log.Warnw("Failed to revoke session", "error", err)
	}

	s.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleListNotes(c *gin.Context) {
	user, _ := currentUser(c)

	notes, err := s.notes.List(c.Request.Context(), user.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, notes)
}

func (s *Server) handleCreateNote(c *gin.Context) {
	user, _ := currentUser(c)

	var req models.NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	note, err := s.notes.Create(c.Request.Context(), user.ID, &req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, note)
}

func (s *Server) handleUpdateNote(c *gin.Context) {
	user, _ := currentUser(c)

	noteID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Note not found"})
		return
	}

	var req models.NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	note, err := s.notes.Update(c.Request.Context(), user.ID, noteID, &req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, note)
}

func (s *Server) handleDeleteNote(c *gin.Context) {
	user, _ := currentUser(c)

	noteID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Note not found"})
		return
	}

	if err := s.notes.Delete(c.Request.Context(), user.ID, noteID); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleUpdateProfile(c *gin.Context) {
	user, _ := currentUser(c)

	var update models.ProfileUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		badRequest(c)
		return
	}

	token, _ := c.Get(ctxToken)
	updated, err := s.auth.UpdateProfile(c.Request.Context(), user.ID, token.(string), update)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.AuthResponse{Success: true, User: updated})
}

// handleGetUserProfile serves any user's profile to any signed-in caller
// unless the ownership check is enabled.
func (s *Server) handleGetUserProfile(c *gin.Context) {
	user, _ := currentUser(c)

	targetID, err := strconv.Atoi(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	profile, err := s.profiles.GetProfile(c.Request.Context(), user, targetID, s.meta(c))
	if err != nil {
		if errors.StatusCode(err) == http.StatusForbidden {
			s.metrics.ProfileLookups.WithLabelValues(metrics.LookupDenied).Inc()
		}
		s.fail(c, err)
		return
	}

	outcome := metrics.LookupSelf
	if targetID != user.ID {
		outcome = metrics.LookupForeign
	}
	s.metrics.ProfileLookups.WithLabelValues(outcome).Inc()

	c.JSON(http.StatusOK, profile)
}

func (s *Server) handleAdminDashboard(c *gin.Context) {
	user, _ := currentUser(c)

	dashboard, err := s.profiles.AdminDashboard(c.Request.Context(), user)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

func (s *Server) fail(c *gin.Context, err error) {
	if errors.StatusCode(err) == http.StatusInternalServerError {
		s.log.Errorw("Request failed", "path", c.Request.URL.Path, "error", err)
	}
	respondError(c, err)
}

func respondError(c *gin.Context, err error) {
	c.JSON(errors.StatusCode(err), gin.H{"error": errors.PublicMessage(err)})
}

func badRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
}
