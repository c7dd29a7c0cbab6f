package models

import (
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is the profile shared between server and client. It never carries
// the session credential.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Account is the server-side user row.
type Account struct {
	User
	PasswordHash string     `json:"-"` // Never expose in JSON
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	IsActive     bool       `json:"is_active"`
}

type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse is returned by login, register and profile updates.
type AuthResponse struct {
	Success bool  `json:"success"`
	User    *User `json:"user"`
}

// ProfileUpdate carries the fields a user may change on their own profile.
// Nil fields are left untouched.
type ProfileUpdate struct {
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
}

// IsEmpty reports whether the update would change nothing.
func (p ProfileUpdate) IsEmpty() bool {
	return p.Username == nil && p.Email == nil && (p.Password == nil || *p.Password == "")
}

// UserProfile is what the profile lookup endpoint returns: the record of
// any user plus that user's most recent live session token.
type UserProfile struct {
	User
	SessionToken string `json:"session_token,omitempty"`
}

// AdminDashboard is the payload served to administrators.
type AdminDashboard struct {
	Users       []User    `json:"users"`
	UserCount   int       `json:"userCount"`
	NoteCount   int       `json:"noteCount"`
	GeneratedAt time.Time `json:"generatedAt"`
}
