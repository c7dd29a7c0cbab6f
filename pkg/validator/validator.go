package validator

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/amirk1998/notebox/pkg/errors"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 128
	maxTitleLength    = 255
	maxContentLength  = 1048576 // 1MB
)

var (
	// Username: 3-20 alphanumeric characters and underscores
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)

	// Email: basic email validation
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// ValidateUsername checks if username is valid
func (v *Validator) ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return errors.ErrInvalidUsername
	}
	return nil
}

// ValidateEmail checks if email format is valid
func (v *Validator) ValidateEmail(email string) error {
	if len(email) == 0 || len(email) > 255 {
		return errors.ErrInvalidEmail
	}

	if !emailRegex.MatchString(email) {
		return errors.ErrInvalidEmail
	}

	return nil
}

// ValidatePassword requires a length between 8 and 128 with at least one
// letter and one digit.
func (v *Validator) ValidatePassword(password string) error {
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return errors.ErrWeakPassword
	}

	var hasLetter, hasNumber bool
	for _, char := range password {
		switch {
		case unicode.IsLetter(char):
			hasLetter = true
		case unicode.IsNumber(char):
			hasNumber = true
		}
	}

	if !hasLetter || !hasNumber {
		return errors.ErrWeakPassword
	}

	return nil
}

// SanitizeString removes null bytes and surrounding whitespace
func (v *Validator) SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	return strings.TrimSpace(input)
}

// ValidateNoteTitle validates note title
func (v *Validator) ValidateNoteTitle(title string) error {
	title = strings.TrimSpace(title)

	if len(title) == 0 {
		return errors.NewAppError(errors.ErrInvalidInput, "title cannot be empty", 400)
	}

	if len(title) > maxTitleLength {
		return errors.NewAppError(errors.ErrInvalidInput, "title too long (max 255 characters)", 400)
	}

	return nil
}

// ValidateNoteContent validates note content
func (v *Validator) ValidateNoteContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.NewAppError(errors.ErrInvalidInput, "content cannot be empty", 400)
	}

	if len(content) > maxContentLength {
		return errors.NewAppError(errors.ErrInvalidInput, "content too long (max 1MB)", 400)
	}

	return nil
}
