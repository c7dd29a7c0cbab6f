package models

import (
	"time"
)

type Note struct {
	ID               int       `json:"id"`
	UserID           int       `json:"-"`
	Title            string    `json:"title"`
	Content          string    `json:"content"` // Decrypted content
	ContentEncrypted string    `json:"-"`       // Never expose encrypted content
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// NoteRequest is the body of both create and update calls.
type NoteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

