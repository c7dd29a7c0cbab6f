package app

import "time"

type NoticeKind string

const (
	NoticeError   NoticeKind = "error"
	NoticeSuccess NoticeKind = "success"
)

const (
	ErrorNoticeTTL   = 5 * time.Second
	SuccessNoticeTTL = 3 * time.Second
)

// Notice is a transient message shown to the user
type Notice struct {
	Kind      NoticeKind
	Message   string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// notify keeps at most one live notice per kind, the newest one
func (a *App) notify(kind NoticeKind, msg string) {
	ttl := SuccessNoticeTTL
	if kind == NoticeError {
		ttl = ErrorNoticeTTL
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	kept := a.notices[:0]
	for _, n := range a.notices {
		if n.Kind != kind && now.Before(n.ExpiresAt) {
			kept = append(kept, n)
		}
	}
	a.notices = append(kept, Notice{Kind: kind, Message: msg, CreatedAt: now, ExpiresAt: now.Add(ttl)})
}

// Notices returns the notices that have not yet dismissed themselves
func (a *App) Notices() []Notice {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	out := make([]Notice, 0, len(a.notices))
	for _, n := range a.notices {
		if now.Before(n.ExpiresAt) {
			out = append(out, n)
		}
	}
	return out
}

// DismissNotices clears every notice
func (a *App) DismissNotices() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.notices = nil
}
