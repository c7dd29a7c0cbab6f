package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/amirk1998/notebox/internal/storage"
)

type savedCookie struct {
	URL      string    `json:"url"`
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"httpOnly,omitempty"`
}

func (s savedCookie) key() string {
	return s.URL + "|" + s.Domain + "|" + s.Path + "|" + s.Name
}

// persistentJar is a publicsuffix-aware cookie jar that mirrors every
// cookie it accepts into a file, so separate processes share one session.
// An empty path keeps cookies in memory only.
type persistentJar struct {
	mu    sync.Mutex
	path  string
	jar   *cookiejar.Jar
	saved map[string]savedCookie
	now   func() time.Time
}

func newPersistentJar(path string) (*persistentJar, error) {
	j := &persistentJar{path: path, now: time.Now}
	if err := j.reset(); err != nil {
		return nil, err
	}
	if path == "" {
		return j, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return j, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cookie file: %w", err)
	}

	var cookies []savedCookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		// unreadable cookies are dropped; the user signs in again
		os.Remove(path)
		return j, nil
	}

	now := j.now()
	for _, c := range cookies {
		if !c.Expires.IsZero() && !c.Expires.After(now) {
			continue
		}
		u, err := url.Parse(c.URL)
		if err != nil {
			continue
		}
		j.jar.SetCookies(u, []*http.Cookie{c.cookie()})
		j.saved[c.key()] = c
	}
	return j, nil
}

func (c savedCookie) cookie() *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     c.Path,
		Domain:   c.Domain,
		Expires:  c.Expires,
		Secure:   c.Secure,
		HttpOnly: c.HttpOnly,
	}
}

func (j *persistentJar) reset() error {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return fmt.Errorf("failed to create cookie jar: %w", err)
	}
	j.jar = jar
	j.saved = make(map[string]savedCookie)
	return nil
}

func (j *persistentJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.jar.SetCookies(u, cookies)

	origin := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}).String()
	now := j.now()
	for _, c := range cookies {
		entry := savedCookie{
			URL:      origin,
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
		switch {
		case c.MaxAge > 0:
			entry.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		case !c.Expires.IsZero():
			entry.Expires = c.Expires
		}

		if c.MaxAge < 0 || (!entry.Expires.IsZero() && !entry.Expires.After(now)) {
			delete(j.saved, entry.key())
			continue
		}
		j.saved[entry.key()] = entry
	}

	j.flush()
}

func (j *persistentJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

// Clear drops every cookie and removes the backing file
func (j *persistentJar) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.reset(); err != nil {
		return err
	}
	if j.path == "" {
		return nil
	}
	if err := os.Remove(j.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cookie file: %w", err)
	}
	return nil
}

func (j *persistentJar) flush() {
	if j.path == "" {
		return
	}

	cookies := make([]savedCookie, 0, len(j.saved))
	for _, c := range j.saved {
		cookies = append(cookies, c)
	}
	data, err := json.Marshal(cookies)
	if err != nil {
		return
	}
	// http.CookieJar has no error path; a failed write only costs persistence
	_ = storage.WriteFileAtomic(j.path, data, 0600)
}
