package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/amirk1998/notebox/internal/folders"
	"github.com/amirk1998/notebox/internal/logger"
	"github.com/amirk1998/notebox/internal/models"
	"github.com/amirk1998/notebox/internal/notes"
	"github.com/amirk1998/notebox/internal/session"
	"github.com/amirk1998/notebox/pkg/errors"
)

var (
	ErrActionInProgress = stderrors.New("action already in progress")
	ErrNotSignedIn      = stderrors.New("not signed in")
	ErrAlreadySignedIn  = stderrors.New("already signed in")
)

// API is the HTTP client surface the app drives
type API interface {
	notes.API
	Login(ctx context.Context, username, password string) (*models.User, error)
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	Logout(ctx context.Context) error
	ResetCredentials() error
	UpdateProfile(ctx context.Context, update models.ProfileUpdate) (*models.User, error)
	GetUserProfile(ctx context.Context, userID int) (*models.UserProfile, error)
	AdminDashboard(ctx context.Context, token string) (*models.AdminDashboard, error)
	Health(ctx context.Context) error
}

// NoteView is a note with the folder it resolves to
type NoteView struct {
	models.Note
	Folder models.Folder `json:"folder"`
}

// LogoutResult reports whether the server confirmed the logout. Local state
// is cleared either way.
type LogoutResult struct {
	ServerAcknowledged bool
	Err                error
}

// App wires the session, note store and folder overlay behind the user
// intents. Each intent runs at most once at a time.
type App struct {
	api     API
	session *session.Session
	notes   *notes.Store
	folders *folders.Overlay
	log     *logger.Logger

	mu      sync.Mutex
	busy    map[string]bool
	notices []Notice
	now     func() time.Time
}

func New(api API, sess *session.Session, store *notes.Store, overlay *folders.Overlay, log *logger.Logger) *App {
	return &App{
		api:     api,
		session: sess,
		notes:   store,
		folders: overlay,
		log:     log.WithComponent("app"),
		busy:    make(map[string]bool),
		now:     time.Now,
	}
}

func (a *App) acquire(action string) (func(), error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.busy[action] {
		return nil, ErrActionInProgress
	}
	a.busy[action] = true
	return func() {
		a.mu.Lock()
		delete(a.busy, action)
		a.mu.Unlock()
	}, nil
}

func (a *App) requireUser() (models.User, error) {
	user, ok := a.session.User()
	if !ok {
		return models.User{}, ErrNotSignedIn
	}
	return user, nil
}

// fail records an error notice and tears the session down on a 401
func (a *App) fail(err error, prefix string) error {
	if err == nil {
		return nil
	}
	msg := message(err)
	if prefix != "" {
		msg = prefix + msg
	}
	a.notify(NoticeError, msg)

	if errors.IsUnauthorized(err) {
		if _, ok := a.session.User(); ok {
			a.log.Infow("Session rejected by server, signing out", "error", err)
			if cerr := a.cleanup(); cerr != nil {
				a.log.Warnw("Failed to clear local state", "error", cerr)
			}
		}
	}
	return err
}

func message(err error) string {
	var apiErr *errors.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

func (a *App) cleanup() error {
	a.notes.Reset()
	return stderrors.Join(a.api.ResetCredentials(), a.session.Clear())
}

// Start restores a persisted user and checks the session with a notes fetch.
// It reports whether the app ends up signed in.
func (a *App) Start(ctx context.Context) (models.User, bool, error) {
	user, ok := a.session.Restore()
	if !ok {
		return models.User{}, false, nil
	}

	if err := a.notes.Refresh(ctx); err != nil {
		a.fail(err, "Failed to load notes: ")
		if errors.IsUnauthorized(err) {
			return models.User{}, false, err
		}
		return user, true, err
	}
	return user, true, nil
}

func (a *App) Login(ctx context.Context, username, password string) (models.User, error) {
	release, err := a.acquire("login")
	if err != nil {
		return models.User{}, err
	}
	defer release()

	user, err := a.api.Login(ctx, username, password)
	if err != nil {
		a.notify(NoticeError, message(err))
		return models.User{}, err
	}

	a.notes.Reset()
	if err := a.session.SignIn(*user); err != nil {
		return models.User{}, a.fail(err, "")
	}
	a.notify(NoticeSuccess, "Login successful!")

	if err := a.notes.Refresh(ctx); err != nil {
		return *user, a.fail(err, "Failed to load notes: ")
	}
	return *user, nil
}

// Register creates an account without signing in. It is refused while a
// user is signed in.
func (a *App) Register(ctx context.Context, username, email, password string) (models.User, error) {
	release, err := a.acquire("register")
	if err != nil {
		return models.User{}, err
	}
	defer release()

	// the server answers with a cookie for the new account, which would
	// replace the signed-in user's credential
	if _, signedIn := a.session.User(); signedIn {
		a.notify(NoticeError, "Logout before registering a new account")
		return models.User{}, ErrAlreadySignedIn
	}

	user, err := a.api.Register(ctx, username, email, password)
	if err != nil {
		a.notify(NoticeError, message(err))
		return models.User{}, err
	}
	if err := a.api.ResetCredentials(); err != nil {
		a.log.Warnw("Failed to drop registration cookie", "error", err)
	}
	a.notify(NoticeSuccess, "Registration successful! Please login.")
	return *user, nil
}

// Logout asks the server to end the session, then always clears the local
// credential, notes and stored user.
func (a *App) Logout(ctx context.Context) LogoutResult {
	release, err := a.acquire("logout")
	if err != nil {
		return LogoutResult{Err: err}
	}
	defer release()

	serverErr := a.api.Logout(ctx)
	if serverErr != nil {
		a.log.Debugw("Server logout failed", "error", serverErr)
	}

	result := LogoutResult{ServerAcknowledged: serverErr == nil, Err: serverErr}
	if err := a.cleanup(); err != nil {
		result.Err = stderrors.Join(result.Err, err)
	}
	a.notify(NoticeSuccess, "Logged out successfully")
	return result
}

func (a *App) checkFolder(folderID string) error {
	if folderID == models.FolderAll {
		return folders.ErrUnassignableFolder
	}
	if _, ok := a.folders.Folder(folderID); !ok {
		return folders.ErrFolderNotFound
	}
	return nil
}

// CreateNote stores a note on the server and files it under folderID, or
// uncategorized when folderID is empty.
func (a *App) CreateNote(ctx context.Context, title, content, folderID string) (*models.Note, error) {
	release, err := a.acquire("create-note")
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := a.requireUser(); err != nil {
		return nil, err
	}
	if folderID == "" {
		folderID = models.FolderUncategorized
	}
	if err := a.checkFolder(folderID); err != nil {
		return nil, a.fail(err, "")
	}

	note, err := a.notes.Create(ctx, title, content)
	if note == nil {
		return nil, a.fail(err, "")
	}
	if aerr := a.folders.AssignNote(note.ID, folderID); aerr != nil {
		a.log.Warnw("Failed to file note", "note_id", note.ID, "folder", folderID, "error", aerr)
	}
	a.notify(NoticeSuccess, "Note created successfully!")
	if err != nil {
		return note, a.fail(err, "Failed to load notes: ")
	}
	return note, nil
}

// UpdateNote changes a note. A non-empty folderID also refiles it.
func (a *App) UpdateNote(ctx context.Context, id int, title, content, folderID string) (*models.Note, error) {
	release, err := a.acquire("update-note")
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := a.requireUser(); err != nil {
		return nil, err
	}
	if folderID != "" {
		if err := a.checkFolder(folderID); err != nil {
			return nil, a.fail(err, "")
		}
	}

	note, err := a.notes.Update(ctx, id, title, content)
	if note == nil {
		return nil, a.fail(err, "")
	}
	if folderID != "" {
		if aerr := a.folders.AssignNote(id, folderID); aerr != nil {
			a.log.Warnw("Failed to refile note", "note_id", id, "folder", folderID, "error", aerr)
		}
	}
	a.notify(NoticeSuccess, "Note updated successfully!")
	if err != nil {
		return note, a.fail(err, "Failed to load notes: ")
	}
	return note, nil
}

func (a *App) DeleteNote(ctx context.Context, id int) error {
	release, err := a.acquire("delete-note")
	if err != nil {
		return err
	}
	defer release()

	if _, err := a.requireUser(); err != nil {
		return err
	}

	deleted, err := a.notes.Delete(ctx, id)
	if !deleted {
		return a.fail(err, "")
	}
	if ferr := a.folders.ForgetNote(id); ferr != nil {
		a.log.Warnw("Failed to drop note folder", "note_id", id, "error", ferr)
	}
	a.notify(NoticeSuccess, "Note deleted successfully!")
	return a.fail(err, "Failed to load notes: ")
}

// UpdateProfile sends the changes and merges the returned user over the
// stored one.
func (a *App) UpdateProfile(ctx context.Context, update models.ProfileUpdate) (models.User, error) {
	release, err := a.acquire("update-profile")
	if err != nil {
		return models.User{}, err
	}
	defer release()

	if _, err := a.requireUser(); err != nil {
		return models.User{}, err
	}

	user, err := a.api.UpdateProfile(ctx, update)
	if err != nil {
		return models.User{}, a.fail(err, "")
	}
	merged, err := a.session.Merge(*user)
	if err != nil {
		return models.User{}, a.fail(err, "")
	}
	a.notify(NoticeSuccess, "Profile updated successfully!")
	return merged, nil
}

// ViewProfile fetches the profile of any user id. The server answers for
// ids the caller does not own unless its ownership check is enabled.
func (a *App) ViewProfile(ctx context.Context, userID int) (*models.UserProfile, error) {
	release, err := a.acquire("view-profile")
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := a.requireUser(); err != nil {
		return nil, err
	}
	profile, err := a.api.GetUserProfile(ctx, userID)
	if err != nil {
		return nil, a.fail(err, "")
	}
	return profile, nil
}

// AdminDashboard loads the admin view with the current session, or with
// token when it is set.
func (a *App) AdminDashboard(ctx context.Context, token string) (*models.AdminDashboard, error) {
	release, err := a.acquire("admin-dashboard")
	if err != nil {
		return nil, err
	}
	defer release()

	if token == "" {
		if _, err := a.requireUser(); err != nil {
			return nil, err
		}
	}
	dashboard, err := a.api.AdminDashboard(ctx, token)
	if err != nil {
		if token != "" {
			// a rejected borrowed token says nothing about our own session
			a.notify(NoticeError, message(err))
			return nil, err
		}
		return nil, a.fail(err, "")
	}
	return dashboard, nil
}

// Health checks that the server answers
func (a *App) Health(ctx context.Context) error {
	return a.api.Health(ctx)
}

// Refresh reloads the note list
func (a *App) Refresh(ctx context.Context) error {
	if _, err := a.requireUser(); err != nil {
		return err
	}
	return a.fail(a.notes.Refresh(ctx), "Failed to load notes: ")
}

func (a *App) CreateFolder(name, color string) (models.Folder, error) {
	folder, err := a.folders.CreateFolder(name, color)
	if err != nil {
		return models.Folder{}, a.fail(err, "")
	}
	a.notify(NoticeSuccess, fmt.Sprintf("Folder %q created!", folder.Name))
	return folder, nil
}

func (a *App) DeleteFolder(id string) error {
	if err := a.folders.DeleteFolder(id); err != nil {
		return a.fail(err, "")
	}
	a.notify(NoticeSuccess, "Folder deleted!")
	return nil
}

func (a *App) AssignNote(noteID int, folderID string) error {
	return a.fail(a.folders.AssignNote(noteID, folderID), "")
}

func (a *App) SelectFolder(folderID string) error {
	return a.fail(a.folders.Select(folderID), "")
}

func (a *App) ActiveFolder() string {
	return a.folders.Active()
}

func (a *App) Folders() []models.Folder {
	return a.folders.All()
}

// View lists the notes under folderID, or under the active folder when
// folderID is empty.
func (a *App) View(folderID string) []NoteView {
	if folderID == "" {
		folderID = a.folders.Active()
	}

	list := a.folders.Filter(a.notes.Notes(), folderID)
	views := make([]NoteView, 0, len(list))
	for _, n := range list {
		folder, _ := a.folders.Folder(a.folders.ResolveFolder(n.ID))
		views = append(views, NoteView{Note: n, Folder: folder})
	}
	return views
}

// Counts returns the number of notes per folder id
func (a *App) Counts() map[string]int {
	return a.folders.CountByFolder(a.notes.Notes())
}

func (a *App) User() (models.User, bool) {
	return a.session.User()
}

func (a *App) State() session.State {
	return a.session.State()
}
