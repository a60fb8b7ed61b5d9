package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sakif/threadlite/internal/apperror"
	"github.com/sakif/threadlite/internal/auth"
	"github.com/sakif/threadlite/internal/identity"
	"github.com/sakif/threadlite/internal/model"
	"github.com/sakif/threadlite/internal/storage"
)

// SessionService is the session controller: it owns the current
// authenticated user, delegates credential checks to the identity
// provider, and projects provider identities into the local User record.
//
// PROJECTION, NOT SYNCHRONIZATION:
// The User is built fresh on every sign-in (new id, re-derived username)
// and fully replaces the previous one. RestoreSession is trust-on-read —
// a persisted record is believed until logout clears it, with no provider
// round-trip to revalidate.
//
// ERROR SHAPE:
// Provider failures never escape as provider errors. They're converted
// here into *apperror.AppError values with the form field attached —
// password for login, email for registration, resetEmail for resets — so
// the HTTP layer can render them inline without knowing the taxonomy.
type SessionService struct {
	provider identity.Provider
	profiles *ProfileService
	store    storage.Store
	tokens   *auth.TokenService
	logger   *slog.Logger

	mu         sync.Mutex
	current    *model.User
	installing bool // a credential call is in flight; install handles its echo
	now        func() time.Time
}

// AuthResult bundles the projected user with the issued session token so
// the handler can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

func NewSessionService(
	provider identity.Provider,
	profiles *ProfileService,
	store storage.Store,
	tokens *auth.TokenService,
	logger *slog.Logger,
) *SessionService {
	return &SessionService{
		provider: provider,
		profiles: profiles,
		store:    store,
		tokens:   tokens,
		logger:   logger,
		now:      time.Now,
	}
}

// Start subscribes to the provider's session-change stream so sign-ins and
// sign-outs performed outside this controller still update the local
// session. Returns the unsubscribe function; call it on shutdown.
func (s *SessionService) Start() func() {
	return s.provider.Subscribe(func(ident *identity.Identity) {
		s.mu.Lock()
		defer s.mu.Unlock()

		if ident == nil {
			s.clearLocked()
			return
		}
		// The builtin provider notifies from inside the credential call,
		// before Login or Register has projected anything. install is the
		// single projection point for sign-ins we initiate, so the echo is
		// dropped here.
		if s.installing {
			return
		}
		// A re-announcement of the identity we already hold must not churn
		// the session id.
		if s.current != nil && s.current.Email == ident.Email {
			return
		}
		if err := s.projectLocked(ident); err != nil {
			s.logger.Error("projecting externally signed-in identity",
				slog.String("error", err.Error()),
			)
		}
	})
}

// Login authenticates with the provider and, on success, installs and
// persists a freshly projected session User.
func (s *SessionService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	defer s.beginInstall()()
	ident, err := s.provider.Login(ctx, email, password)
	if err != nil {
		return nil, s.authError("login", err)
	}
	return s.install(ident)
}

// Register creates an account with the requested display name, then
// installs the session exactly like Login.
func (s *SessionService) Register(ctx context.Context, email, password, username string) (*AuthResult, error) {
	defer s.beginInstall()()
	ident, err := s.provider.Register(ctx, email, password, username)
	if err != nil {
		return nil, s.authError("register", err)
	}
	return s.install(ident)
}

// LoginExternal installs a session for an identity resolved outside the
// provider's credential path — the OAuth callback hands its identity here.
func (s *SessionService) LoginExternal(ctx context.Context, ident *identity.Identity) (*AuthResult, error) {
	return s.install(ident)
}

// Logout clears the session in memory and in storage, then tells the
// provider. Idempotent: logging out with no session is a no-op.
func (s *SessionService) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.clearLocked()
	s.mu.Unlock()

	if err := s.provider.Logout(ctx); err != nil {
		return fmt.Errorf("service/session: provider logout: %w", err)
	}
	return nil
}

// RequestPasswordReset delegates to the provider; failures attach to the
// resetEmail field.
func (s *SessionService) RequestPasswordReset(ctx context.Context, email string) error {
	if err := s.provider.RequestPasswordReset(ctx, email); err != nil {
		return s.authError("reset", err)
	}
	return nil
}

// Restore loads the persisted session record, if any, and trusts it.
// Call once at startup.
func (s *SessionService) Restore() (*model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok, err := s.store.Get(storage.KeyCurrentUser)
	if err != nil {
		s.logger.Error("loading persisted session, starting signed out",
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var user model.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		s.logger.Warn("stored session is unparseable, starting signed out",
			slog.String("error", err.Error()),
		)
		return nil, false
	}

	s.current = &user
	s.logger.Info("session restored", slog.String("username", user.Username))
	return s.projectedCopyLocked(), true
}

// Current returns the signed-in user, or (nil, false). The returned copy
// carries the avatar projected from the profile store — the profile is the
// single owner of that field.
func (s *SessionService) Current() (*model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, false
	}
	return s.projectedCopyLocked(), true
}

// install projects the identity, persists it as the current session, and
// issues the session token.
func (s *SessionService) install(ident *identity.Identity) (*AuthResult, error) {
	s.mu.Lock()
	if err := s.projectLocked(ident); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	user := s.projectedCopyLocked()
	s.mu.Unlock()

	// OAuth identities can arrive without an email (GitHub hides it by
	// default); the token subject must still be non-empty or Validate will
	// reject every request the cookie makes.
	subject := user.Email
	if subject == "" {
		subject = fmt.Sprintf("user:%d", user.ID)
	}

	token, err := s.tokens.Generate(subject)
	if err != nil {
		return nil, fmt.Errorf("service/session: issuing token: %w", err)
	}

	s.logger.Info("user signed in",
		slog.Int64("sessionID", user.ID),
		slog.String("username", user.Username),
	)

	return &AuthResult{User: user, Token: token}, nil
}

// beginInstall marks a credential call as in flight so the subscription
// listener drops the provider's synchronous sign-in notification instead
// of projecting ahead of install. Returns the release func; defer it.
func (s *SessionService) beginInstall() func() {
	s.mu.Lock()
	s.installing = true
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.installing = false
		s.mu.Unlock()
	}
}

// projectLocked builds the User from an identity (username falls back
// from display name to the email local part to "User"), persists it, and
// hands the identity's name and photo to the profile store. Caller must
// hold s.mu.
func (s *SessionService) projectLocked(ident *identity.Identity) error {
	username := strings.TrimSpace(ident.DisplayName)
	if username == "" {
		if at := strings.Index(ident.Email, "@"); at > 0 {
			username = ident.Email[:at]
		} else {
			username = "User"
		}
	}

	var image *string
	if ident.PhotoURL != "" {
		photo := ident.PhotoURL
		image = &photo
	}

	user := &model.User{
		ID:       s.now().UnixMilli(),
		Username: username,
		Email:    ident.Email,
		// ProfileImage is not persisted on the session record; the
		// profile store owns the avatar and Current() projects it back.
	}
	s.current = user

	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("service/session: encoding session: %w", err)
	}
	if err := s.store.Set(storage.KeyCurrentUser, string(raw)); err != nil {
		return fmt.Errorf("service/session: persisting session: %w", err)
	}

	adopted := *user
	adopted.ProfileImage = image
	if err := s.profiles.AdoptUser(&adopted); err != nil {
		return err
	}

	return nil
}

// clearLocked drops the session from memory and storage. Caller must hold
// s.mu. Removing an absent key is already a no-op, which is what makes
// Logout idempotent.
func (s *SessionService) clearLocked() {
	if s.current != nil {
		s.logger.Info("user signed out", slog.String("username", s.current.Username))
	}
	s.current = nil
	if err := s.store.Remove(storage.KeyCurrentUser); err != nil {
		s.logger.Error("removing persisted session", slog.String("error", err.Error()))
	}
}

// projectedCopyLocked returns a copy of the current user with the avatar
// read through from the profile store. Caller must hold s.mu.
func (s *SessionService) projectedCopyLocked() *model.User {
	user := *s.current
	user.ProfileImage = s.profiles.Avatar()
	return &user
}

// authError converts a provider failure into a field-scoped AppError.
//
// The field is fixed per operation — login failures attach to the password
// field, registration failures to the email field, reset failures to the
// resetEmail field — and the message depends on the error kind, with a
// generic fallback for anything unrecognized. Non-identity errors (storage
// or network failures) pass through wrapped, so they surface as 500s
// rather than form messages.
func (s *SessionService) authError(op string, err error) error {
	var identErr *identity.Error
	if !errors.As(err, &identErr) {
		return fmt.Errorf("service/session: %s: %w", op, err)
	}

	var field string
	switch op {
	case "login":
		field = "password"
	case "register":
		field = "email"
	case "reset":
		field = "resetEmail"
	}

	switch identErr.Kind {
	case identity.KindInvalidCredentials:
		return apperror.Unauthorized(field, "incorrect password")
	case identity.KindTooManyAttempts:
		return apperror.RateLimited(field, "too many attempts, please try again later")
	case identity.KindEmailInUse:
		return apperror.Conflict(field, "email already in use")
	case identity.KindInvalidEmail:
		return apperror.ValidationFailed(field, "invalid email format")
	case identity.KindUserNotFound:
		return apperror.ValidationFailed(field, "no user found with this email")
	default:
		return apperror.ValidationFailed(field, "authentication error occurred")
	}
}
