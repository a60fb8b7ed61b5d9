// Package builtin is the self-hosted identity provider: accounts live in
// the application's own key-value store, passwords are bcrypt-hashed, and
// password resets are issued as one-time tokens.
//
// This is the provider a standalone deployment runs with. It implements
// the same identity.Provider interface as the OAuth provider, so the
// session layer can't tell them apart — which is the point.
package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/threadlite/internal/auth"
	"github.com/sakif/threadlite/internal/identity"
	"github.com/sakif/threadlite/internal/storage"
)

// accountsKey is where the account table is persisted, as a JSON object
// keyed by normalized (lowercased) email.
const accountsKey = "identity:accounts"

// Login throttling: after maxFailedLogins failures for the same email
// within the throttleWindow, further attempts are rejected with
// KindTooManyAttempts until the window expires.
const (
	maxFailedLogins = 5
	throttleWindow  = 15 * time.Minute
)

// MinPasswordLength mirrors the usual hosted-provider minimum.
const MinPasswordLength = 6

var _ identity.Provider = (*Provider)(nil)

// account is the persisted shape of a registered user. The password hash
// is a self-contained bcrypt string (salt and cost embedded).
type account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	PasswordHash string    `json:"passwordHash"`
	PhotoURL     string    `json:"photoURL,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// failureRecord tracks recent failed logins for one email.
type failureRecord struct {
	count int
	since time.Time
}

// Provider implements identity.Provider against the local key-value store.
//
// The mutex guards the failure table and the listener set. Account reads
// and writes go straight to the store — the store serializes its own
// access, and there's a single logical writer anyway.
type Provider struct {
	store     storage.Store
	passwords *auth.PasswordService
	logger    *slog.Logger

	mu        sync.Mutex
	failures  map[string]*failureRecord
	listeners map[int]identity.Listener
	nextSub   int
	now       func() time.Time
}

func New(store storage.Store, passwords *auth.PasswordService, logger *slog.Logger) *Provider {
	return &Provider{
		store:     store,
		passwords: passwords,
		logger:    logger,
		failures:  make(map[string]*failureRecord),
		listeners: make(map[int]identity.Listener),
		now:       time.Now,
	}
}

// Register creates an account and signs it in.
//
// Failure kinds: KindInvalidEmail for a malformed address, KindEmailInUse
// when the email already has an account, KindUnknown for a too-short
// password or a storage failure.
func (p *Provider) Register(ctx context.Context, email, password, displayName string) (*identity.Identity, error) {
	email = normalizeEmail(email)

	if _, err := mail.ParseAddress(email); err != nil {
		return nil, &identity.Error{Kind: identity.KindInvalidEmail, Message: "invalid email format"}
	}
	if len(password) < MinPasswordLength {
		return nil, &identity.Error{
			Kind:    identity.KindUnknown,
			Message: fmt.Sprintf("password must be at least %d characters", MinPasswordLength),
		}
	}

	accounts, err := p.loadAccounts()
	if err != nil {
		return nil, err
	}
	if _, exists := accounts[email]; exists {
		return nil, &identity.Error{Kind: identity.KindEmailInUse, Message: "email already in use"}
	}

	hash, err := p.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("identity/builtin: hashing password: %w", err)
	}

	acct := account{
		ID:           xid.New().String(),
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: hash,
		CreatedAt:    p.now(),
	}
	accounts[email] = acct

	if err := p.saveAccounts(accounts); err != nil {
		return nil, err
	}

	p.logger.Info("account registered", slog.String("accountID", acct.ID))

	ident := acct.identity()
	p.notify(ident)
	return ident, nil
}

// Login verifies the password for email.
//
// A wrong password and an unknown email both return KindInvalidCredentials:
// distinguishing them would tell an attacker which emails have accounts.
// Repeated failures within the throttle window return KindTooManyAttempts.
func (p *Provider) Login(ctx context.Context, email, password string) (*identity.Identity, error) {
	email = normalizeEmail(email)

	if p.throttled(email) {
		return nil, &identity.Error{Kind: identity.KindTooManyAttempts, Message: "too many attempts"}
	}

	accounts, err := p.loadAccounts()
	if err != nil {
		return nil, err
	}

	acct, exists := accounts[email]
	if !exists {
		p.recordFailure(email)
		return nil, &identity.Error{Kind: identity.KindInvalidCredentials, Message: "incorrect email or password"}
	}
	if err := p.passwords.Verify(acct.PasswordHash, password); err != nil {
		p.recordFailure(email)
		return nil, &identity.Error{Kind: identity.KindInvalidCredentials, Message: "incorrect email or password"}
	}

	p.clearFailures(email)
	p.logger.Info("login succeeded", slog.String("accountID", acct.ID))

	ident := acct.identity()
	p.notify(ident)
	return ident, nil
}

// Logout ends the provider-side session. The built-in provider keeps no
// session state of its own, so this only fires the change stream.
func (p *Provider) Logout(ctx context.Context) error {
	p.notify(nil)
	return nil
}

// RequestPasswordReset issues a one-time reset token for email.
//
// There's no mail transport here — the token is logged for out-of-band
// delivery by the operator. KindUserNotFound when the email has no account.
func (p *Provider) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	accounts, err := p.loadAccounts()
	if err != nil {
		return err
	}
	if _, exists := accounts[email]; !exists {
		return &identity.Error{Kind: identity.KindUserNotFound, Message: "no user found with this email"}
	}

	token := xid.New().String()
	p.logger.Info("password reset requested",
		slog.String("email", email),
		slog.String("resetToken", token),
	)
	return nil
}

// Subscribe registers a session-change listener and returns its
// unsubscribe function.
func (p *Provider) Subscribe(l identity.Listener) func() {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.listeners[id] = l
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// notify fires every listener with the new session state. Listeners run
// synchronously, before the triggering call returns, so a subscriber sees
// the change in the same order the provider made it.
func (p *Provider) notify(ident *identity.Identity) {
	p.mu.Lock()
	ls := make([]identity.Listener, 0, len(p.listeners))
	for _, l := range p.listeners {
		ls = append(ls, l)
	}
	p.mu.Unlock()

	for _, l := range ls {
		l(ident)
	}
}

func (p *Provider) throttled(email string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.failures[email]
	if !ok {
		return false
	}
	if p.now().Sub(rec.since) > throttleWindow {
		// Window expired — forget the old failures
		delete(p.failures, email)
		return false
	}
	return rec.count >= maxFailedLogins
}

func (p *Provider) recordFailure(email string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.failures[email]
	if !ok || p.now().Sub(rec.since) > throttleWindow {
		p.failures[email] = &failureRecord{count: 1, since: p.now()}
		return
	}
	rec.count++
}

func (p *Provider) clearFailures(email string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.failures, email)
}

// loadAccounts reads the account table. An absent key means no accounts
// yet; an unparseable value is a real error — silently dropping the
// account table would lock every user out.
func (p *Provider) loadAccounts() (map[string]account, error) {
	raw, ok, err := p.store.Get(accountsKey)
	if err != nil {
		return nil, fmt.Errorf("identity/builtin: reading accounts: %w", err)
	}
	if !ok {
		return make(map[string]account), nil
	}

	var accounts map[string]account
	if err := json.Unmarshal([]byte(raw), &accounts); err != nil {
		return nil, fmt.Errorf("identity/builtin: decoding accounts: %w", err)
	}
	return accounts, nil
}

func (p *Provider) saveAccounts(accounts map[string]account) error {
	raw, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("identity/builtin: encoding accounts: %w", err)
	}
	if err := p.store.Set(accountsKey, string(raw)); err != nil {
		return fmt.Errorf("identity/builtin: writing accounts: %w", err)
	}
	return nil
}

func (a account) identity() *identity.Identity {
	return &identity.Identity{
		DisplayName: a.DisplayName,
		Email:       a.Email,
		PhotoURL:    a.PhotoURL,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
