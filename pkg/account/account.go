package account

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrExists         = errors.New("user already exists")
	ErrNotFound       = errors.New("user not found")
	ErrBadCredentials = errors.New("invalid credentials")
	ErrInvalidEmail   = errors.New("invalid email")
)

// User is a registered simulator account, keyed by email.
type User struct {
	Email        string `json:"email"`
	PasswordHash []byte `json:"passwordHash"`
	CreatedAt    int64  `json:"createdAt"` // Unix milliseconds
}

// UserStore is the persistence contract for account records.
// LoadUser returns (nil, nil) when the user doesn't exist.
type UserStore interface {
	SaveUser(u *User) error
	LoadUser(email string) (*User, error)
}

// Facade resolves user identities for the rest of the system and handles
// registration and credential checks. Passwords are bcrypt-hashed; there are
// no sessions or tokens here.
type Facade struct {
	store UserStore
	log   *zap.SugaredLogger
}

func NewFacade(store UserStore, log *zap.SugaredLogger) *Facade {
	return &Facade{store: store, log: log}
}

// Register creates a new user. Fails if the email is taken or malformed.
func (f *Facade) Register(email, password string) error {
	email = normalizeEmail(email)
	if !validEmail(email) {
		return fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	if password == "" {
		return fmt.Errorf("%w: empty password", ErrBadCredentials)
	}

	existing, err := f.store.LoadUser(email)
	if err != nil {
		return fmt.Errorf("load user %s: %w", email, err)
	}
	if existing != nil {
		return fmt.Errorf("%w: %s", ErrExists, email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UnixMilli(),
	}
	if err := f.store.SaveUser(u); err != nil {
		return fmt.Errorf("save user %s: %w", email, err)
	}

	f.log.Infow("user_registered", "email", email)
	return nil
}

// Authenticate verifies email and password.
func (f *Facade) Authenticate(email, password string) error {
	email = normalizeEmail(email)

	u, err := f.store.LoadUser(email)
	if err != nil {
		return fmt.Errorf("load user %s: %w", email, err)
	}
	if u == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, email)
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return fmt.Errorf("%w: %s", ErrBadCredentials, email)
	}
	return nil
}

// Exists reports whether email resolves to a registered user.
func (f *Facade) Exists(email string) (bool, error) {
	u, err := f.store.LoadUser(normalizeEmail(email))
	if err != nil {
		return false, err
	}
	return u != nil, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && !strings.Contains(email, " ")
}
