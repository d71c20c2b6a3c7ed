// Package session keeps the signed-in identity in the settings database. It is
// the only source of truth for whether the user is logged in.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tgienger/taskboard/internal/api"
	"github.com/tgienger/taskboard/internal/db"
	"github.com/tgienger/taskboard/internal/logging"
	"github.com/tgienger/taskboard/internal/models"
)

var (
	// ErrNotAuthenticated is returned when an operation needs a session and there is none
	ErrNotAuthenticated = errors.New("not logged in")
	// ErrInvalidCredentials matches every input validation failure from Login and Register
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// InputError is a credential validation failure. Its message is shown to the user.
type InputError struct {
	Message string
}

func (e *InputError) Error() string { return e.Message }

func (e *InputError) Is(target error) bool { return target == ErrInvalidCredentials }

// Storage is the durable key/value store the session lives in
type Storage interface {
	GetSetting(key string) (string, error)
	SetSettings(values map[string]string) error
	DeleteSettings(keys ...string) error
}

// Poster sends unauthenticated requests to the auth endpoints
type Poster interface {
	Post(ctx context.Context, path string, body, out any) error
}

type credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Token  string `json:"token"`
	UserID int64  `json:"userId"`
}

var validate = validator.New()

// Store reads and writes the session. It holds no identity in memory so a
// login or logout from another process is seen on the next read.
type Store struct {
	storage Storage
	auth    Poster
	logger  *log.Logger
	now     func() time.Time

	mu      sync.Mutex
	subs    map[int]chan bool
	nextSub int
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger
func WithLogger(logger *log.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used for token expiry
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store over storage. auth is used for login and register and
// must not attach an identity.
func New(storage Storage, auth Poster, opts ...Option) *Store {
	s := &Store{
		storage: storage,
		auth:    auth,
		logger:  logging.Discard(),
		now:     time.Now,
		subs:    make(map[int]chan bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login exchanges credentials for a session. On failure the error message is
// fit to show as-is.
func (s *Store) Login(ctx context.Context, email, password string) error {
	return s.authenticate(ctx, "/auth/login", email, password)
}

// Register creates an account and signs in to it
func (s *Store) Register(ctx context.Context, email, password string) error {
	return s.authenticate(ctx, "/auth/register", email, password)
}

func (s *Store) authenticate(ctx context.Context, path, email, password string) error {
	creds := credentials{Email: strings.TrimSpace(email), Password: password}
	if err := checkCredentials(creds); err != nil {
		return err
	}

	var resp authResponse
	if err := s.auth.Post(ctx, path, creds, &resp); err != nil {
		s.logger.Warn("authentication failed", "path", path, "email", creds.Email, "err", err)
		return err
	}
	if resp.UserID == 0 {
		return &api.Error{Message: "unexpected response from server"}
	}

	err := s.storage.SetSettings(map[string]string{
		db.KeyUserID:    strconv.FormatInt(resp.UserID, 10),
		db.KeyAuthToken: resp.Token,
		db.KeyUserEmail: creds.Email,
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	s.logger.Info("signed in", "user_id", resp.UserID, "email", creds.Email)
	s.publish(true)
	return nil
}

func checkCredentials(creds credentials) error {
	err := validate.Struct(creds)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &InputError{Message: "invalid email or password"}
	}
	switch fieldErrs[0].Field() {
	case "Email":
		if creds.Email == "" {
			return &InputError{Message: "email is required"}
		}
		return &InputError{Message: "a valid email is required"}
	default:
		return &InputError{Message: "password is required"}
	}
}

// Logout clears the stored identity. The last opened project is kept.
func (s *Store) Logout() error {
	if err := s.storage.DeleteSettings(db.KeyUserID, db.KeyAuthToken, db.KeyUserEmail); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.logger.Info("signed out")
	s.publish(false)
	return nil
}

// Current reads the session from storage
func (s *Store) Current() (models.Session, error) {
	var sess models.Session

	rawID, err := s.storage.GetSetting(db.KeyUserID)
	if err != nil {
		return sess, fmt.Errorf("read user id: %w", err)
	}
	if rawID == "" {
		return sess, nil
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		s.logger.Warn("ignoring malformed stored user id", "value", rawID)
		return sess, nil
	}
	sess.UserID = id

	if sess.Token, err = s.storage.GetSetting(db.KeyAuthToken); err != nil {
		return sess, fmt.Errorf("read token: %w", err)
	}
	if sess.Email, err = s.storage.GetSetting(db.KeyUserEmail); err != nil {
		return sess, fmt.Errorf("read email: %w", err)
	}
	sess.ExpiresAt = tokenExpiry(sess.Token)
	return sess, nil
}

// tokenExpiry returns the exp claim of a JWT without verifying it. Opaque
// tokens and tokens without exp yield the zero time.
func tokenExpiry(token string) time.Time {
	if token == "" {
		return time.Time{}
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// IsAuthenticated reports whether a usable session is stored
func (s *Store) IsAuthenticated() bool {
	sess, err := s.Current()
	if err != nil {
		s.logger.Error("read session", "err", err)
		return false
	}
	return sess.Authenticated(s.now())
}

// UserID returns the signed-in user's id. Expired sessions report false.
func (s *Store) UserID() (int64, bool) {
	sess, err := s.Current()
	if err != nil || !sess.Authenticated(s.now()) {
		return 0, false
	}
	return sess.UserID, true
}

// Token returns the stored auth token, or "" when signed out
func (s *Store) Token() string {
	sess, err := s.Current()
	if err != nil || !sess.Authenticated(s.now()) {
		return ""
	}
	return sess.Token
}

// Email returns the signed-in user's email, or "" when signed out
func (s *Store) Email() string {
	sess, err := s.Current()
	if err != nil || !sess.Authenticated(s.now()) {
		return ""
	}
	return sess.Email
}

// Subscribe returns a channel that receives the authenticated state after
// every login, register or logout. Slow receivers only see the latest state.
// Call the returned func to unsubscribe.
func (s *Store) Subscribe() (<-chan bool, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan bool, 1)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

func (s *Store) publish(authenticated bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		// drop a stale pending value so the newest state wins
		select {
		case <-ch:
		default:
		}
		ch <- authenticated
	}
}
