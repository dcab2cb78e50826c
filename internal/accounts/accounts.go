// Package accounts registers users, authenticates them and maintains their
// profile and credentials.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mealmates/backend/internal/credentials"
	"github.com/mealmates/backend/internal/logging"
	"github.com/mealmates/backend/internal/models"
	"github.com/mealmates/backend/internal/repositories"
)

var (
	// ErrInvalidInput indicates a missing or malformed field. Wrapped errors carry the reason.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAuthenticationFailed is returned for unknown identifiers and wrong
	// passwords alike.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrUsernameTaken indicates another account already uses the username.
	ErrUsernameTaken = fmt.Errorf("username already taken: %w", repositories.ErrConflict)
	// ErrEmailTaken indicates another account already uses the email address.
	ErrEmailTaken = fmt.Errorf("email already registered: %w", repositories.ErrConflict)
)

const (
	LanguageEnglish = "EN"
	LanguageGerman  = "DE"

	maxUsernameLength = 64
)

// Registration carries the fields required to create an account.
type Registration struct {
	Username string
	Email    string
	Password string
	Language string
}

// ProfileUpdate lists the profile fields to change; nil fields are left as is.
type ProfileUpdate struct {
	Username  *string
	Language  *string
	AvatarURL *string
}

// Options tunes account policies.
type Options struct {
	// MinPasswordLength is the minimum number of bytes in a new password.
	// Zero only requires a non-empty password.
	MinPasswordLength int
}

// Service implements the account use cases on top of a user repository and a
// credential hasher.
type Service struct {
	users  repositories.UserRepository
	hasher *credentials.Hasher
	opts   Options
	now    func() time.Time

	dummyOnce   sync.Once
	dummyRecord credentials.Record
}

// NewService constructs an account service.
func NewService(users repositories.UserRepository, hasher *credentials.Hasher, opts Options) *Service {
	return &Service{
		users:  users,
		hasher: hasher,
		opts:   opts,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a new account after checking username and email
// availability. Nothing is persisted when any check fails.
func (s *Service) Register(ctx context.Context, reg Registration) (models.User, error) {
	username := strings.TrimSpace(reg.Username)
	email := normalizeEmail(reg.Email)

	if err := validateUsername(username); err != nil {
		return models.User{}, err
	}
	if err := validateEmail(email); err != nil {
		return models.User{}, err
	}
	if err := s.validatePassword(reg.Password); err != nil {
		return models.User{}, err
	}

	if err := s.ensureUsernameFree(ctx, username, ""); err != nil {
		return models.User{}, err
	}
	if err := s.ensureEmailFree(ctx, email, ""); err != nil {
		return models.User{}, err
	}

	record, err := s.hasher.NewRecord([]byte(reg.Password))
	if err != nil {
		return models.User{}, fmt.Errorf("create credential record: %w", err)
	}

	now := s.now()
	user := models.User{
		ID:             uuid.NewString(),
		Username:       username,
		Email:          email,
		Language:       normalizeLanguage(reg.Language),
		PasswordScheme: record.Scheme,
		PasswordSalt:   record.Salt,
		PasswordHash:   record.Digest,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			// Lost a race against a concurrent registration.
			return models.User{}, s.classifyConflict(ctx, username)
		}
		return models.User{}, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

// Authenticate resolves identifier as an email address when it contains '@'
// and as a username otherwise, then verifies the password. Unknown
// identifiers and wrong passwords both yield ErrAuthenticationFailed and cost
// one hash computation.
func (s *Service) Authenticate(ctx context.Context, identifier, password string) (models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		s.burnHash(password)
		return models.User{}, ErrAuthenticationFailed
	}

	var (
		user models.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = s.users.FindByEmail(ctx, normalizeEmail(identifier))
	} else {
		user, err = s.users.FindByUsername(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			s.burnHash(password)
			return models.User{}, ErrAuthenticationFailed
		}
		return models.User{}, fmt.Errorf("find user: %w", err)
	}

	record := recordOf(user)
	ok, err := s.hasher.Check([]byte(password), record)
	if err != nil {
		return models.User{}, fmt.Errorf("verify credentials for user %s: %w", user.ID, err)
	}
	if !ok {
		return models.User{}, ErrAuthenticationFailed
	}

	if s.hasher.NeedsRehash(record) {
		if upgraded, err := s.replaceCredentials(ctx, user, password); err != nil {
			logging.FromContext(ctx).Warn("credential upgrade failed", slog.String("user_id", user.ID), slog.Any("error", err))
		} else {
			user = upgraded
		}
	}

	return user, nil
}

// FindByID loads a user by identifier.
func (s *Service) FindByID(ctx context.Context, id string) (models.User, error) {
	if strings.TrimSpace(id) == "" {
		return models.User{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.users.FindByID(ctx, strings.TrimSpace(id))
}

// FindByUsername loads a user by username.
func (s *Service) FindByUsername(ctx context.Context, username string) (models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return models.User{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	return s.users.FindByUsername(ctx, username)
}

// FindByEmail loads a user by email address.
func (s *Service) FindByEmail(ctx context.Context, email string) (models.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return models.User{}, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	return s.users.FindByEmail(ctx, email)
}

// UsernameAvailable reports whether no account uses username.
func (s *Service) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	username = strings.TrimSpace(username)
	if err := validateUsername(username); err != nil {
		return false, err
	}
	err := s.ensureUsernameFree(ctx, username, "")
	if errors.Is(err, ErrUsernameTaken) {
		return false, nil
	}
	return err == nil, err
}

// EmailAvailable reports whether no account uses email.
func (s *Service) EmailAvailable(ctx context.Context, email string) (bool, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return false, err
	}
	err := s.ensureEmailFree(ctx, email, "")
	if errors.Is(err, ErrEmailTaken) {
		return false, nil
	}
	return err == nil, err
}

// UpdateProfile applies the non-nil fields of update to the user.
func (s *Service) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (models.User, error) {
	user, err := s.FindByID(ctx, id)
	if err != nil {
		return models.User{}, err
	}

	if update.Username != nil {
		username := strings.TrimSpace(*update.Username)
		if err := validateUsername(username); err != nil {
			return models.User{}, err
		}
		if username != user.Username {
			if err := s.ensureUsernameFree(ctx, username, user.ID); err != nil {
				return models.User{}, err
			}
			user.Username = username
		}
	}
	if update.Language != nil {
		user.Language = normalizeLanguage(*update.Language)
	}
	if update.AvatarURL != nil {
		user.AvatarURL = strings.TrimSpace(*update.AvatarURL)
	}

	return s.save(ctx, user)
}

// UpdateEmail moves the account to a new email address.
func (s *Service) UpdateEmail(ctx context.Context, id, email string) (models.User, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return models.User{}, err
	}

	user, err := s.FindByID(ctx, id)
	if err != nil {
		return models.User{}, err
	}
	if user.Email == email {
		return user, nil
	}
	if err := s.ensureEmailFree(ctx, email, user.ID); err != nil {
		return models.User{}, err
	}

	user.Email = email
	return s.save(ctx, user)
}

// ChangePassword verifies the current password and stores a fresh credential
// record with a new salt for next.
func (s *Service) ChangePassword(ctx context.Context, id, current, next string) (models.User, error) {
	if err := s.validatePassword(next); err != nil {
		return models.User{}, err
	}

	user, err := s.FindByID(ctx, id)
	if err != nil {
		return models.User{}, err
	}

	ok, err := s.hasher.Check([]byte(current), recordOf(user))
	if err != nil {
		return models.User{}, fmt.Errorf("verify credentials for user %s: %w", user.ID, err)
	}
	if !ok {
		return models.User{}, ErrAuthenticationFailed
	}

	return s.replaceCredentials(ctx, user, next)
}

// SeedTestUsers creates n accounts named Testuser<i> with email
// testmail<i>@mail.de, numbering on from the current user count.
func (s *Service) SeedTestUsers(ctx context.Context, n int, password string) ([]models.User, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: count must be positive", ErrInvalidInput)
	}

	start, err := s.users.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	created := make([]models.User, 0, n)
	for i := start; i < start+n; i++ {
		user, err := s.Register(ctx, Registration{
			Username: fmt.Sprintf("Testuser%d", i),
			Email:    fmt.Sprintf("testmail%d@mail.de", i),
			Password: password,
			Language: LanguageGerman,
		})
		if err != nil {
			return created, fmt.Errorf("seed Testuser%d: %w", i, err)
		}
		created = append(created, user)
	}
	return created, nil
}

func (s *Service) replaceCredentials(ctx context.Context, user models.User, password string) (models.User, error) {
	record, err := s.hasher.NewRecord([]byte(password))
	if err != nil {
		return models.User{}, fmt.Errorf("create credential record: %w", err)
	}
	user.PasswordScheme = record.Scheme
	user.PasswordSalt = record.Salt
	user.PasswordHash = record.Digest
	return s.save(ctx, user)
}

func (s *Service) save(ctx context.Context, user models.User) (models.User, error) {
	user.UpdatedAt = s.now()
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return models.User{}, s.classifyConflict(ctx, user.Username)
		}
		return models.User{}, err
	}
	return user, nil
}

// ensureUsernameFree returns ErrUsernameTaken when an account other than selfID holds username.
func (s *Service) ensureUsernameFree(ctx context.Context, username, selfID string) error {
	existing, err := s.users.FindByUsername(ctx, username)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("lookup username: %w", err)
	case existing.ID == selfID:
		return nil
	default:
		return ErrUsernameTaken
	}
}

func (s *Service) ensureEmailFree(ctx context.Context, email, selfID string) error {
	existing, err := s.users.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("lookup email: %w", err)
	case existing.ID == selfID:
		return nil
	default:
		return ErrEmailTaken
	}
}

func (s *Service) classifyConflict(ctx context.Context, username string) error {
	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return ErrUsernameTaken
	}
	return ErrEmailTaken
}

// burnHash spends one verification on a throwaway record so unknown
// identifiers take as long as wrong passwords.
func (s *Service) burnHash(password string) {
	s.dummyOnce.Do(func() {
		record, err := s.hasher.NewRecord([]byte("mealmates-dummy-password"))
		if err == nil {
			s.dummyRecord = record
		}
	})
	if s.dummyRecord.Digest == nil {
		return
	}
	_, _ = s.hasher.Check([]byte(password), s.dummyRecord)
}

func (s *Service) validatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if len(password) < s.opts.MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, s.opts.MinPasswordLength)
	}
	return nil
}

func validateUsername(username string) error {
	switch {
	case username == "":
		return fmt.Errorf("%w: username is required", ErrInvalidInput)
	case strings.Contains(username, "@"):
		return fmt.Errorf("%w: username must not contain '@'", ErrInvalidInput)
	case len(username) > maxUsernameLength:
		return fmt.Errorf("%w: username must be at most %d characters", ErrInvalidInput, maxUsernameLength)
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: email is not a valid address", ErrInvalidInput)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeLanguage(language string) string {
	if strings.EqualFold(strings.TrimSpace(language), LanguageGerman) {
		return LanguageGerman
	}
	return LanguageEnglish
}

func recordOf(user models.User) credentials.Record {
	return credentials.Record{
		Scheme: user.PasswordScheme,
		Salt:   user.PasswordSalt,
		Digest: user.PasswordHash,
	}
}
