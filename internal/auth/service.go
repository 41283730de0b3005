package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/secure/precis"

	"github.com/memberdesk/memberdesk/internal/shared"
)

// SignupInput is the typed form of a signup request.
type SignupInput struct {
	Email     string `validate:"required,email"`
	Password  string `validate:"required,min=6"`
	FirstName string `validate:"required"`
	LastName  string `validate:"required"`
}

// Result is the outcome of a signup or login attempt. Expected business
// outcomes (duplicate email, unknown user, wrong password, invalid input) are
// reported here; only infrastructure failures travel as errors.
type Result struct {
	Error         bool
	UserExists    bool
	UserNotFound  bool
	WrongPassword bool
	Message       string
	Issues        map[string]string
	User          *User
}

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	hasher   *Hasher
	validate *validator.Validate
}

// NewService constructs a new Service.
func NewService(repo Repository, hasher *Hasher) *Service {
	return &Service{repo: repo, hasher: hasher, validate: validator.New()}
}

// Signup registers a new account and, on success, issues a session for the
// current client. Role always defaults to RoleUser here.
func (s *Service) Signup(ctx context.Context, sess *shared.Session, in SignupInput) (Result, error) {
	in.Email = NormalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if issues := s.validateSignup(in); len(issues) > 0 {
		return Result{Error: true, Message: "Invalid input", Issues: issues}, nil
	}

	_, err := s.repo.FindByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return Result{Error: true, UserExists: true, Message: "User already exists"}, nil
	case !errors.Is(err, shared.ErrNotFound):
		return Result{}, err
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Result{}, err
	}

	user, err := s.repo.Create(ctx, NewUser{
		Email:          in.Email,
		PasswordDigest: digest,
		Role:           RoleUser,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
	})
	if err != nil {
		if errors.Is(err, shared.ErrUserExists) {
			// Lost a race against a concurrent signup for the same email.
			return Result{Error: true, UserExists: true, Message: "User already exists"}, nil
		}
		return Result{}, err
	}

	if sess != nil {
		sess.SetUser(shared.SessionUser{ID: user.ID, Email: user.Email, Role: user.Role})
	}
	return Result{User: user}, nil
}

// Login verifies credentials and, on success, issues a session for the
// current client.
func (s *Service) Login(ctx context.Context, sess *shared.Session, email, password string) (Result, error) {
	email = NormalizeEmail(email)

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Result{Error: true, UserNotFound: true, Message: "User not found"}, nil
		}
		return Result{}, err
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return Result{}, err
	}
	if digest != user.PasswordDigest {
		return Result{Error: true, WrongPassword: true, Message: "Incorrect password"}, nil
	}

	if sess != nil {
		sess.SetUser(shared.SessionUser{ID: user.ID, Email: user.Email, Role: user.Role})
	}
	return Result{Message: "Logged in", User: user}, nil
}

// RegisterLoginSession records session metadata in the audit trail.
func (s *Service) RegisterLoginSession(ctx context.Context, sessionID string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateLoginSession(ctx, sessionID, userID, expiresAt, ip, ua)
}

// RemoveLoginSession deletes a session audit record.
func (s *Service) RemoveLoginSession(ctx context.Context, sessionID string) error {
	return s.repo.DeleteLoginSession(ctx, sessionID)
}

func (s *Service) validateSignup(in SignupInput) map[string]string {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	issues := make(map[string]string)
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		issues["general"] = "Invalid input"
		return issues
	}
	for _, fe := range fieldErrs {
		issues[fe.Field()] = issueMessage(fe)
	}
	return issues
}

func issueMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return "Email must be a valid email address"
	case "min":
		return fe.Field() + " must be at least " + fe.Param() + " characters"
	default:
		return fe.Field() + " is invalid"
	}
}

var emailProfile = precis.UsernameCaseMapped

// NormalizeEmail canonicalizes an email address for lookup and storage so
// that case-variant spellings resolve to one account.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return strings.ToLower(email)
	}
	normalized, err := emailProfile.String(local)
	if err != nil {
		normalized = strings.ToLower(local)
	}
	return normalized + "@" + strings.ToLower(domain)
}
