package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/expensehub/internal/domain"
	"github.com/aryan0dhankhar/expensehub/internal/observability/metrics"
	"github.com/aryan0dhankhar/expensehub/internal/security/auth"
)

// MinPasswordLength is the shortest accepted password
const MinPasswordLength = 6

type passwordHasher interface {
	Hash(password string) (string, error)
	Check(hash, password string) error
}

// AuthService handles company registration and login
type AuthService struct {
	companies     domain.CompanyRepository
	users         domain.UserRepository
	tokens        *auth.TokenManager
	hasher        passwordHasher
	dummyHash     string
	defaultBudget float64
	logger        *slog.Logger
	now           func() time.Time
}

// NewAuthService creates a new authentication service
func NewAuthService(
	companies domain.CompanyRepository,
	users domain.UserRepository,
	tokens *auth.TokenManager,
	hasher *auth.PasswordHasher,
	defaultBudget float64,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultBudget <= 0 {
		defaultBudget = domain.DefaultMonthlyBudget
	}

	// compared against on unknown emails so both login failures cost one bcrypt check
	dummyHash, err := hasher.Hash("expensehub-unknown-user")
	if err != nil {
		logger.Warn("failed to prepare login dummy hash", slog.String("error", err.Error()))
	}

	return &AuthService{
		companies:     companies,
		users:         users,
		tokens:        tokens,
		hasher:        hasher,
		dummyHash:     dummyHash,
		defaultBudget: defaultBudget,
		logger:        logger,
		now:           time.Now,
	}
}

// RegisterCompanyInput is the payload of a company sign-up
type RegisterCompanyInput struct {
	CompanyName string
	Name        string
	Email       string
	Password    string
}

// AuthResult is returned by registration and login
type AuthResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// RegisterCompany creates a tenant and its first company_admin user. If the
// user cannot be stored the company is removed again.
func (s *AuthService) RegisterCompany(ctx context.Context, in RegisterCompanyInput) (*AuthResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	in.Name = strings.TrimSpace(in.Name)
	if in.CompanyName == "" || in.Name == "" || in.Email == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: companyName, name, email and password are required", domain.ErrValidation)
	}
	if len(in.Password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, MinPasswordLength)
	}

	existing, err := s.users.GetByEmail(ctx, in.Email)
	switch {
	case err == nil && existing != nil:
		metrics.ObserveAuthAttempt("register", "conflict")
		return nil, fmt.Errorf("%w: user already exists", domain.ErrConflict)
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		metrics.ObserveAuthAttempt("register", "error")
		return nil, internal(err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.String("error", err.Error()))
		return nil, internal(err)
	}

	now := s.now().UTC()
	company := &domain.Company{
		ID:        uuid.NewString(),
		Name:      in.CompanyName,
		CreatedAt: now,
	}
	if err := s.companies.Create(ctx, company); err != nil {
		metrics.ObserveAuthAttempt("register", "error")
		return nil, internal(err)
	}

	budget := s.defaultBudget
	user := &domain.User{
		ID:            uuid.NewString(),
		Name:          in.Name,
		Email:         in.Email,
		PasswordHash:  hash,
		Role:          domain.RoleCompanyAdmin,
		CompanyID:     company.ID,
		MonthlyBudget: &budget,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if cleanupErr := s.companies.Delete(context.WithoutCancel(ctx), company.ID); cleanupErr != nil {
			s.logger.Error("failed to remove company after user creation failed",
				slog.String("company_id", company.ID),
				slog.String("error", cleanupErr.Error()),
			)
		}
		if errors.Is(err, domain.ErrConflict) {
			metrics.ObserveAuthAttempt("register", "conflict")
			return nil, fmt.Errorf("%w: user already exists", domain.ErrConflict)
		}
		metrics.ObserveAuthAttempt("register", "error")
		return nil, internal(err)
	}

	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	metrics.ObserveAuthAttempt("register", "success")
	s.logger.Info("company registered",
		slog.String("company_id", company.ID),
		slog.String("user_id", user.ID),
	)
	return result, nil
}

// Login authenticates a user. Unknown email and wrong password produce the
// same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", domain.ErrValidation)
	}

	invalid := fmt.Errorf("%w: invalid email or password", domain.ErrUnauthenticated)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			_ = s.hasher.Check(s.dummyHash, password)
			s.logger.Info("login attempt with unknown email")
			metrics.ObserveAuthAttempt("login", "failure")
			return nil, invalid
		}
		metrics.ObserveAuthAttempt("login", "error")
		return nil, internal(err)
	}

	if err := s.hasher.Check(user.PasswordHash, password); err != nil {
		if errors.Is(err, domain.ErrUnauthenticated) {
			s.logger.Info("login failed with wrong password", slog.String("user_id", user.ID))
			metrics.ObserveAuthAttempt("login", "failure")
			return nil, invalid
		}
		metrics.ObserveAuthAttempt("login", "error")
		return nil, internal(err)
	}

	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	metrics.ObserveAuthAttempt("login", "success")
	s.logger.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("company_id", user.CompanyID),
	)
	return result, nil
}

func (s *AuthService) issue(user *domain.User) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(domain.Principal{
		UserID:    user.ID,
		CompanyID: user.CompanyID,
		Role:      user.Role,
	})
	if err != nil {
		s.logger.Error("failed to sign token", slog.String("error", err.Error()))
		return nil, internal(err)
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// internal keeps taxonomy errors as they are and wraps anything else as ErrInternal
func internal(err error) error {
	for _, known := range []error{
		domain.ErrValidation, domain.ErrUnauthenticated, domain.ErrForbidden,
		domain.ErrNotFound, domain.ErrConflict, domain.ErrInternal,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrInternal, err)
}
