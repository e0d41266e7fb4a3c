package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/quiet-hours/internal/apperror"
	"github.com/sakif/quiet-hours/internal/auth"
	"github.com/sakif/quiet-hours/internal/model"
	"github.com/sakif/quiet-hours/internal/repository"
)

const (
	MinPasswordLength   = 8
	MaxFullNameLength   = 100
	invalidCredentials  = "invalid email or password"
	duplicateEmailError = "an account with this email already exists"
)

// AuthService creates profiles and issues session tokens.
//
//	AuthHandler → AuthService → ProfileRepository
//	                          ↘ TokenService, PasswordService
type AuthService struct {
	profiles  repository.ProfileRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(
	profiles repository.ProfileRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		profiles:  profiles,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the profile with a freshly issued token so the handler
// can set the cookie and respond in one step.
type AuthResult struct {
	Profile *model.Profile
	Token   string
}

// Register creates a password account. The email must be unused.
func (s *AuthService) Register(ctx context.Context, email, password, fullName string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	fullName = strings.TrimSpace(fullName)

	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if utf8.RuneCountInString(fullName) > MaxFullNameLength {
		return nil, apperror.ValidationFailed("fullName",
			fmt.Sprintf("full name must be %d characters or less", MaxFullNameLength))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, apperror.ValidationFailed("password", "password is too long")
		}
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	profile := &model.Profile{Email: email, FullName: fullName, PasswordHash: hash}
	if err := s.profiles.CreateProfile(ctx, profile); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, &apperror.AppError{Err: apperror.ErrConflict, Message: duplicateEmailError, Field: "email"}
		}
		return nil, fmt.Errorf("service/auth: creating profile: %w", err)
	}

	s.logger.Info("profile registered", "user_id", profile.UserID)
	return s.issue(profile)
}

// Login checks an email and password. Unknown emails and wrong passwords
// produce the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	profile, err := s.profiles.GetProfileByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized(invalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: looking up profile: %w", err)
	}

	if err := s.passwords.Verify(profile.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			s.logger.Info("failed login", "user_id", profile.UserID)
			return nil, apperror.Unauthorized(invalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	return s.issue(profile)
}

// LoginOrRegisterGitHub provisions or refreshes the profile for a GitHub
// account after the OAuth callback.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, errors.New("service/auth: GitHub user must not be nil")
	}
	if ghUser.Email == "" {
		return nil, apperror.ValidationFailed("email", "GitHub account has no verified email")
	}

	id := ghUser.ID
	profile := &model.Profile{
		Email:    ghUser.Email,
		FullName: ghUser.DisplayName(),
		GitHubID: &id,
	}
	if err := s.profiles.UpsertGitHubProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("service/auth: upserting profile (githubID=%d): %w", ghUser.ID, err)
	}

	s.logger.Info("profile authenticated via GitHub", "user_id", profile.UserID, "login", ghUser.Login)
	return s.issue(profile)
}

// GetProfile returns the profile behind a session.
func (s *AuthService) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("not signed in")
	}
	return s.profiles.GetProfileByUserID(ctx, userID)
}

// SessionTTL is the lifetime of issued tokens, for the cookie MaxAge.
func (s *AuthService) SessionTTL() time.Duration {
	return s.tokens.TTL()
}

func (s *AuthService) issue(profile *model.Profile) (*AuthResult, error) {
	token, err := s.tokens.Generate(profile.UserID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for %s: %w", profile.UserID, err)
	}
	return &AuthResult{Profile: profile, Token: token}, nil
}
