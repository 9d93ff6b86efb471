package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"twitapp/internal/metrics"
	"twitapp/internal/models"
	"twitapp/internal/repositories"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("twitapp/services")

const (
	msgRegistered      = "Your registration was successful"
	msgPasswordUpdated = "Password updated successfully."
	msgLoggedOut       = "Logged out successfully"
	msgBadCredentials  = "authentication failed, please check that email and/or password are correct"
)

// AuthService handles registration, login, logout and password changes.
type AuthService struct {
	users   repositories.UserRepository
	hasher  PasswordHasher
	tokens  *TokenService
	metrics *metrics.Metrics

	// dummyHash is verified against when the email is unknown so both
	// login failure paths cost one hash comparison.
	dummyHash string
}

// NewAuthService creates a new AuthService.
func NewAuthService(users repositories.UserRepository, hasher PasswordHasher, tokens *TokenService, m *metrics.Metrics) (*AuthService, error) {
	dummy, err := hasher.Hash(uuid.New().String())
	if err != nil {
		return nil, oops.Code("AUTH_INIT_FAILED").Wrapf(err, "failed to prepare dummy hash")
	}
	return &AuthService{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		metrics:   m,
		dummyHash: dummy,
	}, nil
}

// Register creates a user after checking the email is not taken.
// Two concurrent registrations with the same email can both pass the check.
func (s *AuthService) Register(ctx context.Context, email, password string) (_ *models.UserSummary, err error) {
	ctx, span := tracer.Start(ctx, "auth.register")
	defer endSpan(span, &err)

	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil && existing != nil:
		return nil, oops.Code("AUTH_USER_EXISTS").
			With("email", email).
			Public(fmt.Sprintf("User with %s already exists", email)).
			Wrapf(ErrBadRequest, "user already exists")
	case err != nil && !errors.Is(err, repositories.ErrNotFound):
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("email", email).
			Wrap(withKind(ErrInternal, err))
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").Wrap(withKind(ErrInternal, err))
	}

	user := models.NewUser(email, hash)
	if err := s.users.Create(ctx, user); err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("email", email).
			Wrap(withKind(ErrInternal, err))
	}

	slog.InfoContext(ctx, "user registered", "user_id", user.ID)
	return &models.UserSummary{ID: user.ID, Message: msgRegistered}, nil
}

// Login verifies the credentials and returns a signed token.
// Unknown email and wrong password fail with the same message.
func (s *AuthService) Login(ctx context.Context, email, password string) (_ string, err error) {
	ctx, span := tracer.Start(ctx, "auth.login")
	defer endSpan(span, &err)
	defer func() {
		if err != nil {
			s.metrics.RecordLogin("failure")
		} else {
			s.metrics.RecordLogin("success")
		}
	}()

	user, lookupErr := s.users.GetByEmail(ctx, email)
	targetHash := s.dummyHash
	switch {
	case lookupErr == nil:
		targetHash = user.PasswordHash
	case !errors.Is(lookupErr, repositories.ErrNotFound):
		return "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by email").
			Wrap(withKind(ErrInternal, lookupErr))
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil && lookupErr == nil {
		return "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(withKind(ErrInternal, verifyErr))
	}
	if lookupErr != nil || !valid {
		return "", oops.Code("AUTH_INVALID_CREDENTIALS").
			Public(msgBadCredentials).
			Wrapf(ErrUnauthorized, "invalid email or password")
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", err
	}
	slog.InfoContext(ctx, "user logged in", "user_id", user.ID)
	return token, nil
}

// ChangePassword replaces the password of the account registered under email.
// callerID is the authenticated user; the account is picked by email alone, and
// a mismatch between the two is logged but not rejected.
func (s *AuthService) ChangePassword(ctx context.Context, callerID, email, oldPassword, newPassword string) (_ string, err error) {
	ctx, span := tracer.Start(ctx, "auth.change_password")
	defer endSpan(span, &err)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", fromStore(err, "AUTH_CHANGE_PASSWORD_FAILED", "No user found")
	}
	if callerID != user.ID {
		s.warnForeignChange(ctx, callerID, user)
	}

	valid, err := s.hasher.Verify(oldPassword, user.PasswordHash)
	if err != nil {
		return "", oops.Code("AUTH_CHANGE_PASSWORD_FAILED").Wrap(withKind(ErrInternal, err))
	}
	if !valid {
		return "", oops.Code("AUTH_INVALID_PASSWORD").
			With("user_id", user.ID).
			Public("Invalid password provided.").
			Wrapf(ErrBadRequest, "old password does not match")
	}

	same, err := s.hasher.Verify(newPassword, user.PasswordHash)
	if err != nil {
		return "", oops.Code("AUTH_CHANGE_PASSWORD_FAILED").Wrap(withKind(ErrInternal, err))
	}
	if same {
		return "", oops.Code("AUTH_PASSWORD_UNCHANGED").
			With("user_id", user.ID).
			Public("Old and new password must not be the same").
			Wrapf(ErrBadRequest, "new password equals old password")
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return "", oops.Code("AUTH_CHANGE_PASSWORD_FAILED").Wrap(withKind(ErrInternal, err))
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return "", fromStore(err, "AUTH_CHANGE_PASSWORD_FAILED", "No user found")
	}

	slog.InfoContext(ctx, "password changed", "user_id", user.ID)
	return msgPasswordUpdated, nil
}

// warnForeignChange logs a password change made by someone other than the
// account owner. The caller's email is included when the caller still exists.
func (s *AuthService) warnForeignChange(ctx context.Context, callerID string, target *models.User) {
	attrs := []any{"caller_id", callerID, "target_id", target.ID, "target_email", target.Email}
	caller, err := s.users.GetByID(ctx, callerID)
	switch {
	case err == nil:
		attrs = append(attrs, "caller_email", caller.Email)
	case !errors.Is(err, repositories.ErrNotFound) && !errors.Is(err, repositories.ErrInvalidID):
		attrs = append(attrs, "lookup_error", err)
	}
	slog.WarnContext(ctx, "password change for another account", attrs...)
}

// Logout has no server-side effect. Issued tokens stay valid until they expire.
func (s *AuthService) Logout(ctx context.Context, userID string) string {
	slog.InfoContext(ctx, "user logged out", "user_id", userID)
	return msgLoggedOut
}

// ValidateToken checks a bearer token and returns its claims.
func (s *AuthService) ValidateToken(token string) (*Claims, error) {
	return s.tokens.Validate(token)
}

func endSpan(span trace.Span, err *error) {
	if *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, (*err).Error())
		span.SetAttributes(attribute.String("error.kind", KindOf(*err).Error()))
	}
	span.End()
}
