package app

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"classboard/pkg/auth"
	"classboard/pkg/domain"
)

// RegisterInput is the local-account registration payload.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// Register creates a local account.
func (a *App) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	name := strings.TrimSpace(in.Name)
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return domain.User{}, err
	}
	if name == "" {
		return domain.User{}, invalidf("name is required")
	}
	role, err := parseRole(in.Role)
	if err != nil {
		return domain.User{}, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, invalidf("%s", err.Error())
	}

	taken, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return domain.User{}, ErrEmailTaken
	}

	now := a.now()
	user := domain.User{
		ID:           newID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		AuthProvider: domain.ProviderLocal,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

// Login authenticates a local account.
func (a *App) Login(ctx context.Context, email, password string) (domain.User, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	user, ok, err := a.store.GetUserByEmail(normalized)
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// GoogleLogin verifies a Google ID token, creating the account on first login.
func (a *App) GoogleLogin(ctx context.Context, idToken, role string) (domain.User, error) {
	if a.google == nil {
		return domain.User{}, invalidf("google sign-in is not configured")
	}
	identity, err := a.google.Verify(ctx, idToken)
	if err != nil {
		return domain.User{}, invalidf("google sign-in failed")
	}

	user, ok, err := a.store.GetUserByEmail(identity.Email)
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if ok {
		if user.GoogleID == "" {
			user.GoogleID = identity.GoogleID
			user.UpdatedAt = a.now()
			if err := a.store.SaveUser(user); err != nil {
				return domain.User{}, fmt.Errorf("link google id: %w", err)
			}
		}
		return user, nil
	}

	parsedRole, err := parseRole(role)
	if err != nil {
		// First federated login defaults to student when no role is sent.
		parsedRole = domain.RoleStudent
	}
	now := a.now()
	user = domain.User{
		ID:           newID(),
		Name:         identity.Name,
		Email:        identity.Email,
		Role:         parsedRole,
		Verified:     true,
		AuthProvider: domain.ProviderGoogle,
		GoogleID:     identity.GoogleID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

// Profile returns the stored user for an authenticated subject.
func (a *App) Profile(ctx context.Context, userID string) (domain.User, error) {
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	return user, nil
}

// RegisterMessage is shown to newly registered users.
func (a *App) RegisterMessage() string {
	if a.contactEmail == "" {
		return "Registration successful."
	}
	return fmt.Sprintf("Registration successful. Contact %s if you need help getting started.", a.contactEmail)
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", invalidf("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", invalidf("invalid email address")
	}
	return email, nil
}

func parseRole(raw string) (domain.UserRole, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(domain.RoleTeacher):
		return domain.RoleTeacher, nil
	case string(domain.RoleStudent):
		return domain.RoleStudent, nil
	default:
		return "", invalidf("role must be teacher or student")
	}
}
