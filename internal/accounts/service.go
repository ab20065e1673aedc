package accounts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/MarkoPoloResearchLab/parking/pkg/occupancy"
	"github.com/tyemirov/tauth/pkg/sessionvalidator"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultSessionTTL = 24 * time.Hour
	maxUsernameLength = 64
	minPasswordLength = 5
	bcryptMaxPassword = 72

	operationRegister    = "register"
	operationLogin       = "login"
	operationLogout      = "logout"
	operationPromoteUser = "promote_user"
	operationCreateAdmin = "create_admin"
	operationEnsureAdmin = "ensure_admin"

	operationStatusOK           = "ok"
	operationStatusError        = "error"
	operationStatusAlreadyAdmin = "already_admin"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// WithSessionTTL overrides how long issued sessions stay valid.
func WithSessionTTL(ttl time.Duration) ServiceOption {
	return func(service *Service) {
		if ttl > 0 {
			service.sessionTTL = ttl
		}
	}
}

// WithPasswordCost overrides the bcrypt cost.
func WithPasswordCost(cost int) ServiceOption {
	return func(service *Service) {
		service.passwordCost = cost
	}
}

// WithOperationLogger wires a logger that receives account events.
func WithOperationLogger(logger occupancy.OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// Service handles registration, login, sessions, and admin management.
type Service struct {
	store        Store
	issuer       *TokenIssuer
	nowFn        func() int64
	sessionTTL   time.Duration
	passwordCost int
	logger       occupancy.OperationLogger
}

// NewService wires a Service.
func NewService(store Store, issuer *TokenIssuer, now func() int64, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if issuer == nil {
		return nil, fmt.Errorf("%w: token issuer is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{
		store:        store,
		issuer:       issuer,
		nowFn:        now,
		sessionTTL:   defaultSessionTTL,
		passwordCost: bcrypt.DefaultCost,
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// Register creates a regular user account.
func (service *Service) Register(ctx context.Context, username string, displayName string, password string) (User, error) {
	user, err := service.createUser(ctx, username, displayName, password, false)
	service.logOperation(ctx, operationRegister, user.ID, "", err)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// Login verifies credentials and opens a new session.
func (service *Service) Login(ctx context.Context, username string, password string) (LoginResult, error) {
	result, err := service.login(ctx, username, password)
	service.logOperation(ctx, operationLogin, result.User.ID, "", err)
	if err != nil {
		return LoginResult{}, err
	}
	return result, nil
}

func (service *Service) login(ctx context.Context, username string, password string) (LoginResult, error) {
	user, err := service.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, occupancy.ErrUserNotFound) {
			return LoginResult{}, occupancy.ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, occupancy.ErrInvalidCredentials
	}
	now := service.nowFn()
	session, err := service.store.CreateSession(ctx, SessionInput{
		UserID:         user.ID,
		ExpiresUnixUTC: now + int64(service.sessionTTL/time.Second),
	})
	if err != nil {
		return LoginResult{}, err
	}
	token, err := service.issuer.Issue(user, session, now)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: token, Session: session, User: user}, nil
}

// Logout revokes the session carried by the claims.
func (service *Service) Logout(ctx context.Context, claims *sessionvalidator.Claims) error {
	principal, err := service.Authenticate(ctx, claims)
	if err == nil {
		err = service.store.RevokeSession(ctx, claims.RegisteredClaims.ID)
	}
	service.logOperation(ctx, operationLogout, principal.UserID, "", err)
	return err
}

// Authenticate resolves validated token claims into a principal.
// The session must be live and the admin flag is read from the user row.
func (service *Service) Authenticate(ctx context.Context, claims *sessionvalidator.Claims) (occupancy.Principal, error) {
	if claims == nil || strings.TrimSpace(claims.RegisteredClaims.ID) == "" {
		return occupancy.Principal{}, occupancy.ErrSessionNotFound
	}
	session, err := service.store.GetSession(ctx, claims.RegisteredClaims.ID)
	if err != nil {
		return occupancy.Principal{}, err
	}
	if session.Revoked || session.ExpiresUnixUTC <= service.nowFn() {
		return occupancy.Principal{}, occupancy.ErrSessionNotFound
	}
	claimedUserID, err := strconv.ParseInt(claims.GetUserID(), 10, 64)
	if err != nil || claimedUserID != session.UserID.Int64() {
		return occupancy.Principal{}, occupancy.ErrSessionNotFound
	}
	user, err := service.store.GetUser(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, occupancy.ErrUserNotFound) {
			return occupancy.Principal{}, occupancy.ErrSessionNotFound
		}
		return occupancy.Principal{}, err
	}
	return user.Principal(), nil
}

// PromoteUser grants the admin role. Promoting an admin is reported, not rejected.
func (service *Service) PromoteUser(ctx context.Context, principal occupancy.Principal, userID occupancy.UserID) (PromotionResult, error) {
	if err := occupancy.RequireAdmin(principal); err != nil {
		return PromotionResult{}, err
	}
	result, err := service.promote(ctx, userID)
	status := ""
	if err == nil && result.AlreadyAdmin {
		status = operationStatusAlreadyAdmin
	}
	service.logOperation(ctx, operationPromoteUser, userID, status, err)
	if err != nil {
		return PromotionResult{}, err
	}
	return result, nil
}

func (service *Service) promote(ctx context.Context, userID occupancy.UserID) (PromotionResult, error) {
	changed, err := service.store.PromoteUser(ctx, userID)
	if err != nil {
		return PromotionResult{}, err
	}
	user, err := service.store.GetUser(ctx, userID)
	if err != nil {
		return PromotionResult{}, err
	}
	return PromotionResult{User: user, AlreadyAdmin: !changed}, nil
}

// CreateAdmin creates a new administrator account on behalf of an admin.
func (service *Service) CreateAdmin(ctx context.Context, principal occupancy.Principal, username string, displayName string, password string) (User, error) {
	if err := occupancy.RequireAdmin(principal); err != nil {
		return User{}, err
	}
	user, err := service.createUser(ctx, username, displayName, password, true)
	service.logOperation(ctx, operationCreateAdmin, user.ID, "", err)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// ListUsers returns every account ordered by id.
func (service *Service) ListUsers(ctx context.Context, principal occupancy.Principal) ([]User, error) {
	if err := occupancy.RequireAdmin(principal); err != nil {
		return nil, err
	}
	return service.store.ListUsers(ctx)
}

// EnsureAdmin makes sure an administrator with the username exists.
// An existing regular user is promoted; its password is left untouched.
func (service *Service) EnsureAdmin(ctx context.Context, username string, displayName string, password string) (User, bool, error) {
	user, created, err := service.ensureAdmin(ctx, username, displayName, password)
	service.logOperation(ctx, operationEnsureAdmin, user.ID, "", err)
	if err != nil {
		return User{}, false, err
	}
	return user, created, nil
}

func (service *Service) ensureAdmin(ctx context.Context, username string, displayName string, password string) (User, bool, error) {
	existing, err := service.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err == nil {
		if existing.IsAdmin {
			return existing, false, nil
		}
		result, err := service.promote(ctx, existing.ID)
		if err != nil {
			return User{}, false, err
		}
		return result.User, false, nil
	}
	if !errors.Is(err, occupancy.ErrUserNotFound) {
		return User{}, false, err
	}
	user, err := service.createUser(ctx, username, displayName, password, true)
	if err != nil {
		return User{}, false, err
	}
	return user, true, nil
}

func (service *Service) createUser(ctx context.Context, username string, displayName string, password string, isAdmin bool) (User, error) {
	normalizedUsername, err := normalizeUsername(username)
	if err != nil {
		return User{}, err
	}
	if len(password) < minPasswordLength || len(password) > bcryptMaxPassword {
		return User{}, fmt.Errorf("%w: must be %d to %d bytes", ErrInvalidPassword, minPasswordLength, bcryptMaxPassword)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), service.passwordCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	normalizedDisplayName := strings.TrimSpace(displayName)
	if normalizedDisplayName == "" {
		normalizedDisplayName = normalizedUsername
	}
	return service.store.CreateUser(ctx, UserInput{
		Username:     normalizedUsername,
		DisplayName:  normalizedDisplayName,
		PasswordHash: string(hash),
		IsAdmin:      isAdmin,
	})
}

func (service *Service) logOperation(ctx context.Context, operation string, userID occupancy.UserID, status string, err error) {
	if service.logger == nil {
		return
	}
	if status == "" {
		if err != nil {
			status = operationStatusError
		} else {
			status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, occupancy.OperationLog{
		Operation: operation,
		UserID:    userID,
		Status:    status,
		Error:     err,
	})
}

func normalizeUsername(raw string) (string, error) {
	username := strings.TrimSpace(raw)
	if username == "" {
		return "", fmt.Errorf("%w: is required", ErrInvalidUsername)
	}
	if len(username) > maxUsernameLength {
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidUsername, maxUsernameLength)
	}
	for _, character := range username {
		if unicode.IsSpace(character) || unicode.IsControl(character) {
			return "", fmt.Errorf("%w: must not contain whitespace", ErrInvalidUsername)
		}
	}
	return username, nil
}
