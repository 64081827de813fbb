package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nkiryanov/accounts/internal/apperrors"
	"github.com/nkiryanov/accounts/internal/models"
	"github.com/nkiryanov/accounts/internal/repository"
	"github.com/nkiryanov/accounts/internal/service/auth/tokenmanager"
)

const refreshCookieName = "refreshtoken"

// Compared against when the username is unknown so login cost doesn't
// depend on user existence. Bcrypt hash at DefaultCost.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

type Config struct {
	// Hasher to use during login
	// If not set bcrypt hasher is used
	Hasher PasswordHasher
}

// Auth service: credential verification and bearer token issuance
type AuthService struct {
	// Manager to issue token pairs (access and refresh)
	token *tokenmanager.TokenManager

	// hasher to compare user passwords
	hasher PasswordHasher

	// Repository to access long term data
	userRepo repository.UserRepo
}

func NewService(cfg Config, token *tokenmanager.TokenManager, userRepo repository.UserRepo) (*AuthService, error) {
	hasher := cfg.Hasher
	if hasher == nil {
		hasher = BcryptHasher{}
	}

	if token == nil || userRepo == nil {
		return nil, errors.New("token manager and user repo must not be nil")
	}

	return &AuthService{
		token:    token,
		hasher:   hasher,
		userRepo: userRepo,
	}, nil
}

// Login verifies credentials and issues a fresh token pair
// Bad username and bad password are indistinguishable to the caller
func (s *AuthService) Login(ctx context.Context, username string, password string) (models.User, models.TokenPair, error) {
	var pair models.TokenPair

	user, err := s.userRepo.GetUserByUsername(ctx, username)
	if err != nil {
		// Compare against a dummy hash anyway to keep the cost constant
		_ = s.hasher.Compare(dummyHash, password)
		return user, pair, apperrors.ErrUserNotFound
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return user, pair, apperrors.ErrUserNotFound
	}

	if !user.Active {
		return user, pair, apperrors.ErrUserInactive
	}

	// Stamp last login: also rotates the salt of outstanding activation
	// and reset tokens
	user, err = s.userRepo.SetLastLogin(ctx, user.ID, time.Now())
	if err != nil {
		return user, pair, fmt.Errorf("error while stamping last login. Err: %w", err)
	}

	pair, err = s.token.GeneratePair(ctx, user)
	if err != nil {
		return user, pair, fmt.Errorf("error while generating token pair. Err: %w", err)
	}

	return user, pair, nil
}

// Refresh rotates a single use refresh token into a fresh pair
func (s *AuthService) Refresh(ctx context.Context, refresh string) (models.TokenPair, error) {
	var pair models.TokenPair

	token, err := s.token.UseRefresh(ctx, refresh)
	if err != nil {
		return pair, err
	}

	user, err := s.userRepo.GetUserByID(ctx, token.UserID)
	if err != nil {
		return pair, fmt.Errorf("error while getting refresh token user. Err: %w", err)
	}

	pair, err = s.token.GeneratePair(ctx, user)
	if err != nil {
		return pair, fmt.Errorf("error while generating token pair. Err: %w", err)
	}

	return pair, nil
}

// SetTokens writes the pair to the response: access token in the
// Authorization header, refresh token in an HttpOnly cookie
func (s *AuthService) SetTokens(w http.ResponseWriter, pair models.TokenPair) {
	w.Header().Set("Authorization", "Bearer "+pair.Access.Value)

	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    pair.Refresh.Value,
		Path:     "/",
		MaxAge:   int(time.Until(pair.Refresh.ExpiresAt).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// GetRefresh extracts the refresh token from the request cookie
func (s *AuthService) GetRefresh(r *http.Request) (string, error) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil {
		return "", fmt.Errorf("refresh cookie error: %w", apperrors.ErrRefreshTokenNotFound)
	}
	return cookie.Value, nil
}

// Auth authenticates the request by its bearer access token
func (s *AuthService) Auth(ctx context.Context, r *http.Request) (models.User, error) {
	var user models.User

	header := r.Header.Get("Authorization")
	access, found := strings.CutPrefix(header, "Bearer ")
	if !found || access == "" {
		return user, errors.New("authorization header with bearer token required")
	}

	userID, err := s.token.ParseAccess(ctx, access)
	if err != nil {
		return user, err
	}

	user, err = s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return user, fmt.Errorf("error while getting token user. Err: %w", err)
	}

	return user, nil
}
