package handlers

import (
	"context"
	"net/http"

	"github.com/nkiryanov/accounts/internal/models"
	"github.com/nkiryanov/accounts/internal/service/account"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	accountHandler *AccountHandler,
	authHandler *AuthHandler,
	authMiddleware func(http.Handler) http.Handler,
	mds ...func(next http.Handler) http.Handler,
) http.Handler {
	withAuth := func(h http.Handler) http.Handler {
		return authMiddleware(h)
	}

	apiuser := http.NewServeMux()

	apiuser.HandleFunc("POST /register", accountHandler.register)
	apiuser.HandleFunc("GET /activate/{uid}/{token}", accountHandler.activate)
	apiuser.HandleFunc("POST /password-reset", accountHandler.requestReset)
	apiuser.HandleFunc("POST /password-reset/{uid}/{token}", accountHandler.confirmReset)

	apiuser.HandleFunc("POST /login", authHandler.login)
	apiuser.HandleFunc("POST /refresh", authHandler.refresh)

	apiuser.Handle("GET /me", withAuth(handleUserMe()))

	root := http.NewServeMux()
	root.Handle("/api/user/", http.StripPrefix("/api/user", apiuser))

	return chain(root, mds...)
}

type accountService interface {
	// Register new inactive user and queue the activation email
	// Has to return apperrors.ErrUserAlreadyExists if username or email is taken
	Register(ctx context.Context, arg account.RegisterParams) (models.User, error)

	// Activate user referenced by uid with the emailed token
	// Has to return apperrors.ErrInvalidToken for any bad uid or token
	Activate(ctx context.Context, uid string, token string) error

	// Queue a reset email for the address owner
	// Has to return apperrors.ErrUserNotFound if email is unknown
	RequestPasswordReset(ctx context.Context, email string) error

	// Replace the password authorized by the emailed token
	// Has to return apperrors.ErrInvalidToken for any bad uid or token
	ConfirmPasswordReset(ctx context.Context, uid string, token string, newPassword string) error
}

type authService interface {
	// Login user with username and password
	// Has to return apperrors.ErrUserNotFound on bad credentials and
	// apperrors.ErrUserInactive for not yet activated accounts
	Login(ctx context.Context, username string, password string) (models.User, models.TokenPair, error)

	// Refresh tokens using refresh token
	Refresh(ctx context.Context, refresh string) (models.TokenPair, error)

	// Set auth tokens (access, refresh) to response
	SetTokens(w http.ResponseWriter, pair models.TokenPair)

	// Get refresh token from request
	GetRefresh(r *http.Request) (string, error)
}
