package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/accounts/internal/apperrors"
	"github.com/nkiryanov/accounts/internal/handlers/render"
)

type AuthHandler struct {
	authService authService
}

func NewAuth(s authService) *AuthHandler {
	return &AuthHandler{authService: s}
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	type LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	type LoginSuccessResponse struct {
		Message string      `json:"message"`
		Token   string      `json:"token"`
		User    userSummary `json:"user"`
	}

	data, err := render.BindAndValidate[LoginRequest](w, r)
	if err != nil {
		return
	}

	user, pair, err := h.authService.Login(r.Context(), data.Username, data.Password)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "Invalid username or password", http.StatusUnauthorized)
		case errors.Is(err, apperrors.ErrUserInactive):
			render.ServiceError(w, "User account is inactive", http.StatusBadRequest)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	h.authService.SetTokens(w, pair)
	render.JSON(w, LoginSuccessResponse{
		Message: "Login successful",
		Token:   pair.Access.Value,
		User:    summarize(user),
	})
}

func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	type RefreshSuccessResponse struct {
		Message string `json:"message"`
	}

	refresh, err := h.authService.GetRefresh(r)
	if err != nil {
		render.ServiceError(w, "Refresh token not found", http.StatusUnauthorized)
		return
	}

	pair, err := h.authService.Refresh(r.Context(), refresh)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrRefreshTokenExpired):
			render.ServiceError(w, "Refresh token expired", http.StatusUnauthorized)
		default:
			render.ServiceError(w, "Refresh token not found", http.StatusUnauthorized)
		}
		return
	}

	h.authService.SetTokens(w, pair)
	render.JSON(w, RefreshSuccessResponse{Message: "Tokens refreshed successfully"})
}
