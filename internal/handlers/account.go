package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/accounts/internal/apperrors"
	"github.com/nkiryanov/accounts/internal/handlers/render"
	"github.com/nkiryanov/accounts/internal/service/account"
)

type AccountHandler struct {
	accountService accountService
}

func NewAccount(s accountService) *AccountHandler {
	return &AccountHandler{accountService: s}
}

func (h *AccountHandler) register(w http.ResponseWriter, r *http.Request) {
	type RegisterRequest struct {
		Username  string `json:"username" validate:"required,min=2,max=50"`
		Email     string `json:"email" validate:"required,email"`
		FirstName string `json:"first_name" validate:"max=100"`
		LastName  string `json:"last_name" validate:"max=100"`
		Password  string `json:"password" validate:"required,min=8"`
	}
	type RegisterSuccessResponse struct {
		Message string      `json:"message"`
		User    userSummary `json:"user"`
	}

	data, err := render.BindAndValidate[RegisterRequest](w, r)
	if err != nil {
		return
	}

	user, err := h.accountService.Register(r.Context(), account.RegisterParams{
		Username:  data.Username,
		Email:     data.Email,
		FirstName: data.FirstName,
		LastName:  data.LastName,
		Password:  data.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			render.ServiceError(w, "User already exists", http.StatusConflict)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, RegisterSuccessResponse{
		Message: "User registered successfully, check your email to activate the account",
		User:    summarize(user),
	})
}

func (h *AccountHandler) activate(w http.ResponseWriter, r *http.Request) {
	type ActivateSuccessResponse struct {
		Message string `json:"message"`
	}

	err := h.accountService.Activate(r.Context(), r.PathValue("uid"), r.PathValue("token"))
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvalidToken):
			render.ServiceError(w, "Activation link is invalid or has expired", http.StatusBadRequest)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, ActivateSuccessResponse{Message: "Account activated successfully"})
}

func (h *AccountHandler) requestReset(w http.ResponseWriter, r *http.Request) {
	type ResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}
	type ResetSuccessResponse struct {
		Message string `json:"message"`
	}

	data, err := render.BindAndValidate[ResetRequest](w, r)
	if err != nil {
		return
	}

	err = h.accountService.RequestPasswordReset(r.Context(), data.Email)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrUserNotFound):
			// Same wording as any other rejection, the body must not confirm
			// whether the address is registered
			render.ServiceError(w, "Unable to process password reset request", http.StatusBadRequest)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, ResetSuccessResponse{Message: "Password reset email has been sent"})
}

func (h *AccountHandler) confirmReset(w http.ResponseWriter, r *http.Request) {
	type ConfirmResetRequest struct {
		NewPassword string `json:"new_password" validate:"required,min=8"`
	}
	type ConfirmResetSuccessResponse struct {
		Message string `json:"message"`
	}

	data, err := render.BindAndValidate[ConfirmResetRequest](w, r)
	if err != nil {
		return
	}

	err = h.accountService.ConfirmPasswordReset(r.Context(), r.PathValue("uid"), r.PathValue("token"), data.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvalidToken):
			render.ServiceError(w, "Reset link is invalid or has expired", http.StatusBadRequest)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, ConfirmResetSuccessResponse{Message: "Password has been reset successfully"})
}
