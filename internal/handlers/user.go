package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/accounts/internal/handlers/render"
	"github.com/nkiryanov/accounts/internal/handlers/userctx"
	"github.com/nkiryanov/accounts/internal/models"
)

type userSummary struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
}

func summarize(u models.User) userSummary {
	return userSummary{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

func handleUserMe() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userctx.FromContext(r.Context())
		render.JSON(w, summarize(user))
	})
}
