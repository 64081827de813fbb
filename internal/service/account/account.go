// Package account implements the account lifecycle: registration with
// email activation and password reset through signed one time links.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nkiryanov/accounts/internal/apperrors"
	"github.com/nkiryanov/accounts/internal/mailer"
	"github.com/nkiryanov/accounts/internal/models"
	"github.com/nkiryanov/accounts/internal/repository"
	"github.com/nkiryanov/accounts/internal/service/auth"
	"github.com/nkiryanov/accounts/internal/token"
)

type Config struct {
	// Base url embedded into activation and reset links, e.g. https://example.com
	// Required to be set
	SiteURL string

	// Hasher for new user passwords
	// If not set bcrypt hasher is used
	Hasher auth.PasswordHasher
}

type RegisterParams struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// Account service: the inactive -> active transition and password replacement
type AccountService struct {
	hasher  auth.PasswordHasher
	tokens  *token.Generator
	storage repository.Storage
	siteURL string
}

func NewService(cfg Config, tokens *token.Generator, storage repository.Storage) (*AccountService, error) {
	if cfg.SiteURL == "" {
		return nil, errors.New("site url must not be empty")
	}

	if tokens == nil || storage == nil {
		return nil, errors.New("token generator and storage must not be nil")
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = auth.BcryptHasher{}
	}

	return &AccountService{
		hasher:  hasher,
		tokens:  tokens,
		storage: storage,
		siteURL: strings.TrimRight(cfg.SiteURL, "/"),
	}, nil
}

// Register creates an inactive user and queues the activation email
// User creation and mail enqueue commit in one transaction
func (s *AccountService) Register(ctx context.Context, arg RegisterParams) (models.User, error) {
	var user models.User

	hash, err := s.hasher.Hash(arg.Password)
	if err != nil {
		return user, fmt.Errorf("can't use this as password, error=%w", err)
	}

	err = s.storage.InTx(ctx, func(st repository.Storage) error {
		user, err = st.User().CreateUser(ctx, repository.CreateUserParams{
			Username:       arg.Username,
			Email:          arg.Email,
			FirstName:      arg.FirstName,
			LastName:       arg.LastName,
			HashedPassword: hash,
		})
		if err != nil {
			return err
		}

		body, err := mailer.ActivationLetter(mailer.LetterData{
			Username: user.Username,
			Link:     s.activationLink(user),
		})
		if err != nil {
			return err
		}

		_, err = st.Mail().Enqueue(ctx, user.Email, mailer.SubjectActivation, body)
		return err
	})
	if err != nil {
		return user, err
	}

	return user, nil
}

// Activate flips the user active by a valid activation token
// Activating an already active user with a token that still verifies is a
// no-op success. Replaying a pre-activation token fails: the active flag is
// part of the token salt.
func (s *AccountService) Activate(ctx context.Context, uid string, tok string) error {
	user, err := s.userForToken(ctx, uid, tok)
	if err != nil {
		return err
	}

	if user.Active {
		return nil
	}

	if _, err := s.storage.User().SetActive(ctx, user.ID, true); err != nil {
		return fmt.Errorf("error while activating user. Err: %w", err)
	}

	return nil
}

// RequestPasswordReset queues a reset email for the address owner
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.storage.User().GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}

	body, err := mailer.PasswordResetLetter(mailer.LetterData{
		Username: user.Username,
		Link:     s.resetLink(user),
	})
	if err != nil {
		return err
	}

	if _, err := s.storage.Mail().Enqueue(ctx, user.Email, mailer.SubjectPasswordReset, body); err != nil {
		return fmt.Errorf("error while queueing reset mail. Err: %w", err)
	}

	return nil
}

// ConfirmPasswordReset replaces the password by a valid reset token
// The password change rotates the token salt, so the used token and every
// other outstanding reset token for the user die with it
func (s *AccountService) ConfirmPasswordReset(ctx context.Context, uid string, tok string, newPassword string) error {
	user, err := s.userForToken(ctx, uid, tok)
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("can't use this as password, error=%w", err)
	}

	if _, err := s.storage.User().UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("error while updating password. Err: %w", err)
	}

	return nil
}

// userForToken resolves the token subject and verifies the token against the
// user's current state. Unknown subject, malformed or expired token all
// collapse into ErrInvalidToken.
func (s *AccountService) userForToken(ctx context.Context, uid string, tok string) (models.User, error) {
	var user models.User

	id, err := token.DecodeUID(uid)
	if err != nil {
		return user, apperrors.ErrInvalidToken
	}

	user, err = s.storage.User().GetUserByID(ctx, id)
	if err != nil {
		return user, apperrors.ErrInvalidToken
	}

	if !s.tokens.CheckToken(user, tok) {
		return user, apperrors.ErrInvalidToken
	}

	return user, nil
}

func (s *AccountService) activationLink(user models.User) string {
	return fmt.Sprintf("%s/api/user/activate/%s/%s", s.siteURL, token.EncodeUID(user.ID), s.tokens.MakeToken(user))
}

func (s *AccountService) resetLink(user models.User) string {
	return fmt.Sprintf("%s/api/user/password-reset/%s/%s", s.siteURL, token.EncodeUID(user.ID), s.tokens.MakeToken(user))
}
