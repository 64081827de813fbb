package handlers

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/accounts/internal/handlers/middleware"
	"github.com/nkiryanov/accounts/internal/repository"
	"github.com/nkiryanov/accounts/internal/repository/postgres"
	"github.com/nkiryanov/accounts/internal/service/account"
	"github.com/nkiryanov/accounts/internal/service/auth"
	"github.com/nkiryanov/accounts/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/accounts/internal/testutil"
	"github.com/nkiryanov/accounts/internal/token"
)

const testSiteURL = "https://example.com"

type appEnv struct {
	URL     string
	Storage repository.Storage
}

// Run http server with the full router and production services over one
// rolled back transaction
func withApp(dbpool *pgxpool.Pool, t *testing.T, fn func(env appEnv)) {
	testutil.WithTx(dbpool, t, func(tx pgx.Tx) {
		storage := postgres.NewStorage(tx)

		tokens, err := token.New(token.Config{SecretKey: "test-secret-key", TTL: time.Hour})
		require.NoError(t, err, "token generator should be created without errors")

		tokenManager, err := tokenmanager.New(tokenmanager.Config{SecretKey: "test-secret-key"}, storage.Refresh())
		require.NoError(t, err, "token manager should be created without errors")

		authService, err := auth.NewService(auth.Config{}, tokenManager, storage.User())
		require.NoError(t, err, "auth service should be created without errors")

		accountService, err := account.NewService(account.Config{SiteURL: testSiteURL}, tokens, storage)
		require.NoError(t, err, "account service should be created without errors")

		router := NewRouter(
			NewAccount(accountService),
			NewAuth(authService),
			middleware.AuthMiddleware(authService),
		)
		srv := httptest.NewServer(router)
		defer srv.Close()

		fn(appEnv{URL: srv.URL, Storage: storage})
	})
}

// Post json body and return response with its body read
func postJSON(t *testing.T, url string, data string) (*http.Response, string) {
	t.Helper()

	resp, err := http.Post(url, "application/json", strings.NewReader(data))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	return resp, string(body)
}

// Pull uid and token path segments out of the link in the queued letter
func linkParts(t *testing.T, body string, action string) (uid string, tok string) {
	t.Helper()

	prefix := fmt.Sprintf("%s/api/user/%s/", testSiteURL, action)
	_, rest, found := strings.Cut(body, prefix)
	require.True(t, found, "letter should contain %s link", prefix)

	uid, rest, found = strings.Cut(rest, "/")
	require.True(t, found, "link should have uid and token segments")
	tok, _, _ = strings.Cut(rest, `"`)
	return uid, tok
}

// Register user over http and pull the activation link from the queued letter
func registerUser(t *testing.T, env appEnv, username string, email string, password string) (uid string, tok string) {
	t.Helper()

	data := fmt.Sprintf(`{"username": %q, "email": %q, "password": %q}`, username, email, password)
	resp, body := postJSON(t, env.URL+"/api/user/register", data)
	require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

	mails, err := env.Storage.Mail().ClaimPending(t.Context(), 100)
	require.NoError(t, err)
	for _, m := range mails {
		if m.To == email {
			return linkParts(t, m.Body, "activate")
		}
	}
	t.Fatalf("no activation letter queued for %s", email)
	return "", ""
}

// Register and activate user over http endpoints
func registerActiveUser(t *testing.T, env appEnv, username string, email string, password string) {
	t.Helper()

	uid, tok := registerUser(t, env, username, email, password)

	resp, err := http.Get(env.URL + "/api/user/activate/" + uid + "/" + tok)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	require.Equalf(t, http.StatusOK, resp.StatusCode, "activation failed. Body: %s", string(body))
}
