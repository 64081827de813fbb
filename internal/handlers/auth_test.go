package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/accounts/internal/testutil"
)

func Test_AuthHandler(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	loginData := `{"username": "nkiryanov", "password": "StrongEnoughPassword"}`

	t.Run("login ok", func(t *testing.T) {
		withApp(pg.Pool, t, func(env appEnv) {
			registerActiveUser(t, env, "nkiryanov", "nkiryanov@example.com", "StrongEnoughPassword")

			resp, body := postJSON(t, env.URL+"/api/user/login", loginData)

			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

			var got struct {
				Message string `json:"message"`
				Token   string `json:"token"`
				User    struct {
					Username string `json:"username"`
					Email    string `json:"email"`
				} `json:"user"`
			}
			require.NoError(t, json.Unmarshal([]byte(body), &got))
			assert.Equal(t, "Login successful", got.Message)
			assert.NotEmpty(t, got.Token, "access token should be in the body")
			assert.Equal(t, "nkiryanov", got.User.Username)
			assert.Equal(t, "nkiryanov@example.com", got.User.Email)

			require.Equal(t, 1, len(resp.Cookies()))
			cookie := resp.Cookies()[0]
			require.Equal(t, "refreshtoken", cookie.Name)
			require.Equal(t, cookie.HttpOnly, true, "refresh cookie should be HttpOnly")
			require.Equal(t, "/", cookie.Path, "refresh cookie should be available on / path")
			require.Equal(t, http.SameSiteStrictMode, cookie.SameSite, "refresh cookie should be SameSite Strict")
			require.InDelta(t, (24 * time.Hour).Seconds(), cookie.MaxAge, 1, "max age should be refresh TTL with 1 second delta")
			require.NotEmpty(t, cookie.Value, "refresh cookie should not be empty")

			require.Contains(t, resp.Header, "Authorization")
			header := resp.Header.Get("Authorization")
			require.Contains(t, header, "Bearer")
			require.Equal(t, "Bearer "+got.Token, header, "header and body should carry the same access token")
		})
	})

	t.Run("login before activation fails", func(t *testing.T) {
		withApp(pg.Pool, t, func(env appEnv) {
			registerUser(t, env, "nkiryanov", "nkiryanov@example.com", "StrongEnoughPassword")

			resp, body := postJSON(t, env.URL+"/api/user/login", loginData)

			require.Equalf(t, http.StatusBadRequest, resp.StatusCode, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "User account is inactive"
				}`, body)
			require.Equal(t, 0, len(resp.Cookies()), "no cookies should be set on login error")
		})
	})

	t.Run("login failed", func(t *testing.T) {
		withApp(pg.Pool, t, func(env appEnv) {
			registerActiveUser(t, env, "nkiryanov", "nkiryanov@example.com", "StrongEnoughPassword")

			tests := []struct {
				name string
				data string
			}{
				{"wrong password", `{"username": "nkiryanov", "password": "WrongPassword"}`},
				{"unknown user", `{"username": "stranger", "password": "StrongEnoughPassword"}`},
			}

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					resp, body := postJSON(t, env.URL+"/api/user/login", tt.data)

					require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "not expected code. Body: %s", body)
					// Unknown user and wrong password must be indistinguishable
					require.JSONEq(t, `
						{
							"error": "service_error",
							"message": "Invalid username or password"
						}`, body)

					require.Equal(t, 0, len(resp.Cookies()), "no cookies should be set on login error")
					require.NotContains(t, resp.Header, "Authorization", "Authorization header should not be set")
				})
			}
		})
	})

	t.Run("refresh token ok", func(t *testing.T) {
		withApp(pg.Pool, t, func(env appEnv) {
			registerActiveUser(t, env, "nkiryanov", "nkiryanov@example.com", "StrongEnoughPassword")

			// Login and get refresh cookie
			resp, body := postJSON(t, env.URL+"/api/user/login", loginData)
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
			require.Equal(t, 1, len(resp.Cookies()))

			firstRefresh := resp.Cookies()[0]
			firstAccess := resp.Header.Get("Authorization")

			// Send refresh request
			req, err := http.NewRequest("POST", env.URL+"/api/user/refresh", nil)
			require.NoError(t, err)
			req.AddCookie(&http.Cookie{Name: firstRefresh.Name, Value: firstRefresh.Value})
			resp, err = http.DefaultClient.Do(req)
			require.NoError(t, err)
			respBody, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			defer resp.Body.Close() //nolint:errcheck

			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", string(respBody))
			require.JSONEq(t, `{"message": "Tokens refreshed successfully"}`, string(respBody))

			require.Equal(t, 1, len(resp.Cookies()))
			secondRefresh := resp.Cookies()[0]
			secondAccess := resp.Header.Get("Authorization")
			require.NotEqual(t, firstRefresh.Value, secondRefresh.Value, "refresh token should be changed after refresh")
			require.NotEqual(t, firstAccess, secondAccess, "access token should be changed after refresh")
		})
	})

	t.Run("refresh twice fail", func(t *testing.T) {
		withApp(pg.Pool, t, func(env appEnv) {
			registerActiveUser(t, env, "nkiryanov", "nkiryanov@example.com", "StrongEnoughPassword")

			resp, body := postJSON(t, env.URL+"/api/user/login", loginData)
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
			require.Equal(t, 1, len(resp.Cookies()))

			refreshCookie := resp.Cookies()[0]

			doRefresh := func() *http.Response {
				req, err := http.NewRequest("POST", env.URL+"/api/user/refresh", nil)
				require.NoError(t, err)
				req.AddCookie(&http.Cookie{Name: refreshCookie.Name, Value: refreshCookie.Value})
				resp, err := http.DefaultClient.Do(req)
				require.NoError(t, err)
				return resp
			}

			resp = doRefresh()
			resp.Body.Close() //nolint:errcheck
			require.Equal(t, http.StatusOK, resp.StatusCode)

			// Rotated refresh token must not be accepted again
			resp = doRefresh()
			respBody, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			defer resp.Body.Close() //nolint:errcheck
			require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "not expected code. Body: %s", string(respBody))
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "Refresh token not found"
				}`, string(respBody))
		})
	})

	t.Run("refresh without cookie fail", func(t *testing.T) {
		withApp(pg.Pool, t, func(env appEnv) {
			resp, body := postJSON(t, env.URL+"/api/user/refresh", "")

			require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "Refresh token not found"
				}`, body)
		})
	})

	t.Run("me ok", func(t *testing.T) {
		withApp(pg.Pool, t, func(env appEnv) {
			registerActiveUser(t, env, "nkiryanov", "nkiryanov@example.com", "StrongEnoughPassword")

			resp, body := postJSON(t, env.URL+"/api/user/login", loginData)
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
			access := resp.Header.Get("Authorization")

			req, err := http.NewRequest("GET", env.URL+"/api/user/me", nil)
			require.NoError(t, err)
			req.Header.Set("Authorization", access)
			resp, err = http.DefaultClient.Do(req)
			require.NoError(t, err)
			respBody, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			defer resp.Body.Close() //nolint:errcheck

			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", string(respBody))

			var got struct {
				ID        string `json:"id"`
				Username  string `json:"username"`
				Email     string `json:"email"`
				FirstName string `json:"first_name"`
				LastName  string `json:"last_name"`
			}
			require.NoError(t, json.Unmarshal(respBody, &got))
			assert.NotEmpty(t, got.ID)
			assert.Equal(t, "nkiryanov", got.Username)
			assert.Equal(t, "nkiryanov@example.com", got.Email)
		})
	})

	t.Run("me without token fail", func(t *testing.T) {
		withApp(pg.Pool, t, func(env appEnv) {
			resp, err := http.Get(env.URL + "/api/user/me")
			require.NoError(t, err)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			defer resp.Body.Close() //nolint:errcheck

			require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "not expected code. Body: %s", string(body))
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "Unauthorized"
				}`, string(body))
		})
	})
}
