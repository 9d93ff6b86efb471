package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"twitapp/internal/handlers"
	"twitapp/internal/middleware"
	"twitapp/internal/models"
	"twitapp/internal/repositories"
	"twitapp/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// setupApp sets up a Fiber app for testing with in-memory SQLite and all handlers/services.
func setupApp(t *testing.T) (*fiber.App, *services.AuthService) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := repositories.OpenGORM("sqlite", dsn)
	require.NoError(t, err)
	require.NoError(t, repositories.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	userRepo := repositories.NewGORMUserRepository(db)
	tweetRepo := repositories.NewGORMTweetRepository(db)

	hasher, err := services.NewBcryptHasher("test_secret_key", bcrypt.MinCost)
	require.NoError(t, err)
	tokens, err := services.NewTokenService("test_jwt_secret", time.Hour)
	require.NoError(t, err)
	authService, err := services.NewAuthService(userRepo, hasher, tokens, nil)
	require.NoError(t, err)
	tweetService := services.NewTweetService(tweetRepo, nil, nil, services.DefaultMutationRetries)

	authHandler := handlers.NewAuthHandler(authService)
	tweetHandler := handlers.NewTweetHandler(tweetService)

	app := fiber.New()
	apiV1 := app.Group("/api/v1")
	authHandler.RegisterRoutes(apiV1)

	protected := apiV1.Group("", middleware.AuthRequired(authService))
	authHandler.RegisterProtectedRoutes(protected)
	tweetHandler.RegisterRoutes(protected)

	return app, authService
}

// TestMain runs setup and teardown for all tests
func TestMain(m *testing.M) {
	// Suppress logging during tests for cleaner output
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

func do(t *testing.T, app *fiber.App, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1) // -1 for no timeout
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func registerAndLogin(t *testing.T, app *fiber.App, email, password string) string {
	t.Helper()
	creds := map[string]string{"email": email, "password": password}
	resp, _ := do(t, app, http.MethodPost, "/api/v1/user/register", "", creds)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, data := do(t, app, http.MethodPost, "/api/v1/user/login", "", creds)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var loginResp map[string]string
	require.NoError(t, json.Unmarshal(data, &loginResp))
	require.NotEmpty(t, loginResp["token"])
	return loginResp["token"]
}

func TestAuthRegisterAndLogin(t *testing.T) {
	app, authService := setupApp(t)
	creds := map[string]string{"email": "a@x.com", "password": "p1"}

	resp, data := do(t, app, http.MethodPost, "/api/v1/user/register", "", creds)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var summary models.UserSummary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.NotEmpty(t, summary.ID)
	assert.Equal(t, "Your registration was successful", summary.Message)

	// Duplicate registration
	resp, data = do(t, app, http.MethodPost, "/api/v1/user/register", "", creds)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(data), "User with a@x.com already exists")

	// Login
	resp, data = do(t, app, http.MethodPost, "/api/v1/user/login", "", creds)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var loginResp map[string]string
	require.NoError(t, json.Unmarshal(data, &loginResp))
	claims, err := authService.ValidateToken(loginResp["token"])
	require.NoError(t, err)
	assert.Equal(t, summary.ID, claims.UserID())

	// Wrong password
	resp, _ = do(t, app, http.MethodPost, "/api/v1/user/login", "", map[string]string{"email": "a@x.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Validation
	resp, data = do(t, app, http.MethodPost, "/api/v1/user/register", "", map[string]string{"email": "not-an-email", "password": "p1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(data), "Validation failed")
}

func TestChangePasswordAndLogout(t *testing.T) {
	app, _ := setupApp(t)
	token := registerAndLogin(t, app, "a@x.com", "old")

	resp, data := do(t, app, http.MethodPost, "/api/v1/user/change-password", token, map[string]string{
		"email": "a@x.com", "password": "old", "new_password": "old",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(data), "Old and new password must not be the same")

	resp, data = do(t, app, http.MethodPost, "/api/v1/user/change-password", token, map[string]string{
		"email": "a@x.com", "password": "wrong", "new_password": "new",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(data), "Invalid password provided.")

	resp, data = do(t, app, http.MethodPost, "/api/v1/user/change-password", token, map[string]string{
		"email": "a@x.com", "password": "old", "new_password": "new",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "Password updated successfully.")

	resp, _ = do(t, app, http.MethodPost, "/api/v1/user/login", "", map[string]string{"email": "a@x.com", "password": "old"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = do(t, app, http.MethodPost, "/api/v1/user/login", "", map[string]string{"email": "a@x.com", "password": "new"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, data = do(t, app, http.MethodPost, "/api/v1/user/logout", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "Logged out successfully")

	// Logout does not revoke: the token still works
	resp, _ = do(t, app, http.MethodGet, "/api/v1/tweets", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTweetLifecycle(t *testing.T) {
	app, _ := setupApp(t)
	token := registerAndLogin(t, app, "a@x.com", "p1")

	resp, data := do(t, app, http.MethodPost, "/api/v1/tweets", token, map[string]string{"message": "hello"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var tweet models.Tweet
	require.NoError(t, json.Unmarshal(data, &tweet))
	require.NotEmpty(t, tweet.ID)
	assert.Equal(t, "hello", tweet.Message)
	assert.Empty(t, tweet.Likes)

	// Two likes, then remove the first
	for i := 0; i < 2; i++ {
		resp, _ = do(t, app, http.MethodPost, "/api/v1/likes/"+tweet.ID, token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, data = do(t, app, http.MethodGet, "/api/v1/tweets/"+tweet.ID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var liked models.Tweet
	require.NoError(t, json.Unmarshal(data, &liked))
	require.Len(t, liked.Likes, 2)
	assert.NotEqual(t, liked.Likes[0].ID, liked.Likes[1].ID)

	resp, data = do(t, app, http.MethodDelete, "/api/v1/likes/"+tweet.ID+"/"+liked.Likes[0].ID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var unliked models.Tweet
	require.NoError(t, json.Unmarshal(data, &unliked))
	require.Len(t, unliked.Likes, 1)
	assert.Equal(t, liked.Likes[1].ID, unliked.Likes[0].ID)

	// Removing the same like again is not an error
	resp, _ = do(t, app, http.MethodDelete, "/api/v1/likes/"+tweet.ID+"/"+liked.Likes[0].ID, token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Comments
	resp, _ = do(t, app, http.MethodPost, "/api/v1/tweets/"+tweet.ID+"/comment", token, map[string]string{"message": "first"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, data = do(t, app, http.MethodPost, "/api/v1/tweets/"+tweet.ID+"/comment", token, map[string]string{"message": "second"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var commented models.Tweet
	require.NoError(t, json.Unmarshal(data, &commented))
	require.Len(t, commented.Comments, 2)
	assert.Equal(t, "first", commented.Comments[0].Message)

	resp, data = do(t, app, http.MethodDelete, "/api/v1/tweets/"+tweet.ID+"/comment/"+commented.Comments[0].ID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var uncommented models.Tweet
	require.NoError(t, json.Unmarshal(data, &uncommented))
	require.Len(t, uncommented.Comments, 1)
	assert.Equal(t, "second", uncommented.Comments[0].Message)

	// List only shows the caller's tweets
	other := registerAndLogin(t, app, "b@x.com", "p2")
	resp, data = do(t, app, http.MethodGet, "/api/v1/tweets", other, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var othersTweets []models.Tweet
	require.NoError(t, json.Unmarshal(data, &othersTweets))
	assert.Empty(t, othersTweets)

	resp, data = do(t, app, http.MethodGet, "/api/v1/tweets", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var mine []models.Tweet
	require.NoError(t, json.Unmarshal(data, &mine))
	assert.Len(t, mine, 1)

	// Delete, then deleting again reports zero
	resp, data = do(t, app, http.MethodDelete, "/api/v1/tweets/"+tweet.ID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"deleted":1}`, string(data))
	resp, data = do(t, app, http.MethodDelete, "/api/v1/tweets/"+tweet.ID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"deleted":0}`, string(data))

	resp, _ = do(t, app, http.MethodGet, "/api/v1/tweets/"+tweet.ID, token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = do(t, app, http.MethodPost, "/api/v1/likes/"+tweet.ID, token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTweetValidation(t *testing.T) {
	app, _ := setupApp(t)
	token := registerAndLogin(t, app, "a@x.com", "p1")

	resp, data := do(t, app, http.MethodPost, "/api/v1/tweets", token, map[string]string{"message": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(data), "Validation failed")

	resp, _ = do(t, app, http.MethodPost, "/api/v1/tweets", token, map[string]string{"message": string(bytes.Repeat([]byte("a"), 281))})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEndpointsWithoutAuth(t *testing.T) {
	app, _ := setupApp(t)

	resp, _ := do(t, app, http.MethodGet, "/api/v1/tweets", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, app, http.MethodPost, "/api/v1/tweets", "", map[string]string{"message": "hello"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, app, http.MethodPost, "/api/v1/likes/some-id", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, app, http.MethodPost, "/api/v1/user/logout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
