package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"snipted/internal/auth"
	"snipted/internal/config"
	"snipted/internal/models"
	"snipted/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockUserRepository is a mock of the UserRepository interface
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]models.User), args.Error(1)
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:              "test_secret",
		AccessTokenExpireMin:   30,
		RefreshTokenExpireDays: 7,
		Env:                    "test",
	}
}

func newTestServer(userRepo *MockUserRepository) *Server {
	cfg := testConfig()
	s := &Server{
		config:   cfg,
		tokens:   auth.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL(), cfg.RefreshTokenTTL()),
		userRepo: userRepo,
	}
	s.userService = service.NewUserService(userRepo)
	return s
}

func cookieValue(resp *http.Response, name string) string {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestRegister(t *testing.T) {
	t.Run("Success sets session cookies", func(t *testing.T) {
		app := fiber.New()
		mockRepo := new(MockUserRepository)
		mockRepo.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			args.Get(1).(*models.User).ID = 1
		}).Return(nil)

		s := newTestServer(mockRepo)
		app.Post("/auth/register", s.Register)

		resp := postJSON(t, app, "/auth/register", map[string]string{
			"username": "alice",
			"email":    "alice@example.com",
			"password": "sup3rsecret",
		})
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.NotEmpty(t, cookieValue(resp, "access_token"))
		assert.NotEmpty(t, cookieValue(resp, "refresh_token"))
		assert.NotEmpty(t, cookieValue(resp, "csrf_token"))

		var user models.User
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&user))
		assert.Equal(t, "alice@example.com", user.Email)
	})

	t.Run("Duplicate answers 400", func(t *testing.T) {
		app := fiber.New()
		mockRepo := new(MockUserRepository)
		mockRepo.On("Create", mock.Anything, mock.Anything).
			Return(models.NewConflictError("User with this email or username already exists"))

		s := newTestServer(mockRepo)
		app.Post("/auth/register", s.Register)

		resp := postJSON(t, app, "/auth/register", map[string]string{
			"username": "alice",
			"email":    "alice@example.com",
			"password": "sup3rsecret",
		})
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Invalid email answers 422", func(t *testing.T) {
		app := fiber.New()
		s := newTestServer(new(MockUserRepository))
		app.Post("/auth/register", s.Register)

		resp := postJSON(t, app, "/auth/register", map[string]string{
			"username": "alice",
			"email":    "not-an-email",
			"password": "sup3rsecret",
		})
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})
}

func TestLogin(t *testing.T) {
	hash, err := auth.HashPassword("sup3rsecret")
	require.NoError(t, err)
	activeUser := &models.User{ID: 1, Username: "alice", Email: "alice@example.com", PasswordHash: hash, IsActive: true}

	newApp := func(repo *MockUserRepository) *fiber.App {
		app := fiber.New()
		app.Post("/auth/login", newTestServer(repo).Login)
		return app
	}

	t.Run("Success", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		mockRepo.On("GetByEmail", mock.Anything, "alice@example.com").Return(activeUser, nil)

		resp := postJSON(t, newApp(mockRepo), "/auth/login", map[string]string{
			"email":    "alice@example.com",
			"password": "sup3rsecret",
		})
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, cookieValue(resp, "access_token"))
		assert.NotEmpty(t, cookieValue(resp, "csrf_token"))
	})

	t.Run("Wrong password and unknown email give identical responses", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		mockRepo.On("GetByEmail", mock.Anything, "alice@example.com").Return(activeUser, nil)
		mockRepo.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, nil)
		app := newApp(mockRepo)

		respWrong := postJSON(t, app, "/auth/login", map[string]string{
			"email":    "alice@example.com",
			"password": "wrongpassword",
		})
		defer func() { _ = respWrong.Body.Close() }()
		respGhost := postJSON(t, app, "/auth/login", map[string]string{
			"email":    "ghost@example.com",
			"password": "whatever1",
		})
		defer func() { _ = respGhost.Body.Close() }()

		assert.Equal(t, http.StatusBadRequest, respWrong.StatusCode)
		assert.Equal(t, http.StatusBadRequest, respGhost.StatusCode)

		var bodyWrong, bodyGhost models.ErrorResponse
		require.NoError(t, json.NewDecoder(respWrong.Body).Decode(&bodyWrong))
		require.NoError(t, json.NewDecoder(respGhost.Body).Decode(&bodyGhost))
		assert.Equal(t, "Incorrect email or password", bodyWrong.Error)
		assert.Equal(t, bodyWrong.Error, bodyGhost.Error)
	})

	t.Run("Inactive user answers 400", func(t *testing.T) {
		inactive := &models.User{ID: 2, Email: "bob@example.com", PasswordHash: hash, IsActive: false}
		mockRepo := new(MockUserRepository)
		mockRepo.On("GetByEmail", mock.Anything, "bob@example.com").Return(inactive, nil)

		resp := postJSON(t, newApp(mockRepo), "/auth/login", map[string]string{
			"email":    "bob@example.com",
			"password": "sup3rsecret",
		})
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var body models.ErrorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "Inactive user", body.Error)
	})
}

func TestRefresh(t *testing.T) {
	activeUser := &models.User{ID: 1, Email: "alice@example.com", IsActive: true}

	newApp := func(s *Server) *fiber.App {
		app := fiber.New()
		app.Post("/auth/refresh", s.Refresh)
		return app
	}

	t.Run("Missing cookie answers 401", func(t *testing.T) {
		s := newTestServer(new(MockUserRepository))
		req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
		resp, err := newApp(s).Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Invalid token answers 403", func(t *testing.T) {
		s := newTestServer(new(MockUserRepository))
		req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
		req.AddCookie(&http.Cookie{Name: "refresh_token", Value: "garbage"})
		resp, err := newApp(s).Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("Valid token rotates cookies", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		mockRepo.On("GetByEmail", mock.Anything, "alice@example.com").Return(activeUser, nil)
		s := newTestServer(mockRepo)

		refreshToken, err := s.tokens.IssueRefresh("alice@example.com")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
		req.AddCookie(&http.Cookie{Name: "refresh_token", Value: refreshToken})
		resp, err := newApp(s).Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, cookieValue(resp, "access_token"))
		assert.NotEmpty(t, cookieValue(resp, "refresh_token"))
		assert.NotEqual(t, refreshToken, cookieValue(resp, "refresh_token"))
	})

	t.Run("Deactivated user answers 401 and clears cookies", func(t *testing.T) {
		inactive := &models.User{ID: 1, Email: "alice@example.com", IsActive: false}
		mockRepo := new(MockUserRepository)
		mockRepo.On("GetByEmail", mock.Anything, "alice@example.com").Return(inactive, nil)
		s := newTestServer(mockRepo)

		refreshToken, err := s.tokens.IssueRefresh("alice@example.com")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
		req.AddCookie(&http.Cookie{Name: "refresh_token", Value: refreshToken})
		resp, err := newApp(s).Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		for _, c := range resp.Cookies() {
			if c.Name == "access_token" || c.Name == "refresh_token" {
				assert.Empty(t, c.Value)
			}
		}
	})
}

func TestLogout(t *testing.T) {
	s := newTestServer(new(MockUserRepository))
	app := fiber.New()
	app.Post("/auth/logout", s.Logout)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	for _, c := range resp.Cookies() {
		assert.Empty(t, c.Value)
		assert.True(t, c.Expires.Before(time.Now()) || c.MaxAge < 0)
	}
}

func TestAuthRequired(t *testing.T) {
	activeUser := &models.User{ID: 1, Email: "alice@example.com", IsActive: true}

	newApp := func(s *Server) *fiber.App {
		app := fiber.New()
		app.Get("/protected", s.AuthRequired(), func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"user_id": currentUserID(c)})
		})
		return app
	}

	t.Run("Missing token answers 401", func(t *testing.T) {
		s := newTestServer(new(MockUserRepository))
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		resp, err := newApp(s).Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Invalid token answers 403", func(t *testing.T) {
		s := newTestServer(new(MockUserRepository))
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.AddCookie(&http.Cookie{Name: "access_token", Value: "garbage"})
		resp, err := newApp(s).Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("Expired token answers 403", func(t *testing.T) {
		s := newTestServer(new(MockUserRepository))
		expired, err := s.tokens.IssueAccessWithTTL("alice@example.com", -time.Minute)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.AddCookie(&http.Cookie{Name: "access_token", Value: expired})
		resp, err := newApp(s).Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("Valid cookie token passes", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		mockRepo.On("GetByEmail", mock.Anything, "alice@example.com").Return(activeUser, nil)
		s := newTestServer(mockRepo)

		token, err := s.tokens.IssueAccess("alice@example.com")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.AddCookie(&http.Cookie{Name: "access_token", Value: token})
		resp, err := newApp(s).Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Bearer header works without cookie", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		mockRepo.On("GetByEmail", mock.Anything, "alice@example.com").Return(activeUser, nil)
		s := newTestServer(mockRepo)

		token, err := s.tokens.IssueAccess("alice@example.com")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := newApp(s).Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Deleted user answers 404", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		mockRepo.On("GetByEmail", mock.Anything, "alice@example.com").Return(nil, nil)
		s := newTestServer(mockRepo)

		token, err := s.tokens.IssueAccess("alice@example.com")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.AddCookie(&http.Cookie{Name: "access_token", Value: token})
		resp, err := newApp(s).Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Inactive user answers 400", func(t *testing.T) {
		inactive := &models.User{ID: 1, Email: "alice@example.com", IsActive: false}
		mockRepo := new(MockUserRepository)
		mockRepo.On("GetByEmail", mock.Anything, "alice@example.com").Return(inactive, nil)
		s := newTestServer(mockRepo)

		token, err := s.tokens.IssueAccess("alice@example.com")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.AddCookie(&http.Cookie{Name: "access_token", Value: token})
		resp, err := newApp(s).Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestCSRFRequired(t *testing.T) {
	newApp := func(s *Server) *fiber.App {
		app := fiber.New()
		app.Post("/mutate", s.CSRFRequired(), func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"ok": true})
		})
		app.Get("/read", s.CSRFRequired(), func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"ok": true})
		})
		return app
	}

	t.Run("Cookie session without header answers 403", func(t *testing.T) {
		s := newTestServer(new(MockUserRepository))
		req := httptest.NewRequest(http.MethodPost, "/mutate", nil)
		req.AddCookie(&http.Cookie{Name: "access_token", Value: "sometoken"})
		req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "expected"})
		resp, err := newApp(s).Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		var body models.ErrorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, models.CodeCSRFInvalid, body.Code)
	})

	t.Run("Mismatched header answers 403", func(t *testing.T) {
		s := newTestServer(new(MockUserRepository))
		req := httptest.NewRequest(http.MethodPost, "/mutate", nil)
		req.AddCookie(&http.Cookie{Name: "access_token", Value: "sometoken"})
		req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "expected"})
		req.Header.Set("X-CSRF-Token", "different")
		resp, err := newApp(s).Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("Matching token passes", func(t *testing.T) {
		s := newTestServer(new(MockUserRepository))
		req := httptest.NewRequest(http.MethodPost, "/mutate", nil)
		req.AddCookie(&http.Cookie{Name: "access_token", Value: "sometoken"})
		req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "expected"})
		req.Header.Set("X-CSRF-Token", "expected")
		resp, err := newApp(s).Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Safe methods are exempt", func(t *testing.T) {
		s := newTestServer(new(MockUserRepository))
		req := httptest.NewRequest(http.MethodGet, "/read", nil)
		req.AddCookie(&http.Cookie{Name: "access_token", Value: "sometoken"})
		resp, err := newApp(s).Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Refresh cookie alone still requires the header", func(t *testing.T) {
		s := newTestServer(new(MockUserRepository))
		req := httptest.NewRequest(http.MethodPost, "/mutate", nil)
		req.AddCookie(&http.Cookie{Name: "refresh_token", Value: "sometoken"})
		req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "expected"})
		resp, err := newApp(s).Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		var body models.ErrorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, models.CodeCSRFInvalid, body.Code)
	})

	t.Run("Refresh after access expiry passes with matching token", func(t *testing.T) {
		activeUser := &models.User{ID: 1, Email: "alice@example.com", IsActive: true}
		mockRepo := new(MockUserRepository)
		mockRepo.On("GetByEmail", mock.Anything, "alice@example.com").Return(activeUser, nil)
		s := newTestServer(mockRepo)

		app := fiber.New()
		app.Post("/auth/refresh", s.CSRFRequired(), s.Refresh)

		refreshToken, err := s.tokens.IssueRefresh("alice@example.com")
		require.NoError(t, err)

		// The access cookie expires with the access TTL, so a browser
		// refreshing a session sends only the refresh and CSRF cookies.
		blocked := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
		blocked.AddCookie(&http.Cookie{Name: "refresh_token", Value: refreshToken})
		blocked.AddCookie(&http.Cookie{Name: "csrf_token", Value: "expected"})
		resp, err := app.Test(blocked)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		allowed := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
		allowed.AddCookie(&http.Cookie{Name: "refresh_token", Value: refreshToken})
		allowed.AddCookie(&http.Cookie{Name: "csrf_token", Value: "expected"})
		allowed.Header.Set("X-CSRF-Token", "expected")
		resp2, err := app.Test(allowed)
		require.NoError(t, err)
		defer func() { _ = resp2.Body.Close() }()
		assert.Equal(t, http.StatusOK, resp2.StatusCode)
		assert.NotEmpty(t, cookieValue(resp2, "access_token"))
	})

	t.Run("Bearer-only clients are exempt", func(t *testing.T) {
		s := newTestServer(new(MockUserRepository))
		req := httptest.NewRequest(http.MethodPost, "/mutate", nil)
		req.Header.Set("Authorization", "Bearer sometoken")
		resp, err := newApp(s).Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Disabled flag bypasses the check", func(t *testing.T) {
		s := newTestServer(new(MockUserRepository))
		s.config.CSRFDisabled = true
		req := httptest.NewRequest(http.MethodPost, "/mutate", nil)
		req.AddCookie(&http.Cookie{Name: "access_token", Value: "sometoken"})
		resp, err := newApp(s).Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
