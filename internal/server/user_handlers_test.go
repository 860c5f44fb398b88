package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"snipted/internal/models"
	"snipted/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {
	t.Run("Success returns 201 without session cookies", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		mockRepo.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			args.Get(1).(*models.User).ID = 7
		}).Return(nil)

		s := newTestServer(mockRepo)
		app := fiber.New()
		app.Post("/users", s.CreateUser)

		resp := postJSON(t, app, "/users", map[string]string{
			"username": "carol",
			"email":    "Carol@Example.com",
			"password": "sup3rsecret",
		})
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Empty(t, resp.Cookies())

		var user models.User
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&user))
		assert.Equal(t, uint(7), user.ID)
		assert.Equal(t, "carol@example.com", user.Email)
	})

	t.Run("Short password answers 422", func(t *testing.T) {
		s := newTestServer(new(MockUserRepository))
		app := fiber.New()
		app.Post("/users", s.CreateUser)

		resp := postJSON(t, app, "/users", map[string]string{
			"username": "carol",
			"email":    "carol@example.com",
			"password": "short",
		})
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})
}

func TestGetMe(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockRepo.On("GetByID", mock.Anything, uint(1)).
		Return(&models.User{ID: 1, Username: "alice", Email: "alice@example.com"}, nil)

	s := newTestServer(mockRepo)
	app := fiber.New()
	app.Get("/users/me", fakeAuth(1), s.GetMe)

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var user models.User
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&user))
	assert.Equal(t, "alice", user.Username)
}

func TestGetUsers(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockRepo.On("List", mock.Anything, 20, 0).
		Return([]models.User{{ID: 1, Username: "alice"}, {ID: 2, Username: "bob"}}, nil)

	s := newTestServer(mockRepo)
	app := fiber.New()
	app.Get("/users", fakeAuth(1), s.GetUsers)

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var users []models.User
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&users))
	assert.Len(t, users, 2)
}

func TestGetUserByID(t *testing.T) {
	t.Run("Invalid ID answers 400", func(t *testing.T) {
		s := newTestServer(new(MockUserRepository))
		app := fiber.New()
		app.Get("/users/:id", fakeAuth(1), s.GetUserByID)

		req := httptest.NewRequest(http.MethodGet, "/users/zero", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Unknown user answers 404", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		mockRepo.On("GetByID", mock.Anything, uint(99)).
			Return(nil, models.NewNotFoundError("User", uint(99)))

		s := newTestServer(mockRepo)
		app := fiber.New()
		app.Get("/users/:id", fakeAuth(1), s.GetUserByID)

		req := httptest.NewRequest(http.MethodGet, "/users/99", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestGetUserSnippets(t *testing.T) {
	snippetRepo := new(MockSnippetRepository)
	snippetRepo.On("GetByUserID", mock.Anything, uint(2), 20, 0, uint(1)).
		Return([]*models.Snippet{{ID: 10, UserID: 2, Title: "Theirs"}}, nil)

	s := newTestServer(new(MockUserRepository))
	s.snippetRepo = snippetRepo
	s.snippetService = service.NewSnippetService(snippetRepo, new(MockTagRepository))

	app := fiber.New()
	app.Get("/users/:id/snippets", fakeAuth(1), s.GetUserSnippets)

	req := httptest.NewRequest(http.MethodGet, "/users/2/snippets", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var snippets []models.Snippet
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snippets))
	assert.Len(t, snippets, 1)
	assert.Equal(t, uint(10), snippets[0].ID)
}
